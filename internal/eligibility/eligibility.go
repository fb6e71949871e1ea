// Package eligibility decides which voters count toward a tally. Filter
// values arrive as raw query-string text from untrusted callers, so
// parsing is permissive: anything unusable degrades to "no constraint"
// and the engine never returns an error.
package eligibility

import (
	"strconv"
	"strings"

	"poll-audit/internal/models"
)

// Spec carries the raw, externally supplied filter values.
type Spec struct {
	Reputation string
	AccountAge string
	PostCount  string
	Stake      string
	Community  string
}

// Thresholds are the usable inclusive lower bounds parsed out of a Spec.
// A nil field means no constraint.
type Thresholds struct {
	Reputation *float64
	AccountAge *int
	PostCount  *int
	Stake      *float64
}

// Thresholds parses the numeric fields. Non-numeric values are skipped
// silently, not treated as failures.
func (s Spec) Thresholds() Thresholds {
	var t Thresholds
	if v, ok := parseFloat(s.Reputation); ok {
		t.Reputation = &v
	}
	if v, ok := parseInt(s.AccountAge); ok {
		t.AccountAge = &v
	}
	if v, ok := parseInt(s.PostCount); ok {
		t.PostCount = &v
	}
	if v, ok := parseFloat(s.Stake); ok {
		t.Stake = &v
	}
	return t
}

// Empty reports whether no threshold survived parsing.
func (t Thresholds) Empty() bool {
	return t.Reputation == nil && t.AccountAge == nil && t.PostCount == nil && t.Stake == nil
}

func parseFloat(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseInt(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Passes applies every supplied threshold as a logical AND. A voter with
// a missing attribute fails any bound that needs it. members is the
// resolved community member set; nil means no membership constraint.
func Passes(voter *models.Voter, t Thresholds, members map[string]struct{}) bool {
	if voter == nil {
		return t.Empty() && members == nil
	}
	if t.Reputation != nil && (voter.Reputation == nil || *voter.Reputation < *t.Reputation) {
		return false
	}
	if t.AccountAge != nil && (voter.AccountAge == nil || *voter.AccountAge < *t.AccountAge) {
		return false
	}
	if t.PostCount != nil && (voter.PostCount == nil || *voter.PostCount < *t.PostCount) {
		return false
	}
	if t.Stake != nil && (voter.Stake == nil || *voter.Stake < *t.Stake) {
		return false
	}
	if members != nil {
		if _, ok := members[voter.Username]; !ok {
			return false
		}
	}
	return true
}

// WeightMode selects how passing votes are weighted in a tally.
type WeightMode int

const (
	// WeightNone counts each passing vote as 1.
	WeightNone WeightMode = iota
	// WeightStake weighs each passing vote by the voter's raw stake.
	WeightStake
	// WeightSelfAdjusting weighs each passing vote by the voter's stake
	// relative to the mean stake among the poll's voters.
	WeightSelfAdjusting
)

// ParseWeightMode maps the query value of stake_based to a mode:
// "1" selects stake weighting, "2" the self-adjusting variant.
func ParseWeightMode(raw string) WeightMode {
	switch strings.TrimSpace(raw) {
	case "1":
		return WeightStake
	case "2":
		return WeightSelfAdjusting
	default:
		return WeightNone
	}
}

// Weights computes the per-voter weight for a poll. stakes maps every
// distinct voter of the poll to their stake (nil when unknown). When no
// voter has a known stake both stake modes degrade to unweighted
// counting; otherwise voters with an unknown stake weigh 0.
func Weights(mode WeightMode, stakes map[string]*float64) map[string]float64 {
	weights := make(map[string]float64, len(stakes))
	if mode == WeightNone {
		for u := range stakes {
			weights[u] = 1
		}
		return weights
	}

	total := 0.0
	known := 0
	for _, s := range stakes {
		if s != nil && *s > 0 {
			total += *s
			known++
		}
	}
	if known == 0 {
		for u := range stakes {
			weights[u] = 1
		}
		return weights
	}

	mean := total / float64(known)
	for u, s := range stakes {
		switch {
		case s == nil || *s <= 0:
			weights[u] = 0
		case mode == WeightStake:
			weights[u] = *s
		default: // WeightSelfAdjusting
			weights[u] = *s / mean
		}
	}
	return weights
}
