// Package tally computes poll results from choice voter sets. The
// aggregation is a pure read over an already-fetched poll snapshot and is
// safe to run concurrently.
package tally

import (
	"sort"

	"poll-audit/internal/eligibility"
	"poll-audit/internal/models"
)

// VoterSource supplies voter profiles for filter evaluation.
type VoterSource interface {
	Voter(username string) (*models.Voter, bool)
}

// CommunitySource resolves a community name to its member set.
type CommunitySource interface {
	CommunityMembers(name string) (map[string]struct{}, bool)
}

// ChoiceResult is the tally of a single choice.
type ChoiceResult struct {
	ChoiceID uint    `json:"choice_id"`
	Text     string  `json:"text"`
	Votes    float64 `json:"votes"`
	Percent  float64 `json:"percent"`
}

// Summary is the result of aggregating a poll under a filter spec.
type Summary struct {
	// Choices holds one result per choice in insertion order.
	Choices []ChoiceResult `json:"choices"`
	// Ordered holds the same results sorted by descending tally; ties
	// keep insertion order.
	Ordered []ChoiceResult `json:"ordered"`
	// SelectedCount is the number of choices with at least one passing
	// vote. Proportional bars only make sense when it exceeds one.
	SelectedCount int `json:"selected_count"`
	// FiltersApplied is true when some threshold or a resolvable
	// community constraint was actually usable.
	FiltersApplied bool `json:"filters_applied"`
	// TotalVotes sums the passing (weighted) tallies of all choices. A
	// voter selecting two choices contributes twice here but once to the
	// poll's distinct voter count.
	TotalVotes float64 `json:"total_votes"`
}

// Summarize filters and counts every vote of the poll. Unknown community
// names and unparseable thresholds degrade to "no constraint".
func Summarize(poll *models.Poll, spec eligibility.Spec, mode eligibility.WeightMode,
	voters VoterSource, communities CommunitySource) Summary {

	thresholds := spec.Thresholds()

	var members map[string]struct{}
	communityUsable := false
	if spec.Community != "" && communities != nil {
		if m, ok := communities.CommunityMembers(spec.Community); ok {
			members = m
			communityUsable = true
		}
	}

	// Stake weights are computed over the poll's distinct voters so the
	// self-adjusting mode can relate each stake to the poll's own
	// distribution.
	stakes := make(map[string]*float64)
	for username := range poll.DistinctVoters() {
		if voters != nil {
			if v, ok := voters.Voter(username); ok {
				stakes[username] = v.Stake
				continue
			}
		}
		stakes[username] = nil
	}
	weights := eligibility.Weights(mode, stakes)

	summary := Summary{
		FiltersApplied: !thresholds.Empty() || communityUsable,
	}

	for i := range poll.Choices {
		choice := &poll.Choices[i]
		result := ChoiceResult{ChoiceID: choice.ID, Text: choice.Text}
		for _, username := range choice.Voters {
			var profile *models.Voter
			if voters != nil {
				profile, _ = voters.Voter(username)
			}
			if !eligibility.Passes(profile, thresholds, members) {
				continue
			}
			result.Votes += weights[username]
		}
		if result.Votes > 0 {
			summary.SelectedCount++
		}
		summary.TotalVotes += result.Votes
		summary.Choices = append(summary.Choices, result)
	}

	if summary.TotalVotes > 0 {
		for i := range summary.Choices {
			summary.Choices[i].Percent = summary.Choices[i].Votes / summary.TotalVotes * 100
		}
	}

	summary.Ordered = append([]ChoiceResult(nil), summary.Choices...)
	sort.SliceStable(summary.Ordered, func(i, j int) bool {
		return summary.Ordered[i].Votes > summary.Ordered[j].Votes
	})

	return summary
}
