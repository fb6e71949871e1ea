package profiles

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Attributes are the filterable facts about a voter account. Nil fields
// could not be derived from the chain response.
type Attributes struct {
	Reputation *float64
	Stake      *float64
	AccountAge *int
	PostCount  *int
}

// Sink receives resolved attributes; the registry implements it.
type Sink interface {
	SetProfile(username string, reputation, stake *float64, accountAge, postCount *int)
}

// Resolver fetches and caches voter account attributes from the chain's
// get_accounts call. Profiles change slowly, so entries are reused for a
// TTL before refetching.
type Resolver struct {
	nodeURL string
	mu      sync.RWMutex
	cache   map[string]Attributes
	fetched map[string]time.Time
	ttl     time.Duration
	client  *http.Client
}

func NewResolver(nodeURL string) *Resolver {
	if nodeURL == "" {
		return nil
	}
	return &Resolver{
		nodeURL: nodeURL,
		cache:   map[string]Attributes{},
		fetched: map[string]time.Time{},
		ttl:     30 * time.Minute, // Account facts change rarely
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Resolve returns the attributes for username, fetching on a cache miss
// or stale entry. A nil receiver or fetch failure yields (zero, false).
func (r *Resolver) Resolve(username string) (Attributes, bool) {
	if r == nil || username == "" {
		return Attributes{}, false
	}

	// Fast path: cached and fresh
	r.mu.RLock()
	attrs, ok := r.cache[username]
	fresh := ok && time.Since(r.fetched[username]) <= r.ttl
	r.mu.RUnlock()
	if fresh {
		return attrs, true
	}

	account, err := r.fetchAccount(username)
	if err != nil || account == nil {
		log.Printf("profile resolver: failed to fetch account %s: %v", username, err)
		// Serve the stale entry if we have one
		return attrs, ok
	}

	attrs = account.attributes()
	r.mu.Lock()
	r.cache[username] = attrs
	r.fetched[username] = time.Now()
	r.mu.Unlock()
	return attrs, true
}

// Backfill resolves username and pushes the result into the sink. Safe to
// run from a goroutine; failures only log.
func (r *Resolver) Backfill(sink Sink, username string) {
	if r == nil || sink == nil {
		return
	}
	attrs, ok := r.Resolve(username)
	if !ok {
		return
	}
	sink.SetProfile(username, attrs.Reputation, attrs.Stake, attrs.AccountAge, attrs.PostCount)
}

type chainAccount struct {
	Name          string      `json:"name"`
	Created       string      `json:"created"`
	PostCount     int         `json:"post_count"`
	Reputation    json.Number `json:"reputation"`
	VestingShares string      `json:"vesting_shares"`
}

type getAccountsResp struct {
	Result []chainAccount `json:"result"`
}

func (r *Resolver) fetchAccount(username string) (*chainAccount, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "condenser_api.get_accounts",
		"params":  []interface{}{[]string{username}},
		"id":      1,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.nodeURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded getAccountsResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if len(decoded.Result) == 0 {
		return nil, nil
	}
	return &decoded.Result[0], nil
}

func (a *chainAccount) attributes() Attributes {
	var attrs Attributes

	if raw, err := a.Reputation.Float64(); err == nil {
		rep := formatReputation(raw)
		attrs.Reputation = &rep
	}

	// vesting_shares arrives as "123.456789 VESTS"
	if fields := strings.Fields(a.VestingShares); len(fields) > 0 {
		if stake, err := strconv.ParseFloat(fields[0], 64); err == nil {
			attrs.Stake = &stake
		}
	}

	if created, err := time.Parse("2006-01-02T15:04:05", a.Created); err == nil {
		age := int(time.Since(created).Hours() / 24)
		attrs.AccountAge = &age
	}

	posts := a.PostCount
	attrs.PostCount = &posts

	return attrs
}

// formatReputation converts the raw on-chain reputation to the familiar
// 25-based display scale.
func formatReputation(raw float64) float64 {
	if raw == 0 {
		return 25
	}
	score := (math.Log10(math.Abs(raw)) - 9) * 9
	if raw < 0 {
		score = -score
	}
	return score + 25
}
