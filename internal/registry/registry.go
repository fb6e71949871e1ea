// Package registry holds the poll working set: polls with their choices,
// voter profiles and community member lists. The in-memory maps are the
// working state; when a database handle is present every mutation is
// written through, and Hydrate restores the maps on startup. Counters on
// polls are a derived cache recomputed from choice voter sets, never
// incremented.
package registry

import (
	"sort"
	"strings"
	"sync"
	"time"

	"poll-audit/internal/faults"
	"poll-audit/internal/models"

	"gorm.io/gorm"
)

type Registry struct {
	mu sync.RWMutex
	db *gorm.DB // optional; nil disables persistence

	polls       map[string]*models.Poll // username/permlink -> poll
	pollsByID   map[uint]*models.Poll
	voters      map[string]*models.Voter
	communities map[string]*models.Community

	nextPollID   uint
	nextChoiceID uint
	nextVoterID  uint
	nextCommID   uint
}

func New(db *gorm.DB) *Registry {
	return &Registry{
		db:           db,
		polls:        make(map[string]*models.Poll),
		pollsByID:    make(map[uint]*models.Poll),
		voters:       make(map[string]*models.Voter),
		communities:  make(map[string]*models.Community),
		nextPollID:   1,
		nextChoiceID: 1,
		nextVoterID:  1,
		nextCommID:   1,
	}
}

func pollKey(username, permlink string) string {
	return username + "/" + permlink
}

// PollSpec describes a poll to create. CreatedAt defaults to now.
type PollSpec struct {
	Username             string
	Permlink             string
	Text                 string
	Description          string
	CreatedAt            time.Time
	ExpireAt             time.Time
	AllowMultipleChoices bool
	Choices              []string
}

// CreatePoll validates and registers a new poll with its choices.
func (r *Registry) CreatePoll(spec PollSpec) (*models.Poll, error) {
	if strings.TrimSpace(spec.Username) == "" || strings.TrimSpace(spec.Permlink) == "" {
		return nil, faults.Reject(faults.ErrInvalidInput, "username and permlink are required")
	}
	if strings.TrimSpace(spec.Text) == "" {
		return nil, faults.Reject(faults.ErrInvalidInput, "poll text is required")
	}
	if len(spec.Choices) == 0 {
		return nil, faults.Reject(faults.ErrInvalidInput, "at least one choice is required")
	}
	created := spec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	if !spec.ExpireAt.After(created) {
		return nil, faults.Reject(faults.ErrInvalidInput, "expiration must be after creation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := pollKey(spec.Username, spec.Permlink)
	if _, exists := r.polls[key]; exists {
		return nil, faults.Reject(faults.ErrConflict, "poll already exists")
	}

	poll := &models.Poll{
		ID:                   r.nextPollID,
		Username:             spec.Username,
		Permlink:             spec.Permlink,
		Text:                 spec.Text,
		Description:          spec.Description,
		ExpireAt:             spec.ExpireAt,
		AllowMultipleChoices: spec.AllowMultipleChoices,
		CreatedAt:            created,
	}
	r.nextPollID++
	for i, text := range spec.Choices {
		poll.Choices = append(poll.Choices, models.Choice{
			ID:        r.nextChoiceID,
			PollID:    poll.ID,
			Text:      text,
			Position:  i,
			CreatedAt: created,
		})
		r.nextChoiceID++
	}

	r.polls[key] = poll
	r.pollsByID[poll.ID] = poll

	if r.db != nil {
		_ = r.db.Create(poll).Error
	}
	return clonePoll(poll), nil
}

// Poll looks a poll up by its (username, permlink) identity.
func (r *Registry) Poll(username, permlink string) (*models.Poll, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	poll, ok := r.polls[pollKey(username, permlink)]
	if !ok {
		return nil, faults.Reject(faults.ErrNotFound, "unknown poll")
	}
	return clonePoll(poll), nil
}

// PollByID looks a poll up by its numeric id.
func (r *Registry) PollByID(id uint) (*models.Poll, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	poll, ok := r.pollsByID[id]
	if !ok {
		return nil, faults.Reject(faults.ErrNotFound, "unknown poll")
	}
	return clonePoll(poll), nil
}

// Polls returns all registered polls, newest first.
func (r *Registry) Polls() []*models.Poll {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Poll, 0, len(r.polls))
	for _, p := range r.polls {
		out = append(out, clonePoll(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// DeletePoll removes a poll and its choices.
func (r *Registry) DeletePoll(username, permlink string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pollKey(username, permlink)
	poll, ok := r.polls[key]
	if !ok {
		return faults.Reject(faults.ErrNotFound, "unknown poll")
	}
	delete(r.polls, key)
	delete(r.pollsByID, poll.ID)
	if r.db != nil {
		_ = r.db.Select("Choices").Delete(&models.Poll{ID: poll.ID}).Error
	}
	return nil
}

// IsEditable reports whether the poll content may still change: it must
// be votable and no vote may exist on any of its choices.
func (r *Registry) IsEditable(username, permlink string, now time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	poll, ok := r.polls[pollKey(username, permlink)]
	if !ok {
		return false, faults.Reject(faults.ErrNotFound, "unknown poll")
	}
	if !poll.IsVotable(now) {
		return false, nil
	}
	for i := range poll.Choices {
		if poll.Choices[i].VoteCount() > 0 {
			return false, nil
		}
	}
	return true, nil
}

// RecordVote adds the voter to each selected choice and recomputes the
// poll's distinct voter count from scratch. Re-running with unchanged
// data yields the same count.
func (r *Registry) RecordVote(pollID uint, voter string, choiceIDs []uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	poll, ok := r.pollsByID[pollID]
	if !ok {
		return faults.Reject(faults.ErrNotFound, "unknown poll")
	}
	selected := make(map[uint]struct{}, len(choiceIDs))
	for _, id := range choiceIDs {
		selected[id] = struct{}{}
	}
	for i := range poll.Choices {
		if _, ok := selected[poll.Choices[i].ID]; ok {
			poll.Choices[i].AddVoter(voter)
		}
	}
	poll.VoterCount = len(poll.DistinctVoters())
	if r.db != nil {
		for i := range poll.Choices {
			if _, ok := selected[poll.Choices[i].ID]; ok {
				_ = r.db.Save(&poll.Choices[i]).Error
			}
		}
		_ = r.db.Model(&models.Poll{}).Where("id = ?", poll.ID).
			Update("voter_count", poll.VoterCount).Error
	}
	return nil
}

// EnsureVoter returns the voter profile for username, creating a minimal
// one if it does not exist yet. This is the only create-on-read path;
// attributes are backfilled later by the profile resolver.
func (r *Registry) EnsureVoter(username string) *models.Voter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.voters[username]; ok {
		return cloneVoter(v)
	}
	v := &models.Voter{
		ID:        r.nextVoterID,
		Username:  username,
		CreatedAt: time.Now(),
	}
	r.nextVoterID++
	r.voters[username] = v
	if r.db != nil {
		_ = r.db.Create(v).Error
	}
	return cloneVoter(v)
}

// Voter returns the profile for username if known.
func (r *Registry) Voter(username string) (*models.Voter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.voters[username]
	if !ok {
		return nil, false
	}
	return cloneVoter(v), true
}

// SetProfile backfills the filterable attributes of a voter. Nil fields
// leave the current value untouched.
func (r *Registry) SetProfile(username string, reputation, stake *float64, accountAge, postCount *int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.voters[username]
	if !ok {
		v = &models.Voter{ID: r.nextVoterID, Username: username, CreatedAt: time.Now()}
		r.nextVoterID++
		r.voters[username] = v
		if r.db != nil {
			_ = r.db.Create(v).Error
		}
	}
	if reputation != nil {
		v.Reputation = reputation
	}
	if stake != nil {
		v.Stake = stake
	}
	if accountAge != nil {
		v.AccountAge = accountAge
	}
	if postCount != nil {
		v.PostCount = postCount
	}
	if r.db != nil {
		_ = r.db.Save(v).Error
	}
}

// AddCommunity registers (or replaces) a community member list.
func (r *Registry) AddCommunity(name string, members []string) *models.Community {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.communities[name]
	if !ok {
		c = &models.Community{ID: r.nextCommID, Name: name, CreatedAt: time.Now()}
		r.nextCommID++
		r.communities[name] = c
	}
	c.Members = append(c.Members[:0], members...)
	if r.db != nil {
		_ = r.db.Save(c).Error
	}
	return c
}

// CommunityMembers returns the member set of a community, or false when
// the community name is unknown.
func (r *Registry) CommunityMembers(name string) (map[string]struct{}, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.communities[name]
	if !ok {
		return nil, false
	}
	members := make(map[string]struct{}, len(c.Members))
	for _, m := range c.Members {
		members[m] = struct{}{}
	}
	return members, true
}

// Stats summarizes registry-wide counts for the landing page.
type Stats struct {
	PollCount  int `json:"poll_count"`
	VoteCount  int `json:"vote_count"` // per-choice selections, not distinct voters
	VoterCount int `json:"voter_count"`
}

// Stats counts polls, selections and voters. excludeVoters (team accounts)
// are left out of the vote and voter counts.
func (r *Registry) Stats(excludeVoters ...string) Stats {
	excluded := make(map[string]struct{}, len(excludeVoters))
	for _, u := range excludeVoters {
		excluded[u] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	s := Stats{PollCount: len(r.polls)}
	for u := range r.voters {
		if _, skip := excluded[u]; !skip {
			s.VoterCount++
		}
	}
	for _, p := range r.polls {
		for i := range p.Choices {
			for _, u := range p.Choices[i].Voters {
				if _, skip := excluded[u]; !skip {
					s.VoteCount++
				}
			}
		}
	}
	return s
}

// Hydrate loads the working set from the database. No-op without one.
func (r *Registry) Hydrate() error {
	if r.db == nil {
		return nil
	}
	var polls []*models.Poll
	if err := r.db.Preload("Choices", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("position ASC")
	}).Find(&polls).Error; err != nil {
		return err
	}
	var voters []*models.Voter
	if err := r.db.Find(&voters).Error; err != nil {
		return err
	}
	var communities []*models.Community
	if err := r.db.Find(&communities).Error; err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range polls {
		r.polls[pollKey(p.Username, p.Permlink)] = p
		r.pollsByID[p.ID] = p
		if p.ID >= r.nextPollID {
			r.nextPollID = p.ID + 1
		}
		for i := range p.Choices {
			if p.Choices[i].ID >= r.nextChoiceID {
				r.nextChoiceID = p.Choices[i].ID + 1
			}
		}
	}
	for _, v := range voters {
		r.voters[v.Username] = v
		if v.ID >= r.nextVoterID {
			r.nextVoterID = v.ID + 1
		}
	}
	for _, c := range communities {
		r.communities[c.Name] = c
		if c.ID >= r.nextCommID {
			r.nextCommID = c.ID + 1
		}
	}
	return nil
}

func clonePoll(p *models.Poll) *models.Poll {
	cp := *p
	cp.Choices = make([]models.Choice, len(p.Choices))
	for i := range p.Choices {
		cp.Choices[i] = p.Choices[i]
		cp.Choices[i].Voters = append([]string(nil), p.Choices[i].Voters...)
	}
	return &cp
}

func cloneVoter(v *models.Voter) *models.Voter {
	cv := *v
	return &cv
}
