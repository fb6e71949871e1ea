package registry

import (
	"errors"
	"testing"
	"time"

	"poll-audit/internal/faults"
)

func newTestRegistry() *Registry {
	return New(nil) // in-memory only
}

func validSpec() PollSpec {
	now := time.Now()
	return PollSpec{
		Username:  "carol",
		Permlink:  "favorite-color",
		Text:      "Favorite color?",
		CreatedAt: now,
		ExpireAt:  now.Add(24 * time.Hour),
		Choices:   []string{"A", "B"},
	}
}

func TestCreatePoll(t *testing.T) {
	reg := newTestRegistry()

	poll, err := reg.CreatePoll(validSpec())
	if err != nil {
		t.Fatalf("CreatePoll failed: %v", err)
	}
	if poll.ID == 0 {
		t.Error("poll should get an id")
	}
	if len(poll.Choices) != 2 {
		t.Fatalf("expected 2 choices, got %d", len(poll.Choices))
	}
	if poll.Choices[0].Position != 0 || poll.Choices[1].Position != 1 {
		t.Error("choices should keep insertion order positions")
	}

	got, err := reg.Poll("carol", "favorite-color")
	if err != nil {
		t.Fatalf("Poll lookup failed: %v", err)
	}
	if got.Text != "Favorite color?" {
		t.Errorf("Text = %q", got.Text)
	}
}

func TestCreatePollDuplicateIdentity(t *testing.T) {
	reg := newTestRegistry()
	if _, err := reg.CreatePoll(validSpec()); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	_, err := reg.CreatePoll(validSpec())
	if !errors.Is(err, faults.ErrConflict) {
		t.Errorf("duplicate (username, permlink) should conflict, got %v", err)
	}
}

func TestCreatePollInvalidInput(t *testing.T) {
	reg := newTestRegistry()

	spec := validSpec()
	spec.ExpireAt = spec.CreatedAt.Add(-time.Hour)
	if _, err := reg.CreatePoll(spec); !errors.Is(err, faults.ErrInvalidInput) {
		t.Errorf("expiration before creation should be invalid, got %v", err)
	}

	spec = validSpec()
	spec.ExpireAt = spec.CreatedAt
	if _, err := reg.CreatePoll(spec); !errors.Is(err, faults.ErrInvalidInput) {
		t.Errorf("expiration equal to creation should be invalid, got %v", err)
	}

	spec = validSpec()
	spec.Text = "   "
	if _, err := reg.CreatePoll(spec); !errors.Is(err, faults.ErrInvalidInput) {
		t.Errorf("blank text should be invalid, got %v", err)
	}

	spec = validSpec()
	spec.Choices = nil
	if _, err := reg.CreatePoll(spec); !errors.Is(err, faults.ErrInvalidInput) {
		t.Errorf("no choices should be invalid, got %v", err)
	}
}

func TestPollNotFound(t *testing.T) {
	reg := newTestRegistry()
	if _, err := reg.Poll("nobody", "nothing"); !errors.Is(err, faults.ErrNotFound) {
		t.Errorf("unknown poll should be not found, got %v", err)
	}
	if _, err := reg.PollByID(99); !errors.Is(err, faults.ErrNotFound) {
		t.Errorf("unknown id should be not found, got %v", err)
	}
}

func TestVotableAndEditable(t *testing.T) {
	reg := newTestRegistry()
	poll, err := reg.CreatePoll(validSpec())
	if err != nil {
		t.Fatalf("CreatePoll failed: %v", err)
	}
	now := time.Now()

	if !poll.IsVotable(now) {
		t.Error("unexpired poll should be votable")
	}
	if poll.IsVotable(poll.ExpireAt.Add(time.Minute)) {
		t.Error("expired poll should not be votable")
	}

	editable, err := reg.IsEditable("carol", "favorite-color", now)
	if err != nil || !editable {
		t.Errorf("poll with no votes should be editable, got %v %v", editable, err)
	}

	// Any vote freezes the poll content.
	if err := reg.RecordVote(poll.ID, "x", []uint{poll.Choices[0].ID}); err != nil {
		t.Fatalf("RecordVote failed: %v", err)
	}
	editable, err = reg.IsEditable("carol", "favorite-color", now)
	if err != nil || editable {
		t.Errorf("poll with votes should not be editable, got %v %v", editable, err)
	}

	// Expired polls are not editable regardless of votes.
	editable, _ = reg.IsEditable("carol", "favorite-color", poll.ExpireAt.Add(time.Minute))
	if editable {
		t.Error("expired poll should not be editable")
	}
}

func TestRecordVoteRecomputesDistinctVoters(t *testing.T) {
	reg := newTestRegistry()
	spec := validSpec()
	spec.AllowMultipleChoices = true
	poll, err := reg.CreatePoll(spec)
	if err != nil {
		t.Fatalf("CreatePoll failed: %v", err)
	}
	a, b := poll.Choices[0].ID, poll.Choices[1].ID

	// One voter, two choices: counts once.
	if err := reg.RecordVote(poll.ID, "x", []uint{a, b}); err != nil {
		t.Fatalf("RecordVote failed: %v", err)
	}
	got, _ := reg.PollByID(poll.ID)
	if got.VoterCount != 1 {
		t.Errorf("VoterCount = %d, want 1", got.VoterCount)
	}
	if got.Choices[0].VoteCount() != 1 || got.Choices[1].VoteCount() != 1 {
		t.Errorf("each selected choice should carry the voter")
	}

	// Re-running with unchanged data yields an identical count.
	if err := reg.RecordVote(poll.ID, "x", []uint{a, b}); err != nil {
		t.Fatalf("RecordVote failed: %v", err)
	}
	got, _ = reg.PollByID(poll.ID)
	if got.VoterCount != 1 {
		t.Errorf("recompute is not idempotent: VoterCount = %d", got.VoterCount)
	}
	if got.Choices[0].VoteCount() != 1 {
		t.Errorf("voter set should not grow on re-run")
	}

	// A second voter bumps the distinct count.
	if err := reg.RecordVote(poll.ID, "y", []uint{a}); err != nil {
		t.Fatalf("RecordVote failed: %v", err)
	}
	got, _ = reg.PollByID(poll.ID)
	if got.VoterCount != 2 {
		t.Errorf("VoterCount = %d, want 2", got.VoterCount)
	}
}

func TestEnsureVoterCreateOnRead(t *testing.T) {
	reg := newTestRegistry()

	if _, ok := reg.Voter("dave"); ok {
		t.Fatal("voter should not exist yet")
	}
	v := reg.EnsureVoter("dave")
	if v.Username != "dave" {
		t.Errorf("Username = %q", v.Username)
	}
	if v.Reputation != nil || v.Stake != nil {
		t.Error("a minimal profile has no attributes yet")
	}

	again := reg.EnsureVoter("dave")
	if again.ID != v.ID {
		t.Error("EnsureVoter should be idempotent")
	}
}

func TestSetProfileBackfill(t *testing.T) {
	reg := newTestRegistry()
	reg.EnsureVoter("dave")

	rep := 55.0
	age := 200
	reg.SetProfile("dave", &rep, nil, &age, nil)

	v, ok := reg.Voter("dave")
	if !ok {
		t.Fatal("voter disappeared")
	}
	if v.Reputation == nil || *v.Reputation != 55 {
		t.Errorf("Reputation = %v", v.Reputation)
	}
	if v.AccountAge == nil || *v.AccountAge != 200 {
		t.Errorf("AccountAge = %v", v.AccountAge)
	}
	if v.Stake != nil {
		t.Error("nil fields must leave attributes untouched")
	}
}

func TestCommunities(t *testing.T) {
	reg := newTestRegistry()
	reg.AddCommunity("gamers", []string{"alice", "bob"})

	members, ok := reg.CommunityMembers("gamers")
	if !ok {
		t.Fatal("community should resolve")
	}
	if _, ok := members["alice"]; !ok {
		t.Error("alice should be a member")
	}
	if _, ok := reg.CommunityMembers("ghosts"); ok {
		t.Error("unknown community must not resolve")
	}
}

func TestDeletePoll(t *testing.T) {
	reg := newTestRegistry()
	if _, err := reg.CreatePoll(validSpec()); err != nil {
		t.Fatalf("CreatePoll failed: %v", err)
	}
	if err := reg.DeletePoll("carol", "favorite-color"); err != nil {
		t.Fatalf("DeletePoll failed: %v", err)
	}
	if _, err := reg.Poll("carol", "favorite-color"); !errors.Is(err, faults.ErrNotFound) {
		t.Errorf("deleted poll should be gone, got %v", err)
	}
	if err := reg.DeletePoll("carol", "favorite-color"); !errors.Is(err, faults.ErrNotFound) {
		t.Errorf("double delete should be not found, got %v", err)
	}
}

func TestStats(t *testing.T) {
	reg := newTestRegistry()
	poll, _ := reg.CreatePoll(validSpec())
	reg.EnsureVoter("x")
	reg.EnsureVoter("y")
	_ = reg.RecordVote(poll.ID, "x", []uint{poll.Choices[0].ID})
	_ = reg.RecordVote(poll.ID, "y", []uint{poll.Choices[0].ID})

	s := reg.Stats()
	if s.PollCount != 1 || s.VoteCount != 2 || s.VoterCount != 2 {
		t.Errorf("Stats = %+v", s)
	}

	// Team accounts are left out of vote and voter counts.
	s = reg.Stats("y")
	if s.PollCount != 1 || s.VoteCount != 1 || s.VoterCount != 1 {
		t.Errorf("Stats excluding y = %+v", s)
	}
}
