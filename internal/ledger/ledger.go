// Package ledger is the append-only audit trail of casted votes and the
// authority on who voted. Poll counters and choice voter sets are derived
// from it through the commit sink; the duplicate check, the append and
// the sink update run under one mutex so two concurrent casts for the
// same (poll, voter) commit exactly once.
package ledger

import (
	"strings"
	"sync"
	"time"

	"poll-audit/internal/faults"
	"poll-audit/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CommitSink receives the derived-state update after a successful append.
type CommitSink interface {
	RecordVote(pollID uint, voter string, choiceIDs []uint) error
}

type Ledger struct {
	mu     sync.Mutex
	db     *gorm.DB // optional; nil disables persistence
	sink   CommitSink
	byPoll map[uint][]*models.VoteAudit
	seen   map[voteKey]struct{}
	nextID uint
}

type voteKey struct {
	pollID uint
	voter  string
}

func New(db *gorm.DB, sink CommitSink) *Ledger {
	return &Ledger{
		db:     db,
		sink:   sink,
		byPoll: make(map[uint][]*models.VoteAudit),
		seen:   make(map[voteKey]struct{}),
		nextID: 1,
	}
}

// Append records a vote with its blockchain references. It fails with a
// conflict when an entry already exists for (pollID, voter). On success
// the commit sink updates choice voter sets and the poll counter; a sink
// failure rolls the entry back so no partial state survives.
func (l *Ledger) Append(pollID uint, voter string, choiceIDs []uint, blockHeight int64, trxID string) (*models.VoteAudit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := voteKey{pollID: pollID, voter: voter}
	if _, dup := l.seen[key]; dup {
		return nil, faults.Reject(faults.ErrConflict, "already voted")
	}

	entry := &models.VoteAudit{
		ID:          l.nextID,
		PollID:      pollID,
		Voter:       voter,
		ChoiceIDs:   datatypes.JSONSlice[uint](append([]uint(nil), choiceIDs...)),
		BlockHeight: blockHeight,
		TrxID:       trxID,
		CreatedAt:   time.Now(),
	}

	if l.db != nil {
		if err := l.db.Create(entry).Error; err != nil {
			// A unique-index violation means another writer won the
			// race; surface it as the same conflict, not as an I/O
			// failure, so callers know not to retry.
			if isUniqueViolation(err) {
				return nil, faults.Reject(faults.ErrConflict, "already voted")
			}
			return nil, err
		}
	}

	if err := l.sink.RecordVote(pollID, voter, choiceIDs); err != nil {
		if l.db != nil {
			_ = l.db.Delete(entry).Error
		}
		return nil, err
	}

	l.nextID++
	l.seen[key] = struct{}{}
	l.byPoll[pollID] = append(l.byPoll[pollID], entry)

	return cloneEntry(entry), nil
}

// HasVoted reports whether a completed entry exists for (pollID, voter).
func (l *Ledger) HasVoted(pollID uint, voter string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[voteKey{pollID: pollID, voter: voter}]
	return ok
}

// EntriesFor returns the entries of a poll in insertion order.
func (l *Ledger) EntriesFor(pollID uint) []*models.VoteAudit {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := l.byPoll[pollID]
	out := make([]*models.VoteAudit, 0, len(entries))
	for _, e := range entries {
		out = append(out, cloneEntry(e))
	}
	return out
}

// Hydrate loads existing entries from the database. The registry restores
// choice voter sets from its own tables, so only the maps are rebuilt
// here. No-op without a database.
func (l *Ledger) Hydrate() error {
	if l.db == nil {
		return nil
	}
	var entries []*models.VoteAudit
	if err := l.db.Order("id ASC").Find(&entries).Error; err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range entries {
		l.seen[voteKey{pollID: e.PollID, voter: e.Voter}] = struct{}{}
		l.byPoll[e.PollID] = append(l.byPoll[e.PollID], e)
		if e.ID >= l.nextID {
			l.nextID = e.ID + 1
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || // postgres 23505
		strings.Contains(msg, "UNIQUE constraint failed")
}

func cloneEntry(e *models.VoteAudit) *models.VoteAudit {
	ce := *e
	ce.ChoiceIDs = append(datatypes.JSONSlice[uint](nil), e.ChoiceIDs...)
	return &ce
}
