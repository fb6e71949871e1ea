// Package sync re-derives vote state from raw block data. The chain is
// adversarial-shaped input: every step fails closed on the first violated
// precondition and leaves poll and ledger state untouched; only step 9
// commits, all-or-nothing.
package sync

import (
	"context"
	"encoding/json"
	"time"

	"poll-audit/internal/chain"
	"poll-audit/internal/faults"
	"poll-audit/internal/ledger"
	"poll-audit/internal/logger"
	"poll-audit/internal/models"
	"poll-audit/internal/profiles"
	"poll-audit/internal/registry"
)

type Synchronizer struct {
	source   chain.BlockSource
	registry *registry.Registry
	ledger   *ledger.Ledger
	profiles *profiles.Resolver // optional; backfills voter attributes
	log      *logger.Logger
}

func New(source chain.BlockSource, reg *registry.Registry, led *ledger.Ledger,
	prof *profiles.Resolver, log *logger.Logger) *Synchronizer {
	return &Synchronizer{
		source:   source,
		registry: reg,
		ledger:   led,
		profiles: prof,
		log:      log,
	}
}

// Sync verifies a vote claimed to exist at (blockHeight, trxID) and, if
// valid and not a duplicate, commits it to the ledger. Rejections are
// terminal for this request; the same request is safe to resubmit later.
func (s *Synchronizer) Sync(ctx context.Context, blockHeight int64, trxID string) (*models.VoteAudit, error) {
	// 1. Fetch block data
	block, err := s.source.GetBlock(ctx, blockHeight)
	if err != nil {
		s.log.Printf("sync: fetch block %d: %v", blockHeight, err)
		return nil, faults.Reject(faults.ErrNotFound, "invalid block")
	}
	if block == nil {
		return nil, faults.Reject(faults.ErrNotFound, "invalid block")
	}

	// 2. Locate the transaction
	var voteTx *chain.Transaction
	for i := range block.Transactions {
		if block.Transactions[i].TransactionID == trxID {
			voteTx = &block.Transactions[i]
			break
		}
	}
	if voteTx == nil {
		return nil, faults.Reject(faults.ErrNotFound, "invalid transaction")
	}

	// 3. Extract the vote operation. When a transaction carries several
	// comment operations the last one wins.
	var voteOp *chain.Comment
	for _, op := range voteTx.Operations {
		if op.Type != "comment" || len(op.Value) == 0 {
			continue
		}
		var comment chain.Comment
		if err := json.Unmarshal(op.Value, &comment); err != nil {
			continue
		}
		voteOp = &comment
	}
	if voteOp == nil {
		return nil, faults.Reject(faults.ErrUnverifiable, "no vote operation")
	}

	// 4. Validate the payload shape, one reason per failing check
	if voteOp.JSONMetadata == "" {
		return nil, faults.Reject(faults.ErrMalformedData, "json_metadata is missing")
	}
	var meta chain.VoteMetadata
	if err := json.Unmarshal([]byte(voteOp.JSONMetadata), &meta); err != nil {
		return nil, faults.Reject(faults.ErrMalformedData, "json_metadata is not valid JSON")
	}
	if meta.ContentType != "poll_vote" {
		return nil, faults.Reject(faults.ErrMalformedData, "content_type field is missing")
	}
	if len(meta.Votes) == 0 {
		return nil, faults.Reject(faults.ErrMalformedData, "votes field is missing")
	}

	// 5. Resolve the poll
	poll, err := s.registry.Poll(voteOp.ParentAuthor, voteOp.ParentPermlink)
	if err != nil {
		return nil, faults.Reject(faults.ErrNotFound, "unknown poll")
	}

	// 6. Resolve choices by exact text match
	choiceIDs := matchChoices(poll, meta.Votes)
	if len(choiceIDs) == 0 {
		return nil, faults.Reject(faults.ErrUnverifiable, "no matching choices")
	}

	// 7. Resolve or create the voter identity
	s.registry.EnsureVoter(voteOp.Author)

	// 8. Duplicate check
	if s.ledger.HasVoted(poll.ID, voteOp.Author) {
		return nil, faults.Reject(faults.ErrConflict, "already voted")
	}

	// 9. Commit. The ledger re-runs the duplicate check under its lock,
	// so a concurrent winner surfaces here as the same conflict.
	entry, err := s.ledger.Append(poll.ID, voteOp.Author, choiceIDs, blockHeight, trxID)
	if err != nil {
		return nil, err
	}
	s.log.Printf("sync: registered vote poll=%d voter=%s block=%d trx=%s",
		poll.ID, voteOp.Author, blockHeight, trxID)

	if s.profiles != nil {
		go s.profiles.Backfill(s.registry, voteOp.Author)
	}
	return entry, nil
}

// CastVote is the same validated commit path for votes cast in-session,
// after the caller has already broadcast the comment to the chain.
func (s *Synchronizer) CastVote(pollID uint, voter string, choiceIDs []uint, blockHeight int64, trxID string, now time.Time) (*models.VoteAudit, error) {
	poll, err := s.registry.PollByID(pollID)
	if err != nil {
		return nil, err
	}
	if !poll.IsVotable(now) {
		return nil, faults.Reject(faults.ErrInvalidInput, "poll is expired")
	}
	if len(choiceIDs) == 0 {
		return nil, faults.Reject(faults.ErrInvalidInput, "no choice selected")
	}
	if len(choiceIDs) > 1 && !poll.AllowMultipleChoices {
		return nil, faults.Reject(faults.ErrInvalidInput, "poll allows a single choice")
	}
	valid := make(map[uint]struct{}, len(poll.Choices))
	for i := range poll.Choices {
		valid[poll.Choices[i].ID] = struct{}{}
	}
	for _, id := range choiceIDs {
		if _, ok := valid[id]; !ok {
			return nil, faults.Reject(faults.ErrNotFound, "unknown choice")
		}
	}

	s.registry.EnsureVoter(voter)
	if s.ledger.HasVoted(pollID, voter) {
		return nil, faults.Reject(faults.ErrConflict, "already voted")
	}
	entry, err := s.ledger.Append(pollID, voter, choiceIDs, blockHeight, trxID)
	if err != nil {
		return nil, err
	}
	if s.profiles != nil {
		go s.profiles.Backfill(s.registry, voter)
	}
	return entry, nil
}

func matchChoices(poll *models.Poll, votes []string) []uint {
	var ids []uint
	for i := range poll.Choices {
		for _, vote := range votes {
			if poll.Choices[i].Text == vote {
				ids = append(ids, poll.Choices[i].ID)
				break
			}
		}
	}
	return ids
}
