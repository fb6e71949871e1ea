// Package server exposes the voting core over HTTP: block syncing, tally
// summaries, the audit trail, vote checks and the vote payload builder.
// Rendering, authentication and broadcasting live in external services
// that consume these endpoints.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"poll-audit/internal/config"
	"poll-audit/internal/eligibility"
	"poll-audit/internal/faults"
	"poll-audit/internal/ledger"
	"poll-audit/internal/models"
	"poll-audit/internal/registry"
	votesync "poll-audit/internal/sync"
	"poll-audit/internal/tally"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

type Server struct {
	cfg config.Config
	reg *registry.Registry
	led *ledger.Ledger
	syn *votesync.Synchronizer
}

func New(cfg config.Config, reg *registry.Registry, led *ledger.Ledger, syn *votesync.Synchronizer) *Server {
	return &Server{cfg: cfg, reg: reg, led: led, syn: syn}
}

// Sync handles GET /sync?block_num=&trx_id=
func (s *Server) Sync(w http.ResponseWriter, r *http.Request) {
	blockNum, err := strconv.ParseInt(r.URL.Query().Get("block_num"), 10, 64)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Invalid block ID")
		return
	}
	trxID := r.URL.Query().Get("trx_id")
	if trxID == "" {
		ErrorResponse(w, http.StatusBadRequest, "trx_id is required")
		return
	}

	entry, err := s.syn.Sync(r.Context(), blockNum, trxID)
	if err != nil {
		FaultResponse(w, err)
		return
	}
	slog.Info("vote synced", "poll_id", entry.PollID, "voter", entry.Voter, "trx_id", trxID)
	JSONResponse(w, http.StatusOK, map[string]interface{}{
		"message": "Vote is registered to the database.",
		"entry":   entry,
	})
}

type pollPayload struct {
	ID                   uint      `json:"id"`
	Username             string    `json:"username"`
	Permlink             string    `json:"permlink"`
	Text                 string    `json:"text"`
	Description          string    `json:"description,omitempty"`
	ExpireAt             time.Time `json:"expire_at"`
	ExpiresIn            string    `json:"expires_in"`
	AllowMultipleChoices bool      `json:"allow_multiple_choices"`
	VoterCount           int       `json:"voter_count"`
	Votable              bool      `json:"votable"`
}

func pollToPayload(p *models.Poll, now time.Time) pollPayload {
	return pollPayload{
		ID:                   p.ID,
		Username:             p.Username,
		Permlink:             p.Permlink,
		Text:                 p.Text,
		Description:          p.Description,
		ExpireAt:             p.ExpireAt,
		ExpiresIn:            humanize.Time(p.ExpireAt),
		AllowMultipleChoices: p.AllowMultipleChoices,
		VoterCount:           p.VoterCount,
		Votable:              p.IsVotable(now),
	}
}

// Summary handles GET /polls/{username}/{permlink}/summary with the
// filter values passed through as query parameters.
func (s *Server) Summary(w http.ResponseWriter, r *http.Request) {
	poll, err := s.reg.Poll(r.PathValue("username"), r.PathValue("permlink"))
	if err != nil {
		FaultResponse(w, err)
		return
	}

	q := r.URL.Query()
	spec := eligibility.Spec{
		Reputation: q.Get("rep"),
		Stake:      q.Get("sp"),
		AccountAge: q.Get("age"),
		PostCount:  q.Get("post_count"),
		Community:  q.Get("community"),
	}
	mode := eligibility.ParseWeightMode(q.Get("stake_based"))

	summary := tally.Summarize(poll, spec, mode, s.reg, s.reg)
	JSONResponse(w, http.StatusOK, map[string]interface{}{
		"poll":      pollToPayload(poll, time.Now()),
		"summary":   summary,
		"show_bars": summary.SelectedCount > 1,
	})
}

// Audit handles GET /polls/{username}/{permlink}/audit
func (s *Server) Audit(w http.ResponseWriter, r *http.Request) {
	poll, err := s.reg.Poll(r.PathValue("username"), r.PathValue("permlink"))
	if err != nil {
		FaultResponse(w, err)
		return
	}
	JSONResponse(w, http.StatusOK, map[string]interface{}{
		"poll":    pollToPayload(poll, time.Now()),
		"entries": s.led.EntriesFor(poll.ID),
	})
}

// VoteCheck handles GET /vote_check?question_id=&voter_username=
func (s *Server) VoteCheck(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.URL.Query().Get("question_id"), 10, 64)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "question_id must be an integer")
		return
	}
	voter := r.URL.Query().Get("voter_username")
	if voter == "" {
		ErrorResponse(w, http.StatusBadRequest, "voter_username is required")
		return
	}
	poll, err := s.reg.PollByID(uint(id))
	if err != nil {
		FaultResponse(w, err)
		return
	}
	JSONResponse(w, http.StatusOK, map[string]bool{
		"voted": s.led.HasVoted(poll.ID, voter),
	})
}

// Stats handles GET /stats. Team accounts are excluded from the counts.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	JSONResponse(w, http.StatusOK, s.reg.Stats(s.cfg.TeamMembers...))
}

type createPollRequest struct {
	Username             string    `json:"username"`
	Permlink             string    `json:"permlink"`
	Text                 string    `json:"text"`
	Description          string    `json:"description"`
	ExpireAt             time.Time `json:"expire_at"`
	AllowMultipleChoices bool      `json:"allow_multiple_choices"`
	Choices              []string  `json:"choices"`
}

// CreatePoll handles POST /polls. The creation workflow (form handling,
// broadcasting the poll comment) lives upstream; this only registers the
// already-published poll.
func (s *Server) CreatePoll(w http.ResponseWriter, r *http.Request) {
	var req createPollRequest
	if err := ParseJSONBody(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	poll, err := s.reg.CreatePoll(registry.PollSpec{
		Username:             req.Username,
		Permlink:             req.Permlink,
		Text:                 req.Text,
		Description:          req.Description,
		ExpireAt:             req.ExpireAt,
		AllowMultipleChoices: req.AllowMultipleChoices,
		Choices:              req.Choices,
	})
	if err != nil {
		FaultResponse(w, err)
		return
	}
	slog.Info("poll registered", "poll_id", poll.ID, "username", poll.Username, "permlink", poll.Permlink)
	JSONResponse(w, http.StatusCreated, pollToPayload(poll, time.Now()))
}

type castVoteRequest struct {
	Voter       string `json:"voter"`
	ChoiceIDs   []uint `json:"choice_ids"`
	BlockHeight int64  `json:"block_num"`
	TrxID       string `json:"trx_id"`
}

// CastVote handles POST /polls/{username}/{permlink}/votes: the
// same-session commit path for a vote whose comment was already
// broadcast by the caller.
func (s *Server) CastVote(w http.ResponseWriter, r *http.Request) {
	poll, err := s.reg.Poll(r.PathValue("username"), r.PathValue("permlink"))
	if err != nil {
		FaultResponse(w, err)
		return
	}
	var req castVoteRequest
	if err := ParseJSONBody(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Voter == "" {
		ErrorResponse(w, http.StatusBadRequest, "voter is required")
		return
	}
	entry, err := s.syn.CastVote(poll.ID, req.Voter, req.ChoiceIDs, req.BlockHeight, req.TrxID, time.Now())
	if err != nil {
		FaultResponse(w, err)
		return
	}
	slog.Info("vote cast", "poll_id", poll.ID, "voter", req.Voter)
	JSONResponse(w, http.StatusCreated, entry)
}

type communityRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// PutCommunity handles PUT /communities: replaces a community member list.
func (s *Server) PutCommunity(w http.ResponseWriter, r *http.Request) {
	var req communityRequest
	if err := ParseJSONBody(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Name == "" {
		ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}
	community := s.reg.AddCommunity(req.Name, req.Members)
	JSONResponse(w, http.StatusOK, community)
}

type voteTransactionRequest struct {
	PollID             uint   `json:"poll_id"`
	Choices            []uint `json:"choices"`
	AdditionalThoughts string `json:"additional_thoughts"`
	Username           string `json:"username"`
}

// VoteTransactionDetails handles POST /vote_transaction_details: builds
// the comment operation an external broadcaster signs and submits.
func (s *Server) VoteTransactionDetails(w http.ResponseWriter, r *http.Request) {
	var req voteTransactionRequest
	if err := ParseJSONBody(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	poll, err := s.reg.PollByID(req.PollID)
	if err != nil {
		FaultResponse(w, err)
		return
	}

	texts := make(map[uint]string, len(poll.Choices))
	for i := range poll.Choices {
		texts[poll.Choices[i].ID] = poll.Choices[i].Text
	}
	var votes []string
	var body strings.Builder
	body.WriteString("Voted for \n")
	for _, id := range req.Choices {
		text, ok := texts[id]
		if !ok {
			FaultResponse(w, faults.Reject(faults.ErrNotFound, "unknown choice"))
			return
		}
		votes = append(votes, strings.TrimSpace(text))
		fmt.Fprintf(&body, " - %s\n", strings.TrimSpace(text))
	}
	if len(votes) == 0 {
		ErrorResponse(w, http.StatusBadRequest, "choices are required")
		return
	}
	if req.AdditionalThoughts != "" {
		body.WriteString("\n\n")
		body.WriteString(req.AdditionalThoughts)
	}

	JSONResponse(w, http.StatusOK, map[string]interface{}{
		"username":        req.Username,
		"permlink":        uuid.NewString(),
		"title":           "",
		"body":            body.String(),
		"parent_username": poll.Username,
		"parent_permlink": poll.Permlink,
		"json_metadata": map[string]interface{}{
			"tags":         s.cfg.DefaultTags,
			"app":          fmt.Sprintf("dpoll/%s", s.cfg.AppVersion),
			"content_type": "poll_vote",
			"votes":        votes,
		},
	})
}
