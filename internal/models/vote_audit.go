package models

import (
	"time"

	"gorm.io/datatypes"
)

// VoteAudit stores the blockchain references of votes registered here.
// Rows are append-only and (PollID, Voter) is unique: one cast per voter
// per poll, regardless of how many choices the cast selected.
type VoteAudit struct {
	ID          uint                      `gorm:"primaryKey" json:"id"`
	PollID      uint                      `gorm:"index:ux_poll_voter,unique;index" json:"poll_id"`
	Voter       string                    `gorm:"size:255;index:ux_poll_voter,unique;index" json:"voter"`
	ChoiceIDs   datatypes.JSONSlice[uint] `json:"choice_ids"`
	BlockHeight int64                     `gorm:"index" json:"block_height"`
	TrxID       string                    `gorm:"size:255;index" json:"trx_id"`
	CreatedAt   time.Time                 `json:"created_at"`
}
