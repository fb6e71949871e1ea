// Package models defines the database models for the poll audit service.
package models

import "time"

// Poll is a question published on the chain, identified by the owning
// account and the comment permlink.
type Poll struct {
	ID                   uint      `gorm:"primaryKey"`
	Username             string    `gorm:"size:255;index:ux_username_permlink,unique"`
	Permlink             string    `gorm:"size:255;index:ux_username_permlink,unique;index"`
	Text                 string    `gorm:"size:255;not null"`
	Description          string    `gorm:"type:text"`
	ExpireAt             time.Time `gorm:"index"`
	AllowMultipleChoices bool
	VoterCount           int      `gorm:"index"` // distinct voters, recomputed on every commit
	Choices              []Choice `gorm:"foreignKey:PollID;constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// IsVotable reports whether the poll still accepts votes at the given time.
func (p *Poll) IsVotable(now time.Time) bool {
	return now.Before(p.ExpireAt)
}

// DistinctVoters collects the set of usernames that voted for any choice.
// A voter who selected multiple choices appears once.
func (p *Poll) DistinctVoters() map[string]struct{} {
	voters := make(map[string]struct{})
	for i := range p.Choices {
		for _, u := range p.Choices[i].Voters {
			voters[u] = struct{}{}
		}
	}
	return voters
}
