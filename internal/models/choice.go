package models

import (
	"time"

	"gorm.io/datatypes"
)

// Choice belongs to exactly one poll. The voter set is stored inline as a
// JSON column; ordering within a poll follows Position (insertion order).
type Choice struct {
	ID        uint   `gorm:"primaryKey"`
	PollID    uint   `gorm:"index"`
	Text      string `gorm:"size:200;not null"`
	Position  int    `gorm:"index"`
	Voters    datatypes.JSONSlice[string]
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasVoter reports whether username already appears in the voter set.
func (c *Choice) HasVoter(username string) bool {
	for _, u := range c.Voters {
		if u == username {
			return true
		}
	}
	return false
}

// AddVoter appends username to the voter set; adding twice is a no-op.
func (c *Choice) AddVoter(username string) {
	if !c.HasVoter(username) {
		c.Voters = append(c.Voters, username)
	}
}

// VoteCount returns the number of voters who selected this choice.
func (c *Choice) VoteCount() int {
	return len(c.Voters)
}
