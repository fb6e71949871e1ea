package models

import "time"

// Voter mirrors a chain account. Attribute pointers stay nil until the
// profile resolver backfills them; a nil attribute fails any filter
// threshold that requires it.
type Voter struct {
	ID         uint     `gorm:"primaryKey"`
	Username   string   `gorm:"size:255;uniqueIndex"`
	Reputation *float64 `gorm:"type:numeric"`
	Stake      *float64 `gorm:"type:numeric"` // staked tokens, "SP"
	AccountAge *int     // days since account creation
	PostCount  *int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
