package models

import (
	"time"

	"gorm.io/datatypes"
)

// Community is an externally curated member list used by the eligibility
// filter. An unknown community name degrades to "no constraint".
type Community struct {
	ID        uint                        `gorm:"primaryKey" json:"id"`
	Name      string                      `gorm:"size:255;uniqueIndex" json:"name"`
	Members   datatypes.JSONSlice[string] `json:"members"`
	CreatedAt time.Time                   `json:"created_at"`
	UpdatedAt time.Time                   `json:"updated_at"`
}
