package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Profile holds the per-user fields that feed prompt templates. UserID is the
// subject of the hosted auth provider's token.
type Profile struct {
	UserID      uuid.UUID      `gorm:"type:uuid;primaryKey" json:"user_id"`
	DisplayName string         `gorm:"not null;default:''" json:"display_name"`
	CoreBelief  string         `gorm:"type:text" json:"core_belief"`
	AIVoice     string         `gorm:"column:ai_voice;type:text" json:"ai_voice"`
	Onboarding  datatypes.JSON `gorm:"type:jsonb" json:"onboarding,omitempty"`
	Timezone    string         `gorm:"not null;default:'UTC'" json:"timezone"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Goal is a user-defined goal; titles are quoted in generated content
type Goal struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"-"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// GoalTitles extracts titles in order
func GoalTitles(goals []Goal) []string {
	titles := make([]string, 0, len(goals))
	for _, g := range goals {
		titles = append(titles, g.Title)
	}
	return titles
}
