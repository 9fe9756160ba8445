package models

import (
	"time"

	"github.com/google/uuid"
)

// Cached content types
const (
	ContentTypeGoldStreak    = "gold_streak"
	ContentTypeHabitStreak   = "habit_streak"
	ContentTypeDailyQuestion = "daily_question"
)

// ContentKey identifies cached content. SubEntityID is set for per-routine
// content and nil otherwise.
type ContentKey struct {
	UserID      uuid.UUID
	Type        string
	StreakDays  int
	SubEntityID *uint
}

// CachedContent is a generated text snippet that is consumed at most once.
// Precomputed rows start unconsumed; on-demand rows are stored consumed.
type CachedContent struct {
	ID          uint       `gorm:"primaryKey"`
	UserID      uuid.UUID  `gorm:"type:uuid;not null;index:idx_cached_contents_lookup,priority:1"`
	Type        string     `gorm:"not null;index:idx_cached_contents_lookup,priority:2"`
	StreakDays  int        `gorm:"not null;default:0;index:idx_cached_contents_lookup,priority:3"`
	SubEntityID *uint      `gorm:"index:idx_cached_contents_lookup,priority:4"`
	Text        string     `gorm:"type:text;not null"`
	Consumed    bool       `gorm:"not null;default:false;index"`
	ConsumedAt  *time.Time `gorm:"index"`
	CreatedAt   time.Time
}

// Key returns the lookup key of the row
func (c CachedContent) Key() ContentKey {
	return ContentKey{UserID: c.UserID, Type: c.Type, StreakDays: c.StreakDays, SubEntityID: c.SubEntityID}
}

// DailyIntention is the generated intention for one user and date
type DailyIntention struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_daily_intentions_user_date" json:"-"`
	Date      time.Time `gorm:"type:date;not null;uniqueIndex:idx_daily_intentions_user_date" json:"date"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	Vote      *string   `json:"vote"`
	Fallback  bool      `gorm:"not null;default:false" json:"fallback"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Intention votes
const (
	VoteUp   = "up"
	VoteDown = "down"
)
