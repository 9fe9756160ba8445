package models

import (
	"time"

	"github.com/google/uuid"
)

// Badge categories
const (
	BadgeCategoryGold  = "gold"
	BadgeCategoryHabit = "habit"
)

// Badge is a static catalog entry, read-only at runtime
type Badge struct {
	ID          uint   `gorm:"primaryKey" json:"-"`
	Slug        string `gorm:"uniqueIndex;not null" json:"slug" yaml:"slug"`
	Name        string `gorm:"not null" json:"name" yaml:"name"`
	Description string `gorm:"type:text" json:"description" yaml:"description"`
	Threshold   int    `gorm:"not null" json:"threshold" yaml:"threshold"`
	Category    string `gorm:"not null;index" json:"category" yaml:"category"`
}

// UserBadge records that a user unlocked a badge. Existence is the unlock
// signal; rows are never revoked.
type UserBadge struct {
	ID         uint      `gorm:"primaryKey"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_badges_user_badge"`
	BadgeID    uint      `gorm:"not null;uniqueIndex:idx_user_badges_user_badge"`
	Badge      Badge     `gorm:"constraint:OnDelete:CASCADE;"`
	UnlockedAt time.Time `gorm:"not null"`
}
