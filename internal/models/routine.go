package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jimdaga/goldstreak/internal/crypto"
	"github.com/jimdaga/goldstreak/internal/streak"
	"gorm.io/gorm"
)

var notesEncryptor *crypto.FieldEncryptor

// InitEncryption initializes at-rest encryption of completion notes.
// Without it notes are stored as plain text.
func InitEncryption(encryptionKey string) error {
	enc, err := crypto.NewFieldEncryptor(encryptionKey)
	if err != nil {
		return err
	}
	notesEncryptor = enc
	return nil
}

// Routine is a recurring task owned by one user. Only Name and DeactivatedOn
// change after creation.
type Routine struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"-"`
	Name          string     `gorm:"not null" json:"name"`
	Recurrence    string     `gorm:"not null;default:'daily'" json:"recurrence"`
	TimesPerWeek  int        `gorm:"not null;default:0" json:"times_per_week,omitempty"`
	CreatedOn     time.Time  `gorm:"type:date;not null" json:"created_on"`
	DeactivatedOn *time.Time `gorm:"type:date" json:"deactivated_on,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Window returns the routine's activity window
func (r Routine) Window() streak.Window {
	return streak.Window{Created: r.CreatedOn, Deactivated: r.DeactivatedOn}
}

// StreakRoutine converts the record to the gold streak view
func (r Routine) StreakRoutine() streak.Routine {
	return streak.Routine{
		ID:           r.ID,
		Rule:         streak.Rule(r.Recurrence),
		Window:       r.Window(),
		TimesPerWeek: r.TimesPerWeek,
	}
}

// DailyCompletion is the state of one routine on one calendar date.
// Last write wins; no history of toggles is kept.
type DailyCompletion struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RoutineID uint      `gorm:"not null;uniqueIndex:idx_daily_completions_routine_date" json:"routine_id"`
	Date      time.Time `gorm:"type:date;not null;uniqueIndex:idx_daily_completions_routine_date" json:"date"`
	Done      bool      `gorm:"not null;default:false" json:"done"`
	Notes     string    `gorm:"type:text" json:"notes"` // stored encrypted when configured
	UpdatedAt time.Time `json:"updated_at"`

	plainNotes string
}

// BeforeSave encrypts notes before writing.
// GCM produces different output each time due to the random nonce.
func (c *DailyCompletion) BeforeSave(tx *gorm.DB) error {
	if notesEncryptor == nil || c.Notes == "" {
		return nil
	}
	encrypted, err := notesEncryptor.Encrypt(c.Notes)
	if err != nil {
		return err
	}
	c.plainNotes = c.Notes
	c.Notes = encrypted
	return nil
}

// AfterSave restores the plain text on the in-memory record
func (c *DailyCompletion) AfterSave(tx *gorm.DB) error {
	if c.plainNotes != "" {
		c.Notes = c.plainNotes
		c.plainNotes = ""
	}
	return nil
}

// AfterFind decrypts notes after loading from the database
func (c *DailyCompletion) AfterFind(tx *gorm.DB) error {
	if notesEncryptor == nil || c.Notes == "" {
		return nil
	}
	decrypted, err := notesEncryptor.Decrypt(c.Notes)
	if err != nil {
		return err
	}
	c.Notes = decrypted
	return nil
}

// StreakCounters is a user's aggregate gold streak. Best never decreases.
type StreakCounters struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	Current   int       `gorm:"not null;default:0" json:"current"`
	Best      int       `gorm:"not null;default:0" json:"best"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Bump records a freshly computed current streak
func (s *StreakCounters) Bump(current int) {
	s.Current = current
	if current > s.Best {
		s.Best = current
	}
}
