package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jimdaga/goldstreak/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var intentionConflict = []clause.Column{{Name: "user_id"}, {Name: "date"}}

// IntentionStore persists daily intentions
type IntentionStore struct {
	db *gorm.DB
}

// NewIntentionStore creates an IntentionStore
func NewIntentionStore(db *gorm.DB) *IntentionStore {
	return &IntentionStore{db: db}
}

// Find returns the intention for a user and date
func (s *IntentionStore) Find(ctx context.Context, userID uuid.UUID, date time.Time) (*models.DailyIntention, error) {
	var row models.DailyIntention
	err := s.db.WithContext(ctx).Where("user_id = ? AND date = ?", userID, date).Take(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	return &row, nil
}

// InsertIfAbsent inserts row unless one exists for the same user and date.
// It reports whether the row was created.
func (s *IntentionStore) InsertIfAbsent(ctx context.Context, row *models.DailyIntention) (bool, error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: intentionConflict, DoNothing: true}).
		Create(row)
	if res.Error != nil {
		return false, fmt.Errorf("insert intention: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Replace writes row, overwriting text and clearing any vote on conflict
func (s *IntentionStore) Replace(ctx context.Context, row *models.DailyIntention) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: intentionConflict,
			DoUpdates: clause.Assignments(map[string]interface{}{
				"text":       row.Text,
				"fallback":   row.Fallback,
				"vote":       nil,
				"updated_at": gorm.Expr("NOW()"),
			}),
		}).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("replace intention: %w", err)
	}
	return nil
}

// SetVote records a vote on an existing intention
func (s *IntentionStore) SetVote(ctx context.Context, userID uuid.UUID, date time.Time, vote string) error {
	res := s.db.WithContext(ctx).Model(&models.DailyIntention{}).
		Where("user_id = ? AND date = ?", userID, date).
		Update("vote", vote)
	if res.Error != nil {
		return fmt.Errorf("vote intention: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
