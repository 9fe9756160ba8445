package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jimdaga/goldstreak/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileStore persists profiles and goals
type ProfileStore struct {
	db *gorm.DB
}

// NewProfileStore creates a ProfileStore
func NewProfileStore(db *gorm.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// GetProfile returns the user's profile
func (s *ProfileStore) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// UpsertProfile creates or updates the editable profile fields
func (s *ProfileStore) UpsertProfile(ctx context.Context, p *models.Profile) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "core_belief", "ai_voice", "timezone", "updated_at"}),
		}).
		Create(p).Error
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// SaveOnboarding stores the onboarding result and the fields derived from it
func (s *ProfileStore) SaveOnboarding(ctx context.Context, p *models.Profile) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"core_belief", "ai_voice", "onboarding", "updated_at"}),
		}).
		Create(p).Error
	if err != nil {
		return fmt.Errorf("save onboarding: %w", err)
	}
	return nil
}

// ListGoals returns the user's goals in creation order
func (s *ProfileStore) ListGoals(ctx context.Context, userID uuid.UUID) ([]models.Goal, error) {
	var goals []models.Goal
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&goals).Error; err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return goals, nil
}

// CreateGoal stores a new goal
func (s *ProfileStore) CreateGoal(ctx context.Context, g *models.Goal) error {
	if err := s.db.WithContext(ctx).Create(g).Error; err != nil {
		return fmt.Errorf("create goal: %w", err)
	}
	return nil
}

// DeleteGoal soft-deletes one of the user's goals
func (s *ProfileStore) DeleteGoal(ctx context.Context, userID uuid.UUID, id uint) error {
	res := s.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).Delete(&models.Goal{})
	if res.Error != nil {
		return fmt.Errorf("delete goal: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
