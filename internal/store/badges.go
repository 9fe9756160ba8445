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

// BadgeStore reads the badge catalog and records ownership
type BadgeStore struct {
	db *gorm.DB
}

// NewBadgeStore creates a BadgeStore
func NewBadgeStore(db *gorm.DB) *BadgeStore {
	return &BadgeStore{db: db}
}

// Catalog returns every badge ordered by category and threshold
func (s *BadgeStore) Catalog(ctx context.Context) ([]models.Badge, error) {
	var badges []models.Badge
	if err := s.db.WithContext(ctx).Order("category, threshold").Find(&badges).Error; err != nil {
		return nil, fmt.Errorf("load badge catalog: %w", err)
	}
	return badges, nil
}

// OwnedSlugs returns the set of badge slugs the user has unlocked
func (s *BadgeStore) OwnedSlugs(ctx context.Context, userID uuid.UUID) (map[string]bool, error) {
	var slugs []string
	err := s.db.WithContext(ctx).Model(&models.UserBadge{}).
		Joins("JOIN badges ON badges.id = user_badges.badge_id").
		Where("user_badges.user_id = ?", userID).
		Pluck("badges.slug", &slugs).Error
	if err != nil {
		return nil, fmt.Errorf("load owned badges: %w", err)
	}
	owned := make(map[string]bool, len(slugs))
	for _, slug := range slugs {
		owned[slug] = true
	}
	return owned, nil
}

// Grant records ownership. It reports false when the user already had it.
func (s *BadgeStore) Grant(ctx context.Context, userID uuid.UUID, badgeID uint, at time.Time) (bool, error) {
	row := models.UserBadge{UserID: userID, BadgeID: badgeID, UnlockedAt: at}
	res := s.db.WithContext(ctx).
		Omit("Badge").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "badge_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("grant badge: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Owned returns the user's unlocked badges, oldest first
func (s *BadgeStore) Owned(ctx context.Context, userID uuid.UUID) ([]models.UserBadge, error) {
	var rows []models.UserBadge
	err := s.db.WithContext(ctx).Preload("Badge").
		Where("user_id = ?", userID).
		Order("unlocked_at").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list owned badges: %w", err)
	}
	return rows, nil
}
