package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jimdaga/goldstreak/internal/models"
	"gorm.io/gorm"
)

// ContentStore persists cached content rows
type ContentStore struct {
	db *gorm.DB
}

// NewContentStore creates a ContentStore
func NewContentStore(db *gorm.DB) *ContentStore {
	return &ContentStore{db: db}
}

func (s *ContentStore) scope(ctx context.Context, key models.ContentKey) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.CachedContent{}).
		Where("user_id = ? AND type = ? AND streak_days = ?", key.UserID, key.Type, key.StreakDays)
	if key.SubEntityID == nil {
		return q.Where("sub_entity_id IS NULL")
	}
	return q.Where("sub_entity_id = ?", *key.SubEntityID)
}

// OldestUnconsumed returns the oldest row for key that has not been consumed
func (s *ContentStore) OldestUnconsumed(ctx context.Context, key models.ContentKey) (*models.CachedContent, error) {
	var row models.CachedContent
	err := s.scope(ctx, key).Where("consumed = ?", false).Order("created_at ASC, id ASC").Take(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	return &row, nil
}

// Latest returns the newest row for key regardless of its consumed flag
func (s *ContentStore) Latest(ctx context.Context, key models.ContentKey) (*models.CachedContent, error) {
	var row models.CachedContent
	err := s.scope(ctx, key).Order("created_at DESC, id DESC").Take(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	return &row, nil
}

// MarkConsumed flips the row to consumed only if it is still unconsumed.
// It reports whether this call won.
func (s *ContentStore) MarkConsumed(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.CachedContent{}).
		Where("id = ? AND consumed = ?", id, false).
		Updates(map[string]interface{}{"consumed": true, "consumed_at": at})
	if res.Error != nil {
		return false, fmt.Errorf("mark content consumed: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// HasUnconsumed reports whether key has a row waiting to be consumed
func (s *ContentStore) HasUnconsumed(ctx context.Context, key models.ContentKey) (bool, error) {
	var count int64
	if err := s.scope(ctx, key).Where("consumed = ?", false).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Insert stores a new row
func (s *ContentStore) Insert(ctx context.Context, row *models.CachedContent) error {
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("insert cached content: %w", err)
	}
	return nil
}

// DeleteConsumedBefore removes consumed rows consumed before the cutoff
func (s *ContentStore) DeleteConsumedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("consumed = ? AND consumed_at < ?", true, cutoff).
		Delete(&models.CachedContent{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune cached content: %w", res.Error)
	}
	return res.RowsAffected, nil
}
