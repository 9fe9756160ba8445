// Package badges awards catalog badges once a user's streaks reach their
// thresholds. Ownership is append-only.
package badges

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jimdaga/goldstreak/internal/metrics"
	"github.com/jimdaga/goldstreak/internal/milestone"
	"github.com/jimdaga/goldstreak/internal/models"
	"github.com/jimdaga/goldstreak/internal/tracker"
	"go.uber.org/zap"
)

// Effective holds the streak values badges are gated on
type Effective struct {
	// Gold is max(current, best) of the aggregate streak
	Gold int
	// Habit is the best current per-routine streak
	Habit int
}

// FromSummary derives the gating values from a streak summary
func FromSummary(s tracker.Summary) Effective {
	eff := Effective{Gold: milestone.Effective(s.Current, s.Best)}
	for _, h := range s.Habits {
		if h.Streak > eff.Habit {
			eff.Habit = h.Streak
		}
	}
	return eff
}

// Award returns the catalog badges not yet owned whose threshold is met
func Award(catalog []models.Badge, owned map[string]bool, eff Effective) []models.Badge {
	var out []models.Badge
	for _, b := range catalog {
		if owned[b.Slug] {
			continue
		}
		var v int
		switch b.Category {
		case models.BadgeCategoryGold:
			v = eff.Gold
		case models.BadgeCategoryHabit:
			v = eff.Habit
		default:
			continue
		}
		if v >= b.Threshold {
			out = append(out, b)
		}
	}
	return out
}

// Repository is the badge persistence the service needs
type Repository interface {
	Catalog(ctx context.Context) ([]models.Badge, error)
	OwnedSlugs(ctx context.Context, userID uuid.UUID) (map[string]bool, error)
	Grant(ctx context.Context, userID uuid.UUID, badgeID uint, at time.Time) (bool, error)
	Owned(ctx context.Context, userID uuid.UUID) ([]models.UserBadge, error)
}

// Streaks refreshes and reports a user's streaks
type Streaks interface {
	Refresh(ctx context.Context, userID uuid.UUID) (tracker.Summary, error)
}

// Service checks and lists badges
type Service struct {
	repo    Repository
	streaks Streaks
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a Service
func NewService(repo Repository, streaks Streaks, logger *zap.Logger) *Service {
	return &Service{repo: repo, streaks: streaks, logger: logger, now: time.Now}
}

// Check refreshes the user's streaks and grants every newly qualified badge.
// Badges granted concurrently by another request are not reported twice.
func (s *Service) Check(ctx context.Context, userID uuid.UUID) ([]models.Badge, error) {
	summary, err := s.streaks.Refresh(ctx, userID)
	if err != nil {
		return nil, err
	}
	catalog, err := s.repo.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	owned, err := s.repo.OwnedSlugs(ctx, userID)
	if err != nil {
		return nil, err
	}

	awarded := []models.Badge{}
	now := s.now()
	for _, b := range Award(catalog, owned, FromSummary(summary)) {
		created, err := s.repo.Grant(ctx, userID, b.ID, now)
		if err != nil {
			return awarded, err
		}
		if !created {
			continue
		}
		awarded = append(awarded, b)
		metrics.BadgesAwarded.Inc()
		s.logger.Info("badge_awarded",
			zap.String("user_id", userID.String()),
			zap.String("slug", b.Slug))
	}
	return awarded, nil
}

// Owned lists the user's unlocked badges
func (s *Service) Owned(ctx context.Context, userID uuid.UUID) ([]models.UserBadge, error) {
	return s.repo.Owned(ctx, userID)
}
