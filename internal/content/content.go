// Package content serves AI-generated texts: celebration messages read from a
// consume-once cache, daily intentions, the daily question, chat replies and
// the onboarding profile.
package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jimdaga/goldstreak/internal/llm"
	"github.com/jimdaga/goldstreak/internal/locks"
	"github.com/jimdaga/goldstreak/internal/metrics"
	"github.com/jimdaga/goldstreak/internal/models"
	"github.com/jimdaga/goldstreak/internal/prompts"
	"github.com/jimdaga/goldstreak/internal/store"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

var (
	// ErrMiss is returned by Take when no unconsumed row exists for the key
	ErrMiss = errors.New("no cached content")
	// ErrInvalidRequest marks caller input errors
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidOnboarding is returned when the generated profile fails validation
	ErrInvalidOnboarding = prompts.ErrInvalidOnboarding
)

// Key identifies cached content
type Key = models.ContentKey

// Cache is the persistence the content cache needs
type Cache interface {
	OldestUnconsumed(ctx context.Context, key Key) (*models.CachedContent, error)
	Latest(ctx context.Context, key Key) (*models.CachedContent, error)
	MarkConsumed(ctx context.Context, id uint, at time.Time) (bool, error)
	HasUnconsumed(ctx context.Context, key Key) (bool, error)
	Insert(ctx context.Context, row *models.CachedContent) error
	DeleteConsumedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Intentions persists daily intentions
type Intentions interface {
	Find(ctx context.Context, userID uuid.UUID, date time.Time) (*models.DailyIntention, error)
	InsertIfAbsent(ctx context.Context, row *models.DailyIntention) (bool, error)
	Replace(ctx context.Context, row *models.DailyIntention) error
	SetVote(ctx context.Context, userID uuid.UUID, date time.Time, vote string) error
}

// Profiles supplies prompt context and receives onboarding results
type Profiles interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	ListGoals(ctx context.Context, userID uuid.UUID) ([]models.Goal, error)
	SaveOnboarding(ctx context.Context, p *models.Profile) error
}

// Config tunes the service
type Config struct {
	// IntentionHorizonDays is how many days of intentions precompute fills, starting today
	IntentionHorizonDays int
	// Retention is how long consumed rows are kept
	Retention time.Duration
	// LockTTL bounds a precompute lock
	LockTTL time.Duration
}

// Service is the AI content cache
type Service struct {
	cache      Cache
	intentions Intentions
	profiles   Profiles
	generator  llm.Generator
	catalog    *prompts.Catalog
	locker     locks.Locker
	logger     *zap.Logger
	cfg        Config
	now        func() time.Time
}

// NewService wires a Service. A nil locker disables precompute locking.
func NewService(cache Cache, intentions Intentions, profiles Profiles, generator llm.Generator,
	catalog *prompts.Catalog, locker locks.Locker, logger *zap.Logger, cfg Config) *Service {
	if locker == nil {
		locker = locks.Noop{}
	}
	if cfg.IntentionHorizonDays < 1 {
		cfg.IntentionHorizonDays = 3
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	return &Service{
		cache:      cache,
		intentions: intentions,
		profiles:   profiles,
		generator:  generator,
		catalog:    catalog,
		locker:     locker,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Request is a celebration key plus the display data its prompt needs
type Request struct {
	Key
	HabitTitle string
}

// Validate checks that the request names a celebration content type
func (r Request) Validate() error {
	switch r.Type {
	case models.ContentTypeGoldStreak:
		if r.SubEntityID != nil {
			return fmt.Errorf("%w: habit_id is only valid for %s", ErrInvalidRequest, models.ContentTypeHabitStreak)
		}
	case models.ContentTypeHabitStreak:
		if r.SubEntityID == nil {
			return fmt.Errorf("%w: habit_id is required for %s", ErrInvalidRequest, models.ContentTypeHabitStreak)
		}
	default:
		return fmt.Errorf("%w: unknown content type %q", ErrInvalidRequest, r.Type)
	}
	if r.StreakDays < 1 {
		return fmt.Errorf("%w: streak_days must be positive", ErrInvalidRequest)
	}
	return nil
}

// Take consumes the oldest unconsumed row for key. The consume is a
// conditional update; a caller that loses the race retries the lookup once.
func (s *Service) Take(ctx context.Context, key Key) (string, error) {
	for attempt := 0; attempt < 2; attempt++ {
		row, err := s.cache.OldestUnconsumed(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("lookup cached content: %w", err)
		}

		won, err := s.cache.MarkConsumed(ctx, row.ID, s.now())
		if err != nil {
			return "", err
		}
		if won {
			metrics.CacheLookups.WithLabelValues(key.Type, "hit").Inc()
			return row.Text, nil
		}
	}
	metrics.CacheLookups.WithLabelValues(key.Type, "miss").Inc()
	return "", ErrMiss
}

// Generate renders the prompt for req, calls the generator and stores the
// result with the given consumed flag.
func (s *Service) Generate(ctx context.Context, req Request, consumed bool) (string, error) {
	data := s.promptData(ctx, req.UserID)
	data.StreakDays = req.StreakDays
	data.HabitTitle = req.HabitTitle

	text, err := s.generate(ctx, req.Type, data)
	if err != nil {
		return "", err
	}

	row := &models.CachedContent{
		UserID:      req.UserID,
		Type:        req.Type,
		StreakDays:  req.StreakDays,
		SubEntityID: req.SubEntityID,
		Text:        text,
		Consumed:    consumed,
	}
	if consumed {
		at := s.now()
		row.ConsumedAt = &at
	}
	if err := s.cache.Insert(ctx, row); err != nil {
		return "", err
	}

	s.logger.Info("content_generated",
		zap.String("user_id", req.UserID.String()),
		zap.String("type", req.Type),
		zap.Int("streak_days", req.StreakDays),
		zap.Bool("consumed", consumed))
	return text, nil
}

// Get returns cached text for req, generating it on a miss
func (s *Service) Get(ctx context.Context, req Request) (string, error) {
	text, err := s.Take(ctx, req.Key)
	if err == nil {
		return text, nil
	}
	if !errors.Is(err, ErrMiss) {
		return "", err
	}
	return s.Generate(ctx, req, true)
}

// Precompute generates an unconsumed row for req unless one is already
// waiting. It reports whether a row was created.
func (s *Service) Precompute(ctx context.Context, req Request) (bool, error) {
	release, err := s.locker.Acquire(ctx, lockKey(req.Key), s.cfg.LockTTL)
	if errors.Is(err, locks.ErrNotAcquired) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer release()

	exists, err := s.cache.HasUnconsumed(ctx, req.Key)
	if err != nil {
		return false, fmt.Errorf("check cached content: %w", err)
	}
	if exists {
		return false, nil
	}
	if _, err := s.Generate(ctx, req, false); err != nil {
		return false, err
	}
	return true, nil
}

// Prune deletes consumed rows older than the retention window
func (s *Service) Prune(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.cfg.Retention)
	n, err := s.cache.DeleteConsumedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.logger.Info("content_pruned", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	return n, nil
}

// generate renders and runs one prompt, recording the outcome
func (s *Service) generate(ctx context.Context, kind string, data prompts.Data) (string, error) {
	prompt, err := s.catalog.Render(kind, data)
	if err != nil {
		return "", err
	}
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		metrics.Generations.WithLabelValues(kind, "error").Inc()
		return "", fmt.Errorf("generate %s: %w", kind, err)
	}
	metrics.Generations.WithLabelValues(kind, "ok").Inc()
	return text, nil
}

// promptData loads the profile fields shared by every prompt. Missing or
// unreadable profile data leaves the fields empty.
func (s *Service) promptData(ctx context.Context, userID uuid.UUID) prompts.Data {
	var data prompts.Data

	profile, err := s.profiles.GetProfile(ctx, userID)
	switch {
	case err == nil:
		data.CoreBelief = profile.CoreBelief
		data.AIVoice = profile.AIVoice
	case !errors.Is(err, store.ErrNotFound):
		s.logger.Warn("profile_load_failed", zap.String("user_id", userID.String()), zap.Error(err))
	}

	goals, err := s.profiles.ListGoals(ctx, userID)
	if err != nil {
		s.logger.Warn("goals_load_failed", zap.String("user_id", userID.String()), zap.Error(err))
	}
	data.Goals = models.GoalTitles(goals)
	return data
}

func lockKey(k Key) string {
	sub := "-"
	if k.SubEntityID != nil {
		sub = fmt.Sprint(*k.SubEntityID)
	}
	return fmt.Sprintf("precompute:%s:%s:%d:%s", k.UserID, k.Type, k.StreakDays, sub)
}

// saveOnboarding stores the onboarding result on the profile
func (s *Service) saveOnboarding(ctx context.Context, userID uuid.UUID, out *prompts.Onboarding, raw []byte) error {
	return s.profiles.SaveOnboarding(ctx, &models.Profile{
		UserID:     userID,
		CoreBelief: out.KeyTruth,
		AIVoice:    out.AIVoice,
		Onboarding: datatypes.JSON(raw),
		Timezone:   "UTC",
	})
}
