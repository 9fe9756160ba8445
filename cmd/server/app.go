package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jimdaga/goldstreak/internal/badges"
	"github.com/jimdaga/goldstreak/internal/config"
	"github.com/jimdaga/goldstreak/internal/content"
	"github.com/jimdaga/goldstreak/internal/database"
	"github.com/jimdaga/goldstreak/internal/health"
	"github.com/jimdaga/goldstreak/internal/llm"
	"github.com/jimdaga/goldstreak/internal/locks"
	"github.com/jimdaga/goldstreak/internal/models"
	"github.com/jimdaga/goldstreak/internal/prompts"
	"github.com/jimdaga/goldstreak/internal/store"
	"github.com/jimdaga/goldstreak/internal/tracker"
	"github.com/jimdaga/goldstreak/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app holds the wired services shared by the serve and worker commands
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	db    *gorm.DB
	redis *redis.Client
	tasks *worker.Client

	routines *store.RoutineStore
	content  *content.Service
	tracker  *tracker.Service
	badges   *badges.Service
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if cfg.NotesEncryptionKey != "" {
		if err := models.InitEncryption(cfg.NotesEncryptionKey); err != nil {
			return nil, fmt.Errorf("notes encryption: %w", err)
		}
		logger.Info("notes_encryption_enabled")
	}

	db, err := database.Init(database.Options{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		SlowQuery:       cfg.DBSlowQuery,
	}, logger.Named("database"))
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	a.db = db

	var locker locks.Locker = locks.Noop{}
	var enqueuer tracker.Enqueuer
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		a.redis = redis.NewClient(opt)
		locker = locks.NewRedisLocker(a.redis, logger.Named("locks"))

		a.tasks, err = worker.NewClient(cfg.RedisURL)
		if err != nil {
			a.close()
			return nil, err
		}
		enqueuer = a.tasks
	} else {
		logger.Warn("redis_not_configured", zap.String("effect", "no background precompute, no precompute locks"))
	}

	catalog, err := prompts.Load()
	if err != nil {
		a.close()
		return nil, fmt.Errorf("prompt catalog: %w", err)
	}
	generator := llm.New(llm.Config{
		Provider:  cfg.LLMProvider,
		APIKey:    cfg.LLMAPIKey,
		Model:     cfg.LLMModel,
		BaseURL:   cfg.LLMBaseURL,
		MaxTokens: cfg.LLMMaxTokens,
	}, logger.Named("llm"))

	profiles := store.NewProfileStore(db)
	a.routines = store.NewRoutineStore(db)

	a.content = content.NewService(
		store.NewContentStore(db),
		store.NewIntentionStore(db),
		profiles,
		generator,
		catalog,
		locker,
		logger.Named("content"),
		content.Config{
			IntentionHorizonDays: cfg.IntentionHorizonDays,
			Retention:            time.Duration(cfg.ContentRetentionDays) * 24 * time.Hour,
		},
	)
	a.tracker = tracker.NewService(a.routines, profiles, enqueuer, logger.Named("tracker"))
	a.badges = badges.NewService(store.NewBadgeStore(db), a.tracker, logger.Named("badges"))

	return a, nil
}

// migrate applies migrations and seeds the badge catalog, plus demo data
// outside production.
func (a *app) migrate() error {
	if err := database.RunMigrations(a.db, a.logger); err != nil {
		return err
	}
	if err := database.SeedBadges(a.db, a.logger); err != nil {
		return err
	}
	if !a.cfg.IsProduction() {
		if err := database.SeedDevData(a.db, a.logger); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) workerDeps() worker.Deps {
	return worker.Deps{
		Users:    a.routines,
		Streaks:  a.tracker,
		Content:  a.content,
		Enqueuer: a.tasks,
	}
}

func (a *app) schedulerConfig() worker.SchedulerConfig {
	return worker.SchedulerConfig{
		RedisURL:           a.cfg.RedisURL,
		PrecomputeSchedule: a.cfg.PrecomputeSchedule,
		PruneSchedule:      a.cfg.PruneSchedule,
		Timezone:           a.cfg.SchedulerTimezone,
	}
}

func (a *app) readyChecks() map[string]health.Check {
	checks := map[string]health.Check{
		"database": func(ctx context.Context) error {
			return database.Ping(ctx, a.db)
		},
	}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		}
	}
	return checks
}

func (a *app) close() {
	if a.tasks != nil {
		if err := a.tasks.Close(); err != nil {
			a.logger.Warn("task_client_close_failed", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis_close_failed", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := database.Close(a.db); err != nil {
			a.logger.Warn("database_close_failed", zap.Error(err))
		}
	}
}
