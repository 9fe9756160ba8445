// Package worker runs the background precompute and retention tasks on asynq.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jimdaga/goldstreak/internal/content"
	"github.com/jimdaga/goldstreak/internal/tracker"
	"go.uber.org/zap"
)

// Users lists the users the nightly precompute visits
type Users interface {
	ActiveUserIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Streaks refreshes a user's streak state
type Streaks interface {
	Refresh(ctx context.Context, userID uuid.UUID) (tracker.Summary, error)
}

// Content fills and trims the content cache
type Content interface {
	PrecomputeUser(ctx context.Context, userID uuid.UUID, in content.PrecomputeInput) content.Report
	Prune(ctx context.Context) (int64, error)
}

// Deps are the services the task handlers call
type Deps struct {
	Users    Users
	Streaks  Streaks
	Content  Content
	Enqueuer tracker.Enqueuer
}

// NewServeMux registers every task handler
func NewServeMux(deps Deps, logger *zap.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypePrecomputeAll, handlePrecomputeAll(logger, deps.Users, deps.Enqueuer))
	mux.HandleFunc(TypePrecomputeUser, handlePrecomputeUser(logger, deps.Streaks, deps.Content))
	mux.HandleFunc(TypePrune, handlePrune(logger, deps.Content))
	return mux
}

// Run starts the worker server and blocks until a shutdown signal.
// Use this for standalone worker mode.
func Run(redisURL string, mux *asynq.ServeMux, logger *zap.Logger) error {
	srv, err := newServer(redisURL, logger)
	if err != nil {
		return err
	}
	return srv.Run(mux)
}

// Start starts the worker in non-blocking mode and returns a stop function.
// Use this for embedded mode so the caller can coordinate shutdown.
func Start(redisURL string, mux *asynq.ServeMux, logger *zap.Logger) (stop func(), err error) {
	srv, err := newServer(redisURL, logger)
	if err != nil {
		return nil, err
	}
	if err := srv.Start(mux); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}
	return srv.Shutdown, nil
}

func newServer(redisURL string, logger *zap.Logger) (*asynq.Server, error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency:     5,
			ShutdownTimeout: 30 * time.Second,
			ErrorHandler:    asynq.ErrorHandlerFunc(makeErrorHandler(logger)),
			Logger:          newAsynqLogger(logger),
		},
	)

	logger.Info("worker_starting", zap.Int("concurrency", 5))
	return srv, nil
}

// handlePrecomputeAll fans out one per-user task for every user with an
// active routine.
func handlePrecomputeAll(logger *zap.Logger, users Users, enqueuer tracker.Enqueuer) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		ids, err := users.ActiveUserIDs(ctx)
		if err != nil {
			return fmt.Errorf("list active users: %w", err)
		}

		var failed int
		for _, id := range ids {
			if err := enqueuer.EnqueuePrecompute(ctx, id); err != nil {
				failed++
				logger.Warn("precompute_enqueue_failed", zap.String("user_id", id.String()), zap.Error(err))
			}
		}

		logger.Info("precompute_fanout_done", zap.Int("users", len(ids)), zap.Int("failed", failed))
		if failed > 0 && failed == len(ids) {
			return fmt.Errorf("failed to enqueue any of %d users", failed)
		}
		return nil
	}
}

// handlePrecomputeUser refreshes the user's streaks then fills the cache
// from them.
func handlePrecomputeUser(logger *zap.Logger, streaks Streaks, svc Content) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		userID, err := parseUserPayload(task)
		if err != nil {
			return err
		}

		summary, err := streaks.Refresh(ctx, userID)
		if err != nil {
			return fmt.Errorf("refresh streaks: %w", err)
		}

		report := svc.PrecomputeUser(ctx, userID, summary.PrecomputeInput())
		logger.Info("precompute_task_done",
			zap.String("user_id", userID.String()),
			zap.Int("gold_streak", summary.Current),
			zap.Int("intentions", report.Intentions),
			zap.Int("celebrations", report.Celebrations),
			zap.Int("failed", report.Failed),
		)
		return nil
	}
}

func handlePrune(logger *zap.Logger, svc Content) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		n, err := svc.Prune(ctx)
		if err != nil {
			return fmt.Errorf("prune content: %w", err)
		}
		logger.Info("content_pruned", zap.Int64("rows", n))
		return nil
	}
}

// makeErrorHandler logs failed tasks and flags the last retry.
func makeErrorHandler(logger *zap.Logger) func(context.Context, *asynq.Task, error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)

		logger.Error("task_failed",
			zap.String("task_type", task.Type()),
			zap.Int("retry_count", retried),
			zap.Int("max_retry", maxRetry),
			zap.Error(err),
		)

		if retried >= maxRetry {
			logger.Error("task_archived",
				zap.String("task_type", task.Type()),
				zap.ByteString("payload", task.Payload()),
			)
		}
	}
}
