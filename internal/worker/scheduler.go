package worker

import (
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// SchedulerConfig holds the cron specs for periodic tasks
type SchedulerConfig struct {
	RedisURL           string
	PrecomputeSchedule string
	PruneSchedule      string
	Timezone           string
}

// periodicTasks returns the tasks registered with the scheduler, keyed by cron expression.
func periodicTasks(cfg SchedulerConfig) map[string]*asynq.Task {
	return map[string]*asynq.Task{
		cfg.PrecomputeSchedule: asynq.NewTask(
			TypePrecomputeAll,
			nil, // handler lists users itself
			asynq.MaxRetry(3),
			asynq.Timeout(10*time.Minute),
			asynq.Retention(24*time.Hour),
			asynq.Unique(time.Hour),
		),
		cfg.PruneSchedule: asynq.NewTask(
			TypePrune,
			nil,
			asynq.MaxRetry(3),
			asynq.Timeout(5*time.Minute),
			asynq.Unique(time.Hour),
		),
	}
}

// StartScheduler creates and starts an asynq Scheduler for the nightly
// precompute and prune. Returns a stop function for graceful shutdown.
func StartScheduler(cfg SchedulerConfig, logger *zap.Logger) (stop func(), err error) {
	if cfg.PrecomputeSchedule == cfg.PruneSchedule {
		return nil, fmt.Errorf("precompute and prune schedules must differ, both are %q", cfg.PruneSchedule)
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn("invalid_scheduler_timezone", zap.String("timezone", cfg.Timezone), zap.Error(err))
		location = time.UTC
	}

	scheduler := asynq.NewScheduler(
		redisOpt,
		&asynq.SchedulerOpts{
			Location: location,
			LogLevel: asynq.InfoLevel,
			Logger:   newAsynqLogger(logger),
		},
	)

	for schedule, task := range periodicTasks(cfg) {
		entryID, err := scheduler.Register(schedule, task)
		if err != nil {
			return nil, fmt.Errorf("failed to register %s schedule: %w", task.Type(), err)
		}
		logger.Info("periodic_task_registered",
			zap.String("task_type", task.Type()),
			zap.String("schedule", schedule),
			zap.String("entry_id", entryID),
		)
	}

	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	logger.Info("scheduler_started", zap.String("timezone", location.String()))
	return scheduler.Shutdown, nil
}
