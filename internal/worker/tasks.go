package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TypePrecomputeAll  = "precompute:all"
	TypePrecomputeUser = "precompute:user"
	TypePrune          = "content:prune"
)

// precomputeDebounce collapses bursts of completion toggles into one task
const precomputeDebounce = 2 * time.Minute

type userPayload struct {
	UserID uuid.UUID `json:"user_id"`
}

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Client enqueues background tasks
type Client struct {
	enqueuer taskEnqueuer
	closer   func() error
}

// NewClient connects a task client to the Redis at redisURL
func NewClient(redisURL string) (*Client, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	c := asynq.NewClient(opt)
	return &Client{enqueuer: c, closer: c.Close}, nil
}

// Close closes the connection gracefully
func (c *Client) Close() error {
	if c.closer != nil {
		return c.closer()
	}
	return nil
}

// NewPrecomputeUserTask builds the per-user precompute task
func NewPrecomputeUserTask(userID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(userPayload{UserID: userID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TypePrecomputeUser,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
		asynq.Retention(24*time.Hour),
	), nil
}

// EnqueuePrecompute schedules a precompute for one user after the debounce
// window. Calls made while that task is still waiting fold into it.
func (c *Client) EnqueuePrecompute(ctx context.Context, userID uuid.UUID) error {
	task, err := NewPrecomputeUserTask(userID)
	if err != nil {
		return err
	}
	_, err = c.enqueuer.EnqueueContext(ctx, task,
		asynq.ProcessIn(precomputeDebounce),
		asynq.Unique(precomputeDebounce),
	)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

func parseUserPayload(task *asynq.Task) (uuid.UUID, error) {
	var p userPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return uuid.Nil, fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
	}
	if p.UserID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("payload missing user_id: %w", asynq.SkipRetry)
	}
	return p.UserID, nil
}
