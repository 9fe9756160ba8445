// Package tracker manages routines, daily completions, goals and profiles,
// and keeps the stored gold streak counters current.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jimdaga/goldstreak/internal/content"
	"github.com/jimdaga/goldstreak/internal/models"
	"github.com/jimdaga/goldstreak/internal/store"
	"github.com/jimdaga/goldstreak/internal/streak"
	"go.uber.org/zap"
)

// ErrInvalidInput marks caller input errors
var ErrInvalidInput = errors.New("invalid input")

// Repository is the routine persistence the tracker needs
type Repository interface {
	CreateRoutine(ctx context.Context, r *models.Routine) error
	ListRoutines(ctx context.Context, userID uuid.UUID, includeInactive bool) ([]models.Routine, error)
	GetRoutine(ctx context.Context, userID uuid.UUID, id uint) (*models.Routine, error)
	UpdateRoutine(ctx context.Context, r *models.Routine) error
	UpsertCompletion(ctx context.Context, c *models.DailyCompletion) error
	Completions(ctx context.Context, routineIDs []uint, since time.Time) ([]models.DailyCompletion, error)
	Counters(ctx context.Context, userID uuid.UUID) (models.StreakCounters, error)
	SaveCounters(ctx context.Context, c *models.StreakCounters) error
}

// Profiles is the profile and goal persistence the tracker needs
type Profiles interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	UpsertProfile(ctx context.Context, p *models.Profile) error
	ListGoals(ctx context.Context, userID uuid.UUID) ([]models.Goal, error)
	CreateGoal(ctx context.Context, g *models.Goal) error
	DeleteGoal(ctx context.Context, userID uuid.UUID, id uint) error
}

// Enqueuer schedules background precompute for a user
type Enqueuer interface {
	EnqueuePrecompute(ctx context.Context, userID uuid.UUID) error
}

// Summary is a user's streak state
type Summary struct {
	Current   int                   `json:"current"`
	Best      int                   `json:"best"`
	Truncated bool                  `json:"truncated,omitempty"`
	Habits    []content.HabitStreak `json:"habits"`
}

// Service implements the tracker operations
type Service struct {
	repo     Repository
	profiles Profiles
	enqueuer Enqueuer
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a Service. enqueuer may be nil.
func NewService(repo Repository, profiles Profiles, enqueuer Enqueuer, logger *zap.Logger) *Service {
	return &Service{repo: repo, profiles: profiles, enqueuer: enqueuer, logger: logger, now: time.Now}
}

// NewRoutine is the input for CreateRoutine
type NewRoutine struct {
	Name         string
	Recurrence   string
	TimesPerWeek int
	// CreatedOn backdates the routine; zero means today
	CreatedOn time.Time
}

// CreateRoutine validates and stores a routine
func (s *Service) CreateRoutine(ctx context.Context, userID uuid.UUID, in NewRoutine) (*models.Routine, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if in.Recurrence == "" {
		in.Recurrence = string(streak.RuleDaily)
	}
	rule, err := streak.ParseRule(in.Recurrence)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if rule == streak.RuleTimesPerWeek && (in.TimesPerWeek < 1 || in.TimesPerWeek > 7) {
		return nil, fmt.Errorf("%w: times_per_week must be between 1 and 7", ErrInvalidInput)
	}
	if rule != streak.RuleTimesPerWeek {
		in.TimesPerWeek = 0
	}

	today := streak.Day(s.now())
	created := today
	if !in.CreatedOn.IsZero() {
		created = streak.Day(in.CreatedOn)
		if created.After(today) {
			return nil, fmt.Errorf("%w: created_on is in the future", ErrInvalidInput)
		}
	}

	r := &models.Routine{
		UserID:       userID,
		Name:         name,
		Recurrence:   string(rule),
		TimesPerWeek: in.TimesPerWeek,
		CreatedOn:    created,
	}
	if err := s.repo.CreateRoutine(ctx, r); err != nil {
		return nil, err
	}
	s.logger.Info("routine_created", zap.String("user_id", userID.String()), zap.Uint("routine_id", r.ID))
	return r, nil
}

// ListRoutines returns the user's routines
func (s *Service) ListRoutines(ctx context.Context, userID uuid.UUID, includeInactive bool) ([]models.Routine, error) {
	return s.repo.ListRoutines(ctx, userID, includeInactive)
}

// RoutinePatch carries the mutable routine fields; nil leaves a field unchanged
type RoutinePatch struct {
	Name          *string
	DeactivatedOn *time.Time
}

// UpdateRoutine renames or deactivates a routine. A deactivation date cannot
// precede the creation date and cannot be moved once set.
func (s *Service) UpdateRoutine(ctx context.Context, userID uuid.UUID, id uint, patch RoutinePatch) (*models.Routine, error) {
	r, err := s.repo.GetRoutine(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
		}
		r.Name = name
	}
	if patch.DeactivatedOn != nil {
		if r.DeactivatedOn != nil {
			return nil, fmt.Errorf("%w: routine is already deactivated", ErrInvalidInput)
		}
		day := streak.Day(*patch.DeactivatedOn)
		if day.Before(streak.Day(r.CreatedOn)) {
			return nil, fmt.Errorf("%w: deactivated_on precedes created_on", ErrInvalidInput)
		}
		r.DeactivatedOn = &day
	}

	if err := s.repo.UpdateRoutine(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// SetCompletion records a routine's state on a date; the last write wins.
// A precompute is queued afterwards so the next celebration is ready.
func (s *Service) SetCompletion(ctx context.Context, userID uuid.UUID, routineID uint, date time.Time, done bool, notes string) (*models.DailyCompletion, error) {
	r, err := s.repo.GetRoutine(ctx, userID, routineID)
	if err != nil {
		return nil, err
	}

	day := streak.Day(date)
	// one day of slack for users ahead of UTC
	if day.After(streak.Day(s.now()).AddDate(0, 0, 1)) {
		return nil, fmt.Errorf("%w: date is in the future", ErrInvalidInput)
	}
	if !r.Window().ActiveOn(day) {
		return nil, fmt.Errorf("%w: routine is not active on %s", ErrInvalidInput, day.Format(streak.DayLayout))
	}

	c := &models.DailyCompletion{RoutineID: r.ID, Date: day, Done: done, Notes: notes}
	if err := s.repo.UpsertCompletion(ctx, c); err != nil {
		return nil, err
	}

	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueuePrecompute(ctx, userID); err != nil {
			s.logger.Warn("precompute_enqueue_failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}
	return c, nil
}

// Completions lists a routine's completion rows on or after since
func (s *Service) Completions(ctx context.Context, userID uuid.UUID, routineID uint, since time.Time) ([]models.DailyCompletion, error) {
	r, err := s.repo.GetRoutine(ctx, userID, routineID)
	if err != nil {
		return nil, err
	}
	return s.repo.Completions(ctx, []uint{r.ID}, streak.Day(since))
}

// Refresh recomputes the user's gold streak and per-routine streaks and
// stores the counters. Today counts with grace: an unfinished today does not
// reset the current streak.
func (s *Service) Refresh(ctx context.Context, userID uuid.UUID) (Summary, error) {
	today := streak.Day(s.now())

	routines, err := s.repo.ListRoutines(ctx, userID, true)
	if err != nil {
		return Summary{}, err
	}
	ids := make([]uint, 0, len(routines))
	views := make([]streak.Routine, 0, len(routines))
	for _, r := range routines {
		ids = append(ids, r.ID)
		views = append(views, r.StreakRoutine())
	}

	rows, err := s.repo.Completions(ctx, ids, today.AddDate(0, 0, -streak.MaxLookback-1))
	if err != nil {
		return Summary{}, err
	}
	done := make(map[uint]map[time.Time]bool, len(routines))
	for _, row := range rows {
		if !row.Done {
			continue
		}
		if done[row.RoutineID] == nil {
			done[row.RoutineID] = make(map[time.Time]bool)
		}
		done[row.RoutineID][streak.Day(row.Date)] = true
	}
	isDone := func(id uint, day time.Time) bool { return done[id][day] }

	gold := streak.Current(func(from time.Time) streak.Result {
		return streak.Gold(views, from, isDone)
	}, today)

	counters, err := s.repo.Counters(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	counters.UserID = userID
	counters.Bump(gold.Days)
	if err := s.repo.SaveCounters(ctx, &counters); err != nil {
		return Summary{}, err
	}

	summary := Summary{
		Current:   counters.Current,
		Best:      counters.Best,
		Truncated: gold.Truncated,
		Habits:    []content.HabitStreak{},
	}
	for i, r := range routines {
		if !r.Window().ActiveOn(today) {
			continue
		}
		view := views[i]
		res := streak.Current(func(from time.Time) streak.Result {
			return streak.Habit(view, from, func(day time.Time) bool { return isDone(view.ID, day) })
		}, today)
		summary.Habits = append(summary.Habits, content.HabitStreak{ID: r.ID, Title: r.Name, Streak: res.Days})
	}
	return summary, nil
}

// PrecomputeInput turns a summary into the input for a full precompute
func (s Summary) PrecomputeInput() content.PrecomputeInput {
	return content.PrecomputeInput{GoldStreak: s.Current, Habits: s.Habits, CheckCelebrations: true}
}

// Profile returns the user's profile, or an empty one if none is stored
func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return &models.Profile{UserID: userID, Timezone: "UTC"}, nil
	}
	return p, err
}

// ProfileInput is the editable part of a profile
type ProfileInput struct {
	DisplayName string
	CoreBelief  string
	AIVoice     string
	Timezone    string
}

// UpdateProfile stores the editable profile fields
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, in ProfileInput) (*models.Profile, error) {
	tz := in.Timezone
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidInput, tz)
	}
	p := &models.Profile{
		UserID:      userID,
		DisplayName: strings.TrimSpace(in.DisplayName),
		CoreBelief:  strings.TrimSpace(in.CoreBelief),
		AIVoice:     strings.TrimSpace(in.AIVoice),
		Timezone:    tz,
	}
	if err := s.profiles.UpsertProfile(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Goals lists the user's goals
func (s *Service) Goals(ctx context.Context, userID uuid.UUID) ([]models.Goal, error) {
	return s.profiles.ListGoals(ctx, userID)
}

// CreateGoal stores a goal
func (s *Service) CreateGoal(ctx context.Context, userID uuid.UUID, title, description string) (*models.Goal, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	g := &models.Goal{UserID: userID, Title: title, Description: strings.TrimSpace(description)}
	if err := s.profiles.CreateGoal(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// DeleteGoal removes a goal
func (s *Service) DeleteGoal(ctx context.Context, userID uuid.UUID, id uint) error {
	return s.profiles.DeleteGoal(ctx, userID, id)
}
