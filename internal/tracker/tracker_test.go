package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jimdaga/goldstreak/internal/models"
	"github.com/jimdaga/goldstreak/internal/store"
	"github.com/jimdaga/goldstreak/internal/streak"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRepo struct {
	routines    []*models.Routine
	completions map[uint]map[time.Time]*models.DailyCompletion
	counters    map[uuid.UUID]models.StreakCounters
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		completions: map[uint]map[time.Time]*models.DailyCompletion{},
		counters:    map[uuid.UUID]models.StreakCounters{},
	}
}

func (f *fakeRepo) CreateRoutine(_ context.Context, r *models.Routine) error {
	r.ID = uint(len(f.routines) + 1)
	f.routines = append(f.routines, r)
	return nil
}

func (f *fakeRepo) ListRoutines(_ context.Context, userID uuid.UUID, includeInactive bool) ([]models.Routine, error) {
	var out []models.Routine
	for _, r := range f.routines {
		if r.UserID == userID && (includeInactive || r.DeactivatedOn == nil) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetRoutine(_ context.Context, userID uuid.UUID, id uint) (*models.Routine, error) {
	for _, r := range f.routines {
		if r.ID == id && r.UserID == userID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeRepo) UpdateRoutine(_ context.Context, r *models.Routine) error {
	for i, existing := range f.routines {
		if existing.ID == r.ID {
			cp := *r
			f.routines[i] = &cp
		}
	}
	return nil
}

func (f *fakeRepo) UpsertCompletion(_ context.Context, c *models.DailyCompletion) error {
	if f.completions[c.RoutineID] == nil {
		f.completions[c.RoutineID] = map[time.Time]*models.DailyCompletion{}
	}
	cp := *c
	f.completions[c.RoutineID][c.Date] = &cp
	return nil
}

func (f *fakeRepo) Completions(_ context.Context, ids []uint, since time.Time) ([]models.DailyCompletion, error) {
	var out []models.DailyCompletion
	for _, id := range ids {
		for day, c := range f.completions[id] {
			if !day.Before(since) {
				out = append(out, *c)
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) Counters(_ context.Context, userID uuid.UUID) (models.StreakCounters, error) {
	c := f.counters[userID]
	c.UserID = userID
	return c, nil
}

func (f *fakeRepo) SaveCounters(_ context.Context, c *models.StreakCounters) error {
	prev := f.counters[c.UserID]
	if prev.Best > c.Best {
		c.Best = prev.Best
	}
	f.counters[c.UserID] = *c
	return nil
}

type fakeProfiles struct {
	profile *models.Profile
}

func (f *fakeProfiles) GetProfile(context.Context, uuid.UUID) (*models.Profile, error) {
	if f.profile == nil {
		return nil, store.ErrNotFound
	}
	return f.profile, nil
}

func (f *fakeProfiles) UpsertProfile(_ context.Context, p *models.Profile) error {
	f.profile = p
	return nil
}

func (f *fakeProfiles) ListGoals(context.Context, uuid.UUID) ([]models.Goal, error) { return nil, nil }
func (f *fakeProfiles) CreateGoal(context.Context, *models.Goal) error               { return nil }
func (f *fakeProfiles) DeleteGoal(context.Context, uuid.UUID, uint) error            { return nil }

type countingEnqueuer struct{ users []uuid.UUID }

func (c *countingEnqueuer) EnqueuePrecompute(_ context.Context, userID uuid.UUID) error {
	c.users = append(c.users, userID)
	return nil
}

var today = time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC)

func newService(repo *fakeRepo, enq Enqueuer) *Service {
	svc := NewService(repo, &fakeProfiles{}, enq, zap.NewNop())
	svc.now = func() time.Time { return today }
	return svc
}

func markDone(t *testing.T, svc *Service, userID uuid.UUID, routineID uint, days ...int) {
	t.Helper()
	for _, d := range days {
		_, err := svc.SetCompletion(context.Background(), userID, routineID, today.AddDate(0, 0, -d), true, "")
		require.NoError(t, err)
	}
}

func TestRefreshAppliesGraceForToday(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, nil)
	userID := uuid.New()
	ctx := context.Background()

	r, err := svc.CreateRoutine(ctx, userID, NewRoutine{Name: "Read", CreatedOn: today.AddDate(0, 0, -5)})
	require.NoError(t, err)
	markDone(t, svc, userID, r.ID, 5, 4, 3, 2, 1)

	summary, err := svc.Refresh(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Current)
	assert.Equal(t, 5, summary.Best)
	require.Len(t, summary.Habits, 1)
	assert.Equal(t, 5, summary.Habits[0].Streak)
	assert.Equal(t, "Read", summary.Habits[0].Title)

	markDone(t, svc, userID, r.ID, 0)
	summary, err = svc.Refresh(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Current)
}

func TestRefreshKeepsBestAfterBreak(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, nil)
	userID := uuid.New()
	ctx := context.Background()
	repo.counters[userID] = models.StreakCounters{UserID: userID, Current: 9, Best: 9}

	r, err := svc.CreateRoutine(ctx, userID, NewRoutine{Name: "Run", CreatedOn: today.AddDate(0, 0, -10)})
	require.NoError(t, err)
	markDone(t, svc, userID, r.ID, 10, 9, 8)

	summary, err := svc.Refresh(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Current)
	assert.Equal(t, 9, summary.Best)
	assert.Equal(t, 0, repo.counters[userID].Current)
}

func TestRefreshGoldNeedsEveryRoutine(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, nil)
	userID := uuid.New()
	ctx := context.Background()

	a, err := svc.CreateRoutine(ctx, userID, NewRoutine{Name: "A", CreatedOn: today.AddDate(0, 0, -3)})
	require.NoError(t, err)
	b, err := svc.CreateRoutine(ctx, userID, NewRoutine{Name: "B", CreatedOn: today.AddDate(0, 0, -3)})
	require.NoError(t, err)
	markDone(t, svc, userID, a.ID, 3, 2, 1)
	markDone(t, svc, userID, b.ID, 1)

	summary, err := svc.Refresh(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Current)
	assert.Equal(t, 3, summary.Habits[0].Streak)
	assert.Equal(t, 1, summary.Habits[1].Streak)
}

func TestRefreshTimesPerWeekHabit(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, nil)
	userID := uuid.New()
	ctx := context.Background()

	// today is Friday 2024-03-15; the routine starts Monday 2024-03-04
	r, err := svc.CreateRoutine(ctx, userID, NewRoutine{
		Name: "Swim", Recurrence: "times_per_week", TimesPerWeek: 2, CreatedOn: today.AddDate(0, 0, -11),
	})
	require.NoError(t, err)
	markDone(t, svc, userID, r.ID, 11, 9, 4, 2)

	summary, err := svc.Refresh(ctx, userID)
	require.NoError(t, err)
	require.Len(t, summary.Habits, 1)
	assert.Equal(t, 12, summary.Habits[0].Streak)
	// never due on a given day, so it neither builds nor breaks the gold streak
	assert.Equal(t, 0, summary.Current)
}

func TestRefreshOmitsDeactivatedHabits(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, nil)
	userID := uuid.New()
	ctx := context.Background()

	r, err := svc.CreateRoutine(ctx, userID, NewRoutine{Name: "Old", CreatedOn: today.AddDate(0, 0, -5)})
	require.NoError(t, err)
	markDone(t, svc, userID, r.ID, 5, 4, 3)
	off := today.AddDate(0, 0, -2)
	_, err = svc.UpdateRoutine(ctx, userID, r.ID, RoutinePatch{DeactivatedOn: &off})
	require.NoError(t, err)

	summary, err := svc.Refresh(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, summary.Habits)
	assert.NotNil(t, summary.Habits)
}

func TestCreateRoutineValidation(t *testing.T) {
	svc := newService(newFakeRepo(), nil)
	ctx := context.Background()
	userID := uuid.New()

	cases := []NewRoutine{
		{Name: "  "},
		{Name: "x", Recurrence: "hourly"},
		{Name: "x", Recurrence: "times_per_week"},
		{Name: "x", Recurrence: "times_per_week", TimesPerWeek: 8},
		{Name: "x", CreatedOn: today.AddDate(0, 0, 1)},
	}
	for _, in := range cases {
		_, err := svc.CreateRoutine(ctx, userID, in)
		assert.ErrorIs(t, err, ErrInvalidInput, "%+v", in)
	}

	r, err := svc.CreateRoutine(ctx, userID, NewRoutine{Name: " Stretch ", Recurrence: "weekly", TimesPerWeek: 3})
	require.NoError(t, err)
	assert.Equal(t, "Stretch", r.Name)
	assert.Equal(t, "weekly", r.Recurrence)
	assert.Zero(t, r.TimesPerWeek)
	assert.Equal(t, streak.Day(today), r.CreatedOn)
}

func TestSetCompletion(t *testing.T) {
	repo := newFakeRepo()
	enq := &countingEnqueuer{}
	svc := newService(repo, enq)
	ctx := context.Background()
	userID := uuid.New()

	r, err := svc.CreateRoutine(ctx, userID, NewRoutine{Name: "Read", CreatedOn: today.AddDate(0, 0, -2)})
	require.NoError(t, err)

	_, err = svc.SetCompletion(ctx, userID, r.ID, today, true, "20 pages")
	require.NoError(t, err)
	_, err = svc.SetCompletion(ctx, userID, r.ID, today, false, "changed my mind")
	require.NoError(t, err)

	rows, err := svc.Completions(ctx, userID, r.ID, today.AddDate(0, 0, -7))
	require.NoError(t, err)
	require.Len(t, rows, 1, "one row per routine per date")
	assert.False(t, rows[0].Done)
	assert.Equal(t, "changed my mind", rows[0].Notes)
	assert.Len(t, enq.users, 2)

	_, err = svc.SetCompletion(ctx, userID, r.ID, today.AddDate(0, 0, -3), true, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.SetCompletion(ctx, userID, r.ID, today.AddDate(0, 0, 3), true, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.SetCompletion(ctx, uuid.New(), r.ID, today, true, "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateRoutine(t *testing.T) {
	svc := newService(newFakeRepo(), nil)
	ctx := context.Background()
	userID := uuid.New()

	r, err := svc.CreateRoutine(ctx, userID, NewRoutine{Name: "Read", CreatedOn: today.AddDate(0, 0, -2)})
	require.NoError(t, err)

	name := "Read 30 pages"
	updated, err := svc.UpdateRoutine(ctx, userID, r.ID, RoutinePatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)

	early := today.AddDate(0, 0, -5)
	_, err = svc.UpdateRoutine(ctx, userID, r.ID, RoutinePatch{DeactivatedOn: &early})
	assert.ErrorIs(t, err, ErrInvalidInput)

	off := today
	_, err = svc.UpdateRoutine(ctx, userID, r.ID, RoutinePatch{DeactivatedOn: &off})
	require.NoError(t, err)
	_, err = svc.UpdateRoutine(ctx, userID, r.ID, RoutinePatch{DeactivatedOn: &off})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestProfileDefaultsAndValidation(t *testing.T) {
	svc := newService(newFakeRepo(), nil)
	ctx := context.Background()
	userID := uuid.New()

	p, err := svc.Profile(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, userID, p.UserID)
	assert.Equal(t, "UTC", p.Timezone)

	_, err = svc.UpdateProfile(ctx, userID, ProfileInput{Timezone: "Mars/Olympus"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	p, err = svc.UpdateProfile(ctx, userID, ProfileInput{DisplayName: "Sam", CoreBelief: "Keep going"})
	require.NoError(t, err)
	assert.Equal(t, "UTC", p.Timezone)
}

func TestCreateGoalRequiresTitle(t *testing.T) {
	svc := newService(newFakeRepo(), nil)

	_, err := svc.CreateGoal(context.Background(), uuid.New(), " ", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
