package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jimdaga/goldstreak/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoutineStore persists routines, completions and streak counters
type RoutineStore struct {
	db *gorm.DB
}

// NewRoutineStore creates a RoutineStore
func NewRoutineStore(db *gorm.DB) *RoutineStore {
	return &RoutineStore{db: db}
}

// CreateRoutine stores a new routine
func (s *RoutineStore) CreateRoutine(ctx context.Context, r *models.Routine) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("create routine: %w", err)
	}
	return nil
}

// ListRoutines returns the user's routines. Deactivated routines are
// included when includeInactive is set.
func (s *RoutineStore) ListRoutines(ctx context.Context, userID uuid.UUID, includeInactive bool) ([]models.Routine, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if !includeInactive {
		q = q.Where("deactivated_on IS NULL")
	}
	var routines []models.Routine
	if err := q.Order("id").Find(&routines).Error; err != nil {
		return nil, fmt.Errorf("list routines: %w", err)
	}
	return routines, nil
}

// GetRoutine returns one of the user's routines
func (s *RoutineStore) GetRoutine(ctx context.Context, userID uuid.UUID, id uint) (*models.Routine, error) {
	var r models.Routine
	if err := s.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).Take(&r).Error; err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

// UpdateRoutine writes the mutable fields: name and deactivation date
func (s *RoutineStore) UpdateRoutine(ctx context.Context, r *models.Routine) error {
	err := s.db.WithContext(ctx).Model(r).
		Select("name", "deactivated_on", "updated_at").
		Updates(r).Error
	if err != nil {
		return fmt.Errorf("update routine: %w", err)
	}
	return nil
}

// UpsertCompletion writes the state of a routine on a date; last write wins
func (s *RoutineStore) UpsertCompletion(ctx context.Context, c *models.DailyCompletion) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "routine_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"done", "notes", "updated_at"}),
		}).
		Create(c).Error
	if err != nil {
		return fmt.Errorf("upsert completion: %w", err)
	}
	return nil
}

// Completions returns completion rows for the routines on or after since
func (s *RoutineStore) Completions(ctx context.Context, routineIDs []uint, since time.Time) ([]models.DailyCompletion, error) {
	if len(routineIDs) == 0 {
		return nil, nil
	}
	var rows []models.DailyCompletion
	err := s.db.WithContext(ctx).
		Where("routine_id IN ? AND date >= ?", routineIDs, since).
		Order("date").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	return rows, nil
}

// ActiveUserIDs lists users owning at least one active routine
func (s *RoutineStore) ActiveUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).Model(&models.Routine{}).
		Where("deactivated_on IS NULL").
		Distinct().
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	return ids, nil
}

// Counters returns the user's streak counters, zero when none are stored
func (s *RoutineStore) Counters(ctx context.Context, userID uuid.UUID) (models.StreakCounters, error) {
	c := models.StreakCounters{UserID: userID}
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&c).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return c, fmt.Errorf("load streak counters: %w", err)
	}
	return c, nil
}

// SaveCounters stores the counters. The stored best never decreases.
func (s *RoutineStore) SaveCounters(ctx context.Context, c *models.StreakCounters) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: []clause.Assignment{
				{Column: clause.Column{Name: "current"}, Value: gorm.Expr("excluded.current")},
				{Column: clause.Column{Name: "best"}, Value: gorm.Expr("GREATEST(streak_counters.best, excluded.best)")},
				{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
			},
		}).
		Create(c).Error
	if err != nil {
		return fmt.Errorf("save streak counters: %w", err)
	}
	return nil
}
