package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jimdaga/goldstreak/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Discard,
	})
	require.NoError(t, err)
	return db, mock
}

func TestMarkConsumedReportsWinner(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewContentStore(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "cached_contents" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "cached_contents" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	won, err := s.MarkConsumed(context.Background(), 5, time.Now())
	require.NoError(t, err)
	assert.True(t, won)

	won, err = s.MarkConsumed(context.Background(), 5, time.Now())
	require.NoError(t, err)
	assert.False(t, won, "second consumer must lose")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOldestUnconsumedNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewContentStore(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "cached_contents"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.OldestUnconsumed(context.Background(), models.ContentKey{
		UserID: uuid.New(), Type: models.ContentTypeGoldStreak, StreakDays: 7,
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteConsumedBefore(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewContentStore(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "cached_contents"`)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.DeleteConsumedBefore(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetVoteWithoutIntention(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewIntentionStore(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "daily_intentions" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.SetVote(context.Background(), uuid.New(), time.Now(), models.VoteUp)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountersDefaultToZero(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewRoutineStore(db)
	userID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "streak_counters"`)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "current", "best"}))

	c, err := s.Counters(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, userID, c.UserID)
	assert.Zero(t, c.Current)
	assert.Zero(t, c.Best)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantIsIdempotent(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewBadgeStore(db)
	userID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "user_badges"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "user_badges"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	created, err := s.Grant(context.Background(), userID, 2, time.Now())
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Grant(context.Background(), userID, 2, time.Now())
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompletionsSkipsEmptyRoutineList(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewRoutineStore(db)

	rows, err := s.Completions(context.Background(), nil, time.Now())
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
