package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jimdaga/goldstreak/internal/auth"
	"github.com/jimdaga/goldstreak/internal/content"
	"github.com/jimdaga/goldstreak/internal/models"
	"github.com/jimdaga/goldstreak/internal/prompts"
	"github.com/jimdaga/goldstreak/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testUser = uuid.MustParse("2b7e1516-28ae-4d2a-a6f7-15880ab2b7e1")

type fakeContent struct {
	getReq     content.Request
	getErr     error
	intention  *models.DailyIntention
	intErr     error
	force      bool
	voteErr    error
	precompute content.PrecomputeInput
	chatIn     content.ChatInput
	chatErr    error
	onboardErr error
}

func (f *fakeContent) Get(_ context.Context, req content.Request) (string, error) {
	f.getReq = req
	if f.getErr != nil {
		return "", f.getErr
	}
	return fmt.Sprintf("%d days strong", req.StreakDays), nil
}

func (f *fakeContent) DailyQuestion(context.Context, uuid.UUID) string {
	return "What will you protect today?"
}

func (f *fakeContent) Intention(_ context.Context, userID uuid.UUID, date time.Time, force bool) (*models.DailyIntention, error) {
	f.force = force
	if f.intErr != nil {
		return nil, f.intErr
	}
	if f.intention != nil {
		return f.intention, nil
	}
	return &models.DailyIntention{UserID: userID, Date: date, Text: "Show up"}, nil
}

func (f *fakeContent) Vote(context.Context, uuid.UUID, time.Time, string) error { return f.voteErr }

func (f *fakeContent) PrecomputeUser(_ context.Context, _ uuid.UUID, in content.PrecomputeInput) content.Report {
	f.precompute = in
	return content.Report{Intentions: 3, Celebrations: 1}
}

func (f *fakeContent) Chat(_ context.Context, _ uuid.UUID, in content.ChatInput) (string, error) {
	f.chatIn = in
	if f.chatErr != nil {
		return "", f.chatErr
	}
	return "Keep going.", nil
}

func (f *fakeContent) Onboarding(context.Context, uuid.UUID, content.OnboardingInput) (*prompts.Onboarding, error) {
	if f.onboardErr != nil {
		return nil, f.onboardErr
	}
	return &prompts.Onboarding{
		KeyTruth: "Consistency beats intensity",
		Goals:    []string{"a", "b", "c", "d"},
		AIVoice:  "warm and direct",
	}, nil
}

type fakeBadges struct {
	awarded []models.Badge
	err     error
}

func (f *fakeBadges) Check(context.Context, uuid.UUID) ([]models.Badge, error) {
	return f.awarded, f.err
}

func (f *fakeBadges) Owned(context.Context, uuid.UUID) ([]models.UserBadge, error) {
	return []models.UserBadge{{
		Badge:      models.Badge{Slug: "gold_7", Name: "Week of Gold", Threshold: 7, Category: models.BadgeCategoryGold},
		UnlockedAt: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
	}}, nil
}

func newTestRouter(svc Services) *gin.Engine {
	return NewRouter(RouterConfig{
		Logger: zap.NewNop(),
		Auth: func(c *gin.Context) {
			auth.SetUser(c, &auth.User{ID: testUser})
			c.Next()
		},
	}, svc)
}

func do(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestUnauthorized(t *testing.T) {
	verifier := auth.NewVerifier(auth.Config{JWTSecret: "test-secret"}, zap.NewNop())
	r := NewRouter(RouterConfig{Logger: zap.NewNop(), Auth: verifier.RequireAuth()}, Services{Content: &fakeContent{}})

	w := do(r, http.MethodGet, "/api/daily-question", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())

	w = do(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCelebration(t *testing.T) {
	fc := &fakeContent{}
	r := newTestRouter(Services{Content: fc})

	w := do(r, http.MethodPost, "/api/celebration", map[string]interface{}{"type": "gold_streak", "streak_days": 7})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "7 days strong", decode(t, w)["message"])
	assert.Equal(t, testUser, fc.getReq.UserID)
	assert.Nil(t, fc.getReq.SubEntityID)

	w = do(r, http.MethodPost, "/api/celebration", map[string]interface{}{
		"type": "habit_streak", "streak_days": 21, "habit_id": 4, "habit_title": "Read",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, fc.getReq.SubEntityID)
	assert.Equal(t, uint(4), *fc.getReq.SubEntityID)
	assert.Equal(t, "Read", fc.getReq.HabitTitle)
}

func TestCelebrationRejectsBadInput(t *testing.T) {
	r := newTestRouter(Services{Content: &fakeContent{}})

	cases := []interface{}{
		`{`,
		map[string]interface{}{"streak_days": 7},
		map[string]interface{}{"type": "gold_streak"},
		map[string]interface{}{"type": "confetti", "streak_days": 7},
		map[string]interface{}{"type": "habit_streak", "streak_days": 7},
	}
	for i, body := range cases {
		w := do(r, http.MethodPost, "/api/celebration", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "case %d", i)
	}
}

func TestCelebrationGenerationFailureIs500(t *testing.T) {
	r := newTestRouter(Services{Content: &fakeContent{getErr: errors.New("generate gold_streak: upstream timeout")}})

	w := do(r, http.MethodPost, "/api/celebration", map[string]interface{}{"type": "gold_streak", "streak_days": 30})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decode(t, w)["error"], "upstream timeout")
}

func TestDailyQuestion(t *testing.T) {
	r := newTestRouter(Services{Content: &fakeContent{}})
	w := do(r, http.MethodGet, "/api/daily-question", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "What will you protect today?", decode(t, w)["question"])
}

func TestGetIntention(t *testing.T) {
	fc := &fakeContent{}
	r := newTestRouter(Services{Content: fc})

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/intention", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/intention?date=03/10/2024", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/intention?date=2024-03-10&force=maybe", nil).Code)

	w := do(r, http.MethodGet, "/api/intention?date=2024-03-10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Show up", decode(t, w)["text"])
	assert.False(t, fc.force)

	w = do(r, http.MethodGet, "/api/intention?date=2024-03-10&force=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, fc.force)
}

func TestGetIntentionPersistenceFailureIs500(t *testing.T) {
	r := newTestRouter(Services{Content: &fakeContent{intErr: errors.New("insert intention: connection reset")}})

	w := do(r, http.MethodGet, "/api/intention?date=2024-03-10", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decode(t, w)["error"], "connection reset")
}

func TestVoteIntention(t *testing.T) {
	fc := &fakeContent{}
	r := newTestRouter(Services{Content: fc})

	w := do(r, http.MethodPost, "/api/intention", map[string]string{"date": "2024-03-10", "vote": "up"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	w = do(r, http.MethodPost, "/api/intention", map[string]string{"date": "2024-03-10", "vote": "sideways"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/intention", map[string]string{"vote": "up"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	fc.voteErr = store.ErrNotFound
	w = do(r, http.MethodPost, "/api/intention", map[string]string{"date": "2024-03-10", "vote": "down"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPrecompute(t *testing.T) {
	fc := &fakeContent{}
	r := newTestRouter(Services{Content: fc})

	w := do(r, http.MethodPost, "/api/precompute", map[string]interface{}{
		"gold_streak":   6,
		"habit_streaks": []map[string]interface{}{{"id": 2, "title": "Stretch", "streak": 13}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])
	assert.Equal(t, 6, fc.precompute.GoldStreak)
	assert.True(t, fc.precompute.CheckCelebrations)
	assert.Equal(t, []content.HabitStreak{{ID: 2, Title: "Stretch", Streak: 13}}, fc.precompute.Habits)

	w = do(r, http.MethodPost, "/api/precompute", map[string]interface{}{"gold_streak": 6, "check_celebrations": false})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, fc.precompute.CheckCelebrations)

	w = do(r, http.MethodPost, "/api/precompute", map[string]interface{}{"gold_streak": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChat(t *testing.T) {
	fc := &fakeContent{}
	r := newTestRouter(Services{Content: fc})

	w := do(r, http.MethodPost, "/api/chat", map[string]interface{}{
		"message":     "I skipped yesterday",
		"contextMode": "reflect",
		"profile":     map[string]string{"coreBelief": "Small steps", "aiVoice": "gentle"},
		"goals":       []string{"Run a 10k"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Keep going.", decode(t, w)["reply"])
	assert.Equal(t, content.ChatInput{
		Message:     "I skipped yesterday",
		ContextMode: "reflect",
		CoreBelief:  "Small steps",
		AIVoice:     "gentle",
		Goals:       []string{"Run a 10k"},
	}, fc.chatIn)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/chat", map[string]string{}).Code)

	fc.chatErr = fmt.Errorf("%w: unknown contextMode %q", content.ErrInvalidRequest, "rant")
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/chat", map[string]string{"message": "hi"}).Code)
}

func TestOnboarding(t *testing.T) {
	fc := &fakeContent{}
	r := newTestRouter(Services{Content: fc})

	w := do(r, http.MethodPost, "/api/onboarding", map[string]string{"priorities": "health", "lifeSummary": "busy parent"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Consistency beats intensity", body["keyTruth"])
	assert.Len(t, body["goals"], 4)
	assert.Equal(t, "warm and direct", body["aiVoice"])

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/onboarding", map[string]string{}).Code)

	fc.onboardErr = fmt.Errorf("%w: goals must have 4 items", content.ErrInvalidOnboarding)
	w = do(r, http.MethodPost, "/api/onboarding", map[string]string{"priorities": "health"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestBadgesCheck(t *testing.T) {
	fb := &fakeBadges{}
	r := newTestRouter(Services{Badges: fb})

	w := do(r, http.MethodPost, "/api/badges/check", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"newBadges":[]}`, w.Body.String())

	fb.awarded = []models.Badge{{ID: 2, Slug: "gold_7", Name: "Week of Gold", Threshold: 7, Category: "gold"}}
	w = do(r, http.MethodPost, "/api/badges/check", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t,
		`{"newBadges":[{"slug":"gold_7","name":"Week of Gold","description":"","threshold":7,"category":"gold"}]}`,
		w.Body.String())

	fb.err = errors.New("db down")
	assert.Equal(t, http.StatusInternalServerError, do(r, http.MethodPost, "/api/badges/check", nil).Code)
}

func TestListBadges(t *testing.T) {
	r := newTestRouter(Services{Badges: &fakeBadges{}})

	w := do(r, http.MethodGet, "/api/badges", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t,
		`{"badges":[{"slug":"gold_7","name":"Week of Gold","description":"","threshold":7,"category":"gold","unlocked_at":"2024-03-01T08:00:00Z"}]}`,
		w.Body.String())
}
