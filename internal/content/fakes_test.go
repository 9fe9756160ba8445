package content

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jimdaga/goldstreak/internal/locks"
	"github.com/jimdaga/goldstreak/internal/models"
	"github.com/jimdaga/goldstreak/internal/prompts"
	"github.com/jimdaga/goldstreak/internal/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCache struct {
	mu     sync.Mutex
	rows   []*models.CachedContent
	nextID uint
	// beforeMark runs inside MarkConsumed before the compare-and-swap
	beforeMark func(id uint)
}

func sameKey(a, b Key) bool {
	if a.UserID != b.UserID || a.Type != b.Type || a.StreakDays != b.StreakDays {
		return false
	}
	if a.SubEntityID == nil || b.SubEntityID == nil {
		return a.SubEntityID == nil && b.SubEntityID == nil
	}
	return *a.SubEntityID == *b.SubEntityID
}

func (f *fakeCache) OldestUnconsumed(_ context.Context, key Key) (*models.CachedContent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if sameKey(r.Key(), key) && !r.Consumed {
			cp := *r
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeCache) Latest(_ context.Context, key Key) (*models.CachedContent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.rows) - 1; i >= 0; i-- {
		if sameKey(f.rows[i].Key(), key) {
			cp := *f.rows[i]
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeCache) MarkConsumed(_ context.Context, id uint, at time.Time) (bool, error) {
	if f.beforeMark != nil {
		f.beforeMark(id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id && !r.Consumed {
			r.Consumed = true
			r.ConsumedAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCache) HasUnconsumed(_ context.Context, key Key) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if sameKey(r.Key(), key) && !r.Consumed {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCache) Insert(_ context.Context, row *models.CachedContent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	row.ID = f.nextID
	cp := *row
	f.rows = append(f.rows, &cp)
	return nil
}

func (f *fakeCache) DeleteConsumedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []*models.CachedContent
	var n int64
	for _, r := range f.rows {
		if r.Consumed && r.ConsumedAt != nil && r.ConsumedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	f.rows = kept
	return n, nil
}

func (f *fakeCache) count(key Key) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.rows {
		if sameKey(r.Key(), key) {
			n++
		}
	}
	return n
}

type fakeIntentions struct {
	mu   sync.Mutex
	rows map[string]*models.DailyIntention
}

func intentionKey(userID uuid.UUID, date time.Time) string {
	return userID.String() + date.Format("2006-01-02")
}

func (f *fakeIntentions) Find(_ context.Context, userID uuid.UUID, date time.Time) (*models.DailyIntention, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[intentionKey(userID, date)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeIntentions) InsertIfAbsent(_ context.Context, row *models.DailyIntention) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := intentionKey(row.UserID, row.Date)
	if _, ok := f.rows[k]; ok {
		return false, nil
	}
	cp := *row
	f.rows[k] = &cp
	return true, nil
}

func (f *fakeIntentions) Replace(_ context.Context, row *models.DailyIntention) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *row
	cp.Vote = nil
	f.rows[intentionKey(row.UserID, row.Date)] = &cp
	return nil
}

func (f *fakeIntentions) SetVote(_ context.Context, userID uuid.UUID, date time.Time, vote string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[intentionKey(userID, date)]
	if !ok {
		return store.ErrNotFound
	}
	r.Vote = &vote
	return nil
}

type fakeProfiles struct {
	profile *models.Profile
	goals   []models.Goal
	saved   *models.Profile
}

func (f *fakeProfiles) GetProfile(_ context.Context, _ uuid.UUID) (*models.Profile, error) {
	if f.profile == nil {
		return nil, store.ErrNotFound
	}
	return f.profile, nil
}

func (f *fakeProfiles) ListGoals(_ context.Context, _ uuid.UUID) ([]models.Goal, error) {
	return f.goals, nil
}

func (f *fakeProfiles) SaveOnboarding(_ context.Context, p *models.Profile) error {
	f.saved = p
	return nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	reply   func(prompt string) (string, error)
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.reply == nil {
		return "generated text", nil
	}
	return f.reply(prompt)
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *fakeGenerator) promptsContaining(s string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.prompts {
		if strings.Contains(p, s) {
			n++
		}
	}
	return n
}

func failingGenerator() *fakeGenerator {
	return &fakeGenerator{reply: func(string) (string, error) { return "", errors.New("provider down") }}
}

type harness struct {
	svc        *Service
	cache      *fakeCache
	intentions *fakeIntentions
	profiles   *fakeProfiles
	gen        *fakeGenerator
	catalog    *prompts.Catalog
	userID     uuid.UUID
	now        time.Time
}

// fakeLocker grants each key to one holder at a time
type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	err      error
	released int
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]bool{}}
}

func (f *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.held[key] {
		return nil, locks.ErrNotAcquired
	}
	f.held[key] = true
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.held, key)
		f.released++
	}, nil
}

func newHarness(t *testing.T, gen *fakeGenerator, cfg Config) *harness {
	t.Helper()
	catalog, err := prompts.Load()
	require.NoError(t, err)

	h := &harness{
		cache:      &fakeCache{},
		intentions: &fakeIntentions{rows: map[string]*models.DailyIntention{}},
		profiles: &fakeProfiles{
			profile: &models.Profile{CoreBelief: "Consistency compounds", AIVoice: "warm"},
			goals:   []models.Goal{{Title: "Run a marathon"}},
		},
		gen:     gen,
		catalog: catalog,
		userID:  uuid.New(),
		now:     time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC),
	}
	h.svc = NewService(h.cache, h.intentions, h.profiles, gen, catalog, nil, zap.NewNop(), cfg)
	h.svc.now = func() time.Time { return h.now }
	return h
}
