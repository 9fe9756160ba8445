package content

import (
	"context"

	"github.com/google/uuid"
	"github.com/jimdaga/goldstreak/internal/milestone"
	"github.com/jimdaga/goldstreak/internal/models"
	"github.com/jimdaga/goldstreak/internal/streak"
	"go.uber.org/zap"
)

// HabitStreak is one routine's current streak
type HabitStreak struct {
	ID     uint   `json:"id"`
	Title  string `json:"title"`
	Streak int    `json:"streak"`
}

// PrecomputeInput describes the user's streaks at precompute time
type PrecomputeInput struct {
	GoldStreak        int
	Habits            []HabitStreak
	CheckCelebrations bool
}

// Report summarises a batch precompute
type Report struct {
	Intentions   int `json:"intentions"`
	Celebrations int `json:"celebrations"`
	Failed       int `json:"failed"`
}

// PrecomputeUser fills the cache ahead of use: intentions for the next
// IntentionHorizonDays days starting today and, when requested, celebrations
// for every milestone the next completed day would cross. Each item is
// best-effort; a failure is logged and the rest continue.
func (s *Service) PrecomputeUser(ctx context.Context, userID uuid.UUID, in PrecomputeInput) Report {
	var report Report
	log := s.logger.With(zap.String("user_id", userID.String()))
	today := streak.Day(s.now())

	for i := 0; i < s.cfg.IntentionHorizonDays; i++ {
		date := today.AddDate(0, 0, i)
		if _, err := s.Intention(ctx, userID, date, false); err != nil {
			report.Failed++
			log.Warn("precompute_item_failed",
				zap.String("type", "intention"),
				zap.String("date", date.Format(streak.DayLayout)),
				zap.Error(err))
			continue
		}
		report.Intentions++
	}

	var reqs []Request
	if in.CheckCelebrations {
		reqs = celebrationRequests(userID, in)
	}
	for _, req := range reqs {
		created, err := s.Precompute(ctx, req)
		if err != nil {
			report.Failed++
			log.Warn("precompute_item_failed",
				zap.String("type", req.Type),
				zap.Int("streak_days", req.StreakDays),
				zap.Error(err))
			continue
		}
		if created {
			report.Celebrations++
		}
	}

	log.Info("precompute_finished",
		zap.Int("intentions", report.Intentions),
		zap.Int("celebrations", report.Celebrations),
		zap.Int("failed", report.Failed))
	return report
}

// celebrationRequests lists the celebrations the next completed day would need
func celebrationRequests(userID uuid.UUID, in PrecomputeInput) []Request {
	var reqs []Request
	for _, t := range milestone.Upcoming(milestone.Gold, in.GoldStreak) {
		reqs = append(reqs, Request{Key: Key{UserID: userID, Type: models.ContentTypeGoldStreak, StreakDays: t}})
	}
	for _, h := range in.Habits {
		id := h.ID
		for _, t := range milestone.Upcoming(milestone.Habit, h.Streak) {
			reqs = append(reqs, Request{
				Key:        Key{UserID: userID, Type: models.ContentTypeHabitStreak, StreakDays: t, SubEntityID: &id},
				HabitTitle: h.Title,
			})
		}
	}
	return reqs
}
