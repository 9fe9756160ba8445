package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jimdaga/goldstreak/internal/metrics"
	"github.com/jimdaga/goldstreak/internal/models"
	"github.com/jimdaga/goldstreak/internal/prompts"
	"github.com/jimdaga/goldstreak/internal/store"
	"github.com/jimdaga/goldstreak/internal/streak"
	"go.uber.org/zap"
)

// Chat context modes
const (
	ModeCoach   = "coach"
	ModeReflect = "reflect"
	ModePlan    = "plan"
)

// Intention returns the stored intention for date, generating one when none
// exists or when force is set. Generation failures fall back to a catalog
// text that is still stored. force overwrites the text and clears any vote.
func (s *Service) Intention(ctx context.Context, userID uuid.UUID, date time.Time, force bool) (*models.DailyIntention, error) {
	date = streak.Day(date)

	if !force {
		existing, err := s.intentions.Find(ctx, userID, date)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("load intention: %w", err)
		}
	}

	text, fallback := s.intentionText(ctx, userID, date)
	row := &models.DailyIntention{UserID: userID, Date: date, Text: text, Fallback: fallback}

	if force {
		if err := s.intentions.Replace(ctx, row); err != nil {
			return nil, err
		}
		return row, nil
	}

	created, err := s.intentions.InsertIfAbsent(ctx, row)
	if err != nil {
		return nil, err
	}
	if !created {
		// a concurrent request stored one first
		return s.intentions.Find(ctx, userID, date)
	}
	return row, nil
}

func (s *Service) intentionText(ctx context.Context, userID uuid.UUID, date time.Time) (string, bool) {
	data := s.promptData(ctx, userID)
	data.Date = date.Format(streak.DayLayout)

	text, err := s.generate(ctx, prompts.KindIntention, data)
	if err == nil {
		return text, false
	}

	s.logger.Warn("intention_generation_failed",
		zap.String("user_id", userID.String()),
		zap.String("date", data.Date),
		zap.Error(err))
	metrics.Generations.WithLabelValues(prompts.KindIntention, "fallback").Inc()
	fallback, _ := s.catalog.Fallback(prompts.KindIntention)
	return fallback, true
}

// Vote records an up or down vote on the intention for date
func (s *Service) Vote(ctx context.Context, userID uuid.UUID, date time.Time, vote string) error {
	if vote != models.VoteUp && vote != models.VoteDown {
		return fmt.Errorf("%w: vote must be %q or %q", ErrInvalidRequest, models.VoteUp, models.VoteDown)
	}
	return s.intentions.SetVote(ctx, userID, streak.Day(date), vote)
}

// DailyQuestion returns the user's question for today. It is generated once
// per day; when generation fails a fallback question is returned and nothing
// is stored, so a later call may still generate.
func (s *Service) DailyQuestion(ctx context.Context, userID uuid.UUID) string {
	today := streak.Day(s.now())
	key := Key{UserID: userID, Type: models.ContentTypeDailyQuestion, StreakDays: dayStamp(today)}

	row, err := s.cache.Latest(ctx, key)
	if err == nil {
		if !row.Consumed {
			if _, err := s.cache.MarkConsumed(ctx, row.ID, s.now()); err != nil {
				s.logger.Warn("daily_question_consume_failed", zap.Uint("id", row.ID), zap.Error(err))
			}
		}
		metrics.CacheLookups.WithLabelValues(key.Type, "hit").Inc()
		return row.Text
	}
	if !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("daily_question_lookup_failed", zap.String("user_id", userID.String()), zap.Error(err))
	}
	metrics.CacheLookups.WithLabelValues(key.Type, "miss").Inc()

	data := s.promptData(ctx, userID)
	data.Date = today.Format(streak.DayLayout)
	text, err := s.generate(ctx, prompts.KindDailyQuestion, data)
	if err != nil {
		s.logger.Warn("daily_question_generation_failed", zap.String("user_id", userID.String()), zap.Error(err))
		metrics.Generations.WithLabelValues(prompts.KindDailyQuestion, "fallback").Inc()
		fallback, _ := s.catalog.Fallback(prompts.KindDailyQuestion)
		return fallback
	}

	at := s.now()
	err = s.cache.Insert(ctx, &models.CachedContent{
		UserID:     userID,
		Type:       key.Type,
		StreakDays: key.StreakDays,
		Text:       text,
		Consumed:   true,
		ConsumedAt: &at,
	})
	if err != nil {
		s.logger.Warn("daily_question_save_failed", zap.String("user_id", userID.String()), zap.Error(err))
	}
	return text
}

// ChatInput is one chat turn with the caller-supplied context
type ChatInput struct {
	Message     string
	ContextMode string
	CoreBelief  string
	AIVoice     string
	Goals       []string
}

// Chat returns a coach reply. Nothing is stored. When the caller sends no
// profile context the stored profile is used.
func (s *Service) Chat(ctx context.Context, userID uuid.UUID, in ChatInput) (string, error) {
	if strings.TrimSpace(in.Message) == "" {
		return "", fmt.Errorf("%w: message is required", ErrInvalidRequest)
	}
	mode := in.ContextMode
	switch mode {
	case "":
		mode = ModeCoach
	case ModeCoach, ModeReflect, ModePlan:
	default:
		return "", fmt.Errorf("%w: unknown contextMode %q", ErrInvalidRequest, mode)
	}

	var data prompts.Data
	if in.CoreBelief == "" && in.AIVoice == "" && len(in.Goals) == 0 {
		data = s.promptData(ctx, userID)
	} else {
		data = prompts.Data{CoreBelief: in.CoreBelief, AIVoice: in.AIVoice, Goals: in.Goals}
	}
	data.Message = in.Message
	data.ContextMode = mode

	return s.generate(ctx, prompts.KindChat, data)
}

// OnboardingInput is the self-description a new user submits
type OnboardingInput struct {
	Priorities  string
	LifeSummary string
	Ideology    string
}

// Onboarding generates and validates a structured profile. The result is
// saved to the user's profile best-effort.
func (s *Service) Onboarding(ctx context.Context, userID uuid.UUID, in OnboardingInput) (*prompts.Onboarding, error) {
	text, err := s.generate(ctx, prompts.KindOnboarding, prompts.Data{
		Priorities:  in.Priorities,
		LifeSummary: in.LifeSummary,
		Ideology:    in.Ideology,
	})
	if err != nil {
		return nil, err
	}

	out, err := prompts.ParseOnboarding(text)
	if err != nil {
		metrics.Generations.WithLabelValues(prompts.KindOnboarding, "invalid").Inc()
		s.logger.Warn("onboarding_invalid", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, err
	}

	raw, err := json.Marshal(out)
	if err == nil {
		err = s.saveOnboarding(ctx, userID, out, raw)
	}
	if err != nil {
		s.logger.Warn("onboarding_save_failed", zap.String("user_id", userID.String()), zap.Error(err))
	}
	return out, nil
}

// dayStamp encodes a calendar day as YYYYMMDD
func dayStamp(day time.Time) int {
	y, m, d := day.Date()
	return y*10000 + int(m)*100 + d
}
