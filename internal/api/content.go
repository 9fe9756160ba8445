package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jimdaga/goldstreak/internal/auth"
	"github.com/jimdaga/goldstreak/internal/content"
	"github.com/jimdaga/goldstreak/internal/streak"
	"go.uber.org/zap"
)

type celebrationRequest struct {
	Type       string `json:"type" binding:"required"`
	StreakDays int    `json:"streak_days" binding:"required"`
	HabitID    *uint  `json:"habit_id"`
	HabitTitle string `json:"habit_title"`
}

// CelebrationHandler returns the celebration message for a milestone,
// consuming a precomputed one when available.
func CelebrationHandler(svc ContentService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body celebrationRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err.Error())
			return
		}

		req := content.Request{
			Key: content.Key{
				UserID:      auth.UserID(c),
				Type:        body.Type,
				StreakDays:  body.StreakDays,
				SubEntityID: body.HabitID,
			},
			HabitTitle: body.HabitTitle,
		}
		if err := req.Validate(); err != nil {
			badRequest(c, err.Error())
			return
		}

		msg, err := svc.Get(c.Request.Context(), req)
		if err != nil {
			respondError(c, logger, "celebration_failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": msg})
	}
}

// DailyQuestionHandler never fails; a fallback question stands in for
// generation errors.
func DailyQuestionHandler(svc ContentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := svc.DailyQuestion(c.Request.Context(), auth.UserID(c))
		c.JSON(http.StatusOK, gin.H{"question": q})
	}
}

// GetIntentionHandler returns the intention for ?date=, generating it if needed
func GetIntentionHandler(svc ContentService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Query("date")
		if raw == "" {
			badRequest(c, "date is required")
			return
		}
		date, err := streak.ParseDay(raw)
		if err != nil {
			badRequest(c, "date must be YYYY-MM-DD")
			return
		}
		force := false
		if v := c.Query("force"); v != "" {
			if force, err = strconv.ParseBool(v); err != nil {
				badRequest(c, "force must be a boolean")
				return
			}
		}

		intention, err := svc.Intention(c.Request.Context(), auth.UserID(c), date, force)
		if err != nil {
			respondError(c, logger, "intention_failed", err)
			return
		}
		c.JSON(http.StatusOK, intention)
	}
}

type voteRequest struct {
	Date string `json:"date" binding:"required"`
	Vote string `json:"vote" binding:"required,oneof=up down"`
}

// VoteIntentionHandler records a vote on a stored intention
func VoteIntentionHandler(svc ContentService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body voteRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err.Error())
			return
		}
		date, err := streak.ParseDay(body.Date)
		if err != nil {
			badRequest(c, "date must be YYYY-MM-DD")
			return
		}

		if err := svc.Vote(c.Request.Context(), auth.UserID(c), date, body.Vote); err != nil {
			respondError(c, logger, "intention_vote_failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

type precomputeRequest struct {
	GoldStreak        int                   `json:"gold_streak" binding:"min=0"`
	HabitStreaks      []content.HabitStreak `json:"habit_streaks"`
	CheckCelebrations *bool                 `json:"check_celebrations"`
}

// PrecomputeHandler fills the cache for the caller's upcoming milestones and
// intentions. Individual failures are reported in the counts, not as errors.
func PrecomputeHandler(svc ContentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body precomputeRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err.Error())
			return
		}
		for _, h := range body.HabitStreaks {
			if h.Streak < 0 {
				badRequest(c, "habit streak must not be negative")
				return
			}
		}

		check := true
		if body.CheckCelebrations != nil {
			check = *body.CheckCelebrations
		}

		report := svc.PrecomputeUser(c.Request.Context(), auth.UserID(c), content.PrecomputeInput{
			GoldStreak:        body.GoldStreak,
			Habits:            body.HabitStreaks,
			CheckCelebrations: check,
		})
		c.JSON(http.StatusOK, gin.H{"success": true, "report": report})
	}
}

type chatRequest struct {
	Message     string `json:"message" binding:"required"`
	ContextMode string `json:"contextMode"`
	Profile     struct {
		CoreBelief string `json:"coreBelief"`
		AIVoice    string `json:"aiVoice"`
	} `json:"profile"`
	Goals []string `json:"goals"`
}

// ChatHandler answers one chat message
func ChatHandler(svc ContentService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body chatRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err.Error())
			return
		}

		reply, err := svc.Chat(c.Request.Context(), auth.UserID(c), content.ChatInput{
			Message:     body.Message,
			ContextMode: body.ContextMode,
			CoreBelief:  body.Profile.CoreBelief,
			AIVoice:     body.Profile.AIVoice,
			Goals:       body.Goals,
		})
		if err != nil {
			respondError(c, logger, "chat_failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"reply": reply})
	}
}

type onboardingRequest struct {
	Priorities  string `json:"priorities"`
	LifeSummary string `json:"lifeSummary"`
	Ideology    string `json:"ideology"`
}

// OnboardingHandler turns a self-description into a structured profile
func OnboardingHandler(svc ContentService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body onboardingRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err.Error())
			return
		}
		if strings.TrimSpace(body.Priorities+body.LifeSummary+body.Ideology) == "" {
			badRequest(c, "priorities, lifeSummary or ideology is required")
			return
		}

		out, err := svc.Onboarding(c.Request.Context(), auth.UserID(c), content.OnboardingInput{
			Priorities:  body.Priorities,
			LifeSummary: body.LifeSummary,
			Ideology:    body.Ideology,
		})
		if err != nil {
			respondError(c, logger, "onboarding_failed", err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}
