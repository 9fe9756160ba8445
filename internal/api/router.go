// Package api exposes the HTTP endpoints under /api.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jimdaga/goldstreak/internal/content"
	"github.com/jimdaga/goldstreak/internal/health"
	"github.com/jimdaga/goldstreak/internal/models"
	"github.com/jimdaga/goldstreak/internal/prompts"
	"github.com/jimdaga/goldstreak/internal/tracker"
	"go.uber.org/zap"
)

// ContentService serves generated texts
type ContentService interface {
	Get(ctx context.Context, req content.Request) (string, error)
	DailyQuestion(ctx context.Context, userID uuid.UUID) string
	Intention(ctx context.Context, userID uuid.UUID, date time.Time, force bool) (*models.DailyIntention, error)
	Vote(ctx context.Context, userID uuid.UUID, date time.Time, vote string) error
	PrecomputeUser(ctx context.Context, userID uuid.UUID, in content.PrecomputeInput) content.Report
	Chat(ctx context.Context, userID uuid.UUID, in content.ChatInput) (string, error)
	Onboarding(ctx context.Context, userID uuid.UUID, in content.OnboardingInput) (*prompts.Onboarding, error)
}

// BadgeService awards and lists badges
type BadgeService interface {
	Check(ctx context.Context, userID uuid.UUID) ([]models.Badge, error)
	Owned(ctx context.Context, userID uuid.UUID) ([]models.UserBadge, error)
}

// TrackerService manages routines, completions, goals and profiles
type TrackerService interface {
	CreateRoutine(ctx context.Context, userID uuid.UUID, in tracker.NewRoutine) (*models.Routine, error)
	ListRoutines(ctx context.Context, userID uuid.UUID, includeInactive bool) ([]models.Routine, error)
	UpdateRoutine(ctx context.Context, userID uuid.UUID, id uint, patch tracker.RoutinePatch) (*models.Routine, error)
	SetCompletion(ctx context.Context, userID uuid.UUID, routineID uint, date time.Time, done bool, notes string) (*models.DailyCompletion, error)
	Completions(ctx context.Context, userID uuid.UUID, routineID uint, since time.Time) ([]models.DailyCompletion, error)
	Refresh(ctx context.Context, userID uuid.UUID) (tracker.Summary, error)
	Profile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, in tracker.ProfileInput) (*models.Profile, error)
	Goals(ctx context.Context, userID uuid.UUID) ([]models.Goal, error)
	CreateGoal(ctx context.Context, userID uuid.UUID, title, description string) (*models.Goal, error)
	DeleteGoal(ctx context.Context, userID uuid.UUID, id uint) error
}

// Services are the backends the handlers call
type Services struct {
	Content ContentService
	Badges  BadgeService
	Tracker TrackerService
}

// RouterConfig configures the engine
type RouterConfig struct {
	CORSOrigins []string
	// Auth guards every /api route
	Auth gin.HandlerFunc
	// Metrics is served on /metrics when set
	Metrics http.Handler
	// ReadyChecks back /ready
	ReadyChecks map[string]health.Check
	Logger      *zap.Logger
}

// NewRouter builds the gin engine with middleware and all routes
func NewRouter(cfg RouterConfig, svc Services) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(Recovery(logger))
	r.Use(RequestLogger(logger))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/health", gin.WrapF(health.Handler))
	r.GET("/ready", gin.WrapF(health.Ready(cfg.ReadyChecks)))
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	api := r.Group("/api")
	if cfg.Auth != nil {
		api.Use(cfg.Auth)
	}
	{
		api.POST("/celebration", CelebrationHandler(svc.Content, logger))
		api.GET("/daily-question", DailyQuestionHandler(svc.Content))
		api.GET("/intention", GetIntentionHandler(svc.Content, logger))
		api.POST("/intention", VoteIntentionHandler(svc.Content, logger))
		api.POST("/precompute", PrecomputeHandler(svc.Content))
		api.POST("/chat", ChatHandler(svc.Content, logger))
		api.POST("/onboarding", OnboardingHandler(svc.Content, logger))

		api.POST("/badges/check", CheckBadgesHandler(svc.Badges, logger))
		api.GET("/badges", ListBadgesHandler(svc.Badges, logger))

		api.GET("/routines", ListRoutinesHandler(svc.Tracker, logger))
		api.POST("/routines", CreateRoutineHandler(svc.Tracker, logger))
		api.PATCH("/routines/:id", UpdateRoutineHandler(svc.Tracker, logger))
		api.PUT("/routines/:id/completions/:date", SetCompletionHandler(svc.Tracker, logger))
		api.GET("/routines/:id/completions", ListCompletionsHandler(svc.Tracker, logger))
		api.GET("/streaks", StreaksHandler(svc.Tracker, logger))

		api.GET("/goals", ListGoalsHandler(svc.Tracker, logger))
		api.POST("/goals", CreateGoalHandler(svc.Tracker, logger))
		api.DELETE("/goals/:id", DeleteGoalHandler(svc.Tracker, logger))

		api.GET("/profile", GetProfileHandler(svc.Tracker, logger))
		api.PUT("/profile", UpdateProfileHandler(svc.Tracker, logger))
	}

	return r
}
