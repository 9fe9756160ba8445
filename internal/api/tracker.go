package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jimdaga/goldstreak/internal/auth"
	"github.com/jimdaga/goldstreak/internal/streak"
	"github.com/jimdaga/goldstreak/internal/tracker"
	"go.uber.org/zap"
)

// paramID reads a positive numeric path parameter
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, name+" must be a positive integer")
		return 0, false
	}
	return uint(id), true
}

// optionalDay parses an optional YYYY-MM-DD value
func optionalDay(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return streak.ParseDay(raw)
}

// ListRoutinesHandler lists routines; ?all=true includes deactivated ones
func ListRoutinesHandler(svc TrackerService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		all, _ := strconv.ParseBool(c.Query("all"))
		routines, err := svc.ListRoutines(c.Request.Context(), auth.UserID(c), all)
		if err != nil {
			respondError(c, logger, "routine_list_failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"routines": routines})
	}
}

type createRoutineRequest struct {
	Name         string `json:"name" binding:"required"`
	Recurrence   string `json:"recurrence"`
	TimesPerWeek int    `json:"times_per_week"`
	CreatedOn    string `json:"created_on"`
}

// CreateRoutineHandler creates a routine
func CreateRoutineHandler(svc TrackerService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body createRoutineRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err.Error())
			return
		}
		created, err := optionalDay(body.CreatedOn)
		if err != nil {
			badRequest(c, "created_on must be YYYY-MM-DD")
			return
		}

		r, err := svc.CreateRoutine(c.Request.Context(), auth.UserID(c), tracker.NewRoutine{
			Name:         body.Name,
			Recurrence:   body.Recurrence,
			TimesPerWeek: body.TimesPerWeek,
			CreatedOn:    created,
		})
		if err != nil {
			respondError(c, logger, "routine_create_failed", err)
			return
		}
		c.JSON(http.StatusCreated, r)
	}
}

type updateRoutineRequest struct {
	Name          *string `json:"name"`
	DeactivatedOn *string `json:"deactivated_on"`
}

// UpdateRoutineHandler renames or deactivates a routine
func UpdateRoutineHandler(svc TrackerService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var body updateRoutineRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err.Error())
			return
		}
		if body.Name == nil && body.DeactivatedOn == nil {
			badRequest(c, "name or deactivated_on is required")
			return
		}

		patch := tracker.RoutinePatch{Name: body.Name}
		if body.DeactivatedOn != nil {
			day, err := streak.ParseDay(*body.DeactivatedOn)
			if err != nil {
				badRequest(c, "deactivated_on must be YYYY-MM-DD")
				return
			}
			patch.DeactivatedOn = &day
		}

		r, err := svc.UpdateRoutine(c.Request.Context(), auth.UserID(c), id, patch)
		if err != nil {
			respondError(c, logger, "routine_update_failed", err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

type completionRequest struct {
	Done  *bool  `json:"done" binding:"required"`
	Notes string `json:"notes"`
}

// SetCompletionHandler records a routine's state for one date
func SetCompletionHandler(svc TrackerService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		date, err := streak.ParseDay(c.Param("date"))
		if err != nil {
			badRequest(c, "date must be YYYY-MM-DD")
			return
		}
		var body completionRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err.Error())
			return
		}

		done, err := svc.SetCompletion(c.Request.Context(), auth.UserID(c), id, date, *body.Done, body.Notes)
		if err != nil {
			respondError(c, logger, "completion_save_failed", err)
			return
		}
		c.JSON(http.StatusOK, done)
	}
}

// ListCompletionsHandler lists a routine's completions since ?since= (default 30 days)
func ListCompletionsHandler(svc TrackerService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		since, err := optionalDay(c.Query("since"))
		if err != nil {
			badRequest(c, "since must be YYYY-MM-DD")
			return
		}
		if since.IsZero() {
			since = streak.Day(time.Now()).AddDate(0, 0, -30)
		}

		rows, err := svc.Completions(c.Request.Context(), auth.UserID(c), id, since)
		if err != nil {
			respondError(c, logger, "completion_list_failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"completions": rows})
	}
}

// StreaksHandler recomputes and returns the caller's streaks
func StreaksHandler(svc TrackerService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := svc.Refresh(c.Request.Context(), auth.UserID(c))
		if err != nil {
			respondError(c, logger, "streak_refresh_failed", err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

// ListGoalsHandler lists the caller's goals
func ListGoalsHandler(svc TrackerService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		goals, err := svc.Goals(c.Request.Context(), auth.UserID(c))
		if err != nil {
			respondError(c, logger, "goal_list_failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"goals": goals})
	}
}

type goalRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

// CreateGoalHandler adds a goal
func CreateGoalHandler(svc TrackerService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body goalRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err.Error())
			return
		}
		g, err := svc.CreateGoal(c.Request.Context(), auth.UserID(c), body.Title, body.Description)
		if err != nil {
			respondError(c, logger, "goal_create_failed", err)
			return
		}
		c.JSON(http.StatusCreated, g)
	}
}

// DeleteGoalHandler removes a goal
func DeleteGoalHandler(svc TrackerService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		if err := svc.DeleteGoal(c.Request.Context(), auth.UserID(c), id); err != nil {
			respondError(c, logger, "goal_delete_failed", err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// GetProfileHandler returns the caller's profile
func GetProfileHandler(svc TrackerService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := svc.Profile(c.Request.Context(), auth.UserID(c))
		if err != nil {
			respondError(c, logger, "profile_load_failed", err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

type profileRequest struct {
	DisplayName string `json:"display_name"`
	CoreBelief  string `json:"core_belief"`
	AIVoice     string `json:"ai_voice"`
	Timezone    string `json:"timezone"`
}

// UpdateProfileHandler stores the editable profile fields
func UpdateProfileHandler(svc TrackerService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body profileRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err.Error())
			return
		}
		p, err := svc.UpdateProfile(c.Request.Context(), auth.UserID(c), tracker.ProfileInput(body))
		if err != nil {
			respondError(c, logger, "profile_save_failed", err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}
