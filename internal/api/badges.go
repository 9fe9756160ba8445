package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jimdaga/goldstreak/internal/auth"
	"github.com/jimdaga/goldstreak/internal/models"
	"go.uber.org/zap"
)

// CheckBadgesHandler awards every badge the caller newly qualifies for
func CheckBadgesHandler(svc BadgeService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		awarded, err := svc.Check(c.Request.Context(), auth.UserID(c))
		if err != nil {
			respondError(c, logger, "badge_check_failed", err)
			return
		}
		if awarded == nil {
			awarded = []models.Badge{}
		}
		c.JSON(http.StatusOK, gin.H{"newBadges": awarded})
	}
}

type ownedBadge struct {
	models.Badge
	UnlockedAt string `json:"unlocked_at"`
}

// ListBadgesHandler lists the caller's unlocked badges
func ListBadgesHandler(svc BadgeService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		owned, err := svc.Owned(c.Request.Context(), auth.UserID(c))
		if err != nil {
			respondError(c, logger, "badge_list_failed", err)
			return
		}
		out := make([]ownedBadge, 0, len(owned))
		for _, ub := range owned {
			out = append(out, ownedBadge{Badge: ub.Badge, UnlockedAt: ub.UnlockedAt.UTC().Format(time.RFC3339)})
		}
		c.JSON(http.StatusOK, gin.H{"badges": out})
	}
}
