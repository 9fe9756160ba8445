package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jimdaga/goldstreak/internal/auth"
	"github.com/jimdaga/goldstreak/internal/content"
	"github.com/jimdaga/goldstreak/internal/metrics"
	"github.com/jimdaga/goldstreak/internal/store"
	"github.com/jimdaga/goldstreak/internal/tracker"
	"go.uber.org/zap"
)

// RequestLogger logs every request and records the HTTP metrics
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		status := c.Writer.Status()
		duration := time.Since(start).Seconds()

		metrics.RequestCount.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()
		metrics.RequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Float64("duration", duration),
			zap.String("client_ip", c.ClientIP()),
		}
		if u := auth.CurrentUser(c); u != nil {
			fields = append(fields, zap.String("user_id", u.ID.String()))
		}
		logger.Info("http_request", fields...)
	}
}

// Recovery turns a panic into a 500
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic_recovered", zap.Any("panic", r), zap.String("path", c.Request.URL.Path))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}

// statusFor maps a service error to an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, content.ErrInvalidRequest), errors.Is(err, tracker.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": msg}. Server errors are logged.
func respondError(c *gin.Context, logger *zap.Logger, event string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(event, zap.String("path", c.FullPath()), zap.Error(err))
	}
	msg := err.Error()
	if status == http.StatusNotFound {
		msg = "not found"
	}
	c.JSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
