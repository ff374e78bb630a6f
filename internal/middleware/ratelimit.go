package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"banana-studio-backend/internal/metrics"
	"banana-studio-backend/internal/models"
	"banana-studio-backend/internal/ratelimit"
)

// RateLimit puts the minimum-interval gate in front of generation routes.
// It must run after AuthMiddleware; the gate is keyed by user id. A request
// the handler rejects with a 4xx was never submitted and gives its slot back.
func RateLimit(gate ratelimit.Gate, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString(UserIDKey)
		if key == "" {
			key = c.ClientIP()
		}

		err := gate.Allow(c.Request.Context(), key)
		if err == nil {
			c.Next()
			if status := c.Writer.Status(); status >= 400 && status < 500 {
				if rerr := gate.Release(context.WithoutCancel(c.Request.Context()), key); rerr != nil {
					logger.Warn("failed to release rate limit slot", "status", status, "error", rerr)
				}
			}
			return
		}

		var wait *ratelimit.WaitError
		if errors.As(err, &wait) {
			metrics.RateLimitRejectionsTotal.Inc()
			c.Header("Retry-After", strconv.Itoa(wait.Seconds()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error:   "rate limited",
				Message: wait.Error(),
			})
			return
		}

		logger.Error("rate limit check failed", "error", err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   "rate limit unavailable",
			Message: err.Error(),
		})
	}
}
