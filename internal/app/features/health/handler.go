// internal/app/features/health/handler.go
package health

import (
	"context"
	"net/http"

	"github.com/dalemusser/collabhub/internal/app/system/apiresp"
	"github.com/dalemusser/collabhub/internal/app/system/timeouts"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Handler holds dependencies needed for health checks.
type Handler struct {
	Client *mongo.Client
	Redis  *redis.Client // nil when rate limits are kept in memory
	Log    *zap.Logger
}

// NewHandler constructs a health Handler. redisClient may be nil.
func NewHandler(client *mongo.Client, redisClient *redis.Client, logger *zap.Logger) *Handler {
	return &Handler{Client: client, Redis: redisClient, Log: logger}
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "ok":true, "status":"ok", "database":"connected", "rate_limits":"memory" }
//
// When MongoDB or the configured Redis does not answer a ping: 503 and the
// error envelope with code "unavailable".
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		apiresp.Error(w, http.StatusServiceUnavailable, "unavailable", "Database unavailable.")
		return
	}

	limits := "memory"
	if h.Redis != nil {
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			h.Log.Error("health-check: redis ping failed", zap.Error(err))
			apiresp.Error(w, http.StatusServiceUnavailable, "unavailable", "Rate limit store unavailable.")
			return
		}
		limits = "redis"
	}

	apiresp.OK(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"database":    "connected",
		"rate_limits": limits,
	})
}
