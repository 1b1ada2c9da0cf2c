package api

import (
	"context"
	"net/http"
	"time"

	"echobox/internal/db"
)

const healthCheckTimeout = 2 * time.Second

// Pinger is satisfied by the pending-registration cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	database *db.DB
	cache    Pinger
}

func NewHealthHandler(database *db.DB, cache Pinger) *HealthHandler {
	return &HealthHandler{database: database, cache: cache}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	dbStatus := "ok"
	cacheStatus := "ok"
	status := http.StatusOK

	if err := h.database.PingContext(ctx); err != nil {
		dbStatus = "error"
		status = http.StatusServiceUnavailable
	}
	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			cacheStatus = "error"
			status = http.StatusServiceUnavailable
		}
	}

	result := "UP"
	if status != http.StatusOK {
		result = "DEGRADED"
	}

	writeJSON(w, status, map[string]any{
		"status": result,
		"checks": map[string]string{
			"database": dbStatus,
			"redis":    cacheStatus,
		},
	})
}
