package handler

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/msomdec/accounts/internal/repository/sqlite/migrations"
)

// HealthHandler reports whether the database is reachable and migrated.
type HealthHandler struct {
	db *sql.DB
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// HandleHealthz responds with 200 and {"status":"ok"} when healthy and 503
// otherwise.
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		slog.ErrorContext(ctx, "health: ping database", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}

	pending, err := migrations.Pending(ctx, h.db)
	if err != nil || len(pending) > 0 {
		slog.ErrorContext(ctx, "health: migrations", "error", err, "pending", pending)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "migrating"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
