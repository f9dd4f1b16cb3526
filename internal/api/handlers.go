package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"

	"fundops/backend/pkg/models"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains the plain HTTP handlers that sit outside /api/v1
type Handler struct {
	db      Pinger
	clock   clock.Clock
	version string
}

// NewHandler creates a new Handler with required dependencies
func NewHandler(db Pinger, c clock.Clock, version string) *Handler {
	if c == nil {
		c = clock.New()
	}
	return &Handler{db: db, clock: c, version: version}
}

// HandleHealth reports service health. The database check is reported but
// only a failing ping turns the response into 503.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := models.HealthStatus{
		Status:    "ok",
		Timestamp: h.clock.Now(),
		Service:   "fundops",
		Version:   h.version,
		Checks:    map[string]string{},
	}
	code := http.StatusOK
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			status.Status = "degraded"
			status.Checks["database"] = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			status.Checks["database"] = "ok"
		}
	}
	writeJSON(w, code, status)
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log error but can't change response at this point
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
