// Package handlers provides HTTP request handlers.
package handlers

import (
	"net/http"

	"github.com/stigmer/stigmer/pkg/api/response"
	"github.com/stigmer/stigmer/pkg/board"
	"github.com/stigmer/stigmer/pkg/version"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	board *board.Board
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(b *board.Board) *HealthHandler {
	return &HealthHandler{
		board: b,
	}
}

// Health handles the /health endpoint (liveness probe).
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Ready handles the /ready endpoint (readiness probe). The board is ready
// when its store answers queries.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if _, err := h.board.Stats(r.Context()); err != nil {
		response.JSON(w, http.StatusServiceUnavailable, map[string]bool{
			"ready": false,
		})
		return
	}
	response.JSON(w, http.StatusOK, map[string]bool{
		"ready": true,
	})
}

// Status handles the /status endpoint (detailed status).
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	stats, err := h.board.Stats(r.Context())
	if err != nil {
		response.HandleError(w, err, "")
		return
	}

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"version": version.Info(),
		"decay": map[string]float64{
			"half_life_hours":     h.board.Decay().HalfLifeHours(),
			"detection_threshold": h.board.Decay().DetectionThreshold(),
		},
		"signals": stats,
	})
}
