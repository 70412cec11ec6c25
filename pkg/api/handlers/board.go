// Package handlers provides HTTP request handlers.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stigmer/stigmer/pkg/api/middleware"
	"github.com/stigmer/stigmer/pkg/api/models"
	"github.com/stigmer/stigmer/pkg/api/response"
	"github.com/stigmer/stigmer/pkg/board"
	"github.com/stigmer/stigmer/pkg/logger"
	"github.com/stigmer/stigmer/pkg/signal"
)

// BoardHandler handles coordination board endpoints.
type BoardHandler struct {
	board     *board.Board
	logger    logger.Logger
	validator *validator.Validate
}

// timeNow is swapped out in tests to pin effective intensities.
var timeNow = time.Now

// NewBoardHandler creates a new board handler.
func NewBoardHandler(b *board.Board, log logger.Logger) *BoardHandler {
	return &BoardHandler{
		board:     b,
		logger:    log,
		validator: validator.New(),
	}
}

// EmitSignal handles POST /api/v1/signals
func (h *BoardHandler) EmitSignal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.EmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode request", "error", err)
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", middleware.GetRequestID(ctx))
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		h.logger.Error("Validation failed", "error", err)
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, err.Error(), middleware.GetRequestID(ctx))
		return
	}

	sig, err := h.board.Emit(ctx, signal.Type(req.Type), req.Location, req.Text, req.Agent, req.Tags)
	if err != nil {
		h.logger.Error("Failed to emit signal", "error", err)
		response.HandleError(w, err, middleware.GetRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusCreated, h.view(sig))
}

// ListSignals handles GET /api/v1/signals
func (h *BoardHandler) ListSignals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := board.Filter{
		Type:              signal.Type(r.URL.Query().Get("type")),
		LocationSubstring: r.URL.Query().Get("location"),
		Agent:             r.URL.Query().Get("agent"),
	}
	if filter.Type != "" && !filter.Type.IsValid() {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Unknown signal type", middleware.GetRequestID(ctx))
		return
	}

	sigs, err := h.board.Sense(ctx, filter)
	if err != nil {
		h.logger.Error("Failed to sense signals", "error", err)
		response.HandleError(w, err, middleware.GetRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, models.SignalListResponse{
		Signals: h.views(sigs),
		Total:   len(sigs),
	})
}

// GetSignal handles GET /api/v1/signals/{id}
func (h *BoardHandler) GetSignal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if id == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Signal ID is required", middleware.GetRequestID(ctx))
		return
	}

	sig, err := h.board.Get(ctx, id)
	if err != nil {
		response.HandleError(w, err, middleware.GetRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, h.view(sig))
}

// AmplifySignal handles POST /api/v1/signals/{id}/amplify
func (h *BoardHandler) AmplifySignal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	req, ok := h.decodeAttribution(w, r)
	if !ok {
		return
	}

	sig, err := h.board.Amplify(ctx, id, req.Agent)
	if err != nil {
		h.logger.Error("Failed to amplify signal", "id", id, "error", err)
		response.HandleError(w, err, middleware.GetRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, h.view(sig))
}

// ResolveSignal handles POST /api/v1/signals/{id}/resolve
func (h *BoardHandler) ResolveSignal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	req, ok := h.decodeAttribution(w, r)
	if !ok {
		return
	}

	sig, err := h.board.Resolve(ctx, id, req.Agent)
	if err != nil {
		h.logger.Error("Failed to resolve signal", "id", id, "error", err)
		response.HandleError(w, err, middleware.GetRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, h.view(sig))
}

// Evaporate handles POST /api/v1/evaporate
func (h *BoardHandler) Evaporate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report, err := h.board.Evaporate(ctx)
	if err != nil {
		h.logger.Error("Evaporation sweep failed", "error", err)
		response.HandleError(w, err, middleware.GetRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, report)
}

// Landscape handles GET /api/v1/landscape
func (h *BoardHandler) Landscape(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	landscape, err := h.board.Landscape(ctx)
	if err != nil {
		h.logger.Error("Failed to compute landscape", "error", err)
		response.HandleError(w, err, middleware.GetRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, models.LandscapeResponse{Locations: landscape})
}

// Trails handles GET /api/v1/trails?location=...
func (h *BoardHandler) Trails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	location := r.URL.Query().Get("location")
	if location == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "location query parameter is required", middleware.GetRequestID(ctx))
		return
	}

	trail, err := h.board.Trails(ctx, location)
	if err != nil {
		h.logger.Error("Failed to read trail", "location", location, "error", err)
		response.HandleError(w, err, middleware.GetRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, models.SignalListResponse{
		Signals: h.views(trail),
		Total:   len(trail),
	})
}

// Stats handles GET /api/v1/stats
func (h *BoardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.board.Stats(ctx)
	if err != nil {
		h.logger.Error("Failed to compute stats", "error", err)
		response.HandleError(w, err, middleware.GetRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, stats)
}

// Patterns handles GET /api/v1/patterns
func (h *BoardHandler) Patterns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	patterns, err := h.board.DetectPatterns(ctx)
	if err != nil {
		h.logger.Error("Pattern detection failed", "error", err)
		response.HandleError(w, err, middleware.GetRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"patterns": patterns,
		"total":    len(patterns),
	})
}

func (h *BoardHandler) decodeAttribution(w http.ResponseWriter, r *http.Request) (models.AttributionRequest, bool) {
	ctx := r.Context()

	var req models.AttributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", middleware.GetRequestID(ctx))
		return req, false
	}
	if err := h.validator.Struct(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, err.Error(), middleware.GetRequestID(ctx))
		return req, false
	}
	return req, true
}

func (h *BoardHandler) view(sig *signal.Signal) models.SignalView {
	return models.NewSignalView(sig, h.board.Decay(), timeNow())
}

func (h *BoardHandler) views(sigs []*signal.Signal) []models.SignalView {
	return models.NewSignalViews(sigs, h.board.Decay(), timeNow())
}
