package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stigmer/stigmer/pkg/api/models"
	"github.com/stigmer/stigmer/pkg/api/response"
	"github.com/stigmer/stigmer/pkg/board"
	"github.com/stigmer/stigmer/pkg/logger"
	"github.com/stigmer/stigmer/pkg/signal"
	"github.com/stigmer/stigmer/pkg/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logger.Logger {
	return logger.New(&logger.Config{
		Level:  logger.InfoLevel,
		Format: "json",
		Output: "stdout",
	})
}

func newBoardHandlerForTest(t *testing.T, opts ...board.Option) (*BoardHandler, *board.Board) {
	t.Helper()

	b := board.New(memory.NewMemoryStore(), opts...)
	return NewBoardHandler(b, testLogger()), b
}

// serveWithID routes the request through chi so URL parameters resolve.
func serveWithID(handler http.HandlerFunc, method, path string, body []byte) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.MethodFunc(method, "/signals/{id}", handler)
	r.MethodFunc(method, "/signals/{id}/amplify", handler)
	r.MethodFunc(method, "/signals/{id}/resolve", handler)

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func emitTestSignal(t *testing.T, b *board.Board, sigType signal.Type, location string) *signal.Signal {
	t.Helper()

	sig, err := b.Emit(context.Background(), sigType, location, "test signal", "agent-1", nil)
	require.NoError(t, err)
	return sig
}

func TestBoardHandler_EmitSignal_Success(t *testing.T) {
	handler, _ := newBoardHandlerForTest(t)

	reqBody := models.EmitRequest{
		Type:     "NEED",
		Location: "services/payment/schema",
		Text:     "schema migration needs review",
		Agent:    "agent-7",
		Tags:     []string{"migration"},
	}
	body, _ := json.Marshal(reqBody)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/signals", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.EmitSignal(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var view models.SignalView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.NotEmpty(t, view.ID)
	assert.Equal(t, signal.TypeNeed, view.Type)
	assert.Equal(t, "services/payment/schema", view.Location)
	assert.Equal(t, 1.0, view.BaseIntensity)
	assert.InDelta(t, 1.0, view.EffectiveIntensity, 0.01)
	assert.False(t, view.Resolved)
}

func TestBoardHandler_EmitSignal_InvalidBody(t *testing.T) {
	handler, _ := newBoardHandlerForTest(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/signals", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()

	handler.EmitSignal(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBoardHandler_EmitSignal_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		req  models.EmitRequest
	}{
		{
			name: "unknown type",
			req:  models.EmitRequest{Type: "URGENT", Location: "a", Text: "b", Agent: "c"},
		},
		{
			name: "missing location",
			req:  models.EmitRequest{Type: "NEED", Text: "b", Agent: "c"},
		},
		{
			name: "missing text",
			req:  models.EmitRequest{Type: "NEED", Location: "a", Agent: "c"},
		},
		{
			name: "missing agent",
			req:  models.EmitRequest{Type: "NEED", Location: "a", Text: "b"},
		},
	}

	handler, _ := newBoardHandlerForTest(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.req)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/signals", bytes.NewReader(body))
			w := httptest.NewRecorder()

			handler.EmitSignal(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp response.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, response.ErrCodeValidationFailed, resp.Error.Code)
		})
	}
}

func TestBoardHandler_ListSignals(t *testing.T) {
	handler, b := newBoardHandlerForTest(t)

	emitTestSignal(t, b, signal.TypeNeed, "services/payment")
	emitTestSignal(t, b, signal.TypeBlock, "services/auth")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/signals", nil)
	w := httptest.NewRecorder()
	handler.ListSignals(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp models.SignalListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Len(t, resp.Signals, 2)
}

func TestBoardHandler_ListSignals_Filtered(t *testing.T) {
	handler, b := newBoardHandlerForTest(t)

	emitTestSignal(t, b, signal.TypeNeed, "services/payment")
	emitTestSignal(t, b, signal.TypeBlock, "services/auth")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/signals?type=BLOCK", nil)
	w := httptest.NewRecorder()
	handler.ListSignals(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp models.SignalListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, signal.TypeBlock, resp.Signals[0].Type)
}

func TestBoardHandler_ListSignals_UnknownType(t *testing.T) {
	handler, _ := newBoardHandlerForTest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/signals?type=URGENT", nil)
	w := httptest.NewRecorder()
	handler.ListSignals(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBoardHandler_GetSignal(t *testing.T) {
	handler, b := newBoardHandlerForTest(t)
	sig := emitTestSignal(t, b, signal.TypeNeed, "services/payment")

	w := serveWithID(handler.GetSignal, http.MethodGet, "/signals/"+sig.ID, nil)

	require.Equal(t, http.StatusOK, w.Code)

	var view models.SignalView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, sig.ID, view.ID)
}

func TestBoardHandler_GetSignal_NotFound(t *testing.T) {
	handler, _ := newBoardHandlerForTest(t)

	w := serveWithID(handler.GetSignal, http.MethodGet, "/signals/nope", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBoardHandler_AmplifySignal(t *testing.T) {
	handler, b := newBoardHandlerForTest(t)
	sig := emitTestSignal(t, b, signal.TypeNeed, "services/payment")

	body, _ := json.Marshal(models.AttributionRequest{Agent: "agent-2"})
	w := serveWithID(handler.AmplifySignal, http.MethodPost, "/signals/"+sig.ID+"/amplify", body)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var view models.SignalView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, 1, view.ReinforcementCount)
	assert.Equal(t, 1.0, view.BaseIntensity) // capped at 1.0
	require.Len(t, view.Reinforcements, 1)
	assert.Equal(t, "agent-2", view.Reinforcements[0].Agent)
}

func TestBoardHandler_AmplifySignal_MissingAgent(t *testing.T) {
	handler, b := newBoardHandlerForTest(t)
	sig := emitTestSignal(t, b, signal.TypeNeed, "services/payment")

	w := serveWithID(handler.AmplifySignal, http.MethodPost, "/signals/"+sig.ID+"/amplify", []byte(`{}`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBoardHandler_AmplifySignal_Resolved(t *testing.T) {
	handler, b := newBoardHandlerForTest(t)
	sig := emitTestSignal(t, b, signal.TypeNeed, "services/payment")

	_, err := b.Resolve(context.Background(), sig.ID, "agent-1")
	require.NoError(t, err)

	body, _ := json.Marshal(models.AttributionRequest{Agent: "agent-2"})
	w := serveWithID(handler.AmplifySignal, http.MethodPost, "/signals/"+sig.ID+"/amplify", body)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestBoardHandler_ResolveSignal(t *testing.T) {
	handler, b := newBoardHandlerForTest(t)
	sig := emitTestSignal(t, b, signal.TypeBlock, "services/payment")

	body, _ := json.Marshal(models.AttributionRequest{Agent: "agent-9"})
	w := serveWithID(handler.ResolveSignal, http.MethodPost, "/signals/"+sig.ID+"/resolve", body)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var view models.SignalView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.True(t, view.Resolved)
	assert.Equal(t, "agent-9", view.ResolvedBy)
	require.NotNil(t, view.ResolvedAt)

	// Resolving again is idempotent and keeps the original attribution.
	body, _ = json.Marshal(models.AttributionRequest{Agent: "agent-10"})
	w = serveWithID(handler.ResolveSignal, http.MethodPost, "/signals/"+sig.ID+"/resolve", body)

	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "agent-9", view.ResolvedBy)
}

func TestBoardHandler_Evaporate(t *testing.T) {
	past := time.Now().Add(-1000 * time.Hour)
	clock := past
	handler, b := newBoardHandlerForTest(t, board.WithClock(func() time.Time { return clock }))

	emitTestSignal(t, b, signal.TypeNeed, "services/payment")
	clock = time.Now() // decayed far below threshold

	req := httptest.NewRequest(http.MethodPost, "/api/v1/evaporate", nil)
	w := httptest.NewRecorder()
	handler.Evaporate(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report board.EvaporationReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Archived)
	assert.Equal(t, 0, report.Visible)
	assert.Equal(t, 1, report.ByLocation["services/payment"])
}

func TestBoardHandler_Landscape(t *testing.T) {
	handler, b := newBoardHandlerForTest(t)

	emitTestSignal(t, b, signal.TypeNeed, "services/payment")
	emitTestSignal(t, b, signal.TypeNeed, "services/payment")
	emitTestSignal(t, b, signal.TypeBlock, "services/auth")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/landscape", nil)
	w := httptest.NewRecorder()
	handler.Landscape(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp models.LandscapeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Locations["services/payment"][signal.TypeNeed])
	assert.Equal(t, 1, resp.Locations["services/auth"][signal.TypeBlock])
}

func TestBoardHandler_Trails_RequiresLocation(t *testing.T) {
	handler, _ := newBoardHandlerForTest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/trails", nil)
	w := httptest.NewRecorder()
	handler.Trails(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBoardHandler_Trails(t *testing.T) {
	handler, b := newBoardHandlerForTest(t)

	sig := emitTestSignal(t, b, signal.TypeComplete, "services/payment")
	_, err := b.Resolve(context.Background(), sig.ID, "agent-1")
	require.NoError(t, err)
	emitTestSignal(t, b, signal.TypeNeed, "services/payment")
	emitTestSignal(t, b, signal.TypeNeed, "services/auth")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/trails?location=services/payment", nil)
	w := httptest.NewRecorder()
	handler.Trails(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp models.SignalListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	// Trails include terminated signals, oldest first.
	require.Equal(t, 2, resp.Total)
	assert.True(t, resp.Signals[0].Resolved)
}

func TestBoardHandler_Stats(t *testing.T) {
	handler, b := newBoardHandlerForTest(t)

	emitTestSignal(t, b, signal.TypeNeed, "services/payment")
	sig := emitTestSignal(t, b, signal.TypeBlock, "services/auth")
	_, err := b.Resolve(context.Background(), sig.ID, "agent-1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	w := httptest.NewRecorder()
	handler.Stats(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var stats board.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 1, stats.Resolved)
}

func TestBoardHandler_Patterns(t *testing.T) {
	handler, b := newBoardHandlerForTest(t)

	// Three signals in one location: hot zone.
	emitTestSignal(t, b, signal.TypeNeed, "services/payment")
	emitTestSignal(t, b, signal.TypeAlert, "services/payment")
	emitTestSignal(t, b, signal.TypeProgress, "services/payment")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patterns", nil)
	w := httptest.NewRecorder()
	handler.Patterns(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Patterns []board.Pattern `json:"patterns"`
		Total    int             `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Patterns)
	assert.Equal(t, board.PatternHotZone, resp.Patterns[0].Kind)
	assert.Equal(t, "services/payment", resp.Patterns[0].Location)
}
