package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stigmer/stigmer/pkg/board"
	"github.com/stigmer/stigmer/pkg/signal"
	"github.com/stigmer/stigmer/pkg/storage/memory"
)

func TestHealthHandler_Health(t *testing.T) {
	b := board.New(memory.NewMemoryStore())
	handler := NewHealthHandler(b)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handler.Health(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Health() status = %v, want %v", w.Code, http.StatusOK)
	}
}

func TestHealthHandler_Ready(t *testing.T) {
	b := board.New(memory.NewMemoryStore())
	handler := NewHealthHandler(b)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()

	handler.Ready(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Ready() status = %v, want %v", w.Code, http.StatusOK)
	}

	var resp map[string]bool
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if !resp["ready"] {
		t.Error("Ready() reported not ready with a working store")
	}
}

func TestHealthHandler_Status(t *testing.T) {
	b := board.New(memory.NewMemoryStore())
	if _, err := b.Emit(context.Background(), signal.TypeNeed, "services/payment", "review needed", "agent-1", nil); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	handler := NewHealthHandler(b)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()

	handler.Status(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status() status = %v, want %v", w.Code, http.StatusOK)
	}

	var resp struct {
		Version map[string]string  `json:"version"`
		Decay   map[string]float64 `json:"decay"`
		Signals board.Stats        `json:"signals"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if resp.Version["version"] == "" {
		t.Error("Status() missing version info")
	}
	if resp.Decay["half_life_hours"] != signal.DefaultHalfLifeHours {
		t.Errorf("Status() half_life_hours = %v, want %v", resp.Decay["half_life_hours"], signal.DefaultHalfLifeHours)
	}
	if resp.Signals.Total != 1 {
		t.Errorf("Status() signals total = %v, want 1", resp.Signals.Total)
	}
}
