// Package models defines API request/response data structures.
package models

import (
	"time"

	"github.com/stigmer/stigmer/pkg/signal"
)

// EmitRequest represents a signal emission request.
type EmitRequest struct {
	// Type is the signal type.
	Type string `json:"type" validate:"required,oneof=NEED ALERT OPPORTUNITY PROGRESS COMPLETE BLOCK" example:"NEED"`

	// Location is the work-area path the signal refers to.
	Location string `json:"location" validate:"required,min=1,max=500" example:"services/payment/schema"`

	// Text is the free-form signal description.
	Text string `json:"text" validate:"required,min=1,max=2000" example:"schema migration needs review"`

	// Agent identifies the emitting worker.
	Agent string `json:"agent" validate:"required,min=1,max=100" example:"agent-7"`

	// Tags holds optional labels.
	Tags []string `json:"tags,omitempty" validate:"omitempty,max=20,dive,min=1,max=50"`
}

// AttributionRequest carries the acting agent for amplify and resolve.
type AttributionRequest struct {
	// Agent identifies the acting worker.
	Agent string `json:"agent" validate:"required,min=1,max=100" example:"agent-3"`
}

// SignalView is a signal as reported to API clients, with the effective
// intensity computed at read time.
type SignalView struct {
	ID                 string                  `json:"id"`
	Type               signal.Type             `json:"type"`
	Location           string                  `json:"location"`
	Text               string                  `json:"text"`
	Agent              string                  `json:"agent"`
	Tags               []string                `json:"tags,omitempty"`
	BaseIntensity      float64                 `json:"base_intensity"`
	EffectiveIntensity float64                 `json:"effective_intensity"`
	CreatedAt          time.Time               `json:"created_at"`
	LastReinforcedAt   time.Time               `json:"last_reinforced_at"`
	ReinforcementCount int                     `json:"reinforcement_count"`
	Reinforcements     []signal.Reinforcement  `json:"reinforcements,omitempty"`
	Resolved           bool                    `json:"resolved"`
	ResolvedAt         *time.Time              `json:"resolved_at,omitempty"`
	ResolvedBy         string                  `json:"resolved_by,omitempty"`
	Archived           bool                    `json:"archived"`
}

// NewSignalView builds a SignalView from a stored signal.
func NewSignalView(sig *signal.Signal, decay signal.DecayModel, now time.Time) SignalView {
	return SignalView{
		ID:                 sig.ID,
		Type:               sig.Type,
		Location:           sig.Location,
		Text:               sig.Text,
		Agent:              sig.Agent,
		Tags:               sig.Tags,
		BaseIntensity:      sig.BaseIntensity,
		EffectiveIntensity: decay.Effective(sig, now),
		CreatedAt:          sig.CreatedAt,
		LastReinforcedAt:   sig.LastReinforcedAt,
		ReinforcementCount: sig.ReinforcementCount,
		Reinforcements:     sig.Reinforcements,
		Resolved:           sig.Resolved,
		ResolvedAt:         sig.ResolvedAt,
		ResolvedBy:         sig.ResolvedBy,
		Archived:           sig.Archived,
	}
}

// NewSignalViews converts a slice of signals, preserving order.
func NewSignalViews(sigs []*signal.Signal, decay signal.DecayModel, now time.Time) []SignalView {
	views := make([]SignalView, 0, len(sigs))
	for _, sig := range sigs {
		views = append(views, NewSignalView(sig, decay, now))
	}
	return views
}

// SignalListResponse represents a list of signals.
type SignalListResponse struct {
	Signals []SignalView `json:"signals"`
	Total   int          `json:"total"`
}

// LandscapeResponse summarizes visible signals per location and type.
type LandscapeResponse struct {
	Locations map[string]map[signal.Type]int `json:"locations"`
}
