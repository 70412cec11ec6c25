// Package signal defines the pheromone record shared by every layer of the
// board: the Signal type, its closed kind set, and the decay model that turns
// a stored record into a current effective intensity.
package signal

import (
	"time"
)

// Type identifies the kind of coordination a signal expresses.
type Type string

// The closed set of signal types. A signal's type is fixed at emission.
const (
	TypeNeed        Type = "NEED"
	TypeAlert       Type = "ALERT"
	TypeOpportunity Type = "OPPORTUNITY"
	TypeProgress    Type = "PROGRESS"
	TypeComplete    Type = "COMPLETE"
	TypeBlock       Type = "BLOCK"
)

// Types returns all valid signal types.
func Types() []Type {
	return []Type{
		TypeNeed,
		TypeAlert,
		TypeOpportunity,
		TypeProgress,
		TypeComplete,
		TypeBlock,
	}
}

// IsValid reports whether t is one of the known signal types.
func (t Type) IsValid() bool {
	switch t {
	case TypeNeed, TypeAlert, TypeOpportunity, TypeProgress, TypeComplete, TypeBlock:
		return true
	}
	return false
}

// Reinforcement records a single amplification for audit purposes.
// It does not participate in decay math.
type Reinforcement struct {
	// Agent is the party that amplified the signal.
	Agent string `json:"agent"`

	// At is when the amplification happened.
	At time.Time `json:"at"`
}

// Signal is a single pheromone on the board.
type Signal struct {
	// ID is the unique identifier, assigned at emission. IDs are never
	// reused, including by archived signals.
	ID string `json:"id"`

	// Type is the signal kind. Immutable after creation.
	Type Type `json:"type"`

	// Location is the zone or topic the signal concerns (e.g. a module
	// path). Immutable. All aggregate views group by it.
	Location string `json:"location"`

	// Text is the human-readable description. Immutable.
	Text string `json:"text"`

	// Agent identifies the emitting party. Free-form, not authenticated.
	Agent string `json:"agent"`

	// Tags are free-form labels used only for filtering.
	Tags []string `json:"tags,omitempty"`

	// BaseIntensity is the intensity at creation or last reinforcement.
	// Always within [0,1].
	BaseIntensity float64 `json:"base_intensity"`

	// CreatedAt is the first emission time. Immutable.
	CreatedAt time.Time `json:"created_at"`

	// LastReinforcedAt is the decay reference point. Equals CreatedAt
	// until the first amplification.
	LastReinforcedAt time.Time `json:"last_reinforced_at"`

	// ReinforcementCount is the number of amplifications received.
	ReinforcementCount int `json:"reinforcement_count"`

	// Reinforcements is the audit trail of amplifications.
	Reinforcements []Reinforcement `json:"reinforcements,omitempty"`

	// Resolved marks caller-driven termination.
	Resolved bool `json:"resolved"`

	// ResolvedAt is set when Resolved becomes true.
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	// ResolvedBy is the agent that resolved the signal.
	ResolvedBy string `json:"resolved_by,omitempty"`

	// Archived marks system-driven termination: the effective intensity
	// fell below the detection threshold during an evaporation sweep.
	Archived bool `json:"archived"`
}

// Terminated reports whether the signal has left the active set,
// either by explicit resolution or by archival.
func (s *Signal) Terminated() bool {
	return s.Resolved || s.Archived
}

// Clone returns a deep copy so callers can never mutate stored state.
func (s *Signal) Clone() *Signal {
	if s == nil {
		return nil
	}
	clone := *s
	if s.Tags != nil {
		clone.Tags = append([]string(nil), s.Tags...)
	}
	if s.Reinforcements != nil {
		clone.Reinforcements = append([]Reinforcement(nil), s.Reinforcements...)
	}
	if s.ResolvedAt != nil {
		at := *s.ResolvedAt
		clone.ResolvedAt = &at
	}
	return &clone
}
