package signal

import (
	"math"
	"time"
)

// Default decay parameters.
const (
	DefaultHalfLifeHours      = 72.0
	DefaultDetectionThreshold = 0.05
)

// DecayModel computes effective intensities by exponential half-life decay.
// The model is deterministic and side-effect free; it never mutates a signal.
type DecayModel struct {
	halfLifeHours      float64
	detectionThreshold float64
}

// NewDecayModel creates a decay model. Non-positive parameters fall back to
// the defaults.
func NewDecayModel(halfLifeHours, detectionThreshold float64) DecayModel {
	if halfLifeHours <= 0 {
		halfLifeHours = DefaultHalfLifeHours
	}
	if detectionThreshold <= 0 {
		detectionThreshold = DefaultDetectionThreshold
	}
	return DecayModel{
		halfLifeHours:      halfLifeHours,
		detectionThreshold: detectionThreshold,
	}
}

// HalfLifeHours returns the configured half-life in hours.
func (d DecayModel) HalfLifeHours() float64 {
	return d.halfLifeHours
}

// DetectionThreshold returns the minimum effective intensity at which a
// signal still counts as visible.
func (d DecayModel) DetectionThreshold() float64 {
	return d.detectionThreshold
}

// Effective returns the signal's current intensity:
//
//	base_intensity * 0.5^(age_hours / half_life_hours)
//
// with age measured from LastReinforcedAt.
func (d DecayModel) Effective(s *Signal, now time.Time) float64 {
	ageHours := now.Sub(s.LastReinforcedAt).Hours()
	if ageHours < 0 {
		// Reference points in the future decay from age zero.
		ageHours = 0
	}
	return s.BaseIntensity * math.Pow(0.5, ageHours/d.halfLifeHours)
}

// Visible reports whether the signal is unterminated and its effective
// intensity is still at or above the detection threshold.
func (d DecayModel) Visible(s *Signal, now time.Time) bool {
	if s.Terminated() {
		return false
	}
	return d.Effective(s, now) >= d.detectionThreshold
}
