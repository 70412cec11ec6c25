// Package board implements the pheromone coordination board: the command
// surface (emit, amplify, resolve, evaporate), the query engine (sense,
// landscape, trails, stats), and the pattern detector. Workers coordinate
// indirectly by reading and writing signals here instead of messaging each
// other.
package board

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/stigmer/stigmer/pkg/signal"
	"github.com/stigmer/stigmer/pkg/storage"
)

// DefaultAmplifyDelta is the intensity bump applied by each amplification.
const DefaultAmplifyDelta = 0.2

// Board is the command and query surface over a signal store. All state
// lives in the store; the board itself holds only configuration, so any
// number of boards (in any number of processes) may share one store.
type Board struct {
	store   storage.Store
	decay   signal.DecayModel
	delta   float64
	now     func() time.Time
	logger  boardLogger
	metrics MetricsRecorder

	loop loopState
}

// boardLogger is the minimal logger interface used by the board.
type boardLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...any) {}
func (nopLogger) Info(msg string, args ...any)  {}
func (nopLogger) Warn(msg string, args ...any)  {}
func (nopLogger) Error(msg string, args ...any) {}

// MetricsRecorder receives board activity for instrumentation.
type MetricsRecorder interface {
	RecordSignalEmitted(signalType string)
	RecordSignalAmplified(signalType string)
	RecordSignalResolved(signalType string)
	RecordEvaporation(archived int, visible int, duration time.Duration)
	RecordLockTimeout(operation string)
}

type nopMetrics struct{}

func (nopMetrics) RecordSignalEmitted(signalType string)                         {}
func (nopMetrics) RecordSignalAmplified(signalType string)                       {}
func (nopMetrics) RecordSignalResolved(signalType string)                        {}
func (nopMetrics) RecordEvaporation(archived int, visible int, d time.Duration)  {}
func (nopMetrics) RecordLockTimeout(operation string)                            {}

// Option is a functional option for configuring a Board.
type Option func(*Board)

// WithDecay sets the decay parameters (half-life hours and detection
// threshold). Non-positive values fall back to the defaults.
func WithDecay(halfLifeHours, detectionThreshold float64) Option {
	return func(b *Board) {
		b.decay = signal.NewDecayModel(halfLifeHours, detectionThreshold)
	}
}

// WithAmplifyDelta sets the intensity bump per amplification.
func WithAmplifyDelta(delta float64) Option {
	return func(b *Board) {
		if delta > 0 && delta <= 1 {
			b.delta = delta
		}
	}
}

// WithLogger sets the board logger.
func WithLogger(logger boardLogger) Option {
	return func(b *Board) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics MetricsRecorder) Option {
	return func(b *Board) {
		if metrics != nil {
			b.metrics = metrics
		}
	}
}

// WithClock overrides the board's time source. Used by tests to pin "now".
func WithClock(now func() time.Time) Option {
	return func(b *Board) {
		if now != nil {
			b.now = now
		}
	}
}

// New creates a Board over the given store.
func New(store storage.Store, opts ...Option) *Board {
	b := &Board{
		store:   store,
		decay:   signal.NewDecayModel(signal.DefaultHalfLifeHours, signal.DefaultDetectionThreshold),
		delta:   DefaultAmplifyDelta,
		now:     time.Now,
		logger:  nopLogger{},
		metrics: nopMetrics{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Decay exposes the board's decay model so read-side callers (handlers,
// tooling) can compute effective intensities consistently.
func (b *Board) Decay() signal.DecayModel {
	return b.decay
}

// Get returns a signal by id, terminated or not.
func (b *Board) Get(ctx context.Context, id string) (*signal.Signal, error) {
	sig, err := b.store.Get(ctx, id)
	if err != nil {
		return nil, b.observe("get", err)
	}
	return sig, nil
}

// Emit creates a new signal at full intensity and appends it to the store.
func (b *Board) Emit(ctx context.Context, sigType signal.Type, location, text, agent string, tags []string) (*signal.Signal, error) {
	if !sigType.IsValid() {
		return nil, &ValidationError{Field: "type", Reason: "unknown signal type " + string(sigType)}
	}
	if location == "" {
		return nil, &ValidationError{Field: "location", Reason: "must not be empty"}
	}
	if text == "" {
		return nil, &ValidationError{Field: "text", Reason: "must not be empty"}
	}

	now := b.now()
	sig := &signal.Signal{
		ID:               uuid.New().String(),
		Type:             sigType,
		Location:         location,
		Text:             text,
		Agent:            agent,
		Tags:             append([]string(nil), tags...),
		BaseIntensity:    1.0,
		CreatedAt:        now,
		LastReinforcedAt: now,
	}

	if err := b.store.Append(ctx, sig); err != nil {
		return nil, b.observe("emit", err)
	}

	b.metrics.RecordSignalEmitted(string(sigType))
	b.logger.Debug("signal emitted",
		"id", sig.ID,
		"type", sig.Type,
		"location", sig.Location,
		"agent", sig.Agent,
	)
	return sig, nil
}

// Amplify reinforces a signal. The new base intensity is computed from the
// signal's current effective intensity, not the stale stored base, so
// reinforcing a heavily decayed signal restores it partially instead of
// stacking on an outdated value. Resolved and archived signals cannot be
// amplified.
func (b *Board) Amplify(ctx context.Context, id, agent string) (*signal.Signal, error) {
	now := b.now()
	updated, err := b.store.Update(ctx, id, func(sig *signal.Signal) error {
		if sig.Terminated() {
			return &AlreadyResolvedError{ID: sig.ID}
		}
		effective := b.decay.Effective(sig, now)
		sig.BaseIntensity = min(1.0, effective+b.delta)
		sig.LastReinforcedAt = now
		sig.ReinforcementCount++
		sig.Reinforcements = append(sig.Reinforcements, signal.Reinforcement{Agent: agent, At: now})
		return nil
	})
	if err != nil {
		return nil, b.observe("amplify", err)
	}

	b.metrics.RecordSignalAmplified(string(updated.Type))
	b.logger.Debug("signal amplified",
		"id", updated.ID,
		"agent", agent,
		"base_intensity", updated.BaseIntensity,
		"reinforcement_count", updated.ReinforcementCount,
	)
	return updated, nil
}

// Resolve terminates a signal by caller decision. Resolving an already
// resolved signal is a no-op, not an error, and leaves the original
// resolution record untouched.
func (b *Board) Resolve(ctx context.Context, id, agent string) (*signal.Signal, error) {
	now := b.now()
	resolvedNow := false
	updated, err := b.store.Update(ctx, id, func(sig *signal.Signal) error {
		if sig.Resolved {
			return nil
		}
		at := now
		sig.Resolved = true
		sig.ResolvedAt = &at
		sig.ResolvedBy = agent
		resolvedNow = true
		return nil
	})
	if err != nil {
		return nil, b.observe("resolve", err)
	}

	if resolvedNow {
		b.metrics.RecordSignalResolved(string(updated.Type))
		b.logger.Debug("signal resolved", "id", updated.ID, "agent", agent)
	}
	return updated, nil
}

// EvaporationReport summarizes one evaporation sweep.
type EvaporationReport struct {
	// Archived is the number of signals newly archived by this sweep.
	Archived int `json:"archived"`

	// ByLocation breaks newly archived signals down by location.
	ByLocation map[string]int `json:"by_location,omitempty"`

	// Visible is the number of signals still visible after the sweep.
	Visible int `json:"visible"`

	// SweptAt is when the sweep ran.
	SweptAt time.Time `json:"swept_at"`
}

// Evaporate archives every unterminated signal whose effective intensity has
// fallen below the detection threshold. The whole pass is one atomic
// read-modify-write, so it can never interleave with another mutation.
// Idempotent: with no intervening writes a second sweep archives nothing.
func (b *Board) Evaporate(ctx context.Context) (*EvaporationReport, error) {
	now := b.now()
	start := time.Now()

	byLocation := make(map[string]int)
	visible := 0
	archived, err := b.store.Sweep(ctx, func(sig *signal.Signal) (bool, error) {
		if sig.Terminated() {
			return false, nil
		}
		if b.decay.Effective(sig, now) < b.decay.DetectionThreshold() {
			sig.Archived = true
			byLocation[sig.Location]++
			return true, nil
		}
		visible++
		return false, nil
	})
	if err != nil {
		return nil, b.observe("evaporate", err)
	}

	b.metrics.RecordEvaporation(archived, visible, time.Since(start))
	if archived > 0 {
		b.logger.Info("evaporation sweep archived signals",
			"archived", archived,
			"visible", visible,
			"locations", len(byLocation),
		)
	}
	return &EvaporationReport{
		Archived:   archived,
		ByLocation: byLocation,
		Visible:    visible,
		SweptAt:    now,
	}, nil
}

// observe records lock timeouts for instrumentation and passes the error
// through unchanged.
func (b *Board) observe(operation string, err error) error {
	var lt *storage.LockTimeoutError
	if errors.As(err, &lt) {
		b.metrics.RecordLockTimeout(operation)
		b.logger.Warn("store lock timeout", "operation", operation, "timeout", lt.Timeout)
	}
	return err
}

// sortByLocationThenNewest orders signals by location ascending, then
// created_at descending within a location. Ids break exact-timestamp ties so
// the order is deterministic.
func sortByLocationThenNewest(sigs []*signal.Signal) {
	sort.Slice(sigs, func(i, j int) bool {
		if sigs[i].Location != sigs[j].Location {
			return sigs[i].Location < sigs[j].Location
		}
		if !sigs[i].CreatedAt.Equal(sigs[j].CreatedAt) {
			return sigs[i].CreatedAt.After(sigs[j].CreatedAt)
		}
		return sigs[i].ID < sigs[j].ID
	})
}
