package board

import (
	"context"
	"sort"

	"github.com/stigmer/stigmer/pkg/signal"
)

// PatternKind names a detected coordination pattern.
type PatternKind string

const (
	// PatternHotZone is a location with at least 3 visible signals.
	PatternHotZone PatternKind = "hot_zone"

	// PatternColdZone is a location with history but no visible signals.
	PatternColdZone PatternKind = "cold_zone"

	// PatternConvergence is a location where at least 2 distinct agents
	// have visible signals.
	PatternConvergence PatternKind = "convergence"

	// PatternBottleneck is a location with at least 2 visible BLOCK
	// signals.
	PatternBottleneck PatternKind = "bottleneck"

	// PatternRelay is a COMPLETE signal immediately followed, in its
	// location's creation-order trail, by a NEED or PROGRESS signal from a
	// different agent: one worker picked up where another left off.
	PatternRelay PatternKind = "relay"
)

// Pattern is one detected coordination pattern with the signal ids that
// evidence it.
type Pattern struct {
	Kind     PatternKind `json:"kind"`
	Location string      `json:"location"`
	Evidence []string    `json:"evidence"`
}

// Thresholds for the zone patterns.
const (
	hotZoneMinSignals    = 3
	convergenceMinAgents = 2
	bottleneckMinBlocks  = 2
)

// kindRank fixes the report order of pattern kinds.
var kindRank = map[PatternKind]int{
	PatternHotZone:     0,
	PatternConvergence: 1,
	PatternBottleneck:  2,
	PatternColdZone:    3,
	PatternRelay:       4,
}

// DetectPatterns runs the read-only analysis pass: hot zones, convergence,
// and bottlenecks over the currently visible set; cold zones and relays over
// the full per-location history. Output order is deterministic: by kind,
// then location, then evidence.
func (b *Board) DetectPatterns(ctx context.Context) ([]Pattern, error) {
	all, err := b.store.All(ctx)
	if err != nil {
		return nil, err
	}

	now := b.now()

	// Group the full history by location in creation order; the visible
	// subset drives the zone patterns.
	trails := make(map[string][]*signal.Signal)
	for _, sig := range all {
		trails[sig.Location] = append(trails[sig.Location], sig)
	}

	var patterns []Pattern
	for location, trail := range trails {
		sortByCreation(trail)

		var visible []*signal.Signal
		for _, sig := range trail {
			if b.decay.Visible(sig, now) {
				visible = append(visible, sig)
			}
		}

		if p, ok := detectHotZone(location, visible); ok {
			patterns = append(patterns, p)
		}
		if p, ok := detectConvergence(location, visible); ok {
			patterns = append(patterns, p)
		}
		if p, ok := detectBottleneck(location, visible); ok {
			patterns = append(patterns, p)
		}
		if len(visible) == 0 {
			patterns = append(patterns, Pattern{
				Kind:     PatternColdZone,
				Location: location,
				Evidence: ids(trail),
			})
		}
		patterns = append(patterns, detectRelays(location, trail)...)
	}

	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Kind != patterns[j].Kind {
			return kindRank[patterns[i].Kind] < kindRank[patterns[j].Kind]
		}
		if patterns[i].Location != patterns[j].Location {
			return patterns[i].Location < patterns[j].Location
		}
		return lessEvidence(patterns[i].Evidence, patterns[j].Evidence)
	})
	return patterns, nil
}

func detectHotZone(location string, visible []*signal.Signal) (Pattern, bool) {
	if len(visible) < hotZoneMinSignals {
		return Pattern{}, false
	}
	return Pattern{Kind: PatternHotZone, Location: location, Evidence: ids(visible)}, true
}

func detectConvergence(location string, visible []*signal.Signal) (Pattern, bool) {
	if len(visible) < 2 {
		return Pattern{}, false
	}
	agents := make(map[string]struct{})
	for _, sig := range visible {
		agents[sig.Agent] = struct{}{}
	}
	if len(agents) < convergenceMinAgents {
		return Pattern{}, false
	}
	return Pattern{Kind: PatternConvergence, Location: location, Evidence: ids(visible)}, true
}

func detectBottleneck(location string, visible []*signal.Signal) (Pattern, bool) {
	var blocks []*signal.Signal
	for _, sig := range visible {
		if sig.Type == signal.TypeBlock {
			blocks = append(blocks, sig)
		}
	}
	if len(blocks) < bottleneckMinBlocks {
		return Pattern{}, false
	}
	return Pattern{Kind: PatternBottleneck, Location: location, Evidence: ids(blocks)}, true
}

// detectRelays scans adjacent pairs of a location's creation-order trail.
// Terminated signals participate: a relay is a historical fact about the
// trail, not about current visibility.
func detectRelays(location string, trail []*signal.Signal) []Pattern {
	var relays []Pattern
	for i := 0; i+1 < len(trail); i++ {
		handoff := trail[i]
		pickup := trail[i+1]
		if handoff.Type != signal.TypeComplete {
			continue
		}
		if pickup.Type != signal.TypeNeed && pickup.Type != signal.TypeProgress {
			continue
		}
		if pickup.Agent == handoff.Agent {
			continue
		}
		relays = append(relays, Pattern{
			Kind:     PatternRelay,
			Location: location,
			Evidence: []string{handoff.ID, pickup.ID},
		})
	}
	return relays
}

func ids(sigs []*signal.Signal) []string {
	out := make([]string, len(sigs))
	for i, sig := range sigs {
		out[i] = sig.ID
	}
	return out
}

func lessEvidence(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
