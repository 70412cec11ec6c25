package board

import (
	"context"
	"sort"
	"strings"

	"github.com/stigmer/stigmer/pkg/signal"
)

// Filter narrows a Sense query. Zero-value fields match everything.
type Filter struct {
	// Type restricts results to one signal type.
	Type signal.Type

	// LocationSubstring matches signals whose location contains it.
	LocationSubstring string

	// Agent restricts results to one emitting agent.
	Agent string
}

func (f Filter) matches(sig *signal.Signal) bool {
	if f.Type != "" && sig.Type != f.Type {
		return false
	}
	if f.LocationSubstring != "" && !strings.Contains(sig.Location, f.LocationSubstring) {
		return false
	}
	if f.Agent != "" && sig.Agent != f.Agent {
		return false
	}
	return true
}

// Sense returns every visible signal matching all supplied filters, ordered
// by location ascending and then newest first within a location. An empty
// result is not an error.
func (b *Board) Sense(ctx context.Context, filter Filter) ([]*signal.Signal, error) {
	all, err := b.store.All(ctx)
	if err != nil {
		return nil, err
	}

	now := b.now()
	matched := make([]*signal.Signal, 0, len(all))
	for _, sig := range all {
		if !b.decay.Visible(sig, now) {
			continue
		}
		if filter.matches(sig) {
			matched = append(matched, sig)
		}
	}

	sortByLocationThenNewest(matched)
	return matched, nil
}

// Landscape aggregates the currently visible signals into a map from
// location to per-type counts.
func (b *Board) Landscape(ctx context.Context) (map[string]map[signal.Type]int, error) {
	all, err := b.store.All(ctx)
	if err != nil {
		return nil, err
	}

	now := b.now()
	landscape := make(map[string]map[signal.Type]int)
	for _, sig := range all {
		if !b.decay.Visible(sig, now) {
			continue
		}
		counts := landscape[sig.Location]
		if counts == nil {
			counts = make(map[signal.Type]int)
			landscape[sig.Location] = counts
		}
		counts[sig.Type]++
	}
	return landscape, nil
}

// Trails returns the full chronological history for one location, including
// archived and resolved signals, ordered by creation time ascending. This is
// the only view that includes terminated signals: trail analysis needs the
// whole history.
func (b *Board) Trails(ctx context.Context, location string) ([]*signal.Signal, error) {
	all, err := b.store.All(ctx)
	if err != nil {
		return nil, err
	}

	trail := make([]*signal.Signal, 0)
	for _, sig := range all {
		if sig.Location == location {
			trail = append(trail, sig)
		}
	}
	sortByCreation(trail)
	return trail, nil
}

// Stats holds descriptive counters over the whole store.
type Stats struct {
	// Total is the number of signals ever recorded.
	Total int `json:"total"`

	// Active is the number of currently visible signals.
	Active int `json:"active"`

	// Resolved and Archived count terminated signals.
	Resolved int `json:"resolved"`
	Archived int `json:"archived"`

	// ByType and ByLocation count all records, terminated included.
	ByType     map[signal.Type]int `json:"by_type"`
	ByLocation map[string]int      `json:"by_location"`
}

// Stats computes counters on demand from the full record set.
func (b *Board) Stats(ctx context.Context) (*Stats, error) {
	all, err := b.store.All(ctx)
	if err != nil {
		return nil, err
	}

	now := b.now()
	stats := &Stats{
		ByType:     make(map[signal.Type]int),
		ByLocation: make(map[string]int),
	}
	for _, sig := range all {
		stats.Total++
		stats.ByType[sig.Type]++
		stats.ByLocation[sig.Location]++
		if sig.Resolved {
			stats.Resolved++
		}
		if sig.Archived {
			stats.Archived++
		}
		if b.decay.Visible(sig, now) {
			stats.Active++
		}
	}
	return stats, nil
}

// sortByCreation orders signals by creation time ascending, ids breaking
// exact-timestamp ties.
func sortByCreation(sigs []*signal.Signal) {
	sort.Slice(sigs, func(i, j int) bool {
		if !sigs[i].CreatedAt.Equal(sigs[j].CreatedAt) {
			return sigs[i].CreatedAt.Before(sigs[j].CreatedAt)
		}
		return sigs[i].ID < sigs[j].ID
	})
}
