package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stigmer/stigmer/pkg/signal"
)

// StoreTestSuite defines a conformance suite that can be run against any
// Store implementation.
type StoreTestSuite struct {
	NewStore func(t *testing.T) Store
}

// RunAllTests runs the full conformance suite against the provided store.
func (s *StoreTestSuite) RunAllTests(t *testing.T) {
	t.Run("AppendAndGet", s.TestAppendAndGet)
	t.Run("RoundTripFidelity", s.TestRoundTripFidelity)
	t.Run("DuplicateID", s.TestDuplicateID)
	t.Run("GetNotFound", s.TestGetNotFound)
	t.Run("Update", s.TestUpdate)
	t.Run("UpdateNotFound", s.TestUpdateNotFound)
	t.Run("UpdateMutatorErrorAborts", s.TestUpdateMutatorErrorAborts)
	t.Run("AllIncludesTerminated", s.TestAllIncludesTerminated)
	t.Run("Sweep", s.TestSweep)
	t.Run("SweepErrorAborts", s.TestSweepErrorAborts)
	t.Run("ConcurrentAppends", s.TestConcurrentAppends)
	t.Run("ConcurrentUpdates", s.TestConcurrentUpdates)
}

// testSignal builds a fully populated record. Timestamps carry no monotonic
// component so persisted copies compare with Equal.
func testSignal(id string) *signal.Signal {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &signal.Signal{
		ID:                 id,
		Type:               signal.TypeNeed,
		Location:           "pkg/auth",
		Text:               "needs integration tests",
		Agent:              "worker-a",
		Tags:               []string{"testing", "auth"},
		BaseIntensity:      1.0,
		CreatedAt:          created,
		LastReinforcedAt:   created,
		ReinforcementCount: 0,
	}
}

// TestAppendAndGet tests basic insert and lookup.
func (s *StoreTestSuite) TestAppendAndGet(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()

	ctx := context.Background()
	sig := testSignal("sig-1")

	if err := store.Append(ctx, sig); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := store.Get(ctx, "sig-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != sig.ID {
		t.Errorf("expected ID %s, got %s", sig.ID, got.ID)
	}
	if got.Type != sig.Type {
		t.Errorf("expected Type %s, got %s", sig.Type, got.Type)
	}
	if got.Location != sig.Location {
		t.Errorf("expected Location %s, got %s", sig.Location, got.Location)
	}

	// Mutating the returned value must not touch stored state.
	got.Text = "changed"
	again, err := store.Get(ctx, "sig-1")
	if err != nil {
		t.Fatalf("Get (second) failed: %v", err)
	}
	if again.Text != sig.Text {
		t.Error("store leaked a mutable reference to its record")
	}
}

// TestRoundTripFidelity verifies that every field survives a store round trip.
func (s *StoreTestSuite) TestRoundTripFidelity(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()

	ctx := context.Background()
	resolvedAt := time.Date(2025, 6, 3, 8, 30, 0, 0, time.UTC)
	sig := testSignal("sig-full")
	sig.Type = signal.TypeBlock
	sig.BaseIntensity = 0.37
	sig.LastReinforcedAt = sig.CreatedAt.Add(6 * time.Hour)
	sig.ReinforcementCount = 2
	sig.Reinforcements = []signal.Reinforcement{
		{Agent: "worker-b", At: sig.CreatedAt.Add(3 * time.Hour)},
		{Agent: "worker-c", At: sig.CreatedAt.Add(6 * time.Hour)},
	}
	sig.Resolved = true
	sig.ResolvedAt = &resolvedAt
	sig.ResolvedBy = "worker-d"
	sig.Archived = true

	if err := store.Append(ctx, sig); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := store.Get(ctx, "sig-full")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got.ID != sig.ID || got.Type != sig.Type || got.Location != sig.Location ||
		got.Text != sig.Text || got.Agent != sig.Agent {
		t.Errorf("identity fields changed in round trip: %+v", got)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "testing" || got.Tags[1] != "auth" {
		t.Errorf("tags changed in round trip: %v", got.Tags)
	}
	if got.BaseIntensity != 0.37 {
		t.Errorf("expected base intensity 0.37, got %f", got.BaseIntensity)
	}
	if !got.CreatedAt.Equal(sig.CreatedAt) {
		t.Errorf("created_at changed: %v vs %v", got.CreatedAt, sig.CreatedAt)
	}
	if !got.LastReinforcedAt.Equal(sig.LastReinforcedAt) {
		t.Errorf("last_reinforced_at changed: %v vs %v", got.LastReinforcedAt, sig.LastReinforcedAt)
	}
	if got.ReinforcementCount != 2 || len(got.Reinforcements) != 2 {
		t.Errorf("reinforcement history changed: count=%d len=%d", got.ReinforcementCount, len(got.Reinforcements))
	}
	if got.Reinforcements[1].Agent != "worker-c" || !got.Reinforcements[1].At.Equal(sig.Reinforcements[1].At) {
		t.Errorf("reinforcement entry changed: %+v", got.Reinforcements[1])
	}
	if !got.Resolved || got.ResolvedAt == nil || !got.ResolvedAt.Equal(resolvedAt) || got.ResolvedBy != "worker-d" {
		t.Errorf("resolution fields changed: %+v", got)
	}
	if !got.Archived {
		t.Error("archived flag changed in round trip")
	}
}

// TestDuplicateID tests that re-appending an existing id fails.
func (s *StoreTestSuite) TestDuplicateID(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.Append(ctx, testSignal("sig-dup")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	err := store.Append(ctx, testSignal("sig-dup"))
	if err == nil {
		t.Fatal("expected error appending duplicate id")
	}
	var dup *DuplicateIDError
	if !errors.As(err, &dup) {
		t.Errorf("expected DuplicateIDError, got %T: %v", err, err)
	}
}

// TestGetNotFound tests the typed miss error.
func (s *StoreTestSuite) TestGetNotFound(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()

	_, err := store.Get(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for missing signal")
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError, got %T: %v", err, err)
	}
	if nf != nil && nf.ID != "missing" {
		t.Errorf("expected error to carry id, got %q", nf.ID)
	}
}

// TestUpdate tests that a mutator's changes persist.
func (s *StoreTestSuite) TestUpdate(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.Append(ctx, testSignal("sig-up")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	updated, err := store.Update(ctx, "sig-up", func(sig *signal.Signal) error {
		sig.BaseIntensity = 0.6
		sig.ReinforcementCount++
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.BaseIntensity != 0.6 || updated.ReinforcementCount != 1 {
		t.Errorf("Update returned stale record: %+v", updated)
	}

	got, err := store.Get(ctx, "sig-up")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.BaseIntensity != 0.6 || got.ReinforcementCount != 1 {
		t.Errorf("Update did not persist: %+v", got)
	}
}

// TestUpdateNotFound tests Update on an unknown id.
func (s *StoreTestSuite) TestUpdateNotFound(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()

	_, err := store.Update(context.Background(), "missing", func(sig *signal.Signal) error {
		return nil
	})
	if err == nil {
		t.Fatal("expected error updating missing signal")
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError, got %T: %v", err, err)
	}
}

// TestUpdateMutatorErrorAborts tests that a failing mutator persists nothing.
func (s *StoreTestSuite) TestUpdateMutatorErrorAborts(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.Append(ctx, testSignal("sig-abort")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	wantErr := fmt.Errorf("mutator rejected")
	_, err := store.Update(ctx, "sig-abort", func(sig *signal.Signal) error {
		sig.BaseIntensity = 0.1
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected mutator error to pass through, got %v", err)
	}

	got, err := store.Get(ctx, "sig-abort")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.BaseIntensity != 1.0 {
		t.Errorf("aborted update leaked a change: intensity %f", got.BaseIntensity)
	}
}

// TestAllIncludesTerminated tests that All returns resolved and archived
// records alongside active ones.
func (s *StoreTestSuite) TestAllIncludesTerminated(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()

	ctx := context.Background()
	active := testSignal("sig-active")

	resolved := testSignal("sig-resolved")
	resolved.Resolved = true
	resolvedAt := resolved.CreatedAt.Add(time.Hour)
	resolved.ResolvedAt = &resolvedAt

	archived := testSignal("sig-archived")
	archived.Archived = true

	for _, sig := range []*signal.Signal{active, resolved, archived} {
		if err := store.Append(ctx, sig); err != nil {
			t.Fatalf("Append %s failed: %v", sig.ID, err)
		}
	}

	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 signals, got %d", len(all))
	}
}

// TestSweep tests the bulk read-modify-write pass.
func (s *StoreTestSuite) TestSweep(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		sig := testSignal(fmt.Sprintf("sig-%d", i))
		sig.BaseIntensity = float64(i) * 0.25 // 0, 0.25, 0.5, 0.75
		if err := store.Append(ctx, sig); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	changed, err := store.Sweep(ctx, func(sig *signal.Signal) (bool, error) {
		if sig.BaseIntensity < 0.5 {
			sig.Archived = true
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if changed != 2 {
		t.Errorf("expected 2 changed records, got %d", changed)
	}

	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	archivedCount := 0
	for _, sig := range all {
		if sig.Archived {
			archivedCount++
		}
	}
	if archivedCount != 2 {
		t.Errorf("expected 2 archived records persisted, got %d", archivedCount)
	}
}

// TestSweepErrorAborts tests that a failing sweep persists nothing.
func (s *StoreTestSuite) TestSweepErrorAborts(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := store.Append(ctx, testSignal(fmt.Sprintf("sig-%d", i))); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	wantErr := fmt.Errorf("sweep rejected")
	_, err := store.Sweep(ctx, func(sig *signal.Signal) (bool, error) {
		sig.Archived = true
		return true, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected sweep error to pass through, got %v", err)
	}

	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	for _, sig := range all {
		if sig.Archived {
			t.Errorf("aborted sweep leaked a change into %s", sig.ID)
		}
	}
}

// TestConcurrentAppends tests that no concurrent emit is lost.
func (s *StoreTestSuite) TestConcurrentAppends(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()

	ctx := context.Background()
	const n = 10

	var wg sync.WaitGroup
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if err := store.Append(ctx, testSignal(fmt.Sprintf("sig-%d", idx))); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("concurrent append failed: %v", err)
	}

	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != n {
		t.Errorf("expected %d signals after concurrent appends, got %d", n, len(all))
	}
}

// TestConcurrentUpdates tests that updates serialize with no lost writes.
func (s *StoreTestSuite) TestConcurrentUpdates(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.Append(ctx, testSignal("sig-shared")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	const n = 10
	var wg sync.WaitGroup
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, "sig-shared", func(sig *signal.Signal) error {
				sig.ReinforcementCount++
				return nil
			})
			if err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("concurrent update failed: %v", err)
	}

	got, err := store.Get(ctx, "sig-shared")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ReinforcementCount != n {
		t.Errorf("expected %d reinforcements after concurrent updates, got %d", n, got.ReinforcementCount)
	}
}
