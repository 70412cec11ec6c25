package memory

import (
	"context"
	"testing"

	"github.com/stigmer/stigmer/pkg/signal"
	"github.com/stigmer/stigmer/pkg/storage"
)

// TestMemoryStoreSuite runs the full store conformance suite against
// MemoryStore.
func TestMemoryStoreSuite(t *testing.T) {
	suite := &storage.StoreTestSuite{
		NewStore: func(t *testing.T) storage.Store {
			return NewMemoryStore()
		},
	}

	suite.RunAllTests(t)
}

func TestMemoryStore_AppendCopiesInput(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	sig := &signal.Signal{
		ID:       "sig-1",
		Type:     signal.TypeNeed,
		Location: "db",
		Text:     "index missing",
		Agent:    "worker-a",
		Tags:     []string{"perf"},
	}
	if err := s.Append(ctx, sig); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// Mutating the caller's value after Append must not affect the store.
	sig.Tags[0] = "changed"
	sig.Text = "changed"

	got, err := s.Get(ctx, "sig-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Tags[0] != "perf" || got.Text != "index missing" {
		t.Errorf("store shared memory with caller's value: %+v", got)
	}
}

func TestMemoryStore_SweepEmptyStore(t *testing.T) {
	s := NewMemoryStore()

	changed, err := s.Sweep(context.Background(), func(sig *signal.Signal) (bool, error) {
		return true, nil
	})
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if changed != 0 {
		t.Errorf("expected 0 changed on empty store, got %d", changed)
	}
}
