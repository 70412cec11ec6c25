package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stigmer/stigmer/pkg/signal"
	"github.com/stigmer/stigmer/pkg/storage"
)

func testStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(&Config{Path: filepath.Join(t.TempDir(), "board.json")})
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSignal(id string) *signal.Signal {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &signal.Signal{
		ID:               id,
		Type:             signal.TypeAlert,
		Location:         "db",
		Text:             "replication lag",
		Agent:            "worker-a",
		BaseIntensity:    1.0,
		CreatedAt:        created,
		LastReinforcedAt: created,
	}
}

// TestFileStoreSuite runs the full store conformance suite against FileStore.
func TestFileStoreSuite(t *testing.T) {
	suite := &storage.StoreTestSuite{
		NewStore: func(t *testing.T) storage.Store {
			return testStore(t)
		},
	}

	suite.RunAllTests(t)
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.json")
	ctx := context.Background()

	first, err := NewFileStore(&Config{Path: path})
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := first.Append(ctx, testSignal("sig-1")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	first.Close()

	second, err := NewFileStore(&Config{Path: path})
	if err != nil {
		t.Fatalf("NewFileStore (reopen): %v", err)
	}
	defer second.Close()

	got, err := second.Get(ctx, "sig-1")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Location != "db" || got.Type != signal.TypeAlert {
		t.Errorf("record changed across instances: %+v", got)
	}
}

func TestFileStore_TwoInstancesShareDocument(t *testing.T) {
	// Two stores over the same path model two independent processes.
	path := filepath.Join(t.TempDir(), "board.json")
	ctx := context.Background()

	a, err := NewFileStore(&Config{Path: path})
	if err != nil {
		t.Fatalf("NewFileStore a: %v", err)
	}
	defer a.Close()
	b, err := NewFileStore(&Config{Path: path})
	if err != nil {
		t.Fatalf("NewFileStore b: %v", err)
	}
	defer b.Close()

	if err := a.Append(ctx, testSignal("from-a")); err != nil {
		t.Fatalf("Append via a: %v", err)
	}
	if err := b.Append(ctx, testSignal("from-b")); err != nil {
		t.Fatalf("Append via b: %v", err)
	}

	all, err := a.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected both writers' signals to persist, got %d", len(all))
	}
}

func TestFileStore_MissingDocumentIsEmptyBoard(t *testing.T) {
	s := testStore(t)

	all, err := s.All(context.Background())
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected empty board, got %d signals", len(all))
	}

	_, err = s.Get(context.Background(), "anything")
	var nf *storage.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestFileStore_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := NewFileStore(&Config{Path: path})
	if err == nil {
		t.Fatal("expected error opening corrupt store")
	}
	var corrupt *storage.CorruptStoreError
	if !errors.As(err, &corrupt) {
		t.Errorf("expected CorruptStoreError, got %T: %v", err, err)
	}
}

func TestFileStore_LockTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.json")
	s, err := NewFileStore(&Config{
		Path:              path,
		LockTimeout:       50 * time.Millisecond,
		LockRetryInterval: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer s.Close()

	// Simulate another process holding the lock.
	if err := os.WriteFile(path+".lock", []byte("held\n"), 0o644); err != nil {
		t.Fatalf("WriteFile lock: %v", err)
	}
	defer os.Remove(path + ".lock")

	err = s.Append(context.Background(), testSignal("sig-1"))
	if err == nil {
		t.Fatal("expected lock timeout")
	}
	var timeout *storage.LockTimeoutError
	if !errors.As(err, &timeout) {
		t.Errorf("expected LockTimeoutError, got %T: %v", err, err)
	}
}

func TestFileStore_LockReleasedAfterMutation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.json")
	s, err := NewFileStore(&Config{Path: path})
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer s.Close()

	if err := s.Append(context.Background(), testSignal("sig-1")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if _, err := os.Stat(path + ".lock"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected lockfile to be removed, stat err = %v", err)
	}
}

func TestFileStore_LockWaitHonorsContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.json")
	s, err := NewFileStore(&Config{
		Path:              path,
		LockTimeout:       10 * time.Second,
		LockRetryInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer s.Close()

	if err := os.WriteFile(path+".lock", []byte("held\n"), 0o644); err != nil {
		t.Fatalf("WriteFile lock: %v", err)
	}
	defer os.Remove(path + ".lock")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = s.Append(ctx, testSignal("sig-1"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context deadline error, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("lock wait ignored context cancellation")
	}
}

func TestFileStore_NoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "board.json")
	s, err := NewFileStore(&Config{Path: path})
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := s.Append(ctx, testSignal(string(rune('a'+i)))); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, entry := range entries {
		if entry.Name() != "board.json" {
			t.Errorf("unexpected leftover file: %s", entry.Name())
		}
	}
}

func TestNewFileStore_RequiresPath(t *testing.T) {
	if _, err := NewFileStore(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := NewFileStore(&Config{}); err == nil {
		t.Error("expected error for empty path")
	}
}
