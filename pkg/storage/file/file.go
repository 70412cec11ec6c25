// Package file implements the signal store as a single JSON document on
// disk. Every mutation rewrites the whole document through a temp file and
// an atomic rename, so concurrent readers never observe a partial write.
// Writers coordinate through an exclusive lockfile with a bounded wait.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/stigmer/stigmer/pkg/signal"
	"github.com/stigmer/stigmer/pkg/storage"
)

// Default lock parameters.
const (
	DefaultLockTimeout       = 5 * time.Second
	DefaultLockRetryInterval = 25 * time.Millisecond

	maxLockRetryInterval = 250 * time.Millisecond
	documentVersion      = 1
)

// Config holds file store configuration.
type Config struct {
	// Path is the location of the board document.
	Path string

	// LockTimeout bounds how long a mutation waits for the exclusive
	// lock before failing with LockTimeoutError.
	LockTimeout time.Duration

	// LockRetryInterval is the initial delay between lock attempts. The
	// delay grows with jittered backoff up to a small cap.
	LockRetryInterval time.Duration
}

// document is the persisted representation: the single source of truth.
type document struct {
	Version int              `json:"version"`
	Signals []*signal.Signal `json:"signals"`
}

// FileStore implements storage.Store over a single JSON document.
//
// The store keeps no in-memory record cache: every operation re-reads the
// latest persisted snapshot, so independent processes sharing the document
// always observe each other's writes.
type FileStore struct {
	path     string
	lockPath string
	timeout  time.Duration
	retry    time.Duration
}

// NewFileStore creates a file-backed store at cfg.Path. The parent directory
// is created if needed, and an existing document is parsed once up front so
// corruption surfaces at startup rather than on first use.
func NewFileStore(cfg *Config) (*FileStore, error) {
	if cfg == nil || cfg.Path == "" {
		return nil, fmt.Errorf("file store path is required")
	}

	timeout := cfg.LockTimeout
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	retry := cfg.LockRetryInterval
	if retry <= 0 {
		retry = DefaultLockRetryInterval
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, &storage.StorageUnavailableError{Cause: err}
	}

	s := &FileStore{
		path:     cfg.Path,
		lockPath: cfg.Path + ".lock",
		timeout:  timeout,
		retry:    retry,
	}

	if _, err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Append inserts a new signal.
func (s *FileStore) Append(ctx context.Context, sig *signal.Signal) error {
	release, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	defer release()

	doc, err := s.load()
	if err != nil {
		return err
	}
	for _, existing := range doc.Signals {
		if existing.ID == sig.ID {
			return &storage.DuplicateIDError{ID: sig.ID}
		}
	}

	doc.Signals = append(doc.Signals, sig.Clone())
	return s.persist(doc)
}

// Get retrieves a signal by id from the latest persisted snapshot. Reads do
// not take the writer lock: the atomic rename guarantees a consistent
// document either way.
func (s *FileStore) Get(ctx context.Context, id string) (*signal.Signal, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, sig := range doc.Signals {
		if sig.ID == id {
			return sig, nil
		}
	}
	return nil, &storage.NotFoundError{ID: id}
}

// Update loads the signal under the lock, applies the mutator, and persists
// the updated document. A mutator error aborts with nothing written.
func (s *FileStore) Update(ctx context.Context, id string, mutate func(*signal.Signal) error) (*signal.Signal, error) {
	release, err := s.acquireLock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	for i, sig := range doc.Signals {
		if sig.ID != id {
			continue
		}
		updated := sig.Clone()
		if err := mutate(updated); err != nil {
			return nil, err
		}
		doc.Signals[i] = updated
		if err := s.persist(doc); err != nil {
			return nil, err
		}
		return updated.Clone(), nil
	}
	return nil, &storage.NotFoundError{ID: id}
}

// All returns every signal from the latest persisted snapshot.
func (s *FileStore) All(ctx context.Context) ([]*signal.Signal, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	return doc.Signals, nil
}

// Sweep applies the mutator to every signal under a single lock hold, so the
// pass can never interleave with another mutation. The document is rewritten
// once, and only when at least one record changed.
func (s *FileStore) Sweep(ctx context.Context, mutate func(*signal.Signal) (bool, error)) (int, error) {
	release, err := s.acquireLock(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	doc, err := s.load()
	if err != nil {
		return 0, err
	}

	changed := 0
	updated := make([]*signal.Signal, len(doc.Signals))
	for i, sig := range doc.Signals {
		working := sig.Clone()
		didChange, err := mutate(working)
		if err != nil {
			return 0, err
		}
		if didChange {
			changed++
		}
		updated[i] = working
	}

	if changed == 0 {
		return 0, nil
	}
	doc.Signals = updated
	if err := s.persist(doc); err != nil {
		return 0, err
	}
	return changed, nil
}

// Close releases store resources. Operations are self-contained, so there is
// nothing to tear down.
func (s *FileStore) Close() error {
	return nil
}

// Path returns the document location.
func (s *FileStore) Path() string {
	return s.path
}

// load reads and parses the persisted document. A missing or empty file is
// an empty board; an unparsable one is CorruptStoreError.
func (s *FileStore) load() (*document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &document{Version: documentVersion}, nil
	}
	if err != nil {
		return nil, &storage.StorageUnavailableError{Cause: err}
	}
	if len(data) == 0 {
		return &document{Version: documentVersion}, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &storage.CorruptStoreError{Path: s.path, Cause: err}
	}
	if doc.Version == 0 {
		doc.Version = documentVersion
	}
	return &doc, nil
}

// persist writes the document to a temp file in the same directory, syncs
// it, and renames it over the store path.
func (s *FileStore) persist(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &storage.SerializationError{Operation: "persist", Cause: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".board-*.tmp")
	if err != nil {
		return &storage.StorageUnavailableError{Cause: err}
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &storage.StorageUnavailableError{Cause: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &storage.StorageUnavailableError{Cause: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &storage.StorageUnavailableError{Cause: err}
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return &storage.StorageUnavailableError{Cause: err}
	}
	return nil
}

// acquireLock takes the exclusive lockfile, retrying with jittered backoff
// until the configured timeout. The returned release func removes the lock.
func (s *FileStore) acquireLock(ctx context.Context) (func(), error) {
	deadline := time.Now().Add(s.timeout)
	delay := s.retry

	for {
		f, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d %s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339Nano))
			f.Close()
			return func() { os.Remove(s.lockPath) }, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, &storage.StorageUnavailableError{Cause: err}
		}

		if time.Now().After(deadline) {
			return nil, &storage.LockTimeoutError{Path: s.lockPath, Timeout: s.timeout}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(withJitter(delay)):
		}

		delay *= 2
		if delay > maxLockRetryInterval {
			delay = maxLockRetryInterval
		}
	}
}

// withJitter spreads contending waiters so they do not retry in lockstep.
func withJitter(d time.Duration) time.Duration {
	return d + time.Duration(rand.Int63n(int64(d)/2+1))
}
