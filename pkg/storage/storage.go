// Package storage provides persistent storage abstraction for board signals.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/stigmer/stigmer/pkg/signal"
)

// Store defines the interface for persistent signal storage.
//
// Every mutating call is atomic with respect to concurrent callers: either
// the whole updated record set becomes the new persisted state, or nothing
// does. The persisted representation is the single source of truth;
// implementations must not serve reads from caches that can diverge from it.
type Store interface {
	// Append inserts a new signal. Fails with *DuplicateIDError if the id
	// is already present, including on resolved and archived records.
	Append(ctx context.Context, sig *signal.Signal) error

	// Get returns the signal with the given id, or *NotFoundError.
	Get(ctx context.Context, id string) (*signal.Signal, error)

	// Update loads the signal, applies the mutator, and persists the
	// result atomically. A mutator error aborts the write and is returned
	// unchanged. Fails with *NotFoundError if the id is absent.
	Update(ctx context.Context, id string, mutate func(*signal.Signal) error) (*signal.Signal, error)

	// All returns every signal in the store, including resolved and
	// archived records, in unspecified order.
	All(ctx context.Context) ([]*signal.Signal, error)

	// Sweep applies the mutator to every signal in one atomic
	// read-modify-write pass and returns how many records the mutator
	// reported as changed. A mutator error aborts the pass with nothing
	// persisted.
	Sweep(ctx context.Context, mutate func(*signal.Signal) (bool, error)) (int, error)

	// Close releases backend resources.
	Close() error
}

// NotFoundError indicates that no signal with the requested id exists.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("signal not found: %s", e.ID)
}

// DuplicateIDError indicates an append with an id that already exists.
// Ids are generated, so this signals an id-generation bug rather than a
// recoverable caller mistake.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("signal id already exists: %s", e.ID)
}

// LockTimeoutError indicates that the exclusive store lock could not be
// acquired within the configured wait. Transient: callers may retry with
// backoff.
type LockTimeoutError struct {
	Path    string
	Timeout time.Duration
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("store lock not acquired within %s: %s", e.Timeout, e.Path)
}

// CorruptStoreError indicates that the persisted document failed to parse.
// Fatal: the board refuses to proceed rather than silently dropping data.
type CorruptStoreError struct {
	Path  string
	Cause error
}

func (e *CorruptStoreError) Error() string {
	return fmt.Sprintf("corrupt store at %s: %v", e.Path, e.Cause)
}

func (e *CorruptStoreError) Unwrap() error {
	return e.Cause
}

// StorageUnavailableError indicates that the storage backend could not be
// opened or reached.
type StorageUnavailableError struct {
	Cause error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable: %v", e.Cause)
}

func (e *StorageUnavailableError) Unwrap() error {
	return e.Cause
}

// SerializationError indicates a failure encoding or decoding a record.
type SerializationError struct {
	Operation string
	Cause     error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization error during %s: %v", e.Operation, e.Cause)
}

func (e *SerializationError) Unwrap() error {
	return e.Cause
}
