// Package badger provides a Badger-based implementation of the signal store,
// for single-process boards that outgrow a single JSON document.
package badger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/stigmer/stigmer/pkg/signal"
	"github.com/stigmer/stigmer/pkg/storage"
)

// Config holds configuration for BadgerStore.
type Config struct {
	Path              string
	SyncWrites        bool
	ValueLogFileSize  int64
	NumVersionsToKeep int
}

// BadgerStore implements the storage.Store interface using Badger.
// Badger transactions give each mutation all-or-nothing semantics, and the
// database's directory lock keeps other processes out.
type BadgerStore struct {
	db     *badger.DB
	config *Config
}

// NewBadgerStore creates a new Badger store instance.
func NewBadgerStore(config *Config) (*BadgerStore, error) {
	opts := badger.DefaultOptions(config.Path)
	opts.SyncWrites = config.SyncWrites
	if config.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = config.ValueLogFileSize
	}
	if config.NumVersionsToKeep > 0 {
		opts.NumVersionsToKeep = config.NumVersionsToKeep
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, &storage.StorageUnavailableError{Cause: err}
	}

	return &BadgerStore{
		db:     db,
		config: config,
	}, nil
}

func signalKey(id string) []byte {
	return []byte(fmt.Sprintf("signal:%s", id))
}

var signalPrefix = []byte("signal:")

// Serialization helpers
func serialize(sig *signal.Signal) ([]byte, error) {
	data, err := json.Marshal(sig)
	if err != nil {
		return nil, &storage.SerializationError{
			Operation: "marshal",
			Cause:     err,
		}
	}
	return data, nil
}

func deserialize(data []byte, sig *signal.Signal) error {
	if err := json.Unmarshal(data, sig); err != nil {
		return &storage.SerializationError{
			Operation: "unmarshal",
			Cause:     err,
		}
	}
	return nil
}

// Append inserts a new signal.
func (b *BadgerStore) Append(ctx context.Context, sig *signal.Signal) error {
	data, err := serialize(sig)
	if err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(signalKey(sig.ID))
		if err == nil {
			return &storage.DuplicateIDError{ID: sig.ID}
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(signalKey(sig.ID), data)
	})
}

// Get retrieves a signal by id.
func (b *BadgerStore) Get(ctx context.Context, id string) (*signal.Signal, error) {
	var sig signal.Signal

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(signalKey(id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return &storage.NotFoundError{ID: id}
			}
			return err
		}

		return item.Value(func(val []byte) error {
			return deserialize(val, &sig)
		})
	})

	if err != nil {
		return nil, err
	}

	return &sig, nil
}

// Update loads the signal, applies the mutator, and writes the result back
// inside one transaction. A mutator error rolls the transaction back.
func (b *BadgerStore) Update(ctx context.Context, id string, mutate func(*signal.Signal) error) (*signal.Signal, error) {
	var updated *signal.Signal

	err := b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(signalKey(id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return &storage.NotFoundError{ID: id}
			}
			return err
		}

		var sig signal.Signal
		if err := item.Value(func(val []byte) error {
			return deserialize(val, &sig)
		}); err != nil {
			return err
		}

		if err := mutate(&sig); err != nil {
			return err
		}

		data, err := serialize(&sig)
		if err != nil {
			return err
		}
		if err := txn.Set(signalKey(id), data); err != nil {
			return err
		}

		updated = &sig
		return nil
	})

	if err != nil {
		return nil, err
	}

	return updated, nil
}

// All returns every signal, including resolved and archived records.
func (b *BadgerStore) All(ctx context.Context) ([]*signal.Signal, error) {
	var signals []*signal.Signal

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = signalPrefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var sig signal.Signal
			err := it.Item().Value(func(val []byte) error {
				return deserialize(val, &sig)
			})
			if err != nil {
				return err
			}
			signals = append(signals, &sig)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return signals, nil
}

// Sweep applies the mutator to every signal in a single transaction, so the
// whole pass commits or rolls back as one unit.
func (b *BadgerStore) Sweep(ctx context.Context, mutate func(*signal.Signal) (bool, error)) (int, error) {
	changed := 0

	err := b.db.Update(func(txn *badger.Txn) error {
		changed = 0

		opts := badger.DefaultIteratorOptions
		opts.Prefix = signalPrefix

		it := txn.NewIterator(opts)
		defer it.Close()

		type pending struct {
			key  []byte
			data []byte
		}
		var writes []pending

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			var sig signal.Signal
			if err := item.Value(func(val []byte) error {
				return deserialize(val, &sig)
			}); err != nil {
				return err
			}

			didChange, err := mutate(&sig)
			if err != nil {
				return err
			}
			if !didChange {
				continue
			}

			data, err := serialize(&sig)
			if err != nil {
				return err
			}
			writes = append(writes, pending{key: item.KeyCopy(nil), data: data})
			changed++
		}

		// Writes happen after iteration; badger does not allow Set
		// while an iterator is open on the same transaction.
		it.Close()
		for _, w := range writes {
			if err := txn.Set(w.key, w.data); err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return 0, err
	}

	return changed, nil
}

// Close closes the Badger database.
func (b *BadgerStore) Close() error {
	// Run garbage collection before closing
	if err := b.db.RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
		// Log error but don't fail close
	}

	return b.db.Close()
}
