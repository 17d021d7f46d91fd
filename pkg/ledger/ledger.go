// Package ledger provides the BadgerDB-backed per-order balance store.
//
// Every multi-fill order owns one balance row per token it trades. Rows
// are read individually during program execution and written back in a
// single atomic batch when a mutating call succeeds.
package ledger

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/fortiblox/swapvm/internal/types"
	"github.com/fortiblox/swapvm/pkg/vm"
	"github.com/holiman/uint256"
)

// Key prefixes for BadgerDB storage.
var (
	// prefixBalance is the prefix for balance rows.
	// Key format: prefixBalance + order hash (32 bytes) + token tail (10 bytes)
	prefixBalance = []byte{0x01}
)

var (
	// ErrClosed is returned when the store has been closed.
	ErrClosed = errors.New("ledger store closed")

	// ErrBadValue is returned when a stored balance has the wrong size.
	ErrBadValue = errors.New("ledger value is not 32 bytes")
)

// Config contains configuration for the balance store.
type Config struct {
	// Path is the directory path for the database.
	Path string

	// InMemory runs the database in memory (for testing).
	InMemory bool

	// SyncWrites ensures writes are synced to disk before Commit returns.
	// Balance rows are settlement state, so this defaults to true.
	SyncWrites bool

	// NumCompactors is the number of compaction workers.
	NumCompactors int

	// ValueLogFileSize is the size of each value log file.
	ValueLogFileSize int64

	// Logger is an optional logger. Set to nil to disable badger logging.
	Logger badger.Logger
}

// DefaultConfig returns the default store configuration.
func DefaultConfig(path string) Config {
	return Config{
		Path:             path,
		InMemory:         false,
		SyncWrites:       true,
		NumCompactors:    4,
		ValueLogFileSize: 64 << 20, // balance rows are tiny; keep vlog files small
		Logger:           nil,
	}
}

// Store is the BadgerDB-backed balance ledger. It implements vm.Ledger
// for the read side; the write side is Commit, which the node calls
// while holding the order's exclusive lock.
type Store struct {
	db     *badger.DB
	closed atomic.Bool
}

// Open opens or creates a balance store.
func Open(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)

	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumCompactors(cfg.NumCompactors).
		WithValueLogFileSize(cfg.ValueLogFileSize).
		WithLogger(cfg.Logger)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// balanceKey returns the BadgerDB key for one (order, token) row.
func balanceKey(order types.Hash, token types.TokenTail) []byte {
	key := make([]byte, 1+types.HashSize+types.TokenTailSize)
	key[0] = prefixBalance[0]
	copy(key[1:], order[:])
	copy(key[1+types.HashSize:], token[:])
	return key
}

// Balance returns the stored balance for (order, token) and whether the
// row exists. Implements vm.Ledger.
func (s *Store) Balance(order types.Hash, token types.TokenTail) (*uint256.Int, bool, error) {
	if s.closed.Load() {
		return nil, false, ErrClosed
	}

	var value *uint256.Int
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(balanceKey(order, token))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 32 {
				return fmt.Errorf("%w: got %d", ErrBadValue, len(val))
			}
			value = new(uint256.Int).SetBytes(val)
			return nil
		})
	})
	if err != nil {
		return nil, false, err
	}
	return value, value != nil, nil
}

// Commit applies a batch of writes in one transaction. Writes are
// applied in order, so a later write to the same key supersedes an
// earlier one (initialization rows overwritten by settlement rows).
// Either every write lands or none does.
func (s *Store) Commit(writes []vm.LedgerWrite) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if len(writes) == 0 {
		return nil
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for _, w := range writes {
			val := w.Value.Bytes32()
			if err := txn.Set(balanceKey(w.Order, w.Token), val[:]); err != nil {
				return err
			}
		}
		return nil
	})
}

// Entry is one token balance of an order.
type Entry struct {
	Token types.TokenTail
	Value *uint256.Int
}

// OrderBalances returns every balance row of an order, in key order.
// A nil slice means the order has never been filled.
func (s *Store) OrderBalances(order types.Hash) ([]Entry, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	prefix := balanceKey(order, types.TokenTail{})[:1+types.HashSize]

	var entries []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.Key()
			tail, err := types.TokenTailFromBytes(key[1+types.HashSize:])
			if err != nil {
				return err
			}
			var value *uint256.Int
			err = item.Value(func(val []byte) error {
				if len(val) != 32 {
					return fmt.Errorf("%w: got %d", ErrBadValue, len(val))
				}
				value = new(uint256.Int).SetBytes(val)
				return nil
			})
			if err != nil {
				return err
			}
			entries = append(entries, Entry{Token: tail, Value: value})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// DeleteOrder removes every balance row of an order. Used when an order
// is cancelled or expired out of the store.
func (s *Store) DeleteOrder(order types.Hash) error {
	if s.closed.Load() {
		return ErrClosed
	}

	entries, err := s.OrderBalances(order)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for _, e := range entries {
			if err := txn.Delete(balanceKey(order, e.Token)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the underlying database. The store is unusable afterwards.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}
