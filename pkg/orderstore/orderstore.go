// Package orderstore provides persistent storage for registered swap orders.
package orderstore

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fortiblox/swapvm/internal/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// ErrOrderNotFound is returned when an order doesn't exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("order store closed")
)

// Bucket names for BoltDB.
var (
	// bucketOrders stores order data keyed by order hash.
	bucketOrders = []byte("orders")

	// bucketByMaker indexes order hashes by maker address.
	// Key format: maker (20 bytes) + order hash (32 bytes), empty value.
	bucketByMaker = []byte("by_maker")

	// bucketByProgram indexes order hashes by program content hash, so
	// orders sharing a program template can be enumerated together.
	// Key format: program id (32 bytes) + order hash (32 bytes), empty value.
	bucketByProgram = []byte("by_program")
)

// Config holds order store configuration options.
type Config struct {
	// Path is the file path for the store database.
	Path string

	// NoSync disables fsync after each write (faster but less durable).
	NoSync bool

	// ReadOnly opens the database in read-only mode.
	ReadOnly bool

	// PruneEnabled enables automatic removal of expired orders.
	PruneEnabled bool

	// PruneInterval is how often to run the pruning routine.
	PruneInterval time.Duration
}

// DefaultConfig returns the default order store configuration.
func DefaultConfig(path string) Config {
	return Config{
		Path:          path,
		NoSync:        false,
		ReadOnly:      false,
		PruneEnabled:  true,
		PruneInterval: 1 * time.Hour,
	}
}

// Store is the BoltDB-backed order store.
type Store struct {
	db     *bolt.DB
	config Config

	mu     sync.RWMutex
	closed bool

	pruneStop chan struct{}
	pruneWG   sync.WaitGroup

	// now is the clock used by pruning; replaceable in tests.
	now func() uint64
}

// Open creates or opens an order store at the given path.
func Open(config Config) (*Store, error) {
	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	opts := &bolt.Options{
		Timeout:  5 * time.Second,
		NoSync:   config.NoSync,
		ReadOnly: config.ReadOnly,
	}
	db, err := bolt.Open(config.Path, 0600, opts)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &Store{
		db:        db,
		config:    config,
		pruneStop: make(chan struct{}),
		now:       func() uint64 { return uint64(time.Now().Unix()) },
	}

	if !config.ReadOnly {
		if err := store.initBuckets(); err != nil {
			db.Close()
			return nil, fmt.Errorf("init buckets: %w", err)
		}
	}

	if config.PruneEnabled && !config.ReadOnly {
		store.startPruning()
	}

	return store, nil
}

// initBuckets creates all required buckets.
func (s *Store) initBuckets() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketOrders, bucketByMaker, bucketByProgram} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

// startPruning starts the background pruning goroutine.
func (s *Store) startPruning() {
	s.pruneWG.Add(1)
	go func() {
		defer s.pruneWG.Done()
		ticker := time.NewTicker(s.config.PruneInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.PruneExpired()
			case <-s.pruneStop:
				return
			}
		}
	}()
}

func encodeOrder(order *types.Order) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(order); err != nil {
		return nil, fmt.Errorf("encode order: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeOrder(data []byte) (*types.Order, error) {
	var order types.Order
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&order); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	return &order, nil
}

func indexKey(prefix []byte, hash types.Hash) []byte {
	key := make([]byte, len(prefix)+types.HashSize)
	copy(key, prefix)
	copy(key[len(prefix):], hash[:])
	return key
}

// Put stores an order. Storing the same order twice is idempotent:
// the hash covers every field, so the record cannot change.
func (s *Store) Put(order *types.Order) (types.Hash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return types.Hash{}, ErrClosed
	}

	if err := order.Validate(); err != nil {
		return types.Hash{}, err
	}

	hash := order.Hash()
	data, err := encodeOrder(order)
	if err != nil {
		return types.Hash{}, err
	}
	programID := order.ProgramID()

	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketOrders).Put(hash[:], data); err != nil {
			return err
		}
		if err := tx.Bucket(bucketByMaker).Put(indexKey(order.Maker[:], hash), nil); err != nil {
			return err
		}
		return tx.Bucket(bucketByProgram).Put(indexKey(programID[:], hash), nil)
	})
	if err != nil {
		return types.Hash{}, err
	}
	return hash, nil
}

// Get retrieves an order by hash.
func (s *Store) Get(hash types.Hash) (*types.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var order *types.Order
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketOrders).Get(hash[:])
		if data == nil {
			return ErrOrderNotFound
		}
		o, err := decodeOrder(data)
		if err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Has reports whether an order exists.
func (s *Store) Has(hash types.Hash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}

	exists := false
	s.db.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket(bucketOrders).Get(hash[:]) != nil
		return nil
	})
	return exists
}

// Delete removes an order and its index entries.
func (s *Store) Delete(hash types.Hash) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return s.deleteLocked(tx, hash)
	})
}

func (s *Store) deleteLocked(tx *bolt.Tx, hash types.Hash) error {
	data := tx.Bucket(bucketOrders).Get(hash[:])
	if data == nil {
		return ErrOrderNotFound
	}
	order, err := decodeOrder(data)
	if err != nil {
		return err
	}

	if err := tx.Bucket(bucketOrders).Delete(hash[:]); err != nil {
		return err
	}
	if err := tx.Bucket(bucketByMaker).Delete(indexKey(order.Maker[:], hash)); err != nil {
		return err
	}
	programID := order.ProgramID()
	return tx.Bucket(bucketByProgram).Delete(indexKey(programID[:], hash))
}

// ByMaker returns the hashes of every order registered by maker, up to
// limit (0 means no limit).
func (s *Store) ByMaker(maker types.Address, limit int) ([]types.Hash, error) {
	return s.scanIndex(bucketByMaker, maker[:], limit)
}

// ByProgram returns the hashes of every order sharing a program content
// hash, up to limit (0 means no limit).
func (s *Store) ByProgram(programID types.Hash, limit int) ([]types.Hash, error) {
	return s.scanIndex(bucketByProgram, programID[:], limit)
}

func (s *Store) scanIndex(bucket, prefix []byte, limit int) ([]types.Hash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var hashes []types.Hash
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			h, err := types.HashFromBytes(k[len(prefix):])
			if err != nil {
				return err
			}
			hashes = append(hashes, h)
			if limit > 0 && len(hashes) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hashes, nil
}

// Count returns the number of stored orders.
func (s *Store) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}

	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(bucketOrders).Stats().KeyN
		return nil
	})
	return count, err
}

// PruneExpired removes every order whose traits expiration has passed,
// returning the number removed.
func (s *Store) PruneExpired() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}

	now := s.now()
	var expired []types.Hash
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOrders).ForEach(func(k, v []byte) error {
			order, err := decodeOrder(v)
			if err != nil {
				return err
			}
			if exp := order.Traits.Expiration(); exp != 0 && now > exp {
				h, err := types.HashFromBytes(k)
				if err != nil {
					return err
				}
				expired = append(expired, h)
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		for _, h := range expired {
			if err := s.deleteLocked(tx, h); err != nil && !errors.Is(err, ErrOrderNotFound) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(expired), nil
}

// Sync flushes the database to disk.
func (s *Store) Sync() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return s.db.Sync()
}

// Close stops pruning and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.pruneStop)
	s.pruneWG.Wait()
	return s.db.Close()
}
