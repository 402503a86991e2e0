// Package kvstore is the §4.1 KV store façade: one writer, many readers,
// over a single memory-mapped B-tree file. The teacher (blaze) keeps its
// InvertedIndex entirely in RAM behind a sync.Mutex; this package gives
// every derived database (§3) a durable, transactional home instead,
// using go.etcd.io/bbolt the way the pack's bleve-adjacent manifests
// (Aman-CERP-amanmcp, nishad-srake) pull it in for exactly this role.
package kvstore

import (
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// Sentinel errors, in the teacher's package-level-var style (ErrNoPostingList, ...).
var (
	ErrStoreFull     = errors.New("kvstore: map size limit reached, reopen with a larger cap")
	ErrTooManyReader = errors.New("kvstore: max reader count reached")
	ErrClosed        = errors.New("kvstore: store is closed")
)

// Options configures Open.
type Options struct {
	// MapSize is passed to bbolt as its initial mmap size in bytes. It is
	// not enforced as a cap: Open checks no size limit, and no write
	// returns ErrStoreFull because the data file outgrew MapSize.
	MapSize int64
	// MaxReaders bounds concurrently open read transactions. bbolt does
	// not itself cap reader goroutines; we track and enforce it here so
	// the façade contract matches the spec regardless of backend.
	MaxReaders int
	ReadOnly   bool
}

// DefaultOptions mirrors typical embedded-store defaults.
func DefaultOptions() Options {
	return Options{
		MapSize:    1 << 30, // 1 GiB
		MaxReaders: 126,
	}
}

// Store is the KV environment. It owns the mmap file exclusively; every
// Txn borrows from it and must not outlive it.
type Store struct {
	db         *bolt.DB
	maxReaders int
	readers    chan struct{}
}

// Open creates or opens the store directory's data file.
func Open(path string, opts Options) (*Store, error) {
	if opts.MaxReaders <= 0 {
		opts.MaxReaders = DefaultOptions().MaxReaders
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{
		ReadOnly:        opts.ReadOnly,
		InitialMmapSize: int(opts.MapSize),
	})
	if err != nil {
		return nil, fmt.Errorf("kvstore: open: %w", err)
	}
	return &Store{
		db:         db,
		maxReaders: opts.MaxReaders,
		readers:    make(chan struct{}, opts.MaxReaders),
	}, nil
}

// Close releases the mmap environment. No transaction may be in flight.
func (s *Store) Close() error {
	if s.db == nil {
		return ErrClosed
	}
	return s.db.Close()
}

// Txn wraps a bbolt transaction with the bucket-per-database access the
// rest of the engine expects.
type Txn struct {
	tx       *bolt.Tx
	writable bool
	store    *Store
}

// BeginRead opens a read-only snapshot transaction. Readers never block
// writers and vice versa (bbolt's MVCC page model); the snapshot is
// consistent as of the most recently committed write.
func (s *Store) BeginRead() (*Txn, error) {
	select {
	case s.readers <- struct{}{}:
	default:
		return nil, ErrTooManyReader
	}
	tx, err := s.db.Begin(false)
	if err != nil {
		<-s.readers
		return nil, fmt.Errorf("kvstore: begin read: %w", err)
	}
	return &Txn{tx: tx, writable: false, store: s}, nil
}

// BeginWrite opens the single writable transaction. bbolt serializes
// writers internally (a second concurrent BeginWrite blocks until the
// first commits or rolls back), which is exactly the "at most one write
// transaction at a time" contract of §4.1.
func (s *Store) BeginWrite() (*Txn, error) {
	tx, err := s.db.Begin(true)
	if err != nil {
		if errors.Is(err, bolt.ErrDatabaseNotOpen) {
			return nil, ErrStoreFull
		}
		return nil, fmt.Errorf("kvstore: begin write: %w", err)
	}
	return &Txn{tx: tx, writable: true, store: s}, nil
}

// Commit finalizes a write transaction, or releases a read transaction's
// reader slot. A committed write only becomes visible to subsequently
// opened read transactions.
func (t *Txn) Commit() error {
	if !t.writable {
		<-t.store.readers
		return t.tx.Rollback()
	}
	if err := t.tx.Commit(); err != nil {
		if errors.Is(err, bolt.ErrDatabaseNotOpen) {
			return ErrStoreFull
		}
		return fmt.Errorf("kvstore: commit: %w", err)
	}
	return nil
}

// Abort discards the transaction without applying any mutation.
func (t *Txn) Abort() error {
	if !t.writable {
		<-t.store.readers
	}
	return t.tx.Rollback()
}

// Database is a named typed bucket inside the environment (word_docids,
// facet_id_f64_docids, documents, ...). Values are opaque byte strings;
// codecs for composite keys live next to each consuming package.
type Database struct {
	txn  *Txn
	name []byte
}

// Database opens (creating if absent and the txn is writable) the named
// bucket.
func (t *Txn) Database(name string) (*Database, error) {
	nb := []byte(name)
	if t.writable {
		b, err := t.tx.CreateBucketIfNotExists(nb)
		if err != nil {
			return nil, fmt.Errorf("kvstore: create bucket %s: %w", name, err)
		}
		_ = b
		return &Database{txn: t, name: nb}, nil
	}
	if t.tx.Bucket(nb) == nil {
		return &Database{txn: t, name: nb}, nil // empty read view, bucket may not exist yet
	}
	return &Database{txn: t, name: nb}, nil
}

func (d *Database) bucket() *bolt.Bucket {
	if d.txn.writable {
		b, err := d.txn.tx.CreateBucketIfNotExists(d.name)
		if err != nil {
			return nil
		}
		return b
	}
	return d.txn.tx.Bucket(d.name)
}

// Get returns the value for key, or nil if absent.
func (d *Database) Get(key []byte) []byte {
	b := d.bucket()
	if b == nil {
		return nil
	}
	v := b.Get(key)
	if v == nil {
		return nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

// Put writes key→value. Only valid on a writable transaction.
func (d *Database) Put(key, value []byte) error {
	if !d.txn.writable {
		return errors.New("kvstore: put on read-only transaction")
	}
	b := d.bucket()
	if err := b.Put(key, value); err != nil {
		if errors.Is(err, bolt.ErrDatabaseNotOpen) {
			return ErrStoreFull
		}
		return err
	}
	return nil
}

// Delete removes key, no-op if absent.
func (d *Database) Delete(key []byte) error {
	if !d.txn.writable {
		return errors.New("kvstore: delete on read-only transaction")
	}
	b := d.bucket()
	return b.Delete(key)
}

// Range walks all key/value pairs in key order, stopping early if fn
// returns false.
func (d *Database) Range(fn func(key, value []byte) bool) {
	b := d.bucket()
	if b == nil {
		return
	}
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if !fn(k, v) {
			return
		}
	}
}

// PrefixRange walks all key/value pairs whose key starts with prefix.
func (d *Database) PrefixRange(prefix []byte, fn func(key, value []byte) bool) {
	b := d.bucket()
	if b == nil {
		return
	}
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
		if !fn(k, v) {
			return
		}
	}
}

// RangeFrom walks key/value pairs starting at the first key >= from.
func (d *Database) RangeFrom(from []byte, fn func(key, value []byte) bool) {
	b := d.bucket()
	if b == nil {
		return
	}
	c := b.Cursor()
	for k, v := c.Seek(from); k != nil; k, v = c.Next() {
		if !fn(k, v) {
			return
		}
	}
}

func hasPrefix(key, prefix []byte) bool {
	if len(key) < len(prefix) {
		return false
	}
	for i := range prefix {
		if key[i] != prefix[i] {
			return false
		}
	}
	return true
}
