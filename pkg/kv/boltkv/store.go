// Package boltkv implements pkg/kv.Store on top of go.etcd.io/bbolt,
// chronodb's only production ordered-KV backend. bbolt's B+tree pages
// are already sorted by key byte value and its read transactions are
// consistent MVCC snapshots taken at Begin time, which is exactly
// what pkg/kv.Snapshot needs — this implementation is mostly a thin
// adapter over *bolt.Tx and *bolt.Cursor.
//
// Its bucket-management pattern — CreateBucketIfNotExists at open,
// db.Update/db.View per operation — uses a single flat bucket holding
// chronodb's entire tag-prefixed index keyspace, rather than one
// bucket per entity type.
package boltkv

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/cuemby/chronodb/pkg/kv"
	bolt "go.etcd.io/bbolt"
)

// rootBucket holds the entire flat keyspace: all five index spaces
// plus the object store and meta offsets live here, disambiguated by
// their leading tag byte (pkg/index's key layout) — a single ordered
// KV store carved up by key prefix rather than by bucket.
var rootBucket = []byte("chronodb")

// Store is a bbolt-backed kv.Store.
type Store struct {
	db *bolt.DB
}

var _ kv.Store = (*Store)(nil)

// Open creates or opens a bbolt database file under dataDir.
func Open(dataDir string) (*Store, error) {
	path := filepath.Join(dataDir, "chronodb.db")
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltkv: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltkv: create root bucket: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	var out []byte
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(rootBucket).Get(key)
		if v == nil {
			return nil
		}
		found = true
		out = append([]byte(nil), v...)
		return nil
	})
	return out, found, err
}

func (s *Store) Put(_ context.Context, key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(rootBucket).Put(key, value)
	})
}

func (s *Store) Delete(_ context.Context, key []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(rootBucket).Delete(key)
	})
}

// WriteBatch applies ops inside a single bbolt read-write transaction,
// so either all of them land or, on any error, none do — the atomic
// commit primitive the indexer relies on for its per-transaction
// index-mutations-plus-offsets batch.
func (s *Store) WriteBatch(_ context.Context, ops []kv.Op) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(rootBucket)
		for _, op := range ops {
			switch op.Kind {
			case kv.OpPut:
				if err := b.Put(op.Key, op.Value); err != nil {
					return err
				}
			case kv.OpDelete:
				if err := b.Delete(op.Key); err != nil {
					return err
				}
			default:
				return fmt.Errorf("boltkv: unknown op kind %d", op.Kind)
			}
		}
		return nil
	})
}

func (s *Store) NewSnapshot() (kv.Snapshot, error) {
	tx, err := s.db.Begin(false)
	if err != nil {
		return nil, fmt.Errorf("boltkv: begin snapshot: %w", err)
	}
	return &snapshot{tx: tx}, nil
}

func (s *Store) NewIterator() (kv.Iterator, error) {
	tx, err := s.db.Begin(false)
	if err != nil {
		return nil, fmt.Errorf("boltkv: begin iterator: %w", err)
	}
	return newIterator(tx), nil
}

type snapshot struct {
	tx *bolt.Tx
}

func (s *snapshot) Get(key []byte) ([]byte, bool, error) {
	v := s.tx.Bucket(rootBucket).Get(key)
	if v == nil {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *snapshot) NewIterator() (kv.Iterator, error) {
	return newCursorIterator(s.tx.Bucket(rootBucket).Cursor()), nil
}

func (s *snapshot) Close() error {
	return s.tx.Rollback()
}

// iterator owns the read transaction it was opened from and rolls it
// back on Close, releasing the snapshot bbolt held for it.
type iterator struct {
	tx *bolt.Tx
	*cursorIterator
}

func newIterator(tx *bolt.Tx) *iterator {
	return &iterator{
		tx:             tx,
		cursorIterator: newCursorIterator(tx.Bucket(rootBucket).Cursor()),
	}
}

func (it *iterator) Close() error {
	return it.tx.Rollback()
}

// cursorIterator adapts a *bolt.Cursor to kv.Iterator. bbolt cursors
// return key==nil to mean "out of range" in every direction, which
// this wraps into the Valid()/bool-returning-positioner shape callers
// of pkg/kv expect.
type cursorIterator struct {
	c        *bolt.Cursor
	key, val []byte
	valid    bool
}

func newCursorIterator(c *bolt.Cursor) *cursorIterator {
	return &cursorIterator{c: c}
}

func (it *cursorIterator) set(k, v []byte) bool {
	if k == nil {
		it.valid = false
		it.key, it.val = nil, nil
		return false
	}
	it.valid = true
	it.key = append([]byte(nil), k...)
	if v != nil {
		it.val = append([]byte(nil), v...)
	} else {
		it.val = nil
	}
	return true
}

func (it *cursorIterator) Seek(key []byte) bool {
	return it.set(it.c.Seek(key))
}

func (it *cursorIterator) SeekLast() bool {
	return it.set(it.c.Last())
}

func (it *cursorIterator) Next() bool {
	return it.set(it.c.Next())
}

func (it *cursorIterator) Prev() bool {
	return it.set(it.c.Prev())
}

func (it *cursorIterator) Valid() bool   { return it.valid }
func (it *cursorIterator) Key() []byte   { return it.key }
func (it *cursorIterator) Value() []byte { return it.val }

// Close is a no-op for a bare cursor iterator: the owning transaction
// (held by *iterator or *snapshot) controls the underlying handle's
// lifetime.
func (it *cursorIterator) Close() error { return nil }
