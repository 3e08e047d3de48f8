// Package kv defines chronodb's ordered, byte-keyed KV store contract:
// get, put, delete, a seekable iterator, an atomic write-batch, and
// snapshot isolation for readers. Every index space in pkg/index and the
// object store in pkg/objectstore are built entirely on this
// interface; pkg/kv/boltkv supplies the only production
// implementation, backed by go.etcd.io/bbolt.
package kv

import "context"

// OpKind identifies the mutation an Op performs within a WriteBatch.
type OpKind uint8

const (
	OpPut OpKind = iota
	OpDelete
)

// Op is one mutation in an atomic WriteBatch.
type Op struct {
	Kind  OpKind
	Key   []byte
	Value []byte // ignored for OpDelete
}

// Store is the ordered KV contract every index space and the object
// store are built on. Keys sort lexicographically by byte value;
// callers rely on this for every prefix-scan query in pkg/index.
type Store interface {
	// Get returns the value for key, or (nil, false) if absent.
	Get(ctx context.Context, key []byte) ([]byte, bool, error)

	// Put writes key/value directly, bypassing WriteBatch. Used only
	// for operations that are not required to be atomic with other
	// writes (e.g. one-off administrative writes); the indexer's
	// commit path always goes through WriteBatch.
	Put(ctx context.Context, key, value []byte) error

	// Delete removes key, a no-op if it is already absent.
	Delete(ctx context.Context, key []byte) error

	// WriteBatch applies ops atomically: all or nothing. This is the
	// indexer's sole commit primitive: a single KV batch per
	// consume-and-index call, covering index mutations and both topic
	// offsets together.
	WriteBatch(ctx context.Context, ops []Op) error

	// NewSnapshot opens a consistent, read-only view of the store as
	// of this call. The snapshot must be closed by the caller. Queries
	// use this for MVCC isolation from concurrent indexer writes:
	// readers always see a consistent snapshot.
	NewSnapshot() (Snapshot, error)

	// NewIterator opens a seekable iterator scoped to the live store
	// (not a snapshot). Used internally by components that always
	// want the latest committed state.
	NewIterator() (Iterator, error)

	Close() error
}

// Snapshot is a point-in-time, read-only view of the store.
type Snapshot interface {
	Get(key []byte) ([]byte, bool, error)
	NewIterator() (Iterator, error)
	Close() error
}

// Iterator walks keys in lexicographic order. A freshly opened
// iterator is unpositioned; callers must call Seek or SeekLast before
// Next/Prev or reading Key/Value.
type Iterator interface {
	// Seek positions the iterator at the first key >= seek, or
	// invalidates it if no such key exists.
	Seek(key []byte) bool

	// SeekLast positions the iterator at the last key in the store,
	// or invalidates it if the store is empty. Used for reverse
	// range scans such as "most recent entry at or before X".
	SeekLast() bool

	Next() bool
	Prev() bool

	// Valid reports whether Key/Value may be called.
	Valid() bool

	Key() []byte
	Value() []byte

	Close() error
}
