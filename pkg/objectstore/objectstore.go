// Package objectstore implements an object store: a
// content-hash -> document-bytes mapping layered directly over
// pkg/kv using the index-0 key space from pkg/index.
package objectstore

import (
	"context"
	"fmt"

	"github.com/cuemby/chronodb/pkg/document"
	"github.com/cuemby/chronodb/pkg/index"
	"github.com/cuemby/chronodb/pkg/kv"
)

// Store wraps a kv.Store for content-addressed document bytes.
type Store struct {
	kv kv.Store
}

func New(store kv.Store) *Store {
	return &Store{kv: store}
}

// Put writes bytes under content. Idempotent: overwriting the same
// content-hash with the same bytes, as happens on doc-topic replay,
// is a semantic no-op.
func (s *Store) Put(ctx context.Context, content document.ContentHash, raw []byte) error {
	return s.kv.Put(ctx, index.ObjectKey(content), raw)
}

// Get returns the stored bytes for content, or (nil, false) if the
// hash has been evicted or was never observed (e.g. log compaction
// removed a stale record before this replica consumed it).
func (s *Store) Get(ctx context.Context, content document.ContentHash) ([]byte, bool, error) {
	v, ok, err := s.kv.Get(ctx, index.ObjectKey(content))
	if err != nil {
		return nil, false, fmt.Errorf("objectstore: get %s: %w", content, err)
	}
	return v, ok, nil
}

// Has reports whether content is present without copying its bytes.
func (s *Store) Has(ctx context.Context, content document.ContentHash) (bool, error) {
	_, ok, err := s.Get(ctx, content)
	return ok, err
}

// Delete removes every hash in hashes, used by eviction.
func (s *Store) Delete(ctx context.Context, hashes []document.ContentHash) error {
	for _, h := range hashes {
		if err := s.kv.Delete(ctx, index.ObjectKey(h)); err != nil {
			return fmt.Errorf("objectstore: delete %s: %w", h, err)
		}
	}
	return nil
}
