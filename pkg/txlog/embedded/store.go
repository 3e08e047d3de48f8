// Package embedded is chronodb's default/dev/test pkg/txlog.Client:
// no external broker, just two bbolt-backed append-only logs on disk.
//
// The tx-topic is backed directly by github.com/hashicorp/raft-boltdb's
// *raftboltdb.BoltStore — repurposed here purely for its
// raft.LogStore shape (FirstIndex/LastIndex/StoreLog/GetLog), never
// through an actual raft.Raft instance. A raft log is already
// strictly monotonic, append-only and never compacted, which is
// exactly tx-topic policy (cleanup.policy=delete,
// retention.ms=-1), so no raft consensus needs to run for this to be
// the right data structure.
//
// The doc-topic is a second, independent bbolt-backed offset log
// (grounded on the same bucket-per-store shape as pkg/kv/boltkv).
// Compaction itself is a background broker behavior this backend
// does not simulate: it keeps every produced record, relying on the
// indexer's replay tolerance rather than physically
// discarding superseded records. Production deployments that need
// real compaction use pkg/txlog/kafka instead.
package embedded

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cuemby/chronodb/pkg/chronoerr"
	"github.com/cuemby/chronodb/pkg/txlog"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// Client implements txlog.Client against local bbolt files under a
// data directory, one file per registered topic.
type Client struct {
	mu       sync.Mutex
	dataDir  string
	topics   map[string]*topicState
	cursors  map[string]int64 // topic -> next offset to poll
	subbed   []string
}

var _ txlog.Client = (*Client)(nil)

type topicState struct {
	cfg     txlog.TopicConfig
	backend logBackend
}

// New opens (or creates) an embedded client rooted at dataDir.
func New(dataDir string) (*Client, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("embedded: create data dir: %w", err)
	}
	return &Client{
		dataDir: dataDir,
		topics:  make(map[string]*topicState),
		cursors: make(map[string]int64),
	}, nil
}

func (c *Client) CreateTopic(_ context.Context, cfg txlog.TopicConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.topics[cfg.Name]; ok {
		return validatePolicy(existing.cfg, cfg)
	}

	backend, err := newBackendFor(c.dataDir, cfg)
	if err != nil {
		return err
	}
	c.topics[cfg.Name] = &topicState{cfg: cfg, backend: backend}
	c.cursors[cfg.Name] = 1
	return nil
}

func validatePolicy(have, want txlog.TopicConfig) error {
	if have.CleanupPolicy != want.CleanupPolicy {
		return fmt.Errorf("%w: topic %q has cleanup.policy=%s, need %s",
			chronoerr.ErrLogPolicyMismatch, have.Name, have.CleanupPolicy, want.CleanupPolicy)
	}
	if want.CleanupPolicy == txlog.CleanupDelete && have.RetentionMs != want.RetentionMs {
		return fmt.Errorf("%w: topic %q has retention.ms=%d, need %d",
			chronoerr.ErrLogPolicyMismatch, have.Name, have.RetentionMs, want.RetentionMs)
	}
	return nil
}

func newBackendFor(dataDir string, cfg txlog.TopicConfig) (logBackend, error) {
	switch cfg.CleanupPolicy {
	case txlog.CleanupDelete:
		return newRaftLogBackend(filepath.Join(dataDir, cfg.Name+"-tx.db"))
	case txlog.CleanupCompact:
		return newBoltOffsetLogBackend(filepath.Join(dataDir, cfg.Name+"-doc.db"))
	default:
		return nil, fmt.Errorf("embedded: topic %q: unknown cleanup policy %q", cfg.Name, cfg.CleanupPolicy)
	}
}

func (c *Client) Produce(ctx context.Context, topic string, key, value []byte) (txlog.ProduceResult, error) {
	c.mu.Lock()
	ts, ok := c.topics[topic]
	c.mu.Unlock()
	if !ok {
		return txlog.ProduceResult{}, fmt.Errorf("embedded: produce to unknown topic %q", topic)
	}

	offset, when, err := ts.backend.append(key, value)
	if err != nil {
		return txlog.ProduceResult{}, fmt.Errorf("%w: %v", chronoerr.ErrTransientLog, err)
	}
	return txlog.ProduceResult{Offset: offset, Timestamp: when}, nil
}

func (c *Client) Subscribe(_ context.Context, topics []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		if _, ok := c.topics[t]; !ok {
			return fmt.Errorf("embedded: subscribe to unregistered topic %q", t)
		}
	}
	c.subbed = append([]string(nil), topics...)
	return nil
}

func (c *Client) Seek(_ context.Context, topic string, _ int, offset int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.topics[topic]; !ok {
		return fmt.Errorf("embedded: seek on unknown topic %q", topic)
	}
	c.cursors[topic] = offset
	return nil
}

// Poll reads up to one record batch per subscribed topic. There is
// no real broker round-trip to wait on, so timeout only bounds how
// long Poll blocks when nothing is available yet.
func (c *Client) Poll(ctx context.Context, timeout time.Duration) ([]txlog.Record, error) {
	deadline := time.Now().Add(timeout)
	for {
		recs, err := c.pollOnce()
		if err != nil {
			return nil, err
		}
		if len(recs) > 0 {
			return recs, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (c *Client) pollOnce() ([]txlog.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []txlog.Record
	for _, topic := range c.subbed {
		ts := c.topics[topic]
		cursor := c.cursors[topic]
		recs, err := ts.backend.readFrom(cursor, 100)
		if err != nil {
			return nil, fmt.Errorf("embedded: poll topic %q: %w", topic, err)
		}
		for i := range recs {
			recs[i].Topic = topic
		}
		if len(recs) > 0 {
			c.cursors[topic] = recs[len(recs)-1].Offset + 1
		}
		out = append(out, recs...)
	}
	return out, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for _, ts := range c.topics {
		if err := ts.backend.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// logBackend is the storage primitive behind one topic: append a
// record, read a contiguous range starting at an offset.
type logBackend interface {
	append(key, value []byte) (offset int64, when time.Time, err error)
	readFrom(offset int64, max int) ([]txlog.Record, error)
	close() error
}

// raftLogBackend adapts *raftboltdb.BoltStore (a raft.LogStore) into
// logBackend for tx-topic storage.
type raftLogBackend struct {
	mu    sync.Mutex
	store *raftboltdb.BoltStore
}

func newRaftLogBackend(path string) (*raftLogBackend, error) {
	store, err := raftboltdb.NewBoltStore(path)
	if err != nil {
		return nil, fmt.Errorf("embedded: open raft log store %s: %w", path, err)
	}
	return &raftLogBackend{store: store}, nil
}

func (b *raftLogBackend) append(_, value []byte) (int64, time.Time, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	last, err := b.store.LastIndex()
	if err != nil {
		return 0, time.Time{}, err
	}
	idx := last + 1
	now := time.Now().UTC()
	entry := &raft.Log{
		Index:      idx,
		Term:       1,
		Type:       raft.LogCommand,
		Data:       value,
		AppendedAt: now,
	}
	if err := b.store.StoreLog(entry); err != nil {
		return 0, time.Time{}, err
	}
	return int64(idx), now, nil
}

func (b *raftLogBackend) readFrom(offset int64, max int) ([]txlog.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	first, err := b.store.FirstIndex()
	if err != nil {
		return nil, err
	}
	last, err := b.store.LastIndex()
	if err != nil {
		return nil, err
	}
	start := uint64(offset)
	if start < first {
		start = first
	}

	var out []txlog.Record
	for idx := start; idx <= last && len(out) < max; idx++ {
		var entry raft.Log
		if err := b.store.GetLog(idx, &entry); err != nil {
			if err == raft.ErrLogNotFound {
				continue
			}
			return nil, err
		}
		out = append(out, txlog.Record{
			Offset:    int64(entry.Index),
			Value:     entry.Data,
			Timestamp: entry.AppendedAt,
		})
	}
	return out, nil
}

func (b *raftLogBackend) close() error {
	return b.store.Close()
}
