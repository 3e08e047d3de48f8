// Package query implements chronodb's read-side contract over
// pkg/index: entity-as-of, history, attribute-range-scan, and
// tx-log. Entity-as-of returns a single document. History and
// attribute-range-scan return lazy iterators whose producer is a
// pkg/kv.Iterator scoped to one snapshot. Tx-log returns a lazy
// iterator that polls the log client rather than the KV store and
// holds no snapshot. Callers control each iterator's lifetime
// explicitly via Close; nothing is materialized
// eagerly except where pkg/index itself already returns a slice.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/chronodb/pkg/codec"
	"github.com/cuemby/chronodb/pkg/document"
	"github.com/cuemby/chronodb/pkg/index"
	"github.com/cuemby/chronodb/pkg/kv"
	"github.com/cuemby/chronodb/pkg/log"
	"github.com/cuemby/chronodb/pkg/metrics"
	"github.com/cuemby/chronodb/pkg/objectstore"
	"github.com/cuemby/chronodb/pkg/txlog"
	"github.com/cuemby/chronodb/pkg/txn"
	"github.com/rs/zerolog"
)

// Engine answers reads against a shared kv.Store, taking a fresh
// snapshot per call so concurrent indexer writes never affect an
// in-flight query.
type Engine struct {
	store   kv.Store
	objects *objectstore.Store
	logger  zerolog.Logger
}

// New constructs a query Engine over store.
func New(store kv.Store) *Engine {
	return &Engine{
		store:   store,
		objects: objectstore.New(store),
		logger:  log.WithComponent("query"),
	}
}

// EntityAsOf resolves eid's document as of (businessTime, transactTime),
// or (Document{}, false, nil) if no version applies or the resolved
// version has been evicted. Absent and evicted entities are reported
// identically: "entity absent" rather than an error.
func (e *Engine) EntityAsOf(ctx context.Context, eid document.EntityId, businessTime, transactTime int64) (document.Document, bool, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.QueryDuration, "entity-as-of")

	snap, err := e.store.NewSnapshot()
	if err != nil {
		return document.Document{}, false, err
	}
	defer snap.Close()

	entry, ok, err := index.EntityAt(snap, eid, businessTime, transactTime)
	if err != nil {
		return document.Document{}, false, err
	}
	if !ok || entry.ContentHash.IsZero() || entry.ContentHash == document.TombstoneHash {
		return document.Document{}, false, nil
	}

	raw, ok, err := e.objects.Get(ctx, entry.ContentHash)
	if err != nil {
		return document.Document{}, false, err
	}
	if !ok {
		e.logger.Warn().Str("content_hash", entry.ContentHash.String()).Msg("entity-as-of resolved a content hash with no object store entry")
		return document.Document{}, false, nil
	}

	doc, err := document.FromBytes(raw)
	if err != nil {
		return document.Document{}, false, err
	}
	return doc, true, nil
}

// HistoryEntry is one yielded EntityTx, renamed here so callers of
// pkg/query never need to import pkg/index directly.
type HistoryEntry = index.EntityTx

// HistoryIterator yields an entity's EntityTx records in index-3 key
// order (newest business time first, then newest transaction time,
// then highest tx-id), lazily, via the underlying kv.Iterator.
type HistoryIterator struct {
	it     kv.Iterator
	snap   kv.Snapshot
	prefix []byte
	cur    HistoryEntry
	err    error
	done   bool
}

// History opens a lazy, reverse-chronological scan of every EntityTx
// recorded for eid. The caller must call Close when done.
func (e *Engine) History(eid document.EntityId) (*HistoryIterator, error) {
	snap, err := e.store.NewSnapshot()
	if err != nil {
		return nil, err
	}
	it, err := snap.NewIterator()
	if err != nil {
		snap.Close()
		return nil, err
	}
	prefix := index.EntityHistoryPrefix(eid)
	hi := &HistoryIterator{it: it, snap: snap, prefix: prefix}
	hi.it.Seek(prefix)
	return hi, nil
}

// Next advances the iterator, returning false when exhausted or on
// error (check Err after a false return).
func (h *HistoryIterator) Next() bool {
	if h.done || h.err != nil {
		return false
	}
	if !h.it.Valid() || !hasPrefix(h.it.Key(), h.prefix) {
		h.done = true
		return false
	}

	eid, bt, tt, txID, err := index.DecodeEntityHistoryKey(h.it.Key())
	if err != nil {
		h.err = err
		return false
	}
	content, opIdx, err := index.DecodeEntityHistoryValue(h.it.Value())
	if err != nil {
		h.err = err
		return false
	}
	h.cur = HistoryEntry{EntityId: eid, BusinessTime: bt, TransactTime: tt, TxID: txID, ContentHash: content, OpIndex: opIdx}
	h.it.Next()
	return true
}

// Entry returns the entry most recently yielded by Next.
func (h *HistoryIterator) Entry() HistoryEntry { return h.cur }

// Err returns the first error encountered, if any.
func (h *HistoryIterator) Err() error { return h.err }

// Close releases the iterator's snapshot handle.
func (h *HistoryIterator) Close() error {
	h.it.Close()
	return h.snap.Close()
}

// AttrValueEntry is one (value-bytes, content-hash) pair yielded by
// AttributeRangeScan. ValueBytes is the order-preserving encoding, not
// the decoded original value: callers that need the original should
// dereference ContentHash and read the document.
type AttrValueEntry struct {
	ValueBytes  []byte
	ContentHash document.ContentHash
}

// AttrValueIterator lazily walks index-1 within one attribute's
// [lower, upper] value-bytes bound.
type AttrValueIterator struct {
	it         kv.Iterator
	snap       kv.Snapshot
	attrPrefix []byte
	upperValue []byte
	cur        AttrValueEntry
	err        error
	done       bool
}

// AttributeRangeScan opens a lazy scan of index-1 for attr, bounded by
// [lowerValue, upperValue] (already order-preserving-encoded via
// pkg/codec). A nil upperValue means unbounded above.
func (e *Engine) AttributeRangeScan(attr string, lowerValue, upperValue []byte) (*AttrValueIterator, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.QueryDuration, "attribute-range-scan")

	snap, err := e.store.NewSnapshot()
	if err != nil {
		return nil, err
	}
	it, err := snap.NewIterator()
	if err != nil {
		snap.Close()
		return nil, err
	}

	attrHash := codec.Sha1([]byte(attr))
	prefix := index.AttrPrefix(attrHash)
	seekKey := append(append([]byte(nil), prefix...), lowerValue...)

	ai := &AttrValueIterator{it: it, snap: snap, attrPrefix: prefix, upperValue: upperValue}
	ai.it.Seek(seekKey)
	return ai, nil
}

// Next advances the iterator, returning false when exhausted, past
// the upper bound, or on error. The bound check compares only the
// value-bytes portion of each key: a raw prefix+upperValue comparison
// would exclude a key whose value equals upperValue, since every real
// key carries a trailing content-hash that makes it sort after the
// bare upperValue suffix.
func (a *AttrValueIterator) Next() bool {
	if a.done || a.err != nil {
		return false
	}
	if !a.it.Valid() || !hasPrefix(a.it.Key(), a.attrPrefix) {
		a.done = true
		return false
	}

	key := a.it.Key()
	rest := key[len(a.attrPrefix):]
	if len(rest) < codec.HashSize {
		a.err = fmt.Errorf("query: index-1 key shorter than one content hash")
		return false
	}
	valueBytes := rest[:len(rest)-codec.HashSize]
	if a.upperValue != nil && compareBytes(valueBytes, a.upperValue) > 0 {
		a.done = true
		return false
	}
	content, err := codec.HashFromBytes(rest[len(rest)-codec.HashSize:])
	if err != nil {
		a.err = err
		return false
	}
	a.cur = AttrValueEntry{ValueBytes: valueBytes, ContentHash: content}
	a.it.Next()
	return true
}

// Entry returns the entry most recently yielded by Next.
func (a *AttrValueIterator) Entry() AttrValueEntry { return a.cur }

// Err returns the first error encountered, if any.
func (a *AttrValueIterator) Err() error { return a.err }

// Close releases the iterator's snapshot handle.
func (a *AttrValueIterator) Close() error {
	a.it.Close()
	return a.snap.Close()
}

// defaultTxLogPollTimeout bounds how long one Next call waits for the
// next tx-topic record before reporting exhaustion.
const defaultTxLogPollTimeout = 2 * time.Second

// TxLogIterator lazily replays tx-topic records starting at fromTxID,
// decoding each into a txn.Transaction as it is consumed.
type TxLogIterator struct {
	client txlog.Client
	topic  string
	ctx    context.Context
	buf    []txlog.Record
	cur    txn.Transaction
	err    error
}

// TxLog opens a lazy sequence of transactions from the tx-topic,
// starting at fromTxID (0 for "from the beginning"). It reads
// directly off the log client rather than off the index, so a
// transaction failed by a CAS mismatch is still visible here even
// though it never produced an index-3 entry.
func (e *Engine) TxLog(ctx context.Context, client txlog.Client, topic string, fromTxID int64) (*TxLogIterator, error) {
	if fromTxID < 0 {
		fromTxID = 0
	}
	if err := client.Seek(ctx, topic, 0, fromTxID); err != nil {
		return nil, fmt.Errorf("query: tx-log seek: %w", err)
	}
	return &TxLogIterator{client: client, topic: topic, ctx: ctx}, nil
}

// Next polls the log client for the next tx-topic record, decoding it
// into the transaction returned by Entry. Returns false on poll
// timeout with nothing available, or on a decode error (check Err).
func (t *TxLogIterator) Next() bool {
	if t.err != nil {
		return false
	}
	for len(t.buf) == 0 {
		recs, err := t.client.Poll(t.ctx, defaultTxLogPollTimeout)
		if err != nil {
			t.err = err
			return false
		}
		if len(recs) == 0 {
			return false
		}
		for _, r := range recs {
			if r.Topic == t.topic {
				t.buf = append(t.buf, r)
			}
		}
		if len(t.buf) == 0 {
			return false
		}
	}

	rec := t.buf[0]
	t.buf = t.buf[1:]
	ops, err := txn.DecodeOps(rec.Value)
	if err != nil {
		t.err = fmt.Errorf("query: tx-log decode at offset %d: %w", rec.Offset, err)
		return false
	}
	t.cur = txn.Transaction{Ops: ops, TxID: rec.Offset, TransactTime: rec.Timestamp.UnixMilli()}
	return true
}

// Entry returns the transaction most recently yielded by Next.
func (t *TxLogIterator) Entry() txn.Transaction { return t.cur }

// Err returns the first error encountered, if any.
func (t *TxLogIterator) Err() error { return t.err }

// Close releases nothing: a TxLogIterator holds no snapshot or
// iterator handle of its own.
func (t *TxLogIterator) Close() error { return nil }

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

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
