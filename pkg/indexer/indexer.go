// Package indexer implements the consume loop: the state machine
// that pulls from the tx-topic and doc-topic, buffers pending
// transactions until their referenced documents are present, applies
// them atomically, and persists consumer offsets alongside indexed
// state in one KV batch per call.
package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/chronodb/pkg/chronoerr"
	"github.com/cuemby/chronodb/pkg/codec"
	"github.com/cuemby/chronodb/pkg/document"
	"github.com/cuemby/chronodb/pkg/health"
	"github.com/cuemby/chronodb/pkg/index"
	"github.com/cuemby/chronodb/pkg/kv"
	"github.com/cuemby/chronodb/pkg/log"
	"github.com/cuemby/chronodb/pkg/metrics"
	"github.com/cuemby/chronodb/pkg/notify"
	"github.com/cuemby/chronodb/pkg/objectstore"
	"github.com/cuemby/chronodb/pkg/txlog"
	"github.com/cuemby/chronodb/pkg/txn"
	"github.com/rs/zerolog"
)

// State is a pending transaction's position in the state machine:
// Waiting -> Applying -> Applied, or Applying -> Failed on a cas
// mismatch.
type State int

const (
	StateWaiting State = iota
	StateApplying
	StateApplied
	StateFailed
)

// pendingTx is one tx-topic record the indexer has consumed but not
// yet resolved.
type pendingTx struct {
	tx    txn.Transaction
	state State
}

// Config parameterizes an Indexer instance.
type Config struct {
	TxTopic     string
	DocTopic    string
	PollTimeout time.Duration
}

// Result is consume-and-index's return value: counts of transactions
// applied (Applied or Failed, both advance the tx offset) and
// documents indexed in this call.
type Result struct {
	Txs  int
	Docs int
}

// Indexer is a single consumer-group-of-one over both topics, and
// the exclusive writer of the shared kv.Store.
type Indexer struct {
	cfg     Config
	client  txlog.Client
	store   kv.Store
	objects *objectstore.Store
	broker  *notify.Broker        // optional; nil disables event publication
	health  *health.IndexerStatus // optional; nil disables liveness tracking
	logger  zerolog.Logger

	pending []pendingTx
}

// New constructs an Indexer. broker may be nil.
func New(client txlog.Client, store kv.Store, cfg Config, broker *notify.Broker) *Indexer {
	return &Indexer{
		cfg:     cfg,
		client:  client,
		store:   store,
		objects: objectstore.New(store),
		broker:  broker,
		logger:  log.WithComponent("indexer"),
	}
}

// SetHealthStatus wires a health.IndexerStatus that ConsumeAndIndex
// updates after every call, for a caller running pkg/health's
// liveness checker alongside the consume loop.
func (ix *Indexer) SetHealthStatus(status *health.IndexerStatus) {
	ix.health = status
}

// Start subscribes to both topics and seeks each to its persisted
// offset, resuming where a prior process left off.
func (ix *Indexer) Start(ctx context.Context) error {
	if err := ix.client.Subscribe(ctx, []string{ix.cfg.TxTopic, ix.cfg.DocTopic}); err != nil {
		return fmt.Errorf("indexer: subscribe: %w", err)
	}

	for _, topic := range []string{ix.cfg.TxTopic, ix.cfg.DocTopic} {
		offset, ok, err := ix.loadOffset(ctx, topic)
		if err != nil {
			return fmt.Errorf("indexer: load offset for %q: %w", topic, err)
		}
		if ok {
			if err := ix.client.Seek(ctx, topic, 0, offset); err != nil {
				return fmt.Errorf("indexer: seek %q to %d: %w", topic, offset, err)
			}
		}
	}
	return nil
}

func (ix *Indexer) loadOffset(ctx context.Context, topic string) (int64, bool, error) {
	v, ok, err := ix.store.Get(ctx, index.OffsetKey(topic, 0))
	if err != nil || !ok {
		return 0, false, err
	}
	offset, err := index.DecodeOffset(v)
	if err != nil {
		return 0, false, err
	}
	return offset, true, nil
}

// ConsumeAndIndex is the indexer's single driving call. It polls
// both topics once, indexes every doc record immediately, advances
// pending-txs as far as their referenced documents allow, and
// commits everything in one KV batch. If a health.IndexerStatus was
// wired via SetHealthStatus, it is updated with the outcome before
// returning.
func (ix *Indexer) ConsumeAndIndex(ctx context.Context) (Result, error) {
	result, err := ix.consumeAndIndex(ctx)
	if ix.health != nil {
		if err != nil {
			ix.health.RecordError(err)
		} else {
			ix.health.RecordSuccess(len(ix.pending))
		}
	}
	return result, err
}

func (ix *Indexer) consumeAndIndex(ctx context.Context) (Result, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ConsumeLoopDuration)

	recs, err := ix.client.Poll(ctx, ix.cfg.PollTimeout)
	if err != nil {
		return Result{}, fmt.Errorf("indexer: poll: %w", err)
	}

	var ops []kv.Op
	var docsApplied int
	docOffset := int64(-1)

	// batch tracks what this call has already staged into ops but not
	// yet committed, so a transaction whose referenced documents (or
	// eviction tombstones) arrive earlier in the same poll batch is
	// still recognized as ready by the pending-apply loop below.
	batch := newBatchState()

	for _, rec := range recs {
		switch rec.Topic {
		case ix.cfg.DocTopic:
			content, doc, docOps, err := ix.indexDocRecord(rec)
			if err != nil {
				return Result{}, err
			}
			ops = append(ops, docOps...)
			batch.stageDoc(content, doc)
			docsApplied++
			if rec.Offset > docOffset {
				docOffset = rec.Offset
			}

		case ix.cfg.TxTopic:
			tx, err := decodeTxRecord(rec)
			if err != nil {
				return Result{}, err
			}
			ix.pending = append(ix.pending, pendingTx{tx: tx, state: StateWaiting})

		default:
			ix.logger.Warn().Str("topic", rec.Topic).Msg("polled record on unrecognized topic")
		}
	}

	txOffset := int64(-1)
	var txsApplied int

	for len(ix.pending) > 0 {
		head := &ix.pending[0]

		ready, err := ix.allReferencedDocsAvailable(ctx, head.tx, batch)
		if err != nil {
			return Result{}, err
		}
		if !ready {
			break
		}

		head.state = StateApplying
		applyOps, failed, err := ix.applyTransaction(ctx, head.tx, batch)
		if err != nil {
			return Result{}, err
		}
		ops = append(ops, applyOps...)

		if failed {
			head.state = StateFailed
			metrics.TxFailedTotal.Inc()
			ix.publish(notify.EventTxFailed, head.tx.TxID, "", "", "cas precondition mismatch")
		} else {
			head.state = StateApplied
			metrics.TxAppliedTotal.Inc()
			ix.publish(notify.EventTxApplied, head.tx.TxID, "", "", "")
		}
		txsApplied++
		txOffset = head.tx.TxID
		ix.pending = ix.pending[1:]
	}

	if docOffset >= 0 {
		ops = append(ops, kv.Op{Kind: kv.OpPut, Key: index.OffsetKey(ix.cfg.DocTopic, 0), Value: index.EncodeOffset(docOffset + 1)})
	}
	if txOffset >= 0 {
		ops = append(ops, kv.Op{Kind: kv.OpPut, Key: index.OffsetKey(ix.cfg.TxTopic, 0), Value: index.EncodeOffset(txOffset + 1)})
	}

	if len(ops) > 0 {
		commitTimer := metrics.NewTimer()
		err := ix.store.WriteBatch(ctx, ops)
		commitTimer.ObserveDuration(metrics.CommitBatchDuration)
		if err != nil {
			return Result{}, fmt.Errorf("indexer: commit batch: %w", err)
		}
	}

	if docOffset >= 0 {
		metrics.DocTopicOffset.Set(float64(docOffset))
	}
	if txOffset >= 0 {
		metrics.TxTopicOffset.Set(float64(txOffset))
	}
	metrics.DocsIndexedTotal.Add(float64(docsApplied))
	metrics.PendingTxs.Set(float64(len(ix.pending)))

	return Result{Txs: txsApplied, Docs: docsApplied}, nil
}

func (ix *Indexer) indexDocRecord(rec txlog.Record) (document.ContentHash, document.Document, []kv.Op, error) {
	content, err := codec.HashFromBytes(rec.Key)
	if err != nil {
		return document.ContentHash{}, document.Document{}, nil, fmt.Errorf("indexer: doc record key: %w", err)
	}
	doc, err := document.FromBytes(rec.Value)
	if err != nil {
		return document.ContentHash{}, document.Document{}, nil, fmt.Errorf("indexer: doc record %s: %w", content, err)
	}
	ops, err := index.IndexDoc(content, doc)
	if err != nil {
		return document.ContentHash{}, document.Document{}, nil, err
	}
	return content, doc, ops, nil
}

// batchState tracks documents indexed and content hashes tombstoned
// earlier in the current ConsumeAndIndex call, whose effects are
// staged into ops but not yet committed to the store. Without it,
// availability and document lookups below would only see the
// previous call's committed state, missing a document or eviction
// that arrived in the same poll batch as the transaction referencing
// it.
type batchState struct {
	docs       map[document.ContentHash]document.Document
	tombstoned map[document.ContentHash]bool
}

func newBatchState() *batchState {
	return &batchState{
		docs:       make(map[document.ContentHash]document.Document),
		tombstoned: make(map[document.ContentHash]bool),
	}
}

func (b *batchState) stageDoc(h document.ContentHash, doc document.Document) {
	b.docs[h] = doc
}

func (b *batchState) markTombstoned(h document.ContentHash) {
	b.tombstoned[h] = true
	delete(b.docs, h)
}

func decodeTxRecord(rec txlog.Record) (txn.Transaction, error) {
	ops, err := txn.DecodeOps(rec.Value)
	if err != nil {
		return txn.Transaction{}, fmt.Errorf("indexer: tx record at offset %d: %w", rec.Offset, err)
	}
	return txn.Transaction{Ops: ops, TxID: rec.Offset, TransactTime: rec.Timestamp.UnixMilli()}, nil
}

// allReferencedDocsAvailable reports whether every content-hash a
// pending transaction's ops reference is either present in the
// object store or tombstoned.
func (ix *Indexer) allReferencedDocsAvailable(ctx context.Context, tx txn.Transaction, batch *batchState) (bool, error) {
	for _, op := range tx.Ops {
		var h document.ContentHash
		switch op.Kind {
		case txn.OpPut:
			h = op.ContentHash
		case txn.OpCas:
			h = op.ContentHash
		default:
			continue
		}
		if h.IsZero() {
			continue
		}
		available, err := ix.hashAvailable(ctx, h, batch)
		if err != nil {
			return false, err
		}
		if !available {
			return false, nil
		}
	}
	return true, nil
}

// hashAvailable reports whether content hash h can be read back by a
// transaction applying now: either staged or tombstoned earlier in
// this same batch, already present in the object store, or already
// tombstoned from a prior commit.
func (ix *Indexer) hashAvailable(ctx context.Context, h document.ContentHash, batch *batchState) (bool, error) {
	if _, staged := batch.docs[h]; staged {
		return true, nil
	}
	if batch.tombstoned[h] {
		return true, nil
	}
	has, err := ix.objects.Has(ctx, h)
	if err != nil {
		return false, err
	}
	if has {
		return true, nil
	}
	_, tombstoned, err := ix.store.Get(ctx, index.ContentTombstoneKey(h))
	if err != nil {
		return false, err
	}
	return tombstoned, nil
}

// documentFor returns the document content-hash h decodes to, reading
// from this batch's staged-but-uncommitted docs first and falling
// back to the committed object store. Used by eviction to recover the
// attribute map of a document whose index-0 entry is about to be
// deleted in the same batch.
func (ix *Indexer) documentFor(ctx context.Context, h document.ContentHash, batch *batchState) (document.Document, bool, error) {
	if doc, ok := batch.docs[h]; ok {
		return doc, true, nil
	}
	raw, ok, err := ix.objects.Get(ctx, h)
	if err != nil || !ok {
		return document.Document{}, ok, err
	}
	doc, err := document.FromBytes(raw)
	if err != nil {
		return document.Document{}, false, fmt.Errorf("indexer: stored object %s: %w", h, err)
	}
	return doc, true, nil
}

// applyTransaction applies one transaction's ops, returning the
// index mutations plus whether the transaction failed its cas
// precondition (in which case no index-3 entries are among the
// returned ops, but the caller still advances the tx offset).
func (ix *Indexer) applyTransaction(ctx context.Context, tx txn.Transaction, batch *batchState) ([]kv.Op, bool, error) {
	snap, err := ix.store.NewSnapshot()
	if err != nil {
		return nil, false, err
	}
	defer snap.Close()

	var ops []kv.Op

	for opIdx, op := range tx.Ops {
		bt := tx.TransactTime
		if op.BusinessTime != nil {
			bt = *op.BusinessTime
		}

		switch op.Kind {
		case txn.OpPut, txn.OpDelete:
			ops = append(ops, index.IndexEntityTx(index.EntityTx{
				EntityId:     op.EntityId,
				BusinessTime: bt,
				TransactTime: tx.TransactTime,
				TxID:         tx.TxID,
				ContentHash:  op.ContentHash,
				OpIndex:      uint8(opIdx),
			}))
			if !op.ContentHash.IsZero() {
				ops = append(ops, index.IndexDocForEntity(op.ContentHash, op.EntityId))
			}

		case txn.OpCas:
			current, ok, err := index.EntityAt(snap, op.EntityId, tx.TransactTime, tx.TransactTime)
			if err != nil {
				return nil, false, err
			}
			var currentHash document.ContentHash
			if ok {
				currentHash = current.ContentHash
			}
			if currentHash != op.ExpectedHash {
				return nil, true, nil
			}
			ops = append(ops, index.IndexEntityTx(index.EntityTx{
				EntityId:     op.EntityId,
				BusinessTime: bt,
				TransactTime: tx.TransactTime,
				TxID:         tx.TxID,
				ContentHash:  op.ContentHash,
				OpIndex:      uint8(opIdx),
			}))
			if !op.ContentHash.IsZero() {
				ops = append(ops, index.IndexDocForEntity(op.ContentHash, op.EntityId))
			}

		case txn.OpEvict:
			evictOps, touched, err := index.EvictEntity(ctx, ix.store, op.EntityId)
			if err != nil {
				return nil, false, err
			}
			ops = append(ops, evictOps...)
			for _, h := range touched {
				doc, ok, err := ix.documentFor(ctx, h, batch)
				if err != nil {
					return nil, false, err
				}
				if ok {
					attrOps, err := index.DeleteAttrValueEntries(h, doc)
					if err != nil {
						return nil, false, err
					}
					ops = append(ops, attrOps...)
				}
				batch.markTombstoned(h)
				ix.publish(notify.EventEntityEvict, tx.TxID, op.EntityId.String(), h.String(), "")
			}
			metrics.EvictionsTotal.Inc()

		default:
			return nil, false, fmt.Errorf("%w: unknown op kind %d", chronoerr.ErrCorruptIndex, op.Kind)
		}
	}

	return ops, false, nil
}

func (ix *Indexer) publish(eventType notify.EventType, txID int64, eidHex, hashHex, message string) {
	if ix.broker == nil {
		return
	}
	ix.broker.Publish(&notify.Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		TxID:      txID,
		EntityHex: eidHex,
		HashHex:   hashHex,
		Message:   message,
	})
}
