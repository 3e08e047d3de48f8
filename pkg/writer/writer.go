// Package writer implements submit-tx: producing a transaction's
// referenced documents to the doc-topic, waiting for every
// acknowledgement, then producing the tx-topic record that references
// them by content-hash. Multiple callers may call SubmitTx
// concurrently; ordering of the resulting transactions is whatever
// the log's single-partition assignment yields.
package writer

import (
	"context"
	"fmt"

	"github.com/cuemby/chronodb/pkg/document"
	"github.com/cuemby/chronodb/pkg/log"
	"github.com/cuemby/chronodb/pkg/metrics"
	"github.com/cuemby/chronodb/pkg/txlog"
	"github.com/cuemby/chronodb/pkg/txn"
	"github.com/rs/zerolog"
)

// Config names the two topics a Writer produces to.
type Config struct {
	TxTopic  string
	DocTopic string
}

// Writer is chronodb's submit-tx entry point.
type Writer struct {
	cfg    Config
	client txlog.Client
	logger zerolog.Logger
}

// New constructs a Writer over client.
func New(client txlog.Client, cfg Config) *Writer {
	return &Writer{cfg: cfg, client: client, logger: log.WithComponent("writer")}
}

// Result is submit-tx's resolved value: the tx-topic record's offset
// (tx-id) and timestamp (tx-time). Whether a cas op within the
// transaction was actually applied is not knowable at submit time —
// submit-tx only appends to the log — so callers that need that
// outcome read the entity back through pkg/query or pkg/index after
// the indexer has caught up; pkg/query.TxLog yields a transaction's
// ops but not whether they were applied.
type Result struct {
	TxID   int64
	TxTime int64
}

// SubmitTx produces docs.Document for every entry of docs, waits for
// every doc-topic send to be acknowledged, then produces a single
// tx-topic record carrying ops (which reference those documents by
// content-hash, never inline).
func (w *Writer) SubmitTx(ctx context.Context, docs []txn.Documents, ops []txn.Op) (Result, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SubmitTxDuration)

	if err := w.produceDocs(ctx, docs); err != nil {
		return Result{}, err
	}

	encoded, err := txn.EncodeOps(ops)
	if err != nil {
		return Result{}, fmt.Errorf("writer: encode ops: %w", err)
	}

	res, err := w.client.Produce(ctx, w.cfg.TxTopic, nil, encoded)
	if err != nil {
		return Result{}, fmt.Errorf("writer: produce tx record: %w", err)
	}

	w.logger.Debug().Int64("tx_id", res.Offset).Int("ops", len(ops)).Msg("submitted transaction")
	return Result{TxID: res.Offset, TxTime: res.Timestamp.UnixMilli()}, nil
}

// produceDocs sends every document ahead of the tx record and returns
// only once all of them are acknowledged, since the indexer must
// never observe a tx-topic record before its referenced documents are
// reachable.
func (w *Writer) produceDocs(ctx context.Context, docs []txn.Documents) error {
	for _, d := range docs {
		raw, err := d.Document.Bytes()
		if err != nil {
			return fmt.Errorf("writer: serialize document %s: %w", d.ContentHash, err)
		}
		if _, err := w.client.Produce(ctx, w.cfg.DocTopic, d.ContentHash.Bytes(), raw); err != nil {
			return fmt.Errorf("writer: produce document %s: %w", d.ContentHash, err)
		}
	}
	return nil
}

// PutDoc is a convenience that computes doc's content-hash and
// returns both the Documents entry SubmitTx needs and the Op a caller
// appends to ops, avoiding a separate ContentHash() call at each
// call site.
func PutDoc(eid document.EntityId, doc document.Document, bt *int64) (txn.Documents, txn.Op, error) {
	content, err := doc.ContentHash()
	if err != nil {
		return txn.Documents{}, txn.Op{}, fmt.Errorf("writer: content hash: %w", err)
	}
	return txn.Documents{ContentHash: content, Document: doc}, txn.Put(eid, content, bt), nil
}
