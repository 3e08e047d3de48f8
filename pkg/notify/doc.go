// Package notify provides an in-process event broker so callers can
// observe the indexer's consume loop (applied/failed transactions and
// evictions) without polling tx-log; the doc.indexed and
// batch.committed event types are defined but the indexer does not
// publish them. It is a
// topic-agnostic, non-blocking pub/sub bus: every event goes to every
// subscriber, and a full subscriber buffer drops rather than blocks
// the indexer.
package notify
