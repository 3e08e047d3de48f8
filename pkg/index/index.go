package index

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/chronodb/pkg/chronoerr"
	"github.com/cuemby/chronodb/pkg/codec"
	"github.com/cuemby/chronodb/pkg/document"
	"github.com/cuemby/chronodb/pkg/kv"
)

// EntityTx is the indexed record type: one per (eid, bt, tt) triple,
// carrying the content-hash it resolves to.
type EntityTx struct {
	EntityId     document.EntityId
	BusinessTime int64 // unix millis
	TransactTime int64 // unix millis
	TxID         int64
	ContentHash  document.ContentHash
	OpIndex      uint8
}

var empty = []byte{}

// IndexDoc writes the index-0 content-hash -> document record plus,
// for every (attribute, value) pair, the index-1 entry that makes
// attribute-range-scan possible. Callers append the returned ops to
// the indexer's per-batch write-batch rather than writing them
// directly, since commit must stay atomic across the whole consumed
// batch.
func IndexDoc(content document.ContentHash, doc document.Document) ([]kv.Op, error) {
	raw, err := doc.Bytes()
	if err != nil {
		return nil, fmt.Errorf("index: serialize document: %w", err)
	}

	ops := []kv.Op{{Kind: kv.OpPut, Key: ObjectKey(content), Value: raw}}

	for attr, val := range doc.Attrs {
		attrHash := codec.Sha1([]byte(attr))
		valBytes, err := encodeAttrValue(val)
		if err != nil {
			return nil, fmt.Errorf("index: attribute %q: %w", attr, err)
		}
		ops = append(ops, kv.Op{Kind: kv.OpPut, Key: AttrValueKey(attrHash, valBytes, content), Value: empty})
	}

	return ops, nil
}

// IndexDocForEntity builds only the index-2 content-hash+entity
// record for the entity this document is actually being referenced
// by; the index-0 and index-1 writes come from IndexDoc. Index-2 entries are meaningful only once an eid is known, which
// IndexDoc alone (called at doc-topic consume time, before any
// referencing transaction has arrived) cannot supply; the indexer
// calls this variant when applying the transaction instead.
func IndexDocForEntity(content document.ContentHash, eid document.EntityId) kv.Op {
	return kv.Op{Kind: kv.OpPut, Key: ContentEntityKey(content, eid), Value: empty}
}

// encodeAttrValue converts a decoded document attribute value into
// its order-preserving index-1 byte encoding via pkg/codec's closed
// Value sum type.
func encodeAttrValue(v interface{}) ([]byte, error) {
	cv, err := toCodecValue(v)
	if err != nil {
		return nil, err
	}
	return codec.Encode(cv)
}

func toCodecValue(v interface{}) (codec.Value, error) {
	switch x := v.(type) {
	case nil:
		return codec.Null(), nil
	case bool:
		if x {
			return codec.Long(1), nil
		}
		return codec.Long(0), nil
	case int:
		return codec.Long(int64(x)), nil
	case int64:
		return codec.Long(x), nil
	case float64:
		return codec.Double(x), nil
	case string:
		return codec.String(x), nil
	case []byte:
		return codec.Bytes(x), nil
	case time.Time:
		return codec.Date(x.UnixMilli()), nil
	default:
		raw, err := document.CanonicalBytes(x)
		if err != nil {
			return codec.Value{}, fmt.Errorf("index: value of type %T is not indexable: %w", v, err)
		}
		return codec.Bytes(raw), nil
	}
}

// IndexEntityTx builds the index-3 write for one applied EntityTx.
func IndexEntityTx(e EntityTx) kv.Op {
	return kv.Op{
		Kind:  kv.OpPut,
		Key:   EntityHistoryKey(e.EntityId, e.BusinessTime, e.TransactTime, e.TxID),
		Value: EntityHistoryValue(e.ContentHash, e.OpIndex),
	}
}

// EntityAt implements the as-of lookup: seek index-3 to
// (eid, ~bt, ~tt, ~max-tx-id), whose tx-id field is all 0x00 bytes
// and so sorts before every real tx-id at that (bt, tt), and return
// the first key under the eid
// prefix whose decoded bt <= businessTime and tt <= transactTime.
// Returns (EntityTx{}, false, nil) if no such version exists.
func EntityAt(snap kv.Snapshot, eid document.EntityId, businessTime, transactTime int64) (EntityTx, bool, error) {
	it, err := snap.NewIterator()
	if err != nil {
		return EntityTx{}, false, err
	}
	defer it.Close()

	seekKey := EntityHistoryKey(eid, businessTime, transactTime, maxTxID)
	prefix := EntityHistoryPrefix(eid)

	for ok := it.Seek(seekKey); ok && hasPrefix(it.Key(), prefix); ok = it.Next() {
		_, bt, tt, txID, err := DecodeEntityHistoryKey(it.Key())
		if err != nil {
			return EntityTx{}, false, err
		}
		if bt <= businessTime && tt <= transactTime {
			content, opIdx, err := DecodeEntityHistoryValue(it.Value())
			if err != nil {
				return EntityTx{}, false, err
			}
			return EntityTx{
				EntityId:     eid,
				BusinessTime: bt,
				TransactTime: tt,
				TxID:         txID,
				ContentHash:  content,
				OpIndex:      opIdx,
			}, true, nil
		}
	}
	return EntityTx{}, false, nil
}

// maxTxID seeds EntityAt's seek key with the maximal tx-id field so
// the seek lands at or before every real tx-id sharing the same
// (bt, tt).
const maxTxID = int64(1)<<63 - 1

// AllEntityHistory returns every EntityTx for eid in reverse-time
// order. The returned slice is read to completion eagerly; pkg/query
// wraps this for the lazy iterator contract exposed to callers.
func AllEntityHistory(snap kv.Snapshot, eid document.EntityId) ([]EntityTx, error) {
	it, err := snap.NewIterator()
	if err != nil {
		return nil, err
	}
	defer it.Close()

	prefix := EntityHistoryPrefix(eid)
	var out []EntityTx
	for ok := it.Seek(prefix); ok && hasPrefix(it.Key(), prefix); ok = it.Next() {
		_, bt, tt, txID, err := DecodeEntityHistoryKey(it.Key())
		if err != nil {
			return nil, err
		}
		content, opIdx, err := DecodeEntityHistoryValue(it.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, EntityTx{
			EntityId:     eid,
			BusinessTime: bt,
			TransactTime: tt,
			TxID:         txID,
			ContentHash:  content,
			OpIndex:      opIdx,
		})
	}
	return out, nil
}

// EvictEntity rewrites every historical index-3 version of eid to
// point at document.TombstoneHash and deletes the evicted content
// hashes from the object store and from index-2. It returns the ops
// to append to the indexer's batch; the content hashes named for
// deletion still need their index-1 entries removed by the caller,
// since those require the original document's attribute map, which
// EvictEntity does not have on hand.
func EvictEntity(ctx context.Context, store kv.Store, eid document.EntityId) ([]kv.Op, []document.ContentHash, error) {
	snap, err := store.NewSnapshot()
	if err != nil {
		return nil, nil, err
	}
	defer snap.Close()

	history, err := AllEntityHistory(snap, eid)
	if err != nil {
		return nil, nil, err
	}

	var ops []kv.Op
	seen := map[document.ContentHash]bool{}
	var touched []document.ContentHash

	for _, e := range history {
		ops = append(ops, kv.Op{
			Kind:  kv.OpPut,
			Key:   EntityHistoryKey(e.EntityId, e.BusinessTime, e.TransactTime, e.TxID),
			Value: EntityHistoryValue(document.TombstoneHash, e.OpIndex),
		})
		if !e.ContentHash.IsZero() && e.ContentHash != document.TombstoneHash && !seen[e.ContentHash] {
			seen[e.ContentHash] = true
			touched = append(touched, e.ContentHash)
			ops = append(ops, kv.Op{Kind: kv.OpDelete, Key: ObjectKey(e.ContentHash)})
			ops = append(ops, kv.Op{Kind: kv.OpDelete, Key: ContentEntityKey(e.ContentHash, eid)})
			ops = append(ops, kv.Op{Kind: kv.OpPut, Key: ContentTombstoneKey(e.ContentHash), Value: []byte{1}})
		}
	}

	return ops, touched, nil
}

// DeleteAttrValueEntries removes every index-1 entry that doc
// contributed for content, used by eviction once the evicted
// document's attribute map is known.
func DeleteAttrValueEntries(content document.ContentHash, doc document.Document) ([]kv.Op, error) {
	var ops []kv.Op
	for attr, val := range doc.Attrs {
		attrHash := codec.Sha1([]byte(attr))
		valBytes, err := encodeAttrValue(val)
		if err != nil {
			return nil, fmt.Errorf("%w: attribute %q: %v", chronoerr.ErrCorruptIndex, attr, err)
		}
		ops = append(ops, kv.Op{Kind: kv.OpDelete, Key: AttrValueKey(attrHash, valBytes, content)})
	}
	return ops, nil
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
