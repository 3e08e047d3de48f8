// Package txn defines chronodb's transaction and operation types:
// the ordered list of ops a writer submits, and the transaction
// record a log read-back or tx-log query yields.
package txn

import "github.com/cuemby/chronodb/pkg/document"

// OpKind identifies which of the four transaction operations an Op
// performs.
type OpKind uint8

const (
	OpPut OpKind = iota
	OpDelete
	OpCas
	OpEvict
)

func (k OpKind) String() string {
	switch k {
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	case OpCas:
		return "cas"
	case OpEvict:
		return "evict"
	default:
		return "unknown"
	}
}

// Op is one operation within a Transaction's op list.
//
//   - put(eid, content-hash, business-time?)
//   - delete(eid, business-time?)
//   - cas(eid, expected-hash, new-hash, business-time?)
//   - evict(eid)
//
// BusinessTime is a pointer so its absence (defaulting to tx-time at
// apply time) is distinguishable from an explicit zero value.
type Op struct {
	Kind         OpKind
	EntityId     document.EntityId
	ContentHash  document.ContentHash // put, cas (new value)
	ExpectedHash document.ContentHash // cas only
	BusinessTime *int64               // unix millis; nil means "= tx-time"
}

// Put returns a put op. bt may be nil.
func Put(eid document.EntityId, content document.ContentHash, bt *int64) Op {
	return Op{Kind: OpPut, EntityId: eid, ContentHash: content, BusinessTime: bt}
}

// Delete returns a delete op, indexed as a put of the zero content
// hash: chronodb represents "no document" as codec.ZeroHash so
// downstream readers see "entity absent" rather than a dangling
// reference.
func Delete(eid document.EntityId, bt *int64) Op {
	return Op{Kind: OpDelete, EntityId: eid, ContentHash: document.ContentHash{}, BusinessTime: bt}
}

// Cas returns a compare-and-swap op.
func Cas(eid document.EntityId, expected, newHash document.ContentHash, bt *int64) Op {
	return Op{Kind: OpCas, EntityId: eid, ExpectedHash: expected, ContentHash: newHash, BusinessTime: bt}
}

// Evict returns an evict op.
func Evict(eid document.EntityId) Op {
	return Op{Kind: OpEvict, EntityId: eid}
}

// Transaction is the ordered list of ops a writer submits in one
// submit-tx call, plus the coordinates the log assigns at commit.
type Transaction struct {
	Ops          []Op
	TxID         int64 // the log offset; assigned by the log, not the caller
	TransactTime int64 // unix millis; assigned by the log at commit
}

// Documents pairs a Document with the ContentHash op.Put/op.Cas
// should reference, produced to the doc-topic ahead of the tx record
// (submit-tx step 1).
type Documents struct {
	ContentHash document.ContentHash
	Document    document.Document
}
