package txn

import (
	"fmt"

	"github.com/cuemby/chronodb/pkg/codec"
	"github.com/cuemby/chronodb/pkg/document"
)

// EncodeOps serializes a transaction's op list for the tx-topic
// record value: a single tx-topic record whose value is the list of
// ops. It reuses pkg/document's canonical map/list codec rather than
// inventing a second wire format.
func EncodeOps(ops []Op) ([]byte, error) {
	list := make([]interface{}, 0, len(ops))
	for _, op := range ops {
		m := map[string]interface{}{
			"kind": op.Kind.String(),
			"eid":  op.EntityId.Bytes(),
		}
		switch op.Kind {
		case OpPut:
			m["content_hash"] = op.ContentHash.Bytes()
		case OpCas:
			m["expected_hash"] = op.ExpectedHash.Bytes()
			m["content_hash"] = op.ContentHash.Bytes()
		case OpDelete, OpEvict:
			// no content hash carried.
		}
		if op.BusinessTime != nil {
			m["business_time"] = *op.BusinessTime
		}
		list = append(list, m)
	}
	return document.CanonicalBytes(list)
}

// DecodeOps reverses EncodeOps.
func DecodeOps(raw []byte) ([]Op, error) {
	v, err := document.DecodeCanonical(raw)
	if err != nil {
		return nil, fmt.Errorf("txn: decode ops: %w", err)
	}
	list, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("txn: decoded tx record is %T, not a list", v)
	}

	ops := make([]Op, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("txn: op %d is %T, not a map", i, item)
		}
		op, err := decodeOp(m)
		if err != nil {
			return nil, fmt.Errorf("txn: op %d: %w", i, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func decodeOp(m map[string]interface{}) (Op, error) {
	kindStr, _ := m["kind"].(string)
	var op Op
	switch kindStr {
	case "put":
		op.Kind = OpPut
	case "delete":
		op.Kind = OpDelete
	case "cas":
		op.Kind = OpCas
	case "evict":
		op.Kind = OpEvict
	default:
		return Op{}, fmt.Errorf("unknown op kind %q", kindStr)
	}

	eidBytes, ok := m["eid"].([]byte)
	if !ok {
		return Op{}, fmt.Errorf("missing eid field")
	}
	eid, err := codec.HashFromBytes(eidBytes)
	if err != nil {
		return Op{}, err
	}
	op.EntityId = eid

	if raw, ok := m["content_hash"].([]byte); ok {
		h, err := codec.HashFromBytes(raw)
		if err != nil {
			return Op{}, err
		}
		op.ContentHash = h
	}
	if raw, ok := m["expected_hash"].([]byte); ok {
		h, err := codec.HashFromBytes(raw)
		if err != nil {
			return Op{}, err
		}
		op.ExpectedHash = h
	}
	if raw, ok := m["business_time"]; ok {
		bt, ok := raw.(int64)
		if !ok {
			return Op{}, fmt.Errorf("business_time field has type %T, not int64", raw)
		}
		op.BusinessTime = &bt
	}

	return op, nil
}
