// Package index builds and decodes chronodb's five typed key spaces
// over a single flat pkg/kv.Store, and implements the pure index
// operations the indexer's consume loop drives: index-doc,
// index-entity-tx, entity-at, and all-entity-history.
package index

import (
	"encoding/binary"
	"fmt"

	"github.com/cuemby/chronodb/pkg/chronoerr"
	"github.com/cuemby/chronodb/pkg/codec"
)

// Tag identifies which of the five index spaces a key belongs to.
type Tag byte

const (
	TagObject        Tag = 0 // content-hash -> document bytes
	TagAttrValue     Tag = 1 // attr-hash ‖ value-bytes ‖ content-hash -> empty
	TagContentEntity Tag = 2 // content-hash ‖ eid -> empty
	TagEntityHistory Tag = 3 // eid ‖ ~bt ‖ ~tt ‖ ~tx-id -> content-hash ‖ op-index
	TagMeta          Tag = 4 // meta-key-hash -> arbitrary
)

const (
	hashLen       = codec.HashSize
	timeFieldLen  = 8
	entityKeyLen  = 1 + hashLen + timeFieldLen*3
	entityValLen  = hashLen + 1
	contentEntLen = 1 + hashLen + hashLen
)

// ObjectKey builds the index-0 key for a content hash.
func ObjectKey(hash codec.Hash) []byte {
	k := make([]byte, 0, 1+hashLen)
	k = append(k, byte(TagObject))
	return append(k, hash.Bytes()...)
}

// AttrValueKey builds the index-1 key: attr-hash ‖ value-bytes ‖
// content-hash. attr and value are already encoded per pkg/codec so
// their relative byte order matches the attribute's natural order.
func AttrValueKey(attr codec.Hash, valueBytes []byte, content codec.Hash) []byte {
	k := make([]byte, 0, 1+hashLen+len(valueBytes)+hashLen)
	k = append(k, byte(TagAttrValue))
	k = append(k, attr.Bytes()...)
	k = append(k, valueBytes...)
	k = append(k, content.Bytes()...)
	return k
}

// AttrPrefix builds the index-1 scan prefix for one attribute, used
// by attribute-range-scan before bounding on value-bytes.
func AttrPrefix(attr codec.Hash) []byte {
	k := make([]byte, 0, 1+hashLen)
	k = append(k, byte(TagAttrValue))
	return append(k, attr.Bytes()...)
}

// ContentEntityKey builds the index-2 key: content-hash ‖ eid.
func ContentEntityKey(content, eid codec.Hash) []byte {
	k := make([]byte, 0, contentEntLen)
	k = append(k, byte(TagContentEntity))
	k = append(k, content.Bytes()...)
	return append(k, eid.Bytes()...)
}

// ContentEntityPrefix builds the index-2 scan prefix for one
// content-hash, covering every entity recorded as referencing it.
// Eviction does not use it.
func ContentEntityPrefix(content codec.Hash) []byte {
	k := make([]byte, 0, 1+hashLen)
	k = append(k, byte(TagContentEntity))
	return append(k, content.Bytes()...)
}

// flipSignBit reuses the big-endian, sign-bit-flip encoding for
// bt/tt/tx-id fields so that index-3's fixed-width numeric suffixes
// sort the same way EncodeInt64 does.
func flipSignBit(v int64) []byte {
	return codec.EncodeInt64(v)
}

// invert reverses flipSignBit's output bit-for-bit, giving index-3
// its required reverse-chronological ordering: the most recent bt/tt
// produces the lexicographically smallest encoded field.
func invert(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = ^c
	}
	return out
}

// EntityHistoryKey builds the index-3 key: eid ‖ ~bt ‖ ~tt ‖ ~tx-id.
// bt, tt and tx-id are each encoded with flipSignBit and then bit-
// inverted, so that within one eid prefix, larger (bt, tt, tx-id)
// triples sort first — both the as-of lookup's seek to
// (eid, ~bt, ~tt, ~max-tx-id), a tx-id field of all 0x00 bytes, and
// the reverse-chronological history scan
// depend on this.
func EntityHistoryKey(eid codec.Hash, bt, tt, txID int64) []byte {
	k := make([]byte, 0, entityKeyLen)
	k = append(k, byte(TagEntityHistory))
	k = append(k, eid.Bytes()...)
	k = append(k, invert(flipSignBit(bt))...)
	k = append(k, invert(flipSignBit(tt))...)
	k = append(k, invert(flipSignBit(txID))...)
	return k
}

// EntityHistoryPrefix builds the index-3 scan prefix for one eid.
func EntityHistoryPrefix(eid codec.Hash) []byte {
	k := make([]byte, 0, 1+hashLen)
	k = append(k, byte(TagEntityHistory))
	return append(k, eid.Bytes()...)
}

// DecodeEntityHistoryKey reverses EntityHistoryKey, recovering
// (eid, bt, tt, txID).
func DecodeEntityHistoryKey(key []byte) (eid codec.Hash, bt, tt, txID int64, err error) {
	if len(key) != entityKeyLen || Tag(key[0]) != TagEntityHistory {
		return codec.Hash{}, 0, 0, 0, fmt.Errorf("%w: bad index-3 key length %d", chronoerr.ErrCorruptIndex, len(key))
	}
	eid, err = codec.HashFromBytes(key[1 : 1+hashLen])
	if err != nil {
		return codec.Hash{}, 0, 0, 0, err
	}

	off := 1 + hashLen
	bt, err = codec.DecodeInt64(invert(key[off : off+timeFieldLen]))
	if err != nil {
		return codec.Hash{}, 0, 0, 0, fmt.Errorf("%w: bt field: %v", chronoerr.ErrCorruptIndex, err)
	}
	off += timeFieldLen
	tt, err = codec.DecodeInt64(invert(key[off : off+timeFieldLen]))
	if err != nil {
		return codec.Hash{}, 0, 0, 0, fmt.Errorf("%w: tt field: %v", chronoerr.ErrCorruptIndex, err)
	}
	off += timeFieldLen
	txID, err = codec.DecodeInt64(invert(key[off : off+timeFieldLen]))
	if err != nil {
		return codec.Hash{}, 0, 0, 0, fmt.Errorf("%w: tx-id field: %v", chronoerr.ErrCorruptIndex, err)
	}
	return eid, bt, tt, txID, nil
}

// EntityHistoryValue packs the index-3 value: content-hash plus the
// op-index tie-break byte.
func EntityHistoryValue(content codec.Hash, opIndex uint8) []byte {
	v := make([]byte, 0, entityValLen)
	v = append(v, content.Bytes()...)
	return append(v, opIndex)
}

// DecodeEntityHistoryValue reverses EntityHistoryValue.
func DecodeEntityHistoryValue(val []byte) (content codec.Hash, opIndex uint8, err error) {
	if len(val) != entityValLen {
		return codec.Hash{}, 0, fmt.Errorf("%w: bad index-3 value length %d", chronoerr.ErrCorruptIndex, len(val))
	}
	content, err = codec.HashFromBytes(val[:hashLen])
	if err != nil {
		return codec.Hash{}, 0, err
	}
	return content, val[hashLen], nil
}

// MetaKey hashes an arbitrary meta identifier (e.g. a (topic,
// partition) tuple's string form) down to the fixed-width index-4
// key.
func MetaKey(id string) []byte {
	h := codec.Sha1([]byte(id))
	k := make([]byte, 0, 1+hashLen)
	k = append(k, byte(TagMeta))
	return append(k, h.Bytes()...)
}

// ContentTombstoneKey builds the index-4 marker key recording that
// content was deliberately evicted, as distinct from "not yet
// produced". The indexer's pending-tx readiness check consults this
// so a transaction referencing a since-evicted hash does not wait
// forever for a document that will never arrive.
func ContentTombstoneKey(content codec.Hash) []byte {
	return MetaKey("content-tombstone:" + content.String())
}

// offsetMetaID formats the meta key identifier for a topic/partition
// offset entry.
func offsetMetaID(topic string, partition int) string {
	return fmt.Sprintf("offset:%s:%d", topic, partition)
}

// OffsetKey builds the index-4 key for a (topic, partition) consumer
// offset.
func OffsetKey(topic string, partition int) []byte {
	return MetaKey(offsetMetaID(topic, partition))
}

// EncodeOffset/DecodeOffset store the offset as a plain big-endian
// uint64; order doesn't matter for meta entries, only fixed width for
// corruption detection.
func EncodeOffset(offset int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(offset))
	return b
}

func DecodeOffset(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: bad offset value length %d", chronoerr.ErrCorruptIndex, len(b))
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}
