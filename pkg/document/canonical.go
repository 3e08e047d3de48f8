package document

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"
)

// canonical tag bytes. These are internal to the wire format and
// never compared across versions, only used to disambiguate a single
// serialization pass.
const (
	tagNull byte = iota
	tagBool
	tagInt64
	tagFloat64
	tagString
	tagBytes
	tagTime
	tagList
	tagMap
)

// CanonicalBytes deterministically serializes v — a scalar, []byte,
// time.Time, []interface{}, or map[string]interface{} — so that the
// same logical value always produces the same bytes regardless of Go
// map iteration order. Content-hashing and composite EntityId hashing
// both build on this "canonical freeze of a map" primitive.
func CanonicalBytes(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeCanonical(buf *bytes.Buffer, v interface{}) error {
	switch x := v.(type) {
	case nil:
		buf.WriteByte(tagNull)
		return nil
	case bool:
		buf.WriteByte(tagBool)
		if x {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		return nil
	case int:
		return encodeCanonical(buf, int64(x))
	case int64:
		buf.WriteByte(tagInt64)
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(x))
		buf.Write(tmp[:])
		return nil
	case float64:
		buf.WriteByte(tagFloat64)
		if x == 0 {
			x = 0 // normalize -0.0
		}
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], math.Float64bits(x))
		buf.Write(tmp[:])
		return nil
	case string:
		buf.WriteByte(tagString)
		writeLenPrefixed(buf, []byte(x))
		return nil
	case []byte:
		buf.WriteByte(tagBytes)
		writeLenPrefixed(buf, x)
		return nil
	case time.Time:
		buf.WriteByte(tagTime)
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(x.UnixMilli()))
		buf.Write(tmp[:])
		return nil
	case []interface{}:
		buf.WriteByte(tagList)
		writeUvarint(buf, uint64(len(x)))
		for _, elem := range x {
			if err := encodeCanonical(buf, elem); err != nil {
				return err
			}
		}
		return nil
	case map[string]interface{}:
		buf.WriteByte(tagMap)
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		writeUvarint(buf, uint64(len(keys)))
		for _, k := range keys {
			writeLenPrefixed(buf, []byte(k))
			if err := encodeCanonical(buf, x[k]); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("document: value of type %T is not canonicalizable", v)
	}
}

func writeLenPrefixed(buf *bytes.Buffer, b []byte) {
	writeUvarint(buf, uint64(len(b)))
	buf.Write(b)
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

// DecodeCanonical reverses CanonicalBytes, parsing bytes back into Go
// values (nil, bool, int64, float64, string, []byte, time.Time,
// []interface{}, map[string]interface{}). The indexer uses this to
// recover a document's attribute map from the opaque bytes it reads
// off the doc-topic so it can populate the attribute/value index.
func DecodeCanonical(b []byte) (interface{}, error) {
	r := bytes.NewReader(b)
	v, err := decodeCanonical(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("document: %d trailing bytes after canonical value", r.Len())
	}
	return v, nil
}

func decodeCanonical(r *bytes.Reader) (interface{}, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("document: read tag: %w", err)
	}

	switch tag {
	case tagNull:
		return nil, nil
	case tagBool:
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		return b == 1, nil
	case tagInt64:
		var tmp [8]byte
		if _, err := readFull(r, tmp[:]); err != nil {
			return nil, err
		}
		return int64(binary.BigEndian.Uint64(tmp[:])), nil
	case tagFloat64:
		var tmp [8]byte
		if _, err := readFull(r, tmp[:]); err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.BigEndian.Uint64(tmp[:])), nil
	case tagString:
		raw, err := readLenPrefixed(r)
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	case tagBytes:
		return readLenPrefixed(r)
	case tagTime:
		var tmp [8]byte
		if _, err := readFull(r, tmp[:]); err != nil {
			return nil, err
		}
		ms := int64(binary.BigEndian.Uint64(tmp[:]))
		return time.UnixMilli(ms).UTC(), nil
	case tagList:
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		out := make([]interface{}, 0, n)
		for i := uint64(0); i < n; i++ {
			elem, err := decodeCanonical(r)
			if err != nil {
				return nil, err
			}
			out = append(out, elem)
		}
		return out, nil
	case tagMap:
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		out := make(map[string]interface{}, n)
		for i := uint64(0); i < n; i++ {
			keyRaw, err := readLenPrefixed(r)
			if err != nil {
				return nil, err
			}
			val, err := decodeCanonical(r)
			if err != nil {
				return nil, err
			}
			out[string(keyRaw)] = val
		}
		return out, nil
	default:
		return nil, fmt.Errorf("document: unknown canonical tag %d", tag)
	}
}

func readLenPrefixed(r *bytes.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	if _, err := readFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	n, err := r.Read(buf)
	if err == nil && n != len(buf) {
		err = fmt.Errorf("document: short read: got %d bytes, want %d", n, len(buf))
	}
	return n, err
}
