package codec

import "fmt"

// Canonicalizer lets an arbitrary Go value participate in the
// composite branch of Value: CanonicalBytes must return a
// deterministic serialization (stable field/key ordering) so that
// the same logical value always hashes to the same digest across
// processes. pkg/document's canonical document/map serializer is the
// primary implementation.
type Canonicalizer interface {
	CanonicalBytes() ([]byte, error)
}

// Value is a closed sum type standing in for dynamic per-type
// "value->bytes" dispatch: every order-encodable attribute value is
// exactly one of these seven kinds. There is no open extension point
// at runtime — adding a kind means adding a constructor and a case in
// Encode.
type Value struct {
	kind      kind
	long      int64
	double    float64
	str       string
	bytes     []byte
	composite Canonicalizer
}

type kind uint8

const (
	kindNull kind = iota
	kindLong
	kindDouble
	kindDate
	kindString
	kindBytes
	kindComposite
)

func Null() Value                  { return Value{kind: kindNull} }
func Long(v int64) Value           { return Value{kind: kindLong, long: v} }
func Double(v float64) Value       { return Value{kind: kindDouble, double: v} }
func Date(v int64) Value           { return Value{kind: kindDate, long: v} } // v is UnixMilli
func String(v string) Value        { return Value{kind: kindString, str: v} }
func Bytes(v []byte) Value         { return Value{kind: kindBytes, bytes: v} }
func Composite(c Canonicalizer) Value {
	return Value{kind: kindComposite, composite: c}
}

// Encode dispatches v to its order-preserving byte encoding. Only
// String encodes to a variable-width, order-preserving byte string;
// every other kind encodes to a fixed HashSize or 8-byte value so that
// keys built from it have a known width.
func Encode(v Value) ([]byte, error) {
	switch v.kind {
	case kindNull:
		return ZeroHash.Bytes(), nil
	case kindLong:
		return EncodeInt64(v.long), nil
	case kindDouble:
		return EncodeFloat64(v.double), nil
	case kindDate:
		return EncodeInt64(v.long), nil
	case kindString:
		return EncodeString(v.str), nil
	case kindBytes:
		h := EncodeBytes(v.bytes)
		return h.Bytes(), nil
	case kindComposite:
		raw, err := v.composite.CanonicalBytes()
		if err != nil {
			return nil, fmt.Errorf("codec: canonicalize composite value: %w", err)
		}
		h := Sha1(raw)
		return h.Bytes(), nil
	default:
		return nil, fmt.Errorf("codec: unknown value kind %d", v.kind)
	}
}
