package codec

import (
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/cuemby/chronodb/pkg/chronoerr"
)

// HashSize is the width, in bytes, of every content-hash and every
// EntityId in chronodb: a SHA-1 digest.
const HashSize = 20

// Hash is a fixed-width SHA-1 digest used for both EntityId and
// ContentHash throughout the index layout.
type Hash [HashSize]byte

// ZeroHash is the fixed sentinel digest used to encode a nil or empty
// byte array.
var ZeroHash Hash

// Sha1 returns the SHA-1 digest of b as a Hash.
func Sha1(b []byte) Hash {
	return Hash(sha1.Sum(b))
}

// Bytes returns the hash's raw bytes.
func (h Hash) Bytes() []byte { return h[:] }

// String returns the hash hex-encoded, for logging.
func (h Hash) String() string { return fmt.Sprintf("%x", h[:]) }

// IsZero reports whether h equals ZeroHash (the "nil bytes"
// sentinel; the eviction tombstone is document.TombstoneHash).
func (h Hash) IsZero() bool { return h == ZeroHash }

// HashFromBytes decodes a byte slice into a Hash, failing fast on any
// width other than HashSize: the ingress guard every fixed-width key
// component requires.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, fmt.Errorf("%w: hash has %d bytes, want %d", chronoerr.ErrCorruptIndex, len(b), HashSize)
	}
	copy(h[:], b)
	return h, nil
}

// signBit is the high bit of a 64-bit two's-complement integer.
const signBit = uint64(1) << 63

// EncodeInt64 encodes a signed 64-bit integer as 8 big-endian bytes
// with the sign bit flipped, so that byte-lexicographic order matches
// numeric order.
func EncodeInt64(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v)^signBit)
	return buf
}

// DecodeInt64 is the inverse of EncodeInt64.
func DecodeInt64(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: int64 key has %d bytes, want 8", chronoerr.ErrCorruptIndex, len(b))
	}
	u := binary.BigEndian.Uint64(b) ^ signBit
	return int64(u), nil
}

// EncodeFloat64 encodes an IEEE-754 double so that byte-lexicographic
// order matches numeric order: for negative values every bit is
// inverted, for non-negative values only the sign bit is flipped,
// then the result is offset by one so NaN's bit pattern (which would
// otherwise collide with the most negative encoding) sorts outside
// the range of valid encodings (the "+1" offset).
func EncodeFloat64(v float64) []byte {
	bits := math.Float64bits(v)
	if v < 0 || (bits>>63) == 1 {
		bits = ^bits
	} else {
		bits ^= signBit
	}
	bits++
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, bits)
	return buf
}

// DecodeFloat64 is the inverse of EncodeFloat64.
func DecodeFloat64(b []byte) (float64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: float64 key has %d bytes, want 8", chronoerr.ErrCorruptIndex, len(b))
	}
	bits := binary.BigEndian.Uint64(b)
	bits--
	if bits>>63 == 1 {
		bits ^= signBit
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits), nil
}

// EncodeTime encodes a time.Time as its millisecond Unix timestamp,
// order-preserving via EncodeInt64.
func EncodeTime(t time.Time) []byte {
	return EncodeInt64(t.UnixMilli())
}

// DecodeTime is the inverse of EncodeTime.
func DecodeTime(b []byte) (time.Time, error) {
	ms, err := DecodeInt64(b)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

// maxStringBytes is the truncation width for encoded strings.
const maxStringBytes = 128

// stringTerminator is appended after truncation so that a string
// which is a strict prefix of another still sorts before it.
const stringTerminator = 0x01

// EncodeString encodes s as order-preserving bytes: every UTF-8 byte
// is shifted up by two (reserving 0x00 and 0x01 as low sentinels),
// the result is truncated to maxStringBytes, and a 0x01 terminator is
// appended.
func EncodeString(s string) []byte {
	raw := []byte(s)
	if len(raw) > maxStringBytes {
		raw = raw[:maxStringBytes]
	}
	out := make([]byte, len(raw)+1)
	for i, b := range raw {
		out[i] = b + 2
	}
	out[len(raw)] = stringTerminator
	return out
}

// DecodeString is the inverse of EncodeString. Because encoding
// truncates long strings, decoding a truncated string does not
// recover the original; callers needing the original value should
// keep it alongside the key, not reconstruct it from the key.
func DecodeString(b []byte) (string, error) {
	if len(b) == 0 || b[len(b)-1] != stringTerminator {
		return "", fmt.Errorf("%w: string key missing terminator", chronoerr.ErrCorruptIndex)
	}
	raw := b[:len(b)-1]
	out := make([]byte, len(raw))
	for i, c := range raw {
		if c < 2 {
			return "", fmt.Errorf("%w: string key byte below reserved range", chronoerr.ErrCorruptIndex)
		}
		out[i] = c - 2
	}
	return string(out), nil
}

// EncodeBytes encodes an arbitrary byte array as its SHA-1 digest. A
// nil or empty array encodes to ZeroHash instead.
func EncodeBytes(b []byte) Hash {
	if len(b) == 0 {
		return ZeroHash
	}
	return Sha1(b)
}
