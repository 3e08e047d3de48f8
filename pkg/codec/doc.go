// Package codec implements chronodb's order-preserving byte
// encodings and identity hashing: the primitives that make every
// range scan in pkg/index correct.
//
// Each primitive type (signed 64-bit integer, IEEE-754 double,
// millisecond timestamp, UTF-8 string, arbitrary byte array) has an
// encoding whose byte-lexicographic order matches the source type's
// natural order, so the underlying ordered KV store's range scans
// double as attribute range scans. Values that are not themselves
// fixed-width (strings, byte arrays, arbitrary objects) are folded
// down to a fixed HashSize digest or a bounded, terminated byte
// string so every key built from them has a predictable width.
package codec
