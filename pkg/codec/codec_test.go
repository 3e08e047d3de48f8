package codec

import (
	"bytes"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestEncodeInt64Order is property P1 for signed 64-bit integers: for
// every pair a<b, EncodeInt64(a) < EncodeInt64(b) lexicographically.
func TestEncodeInt64Order(t *testing.T) {
	values := []int64{
		-1 << 63, -1 << 40, -1000, -1, 0, 1, 1000, 1 << 40, (1 << 63) - 1,
	}
	sorted := append([]int64(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	require.Equal(t, values, sorted, "fixture must already be sorted")

	for i := 1; i < len(sorted); i++ {
		a := EncodeInt64(sorted[i-1])
		b := EncodeInt64(sorted[i])
		require.Negative(t, bytes.Compare(a, b), "EncodeInt64(%d) should sort before EncodeInt64(%d)", sorted[i-1], sorted[i])
	}
}

func TestEncodeInt64RoundTrip(t *testing.T) {
	for _, v := range []int64{-1 << 63, -1, 0, 1, 1 << 62, (1 << 63) - 1} {
		got, err := DecodeInt64(EncodeInt64(v))
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestEncodeFloat64Order(t *testing.T) {
	values := []float64{
		-1e300, -1.5, -0.0001, 0, 0.0001, 1.5, 1e300,
	}
	for i := 1; i < len(values); i++ {
		a := EncodeFloat64(values[i-1])
		b := EncodeFloat64(values[i])
		require.Negativef(t, bytes.Compare(a, b), "EncodeFloat64(%v) should sort before EncodeFloat64(%v)", values[i-1], values[i])
	}
}

func TestEncodeFloat64RoundTrip(t *testing.T) {
	for _, v := range []float64{-1e300, -1.5, 0, 1.5, 1e300} {
		got, err := DecodeFloat64(EncodeFloat64(v))
		require.NoError(t, err)
		require.InDelta(t, v, got, 1e-9)
	}
}

func TestEncodeTimeOrder(t *testing.T) {
	t1 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	require.Negative(t, bytes.Compare(EncodeTime(t1), EncodeTime(t2)))
}

func TestEncodeTimeRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	got, err := DecodeTime(EncodeTime(now))
	require.NoError(t, err)
	require.True(t, now.Equal(got))
}

func TestEncodeStringOrder(t *testing.T) {
	values := []string{"", "a", "aa", "ab", "b", "zzz"}
	for i := 1; i < len(values); i++ {
		a := EncodeString(values[i-1])
		b := EncodeString(values[i])
		require.Negativef(t, bytes.Compare(a, b), "EncodeString(%q) should sort before EncodeString(%q)", values[i-1], values[i])
	}
}

func TestEncodeStringRoundTrip(t *testing.T) {
	for _, v := range []string{"", "hello", "unicode éè", "with\x01byte"} {
		got, err := DecodeString(EncodeString(v))
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestEncodeStringTruncates(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}
	encoded := EncodeString(string(long))
	require.LessOrEqual(t, len(encoded), maxStringBytes+1)
}

func TestEncodeBytesZeroForEmpty(t *testing.T) {
	require.Equal(t, ZeroHash, EncodeBytes(nil))
	require.Equal(t, ZeroHash, EncodeBytes([]byte{}))
}

func TestEncodeBytesDeterministic(t *testing.T) {
	a := EncodeBytes([]byte("payload"))
	b := EncodeBytes([]byte("payload"))
	require.Equal(t, a, b)
	require.NotEqual(t, ZeroHash, a)
}

func TestHashFromBytesRejectsWrongWidth(t *testing.T) {
	_, err := HashFromBytes([]byte{1, 2, 3})
	require.Error(t, err)
}

type fakeCanonical struct{ s string }

func (f fakeCanonical) CanonicalBytes() ([]byte, error) { return []byte(f.s), nil }

func TestEncodeCompositeDeterministic(t *testing.T) {
	v1, err := Encode(Composite(fakeCanonical{"x"}))
	require.NoError(t, err)
	v2, err := Encode(Composite(fakeCanonical{"x"}))
	require.NoError(t, err)
	require.Equal(t, v1, v2)

	v3, err := Encode(Composite(fakeCanonical{"y"}))
	require.NoError(t, err)
	require.NotEqual(t, v1, v3)
}

func TestEncodeNull(t *testing.T) {
	got, err := Encode(Null())
	require.NoError(t, err)
	require.Equal(t, ZeroHash.Bytes(), got)
}
