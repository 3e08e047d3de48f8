package document

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDocumentRoundTrip(t *testing.T) {
	d := New(map[string]interface{}{
		"name":    "Pablo Picasso",
		"born":    int64(1881),
		"height":  1.78,
		"active":  true,
		"tags":    []interface{}{"painter", "sculptor"},
		"created": time.Date(2020, 3, 4, 5, 6, 7, 0, time.UTC),
		"avatar":  []byte{0xDE, 0xAD, 0xBE, 0xEF},
		"note":    nil,
	})

	raw, err := d.Bytes()
	require.NoError(t, err)

	got, err := FromBytes(raw)
	require.NoError(t, err)
	require.Equal(t, d.Attrs["name"], got.Attrs["name"])
	require.Equal(t, d.Attrs["born"], got.Attrs["born"])
	require.Equal(t, d.Attrs["height"], got.Attrs["height"])
	require.Equal(t, d.Attrs["active"], got.Attrs["active"])
	require.Equal(t, d.Attrs["tags"], got.Attrs["tags"])
	require.Equal(t, d.Attrs["avatar"], got.Attrs["avatar"])
	require.Nil(t, got.Attrs["note"])

	createdGot := got.Attrs["created"].(time.Time)
	require.True(t, d.Attrs["created"].(time.Time).Equal(createdGot))
}

func TestDocumentContentHashDeterministic(t *testing.T) {
	attrs := map[string]interface{}{"a": int64(1), "b": "two"}
	d1 := New(attrs)
	d2 := New(map[string]interface{}{"b": "two", "a": int64(1)})

	h1, err := d1.ContentHash()
	require.NoError(t, err)
	h2, err := d2.ContentHash()
	require.NoError(t, err)
	require.Equal(t, h1, h2, "map key order must not affect content hash")
}

func TestDocumentContentHashDiffers(t *testing.T) {
	h1, err := New(map[string]interface{}{"a": int64(1)}).ContentHash()
	require.NoError(t, err)
	h2, err := New(map[string]interface{}{"a": int64(2)}).ContentHash()
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}

func TestCanonicalizeEntityIdLiteralHash(t *testing.T) {
	h := EntityId{1, 2, 3}
	got, err := CanonicalizeEntityId(h)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestCanonicalizeEntityIdUUIDString(t *testing.T) {
	got1, err := CanonicalizeEntityId("123e4567-e89b-12d3-a456-426614174000")
	require.NoError(t, err)
	got2, err := CanonicalizeEntityId("123e4567-e89b-12d3-a456-426614174000")
	require.NoError(t, err)
	require.Equal(t, got1, got2)
}

func TestCanonicalizeEntityIdHexDigestWidth(t *testing.T) {
	hexStr := "0102030405060708090a0b0c0d0e0f1011121314"
	got, err := CanonicalizeEntityId(hexStr)
	require.NoError(t, err)
	require.Equal(t, byte(0x01), got[0])
	require.Equal(t, byte(0x14), got[19])
}

func TestCanonicalizeEntityIdBadHexDigestWidthRejected(t *testing.T) {
	bad := "zz02030405060708090a0b0c0d0e0f1011121314"
	_, err := CanonicalizeEntityId(bad)
	require.Error(t, err)
}

func TestCanonicalizeEntityIdKeywordString(t *testing.T) {
	got1, err := CanonicalizeEntityId("picasso")
	require.NoError(t, err)
	got2, err := CanonicalizeEntityId("picasso")
	require.NoError(t, err)
	require.Equal(t, got1, got2)

	other, err := CanonicalizeEntityId("matisse")
	require.NoError(t, err)
	require.NotEqual(t, got1, other)
}

func TestCanonicalizeEntityIdMap(t *testing.T) {
	got1, err := CanonicalizeEntityId(map[string]interface{}{"type": "artist", "name": "picasso"})
	require.NoError(t, err)
	got2, err := CanonicalizeEntityId(map[string]interface{}{"name": "picasso", "type": "artist"})
	require.NoError(t, err)
	require.Equal(t, got1, got2, "map key order must not affect canonicalized id")
}
