package txn

import (
	"testing"

	"github.com/cuemby/chronodb/pkg/codec"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeOpsRoundTrip(t *testing.T) {
	eid := codec.Sha1([]byte("picasso"))
	content := codec.Sha1([]byte("doc-v1"))
	expected := codec.Sha1([]byte("doc-v0"))
	bt := int64(12345)

	ops := []Op{
		Put(eid, content, &bt),
		Delete(eid, nil),
		Cas(eid, expected, content, nil),
		Evict(eid),
	}

	raw, err := EncodeOps(ops)
	require.NoError(t, err)

	got, err := DecodeOps(raw)
	require.NoError(t, err)
	require.Len(t, got, 4)

	require.Equal(t, OpPut, got[0].Kind)
	require.Equal(t, eid, got[0].EntityId)
	require.Equal(t, content, got[0].ContentHash)
	require.NotNil(t, got[0].BusinessTime)
	require.Equal(t, bt, *got[0].BusinessTime)

	require.Equal(t, OpDelete, got[1].Kind)
	require.Nil(t, got[1].BusinessTime)

	require.Equal(t, OpCas, got[2].Kind)
	require.Equal(t, expected, got[2].ExpectedHash)
	require.Equal(t, content, got[2].ContentHash)

	require.Equal(t, OpEvict, got[3].Kind)
	require.Equal(t, eid, got[3].EntityId)
}

func TestDecodeOpsRejectsUnknownKind(t *testing.T) {
	_, err := decodeOp(map[string]interface{}{"kind": "nonsense", "eid": codec.Sha1([]byte("x")).Bytes()})
	require.Error(t, err)
}
