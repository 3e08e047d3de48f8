package index

import (
	"context"
	"testing"

	"github.com/cuemby/chronodb/pkg/codec"
	"github.com/cuemby/chronodb/pkg/document"
	"github.com/cuemby/chronodb/pkg/kv"
	"github.com/cuemby/chronodb/pkg/kv/boltkv"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *boltkv.Store {
	t.Helper()
	s, err := boltkv.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestEntityHistoryKeyRoundTrip(t *testing.T) {
	eid := codec.Sha1([]byte("picasso"))
	key := EntityHistoryKey(eid, 1000, 2000, 3)
	gotEid, bt, tt, txID, err := DecodeEntityHistoryKey(key)
	require.NoError(t, err)
	require.Equal(t, eid, gotEid)
	require.Equal(t, int64(1000), bt)
	require.Equal(t, int64(2000), tt)
	require.Equal(t, int64(3), txID)
}

func TestEntityHistoryKeyReverseChronological(t *testing.T) {
	eid := codec.Sha1([]byte("picasso"))
	older := EntityHistoryKey(eid, 1000, 1000, 1)
	newer := EntityHistoryKey(eid, 2000, 2000, 2)
	require.Less(t, string(newer), string(older), "newer bt/tt must sort before older within the same eid prefix")
}

func TestEntityHistoryValueRoundTrip(t *testing.T) {
	content := codec.Sha1([]byte("doc"))
	val := EntityHistoryValue(content, 4)
	gotContent, opIdx, err := DecodeEntityHistoryValue(val)
	require.NoError(t, err)
	require.Equal(t, content, gotContent)
	require.Equal(t, uint8(4), opIdx)
}

func TestIndexDocWritesObjectAndAttrValue(t *testing.T) {
	doc := document.New(map[string]interface{}{"firstName": "Pablo", "surname": "Picasso"})
	content, err := doc.ContentHash()
	require.NoError(t, err)

	ops, err := IndexDoc(content, doc)
	require.NoError(t, err)

	require.Len(t, ops, 3) // object record + 2 attr entries

	var sawObject bool
	for _, op := range ops {
		if Tag(op.Key[0]) == TagObject {
			sawObject = true
		}
	}
	require.True(t, sawObject)
}

func TestEntityAtAndAllHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	eid := codec.Sha1([]byte("picasso"))
	c1 := codec.Sha1([]byte("v1"))
	c2 := codec.Sha1([]byte("v2"))

	// Apply two versions directly via IndexEntityTx.
	ops := []kv.Op{
		IndexEntityTx(EntityTx{EntityId: eid, BusinessTime: 100, TransactTime: 100, TxID: 1, ContentHash: c1}),
		IndexEntityTx(EntityTx{EntityId: eid, BusinessTime: 200, TransactTime: 200, TxID: 2, ContentHash: c2}),
	}
	require.NoError(t, s.WriteBatch(ctx, ops))

	snap, err := s.NewSnapshot()
	require.NoError(t, err)
	defer snap.Close()

	got, ok, err := EntityAt(snap, eid, 150, 150)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, c1, got.ContentHash)

	got, ok, err = EntityAt(snap, eid, 250, 250)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, c2, got.ContentHash)

	_, ok, err = EntityAt(snap, eid, 50, 50)
	require.NoError(t, err)
	require.False(t, ok)

	history, err := AllEntityHistory(snap, eid)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, c2, history[0].ContentHash, "history must be reverse-chronological")
	require.Equal(t, c1, history[1].ContentHash)
}
