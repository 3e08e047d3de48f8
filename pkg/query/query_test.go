package query

import (
	"context"
	"testing"

	"github.com/cuemby/chronodb/pkg/document"
	"github.com/cuemby/chronodb/pkg/index"
	"github.com/cuemby/chronodb/pkg/kv"
	"github.com/cuemby/chronodb/pkg/kv/boltkv"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *boltkv.Store {
	t.Helper()
	store, err := boltkv.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func putEntity(t *testing.T, store *boltkv.Store, eid document.EntityId, bt, tt, txID int64, content document.ContentHash) {
	t.Helper()
	op := index.IndexEntityTx(index.EntityTx{EntityId: eid, BusinessTime: bt, TransactTime: tt, TxID: txID, ContentHash: content})
	require.NoError(t, store.WriteBatch(context.Background(), []kv.Op{op}))
}

func TestEntityAsOfReturnsLatestVersionAtOrBeforeBusinessTime(t *testing.T) {
	store := newTestStore(t)
	eng := New(store)
	ctx := context.Background()

	eid := mustHash(t, "picasso")
	doc := document.New(map[string]interface{}{"firstName": "Pablo"})
	content, err := doc.ContentHash()
	require.NoError(t, err)
	raw, err := doc.Bytes()
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, index.ObjectKey(content), raw))

	putEntity(t, store, eid, 1000, 1000, 1, content)

	got, ok, err := eng.EntityAsOf(ctx, eid, 2000, 2000)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Pablo", got.Attrs["firstName"])

	_, ok, err = eng.EntityAsOf(ctx, eid, 500, 500)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEntityAsOfReportsEvictedEntityAsAbsent(t *testing.T) {
	store := newTestStore(t)
	eng := New(store)
	ctx := context.Background()

	eid := mustHash(t, "doomed")
	putEntity(t, store, eid, 1000, 1000, 1, document.TombstoneHash)

	_, ok, err := eng.EntityAsOf(ctx, eid, 2000, 2000)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHistoryIteratorYieldsReverseChronological(t *testing.T) {
	store := newTestStore(t)
	eng := New(store)

	eid := mustHash(t, "versioned")
	h1 := document.ContentHash{1}
	h2 := document.ContentHash{2}
	putEntity(t, store, eid, 1000, 1000, 1, h1)
	putEntity(t, store, eid, 2000, 2000, 2, h2)

	it, err := eng.History(eid)
	require.NoError(t, err)
	defer it.Close()

	require.True(t, it.Next())
	require.Equal(t, int64(2000), it.Entry().BusinessTime)
	require.True(t, it.Next())
	require.Equal(t, int64(1000), it.Entry().BusinessTime)
	require.False(t, it.Next())
	require.NoError(t, it.Err())
}

func mustHash(t *testing.T, s string) document.EntityId {
	t.Helper()
	h, err := document.CanonicalizeEntityId(s)
	require.NoError(t, err)
	return h
}
