package embedded

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/chronodb/pkg/txlog"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, c.Close()) })
	return c
}

func TestProduceAndPollTxTopic(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	require.NoError(t, c.CreateTopic(ctx, txlog.TxTopicConfig("tx")))
	require.NoError(t, c.Subscribe(ctx, []string{"tx"}))

	res, err := c.Produce(ctx, "tx", nil, []byte("record-1"))
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Offset)

	recs, err := c.Poll(ctx, 50*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, []byte("record-1"), recs[0].Value)
	require.Equal(t, int64(1), recs[0].Offset)

	recs, err = c.Poll(ctx, 50*time.Millisecond)
	require.NoError(t, err)
	require.Empty(t, recs)
}

func TestProduceAndPollDocTopic(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	require.NoError(t, c.CreateTopic(ctx, txlog.DocTopicConfig("doc")))
	require.NoError(t, c.Subscribe(ctx, []string{"doc"}))

	_, err := c.Produce(ctx, "doc", []byte("hash-1"), []byte("doc-bytes"))
	require.NoError(t, err)

	recs, err := c.Poll(ctx, 50*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, []byte("hash-1"), recs[0].Key)
	require.Equal(t, []byte("doc-bytes"), recs[0].Value)
}

func TestSeekRewindsCursor(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	require.NoError(t, c.CreateTopic(ctx, txlog.TxTopicConfig("tx")))
	require.NoError(t, c.Subscribe(ctx, []string{"tx"}))

	_, err := c.Produce(ctx, "tx", nil, []byte("a"))
	require.NoError(t, err)
	_, err = c.Produce(ctx, "tx", nil, []byte("b"))
	require.NoError(t, err)

	recs, err := c.Poll(ctx, 50*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	require.NoError(t, c.Seek(ctx, "tx", 0, 1))
	recs, err = c.Poll(ctx, 50*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, recs, 2, "seeking back to offset 1 must replay both records")
}

func TestCreateTopicPolicyMismatchRejected(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	require.NoError(t, c.CreateTopic(ctx, txlog.TxTopicConfig("tx")))
	err := c.CreateTopic(ctx, txlog.DocTopicConfig("tx"))
	require.Error(t, err)
}

func TestRepeatedPollsDeliverEachRecordOnce(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	require.NoError(t, c.CreateTopic(ctx, txlog.DocTopicConfig("doc")))
	require.NoError(t, c.Subscribe(ctx, []string{"doc"}))

	for _, v := range []string{"d1", "d2", "d3"} {
		_, err := c.Produce(ctx, "doc", []byte(v), []byte(v))
		require.NoError(t, err)
	}

	var seen []string
	for i := 0; i < 3; i++ {
		recs, err := c.Poll(ctx, 10*time.Millisecond)
		require.NoError(t, err)
		for _, r := range recs {
			seen = append(seen, string(r.Value))
		}
	}
	require.ElementsMatch(t, []string{"d1", "d2", "d3"}, seen)
}
