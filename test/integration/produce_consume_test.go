package integration

import (
	"context"
	"testing"

	"github.com/cuemby/chronodb/pkg/document"
	"github.com/cuemby/chronodb/pkg/txn"
	"github.com/stretchr/testify/require"
)

func produceDocRaw(t *testing.T, ctx context.Context, s *stack, doc document.Document) document.ContentHash {
	t.Helper()
	content, err := doc.ContentHash()
	require.NoError(t, err)
	raw, err := doc.Bytes()
	require.NoError(t, err)
	_, err = s.client.Produce(ctx, docTopic, content.Bytes(), raw)
	require.NoError(t, err)
	return content
}

func produceTxRaw(t *testing.T, ctx context.Context, s *stack, ops []txn.Op) {
	t.Helper()
	raw, err := txn.EncodeOps(ops)
	require.NoError(t, err)
	_, err = s.client.Produce(ctx, txTopic, nil, raw)
	require.NoError(t, err)
}

// A single document keyed by its content hash produces onto
// the doc-topic and comes back unchanged on poll.
func TestProduceConsumeSingleDocument(t *testing.T) {
	if testing.Short() {
		t.Skip("integration")
	}
	s := newStack(t)
	ctx := context.Background()

	doc := document.New(map[string]interface{}{"greeting": "hello"})
	content := produceDocRaw(t, ctx, s, doc)

	require.NoError(t, s.client.Subscribe(ctx, []string{docTopic}))
	recs, err := s.client.Poll(ctx, pollWait)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	got, err := document.FromBytes(recs[0].Value)
	require.NoError(t, err)
	require.Equal(t, doc.Attrs, got.Attrs)

	gotHash, err := got.ContentHash()
	require.NoError(t, err)
	require.Equal(t, content, gotHash)
}
