package integration

import (
	"context"
	"testing"

	"github.com/cuemby/chronodb/pkg/document"
	"github.com/cuemby/chronodb/pkg/txn"
	"github.com/cuemby/chronodb/pkg/writer"
	"github.com/stretchr/testify/require"
)

// A batch of three puts becomes one tx-topic record and three
// doc-topic records. consume-and-index reports them once, a second
// call finds nothing left, and tx-log replays the same tx-id and
// tx-time submit-tx returned.
func TestSubmitTxBatchesDocsUnderOneTransaction(t *testing.T) {
	if testing.Short() {
		t.Skip("integration")
	}
	s := newStack(t)
	ctx := context.Background()

	var docs []txn.Documents
	var ops []txn.Op
	for _, name := range []string{"alice", "bob", "carol"} {
		d, op, err := writer.PutDoc(eid(t, name), document.New(map[string]interface{}{"name": name}), nil)
		require.NoError(t, err)
		docs = append(docs, d)
		ops = append(ops, op)
	}

	result, err := s.writer.SubmitTx(ctx, docs, ops)
	require.NoError(t, err)

	first, err := s.indexer.ConsumeAndIndex(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, first.Txs)
	require.Equal(t, 3, first.Docs)

	second, err := s.indexer.ConsumeAndIndex(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, second.Txs)
	require.Equal(t, 0, second.Docs)

	// seek explicitly to the tx's own offset: the indexer's own poll
	// loop already advanced the client's shared cursor past it.
	it, err := s.query.TxLog(ctx, s.client, txTopic, result.TxID)
	require.NoError(t, err)
	defer it.Close()

	require.True(t, it.Next())
	tx := it.Entry()
	require.Equal(t, result.TxID, tx.TxID)
	require.Equal(t, result.TxTime, tx.TransactTime)
	require.Len(t, tx.Ops, 3)
}
