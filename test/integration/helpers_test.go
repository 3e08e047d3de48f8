// Package integration drives chronodb's embedded stack end to end:
// a txlog.Client, a boltkv.Store, an indexer.Indexer consuming both
// topics, a writer.Writer submitting transactions, and a query.Engine
// reading the result. There is no separate networked process to
// connect to, unlike a deployment with a Kafka broker, so every test
// here assembles its own in-process instance of the stack.
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/chronodb/pkg/document"
	"github.com/cuemby/chronodb/pkg/indexer"
	"github.com/cuemby/chronodb/pkg/kv/boltkv"
	"github.com/cuemby/chronodb/pkg/query"
	"github.com/cuemby/chronodb/pkg/txlog"
	"github.com/cuemby/chronodb/pkg/txlog/embedded"
	"github.com/cuemby/chronodb/pkg/writer"
	"github.com/stretchr/testify/require"
)

const (
	txTopic  = "chronodb-tx"
	docTopic = "chronodb-doc"
	pollWait = 200 * time.Millisecond
)

// stack bundles one in-process chronodb instance: a log client, a KV
// store, an indexer, a writer, and a query engine all wired together.
type stack struct {
	t       *testing.T
	dataDir string
	client  *embedded.Client
	store   *boltkv.Store
	indexer *indexer.Indexer
	writer  *writer.Writer
	query   *query.Engine
}

// newStack builds a fresh instance rooted at a new temp directory.
func newStack(t *testing.T) *stack {
	t.Helper()
	dataDir := t.TempDir()
	return stackOver(t, dataDir, t.TempDir())
}

// stackOver builds an instance whose log client is rooted at logDir
// and whose KV store is rooted at storeDir, so a test can pair a
// fresh store with a log client that already has data on disk (a
// from-scratch replay).
func stackOver(t *testing.T, logDir, storeDir string) *stack {
	t.Helper()

	client, err := embedded.New(logDir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := boltkv.Open(storeDir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, client.CreateTopic(ctx, txlog.TxTopicConfig(txTopic)))
	require.NoError(t, client.CreateTopic(ctx, txlog.DocTopicConfig(docTopic)))

	ix := indexer.New(client, store, indexer.Config{
		TxTopic:     txTopic,
		DocTopic:    docTopic,
		PollTimeout: 20 * time.Millisecond,
	}, nil)
	require.NoError(t, ix.Start(ctx))

	return &stack{
		t:       t,
		dataDir: logDir,
		client:  client,
		store:   store,
		indexer: ix,
		writer:  writer.New(client, writer.Config{TxTopic: txTopic, DocTopic: docTopic}),
		query:   query.New(store),
	}
}

// drain calls ConsumeAndIndex until two consecutive calls apply
// nothing, so every producible record already on the log has been
// indexed.
func (s *stack) drain(ctx context.Context) indexer.Result {
	s.t.Helper()
	var total indexer.Result
	idle := 0
	for idle < 2 {
		result, err := s.indexer.ConsumeAndIndex(ctx)
		require.NoError(s.t, err)
		total.Txs += result.Txs
		total.Docs += result.Docs
		if result.Txs == 0 && result.Docs == 0 {
			idle++
		} else {
			idle = 0
		}
	}
	return total
}

func nowMillis() int64 { return time.Now().UnixMilli() }

func eid(t *testing.T, v interface{}) document.EntityId {
	t.Helper()
	id, err := document.CanonicalizeEntityId(v)
	require.NoError(t, err)
	return id
}
