package integration

import (
	"context"
	"testing"

	"github.com/cuemby/chronodb/pkg/document"
	"github.com/cuemby/chronodb/pkg/txn"
	"github.com/stretchr/testify/require"
)

// Seven foaf-style facts about Pablo Picasso, asserted as one document
// keyed under the :picasso entity, resolve correctly through
// entity-as-of once the indexer has caught up.
func TestEntityAsOfResolvesAssertedFacts(t *testing.T) {
	if testing.Short() {
		t.Skip("integration")
	}
	s := newStack(t)
	ctx := context.Background()

	picasso := eid(t, ":picasso")
	facts := document.New(map[string]interface{}{
		"foaf:firstName": "Pablo",
		"foaf:surname":   "Picasso",
		"foaf:nick":      "Picasso",
		"foaf:birthday":  "1881-10-25",
		"foaf:gender":    "male",
		"foaf:based_near": "Malaga",
		"foaf:topic_interest": "painting",
	})
	content := produceDocRaw(t, ctx, s, facts)
	produceTxRaw(t, ctx, s, []txn.Op{txn.Put(picasso, content, nil)})

	result, err := s.indexer.ConsumeAndIndex(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Txs)
	require.Equal(t, 1, result.Docs)

	now := nowMillis()
	doc, found, err := s.query.EntityAsOf(ctx, picasso, now, now)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "Pablo", doc.Attrs["foaf:firstName"])
	require.Equal(t, "Picasso", doc.Attrs["foaf:surname"])
}
