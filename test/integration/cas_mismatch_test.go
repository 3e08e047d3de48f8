package integration

import (
	"context"
	"testing"

	"github.com/cuemby/chronodb/pkg/document"
	"github.com/cuemby/chronodb/pkg/txn"
	"github.com/stretchr/testify/require"
)

// A cas op whose expected-hash doesn't match the entity's current
// content hash still advances the tx-topic offset (the transaction
// was processed, just not applied), but writes no index-3 entry: a
// subsequent query still sees the entity's prior version.
func TestCasMismatchLeavesEntityUnchanged(t *testing.T) {
	if testing.Short() {
		t.Skip("integration")
	}
	s := newStack(t)
	ctx := context.Background()

	e := eid(t, "cas-target")
	v1 := document.New(map[string]interface{}{"v": int64(1)})
	content1 := produceDocRaw(t, ctx, s, v1)
	produceTxRaw(t, ctx, s, []txn.Op{txn.Put(e, content1, nil)})
	s.drain(ctx)

	assertVisible(t, ctx, s.query, e, true, v1.Attrs)

	v2 := document.New(map[string]interface{}{"v": int64(2)})
	content2 := produceDocRaw(t, ctx, s, v2)
	wrongExpected := eid(t, "not-the-current-content-hash")
	produceTxRaw(t, ctx, s, []txn.Op{txn.Cas(e, wrongExpected, content2, nil)})

	result := s.drain(ctx)
	require.Equal(t, 1, result.Txs, "a failed cas still advances the tx offset")

	assertVisible(t, ctx, s.query, e, true, v1.Attrs)
}
