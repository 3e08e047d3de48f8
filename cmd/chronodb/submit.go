package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cuemby/chronodb/pkg/document"
	"github.com/cuemby/chronodb/pkg/txn"
	"github.com/cuemby/chronodb/pkg/writer"
	"github.com/spf13/cobra"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a transaction from a JSON document read off stdin",
	Long: `submit reads a JSON object off stdin describing zero or
more operations and calls SubmitTx with them. Each operation's
entity accepts any shape CanonicalizeEntityId accepts: a UUID
string, a 40-character hex digest, or an arbitrary keyword string.

Input shape:

  {
    "ops": [
      {"kind": "put", "entity": "user:42", "attrs": {"name": "Ada"}, "business_time": 1700000000000},
      {"kind": "delete", "entity": "user:43"},
      {"kind": "cas", "entity": "user:44", "expected_hash": "<hex>", "attrs": {"name": "Bob"}},
      {"kind": "evict", "entity": "user:45"}
    ]
  }

"put" and "cas" ops carry attrs inline; chronodb computes the
content hash and produces the document to the doc-topic before the
tx-topic record, per submit-tx's ordering requirement.`,
	RunE: runSubmit,
}

type submitRequest struct {
	Ops []submitOp `json:"ops"`
}

type submitOp struct {
	Kind         string                 `json:"kind"`
	Entity       interface{}            `json:"entity"`
	Attrs        map[string]interface{} `json:"attrs,omitempty"`
	ExpectedHash string                 `json:"expected_hash,omitempty"`
	BusinessTime *int64                 `json:"business_time,omitempty"`
}

func runSubmit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	client, err := openLogClient(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	var req submitRequest
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		return fmt.Errorf("chronodb: decode request: %w", err)
	}

	docs := make([]txn.Documents, 0, len(req.Ops))
	ops := make([]txn.Op, 0, len(req.Ops))

	for i, o := range req.Ops {
		eid, err := document.CanonicalizeEntityId(o.Entity)
		if err != nil {
			return fmt.Errorf("chronodb: op %d: %w", i, err)
		}

		switch o.Kind {
		case "put":
			d, op, err := writer.PutDoc(eid, document.New(o.Attrs), o.BusinessTime)
			if err != nil {
				return fmt.Errorf("chronodb: op %d: %w", i, err)
			}
			docs = append(docs, d)
			ops = append(ops, op)
		case "delete":
			ops = append(ops, txn.Delete(eid, o.BusinessTime))
		case "cas":
			expected, err := document.CanonicalizeEntityId(o.ExpectedHash)
			if err != nil {
				return fmt.Errorf("chronodb: op %d: expected_hash: %w", i, err)
			}
			d, newOp, err := writer.PutDoc(eid, document.New(o.Attrs), o.BusinessTime)
			if err != nil {
				return fmt.Errorf("chronodb: op %d: %w", i, err)
			}
			docs = append(docs, d)
			ops = append(ops, txn.Cas(eid, expected, newOp.ContentHash, o.BusinessTime))
		case "evict":
			ops = append(ops, txn.Evict(eid))
		default:
			return fmt.Errorf("chronodb: op %d: unknown kind %q", i, o.Kind)
		}
	}

	w := writer.New(client, writer.Config{TxTopic: cfg.TxTopic, DocTopic: cfg.DocTopic})

	result, err := w.SubmitTx(context.Background(), docs, ops)
	if err != nil {
		return fmt.Errorf("chronodb: submit-tx: %w", err)
	}

	return json.NewEncoder(os.Stdout).Encode(map[string]interface{}{
		"tx_id":   result.TxID,
		"tx_time": result.TxTime,
	})
}
