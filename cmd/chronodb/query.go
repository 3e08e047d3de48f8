package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cuemby/chronodb/pkg/codec"
	"github.com/cuemby/chronodb/pkg/document"
	"github.com/cuemby/chronodb/pkg/query"
	"github.com/spf13/cobra"
)

var asOfCmd = &cobra.Command{
	Use:   "as-of ENTITY",
	Short: "Resolve an entity's document as of a business time and transaction time",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsOf,
}

var historyCmd = &cobra.Command{
	Use:   "history ENTITY",
	Short: "List an entity's version history, most recent first",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan index-1 for an attribute within a value range",
	RunE:  runScan,
}

func init() {
	asOfCmd.Flags().Int64("business-time", 0, "Business time in unix millis; 0 means now")
	asOfCmd.Flags().Int64("transact-time", 0, "Transaction time in unix millis; 0 means now")

	scanCmd.Flags().String("attr", "", "Attribute name to scan (required)")
	scanCmd.Flags().String("kind", "string", "Value kind for --lower/--upper: string or long")
	scanCmd.Flags().String("lower", "", "Inclusive lower bound")
	scanCmd.Flags().String("upper", "", "Inclusive upper bound; unbounded above if unset")
	_ = scanCmd.MarkFlagRequired("attr")
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func openQueryEngine(cmd *cobra.Command) (*query.Engine, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	return query.New(store), func() { store.Close() }, nil
}

func runAsOf(cmd *cobra.Command, args []string) error {
	engine, closeFn, err := openQueryEngine(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	eid, err := document.CanonicalizeEntityId(args[0])
	if err != nil {
		return err
	}

	bt, _ := cmd.Flags().GetInt64("business-time")
	tt, _ := cmd.Flags().GetInt64("transact-time")
	if bt == 0 {
		bt = nowMillis()
	}
	if tt == 0 {
		tt = nowMillis()
	}

	doc, found, err := engine.EntityAsOf(cmd.Context(), eid, bt, tt)
	if err != nil {
		return err
	}
	if !found {
		return json.NewEncoder(os.Stdout).Encode(map[string]interface{}{"found": false})
	}
	return json.NewEncoder(os.Stdout).Encode(map[string]interface{}{"found": true, "attrs": doc.Attrs})
}

func runHistory(cmd *cobra.Command, args []string) error {
	engine, closeFn, err := openQueryEngine(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	eid, err := document.CanonicalizeEntityId(args[0])
	if err != nil {
		return err
	}

	it, err := engine.History(eid)
	if err != nil {
		return err
	}
	defer it.Close()

	enc := json.NewEncoder(os.Stdout)
	for it.Next() {
		e := it.Entry()
		if err := enc.Encode(map[string]interface{}{
			"business_time": e.BusinessTime,
			"transact_time": e.TransactTime,
			"tx_id":         e.TxID,
			"content_hash":  e.ContentHash.String(),
		}); err != nil {
			return err
		}
	}
	return it.Err()
}

func runScan(cmd *cobra.Command, args []string) error {
	engine, closeFn, err := openQueryEngine(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	attr, _ := cmd.Flags().GetString("attr")
	kindName, _ := cmd.Flags().GetString("kind")
	lowerStr, _ := cmd.Flags().GetString("lower")
	upperStr, _ := cmd.Flags().GetString("upper")

	lower, err := encodeScanBound(kindName, lowerStr)
	if err != nil {
		return fmt.Errorf("chronodb: --lower: %w", err)
	}
	var upper []byte
	if upperStr != "" {
		upper, err = encodeScanBound(kindName, upperStr)
		if err != nil {
			return fmt.Errorf("chronodb: --upper: %w", err)
		}
	}

	it, err := engine.AttributeRangeScan(attr, lower, upper)
	if err != nil {
		return err
	}
	defer it.Close()

	enc := json.NewEncoder(os.Stdout)
	for it.Next() {
		e := it.Entry()
		if err := enc.Encode(map[string]interface{}{
			"content_hash": e.ContentHash.String(),
		}); err != nil {
			return err
		}
	}
	return it.Err()
}

func encodeScanBound(kindName, raw string) ([]byte, error) {
	if raw == "" {
		return nil, nil
	}
	switch kindName {
	case "long":
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		return codec.Encode(codec.Long(n))
	case "string":
		return codec.Encode(codec.String(raw))
	default:
		return nil, fmt.Errorf("unknown value kind %q, want string or long", kindName)
	}
}
