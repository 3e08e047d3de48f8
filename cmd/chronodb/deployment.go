package main

import (
	"context"
	"fmt"

	"github.com/cuemby/chronodb/pkg/config"
	"github.com/cuemby/chronodb/pkg/kv/boltkv"
	"github.com/cuemby/chronodb/pkg/txlog"
	"github.com/cuemby/chronodb/pkg/txlog/embedded"
	"github.com/cuemby/chronodb/pkg/txlog/kafka"
	"github.com/spf13/cobra"
)

// loadConfig reads --config (falling back to defaults when unset or
// missing) and validates the result.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// openStore opens the bbolt-backed kv.Store under cfg.DataDir.
func openStore(cfg config.Config) (*boltkv.Store, error) {
	store, err := boltkv.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("chronodb: open store: %w", err)
	}
	return store, nil
}

// openLogClient constructs the txlog.Client named by cfg.LogBackend
// and registers both topics with their required policy.
func openLogClient(cfg config.Config) (txlog.Client, error) {
	var client txlog.Client
	switch cfg.LogBackend {
	case config.LogBackendKafka:
		c, err := kafka.New(kafka.Config{Brokers: cfg.KafkaBrokers})
		if err != nil {
			return nil, fmt.Errorf("chronodb: kafka client: %w", err)
		}
		client = c
	default:
		c, err := embedded.New(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("chronodb: embedded log client: %w", err)
		}
		client = c
	}

	ctx := context.Background()
	if err := client.CreateTopic(ctx, txlog.TxTopicConfig(cfg.TxTopic)); err != nil {
		return nil, fmt.Errorf("chronodb: create tx topic: %w", err)
	}
	if err := client.CreateTopic(ctx, txlog.DocTopicConfig(cfg.DocTopic)); err != nil {
		return nil, fmt.Errorf("chronodb: create doc topic: %w", err)
	}
	return client, nil
}
