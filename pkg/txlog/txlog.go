// Package txlog declares chronodb's log-client contract: topic creation
// with policy validation, produce, and a poll-based consumer with
// externally managed offsets. pkg/txlog/embedded and
// pkg/txlog/kafka each implement Client against a different backing
// transport.
package txlog

import (
	"context"
	"time"
)

// CleanupPolicy is a topic's retention policy, validated by
// CreateTopic against each topic's required configuration.
type CleanupPolicy string

const (
	CleanupDelete  CleanupPolicy = "delete"
	CleanupCompact CleanupPolicy = "compact"
)

// TopicConfig describes a topic's required policy. RetentionMs of -1
// means infinite retention (the tx-topic's requirement).
type TopicConfig struct {
	Name                   string
	Partitions             int
	CleanupPolicy          CleanupPolicy
	RetentionMs            int64
	MinCleanableDirtyRatio float64
}

// TxTopicConfig and DocTopicConfig describe the fixed topic policies
// every deployment needs. Embedders name their actual topics however
// they like; these describe the policy every "tx" and "doc" role
// topic must satisfy.
func TxTopicConfig(name string) TopicConfig {
	return TopicConfig{Name: name, Partitions: 1, CleanupPolicy: CleanupDelete, RetentionMs: -1}
}

func DocTopicConfig(name string) TopicConfig {
	return TopicConfig{Name: name, Partitions: 1, CleanupPolicy: CleanupCompact, MinCleanableDirtyRatio: 0.1}
}

// Record is one produced or consumed log entry.
type Record struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte // nil for records with no key (tx-topic records)
	Value     []byte
	Timestamp time.Time
}

// ProduceResult is what a successful Produce call resolves to: the
// writer's submit-tx future resolves with exactly these two fields
// for the tx-topic record.
type ProduceResult struct {
	Offset    int64
	Timestamp time.Time
}

// Client is the log-client contract every indexer and writer depend
// on. A topic's policy is checked by CreateTopic, which fails with
// chronoerr.ErrLogPolicyMismatch when an existing topic's
// configuration does not match its TopicConfig.
type Client interface {
	// CreateTopic creates cfg.Name if absent, or validates an
	// existing topic's policy against cfg and fails with
	// ErrLogPolicyMismatch on mismatch.
	CreateTopic(ctx context.Context, cfg TopicConfig) error

	// Produce appends value (with optional key) to topic and reports
	// the assigned offset and timestamp once acknowledged.
	Produce(ctx context.Context, topic string, key, value []byte) (ProduceResult, error)

	// Subscribe assigns the consumer to partition 0 of each topic. It
	// does not re-check a topic's configuration; that check happens in
	// CreateTopic.
	Subscribe(ctx context.Context, topics []string) error

	// Seek repositions the consumer for (topic, partition) to offset,
	// used by subscribe-from-stored-offsets to resume after restart.
	Seek(ctx context.Context, topic string, partition int, offset int64) error

	// Poll blocks up to timeout waiting for records across every
	// subscribed topic/partition, returning whatever is available
	// (possibly empty) once timeout elapses or records arrive.
	Poll(ctx context.Context, timeout time.Duration) ([]Record, error)

	Close() error
}
