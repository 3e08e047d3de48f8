// Package kafka implements pkg/txlog.Client against a real Kafka (or
// Kafka-protocol-compatible) broker using github.com/segmentio/kafka-go,
// chronodb's production log-client backend. pkg/txlog/embedded covers
// the same contract without an external broker for dev/test use.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cuemby/chronodb/pkg/chronoerr"
	"github.com/cuemby/chronodb/pkg/log"
	"github.com/cuemby/chronodb/pkg/txlog"
	kafkago "github.com/segmentio/kafka-go"
)

// Config names the broker(s) this client dials.
type Config struct {
	Brokers []string
	GroupID string // informational; chronodb manages offsets itself
}

// Client implements txlog.Client over one or more Kafka brokers.
type Client struct {
	cfg     Config
	mu      sync.Mutex
	conns   map[string]*kafkago.Conn
	readers map[string]*kafkago.Reader
	subbed  []string
}

var _ txlog.Client = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker address is required")
	}
	return &Client{
		cfg:     cfg,
		conns:   make(map[string]*kafkago.Conn),
		readers: make(map[string]*kafkago.Reader),
	}, nil
}

// CreateTopic creates the topic with cfg's required policy if it does
// not exist, or validates the existing topic's live configuration
// against cfg and fails with chronoerr.ErrLogPolicyMismatch on
// mismatch, refusing to operate against a topic whose policy does not
// match what was registered at startup.
func (c *Client) CreateTopic(ctx context.Context, cfg txlog.TopicConfig) error {
	conn, err := kafkago.DialContext(ctx, "tcp", c.cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("%w: dial broker: %v", chronoerr.ErrTransientLog, err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("%w: find controller: %v", chronoerr.ErrTransientLog, err)
	}
	controllerConn, err := kafkago.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return fmt.Errorf("%w: dial controller: %v", chronoerr.ErrTransientLog, err)
	}
	defer controllerConn.Close()

	entries := topicConfigEntries(cfg)
	err = controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             cfg.Name,
		NumPartitions:     cfg.Partitions,
		ReplicationFactor: 1,
		ConfigEntries:     entries,
	})
	if err != nil && !errors.Is(err, kafkago.TopicAlreadyExists) {
		return fmt.Errorf("%w: create topic %q: %v", chronoerr.ErrTransientLog, cfg.Name, err)
	}
	if err == nil {
		log.WithComponent("txlog/kafka").Info().Str("topic", cfg.Name).Msg("created kafka topic")
		return nil
	}

	return c.validateExistingTopic(ctx, cfg)
}

func topicConfigEntries(cfg txlog.TopicConfig) []kafkago.ConfigEntry {
	entries := []kafkago.ConfigEntry{
		{ConfigName: "cleanup.policy", ConfigValue: string(cfg.CleanupPolicy)},
	}
	switch cfg.CleanupPolicy {
	case txlog.CleanupDelete:
		entries = append(entries, kafkago.ConfigEntry{ConfigName: "retention.ms", ConfigValue: strconv.FormatInt(cfg.RetentionMs, 10)})
	case txlog.CleanupCompact:
		entries = append(entries, kafkago.ConfigEntry{ConfigName: "min.cleanable.dirty.ratio", ConfigValue: strconv.FormatFloat(cfg.MinCleanableDirtyRatio, 'f', -1, 64)})
	}
	return entries
}

// validateExistingTopic describes a pre-existing topic's configuration
// and compares it against cfg's required policy.
func (c *Client) validateExistingTopic(ctx context.Context, cfg txlog.TopicConfig) error {
	client := &kafkago.Client{Addr: kafkago.TCP(c.cfg.Brokers...)}
	resp, err := client.DescribeConfigs(ctx, &kafkago.DescribeConfigsRequest{
		Resources: []kafkago.DescribeConfigRequestResource{
			{ResourceType: kafkago.ResourceTypeTopic, ResourceName: cfg.Name, ConfigNames: []string{"cleanup.policy", "retention.ms"}},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: describe topic %q: %v", chronoerr.ErrTransientLog, cfg.Name, err)
	}
	if len(resp.Resources) == 0 {
		return fmt.Errorf("%w: topic %q not found describing configs", chronoerr.ErrLogPolicyMismatch, cfg.Name)
	}

	have := map[string]string{}
	for _, e := range resp.Resources[0].ConfigEntries {
		have[e.ConfigName] = e.ConfigValue
	}

	if have["cleanup.policy"] != string(cfg.CleanupPolicy) {
		return fmt.Errorf("%w: topic %q has cleanup.policy=%s, need %s",
			chronoerr.ErrLogPolicyMismatch, cfg.Name, have["cleanup.policy"], cfg.CleanupPolicy)
	}
	if cfg.CleanupPolicy == txlog.CleanupDelete && have["retention.ms"] != strconv.FormatInt(cfg.RetentionMs, 10) {
		return fmt.Errorf("%w: topic %q has retention.ms=%s, need %d",
			chronoerr.ErrLogPolicyMismatch, cfg.Name, have["retention.ms"], cfg.RetentionMs)
	}
	return nil
}

// connFor returns the cached partition-0 leader connection for topic,
// dialing and configuring a new one on first use. Unlike the batching
// kafkago.Writer, (*kafkago.Conn).WriteCompressedMessagesAt writes
// synchronously to one partition's leader and reports back the offset
// the broker assigned, which Produce needs to resolve a submitted transaction's
// future per spec.
func (c *Client) connFor(ctx context.Context, topic string) (*kafkago.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.conns[topic]; ok {
		return conn, nil
	}
	conn, err := kafkago.DialLeader(ctx, "tcp", c.cfg.Brokers[0], topic, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: dial leader for %q: %v", chronoerr.ErrTransientLog, topic, err)
	}
	if err := conn.SetRequiredAcks(kafkago.RequireAll); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: set required acks for %q: %v", chronoerr.ErrTransientLog, topic, err)
	}
	c.conns[topic] = conn
	return conn, nil
}

func (c *Client) Produce(ctx context.Context, topic string, key, value []byte) (txlog.ProduceResult, error) {
	conn, err := c.connFor(ctx, topic)
	if err != nil {
		return txlog.ProduceResult{}, err
	}

	deadline := time.Time{}
	if dl, ok := ctx.Deadline(); ok {
		deadline = dl
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return txlog.ProduceResult{}, fmt.Errorf("%w: set write deadline for %q: %v", chronoerr.ErrTransientLog, topic, err)
	}

	msg := kafkago.Message{Value: value, Time: time.Now().UTC()}
	if key != nil {
		msg.Key = key
	}
	_, _, offset, _, err := conn.WriteCompressedMessagesAt(nil, msg)
	if err != nil {
		return txlog.ProduceResult{}, fmt.Errorf("%w: produce to %q: %v", chronoerr.ErrTransientLog, topic, err)
	}
	// WriteCompressedMessagesAt reports the offset the broker assigned
	// to msg, so callers get the real tx-topic offset.
	return txlog.ProduceResult{Offset: offset, Timestamp: msg.Time}, nil
}

func (c *Client) Subscribe(_ context.Context, topics []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, topic := range topics {
		if _, ok := c.readers[topic]; ok {
			continue
		}
		c.readers[topic] = kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:   c.cfg.Brokers,
			Topic:     topic,
			Partition: 0,
			MinBytes:  1,
			MaxBytes:  10e6,
		})
	}
	c.subbed = append([]string(nil), topics...)
	return nil
}

func (c *Client) Seek(ctx context.Context, topic string, _ int, offset int64) error {
	c.mu.Lock()
	r, ok := c.readers[topic]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("kafka: seek on unsubscribed topic %q", topic)
	}
	if err := r.SetOffset(offset); err != nil {
		return fmt.Errorf("%w: seek %q to %d: %v", chronoerr.ErrTransientLog, topic, offset, err)
	}
	return nil
}

// Poll reads one message from each subscribed topic's reader, using
// a shared deadline so the overall call still respects timeout.
func (c *Client) Poll(ctx context.Context, timeout time.Duration) ([]txlog.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c.mu.Lock()
	topics := append([]string(nil), c.subbed...)
	c.mu.Unlock()

	var out []txlog.Record
	for _, topic := range topics {
		c.mu.Lock()
		r := c.readers[topic]
		c.mu.Unlock()

		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			return nil, fmt.Errorf("%w: poll %q: %v", chronoerr.ErrTransientLog, topic, err)
		}
		out = append(out, txlog.Record{
			Topic:     topic,
			Partition: msg.Partition,
			Offset:    msg.Offset,
			Key:       msg.Key,
			Value:     msg.Value,
			Timestamp: msg.Time,
		})
	}
	return out, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for _, conn := range c.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, r := range c.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
