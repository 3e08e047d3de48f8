// Package config loads chronodb's deployment configuration from YAML:
// a defaulted struct is loaded from file, then cobra flags in
// cmd/chronodb override individual fields before anything starts.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LogBackend selects which pkg/txlog.Client implementation a
// deployment uses.
type LogBackend string

const (
	LogBackendEmbedded LogBackend = "embedded"
	LogBackendKafka    LogBackend = "kafka"
)

// Config is chronodb's full runtime configuration.
type Config struct {
	// DataDir holds the embedded log backend's files and the bbolt KV
	// database file.
	DataDir string `yaml:"data_dir"`

	// LogBackend selects embedded or kafka.
	LogBackend LogBackend `yaml:"log_backend"`

	// KafkaBrokers is required when LogBackend is kafka.
	KafkaBrokers []string `yaml:"kafka_brokers"`

	// TxTopic and DocTopic name the two log topics this deployment
	// uses; partition count is always 1 per spec.
	TxTopic  string `yaml:"tx_topic"`
	DocTopic string `yaml:"doc_topic"`

	// PollTimeout bounds how long one consume-and-index call waits for
	// new records before returning with whatever it has.
	PollTimeout time.Duration `yaml:"poll_timeout"`

	// MaxBatchDocs and MaxBatchOps are loaded from YAML and defaulted,
	// but the consume loop does not read them: the staged work of a
	// consume-and-index call is not bounded by either value.
	MaxBatchDocs int `yaml:"max_batch_docs"`
	MaxBatchOps  int `yaml:"max_batch_ops"`

	Log LogConfig `yaml:"log"`
}

// LogConfig mirrors pkg/log.Config's fields for YAML loading.
type LogConfig struct {
	Level      string `yaml:"level"`
	JSONOutput bool   `yaml:"json_output"`
}

// Default returns chronodb's default configuration: embedded backend,
// a 500ms poll timeout, generous batch caps.
func Default() Config {
	return Config{
		DataDir:      "./data",
		LogBackend:   LogBackendEmbedded,
		TxTopic:      "chronodb-tx",
		DocTopic:     "chronodb-doc",
		PollTimeout:  500 * time.Millisecond,
		MaxBatchDocs: 10000,
		MaxBatchOps:  10000,
		Log:          LogConfig{Level: "info"},
	}
}

// Load reads a YAML file at path, merging its fields over Default().
// A missing file is not an error; callers run on defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent,
// e.g. that Kafka brokers are present when LogBackend requires them.
func (c Config) Validate() error {
	switch c.LogBackend {
	case LogBackendEmbedded:
	case LogBackendKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("config: log_backend=kafka requires at least one entry in kafka_brokers")
		}
	default:
		return fmt.Errorf("config: unknown log_backend %q", c.LogBackend)
	}
	if c.TxTopic == "" || c.DocTopic == "" {
		return fmt.Errorf("config: tx_topic and doc_topic are required")
	}
	if c.TxTopic == c.DocTopic {
		return fmt.Errorf("config: tx_topic and doc_topic must differ")
	}
	return nil
}
