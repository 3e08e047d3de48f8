package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chronodb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: /var/lib/chronodb\nlog:\n  level: debug\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/chronodb", cfg.DataDir)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, Default().TxTopic, cfg.TxTopic)
}

func TestValidateRejectsKafkaWithoutBrokers(t *testing.T) {
	cfg := Default()
	cfg.LogBackend = LogBackendKafka
	require.Error(t, cfg.Validate())

	cfg.KafkaBrokers = []string{"localhost:9092"}
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsSameTopicNames(t *testing.T) {
	cfg := Default()
	cfg.DocTopic = cfg.TxTopic
	require.Error(t, cfg.Validate())
}
