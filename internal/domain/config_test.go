package domain

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, StorageMemory, cfg.Storage.Backend)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.InitialDelay.Std())
	assert.Equal(t, 30*time.Second, cfg.Retry.MaxDelay.Std())
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
retry:
  max_attempts: 5
  initial_delay: 500ms
validator:
  soft_node_limit: 10
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.InitialDelay.Std())
	assert.Equal(t, 10, cfg.Validator.SoftNodeLimit)
	// Untouched keys keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Retry.MaxDelay.Std())
	assert.Equal(t, StorageMemory, cfg.Storage.Backend)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  backend: badger
`), 0o644))

	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigValidateUnknownBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Backend = "etcd"

	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestRetryConfigPolicy(t *testing.T) {
	cfg := DefaultConfig().Retry
	cfg.MaxAttempts = 7
	cfg.JitterEnabled = false

	policy := cfg.Policy()
	assert.Equal(t, 7, policy.MaxAttempts)
	assert.False(t, policy.JitterEnabled)
	assert.True(t, policy.IsRetryable(ErrorClassTimeout))
	assert.False(t, policy.IsRetryable(ErrorClassUnknown))
}
