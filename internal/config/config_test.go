package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Chain.RPCURL = "https://rpc.example.org"
	cfg.Chain.LendingContract = "0x00000000000000000000000000000000000000cc"
	return cfg
}

func TestDefaultsThenRequiredFieldsValidate(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestDefaultsAloneDoNotValidate(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc_url")
	assert.Contains(t, err.Error(), "lending_contract")
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "bogus"
	cfg.Executor.MaxRetries = 0
	cfg.Executor.GasMultiplier = 0.5
	cfg.Monitor.AutoTopUpTarget = 1.10 // below threshold 1.30

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "max_retries")
	assert.Contains(t, err.Error(), "gas_multiplier")
	assert.Contains(t, err.Error(), "auto_top_up_target")
}

func TestValidateKeyRequirementsOnlyWithAutoTopUp(t *testing.T) {
	cfg := validConfig()
	cfg.Monitor.AutoTopUpEnabled = false
	assert.NoError(t, cfg.Validate())

	cfg.Monitor.AutoTopUpEnabled = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "private_key")

	cfg.Chain.PrivateKey = "deadbeef"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRatioOrdering(t *testing.T) {
	cfg := validConfig()
	cfg.Monitor.WarningRatio = 1.10
	cfg.Monitor.CriticalRatio = 1.15

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "critical_ratio")
}

func TestLoadParsesDurationsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
mode = "oneshot"

[chain]
rpc_url = "https://rpc.example.org"
chain_id = 10
lending_contract = "0x00000000000000000000000000000000000000cc"

[executor]
max_retries = 5
retry_delay = "2s"
confirmation_timeout = "3m"

[monitor]
check_interval = "30s"
auto_top_up_enabled = true
auto_top_up_threshold = 1.25
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("VAULTGUARD_CHAIN_PRIVATE_KEY", "deadbeef")
	t.Setenv("VAULTGUARD_EXECUTOR_RETRY_DELAY", "7s")
	t.Setenv("VAULTGUARD_MONITOR_AUTO_TOP_UP_ENABLED", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	// TOML values
	assert.Equal(t, "oneshot", cfg.Mode)
	assert.Equal(t, int64(10), cfg.Chain.ChainID)
	assert.Equal(t, 5, cfg.Executor.MaxRetries)
	assert.Equal(t, 3*time.Minute, cfg.Executor.ConfirmationTimeout.Duration)
	assert.Equal(t, 30*time.Second, cfg.Monitor.CheckInterval.Duration)
	assert.InDelta(t, 1.25, cfg.Monitor.AutoTopUpThreshold, 1e-9)

	// Defaults untouched by the file
	assert.Equal(t, 5*time.Second, cfg.Executor.PollInterval.Duration)
	assert.InDelta(t, 1.10, cfg.Executor.GasMultiplier, 1e-9)

	// Environment overrides beat the file
	assert.Equal(t, "deadbeef", cfg.Chain.PrivateKey)
	assert.Equal(t, 7*time.Second, cfg.Executor.RetryDelay.Duration)
	assert.False(t, cfg.Monitor.AutoTopUpEnabled)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
