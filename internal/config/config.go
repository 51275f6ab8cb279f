// Package config defines the top-level configuration for vaultguard and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by VAULTGUARD_* environment
// variables.
type Config struct {
	Chain    ChainConfig    `toml:"chain"`
	Executor ExecutorConfig `toml:"executor"`
	Monitor  MonitorConfig  `toml:"monitor"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ChainConfig holds ledger endpoint, contract, and signing-key parameters.
type ChainConfig struct {
	RPCURL           string `toml:"rpc_url"`
	ChainID          int64  `toml:"chain_id"`
	LendingContract  string `toml:"lending_contract"`
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// ExecutorConfig holds the transaction execution manager's retry and
// timing parameters.
type ExecutorConfig struct {
	MaxRetries          int      `toml:"max_retries"`
	RetryDelay          duration `toml:"retry_delay"`
	ConfirmationTimeout duration `toml:"confirmation_timeout"`
	PollInterval        duration `toml:"poll_interval"`
	GasMultiplier       float64  `toml:"gas_multiplier"`
}

// MonitorConfig holds the risk sweep and auto top-up parameters.
type MonitorConfig struct {
	CheckInterval      duration `toml:"check_interval"`
	AutoTopUpEnabled   bool     `toml:"auto_top_up_enabled"`
	AutoTopUpThreshold float64  `toml:"auto_top_up_threshold"`
	AutoTopUpTarget    float64  `toml:"auto_top_up_target"`
	WarningRatio       float64  `toml:"warning_ratio"`
	CriticalRatio      float64  `toml:"critical_ratio"`
	// MaxPriceAge rejects reference prices older than this; zero disables
	// the staleness check.
	MaxPriceAge duration `toml:"max_price_age"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// NotifyConfig holds notification channel credentials and the alert
// severity floor.
type NotifyConfig struct {
	TelegramToken     string `toml:"telegram_token"`
	TelegramChatID    string `toml:"telegram_chat_id"`
	DiscordWebhookURL string `toml:"discord_webhook_url"`
	MinSeverity       string `toml:"min_severity"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5s", "5m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the documented default values.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			ChainID: 1,
		},
		Executor: ExecutorConfig{
			MaxRetries:          3,
			RetryDelay:          duration{5 * time.Second},
			ConfirmationTimeout: duration{5 * time.Minute},
			PollInterval:        duration{5 * time.Second},
			GasMultiplier:       1.10,
		},
		Monitor: MonitorConfig{
			CheckInterval:      duration{time.Minute},
			AutoTopUpEnabled:   false,
			AutoTopUpThreshold: 1.30,
			AutoTopUpTarget:    1.80,
			WarningRatio:       1.20,
			CriticalRatio:      1.15,
			MaxPriceAge:        duration{5 * time.Minute},
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "vaultguard",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		Notify: NotifyConfig{
			MinSeverity: "warning",
		},
		Mode:     "monitor",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"monitor": true,
	"oneshot": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validSeverities enumerates the accepted values for notify.min_severity.
var validSeverities = map[string]bool{
	"safe":        true,
	"moderate":    true,
	"warning":     true,
	"critical":    true,
	"liquidation": true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: monitor, oneshot)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chain
	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, fmt.Sprintf("chain: chain_id must be positive, got %d", c.Chain.ChainID))
	}
	if c.Chain.LendingContract == "" {
		errs = append(errs, "chain: lending_contract must not be empty")
	}
	if c.Monitor.AutoTopUpEnabled {
		if c.Chain.PrivateKey == "" && c.Chain.EncryptedKeyPath == "" {
			errs = append(errs, "chain: either private_key or encrypted_key_path must be set when auto top-up is enabled")
		}
		if c.Chain.EncryptedKeyPath != "" && c.Chain.KeyPassword == "" {
			errs = append(errs, "chain: key_password is required when encrypted_key_path is set")
		}
	}

	// Executor
	if c.Executor.MaxRetries < 1 {
		errs = append(errs, "executor: max_retries must be >= 1")
	}
	if c.Executor.RetryDelay.Duration <= 0 {
		errs = append(errs, "executor: retry_delay must be positive")
	}
	if c.Executor.ConfirmationTimeout.Duration <= 0 {
		errs = append(errs, "executor: confirmation_timeout must be positive")
	}
	if c.Executor.PollInterval.Duration <= 0 {
		errs = append(errs, "executor: poll_interval must be positive")
	}
	if c.Executor.GasMultiplier < 1.0 {
		errs = append(errs, fmt.Sprintf("executor: gas_multiplier must be >= 1.0, got %.2f", c.Executor.GasMultiplier))
	}

	// Monitor
	if c.Monitor.CheckInterval.Duration <= 0 {
		errs = append(errs, "monitor: check_interval must be positive")
	}
	if c.Monitor.AutoTopUpTarget <= c.Monitor.AutoTopUpThreshold {
		errs = append(errs, fmt.Sprintf(
			"monitor: auto_top_up_target (%.2f) must exceed auto_top_up_threshold (%.2f)",
			c.Monitor.AutoTopUpTarget, c.Monitor.AutoTopUpThreshold,
		))
	}
	if c.Monitor.CriticalRatio >= c.Monitor.WarningRatio {
		errs = append(errs, fmt.Sprintf(
			"monitor: critical_ratio (%.2f) must be below warning_ratio (%.2f)",
			c.Monitor.CriticalRatio, c.Monitor.WarningRatio,
		))
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Notify
	if c.Notify.MinSeverity != "" && !validSeverities[strings.ToLower(c.Notify.MinSeverity)] {
		errs = append(errs, fmt.Sprintf("notify: unknown min_severity %q", c.Notify.MinSeverity))
	}
	tg := c.Notify.TelegramToken != ""
	if tg != (c.Notify.TelegramChatID != "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
