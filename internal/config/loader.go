package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies VAULTGUARD_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known VAULTGUARD_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "VAULTGUARD_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "VAULTGUARD_CHAIN_ID")
	setStr(&cfg.Chain.LendingContract, "VAULTGUARD_CHAIN_LENDING_CONTRACT")
	setStr(&cfg.Chain.PrivateKey, "VAULTGUARD_CHAIN_PRIVATE_KEY")
	setStr(&cfg.Chain.EncryptedKeyPath, "VAULTGUARD_CHAIN_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Chain.KeyPassword, "VAULTGUARD_CHAIN_KEY_PASSWORD")

	// ── Executor ──
	setInt(&cfg.Executor.MaxRetries, "VAULTGUARD_EXECUTOR_MAX_RETRIES")
	setDuration(&cfg.Executor.RetryDelay, "VAULTGUARD_EXECUTOR_RETRY_DELAY")
	setDuration(&cfg.Executor.ConfirmationTimeout, "VAULTGUARD_EXECUTOR_CONFIRMATION_TIMEOUT")
	setDuration(&cfg.Executor.PollInterval, "VAULTGUARD_EXECUTOR_POLL_INTERVAL")
	setFloat64(&cfg.Executor.GasMultiplier, "VAULTGUARD_EXECUTOR_GAS_MULTIPLIER")

	// ── Monitor ──
	setDuration(&cfg.Monitor.CheckInterval, "VAULTGUARD_MONITOR_CHECK_INTERVAL")
	setBool(&cfg.Monitor.AutoTopUpEnabled, "VAULTGUARD_MONITOR_AUTO_TOP_UP_ENABLED")
	setFloat64(&cfg.Monitor.AutoTopUpThreshold, "VAULTGUARD_MONITOR_AUTO_TOP_UP_THRESHOLD")
	setFloat64(&cfg.Monitor.AutoTopUpTarget, "VAULTGUARD_MONITOR_AUTO_TOP_UP_TARGET")
	setFloat64(&cfg.Monitor.WarningRatio, "VAULTGUARD_MONITOR_WARNING_RATIO")
	setFloat64(&cfg.Monitor.CriticalRatio, "VAULTGUARD_MONITOR_CRITICAL_RATIO")
	setDuration(&cfg.Monitor.MaxPriceAge, "VAULTGUARD_MONITOR_MAX_PRICE_AGE")

	// ── Database ──
	setStr(&cfg.Database.DSN, "VAULTGUARD_DATABASE_DSN")
	setStr(&cfg.Database.Host, "VAULTGUARD_DATABASE_HOST")
	setInt(&cfg.Database.Port, "VAULTGUARD_DATABASE_PORT")
	setStr(&cfg.Database.Database, "VAULTGUARD_DATABASE_NAME")
	setStr(&cfg.Database.User, "VAULTGUARD_DATABASE_USER")
	setStr(&cfg.Database.Password, "VAULTGUARD_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "VAULTGUARD_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "VAULTGUARD_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "VAULTGUARD_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "VAULTGUARD_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "VAULTGUARD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "VAULTGUARD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "VAULTGUARD_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "VAULTGUARD_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "VAULTGUARD_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "VAULTGUARD_REDIS_TLS_ENABLED")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "VAULTGUARD_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "VAULTGUARD_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "VAULTGUARD_NOTIFY_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.MinSeverity, "VAULTGUARD_NOTIFY_MIN_SEVERITY")

	// ── Top-level ──
	setStr(&cfg.Mode, "VAULTGUARD_MODE")
	setStr(&cfg.LogLevel, "VAULTGUARD_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
