// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"payshield/backend/internal/platform/retry"
	"payshield/backend/internal/policy"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// DatabaseURL is the Postgres DSN. Empty means in-memory receipts and fraud log.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisURL selects the shared challenge store (e.g. redis://localhost:6379/0). Empty means in-memory.
	RedisURL string `mapstructure:"REDIS_URL"`

	// Ledger. Anchoring is enabled when LedgerContractAddress is set.
	LedgerRPCURL          string `mapstructure:"LEDGER_RPC_URL"`
	LedgerPrivateKey      string `mapstructure:"LEDGER_PRIVATE_KEY"`
	LedgerContractAddress string `mapstructure:"LEDGER_CONTRACT_ADDRESS"`
	LedgerExplorerBase    string `mapstructure:"LEDGER_EXPLORER_BASE"`
	// LedgerQueryBlocks is how many recent blocks are scanned for anchors.
	LedgerQueryBlocks    uint64 `mapstructure:"LEDGER_QUERY_BLOCKS"`
	LedgerCacheTTL       string `mapstructure:"LEDGER_CACHE_TTL"`
	LedgerRetryAttempts  int    `mapstructure:"LEDGER_RETRY_ATTEMPTS"`
	LedgerRetryBaseDelay string `mapstructure:"LEDGER_RETRY_BASE_DELAY"`
	LedgerRetryMaxDelay  string `mapstructure:"LEDGER_RETRY_MAX_DELAY"`
	LedgerAttemptTimeout string `mapstructure:"LEDGER_ATTEMPT_TIMEOUT"`

	// MFADefaultThreshold is the amount above which a challenge is required (e.g. "500.00").
	MFADefaultThreshold string `mapstructure:"MFA_DEFAULT_THRESHOLD"`
	// MerchantThresholds overrides the default per merchant: "m1=1000,m2=250".
	MerchantThresholds string `mapstructure:"MERCHANT_THRESHOLDS"`
	// ThresholdPolicyFile is an optional Rego module replacing the built-in threshold policy.
	ThresholdPolicyFile string `mapstructure:"THRESHOLD_POLICY_FILE"`

	// ChallengeTTL is the lifetime of an issued code (e.g. "5m").
	ChallengeTTL string `mapstructure:"CHALLENGE_TTL"`
	// OTPReturnToClient enables dev OTP mode: codes are retrievable at GET /dev/otp/{orderId}.
	// Must not be true when Env is production.
	OTPReturnToClient bool `mapstructure:"OTP_RETURN_TO_CLIENT"`
	// ChallengeWebhookURL receives issued codes for out-of-band delivery. Empty means log delivery.
	ChallengeWebhookURL   string `mapstructure:"CHALLENGE_WEBHOOK_URL"`
	ChallengeWebhookToken string `mapstructure:"CHALLENGE_WEBHOOK_TOKEN"`

	// FraudRetention is how long fraud events are kept before compaction.
	FraudRetention string `mapstructure:"FRAUD_RETENTION"`
	// AnalyticsWindow is how far back analytics totals reach.
	AnalyticsWindow string `mapstructure:"ANALYTICS_WINDOW"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses. When set, fraud events are published.
	KafkaBrokers    string `mapstructure:"KAFKA_BROKERS"`
	FraudKafkaTopic string `mapstructure:"FRAUD_KAFKA_TOPIC"`
	// Worker-only: consumer group and Loki push target.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	LokiURL      string `mapstructure:"LOKI_URL"`

	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	defaultThreshold decimal.Decimal
	merchants        map[string]decimal.Decimal
	durations        map[string]time.Duration
}

// durationKeys are parsed and must be positive.
var durationKeys = []string{
	"LEDGER_CACHE_TTL",
	"LEDGER_RETRY_BASE_DELAY",
	"LEDGER_RETRY_MAX_DELAY",
	"LEDGER_ATTEMPT_TIMEOUT",
	"CHALLENGE_TTL",
	"FRAUD_RETENTION",
	"ANALYTICS_WINDOW",
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("LEDGER_RPC_URL", "")
	v.SetDefault("LEDGER_PRIVATE_KEY", "")
	v.SetDefault("LEDGER_CONTRACT_ADDRESS", "")
	v.SetDefault("LEDGER_EXPLORER_BASE", "https://amoy.polygonscan.com")
	v.SetDefault("LEDGER_QUERY_BLOCKS", 9)
	v.SetDefault("LEDGER_CACHE_TTL", "5m")
	v.SetDefault("LEDGER_RETRY_ATTEMPTS", retry.DefaultMaxAttempts)
	v.SetDefault("LEDGER_RETRY_BASE_DELAY", retry.DefaultBaseDelay.String())
	v.SetDefault("LEDGER_RETRY_MAX_DELAY", retry.DefaultMaxDelay.String())
	v.SetDefault("LEDGER_ATTEMPT_TIMEOUT", retry.DefaultAttemptTimeout.String())
	v.SetDefault("MFA_DEFAULT_THRESHOLD", "500.00")
	v.SetDefault("MERCHANT_THRESHOLDS", "")
	v.SetDefault("THRESHOLD_POLICY_FILE", "")
	v.SetDefault("CHALLENGE_TTL", "5m")
	v.SetDefault("OTP_RETURN_TO_CLIENT", false)
	v.SetDefault("CHALLENGE_WEBHOOK_URL", "")
	v.SetDefault("CHALLENGE_WEBHOOK_TOKEN", "")
	v.SetDefault("FRAUD_RETENTION", "720h")
	v.SetDefault("ANALYTICS_WINDOW", "720h")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("FRAUD_KAFKA_TOPIC", "payshield-fraud-events")
	v.SetDefault("KAFKA_GROUP_ID", "payshield-fraud-worker")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(v); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate(v *viper.Viper) error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.OTPReturnToClient && c.Env == "production" {
		return errors.New("config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}
	if c.LedgerContractAddress != "" {
		if c.LedgerRPCURL == "" {
			return errors.New("config: LEDGER_CONTRACT_ADDRESS requires LEDGER_RPC_URL")
		}
		if c.LedgerPrivateKey == "" {
			return errors.New("config: LEDGER_CONTRACT_ADDRESS requires LEDGER_PRIVATE_KEY")
		}
	}
	if c.LedgerRetryAttempts <= 0 {
		return errors.New("config: LEDGER_RETRY_ATTEMPTS must be positive")
	}
	if c.LedgerQueryBlocks == 0 {
		return errors.New("config: LEDGER_QUERY_BLOCKS must be positive")
	}

	c.durations = make(map[string]time.Duration, len(durationKeys))
	for _, key := range durationKeys {
		d, err := time.ParseDuration(strings.TrimSpace(v.GetString(key)))
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		if d <= 0 {
			return fmt.Errorf("config: %s must be positive", key)
		}
		c.durations[key] = d
	}

	def, err := decimal.NewFromString(strings.TrimSpace(c.MFADefaultThreshold))
	if err != nil {
		return fmt.Errorf("config: MFA_DEFAULT_THRESHOLD: %w", err)
	}
	if def.IsNegative() {
		return errors.New("config: MFA_DEFAULT_THRESHOLD must not be negative")
	}
	c.defaultThreshold = def
	merchants, err := policy.ParseThresholds(c.MerchantThresholds)
	if err != nil {
		return fmt.Errorf("config: MERCHANT_THRESHOLDS: %w", err)
	}
	c.merchants = merchants
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// LedgerEnabled reports whether anchoring is configured.
func (c *Config) LedgerEnabled() bool {
	return c.LedgerContractAddress != ""
}

// Thresholds returns the threshold table built from MFA_DEFAULT_THRESHOLD and MERCHANT_THRESHOLDS.
func (c *Config) Thresholds() *policy.Table {
	if c.durations == nil {
		// not validated by Load
		return policy.NewTable(policy.DefaultThreshold, nil)
	}
	return policy.NewTable(c.defaultThreshold, c.merchants)
}

// LedgerRetryPolicy returns the retry policy for ledger calls.
func (c *Config) LedgerRetryPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = c.LedgerRetryAttempts
	p.BaseDelay = c.duration("LEDGER_RETRY_BASE_DELAY", retry.DefaultBaseDelay)
	p.MaxDelay = c.duration("LEDGER_RETRY_MAX_DELAY", retry.DefaultMaxDelay)
	p.AttemptTimeout = c.duration("LEDGER_ATTEMPT_TIMEOUT", retry.DefaultAttemptTimeout)
	return p
}

// LedgerCacheTTLDuration returns the ledger read cache TTL.
func (c *Config) LedgerCacheTTLDuration() time.Duration {
	return c.duration("LEDGER_CACHE_TTL", 5*time.Minute)
}

// ChallengeTTLDuration returns the challenge lifetime.
func (c *Config) ChallengeTTLDuration() time.Duration {
	return c.duration("CHALLENGE_TTL", 5*time.Minute)
}

// FraudRetentionDuration returns how long fraud events are kept.
func (c *Config) FraudRetentionDuration() time.Duration {
	return c.duration("FRAUD_RETENTION", 30*24*time.Hour)
}

// AnalyticsWindowDuration returns the analytics totals window.
func (c *Config) AnalyticsWindowDuration() time.Duration {
	return c.duration("ANALYTICS_WINDOW", 30*24*time.Hour)
}

func (c *Config) duration(key string, fallback time.Duration) time.Duration {
	if d, ok := c.durations[key]; ok {
		return d
	}
	return fallback
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if fraud event publishing is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
