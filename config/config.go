package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Storage  StorageConfig  `mapstructure:"storage"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	AES      AESConfig      `mapstructure:"aes"`
	Log      LogConfig      `mapstructure:"log"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
	QR       QRConfig       `mapstructure:"qr"`
	EFT      EFTConfig      `mapstructure:"eft"`
	Banks    []BankConfig   `mapstructure:"banks"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres, memory
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type AESConfig struct {
	Key string `mapstructure:"key"` // 32-byte hex-encoded key for AES-256
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// TierLimits are the spend caps applied to wallets of one verification tier.
type TierLimits struct {
	Daily   string `mapstructure:"daily"`
	Monthly string `mapstructure:"monthly"`
}

type WalletConfig struct {
	Currency    string                `mapstructure:"currency"`
	DefaultTier string                `mapstructure:"default_tier"`
	Tiers       map[string]TierLimits `mapstructure:"tiers"`
}

type QRConfig struct {
	DefaultTTLMinutes int    `mapstructure:"default_ttl_minutes"`
	MaxTTLMinutes     int    `mapstructure:"max_ttl_minutes"`
	FlatFee           string `mapstructure:"flat_fee"`
	PaymentBaseURL    string `mapstructure:"payment_base_url"`
}

type EFTConfig struct {
	SubmitTimeout  time.Duration `mapstructure:"submit_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	BaseBackoff    time.Duration `mapstructure:"base_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	WebhookSecret  string        `mapstructure:"webhook_secret"`
	WebhookMaxSkew time.Duration `mapstructure:"webhook_max_skew"`
	DedupeTTL      time.Duration `mapstructure:"dedupe_ttl"`
}

// BankConfig describes one supported EFT bank.
type BankConfig struct {
	Code      string `mapstructure:"code"`
	Name      string `mapstructure:"name"`
	MinAmount string `mapstructure:"min_amount"`
	MaxAmount string `mapstructure:"max_amount"`
	FeeRate   string `mapstructure:"fee_rate"`
	Endpoint  string `mapstructure:"endpoint"`
	APIKey    string `mapstructure:"api_key"`
	Sandbox   bool   `mapstructure:"sandbox"`
}

type KafkaConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	ClientID string   `mapstructure:"client_id"`
}

type LedgerConfig struct {
	DefaultPageSize int `mapstructure:"default_page_size"`
	MaxPageSize     int `mapstructure:"max_page_size"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: WLE_ (Wallet Ledger Engine).
// Nested keys use underscore: WLE_DATABASE_HOST, WLE_EFT_WEBHOOK_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "wallet_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.dial_timeout", "3s")
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "wallet-ledger")
	v.SetDefault("aes.key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("wallet.currency", "BWP")
	v.SetDefault("wallet.default_tier", "unverified")
	v.SetDefault("wallet.tiers", map[string]any{
		"unverified": map[string]any{"daily": "1000.00", "monthly": "10000.00"},
		"verified":   map[string]any{"daily": "10000.00", "monthly": "50000.00"},
		"enhanced":   map[string]any{"daily": "50000.00", "monthly": "200000.00"},
	})
	v.SetDefault("qr.default_ttl_minutes", 15)
	v.SetDefault("qr.max_ttl_minutes", 1440)
	v.SetDefault("qr.flat_fee", "2.00")
	v.SetDefault("qr.payment_base_url", "http://localhost:8080/pay")
	v.SetDefault("eft.submit_timeout", "30s")
	v.SetDefault("eft.max_retries", 3)
	v.SetDefault("eft.base_backoff", "500ms")
	v.SetDefault("eft.max_backoff", "8s")
	v.SetDefault("eft.webhook_secret", "")
	v.SetDefault("eft.webhook_max_skew", "5m")
	v.SetDefault("eft.dedupe_ttl", "24h")
	v.SetDefault("banks", []map[string]any{
		{"code": "fnb", "name": "First National Bank", "min_amount": "10.00", "max_amount": "50000.00", "fee_rate": "0.02", "sandbox": true},
		{"code": "standard", "name": "Standard Bank", "min_amount": "10.00", "max_amount": "100000.00", "fee_rate": "0.015", "sandbox": true},
		{"code": "barclays", "name": "Barclays Bank", "min_amount": "5.00", "max_amount": "75000.00", "fee_rate": "0.025", "sandbox": true},
	})
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "wallet-ledger.events")
	v.SetDefault("kafka.client_id", "wallet-ledger")
	v.SetDefault("ledger.default_page_size", 20)
	v.SetDefault("ledger.max_page_size", 100)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: WLE_DATABASE_HOST -> database.host
	v.SetEnvPrefix("WLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required; env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate reports deployment errors that must stop the server from
// starting. The webhook secret is mandatory: an unsigned webhook endpoint
// is never served.
func (c *Config) Validate() error {
	var errs []error

	if c.EFT.WebhookSecret == "" {
		errs = append(errs, errors.New("eft.webhook_secret is not configured"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is not configured"))
	}
	if key, err := hex.DecodeString(c.AES.Key); err != nil || len(key) != 32 {
		errs = append(errs, errors.New("aes.key must be 64 hex characters"))
	}
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver))
	}
	if _, ok := c.Wallet.Tiers[c.Wallet.DefaultTier]; !ok {
		errs = append(errs, fmt.Errorf("wallet.default_tier %q has no limits", c.Wallet.DefaultTier))
	}
	for name, t := range c.Wallet.Tiers {
		if _, err := decimal.NewFromString(t.Daily); err != nil {
			errs = append(errs, fmt.Errorf("wallet.tiers.%s.daily: %w", name, err))
		}
		if _, err := decimal.NewFromString(t.Monthly); err != nil {
			errs = append(errs, fmt.Errorf("wallet.tiers.%s.monthly: %w", name, err))
		}
	}
	if _, err := decimal.NewFromString(c.QR.FlatFee); err != nil {
		errs = append(errs, fmt.Errorf("qr.flat_fee: %w", err))
	}
	if c.QR.DefaultTTLMinutes < 1 || c.QR.DefaultTTLMinutes > c.QR.MaxTTLMinutes {
		errs = append(errs, errors.New("qr.default_ttl_minutes must be within 1..max_ttl_minutes"))
	}
	if len(c.Banks) == 0 {
		errs = append(errs, errors.New("at least one bank must be configured"))
	}
	for _, b := range c.Banks {
		for field, raw := range map[string]string{"min_amount": b.MinAmount, "max_amount": b.MaxAmount, "fee_rate": b.FeeRate} {
			if _, err := decimal.NewFromString(raw); err != nil {
				errs = append(errs, fmt.Errorf("banks.%s.%s: %w", b.Code, field, err))
			}
		}
		if !b.Sandbox && b.Endpoint == "" {
			errs = append(errs, fmt.Errorf("banks.%s.endpoint is required outside sandbox", b.Code))
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is empty"))
	}

	return errors.Join(errs...)
}
