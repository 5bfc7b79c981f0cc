package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"tradegate/pkg/errors"
)

type Config struct {
	App           AppConfig
	Redis         RedisConfig
	Metrics       MetricsConfig
	ErrorTracking ErrorTrackingConfig
	Crypto        CryptoConfig
	Transport     TransportConfig
	Cryptocom     CryptocomConfig
	Binance       BinanceConfig
	BinanceUS     BinanceUSConfig
	Bybit         BybitConfig
	OKX           OKXConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"tradegate"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
	// Exchanges lists the venues the factory may build.
	Exchanges []string `envconfig:"EXCHANGES" default:"cryptocom,binance,binanceus,bybit,okx"`
}

// RedisConfig is optional: with no host the market catalogs live in memory only.
type RedisConfig struct {
	Host     string        `envconfig:"REDIS_HOST"`
	Port     int           `envconfig:"REDIS_PORT" default:"6379"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	TTL      time.Duration `envconfig:"REDIS_CATALOG_TTL" default:"1h"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

type MetricsConfig struct {
	Enabled bool   `envconfig:"METRICS_ENABLED" default:"false"`
	Addr    string `envconfig:"METRICS_ADDR" default:":9090"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

type CryptoConfig struct {
	EncryptionKey string `envconfig:"ENCRYPTION_KEY"` // 32 bytes for AES-256
}

type TransportConfig struct {
	Timeout    time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`
	UserAgent  string        `envconfig:"HTTP_USER_AGENT" default:"tradegate"`
	Proxy      string        `envconfig:"HTTP_PROXY_URL"`
	MaxRetries int           `envconfig:"HTTP_MAX_RETRIES" default:"3"`
}

// Venue credentials are plain by default. When ENCRYPTION_KEY is set the
// secrets are expected hex encoded and AES-GCM encrypted.

type CryptocomConfig struct {
	APIKey                 string `envconfig:"CRYPTOCOM_API_KEY"`
	Secret                 string `envconfig:"CRYPTOCOM_SECRET"`
	Sandbox                bool   `envconfig:"CRYPTOCOM_SANDBOX" default:"false"`
	MarketBuyRequiresPrice bool   `envconfig:"CRYPTOCOM_MARKET_BUY_REQUIRES_PRICE" default:"true"`
	DefaultMarginMode      string `envconfig:"CRYPTOCOM_DEFAULT_MARGIN_MODE" default:"cross"`
	ClientOrderIDPrefix    string `envconfig:"CRYPTOCOM_CLIENT_ORDER_PREFIX"`
}

type BinanceConfig struct {
	APIKey              string        `envconfig:"BINANCE_API_KEY"`
	Secret              string        `envconfig:"BINANCE_SECRET"`
	Testnet             bool          `envconfig:"BINANCE_TESTNET" default:"false"`
	Profiles            []string      `envconfig:"BINANCE_PROFILES"`
	RecvWindow          time.Duration `envconfig:"BINANCE_RECV_WINDOW" default:"5s"`
	DefaultMarginMode   string        `envconfig:"BINANCE_DEFAULT_MARGIN_MODE" default:"cross"`
	ClientOrderIDPrefix string        `envconfig:"BINANCE_CLIENT_ORDER_PREFIX"`
}

type BinanceUSConfig struct {
	APIKey              string        `envconfig:"BINANCEUS_API_KEY"`
	Secret              string        `envconfig:"BINANCEUS_SECRET"`
	RecvWindow          time.Duration `envconfig:"BINANCEUS_RECV_WINDOW" default:"5s"`
	ClientOrderIDPrefix string        `envconfig:"BINANCEUS_CLIENT_ORDER_PREFIX"`
}

type BybitConfig struct {
	APIKey              string        `envconfig:"BYBIT_API_KEY"`
	Secret              string        `envconfig:"BYBIT_SECRET"`
	Testnet             bool          `envconfig:"BYBIT_TESTNET" default:"false"`
	Categories          []string      `envconfig:"BYBIT_CATEGORIES"`
	RecvWindow          time.Duration `envconfig:"BYBIT_RECV_WINDOW" default:"5s"`
	DefaultMarginMode   string        `envconfig:"BYBIT_DEFAULT_MARGIN_MODE" default:"cross"`
	ClientOrderIDPrefix string        `envconfig:"BYBIT_CLIENT_ORDER_PREFIX"`
}

// OKXConfig carries the API passphrase next to key and secret.
type OKXConfig struct {
	APIKey              string   `envconfig:"OKX_API_KEY"`
	Secret              string   `envconfig:"OKX_SECRET"`
	Passphrase          string   `envconfig:"OKX_PASSPHRASE"`
	Testnet             bool     `envconfig:"OKX_TESTNET" default:"false"`
	InstTypes           []string `envconfig:"OKX_INST_TYPES"`
	DefaultMarginMode   string   `envconfig:"OKX_DEFAULT_MARGIN_MODE" default:"cross"`
	ClientOrderIDPrefix string   `envconfig:"OKX_CLIENT_ORDER_PREFIX"`
}

func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the cross-field rules envconfig tags cannot express and
// reports all of them at once.
func (c *Config) Validate() error {
	var errs errors.MultiError
	if c.ErrorTracking.Enabled && c.ErrorTracking.Provider == "sentry" && c.ErrorTracking.SentryDSN == "" {
		errs.Add(errors.Wrap(errors.ErrInvalidInput, "SENTRY_DSN is required when error tracking is enabled"))
	}
	if key := c.Crypto.EncryptionKey; key != "" && len(key) != 32 {
		errs.Add(errors.Wrapf(errors.ErrInvalidInput, "ENCRYPTION_KEY must be 32 bytes, got %d", len(key)))
	}
	for _, mode := range []string{c.Cryptocom.DefaultMarginMode, c.Binance.DefaultMarginMode, c.Bybit.DefaultMarginMode, c.OKX.DefaultMarginMode} {
		if mode != "" && mode != "cross" && mode != "isolated" {
			errs.Add(errors.Wrapf(errors.ErrInvalidInput, "unknown margin mode %q", mode))
		}
	}
	return errs.ToError()
}
