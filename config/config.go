package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL = "https://api.pro.coinbase.com"
	SandboxBaseURL = "https://api-public.sandbox.pro.coinbase.com"
)

// Environment variables that carry the exchange credentials.
const (
	EnvAPIKey        = "CB_API_KEY"
	EnvAPISecret     = "CB_API_SECRET"
	EnvAPIPassphrase = "CB_API_PASSPHRASE"
	EnvAPIURL        = "CB_API_URL"
)

type Config struct {
	Trader   TraderConfig   `yaml:"trader"`
	Exchange ExchangeConfig `yaml:"exchange"`
	Strategy StrategyConfig `yaml:"strategy"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type TraderConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type ExchangeConfig struct {
	BaseURL      string          `yaml:"base_url"`
	AllowSandbox bool            `yaml:"allow_sandbox"`
	Timeout      time.Duration   `yaml:"timeout"`
	UserAgent    string          `yaml:"user_agent"`
	MaxClockSkew time.Duration   `yaml:"max_clock_skew"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
	Retry        RetryConfig     `yaml:"retry"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BaseDelay         time.Duration `yaml:"base_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	BackoffMultiplier int           `yaml:"backoff_multiplier"`
}

type StrategyConfig struct {
	Product     string `yaml:"product"`
	Granularity int    `yaml:"granularity"`
	Lookback    int    `yaml:"lookback"`
	ShortWindow int    `yaml:"short_window"`
	LongWindow  int    `yaml:"long_window"`
	OrderSize   string `yaml:"order_size"`
}

// Size returns the configured order size. validateConfig guarantees it
// parses.
func (s StrategyConfig) Size() decimal.Decimal {
	d, err := decimal.NewFromString(s.OrderSize)
	if err != nil {
		return decimal.Zero
	}
	return d
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	ListenAddr string           `yaml:"listen_addr"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Region          string `yaml:"region"`
	Namespace       string `yaml:"namespace"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// Default returns the configuration used for any key the YAML file leaves
// out.
func Default() Config {
	return Config{
		Trader: TraderConfig{Name: "cbtrader", Version: "dev"},
		Exchange: ExchangeConfig{
			BaseURL:      DefaultBaseURL,
			Timeout:      30 * time.Second,
			UserAgent:    "cbtrader/1.0",
			MaxClockSkew: 30 * time.Second,
			RateLimit:    RateLimitConfig{RequestsPerSecond: 3, BurstSize: 1},
			Retry: RetryConfig{
				MaxAttempts:       3,
				BaseDelay:         500 * time.Millisecond,
				MaxDelay:          5 * time.Second,
				BackoffMultiplier: 2,
			},
		},
		Strategy: StrategyConfig{
			Product:     "BTC-USD",
			Granularity: 3600,
			Lookback:    200,
			ShortWindow: 50,
			LongWindow:  100,
			OrderSize:   "0.001",
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Metrics: MetricsConfig{CloudWatch: CloudWatchConfig{Namespace: "CBTrader"}},
	}
}

func LoadConfig(path string) (*Config, error) {
	path = resolveEnvSpecificPath(path, DefaultConfigPath, environmentConfigPaths)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if v := os.Getenv(EnvAPIURL); v != "" {
		config.Exchange.BaseURL = strings.TrimSpace(v)
	}
	if config.Metrics.CloudWatch.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Metrics.CloudWatch.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Metrics.CloudWatch.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Metrics.CloudWatch.Region = strings.TrimSpace(v)
		}
	}

	config.Exchange.BaseURL = strings.TrimRight(strings.TrimSpace(config.Exchange.BaseURL), "/")
	config.Strategy.Product = strings.ToUpper(strings.TrimSpace(config.Strategy.Product))

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// allowedGranularities mirrors exchange.ValidGranularity, which config
// cannot import. Keep the two lists in step.
var allowedGranularities = map[int]struct{}{
	60: {}, 300: {}, 900: {}, 3600: {}, 21600: {}, 86400: {},
}

var productRegexp = regexp.MustCompile(`^[A-Z0-9]+-[A-Z0-9]+$`)

func validateConfig(cfg *Config) error {
	if cfg.Trader.Name == "" {
		return fmt.Errorf("trader.name is required")
	}

	u, err := url.Parse(cfg.Exchange.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("exchange.base_url '%s' is not an absolute URL", cfg.Exchange.BaseURL)
	}
	if IsProductionLike(AppEnvironment()) && cfg.Exchange.BaseURL == SandboxBaseURL && !cfg.Exchange.AllowSandbox {
		return fmt.Errorf("exchange.base_url points at the sandbox in %s; set exchange.allow_sandbox to override", AppEnvironment())
	}
	if cfg.Exchange.Timeout <= 0 {
		return fmt.Errorf("exchange.timeout must be greater than 0")
	}
	if cfg.Exchange.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("exchange.rate_limit.requests_per_second must be greater than 0")
	}
	if cfg.Exchange.RateLimit.BurstSize <= 0 {
		return fmt.Errorf("exchange.rate_limit.burst_size must be greater than 0")
	}
	if cfg.Exchange.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("exchange.retry.max_attempts must be greater than 0")
	}
	if cfg.Exchange.Retry.BaseDelay <= 0 || cfg.Exchange.Retry.MaxDelay < cfg.Exchange.Retry.BaseDelay {
		return fmt.Errorf("exchange.retry.base_delay must be positive and not exceed max_delay")
	}

	if !productRegexp.MatchString(cfg.Strategy.Product) {
		return fmt.Errorf("strategy.product '%s' is invalid", cfg.Strategy.Product)
	}
	if _, ok := allowedGranularities[cfg.Strategy.Granularity]; !ok {
		return fmt.Errorf("strategy.granularity %d is not one of 60, 300, 900, 3600, 21600, 86400", cfg.Strategy.Granularity)
	}
	if cfg.Strategy.ShortWindow <= 0 || cfg.Strategy.LongWindow <= 0 {
		return fmt.Errorf("strategy windows must be greater than 0")
	}
	if cfg.Strategy.ShortWindow > cfg.Strategy.LongWindow {
		return fmt.Errorf("strategy.short_window must not exceed strategy.long_window")
	}
	if cfg.Strategy.Lookback < cfg.Strategy.LongWindow || cfg.Strategy.Lookback > 200 {
		return fmt.Errorf("strategy.lookback must be between long_window and 200")
	}
	size, err := decimal.NewFromString(cfg.Strategy.OrderSize)
	if err != nil || !size.IsPositive() {
		return fmt.Errorf("strategy.order_size '%s' must be a positive decimal", cfg.Strategy.OrderSize)
	}

	if cfg.Metrics.CloudWatch.Enabled && cfg.Metrics.CloudWatch.Namespace == "" {
		return fmt.Errorf("metrics.cloudwatch.namespace is required when CloudWatch is enabled")
	}

	return nil
}

// Credentials is the immutable API credential bundle. It is loaded once at
// startup and handed to the exchange client.
type Credentials struct {
	Key        string
	Secret     string
	Passphrase string
	BaseURL    string
}

// LoadCredentials reads the credential bundle from the environment. The
// base URL comes from the already loaded configuration.
func LoadCredentials(cfg *Config) (Credentials, error) {
	creds := Credentials{
		Key:        strings.TrimSpace(os.Getenv(EnvAPIKey)),
		Secret:     strings.TrimSpace(os.Getenv(EnvAPISecret)),
		Passphrase: strings.TrimSpace(os.Getenv(EnvAPIPassphrase)),
		BaseURL:    cfg.Exchange.BaseURL,
	}
	if err := creds.Validate(); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

func (c Credentials) Validate() error {
	if c.Key == "" || c.Secret == "" || c.Passphrase == "" {
		return fmt.Errorf("%s, %s and %s are required", EnvAPIKey, EnvAPISecret, EnvAPIPassphrase)
	}
	if _, err := base64.StdEncoding.DecodeString(c.Secret); err != nil {
		return fmt.Errorf("%s is not valid base64: %w", EnvAPISecret, err)
	}
	return nil
}

// String never prints the secret or passphrase.
func (c Credentials) String() string {
	key := c.Key
	if len(key) > 4 {
		key = key[:4] + "..."
	}
	return fmt.Sprintf("Credentials{key=%s base_url=%s}", key, c.BaseURL)
}
