package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App            AppConfig            `yaml:"app"`
	Logging        LoggingConfig        `yaml:"logging"`
	Channels       ChannelsConfig       `yaml:"channels"`
	Feed           FeedConfig           `yaml:"feed"`
	SnapshotSource SnapshotSourceConfig `yaml:"snapshot_source"`
	Storage        StorageConfig        `yaml:"storage"`
	Recovery       RecoveryConfig       `yaml:"recovery"`
	Metrics        MetricsConfig        `yaml:"metrics"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type ChannelsConfig struct {
	RawBuffer int `yaml:"raw_buffer"`
}

type FeedConfig struct {
	URL              string          `yaml:"url"`
	Symbol           string          `yaml:"symbol"`
	ReadTimeout      Duration        `yaml:"read_timeout"`
	HandshakeTimeout Duration        `yaml:"handshake_timeout"`
	Reconnect        ReconnectConfig `yaml:"reconnect"`
}

type ReconnectConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

type SnapshotSourceConfig struct {
	URL     string   `yaml:"url"`
	Symbol  string   `yaml:"symbol"`
	Limit   int      `yaml:"limit"`
	Timeout Duration `yaml:"timeout"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Prefix          string `yaml:"prefix"`
	Extension       string `yaml:"extension"`
}

type RecoveryConfig struct {
	Enabled            bool     `yaml:"enabled"`
	Interval           Duration `yaml:"interval"`
	GapThresholdMs     int64    `yaml:"gap_threshold_ms"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute"`
}

type MetricsConfig struct {
	CloudWatch bool   `yaml:"cloudwatch"`
	Namespace  string `yaml:"namespace"`
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} placeholders with the corresponding
// environment variable value. Unset variables expand to an empty string.
func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envVarPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// LoadConfig reads the YAML configuration file at path, expands ${VAR}
// placeholders and applies defaults for any omitted values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(expandEnvVars(data), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "orderbookflow"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Channels.RawBuffer <= 0 {
		c.Channels.RawBuffer = 100
	}
	if c.Feed.URL == "" {
		c.Feed.URL = "wss://stream.binance.us:9443/ws/btcusdt@depth20@100ms"
	}
	if c.Feed.Symbol == "" {
		c.Feed.Symbol = "BTCUSDT"
	}
	if c.Feed.ReadTimeout <= 0 {
		c.Feed.ReadTimeout = Duration(30 * time.Second)
	}
	if c.Feed.HandshakeTimeout <= 0 {
		c.Feed.HandshakeTimeout = Duration(5 * time.Second)
	}
	if c.Feed.Reconnect.BaseDelay <= 0 {
		c.Feed.Reconnect.BaseDelay = Duration(time.Second)
	}
	if c.Feed.Reconnect.MaxDelay <= 0 {
		c.Feed.Reconnect.MaxDelay = Duration(30 * time.Second)
	}
	if c.SnapshotSource.URL == "" {
		c.SnapshotSource.URL = "https://api.binance.com"
	}
	if c.SnapshotSource.Symbol == "" {
		c.SnapshotSource.Symbol = c.Feed.Symbol
	}
	if c.SnapshotSource.Limit <= 0 {
		c.SnapshotSource.Limit = 1000
	}
	if c.SnapshotSource.Timeout <= 0 {
		c.SnapshotSource.Timeout = Duration(10 * time.Second)
	}
	if c.Storage.S3.Prefix == "" {
		c.Storage.S3.Prefix = "orderbook"
	}
	if c.Storage.S3.Extension == "" {
		c.Storage.S3.Extension = "avro"
	}
	if c.Recovery.Interval <= 0 {
		c.Recovery.Interval = Duration(time.Minute)
	}
	if c.Recovery.GapThresholdMs <= 0 {
		c.Recovery.GapThresholdMs = 5000
	}
	if c.Recovery.RateLimitPerMinute <= 0 {
		c.Recovery.RateLimitPerMinute = 6
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "Orderbookflow"
	}
}

// Validate checks the configuration for values that would prevent the
// pipeline from starting. Production-like environments are stricter about
// storage settings since a capture daemon without a bucket writes nothing.
func (c *Config) Validate() error {
	if c.Feed.URL == "" {
		return fmt.Errorf("feed.url is required")
	}
	if c.Feed.Reconnect.BaseDelay > c.Feed.Reconnect.MaxDelay {
		return fmt.Errorf("feed.reconnect.base_delay must not exceed max_delay")
	}
	if c.Storage.S3.Enabled && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("storage.s3.bucket is required when s3 is enabled")
	}
	if IsProductionLike(AppEnvironment()) && !c.Storage.S3.Enabled {
		return fmt.Errorf("storage.s3 must be enabled in %s", AppEnvironment())
	}
	return nil
}
