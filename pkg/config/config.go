// Package config loads the bridge configuration from defaults, an optional
// config file, and ORCBRIDGE_* environment variables, in increasing order
// of precedence.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/ajitpratap0/orcbridge/pkg/bridgeerrors"
	"github.com/ajitpratap0/orcbridge/pkg/orc"
)

// Config carries every tunable of the bridge CLI and facade.
type Config struct {
	// BatchSize is the number of rows per materialized record.
	BatchSize int `mapstructure:"batch_size"`
	// StripeRows is the row count per stripe when writing.
	StripeRows int `mapstructure:"stripe_rows"`
	// Compression names the stripe codec used when writing.
	Compression string `mapstructure:"compression"`

	Log LogConfig `mapstructure:"log"`

	// MetricsAddr, when set, exposes Prometheus metrics on that address.
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// LogConfig mirrors the logger configuration.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"`
	Development bool   `mapstructure:"development"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		BatchSize:   1024,
		StripeRows:  65536,
		Compression: "zstd",
		Log: LogConfig{
			Level:    "info",
			Encoding: "json",
		},
	}
}

// Load builds the configuration. path may be empty; environment variables
// such as ORCBRIDGE_BATCH_SIZE and ORCBRIDGE_LOG_LEVEL override both the
// defaults and the file.
func Load(path string) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("batch_size", def.BatchSize)
	v.SetDefault("stripe_rows", def.StripeRows)
	v.SetDefault("compression", def.Compression)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.encoding", def.Log.Encoding)
	v.SetDefault("log.development", def.Log.Development)
	v.SetDefault("metrics_addr", def.MetricsAddr)

	v.SetEnvPrefix("ORCBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, bridgeerrors.Wrap(err, bridgeerrors.ErrorTypeConfig, "read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, bridgeerrors.Wrap(err, bridgeerrors.ErrorTypeConfig, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the bridge cannot run with.
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return bridgeerrors.Newf(bridgeerrors.ErrorTypeConfig, "batch_size must be positive, got %d", c.BatchSize)
	}
	if c.StripeRows <= 0 {
		return bridgeerrors.Newf(bridgeerrors.ErrorTypeConfig, "stripe_rows must be positive, got %d", c.StripeRows)
	}
	if _, err := orc.ParseCompression(c.Compression); err != nil {
		return err
	}
	switch c.Log.Encoding {
	case "json", "console":
	default:
		return bridgeerrors.Newf(bridgeerrors.ErrorTypeConfig, "log encoding must be json or console, got %q", c.Log.Encoding)
	}
	return nil
}

// CompressionKind returns the parsed stripe codec. Validate must have
// passed.
func (c *Config) CompressionKind() orc.CompressionKind {
	kind, _ := orc.ParseCompression(c.Compression)
	return kind
}
