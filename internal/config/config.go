// Package config defines all configuration for the market-data ingestor.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via BYBIT_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"bybit-ingestor/internal/ingress"
	"bybit-ingestor/internal/sink"
	"bybit-ingestor/internal/tlsinit"
	"bybit-ingestor/internal/writer"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Sink    SinkConfig    `mapstructure:"sink"`
	Ingress IngressConfig `mapstructure:"ingress"`
	Writer  WriterConfig  `mapstructure:"writer"`
	Health  HealthConfig  `mapstructure:"health"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SinkConfig holds the ClickHouse connection parameters.
type SinkConfig struct {
	Addr     []string `mapstructure:"addr"`
	Database string   `mapstructure:"database"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
}

// IngressConfig drives the upstream WebSocket connection: the public
// endpoint, the subscribed topic list, channel capacities, and the
// keepalive/reconnect timing from spec.md §6.
type IngressConfig struct {
	URL               string        `mapstructure:"url"`
	Topics            []string      `mapstructure:"topics"`
	ControlCapacity   int           `mapstructure:"control_capacity"`
	IngressCapacity   int           `mapstructure:"ingress_capacity"`
	WriterCapacity    int           `mapstructure:"writer_capacity"`
	KeepaliveInterval time.Duration `mapstructure:"keepalive_interval"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
}

// WriterConfig maps onto writer.Thresholds — row-count and period
// triggers per table, plus the jitter percentage spreading flushes
// across symbols.
type WriterConfig struct {
	OrderbookMaxRows   int           `mapstructure:"orderbook_max_rows"`
	OrderbookMaxPeriod time.Duration `mapstructure:"orderbook_max_period"`
	TradesMaxRows      int           `mapstructure:"trades_max_rows"`
	TradesMaxPeriod    time.Duration `mapstructure:"trades_max_period"`
	TickerMaxRows      int           `mapstructure:"ticker_max_rows"`
	TickerMaxPeriod    time.Duration `mapstructure:"ticker_max_period"`
	JitterPercent      float64       `mapstructure:"jitter_percent"`
}

// HealthConfig controls the liveness/stats HTTP surface.
type HealthConfig struct {
	Addr string `mapstructure:"addr"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: BYBIT_SINK_USERNAME, BYBIT_SINK_PASSWORD.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("BYBIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if user := os.Getenv("BYBIT_SINK_USERNAME"); user != "" {
		cfg.Sink.Username = user
	}
	if pass := os.Getenv("BYBIT_SINK_PASSWORD"); pass != "" {
		cfg.Sink.Password = pass
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// applyDefaults fills in any zero-valued field with the value spec.md §6
// names, so a minimal YAML file (sink addr, database and username, plus
// topics) is enough to run.
func applyDefaults(cfg *Config) {
	if cfg.Ingress.URL == "" {
		cfg.Ingress.URL = "wss://stream.bybit.com/v5/public/linear"
	}
	if cfg.Ingress.ControlCapacity == 0 {
		cfg.Ingress.ControlCapacity = 100
	}
	if cfg.Ingress.IngressCapacity == 0 {
		cfg.Ingress.IngressCapacity = 100_000
	}
	if cfg.Ingress.WriterCapacity == 0 {
		cfg.Ingress.WriterCapacity = 100_000
	}
	if cfg.Ingress.KeepaliveInterval == 0 {
		cfg.Ingress.KeepaliveInterval = 30 * time.Second
	}
	if cfg.Ingress.ReconnectDelay == 0 {
		cfg.Ingress.ReconnectDelay = 5 * time.Second
	}
	if cfg.Writer.OrderbookMaxRows == 0 {
		cfg.Writer.OrderbookMaxRows = 100
	}
	if cfg.Writer.OrderbookMaxPeriod == 0 {
		cfg.Writer.OrderbookMaxPeriod = 5 * time.Second
	}
	if cfg.Writer.TradesMaxRows == 0 {
		cfg.Writer.TradesMaxRows = 100
	}
	if cfg.Writer.TradesMaxPeriod == 0 {
		cfg.Writer.TradesMaxPeriod = 1 * time.Second
	}
	if cfg.Writer.TickerMaxRows == 0 {
		cfg.Writer.TickerMaxRows = 100
	}
	if cfg.Writer.TickerMaxPeriod == 0 {
		cfg.Writer.TickerMaxPeriod = 1 * time.Second
	}
	if cfg.Writer.JitterPercent == 0 {
		cfg.Writer.JitterPercent = 0.20
	}
	if cfg.Health.Addr == "" {
		cfg.Health.Addr = ":9090"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// ToSinkConfig converts to sink.Config.
func (c *Config) ToSinkConfig() sink.Config {
	return sink.Config{
		Addr:     c.Sink.Addr,
		Database: c.Sink.Database,
		Username: c.Sink.Username,
		Password: c.Sink.Password,
	}
}

// ToIngressConfig converts to ingress.Config, wiring in the process-wide
// TLS config so the ingress dialer actually uses it.
func (c *Config) ToIngressConfig() ingress.Config {
	return ingress.Config{
		URL:               c.Ingress.URL,
		Topics:            c.Ingress.Topics,
		KeepaliveInterval: c.Ingress.KeepaliveInterval,
		ReconnectDelay:    c.Ingress.ReconnectDelay,
		TLSConfig:         tlsinit.Install(),
	}
}

// ToThresholds converts to writer.Thresholds.
func (c *Config) ToThresholds() writer.Thresholds {
	return writer.Thresholds{
		OrderbookMaxRows:   c.Writer.OrderbookMaxRows,
		OrderbookMaxPeriod: c.Writer.OrderbookMaxPeriod,
		TradesMaxRows:      c.Writer.TradesMaxRows,
		TradesMaxPeriod:    c.Writer.TradesMaxPeriod,
		TickerMaxRows:      c.Writer.TickerMaxRows,
		TickerMaxPeriod:    c.Writer.TickerMaxPeriod,
		JitterPercent:      c.Writer.JitterPercent,
	}
}

// Validate checks all required fields.
func (c *Config) Validate() error {
	if len(c.Sink.Addr) == 0 {
		return fmt.Errorf("sink.addr is required")
	}
	if c.Sink.Database == "" {
		return fmt.Errorf("sink.database is required")
	}
	if c.Sink.Username == "" {
		return fmt.Errorf("sink.username is required (set BYBIT_SINK_USERNAME)")
	}
	if len(c.Ingress.Topics) == 0 {
		return fmt.Errorf("ingress.topics must list at least one topic")
	}
	return nil
}
