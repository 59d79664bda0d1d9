package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const minimalYAML = `
sink:
  addr: ["localhost:9000"]
  database: "bybit"
  username: "default"
ingress:
  topics:
    - "publicTrade.BTCUSDT"
    - "orderbook.50.BTCUSDT"
    - "tickers.BTCUSDT"
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, minimalYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Ingress.URL != "wss://stream.bybit.com/v5/public/linear" {
		t.Errorf("unexpected default ingress URL: %q", cfg.Ingress.URL)
	}
	if cfg.Ingress.ReconnectDelay != 5*time.Second {
		t.Errorf("reconnect delay = %v, want 5s", cfg.Ingress.ReconnectDelay)
	}
	if cfg.Ingress.KeepaliveInterval != 30*time.Second {
		t.Errorf("keepalive interval = %v, want 30s", cfg.Ingress.KeepaliveInterval)
	}
	if cfg.Ingress.ControlCapacity != 100 {
		t.Errorf("control capacity = %d, want 100", cfg.Ingress.ControlCapacity)
	}
	if cfg.Ingress.IngressCapacity != 100_000 {
		t.Errorf("ingress capacity = %d, want 100000", cfg.Ingress.IngressCapacity)
	}
	if cfg.Writer.OrderbookMaxRows != 100 || cfg.Writer.OrderbookMaxPeriod != 5*time.Second {
		t.Errorf("unexpected orderbook thresholds: %+v", cfg.Writer)
	}
	if cfg.Writer.JitterPercent != 0.20 {
		t.Errorf("jitter percent = %v, want 0.20", cfg.Writer.JitterPercent)
	}
	if cfg.Health.Addr != ":9090" {
		t.Errorf("health addr = %q, want :9090", cfg.Health.Addr)
	}
}

func TestLoadEnvOverridesSinkCredentials(t *testing.T) {
	path := writeConfig(t, minimalYAML)

	t.Setenv("BYBIT_SINK_USERNAME", "override-user")
	t.Setenv("BYBIT_SINK_PASSWORD", "override-pass")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sink.Username != "override-user" {
		t.Errorf("username = %q, want override-user", cfg.Sink.Username)
	}
	if cfg.Sink.Password != "override-pass" {
		t.Errorf("password = %q, want override-pass", cfg.Sink.Password)
	}
}

func TestValidateRequiresSinkAndTopics(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty config")
	}

	cfg.Sink.Addr = []string{"localhost:9000"}
	cfg.Sink.Database = "bybit"
	cfg.Sink.Username = "default"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing topics")
	}

	cfg.Ingress.Topics = []string{"publicTrade.BTCUSDT"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
