// Bybit market-data ingestor — subscribes to Bybit's public v5 linear
// WebSocket feed (trades, order book, tickers) and persists normalized
// rows into ClickHouse.
//
// Architecture:
//
//	main.go              — entry point: loads config, wires the pipeline, waits for SIGINT/SIGTERM
//	internal/ingress      — supervisor: transport lifecycle, subscribe handshake, keepalive, reconnect loop
//	internal/parser        — envelope discrimination, topic dispatch, book/ticker/trades state machines
//	internal/writer        — size/period-triggered batching into the sink
//	internal/sink          — ClickHouse schema bootstrap and batched inserts
//	internal/book           — order-book snapshot/delta cache, gap detection
//	internal/ticker         — ticker snapshot/delta merge cache
//	internal/health         — /healthz + /stats HTTP surface
//
// Three long-lived goroutines (ingress, parser, writer) communicate over
// buffered channels; a separate control channel carries reconnect
// requests from parser back to ingress.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"bybit-ingestor/internal/config"
	"bybit-ingestor/internal/health"
	"bybit-ingestor/internal/ingress"
	"bybit-ingestor/internal/parser"
	"bybit-ingestor/internal/sink"
	"bybit-ingestor/internal/writer"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("BYBIT_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sink.Open(ctx, cfg.ToSinkConfig())
	if err != nil {
		logger.Error("failed to open sink", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Bootstrap(ctx); err != nil {
		logger.Error("failed to bootstrap sink schema", "error", err)
		os.Exit(1)
	}

	control := make(chan parser.ControlSignal, cfg.Ingress.ControlCapacity)
	parserIngress := make(chan []byte, cfg.Ingress.IngressCapacity)
	writerIngress := make(chan writer.Message, cfg.Ingress.WriterCapacity)

	p := parser.New(logger)
	w := writer.New(store, logger, cfg.ToThresholds())
	sup := ingress.New(cfg.ToIngressConfig(), logger)

	counters := health.NewCounters()
	p.SetCounters(counters)
	w.SetCounters(counters)
	healthServer := health.NewServer(cfg.Health.Addr, counters, logger)
	go func() {
		if err := healthServer.Start(); err != nil {
			logger.Error("health server failed", "error", err)
		}
	}()

	errCh := make(chan error, 3)
	go func() { errCh <- sup.Run(ctx, parserIngress, control) }()
	go func() { errCh <- p.Run(ctx, parserIngress, writerIngress, control) }()
	go func() { errCh <- w.Run(ctx, writerIngress) }()

	logger.Info("bybit ingestor started",
		"ingress_url", cfg.Ingress.URL,
		"topics", cfg.Ingress.Topics,
		"sink_database", cfg.Sink.Database,
	)

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		logger.Error("pipeline stage exited", "error", err)
		stop()
	}

	if err := healthServer.Stop(); err != nil {
		logger.Error("failed to stop health server", "error", err)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
