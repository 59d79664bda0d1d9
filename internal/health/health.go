// Package health exposes a minimal HTTP surface reporting pipeline
// health and throughput — adapted from the teacher's dashboard server
// (internal/api/server.go, handlers.go), trimmed to what a headless
// ingestion daemon needs: a liveness probe and a stats snapshot. No
// WebSocket push, no dashboard UI.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// Counters are incremented by the pipeline stages as messages flow
// through; Server reads them without locking (atomic loads).
type Counters struct {
	MessagesParsed   atomic.Int64
	ReconnectsIssued atomic.Int64
	OrderBookRows    atomic.Int64
	TradeRows        atomic.Int64
	TickerRows       atomic.Int64
}

// NewCounters returns a zeroed counter set.
func NewCounters() *Counters { return &Counters{} }

// Snapshot is the point-in-time JSON view of Counters.
type Snapshot struct {
	MessagesParsed   int64 `json:"messages_parsed"`
	ReconnectsIssued int64 `json:"reconnects_issued"`
	OrderBookRows    int64 `json:"orderbook_rows_committed"`
	TradeRows        int64 `json:"trade_rows_committed"`
	TickerRows       int64 `json:"ticker_rows_committed"`
}

// Snapshot reads all counters.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		MessagesParsed:   c.MessagesParsed.Load(),
		ReconnectsIssued: c.ReconnectsIssued.Load(),
		OrderBookRows:    c.OrderBookRows.Load(),
		TradeRows:        c.TradeRows.Load(),
		TickerRows:       c.TickerRows.Load(),
	}
}

// Server is the liveness/stats HTTP endpoint.
type Server struct {
	counters *Counters
	server   *http.Server
	logger   *slog.Logger
}

// NewServer builds a Server listening on addr (e.g. ":9090").
func NewServer(addr string, counters *Counters, logger *slog.Logger) *Server {
	logger = logger.With("component", "health")
	mux := http.NewServeMux()

	s := &Server{counters: counters, logger: logger}
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/stats", s.handleStats)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start blocks serving HTTP until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("health server starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("health: serve: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.counters.Snapshot()); err != nil {
		s.logger.Error("failed to encode stats", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
