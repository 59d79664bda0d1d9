// Package ingress implements the supervisor stage: it owns the upstream
// WebSocket connection, the subscription handshake, keepalive pings, and
// the outer reconnect loop. Inbound frames are forwarded unparsed onto
// the parser-ingress channel; the only thing ingress understands about
// message contents is that none of its business — decoding happens
// downstream in the parser.
//
// Grounded on the teacher's internal/exchange/ws.go connect/read-loop/
// ping-loop shape, with two deliberate departures: reconnect uses a
// fixed delay rather than exponential backoff, and reconnection can
// also be triggered by an inbound ControlSignal from the parser (a
// detected order-book sequence gap), not only by transport failure.
package ingress

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"bybit-ingestor/internal/parser"
)

const writeTimeout = 10 * time.Second
const handshakeTimeout = 10 * time.Second

// errReconnectRequested unwinds connectAndPump when the parser reports a
// sequence gap; it is never surfaced to the caller of Run.
var errReconnectRequested = errors.New("ingress: reconnect requested by parser")

// Config holds everything the supervisor needs to dial and subscribe.
// TLSConfig is optional; when nil, tlsinit.Install()'s shared config
// should be passed in by the caller so every dial shares one
// process-wide TLS policy rather than gorilla's package default.
type Config struct {
	URL               string
	Topics            []string
	KeepaliveInterval time.Duration
	ReconnectDelay    time.Duration
	TLSConfig         *tls.Config
}

// Supervisor runs the outer reconnect loop described in spec.md §4.7.
type Supervisor struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *slog.Logger
}

// New builds a Supervisor. cfg is not validated here; internal/config is
// responsible for filling in sane defaults before this is constructed.
// The websocket dialer is built once here, carrying cfg.TLSConfig, so
// every connection attempt actually dials through the installed TLS
// policy instead of gorilla's package-level default dialer.
func New(cfg Config, logger *slog.Logger) *Supervisor {
	dialer := &websocket.Dialer{
		TLSClientConfig:  cfg.TLSConfig,
		HandshakeTimeout: handshakeTimeout,
	}
	return &Supervisor{cfg: cfg, dialer: dialer, logger: logger.With("component", "ingress")}
}

// Run drives the outer reconnect loop until ctx is cancelled. Every
// connection attempt re-sends the full subscription; a gap reported on
// control via parser.Reconnect tears the connection down just like a
// transport failure would. Between attempts it waits the configured
// fixed delay — a floor, not a growing backoff, since a feed gap should
// be recovered quickly rather than slowly retried.
func (s *Supervisor) Run(ctx context.Context, out chan<- []byte, control <-chan parser.ControlSignal) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.connectAndPump(ctx, out, control)
		if err := ctx.Err(); err != nil {
			return err
		}

		s.logger.Warn("ingress disconnected, reconnecting", "error", err, "delay", s.cfg.ReconnectDelay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.ReconnectDelay):
		}
	}
}

type subscribeFrame struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

type frame struct {
	data []byte
	err  error
}

func (s *Supervisor) connectAndPump(ctx context.Context, out chan<- []byte, control <-chan parser.ControlSignal) error {
	conn, _, err := s.dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("ingress: dial: %w", err)
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(subscribeFrame{Op: "subscribe", Args: s.cfg.Topics}); err != nil {
		return fmt.Errorf("ingress: subscribe: %w", err)
	}
	s.logger.Info("ingress connected", "url", s.cfg.URL, "topics", s.cfg.Topics)

	frames := make(chan frame, 1)
	stopped := make(chan struct{})
	defer close(stopped)
	go readPump(conn, frames, stopped)

	pingTicker := time.NewTicker(s.cfg.KeepaliveInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case f := <-frames:
			if f.err != nil {
				return fmt.Errorf("ingress: read: %w", f.err)
			}
			select {
			case out <- f.data:
			case <-ctx.Done():
				return ctx.Err()
			}

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("ingress: ping: %w", err)
			}

		case sig, ok := <-control:
			if ok && sig == parser.Reconnect {
				s.logger.Warn("reconnecting on parser-reported sequence gap")
				return errReconnectRequested
			}
		}
	}
}

// readPump runs in its own goroutine for the lifetime of one connection.
// Inbound ping frames are answered with pong automatically by gorilla's
// default ping handler; close frames surface here as a read error, which
// unwinds connectAndPump into the outer reconnect loop.
func readPump(conn *websocket.Conn, frames chan<- frame, stopped <-chan struct{}) {
	for {
		_, data, err := conn.ReadMessage()
		select {
		case frames <- frame{data: data, err: err}:
		case <-stopped:
			return
		}
		if err != nil {
			return
		}
	}
}
