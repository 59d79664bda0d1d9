// Package parser implements the parser stage: it discriminates envelope
// variants arriving on the ingress channel, routes payloads to the
// book/ticker/trades handlers, and forwards typed batches to the writer
// stage. On a detected gap it emits a Reconnect signal to the
// supervisor instead of a row batch.
package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bybit-ingestor/internal/book"
	"bybit-ingestor/internal/health"
	"bybit-ingestor/internal/ticker"
	"bybit-ingestor/internal/writer"
	"bybit-ingestor/pkg/types"

	"bybit-ingestor/internal/decimal"
)

// ControlSignal is the value carried on the control channel from parser
// back to the supervisor. Reconnect is presently its only variant — a
// message, not an exception, so the parser stays ignorant of transport
// details and composes cleanly with tests that inject a fake channel.
type ControlSignal string

// Reconnect requests that the supervisor tear down the transport and
// re-establish the subscription.
const Reconnect ControlSignal = "Reconnect"

const (
	topicTradePrefix     = "publicTrade."
	topicOrderbookPrefix = "orderbook."
	topicTickerPrefix    = "tickers."
)

// Parser owns the book and ticker caches — the sole writer, never
// shared across goroutines.
type Parser struct {
	books    *book.Cache
	tickers  *ticker.Cache
	logger   *slog.Logger
	counters *health.Counters
}

// New creates a Parser with fresh, empty caches.
func New(logger *slog.Logger) *Parser {
	return &Parser{
		books:   book.NewCache(),
		tickers: ticker.NewCache(),
		logger:  logger.With("component", "parser"),
	}
}

// SetCounters attaches the process-wide health counters. Optional —
// Run works identically without it, just without /stats visibility.
func (p *Parser) SetCounters(c *health.Counters) {
	p.counters = c
}

// Run consumes raw text frames from in until it is closed or ctx is
// cancelled. Malformed JSON and per-message decode/application failures
// are logged and skipped — never fatal. Run returns only when in closes
// or ctx is cancelled. It does not close out; the writer stage stops when
// its own context is cancelled (cmd/ingestor cancels the shared context
// as soon as any stage exits).
func (p *Parser) Run(ctx context.Context, in <-chan []byte, out chan<- writer.Message, control chan<- ControlSignal) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-in:
			if !ok {
				return fmt.Errorf("parser: ingress channel closed")
			}
			p.handle(ctx, msg, out, control)
		}
	}
}

func (p *Parser) handle(ctx context.Context, msg []byte, out chan<- writer.Message, control chan<- ControlSignal) {
	var conf struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(msg, &conf); err == nil && conf.Success != nil {
		p.logger.Debug("received confirmation", "success", *conf.Success)
		return
	}

	var env types.Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		p.logger.Warn("malformed message, skipping", "error", err)
		return
	}
	if env.Topic == "" {
		p.logger.Warn("message missing topic, skipping")
		return
	}

	serverTS := time.UnixMilli(env.TS).UTC()
	receivedTS := time.Now().UTC().Truncate(time.Millisecond)

	if p.counters != nil {
		p.counters.MessagesParsed.Add(1)
	}

	switch {
	case strings.HasPrefix(env.Topic, topicTradePrefix):
		p.handleTrades(ctx, env, serverTS, receivedTS, out)
	case strings.HasPrefix(env.Topic, topicOrderbookPrefix):
		p.handleOrderbook(ctx, env, serverTS, receivedTS, out, control)
	case strings.HasPrefix(env.Topic, topicTickerPrefix):
		p.handleTicker(ctx, env, serverTS, receivedTS, out)
	default:
		p.logger.Warn("unknown topic, skipping", "topic", env.Topic)
	}
}

func (p *Parser) handleTrades(ctx context.Context, env types.Envelope, serverTS, receivedTS time.Time, out chan<- writer.Message) {
	var wire []types.TradeWire
	if err := json.Unmarshal(env.Data, &wire); err != nil {
		p.logger.Warn("malformed trades payload, skipping", "error", err)
		return
	}

	rows := make([]types.TradeRow, 0, len(wire))
	for _, tw := range wire {
		price, err := decimal.Parse(tw.Price)
		if err != nil {
			p.logger.Warn("trade price parse error, aborting batch", "error", err, "symbol", tw.Symbol)
			return
		}
		volume, err := decimal.Parse(tw.Volume)
		if err != nil {
			p.logger.Warn("trade volume parse error, aborting batch", "error", err, "symbol", tw.Symbol)
			return
		}

		rows = append(rows, types.TradeRow{
			ServerTS:      serverTS,
			ReceivedTS:    receivedTS,
			TradeTS:       time.UnixMilli(tw.TradeTS).UTC(),
			Symbol:        tw.Symbol,
			TradeID:       tw.TradeID,
			Side:          types.NormalizeSide(tw.Side),
			Price:         price,
			Volume:        volume,
			TickDirection: tw.TickDirection,
			IsBlockTrade:  tw.IsBlockTrade,
			IsRPI:         tw.IsRPI,
			Seq:           tw.Seq,
			Exchange:      "Bybit",
		})
	}

	select {
	case out <- writer.TradeBatch{Rows: rows}:
	case <-ctx.Done():
	}
}

func (p *Parser) handleOrderbook(ctx context.Context, env types.Envelope, serverTS, receivedTS time.Time, out chan<- writer.Message, control chan<- ControlSignal) {
	var wire types.OrderbookWire
	if err := json.Unmarshal(env.Data, &wire); err != nil {
		p.logger.Warn("malformed orderbook payload, skipping", "error", err)
		return
	}

	bids, err := decodeLevels(wire.Bids)
	if err != nil {
		p.logger.Warn("orderbook bid price parse error, skipping message", "error", err, "symbol", wire.Symbol)
		return
	}
	asks, err := decodeLevels(wire.Asks)
	if err != nil {
		p.logger.Warn("orderbook ask price parse error, skipping message", "error", err, "symbol", wire.Symbol)
		return
	}

	var clientTS time.Time
	if env.CTS != nil {
		clientTS = time.UnixMilli(int64(*env.CTS)).UTC()
	}

	switch env.Type {
	case "snapshot":
		rows := p.books.ApplySnapshot(wire.Symbol, wire.UpdateID, bids, asks, serverTS, receivedTS, clientTS)
		select {
		case out <- writer.OrderBookBatch{Rows: rows}:
		case <-ctx.Done():
		}

	case "delta":
		rows, err := p.books.ApplyDelta(wire.Symbol, wire.UpdateID, bids, asks, serverTS, receivedTS, clientTS)
		if err == book.ErrGap {
			p.logger.Warn("orderbook gap detected, requesting reconnect", "symbol", wire.Symbol, "u", wire.UpdateID)
			if p.counters != nil {
				p.counters.ReconnectsIssued.Add(1)
			}
			select {
			case control <- Reconnect:
			case <-ctx.Done():
			}
			return
		}
		select {
		case out <- writer.OrderBookBatch{Rows: rows}:
		case <-ctx.Done():
		}

	default:
		p.logger.Warn("unknown orderbook message type, skipping", "type", env.Type, "symbol", wire.Symbol)
	}
}

func (p *Parser) handleTicker(ctx context.Context, env types.Envelope, serverTS, receivedTS time.Time, out chan<- writer.Message) {
	var fields ticker.Fields
	if err := json.Unmarshal(env.Data, &fields); err != nil {
		p.logger.Warn("malformed ticker payload, skipping", "error", err)
		return
	}

	symbol := ""
	if fields.Symbol != nil {
		symbol = *fields.Symbol
	}

	var crossSequence uint64
	if env.CS != nil {
		crossSequence = *env.CS
	}

	var row ticker.Row
	var err error
	switch env.Type {
	case "snapshot":
		row, err = p.tickers.ApplySnapshot(symbol, fields, serverTS, receivedTS, crossSequence)
	case "delta":
		row, err = p.tickers.ApplyDelta(symbol, fields, serverTS, receivedTS, crossSequence)
		if err == ticker.ErrMissingSnapshot {
			p.logger.Warn("ticker delta before snapshot, skipping", "symbol", symbol)
			return
		}
	default:
		p.logger.Warn("unknown ticker message type, skipping", "type", env.Type, "symbol", symbol)
		return
	}
	if err != nil {
		p.logger.Warn("ticker field parse error, skipping message", "error", err, "symbol", symbol)
		return
	}

	select {
	case out <- writer.TickerBatch{Row: row}:
	case <-ctx.Done():
	}
}

func decodeLevels(wire []types.PriceLevelWire) ([]book.Level, error) {
	levels := make([]book.Level, 0, len(wire))
	for _, lvl := range wire {
		price, err := decimal.Parse(lvl[0])
		if err != nil {
			return nil, err
		}
		volume, err := decimal.Parse(lvl[1])
		if err != nil {
			return nil, err
		}
		levels = append(levels, book.Level{Price: price, Volume: volume})
	}
	return levels, nil
}
