// Package writer implements the writer stage: it consumes typed row
// batches from the parser and feeds three periodic/size-triggered
// batchers, one per downstream table, into the sink.
package writer

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"bybit-ingestor/internal/book"
	"bybit-ingestor/internal/health"
	"bybit-ingestor/internal/ticker"
	"bybit-ingestor/pkg/types"
)

// Sink is the downstream analytics store. internal/sink.Store implements
// this against ClickHouse; tests use a fake.
type Sink interface {
	InsertOrderBookRows(ctx context.Context, rows []book.Row) error
	InsertTradeRows(ctx context.Context, rows []types.TradeRow) error
	InsertTickerRows(ctx context.Context, rows []ticker.Row) error
}

// Message is the typed batch sent from parser to writer on the
// writer-ingress channel. Exactly one of the concrete types below is
// carried per value.
type Message interface {
	isWriterMessage()
}

// OrderBookBatch carries the rows emitted by one successful book
// snapshot or delta transition.
type OrderBookBatch struct{ Rows []book.Row }

// TradeBatch carries all rows parsed from one publicTrade payload.
type TradeBatch struct{ Rows []types.TradeRow }

// TickerBatch carries the single merged row from one ticker snapshot or
// delta transition.
type TickerBatch struct{ Row ticker.Row }

func (OrderBookBatch) isWriterMessage() {}
func (TradeBatch) isWriterMessage()     {}
func (TickerBatch) isWriterMessage()    {}

// Thresholds configures the size/period of all three batchers. The zero
// value is invalid; use DefaultThresholds as a starting point.
type Thresholds struct {
	OrderbookMaxRows   int
	OrderbookMaxPeriod time.Duration
	TradesMaxRows      int
	TradesMaxPeriod    time.Duration
	TickerMaxRows      int
	TickerMaxPeriod    time.Duration
	JitterPercent      float64
}

// DefaultThresholds matches the table in spec.md §4.6.
func DefaultThresholds() Thresholds {
	return Thresholds{
		OrderbookMaxRows:   100,
		OrderbookMaxPeriod: 5 * time.Second,
		TradesMaxRows:      100,
		TradesMaxPeriod:    1 * time.Second,
		TickerMaxRows:      100,
		TickerMaxPeriod:    1 * time.Second,
		JitterPercent:      0.20,
	}
}

// Writer owns the three batchers and the writer-ingress channel.
type Writer struct {
	sink       Sink
	logger     *slog.Logger
	thresholds Thresholds
	counters   *health.Counters

	orderbook batcher[book.Row]
	trades    batcher[types.TradeRow]
	tick      batcher[ticker.Row]
}

// SetCounters attaches the process-wide health counters. Optional — Run
// works identically without it, just without /stats visibility.
func (w *Writer) SetCounters(c *health.Counters) {
	w.counters = c
}

// New creates a Writer bound to sink, using the given thresholds.
func New(sink Sink, logger *slog.Logger, thresholds Thresholds) *Writer {
	logger = logger.With("component", "writer")
	w := &Writer{sink: sink, logger: logger, thresholds: thresholds}

	w.orderbook = newBatcher[book.Row]("orderbook", thresholds.OrderbookMaxRows,
		func(ctx context.Context, rows []book.Row) error { return sink.InsertOrderBookRows(ctx, rows) })
	w.trades = newBatcher[types.TradeRow]("trades", thresholds.TradesMaxRows,
		func(ctx context.Context, rows []types.TradeRow) error { return sink.InsertTradeRows(ctx, rows) })
	w.tick = newBatcher[ticker.Row]("ticker", thresholds.TickerMaxRows,
		func(ctx context.Context, rows []ticker.Row) error { return sink.InsertTickerRows(ctx, rows) })

	return w
}

// Run consumes messages from in until it is closed or ctx is cancelled,
// committing each batcher on its own jittered period timer in addition
// to the size trigger applied on every incoming message. A failing
// commit terminates Run with an error — the supervisor treats writer
// exit as fatal and does not restart it. Run performs no flush on
// shutdown: ctx cancellation or channel closure may leave a partially
// filled batch uncommitted, per the at-least-once contract upstream.
func (w *Writer) Run(ctx context.Context, in <-chan Message) error {
	t := w.thresholds
	obTimer := time.NewTimer(jitter(t.OrderbookMaxPeriod, t.JitterPercent))
	defer obTimer.Stop()
	trTimer := time.NewTimer(jitter(t.TradesMaxPeriod, t.JitterPercent))
	defer trTimer.Stop()
	tkTimer := time.NewTimer(jitter(t.TickerMaxPeriod, t.JitterPercent))
	defer tkTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-in:
			if !ok {
				return fmt.Errorf("writer: ingress channel closed")
			}
			switch m := msg.(type) {
			case OrderBookBatch:
				w.orderbook.write(m.Rows...)
				if w.orderbook.sizeTriggered() {
					if err := w.commit(ctx, &w.orderbook); err != nil {
						return err
					}
				}
			case TradeBatch:
				w.trades.write(m.Rows...)
				if w.trades.sizeTriggered() {
					if err := w.commit(ctx, &w.trades); err != nil {
						return err
					}
				}
			case TickerBatch:
				w.tick.write(m.Row)
				if w.tick.sizeTriggered() {
					if err := w.commit(ctx, &w.tick); err != nil {
						return err
					}
				}
			}

		case <-obTimer.C:
			if err := w.commit(ctx, &w.orderbook); err != nil {
				return err
			}
			obTimer.Reset(jitter(t.OrderbookMaxPeriod, t.JitterPercent))

		case <-trTimer.C:
			if err := w.commit(ctx, &w.trades); err != nil {
				return err
			}
			trTimer.Reset(jitter(t.TradesMaxPeriod, t.JitterPercent))

		case <-tkTimer.C:
			if err := w.commit(ctx, &w.tick); err != nil {
				return err
			}
			tkTimer.Reset(jitter(t.TickerMaxPeriod, t.JitterPercent))
		}
	}
}

func (w *Writer) commit(ctx context.Context, b interface{ commit(context.Context) (stats, error) }) error {
	stats, err := b.commit(ctx)
	if err != nil {
		return fmt.Errorf("writer: commit: %w", err)
	}
	if stats.rows > 0 {
		w.logger.Info("committed batch",
			"table", stats.name,
			"rows", stats.rows,
			"bytes", stats.bytes,
			"transactions", stats.transactions,
		)
		if w.counters != nil {
			switch stats.name {
			case "orderbook":
				w.counters.OrderBookRows.Add(int64(stats.rows))
			case "trades":
				w.counters.TradeRows.Add(int64(stats.rows))
			case "ticker":
				w.counters.TickerRows.Add(int64(stats.rows))
			}
		}
	}
	return nil
}

// jitter returns base scaled by a uniformly random factor within
// ±pct, spreading flush times across symbols to avoid thundering herds
// on the sink.
func jitter(base time.Duration, pct float64) time.Duration {
	factor := 1 + (rand.Float64()*2-1)*pct
	return time.Duration(float64(base) * factor)
}
