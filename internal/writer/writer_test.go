package writer

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"bybit-ingestor/internal/book"
	"bybit-ingestor/internal/decimal"
	"bybit-ingestor/internal/ticker"
	"bybit-ingestor/pkg/types"
)

type fakeSink struct {
	mu     sync.Mutex
	obRows int
	trRows int
	tkRows int
}

func (f *fakeSink) InsertOrderBookRows(_ context.Context, rows []book.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.obRows += len(rows)
	return nil
}

func (f *fakeSink) InsertTradeRows(_ context.Context, rows []types.TradeRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trRows += len(rows)
	return nil
}

func (f *fakeSink) InsertTickerRows(_ context.Context, rows []ticker.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tkRows += len(rows)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, nil))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestWriterSizeTriggeredCommit(t *testing.T) {
	sink := &fakeSink{}
	thresholds := DefaultThresholds()
	w := New(sink, discardLogger(), thresholds)

	in := make(chan Message, thresholds.OrderbookMaxRows+1)
	rows := make([]book.Row, thresholds.OrderbookMaxRows)
	for i := range rows {
		rows[i] = book.Row{Symbol: "BTCUSDT", Price: decimal.MustParse("1"), Volume: decimal.MustParse("1")}
	}
	in <- OrderBookBatch{Rows: rows}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx, in) }()

	deadline := time.After(2 * time.Second)
	for {
		sink.mu.Lock()
		n := sink.obRows
		sink.mu.Unlock()
		if n == thresholds.OrderbookMaxRows {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for size-triggered commit, got %d rows", n)
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-errCh
}

func TestWriterPeriodicCommitForSubThresholdBatch(t *testing.T) {
	sink := &fakeSink{}
	w := New(sink, discardLogger(), DefaultThresholds())

	in := make(chan Message, 1)
	in <- TradeBatch{Rows: []types.TradeRow{{Symbol: "BTCUSDT", Side: "Buy"}}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx, in) }()

	deadline := time.After(3 * time.Second)
	for {
		sink.mu.Lock()
		n := sink.trRows
		sink.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for periodic commit of sub-threshold batch")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestWriterFatalOnChannelClose(t *testing.T) {
	sink := &fakeSink{}
	w := New(sink, discardLogger(), DefaultThresholds())

	in := make(chan Message)
	close(in)

	err := w.Run(context.Background(), in)
	if err == nil {
		t.Fatalf("expected error when writer-ingress channel closes")
	}
}
