package parser

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"bybit-ingestor/internal/book"
	"bybit-ingestor/internal/writer"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, nil))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func run(t *testing.T, p *Parser, msg string) (writer.Message, ControlSignal) {
	t.Helper()
	out := make(chan writer.Message, 4)
	control := make(chan ControlSignal, 4)
	p.handle(context.Background(), []byte(msg), out, control)

	select {
	case m := <-out:
		return m, ""
	default:
	}
	select {
	case c := <-control:
		return nil, c
	default:
	}
	return nil, ""
}

// S6 — confirmation: logged, no writer emission, no state change.
func TestConfirmationSkipped(t *testing.T) {
	p := New(discardLogger())
	m, c := run(t, p, `{"success":true,"op":"subscribe"}`)
	if m != nil || c != "" {
		t.Fatalf("expected no emission for confirmation, got msg=%v control=%v", m, c)
	}
}

// S1/S2 via the parser entry point: snapshot then gapped delta
// triggers Reconnect and emits zero rows.
func TestOrderbookGapEmitsReconnect(t *testing.T) {
	p := New(discardLogger())
	snap := `{"topic":"orderbook.50.BTCUSDT","ts":1000,"type":"snapshot","data":{"s":"BTCUSDT","b":[["100","1"]],"a":[["101","1"]],"u":1}}`
	m, _ := run(t, p, snap)
	if ob, ok := m.(writer.OrderBookBatch); !ok || len(ob.Rows) != 2 {
		t.Fatalf("expected 2 rows from snapshot, got %#v", m)
	}

	gap := `{"topic":"orderbook.50.BTCUSDT","ts":1001,"type":"delta","data":{"s":"BTCUSDT","b":[["99","1"]],"a":[],"u":5}}`
	m, c := run(t, p, gap)
	if m != nil {
		t.Fatalf("expected no writer emission on gap, got %#v", m)
	}
	if c != Reconnect {
		t.Fatalf("expected Reconnect signal, got %q", c)
	}
}

// S5 — trade normalization.
func TestTradeNormalization(t *testing.T) {
	p := New(discardLogger())
	msg := `{"topic":"publicTrade.BTCUSDT","ts":1700000000000,"type":"snapshot","data":[{"T":1700000000000,"s":"BTCUSDT","S":"Buy","v":"0.001","p":"50000.5","L":"PlusTick","i":"t1","BT":false,"RPI":false,"seq":1}]}`
	m, _ := run(t, p, msg)
	tb, ok := m.(writer.TradeBatch)
	if !ok || len(tb.Rows) != 1 {
		t.Fatalf("expected 1 trade row, got %#v", m)
	}
	row := tb.Rows[0]
	if row.Side != "Buy" {
		t.Fatalf("expected side Buy, got %q", row.Side)
	}
	if row.Exchange != "Bybit" {
		t.Fatalf("expected exchange Bybit, got %q", row.Exchange)
	}
	wantTradeTS := time.UnixMilli(1700000000000).UTC()
	if !row.TradeTS.Equal(wantTradeTS) {
		t.Fatalf("expected trade_ts %v, got %v", wantTradeTS, row.TradeTS)
	}
}

func TestTradeSideNormalizationNonBuy(t *testing.T) {
	p := New(discardLogger())
	msg := `{"topic":"publicTrade.BTCUSDT","ts":1,"type":"snapshot","data":[{"T":1,"s":"BTCUSDT","S":"Sell","v":"1","p":"1","L":"","i":"t1","BT":false,"RPI":false,"seq":1}]}`
	m, _ := run(t, p, msg)
	tb := m.(writer.TradeBatch)
	if tb.Rows[0].Side != "Sell" {
		t.Fatalf("expected Sell, got %q", tb.Rows[0].Side)
	}
}

func TestUnknownTopicSkipped(t *testing.T) {
	p := New(discardLogger())
	m, c := run(t, p, `{"topic":"something.else","ts":1,"type":"snapshot","data":{}}`)
	if m != nil || c != "" {
		t.Fatalf("expected no emission for unknown topic, got msg=%v control=%v", m, c)
	}
}

func TestMalformedJSONSkipped(t *testing.T) {
	p := New(discardLogger())
	m, c := run(t, p, `not json at all`)
	if m != nil || c != "" {
		t.Fatalf("expected no emission for malformed JSON, got msg=%v control=%v", m, c)
	}
}

var _ = book.ErrGap // referenced to document the sentinel this test exercises indirectly
