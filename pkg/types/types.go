// Package types defines the wire shapes exchanged with the upstream
// public WebSocket feed and the row shapes persisted downstream. It
// holds plain data — no parsing logic beyond struct tags lives here;
// internal/parser, internal/book, and internal/ticker own the behavior.
package types

import (
	"encoding/json"
	"time"

	"bybit-ingestor/internal/decimal"
)

// Confirmation is the envelope shape sent in reply to a subscribe/
// unsubscribe request: {"success": true, "op": "subscribe", ...}.
type Confirmation struct {
	Success bool   `json:"success"`
	Op      string `json:"op,omitempty"`
	RetMsg  string `json:"ret_msg,omitempty"`
}

// Envelope is the topic message shape carrying trades, orderbook, or
// ticker data. Data is left raw so the parser can discriminate its
// structural shape before decoding it fully.
type Envelope struct {
	Topic string          `json:"topic"`
	TS    int64           `json:"ts"`
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	CS    *uint64         `json:"cs,omitempty"`
	CTS   *uint64         `json:"cts,omitempty"`
}

// TradeWire is one element of a publicTrade payload array.
type TradeWire struct {
	TradeTS       int64  `json:"T"`
	Symbol        string `json:"s"`
	Side          string `json:"S"`
	Volume        string `json:"v"`
	Price         string `json:"p"`
	TickDirection string `json:"L"`
	TradeID       string `json:"i"`
	IsBlockTrade  bool   `json:"BT"`
	IsRPI         bool   `json:"RPI"`
	Seq           uint64 `json:"seq"`
}

// PriceLevelWire is a [price, volume] pair as it appears on the wire.
type PriceLevelWire [2]string

// OrderbookWire is an orderbook.* payload (snapshot or delta).
type OrderbookWire struct {
	Symbol string           `json:"s"`
	Bids   []PriceLevelWire `json:"b"`
	Asks   []PriceLevelWire `json:"a"`
	UpdateID uint64         `json:"u"`
	Seq    *uint64          `json:"seq,omitempty"`
}

// TradeRow is the persisted, immutable row produced for one trade.
// Trades are stateless: each inbound trade message produces N
// independent rows, one per TradeWire element.
type TradeRow struct {
	ServerTS      time.Time
	ReceivedTS    time.Time
	TradeTS       time.Time
	Symbol        string
	TradeID       string
	Side          string
	Price         decimal.Decimal
	Volume        decimal.Decimal
	TickDirection string
	IsBlockTrade  bool
	IsRPI         bool
	Seq           uint64
	Exchange      string
}

// NormalizeSide maps a raw wire side string to exactly "Buy" or "Sell":
// anything other than the literal "Buy" becomes "Sell".
func NormalizeSide(raw string) string {
	if raw == "Buy" {
		return "Buy"
	}
	return "Sell"
}
