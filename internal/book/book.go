// Package book implements the per-symbol order book state machine:
// snapshot replacement, delta application with gap detection, and row
// emission for the sink. The cache is owned exclusively by the parser
// task (see internal/parser) — no locking, single writer, no external
// readers.
package book

import (
	"errors"
	"time"

	"bybit-ingestor/internal/decimal"
)

// ErrGap is returned by ApplyDelta when the incoming update id does not
// immediately follow the cached update id, or when a delta arrives for a
// symbol with no prior snapshot. Neither case mutates the cache.
var ErrGap = errors.New("book: update id gap detected")

// Side is Bid or Ask, used only for row emission.
type Side string

const (
	SideBid Side = "Bid"
	SideAsk Side = "Ask"
)

// BookSide maps price to volume. Iteration order carries no meaning —
// row emission re-walks the whole map on every update and the sink's
// ORDER BY performs the final ordering.
type BookSide map[decimal.Decimal]decimal.Decimal

// Level is a single (price, volume) pair taken off the wire.
type Level struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
}

// State is the reconstructed book for one symbol.
type State struct {
	Symbol     string
	Bid        BookSide
	Ask        BookSide
	UpdateID   uint64
	ServerTS   time.Time
	ReceivedTS time.Time
	ClientTS   time.Time
}

func newState(symbol string, updateID uint64, serverTS, receivedTS, clientTS time.Time) *State {
	return &State{
		Symbol:     symbol,
		Bid:        make(BookSide),
		Ask:        make(BookSide),
		UpdateID:   updateID,
		ServerTS:   serverTS,
		ReceivedTS: receivedTS,
		ClientTS:   clientTS,
	}
}

// Row is the persisted denormalization of a State: one row per
// (side, price, volume) tuple, stamped with the state's timestamps.
type Row struct {
	ServerTS   time.Time
	ReceivedTS time.Time
	ClientTS   time.Time
	Symbol     string
	Side       Side
	Price      decimal.Decimal
	Volume     decimal.Decimal
	UpdateID   uint64
}

// Cache maps symbol to its current State. A symbol is present in the
// cache iff a snapshot has been received since the last reset. Single
// writer: the parser task.
type Cache struct {
	symbols map[string]*State
}

// NewCache creates an empty book cache.
func NewCache() *Cache {
	return &Cache{symbols: make(map[string]*State)}
}

// ApplySnapshot replaces the state for symbol wholesale. Volume-0 entries
// in bids/asks are dropped, never stored. Returns the freshly emitted
// rows for the entire book.
func (c *Cache) ApplySnapshot(symbol string, updateID uint64, bids, asks []Level, serverTS, receivedTS, clientTS time.Time) []Row {
	st := newState(symbol, updateID, serverTS, receivedTS, clientTS)
	for _, lvl := range bids {
		if lvl.Volume.IsZero() {
			continue
		}
		st.Bid[lvl.Price] = lvl.Volume
	}
	for _, lvl := range asks {
		if lvl.Volume.IsZero() {
			continue
		}
		st.Ask[lvl.Price] = lvl.Volume
	}
	c.symbols[symbol] = st
	return emitRows(st)
}

// ApplyDelta merges bids/asks onto the cached state for symbol.
//
// Gap check: the incoming update id must equal cached.UpdateID+1, and the
// symbol must already be present (a delta before any snapshot is itself a
// gap). Either failure returns ErrGap, emits no rows, and leaves the
// cache untouched.
//
// A volume-0 entry removes that price from the relevant side; a missing
// price being "removed" again is tolerated, not an error.
func (c *Cache) ApplyDelta(symbol string, updateID uint64, bids, asks []Level, serverTS, receivedTS, clientTS time.Time) ([]Row, error) {
	st, ok := c.symbols[symbol]
	if !ok {
		return nil, ErrGap
	}
	if updateID != st.UpdateID+1 {
		return nil, ErrGap
	}

	for _, lvl := range bids {
		applyLevel(st.Bid, lvl)
	}
	for _, lvl := range asks {
		applyLevel(st.Ask, lvl)
	}

	st.UpdateID = updateID
	st.ServerTS = serverTS
	st.ReceivedTS = receivedTS
	st.ClientTS = clientTS

	return emitRows(st), nil
}

func applyLevel(side BookSide, lvl Level) {
	if lvl.Volume.IsZero() {
		delete(side, lvl.Price)
		return
	}
	side[lvl.Price] = lvl.Volume
}

// emitRows re-walks the whole cached book, producing a row for every
// entry currently present. This is intentional: the entire book is
// re-emitted on every successful transition.
func emitRows(st *State) []Row {
	rows := make([]Row, 0, len(st.Bid)+len(st.Ask))
	for price, volume := range st.Bid {
		rows = append(rows, Row{
			ServerTS: st.ServerTS, ReceivedTS: st.ReceivedTS, ClientTS: st.ClientTS,
			Symbol: st.Symbol, Side: SideBid, Price: price, Volume: volume, UpdateID: st.UpdateID,
		})
	}
	for price, volume := range st.Ask {
		rows = append(rows, Row{
			ServerTS: st.ServerTS, ReceivedTS: st.ReceivedTS, ClientTS: st.ClientTS,
			Symbol: st.Symbol, Side: SideAsk, Price: price, Volume: volume, UpdateID: st.UpdateID,
		})
	}
	return rows
}

// Get returns the cached state for symbol, for tests and diagnostics.
func (c *Cache) Get(symbol string) (*State, bool) {
	st, ok := c.symbols[symbol]
	return st, ok
}
