// Package ticker implements the per-symbol ticker state machine: a
// sparse delta merged onto a cached snapshot, with per-field merge rules
// driven by field kind (required/optional decimal, string, timestamp).
// The cache is owned exclusively by the parser task, same as
// internal/book.
package ticker

import (
	"errors"
	"strconv"
	"time"

	"bybit-ingestor/internal/decimal"
)

// ErrMissingSnapshot is returned by ApplyDelta when no snapshot has been
// cached yet for the symbol.
var ErrMissingSnapshot = errors.New("ticker: delta received before snapshot")

// ErrUnknownType names the error kind for a ticker envelope whose type
// field is neither "snapshot" nor "delta". Nothing in this package returns
// it; internal/parser logs and skips such messages directly.
var ErrUnknownType = errors.New("ticker: unknown type")

// Fields is the wire payload for both snapshot and delta messages. Every
// field is optional: absence (nil) or an empty string means "leave
// unchanged" for every field kind except where noted.
type Fields struct {
	Symbol                 *string `json:"symbol"`
	TickDirection          *string `json:"tickDirection"`
	Price24hPcnt           *string `json:"price24hPcnt"`
	LastPrice              *string `json:"lastPrice"`
	PrevPrice24h           *string `json:"prevPrice24h"`
	HighPrice24h           *string `json:"highPrice24h"`
	LowPrice24h            *string `json:"lowPrice24h"`
	PrevPrice1h            *string `json:"prevPrice1h"`
	MarkPrice              *string `json:"markPrice"`
	IndexPrice             *string `json:"indexPrice"`
	OpenInterest           *string `json:"openInterest"`
	OpenInterestValue      *string `json:"openInterestValue"`
	Turnover24h            *string `json:"turnover24h"`
	Volume24h              *string `json:"volume24h"`
	NextFundingTime        *string `json:"nextFundingTime"`
	FundingRate            *string `json:"fundingRate"`
	Bid1Price              *string `json:"bid1Price"`
	Bid1Size               *string `json:"bid1Size"`
	Ask1Price              *string `json:"ask1Price"`
	Ask1Size               *string `json:"ask1Size"`
	DeliveryTime           *string `json:"deliveryTime"`
	BasisRate              *string `json:"basisRate"`
	DeliveryFeeRate        *string `json:"deliveryFeeRate"`
	PredictedDeliveryPrice *string `json:"predictedDeliveryPrice"`
	PreOpenPrice           *string `json:"preOpenPrice"`
	PreQty                 *string `json:"preQty"`
	CurPreListingPhase     *string `json:"curPreListingPhase"`
	FundingIntervalHour    *string `json:"fundingIntervalHour"`
	FundingCap             *string `json:"fundingCap"`
	BasisRateYear          *string `json:"basisRateYear"`
}

// State is the cached, merged ticker for one symbol.
type State struct {
	Symbol        string
	ServerTS      time.Time
	ReceivedTS    time.Time
	CrossSequence uint64

	TickDirection      string
	Price24hPcnt       decimal.Decimal
	LastPrice          decimal.Decimal
	PrevPrice24h       decimal.Decimal
	HighPrice24h       decimal.Decimal
	LowPrice24h        decimal.Decimal
	PrevPrice1h        decimal.Decimal
	MarkPrice          decimal.Decimal
	IndexPrice         decimal.Decimal
	OpenInterest       decimal.Decimal
	OpenInterestValue  decimal.Decimal
	Turnover24h        decimal.Decimal
	Volume24h          decimal.Decimal
	NextFundingTime    time.Time
	FundingRate        decimal.Decimal
	Bid1Price          decimal.Decimal
	Bid1Size           decimal.Decimal
	Ask1Price          decimal.Decimal
	Ask1Size           decimal.Decimal

	DeliveryTime           *time.Time
	BasisRate              *decimal.Decimal
	DeliveryFeeRate        *int64
	PredictedDeliveryPrice *decimal.Decimal
	PreOpenPrice           *decimal.Decimal
	PreQty                 *decimal.Decimal
	CurPreListingPhase     *string
	FundingIntervalHour    *string
	FundingCap             *decimal.Decimal
	BasisRateYear          *decimal.Decimal
}

// Row is the persisted form of State: a point-in-time snapshot emitted
// after one successful snapshot or delta application.
type Row = State

// Cache maps symbol to its current ticker State. Single writer: the
// parser task.
type Cache struct {
	symbols map[string]*State
}

// NewCache creates an empty ticker cache.
func NewCache() *Cache {
	return &Cache{symbols: make(map[string]*State)}
}

// ApplySnapshot builds a zero-initialized ticker stamped with envelope
// metadata, applies f as if it were a delta against that fresh state,
// and replaces the cached entry. A Fields decimal parse error fails the
// whole snapshot (DecimalParse bubbles to the parser).
func (c *Cache) ApplySnapshot(symbol string, f Fields, serverTS, receivedTS time.Time, crossSequence uint64) (Row, error) {
	st := &State{Symbol: symbol}
	st.ServerTS = serverTS
	st.ReceivedTS = receivedTS
	st.CrossSequence = crossSequence

	if err := applyFields(st, f); err != nil {
		return Row{}, err
	}
	c.symbols[symbol] = st
	return *st, nil
}

// ApplyDelta requires a cached entry for symbol — otherwise
// ErrMissingSnapshot. It stamps fresh envelope metadata, merges f onto
// the cached state in place, and returns the merged state as a row.
func (c *Cache) ApplyDelta(symbol string, f Fields, serverTS, receivedTS time.Time, crossSequence uint64) (Row, error) {
	st, ok := c.symbols[symbol]
	if !ok {
		return Row{}, ErrMissingSnapshot
	}

	st.ServerTS = serverTS
	st.ReceivedTS = receivedTS
	st.CrossSequence = crossSequence

	if err := applyFields(st, f); err != nil {
		return Row{}, err
	}
	return *st, nil
}

// Get returns the cached state for symbol, for tests and diagnostics.
func (c *Cache) Get(symbol string) (*State, bool) {
	st, ok := c.symbols[symbol]
	return st, ok
}

func applyFields(st *State, f Fields) error {
	if err := applyRequiredString(&st.TickDirection, f.TickDirection); err != nil {
		return err
	}

	decimalFields := []struct {
		dst *decimal.Decimal
		raw *string
	}{
		{&st.Price24hPcnt, f.Price24hPcnt},
		{&st.LastPrice, f.LastPrice},
		{&st.PrevPrice24h, f.PrevPrice24h},
		{&st.HighPrice24h, f.HighPrice24h},
		{&st.LowPrice24h, f.LowPrice24h},
		{&st.PrevPrice1h, f.PrevPrice1h},
		{&st.MarkPrice, f.MarkPrice},
		{&st.IndexPrice, f.IndexPrice},
		{&st.OpenInterest, f.OpenInterest},
		{&st.OpenInterestValue, f.OpenInterestValue},
		{&st.Turnover24h, f.Turnover24h},
		{&st.Volume24h, f.Volume24h},
		{&st.FundingRate, f.FundingRate},
		{&st.Bid1Price, f.Bid1Price},
		{&st.Bid1Size, f.Bid1Size},
		{&st.Ask1Price, f.Ask1Price},
		{&st.Ask1Size, f.Ask1Size},
	}
	for _, df := range decimalFields {
		if err := applyRequiredDecimal(df.dst, df.raw); err != nil {
			return err
		}
	}

	optionalDecimalFields := []struct {
		dst **decimal.Decimal
		raw *string
	}{
		{&st.BasisRate, f.BasisRate},
		{&st.PredictedDeliveryPrice, f.PredictedDeliveryPrice},
		{&st.PreOpenPrice, f.PreOpenPrice},
		{&st.PreQty, f.PreQty},
		{&st.FundingCap, f.FundingCap},
		{&st.BasisRateYear, f.BasisRateYear},
	}
	for _, df := range optionalDecimalFields {
		if err := applyOptionalDecimal(df.dst, df.raw); err != nil {
			return err
		}
	}

	applyOptionalString(&st.CurPreListingPhase, f.CurPreListingPhase)
	applyOptionalString(&st.FundingIntervalHour, f.FundingIntervalHour)

	if err := applyMillisTimestamp(&st.NextFundingTime, f.NextFundingTime); err != nil {
		return err
	}
	if err := applyRFC3339(&st.DeliveryTime, f.DeliveryTime); err != nil {
		return err
	}
	if err := applySignedInt(&st.DeliveryFeeRate, f.DeliveryFeeRate); err != nil {
		return err
	}

	return nil
}

func applyRequiredDecimal(dst *decimal.Decimal, raw *string) error {
	if raw == nil || *raw == "" {
		return nil
	}
	d, err := decimal.Parse(*raw)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func applyOptionalDecimal(dst **decimal.Decimal, raw *string) error {
	if raw == nil || *raw == "" {
		return nil
	}
	d, err := decimal.Parse(*raw)
	if err != nil {
		return err
	}
	*dst = &d
	return nil
}

func applyRequiredString(dst *string, raw *string) error {
	if raw == nil || *raw == "" {
		return nil
	}
	*dst = *raw
	return nil
}

func applyOptionalString(dst **string, raw *string) {
	if raw == nil || *raw == "" {
		return
	}
	v := *raw
	*dst = &v
}

func applyMillisTimestamp(dst *time.Time, raw *string) error {
	if raw == nil || *raw == "" {
		return nil
	}
	ms, err := strconv.ParseInt(*raw, 10, 64)
	if err != nil {
		return err
	}
	*dst = time.UnixMilli(ms).UTC()
	return nil
}

func applyRFC3339(dst **time.Time, raw *string) error {
	if raw == nil || *raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return err
	}
	*dst = &t
	return nil
}

func applySignedInt(dst **int64, raw *string) error {
	if raw == nil || *raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(*raw, 10, 64)
	if err != nil {
		return err
	}
	*dst = &v
	return nil
}
