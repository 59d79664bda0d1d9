// Package sink adapts the writer stage's typed row batches onto
// ClickHouse, the downstream analytics store. Schema bootstrap is
// idempotent DDL; inserts use clickhouse-go's batch/PrepareBatch/Append/
// Send pattern, one call per table per commit — mirroring the original
// implementation's per-table Inserter.write()+commit() shape.
package sink

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	chdriver "github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	shopdecimal "github.com/shopspring/decimal"

	"bybit-ingestor/internal/book"
	"bybit-ingestor/internal/decimal"
	"bybit-ingestor/internal/ticker"
	"bybit-ingestor/pkg/types"
)

// Config holds ClickHouse connection parameters.
type Config struct {
	Addr     []string
	Database string
	Username string
	Password string
}

// Store is a pooled ClickHouse connection used by all three batchers.
// The underlying driver.Conn is safe for concurrent use; the writer
// stage only ever calls it from its own single goroutine, but nothing
// here depends on that.
type Store struct {
	conn chdriver.Conn
}

// Open dials ClickHouse with async-insert settings matching the
// original implementation (async_insert=1, wait_for_async_insert=0 —
// fire-and-forget, no fsync wait).
func Open(ctx context.Context, cfg Config) (*Store, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addr,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"async_insert":          1,
			"wait_for_async_insert": 0,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sink: open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("sink: ping: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Bootstrap creates the three append-only tables if they do not already
// exist. A failure here is fatal to the process (SchemaBootstrapError).
func (s *Store) Bootstrap(ctx context.Context) error {
	for _, ddl := range []string{ddlTradesRaw, ddlOrderbookRaw, ddlTickerRaw} {
		if err := s.conn.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("sink: bootstrap: %w", err)
		}
	}
	return nil
}

// InsertOrderBookRows appends and sends one batch to orderbook_raw_ml.
func (s *Store) InsertOrderBookRows(ctx context.Context, rows []book.Row) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO orderbook_raw_ml
		(server_timestamp, received_timestamp, client_timestamp, symbol, side, price, volume, update, exchange)`)
	if err != nil {
		return fmt.Errorf("sink: prepare orderbook batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(
			r.ServerTS, r.ReceivedTS, r.ClientTS, r.Symbol, string(r.Side),
			toCHDecimal(r.Price), toCHDecimal(r.Volume), r.UpdateID, "Bybit",
		); err != nil {
			return fmt.Errorf("sink: append orderbook row: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("sink: send orderbook batch: %w", err)
	}
	return nil
}

// InsertTradeRows appends and sends one batch to trades_raw_ml.
func (s *Store) InsertTradeRows(ctx context.Context, rows []types.TradeRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO trades_raw_ml
		(server_timestamp, received_timestamp, trade_timestamp, symbol, trade_id, side, price, volume, tick_direction, is_block_trade, is_rpi, seq, exchange)`)
	if err != nil {
		return fmt.Errorf("sink: prepare trades batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(
			r.ServerTS, r.ReceivedTS, r.TradeTS, r.Symbol, r.TradeID, r.Side,
			toCHDecimal(r.Price), toCHDecimal(r.Volume), r.TickDirection,
			r.IsBlockTrade, r.IsRPI, r.Seq, r.Exchange,
		); err != nil {
			return fmt.Errorf("sink: append trade row: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("sink: send trades batch: %w", err)
	}
	return nil
}

// InsertTickerRows appends and sends one batch to ticker_raw_ml.
func (s *Store) InsertTickerRows(ctx context.Context, rows []ticker.Row) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO ticker_raw_ml (
		server_timestamp, received_timestamp, cross_sequence, symbol, tick_direction,
		price_24h_pcnt, last_price, prev_price_24h, high_price_24h, low_price_24h,
		prev_price_1h, mark_price, index_price, open_interest, open_interest_value,
		turnover_24h, volume_24h, next_funding_time, funding_rate, bid1_price, bid1_size,
		ask1_price, ask1_size, delivery_time, basis_rate, delivery_fee_rate,
		predicted_delivery_price, pre_open_price, pre_qty, cur_pre_listing_phase,
		funding_interval_hour, funding_cap, basis_rate_year, exchange)`)
	if err != nil {
		return fmt.Errorf("sink: prepare ticker batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(
			r.ServerTS, r.ReceivedTS, r.CrossSequence, r.Symbol, r.TickDirection,
			toCHDecimal(r.Price24hPcnt), toCHDecimal(r.LastPrice), toCHDecimal(r.PrevPrice24h),
			toCHDecimal(r.HighPrice24h), toCHDecimal(r.LowPrice24h), toCHDecimal(r.PrevPrice1h),
			toCHDecimal(r.MarkPrice), toCHDecimal(r.IndexPrice), toCHDecimal(r.OpenInterest),
			toCHDecimal(r.OpenInterestValue), toCHDecimal(r.Turnover24h), toCHDecimal(r.Volume24h),
			r.NextFundingTime, toCHDecimal(r.FundingRate), toCHDecimal(r.Bid1Price),
			toCHDecimal(r.Bid1Size), toCHDecimal(r.Ask1Price), toCHDecimal(r.Ask1Size),
			r.DeliveryTime, toCHNullableDecimal(r.BasisRate), r.DeliveryFeeRate,
			toCHNullableDecimal(r.PredictedDeliveryPrice), toCHNullableDecimal(r.PreOpenPrice),
			toCHNullableDecimal(r.PreQty), r.CurPreListingPhase, r.FundingIntervalHour,
			toCHNullableDecimal(r.FundingCap), toCHNullableDecimal(r.BasisRateYear), "Bybit",
		); err != nil {
			return fmt.Errorf("sink: append ticker row: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("sink: send ticker batch: %w", err)
	}
	return nil
}

// toCHDecimal converts our fixed-point decimal to the shopspring decimal
// value clickhouse-go's Decimal128 column binder expects. The conversion
// happens only at this wire boundary; domain logic never touches
// shopspring/decimal.
func toCHDecimal(d decimal.Decimal) shopdecimal.Decimal {
	v, err := shopdecimal.NewFromString(d.String())
	if err != nil {
		// d was already validated by internal/decimal.Parse; a failure
		// here means the canonical string form itself is malformed,
		// which is a programming error, not a runtime condition.
		panic(fmt.Sprintf("sink: invariant violated converting decimal %q: %v", d.String(), err))
	}
	return v
}

func toCHNullableDecimal(d *decimal.Decimal) *shopdecimal.Decimal {
	if d == nil {
		return nil
	}
	v := toCHDecimal(*d)
	return &v
}
