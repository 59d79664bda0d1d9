package ticker

import (
	"testing"
	"time"

	"bybit-ingestor/internal/decimal"
)

func strPtr(s string) *string { return &s }

// S4 — snapshot sets lastPrice and markPrice; a sparse delta carrying
// only lastPrice must leave markPrice untouched.
func TestSnapshotThenSparseDelta(t *testing.T) {
	c := NewCache()
	now := time.Now()

	_, err := c.ApplySnapshot("BTCUSDT", Fields{
		LastPrice: strPtr("100"),
		MarkPrice: strPtr("101"),
	}, now, now, 7)
	if err != nil {
		t.Fatalf("unexpected snapshot error: %v", err)
	}

	row, err := c.ApplyDelta("BTCUSDT", Fields{
		LastPrice: strPtr("102"),
	}, now.Add(time.Second), now.Add(time.Second), 8)
	if err != nil {
		t.Fatalf("unexpected delta error: %v", err)
	}

	if !row.LastPrice.Equal(decimal.MustParse("102")) {
		t.Fatalf("expected lastPrice 102, got %s", row.LastPrice.String())
	}
	if !row.MarkPrice.Equal(decimal.MustParse("101")) {
		t.Fatalf("expected markPrice to retain 101, got %s", row.MarkPrice.String())
	}
	if row.CrossSequence != 8 {
		t.Fatalf("expected cross sequence 8, got %d", row.CrossSequence)
	}
}

func TestDeltaWithoutSnapshotFails(t *testing.T) {
	c := NewCache()
	now := time.Now()
	_, err := c.ApplyDelta("ETHUSDT", Fields{LastPrice: strPtr("1")}, now, now, 0)
	if err != ErrMissingSnapshot {
		t.Fatalf("expected ErrMissingSnapshot, got %v", err)
	}
}

func TestOptionalFieldsNeverClearOnAbsence(t *testing.T) {
	c := NewCache()
	now := time.Now()
	_, err := c.ApplySnapshot("BTCUSDT", Fields{
		BasisRate:          strPtr("0.01"),
		CurPreListingPhase: strPtr("phase1"),
	}, now, now, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	row, err := c.ApplyDelta("BTCUSDT", Fields{}, now, now, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.BasisRate == nil || !row.BasisRate.Equal(decimal.MustParse("0.01")) {
		t.Fatalf("expected basisRate to retain 0.01, got %v", row.BasisRate)
	}
	if row.CurPreListingPhase == nil || *row.CurPreListingPhase != "phase1" {
		t.Fatalf("expected curPreListingPhase to retain phase1, got %v", row.CurPreListingPhase)
	}
}

func TestTimestampFieldKinds(t *testing.T) {
	c := NewCache()
	now := time.Now()
	_, err := c.ApplySnapshot("BTCUSDT", Fields{
		NextFundingTime: strPtr("1700000000000"),
		DeliveryTime:    strPtr("2023-11-14T22:13:20Z"),
		DeliveryFeeRate: strPtr("-5"),
	}, now, now, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st, _ := c.Get("BTCUSDT")
	if !st.NextFundingTime.Equal(time.UnixMilli(1700000000000).UTC()) {
		t.Fatalf("unexpected nextFundingTime: %v", st.NextFundingTime)
	}
	if st.DeliveryTime == nil || st.DeliveryTime.Format(time.RFC3339) != "2023-11-14T22:13:20Z" {
		t.Fatalf("unexpected deliveryTime: %v", st.DeliveryTime)
	}
	if st.DeliveryFeeRate == nil || *st.DeliveryFeeRate != -5 {
		t.Fatalf("unexpected deliveryFeeRate: %v", st.DeliveryFeeRate)
	}
}

func TestMalformedDecimalRejected(t *testing.T) {
	c := NewCache()
	now := time.Now()
	_, err := c.ApplySnapshot("BTCUSDT", Fields{LastPrice: strPtr("not-a-number")}, now, now, 0)
	if err == nil {
		t.Fatalf("expected error parsing malformed lastPrice")
	}
}
