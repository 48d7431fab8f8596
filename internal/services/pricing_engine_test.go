package services

import (
	"errors"
	"math"
	"testing"

	"github.com/maplecart/api/internal/platform/config"
)

func testPricingConfig() config.PricingConfig {
	return config.PricingConfig{
		Currency:              "USD",
		FreeShippingThreshold: 10000,
		FlatShippingFee:       499,
		TaxRateBasisPoints:    600,
	}
}

func newTestPricingEngine(t *testing.T) *PricingEngine {
	t.Helper()
	engine, err := NewPricingEngine(testPricingConfig())
	if err != nil {
		t.Fatalf("NewPricingEngine: %v", err)
	}
	return engine
}

func TestShippingThresholdBoundary(t *testing.T) {
	engine := newTestPricingEngine(t)

	cases := []struct {
		subtotal int64
		want     int64
	}{
		{subtotal: 0, want: 0},
		{subtotal: 1, want: 499},
		{subtotal: 9999, want: 499},
		{subtotal: 10000, want: 0},
		{subtotal: 250000, want: 0},
	}
	for _, tc := range cases {
		if got := engine.Shipping(tc.subtotal); got != tc.want {
			t.Errorf("Shipping(%d) = %d, want %d", tc.subtotal, got, tc.want)
		}
	}
}

func TestTaxRoundsHalfUp(t *testing.T) {
	engine := newTestPricingEngine(t)

	cases := []struct {
		subtotal int64
		want     int64
	}{
		{subtotal: 0, want: 0},
		{subtotal: 10000, want: 600},
		// 6% of 99 is 5.94, rounds to 6.
		{subtotal: 99, want: 6},
		// 6% of 75 is 4.5, half rounds up to 5.
		{subtotal: 75, want: 5},
		// 6% of 70 is 4.2, rounds down to 4.
		{subtotal: 70, want: 4},
	}
	for _, tc := range cases {
		if got := engine.Tax(tc.subtotal); got != tc.want {
			t.Errorf("Tax(%d) = %d, want %d", tc.subtotal, got, tc.want)
		}
	}
}

func TestTaxRoundsHalfUpAtLargeSubtotals(t *testing.T) {
	engine := newTestPricingEngine(t)

	// 6% of 20_000_000_000_000_075 is 1_200_000_000_000_004.5. The naive
	// subtotal*rate product overflows int64 here, but the rounding must not
	// change to truncation.
	if got := engine.Tax(20_000_000_000_000_075); got != 1_200_000_000_000_005 {
		t.Fatalf("Tax(20000000000000075) = %d, want 1200000000000005", got)
	}
	// 6% of MaxInt64 is 553402322211286548.42, rounds down.
	if got := engine.Tax(math.MaxInt64); got != 553402322211286548 {
		t.Fatalf("Tax(MaxInt64) = %d, want 553402322211286548", got)
	}
}

func TestQuoteBelowThreshold(t *testing.T) {
	engine := newTestPricingEngine(t)

	totals, err := engine.Quote(5000, 0)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if totals.Subtotal != 5000 || totals.Shipping != 499 || totals.Tax != 300 {
		t.Fatalf("unexpected totals %+v", totals)
	}
	if totals.Total != 5000+499+300 {
		t.Fatalf("total must equal subtotal+shipping+tax, got %d", totals.Total)
	}
}

func TestQuoteAtThreshold(t *testing.T) {
	engine := newTestPricingEngine(t)

	totals, err := engine.Quote(10000, 0)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if totals.Shipping != 0 {
		t.Fatalf("expected free shipping at threshold, got %d", totals.Shipping)
	}
	if totals.Tax != 600 || totals.Total != 10600 {
		t.Fatalf("unexpected totals %+v", totals)
	}
}

func TestQuoteDiscountAffectsShippingAndTax(t *testing.T) {
	engine := newTestPricingEngine(t)

	// 12000 gross, 3000 discount: the 9000 net falls below the threshold.
	totals, err := engine.Quote(12000, 3000)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if totals.Discount != 3000 {
		t.Fatalf("unexpected discount %d", totals.Discount)
	}
	if totals.Shipping != 499 {
		t.Fatalf("expected flat fee on net subtotal, got %d", totals.Shipping)
	}
	if totals.Tax != 540 {
		t.Fatalf("expected tax on net subtotal, got %d", totals.Tax)
	}
	if totals.Total != 9000+499+540 {
		t.Fatalf("unexpected total %d", totals.Total)
	}
}

func TestQuoteClampsDiscountToSubtotal(t *testing.T) {
	engine := newTestPricingEngine(t)

	totals, err := engine.Quote(1000, 5000)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if totals.Discount != 1000 || totals.Total != 0 {
		t.Fatalf("expected fully discounted order, got %+v", totals)
	}
}

func TestQuoteRejectsNegativeInput(t *testing.T) {
	engine := newTestPricingEngine(t)

	if _, err := engine.Quote(-1, 0); !errors.Is(err, ErrPricingInvalidInput) {
		t.Fatalf("expected ErrPricingInvalidInput, got %v", err)
	}
	if _, err := engine.Quote(100, -1); !errors.Is(err, ErrPricingInvalidInput) {
		t.Fatalf("expected ErrPricingInvalidInput, got %v", err)
	}
}

func TestNewPricingEngineValidation(t *testing.T) {
	bad := testPricingConfig()
	bad.TaxRateBasisPoints = 10001
	if _, err := NewPricingEngine(bad); err == nil {
		t.Fatal("expected error for out-of-range tax rate")
	}

	bad = testPricingConfig()
	bad.FlatShippingFee = -1
	if _, err := NewPricingEngine(bad); err == nil {
		t.Fatal("expected error for negative shipping fee")
	}
}

func TestZeroTaxRate(t *testing.T) {
	cfg := testPricingConfig()
	cfg.TaxRateBasisPoints = 0
	engine, err := NewPricingEngine(cfg)
	if err != nil {
		t.Fatalf("NewPricingEngine: %v", err)
	}
	if got := engine.Tax(123456); got != 0 {
		t.Fatalf("expected zero tax, got %d", got)
	}
}
