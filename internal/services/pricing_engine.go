package services

import (
	"errors"
	"math"

	domain "github.com/maplecart/api/internal/domain"
	"github.com/maplecart/api/internal/platform/config"
)

// ErrPricingInvalidInput signals a negative subtotal or discount.
var ErrPricingInvalidInput = errors.New("pricing engine: invalid input")

const taxBasisPointsScale = 10000

// PricingEngine derives shipping, tax and order totals from the consolidated
// pricing configuration. All amounts are minor units.
type PricingEngine struct {
	cfg config.PricingConfig
}

// NewPricingEngine constructs a PricingEngine from the pricing configuration.
func NewPricingEngine(cfg config.PricingConfig) (*PricingEngine, error) {
	if cfg.FreeShippingThreshold < 0 || cfg.FlatShippingFee < 0 {
		return nil, errors.New("pricing engine: shipping amounts must not be negative")
	}
	if cfg.TaxRateBasisPoints < 0 || cfg.TaxRateBasisPoints > taxBasisPointsScale {
		return nil, errors.New("pricing engine: tax rate must be between 0 and 10000 basis points")
	}
	return &PricingEngine{cfg: cfg}, nil
}

// Currency returns the configured pricing currency.
func (e *PricingEngine) Currency() string {
	return e.cfg.Currency
}

// Shipping returns the shipping cost for the given subtotal: zero at or above
// the free-shipping threshold, the flat fee below it. An empty cart ships free.
func (e *PricingEngine) Shipping(subtotal int64) int64 {
	if subtotal <= 0 {
		return 0
	}
	if subtotal >= e.cfg.FreeShippingThreshold {
		return 0
	}
	return e.cfg.FlatShippingFee
}

// Tax returns the tax on the given subtotal, rounded half-up to the nearest
// minor unit.
func (e *PricingEngine) Tax(subtotal int64) int64 {
	bps := e.cfg.TaxRateBasisPoints
	if subtotal <= 0 || bps == 0 {
		return 0
	}
	// Split the subtotal so (subtotal*bps + 5000) / 10000 stays exact at any
	// magnitude: whole*10000*bps is divisible by 10000, and rem*bps fits in
	// an int64 because both factors are below the scale.
	whole, rem := subtotal/taxBasisPointsScale, subtotal%taxBasisPointsScale
	frac := (rem*bps + taxBasisPointsScale/2) / taxBasisPointsScale
	if whole > (math.MaxInt64-frac)/bps {
		return math.MaxInt64
	}
	return whole*bps + frac
}

// Quote derives the full totals breakdown. Shipping and tax are computed on
// the net subtotal after the discount is applied.
func (e *PricingEngine) Quote(subtotal, discount int64) (domain.OrderTotals, error) {
	if subtotal < 0 || discount < 0 {
		return domain.OrderTotals{}, ErrPricingInvalidInput
	}
	if discount > subtotal {
		discount = subtotal
	}

	net := subtotal - discount
	shipping := e.Shipping(net)
	tax := e.Tax(net)

	total := saturatingAdd(net, shipping)
	total = saturatingAdd(total, tax)

	return domain.OrderTotals{
		Subtotal: subtotal,
		Discount: discount,
		Shipping: shipping,
		Tax:      tax,
		Total:    total,
	}, nil
}

func saturatingAdd(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
