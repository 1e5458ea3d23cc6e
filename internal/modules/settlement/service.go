// README: Settlement calculator shared by the COMPLETED transition and the marketplace purchase.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"wastelink/internal/types"
)

var ErrInvalidInput = errors.New("invalid settlement input")

// RateSource supplies the authoritative rate table for one context
// (collection payouts or market purchases).
type RateSource interface {
	Rates(ctx context.Context) (RateTable, error)
}

// ComputeAmount returns verifiedWeight x rate(wasteType), rounded to 2 decimals.
func ComputeAmount(wasteType string, verifiedWeight float64, rates RateTable) (decimal.Decimal, error) {
	if math.IsNaN(verifiedWeight) || math.IsInf(verifiedWeight, 0) || verifiedWeight <= 0 {
		return decimal.Zero, fmt.Errorf("%w: verified weight must be positive", ErrInvalidInput)
	}
	rate, ok := rates.Normalized().Lookup(wasteType)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no rate configured for %q", ErrInvalidInput, wasteType)
	}
	amount := rate.Mul(decimal.NewFromFloat(verifiedWeight)).Round(2)
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	return amount, nil
}

type Calculator struct {
	source   RateSource
	currency string
}

func NewCalculator(source RateSource, currency string) *Calculator {
	return &Calculator{source: source, currency: currency}
}

func (c *Calculator) Compute(ctx context.Context, wasteType string, verifiedWeight float64) (types.Money, error) {
	rates, err := c.source.Rates(ctx)
	if err != nil {
		return types.Money{}, fmt.Errorf("load rates: %w", err)
	}
	amount, err := ComputeAmount(wasteType, verifiedWeight, rates)
	if err != nil {
		return types.Money{}, err
	}
	return types.NewMoney(amount, c.currency), nil
}

// Static serves a fixed table.
type Static RateTable

func (s Static) Rates(context.Context) (RateTable, error) {
	return RateTable(s).Normalized(), nil
}

// Chain serves the primary table as a whole and only falls back when the
// primary has no rates at all. Primary errors are returned, never papered over
// with fallback prices.
type Chain struct {
	Primary  RateSource
	Fallback RateSource
}

func (c Chain) Rates(ctx context.Context) (RateTable, error) {
	primary, err := c.Primary.Rates(ctx)
	if err != nil {
		return nil, fmt.Errorf("primary rates: %w", err)
	}
	if len(primary) > 0 {
		return primary.Normalized(), nil
	}
	base, err := c.Fallback.Rates(ctx)
	if err != nil {
		return nil, err
	}
	return base.Normalized(), nil
}
