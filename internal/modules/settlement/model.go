// README: Settlement rate tables and category lookup.
package settlement

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// FallbackCategory is used when a waste type has no rate of its own.
const FallbackCategory = "other"

// Rate kinds stored in the rates table.
const (
	KindCollection = "collection" // admin-configured payout basis at COMPLETED
	KindMarket     = "market"     // recycler purchase basis
)

type Rate struct {
	Category   string
	Kind       string
	PricePerKg decimal.Decimal
}

// RateTable maps a category name to a price per kilogram.
type RateTable map[string]decimal.Decimal

// Lookup reads the category's rate and falls back to "other". Tables handed
// out by a RateSource are already normalized.
func (t RateTable) Lookup(category string) (decimal.Decimal, bool) {
	if price, ok := t[normalizeCategory(category)]; ok {
		return price, true
	}
	price, ok := t[FallbackCategory]
	return price, ok
}

// Normalized returns a copy keyed by lower-cased, trimmed category names.
// Keys are visited in sorted order, so when two names differ only in case the
// lexicographically greatest one (the all lower-case spelling, if present) wins.
func (t RateTable) Normalized() RateTable {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(RateTable, len(t))
	for _, k := range keys {
		out[normalizeCategory(k)] = t[k]
	}
	return out
}

func normalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

// DefaultMarketRates is the built-in purchase price list used when no market
// rates are configured.
var DefaultMarketRates = RateTable{
	"plastic": decimal.NewFromInt(15),
	"metal":   decimal.NewFromInt(30),
	"e-waste": decimal.NewFromInt(50),
	"organic": decimal.NewFromInt(4),
	"other":   decimal.NewFromInt(10),
}
