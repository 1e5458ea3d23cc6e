package settlement

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

var collectionRates = RateTable{
	"Plastic": decimal.NewFromInt(22),
	"metal":   decimal.NewFromInt(40),
	"other":   decimal.NewFromInt(5),
}

func TestComputeAmount(t *testing.T) {
	tests := []struct {
		name      string
		wasteType string
		weight    float64
		want      string
	}{
		{name: "verified 4.5kg plastic at 22/kg", wasteType: "plastic", weight: 4.5, want: "99"},
		{name: "case-insensitive match", wasteType: "PLASTIC", weight: 1, want: "22"},
		{name: "exact category", wasteType: "metal", weight: 2.25, want: "90"},
		{name: "falls back to other", wasteType: "e-waste", weight: 3, want: "15"},
		{name: "rounds to 2 decimals", wasteType: "other", weight: 0.333, want: "1.67"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeAmount(tt.wasteType, tt.weight, collectionRates)
			if err != nil {
				t.Fatalf("ComputeAmount() error = %v", err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ComputeAmount() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestComputeAmountRejectsNonPositiveWeight(t *testing.T) {
	for _, w := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := ComputeAmount("plastic", w, collectionRates); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("weight %v: expected ErrInvalidInput, got %v", w, err)
		}
	}
}

func TestComputeAmountRejectsZeroAmount(t *testing.T) {
	rates := RateTable{"organic": decimal.Zero}
	if _, err := ComputeAmount("organic", 3, rates); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero rate, got %v", err)
	}
	// 0.001kg at 1/kg rounds to 0.00.
	rates = RateTable{"organic": decimal.NewFromInt(1)}
	if _, err := ComputeAmount("organic", 0.001, rates); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for amount rounding to zero, got %v", err)
	}
}

func TestComputeAmountUnknownCategoryWithoutFallback(t *testing.T) {
	rates := RateTable{"metal": decimal.NewFromInt(40)}
	if _, err := ComputeAmount("plastic", 1, rates); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestComputeAmountMonotonicInWeight(t *testing.T) {
	prev := decimal.Zero
	for w := 0.5; w <= 50; w += 0.5 {
		got, err := ComputeAmount("metal", w, collectionRates)
		if err != nil {
			t.Fatalf("weight %v: %v", w, err)
		}
		if got.LessThan(prev) {
			t.Fatalf("amount decreased at weight %v: %s < %s", w, got, prev)
		}
		prev = got
	}
}

type failingSource struct{}

func (failingSource) Rates(context.Context) (RateTable, error) {
	return nil, errors.New("db down")
}

func TestCalculatorUsesInjectedSource(t *testing.T) {
	calc := NewCalculator(Static(collectionRates), "INR")
	m, err := calc.Compute(context.Background(), "plastic", 4.5)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if !m.Amount.Equal(decimal.NewFromInt(99)) || m.Currency != "INR" {
		t.Errorf("Compute() = %s %s, want 99 INR", m.Amount, m.Currency)
	}

	if _, err := NewCalculator(failingSource{}, "INR").Compute(context.Background(), "plastic", 1); err == nil {
		t.Error("expected error from failing rate source")
	}
}

func TestChainServesPrimaryTableWhole(t *testing.T) {
	chain := Chain{
		Primary:  Static(RateTable{"plastic": decimal.NewFromInt(18), "other": decimal.NewFromInt(1)}),
		Fallback: Static(DefaultMarketRates),
	}
	calc := NewCalculator(chain, "INR")

	m, err := calc.Compute(context.Background(), "plastic", 1)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if !m.Amount.Equal(decimal.NewFromInt(18)) {
		t.Errorf("expected primary plastic rate 18, got %s", m.Amount)
	}
	// metal is not configured; the configured "other" rate applies, not the built-in 30.
	m, err = calc.Compute(context.Background(), "metal", 2)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if !m.Amount.Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected metal priced at other=1 (2.00), got %s", m.Amount)
	}
}

func TestChainFallsBackOnlyWhenPrimaryEmpty(t *testing.T) {
	chain := Chain{Primary: Static(RateTable{}), Fallback: Static(DefaultMarketRates)}
	rates, err := chain.Rates(context.Background())
	if err != nil {
		t.Fatalf("Rates() error = %v", err)
	}
	if p, _ := rates.Lookup("plastic"); !p.Equal(decimal.NewFromInt(15)) {
		t.Errorf("expected fallback plastic rate 15, got %s", p)
	}
}

func TestChainReturnsPrimaryError(t *testing.T) {
	calc := NewCalculator(Chain{Primary: failingSource{}, Fallback: Static(DefaultMarketRates)}, "INR")
	if m, err := calc.Compute(context.Background(), "metal", 2); err == nil {
		t.Fatalf("expected rate store error, got amount %s", m.Amount)
	}
}

func TestRatesDifferingOnlyInCaseAreDeterministic(t *testing.T) {
	chain := Chain{
		Primary:  Static(RateTable{"Plastic": decimal.NewFromInt(99), "plastic": decimal.NewFromInt(15)}),
		Fallback: Static(DefaultMarketRates),
	}
	calc := NewCalculator(chain, "INR")
	for i := 0; i < 200; i++ {
		m, err := calc.Compute(context.Background(), " PLASTIC ", 1)
		if err != nil {
			t.Fatalf("Compute() error = %v", err)
		}
		if !m.Amount.Equal(decimal.NewFromInt(15)) {
			t.Fatalf("run %d: expected the lower-case spelling's rate 15, got %s", i, m.Amount)
		}
	}

	// A mixed-case key alone is still found.
	m, err := NewCalculator(Static(RateTable{"E-Waste": decimal.NewFromInt(60)}), "INR").Compute(context.Background(), "e-waste", 1)
	if err != nil || !m.Amount.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected 60 for mixed-case key, got %v (%v)", m.Amount, err)
	}
}

func TestNormalizedLookupFallsBackToOther(t *testing.T) {
	rates := RateTable{"Other": decimal.NewFromInt(7)}.Normalized()
	if p, ok := rates.Lookup("glass"); !ok || !p.Equal(decimal.NewFromInt(7)) {
		t.Errorf("expected other rate 7, got %s (%v)", p, ok)
	}
}
