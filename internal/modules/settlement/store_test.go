package settlement

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"wastelink/internal/testutil"
)

func TestStoreRejectsCaseVariantCategories(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	_, err := db.Exec(ctx, `INSERT INTO rates (category, kind, price_per_kg) VALUES ('Plastic', $1, 99)`, KindMarket)
	if err == nil {
		t.Cleanup(func() { _, _ = db.Exec(ctx, `DELETE FROM rates WHERE category = 'Plastic'`) })
		t.Fatal("expected unique violation for a case variant of a seeded category")
	}

	m, err := NewCalculator(NewStore(db).Source(KindMarket), "INR").Compute(ctx, "PLASTIC", 2)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if !m.Amount.Equal(decimal.NewFromInt(30)) {
		t.Errorf("expected 2kg at seeded 15/kg = 30, got %s", m.Amount)
	}
}
