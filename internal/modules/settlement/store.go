// README: Rate store backed by PostgreSQL.
package settlement

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) ListRates(ctx context.Context, kind string) ([]Rate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT category, kind, price_per_kg::text
		FROM rates
		WHERE kind = $1`, kind,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rate
	for rows.Next() {
		var r Rate
		var price string
		if err := rows.Scan(&r.Category, &r.Kind, &price); err != nil {
			return nil, err
		}
		if r.PricePerKg, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Source exposes one rate kind as a RateSource.
func (s *Store) Source(kind string) RateSource {
	return storeSource{store: s, kind: kind}
}

type storeSource struct {
	store *Store
	kind  string
}

func (s storeSource) Rates(ctx context.Context) (RateTable, error) {
	rates, err := s.store.ListRates(ctx, s.kind)
	if err != nil {
		return nil, err
	}
	table := make(RateTable, len(rates))
	for _, r := range rates {
		table[r.Category] = r.PricePerKg
	}
	return table.Normalized(), nil
}
