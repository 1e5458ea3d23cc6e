// README: Transaction ledger backed by PostgreSQL; settlement and payouts commit atomically with the pickup.
package marketplace

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"wastelink/internal/modules/pickup"
	"wastelink/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Settle records a purchase and moves the pickup to SETTLED in one database
// transaction. It reports false, with nothing written, when the pickup moved
// on since g was read.
func (s *Store) Settle(ctx context.Context, t *Transaction, g SettleGuard) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE pickups
		SET status = $1,
		    status_version = status_version + 1,
		    updated_at = $2
		WHERE id = $3 AND status = $4 AND status_version = $5`,
		string(pickup.StatusSettled),
		t.CreatedAt,
		string(t.PickupID),
		string(g.From),
		g.Version,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	if err := insertTransaction(ctx, tx, t); err != nil {
		return false, err
	}
	actorID := string(g.Actor.ID)
	if _, err := tx.Exec(ctx, `
		INSERT INTO pickup_events (
			pickup_id, from_status, to_status, actor_role, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(t.PickupID),
		string(g.From),
		string(pickup.StatusSettled),
		string(g.Actor.Role),
		&actorID,
		t.CreatedAt,
	); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Payout records a payout and flips the pickup's paid flag. It reports false
// when the pickup was already paid.
func (s *Store) Payout(ctx context.Context, t *Transaction) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE pickups
		SET paid = TRUE, updated_at = $1
		WHERE id = $2 AND paid = FALSE`,
		t.CreatedAt,
		string(t.PickupID),
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	if err := insertTransaction(ctx, tx, t); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) List(ctx context.Context, f TxFilter) ([]Transaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, pickup_id, citizen_id, collector_id, recycler_id,
		       amount::text, currency, type, status, created_at
		FROM transactions
		WHERE ($1::text IS NULL OR citizen_id = $1)
		  AND ($2::text IS NULL OR collector_id = $2)
		  AND ($3::text IS NULL OR recycler_id = $3)
		ORDER BY created_at DESC`,
		idPtr(f.CitizenID),
		idPtr(f.CollectorID),
		idPtr(f.RecyclerID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var (
			t           Transaction
			collectorID *string
			recyclerID  *string
			amount      string
		)
		if err := rows.Scan(
			&t.ID, &t.PickupID, &t.CitizenID, &collectorID, &recyclerID,
			&amount, &t.Amount.Currency, &t.Type, &t.Status, &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		if t.Amount.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		t.CollectorID = toID(collectorID)
		t.RecyclerID = toID(recyclerID)
		out = append(out, t)
	}
	return out, rows.Err()
}

func insertTransaction(ctx context.Context, tx pgx.Tx, t *Transaction) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO transactions (
			id, pickup_id, citizen_id, collector_id, recycler_id,
			amount, currency, type, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10)`,
		string(t.ID),
		string(t.PickupID),
		string(t.CitizenID),
		idPtr(t.CollectorID),
		idPtr(t.RecyclerID),
		t.Amount.Amount.String(),
		t.Amount.Currency,
		string(t.Type),
		string(t.Status),
		t.CreatedAt,
	)
	return err
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toID(v *string) *types.ID {
	if v == nil {
		return nil
	}
	id := types.ID(*v)
	return &id
}

