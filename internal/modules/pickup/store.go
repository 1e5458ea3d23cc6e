// README: Pickup store backed by PostgreSQL.
package pickup

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"wastelink/internal/types"
)

// ListFilter narrows List. Zero value lists everything.
type ListFilter struct {
	CitizenID *types.ID
	Statuses  []Status
	// OrCollector also includes pickups assigned to this collector.
	OrCollector *types.ID
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const pickupColumns = `
	id, citizen_id, collector_id, status, status_version,
	waste_type, weight, lat, lng, address, images, video,
	verified_weight, final_amount::text, currency, payment_mode, paid,
	created_at, updated_at, completed_at`

func (s *Store) Create(ctx context.Context, p *Pickup) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO pickups (
			id, citizen_id, status, status_version,
			waste_type, weight, lat, lng, address, images, video,
			paid, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14
		)`,
		string(p.ID),
		string(p.CitizenID),
		string(p.Status),
		p.StatusVersion,
		string(p.WasteType),
		p.Weight,
		p.Location.Lat, p.Location.Lng, p.Location.Address,
		p.Images,
		p.Video,
		p.Paid,
		p.CreatedAt,
		p.UpdatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Pickup, error) {
	row := s.db.QueryRow(ctx, `SELECT `+pickupColumns+` FROM pickups WHERE id = $1`, string(id))
	p, err := scanPickup(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (s *Store) List(ctx context.Context, f ListFilter) ([]Pickup, error) {
	var statuses []string
	for _, st := range f.Statuses {
		statuses = append(statuses, string(st))
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+pickupColumns+`
		FROM pickups
		WHERE ($1::text IS NULL OR citizen_id = $1)
		  AND (
		        cardinality($2::text[]) = 0
		     OR status = ANY($2::text[])
		     OR ($3::text IS NOT NULL AND collector_id = $3)
		  )
		ORDER BY created_at DESC`,
		idPtr(f.CitizenID),
		statuses,
		idPtr(f.OrCollector),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Pickup
	for rows.Next() {
		p, err := scanPickup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// UpdateStatus applies c only if the stored status and version still match.
func (s *Store) UpdateStatus(ctx context.Context, c StatusChange) (bool, error) {
	var (
		verifiedWeight *float64
		finalAmount    *string
		currency       *string
		paymentMode    *string
		paid           *bool
	)
	if c.Completion != nil {
		w := c.Completion.VerifiedWeight
		amount := c.Completion.FinalAmount.Amount.String()
		cur := c.Completion.FinalAmount.Currency
		mode := string(c.Completion.PaymentMode)
		isPaid := c.Completion.Paid
		verifiedWeight, finalAmount, currency, paymentMode, paid = &w, &amount, &cur, &mode, &isPaid
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE pickups
		SET status = $1,
		    status_version = status_version + 1,
		    collector_id = CASE WHEN $2 THEN NULL ELSE COALESCE($3, collector_id) END,
		    verified_weight = COALESCE($4, verified_weight),
		    final_amount = COALESCE($5::numeric, final_amount),
		    currency = COALESCE($6, currency),
		    payment_mode = COALESCE($7, payment_mode),
		    paid = COALESCE($8, paid),
		    completed_at = CASE WHEN $1 = 'completed' THEN $9 ELSE completed_at END,
		    updated_at = $9
		WHERE id = $10 AND status = $11 AND status_version = $12`,
		string(c.To),
		c.Unassign,
		idPtr(c.Collector),
		verifiedWeight,
		finalAmount,
		currency,
		paymentMode,
		paid,
		c.At,
		string(c.ID),
		string(c.From),
		c.Version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO pickup_events (
			pickup_id, from_status, to_status, actor_role, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.PickupID),
		string(e.FromStatus),
		string(e.ToStatus),
		string(e.ActorRole),
		idPtr(e.ActorID),
		e.CreatedAt,
	)
	return err
}

func (s *Store) Events(ctx context.Context, pickupID types.ID) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, pickup_id, from_status, to_status, actor_role, actor_id, created_at
		FROM pickup_events
		WHERE pickup_id = $1
		ORDER BY id`, string(pickupID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var actorID *string
		if err := rows.Scan(&e.ID, &e.PickupID, &e.FromStatus, &e.ToStatus, &e.ActorRole, &actorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		if actorID != nil {
			id := types.ID(*actorID)
			e.ActorID = &id
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// IsAssigned reports whether collectorID currently holds an active pickup.
func (s *Store) IsAssigned(ctx context.Context, pickupID, collectorID types.ID) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pickups
			WHERE id = $1 AND collector_id = $2
			  AND status IN ('assigned','accepted','on_the_way','arrived')
		)`, string(pickupID), string(collectorID),
	).Scan(&ok)
	return ok, err
}

func scanPickup(row pgx.Row) (*Pickup, error) {
	var (
		p              Pickup
		collectorID    *string
		verifiedWeight *float64
		finalAmount    *string
		currency       *string
		paymentMode    *string
		completedAt    *time.Time
	)
	err := row.Scan(
		&p.ID, &p.CitizenID, &collectorID, &p.Status, &p.StatusVersion,
		&p.WasteType, &p.Weight, &p.Location.Lat, &p.Location.Lng, &p.Location.Address, &p.Images, &p.Video,
		&verifiedWeight, &finalAmount, &currency, &paymentMode, &p.Paid,
		&p.CreatedAt, &p.UpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	if collectorID != nil {
		id := types.ID(*collectorID)
		p.CollectorID = &id
	}
	p.VerifiedWeight = verifiedWeight
	if finalAmount != nil {
		amount, err := decimal.NewFromString(*finalAmount)
		if err != nil {
			return nil, err
		}
		m := types.NewMoney(amount, "")
		if currency != nil {
			m.Currency = *currency
		}
		p.FinalAmount = &m
	}
	if paymentMode != nil {
		mode := PaymentMode(*paymentMode)
		p.PaymentMode = &mode
	}
	p.CompletedAt = completedAt
	if p.Images == nil {
		p.Images = []string{}
	}
	return &p, nil
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
