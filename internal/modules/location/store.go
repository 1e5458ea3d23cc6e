// README: Location snapshot store backed by Postgres.
package location

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) AppendSnapshot(ctx context.Context, snap Snapshot) error {
	var pickupID *string
	if snap.PickupID != nil {
		v := string(*snap.PickupID)
		pickupID = &v
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO collector_location_snapshots (collector_id, pickup_id, lat, lng, recorded_at)
		VALUES ($1, $2, $3, $4, $5)`,
		string(snap.CollectorID),
		pickupID,
		snap.Position.Lat,
		snap.Position.Lng,
		snap.RecordedAt,
	)
	return err
}
