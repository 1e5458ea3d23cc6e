// README: User store backed by PostgreSQL.
package user

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wastelink/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Upsert writes the caller-owned fields; verification is left untouched.
func (s *Store) Upsert(ctx context.Context, p *Profile) error {
	return s.db.QueryRow(ctx, `
		INSERT INTO users (id, role, name, phone, device_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (id) DO UPDATE
		SET role = EXCLUDED.role,
		    name = EXCLUDED.name,
		    phone = EXCLUDED.phone,
		    device_token = EXCLUDED.device_token,
		    updated_at = EXCLUDED.updated_at
		RETURNING verified, created_at`,
		string(p.ID),
		string(p.Role),
		p.Name,
		p.Phone,
		p.DeviceToken,
		p.UpdatedAt,
	).Scan(&p.Verified, &p.CreatedAt)
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Profile, error) {
	var p Profile
	err := s.db.QueryRow(ctx, `
		SELECT id, role, name, phone, device_token, verified, created_at, updated_at
		FROM users
		WHERE id = $1`, string(id),
	).Scan(&p.ID, &p.Role, &p.Name, &p.Phone, &p.DeviceToken, &p.Verified, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) SetVerified(ctx context.Context, id types.ID, verified bool) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET verified = $1, updated_at = NOW() WHERE id = $2`,
		verified, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeviceToken resolves the push token of a user; unknown users have none.
func (s *Store) DeviceToken(ctx context.Context, userID string) (string, error) {
	var token string
	err := s.db.QueryRow(ctx, `SELECT device_token FROM users WHERE id = $1`, userID).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return token, err
}

// IsCollector reports whether id is a registered collector. Unknown ids are not.
func (s *Store) IsCollector(ctx context.Context, id types.ID) (bool, error) {
	var role string
	err := s.db.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, string(id)).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return types.Role(role) == types.RoleCollector, nil
}
