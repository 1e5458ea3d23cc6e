// README: User service: self-registration of profiles and admin verification of collectors.
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"wastelink/internal/types"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrForbidden  = errors.New("not authorized")
	ErrBadRequest = errors.New("bad request")
)

type Repository interface {
	Upsert(ctx context.Context, p *Profile) error
	Get(ctx context.Context, id types.ID) (*Profile, error)
	SetVerified(ctx context.Context, id types.ID, verified bool) error
}

// VerificationIndex mirrors the verified flag into the matching index.
type VerificationIndex interface {
	SetVerified(ctx context.Context, id types.ID, verified bool) error
}

type Service struct {
	repo   Repository
	index  VerificationIndex
	logger *logrus.Logger
}

func NewService(repo Repository, index VerificationIndex, logger *logrus.Logger) *Service {
	return &Service{repo: repo, index: index, logger: logger}
}

type UpsertCommand struct {
	Name        string
	Phone       string
	DeviceToken string
}

// Upsert registers or updates the caller's own profile. The role always comes
// from the authenticated identity.
func (s *Service) Upsert(ctx context.Context, actor types.Actor, cmd UpsertCommand) (*Profile, error) {
	if actor.ID == "" || !actor.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown caller", ErrForbidden)
	}
	name := strings.TrimSpace(cmd.Name)
	if len(name) > 120 {
		return nil, fmt.Errorf("%w: name too long", ErrBadRequest)
	}
	p := &Profile{
		ID:          actor.ID,
		Role:        actor.Role,
		Name:        name,
		Phone:       strings.TrimSpace(cmd.Phone),
		DeviceToken: strings.TrimSpace(cmd.DeviceToken),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Upsert(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Profile, error) {
	return s.repo.Get(ctx, id)
}

// SetVerified flips a user's verification. Only verified collectors are
// eligible for matching.
func (s *Service) SetVerified(ctx context.Context, actor types.Actor, id types.ID, verified bool) (*Profile, error) {
	if actor.Role != types.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins can verify users", ErrForbidden)
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetVerified(ctx, id, verified); err != nil {
		return nil, err
	}
	p.Verified = verified

	if p.Role == types.RoleCollector && s.index != nil {
		if err := s.index.SetVerified(ctx, id, verified); err != nil {
			return nil, fmt.Errorf("sync matching index: %w", err)
		}
	}
	s.logger.WithFields(logrus.Fields{"user_id": id, "verified": verified, "admin_id": actor.ID}).Info("user verification changed")
	return p, nil
}
