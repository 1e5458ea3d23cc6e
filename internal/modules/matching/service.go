// README: Matching service; finds the nearest verified collectors for a new pickup.
package matching

import (
	"context"

	"github.com/sirupsen/logrus"

	"wastelink/internal/config"
	"wastelink/internal/metrics"
	"wastelink/internal/types"
)

type DispatchStore interface {
	RecordDispatch(ctx context.Context, pickupID types.ID, collectorIDs []types.ID) error
	Notified(ctx context.Context, pickupID types.ID) ([]types.ID, error)
}

type Service struct {
	index    *Index
	dispatch DispatchStore
	cfg      config.MatchingConfig
	logger   *logrus.Logger
}

func NewService(index *Index, dispatch DispatchStore, cfg config.MatchingConfig, logger *logrus.Logger) *Service {
	if cfg.RadiusM <= 0 {
		cfg.RadiusM = DefaultRadiusM
	}
	return &Service{index: index, dispatch: dispatch, cfg: cfg, logger: logger}
}

// FindBestCollectors never fails; matching is best effort and must not block
// pickup creation.
func (s *Service) FindBestCollectors(ctx context.Context, req Request) (out []Candidate) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("pickup_id", req.PickupID).Errorf("matching panicked: %v", r)
			out = nil
		}
	}()

	candidates := s.index.FindWithinRadius(ctx, req.Location, s.cfg.RadiusM, CollectorFilter)
	if s.cfg.MaxCandidates > 0 && len(candidates) > s.cfg.MaxCandidates {
		candidates = candidates[:s.cfg.MaxCandidates]
	}
	metrics.MatchingCandidates.Observe(float64(len(candidates)))

	if s.dispatch != nil {
		ids := make([]types.ID, len(candidates))
		for i, c := range candidates {
			ids[i] = c.ID
		}
		if err := s.dispatch.RecordDispatch(ctx, req.PickupID, ids); err != nil {
			s.logger.WithError(err).WithField("pickup_id", req.PickupID).Warn("record dispatch failed")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"pickup_id":  req.PickupID,
		"candidates": len(candidates),
	}).Info("pickup matched")
	return candidates
}

// Notified lists the collectors a pickup was dispatched to.
func (s *Service) Notified(ctx context.Context, pickupID types.ID) ([]types.ID, error) {
	if s.dispatch == nil {
		return nil, nil
	}
	return s.dispatch.Notified(ctx, pickupID)
}
