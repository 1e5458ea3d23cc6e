// README: Location service handles collector GPS updates, snapshotting and the pickup-room relay.
package location

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"wastelink/internal/realtime"
	"wastelink/internal/types"
)

var (
	ErrBadRequest = errors.New("bad request")
	ErrForbidden  = errors.New("forbidden")
)

// GeoWriter stores the collector's current position in the geo index.
type GeoWriter interface {
	SetPosition(ctx context.Context, id types.ID, role types.Role, pos types.Point) error
}

type SnapshotStore interface {
	AppendSnapshot(ctx context.Context, snap Snapshot) error
}

// AssignmentChecker reports whether collectorID is assigned to pickupID.
type AssignmentChecker interface {
	IsAssigned(ctx context.Context, pickupID, collectorID types.ID) (bool, error)
}

type Publisher interface {
	Publish(ctx context.Context, msg realtime.Message)
}

type Service struct {
	geo         GeoWriter
	snapshots   SnapshotStore
	assignments AssignmentChecker
	notify      Publisher
	logger      *logrus.Logger
}

func NewService(geo GeoWriter, snapshots SnapshotStore, assignments AssignmentChecker, notify Publisher, logger *logrus.Logger) *Service {
	return &Service{geo: geo, snapshots: snapshots, assignments: assignments, notify: notify, logger: logger}
}

type UpdateCommand struct {
	CollectorID types.ID
	Position    types.Point
	PickupID    *types.ID
}

func (s *Service) Update(ctx context.Context, actor types.Actor, cmd UpdateCommand) error {
	if actor.Role != types.RoleCollector || actor.ID != cmd.CollectorID {
		return fmt.Errorf("%w: only the collector may update their own location", ErrForbidden)
	}
	if !cmd.Position.Valid() {
		return fmt.Errorf("%w: invalid position", ErrBadRequest)
	}
	if cmd.PickupID != nil {
		ok, err := s.assignments.IsAssigned(ctx, *cmd.PickupID, cmd.CollectorID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: collector is not assigned to pickup %s", ErrForbidden, *cmd.PickupID)
		}
	}
	if err := s.geo.SetPosition(ctx, cmd.CollectorID, types.RoleCollector, cmd.Position); err != nil {
		return fmt.Errorf("update geo index: %w", err)
	}

	now := time.Now().UTC()
	if s.snapshots != nil {
		snap := Snapshot{CollectorID: cmd.CollectorID, PickupID: cmd.PickupID, Position: cmd.Position, RecordedAt: now}
		if err := s.snapshots.AppendSnapshot(ctx, snap); err != nil {
			s.logger.WithError(err).WithField("collector_id", cmd.CollectorID).Warn("location snapshot failed")
		}
	}

	if cmd.PickupID != nil && s.notify != nil {
		s.notify.Publish(ctx, realtime.Message{
			Event: realtime.EventCollectorLocation,
			Rooms: []string{string(*cmd.PickupID)},
			Payload: RelayPayload{
				PickupID:    *cmd.PickupID,
				CollectorID: cmd.CollectorID,
				Position:    cmd.Position,
				RecordedAt:  now,
			},
		})
	}
	return nil
}
