package location

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"wastelink/internal/realtime"
	"wastelink/internal/types"
)

type fakeGeo struct {
	mu        sync.Mutex
	positions map[types.ID]types.Point
}

func (f *fakeGeo) SetPosition(_ context.Context, id types.ID, _ types.Role, pos types.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.positions == nil {
		f.positions = map[types.ID]types.Point{}
	}
	f.positions[id] = pos
	return nil
}

type fakeSnapshots struct {
	snaps []Snapshot
	err   error
}

func (f *fakeSnapshots) AppendSnapshot(_ context.Context, s Snapshot) error {
	f.snaps = append(f.snaps, s)
	return f.err
}

type fakeAssignments map[types.ID]types.ID

func (f fakeAssignments) IsAssigned(_ context.Context, pickupID, collectorID types.ID) (bool, error) {
	return f[pickupID] == collectorID, nil
}

type capturePublisher struct {
	msgs []realtime.Message
}

func (c *capturePublisher) Publish(_ context.Context, m realtime.Message) {
	c.msgs = append(c.msgs, m)
}

func newTestService() (*Service, *fakeGeo, *fakeSnapshots, *capturePublisher) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	geo := &fakeGeo{}
	snaps := &fakeSnapshots{}
	pub := &capturePublisher{}
	svc := NewService(geo, snaps, fakeAssignments{"p1": "c1"}, pub, logger)
	return svc, geo, snaps, pub
}

var bangalore = types.Point{Lat: 12.9716, Lng: 77.5946}

func TestUpdateStoresPositionAndSnapshot(t *testing.T) {
	svc, geo, snaps, pub := newTestService()

	err := svc.Update(context.Background(), types.Actor{ID: "c1", Role: types.RoleCollector}, UpdateCommand{
		CollectorID: "c1",
		Position:    bangalore,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if geo.positions["c1"] != bangalore {
		t.Errorf("expected geo position stored, got %+v", geo.positions)
	}
	if len(snaps.snaps) != 1 {
		t.Errorf("expected 1 snapshot, got %d", len(snaps.snaps))
	}
	if len(pub.msgs) != 0 {
		t.Errorf("expected no relay without pickup, got %d", len(pub.msgs))
	}
}

func TestUpdateRelaysToAssignedPickupRoom(t *testing.T) {
	svc, _, _, pub := newTestService()
	pickupID := types.ID("p1")

	err := svc.Update(context.Background(), types.Actor{ID: "c1", Role: types.RoleCollector}, UpdateCommand{
		CollectorID: "c1",
		Position:    bangalore,
		PickupID:    &pickupID,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(pub.msgs) != 1 || pub.msgs[0].Event != realtime.EventCollectorLocation || pub.msgs[0].Rooms[0] != "p1" {
		t.Fatalf("unexpected relay: %+v", pub.msgs)
	}
}

func TestUpdateRejections(t *testing.T) {
	svc, _, _, _ := newTestService()
	other := types.ID("p1")
	ctx := context.Background()

	if err := svc.Update(ctx, types.Actor{ID: "c2", Role: types.RoleCollector}, UpdateCommand{CollectorID: "c1", Position: bangalore}); !errors.Is(err, ErrForbidden) {
		t.Errorf("other collector: expected ErrForbidden, got %v", err)
	}
	if err := svc.Update(ctx, types.Actor{ID: "c1", Role: types.RoleCitizen}, UpdateCommand{CollectorID: "c1", Position: bangalore}); !errors.Is(err, ErrForbidden) {
		t.Errorf("citizen: expected ErrForbidden, got %v", err)
	}
	if err := svc.Update(ctx, types.Actor{ID: "c1", Role: types.RoleCollector}, UpdateCommand{CollectorID: "c1"}); !errors.Is(err, ErrBadRequest) {
		t.Errorf("zero position: expected ErrBadRequest, got %v", err)
	}
	if err := svc.Update(ctx, types.Actor{ID: "c3", Role: types.RoleCollector}, UpdateCommand{CollectorID: "c3", Position: bangalore, PickupID: &other}); !errors.Is(err, ErrForbidden) {
		t.Errorf("unassigned pickup: expected ErrForbidden, got %v", err)
	}
}

func TestUpdateSurvivesSnapshotFailure(t *testing.T) {
	svc, geo, snaps, _ := newTestService()
	snaps.err = errors.New("db down")

	if err := svc.Update(context.Background(), types.Actor{ID: "c1", Role: types.RoleCollector}, UpdateCommand{CollectorID: "c1", Position: bangalore}); err != nil {
		t.Fatalf("update should not fail on snapshot error: %v", err)
	}
	if _, ok := geo.positions["c1"]; !ok {
		t.Error("expected geo position stored")
	}
}
