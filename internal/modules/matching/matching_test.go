// README: Matching tests (radius guard, verification filter, degrade-to-empty).
package matching

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"wastelink/internal/config"
	"wastelink/internal/types"
)

type fakeGeoStore struct {
	hits      []Candidate
	verified  map[types.ID]bool
	nearbyErr error
	verifyErr error
	lastRole  types.Role
}

func (f *fakeGeoStore) Nearby(_ context.Context, role types.Role, _ types.Point, _ float64) ([]Candidate, error) {
	f.lastRole = role
	if f.nearbyErr != nil {
		return nil, f.nearbyErr
	}
	out := make([]Candidate, len(f.hits))
	copy(out, f.hits)
	return out, nil
}

func (f *fakeGeoStore) Verified(_ context.Context, ids []types.ID) (map[types.ID]bool, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	out := make(map[types.ID]bool, len(ids))
	for _, id := range ids {
		out[id] = f.verified[id]
	}
	return out, nil
}

type fakeDispatch struct {
	pickups map[types.ID][]types.ID
	err     error
}

func (f *fakeDispatch) RecordDispatch(_ context.Context, pickupID types.ID, ids []types.ID) error {
	if f.err != nil {
		return f.err
	}
	if f.pickups == nil {
		f.pickups = map[types.ID][]types.ID{}
	}
	f.pickups[pickupID] = ids
	return nil
}

func (f *fakeDispatch) Notified(_ context.Context, pickupID types.ID) ([]types.ID, error) {
	return f.pickups[pickupID], nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

var origin = types.Point{Lat: 19.0760, Lng: 72.8777}

// ~1.1km, ~5.5km, ~22km north of origin.
func sampleHits() []Candidate {
	return []Candidate{
		{ID: "far", Position: types.Point{Lat: 19.2760, Lng: 72.8777}},
		{ID: "mid", Position: types.Point{Lat: 19.1255, Lng: 72.8777}},
		{ID: "near", Position: types.Point{Lat: 19.0860, Lng: 72.8777}},
		{ID: "unverified", Position: types.Point{Lat: 19.0800, Lng: 72.8777}},
	}
}

func sampleVerified() map[types.ID]bool {
	return map[types.ID]bool{"far": true, "mid": true, "near": true}
}

func TestFindWithinRadiusFiltersAndSorts(t *testing.T) {
	store := &fakeGeoStore{hits: sampleHits(), verified: sampleVerified()}
	ix := NewIndex(store, quietLogger())

	got := ix.FindWithinRadius(context.Background(), origin, DefaultRadiusM, CollectorFilter)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %+v", len(got), got)
	}
	if got[0].ID != "near" || got[1].ID != "mid" {
		t.Fatalf("unexpected order: %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].DistanceM > got[1].DistanceM {
		t.Fatalf("candidates not sorted by distance")
	}
	for _, c := range got {
		if c.DistanceM > DefaultRadiusM {
			t.Errorf("candidate %s outside radius: %.0fm", c.ID, c.DistanceM)
		}
	}
	if store.lastRole != types.RoleCollector {
		t.Errorf("expected collector role query, got %q", store.lastRole)
	}
}

func TestFindWithinRadiusWithoutVerification(t *testing.T) {
	ix := NewIndex(&fakeGeoStore{hits: sampleHits()}, quietLogger())

	got := ix.FindWithinRadius(context.Background(), origin, DefaultRadiusM, Filter{Role: types.RoleCollector})
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	if got[0].ID != "unverified" {
		t.Fatalf("expected unverified collector first, got %s", got[0].ID)
	}
}

func TestFindWithinRadiusDegradesToEmpty(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name   string
		store  *fakeGeoStore
		point  types.Point
		radius float64
	}{
		{name: "store error", store: &fakeGeoStore{nearbyErr: errors.New("redis down")}, point: origin, radius: DefaultRadiusM},
		{name: "verify error", store: &fakeGeoStore{hits: sampleHits(), verifyErr: errors.New("redis down")}, point: origin, radius: DefaultRadiusM},
		{name: "zero point", store: &fakeGeoStore{hits: sampleHits()}, point: types.Point{}, radius: DefaultRadiusM},
		{name: "out of bounds", store: &fakeGeoStore{hits: sampleHits()}, point: types.Point{Lat: 91, Lng: 10}, radius: DefaultRadiusM},
		{name: "zero radius", store: &fakeGeoStore{hits: sampleHits()}, point: origin, radius: 0},
		{name: "nobody nearby", store: &fakeGeoStore{}, point: origin, radius: DefaultRadiusM},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ix := NewIndex(tc.store, quietLogger())
			if got := ix.FindWithinRadius(ctx, tc.point, tc.radius, CollectorFilter); len(got) != 0 {
				t.Fatalf("expected no candidates, got %+v", got)
			}
		})
	}
}

func TestFindBestCollectorsRecordsDispatch(t *testing.T) {
	dispatch := &fakeDispatch{}
	svc := NewService(
		NewIndex(&fakeGeoStore{hits: sampleHits(), verified: sampleVerified()}, quietLogger()),
		dispatch,
		config.MatchingConfig{RadiusM: DefaultRadiusM},
		quietLogger(),
	)

	got := svc.FindBestCollectors(context.Background(), Request{PickupID: "p1", Location: origin, WasteType: "plastic"})
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	notified, err := svc.Notified(context.Background(), "p1")
	if err != nil {
		t.Fatalf("notified: %v", err)
	}
	if len(notified) != 2 || notified[0] != "near" {
		t.Fatalf("unexpected dispatch record: %v", notified)
	}
}

func TestFindBestCollectorsCapsCandidates(t *testing.T) {
	svc := NewService(
		NewIndex(&fakeGeoStore{hits: sampleHits(), verified: sampleVerified()}, quietLogger()),
		nil,
		config.MatchingConfig{RadiusM: DefaultRadiusM, MaxCandidates: 1},
		quietLogger(),
	)
	got := svc.FindBestCollectors(context.Background(), Request{PickupID: "p1", Location: origin})
	if len(got) != 1 || got[0].ID != "near" {
		t.Fatalf("expected only the nearest candidate, got %+v", got)
	}
}

func TestFindBestCollectorsIgnoresDispatchFailure(t *testing.T) {
	svc := NewService(
		NewIndex(&fakeGeoStore{hits: sampleHits(), verified: sampleVerified()}, quietLogger()),
		&fakeDispatch{err: errors.New("redis down")},
		config.MatchingConfig{},
		quietLogger(),
	)
	if got := svc.FindBestCollectors(context.Background(), Request{PickupID: "p1", Location: origin}); len(got) != 2 {
		t.Fatalf("expected 2 candidates despite dispatch failure, got %d", len(got))
	}
}
