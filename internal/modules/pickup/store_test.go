package pickup

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"wastelink/internal/testutil"
	"wastelink/internal/types"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db := testutil.NewTestDB(t, "transactions", "pickup_events", "pickups")
	return NewStore(db)
}

func TestStoreCompareAndSet(t *testing.T) {
	f := newFixture()
	store := setupTestStore(t)
	f.svc.repo = store
	ctx := context.Background()

	p := f.mustCreate(t, WastePlastic)
	got, err := store.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusCreated || got.Video == nil || got.Location.Address != mumbai.Address {
		t.Fatalf("unexpected stored pickup: %+v", got)
	}

	ok, err := store.UpdateStatus(ctx, StatusChange{ID: p.ID, From: StatusCreated, Version: 7, To: StatusCancelled, At: p.CreatedAt})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if ok {
		t.Fatal("stale version must not apply")
	}

	f.mustTransition(t, collectorA, TransitionCommand{PickupID: p.ID, Status: StatusAccepted})
	assigned, err := store.IsAssigned(ctx, p.ID, collectorA.ID)
	if err != nil || !assigned {
		t.Fatalf("expected collector assigned, got %v (%v)", assigned, err)
	}
	events, err := store.Events(ctx, p.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 2 || events[1].ToStatus != StatusAccepted {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestStoreCompletionRoundTrip(t *testing.T) {
	f := newFixture()
	f.svc.repo = setupTestStore(t)

	p := completedPickup(t, f)
	got, err := f.svc.repo.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.FinalAmount == nil || !got.FinalAmount.Amount.Equal(decimal.NewFromInt(99)) || got.FinalAmount.Currency != "INR" {
		t.Fatalf("unexpected final amount: %+v", got.FinalAmount)
	}
	if got.PaymentMode == nil || *got.PaymentMode != PaymentElectronic || got.CompletedAt == nil {
		t.Fatalf("completion fields not persisted: %+v", got)
	}
}

func TestStoreConcurrentAccept(t *testing.T) {
	f := newFixture()
	f.svc.repo = setupTestStore(t)
	p := f.mustCreate(t, WastePlastic)

	var wg sync.WaitGroup
	var mu sync.Mutex
	success := 0
	for _, id := range []types.ID{"d1", "d2", "d3"} {
		wg.Add(1)
		go func(id types.ID) {
			defer wg.Done()
			if _, err := f.svc.Transition(context.Background(), types.Actor{ID: id, Role: types.RoleCollector},
				TransitionCommand{PickupID: p.ID, Status: StatusAccepted}); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()
	if success != 1 {
		t.Fatalf("expected exactly 1 success, got %d", success)
	}
}
