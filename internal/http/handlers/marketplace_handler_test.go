package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"wastelink/internal/http/handlers"
	httpmiddleware "wastelink/internal/http/middleware"
	"wastelink/internal/infra"
	"wastelink/internal/modules/marketplace"
	"wastelink/internal/modules/pickup"
	"wastelink/internal/modules/settlement"
	"wastelink/internal/modules/user"
	"wastelink/internal/types"
)

// fakeLedger settles against fakePickups with the same guard as the pg store.
type fakeLedger struct {
	mu      sync.Mutex
	pickups *fakePickups
	txs     []marketplace.Transaction
}

func (l *fakeLedger) Settle(ctx context.Context, t *marketplace.Transaction, g marketplace.SettleGuard) (bool, error) {
	ok, err := l.pickups.UpdateStatus(ctx, pickup.StatusChange{ID: t.PickupID, From: g.From, Version: g.Version, To: pickup.StatusSettled})
	if err != nil || !ok {
		return ok, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.txs = append(l.txs, *t)
	return true, nil
}

func (l *fakeLedger) Payout(_ context.Context, t *marketplace.Transaction) (bool, error) {
	l.pickups.mu.Lock()
	defer l.pickups.mu.Unlock()
	p := l.pickups.byID[t.PickupID]
	if p.Paid {
		return false, nil
	}
	p.Paid = true
	l.pickups.byID[t.PickupID] = p
	l.mu.Lock()
	defer l.mu.Unlock()
	l.txs = append(l.txs, *t)
	return true, nil
}

func (l *fakeLedger) List(context.Context, marketplace.TxFilter) ([]marketplace.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]marketplace.Transaction(nil), l.txs...), nil
}

type memProfiles struct {
	byID map[types.ID]user.Profile
}

func (m *memProfiles) Upsert(_ context.Context, p *user.Profile) error {
	m.byID[p.ID] = *p
	return nil
}

func (m *memProfiles) Get(_ context.Context, id types.ID) (*user.Profile, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &p, nil
}

func (m *memProfiles) SetVerified(_ context.Context, id types.ID, verified bool) error {
	p := m.byID[id]
	p.Verified = verified
	m.byID[id] = p
	return nil
}

func buildMarketRouter(repo *fakePickups, ledger *fakeLedger, profiles *memProfiles) *gin.Engine {
	gin.SetMode(gin.TestMode)
	market := marketplace.NewService(repo, ledger, pickup.DefaultTable(true),
		settlement.NewCalculator(settlement.Static(settlement.DefaultMarketRates), "INR"), nil, quietLogger())

	r := gin.New()
	r.Use(httpmiddleware.Auth(infra.NewJWTVerifier(testSecret)))
	mh := handlers.NewMarketplaceHandler(market)
	r.POST("/api/marketplace/:id/purchase", mh.Purchase)
	r.GET("/api/marketplace/listings", mh.Listings)
	r.GET("/api/transactions", mh.Transactions)
	r.POST("/api/admin/pickups/:id/payout", mh.Payout)

	uh := handlers.NewUserHandler(user.NewService(profiles, nil, quietLogger()))
	r.GET("/api/me", uh.Me)
	r.PUT("/api/me", uh.UpsertMe)
	r.POST("/api/admin/users/:id/verify", uh.Verify)

	r.POST("/api/media", handlers.NewMediaHandler(nil).Upload)
	return r
}

func completedPickup(repo *fakePickups, id types.ID, mode pickup.PaymentMode) {
	col := types.ID("col-1")
	w := 4.5
	amount := types.NewMoney(mustDecimal("99"), "INR")
	repo.put(pickup.Pickup{
		ID:             id,
		CitizenID:      "cit-1",
		CollectorID:    &col,
		Status:         pickup.StatusCompleted,
		StatusVersion:  5,
		WasteType:      pickup.WastePlastic,
		Weight:         5,
		VerifiedWeight: &w,
		FinalAmount:    &amount,
		PaymentMode:    &mode,
		Paid:           mode == pickup.PaymentCash,
	})
}

func TestPurchase_RecyclerSettlesOnce(t *testing.T) {
	repo := newFakePickups()
	completedPickup(repo, "p-1", pickup.PaymentCash)
	ledger := &fakeLedger{pickups: repo}
	r := buildMarketRouter(repo, ledger, &memProfiles{byID: map[types.ID]user.Profile{}})

	if w := doRequest(r, http.MethodPost, "/api/marketplace/p-1/purchase", nil, bearer(t, "col-1", types.RoleCollector)); w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for collector, got %d", w.Code)
	}

	w := doRequest(r, http.MethodPost, "/api/marketplace/p-1/purchase", nil, bearer(t, "rec-1", types.RoleRecycler))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var tx marketplace.Transaction
	if err := json.Unmarshal(w.Body.Bytes(), &tx); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !tx.Amount.Amount.Equal(mustDecimal("67.5")) {
		t.Errorf("expected 67.5, got %s", tx.Amount.Amount)
	}

	if w := doRequest(r, http.MethodPost, "/api/marketplace/p-1/purchase", nil, bearer(t, "rec-2", types.RoleRecycler)); w.Code != http.StatusConflict {
		t.Errorf("expected 409 on second purchase, got %d", w.Code)
	}
	if w := doRequest(r, http.MethodPost, "/api/marketplace/missing/purchase", nil, bearer(t, "rec-1", types.RoleRecycler)); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestPayout_ElectronicOnlyOnce(t *testing.T) {
	repo := newFakePickups()
	completedPickup(repo, "p-e", pickup.PaymentElectronic)
	completedPickup(repo, "p-c", pickup.PaymentCash)
	r := buildMarketRouter(repo, &fakeLedger{pickups: repo}, &memProfiles{byID: map[types.ID]user.Profile{}})
	admin := bearer(t, "adm-1", types.RoleAdmin)

	if w := doRequest(r, http.MethodPost, "/api/admin/pickups/p-e/payout", nil, bearer(t, "rec-1", types.RoleRecycler)); w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
	if w := doRequest(r, http.MethodPost, "/api/admin/pickups/p-e/payout", nil, admin); w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if w := doRequest(r, http.MethodPost, "/api/admin/pickups/p-e/payout", nil, admin); w.Code != http.StatusConflict {
		t.Errorf("expected 409 for repeated payout, got %d", w.Code)
	}
	if w := doRequest(r, http.MethodPost, "/api/admin/pickups/p-c/payout", nil, admin); w.Code != http.StatusConflict {
		t.Errorf("expected 409 for cash pickup, got %d", w.Code)
	}
}

func TestVerifyUser_AdminOnly(t *testing.T) {
	profiles := &memProfiles{byID: map[types.ID]user.Profile{
		"col-9": {ID: "col-9", Role: types.RoleCollector},
	}}
	repo := newFakePickups()
	r := buildMarketRouter(repo, &fakeLedger{pickups: repo}, profiles)

	if w := doRequest(r, http.MethodPost, "/api/admin/users/col-9/verify", map[string]any{"verified": true}, bearer(t, "col-1", types.RoleCollector)); w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
	w := doRequest(r, http.MethodPost, "/api/admin/users/col-9/verify", map[string]any{"verified": true}, bearer(t, "adm-1", types.RoleAdmin))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !profiles.byID["col-9"].Verified {
		t.Error("expected collector to be verified")
	}
	if w := doRequest(r, http.MethodPost, "/api/admin/users/nobody/verify", map[string]any{"verified": true}, bearer(t, "adm-1", types.RoleAdmin)); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestUpsertMe_RoleFromToken(t *testing.T) {
	profiles := &memProfiles{byID: map[types.ID]user.Profile{}}
	repo := newFakePickups()
	r := buildMarketRouter(repo, &fakeLedger{pickups: repo}, profiles)

	w := doRequest(r, http.MethodPut, "/api/me", map[string]any{"name": "Asha", "device_token": "tok"}, bearer(t, "col-3", types.RoleCollector))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := profiles.byID["col-3"]; got.Role != types.RoleCollector || got.DeviceToken != "tok" {
		t.Errorf("unexpected profile %+v", got)
	}

	w = doRequest(r, http.MethodGet, "/api/me", nil, bearer(t, "col-3", types.RoleCollector))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := doRequest(r, http.MethodGet, "/api/me", nil, bearer(t, "col-4", types.RoleCollector)); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unregistered caller, got %d", w.Code)
	}
}

func TestMediaUpload_NotConfigured(t *testing.T) {
	repo := newFakePickups()
	r := buildMarketRouter(repo, &fakeLedger{pickups: repo}, &memProfiles{byID: map[types.ID]user.Profile{}})
	if w := doRequest(r, http.MethodPost, "/api/media", nil, bearer(t, "cit-1", types.RoleCitizen)); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}
