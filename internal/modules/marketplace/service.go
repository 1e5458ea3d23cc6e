// README: Marketplace service: recycler purchases, admin payouts, listings and the ledger view.
package marketplace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"wastelink/internal/modules/pickup"
	"wastelink/internal/realtime"
	"wastelink/internal/types"
)

var (
	ErrForbidden    = errors.New("not authorized")
	ErrInvalidState = errors.New("pickup not available for this operation")
	ErrAlreadyPaid  = errors.New("pickup already paid")
	ErrConflict     = errors.New("pickup state conflict")
)

type PickupReader interface {
	Get(ctx context.Context, id types.ID) (*pickup.Pickup, error)
	List(ctx context.Context, f pickup.ListFilter) ([]pickup.Pickup, error)
}

type Ledger interface {
	Settle(ctx context.Context, t *Transaction, g SettleGuard) (bool, error)
	Payout(ctx context.Context, t *Transaction) (bool, error)
	List(ctx context.Context, f TxFilter) ([]Transaction, error)
}

// Rules answers whether a role may move a pickup between two statuses.
type Rules interface {
	Allows(role types.Role, from, to pickup.Status) bool
}

type Calculator interface {
	Compute(ctx context.Context, wasteType string, weight float64) (types.Money, error)
}

type Publisher interface {
	Publish(ctx context.Context, msg realtime.Message)
}

type Service struct {
	pickups PickupReader
	ledger  Ledger
	rules   Rules
	market  Calculator
	notify  Publisher
	logger  *logrus.Logger
}

func NewService(pickups PickupReader, ledger Ledger, rules Rules, market Calculator, notify Publisher, logger *logrus.Logger) *Service {
	return &Service{pickups: pickups, ledger: ledger, rules: rules, market: market, notify: notify, logger: logger}
}

// Purchase sells a completed pickup to a recycler. The transaction row and the
// SETTLED status commit together or not at all.
func (s *Service) Purchase(ctx context.Context, actor types.Actor, pickupID types.ID) (*Transaction, error) {
	if actor.Role != types.RoleRecycler {
		return nil, fmt.Errorf("%w: only recyclers can purchase pickups", ErrForbidden)
	}
	p, err := s.pickups.Get(ctx, pickupID)
	if err != nil {
		return nil, err
	}
	if !s.rules.Allows(actor.Role, p.Status, pickup.StatusSettled) {
		return nil, fmt.Errorf("%w: pickup is %s", ErrInvalidState, p.Status)
	}
	if p.VerifiedWeight == nil {
		return nil, fmt.Errorf("%w: pickup has no verified weight", ErrInvalidState)
	}
	amount, err := s.market.Compute(ctx, string(p.WasteType), *p.VerifiedWeight)
	if err != nil {
		return nil, err
	}

	recyclerID := actor.ID
	t := &Transaction{
		ID:          types.NewID(),
		PickupID:    p.ID,
		CitizenID:   p.CitizenID,
		CollectorID: p.CollectorID,
		RecyclerID:  &recyclerID,
		Amount:      amount,
		Type:        TxPurchase,
		Status:      TxCompleted,
		CreatedAt:   time.Now().UTC(),
	}
	ok, err := s.ledger.Settle(ctx, t, SettleGuard{From: p.Status, Version: p.StatusVersion, Actor: actor})
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := s.pickups.Get(ctx, pickupID)
		if err == nil && current.Status != pickup.StatusCompleted {
			return nil, fmt.Errorf("%w: pickup is %s", ErrInvalidState, current.Status)
		}
		return nil, ErrConflict
	}

	s.logger.WithFields(logrus.Fields{
		"pickup_id":   p.ID,
		"recycler_id": actor.ID,
		"amount":      t.Amount.Amount.String(),
	}).Info("pickup settled")

	rooms := txRooms(t)
	s.publish(ctx, realtime.Message{Event: realtime.EventTransactionCreated, Rooms: rooms, Payload: t})
	s.publish(ctx, realtime.Message{
		Event: realtime.EventPickupStatusUpdated,
		Rooms: append([]string{string(p.ID)}, rooms...),
		Payload: pickup.StatusUpdate{
			PickupID:    p.ID,
			Status:      pickup.StatusSettled,
			CitizenID:   p.CitizenID,
			CollectorID: p.CollectorID,
		},
	})
	return t, nil
}

// Payout records that an admin paid out an electronically settled pickup.
func (s *Service) Payout(ctx context.Context, actor types.Actor, pickupID types.ID) (*Transaction, error) {
	if actor.Role != types.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins can record payouts", ErrForbidden)
	}
	p, err := s.pickups.Get(ctx, pickupID)
	if err != nil {
		return nil, err
	}
	if p.Status != pickup.StatusCompleted && p.Status != pickup.StatusSettled {
		return nil, fmt.Errorf("%w: pickup is %s", ErrInvalidState, p.Status)
	}
	if p.PaymentMode == nil || *p.PaymentMode != pickup.PaymentElectronic {
		return nil, fmt.Errorf("%w: only electronic payments are paid out", ErrInvalidState)
	}
	if p.Paid {
		return nil, ErrAlreadyPaid
	}
	if p.FinalAmount == nil {
		return nil, fmt.Errorf("%w: pickup has no settlement amount", ErrInvalidState)
	}

	t := &Transaction{
		ID:          types.NewID(),
		PickupID:    p.ID,
		CitizenID:   p.CitizenID,
		CollectorID: p.CollectorID,
		Amount:      *p.FinalAmount,
		Type:        TxPayout,
		Status:      TxCompleted,
		CreatedAt:   time.Now().UTC(),
	}
	ok, err := s.ledger.Payout(ctx, t)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyPaid
	}
	s.publish(ctx, realtime.Message{Event: realtime.EventTransactionCreated, Rooms: txRooms(t), Payload: t})
	return t, nil
}

// Listings returns completed pickups with a market price quote.
func (s *Service) Listings(ctx context.Context, actor types.Actor) ([]Listing, error) {
	if actor.Role != types.RoleRecycler && actor.Role != types.RoleAdmin {
		return nil, fmt.Errorf("%w: listings are for recyclers", ErrForbidden)
	}
	pickups, err := s.pickups.List(ctx, pickup.ListFilter{Statuses: []pickup.Status{pickup.StatusCompleted}})
	if err != nil {
		return nil, err
	}
	out := make([]Listing, 0, len(pickups))
	for _, p := range pickups {
		l := Listing{Pickup: p}
		if p.VerifiedWeight != nil {
			if price, err := s.market.Compute(ctx, string(p.WasteType), *p.VerifiedWeight); err == nil {
				l.Price = &price
			} else {
				s.logger.WithError(err).WithField("pickup_id", p.ID).Warn("quote failed")
			}
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *Service) Transactions(ctx context.Context, actor types.Actor) ([]Transaction, error) {
	var f TxFilter
	switch actor.Role {
	case types.RoleCitizen:
		f.CitizenID = &actor.ID
	case types.RoleCollector:
		f.CollectorID = &actor.ID
	case types.RoleRecycler:
		f.RecyclerID = &actor.ID
	case types.RoleAdmin:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrForbidden, actor.Role)
	}
	return s.ledger.List(ctx, f)
}

func (s *Service) publish(ctx context.Context, msg realtime.Message) {
	if s.notify == nil {
		return
	}
	s.notify.Publish(ctx, msg)
}

func txRooms(t *Transaction) []string {
	rooms := []string{string(t.CitizenID)}
	if t.CollectorID != nil {
		rooms = append(rooms, string(*t.CollectorID))
	}
	if t.RecyclerID != nil {
		rooms = append(rooms, string(*t.RecyclerID))
	}
	return rooms
}
