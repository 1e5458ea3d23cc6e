// README: Pickup lifecycle service: creation, listing and guarded status transitions.
package pickup

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"wastelink/internal/metrics"
	"wastelink/internal/modules/matching"
	"wastelink/internal/realtime"
	"wastelink/internal/types"
)

var (
	ErrBadRequest   = errors.New("bad request")
	ErrForbidden    = errors.New("not authorized")
	ErrInvalidState = errors.New("invalid state transition")
	ErrNotFound     = errors.New("pickup not found")
	ErrConflict     = errors.New("pickup state conflict")
)

// maxCASAttempts bounds re-reads after a lost compare-and-set.
const maxCASAttempts = 3

type Repository interface {
	Create(ctx context.Context, p *Pickup) error
	Get(ctx context.Context, id types.ID) (*Pickup, error)
	List(ctx context.Context, f ListFilter) ([]Pickup, error)
	UpdateStatus(ctx context.Context, c StatusChange) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
}

type Matcher interface {
	FindBestCollectors(ctx context.Context, req matching.Request) []matching.Candidate
}

// Calculator values a verified weight of a waste category.
type Calculator interface {
	Compute(ctx context.Context, wasteType string, weight float64) (types.Money, error)
}

type Publisher interface {
	Publish(ctx context.Context, msg realtime.Message)
}

// AddressResolver fills in a free-text address for a bare coordinate.
type AddressResolver interface {
	ReverseGeocode(ctx context.Context, p types.Point) (string, error)
}

// CollectorRegistry confirms that an id belongs to a registered collector.
type CollectorRegistry interface {
	IsCollector(ctx context.Context, id types.ID) (bool, error)
}

type Service struct {
	repo       Repository
	matcher    Matcher
	calc       Calculator
	notify     Publisher
	address    AddressResolver
	collectors CollectorRegistry
	table      TransitionTable
	logger     *logrus.Logger
}

func NewService(repo Repository, matcher Matcher, calc Calculator, notify Publisher, logger *logrus.Logger) *Service {
	return &Service{
		repo:    repo,
		matcher: matcher,
		calc:    calc,
		notify:  notify,
		table:   DefaultTable(true),
		logger:  logger,
	}
}

// WithTable replaces the transition table.
func (s *Service) WithTable(t TransitionTable) *Service {
	s.table = t
	return s
}

func (s *Service) WithAddressResolver(r AddressResolver) *Service {
	s.address = r
	return s
}

// WithCollectorRegistry enables the collector check on admin assignment.
func (s *Service) WithCollectorRegistry(r CollectorRegistry) *Service {
	s.collectors = r
	return s
}

func (s *Service) Table() TransitionTable {
	return s.table
}

type CreateCommand struct {
	WasteType WasteType
	Weight    float64
	Location  Location
	Images    []string
	Video     string
}

type TransitionCommand struct {
	PickupID       types.ID
	Status         Status
	VerifiedWeight *float64
	PaymentMode    PaymentMode
	// CollectorID is the admin's assignment target for ASSIGNED.
	CollectorID *types.ID
}

func (s *Service) Create(ctx context.Context, actor types.Actor, cmd CreateCommand) (*Pickup, error) {
	if actor.Role != types.RoleCitizen {
		return nil, fmt.Errorf("%w: only citizens can request pickups", ErrForbidden)
	}
	if err := validateCreate(cmd); err != nil {
		return nil, err
	}

	loc := cmd.Location
	loc.Address = strings.TrimSpace(loc.Address)
	if loc.Address == "" && s.address != nil {
		addr, err := s.address.ReverseGeocode(ctx, loc.Point)
		if err != nil {
			s.logger.WithError(err).Warn("reverse geocode failed")
		} else {
			loc.Address = addr
		}
	}

	now := time.Now().UTC()
	p := &Pickup{
		ID:            types.NewID(),
		CitizenID:     actor.ID,
		Status:        StatusCreated,
		StatusVersion: 0,
		WasteType:     cmd.WasteType,
		Weight:        cmd.Weight,
		Location:      loc,
		Images:        cleanRefs(cmd.Images),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if v := strings.TrimSpace(cmd.Video); v != "" {
		p.Video = &v
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.appendEvent(ctx, p.ID, StatusNone, StatusCreated, actor, now)

	candidates := s.matcher.FindBestCollectors(ctx, matching.Request{
		PickupID:  p.ID,
		Location:  p.Location.Point,
		WasteType: string(p.WasteType),
	})
	msg := realtime.Message{
		Event: realtime.EventNewPickup,
		Payload: NewPickupNotice{
			PickupID:  p.ID,
			WasteType: p.WasteType,
			Weight:    p.Weight,
			Location:  p.Location,
		},
	}
	if len(candidates) == 0 {
		// Nobody in range or matching is down: announce it to everyone listening.
		msg.Global = true
	}
	for _, c := range candidates {
		msg.Rooms = append(msg.Rooms, string(c.ID))
	}
	s.publish(ctx, msg)
	return p, nil
}

func validateCreate(cmd CreateCommand) error {
	if !cmd.WasteType.Valid() {
		return fmt.Errorf("%w: waste type must be one of plastic, metal, e-waste, organic", ErrBadRequest)
	}
	if cmd.Weight <= 0 || math.IsNaN(cmd.Weight) || math.IsInf(cmd.Weight, 0) {
		return fmt.Errorf("%w: weight must be a positive number", ErrBadRequest)
	}
	if !cmd.Location.Valid() {
		return fmt.Errorf("%w: a valid location is required", ErrBadRequest)
	}
	if cmd.WasteType.RequiresVideo() && strings.TrimSpace(cmd.Video) == "" {
		return fmt.Errorf("%w: Video is mandatory for plastic, metal and e-waste pickups", ErrBadRequest)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, actor types.Actor, id types.ID) (*Pickup, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == types.RoleCitizen && p.CitizenID != actor.ID {
		return nil, fmt.Errorf("%w: pickup belongs to another citizen", ErrForbidden)
	}
	return p, nil
}

// List returns the pickups visible to actor.
func (s *Service) List(ctx context.Context, actor types.Actor) ([]Pickup, error) {
	var f ListFilter
	switch actor.Role {
	case types.RoleCitizen:
		f.CitizenID = &actor.ID
	case types.RoleCollector:
		f.Statuses = []Status{StatusCreated, StatusMatching}
		f.OrCollector = &actor.ID
	case types.RoleRecycler:
		f.Statuses = []Status{StatusCompleted}
	case types.RoleAdmin:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrForbidden, actor.Role)
	}
	return s.repo.List(ctx, f)
}

// Transition moves a pickup to cmd.Status on behalf of actor. The guard and
// the write form one compare-and-set; a lost race is re-validated against the
// fresh state before giving up with ErrConflict.
func (s *Service) Transition(ctx context.Context, actor types.Actor, cmd TransitionCommand) (*Pickup, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		p, err := s.repo.Get(ctx, cmd.PickupID)
		if err != nil {
			return nil, err
		}
		change, err := s.plan(ctx, p, actor, cmd)
		if err != nil {
			s.recordTransition(cmd.Status, actor.Role, err)
			return nil, err
		}
		ok, err := s.repo.UpdateStatus(ctx, change)
		if err != nil {
			s.recordTransition(cmd.Status, actor.Role, err)
			return nil, err
		}
		if !ok {
			continue
		}

		p.apply(change)
		s.recordTransition(change.To, actor.Role, nil)
		s.appendEvent(ctx, p.ID, change.From, change.To, actor, change.At)
		s.publishStatus(ctx, p)
		return p, nil
	}
	s.recordTransition(cmd.Status, actor.Role, ErrConflict)
	return nil, ErrConflict
}

func (s *Service) plan(ctx context.Context, p *Pickup, actor types.Actor, cmd TransitionCommand) (StatusChange, error) {
	to := cmd.Status
	if !to.Valid() {
		return StatusChange{}, fmt.Errorf("%w: unknown status %q", ErrBadRequest, to)
	}
	if !s.table.Permits(actor.Role) {
		return StatusChange{}, fmt.Errorf("%w: role %s cannot change pickup status", ErrForbidden, actor.Role)
	}
	if to == StatusSettled {
		return StatusChange{}, fmt.Errorf("%w: pickups are settled through a marketplace purchase", ErrInvalidState)
	}

	if to == StatusAccepted {
		if actor.Role != types.RoleCollector {
			return StatusChange{}, fmt.Errorf("%w: only collectors can accept a pickup", ErrForbidden)
		}
		if p.Status != StatusCreated && p.Status != StatusMatching {
			return StatusChange{}, fmt.Errorf("%w: pickup not available", ErrInvalidState)
		}
	} else if actor.Role == types.RoleCollector && !p.AssignedTo(actor.ID) {
		return StatusChange{}, fmt.Errorf("%w: pickup is assigned to another collector", ErrForbidden)
	}

	if !s.table.Allows(actor.Role, p.Status, to) {
		return StatusChange{}, fmt.Errorf("%w: cannot move pickup from %s to %s", ErrInvalidState, p.Status, to)
	}

	change := StatusChange{
		ID:      p.ID,
		From:    p.Status,
		Version: p.StatusVersion,
		To:      to,
		At:      time.Now().UTC(),
	}
	switch to {
	case StatusAccepted:
		id := actor.ID
		change.Collector = &id
	case StatusAssigned:
		if cmd.CollectorID == nil || *cmd.CollectorID == "" {
			return StatusChange{}, fmt.Errorf("%w: collector_id is required to assign a pickup", ErrBadRequest)
		}
		if s.collectors != nil {
			ok, err := s.collectors.IsCollector(ctx, *cmd.CollectorID)
			if err != nil {
				return StatusChange{}, fmt.Errorf("check collector: %w", err)
			}
			if !ok {
				return StatusChange{}, fmt.Errorf("%w: %s is not a registered collector", ErrBadRequest, *cmd.CollectorID)
			}
		}
		change.Collector = cmd.CollectorID
	case StatusMatching:
		// Re-opening a pickup releases its collector.
		change.Unassign = true
	case StatusCompleted:
		c, err := s.completion(ctx, p, cmd)
		if err != nil {
			return StatusChange{}, err
		}
		change.Completion = c
	}
	if to != StatusCompleted && cmd.VerifiedWeight != nil {
		s.logger.WithFields(logrus.Fields{"pickup_id": p.ID, "status": to}).Debug("verified weight ignored before completion")
	}
	return change, nil
}

func (s *Service) completion(ctx context.Context, p *Pickup, cmd TransitionCommand) (*Completion, error) {
	if p.VerifiedWeight != nil || p.FinalAmount != nil {
		return nil, fmt.Errorf("%w: settlement already recorded", ErrInvalidState)
	}
	if cmd.VerifiedWeight == nil {
		return nil, fmt.Errorf("%w: verified_weight is required to complete a pickup", ErrBadRequest)
	}
	w := *cmd.VerifiedWeight
	if w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
		return nil, fmt.Errorf("%w: verified_weight must be a positive number", ErrBadRequest)
	}
	if !cmd.PaymentMode.Valid() {
		return nil, fmt.Errorf("%w: payment_mode must be one of cash, electronic, none", ErrBadRequest)
	}
	amount, err := s.calc.Compute(ctx, string(p.WasteType), w)
	if err != nil {
		return nil, err
	}
	return &Completion{
		VerifiedWeight: w,
		FinalAmount:    amount,
		PaymentMode:    cmd.PaymentMode,
		// Cash changes hands at the doorstep.
		Paid: cmd.PaymentMode == PaymentCash,
	}, nil
}

func (s *Service) appendEvent(ctx context.Context, id types.ID, from, to Status, actor types.Actor, at time.Time) {
	actorID := actor.ID
	err := s.repo.AppendEvent(ctx, &Event{
		PickupID:   id,
		FromStatus: from,
		ToStatus:   to,
		ActorRole:  actor.Role,
		ActorID:    &actorID,
		CreatedAt:  at,
	})
	if err != nil {
		s.logger.WithError(err).WithField("pickup_id", id).Warn("append pickup event failed")
	}
}

func (s *Service) publishStatus(ctx context.Context, p *Pickup) {
	rooms := []string{string(p.ID), string(p.CitizenID)}
	if p.CollectorID != nil {
		rooms = append(rooms, string(*p.CollectorID))
	}
	s.publish(ctx, realtime.Message{
		Event: realtime.EventPickupStatusUpdated,
		Rooms: rooms,
		Payload: StatusUpdate{
			PickupID:    p.ID,
			Status:      p.Status,
			CitizenID:   p.CitizenID,
			CollectorID: p.CollectorID,
		},
	})
}

func (s *Service) publish(ctx context.Context, msg realtime.Message) {
	if s.notify == nil {
		return
	}
	s.notify.Publish(ctx, msg)
}

func (s *Service) recordTransition(to Status, role types.Role, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrForbidden):
		result = "forbidden"
	case errors.Is(err, ErrInvalidState):
		result = "invalid"
	case errors.Is(err, ErrBadRequest):
		result = "bad_request"
	case errors.Is(err, ErrConflict):
		result = "conflict"
	default:
		result = "error"
	}
	metrics.TransitionsTotal.WithLabelValues(string(to), string(role), result).Inc()
}

func cleanRefs(refs []string) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
