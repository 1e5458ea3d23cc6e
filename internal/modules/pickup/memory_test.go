package pickup

import (
	"context"
	"errors"
	"sync"

	"wastelink/internal/modules/matching"
	"wastelink/internal/realtime"
	"wastelink/internal/types"
)

// memRepo is an in-memory Repository with the same compare-and-set semantics as Store.
type memRepo struct {
	mu      sync.Mutex
	pickups map[types.ID]Pickup
	events  []Event
}

func newMemRepo() *memRepo {
	return &memRepo{pickups: map[types.ID]Pickup{}}
}

func (r *memRepo) Create(_ context.Context, p *Pickup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pickups[p.ID] = *p
	return nil
}

func (r *memRepo) Get(_ context.Context, id types.ID) (*Pickup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pickups[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (r *memRepo) List(_ context.Context, f ListFilter) ([]Pickup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Pickup
	for _, p := range r.pickups {
		if f.CitizenID != nil && p.CitizenID != *f.CitizenID {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, p.Status) &&
			!(f.OrCollector != nil && p.AssignedTo(*f.OrCollector)) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *memRepo) UpdateStatus(_ context.Context, c StatusChange) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pickups[c.ID]
	if !ok || p.Status != c.From || p.StatusVersion != c.Version {
		return false, nil
	}
	p.apply(c)
	r.pickups[c.ID] = p
	return true, nil
}

func (r *memRepo) AppendEvent(_ context.Context, e *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *e)
	return nil
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type fixedMatcher struct {
	candidates []matching.Candidate
	calls      int
}

func (m *fixedMatcher) FindBestCollectors(context.Context, matching.Request) []matching.Candidate {
	m.calls++
	return m.candidates
}

type capturePublisher struct {
	mu   sync.Mutex
	msgs []realtime.Message
}

func (c *capturePublisher) Publish(_ context.Context, msg realtime.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func (c *capturePublisher) named(event string) []realtime.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []realtime.Message
	for _, m := range c.msgs {
		if m.Event == event {
			out = append(out, m)
		}
	}
	return out
}

// knownCollectors is a CollectorRegistry over a fixed set of collector ids.
type knownCollectors map[types.ID]bool

func (k knownCollectors) IsCollector(_ context.Context, id types.ID) (bool, error) {
	return k[id], nil
}

type failingRegistry struct{}

func (failingRegistry) IsCollector(context.Context, types.ID) (bool, error) {
	return false, errors.New("users table unavailable")
}
