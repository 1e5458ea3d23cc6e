// README: Pickup aggregate, status, waste and payment enumerations.
package pickup

import (
	"time"

	"wastelink/internal/types"
)

type Status string

const (
	StatusNone      Status = "none"
	StatusCreated   Status = "created"
	StatusMatching  Status = "matching"
	StatusAssigned  Status = "assigned"
	StatusAccepted  Status = "accepted"
	StatusOnTheWay  Status = "on_the_way"
	StatusArrived   Status = "arrived"
	StatusCompleted Status = "completed"
	StatusSettled   Status = "settled"
	StatusCancelled Status = "cancelled"
)

var allStatuses = []Status{
	StatusCreated, StatusMatching, StatusAssigned, StatusAccepted,
	StatusOnTheWay, StatusArrived, StatusCompleted, StatusSettled, StatusCancelled,
}

func (s Status) Valid() bool {
	for _, v := range allStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal statuses have no outgoing transitions.
func (s Status) Terminal() bool {
	return s == StatusSettled || s == StatusCancelled
}

type WasteType string

const (
	WastePlastic WasteType = "plastic"
	WasteMetal   WasteType = "metal"
	WasteEWaste  WasteType = "e-waste"
	WasteOrganic WasteType = "organic"
)

func (w WasteType) Valid() bool {
	switch w {
	case WastePlastic, WasteMetal, WasteEWaste, WasteOrganic:
		return true
	}
	return false
}

// RequiresVideo reports whether a pickup of this category must carry a video.
func (w WasteType) RequiresVideo() bool {
	return w != WasteOrganic
}

type PaymentMode string

const (
	PaymentCash       PaymentMode = "cash"
	PaymentElectronic PaymentMode = "electronic"
	PaymentNone       PaymentMode = "none"
)

func (m PaymentMode) Valid() bool {
	switch m {
	case PaymentCash, PaymentElectronic, PaymentNone:
		return true
	}
	return false
}

type Location struct {
	types.Point
	Address string `json:"address"`
}

type Pickup struct {
	ID             types.ID     `json:"id"`
	CitizenID      types.ID     `json:"citizen_id"`
	CollectorID    *types.ID    `json:"collector_id,omitempty"`
	Status         Status       `json:"status"`
	StatusVersion  int          `json:"status_version"`
	WasteType      WasteType    `json:"waste_type"`
	Weight         float64      `json:"weight"`
	Location       Location     `json:"location"`
	Images         []string     `json:"images"`
	Video          *string      `json:"video,omitempty"`
	VerifiedWeight *float64     `json:"verified_weight,omitempty"`
	FinalAmount    *types.Money `json:"final_amount,omitempty"`
	PaymentMode    *PaymentMode `json:"payment_mode,omitempty"`
	Paid           bool         `json:"paid"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
}

// AssignedTo reports whether collectorID is the pickup's collector.
func (p *Pickup) AssignedTo(collectorID types.ID) bool {
	return p.CollectorID != nil && *p.CollectorID == collectorID
}

type Event struct {
	ID         int64
	PickupID   types.ID
	FromStatus Status
	ToStatus   Status
	ActorRole  types.Role
	ActorID    *types.ID
	CreatedAt  time.Time
}

// Completion carries the settlement recorded on the COMPLETED transition.
type Completion struct {
	VerifiedWeight float64
	FinalAmount    types.Money
	PaymentMode    PaymentMode
	Paid           bool
}

// StatusChange is a compare-and-set against (From, Version).
type StatusChange struct {
	ID         types.ID
	From       Status
	Version    int
	To         Status
	Collector  *types.ID
	Unassign   bool
	Completion *Completion
	At         time.Time
}

// apply mirrors a committed StatusChange onto the in-memory aggregate.
func (p *Pickup) apply(c StatusChange) {
	p.Status = c.To
	p.StatusVersion = c.Version + 1
	p.UpdatedAt = c.At
	if c.Unassign {
		p.CollectorID = nil
	}
	if c.Collector != nil {
		id := *c.Collector
		p.CollectorID = &id
	}
	if c.Completion != nil {
		w := c.Completion.VerifiedWeight
		amount := c.Completion.FinalAmount
		mode := c.Completion.PaymentMode
		at := c.At
		p.VerifiedWeight = &w
		p.FinalAmount = &amount
		p.PaymentMode = &mode
		p.Paid = c.Completion.Paid
		p.CompletedAt = &at
	}
}

// StatusUpdate is the payload of a pickup_status_updated notification.
type StatusUpdate struct {
	PickupID    types.ID  `json:"pickup_id"`
	Status      Status    `json:"status"`
	CitizenID   types.ID  `json:"citizen_id"`
	CollectorID *types.ID `json:"collector_id,omitempty"`
}

// NewPickupNotice is sent to matched collectors.
type NewPickupNotice struct {
	PickupID  types.ID  `json:"pickup_id"`
	WasteType WasteType `json:"waste_type"`
	Weight    float64   `json:"weight"`
	Location  Location  `json:"location"`
}
