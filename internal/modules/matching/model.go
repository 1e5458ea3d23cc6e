// README: Matching candidates, filters and the pickup reference handed to the engine.
package matching

import "wastelink/internal/types"

// DefaultRadiusM bounds collector matching around a pickup.
const DefaultRadiusM = 10000.0

// Candidate is a collector eligible for a pickup, nearest first.
type Candidate struct {
	ID        types.ID    `json:"id"`
	Position  types.Point `json:"position"`
	DistanceM float64     `json:"distance_m"`
}

// Filter restricts a radius search to a capability set.
type Filter struct {
	Role         types.Role
	VerifiedOnly bool
}

// CollectorFilter is the capability set used for pickup matching.
var CollectorFilter = Filter{Role: types.RoleCollector, VerifiedOnly: true}

// Request describes the pickup being matched.
type Request struct {
	PickupID  types.ID
	Location  types.Point
	WasteType string
}
