// README: Collector location snapshot for persistence and replay.
package location

import (
	"time"

	"wastelink/internal/types"
)

type Snapshot struct {
	ID          int64
	CollectorID types.ID
	PickupID    *types.ID
	Position    types.Point
	RecordedAt  time.Time
}

// RelayPayload is broadcast to a pickup room while the assigned collector travels.
type RelayPayload struct {
	PickupID    types.ID    `json:"pickup_id"`
	CollectorID types.ID    `json:"collector_id"`
	Position    types.Point `json:"position"`
	RecordedAt  time.Time   `json:"recorded_at"`
}
