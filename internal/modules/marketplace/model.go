// README: Marketplace transactions and listings.
package marketplace

import (
	"time"

	"wastelink/internal/modules/pickup"
	"wastelink/internal/types"
)

type TxType string

const (
	TxPurchase TxType = "purchase"
	TxPayout   TxType = "payout"
)

type TxStatus string

const TxCompleted TxStatus = "completed"

// Transaction is append-only; a failed purchase leaves no row behind.
type Transaction struct {
	ID          types.ID    `json:"id"`
	PickupID    types.ID    `json:"pickup_id"`
	CitizenID   types.ID    `json:"citizen_id"`
	CollectorID *types.ID   `json:"collector_id,omitempty"`
	RecyclerID  *types.ID   `json:"recycler_id,omitempty"`
	Amount      types.Money `json:"amount"`
	Type        TxType      `json:"type"`
	Status      TxStatus    `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Listing is a completed pickup offered to recyclers with a market quote.
type Listing struct {
	Pickup pickup.Pickup `json:"pickup"`
	Price  *types.Money  `json:"price,omitempty"`
}

type TxFilter struct {
	CitizenID   *types.ID
	CollectorID *types.ID
	RecyclerID  *types.ID
}

// SettleGuard is the pickup state a purchase was priced against.
type SettleGuard struct {
	From    pickup.Status
	Version int
	Actor   types.Actor
}
