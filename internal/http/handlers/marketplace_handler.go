// README: Marketplace handlers for purchases, listings, the ledger and admin payouts.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wastelink/internal/http/middleware"
	"wastelink/internal/modules/marketplace"
	"wastelink/internal/types"
)

type MarketplaceHandler struct {
	market *marketplace.Service
}

func NewMarketplaceHandler(svc *marketplace.Service) *MarketplaceHandler {
	return &MarketplaceHandler{market: svc}
}

func (h *MarketplaceHandler) Purchase(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	tx, err := h.market.Purchase(c.Request.Context(), middleware.Caller(c), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, tx)
}

func (h *MarketplaceHandler) Listings(c *gin.Context) {
	listings, err := h.market.Listings(c.Request.Context(), middleware.Caller(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"listings": listings})
}

func (h *MarketplaceHandler) Transactions(c *gin.Context) {
	txs, err := h.market.Transactions(c.Request.Context(), middleware.Caller(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if txs == nil {
		txs = []marketplace.Transaction{}
	}
	writeJSON(c, http.StatusOK, gin.H{"transactions": txs})
}

func (h *MarketplaceHandler) Payout(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	tx, err := h.market.Payout(c.Request.Context(), middleware.Caller(c), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, tx)
}
