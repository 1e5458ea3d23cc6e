// README: Pickup handlers for create/list/get/status and matching candidates.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"wastelink/internal/http/middleware"
	"wastelink/internal/modules/pickup"
	"wastelink/internal/types"
)

// CandidateSource lists the collectors a pickup was dispatched to.
type CandidateSource interface {
	Notified(ctx context.Context, pickupID types.ID) ([]types.ID, error)
}

type PickupHandler struct {
	pickups    *pickup.Service
	candidates CandidateSource
}

func NewPickupHandler(svc *pickup.Service, candidates CandidateSource) *PickupHandler {
	return &PickupHandler{pickups: svc, candidates: candidates}
}

type createPickupReq struct {
	WasteType string   `json:"waste_type"`
	Weight    float64  `json:"weight"`
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	Address   string   `json:"address"`
	Images    []string `json:"images"`
	Video     string   `json:"video"`
}

func (h *PickupHandler) Create(c *gin.Context) {
	var req createPickupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	p, err := h.pickups.Create(c.Request.Context(), middleware.Caller(c), pickup.CreateCommand{
		WasteType: pickup.WasteType(req.WasteType),
		Weight:    req.Weight,
		Location: pickup.Location{
			Point:   types.Point{Lat: req.Lat, Lng: req.Lng},
			Address: req.Address,
		},
		Images: req.Images,
		Video:  req.Video,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, p)
}

func (h *PickupHandler) List(c *gin.Context) {
	pickups, err := h.pickups.List(c.Request.Context(), middleware.Caller(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if pickups == nil {
		pickups = []pickup.Pickup{}
	}
	writeJSON(c, http.StatusOK, gin.H{"pickups": pickups})
}

func (h *PickupHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	p, err := h.pickups.Get(c.Request.Context(), middleware.Caller(c), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

type updateStatusReq struct {
	Status         string   `json:"status" binding:"required"`
	VerifiedWeight *float64 `json:"verified_weight"`
	PaymentMode    string   `json:"payment_mode"`
	CollectorID    string   `json:"collector_id"`
}

func (h *PickupHandler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := pickup.TransitionCommand{
		PickupID:       types.ID(id),
		Status:         pickup.Status(req.Status),
		VerifiedWeight: req.VerifiedWeight,
		PaymentMode:    pickup.PaymentMode(req.PaymentMode),
	}
	if req.CollectorID != "" {
		collectorID := types.ID(req.CollectorID)
		cmd.CollectorID = &collectorID
	}
	p, err := h.pickups.Transition(c.Request.Context(), middleware.Caller(c), cmd)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

func (h *PickupHandler) Candidates(c *gin.Context) {
	if middleware.Caller(c).Role != types.RoleAdmin {
		writeError(c, http.StatusForbidden, "forbidden: admin role required")
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	ids, err := h.candidates.Notified(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if ids == nil {
		ids = []types.ID{}
	}
	writeJSON(c, http.StatusOK, gin.H{"pickup_id": id, "collectors": ids})
}
