// README: Location handler for collector GPS updates.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wastelink/internal/http/middleware"
	"wastelink/internal/modules/location"
	"wastelink/internal/types"
)

type LocationHandler struct {
	location *location.Service
}

func NewLocationHandler(svc *location.Service) *LocationHandler {
	return &LocationHandler{location: svc}
}

type updateLocationReq struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	PickupID string  `json:"pickup_id"`
}

func (h *LocationHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateLocationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := location.UpdateCommand{
		CollectorID: types.ID(id),
		Position:    types.Point{Lat: req.Lat, Lng: req.Lng},
	}
	if req.PickupID != "" {
		pickupID := types.ID(req.PickupID)
		cmd.PickupID = &pickupID
	}
	if err := h.location.Update(c.Request.Context(), middleware.Caller(c), cmd); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}
