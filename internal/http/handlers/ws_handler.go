// README: WebSocket handler; subscribes the caller to their own room and to pickups they take part in.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"wastelink/internal/http/middleware"
	"wastelink/internal/modules/pickup"
	"wastelink/internal/realtime"
	"wastelink/internal/types"
)

type WSHandler struct {
	hub     *realtime.Hub
	pickups *pickup.Service
}

func NewWSHandler(hub *realtime.Hub, pickups *pickup.Service) *WSHandler {
	return &WSHandler{hub: hub, pickups: pickups}
}

func (h *WSHandler) Serve(c *gin.Context) {
	actor := middleware.Caller(c)
	rooms := []string{string(actor.ID)}
	for _, id := range strings.Split(c.Query("rooms"), ",") {
		id = strings.TrimSpace(id)
		if id == "" || !isValidID(id) {
			continue
		}
		p, err := h.pickups.Get(c.Request.Context(), actor, types.ID(id))
		if err != nil {
			writeServiceError(c, err)
			return
		}
		if !partyTo(actor, p) {
			writeError(c, http.StatusForbidden, "forbidden: not a party to pickup "+id)
			return
		}
		rooms = append(rooms, id)
	}
	if err := h.hub.Serve(c.Writer, c.Request, rooms); err != nil {
		// the upgrader already wrote the handshake error
		_ = c.Error(err)
	}
}

func partyTo(actor types.Actor, p *pickup.Pickup) bool {
	switch actor.Role {
	case types.RoleAdmin:
		return true
	case types.RoleCitizen:
		return p.CitizenID == actor.ID
	case types.RoleCollector:
		return p.AssignedTo(actor.ID)
	}
	return false
}
