// README: User handlers for self profile and admin verification.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wastelink/internal/http/middleware"
	"wastelink/internal/modules/user"
	"wastelink/internal/types"
)

type UserHandler struct {
	users *user.Service
}

func NewUserHandler(svc *user.Service) *UserHandler {
	return &UserHandler{users: svc}
}

func (h *UserHandler) Me(c *gin.Context) {
	p, err := h.users.Get(c.Request.Context(), middleware.Caller(c).ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

type upsertMeReq struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	DeviceToken string `json:"device_token"`
}

func (h *UserHandler) UpsertMe(c *gin.Context) {
	var req upsertMeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	p, err := h.users.Upsert(c.Request.Context(), middleware.Caller(c), user.UpsertCommand{
		Name:        req.Name,
		Phone:       req.Phone,
		DeviceToken: req.DeviceToken,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

type verifyReq struct {
	Verified *bool `json:"verified"`
}

func (h *UserHandler) Verify(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	verified := true
	var req verifyReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid json")
			return
		}
		if req.Verified != nil {
			verified = *req.Verified
		}
	}
	p, err := h.users.SetVerified(c.Request.Context(), middleware.Caller(c), types.ID(id), verified)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}
