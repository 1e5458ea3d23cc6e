// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"wastelink/internal/media"
	"wastelink/internal/modules/location"
	"wastelink/internal/modules/marketplace"
	"wastelink/internal/modules/pickup"
	"wastelink/internal/modules/settlement"
	"wastelink/internal/modules/user"
)

type errorResponse struct {
	Error string `json:"error"`
}

// isValidID accepts the uuid-style ids issued by the service and provider uids.
func isValidID(v string) bool {
	if v == "" || len(v) > 128 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeServiceError maps module sentinel errors onto HTTP statuses.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case anyIs(err, pickup.ErrBadRequest, settlement.ErrInvalidInput, location.ErrBadRequest,
		user.ErrBadRequest, media.ErrUnsupportedType):
		writeError(c, http.StatusBadRequest, err.Error())
	case anyIs(err, pickup.ErrForbidden, marketplace.ErrForbidden, location.ErrForbidden, user.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case anyIs(err, pickup.ErrNotFound, user.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case anyIs(err, pickup.ErrInvalidState, pickup.ErrConflict,
		marketplace.ErrInvalidState, marketplace.ErrAlreadyPaid, marketplace.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(c, http.StatusGatewayTimeout, "request timed out")
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func anyIs(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// pathID reads and validates the :id parameter, writing a 400 when it is unusable.
func pathID(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid id")
		return "", false
	}
	return id, true
}
