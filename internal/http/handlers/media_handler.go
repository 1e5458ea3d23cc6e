// README: Media upload handler; stores the file and returns its URL for use on a pickup.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wastelink/internal/http/middleware"
	"wastelink/internal/media"
	"wastelink/internal/types"
)

type MediaHandler struct {
	storage *media.Storage
}

func NewMediaHandler(storage *media.Storage) *MediaHandler {
	return &MediaHandler{storage: storage}
}

func (h *MediaHandler) Upload(c *gin.Context) {
	if h.storage == nil {
		writeError(c, http.StatusServiceUnavailable, "media storage not configured")
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, http.StatusBadRequest, "missing file")
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, http.StatusBadRequest, "unreadable file")
		return
	}
	defer f.Close()

	url, err := h.storage.Put(c.Request.Context(), media.Upload{
		OwnerID:  types.ID(middleware.CallerUID(c)),
		Filename: fh.Filename,
		Size:     fh.Size,
		Body:     f,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"url": url})
}
