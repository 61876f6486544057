package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/session"
)

// SessionHandler exposes read-only views of the sessions this agent hosts.
type SessionHandler struct {
	registry *session.Registry
}

func NewSessionHandler(registry *session.Registry) *SessionHandler {
	return &SessionHandler{registry: registry}
}

// ListSessions godoc
// GET /api/v1/sessions?quiz_code=ABC123
func (h *SessionHandler) ListSessions(c *gin.Context) {
	response.Success(c, http.StatusOK, h.registry.Snapshots(c.Query("quiz_code")))
}

// GetSession godoc
// GET /api/v1/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	ctrl, ok := h.registry.Get(c.Param("id"))
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	response.Success(c, http.StatusOK, ctrl.Snapshot())
}
