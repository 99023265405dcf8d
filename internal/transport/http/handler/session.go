package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ragchat/internal/app"
	"ragchat/internal/transport/http/response"
)

type SessionHandler struct {
	sessions *app.SessionService
}

type CreateSessionRequest struct {
	Metadata map[string]string `json:"metadata"`
}

func NewSessionHandler(sessions *app.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) Create(c *gin.Context) {
	var req CreateSessionRequest
	// The body is optional; a bare POST creates a session with no metadata.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
			return
		}
	}
	session, err := h.sessions.Create(req.Metadata)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "create session failed")
		return
	}
	response.OK(c, gin.H{
		"session_id": session.ID,
		"created_at": session.CreatedAt,
		"metadata":   session.MetadataMap(),
	})
}

func (h *SessionHandler) Delete(c *gin.Context) {
	sessionID := c.Param("id")
	if err := h.sessions.Delete(c.Request.Context(), sessionID); err != nil {
		if errors.Is(err, app.ErrSessionNotFound) {
			response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete session failed")
		return
	}
	response.OK(c, gin.H{"deleted_session_id": sessionID})
}
