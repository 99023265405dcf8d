package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"ragchat/internal/app"
	"ragchat/internal/transport/http/response"
)

type DocumentHandler struct {
	sessions       *app.SessionService
	ingest         *app.IngestService
	maxUploadBytes int64
}

func NewDocumentHandler(sessions *app.SessionService, ingest *app.IngestService, maxUploadBytes int64) *DocumentHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &DocumentHandler{
		sessions:       sessions,
		ingest:         ingest,
		maxUploadBytes: maxUploadBytes,
	}
}

// Upload accepts a multipart file, records it and returns 202 immediately;
// processing happens on the ingest worker. Status is visible via List.
func (h *DocumentHandler) Upload(c *gin.Context) {
	sessionID := c.Param("id")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file upload")
		return
	}
	if fileHeader.Size > h.maxUploadBytes {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file too large")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "open upload failed")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "read upload failed")
		return
	}
	if int64(len(content)) > h.maxUploadBytes {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file too large")
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	doc, err := h.ingest.Upload(c.Request.Context(), sessionID, fileHeader.Filename, mimeType, content)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrSessionNotFound):
			response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
		case errors.Is(err, app.ErrUnsupportedFileType), errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "accept upload failed")
		}
		return
	}

	response.Accepted(c, gin.H{
		"document_id": doc.ID,
		"session_id":  doc.SessionID,
		"filename":    doc.Filename,
		"status":      doc.Status,
	})
}

func (h *DocumentHandler) List(c *gin.Context) {
	sessionID := c.Param("id")
	docs, err := h.sessions.ListDocuments(sessionID)
	if err != nil {
		if errors.Is(err, app.ErrSessionNotFound) {
			response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		return
	}
	response.OK(c, docs)
}

func (h *DocumentHandler) Reingest(c *gin.Context) {
	sessionID := c.Param("id")
	documentID := c.Param("docID")

	err := h.ingest.Reingest(c.Request.Context(), sessionID, documentID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrSessionNotFound):
			response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
		case errors.Is(err, app.ErrDocumentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
		case errors.Is(err, app.ErrDocumentBusy):
			response.Error(c, http.StatusConflict, response.CodeDocumentBusy, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "reingest failed")
		}
		return
	}
	response.Accepted(c, gin.H{"document_id": documentID})
}
