package uploads

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"renovix-backend/internal/filecheck"
	"renovix-backend/internal/sessions"
	"renovix-backend/internal/shared/server/middleware"
	"renovix-backend/internal/shared/server/respond"
)

// Handler wires the upload endpoint.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches upload routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sessions/:id/upload", h.upload)
}

func (h *Handler) upload(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	sessionID := c.Param("id")

	// Cap the request body a little above the policy limit so the
	// policy error, not the transport error, reaches the client.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, filecheck.MaxSizeBytes+1<<20)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	meta := filecheck.FileMeta{
		Name:      fileHeader.Filename,
		MimeType:  fileHeader.Header.Get("Content-Type"),
		SizeBytes: fileHeader.Size,
	}

	img, err := h.Svc.Upload(c.Request.Context(), userID, sessionID, meta, file)
	if err != nil {
		switch {
		case errors.Is(err, filecheck.ErrFileTooLarge):
			respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "file exceeds the 10 MB limit", nil)
		case errors.Is(err, filecheck.ErrSignatureMismatch):
			respond.Error(c, http.StatusBadRequest, "signature_mismatch", "file content does not match its declared type", nil)
		case errors.Is(err, filecheck.ErrInvalidType):
			respond.Error(c, http.StatusBadRequest, "invalid_file_type", "file type is not supported", nil)
		case errors.Is(err, sessions.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "session not found", nil)
		case errors.Is(err, sessions.ErrForbidden):
			respond.Error(c, http.StatusForbidden, "forbidden", "session belongs to another user", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store upload", nil)
		}
		return
	}

	respond.Created(c, img)
}
