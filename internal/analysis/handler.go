package analysis

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"renovix-backend/internal/sessions"
	"renovix-backend/internal/shared/server/middleware"
	"renovix-backend/internal/shared/server/respond"
	"renovix-backend/internal/uploads"
)

// Handler wires the analyze endpoint.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyze", h.analyze)
}

type analyzeRequest struct {
	SessionID  string `json:"sessionId"`
	ReportText string `json:"pdfText"`
}

type analyzeResponse struct {
	Success bool                 `json:"success"`
	Results *sessions.ScanResult `json:"results,omitempty"`
}

func (h *Handler) analyze(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "sessionId is required", nil)
		return
	}

	ctx := WithRequestID(c.Request.Context(), c.GetString("requestId"))
	if err := h.Svc.Start(ctx, userID, req.SessionID, req.ReportText); err != nil {
		switch {
		case errors.Is(err, sessions.ErrNotFound):
			respond.Error(c, http.StatusNotFound, CodeSessionNotFound, CodeMessage(CodeSessionNotFound), nil)
		case errors.Is(err, sessions.ErrForbidden):
			respond.Error(c, http.StatusForbidden, CodeAuthMismatch, CodeMessage(CodeAuthMismatch), nil)
		case errors.Is(err, uploads.ErrNotFound):
			respond.Error(c, http.StatusBadRequest, CodeInvalidInput, CodeMessage(CodeInvalidInput), nil)
		case errors.Is(err, sessions.ErrInvalidTransition):
			respond.Error(c, http.StatusConflict, "already_processed", "session was already analyzed", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, CodeAnalysisFailed, CodeMessage(CodeAnalysisFailed), nil)
		}
		return
	}

	if h.Svc.Sync {
		result, err := h.Svc.Sessions.Result(c.Request.Context(), req.SessionID)
		if err == nil {
			respond.OK(c, analyzeResponse{Success: true, Results: &result})
			return
		}
		// The inline run failed; the session row carries the code.
		session, getErr := h.Svc.Sessions.Get(c.Request.Context(), req.SessionID)
		if getErr == nil && session.Status == sessions.StatusFailed {
			respond.Error(c, http.StatusUnprocessableEntity, session.ErrorCode, CodeMessage(session.ErrorCode), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, CodeAnalysisFailed, CodeMessage(CodeAnalysisFailed), nil)
		return
	}

	respond.JSON(c, http.StatusAccepted, analyzeResponse{Success: true})
}
