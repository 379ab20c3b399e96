package chat

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"renovix-backend/internal/llm"
	"renovix-backend/internal/shared/server/respond"
	"renovix-backend/internal/shared/telemetry"
)

// Handler proxies chat requests to the AI gateway and relays the SSE
// stream back to the caller.
type Handler struct {
	LLM llm.Client
}

// NewHandler constructs a chat Handler.
func NewHandler(client llm.Client) *Handler {
	return &Handler{LLM: client}
}

// RegisterRoutes attaches chat routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/chat/stream", h.stream)
}

type chatRequest struct {
	SessionID  string        `json:"sessionId"`
	Message    string        `json:"message"`
	ReportText string        `json:"pdfText"`
	Diagnosis  string        `json:"diagnosis"`
	History    []llm.Message `json:"history"`
}

func (h *Handler) stream(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.SessionID) == "" || strings.TrimSpace(req.Message) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "sessionId and message are required", nil)
		return
	}

	messages := llm.BuildChatMessages(req.Diagnosis, req.ReportText, req.History, req.Message)
	upstream, err := h.LLM.StreamChat(c.Request.Context(), messages)
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			respond.Error(c, http.StatusServiceUnavailable, "not_configured", "AI gateway not configured", nil)
			return
		}
		telemetry.Error("chat.upstream_failed", map[string]any{
			"session_id": req.SessionID,
			"err":        err.Error(),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "AI gateway error", nil)
		return
	}
	defer upstream.Body.Close()

	switch {
	case upstream.Status == http.StatusTooManyRequests:
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "Rate limits exceeded, please try again later.", nil)
		return
	case upstream.Status == http.StatusPaymentRequired:
		respond.Error(c, http.StatusPaymentRequired, "payment_required", "Payment required, please add funds to your Lovable AI workspace.", nil)
		return
	case upstream.Status < 200 || upstream.Status > 299:
		telemetry.Error("chat.upstream_status", map[string]any{
			"session_id": req.SessionID,
			"status":     upstream.Status,
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "AI gateway error", nil)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	relay(c.Writer, upstream.Body)
}

// relay copies the upstream SSE body chunk by chunk, flushing after
// every read so deltas reach the client as they arrive.
func relay(w gin.ResponseWriter, src io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			w.Flush()
		}
		if err != nil {
			return
		}
	}
}
