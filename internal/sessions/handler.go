package sessions

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"renovix-backend/internal/shared/server/middleware"
	"renovix-backend/internal/shared/server/respond"
)

// SubscribeWindow caps how long one events subscription may stay open.
// Jobs are expected to finish well within it; the client treats expiry
// as a timeout failure.
const SubscribeWindow = 5 * time.Minute

// Handler wires HTTP handlers to the session service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches session routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sessions", h.create)
	rg.GET("/sessions/:id", h.get)
	rg.GET("/sessions/:id/result", h.result)
	rg.GET("/sessions/:id/events", h.events)
}

func (h *Handler) create(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	session, err := h.Svc.Create(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create session", nil)
		return
	}
	respond.Created(c, session)
}

func (h *Handler) get(c *gin.Context) {
	session, ok := h.loadOwned(c)
	if !ok {
		return
	}
	respond.OK(c, session)
}

func (h *Handler) result(c *gin.Context) {
	session, ok := h.loadOwned(c)
	if !ok {
		return
	}
	result, err := h.Svc.Result(c.Request.Context(), session.ID)
	if err != nil {
		switch {
		case errors.Is(err, ErrResultNotReady):
			respond.Error(c, http.StatusConflict, "result_not_ready", "analysis has not completed", nil)
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "result not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load result", nil)
		}
		return
	}
	respond.OK(c, result)
}

// events streams status snapshots as server-sent events until the
// session reaches a terminal state, the subscription window expires, or
// the client disconnects.
func (h *Handler) events(c *gin.Context) {
	session, ok := h.loadOwned(c)
	if !ok {
		return
	}

	updates, cancel := h.Svc.Subscribe(session.ID)
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)

	// Initial snapshot so subscribers never start blind.
	writeEvent(c, Update{Status: session.Status, Progress: session.Progress, ErrorCode: session.ErrorCode})
	if session.Terminal() {
		return
	}

	window := time.NewTimer(SubscribeWindow)
	defer window.Stop()

	for {
		select {
		case u, open := <-updates:
			if !open {
				return
			}
			writeEvent(c, u)
			if u.Status == StatusCompleted || u.Status == StatusFailed {
				return
			}
		case <-window.C:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

func writeEvent(c *gin.Context, u Update) {
	payload, err := json.Marshal(u)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
	c.Writer.Flush()
}

func (h *Handler) loadOwned(c *gin.Context) (ScanSession, bool) {
	userID := middleware.UserIDFromContext(c)
	session, err := h.Svc.GetOwned(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "session not found", nil)
		case errors.Is(err, ErrForbidden):
			respond.Error(c, http.StatusForbidden, "forbidden", "session belongs to another user", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load session", nil)
		}
		return ScanSession{}, false
	}
	return session, true
}
