package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
)

// Message is a chat-completions message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// DiagnoseInput carries the material for a scan diagnosis request.
type DiagnoseInput struct {
	ReportText string
	FileName   string
	MimeType   string
}

// StreamResponse is the raw result of a streaming chat call. Status is
// the upstream HTTP status; Body is the SSE stream (or the error body
// for non-2xx) and must be closed by the caller.
type StreamResponse struct {
	Status int
	Body   io.ReadCloser
}

// Client abstracts the AI gateway.
type Client interface {
	// Diagnose returns the structured diagnosis JSON for a scan.
	Diagnose(ctx context.Context, input DiagnoseInput) (json.RawMessage, error)
	// StreamChat sends a chat request with stream enabled and hands
	// back the upstream response for relaying.
	StreamChat(ctx context.Context, messages []Message) (*StreamResponse, error)
}

// ErrNotConfigured is returned when no gateway credentials are set and
// no stub mode applies.
var ErrNotConfigured = errors.New("AI gateway not configured")
