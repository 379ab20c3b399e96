package workerproc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"renovix-backend/internal/analysis"
	"renovix-backend/internal/queue"
	"renovix-backend/internal/shared/telemetry"
)

// Sentinel errors let callers decide whether a message should be retried
// or dropped. Decode failures are permanent; everything else lands on the
// session row and the message is done either way.
var (
	ErrEmptyBody        = errors.New("empty message body")
	ErrDecode           = errors.New("decode message")
	ErrMissingSessionID = errors.New("missing sessionId")
)

// ParseMessage validates and decodes a queue message body.
func ParseMessage(body string) (queue.Message, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return queue.Message{}, ErrEmptyBody
	}

	msg, err := queue.DecodeMessage([]byte(trimmed))
	if err != nil {
		return queue.Message{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if strings.TrimSpace(msg.SessionID) == "" {
		return queue.Message{}, ErrMissingSessionID
	}
	return msg, nil
}

// HandleMessage parses one queue message and runs the analysis pipeline
// for its session. The pipeline records its own success or failure on
// the session, so only parse errors propagate to the caller.
func HandleMessage(ctx context.Context, svc *analysis.Service, body string) error {
	msg, err := ParseMessage(body)
	if err != nil {
		telemetry.Error("worker.parse_failed", map[string]any{"err": err.Error()})
		return err
	}

	ctx = analysis.WithRequestID(ctx, msg.RequestID)
	telemetry.Info("worker.message", map[string]any{
		"request_id": msg.RequestID,
		"session_id": msg.SessionID,
	})
	svc.Process(ctx, msg.SessionID, msg.ReportText)
	return nil
}
