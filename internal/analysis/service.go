package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"renovix-backend/internal/filecheck"
	"renovix-backend/internal/llm"
	"renovix-backend/internal/pdftext"
	"renovix-backend/internal/queue"
	"renovix-backend/internal/sessions"
	"renovix-backend/internal/shared/metrics"
	"renovix-backend/internal/shared/telemetry"
	"renovix-backend/internal/uploads"
)

// Pipeline stages, mirrored by progress pushes on the session.
var stages = []struct {
	Progress int
	Message  string
}{
	{25, "Preprocessing image..."},
	{50, "Feature extraction..."},
	{75, "Running classification model..."},
	{90, "Generating recommendations..."},
}

// Service owns the analyze pipeline. Submissions are verified
// synchronously, then processed by the queue worker when a queue is
// configured, or by an in-process goroutine otherwise.
type Service struct {
	Sessions  *sessions.Service
	Uploads   *uploads.Service
	Extractor *pdftext.Extractor
	LLM       llm.Client
	Queue     queue.Client

	// Sync runs the pipeline inline before Start returns. Dev only.
	Sync bool
}

// Start verifies the session and its upload, then hands the job off for
// processing. Returned errors carry pipeline codes via Classify.
func (s *Service) Start(ctx context.Context, userID, sessionID, reportText string) error {
	session, err := s.Sessions.GetOwned(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if session.Status != sessions.StatusPending {
		return fmt.Errorf("%w: analyze in status %s", sessions.ErrInvalidTransition, session.Status)
	}
	if _, err := s.Uploads.LatestBySession(ctx, sessionID); err != nil {
		return err
	}

	if s.Sync {
		s.Process(ctx, sessionID, reportText)
		return nil
	}
	if s.Queue != nil {
		msg := queue.Message{
			SessionID:  sessionID,
			ReportText: reportText,
			RequestID:  requestIDFromContext(ctx),
			EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
			Version:    1,
		}
		if err := s.Queue.Send(ctx, msg); err != nil {
			return fmt.Errorf("enqueue analysis: %w", err)
		}
		return nil
	}

	go s.Process(backgroundWithRequestID(ctx), sessionID, reportText)
	return nil
}

// Process runs the full pipeline for one session. Every exit path
// leaves the session in a terminal state; a panic is converted into a
// failed session rather than a stuck one.
func (s *Service) Process(ctx context.Context, sessionID, reportText string) {
	defer func() {
		if r := recover(); r != nil {
			s.fail(ctx, sessionID, fmt.Errorf("panic: %v", r))
		}
	}()

	startedAt := time.Now().UTC()
	if err := s.Sessions.SetProcessing(ctx, sessionID, 10); err != nil {
		s.fail(ctx, sessionID, fmt.Errorf("set processing: %w", err))
		return
	}
	metrics.IncAnalysisStarted()

	img, err := s.Uploads.LatestBySession(ctx, sessionID)
	if err != nil {
		s.fail(ctx, sessionID, fmt.Errorf("image lookup: %w", err))
		return
	}

	// The stored object is revalidated against the same policy the
	// client ran; client-side results are advisory only.
	data, err := s.loadObject(ctx, img)
	if err != nil {
		s.fail(ctx, sessionID, err)
		return
	}
	if err := filecheck.Check(filecheck.FileMeta{Name: img.FileName, MimeType: img.MimeType, SizeBytes: int64(len(data))}, head(data)); err != nil {
		s.fail(ctx, sessionID, err)
		return
	}
	s.advance(ctx, sessionID, 0)

	if isPDF(img.MimeType) && strings.TrimSpace(reportText) == "" {
		reportText, err = s.Extractor.Extract(ctx, data)
		if err != nil {
			s.fail(ctx, sessionID, fmt.Errorf("extract report text: %w", err))
			return
		}
	}
	s.advance(ctx, sessionID, 1)

	s.advance(ctx, sessionID, 2)
	raw, err := s.LLM.Diagnose(ctx, llm.DiagnoseInput{
		ReportText: reportText,
		FileName:   img.FileName,
		MimeType:   img.MimeType,
	})
	if err != nil {
		s.fail(ctx, sessionID, fmt.Errorf("llm diagnose: %w", err))
		return
	}
	s.advance(ctx, sessionID, 3)

	result, err := decodeDiagnosis(raw)
	if err != nil {
		s.fail(ctx, sessionID, fmt.Errorf("llm output invalid: %w", err))
		return
	}

	if err := s.Sessions.Complete(ctx, sessionID, result); err != nil {
		s.fail(ctx, sessionID, fmt.Errorf("store result: %w", err))
		return
	}
	completedAt := time.Now().UTC()
	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDurationMs(float64(completedAt.Sub(startedAt).Microseconds()) / 1000.0)
	telemetry.Info("analysis.completed", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"session_id":  sessionID,
		"diagnosis":   result.Diagnosis,
		"duration_ms": completedAt.Sub(startedAt).Milliseconds(),
	})
}

func (s *Service) advance(ctx context.Context, sessionID string, stage int) {
	st := stages[stage]
	// Stale stage updates are dropped by the session service; a repeat
	// here is harmless.
	if err := s.Sessions.SetProgress(ctx, sessionID, st.Progress); err != nil {
		telemetry.Error("analysis.progress_failed", map[string]any{"session_id": sessionID, "err": err.Error()})
		return
	}
	telemetry.Info("analysis.stage", map[string]any{
		"session_id": sessionID,
		"progress":   st.Progress,
		"stage":      st.Message,
	})
}

func (s *Service) fail(ctx context.Context, sessionID string, err error) {
	code := Classify(err)
	// Failing must succeed even when the inbound context is gone.
	if failErr := s.Sessions.Fail(context.WithoutCancel(ctx), sessionID, code); failErr != nil {
		telemetry.Error("analysis.fail_update_failed", map[string]any{
			"session_id": sessionID,
			"err":        failErr.Error(),
			"orig":       err.Error(),
		})
	}
	metrics.IncAnalysisFailed()
	telemetry.Error("analysis.failed", map[string]any{
		"request_id": requestIDFromContext(ctx),
		"session_id": sessionID,
		"code":       code,
		"err":        sanitizeError(err),
	})
}

func (s *Service) loadObject(ctx context.Context, img uploads.ScanImage) ([]byte, error) {
	rc, err := s.Uploads.Open(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("open stored object: %w", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read stored object: %w", err)
	}
	return data, nil
}

// diagnosisPayload is the schema the model is instructed to return.
type diagnosisPayload struct {
	Diagnosis       string          `json:"diagnosis"`
	Confidence      float64         `json:"confidence"`
	Findings        json.RawMessage `json:"findings"`
	Recommendations string          `json:"recommendations"`
}

func decodeDiagnosis(raw json.RawMessage) (sessions.ScanResult, error) {
	var parsed diagnosisPayload
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return sessions.ScanResult{}, err
	}
	if strings.TrimSpace(parsed.Diagnosis) == "" {
		return sessions.ScanResult{}, errors.New("missing diagnosis")
	}
	if parsed.Confidence < 0 {
		parsed.Confidence = 0
	}
	if parsed.Confidence > 1 {
		parsed.Confidence = 1
	}
	return sessions.ScanResult{
		Diagnosis:       parsed.Diagnosis,
		Confidence:      parsed.Confidence,
		Findings:        parsed.Findings,
		Recommendations: parsed.Recommendations,
	}, nil
}

// Classify maps a pipeline error onto its client-facing code.
func Classify(err error) string {
	switch {
	case err == nil:
		return CodeAnalysisFailed
	case errors.Is(err, sessions.ErrNotFound):
		return CodeSessionNotFound
	case errors.Is(err, sessions.ErrForbidden):
		return CodeAuthMismatch
	case errors.Is(err, uploads.ErrNotFound),
		errors.Is(err, filecheck.ErrFileTooLarge),
		errors.Is(err, filecheck.ErrInvalidType),
		errors.Is(err, filecheck.ErrSignatureMismatch):
		return CodeInvalidInput
	case errors.Is(err, pdftext.ErrUnreadable):
		return CodeUnreadablePDF
	default:
		return CodeAnalysisFailed
	}
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}

func head(data []byte) []byte {
	if len(data) > filecheck.HeaderLen {
		return data[:filecheck.HeaderLen]
	}
	return data
}

func isPDF(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(mimeType), "application/pdf")
}
