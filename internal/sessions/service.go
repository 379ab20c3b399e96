package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"renovix-backend/internal/shared/telemetry"
)

// Service enforces the session lifecycle: status transitions, progress
// monotonicity, and write-once results. Every accepted change is pushed
// through the notifier.
type Service struct {
	repo     Repo
	notifier *Notifier
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repo, notifier *Notifier) *Service {
	return &Service{repo: repo, notifier: notifier, now: time.Now}
}

// Create opens a new pending session. userID may be empty for
// anonymous callers.
func (s *Service) Create(ctx context.Context, userID string) (ScanSession, error) {
	now := s.now().UTC()
	session := ScanSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		Status:    StatusPending,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return ScanSession{}, fmt.Errorf("create session: %w", err)
	}
	telemetry.Info("session.created", map[string]any{"session_id": session.ID, "user_id": userID})
	return session, nil
}

// Get returns a session by ID.
func (s *Service) Get(ctx context.Context, id string) (ScanSession, error) {
	return s.repo.GetSession(ctx, id)
}

// GetOwned returns a session after checking ownership. Anonymous
// sessions are readable by anyone holding the ID.
func (s *Service) GetOwned(ctx context.Context, id, userID string) (ScanSession, error) {
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return ScanSession{}, err
	}
	if session.UserID != "" && session.UserID != userID {
		return ScanSession{}, ErrForbidden
	}
	return session, nil
}

// SetProcessing moves a pending session into processing at the given
// progress.
func (s *Service) SetProcessing(ctx context.Context, id string, progress int) error {
	return s.update(ctx, id, StatusProcessing, progress, "")
}

// SetProgress raises the progress of a processing session. Stale
// values, at or below the current progress, are dropped silently so
// out-of-order workers cannot make the bar move backwards.
func (s *Service) SetProgress(ctx context.Context, id string, progress int) error {
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if session.Status != StatusProcessing {
		return fmt.Errorf("%w: progress update in status %s", ErrInvalidTransition, session.Status)
	}
	if progress <= session.Progress {
		return nil
	}
	return s.apply(ctx, session, StatusProcessing, progress, "")
}

// Complete writes the result row and moves the session to completed at
// progress 100. The result write happens first so a crash between the
// two steps leaves a retryable processing session, never a completed
// session without a result.
func (s *Service) Complete(ctx context.Context, id string, result ScanResult) error {
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if session.Status != StatusProcessing {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, session.Status, StatusCompleted)
	}

	result.SessionID = id
	if result.CreatedAt.IsZero() {
		result.CreatedAt = s.now().UTC()
	}
	if len(result.Findings) == 0 {
		result.Findings = json.RawMessage("null")
	}
	if err := s.repo.CreateResult(ctx, result); err != nil {
		return fmt.Errorf("store result: %w", err)
	}
	return s.apply(ctx, session, StatusCompleted, 100, "")
}

// Fail marks the session failed with a categorized error code. Allowed
// from pending and processing.
func (s *Service) Fail(ctx context.Context, id, code string) error {
	return s.update(ctx, id, StatusFailed, -1, code)
}

// Result returns the stored result for a completed session.
func (s *Service) Result(ctx context.Context, sessionID string) (ScanResult, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return ScanResult{}, err
	}
	if session.Status != StatusCompleted {
		return ScanResult{}, ErrResultNotReady
	}
	return s.repo.GetResult(ctx, sessionID)
}

// Subscribe registers for push updates on a session.
func (s *Service) Subscribe(sessionID string) (<-chan Update, func()) {
	return s.notifier.Subscribe(sessionID)
}

func (s *Service) update(ctx context.Context, id, status string, progress int, code string) error {
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if !validTransition(session.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, session.Status, status)
	}
	if progress < 0 {
		progress = session.Progress
	}
	if progress < session.Progress {
		progress = session.Progress
	}
	return s.apply(ctx, session, status, progress, code)
}

func (s *Service) apply(ctx context.Context, session ScanSession, status string, progress int, code string) error {
	if progress > 100 {
		progress = 100
	}
	session.Status = status
	session.Progress = progress
	session.ErrorCode = code
	session.UpdatedAt = s.now().UTC()

	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	s.notifier.Publish(session.ID, Update{Status: status, Progress: progress, ErrorCode: code})
	telemetry.Info("session.updated", map[string]any{
		"session_id": session.ID,
		"status":     status,
		"progress":   progress,
	})
	return nil
}

func validTransition(from, to string) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusFailed
	case StatusProcessing:
		return to == StatusProcessing || to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}
