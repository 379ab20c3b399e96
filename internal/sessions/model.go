package sessions

import (
	"encoding/json"
	"time"
)

// Session statuses. A session moves pending -> processing -> completed
// or failed; terminal states never change.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ScanSession tracks one scan analysis job. UserID is empty for
// anonymous sessions.
type ScanSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	ErrorCode string    `json:"errorCode,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Terminal reports whether the session reached a final status.
func (s ScanSession) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// ScanResult is the immutable analysis output, written exactly once
// when a session completes. Findings keeps the raw model payload;
// DecodeFindings interprets it.
type ScanResult struct {
	SessionID       string          `json:"sessionId"`
	Diagnosis       string          `json:"diagnosis"`
	Confidence      float64         `json:"confidence"`
	Findings        json.RawMessage `json:"findings"`
	Recommendations string          `json:"recommendations"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// Update is the status snapshot pushed to subscribers on every change.
type Update struct {
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	ErrorCode string `json:"errorCode,omitempty"`
}
