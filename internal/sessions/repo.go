package sessions

import "context"

// Repo defines persistence for scan sessions and their results.
type Repo interface {
	CreateSession(ctx context.Context, s ScanSession) error
	GetSession(ctx context.Context, id string) (ScanSession, error)
	UpdateSession(ctx context.Context, s ScanSession) error
	CreateResult(ctx context.Context, r ScanResult) error
	GetResult(ctx context.Context, sessionID string) (ScanResult, error)
}
