package sessions

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory Repo for tests and local runs without a
// database.
type MemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]ScanSession
	results  map[string]ScanResult
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		sessions: make(map[string]ScanSession),
		results:  make(map[string]ScanResult),
	}
}

// CreateSession stores a new session row.
func (r *MemoryRepo) CreateSession(ctx context.Context, s ScanSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return nil
}

// GetSession returns a session by ID.
func (r *MemoryRepo) GetSession(ctx context.Context, id string) (ScanSession, error) {
	if err := ctx.Err(); err != nil {
		return ScanSession{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return ScanSession{}, ErrNotFound
	}
	return s, nil
}

// UpdateSession overwrites the stored session row.
func (r *MemoryRepo) UpdateSession(ctx context.Context, s ScanSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; !ok {
		return ErrNotFound
	}
	r.sessions[s.ID] = s
	return nil
}

// CreateResult stores the result row, rejecting duplicates.
func (r *MemoryRepo) CreateResult(ctx context.Context, res ScanResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.results[res.SessionID]; ok {
		return ErrResultExists
	}
	r.results[res.SessionID] = res
	return nil
}

// GetResult returns the result for a session.
func (r *MemoryRepo) GetResult(ctx context.Context, sessionID string) (ScanResult, error) {
	if err := ctx.Err(); err != nil {
		return ScanResult{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.results[sessionID]
	if !ok {
		return ScanResult{}, ErrNotFound
	}
	return res, nil
}

var _ Repo = (*MemoryRepo)(nil)
