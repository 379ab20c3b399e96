package uploads

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string][]ScanImage // sessionID -> images, oldest first
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string][]ScanImage)}
}

// Create appends an image row for its session.
func (r *MemoryRepo) Create(ctx context.Context, img ScanImage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[img.SessionID] = append(r.data[img.SessionID], img)
	return nil
}

// GetLatestBySession returns the most recent image for a session.
func (r *MemoryRepo) GetLatestBySession(ctx context.Context, sessionID string) (ScanImage, error) {
	if err := ctx.Err(); err != nil {
		return ScanImage{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	imgs := r.data[sessionID]
	if len(imgs) == 0 {
		return ScanImage{}, ErrNotFound
	}
	return imgs[len(imgs)-1], nil
}

var _ Repo = (*MemoryRepo)(nil)
