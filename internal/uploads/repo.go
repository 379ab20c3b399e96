package uploads

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// Repo defines persistence for scan image metadata.
type Repo interface {
	Create(ctx context.Context, img ScanImage) error
	GetLatestBySession(ctx context.Context, sessionID string) (ScanImage, error)
}
