package uploads

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a scan image row.
func (r *PGRepo) Create(ctx context.Context, img ScanImage) error {
	const query = `
INSERT INTO scan_images (id, session_id, file_name, file_size, mime_type, storage_path, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.DB.ExecContext(ctx, query,
		img.ID,
		img.SessionID,
		img.FileName,
		img.FileSize,
		img.MimeType,
		img.StoragePath,
		img.CreatedAt,
	)
	return err
}

// GetLatestBySession returns the most recent image for a session.
func (r *PGRepo) GetLatestBySession(ctx context.Context, sessionID string) (ScanImage, error) {
	const query = `
SELECT id, session_id, file_name, file_size, mime_type, storage_path, created_at
FROM scan_images
WHERE session_id = $1
ORDER BY created_at DESC
LIMIT 1`

	var img ScanImage
	err := r.DB.QueryRowContext(ctx, query, sessionID).Scan(
		&img.ID,
		&img.SessionID,
		&img.FileName,
		&img.FileSize,
		&img.MimeType,
		&img.StoragePath,
		&img.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ScanImage{}, ErrNotFound
		}
		return ScanImage{}, err
	}
	return img, nil
}

var _ Repo = (*PGRepo)(nil)
