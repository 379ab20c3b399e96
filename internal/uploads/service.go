package uploads

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"renovix-backend/internal/filecheck"
	"renovix-backend/internal/sessions"
	"renovix-backend/internal/shared/storage/object"
	"renovix-backend/internal/shared/telemetry"
	"renovix-backend/internal/shared/util"
)

// Service stores validated scan uploads and records their metadata.
type Service struct {
	repo     Repo
	store    object.ObjectStore
	sessions *sessions.Service
	nowMS    func() int64
}

// NewService constructs a Service.
func NewService(repo Repo, store object.ObjectStore, sessionSvc *sessions.Service) *Service {
	return &Service{
		repo:     repo,
		store:    store,
		sessions: sessionSvc,
		nowMS:    func() int64 { return time.Now().UnixMilli() },
	}
}

// Upload validates the file against the shared policy, writes the bytes
// to object storage, and records a scan_images row. The storage key is
// owner-scoped so one user cannot guess another's objects.
func (s *Service) Upload(ctx context.Context, userID, sessionID string, meta filecheck.FileMeta, r io.Reader) (ScanImage, error) {
	session, err := s.sessions.GetOwned(ctx, sessionID, userID)
	if err != nil {
		return ScanImage{}, err
	}

	// One over the cap is enough to detect oversize without trusting
	// the declared length.
	data, err := io.ReadAll(io.LimitReader(r, filecheck.MaxSizeBytes+1))
	if err != nil {
		return ScanImage{}, fmt.Errorf("read upload: %w", err)
	}
	meta.SizeBytes = int64(len(data))

	head := data
	if len(head) > filecheck.HeaderLen {
		head = head[:filecheck.HeaderLen]
	}
	if err := filecheck.Check(meta, head); err != nil {
		return ScanImage{}, err
	}

	sanitized, err := util.SanitizeFileName(meta.Name)
	if err != nil {
		return ScanImage{}, fmt.Errorf("%w: %s", filecheck.ErrInvalidType, "bad file name")
	}

	owner := session.UserID
	if owner == "" {
		owner = "anonymous"
	} else {
		owner = util.HashUserKey(owner)
	}
	key := fmt.Sprintf("%s/%s/%d-%s", owner, sessionID, s.nowMS(), sanitized)

	size, err := s.store.SaveWithKey(ctx, key, meta.MimeType, bytes.NewReader(data))
	if err != nil {
		return ScanImage{}, fmt.Errorf("store upload: %w", err)
	}

	img := ScanImage{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		FileName:    sanitized,
		FileSize:    size,
		MimeType:    meta.MimeType,
		StoragePath: key,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, img); err != nil {
		return ScanImage{}, fmt.Errorf("record upload: %w", err)
	}

	telemetry.Info("upload.stored", map[string]any{
		"session_id": sessionID,
		"size_bytes": size,
		"mime_type":  meta.MimeType,
	})
	return img, nil
}

// LatestBySession returns the newest image metadata for a session.
func (s *Service) LatestBySession(ctx context.Context, sessionID string) (ScanImage, error) {
	return s.repo.GetLatestBySession(ctx, sessionID)
}

// Open returns the stored bytes for an image.
func (s *Service) Open(ctx context.Context, img ScanImage) (io.ReadCloser, error) {
	return s.store.Open(ctx, img.StoragePath)
}
