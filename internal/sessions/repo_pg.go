package sessions

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// CreateSession inserts a new session row.
func (r *PGRepo) CreateSession(ctx context.Context, s ScanSession) error {
	const query = `
INSERT INTO scan_sessions (id, user_id, status, progress, error_code, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	var userID sql.NullString
	if s.UserID != "" {
		userID = sql.NullString{String: s.UserID, Valid: true}
	}
	var errorCode sql.NullString
	if s.ErrorCode != "" {
		errorCode = sql.NullString{String: s.ErrorCode, Valid: true}
	}

	_, err := r.DB.ExecContext(ctx, query, s.ID, userID, s.Status, s.Progress, errorCode, s.CreatedAt, s.UpdatedAt)
	return err
}

// GetSession returns a session by ID.
func (r *PGRepo) GetSession(ctx context.Context, id string) (ScanSession, error) {
	const query = `
SELECT id, user_id, status, progress, error_code, created_at, updated_at
FROM scan_sessions
WHERE id = $1`

	var s ScanSession
	var userID sql.NullString
	var errorCode sql.NullString
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&s.ID,
		&userID,
		&s.Status,
		&s.Progress,
		&errorCode,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ScanSession{}, ErrNotFound
		}
		return ScanSession{}, err
	}
	if userID.Valid {
		s.UserID = userID.String
	}
	if errorCode.Valid {
		s.ErrorCode = errorCode.String
	}
	return s, nil
}

// UpdateSession persists status, progress, and error code.
func (r *PGRepo) UpdateSession(ctx context.Context, s ScanSession) error {
	const query = `
UPDATE scan_sessions
SET status = $1, progress = $2, error_code = $3, updated_at = $4
WHERE id = $5`

	var errorCode sql.NullString
	if s.ErrorCode != "" {
		errorCode = sql.NullString{String: s.ErrorCode, Valid: true}
	}

	res, err := r.DB.ExecContext(ctx, query, s.Status, s.Progress, errorCode, s.UpdatedAt, s.ID)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateResult inserts the result row. The unique constraint on
// session_id enforces write-once.
func (r *PGRepo) CreateResult(ctx context.Context, res ScanResult) error {
	const query = `
INSERT INTO scan_results (session_id, diagnosis, confidence, findings, recommendations, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	findings := []byte(res.Findings)
	if len(findings) == 0 {
		findings = []byte("null")
	}

	_, err := r.DB.ExecContext(ctx, query, res.SessionID, res.Diagnosis, res.Confidence, findings, res.Recommendations, res.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return ErrResultExists
	}
	return err
}

// GetResult returns the result for a session.
func (r *PGRepo) GetResult(ctx context.Context, sessionID string) (ScanResult, error) {
	const query = `
SELECT session_id, diagnosis, confidence, findings, recommendations, created_at
FROM scan_results
WHERE session_id = $1`

	var res ScanResult
	var findings []byte
	err := r.DB.QueryRowContext(ctx, query, sessionID).Scan(
		&res.SessionID,
		&res.Diagnosis,
		&res.Confidence,
		&findings,
		&res.Recommendations,
		&res.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ScanResult{}, ErrNotFound
		}
		return ScanResult{}, err
	}
	res.Findings = findings
	return res, nil
}

func isUniqueViolation(err error) bool {
	// pgx surfaces SQLSTATE 23505 in the error text through database/sql.
	return strings.Contains(err.Error(), "23505") || strings.Contains(err.Error(), "duplicate key")
}

var _ Repo = (*PGRepo)(nil)
