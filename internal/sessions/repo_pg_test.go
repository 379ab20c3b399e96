package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoCreateSession(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	s := ScanSession{
		ID:        "sess-1",
		UserID:    "user-1",
		Status:    StatusPending,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectExec("INSERT INTO scan_sessions").
		WithArgs(s.ID, sqlmock.AnyArg(), s.Status, s.Progress, sqlmock.AnyArg(), now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.CreateSession(context.Background(), s); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetSessionNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT id, user_id, status, progress").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "status", "progress", "error_code", "created_at", "updated_at"}))

	_, err := repo.GetSession(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoUpdateSessionMissingRow(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("UPDATE scan_sessions").
		WithArgs(StatusProcessing, 10, sqlmock.AnyArg(), sqlmock.AnyArg(), "sess-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateSession(context.Background(), ScanSession{ID: "sess-1", Status: StatusProcessing, Progress: 10})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoCreateResultDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("INSERT INTO scan_results").
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "scan_results_session_id_key" (SQLSTATE 23505)`))

	err := repo.CreateResult(context.Background(), ScanResult{SessionID: "sess-1", Diagnosis: "d", CreatedAt: time.Now()})
	if !errors.Is(err, ErrResultExists) {
		t.Fatalf("expected ErrResultExists, got %v", err)
	}
}

func TestPGRepoGetResult(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	findings := `{"echogenicity":"Normal"}`

	rows := sqlmock.NewRows([]string{"session_id", "diagnosis", "confidence", "findings", "recommendations", "created_at"}).
		AddRow("sess-1", "Normal Kidney Function", 0.94, []byte(findings), "• Stay well-hydrated", now)
	mock.ExpectQuery("SELECT session_id, diagnosis, confidence").
		WithArgs("sess-1").
		WillReturnRows(rows)

	res, err := repo.GetResult(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if res.Diagnosis != "Normal Kidney Function" || string(res.Findings) != findings {
		t.Fatalf("result = %+v", res)
	}
	if !json.Valid(res.Findings) {
		t.Fatalf("findings not valid JSON")
	}
}
