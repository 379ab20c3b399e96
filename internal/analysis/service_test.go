package analysis_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"renovix-backend/internal/analysis"
	"renovix-backend/internal/filecheck"
	"renovix-backend/internal/llm"
	"renovix-backend/internal/sessions"
	"renovix-backend/internal/shared/storage/object/local"
	"renovix-backend/internal/uploads"
)

type fakeLLM struct {
	payload string
	err     error
	input   llm.DiagnoseInput
}

func (f *fakeLLM) Diagnose(ctx context.Context, input llm.DiagnoseInput) (json.RawMessage, error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.payload), nil
}

func (f *fakeLLM) StreamChat(ctx context.Context, messages []llm.Message) (*llm.StreamResponse, error) {
	return nil, llm.ErrNotConfigured
}

type fixture struct {
	sessions *sessions.Service
	uploads  *uploads.Service
	svc      *analysis.Service
	llm      *fakeLLM
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sessionSvc := sessions.NewService(sessions.NewMemoryRepo(), sessions.NewNotifier())
	uploadSvc := uploads.NewService(uploads.NewMemoryRepo(), local.New(t.TempDir()), sessionSvc)
	client := &fakeLLM{payload: `{
		"diagnosis": "Normal Kidney Function",
		"confidence": 0.94,
		"findings": {"summary": "No abnormalities detected."},
		"recommendations": "Maintain hydration."
	}`}
	return &fixture{
		sessions: sessionSvc,
		uploads:  uploadSvc,
		svc: &analysis.Service{
			Sessions: sessionSvc,
			Uploads:  uploadSvc,
			LLM:      client,
			Sync:     true,
		},
		llm: client,
	}
}

func (f *fixture) newUploadedSession(t *testing.T, userID string) sessions.ScanSession {
	t.Helper()
	session, err := f.sessions.Create(context.Background(), userID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	data := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, []byte("scan bytes")...)
	meta := filecheck.FileMeta{Name: "kidney.jpg", MimeType: "image/jpeg", SizeBytes: int64(len(data))}
	if _, err := f.uploads.Upload(context.Background(), userID, session.ID, meta, bytes.NewReader(data)); err != nil {
		t.Fatalf("upload: %v", err)
	}
	return session
}

func TestStartSyncCompletes(t *testing.T) {
	f := newFixture(t)
	session := f.newUploadedSession(t, "")

	var progress []int
	updates, cancel := f.sessions.Subscribe(session.ID)
	defer cancel()

	if err := f.svc.Start(context.Background(), "", session.ID, ""); err != nil {
		t.Fatalf("start: %v", err)
	}

	got, err := f.sessions.Get(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != sessions.StatusCompleted || got.Progress != 100 {
		t.Fatalf("session = %+v", got)
	}

	result, err := f.sessions.Result(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if result.Diagnosis != "Normal Kidney Function" || result.Confidence != 0.94 {
		t.Fatalf("result = %+v", result)
	}

drain:
	for {
		select {
		case u := <-updates:
			progress = append(progress, u.Progress)
			if u.Status == sessions.StatusCompleted {
				break drain
			}
		default:
			break drain
		}
	}
	want := []int{10, 25, 50, 75, 90, 100}
	if len(progress) != len(want) {
		t.Fatalf("progress = %v", progress)
	}
	for i := range want {
		if progress[i] != want[i] {
			t.Fatalf("progress = %v, want %v", progress, want)
		}
	}
}

func TestStartRejectsNonPending(t *testing.T) {
	f := newFixture(t)
	session := f.newUploadedSession(t, "")

	if err := f.svc.Start(context.Background(), "", session.ID, ""); err != nil {
		t.Fatalf("first start: %v", err)
	}
	err := f.svc.Start(context.Background(), "", session.ID, "")
	if !errors.Is(err, sessions.ErrInvalidTransition) {
		t.Fatalf("err = %v", err)
	}
}

func TestStartRequiresUpload(t *testing.T) {
	f := newFixture(t)
	session, _ := f.sessions.Create(context.Background(), "")

	err := f.svc.Start(context.Background(), "", session.ID, "")
	if !errors.Is(err, uploads.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestStartUnknownSession(t *testing.T) {
	f := newFixture(t)
	err := f.svc.Start(context.Background(), "", "missing", "")
	if !errors.Is(err, sessions.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestStartOwnershipMismatch(t *testing.T) {
	f := newFixture(t)
	session := f.newUploadedSession(t, "user-a")

	err := f.svc.Start(context.Background(), "user-b", session.ID, "")
	if !errors.Is(err, sessions.ErrForbidden) {
		t.Fatalf("err = %v", err)
	}
}

func TestProcessFailsOnLLMError(t *testing.T) {
	f := newFixture(t)
	f.llm.err = errors.New("model offline")
	session := f.newUploadedSession(t, "")

	if err := f.svc.Start(context.Background(), "", session.ID, ""); err != nil {
		t.Fatalf("start: %v", err)
	}

	got, _ := f.sessions.Get(context.Background(), session.ID)
	if got.Status != sessions.StatusFailed || got.ErrorCode != analysis.CodeAnalysisFailed {
		t.Fatalf("session = %+v", got)
	}
}

func TestProcessFailsOnBadDiagnosis(t *testing.T) {
	f := newFixture(t)
	f.llm.payload = `{"confidence": 0.5}`
	session := f.newUploadedSession(t, "")

	if err := f.svc.Start(context.Background(), "", session.ID, ""); err != nil {
		t.Fatalf("start: %v", err)
	}

	got, _ := f.sessions.Get(context.Background(), session.ID)
	if got.Status != sessions.StatusFailed || got.ErrorCode != analysis.CodeAnalysisFailed {
		t.Fatalf("session = %+v", got)
	}
}

func TestProcessClampsConfidence(t *testing.T) {
	f := newFixture(t)
	f.llm.payload = `{"diagnosis":"Chronic Kidney Disease","confidence":1.7,"findings":null,"recommendations":""}`
	session := f.newUploadedSession(t, "")

	if err := f.svc.Start(context.Background(), "", session.ID, ""); err != nil {
		t.Fatalf("start: %v", err)
	}

	result, err := f.sessions.Result(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if result.Confidence != 1 {
		t.Fatalf("confidence = %v", result.Confidence)
	}
}

func TestProcessPassesReportTextThrough(t *testing.T) {
	f := newFixture(t)
	session := f.newUploadedSession(t, "")

	if err := f.svc.Start(context.Background(), "", session.ID, "creatinine 1.1 mg/dL"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if f.llm.input.ReportText != "creatinine 1.1 mg/dL" {
		t.Fatalf("input = %+v", f.llm.input)
	}
	if f.llm.input.FileName != "kidney.jpg" || f.llm.input.MimeType != "image/jpeg" {
		t.Fatalf("input = %+v", f.llm.input)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{sessions.ErrNotFound, analysis.CodeSessionNotFound},
		{sessions.ErrForbidden, analysis.CodeAuthMismatch},
		{uploads.ErrNotFound, analysis.CodeInvalidInput},
		{filecheck.ErrSignatureMismatch, analysis.CodeInvalidInput},
		{errors.New("anything else"), analysis.CodeAnalysisFailed},
	}
	for _, tc := range cases {
		if got := analysis.Classify(tc.err); got != tc.code {
			t.Fatalf("Classify(%v) = %s, want %s", tc.err, got, tc.code)
		}
	}
}
