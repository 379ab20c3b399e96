package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"renovix-backend/internal/llm"
)

func diagnoseInput() llm.DiagnoseInput {
	return llm.DiagnoseInput{ReportText: "creatinine 0.9 mg/dL", FileName: "report.pdf", MimeType: "application/pdf"}
}

func completionBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": content}}},
	})
	return string(b)
}

func TestDiagnoseReturnsValidJSON(t *testing.T) {
	var gotReq map[string]any
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		mu.Lock()
		gotReq = payload
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody(`{"diagnosis":"Normal Kidney Function","confidence":0.94}`)))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "test-key", "google/gemini-2.5-flash")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	raw, err := client.Diagnose(context.Background(), diagnoseInput())
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}

	var parsed struct {
		Diagnosis  string  `json:"diagnosis"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if parsed.Diagnosis != "Normal Kidney Function" || parsed.Confidence != 0.94 {
		t.Fatalf("unexpected result %+v", parsed)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotReq["model"] != "google/gemini-2.5-flash" {
		t.Fatalf("model = %v", gotReq["model"])
	}
	if _, streaming := gotReq["stream"]; streaming {
		t.Fatalf("blocking call must not set stream")
	}
}

func TestDiagnoseRepairsInvalidJSONOnce(t *testing.T) {
	var calls int
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			_, _ = w.Write([]byte(completionBody("Here is the diagnosis: {broken")))
			return
		}
		_, _ = w.Write([]byte(completionBody(`{"diagnosis":"CKD Stage 3","confidence":0.81}`)))
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, "k", "m")
	raw, err := client.Diagnose(context.Background(), diagnoseInput())
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !json.Valid(raw) {
		t.Fatalf("repaired output still invalid: %s", raw)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Fatalf("expected 2 calls (one repair), got %d", calls)
	}
}

func TestDiagnoseFailsAfterRepairAttempt(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(completionBody("still not json")))
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, "k", "m")
	if _, err := client.Diagnose(context.Background(), diagnoseInput()); err == nil {
		t.Fatalf("expected error for unrepairable output")
	}
	if calls != 2 {
		t.Fatalf("expected exactly one repair attempt, got %d calls", calls)
	}
}

func TestDiagnoseSurfacesGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, "k", "m")
	_, err := client.Diagnose(context.Background(), diagnoseInput())
	if err == nil || !strings.Contains(err.Error(), "overloaded") {
		t.Fatalf("expected gateway error, got %v", err)
	}
}

func TestStreamChatReturnsBodyAndStatus(t *testing.T) {
	stream := "data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\ndata: [DONE]\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload["stream"] != true {
			t.Errorf("stream flag not set")
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("missing auth header")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, stream)
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, "k", "m")
	resp, err := client.StreamChat(context.Background(), []llm.Message{{Role: "user", Content: "hello"}})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	defer resp.Body.Close()

	if resp.Status != http.StatusOK {
		t.Fatalf("status = %d", resp.Status)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != stream {
		t.Fatalf("body = %q", body)
	}
}

func TestStreamChatPassesThroughRateLimitStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, "k", "m")
	resp, err := client.StreamChat(context.Background(), nil)
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	defer resp.Body.Close()
	if resp.Status != http.StatusTooManyRequests {
		t.Fatalf("status = %d", resp.Status)
	}
}
