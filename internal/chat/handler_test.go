package chat_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"renovix-backend/internal/chat"
	"renovix-backend/internal/llm"
)

type fakeStreamer struct {
	status   int
	body     string
	err      error
	messages []llm.Message
}

func (f *fakeStreamer) Diagnose(ctx context.Context, input llm.DiagnoseInput) (json.RawMessage, error) {
	return nil, llm.ErrNotConfigured
}

func (f *fakeStreamer) StreamChat(ctx context.Context, messages []llm.Message) (*llm.StreamResponse, error) {
	f.messages = messages
	if f.err != nil {
		return nil, f.err
	}
	return &llm.StreamResponse{Status: f.status, Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func newChatRouter(client llm.Client) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	chat.NewHandler(client).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func postChat(t *testing.T, router *gin.Engine, payload string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/stream", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestChatStreamRelay(t *testing.T) {
	upstream := "data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\ndata: [DONE]\n\n"
	client := &fakeStreamer{status: http.StatusOK, body: upstream}
	router := newChatRouter(client)

	resp := postChat(t, router, `{"sessionId":"s-1","message":"what does this mean?","diagnosis":"Normal Kidney Function"}`)

	if resp.Code != http.StatusOK {
		t.Fatalf("status %d: %s", resp.Code, resp.Body.String())
	}
	if got := resp.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content type %q", got)
	}
	if resp.Body.String() != upstream {
		t.Fatalf("body = %q", resp.Body.String())
	}
	if len(client.messages) < 2 || client.messages[0].Role != "system" {
		t.Fatalf("messages = %+v", client.messages)
	}
	if !strings.Contains(client.messages[0].Content, "Normal Kidney Function") {
		t.Fatalf("system prompt missing diagnosis: %q", client.messages[0].Content)
	}
}

func TestChatStreamValidation(t *testing.T) {
	router := newChatRouter(&fakeStreamer{status: http.StatusOK})

	for _, payload := range []string{
		`{"message":"hi"}`,
		`{"sessionId":"s-1"}`,
		`not json`,
	} {
		resp := postChat(t, router, payload)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("payload %q: status %d", payload, resp.Code)
		}
	}
}

func TestChatStreamUpstreamStatuses(t *testing.T) {
	cases := []struct {
		upstream int
		status   int
		message  string
	}{
		{http.StatusTooManyRequests, http.StatusTooManyRequests, "Rate limits exceeded, please try again later."},
		{http.StatusPaymentRequired, http.StatusPaymentRequired, "Payment required, please add funds to your Lovable AI workspace."},
		{http.StatusBadGateway, http.StatusInternalServerError, "AI gateway error"},
	}

	for _, tc := range cases {
		router := newChatRouter(&fakeStreamer{status: tc.upstream, body: `{"error":"upstream"}`})
		resp := postChat(t, router, `{"sessionId":"s-1","message":"hi"}`)

		if resp.Code != tc.status {
			t.Fatalf("upstream %d: status %d, want %d", tc.upstream, resp.Code, tc.status)
		}
		var envelope struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			t.Fatalf("upstream %d: decode: %v", tc.upstream, err)
		}
		if envelope.Error.Message != tc.message {
			t.Fatalf("upstream %d: message %q", tc.upstream, envelope.Error.Message)
		}
	}
}

func TestChatStreamNotConfigured(t *testing.T) {
	router := newChatRouter(&fakeStreamer{err: llm.ErrNotConfigured})
	resp := postChat(t, router, `{"sessionId":"s-1","message":"hi"}`)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d", resp.Code)
	}
}
