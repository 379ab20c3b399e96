package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"renovix-backend/internal/llm"
	"renovix-backend/internal/reporttext"
	"renovix-backend/internal/sse"
)

// ErrBusy is returned when a stream is already in flight; the session
// allows at most one concurrent request.
var ErrBusy = errors.New("chat request already in flight")

// FailureKind categorizes a failed chat request.
type FailureKind string

const (
	FailureRateLimit FailureKind = "rate_limit"
	FailureQuota     FailureKind = "quota"
	FailureGeneric   FailureKind = "generic"
)

// Failure describes the last failed request. The prompt that triggered
// it is retained on the session so Retry can resend it.
type Failure struct {
	Kind    FailureKind
	Message string
}

// Message is one entry in the conversation. Hindi holds the cached
// translation once Translate has run; ShowHindi only switches which
// text a renderer should display.
type Message struct {
	ID        string
	Role      string
	Content   string
	Hindi     string
	ShowHindi bool
}

// Session is a chat conversation bound to one scan session. Assistant
// replies stream in as deltas merged into the trailing message.
type Session struct {
	HTTP    *http.Client
	BaseURL string

	// OnDelta, when set, fires after each merged delta with the
	// assistant message ID and its full content so far.
	OnDelta func(messageID, content string)

	sessionID  string
	diagnosis  string
	reportText string

	mu         sync.Mutex
	messages   []Message
	inFlight   bool
	lastPrompt string
	failure    *Failure
}

// New constructs a Session for the given scan session.
func New(httpClient *http.Client, baseURL, scanSessionID string) *Session {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Session{
		HTTP:      httpClient,
		BaseURL:   strings.TrimRight(baseURL, "/"),
		sessionID: scanSessionID,
	}
}

// SetReportContext attaches the diagnosis and report text sent with
// every chat request.
func (s *Session) SetReportContext(diagnosis, reportText string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diagnosis = diagnosis
	s.reportText = reportText
}

// Messages returns a snapshot of the conversation.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// LastFailure returns the failure from the most recent request, or nil.
func (s *Session) LastFailure() *Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure == nil {
		return nil
	}
	f := *s.failure
	return &f
}

// Send posts a user message and streams the assistant reply. Only one
// request may be in flight; concurrent calls get ErrBusy.
func (s *Session) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("empty message")
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return ErrBusy
	}
	s.inFlight = true
	s.failure = nil
	s.lastPrompt = text
	history := historyLocked(s.messages)
	s.messages = append(s.messages, Message{ID: uuid.NewString(), Role: "user", Content: text})
	payload := s.requestLocked(text, history)
	s.mu.Unlock()

	defer s.clearInFlight()
	return s.stream(ctx, payload, s.mergeAssistantDelta)
}

// Retry resends the last prompt after a failure. The original user
// message already sits in the transcript, so only the reply is redone.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return ErrBusy
	}
	if s.lastPrompt == "" {
		s.mu.Unlock()
		return errors.New("nothing to retry")
	}
	s.inFlight = true
	s.failure = nil
	// History up to but not including the retried user message.
	history := historyLocked(trimTrailingUser(s.messages, s.lastPrompt))
	payload := s.requestLocked(s.lastPrompt, history)
	s.mu.Unlock()

	defer s.clearInFlight()
	return s.stream(ctx, payload, s.mergeAssistantDelta)
}

// Translate streams a Hindi translation for one message and caches it.
// A cached translation is reused; either way ShowHindi flips on.
func (s *Session) Translate(ctx context.Context, messageID string) error {
	s.mu.Lock()
	idx := indexOfLocked(s.messages, messageID)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("unknown message %s", messageID)
	}
	if s.messages[idx].Hindi != "" {
		s.messages[idx].ShowHindi = true
		s.mu.Unlock()
		return nil
	}
	if s.inFlight {
		s.mu.Unlock()
		return ErrBusy
	}
	s.inFlight = true
	s.failure = nil
	prompt := "Translate the following text to Hindi. Return only the translation, nothing else:\n\n" + s.messages[idx].Content
	payload := s.requestLocked(prompt, nil)
	s.mu.Unlock()

	defer s.clearInFlight()

	var translated strings.Builder
	err := s.stream(ctx, payload, func(delta string) {
		translated.WriteString(delta)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if idx = indexOfLocked(s.messages, messageID); idx >= 0 {
		s.messages[idx].Hindi = strings.TrimSpace(translated.String())
		s.messages[idx].ShowHindi = true
	}
	return nil
}

// NarrationText returns the displayed text of a message stripped of
// markdown and decorative symbols, ready to hand to a speech engine.
// ShowHindi picks the cached translation when one exists.
func (s *Session) NarrationText(messageID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := indexOfLocked(s.messages, messageID)
	if idx < 0 {
		return "", fmt.Errorf("unknown message %s", messageID)
	}
	text := s.messages[idx].Content
	if s.messages[idx].ShowHindi && s.messages[idx].Hindi != "" {
		text = s.messages[idx].Hindi
	}
	return reporttext.CleanText(text), nil
}

// SetShowHindi toggles which language a renderer shows for a message.
// It never touches the original content.
func (s *Session) SetShowHindi(messageID string, show bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := indexOfLocked(s.messages, messageID); idx >= 0 {
		if !show || s.messages[idx].Hindi != "" {
			s.messages[idx].ShowHindi = show
		}
	}
}

type chatRequest struct {
	SessionID  string        `json:"sessionId"`
	Message    string        `json:"message"`
	ReportText string        `json:"pdfText,omitempty"`
	Diagnosis  string        `json:"diagnosis,omitempty"`
	History    []llm.Message `json:"history,omitempty"`
}

func (s *Session) requestLocked(text string, history []llm.Message) chatRequest {
	return chatRequest{
		SessionID:  s.sessionID,
		Message:    text,
		ReportText: s.reportText,
		Diagnosis:  s.diagnosis,
		History:    history,
	}
}

func (s *Session) stream(ctx context.Context, payload chatRequest, onDelta func(string)) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/api/v1/chat/stream", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTP.Do(req)
	if err != nil {
		s.recordFailure(FailureGeneric, "Failed to reach the assistant. Please try again.")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		failure := classifyStatus(resp.StatusCode, resp.Body)
		s.recordFailure(failure.Kind, failure.Message)
		return fmt.Errorf("chat stream status %d", resp.StatusCode)
	}

	reader := sse.NewReader(resp.Body)
	if err := reader.Drain(onDelta); err != nil {
		s.recordFailure(FailureGeneric, "The response stream was interrupted.")
		return err
	}
	return nil
}

// mergeAssistantDelta applies the append-or-start rule: a delta extends
// the trailing assistant message, or opens a new one when the last
// entry is not an assistant message.
func (s *Session) mergeAssistantDelta(delta string) {
	s.mu.Lock()
	n := len(s.messages)
	if n == 0 || s.messages[n-1].Role != "assistant" {
		s.messages = append(s.messages, Message{ID: uuid.NewString(), Role: "assistant"})
		n++
	}
	s.messages[n-1].Content += delta
	id, content := s.messages[n-1].ID, s.messages[n-1].Content
	cb := s.OnDelta
	s.mu.Unlock()

	if cb != nil {
		cb(id, content)
	}
}

func (s *Session) recordFailure(kind FailureKind, message string) {
	s.mu.Lock()
	s.failure = &Failure{Kind: kind, Message: message}
	s.mu.Unlock()
}

func (s *Session) clearInFlight() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

func classifyStatus(status int, body io.Reader) Failure {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.NewDecoder(body).Decode(&envelope)

	switch status {
	case http.StatusTooManyRequests:
		msg := envelope.Error.Message
		if msg == "" {
			msg = "Rate limits exceeded, please try again later."
		}
		return Failure{Kind: FailureRateLimit, Message: msg}
	case http.StatusPaymentRequired:
		msg := envelope.Error.Message
		if msg == "" {
			msg = "Payment required, please add funds to your Lovable AI workspace."
		}
		return Failure{Kind: FailureQuota, Message: msg}
	default:
		msg := envelope.Error.Message
		if msg == "" {
			msg = "Something went wrong. Please try again."
		}
		return Failure{Kind: FailureGeneric, Message: msg}
	}
}

func historyLocked(messages []Message) []llm.Message {
	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// trimTrailingUser drops the final user message when it matches the
// retried prompt so the server does not see it twice.
func trimTrailingUser(messages []Message, prompt string) []Message {
	n := len(messages)
	if n > 0 && messages[n-1].Role == "user" && messages[n-1].Content == prompt {
		return messages[:n-1]
	}
	return messages
}

func indexOfLocked(messages []Message, id string) int {
	for i := range messages {
		if messages[i].ID == id {
			return i
		}
	}
	return -1
}
