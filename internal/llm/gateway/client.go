// Package gateway implements llm.Client against an OpenAI-compatible
// chat-completions endpoint.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"renovix-backend/internal/llm"
)

// Client talks to the configured AI gateway.
type Client struct {
	url        string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient constructs a gateway client. The API key may be empty for
// gateways that authenticate by network boundary.
func NewClient(url, apiKey, model string) (*Client, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("LLM_GATEWAY_URL is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required")
	}
	return &Client{
		url:    url,
		apiKey: apiKey,
		model:  model,
		// Streaming responses can outlive any sane per-request cap, so
		// the blocking timeout is applied per call instead.
		httpClient: &http.Client{},
	}, nil
}

const diagnoseTimeout = 120 * time.Second

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message llm.Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Diagnose runs the blocking analysis call. Invalid JSON output gets
// one repair round-trip before failing.
func (c *Client) Diagnose(ctx context.Context, input llm.DiagnoseInput) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, diagnoseTimeout)
	defer cancel()

	raw, err := c.complete(ctx, llm.BuildDiagnoseMessages(input))
	if err != nil {
		return nil, err
	}
	if json.Valid(raw) {
		return raw, nil
	}

	raw, err = c.complete(ctx, llm.BuildFixJSONMessages(raw))
	if err != nil {
		return nil, err
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("invalid JSON from gateway")
	}
	return raw, nil
}

func (c *Client) complete(ctx context.Context, messages []llm.Message) (json.RawMessage, error) {
	resp, err := c.send(ctx, chatRequest{Model: c.model, Messages: messages})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("gateway request timeout: %w", err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("gateway http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return nil, fmt.Errorf("gateway response parse: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("gateway error: %s (%s)", parsed.Error.Message, parsed.Error.Type)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("gateway http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("gateway response missing choices")
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return nil, fmt.Errorf("gateway response empty content")
	}
	return json.RawMessage(content), nil
}

// StreamChat sends a streaming chat request. The caller owns the body
// regardless of status, since non-2xx bodies carry the error payload.
func (c *Client) StreamChat(ctx context.Context, messages []llm.Message) (*llm.StreamResponse, error) {
	resp, err := c.send(ctx, chatRequest{Model: c.model, Messages: messages, Stream: true})
	if err != nil {
		return nil, err
	}
	return &llm.StreamResponse{Status: resp.StatusCode, Body: resp.Body}, nil
}

func (c *Client) send(ctx context.Context, body chatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}
