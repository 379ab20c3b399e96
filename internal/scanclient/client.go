package scanclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"renovix-backend/internal/filecheck"
	"renovix-backend/internal/pdftext"
	"renovix-backend/internal/sessions"
)

// State is the job phase as it moves through the pipeline.
type State string

const (
	StateIdle           State = "idle"
	StateValidating     State = "validating"
	StateUploading      State = "uploading"
	StateExtractingText State = "extracting_text"
	StateSubmitted      State = "submitted"
	StatePolling        State = "polling"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
)

// FailureReason categorizes where a run broke down.
type FailureReason string

const (
	ReasonValidation    FailureReason = "validation"
	ReasonSession       FailureReason = "session"
	ReasonUpload        FailureReason = "upload"
	ReasonMetadata      FailureReason = "metadata"
	ReasonUnreadablePDF FailureReason = "unreadable_pdf"
	ReasonAnalyze       FailureReason = "analyze"
	ReasonTimeout       FailureReason = "timeout"
)

// Failure describes a failed run in user-presentable terms.
type Failure struct {
	Reason      FailureReason
	Title       string
	Description string
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Reason, f.Description)
}

// File is the scan to analyze.
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

// Result is the final diagnosis for a completed run.
type Result struct {
	SessionID       string          `json:"sessionId"`
	Diagnosis       string          `json:"diagnosis"`
	Confidence      float64         `json:"confidence"`
	Findings        json.RawMessage `json:"findings"`
	Recommendations string          `json:"recommendations"`
}

// TextExtractor pulls report text from raw PDF bytes. *pdftext.Extractor
// satisfies it.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// Client drives one scan analysis end to end against the API: validate,
// create session, upload, extract text for PDFs, submit, then follow
// the session's event stream until a terminal status.
type Client struct {
	HTTP    *http.Client
	BaseURL string

	// Extractor enables local text extraction for PDF uploads. Nil
	// leaves extraction to the server.
	Extractor TextExtractor

	// PollWindow caps how long Run waits on the event stream. Zero
	// means the server's subscription window.
	PollWindow time.Duration

	OnProgress func(progress int)
	OnState    func(state State)

	mu        sync.Mutex
	state     State
	progress  int
	sessionID string
	failure   *Failure
}

// New constructs a Client against the given API base URL.
func New(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		HTTP:    httpClient,
		BaseURL: strings.TrimRight(baseURL, "/"),
		state:   StateIdle,
	}
}

// State returns the current job phase.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Progress returns the last observed progress value.
func (c *Client) Progress() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// SessionID returns the session created by the current or last run.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// LastFailure returns the failure from the last run, or nil.
func (c *Client) LastFailure() *Failure {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failure == nil {
		return nil
	}
	f := *c.failure
	return &f
}

// Reset returns the client to idle. A remote job already submitted is
// abandoned, not cancelled; the server drives it to a terminal state on
// its own.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateIdle
	c.progress = 0
	c.sessionID = ""
	c.failure = nil
}

// Run executes the full pipeline for one file. On failure the returned
// error is a Failure and is also retained on the client.
func (c *Client) Run(ctx context.Context, file File) (Result, error) {
	c.Reset()

	c.setState(StateValidating)
	meta := filecheck.FileMeta{Name: file.Name, MimeType: file.MimeType, SizeBytes: int64(len(file.Data))}
	if err := filecheck.Check(meta, fileHead(file.Data)); err != nil {
		return Result{}, c.fail(Failure{
			Reason:      ReasonValidation,
			Title:       "Invalid file",
			Description: validationMessage(err),
		})
	}

	sessionID, err := c.createSession(ctx)
	if err != nil {
		return Result{}, c.fail(Failure{
			Reason:      ReasonSession,
			Title:       "Could not start analysis",
			Description: "Failed to create an analysis session. Please try again.",
		})
	}
	c.setSessionID(sessionID)

	c.setState(StateUploading)
	if err := c.upload(ctx, sessionID, file); err != nil {
		var failure Failure
		if errors.As(err, &failure) {
			return Result{}, c.fail(failure)
		}
		return Result{}, c.fail(Failure{
			Reason:      ReasonUpload,
			Title:       "Upload failed",
			Description: "The scan could not be uploaded. Please try again.",
		})
	}

	reportText := ""
	if isPDF(file.MimeType) && c.Extractor != nil {
		c.setState(StateExtractingText)
		reportText, err = c.Extractor.Extract(ctx, file.Data)
		if err != nil {
			if errors.Is(err, pdftext.ErrUnreadable) {
				return Result{}, c.fail(Failure{
					Reason:      ReasonUnreadablePDF,
					Title:       "Unreadable PDF",
					Description: "No text could be read from this PDF. Please upload a clearer copy.",
				})
			}
			return Result{}, c.fail(Failure{
				Reason:      ReasonUnreadablePDF,
				Title:       "Unreadable PDF",
				Description: "The PDF could not be processed.",
			})
		}
	}

	c.setState(StateSubmitted)
	if err := c.analyze(ctx, sessionID, reportText); err != nil {
		var failure Failure
		if errors.As(err, &failure) {
			return Result{}, c.fail(failure)
		}
		return Result{}, c.fail(Failure{
			Reason:      ReasonAnalyze,
			Title:       "Analysis failed",
			Description: "The analysis could not be started. Please try again.",
		})
	}

	c.setState(StatePolling)
	if err := c.follow(ctx, sessionID); err != nil {
		var failure Failure
		if errors.As(err, &failure) {
			return Result{}, c.fail(failure)
		}
		return Result{}, c.fail(Failure{
			Reason:      ReasonAnalyze,
			Title:       "Analysis failed",
			Description: "The analysis did not complete. Please try again.",
		})
	}

	result, err := c.fetchResult(ctx, sessionID)
	if err != nil {
		return Result{}, c.fail(Failure{
			Reason:      ReasonAnalyze,
			Title:       "Result unavailable",
			Description: "The analysis finished but its result could not be loaded.",
		})
	}

	c.setState(StateCompleted)
	return result, nil
}

func (c *Client) createSession(ctx context.Context) (string, error) {
	resp, err := c.post(ctx, "/api/v1/sessions", "application/json", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create session status %d", resp.StatusCode)
	}
	var session struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", err
	}
	if session.ID == "" {
		return "", errors.New("create session: empty id")
	}
	return session.ID, nil
}

func (c *Client) upload(ctx context.Context, sessionID string, file File) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, file.Name))
	header.Set("Content-Type", file.MimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := part.Write(file.Data); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	resp, err := c.post(ctx, "/api/v1/sessions/"+sessionID+"/upload", writer.FormDataContentType(), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return Failure{
			Reason:      ReasonUpload,
			Title:       "Upload failed",
			Description: errorMessage(resp.Body, "The scan could not be uploaded. Please try again."),
		}
	}
	var img struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&img); err != nil || img.ID == "" {
		return Failure{
			Reason:      ReasonMetadata,
			Title:       "Upload incomplete",
			Description: "The scan was stored but its record could not be confirmed.",
		}
	}
	return nil
}

func (c *Client) analyze(ctx context.Context, sessionID, reportText string) error {
	payload, err := json.Marshal(map[string]string{
		"sessionId": sessionID,
		"pdfText":   reportText,
	})
	if err != nil {
		return err
	}
	resp, err := c.post(ctx, "/api/v1/analyze", "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return Failure{
			Reason:      ReasonAnalyze,
			Title:       "Analysis failed",
			Description: errorMessage(resp.Body, "The analysis could not be started. Please try again."),
		}
	}
	return nil
}

// follow reads the session's SSE event stream until a terminal status.
// The subscription is capped client-side; expiry is a timeout failure.
func (c *Client) follow(ctx context.Context, sessionID string) error {
	window := c.PollWindow
	if window <= 0 {
		window = sessions.SubscribeWindow
	}
	ctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/v1/sessions/"+sessionID+"/events", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return timeoutOr(ctx, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("events status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var u struct {
			Status    string `json:"status"`
			Progress  int    `json:"progress"`
			ErrorCode string `json:"errorCode"`
		}
		if err := json.Unmarshal([]byte(payload), &u); err != nil {
			continue
		}
		c.observeProgress(u.Progress)

		switch u.Status {
		case sessions.StatusCompleted:
			return nil
		case sessions.StatusFailed:
			return Failure{
				Reason:      ReasonAnalyze,
				Title:       "Analysis failed",
				Description: failureDescription(u.ErrorCode),
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return timeoutOr(ctx, err)
	}
	// Stream closed without a terminal status: the subscription window
	// expired on one side or the other.
	return timeoutFailure()
}

func (c *Client) fetchResult(ctx context.Context, sessionID string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/v1/sessions/"+sessionID+"/result", nil)
	if err != nil {
		return Result{}, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("result status %d", resp.StatusCode)
	}
	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, err
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return c.HTTP.Do(req)
}

func (c *Client) setState(state State) {
	c.mu.Lock()
	c.state = state
	cb := c.OnState
	c.mu.Unlock()
	if cb != nil {
		cb(state)
	}
}

func (c *Client) setSessionID(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

// observeProgress keeps the published progress monotonic regardless of
// event ordering on the wire.
func (c *Client) observeProgress(progress int) {
	c.mu.Lock()
	if progress <= c.progress {
		c.mu.Unlock()
		return
	}
	c.progress = progress
	cb := c.OnProgress
	c.mu.Unlock()
	if cb != nil {
		cb(progress)
	}
}

func (c *Client) fail(failure Failure) error {
	c.mu.Lock()
	c.failure = &failure
	c.state = StateFailed
	cb := c.OnState
	c.mu.Unlock()
	if cb != nil {
		cb(StateFailed)
	}
	return failure
}

func timeoutOr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return timeoutFailure()
	}
	return err
}

func timeoutFailure() Failure {
	return Failure{
		Reason:      ReasonTimeout,
		Title:       "Analysis timed out",
		Description: "The analysis is taking longer than expected. Please check back later.",
	}
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, filecheck.ErrFileTooLarge):
		return "The file exceeds the 10 MB limit."
	case errors.Is(err, filecheck.ErrInvalidType):
		return "Only JPEG, PNG, DICOM and PDF files are supported."
	case errors.Is(err, filecheck.ErrSignatureMismatch):
		return "The file content does not match its declared type."
	default:
		return "The file could not be validated."
	}
}

func failureDescription(errorCode string) string {
	switch errorCode {
	case "PDF_001":
		return "The PDF could not be read. Please upload a clearer copy."
	case "INPUT_001":
		return "No valid scan file was found for this session."
	case "":
		return "The analysis failed. Please try again."
	default:
		return "The analysis failed. Please try again. (" + errorCode + ")"
	}
}

func errorMessage(body io.Reader, fallback string) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return fallback
}

func fileHead(data []byte) []byte {
	if len(data) > filecheck.HeaderLen {
		return data[:filecheck.HeaderLen]
	}
	return data
}

func isPDF(mimeType string) bool {
	return strings.EqualFold(mimeType, "application/pdf")
}
