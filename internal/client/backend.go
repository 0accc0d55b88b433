// Package client talks to the remote exam backend on behalf of the session engine.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/stemsi/exstem-client/internal/model"
)

// ErrBackendUnavailable wraps transport failures (DNS, refused, timeouts).
var ErrBackendUnavailable = errors.New("exam backend unavailable")

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("backend request failed with status %d", e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// envelope mirrors the backend's standard response wrapper.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// HTTPBackend implements the exam backend contract over HTTP+JSON.
type HTTPBackend struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPBackend creates a backend client. An empty token sends no
// Authorization header; a nil httpClient uses http.DefaultClient.
func NewHTTPBackend(baseURL, token string, httpClient *http.Client) *HTTPBackend {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8080"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPBackend{
		baseURL:    baseURL,
		token:      strings.TrimSpace(token),
		httpClient: httpClient,
	}
}

// GetExamSummary fetches the timing summary for a session.
func (c *HTTPBackend) GetExamSummary(ctx context.Context, sessionID string) (*model.ExamSummary, error) {
	var summary model.ExamSummary
	if err := c.doJSON(ctx, http.MethodGet, sessionPath(sessionID, "summary"), nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// SubmitAnswer records a single answer with its time-spent telemetry.
func (c *HTTPBackend) SubmitAnswer(ctx context.Context, sessionID string, req model.AnswerSyncRequest) error {
	return c.doJSON(ctx, http.MethodPost, sessionPath(sessionID, "answers"), req, nil)
}

// SubmitExam sends the final answer map and returns the graded result.
func (c *HTTPBackend) SubmitExam(ctx context.Context, sessionID string, req model.SubmitExamRequest) (*model.ExamResult, error) {
	if req.Answers == nil {
		req.Answers = model.AnswerMap{}
	}

	var result model.ExamResult
	if err := c.doJSON(ctx, http.MethodPost, sessionPath(sessionID, "submit"), req, &result); err != nil {
		return nil, err
	}
	if result.SessionID == "" {
		result.SessionID = sessionID
	}
	return &result, nil
}

func sessionPath(sessionID, action string) string {
	return "/api/v1/student/sessions/" + url.PathEscape(sessionID) + "/" + action
}

func (c *HTTPBackend) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 300 {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
