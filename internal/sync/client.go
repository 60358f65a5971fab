package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/config"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/logger"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/types"
)

// Client is the HTTP client for the remote case API. It owns no state
// beyond the session token: each operation is a single request/response
// mapping with a bounded timeout and no retries.
type Client struct {
	baseURL      string
	readClient   *http.Client
	uploadClient *http.Client
	logger       *logger.Logger

	mu    sync.RWMutex
	token string
}

// NewClient creates a new case API client
func NewClient(cfg *config.SyncConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		readClient: &http.Client{
			Timeout: time.Duration(cfg.ReadTimeout) * time.Second,
		},
		uploadClient: &http.Client{
			Timeout: time.Duration(cfg.UploadTimeout) * time.Second,
		},
		logger: log,
	}
}

// SetToken sets the bearer token attached to subsequent requests
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// ListCases retrieves the case list visible to the current session
func (c *Client) ListCases(ctx context.Context) ([]*types.MedicalCase, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/cases", "", nil)
	if err != nil {
		return nil, err
	}

	var cases []*types.MedicalCase
	if err := c.do(c.readClient, req, "list_cases", &cases); err != nil {
		return nil, err
	}

	for _, mc := range cases {
		markSynced(mc)
	}
	return cases, nil
}

// CreateCase submits a new case as a multipart form with an optional
// image attachment. Uploads get the longer timeout.
func (c *Client) CreateCase(ctx context.Context, input *types.CreateCaseInput) (*types.MedicalCase, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("description", input.Description); err != nil {
		return nil, fmt.Errorf("failed to write description field: %w", err)
	}
	if input.Modality != "" {
		if err := writer.WriteField("modality", string(input.Modality)); err != nil {
			return nil, fmt.Errorf("failed to write modality field: %w", err)
		}
	}
	if len(input.Tags) > 0 {
		if err := writer.WriteField("tags", strings.Join(input.Tags, ",")); err != nil {
			return nil, fmt.Errorf("failed to write tags field: %w", err)
		}
	}
	if len(input.ImageData) > 0 {
		name := input.ImageName
		if name == "" {
			name = "image"
		}
		part, err := writer.CreateFormFile("image", name)
		if err != nil {
			return nil, fmt.Errorf("failed to create image part: %w", err)
		}
		if _, err := part.Write(input.ImageData); err != nil {
			return nil, fmt.Errorf("failed to write image part: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/cases", writer.FormDataContentType(), body)
	if err != nil {
		return nil, err
	}

	created := &types.MedicalCase{}
	if err := c.do(c.uploadClient, req, "create_case", created); err != nil {
		return nil, err
	}

	markSynced(created)
	return created, nil
}

// SendMessage posts a chat message to a case thread
func (c *Client) SendMessage(ctx context.Context, caseID, text string) (*types.CaseMessage, error) {
	payload, err := json.Marshal(&types.MessageRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	path := fmt.Sprintf("/api/cases/%s/messages", caseID)
	req, err := c.newRequest(ctx, http.MethodPost, path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	msg := &types.CaseMessage{}
	if err := c.do(c.readClient, req, "send_message", msg); err != nil {
		return nil, err
	}

	msg.SyncState = types.SyncStateSynced
	return msg, nil
}

// SubmitDiagnosis submits a doctor diagnosis, transitioning the case to
// completed
func (c *Client) SubmitDiagnosis(ctx context.Context, caseID, feedback string) (*types.MedicalCase, error) {
	payload, err := json.Marshal(&types.DiagnosisRequest{Feedback: feedback})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal diagnosis: %w", err)
	}

	path := fmt.Sprintf("/api/cases/%s/diagnosis", caseID)
	req, err := c.newRequest(ctx, http.MethodPost, path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	updated := &types.MedicalCase{}
	if err := c.do(c.readClient, req, "submit_diagnosis", updated); err != nil {
		return nil, err
	}

	markSynced(updated)
	return updated, nil
}

// MarkAsRead clears the unread flag for the caller's role
func (c *Client) MarkAsRead(ctx context.Context, caseID string) error {
	path := fmt.Sprintf("/api/cases/%s/read", caseID)
	req, err := c.newRequest(ctx, http.MethodPatch, path, "", nil)
	if err != nil {
		return err
	}

	return c.do(c.readClient, req, "mark_as_read", nil)
}

// newRequest builds a request with the session bearer token attached
func (c *Client) newRequest(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return req, nil
}

// do executes the request and maps failures to the NetworkError /
// ServerError taxonomy. Transport failures and timeouts become
// NetworkError so the coordinator can branch to its fallback without
// inspecting error internals.
func (c *Client) do(client *http.Client, req *http.Request, op string, out interface{}) error {
	resp, err := client.Do(req)
	if err != nil {
		return &types.NetworkError{Op: op, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &types.ServerError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    readErrorMessage(resp.Body),
		}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &types.ServerError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("malformed response body: %v", err),
		}
	}

	return nil
}

// readErrorMessage extracts a human-readable message from an error
// response body
func readErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}

	var structured struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &structured); err == nil {
		if structured.Message != "" {
			return structured.Message
		}
		if structured.Detail != "" {
			return structured.Detail
		}
	}

	return strings.TrimSpace(string(raw))
}

// markSynced tags a case and its messages as server-confirmed
func markSynced(c *types.MedicalCase) {
	c.SyncState = types.SyncStateSynced
	for i := range c.Messages {
		c.Messages[i].SyncState = types.SyncStateSynced
	}
}
