package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jwebster45206/modforge/pkg/chat"
	"github.com/jwebster45206/modforge/pkg/ini"
	"github.com/jwebster45206/modforge/pkg/mod"
	"github.com/jwebster45206/modforge/pkg/queue"
	"github.com/jwebster45206/modforge/pkg/state"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type enqueueResponse struct {
	RequestID string       `json:"request_id"`
	Status    queue.Status `json:"status"`
}

type validateResponse struct {
	Result   ini.Result    `json:"result"`
	Findings []ini.Finding `json:"findings"`
}

// APIClient talks to the modforge API.
type APIClient struct {
	client  *http.Client
	baseURL string
}

func NewAPIClient(client *http.Client, baseURL string) *APIClient {
	return &APIClient{client: client, baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (c *APIClient) Healthy() bool {
	resp, err := c.client.Get(c.baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

// do sends a request and decodes a JSON answer into out when the status
// matches want. Any other status is returned as the API's error message.
func (c *APIClient) do(method, path string, body any, want int, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != want {
		return apiError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func apiError(status int, body []byte) error {
	var errorResp ErrorResponse
	if err := json.Unmarshal(body, &errorResp); err != nil || errorResp.Error == "" {
		return fmt.Errorf("API returned status %d: %s", status, string(body))
	}
	return fmt.Errorf("%s", errorResp.Error)
}

func (c *APIClient) CreateSession(autoFix bool) (*state.Session, error) {
	var s state.Session
	if err := c.do(http.MethodPost, "/v1/sessions", map[string]bool{"auto_fix": autoFix}, http.StatusCreated, &s); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &s, nil
}

func (c *APIClient) GetSession(id uuid.UUID) (*state.Session, error) {
	var s state.Session
	if err := c.do(http.MethodGet, "/v1/sessions/"+id.String(), nil, http.StatusOK, &s); err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

// Submit queues a request and returns its ID.
func (c *APIClient) Submit(sessionID uuid.UUID, req chat.ChatRequest) (string, error) {
	var resp enqueueResponse
	if err := c.do(http.MethodPost, "/v1/sessions/"+sessionID.String()+"/requests", req, http.StatusAccepted, &resp); err != nil {
		return "", err
	}
	return resp.RequestID, nil
}

func (c *APIClient) RequestStatus(requestID string) (*queue.RequestStatus, error) {
	var st queue.RequestStatus
	if err := c.do(http.MethodGet, "/v1/requests/"+requestID, nil, http.StatusOK, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *APIClient) Validate(content string, units []string, hasAudio bool) (*validateResponse, error) {
	body := map[string]any{"content": content, "allowed_build_targets": units, "has_audio": hasAudio}
	var resp validateResponse
	if err := c.do(http.MethodPost, "/v1/validate", body, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Export downloads the mod archive and returns it with the file name the API
// suggests.
func (c *APIClient) Export(sessionID uuid.UUID) ([]byte, string, error) {
	resp, err := c.client.Get(c.baseURL + "/v1/sessions/" + sessionID.String() + "/export")
	if err != nil {
		return nil, "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", apiError(resp.StatusCode, data)
	}

	name := "mod.zip"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = params["filename"]
	}
	return data, name, nil
}

// readAttachment loads a local file as a data URL. The mime type is sniffed
// from the content.
func readAttachment(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	mimeType := http.DetectContentType(data)
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	if mimeType == "application/ogg" {
		mimeType = "audio/ogg"
	}
	a := &mod.Attachment{MimeType: mimeType, Data: data}
	if !a.IsImage() && !a.IsAudio() {
		return "", fmt.Errorf("%s is %s, not an image or audio clip", path, mimeType)
	}
	return a.DataURL(), nil
}
