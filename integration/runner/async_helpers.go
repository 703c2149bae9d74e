package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/modforge/pkg/chat"
	"github.com/jwebster45206/modforge/pkg/ini"
	"github.com/jwebster45206/modforge/pkg/queue"
	"github.com/jwebster45206/modforge/pkg/state"
)

const (
	// PollInterval is how often to check a request's status
	PollInterval = 1 * time.Second
	// RequestTimeout is max time to wait for a request to finish
	RequestTimeout = 3 * time.Minute
)

// EnqueueResponse is the answer of the request endpoint
type EnqueueResponse struct {
	RequestID string       `json:"request_id"`
	Status    queue.Status `json:"status"`
}

// ValidateResponse is the answer of the validate endpoint
type ValidateResponse struct {
	Result   ini.Result    `json:"result"`
	Findings []ini.Finding `json:"findings"`
}

func doJSON(ctx context.Context, client *http.Client, method, url string, body any, want int, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != want {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s returned %d (expected %d): %s", method, url, resp.StatusCode, want, string(data))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// CreateSession starts a new session. A nil autoFix uses the server default.
func CreateSession(ctx context.Context, client *http.Client, baseURL string, autoFix *bool) (*state.Session, error) {
	body := map[string]any{}
	if autoFix != nil {
		body["auto_fix"] = *autoFix
	}
	var s state.Session
	if err := doJSON(ctx, client, http.MethodPost, baseURL+"/v1/sessions", body, http.StatusCreated, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func GetSession(ctx context.Context, client *http.Client, baseURL string, sessionID uuid.UUID) (*state.Session, error) {
	var s state.Session
	if err := doJSON(ctx, client, http.MethodGet, baseURL+"/v1/sessions/"+sessionID.String(), nil, http.StatusOK, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SubmitRequest queues a request and returns its request_id
func SubmitRequest(ctx context.Context, client *http.Client, baseURL string, sessionID uuid.UUID, req chat.ChatRequest) (string, error) {
	var resp EnqueueResponse
	url := fmt.Sprintf("%s/v1/sessions/%s/requests", baseURL, sessionID)
	if err := doJSON(ctx, client, http.MethodPost, url, req, http.StatusAccepted, &resp); err != nil {
		return "", err
	}
	return resp.RequestID, nil
}

func GetRequestStatus(ctx context.Context, client *http.Client, baseURL string, requestID string) (*queue.RequestStatus, error) {
	var st queue.RequestStatus
	if err := doJSON(ctx, client, http.MethodGet, baseURL+"/v1/requests/"+requestID, nil, http.StatusOK, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// PollForRequest polls the status record until the request is completed or
// failed.
func PollForRequest(ctx context.Context, client *http.Client, baseURL string, requestID string, timeout time.Duration) (*queue.RequestStatus, error) {
	deadline := time.After(timeout)
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, fmt.Errorf("timeout waiting for request %s (waited %v)", requestID, timeout)
		case <-ticker.C:
			st, err := GetRequestStatus(ctx, client, baseURL, requestID)
			if err != nil {
				// Keep polling
				continue
			}
			if st.Status.Done() {
				return st, nil
			}
		}
	}
}

func ValidateContent(ctx context.Context, client *http.Client, baseURL string, content string, units []string, hasAudio bool) (*ValidateResponse, error) {
	body := map[string]any{"content": content, "allowed_build_targets": units, "has_audio": hasAudio}
	var resp ValidateResponse
	if err := doJSON(ctx, client, http.MethodPost, baseURL+"/v1/validate", body, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExportStatus requests the mod archive and returns the status code.
func ExportStatus(ctx context.Context, client *http.Client, baseURL string, sessionID uuid.UUID) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/v1/sessions/%s/export", baseURL, sessionID), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create export request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send export request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
