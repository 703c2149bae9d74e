package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/modforge/pkg/chat"
)

// Request is one queued user turn against a session.
type Request struct {
	RequestID string           `json:"request_id"`
	Type      chat.RequestType `json:"type"`
	SessionID uuid.UUID        `json:"session_id"`

	Message  string `json:"message,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	AudioURL string `json:"audio_url,omitempty"`
	AutoFix  bool   `json:"auto_fix"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// ToJSON converts the request to JSON bytes for Redis
func (r *Request) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON parses a request from JSON bytes
func FromJSON(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// Status is the lifecycle stage of a queued request.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Done reports whether the request has finished, successfully or not.
func (s Status) Done() bool {
	return s == StatusCompleted || s == StatusFailed
}

// RequestStatus is the pollable record kept for each request.
type RequestStatus struct {
	RequestID string           `json:"request_id"`
	SessionID uuid.UUID        `json:"session_id"`
	Type      chat.RequestType `json:"type"`
	Status    Status           `json:"status"`
	Error     string           `json:"error,omitempty"`

	// Set on completion.
	Message  string `json:"message,omitempty"`
	UnitName string `json:"unit_name,omitempty"`
	ModName  string `json:"mod_name,omitempty"`
	Diff     string `json:"diff,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewRequestStatus returns the queued record for req.
func NewRequestStatus(req *Request) *RequestStatus {
	return &RequestStatus{
		RequestID: req.RequestID,
		SessionID: req.SessionID,
		Type:      req.Type,
		Status:    StatusQueued,
		UpdatedAt: time.Now(),
	}
}
