package chat

import (
	"fmt"
	"strings"
	"time"
)

const (
	ChatRoleUser = "user"
	ChatRoleAI   = "ai"
)

// ChatMessage is one entry of a session transcript. Entries are never
// modified after they are appended.
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"image_url,omitempty"`
	AudioURL  string    `json:"audio_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RequestType names the operation a user turn asks for.
type RequestType string

const (
	RequestTypeGenerate RequestType = "generate"
	RequestTypeEdit     RequestType = "edit"
	RequestTypeRename   RequestType = "rename"
)

// ChatRequest is a user turn submitted to the modforge api.
type ChatRequest struct {
	Type     RequestType `json:"type"`
	Message  string      `json:"message"`
	ImageURL string      `json:"image_url,omitempty"` // data URL
	AudioURL string      `json:"audio_url,omitempty"` // data URL
	AutoFix  *bool       `json:"auto_fix,omitempty"`  // nil uses the session setting
}

func (cr *ChatRequest) Validate() error {
	switch cr.Type {
	case RequestTypeGenerate:
		if strings.TrimSpace(cr.Message) == "" && cr.ImageURL == "" {
			return fmt.Errorf("message or image is required")
		}
		if cr.ImageURL != "" && cr.AudioURL != "" {
			return fmt.Errorf("attach either an image or an audio clip, not both")
		}
	case RequestTypeEdit, RequestTypeRename:
		if strings.TrimSpace(cr.Message) == "" {
			return fmt.Errorf("message cannot be empty")
		}
		if cr.ImageURL != "" || cr.AudioURL != "" {
			return fmt.Errorf("attachments are only supported when generating a unit")
		}
	default:
		return fmt.Errorf("unknown request type %q", cr.Type)
	}
	return nil
}
