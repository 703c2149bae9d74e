package mod

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Attachment is a binary payload supplied with a prompt or produced by a
// generator, carried around as a self-contained data URL.
type Attachment struct {
	MimeType string
	Data     []byte
}

// DataURL encodes the attachment as data:<mime>;base64,<payload>.
func (a *Attachment) DataURL() string {
	return "data:" + a.MimeType + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

func (a *Attachment) IsImage() bool {
	return strings.HasPrefix(a.MimeType, "image/")
}

func (a *Attachment) IsAudio() bool {
	return strings.HasPrefix(a.MimeType, "audio/")
}

// ParseDataURL decodes a base64 data URL.
func ParseDataURL(s string) (*Attachment, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, fmt.Errorf("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("data URL has no payload")
	}
	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, fmt.Errorf("data URL must be base64 encoded")
	}
	if mime == "" {
		return nil, fmt.Errorf("data URL has no mime type")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data URL payload: %w", err)
	}
	return &Attachment{MimeType: mime, Data: data}, nil
}
