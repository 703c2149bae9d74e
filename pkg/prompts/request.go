package prompts

import (
	"strings"
)

// Kind names the operation a prompt is built for.
type Kind string

const (
	KindGenerateFromText  Kind = "generate-from-text"
	KindGenerateFromImage Kind = "generate-from-image"
	KindEdit              Kind = "edit"
	KindRenameMod         Kind = "rename-mod"
	KindCorrect           Kind = "correct"
)

// Generates reports whether the kind produces a new unit envelope.
func (k Kind) Generates() bool {
	return k == KindGenerateFromText || k == KindGenerateFromImage
}

// InlineData is a binary attachment sent to the model next to the text.
type InlineData struct {
	MimeType string
	Data     []byte
}

// Part is one element of a multi-part prompt. Exactly one field is set.
type Part struct {
	Text   string
	Inline *InlineData
}

// Request is a provider-neutral model request. Providers translate it to
// their own wire format.
type Request struct {
	Kind        Kind
	System      string
	Parts       []Part
	Temperature float64

	// Schema is the JSON schema of a structured answer. Nil means the model
	// answers with plain text.
	Schema     map[string]any
	SchemaName string
}

// Text joins all text parts.
func (r *Request) Text() string {
	var texts []string
	for _, p := range r.Parts {
		if p.Inline == nil && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n\n")
}

// Attachments returns the inline parts whose mime type starts with prefix,
// for example "image/".
func (r *Request) Attachments(prefix string) []InlineData {
	var out []InlineData
	for _, p := range r.Parts {
		if p.Inline != nil && strings.HasPrefix(p.Inline.MimeType, prefix) {
			out = append(out, *p.Inline)
		}
	}
	return out
}
