package ini

import (
	"fmt"
	"strings"
)

type ErrorKind string

const (
	EmptyDocument   ErrorKind = "empty_document"
	SyntaxError     ErrorKind = "syntax_error"
	StructuralError ErrorKind = "structural_error"
)

const (
	MsgEmpty          = "Generated code is empty."
	MsgMissingCore    = "Missing [core] section."
	MsgMissingName    = "Missing 'name' key in [core] section."
	MsgMissingGraphic = "Missing [graphics] section."
	MsgMissingImage   = "Missing 'image' key in [graphics] section."
)

// Result is the outcome of Validate. Failures are values, not errors.
type Result struct {
	IsValid bool      `json:"isValid"`
	Error   string    `json:"error,omitempty"`
	Kind    ErrorKind `json:"kind,omitempty"`
	Line    int       `json:"line,omitempty"`
}

// Validate checks the minimal structure the game loader needs: every line is
// blank, a comment, a section header or a key/value pair, and the document
// has [core] with name and [graphics] with image.
// Only the first syntax error is reported.
func Validate(text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{IsValid: false, Error: MsgEmpty, Kind: EmptyDocument}
	}

	var hasCore, hasName, hasGraphics, hasImage bool
	for _, l := range Parse(text) {
		switch l.Kind {
		case LineInvalid:
			return Result{
				IsValid: false,
				Error:   fmt.Sprintf("Syntax error on line %d: %q", l.Number, strings.TrimSuffix(l.Raw, "\r")),
				Kind:    SyntaxError,
				Line:    l.Number,
			}
		case LineSection:
			switch l.Section {
			case "core":
				hasCore = true
			case "graphics":
				hasGraphics = true
			}
		case LineKeyValue:
			key := strings.ToLower(l.Key)
			if l.Section == "core" && key == "name" {
				hasName = true
			}
			if l.Section == "graphics" && key == "image" {
				hasImage = true
			}
		}
	}

	switch {
	case !hasCore:
		return structural(MsgMissingCore)
	case !hasName:
		return structural(MsgMissingName)
	case !hasGraphics:
		return structural(MsgMissingGraphic)
	case !hasImage:
		return structural(MsgMissingImage)
	}
	return Result{IsValid: true}
}

func structural(msg string) Result {
	return Result{IsValid: false, Error: msg, Kind: StructuralError}
}
