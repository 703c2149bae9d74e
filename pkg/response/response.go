package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jwebster45206/modforge/pkg/mod"
	"github.com/jwebster45206/modforge/pkg/prompts"
)

// ErrMalformedResponse is returned when a model answer does not have the
// expected shape or is missing required fields.
var ErrMalformedResponse = errors.New("malformed model response")

// ImageRequest asks the image generator for one sprite stored under Name.
type ImageRequest struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

// UnitEnvelope is the structured answer to a generation request.
type UnitEnvelope struct {
	UnitName   string         `json:"unitName"`
	IniContent string         `json:"iniContent"`
	Images     []ImageRequest `json:"images"`
	Sounds     []string       `json:"sounds"`
}

// Result holds the parsed answer for any prompt kind. Unit is set for
// generation kinds, Text for everything else.
type Result struct {
	Unit *UnitEnvelope
	Text string
}

// Parse dispatches on the kind the request was built for.
func Parse(raw string, kind prompts.Kind) (*Result, error) {
	switch kind {
	case prompts.KindGenerateFromText, prompts.KindGenerateFromImage:
		env, err := ParseUnit(raw)
		if err != nil {
			return nil, err
		}
		return &Result{Unit: env}, nil
	case prompts.KindEdit, prompts.KindCorrect:
		text, err := ParseEdit(raw)
		if err != nil {
			return nil, err
		}
		return &Result{Text: text}, nil
	case prompts.KindRenameMod:
		name, err := ParseRename(raw)
		if err != nil {
			return nil, err
		}
		return &Result{Text: name}, nil
	}
	return nil, fmt.Errorf("unknown prompt kind %q", kind)
}

// ParseUnit decodes a generation envelope. The unit name is normalized to
// snake_case; image and sound names are trimmed and deduplicated.
func ParseUnit(raw string) (*UnitEnvelope, error) {
	cleaned := cleanJSON(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}

	var env UnitEnvelope
	if err := json.Unmarshal([]byte(cleaned), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	env.UnitName = mod.ToUnitName(env.UnitName)
	if env.UnitName == "" {
		return nil, fmt.Errorf("%w: unitName is required", ErrMalformedResponse)
	}
	if strings.TrimSpace(env.IniContent) == "" {
		return nil, fmt.Errorf("%w: iniContent is required", ErrMalformedResponse)
	}
	if len(env.Images) == 0 {
		return nil, fmt.Errorf("%w: images must list at least one image", ErrMalformedResponse)
	}

	seen := map[string]bool{}
	images := make([]ImageRequest, 0, len(env.Images))
	for i, img := range env.Images {
		img.Name = strings.TrimSpace(img.Name)
		img.Prompt = strings.TrimSpace(img.Prompt)
		if img.Name == "" || img.Prompt == "" {
			return nil, fmt.Errorf("%w: image %d needs a name and a prompt", ErrMalformedResponse, i)
		}
		if err := checkFilename(img.Name); err != nil {
			return nil, err
		}
		if seen[img.Name] {
			continue
		}
		seen[img.Name] = true
		images = append(images, img)
	}
	env.Images = images

	sounds := make([]string, 0, len(env.Sounds))
	for _, s := range env.Sounds {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		if err := checkFilename(s); err != nil {
			return nil, err
		}
		seen[s] = true
		sounds = append(sounds, s)
	}
	env.Sounds = sounds

	return &env, nil
}

// ParseEdit returns the file text of an edit or correction answer.
func ParseEdit(raw string) (string, error) {
	text := stripFences(raw)
	if text == "" {
		return "", fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}
	return text + "\n", nil
}

// ParseRename returns the first line of the answer without quotes or a
// trailing period. The candidate is not validated here.
func ParseRename(raw string) (string, error) {
	text := stripFences(raw)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.Trim(line, "`\"'*")
		line = strings.TrimSuffix(line, ".")
		if line != "" {
			return line, nil
		}
	}
	return "", fmt.Errorf("%w: empty response", ErrMalformedResponse)
}

func checkFilename(name string) error {
	if strings.ContainsAny(name, `/\:`) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q is not a plain filename", ErrMalformedResponse, name)
	}
	return nil
}
