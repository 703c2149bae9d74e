package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jwebster45206/modforge/internal/forge"
	"github.com/jwebster45206/modforge/internal/services"
	"github.com/jwebster45206/modforge/pkg/chat"
	"github.com/jwebster45206/modforge/pkg/mod"
	"github.com/jwebster45206/modforge/pkg/queue"
	"github.com/jwebster45206/modforge/pkg/response"
	"github.com/jwebster45206/modforge/pkg/state"
	"github.com/jwebster45206/modforge/pkg/storage"
)

// Outcome is the user-facing result of one request. Err is set when the
// operation failed; the session then holds only the two new transcript
// entries.
type Outcome struct {
	Message  string
	UnitName string
	ModName  string
	Diff     string
	Units    []string
	Err      error
}

// Processor runs one queued request against its stored session.
type Processor struct {
	storage storage.Storage
	forge   *forge.Forge
	logger  *slog.Logger
}

func NewProcessor(storage storage.Storage, f *forge.Forge, logger *slog.Logger) *Processor {
	return &Processor{
		storage: storage,
		forge:   f,
		logger:  logger,
	}
}

// Process loads the session, runs the operation and saves the session with
// the user turn and an ai reply appended. The returned error covers storage
// problems only; operation failures are reported through Outcome.Err.
func (p *Processor) Process(ctx context.Context, req *queue.Request) (*Outcome, error) {
	s, err := p.storage.LoadSession(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if s == nil {
		return nil, fmt.Errorf("session not found: %s", req.SessionID)
	}

	s.AddMessage(chat.ChatMessage{
		Role:     chat.ChatRoleUser,
		Content:  req.Message,
		ImageURL: req.ImageURL,
		AudioURL: req.AudioURL,
	})

	out := p.run(ctx, s, req)
	if out.Err != nil {
		p.logger.Warn("Request failed", "request_id", req.RequestID, "session_id", s.ID, "type", req.Type, "error", out.Err)
		out.Message = FailureText(out.Err)
	}
	if s.Mod != nil {
		out.ModName = s.Mod.Name
		out.Units = s.UnitNames()
	}
	s.AddMessage(chat.ChatMessage{Role: chat.ChatRoleAI, Content: out.Message})

	if err := p.storage.SaveSession(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return out, nil
}

func (p *Processor) run(ctx context.Context, s *state.Session, req *queue.Request) *Outcome {
	switch req.Type {
	case chat.RequestTypeGenerate:
		in := forge.GenerateInput{Prompt: req.Message, AutoFix: req.AutoFix}
		var err error
		if in.Image, err = attachment(req.ImageURL, "image"); err != nil {
			return &Outcome{Err: err}
		}
		if in.Audio, err = attachment(req.AudioURL, "audio"); err != nil {
			return &Outcome{Err: err}
		}
		unit, err := p.forge.Generate(ctx, s, in)
		if err != nil {
			return &Outcome{Err: err}
		}
		return &Outcome{UnitName: unit.UnitName, Message: generatedText(unit)}

	case chat.RequestTypeEdit:
		res, err := p.forge.Edit(ctx, s, forge.EditInput{Instruction: req.Message, AutoFix: req.AutoFix})
		if err != nil {
			return &Outcome{Err: err}
		}
		added, removed := forge.DiffStats(res.Diff)
		msg := fmt.Sprintf("Updated %s (%d lines added, %d removed).", res.Unit.UnitName, added, removed)
		if res.Diff == "" {
			msg = fmt.Sprintf("%s already matches that request; nothing changed.", res.Unit.UnitName)
		}
		return &Outcome{UnitName: res.Unit.UnitName, Diff: res.Diff, Message: msg}

	case chat.RequestTypeRename:
		name, err := p.forge.RenameMod(ctx, s, req.Message)
		if err != nil {
			return &Outcome{Err: err}
		}
		return &Outcome{Message: fmt.Sprintf("The mod is now called %s.", name)}
	}
	return &Outcome{Err: fmt.Errorf("unknown request type %q", req.Type)}
}

func attachment(dataURL, kind string) (*mod.Attachment, error) {
	if dataURL == "" {
		return nil, nil
	}
	att, err := mod.ParseDataURL(dataURL)
	if err != nil {
		return nil, fmt.Errorf("invalid %s attachment: %w", kind, err)
	}
	return att, nil
}

func generatedText(u *mod.GeneratedUnit) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Created unit %s with %d image", u.UnitName, len(u.Images))
	if len(u.Images) != 1 {
		sb.WriteString("s")
	}
	if len(u.Sounds) > 0 {
		fmt.Fprintf(&sb, " and %d sound", len(u.Sounds))
		if len(u.Sounds) != 1 {
			sb.WriteString("s")
		}
	}
	sb.WriteString(".")
	return sb.String()
}

// FailureText explains a failed operation to the user. The mod is never
// changed by a failed operation, which every message says.
func FailureText(err error) string {
	const unchanged = " Your mod was not changed."
	switch {
	case errors.Is(err, services.ErrRequestTimeout):
		return "The model took too long to answer." + unchanged + " Please try again."
	case errors.Is(err, services.ErrEmptyResponse):
		return "The model returned an empty answer." + unchanged + " Please try again."
	case errors.Is(err, services.ErrTransport):
		return "The model service could not be reached." + unchanged
	case errors.Is(err, response.ErrMalformedResponse):
		return "The model's answer was not a usable unit definition." + unchanged + " Try rephrasing your request."
	case errors.Is(err, forge.ErrAssetSynthesis):
		return "Generating the unit's images or sounds failed." + unchanged
	case errors.Is(err, mod.ErrNoUnits):
		return "There is no unit yet. Describe a unit to generate one first."
	case errors.Is(err, mod.ErrInvalidName):
		return "That did not produce a valid mod name." + unchanged + " Names are PascalCase letters and digits."
	case errors.Is(err, mod.ErrClosure):
		return "The change referenced images or sounds the unit does not have." + unchanged
	}
	return "Something went wrong: " + err.Error() + "." + unchanged
}
