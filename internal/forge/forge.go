package forge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/modforge/internal/services"
	"github.com/jwebster45206/modforge/pkg/ini"
	"github.com/jwebster45206/modforge/pkg/mod"
	"github.com/jwebster45206/modforge/pkg/prompts"
	"github.com/jwebster45206/modforge/pkg/response"
	"github.com/jwebster45206/modforge/pkg/rules"
	"github.com/jwebster45206/modforge/pkg/state"
)

const DefaultRequestTimeout = 90 * time.Second

// Forge runs the generate, edit and rename pipelines against a session.
// A session is only modified when an operation succeeds.
type Forge struct {
	llm         services.LLMService
	synthesizer *Synthesizer
	corrector   *Corrector
	rules       *rules.RuleSet
	timeout     time.Duration
	logger      *slog.Logger
}

func New(llm services.LLMService, images services.ImageService, rs *rules.RuleSet, timeout time.Duration, logger *slog.Logger) *Forge {
	if rs == nil {
		rs = rules.Default()
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Forge{
		llm:         llm,
		synthesizer: NewSynthesizer(images, rs, logger),
		corrector:   NewCorrector(llm, rs, logger),
		rules:       rs,
		timeout:     timeout,
		logger:      logger,
	}
}

// SetImageConcurrency bounds how many images of one unit are requested at
// once. Values below one are ignored.
func (f *Forge) SetImageConcurrency(n int) {
	if n > 0 {
		f.synthesizer.concurrency = n
	}
}

type GenerateInput struct {
	Prompt  string
	Image   *mod.Attachment
	Audio   *mod.Attachment
	AutoFix bool
}

type EditInput struct {
	Instruction string
	AutoFix     bool
}

type EditResult struct {
	Unit *mod.GeneratedUnit
	Diff string
}

// Generate creates one unit and appends it to the session's mod.
func (f *Forge) Generate(ctx context.Context, s *state.Session, in GenerateInput) (*mod.GeneratedUnit, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	start := time.Now()

	kind := prompts.KindGenerateFromText
	if in.Image != nil {
		kind = prompts.KindGenerateFromImage
	}
	audioLength, err := AudioLength(in.Audio)
	if err != nil {
		return nil, err
	}

	existing := s.UnitNames()
	req, err := prompts.New().
		WithRules(f.rules).
		WithKind(kind).
		WithUserPrompt(in.Prompt).
		WithImage(in.Image).
		WithAudio(in.Audio, audioLength).
		WithExistingUnits(existing).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	raw, err := f.llm.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	env, err := response.ParseUnit(raw)
	if err != nil {
		return nil, err
	}

	unitName := s.UniqueUnitName(env.UnitName)
	hasAudio := in.Audio != nil
	content := ini.Reconcile(env.IniContent, unitName)
	if in.AutoFix {
		content = f.corrector.Correct(ctx, content, CorrectOptions{
			UnitName:            unitName,
			AllowedBuildTargets: existing,
			ImageNames:          imageRequestNames(env.Images),
			SoundNames:          env.Sounds,
			HasAudio:            hasAudio,
		})
		content = ini.Reconcile(content, unitName)
	}

	content, imageReqs, soundNames := repairGenerated(content, env.Images, hasAudio, in.Prompt, f.rules)
	images, sounds, err := f.synthesizer.Synthesize(ctx, imageReqs, soundNames, in.Audio)
	if err != nil {
		return nil, err
	}

	unit := mod.NewGeneratedUnit(unitName, content, images, sounds, in.Prompt)
	if err := unit.CheckClosure(f.rules); err != nil {
		return nil, err
	}
	s.AppendUnit(*unit)

	f.logger.Info("Unit generated", "session_id", s.ID, "unit_name", unitName, "kind", kind,
		"images", len(images), "sounds", len(sounds), "duration_ms", time.Since(start).Milliseconds())
	return unit, nil
}

// Edit rewrites the file of the most recently generated unit. Earlier units
// cannot be edited.
func (f *Forge) Edit(ctx context.Context, s *state.Session, in EditInput) (*EditResult, error) {
	latest := s.LatestUnit()
	if latest == nil {
		return nil, mod.ErrNoUnits
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	start := time.Now()

	names := s.UnitNames()
	others := names[:len(names)-1]
	req, err := prompts.New().
		WithRules(f.rules).
		WithKind(prompts.KindEdit).
		WithUnit(latest).
		WithUserPrompt(in.Instruction).
		WithExistingUnits(others).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	raw, err := f.llm.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	content, err := response.ParseEdit(raw)
	if err != nil {
		return nil, err
	}

	content = ini.Reconcile(content, latest.UnitName)
	if in.AutoFix {
		content = f.corrector.Correct(ctx, content, CorrectOptions{
			UnitName:            latest.UnitName,
			AllowedBuildTargets: others,
			ImageNames:          latest.ImageNames(),
			SoundNames:          latest.SoundNames(),
			HasAudio:            len(latest.Sounds) > 0,
		})
		content = ini.Reconcile(content, latest.UnitName)
	}

	content, images, sounds, err := repairEdited(content, latest, f.rules)
	if err != nil {
		return nil, err
	}

	before := latest.IniFile.Content
	edited := latest.WithContent(content)
	edited.Images = images
	edited.Sounds = sounds
	if err := edited.CheckClosure(f.rules); err != nil {
		return nil, err
	}
	if err := s.ReplaceLatestUnit(edited); err != nil {
		return nil, err
	}

	diff := LineDiff(before, content)
	added, removed := DiffStats(diff)
	f.logger.Info("Unit edited", "session_id", s.ID, "unit_name", edited.UnitName,
		"lines_added", added, "lines_removed", removed, "duration_ms", time.Since(start).Milliseconds())
	return &EditResult{Unit: s.LatestUnit(), Diff: diff}, nil
}

// RenameMod asks the model for a new mod name from a free-form description.
// Only the mod name changes; an unusable answer leaves the old name.
func (f *Forge) RenameMod(ctx context.Context, s *state.Session, description string) (string, error) {
	if s.Mod == nil {
		return "", mod.ErrNoUnits
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := prompts.New().
		WithRules(f.rules).
		WithKind(prompts.KindRenameMod).
		WithModName(s.Mod.Name).
		WithExistingUnits(s.UnitNames()).
		WithUserPrompt(description).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build prompt: %w", err)
	}

	raw, err := f.llm.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	candidate, err := response.ParseRename(raw)
	if err != nil {
		return "", err
	}

	name := mod.SanitizeModName(candidate)
	if err := s.RenameMod(name); err != nil {
		return "", err
	}
	f.logger.Info("Mod renamed", "session_id", s.ID, "mod_name", name)
	return name, nil
}

func imageRequestNames(reqs []response.ImageRequest) []string {
	names := make([]string, len(reqs))
	for i, r := range reqs {
		names[i] = r.Name
	}
	return names
}
