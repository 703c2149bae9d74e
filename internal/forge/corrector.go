package forge

import (
	"context"
	"log/slog"
	"time"

	"github.com/jwebster45206/modforge/internal/services"
	"github.com/jwebster45206/modforge/pkg/ini"
	"github.com/jwebster45206/modforge/pkg/prompts"
	"github.com/jwebster45206/modforge/pkg/response"
	"github.com/jwebster45206/modforge/pkg/rules"
)

// CorrectOptions describes what the corrected file may reference.
type CorrectOptions struct {
	UnitName            string
	AllowedBuildTargets []string
	ImageNames          []string
	SoundNames          []string
	HasAudio            bool
}

// Corrector runs the low temperature repair pass over a unit file.
type Corrector struct {
	llm    services.LLMService
	rules  *rules.RuleSet
	logger *slog.Logger
}

func NewCorrector(llm services.LLMService, rs *rules.RuleSet, logger *slog.Logger) *Corrector {
	return &Corrector{llm: llm, rules: rs, logger: logger}
}

// Correct asks the model to fix text against the rule checklist and the
// local linter's findings. It never fails: on any error the input is
// returned unchanged. The result is not guaranteed to be valid.
func (c *Corrector) Correct(ctx context.Context, text string, opts CorrectOptions) string {
	findings := c.findings(text, opts)

	req, err := prompts.New().
		WithRules(c.rules).
		WithKind(prompts.KindCorrect).
		WithDocument(opts.UnitName, text, opts.ImageNames, opts.SoundNames, opts.HasAudio).
		WithExistingUnits(opts.AllowedBuildTargets).
		WithFindings(findings).
		Build()
	if err != nil {
		c.logger.Warn("Skipping correction", "unit_name", opts.UnitName, "error", err)
		return text
	}

	start := time.Now()
	raw, err := c.llm.Generate(ctx, req)
	if err != nil {
		c.logger.Warn("Correction call failed, keeping text", "unit_name", opts.UnitName, "error", err)
		return text
	}
	corrected, err := response.ParseEdit(raw)
	if err != nil {
		c.logger.Warn("Correction returned nothing usable, keeping text", "unit_name", opts.UnitName, "error", err)
		return text
	}

	c.logger.Debug("Correction complete", "unit_name", opts.UnitName, "findings", len(findings),
		"duration_ms", time.Since(start).Milliseconds())
	return corrected
}

func (c *Corrector) findings(text string, opts CorrectOptions) []string {
	var out []string
	if res := ini.Validate(text); !res.IsValid {
		out = append(out, res.Error)
	}
	for _, f := range ini.Lint(text, c.rules, ini.LintOptions{
		AllowedBuildTargets: opts.AllowedBuildTargets,
		HasAudio:            opts.HasAudio,
	}) {
		out = append(out, f.String())
	}
	return out
}
