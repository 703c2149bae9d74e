package ini

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/jwebster45206/modforge/pkg/rules"
)

// Finding is one semantic problem found by Lint.
type Finding struct {
	Line       int    `json:"line,omitempty"`
	Section    string `json:"section,omitempty"`
	Key        string `json:"key,omitempty"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

func (f Finding) String() string {
	var sb strings.Builder
	if f.Line > 0 {
		fmt.Fprintf(&sb, "line %d: ", f.Line)
	}
	sb.WriteString(f.Message)
	if f.Suggestion != "" {
		fmt.Fprintf(&sb, " (did you mean %s?)", f.Suggestion)
	}
	return sb.String()
}

type LintOptions struct {
	AllowedBuildTargets []string
	HasAudio            bool
}

// Lint checks a document against the rule-set beyond what Validate needs:
// required sections and keys, numeric values, the movement enum, build
// targets, asset filenames and forbidden sound keys.
func Lint(text string, rs *rules.RuleSet, opts LintOptions) []Finding {
	lines := Parse(text)
	var findings []Finding

	present := map[string]bool{}
	coreKeys := map[string]Line{}
	var movementLine *Line
	for i := range lines {
		l := lines[i]
		switch l.Kind {
		case LineSection:
			present[l.Section] = true
		case LineKeyValue:
			if l.Section == strings.ToLower(rs.Core.Section) {
				if _, ok := coreKeys[strings.ToLower(l.Key)]; !ok {
					coreKeys[strings.ToLower(l.Key)] = l
				}
			}
			if l.Section == strings.ToLower(rs.Movement.Section) && strings.EqualFold(l.Key, rs.Movement.TypeKey) && movementLine == nil {
				movementLine = &lines[i]
			}
		}
	}

	for _, s := range rs.Sections.Required {
		if present[strings.ToLower(s)] {
			continue
		}
		f := Finding{Section: s, Message: fmt.Sprintf("missing [%s] section", s)}
		if typo := nearest(s, sectionNames(present), 2); typo != "" {
			f.Message += fmt.Sprintf(", [%s] looks misspelled", typo)
			f.Suggestion = "[" + s + "]"
		}
		findings = append(findings, f)
	}

	required := append([]string{rs.Core.IdentifierKey, rs.Core.ClassKey}, rs.Core.NumericKeys...)
	for _, k := range required {
		if _, ok := coreKeys[strings.ToLower(k)]; !ok {
			findings = append(findings, Finding{Section: rs.Core.Section, Key: k, Message: fmt.Sprintf("missing %s in [%s]", k, rs.Core.Section)})
		}
	}
	if l, ok := coreKeys[strings.ToLower(rs.Core.ClassKey)]; ok && l.Value != rs.Core.ClassValue {
		findings = append(findings, Finding{
			Line: l.Number, Section: rs.Core.Section, Key: l.Key,
			Message:    fmt.Sprintf("%s must be %s, got %q", rs.Core.ClassKey, rs.Core.ClassValue, l.Value),
			Suggestion: rs.Core.ClassValue,
		})
	}
	for _, k := range rs.Core.NumericKeys {
		l, ok := coreKeys[strings.ToLower(k)]
		if !ok {
			continue
		}
		if _, err := strconv.ParseFloat(l.Value, 64); err != nil {
			findings = append(findings, Finding{
				Line: l.Number, Section: rs.Core.Section, Key: l.Key,
				Message: fmt.Sprintf("%s must be a number, got %q", l.Key, l.Value),
			})
		}
	}

	if movementLine == nil {
		if present[strings.ToLower(rs.Movement.Section)] {
			findings = append(findings, Finding{Section: rs.Movement.Section, Key: rs.Movement.TypeKey,
				Message: fmt.Sprintf("missing %s in [%s]", rs.Movement.TypeKey, rs.Movement.Section)})
		}
	} else if !rs.IsMovementType(movementLine.Value) {
		findings = append(findings, Finding{
			Line: movementLine.Number, Section: rs.Movement.Section, Key: movementLine.Key,
			Message:    fmt.Sprintf("%s %q is not one of %s", movementLine.Key, movementLine.Value, strings.Join(rs.Movement.Types, ", ")),
			Suggestion: nearest(strings.ToUpper(movementLine.Value), rs.Movement.Types, 3),
		})
	}

	allowed := map[string]bool{}
	for _, n := range opts.AllowedBuildTargets {
		allowed[n] = true
	}
	for _, l := range lines {
		if l.Kind != LineKeyValue {
			continue
		}
		if rs.IsBuildSection(l.Section) && strings.EqualFold(l.Key, rs.Build.Key) {
			for _, target := range splitValues(l.Value) {
				if !allowed[target] {
					findings = append(findings, Finding{
						Line: l.Number, Section: l.Section, Key: l.Key,
						Message:    fmt.Sprintf("build target %q is not a unit of this mod", target),
						Suggestion: nearest(target, opts.AllowedBuildTargets, 3),
					})
				}
			}
		}
		if kind, label, ok := assetKind(l.Key, rs); ok {
			for _, v := range FileValues(l.Value, rs) {
				if !UsableFile(v, kind) {
					findings = append(findings, Finding{
						Line: l.Number, Section: l.Section, Key: l.Key,
						Message:    fmt.Sprintf("%s file %q must be a plain file name ending in %s", label, v, strings.Join(kind.Extensions, ", ")),
						Suggestion: CanonicalFile(v, kind),
					})
				}
			}
		}
		if !opts.HasAudio && rs.IsSoundKey(l.Key) {
			findings = append(findings, Finding{
				Line: l.Number, Section: l.Section, Key: l.Key,
				Message: fmt.Sprintf("sound key %s is not allowed without an audio clip", l.Key),
			})
		}
	}

	return findings
}

func assetKind(key string, rs *rules.RuleSet) (rules.AssetRules, string, bool) {
	switch {
	case rs.IsImageKey(key):
		return rs.Images, "image", true
	case rs.IsSoundKey(key):
		return rs.Sounds, "sound", true
	}
	return rules.AssetRules{}, "", false
}

func sectionNames(present map[string]bool) []string {
	out := make([]string, 0, len(present))
	for s := range present {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// nearest returns the candidate closest to token within maxDist edits, or "".
func nearest(token string, candidates []string, maxDist int) string {
	best := ""
	bestDist := maxDist + 1
	for _, c := range candidates {
		if c == token {
			continue
		}
		d := levenshtein.ComputeDistance(token, c)
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
