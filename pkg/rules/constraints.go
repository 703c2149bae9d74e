package rules

import (
	"fmt"
	"strings"
)

type ConstraintID string

const (
	ConstraintSyntax       ConstraintID = "syntax"
	ConstraintNaming       ConstraintID = "naming"
	ConstraintSections     ConstraintID = "sections"
	ConstraintCoreKeys     ConstraintID = "core_keys"
	ConstraintImageClosure ConstraintID = "image_closure"
	ConstraintSounds       ConstraintID = "sounds"
	ConstraintMovementType ConstraintID = "movement_type"
	ConstraintBuildTargets ConstraintID = "build_targets"
)

// Constraint is one rule rendered as an instruction for a model.
type Constraint struct {
	ID   ConstraintID
	Text string
}

// ConstraintOptions carries the per-operation facts that change how rules read.
type ConstraintOptions struct {
	// UnitName pins the identifier when it is already known (edit, correct).
	UnitName string
	// Envelope is set when the model answers with the structured result that
	// lists images and sounds next to the file.
	Envelope bool
	// ImageNames and SoundNames are the asset files that already exist for the
	// unit. Used when there is no envelope to declare new ones.
	ImageNames []string
	SoundNames []string
	// HasAudio is true only when an audio clip was attached to this operation.
	HasAudio bool
	// ExistingUnits are the unit names a canBuild section may reference.
	ExistingUnits []string
}

// Constraints renders the rule-set in a fixed order.
func (r *RuleSet) Constraints(opts ConstraintOptions) []Constraint {
	cs := []Constraint{
		{ConstraintSyntax, "Write only section headers on their own line, like [core], and key: value lines. " +
			"Comments start with #. Never put a key on the same line as a section header."},
		{ConstraintNaming, r.namingText(opts)},
		{ConstraintSections, r.sectionsText()},
		{ConstraintCoreKeys, r.coreKeysText()},
		{ConstraintImageClosure, r.imageClosureText(opts)},
		{ConstraintSounds, r.soundsText(opts)},
		{ConstraintMovementType, fmt.Sprintf("[%s] must contain %s with exactly one of these values: %s. No other value is allowed.",
			r.Movement.Section, r.Movement.TypeKey, strings.Join(r.Movement.Types, ", "))},
		{ConstraintBuildTargets, r.buildText(opts)},
	}
	return cs
}

// Checklist formats constraints as a numbered list.
func Checklist(cs []Constraint) string {
	var sb strings.Builder
	for i, c := range cs {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, c.Text)
	}
	return sb.String()
}

func (r *RuleSet) namingText(opts ConstraintOptions) string {
	if opts.UnitName != "" {
		return fmt.Sprintf("The [%s] %s key must be exactly: %s",
			r.Core.Section, r.Core.IdentifierKey, opts.UnitName)
	}
	return fmt.Sprintf("unitName must be a single lowercase_snake_case token matching %s (for example %s). "+
		"The [%s] %s key must equal unitName exactly.",
		r.Naming.Pattern, r.Naming.Example, r.Core.Section, r.Core.IdentifierKey)
}

func (r *RuleSet) sectionsText() string {
	names := make([]string, len(r.Sections.Required))
	for i, s := range r.Sections.Required {
		names[i] = "[" + s + "]"
	}
	text := fmt.Sprintf("The file must contain the sections %s.", strings.Join(names, ", "))
	if r.Sections.Attack.Name != "" {
		text += fmt.Sprintf(" Add an [%s] section if and only if %s.", r.Sections.Attack.Name, r.Sections.Attack.When)
	}
	return text
}

func (r *RuleSet) coreKeysText() string {
	return fmt.Sprintf("[%s] must contain %s, %s: %s, and plain numeric values for %s.",
		r.Core.Section, r.Core.IdentifierKey, r.Core.ClassKey, r.Core.ClassValue,
		strings.Join(r.Core.NumericKeys, ", "))
}

func (r *RuleSet) imageClosureText(opts ConstraintOptions) string {
	keys := strings.Join(r.Images.Keys, ", ")
	exts := strings.Join(r.Images.Extensions, ", ")
	if opts.Envelope {
		return fmt.Sprintf("Every value of an image key (%s) that names a file must be a plain %s filename "+
			"that also appears as a name in the images list, and every entry of the images list must be "+
			"referenced by at least one image key. No folders in filenames.", keys, exts)
	}
	if len(opts.ImageNames) == 0 {
		return fmt.Sprintf("Image keys (%s) must not reference any new file.", keys)
	}
	return fmt.Sprintf("Image keys (%s) may only reference these existing files: %s. "+
		"Every one of them must stay referenced by at least one image key. Do not invent new image filenames.",
		keys, strings.Join(opts.ImageNames, ", "))
}

func (r *RuleSet) soundsText(opts ConstraintOptions) string {
	keys := strings.Join(r.Sounds.Keys, ", ")
	if !opts.HasAudio && len(opts.SoundNames) == 0 {
		return fmt.Sprintf("Do not use any sound key (%s) and do not reference any sound file.", keys)
	}
	if opts.Envelope {
		return fmt.Sprintf("An audio clip was supplied. List the output sound filenames (%s) in the sounds list "+
			"and reference every listed filename from a sound key (%s). Never reference a sound file that is not listed.",
			strings.Join(r.Sounds.Extensions, ", "), keys)
	}
	return fmt.Sprintf("Sound keys (%s) may only reference these existing files: %s, and every one of them must stay referenced.",
		keys, strings.Join(opts.SoundNames, ", "))
}

func (r *RuleSet) buildText(opts ConstraintOptions) string {
	if len(opts.ExistingUnits) == 0 {
		return fmt.Sprintf("Do not add any %sN section; no other units exist in this mod yet.", r.Build.SectionPrefix)
	}
	return fmt.Sprintf("A %sN section (%s_1, %s_2, ...) may only list, in its %s key, unit names from: %s. "+
		"Never reference any other unit.",
		r.Build.SectionPrefix, strings.TrimSuffix(r.Build.SectionPrefix, "_"), strings.TrimSuffix(r.Build.SectionPrefix, "_"),
		r.Build.Key, strings.Join(opts.ExistingUnits, ", "))
}
