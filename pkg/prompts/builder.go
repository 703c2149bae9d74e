package prompts

import (
	"fmt"
	"strings"
	"time"

	"github.com/jwebster45206/modforge/pkg/mod"
	"github.com/jwebster45206/modforge/pkg/rules"
)

// Builder constructs model requests using a fluent interface.
// The rule-set is rendered into every request that produces or repairs a
// unit file, so generation and correction always ask for the same format.
type Builder struct {
	rules         *rules.RuleSet
	kind          Kind
	userPrompt    string
	image         *mod.Attachment
	audio         *mod.Attachment
	audioDuration time.Duration
	existingUnits []string

	unitName   string
	content    string
	imageNames []string
	soundNames []string
	hasAudio   bool
	findings   []string

	modName string
}

// New creates a new prompt builder using the default rule-set.
func New() *Builder {
	return &Builder{rules: rules.Default()}
}

func (b *Builder) WithRules(rs *rules.RuleSet) *Builder {
	b.rules = rs
	return b
}

func (b *Builder) WithKind(kind Kind) *Builder {
	b.kind = kind
	return b
}

// WithUserPrompt sets the user's description, change request or naming hint.
func (b *Builder) WithUserPrompt(prompt string) *Builder {
	b.userPrompt = strings.TrimSpace(prompt)
	return b
}

func (b *Builder) WithImage(image *mod.Attachment) *Builder {
	b.image = image
	return b
}

// WithAudio attaches an audio clip. duration may be zero when it could not be
// measured.
func (b *Builder) WithAudio(audio *mod.Attachment, duration time.Duration) *Builder {
	b.audio = audio
	b.audioDuration = duration
	return b
}

// WithExistingUnits sets the unit names a canBuild section may reference.
func (b *Builder) WithExistingUnits(names []string) *Builder {
	b.existingUnits = names
	return b
}

// WithUnit targets an existing unit: its name, file and assets.
func (b *Builder) WithUnit(u *mod.GeneratedUnit) *Builder {
	b.unitName = u.UnitName
	b.content = u.IniFile.Content
	b.imageNames = u.ImageNames()
	b.soundNames = u.SoundNames()
	b.hasAudio = len(u.Sounds) > 0
	return b
}

// WithDocument sets the file to repair and the assets it may reference.
func (b *Builder) WithDocument(unitName, content string, imageNames, soundNames []string, hasAudio bool) *Builder {
	b.unitName = unitName
	b.content = content
	b.imageNames = imageNames
	b.soundNames = soundNames
	b.hasAudio = hasAudio
	return b
}

// WithFindings adds problems the local linter already found.
func (b *Builder) WithFindings(findings []string) *Builder {
	b.findings = findings
	return b
}

func (b *Builder) WithModName(name string) *Builder {
	b.modName = name
	return b
}

// Build validates the inputs for the kind and returns the request.
func (b *Builder) Build() (*Request, error) {
	if b.rules == nil {
		return nil, fmt.Errorf("rule-set is required")
	}
	if err := b.validate(); err != nil {
		return nil, err
	}

	switch b.kind {
	case KindGenerateFromText, KindGenerateFromImage:
		return b.buildGenerate(), nil
	case KindEdit:
		return b.buildEdit(), nil
	case KindRenameMod:
		return b.buildRename(), nil
	case KindCorrect:
		return b.buildCorrect(), nil
	}
	return nil, fmt.Errorf("unknown prompt kind %q", b.kind)
}

func (b *Builder) validate() error {
	if b.audio != nil && !b.kind.Generates() {
		return fmt.Errorf("audio can only be attached when generating a unit")
	}
	if b.audio != nil && !b.audio.IsAudio() {
		return fmt.Errorf("audio attachment has mime type %s", b.audio.MimeType)
	}
	switch b.kind {
	case KindGenerateFromText:
		if b.userPrompt == "" {
			return fmt.Errorf("prompt is required")
		}
	case KindGenerateFromImage:
		if b.image == nil {
			return fmt.Errorf("image is required")
		}
		if !b.image.IsImage() {
			return fmt.Errorf("image attachment has mime type %s", b.image.MimeType)
		}
	case KindEdit:
		if b.userPrompt == "" {
			return fmt.Errorf("change request is required")
		}
		if b.unitName == "" || b.content == "" {
			return fmt.Errorf("unit to edit is required")
		}
	case KindRenameMod:
		if b.userPrompt == "" {
			return fmt.Errorf("description is required")
		}
	case KindCorrect:
		if b.content == "" {
			return fmt.Errorf("document is required")
		}
	}
	return nil
}

func (b *Builder) buildGenerate() *Request {
	var sb strings.Builder
	if b.kind == KindGenerateFromImage {
		sb.WriteString("Design one unit for the mod based on the attached image. Keep its silhouette, colors and role recognizable.")
		if b.userPrompt != "" {
			sb.WriteString("\n\nAdditional instructions from the user:\n" + b.userPrompt)
		}
	} else {
		sb.WriteString("Design one unit for the mod from this description:\n" + b.userPrompt)
	}

	if b.audio != nil {
		sb.WriteString("\n\n" + b.audioText())
	}
	if len(b.existingUnits) > 0 {
		sb.WriteString("\n\nUnits already in this mod: " + strings.Join(b.existingUnits, ", ") + ".")
	}

	cs := b.rules.Constraints(rules.ConstraintOptions{
		Envelope:      true,
		HasAudio:      b.audio != nil,
		ExistingUnits: b.existingUnits,
	})
	sb.WriteString("\n\nFollow every rule:\n" + rules.Checklist(cs))
	sb.WriteString("\n" + EnvelopeInstructions)

	req := &Request{
		Kind:        b.kind,
		System:      GenerateSystemPrompt,
		Temperature: b.rules.Temperatures.Generation,
		Schema:      UnitEnvelopeSchema(),
		SchemaName:  UnitEnvelopeSchemaName,
	}
	req.Parts = append(req.Parts, Part{Text: sb.String()})
	if b.image != nil {
		req.Parts = append(req.Parts, Part{Inline: &InlineData{MimeType: b.image.MimeType, Data: b.image.Data}})
	}
	if b.audio != nil {
		req.Parts = append(req.Parts, Part{Inline: &InlineData{MimeType: b.audio.MimeType, Data: b.audio.Data}})
	}
	return req
}

func (b *Builder) audioText() string {
	length := "unknown length"
	if b.audioDuration > 0 {
		length = fmt.Sprintf("%.1f seconds", b.audioDuration.Seconds())
	}
	return fmt.Sprintf("An audio clip (%s, %s) was supplied for this unit. "+
		"Declare the sound filenames the unit should use; each one will contain this clip.",
		b.audio.MimeType, length)
}

func (b *Builder) buildEdit() *Request {
	cs := b.rules.Constraints(b.documentOptions())

	var sb strings.Builder
	fmt.Fprintf(&sb, "Current definition file of unit %s:\n\n%s\n\n", b.unitName, b.content)
	sb.WriteString("Change request:\n" + b.userPrompt + "\n\n")
	sb.WriteString("The updated file must still follow every rule:\n" + rules.Checklist(cs))
	sb.WriteString("\nReturn the complete updated file.")

	return &Request{
		Kind:        KindEdit,
		System:      EditSystemPrompt,
		Temperature: b.rules.Temperatures.Edit,
		Parts:       []Part{{Text: sb.String()}},
	}
}

func (b *Builder) buildRename() *Request {
	var sb strings.Builder
	if b.modName != "" {
		fmt.Fprintf(&sb, "The mod is currently named %s.\n", b.modName)
	}
	if len(b.existingUnits) > 0 {
		fmt.Fprintf(&sb, "It contains these units: %s.\n", strings.Join(b.existingUnits, ", "))
	}
	sb.WriteString("The user wants a new name:\n" + b.userPrompt + "\n\n")
	sb.WriteString("Reply with one PascalCase name made of letters and digits, for example IronLegion.")

	return &Request{
		Kind:        KindRenameMod,
		System:      RenameSystemPrompt,
		Temperature: b.rules.Temperatures.Rename,
		Parts:       []Part{{Text: sb.String()}},
	}
}

func (b *Builder) buildCorrect() *Request {
	cs := b.rules.Constraints(b.documentOptions())

	var sb strings.Builder
	sb.WriteString("Checklist:\n" + rules.Checklist(cs))
	if len(b.findings) > 0 {
		sb.WriteString("\nProblems already found in this file:\n")
		for _, f := range b.findings {
			sb.WriteString("- " + f + "\n")
		}
	}
	sb.WriteString("\nFile:\n\n" + b.content + "\n\nReturn the corrected file.")

	return &Request{
		Kind:        KindCorrect,
		System:      CorrectSystemPrompt,
		Temperature: b.rules.Temperatures.Corrector,
		Parts:       []Part{{Text: sb.String()}},
	}
}

func (b *Builder) documentOptions() rules.ConstraintOptions {
	return rules.ConstraintOptions{
		UnitName:      b.unitName,
		ImageNames:    b.imageNames,
		SoundNames:    b.soundNames,
		HasAudio:      b.hasAudio,
		ExistingUnits: b.existingUnits,
	}
}
