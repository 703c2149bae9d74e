package mod

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/modforge/pkg/ini"
	"github.com/jwebster45206/modforge/pkg/rules"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const DefaultModName = "MyMod"

var (
	ErrInvalidName = errors.New("invalid mod name")
	ErrNoUnits     = errors.New("mod has no units")
	ErrClosure     = errors.New("asset references do not match assets")
)

var (
	pascalNameRe = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)
	snakeNameRe  = regexp.MustCompile(`^[a-z][a-z0-9]*(_[a-z0-9]+)*$`)
	nonAlnumRe   = regexp.MustCompile(`[^A-Za-z0-9]+`)
)

// Mod is a named collection of units exported together.
type Mod struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Units       []GeneratedUnit `json:"units"`
}

type IniFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Asset is one generated image or sound stored under its exact filename.
type Asset struct {
	Name    string `json:"name"`
	DataURL string `json:"dataUrl"`
}

// GeneratedUnit is one buildable unit: its definition file and the assets it references.
type GeneratedUnit struct {
	ID        uuid.UUID `json:"id"`
	UnitName  string    `json:"unitName"`
	IniFile   IniFile   `json:"iniFile"`
	Images    []Asset   `json:"images"`
	Sounds    []Asset   `json:"sounds,omitempty"`
	Prompt    string    `json:"prompt,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func NewGeneratedUnit(unitName, content string, images, sounds []Asset, prompt string) *GeneratedUnit {
	now := time.Now()
	return &GeneratedUnit{
		ID:        uuid.New(),
		UnitName:  unitName,
		IniFile:   IniFile{Name: unitName + ".ini", Content: content},
		Images:    images,
		Sounds:    sounds,
		Prompt:    prompt,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// WithContent returns a copy of the unit with new definition text. Assets are kept.
func (u GeneratedUnit) WithContent(content string) GeneratedUnit {
	u.IniFile.Content = content
	u.UpdatedAt = time.Now()
	u.Images = slices.Clone(u.Images)
	u.Sounds = slices.Clone(u.Sounds)
	return u
}

func (u *GeneratedUnit) ImageNames() []string {
	return assetNames(u.Images)
}

func (u *GeneratedUnit) SoundNames() []string {
	return assetNames(u.Sounds)
}

// CheckClosure verifies that every asset filename is referenced by the
// definition file and every referenced filename has an asset.
func (u *GeneratedUnit) CheckClosure(rs *rules.RuleSet) error {
	if u.IniFile.Name != u.UnitName+".ini" {
		return fmt.Errorf("%w: file %s does not match unit %s", ErrClosure, u.IniFile.Name, u.UnitName)
	}
	refs := ini.References(u.IniFile.Content, rs)
	if images, sounds := refs.Unusable(rs); len(images)+len(sounds) > 0 {
		return fmt.Errorf("%w: unusable asset file names %v", ErrClosure, append(images, sounds...))
	}
	if missing, extra := diffSets(refs.Images, u.ImageNames()); len(missing)+len(extra) > 0 {
		return fmt.Errorf("%w: images without asset %v, assets not referenced %v", ErrClosure, missing, extra)
	}
	if missing, extra := diffSets(refs.Sounds, u.SoundNames()); len(missing)+len(extra) > 0 {
		return fmt.Errorf("%w: sounds without asset %v, assets not referenced %v", ErrClosure, missing, extra)
	}
	return nil
}

// ValidName reports whether name is folder safe: PascalCase letters and
// digits, or lowercase snake_case.
func ValidName(name string) bool {
	return pascalNameRe.MatchString(name) || snakeNameRe.MatchString(name)
}

// SanitizeModName turns a free-form answer such as "  the iron legion!" into
// a PascalCase candidate ("TheIronLegion"). The result may still be invalid,
// for example when the answer starts with a digit; callers must check ValidName.
func SanitizeModName(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`\"'")
	if ValidName(raw) {
		return raw
	}
	words := nonAlnumRe.Split(raw, -1)
	caser := cases.Title(language.English)
	var sb strings.Builder
	for _, w := range words {
		if w == "" {
			continue
		}
		if w == strings.ToUpper(w) || w == strings.ToLower(w) {
			sb.WriteString(caser.String(w))
		} else {
			sb.WriteString(strings.ToUpper(w[:1]) + w[1:])
		}
	}
	return sb.String()
}

// ToUnitName normalizes a model-provided unit name to lowercase snake_case.
func ToUnitName(raw string) string {
	var sb strings.Builder
	prevLower := false
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= 'A' && r <= 'Z':
			if prevLower {
				sb.WriteByte('_')
			}
			sb.WriteRune(r + ('a' - 'A'))
			prevLower = false
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			sb.WriteRune(r)
			prevLower = true
		default:
			sb.WriteByte('_')
			prevLower = false
		}
	}
	parts := strings.FieldsFunc(sb.String(), func(r rune) bool { return r == '_' })
	name := strings.Join(parts, "_")
	if name != "" && name[0] >= '0' && name[0] <= '9' {
		name = "unit_" + name
	}
	return name
}

func assetNames(assets []Asset) []string {
	names := make([]string, len(assets))
	for i, a := range assets {
		names[i] = a.Name
	}
	return names
}

// diffSets returns refs without an asset and assets without a ref.
func diffSets(refs, assets []string) (missing, extra []string) {
	for _, r := range refs {
		if !slices.Contains(assets, r) {
			missing = append(missing, r)
		}
	}
	for _, a := range assets {
		if !slices.Contains(refs, a) {
			extra = append(extra, a)
		}
	}
	return missing, extra
}
