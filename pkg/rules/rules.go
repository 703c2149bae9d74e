package rules

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// RuleSet is the data form of the unit file format's constraints.
// The prompt builder, the corrector and the linter all read from it.
type RuleSet struct {
	Naming       NamingRule    `yaml:"naming"`
	Sections     SectionRules  `yaml:"sections"`
	Core         CoreRules     `yaml:"core"`
	Images       AssetRules    `yaml:"images"`
	Sounds       AssetRules    `yaml:"sounds"`
	Keywords     []string      `yaml:"asset_keywords"`
	Movement     MovementRules `yaml:"movement"`
	Build        BuildRules    `yaml:"build"`
	ImageStyle   ImageStyle    `yaml:"image_style"`
	Temperatures Temperatures  `yaml:"temperatures"`

	namingRe *regexp.Regexp
}

type NamingRule struct {
	Pattern string `yaml:"pattern"`
	Example string `yaml:"example"`
}

type SectionRules struct {
	Required []string          `yaml:"required"`
	Attack   ConditionalSection `yaml:"attack"`
}

type ConditionalSection struct {
	Name string `yaml:"name"`
	When string `yaml:"when"`
}

type CoreRules struct {
	Section       string   `yaml:"section"`
	IdentifierKey string   `yaml:"identifier_key"`
	ClassKey      string   `yaml:"class_key"`
	ClassValue    string   `yaml:"class_value"`
	NumericKeys   []string `yaml:"numeric_keys"`
}

// AssetRules lists the keys whose values name asset files, and the file
// extensions a bundled asset may have. The first extension is the one
// unusable names are rewritten to.
type AssetRules struct {
	Keys       []string `yaml:"keys"`
	Extensions []string `yaml:"extensions"`
}

func (a AssetRules) HasExtension(name string) bool {
	return hasExtension(name, a.Extensions)
}

// DefaultExtension returns the first allowed extension.
func (a AssetRules) DefaultExtension() string {
	if len(a.Extensions) == 0 {
		return ""
	}
	return strings.ToLower(a.Extensions[0])
}

type MovementRules struct {
	Section string   `yaml:"section"`
	TypeKey string   `yaml:"type_key"`
	Types   []string `yaml:"types"`
}

type BuildRules struct {
	SectionPrefix string `yaml:"section_prefix"`
	Key           string `yaml:"key"`
}

type ImageStyle struct {
	Prefix      string `yaml:"prefix"`
	AspectRatio string `yaml:"aspect_ratio"`
}

type Temperatures struct {
	Generation float64 `yaml:"generation"`
	Edit       float64 `yaml:"edit"`
	Rename     float64 `yaml:"rename"`
	Corrector  float64 `yaml:"corrector"`
}

var (
	defaultOnce sync.Once
	defaultSet  *RuleSet
)

// Default returns the embedded rule-set. It panics if the embedded document is
// broken, which only happens when rules.yaml is edited into an invalid state.
func Default() *RuleSet {
	defaultOnce.Do(func() {
		rs, err := Load(defaultRulesYAML)
		if err != nil {
			panic(fmt.Sprintf("invalid embedded rules.yaml: %v", err))
		}
		defaultSet = rs
	})
	return defaultSet
}

// Load decodes and checks a rule-set document.
func Load(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to decode rules: %w", err)
	}
	if err := rs.validate(); err != nil {
		return nil, err
	}
	re, err := regexp.Compile(rs.Naming.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid naming pattern: %w", err)
	}
	rs.namingRe = re
	return &rs, nil
}

// LoadFile reads a rule-set document from disk. An empty path gives the
// embedded default.
func LoadFile(path string) (*RuleSet, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return Load(data)
}

func (r *RuleSet) validate() error {
	switch {
	case r.Naming.Pattern == "":
		return fmt.Errorf("naming.pattern is required")
	case r.Core.Section == "" || r.Core.IdentifierKey == "":
		return fmt.Errorf("core.section and core.identifier_key are required")
	case len(r.Images.Keys) == 0:
		return fmt.Errorf("images.keys must not be empty")
	case len(r.Images.Extensions) == 0 || len(r.Sounds.Extensions) == 0:
		return fmt.Errorf("images.extensions and sounds.extensions must not be empty")
	case r.Movement.TypeKey == "" || len(r.Movement.Types) == 0:
		return fmt.Errorf("movement.type_key and movement.types are required")
	case r.Build.SectionPrefix == "" || r.Build.Key == "":
		return fmt.Errorf("build.section_prefix and build.key are required")
	}
	return nil
}

// ValidUnitName reports whether name follows the unit naming rule.
func (r *RuleSet) ValidUnitName(name string) bool {
	return r.namingRe.MatchString(name)
}

func (r *RuleSet) IsImageKey(key string) bool {
	return containsFold(r.Images.Keys, key)
}

func (r *RuleSet) IsSoundKey(key string) bool {
	return containsFold(r.Sounds.Keys, key)
}

// IsBuildSection reports whether a section header declares build options.
func (r *RuleSet) IsBuildSection(section string) bool {
	return strings.HasPrefix(strings.ToLower(section), strings.ToLower(r.Build.SectionPrefix))
}

// IsMovementType reports whether value is one of the allowed movement tokens.
// Tokens are matched exactly; the game loader is case sensitive here.
func (r *RuleSet) IsMovementType(value string) bool {
	for _, t := range r.Movement.Types {
		if t == value {
			return true
		}
	}
	return false
}

func (r *RuleSet) IsImageFile(name string) bool {
	return r.Images.HasExtension(name)
}

func (r *RuleSet) IsSoundFile(name string) bool {
	return r.Sounds.HasExtension(name)
}

// IsAssetKeyword reports whether value is an engine keyword such as NONE.
func (r *RuleSet) IsAssetKeyword(value string) bool {
	return containsFold(r.Keywords, value)
}

func hasExtension(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
