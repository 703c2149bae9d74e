package ini

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jwebster45206/modforge/pkg/rules"
)

var (
	assetFileRe  = regexp.MustCompile(`^[A-Za-z0-9_\-]+\.[A-Za-z0-9]+$`)
	assetStemBad = regexp.MustCompile(`[^A-Za-z0-9_\-]+`)
)

// ValueKind classifies one value of an image- or sound-bearing key.
type ValueKind int

const (
	// ValueExternal is a path or a ROOT: style reference the game resolves
	// outside the unit folder.
	ValueExternal ValueKind = iota
	// ValueKeyword is an engine keyword such as NONE or AUTO.
	ValueKeyword
	// ValueFile is anything else: a file that must ship with the unit.
	ValueFile
)

func ClassifyAssetValue(v string, rs *rules.RuleSet) ValueKind {
	switch {
	case strings.ContainsAny(v, `/\:`):
		return ValueExternal
	case rs.IsAssetKeyword(v):
		return ValueKeyword
	}
	return ValueFile
}

// UsableFile reports whether name can be shipped as an asset of the given
// kind: a plain filename with an allowed extension.
func UsableFile(name string, kind rules.AssetRules) bool {
	return assetFileRe.MatchString(name) && kind.HasExtension(name)
}

// CanonicalFile rewrites a file value into a usable filename. Usable names
// are returned unchanged; otherwise the extension is replaced by the kind's
// default and other characters become underscores, so "tank.jpg" and "tank"
// both become "tank.png".
func CanonicalFile(name string, kind rules.AssetRules) string {
	if UsableFile(name, kind) {
		return name
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	stem = strings.Trim(assetStemBad.ReplaceAllString(stem, "_"), "_")
	if stem == "" {
		stem = "asset"
	}
	return stem + kind.DefaultExtension()
}

// AssetRefs lists the asset files a document references.
type AssetRefs struct {
	Images []string
	Sounds []string
}

// References collects the file values of image- and sound-bearing keys,
// deduplicated, in order of first appearance. Values are returned as
// written, usable or not.
func References(text string, rs *rules.RuleSet) AssetRefs {
	var refs AssetRefs
	seenImg := map[string]bool{}
	seenSnd := map[string]bool{}

	for _, l := range Parse(text) {
		if l.Kind != LineKeyValue {
			continue
		}
		switch {
		case rs.IsImageKey(l.Key):
			for _, v := range FileValues(l.Value, rs) {
				if !seenImg[v] {
					seenImg[v] = true
					refs.Images = append(refs.Images, v)
				}
			}
		case rs.IsSoundKey(l.Key):
			for _, v := range FileValues(l.Value, rs) {
				if !seenSnd[v] {
					seenSnd[v] = true
					refs.Sounds = append(refs.Sounds, v)
				}
			}
		}
	}
	return refs
}

// Unusable returns the references that could not be shipped as written.
func (a AssetRefs) Unusable(rs *rules.RuleSet) (images, sounds []string) {
	for _, v := range a.Images {
		if !UsableFile(v, rs.Images) {
			images = append(images, v)
		}
	}
	for _, v := range a.Sounds {
		if !UsableFile(v, rs.Sounds) {
			sounds = append(sounds, v)
		}
	}
	return images, sounds
}

// CanonicalizeAssets rewrites every file value of image- and sound-bearing
// keys with CanonicalFile. Lines without such values are kept byte for byte.
func CanonicalizeAssets(text string, rs *rules.RuleSet) string {
	lines := Parse(text)
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Raw
		if l.Kind != LineKeyValue {
			continue
		}
		var kind rules.AssetRules
		switch {
		case rs.IsImageKey(l.Key):
			kind = rs.Images
		case rs.IsSoundKey(l.Key):
			kind = rs.Sounds
		default:
			continue
		}

		values := splitValues(l.Value)
		changed := false
		for j, v := range values {
			if ClassifyAssetValue(v, rs) != ValueFile {
				continue
			}
			if c := CanonicalFile(v, kind); c != v {
				values[j] = c
				changed = true
			}
		}
		if changed {
			out[i] = l.Raw[:strings.Index(l.Raw, ":")+1] + " " + strings.Join(values, ", ") + lineEnd(l.Raw)
		}
	}
	return strings.Join(out, "\n")
}

// BuildTargets returns the unit names listed by build sections.
func BuildTargets(text string, rs *rules.RuleSet) []string {
	var out []string
	seen := map[string]bool{}
	for _, l := range Parse(text) {
		if l.Kind != LineKeyValue || !rs.IsBuildSection(l.Section) || !strings.EqualFold(l.Key, rs.Build.Key) {
			continue
		}
		for _, v := range splitValues(l.Value) {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

// StripKeys removes every key/value line whose key matches drop.
func StripKeys(text string, drop func(key string) bool) string {
	return StripLines(text, func(l Line) bool {
		return l.Kind == LineKeyValue && drop(l.Key)
	})
}

// StripLines removes every line for which drop returns true.
func StripLines(text string, drop func(l Line) bool) string {
	lines := Parse(text)
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if !drop(l) {
			out = append(out, l.Raw)
		}
	}
	return strings.Join(out, "\n")
}

// FileValues returns the values of an asset key's comma separated list that
// name files bundled with the unit.
func FileValues(value string, rs *rules.RuleSet) []string {
	var out []string
	for _, v := range splitValues(value) {
		if ClassifyAssetValue(v, rs) == ValueFile {
			out = append(out, v)
		}
	}
	return out
}

func splitValues(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
