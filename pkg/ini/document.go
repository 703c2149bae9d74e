// Package ini reads and repairs unit definition files: [section] headers
// followed by key: value lines.
package ini

import (
	"regexp"
	"strings"
)

type LineKind int

const (
	LineBlank LineKind = iota
	LineComment
	LineSection
	LineKeyValue
	LineInvalid
)

var (
	sectionRe  = regexp.MustCompile(`^\s*\[([A-Za-z0-9_]+)\]\s*$`)
	keyValueRe = regexp.MustCompile(`^\s*([A-Za-z0-9_]+)\s*:\s*(.*)$`)
)

// Line is one classified line of a document. Section holds the lowercased
// name of the section the line belongs to (or declares, for headers).
type Line struct {
	Number  int
	Raw     string
	Kind    LineKind
	Section string
	Key     string
	Value   string
}

// SplitLines splits text on \n. A line ended by \r\n keeps its \r, so joining
// the lines with \n gives back the original text. A leading byte order mark
// is dropped.
func SplitLines(text string) []string {
	text = strings.TrimPrefix(text, "\ufeff")
	return strings.Split(text, "\n")
}

// lineEnd returns "\r" when raw came from a \r\n terminated line.
func lineEnd(raw string) string {
	if strings.HasSuffix(raw, "\r") {
		return "\r"
	}
	return ""
}

// Parse classifies every line of text.
func Parse(text string) []Line {
	raw := SplitLines(text)
	lines := make([]Line, 0, len(raw))
	section := ""
	for i, r := range raw {
		l := classify(r)
		l.Number = i + 1
		if l.Kind == LineSection {
			section = l.Section
		} else {
			l.Section = section
		}
		lines = append(lines, l)
	}
	return lines
}

func classify(raw string) Line {
	trimmed := strings.TrimSpace(raw)
	switch {
	case trimmed == "":
		return Line{Raw: raw, Kind: LineBlank}
	case isComment(trimmed):
		return Line{Raw: raw, Kind: LineComment}
	}
	if m := sectionRe.FindStringSubmatch(raw); m != nil {
		return Line{Raw: raw, Kind: LineSection, Section: strings.ToLower(m[1])}
	}
	if m := keyValueRe.FindStringSubmatch(raw); m != nil {
		return Line{Raw: raw, Kind: LineKeyValue, Key: m[1], Value: strings.TrimSpace(m[2])}
	}
	return Line{Raw: raw, Kind: LineInvalid}
}

func isComment(trimmed string) bool {
	return strings.HasPrefix(trimmed, "#") ||
		strings.HasPrefix(trimmed, ";") ||
		strings.HasPrefix(trimmed, "//")
}

// Sections returns the distinct lowercased section names in order of first appearance.
func Sections(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, l := range Parse(text) {
		if l.Kind == LineSection && !seen[l.Section] {
			seen[l.Section] = true
			out = append(out, l.Section)
		}
	}
	return out
}

// Value returns the first value of key inside section, both matched case-insensitively.
func Value(text, section, key string) (string, bool) {
	section = strings.ToLower(section)
	for _, l := range Parse(text) {
		if l.Kind == LineKeyValue && l.Section == section && strings.EqualFold(l.Key, key) {
			return l.Value, true
		}
	}
	return "", false
}
