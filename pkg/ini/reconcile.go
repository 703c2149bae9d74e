package ini

import (
	"strings"
)

// Reconcile forces the [core] name key to unitName without calling a model.
//
// The first name line of the first [core] section is overwritten; if [core]
// has none, one is inserted right after the header; if there is no [core]
// section, a new one is prepended ahead of the original content. No other
// line is touched, line terminators included, and reconciling twice gives
// the same text.
func Reconcile(text, unitName string) string {
	lines := SplitLines(text)
	nameLine := "name: " + unitName

	coreIdx := -1
	for i, raw := range lines {
		if m := sectionRe.FindStringSubmatch(raw); m != nil && strings.EqualFold(m[1], "core") {
			coreIdx = i
			break
		}
	}

	if coreIdx < 0 {
		nl := lineEnd(lines[0]) + "\n"
		return "[core]" + nl + nameLine + nl + nl + strings.Join(lines, "\n")
	}

	for i := coreIdx + 1; i < len(lines); i++ {
		if sectionRe.MatchString(lines[i]) {
			break
		}
		if m := keyValueRe.FindStringSubmatch(lines[i]); m != nil && strings.EqualFold(m[1], "name") {
			lines[i] = nameLine + lineEnd(lines[i])
			return strings.Join(lines, "\n")
		}
	}

	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:coreIdx+1]...)
	out = append(out, nameLine+lineEnd(lines[coreIdx]))
	out = append(out, lines[coreIdx+1:]...)
	return strings.Join(out, "\n")
}
