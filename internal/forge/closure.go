package forge

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jwebster45206/modforge/pkg/ini"
	"github.com/jwebster45206/modforge/pkg/mod"
	"github.com/jwebster45206/modforge/pkg/response"
	"github.com/jwebster45206/modforge/pkg/rules"
)

// repairGenerated makes a new unit's file and asset lists agree before any
// asset is generated.
//
// Without an audio clip every sound-bearing line is removed. File values
// that cannot ship as written (tank.jpg, tank, shot.flac) are rewritten to
// usable names, and declared images are renamed the same way so their
// prompts still match. Images the file references but the model did not
// describe get a request built from the user's description; described images
// the file never references are dropped. The sound list becomes exactly the
// referenced sound files.
func repairGenerated(content string, declared []response.ImageRequest, hasAudio bool, description string, rs *rules.RuleSet) (string, []response.ImageRequest, []string) {
	if !hasAudio {
		content = ini.StripKeys(content, rs.IsSoundKey)
	}
	content = ini.CanonicalizeAssets(content, rs)
	refs := ini.References(content, rs)

	byName := map[string]response.ImageRequest{}
	for _, img := range declared {
		img.Name = ini.CanonicalFile(img.Name, rs.Images)
		if _, dup := byName[img.Name]; !dup {
			byName[img.Name] = img
		}
	}

	images := make([]response.ImageRequest, 0, len(refs.Images))
	for _, name := range refs.Images {
		if img, ok := byName[name]; ok {
			images = append(images, img)
			continue
		}
		images = append(images, response.ImageRequest{Name: name, Prompt: fallbackImagePrompt(description, name)})
	}

	var sounds []string
	if hasAudio {
		sounds = refs.Sounds
	}
	return content, images, sounds
}

func fallbackImagePrompt(description, filename string) string {
	subject := strings.TrimSuffix(filename, filepath.Ext(filename))
	subject = strings.ReplaceAll(subject, "_", " ")
	if description == "" {
		return subject
	}
	return fmt.Sprintf("%s, %s", description, subject)
}

// repairEdited keeps an edited file within the assets the unit already has.
// File values are first rewritten to usable names, so tank.jpg still finds
// tank.png. Sound lines that name a file the unit does not have are removed.
// Assets the file no longer references are dropped. A reference to an image
// the unit does not have cannot be repaired, since edits never generate
// images.
func repairEdited(content string, unit *mod.GeneratedUnit, rs *rules.RuleSet) (string, []mod.Asset, []mod.Asset, error) {
	content = ini.CanonicalizeAssets(content, rs)
	known := unit.SoundNames()
	content = ini.StripLines(content, func(l ini.Line) bool {
		if l.Kind != ini.LineKeyValue || !rs.IsSoundKey(l.Key) {
			return false
		}
		for _, v := range ini.FileValues(l.Value, rs) {
			if !slices.Contains(known, v) {
				return true
			}
		}
		return false
	})

	refs := ini.References(content, rs)
	var unknown []string
	for _, name := range refs.Images {
		if !slices.Contains(unit.ImageNames(), name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return "", nil, nil, fmt.Errorf("%w: edit references new images %v, images are not regenerated on edit", mod.ErrClosure, unknown)
	}

	return content, keepReferenced(unit.Images, refs.Images), keepReferenced(unit.Sounds, refs.Sounds), nil
}

func keepReferenced(assets []mod.Asset, refs []string) []mod.Asset {
	var out []mod.Asset
	for _, a := range assets {
		if slices.Contains(refs, a.Name) {
			out = append(out, a)
		}
	}
	return out
}
