// Package export packages a mod as the zip archive the game loads.
//
// Layout:
//
//	<ModName>/mod-info.txt
//	<ModName>/<unit>/<unit>.ini
//	<ModName>/<unit>/<image and sound files>
package export

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/jwebster45206/modforge/pkg/ini"
	"github.com/jwebster45206/modforge/pkg/mod"
	"github.com/jwebster45206/modforge/pkg/rules"
)

var ErrInvalidUnit = errors.New("unit cannot be exported")

// Check reports the first unit that would produce a broken archive.
func Check(m *mod.Mod, rs *rules.RuleSet) error {
	if rs == nil {
		rs = rules.Default()
	}
	if m == nil || len(m.Units) == 0 {
		return mod.ErrNoUnits
	}
	if !mod.ValidName(m.Name) {
		return fmt.Errorf("%w: %q", mod.ErrInvalidName, m.Name)
	}
	for i := range m.Units {
		u := &m.Units[i]
		if res := ini.Validate(u.IniFile.Content); !res.IsValid {
			return fmt.Errorf("%w: %s: %s", ErrInvalidUnit, u.UnitName, res.Error)
		}
		if err := u.CheckClosure(rs); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidUnit, u.UnitName, err)
		}
	}
	return nil
}

// WriteArchive checks the mod and writes it as a zip archive to w. Nothing is
// written when the check fails.
func WriteArchive(w io.Writer, m *mod.Mod, rs *rules.RuleSet) error {
	if err := Check(m, rs); err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	modified := time.Now()
	write := func(name string, data []byte) error {
		f, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: modified})
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", name, err)
		}
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		return nil
	}

	if err := write(path.Join(m.Name, "mod-info.txt"), []byte(ModInfo(m))); err != nil {
		return err
	}
	for _, u := range m.Units {
		dir := path.Join(m.Name, u.UnitName)
		if err := write(path.Join(dir, u.IniFile.Name), []byte(u.IniFile.Content)); err != nil {
			return err
		}
		for _, a := range append(append([]mod.Asset{}, u.Images...), u.Sounds...) {
			att, err := mod.ParseDataURL(a.DataURL)
			if err != nil {
				return fmt.Errorf("%w: %s/%s: %w", ErrInvalidUnit, u.UnitName, a.Name, err)
			}
			if err := write(path.Join(dir, a.Name), att.Data); err != nil {
				return err
			}
		}
	}
	return zw.Close()
}

// ModInfo renders mod-info.txt.
func ModInfo(m *mod.Mod) string {
	desc := m.Description
	if desc == "" {
		desc = fmt.Sprintf("%d units generated with modforge", len(m.Units))
	}
	desc = strings.Join(strings.Fields(desc), " ")
	return fmt.Sprintf("[mod]\ntitle: %s\ndescription: %s\n", m.Name, desc)
}
