package mod

import (
	"errors"
	"testing"

	"github.com/jwebster45206/modforge/pkg/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidName(t *testing.T) {
	valid := []string{"MyMod", "IronLegion2", "iron_legion", "mod"}
	invalid := []string{"", "my mod", "2Fast", "Iron_Legion", "iron-legion", "_mod", "mod_"}

	for _, n := range valid {
		assert.True(t, ValidName(n), n)
	}
	for _, n := range invalid {
		assert.False(t, ValidName(n), n)
	}
}

func TestSanitizeModName(t *testing.T) {
	tests := map[string]string{
		"  the iron legion! ": "TheIronLegion",
		"\"SpacePirates\"":    "SpacePirates",
		"IRON legion":         "IronLegion",
		"steelWing mod":       "SteelWingMod",
		"iron_legion":         "iron_legion",
		"2 fast 2 furious":    "2Fast2Furious",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeModName(in), in)
	}
	assert.False(t, ValidName(SanitizeModName("2 fast 2 furious")))
}

func TestToUnitName(t *testing.T) {
	tests := map[string]string{
		"light_tank":    "light_tank",
		"LightTank":     "light_tank",
		"Light Tank!":   "light_tank",
		"heavy--mech  ": "heavy_mech",
		"2nd scout":     "unit_2nd_scout",
		"":              "",
	}
	for in, want := range tests {
		assert.Equal(t, want, ToUnitName(in), in)
	}
}

func TestGeneratedUnit_CheckClosure(t *testing.T) {
	rs := rules.Default()
	content := "[core]\nname: tank\nsoundOnMoveOrder: move.ogg\n[graphics]\nimage: tank.png\nimage_turret: turret.png\n"

	unit := NewGeneratedUnit("tank", content,
		[]Asset{{Name: "tank.png"}, {Name: "turret.png"}},
		[]Asset{{Name: "move.ogg"}}, "a tank")
	require.NoError(t, unit.CheckClosure(rs))
	assert.Equal(t, "tank.ini", unit.IniFile.Name)

	missing := NewGeneratedUnit("tank", content, []Asset{{Name: "tank.png"}}, []Asset{{Name: "move.ogg"}}, "")
	err := missing.CheckClosure(rs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrClosure))
	assert.Contains(t, err.Error(), "turret.png")

	extra := NewGeneratedUnit("tank", content,
		[]Asset{{Name: "tank.png"}, {Name: "turret.png"}, {Name: "unused.png"}},
		[]Asset{{Name: "move.ogg"}}, "")
	assert.ErrorIs(t, extra.CheckClosure(rs), ErrClosure)

	noSound := NewGeneratedUnit("tank", content, []Asset{{Name: "tank.png"}, {Name: "turret.png"}}, nil, "")
	assert.ErrorIs(t, noSound.CheckClosure(rs), ErrClosure)
}

func TestGeneratedUnit_CheckClosureRejectsUnusableNames(t *testing.T) {
	rs := rules.Default()
	tests := []struct {
		name    string
		content string
		images  []Asset
		sounds  []Asset
		wantIn  string
	}{
		{
			name:    "wrong image extension with matching asset",
			content: "[core]\nname: tank\n[graphics]\nimage: tank.jpg\n",
			images:  []Asset{{Name: "tank.jpg"}},
			wantIn:  "tank.jpg",
		},
		{
			name:    "extensionless image without asset",
			content: "[core]\nname: tank\n[graphics]\nimage: tank\n",
			wantIn:  "tank",
		},
		{
			name:    "wrong sound extension",
			content: "[core]\nname: tank\nshoot_sound: shot.flac\n[graphics]\nimage: NONE\n",
			sounds:  []Asset{{Name: "shot.flac"}},
			wantIn:  "shot.flac",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewGeneratedUnit("tank", tt.content, tt.images, tt.sounds, "").CheckClosure(rs)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrClosure)
			assert.Contains(t, err.Error(), tt.wantIn)
		})
	}

	keyword := NewGeneratedUnit("tank", "[core]\nname: tank\n[graphics]\nimage: NONE\nimage_shadow: AUTO\n", nil, nil, "")
	assert.NoError(t, keyword.CheckClosure(rs))
}

func TestGeneratedUnit_WithContentKeepsAssets(t *testing.T) {
	unit := NewGeneratedUnit("tank", "[core]\nname: tank", []Asset{{Name: "tank.png", DataURL: "data:image/png;base64,AA=="}}, nil, "")

	edited := unit.WithContent("[core]\nname: tank\nprice: 5")
	edited.Images[0].Name = "changed.png"

	assert.Equal(t, "tank.png", unit.Images[0].Name)
	assert.Equal(t, "[core]\nname: tank", unit.IniFile.Content)
	assert.Equal(t, unit.ID, edited.ID)
	assert.Equal(t, "tank.ini", edited.IniFile.Name)
}

func TestParseDataURL(t *testing.T) {
	a := &Attachment{MimeType: "audio/wav", Data: []byte("RIFF")}

	parsed, err := ParseDataURL(a.DataURL())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)
	assert.True(t, parsed.IsAudio())
	assert.False(t, parsed.IsImage())

	for _, bad := range []string{"http://x/y.png", "data:image/png;base64", "data:image/png,AAAA", "data:;base64,AA==", "data:image/png;base64,@@"} {
		_, err := ParseDataURL(bad)
		assert.Error(t, err, bad)
	}
}
