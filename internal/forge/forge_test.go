package forge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jwebster45206/modforge/internal/services"
	"github.com/jwebster45206/modforge/pkg/ini"
	"github.com/jwebster45206/modforge/pkg/mod"
	"github.com/jwebster45206/modforge/pkg/prompts"
	"github.com/jwebster45206/modforge/pkg/response"
	"github.com/jwebster45206/modforge/pkg/rules"
	"github.com/jwebster45206/modforge/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func unitFile(name string, extra string) string {
	return fmt.Sprintf(`[core]
name: %s
class: CustomUnitMetadata
price: 300
radius: 10
maxHp: 200
buildSpeed: 10
techLevel: 1
%s
[graphics]
image: %s.png

[movement]
movementType: LAND
`, name, extra, name)
}

func envelope(t *testing.T, name, content string, images []response.ImageRequest, sounds []string) string {
	t.Helper()
	if sounds == nil {
		sounds = []string{}
	}
	b, err := json.Marshal(response.UnitEnvelope{UnitName: name, IniContent: content, Images: images, Sounds: sounds})
	require.NoError(t, err)
	return string(b)
}

func newTestForge() (*Forge, *services.MockLLMAPI, *services.MockImageService) {
	llm := services.NewMockLLMAPI()
	images := services.NewMockImageService()
	return New(llm, images, rules.Default(), time.Second, testLogger()), llm, images
}

func TestForge_GenerateFromText(t *testing.T) {
	f, llm, images := newTestForge()
	s := state.NewSession(true)

	unit, err := f.Generate(context.Background(), s, GenerateInput{Prompt: "a small tank", AutoFix: false})
	require.NoError(t, err)

	assert.Equal(t, "mock_unit", unit.UnitName)
	assert.Equal(t, "mock_unit.ini", unit.IniFile.Name)
	assert.Equal(t, "a small tank", unit.Prompt)
	require.Len(t, unit.Images, 1)
	assert.Equal(t, "mock_unit.png", unit.Images[0].Name)
	assert.Equal(t, services.MockImageDataURL, unit.Images[0].DataURL)
	assert.Empty(t, unit.Sounds)
	assert.NoError(t, unit.CheckClosure(rules.Default()))

	calls := images.GetCalls()
	require.Len(t, calls, 1)
	assert.True(t, strings.HasPrefix(calls[0].Prompt, rules.Default().ImageStyle.Prefix))
	assert.Equal(t, "1:1", calls[0].AspectRatio)

	assert.Empty(t, llm.CallsOfKind(prompts.KindCorrect))
	require.NotNil(t, s.Mod)
	assert.Equal(t, mod.DefaultModName, s.Mod.Name)
	assert.Equal(t, []string{"mock_unit"}, s.UnitNames())
}

func TestForge_GenerateReconcilesIdentifier(t *testing.T) {
	f, llm, _ := newTestForge()
	s := state.NewSession(false)

	content := strings.Replace(unitFile("scout", ""), "name: scout", "name: Scout Unit", 1)
	llm.QueueResponses(prompts.KindGenerateFromText, envelope(t, "ScoutUnit", content,
		[]response.ImageRequest{{Name: "scout.png", Prompt: "a scout buggy"}}, nil))

	unit, err := f.Generate(context.Background(), s, GenerateInput{Prompt: "a scout"})
	require.NoError(t, err)

	assert.Equal(t, "scout_unit", unit.UnitName)
	v, ok := ini.Value(unit.IniFile.Content, "core", "name")
	require.True(t, ok)
	assert.Equal(t, "scout_unit", v)
	assert.True(t, ini.Validate(unit.IniFile.Content).IsValid)
}

func TestForge_GenerateRepairsClosure(t *testing.T) {
	f, llm, images := newTestForge()
	s := state.NewSession(false)

	content := unitFile("tank", "soundOnMoveOrder: move.ogg\n") + "\n[turret_1]\nimage: tank_turret.png\n"
	llm.QueueResponses(prompts.KindGenerateFromText, envelope(t, "tank", content,
		[]response.ImageRequest{
			{Name: "tank.png", Prompt: "a green tank hull"},
			{Name: "unused.png", Prompt: "never referenced"},
		}, []string{"move.ogg"}))

	unit, err := f.Generate(context.Background(), s, GenerateInput{Prompt: "heavy tank"})
	require.NoError(t, err)

	assert.Equal(t, []string{"tank.png", "tank_turret.png"}, unit.ImageNames())
	assert.Empty(t, unit.Sounds)
	assert.NotContains(t, unit.IniFile.Content, "soundOnMoveOrder")
	assert.NoError(t, unit.CheckClosure(rules.Default()))

	var sent []string
	for _, c := range images.GetCalls() {
		sent = append(sent, c.Prompt)
	}
	require.Len(t, sent, 2)
	joined := strings.Join(sent, "|")
	assert.Contains(t, joined, "heavy tank, tank turret")
	assert.NotContains(t, joined, "never referenced")
}

func TestForge_GenerateClosureProperty(t *testing.T) {
	rs := rules.Default()
	withImage := func(value string) string {
		return strings.Replace(unitFile("a", ""), "image: a.png", "image: "+value, 1)
	}
	cases := []struct {
		name       string
		content    string
		images     []response.ImageRequest
		sounds     []string
		audio      bool
		wantImages []string
		wantSounds []string
		wantPrompt string
	}{
		{name: "exact", content: unitFile("a", ""), images: []response.ImageRequest{{Name: "a.png", Prompt: "p"}}, wantImages: []string{"a.png"}},
		{name: "missing declared", content: unitFile("a", "") + "image_wreak: a_dead.png\n", images: []response.ImageRequest{{Name: "a.png", Prompt: "p"}}, wantImages: []string{"a.png", "a_dead.png"}},
		{name: "extra declared", content: unitFile("a", ""), images: []response.ImageRequest{{Name: "a.png", Prompt: "p"}, {Name: "b.png", Prompt: "p"}}, wantImages: []string{"a.png"}},
		{name: "none referenced", content: withImage("ROOT:shared.png"), images: []response.ImageRequest{{Name: "a.png", Prompt: "p"}}},
		{name: "engine keyword", content: withImage("NONE"), images: []response.ImageRequest{{Name: "a.png", Prompt: "p"}}},
		{name: "sound without audio", content: unitFile("a", "shoot_sound: bang.ogg\n"), images: []response.ImageRequest{{Name: "a.png", Prompt: "p"}}, sounds: []string{"bang.ogg"}, wantImages: []string{"a.png"}},
		{name: "sound with audio", content: unitFile("a", "shoot_sound: bang.wav\nsoundOnMoveOrder: go.wav\n"), images: []response.ImageRequest{{Name: "a.png", Prompt: "p"}}, sounds: []string{"bang.wav", "unused.wav"}, audio: true, wantImages: []string{"a.png"}, wantSounds: []string{"bang.wav", "go.wav"}},
		{name: "jpg image renamed with declared prompt", content: withImage("a.jpg"), images: []response.ImageRequest{{Name: "a.jpg", Prompt: "hull art"}}, wantImages: []string{"a.png"}, wantPrompt: "hull art"},
		{name: "extensionless image", content: withImage("a"), images: []response.ImageRequest{{Name: "other.png", Prompt: "p"}}, wantImages: []string{"a.png"}},
		{name: "wrong sound extension with audio", content: unitFile("a", "shoot_sound: bang.flac\nsoundOnMoveOrder: go\n"), images: []response.ImageRequest{{Name: "a.png", Prompt: "p"}}, sounds: []string{"bang.flac"}, audio: true, wantImages: []string{"a.png"}, wantSounds: []string{"bang.ogg", "go.ogg"}},
		{name: "wrong sound extension without audio", content: unitFile("a", "shoot_sound: bang.flac\n"), images: []response.ImageRequest{{Name: "a.png", Prompt: "p"}}, wantImages: []string{"a.png"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, llm, imageSvc := newTestForge()
			s := state.NewSession(false)
			llm.QueueResponses(prompts.KindGenerateFromText, envelope(t, "a", tc.content, tc.images, tc.sounds))

			in := GenerateInput{Prompt: "unit"}
			if tc.audio {
				in.Audio = &mod.Attachment{MimeType: "audio/wav", Data: makeWAV(4410, 44100)}
			}
			unit, err := f.Generate(context.Background(), s, in)
			require.NoError(t, err)
			assert.NoError(t, unit.CheckClosure(rs))
			assert.ElementsMatch(t, tc.wantImages, unit.ImageNames())
			if len(tc.wantSounds) == 0 {
				assert.Empty(t, unit.SoundNames())
			} else {
				assert.Equal(t, tc.wantSounds, unit.SoundNames())
			}

			images, sounds := ini.References(unit.IniFile.Content, rs).Unusable(rs)
			assert.Empty(t, images)
			assert.Empty(t, sounds)

			if tc.wantPrompt != "" {
				calls := imageSvc.GetCalls()
				require.Len(t, calls, 1)
				assert.Contains(t, calls[0].Prompt, tc.wantPrompt)
			}
			if tc.audio {
				require.Len(t, unit.Sounds, 2)
				assert.Equal(t, unit.Sounds[0].DataURL, unit.Sounds[1].DataURL)
				assert.Equal(t, in.Audio.DataURL(), unit.Sounds[0].DataURL)
			}
		})
	}
}

func TestForge_GenerateWithAudioDescribesClip(t *testing.T) {
	f, llm, _ := newTestForge()
	s := state.NewSession(false)

	_, err := f.Generate(context.Background(), s, GenerateInput{
		Prompt: "a mech",
		Audio:  &mod.Attachment{MimeType: "audio/wav", Data: makeWAV(22050, 44100)},
	})
	require.NoError(t, err)

	calls := llm.CallsOfKind(prompts.KindGenerateFromText)
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Text(), "audio/wav, 0.5 seconds")
	assert.Len(t, calls[0].Attachments("audio/"), 1)
}

func TestForge_GenerateRejectsBrokenAudio(t *testing.T) {
	f, llm, _ := newTestForge()
	s := state.NewSession(false)

	_, err := f.Generate(context.Background(), s, GenerateInput{
		Prompt: "a mech",
		Audio:  &mod.Attachment{MimeType: "audio/wav", Data: []byte("not a wav file")},
	})
	assert.Error(t, err)
	_, calls := llm.GetCalls()
	assert.Empty(t, calls)
	assert.Nil(t, s.Mod)
}

func TestForge_GenerateFromImage(t *testing.T) {
	f, llm, _ := newTestForge()
	s := state.NewSession(false)

	_, err := f.Generate(context.Background(), s, GenerateInput{
		Image: &mod.Attachment{MimeType: "image/png", Data: []byte("png")},
	})
	require.NoError(t, err)
	calls := llm.CallsOfKind(prompts.KindGenerateFromImage)
	require.Len(t, calls, 1)
	assert.Len(t, calls[0].Attachments("image/"), 1)
}

func TestForge_GenerateFailuresLeaveSessionUnchanged(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(llm *services.MockLLMAPI, images *services.MockImageService)
		wantErr error
	}{
		{
			name: "malformed response",
			setup: func(llm *services.MockLLMAPI, _ *services.MockImageService) {
				llm.QueueResponses(prompts.KindGenerateFromText, "Sorry, I can't do that.")
			},
			wantErr: response.ErrMalformedResponse,
		},
		{
			name: "transport failure",
			setup: func(llm *services.MockLLMAPI, _ *services.MockImageService) {
				llm.SetGenerateError(fmt.Errorf("%w: connection refused", services.ErrTransport))
			},
			wantErr: services.ErrTransport,
		},
		{
			name: "image failure",
			setup: func(_ *services.MockLLMAPI, images *services.MockImageService) {
				images.SetError(errors.New("content policy"))
			},
			wantErr: ErrAssetSynthesis,
		},
		{
			name: "image generator returns no image",
			setup: func(_ *services.MockLLMAPI, images *services.MockImageService) {
				images.GenerateImageFunc = func(ctx context.Context, prompt, aspect string) (string, error) {
					return "https://example.com/x.png", nil
				}
			},
			wantErr: ErrAssetSynthesis,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, llm, images := newTestForge()
			s := state.NewSession(false)
			_, err := f.Generate(context.Background(), s, GenerateInput{Prompt: "seed"})
			require.NoError(t, err)
			before, err := json.Marshal(s)
			require.NoError(t, err)

			tt.setup(llm, images)
			_, err = f.Generate(context.Background(), s, GenerateInput{Prompt: "a tank"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			after, err := json.Marshal(s)
			require.NoError(t, err)
			assert.JSONEq(t, string(before), string(after))
		})
	}
}

func TestForge_GenerateTimeout(t *testing.T) {
	llm := services.NewMockLLMAPI()
	llm.GenerateFunc = func(ctx context.Context, req *prompts.Request) (string, error) {
		<-ctx.Done()
		return "", fmt.Errorf("%w: %v", services.ErrRequestTimeout, ctx.Err())
	}
	f := New(llm, services.NewMockImageService(), nil, 10*time.Millisecond, testLogger())

	_, err := f.Generate(context.Background(), state.NewSession(false), GenerateInput{Prompt: "x"})
	assert.ErrorIs(t, err, services.ErrRequestTimeout)
}

func TestForge_GenerateUniqueNames(t *testing.T) {
	f, _, _ := newTestForge()
	s := state.NewSession(false)

	for i := 0; i < 3; i++ {
		_, err := f.Generate(context.Background(), s, GenerateInput{Prompt: "x"})
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"mock_unit", "mock_unit_2", "mock_unit_3"}, s.UnitNames())

	v, ok := ini.Value(s.Mod.Units[2].IniFile.Content, "core", "name")
	require.True(t, ok)
	assert.Equal(t, "mock_unit_3", v)
	assert.Equal(t, "mock_unit_3.ini", s.Mod.Units[2].IniFile.Name)
}

func TestForge_GenerateAutoFix(t *testing.T) {
	f, llm, _ := newTestForge()
	s := state.NewSession(true)

	broken := "[core]\nname: tank\nclass: CustomUnitMetadata\n[graphics]\nimage: tank.png\n[movement]\nmovementType: LNAD\n"
	llm.QueueResponses(prompts.KindGenerateFromText, envelope(t, "tank", broken,
		[]response.ImageRequest{{Name: "tank.png", Prompt: "tank"}}, nil))
	// the corrector answers with a wrong name; the reconciler must still win
	llm.QueueResponses(prompts.KindCorrect, "```\n"+strings.Replace(unitFile("tank", ""), "name: tank", "name: tonk", 1)+"```")

	unit, err := f.Generate(context.Background(), s, GenerateInput{Prompt: "tank", AutoFix: true})
	require.NoError(t, err)

	calls := llm.CallsOfKind(prompts.KindCorrect)
	require.Len(t, calls, 1)
	assert.Equal(t, rules.Default().Temperatures.Corrector, calls[0].Temperature)
	assert.Contains(t, calls[0].Text(), `movementType "LNAD" is not one of`)
	assert.Contains(t, calls[0].Text(), "(did you mean LAND?)")

	v, _ := ini.Value(unit.IniFile.Content, "core", "name")
	assert.Equal(t, "tank", v)
	mt, _ := ini.Value(unit.IniFile.Content, "movement", "movementType")
	assert.Equal(t, "LAND", mt)
	assert.Empty(t, ini.Lint(unit.IniFile.Content, rules.Default(), ini.LintOptions{}))
}

func TestForge_GenerateAutoFixFailureKeepsText(t *testing.T) {
	llm := services.NewMockLLMAPI()
	llm.GenerateFunc = func(ctx context.Context, req *prompts.Request) (string, error) {
		if req.Kind == prompts.KindCorrect {
			return "", services.ErrEmptyResponse
		}
		return services.MockUnitEnvelope, nil
	}
	f := New(llm, services.NewMockImageService(), nil, time.Second, testLogger())

	unit, err := f.Generate(context.Background(), state.NewSession(true), GenerateInput{Prompt: "x", AutoFix: true})
	require.NoError(t, err)
	assert.Equal(t, services.MockUnitFile, unit.IniFile.Content)
}

func seedTwoUnits(t *testing.T, f *Forge, llm *services.MockLLMAPI) *state.Session {
	t.Helper()
	s := state.NewSession(false)
	for _, name := range []string{"scout", "light_tank"} {
		llm.QueueResponses(prompts.KindGenerateFromText, envelope(t, name, unitFile(name, ""),
			[]response.ImageRequest{{Name: name + ".png", Prompt: name}}, nil))
		_, err := f.Generate(context.Background(), s, GenerateInput{Prompt: name})
		require.NoError(t, err)
	}
	return s
}

func TestForge_EditOnlyTouchesLatestUnit(t *testing.T) {
	f, llm, images := newTestForge()
	s := seedTwoUnits(t, f, llm)
	first, err := json.Marshal(s.Mod.Units[0])
	require.NoError(t, err)
	imageCalls := len(images.GetCalls())

	edited := strings.Replace(unitFile("light_tank", ""), "price: 300", "price: 650", 1) + "\n[canBuild_1]\nname: scout\n"
	llm.QueueResponses(prompts.KindEdit, edited)

	res, err := f.Edit(context.Background(), s, EditInput{Instruction: "make it pricier and let it build scouts"})
	require.NoError(t, err)

	after, err := json.Marshal(s.Mod.Units[0])
	require.NoError(t, err)
	assert.Equal(t, string(first), string(after))

	assert.Contains(t, s.Mod.Units[1].IniFile.Content, "price: 650")
	assert.Equal(t, res.Unit.ID, s.Mod.Units[1].ID)
	assert.Contains(t, res.Diff, "- price: 300")
	assert.Contains(t, res.Diff, "+ price: 650")
	assert.Len(t, images.GetCalls(), imageCalls, "edits never generate images")

	calls := llm.CallsOfKind(prompts.KindEdit)
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Text(), "unit names from: scout")
}

func TestForge_EditRejectsNewImages(t *testing.T) {
	f, llm, _ := newTestForge()
	s := seedTwoUnits(t, f, llm)
	before, _ := json.Marshal(s)

	llm.QueueResponses(prompts.KindEdit, unitFile("light_tank", "")+"\n[turret_1]\nimage: big_gun.png\n")
	_, err := f.Edit(context.Background(), s, EditInput{Instruction: "add a big gun"})
	assert.ErrorIs(t, err, mod.ErrClosure)

	after, _ := json.Marshal(s)
	assert.JSONEq(t, string(before), string(after))
}

func TestForge_EditStripsUnknownSounds(t *testing.T) {
	f, llm, _ := newTestForge()
	s := seedTwoUnits(t, f, llm)

	llm.QueueResponses(prompts.KindEdit, unitFile("light_tank", "shoot_sound: pew.ogg\n"))
	res, err := f.Edit(context.Background(), s, EditInput{Instruction: "add a sound"})
	require.NoError(t, err)
	assert.NotContains(t, res.Unit.IniFile.Content, "pew.ogg")
	assert.NoError(t, res.Unit.CheckClosure(rules.Default()))
}

func TestForge_EditWithoutUnits(t *testing.T) {
	f, _, _ := newTestForge()
	_, err := f.Edit(context.Background(), state.NewSession(false), EditInput{Instruction: "x"})
	assert.ErrorIs(t, err, mod.ErrNoUnits)
}

func TestForge_RenameMod(t *testing.T) {
	f, llm, _ := newTestForge()
	s := seedTwoUnits(t, f, llm)
	units, _ := json.Marshal(s.Mod.Units)

	llm.QueueResponses(prompts.KindRenameMod, `"the iron legion"`)
	name, err := f.RenameMod(context.Background(), s, "something heavy and metal")
	require.NoError(t, err)
	assert.Equal(t, "TheIronLegion", name)
	assert.Equal(t, "TheIronLegion", s.Mod.Name)

	llm.QueueResponses(prompts.KindRenameMod, "2 fast 2 furious")
	_, err = f.RenameMod(context.Background(), s, "fast")
	assert.ErrorIs(t, err, mod.ErrInvalidName)
	assert.Equal(t, "TheIronLegion", s.Mod.Name)

	after, _ := json.Marshal(s.Mod.Units)
	assert.Equal(t, string(units), string(after))
}

func TestForge_RenameModWithoutMod(t *testing.T) {
	f, _, _ := newTestForge()
	_, err := f.RenameMod(context.Background(), state.NewSession(false), "x")
	assert.ErrorIs(t, err, mod.ErrNoUnits)
}
