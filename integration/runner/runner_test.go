package runner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jwebster45206/modforge/pkg/chat"
	"github.com/jwebster45206/modforge/pkg/ini"
	"github.com/jwebster45206/modforge/pkg/mod"
	"github.com/jwebster45206/modforge/pkg/queue"
	"github.com/jwebster45206/modforge/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tankIni = "[core]\nname: tank\nmaxHp: 400\n\n[graphics]\nimage: tank.png\n"

func intPtr(i int) *int { return &i }

func sessionWithTank() *state.Session {
	s := state.NewSession(true)
	s.AppendUnit(*mod.NewGeneratedUnit("tank", tankIni,
		[]mod.Asset{{Name: "tank.png", DataURL: "data:image/png;base64,AA=="}}, nil, "a tank"))
	return s
}

func TestCheckExpectations(t *testing.T) {
	completed := &queue.RequestStatus{Status: queue.StatusCompleted, Message: "Generated unit tank."}

	tests := []struct {
		name    string
		exp     Expectations
		status  *queue.RequestStatus
		session *state.Session
		wantErr string
	}{
		{
			name:    "defaults to completed",
			status:  completed,
			session: sessionWithTank(),
		},
		{
			name:    "failed status mismatch",
			status:  &queue.RequestStatus{Status: queue.StatusFailed, Error: "boom"},
			session: state.NewSession(true),
			wantErr: "expected status completed, got failed",
		},
		{
			name:    "expected failure",
			exp:     Expectations{Status: queue.StatusFailed, UnitCount: intPtr(0)},
			status:  &queue.RequestStatus{Status: queue.StatusFailed},
			session: state.NewSession(true),
		},
		{
			name: "all unit checks pass",
			exp: Expectations{
				UnitCount:      intPtr(1),
				UnitName:       "tank",
				ModName:        mod.DefaultModName,
				Images:         intPtr(1),
				Sounds:         intPtr(0),
				IniContains:    []string{"maxHp: 400"},
				IniNotContains: []string{"[movement]"},
				IniRegex:       `(?m)^name: tank$`,
				ReplyContains:  []string{"GENERATED"},
			},
			status:  completed,
			session: sessionWithTank(),
		},
		{
			name:    "unit count",
			exp:     Expectations{UnitCount: intPtr(2)},
			status:  completed,
			session: sessionWithTank(),
			wantErr: "expected 2 units, got 1",
		},
		{
			name:    "ini contains",
			exp:     Expectations{IniContains: []string{"[movement]"}},
			status:  completed,
			session: sessionWithTank(),
			wantErr: "to contain '[movement]'",
		},
		{
			name:    "ini regex",
			exp:     Expectations{IniRegex: `^name: scout`},
			status:  completed,
			session: sessionWithTank(),
			wantErr: "didn't match regex",
		},
		{
			name:    "unit expected on empty mod",
			exp:     Expectations{UnitName: "tank"},
			status:  completed,
			session: state.NewSession(true),
			wantErr: "the mod has none",
		},
		{
			name:    "mod name on empty mod",
			exp:     Expectations{ModName: "IronLegion"},
			status:  completed,
			session: state.NewSession(true),
			wantErr: "expected mod name IronLegion, got (none)",
		},
		{
			name:    "reply",
			exp:     Expectations{ReplyContains: []string{"renamed"}},
			status:  completed,
			session: sessionWithTank(),
			wantErr: "expected reply to contain 'renamed'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckExpectations(tt.exp, tt.status, tt.session)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBuildRequest(t *testing.T) {
	dir := t.TempDir()
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 16)...)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tank.png"), png, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))

	t.Run("type defaults to generate", func(t *testing.T) {
		req, err := BuildRequest(TestStep{Message: "a tank"}, dir)
		require.NoError(t, err)
		assert.Equal(t, chat.RequestTypeGenerate, req.Type)
	})

	t.Run("image becomes a data url", func(t *testing.T) {
		req, err := BuildRequest(TestStep{Image: "tank.png"}, dir)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(req.ImageURL, "data:image/png;base64,"))
	})

	t.Run("missing attachment", func(t *testing.T) {
		_, err := BuildRequest(TestStep{Image: "missing.png"}, dir)
		assert.Error(t, err)
	})

	t.Run("edit with attachment is invalid", func(t *testing.T) {
		_, err := BuildRequest(TestStep{Type: chat.RequestTypeEdit, Message: "faster", Image: "tank.png"}, dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid step")
	})
}

func TestLoadTestSuiteWithExpansion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "steps"), 0o755))

	single := `name: tank
auto_fix: false
steps:
  - name: make a tank
    type: generate
    message: a tank
    expect:
      unit_count: 1
      ini_contains: ["[core]"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "steps", "tank.yaml"), []byte(single), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unnamed.yaml"), []byte("steps:\n  - message: x\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seq.yaml"), []byte("name: seq\ncases:\n  - steps/tank.yaml\n  - unnamed.yaml\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("cases:\n  - nope.yaml\n"), 0o644))

	jobs, err := LoadTestSuiteWithExpansion(filepath.Join(dir, "seq.yaml"), dir)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	tank := jobs[0]
	assert.Equal(t, "tank", tank.Name)
	require.NotNil(t, tank.Suite.AutoFix)
	assert.False(t, *tank.Suite.AutoFix)
	require.Len(t, tank.Suite.Steps, 1)
	assert.Equal(t, chat.RequestTypeGenerate, tank.Suite.Steps[0].Type)
	assert.Equal(t, 1, *tank.Suite.Steps[0].Expectations.UnitCount)
	assert.Equal(t, []string{"[core]"}, tank.Suite.Steps[0].Expectations.IniContains)

	assert.Equal(t, "unnamed", jobs[1].Name)

	_, err = LoadTestSuiteWithExpansion(filepath.Join(dir, "broken.yaml"), dir)
	assert.ErrorContains(t, err, "nope.yaml")
}

// fakeAPI answers the endpoints a suite touches. Every submitted generate
// request completes at once by appending a tank.
func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	s := state.NewSession(true)
	var last chat.ChatRequest
	var mu sync.Mutex

	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			defer mu.Unlock()
			h(w, r)
		})
	}
	handle("POST /v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(s)
	})
	handle("GET /v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(s)
	})
	handle("POST /v1/sessions/{id}/requests", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&last))
		if last.Type == chat.RequestTypeGenerate {
			s.AppendUnit(*mod.NewGeneratedUnit("tank", tankIni, []mod.Asset{{Name: "tank.png"}}, nil, last.Message))
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(EnqueueResponse{RequestID: "req-1", Status: queue.StatusQueued})
	})
	handle("GET /v1/requests/{id}", func(w http.ResponseWriter, r *http.Request) {
		st := queue.RequestStatus{RequestID: r.PathValue("id"), Type: last.Type, Status: queue.StatusCompleted}
		if last.Type != chat.RequestTypeGenerate {
			st.Status = queue.StatusFailed
		}
		_ = json.NewEncoder(w).Encode(st)
	})
	handle("POST /v1/validate", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ValidateResponse{Result: ini.Result{IsValid: true}})
	})
	handle("GET /v1/sessions/{id}/export", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRunSuite(t *testing.T) {
	valid := true
	job := TestJob{
		Name:     "tank",
		CaseFile: filepath.Join(t.TempDir(), "tank.yaml"),
		Suite: TestSuite{
			Name: "tank",
			Steps: []TestStep{
				{Name: "generate", Message: "a tank", Expectations: Expectations{
					UnitCount: intPtr(1), Valid: &valid, Exportable: &valid,
				}},
				{Name: "edit fails", Type: chat.RequestTypeEdit, Message: "faster", Expectations: Expectations{
					Status: queue.StatusFailed,
				}},
				{Name: "wrong count", Message: "another", Expectations: Expectations{UnitCount: intPtr(5)}},
			},
		},
	}

	t.Run("continue", func(t *testing.T) {
		r := NewRunner(fakeAPI(t).URL + "/")
		result, err := r.RunSuite(context.Background(), job)
		require.Error(t, err)
		require.Len(t, result.Results, 3)
		assert.True(t, result.Results[0].Success)
		assert.Equal(t, "req-1", result.Results[0].RequestID)
		assert.True(t, result.Results[1].Success)
		assert.False(t, result.Results[2].Success)
		assert.Contains(t, err.Error(), "wrong count")
	})

	t.Run("exit stops at the first failure", func(t *testing.T) {
		failing := job
		failing.Suite.Steps = []TestStep{job.Suite.Steps[2], job.Suite.Steps[0]}
		r := NewRunner(fakeAPI(t).URL)
		r.ErrorHandlingMode = ErrorHandlingExit
		result, err := r.RunSuite(context.Background(), failing)
		require.Error(t, err)
		assert.Len(t, result.Results, 1)
	})
}
