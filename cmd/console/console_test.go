package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jwebster45206/modforge/pkg/chat"
	"github.com/jwebster45206/modforge/pkg/queue"
	"github.com/jwebster45206/modforge/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		want  command
	}{
		{"a fast scout bike", command{arg: "a fast scout bike"}},
		{"  /edit  make it faster ", command{name: "/edit", arg: "make it faster"}},
		{"/HELP", command{name: "/help"}},
		{"/image tank.png heavier armor", command{name: "/image", arg: "tank.png heavier armor"}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseCommand(tt.input))
		})
	}
}

func TestBuildRequest(t *testing.T) {
	png := filepath.Join(t.TempDir(), "ref.png")
	require.NoError(t, os.WriteFile(png, []byte("\x89PNG\r\n\x1a\n0000"), 0o600))
	txt := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("just text"), 0o600))

	req, err := buildRequest(parseCommand("a scout bike"), true)
	require.NoError(t, err)
	assert.Equal(t, chat.RequestTypeGenerate, req.Type)
	require.NotNil(t, req.AutoFix)
	assert.True(t, *req.AutoFix)

	req, err = buildRequest(parseCommand("/rename iron legion"), false)
	require.NoError(t, err)
	assert.Equal(t, chat.RequestTypeRename, req.Type)
	assert.Equal(t, "iron legion", req.Message)
	assert.False(t, *req.AutoFix)

	req, err = buildRequest(parseCommand("/image "+png+" make it red"), true)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(req.ImageURL, "data:image/png;base64,"))
	assert.Equal(t, "make it red", req.Message)

	_, err = buildRequest(parseCommand("/image "+txt), true)
	assert.ErrorContains(t, err, "not an image or audio clip")

	_, err = buildRequest(parseCommand("/edit"), true)
	assert.Error(t, err)

	_, err = buildRequest(parseCommand("/teleport"), true)
	assert.ErrorContains(t, err, "unknown command")
}

func TestRenderDiff(t *testing.T) {
	out := renderDiff("  [core]\n- price: 300\n+ price: 650\n")
	assert.Equal(t, 3, strings.Count(out, "\n")+1)
	assert.Contains(t, out, "price: 650")
}

func TestAPIClient(t *testing.T) {
	sessionID := uuid.New()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]bool
		_ = json.NewDecoder(r.Body).Decode(&body)
		s := state.NewSession(body["auto_fix"])
		s.ID = sessionID
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(s)
	})
	mux.HandleFunc("/v1/sessions/"+sessionID.String()+"/requests", func(w http.ResponseWriter, r *http.Request) {
		var req chat.ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Message == "bad" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "message rejected"})
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"request_id": "req-1", "status": "queued"})
	})
	mux.HandleFunc("/v1/requests/req-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(queue.RequestStatus{RequestID: "req-1", Status: queue.StatusCompleted, UnitName: "tank"})
	})
	mux.HandleFunc("/v1/sessions/"+sessionID.String()+"/export", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", `attachment; filename="IronLegion.zip"`)
		_, _ = w.Write([]byte("PK"))
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	api := NewAPIClient(srv.Client(), srv.URL+"/")
	assert.True(t, api.Healthy())

	s, err := api.CreateSession(true)
	require.NoError(t, err)
	assert.Equal(t, sessionID, s.ID)
	assert.True(t, s.AutoFix)

	id, err := api.Submit(sessionID, chat.ChatRequest{Type: chat.RequestTypeGenerate, Message: "tank"})
	require.NoError(t, err)
	assert.Equal(t, "req-1", id)

	_, err = api.Submit(sessionID, chat.ChatRequest{Type: chat.RequestTypeGenerate, Message: "bad"})
	assert.EqualError(t, err, "message rejected")

	st, err := api.RequestStatus("req-1")
	require.NoError(t, err)
	assert.True(t, st.Status.Done())
	assert.Equal(t, "tank", st.UnitName)

	data, name, err := api.Export(sessionID)
	require.NoError(t, err)
	assert.Equal(t, "IronLegion.zip", name)
	assert.Equal(t, []byte("PK"), data)

	_, err = api.GetSession(uuid.New())
	assert.Error(t, err)
}
