package handlers

import (
	"log/slog"
	"net/http"

	"github.com/jwebster45206/modforge/pkg/ini"
	"github.com/jwebster45206/modforge/pkg/mod"
	"github.com/jwebster45206/modforge/pkg/rules"
)

// DocumentRequest carries a unit definition file to check or repair.
type DocumentRequest struct {
	Content             string   `json:"content"`
	UnitName            string   `json:"unit_name,omitempty"`
	AllowedBuildTargets []string `json:"allowed_build_targets,omitempty"`
	HasAudio            bool     `json:"has_audio,omitempty"`
}

type ValidateResponse struct {
	Result   ini.Result    `json:"result"`
	Findings []ini.Finding `json:"findings"`
}

type ReconcileResponse struct {
	Content string     `json:"content"`
	Result  ini.Result `json:"result"`
}

// DocumentHandler serves the local, model-free document tools:
// POST /v1/validate  - syntax check plus rule-set lint
// POST /v1/reconcile - force identifier keys to a unit name
type DocumentHandler struct {
	rules  *rules.RuleSet
	logger *slog.Logger
}

func NewDocumentHandler(rs *rules.RuleSet, logger *slog.Logger) *DocumentHandler {
	if rs == nil {
		rs = rules.Default()
	}
	return &DocumentHandler{rules: rs, logger: logger}
}

func (h *DocumentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
		return
	}
	var req DocumentRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'content' field.")
		return
	}

	switch r.URL.Path {
	case "/v1/validate":
		findings := ini.Lint(req.Content, h.rules, ini.LintOptions{
			AllowedBuildTargets: req.AllowedBuildTargets,
			HasAudio:            req.HasAudio,
		})
		if findings == nil {
			findings = []ini.Finding{}
		}
		writeJSON(w, h.logger, http.StatusOK, ValidateResponse{Result: ini.Validate(req.Content), Findings: findings})

	case "/v1/reconcile":
		name := mod.ToUnitName(req.UnitName)
		if name == "" {
			writeError(w, h.logger, http.StatusBadRequest, "unit_name is required")
			return
		}
		out := ini.Reconcile(req.Content, name)
		writeJSON(w, h.logger, http.StatusOK, ReconcileResponse{Content: out, Result: ini.Validate(out)})

	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}
