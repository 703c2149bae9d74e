package runner

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/jwebster45206/modforge/pkg/chat"
	"github.com/jwebster45206/modforge/pkg/mod"
	"github.com/jwebster45206/modforge/pkg/queue"
	"github.com/jwebster45206/modforge/pkg/state"
	"gopkg.in/yaml.v3"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes integration tests against a running modforge API and worker
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration
	Logger            func(format string, args ...any)
	ErrorHandlingMode ErrorHandlingMode
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 60 * time.Second},
		Timeout:           RequestTimeout,
		Logger:            func(string, ...any) {},
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a YAML file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := yaml.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse YAML in %s: %w", filename, err)
	}
	if suite.Name == "" {
		suite.Name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}

	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
// Returns a list of actual test suites (expanded from the sequence if needed)
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		casePath := filepath.Join(casesDir, caseFile)

		// Recursively load (in case a sequence references another sequence)
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}

		jobs = append(jobs, subJobs...)
	}

	return jobs, nil
}

// RunSuite executes every step of a job against a new session
func (r *Runner) RunSuite(ctx context.Context, job TestJob) (TestRunResult, error) {
	start := time.Now()
	suite := job.Suite
	result := TestRunResult{
		Job:     job,
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	s, err := CreateSession(ctx, r.Client, r.BaseURL, suite.AutoFix)
	if err != nil {
		result.Error = fmt.Errorf("failed to create session: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	result.SessionID = s.ID

	caseDir := filepath.Dir(job.CaseFile)
	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)
		stepResult := r.executeStep(ctx, s, step, caseDir)
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}

		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

// executeStep submits one request, waits for it and checks expectations.
// Requests are not retried: a second generate would add a second unit.
func (r *Runner) executeStep(ctx context.Context, s *state.Session, step TestStep, caseDir string) TestResult {
	start := time.Now()
	result := TestResult{StepName: step.Name}
	fail := func(err error) TestResult {
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}

	req, err := BuildRequest(step, caseDir)
	if err != nil {
		return fail(err)
	}

	requestID, err := SubmitRequest(ctx, r.Client, r.BaseURL, s.ID, req)
	if err != nil {
		return fail(fmt.Errorf("failed to submit request: %w", err))
	}
	result.RequestID = requestID

	st, err := PollForRequest(ctx, r.Client, r.BaseURL, requestID, r.Timeout)
	if err != nil {
		return fail(err)
	}
	result.Reply = st.Message

	post, err := GetSession(ctx, r.Client, r.BaseURL, s.ID)
	if err != nil {
		return fail(fmt.Errorf("failed to get session after request: %w", err))
	}

	exp := step.Expectations
	if err := CheckExpectations(exp, st, post); err != nil {
		return fail(fmt.Errorf("expectation failed: %w", err))
	}

	if latest := post.LatestUnit(); latest != nil && (exp.Valid != nil || exp.NoFindings) {
		names := post.UnitNames()
		v, err := ValidateContent(ctx, r.Client, r.BaseURL, latest.IniFile.Content, names[:len(names)-1], len(latest.Sounds) > 0)
		if err != nil {
			return fail(fmt.Errorf("failed to validate unit: %w", err))
		}
		if exp.Valid != nil && v.Result.IsValid != *exp.Valid {
			return fail(fmt.Errorf("expected valid=%t, got %t (%s)", *exp.Valid, v.Result.IsValid, v.Result.Error))
		}
		if exp.NoFindings && len(v.Findings) > 0 {
			return fail(fmt.Errorf("expected no lint findings, got %d: %s", len(v.Findings), v.Findings[0]))
		}
	}

	if exp.Exportable != nil {
		code, err := ExportStatus(ctx, r.Client, r.BaseURL, s.ID)
		if err != nil {
			return fail(err)
		}
		if (code == http.StatusOK) != *exp.Exportable {
			return fail(fmt.Errorf("expected exportable=%t, export returned %d", *exp.Exportable, code))
		}
	}

	result.Success = true
	result.Duration = time.Since(start)
	return result
}

// BuildRequest turns a step into an API request, reading attachments relative
// to the case directory.
func BuildRequest(step TestStep, caseDir string) (chat.ChatRequest, error) {
	req := chat.ChatRequest{Type: step.Type, Message: step.Message}
	if req.Type == "" {
		req.Type = chat.RequestTypeGenerate
	}
	var err error
	if step.Image != "" {
		if req.ImageURL, err = attachmentURL(filepath.Join(caseDir, step.Image)); err != nil {
			return req, err
		}
	}
	if step.Audio != "" {
		if req.AudioURL, err = attachmentURL(filepath.Join(caseDir, step.Audio)); err != nil {
			return req, err
		}
	}
	if err := req.Validate(); err != nil {
		return req, fmt.Errorf("invalid step: %w", err)
	}
	return req, nil
}

func attachmentURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read attachment: %w", err)
	}
	mimeType, _, _ := strings.Cut(http.DetectContentType(data), ";")
	if mimeType == "application/ogg" {
		mimeType = "audio/ogg"
	}
	return (&mod.Attachment{MimeType: mimeType, Data: data}).DataURL(), nil
}

// CheckExpectations validates the request outcome and the session it left.
func CheckExpectations(exp Expectations, st *queue.RequestStatus, s *state.Session) error {
	want := exp.Status
	if want == "" {
		want = queue.StatusCompleted
	}
	if st.Status != want {
		return fmt.Errorf("expected status %s, got %s (%s)", want, st.Status, st.Error)
	}

	for _, text := range exp.ReplyContains {
		if !strings.Contains(strings.ToLower(st.Message), strings.ToLower(text)) {
			return fmt.Errorf("expected reply to contain '%s', got %q", text, st.Message)
		}
	}

	units := 0
	if s.Mod != nil {
		units = len(s.Mod.Units)
	}
	if exp.UnitCount != nil && units != *exp.UnitCount {
		return fmt.Errorf("expected %d units, got %d", *exp.UnitCount, units)
	}
	if exp.ModName != "" {
		if s.Mod == nil || s.Mod.Name != exp.ModName {
			return fmt.Errorf("expected mod name %s, got %v", exp.ModName, modName(s))
		}
	}

	latest := s.LatestUnit()
	needsUnit := exp.UnitName != "" || exp.Images != nil || exp.Sounds != nil ||
		len(exp.IniContains) > 0 || len(exp.IniNotContains) > 0 || exp.IniRegex != ""
	if !needsUnit {
		return nil
	}
	if latest == nil {
		return fmt.Errorf("expected a unit, but the mod has none")
	}

	if exp.UnitName != "" && latest.UnitName != exp.UnitName {
		return fmt.Errorf("expected unit %s, got %s", exp.UnitName, latest.UnitName)
	}
	if exp.Images != nil && len(latest.Images) != *exp.Images {
		return fmt.Errorf("expected %d images, got %d", *exp.Images, len(latest.Images))
	}
	if exp.Sounds != nil && len(latest.Sounds) != *exp.Sounds {
		return fmt.Errorf("expected %d sounds, got %d", *exp.Sounds, len(latest.Sounds))
	}

	content := latest.IniFile.Content
	for _, text := range exp.IniContains {
		if !strings.Contains(content, text) {
			return fmt.Errorf("expected %s to contain '%s'", latest.IniFile.Name, text)
		}
	}
	for _, text := range exp.IniNotContains {
		if strings.Contains(content, text) {
			return fmt.Errorf("expected %s to NOT contain '%s'", latest.IniFile.Name, text)
		}
	}
	if exp.IniRegex != "" {
		matched, err := regexp.MatchString(exp.IniRegex, content)
		if err != nil {
			return fmt.Errorf("invalid regex pattern: %w", err)
		}
		if !matched {
			return fmt.Errorf("%s didn't match regex pattern: %s", latest.IniFile.Name, exp.IniRegex)
		}
	}

	return nil
}

func modName(s *state.Session) string {
	if s.Mod == nil {
		return "(none)"
	}
	return s.Mod.Name
}
