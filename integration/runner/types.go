package runner

import (
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/modforge/pkg/chat"
	"github.com/jwebster45206/modforge/pkg/queue"
)

// TestSuite defines one integration scenario against a fresh session.
// It either lists Steps, or references other case files in Cases.
type TestSuite struct {
	Name    string     `yaml:"name"`
	AutoFix *bool      `yaml:"auto_fix,omitempty"`
	Steps   []TestStep `yaml:"steps,omitempty"`
	Cases   []string   `yaml:"cases,omitempty"`
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep is one request submitted to the session and its expected outcome.
// Image and Audio are paths relative to the case file.
type TestStep struct {
	Name         string           `yaml:"name,omitempty"`
	Type         chat.RequestType `yaml:"type"`
	Message      string           `yaml:"message"`
	Image        string           `yaml:"image,omitempty"`
	Audio        string           `yaml:"audio,omitempty"`
	Expectations Expectations     `yaml:"expect"`
}

// Expectations are checked against the request status and the session after
// the request has finished.
type Expectations struct {
	Status queue.Status `yaml:"status,omitempty"` // defaults to completed

	UnitCount *int   `yaml:"unit_count,omitempty"`
	UnitName  string `yaml:"unit_name,omitempty"` // latest unit
	ModName   string `yaml:"mod_name,omitempty"`
	Images    *int   `yaml:"images,omitempty"` // asset count of the latest unit
	Sounds    *int   `yaml:"sounds,omitempty"`

	// Checks on the latest unit file
	IniContains    []string `yaml:"ini_contains,omitempty"`
	IniNotContains []string `yaml:"ini_not_contains,omitempty"`
	IniRegex       string   `yaml:"ini_regex,omitempty"`
	Valid          *bool    `yaml:"valid,omitempty"`       // POST /v1/validate result
	NoFindings     bool     `yaml:"no_findings,omitempty"` // no lint findings either
	Exportable     *bool    `yaml:"exportable,omitempty"`  // GET export answers 200

	// Checks on the reply appended to the transcript
	ReplyContains []string `yaml:"reply_contains,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	StepName  string
	RequestID string
	Success   bool
	Error     error
	Duration  time.Duration
	Reply     string
}

// TestJob represents a test suite to be executed
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job       TestJob
	Results   []TestResult
	Error     error
	Duration  time.Duration
	SessionID uuid.UUID
}
