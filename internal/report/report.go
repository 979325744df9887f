// Package report writes test results in the Allure results format: one
// <uuid>-result.json per test plus <uuid>-attachment.<ext> files, all in a
// single results directory that `allure generate` turns into a report.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tebeka/selenium/log"
)

// Status is the outcome of a test or step.
type Status string

// Allure statuses.
const (
	Passed  Status = "passed"
	Failed  Status = "failed"
	Broken  Status = "broken"
	Skipped Status = "skipped"
)

// Severity ranks tests in the report.
type Severity string

// Allure severities.
const (
	Blocker  Severity = "blocker"
	Critical Severity = "critical"
	Normal   Severity = "normal"
	Minor    Severity = "minor"
	Trivial  Severity = "trivial"
)

const stageFinished = "finished"

// Names of the attachments captured for failed tests.
const (
	FailureScreenshot = "screenshot_on_failure"
	FailureConsole    = "browser_console"
)

// Label is a name/value pair Allure groups and filters on.
type Label struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Attachment references a file in the results directory.
type Attachment struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Type   string `json:"type"`
}

// StatusDetails explains a non-passing status.
type StatusDetails struct {
	Message string `json:"message,omitempty"`
	Trace   string `json:"trace,omitempty"`
}

// StepResult is one named step of a test.
type StepResult struct {
	Name          string         `json:"name"`
	Status        Status         `json:"status"`
	StatusDetails *StatusDetails `json:"statusDetails,omitempty"`
	Stage         string         `json:"stage"`
	Attachments   []Attachment   `json:"attachments,omitempty"`
	Start         int64          `json:"start"`
	Stop          int64          `json:"stop"`
}

// Result is the JSON document written for each test.
type Result struct {
	UUID          string         `json:"uuid"`
	HistoryID     string         `json:"historyId"`
	Name          string         `json:"name"`
	FullName      string         `json:"fullName"`
	Description   string         `json:"description,omitempty"`
	Status        Status         `json:"status"`
	StatusDetails *StatusDetails `json:"statusDetails,omitempty"`
	Stage         string         `json:"stage"`
	Labels        []Label        `json:"labels,omitempty"`
	Steps         []StepResult   `json:"steps,omitempty"`
	Attachments   []Attachment   `json:"attachments,omitempty"`
	Start         int64          `json:"start"`
	Stop          int64          `json:"stop"`
}

// TB is the part of testing.TB a TestCase reads its outcome from and
// forwards step failures to.
type TB interface {
	Name() string
	Failed() bool
	Skipped() bool
	Errorf(format string, args ...interface{})
	FailNow()
	Helper()
}

// StepT is the testing handle passed to a step. Failures reported through
// it mark the step failed and are forwarded to the test. It satisfies the
// TestingT interfaces of testify's assert and require.
type StepT struct {
	t TB

	mu     sync.Mutex
	failed bool
}

func (s *StepT) fail() {
	s.mu.Lock()
	s.failed = true
	s.mu.Unlock()
}

// Errorf marks the step failed and reports the error on the test.
func (s *StepT) Errorf(format string, args ...interface{}) {
	s.t.Helper()
	s.fail()
	s.t.Errorf(format, args...)
}

// FailNow marks the step failed and stops the test.
func (s *StepT) FailNow() {
	s.t.Helper()
	s.fail()
	s.t.FailNow()
}

// Helper marks the calling function as a test helper.
func (s *StepT) Helper() { s.t.Helper() }

// Failed reports whether the step has failed.
func (s *StepT) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

// Session is what failure capture needs from a browser session.
// selenium.WebDriver satisfies it.
type Session interface {
	Screenshot() ([]byte, error)
	Log(typ log.Type) ([]log.Message, error)
}

// Writer stores results in a directory. It is safe for concurrent use by
// parallel tests.
type Writer struct {
	dir string
	now func() time.Time
}

// NewWriter creates dir if needed and returns a Writer storing results there.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating results directory: %w", err)
	}
	return &Writer{dir: dir, now: time.Now}, nil
}

// Dir is the results directory.
func (w *Writer) Dir() string { return w.dir }

// Environment writes environment.properties, shown on the report overview.
func (w *Writer) Environment(props map[string]string) error {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, props[k])
	}
	return os.WriteFile(filepath.Join(w.dir, "environment.properties"), []byte(b.String()), 0644)
}

func (w *Writer) millis() int64 {
	return w.now().UnixNano() / int64(time.Millisecond)
}

// TestCase collects the result of one test until Finish writes it.
type TestCase struct {
	w *Writer
	t TB

	mu      sync.Mutex
	res     Result
	session Session
	broken  error
	done    bool
}

// Begin starts recording t. suite becomes the fullName prefix and the
// suite label.
func (w *Writer) Begin(t TB, suite string) *TestCase {
	name := t.Name()
	id := uuid.New().String()
	tc := &TestCase{
		w: w,
		t: t,
		res: Result{
			UUID:      id,
			HistoryID: uuid.NewSHA1(uuid.NameSpaceURL, []byte(suite+"#"+name)).String(),
			Name:      name,
			FullName:  suite + "#" + name,
			Stage:     "running",
			Start:     w.millis(),
		},
	}
	tc.Label("suite", suite)
	tc.Label("framework", "go-testing")
	tc.Label("language", "go")
	return tc
}

// Label adds a label.
func (tc *TestCase) Label(name, value string) *TestCase {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.res.Labels = append(tc.res.Labels, Label{Name: name, Value: value})
	return tc
}

// Severity sets the severity label.
func (tc *TestCase) Severity(s Severity) *TestCase {
	return tc.Label("severity", string(s))
}

// Title replaces the test name shown in the report.
func (tc *TestCase) Title(title string) *TestCase {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.res.Name = title
	return tc
}

// Description sets the test description.
func (tc *TestCase) Description(d string) *TestCase {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.res.Description = d
	return tc
}

// Register makes s the session captured if the test fails. Registering
// again replaces the previous session.
func (tc *TestCase) Register(s Session) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.session = s
}

// Break marks the test broken: it failed outside its assertions, for
// example because no browser could be started.
func (tc *TestCase) Break(err error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.broken == nil {
		tc.broken = err
	}
}

// Step runs fn as a named step. The step fails if a failure is reported
// through the StepT given to fn, if fn does not return (as when it calls
// FailNow or panics), or if a test that had not failed yet fails during fn.
func (tc *TestCase) Step(name string, fn func(t *StepT)) {
	step := StepResult{Name: name, Stage: stageFinished, Start: tc.w.millis()}
	st := &StepT{t: tc.t}
	failedBefore := tc.t.Failed()
	completed := false
	defer func() {
		step.Stop = tc.w.millis()
		step.Status = Passed
		if !completed || st.Failed() || (!failedBefore && tc.t.Failed()) {
			step.Status = Failed
		}
		tc.mu.Lock()
		tc.res.Steps = append(tc.res.Steps, step)
		tc.mu.Unlock()
	}()
	fn(st)
	completed = true
}

// Attach stores data as an attachment of the test. mime selects the file
// extension.
func (tc *TestCase) Attach(name, mime string, data []byte) error {
	source := fmt.Sprintf("%s-attachment%s", uuid.New().String(), extension(mime))
	if err := os.WriteFile(filepath.Join(tc.w.dir, source), data, 0644); err != nil {
		return fmt.Errorf("writing attachment %q: %w", name, err)
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.res.Attachments = append(tc.res.Attachments, Attachment{Name: name, Source: source, Type: mime})
	return nil
}

// AttachScreenshot attaches a PNG screenshot of s.
func (tc *TestCase) AttachScreenshot(name string, s Session) error {
	png, err := s.Screenshot()
	if err != nil {
		return fmt.Errorf("taking screenshot: %w", err)
	}
	return tc.Attach(name, "image/png", png)
}

func extension(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "text/plain":
		return ".txt"
	case "application/json":
		return ".json"
	case "text/html":
		return ".html"
	default:
		return ""
	}
}

// Finish records the outcome of the test and writes its result. A failed
// test gets the registered session's screenshot and browser console
// attached first, so Finish must run before the session is quit. Capture
// errors are returned but do not prevent the result from being written.
// Calls after the first do nothing.
func (tc *TestCase) Finish() error {
	tc.mu.Lock()
	if tc.done {
		tc.mu.Unlock()
		return nil
	}
	tc.done = true
	session, broken := tc.session, tc.broken
	tc.mu.Unlock()

	status := Passed
	switch {
	case broken != nil:
		status = Broken
	case tc.t.Failed():
		status = Failed
	case tc.t.Skipped():
		status = Skipped
	}

	var errs []error
	if (status == Failed || status == Broken) && session != nil {
		errs = append(errs, tc.captureFailure(session))
	}

	tc.mu.Lock()
	tc.res.Status = status
	tc.res.Stage = stageFinished
	tc.res.Stop = tc.w.millis()
	switch {
	case broken != nil:
		tc.res.StatusDetails = &StatusDetails{Message: broken.Error()}
	case status == Failed:
		tc.res.StatusDetails = &StatusDetails{Message: "test failed; see the test log"}
	}
	data, err := json.MarshalIndent(tc.res, "", "  ")
	tc.mu.Unlock()
	if err != nil {
		return err
	}
	path := filepath.Join(tc.w.dir, tc.res.UUID+"-result.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		errs = append(errs, fmt.Errorf("writing result: %w", err))
	}
	return errors.Join(errs...)
}

func (tc *TestCase) captureFailure(s Session) error {
	var errs []error
	if err := tc.AttachScreenshot(FailureScreenshot, s); err != nil {
		errs = append(errs, err)
	}
	msgs, err := s.Log(log.Browser)
	if err != nil {
		errs = append(errs, fmt.Errorf("reading browser console: %w", err))
	} else if len(msgs) > 0 {
		var b strings.Builder
		for _, m := range msgs {
			fmt.Fprintf(&b, "%s [%s] %s\n", m.Timestamp.Format(time.RFC3339Nano), m.Level, m.Message)
		}
		if err := tc.Attach(FailureConsole, "text/plain", []byte(b.String())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
