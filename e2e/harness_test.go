package e2e

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wanmail/saucedemo/internal/driver"
	"github.com/wanmail/saucedemo/internal/pages"
	"github.com/wanmail/saucedemo/internal/report"
)

const suiteName = "login"

// scenario owns the browser session and report entry of one test.
type scenario struct {
	t       *testing.T
	tc      *report.TestCase
	session *driver.Session
	page    *pages.LoginPage
}

// skipWithoutBrowser skips t when no WebDriver is reachable.
func skipWithoutBrowser(t *testing.T, f *driver.Factory) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser scenario in short mode")
	}
	opts := f.Options(cfg.Headless)
	if opts.RemoteURL != "" {
		return
	}
	if _, err := driver.FindDriver(opts.Browser, opts.DriverPath, opts.DriverDirs); err != nil {
		t.Skipf("no WebDriver for %s: %v (run cmd/saucedemo-drivers install or set SELENIUM_REMOTE_URL)", opts.Browser, err)
	}
}

// newScenario starts a session from f for t. The session is registered for
// failure capture and quit when t ends, after the result is written.
func newScenario(t *testing.T, f *driver.Factory, severity report.Severity, title string) *scenario {
	t.Helper()
	skipWithoutBrowser(t, f)

	sc := &scenario{t: t, tc: results.Begin(t, suiteName)}
	sc.tc.Severity(severity).Title(title)
	t.Cleanup(sc.tearDown)

	s, err := f.Get(cfg.Headless)
	if err != nil {
		sc.tc.Break(err)
	}
	require.NoError(t, err, "creating a browser session")
	sc.session = s
	sc.tc.Register(s)
	sc.page = pages.NewLoginPage(s, cfg.BaseURL)
	return sc
}

func (sc *scenario) tearDown() {
	if err := sc.tc.Finish(); err != nil {
		sc.t.Logf("Writing report for %s: %v", sc.t.Name(), err)
	}
	if sc.session == nil {
		return
	}
	if err := sc.session.Quit(); err != nil {
		sc.t.Logf("Quitting session: %v", err)
	}
}

// step runs fn as a reported step. Assertions made on the handle given to
// fn fail the step as well as the test.
func (sc *scenario) step(name string, fn func(t *report.StepT)) {
	sc.t.Helper()
	sc.t.Logf("Step: %s", name)
	sc.tc.Step(name, fn)
}

// screenshot attaches the current page.
func (sc *scenario) screenshot(name string) {
	sc.t.Helper()
	if err := sc.tc.AttachScreenshot(name, sc.session); err != nil {
		sc.t.Logf("Attaching %s: %v", name, err)
	}
}
