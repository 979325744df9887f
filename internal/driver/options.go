// Package driver creates browser sessions for the login suite.
//
// A Factory turns the suite configuration into WebDriver capabilities, starts
// a local ChromeDriver or GeckoDriver service (or talks to a remote
// endpoint), opens the session and applies the session-wide timeouts. Each
// call yields one Session owned by the caller, who must Quit it.
package driver

import (
	"io"
	"os"
	"runtime"
	"time"

	"github.com/wanmail/saucedemo/internal/config"
)

// Session-wide timeouts.
const (
	ImplicitWait    = 10 * time.Second
	PageLoadTimeout = 30 * time.Second
)

// Window size used for headless and containerized runs.
const (
	DefaultWidth  = 1920
	DefaultHeight = 1080
)

// Supported browsers.
const (
	Chrome  = "chrome"
	Firefox = "firefox"
)

// Options configures the sessions created by a Factory.
type Options struct {
	Browser  string
	Headless bool

	WindowWidth, WindowHeight int

	// BrowserBinary is the browser executable tried by the primary launch.
	BrowserBinary string
	// DriverPath is an explicit ChromeDriver/GeckoDriver binary.
	DriverPath string
	// DriverDirs are searched for downloaded driver binaries.
	DriverDirs []string

	// RemoteURL points at a running WebDriver endpoint. No local service is
	// started when it is set.
	RemoteURL string

	// Proxy is a SOCKS5 host:port the browser sends its traffic through.
	Proxy string

	// FrameBuffer starts Xvfb for a headed browser.
	FrameBuffer bool

	// Container is set by Resolve when the run was detected to be inside a
	// container.
	Container bool

	// Output receives the driver service's logs.
	Output io.Writer
}

// Environment is what the factory learns about the machine it runs on.
type Environment struct {
	InContainer bool
	// Display is the X display of a headed session, if any.
	Display string
	GOOS    string
}

// DetectEnvironment probes the current process.
func DetectEnvironment(c *config.Config) Environment {
	return Environment{
		InContainer: c.InContainer(),
		Display:     os.Getenv("DISPLAY"),
		GOOS:        runtime.GOOS,
	}
}

// Resolve applies the environment to the requested options. The caller's
// headless choice is the weakest input: a container has no display, so
// inside one the browser always runs headless at the default window size.
// Outside a container the flag is honoured, and a headless browser gets the
// default window size unless one was requested.
//
// A frame buffer is kept only where it can help: a headed Linux run without
// a display.
func Resolve(opts Options, env Environment) Options {
	if env.InContainer {
		opts.Container = true
		opts.Headless = true
		opts.WindowWidth, opts.WindowHeight = DefaultWidth, DefaultHeight
	} else if opts.Headless && (opts.WindowWidth == 0 || opts.WindowHeight == 0) {
		opts.WindowWidth, opts.WindowHeight = DefaultWidth, DefaultHeight
	}
	if opts.Browser == "" {
		opts.Browser = Chrome
	}
	if opts.Headless || env.Display != "" || env.GOOS != "linux" || opts.RemoteURL != "" {
		opts.FrameBuffer = false
	}
	return opts
}

// OptionsFromConfig maps the suite configuration onto factory options.
func OptionsFromConfig(c *config.Config) Options {
	opts := Options{
		Browser:     c.Browser,
		Headless:    c.Headless,
		RemoteURL:   c.RemoteURL,
		FrameBuffer: c.FrameBuffer,
		DriverDirs:  []string{c.DriverDir},
	}
	switch c.Browser {
	case Firefox:
		opts.DriverPath = c.GeckoDriverPath
	default:
		opts.BrowserBinary = c.ChromeBinary
		opts.DriverPath = c.ChromeDriverPath
	}
	return opts
}
