package driver

import (
	"fmt"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"github.com/tebeka/selenium/firefox"
	"github.com/tebeka/selenium/log"
)

// chromeOptions extends chrome.Capabilities with the switch that keeps
// ChromeDriver from loading its automation extension.
type chromeOptions struct {
	chrome.Capabilities
	UseAutomationExtension *bool `json:"useAutomationExtension,omitempty"`
}

// Capabilities returns the desired capabilities for a session. binary is the
// browser executable to launch; empty lets the driver find one.
func Capabilities(opts Options, binary string) selenium.Capabilities {
	caps := selenium.Capabilities{"browserName": opts.Browser}

	switch opts.Browser {
	case Firefox:
		ff := firefox.Capabilities{Binary: binary}
		if opts.Headless {
			ff.Args = append(ff.Args, "-headless")
		}
		if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
			ff.Args = append(ff.Args,
				fmt.Sprintf("--width=%d", opts.WindowWidth),
				fmt.Sprintf("--height=%d", opts.WindowHeight))
		}
		caps.AddFirefox(ff)
	default:
		caps[chrome.CapabilitiesKey] = newChromeOptions(opts, binary)
		// Console output is attached to the report of failed tests.
		caps.SetLogLevel(log.Browser, log.All)
	}

	if opts.Proxy != "" {
		caps.AddProxy(selenium.Proxy{
			Type:         selenium.Manual,
			SOCKS:        opts.Proxy,
			SOCKSVersion: 5,
		})
	}
	return caps
}

func newChromeOptions(opts Options, binary string) chromeOptions {
	no := false
	c := chromeOptions{
		Capabilities: chrome.Capabilities{
			Path: binary,
			Args: []string{
				// Chrome's sandbox needs privileges CI runners and containers lack.
				"--no-sandbox",
				"--disable-dev-shm-usage",
			},
			ExcludeSwitches: []string{"enable-automation"},
			W3C:             true,
		},
		UseAutomationExtension: &no,
	}
	if opts.Headless {
		c.Args = append(c.Args, "--headless=new")
	}
	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		c.Args = append(c.Args, fmt.Sprintf("--window-size=%d,%d", opts.WindowWidth, opts.WindowHeight))
	}
	if opts.Container {
		c.Args = append(c.Args, "--disable-gpu", "--disable-extensions")
	}
	return c
}

// frameBufferOptions sizes Xvfb after the browser window.
func frameBufferOptions(opts Options) selenium.FrameBufferOptions {
	w, h := opts.WindowWidth, opts.WindowHeight
	if w == 0 || h == 0 {
		w, h = DefaultWidth, DefaultHeight
	}
	return selenium.FrameBufferOptions{ScreenSize: fmt.Sprintf("%dx%dx24", w, h)}
}
