package driver

import (
	"errors"
	"fmt"
	"os/exec"

	"github.com/golang/glog"
	"github.com/tebeka/selenium"

	"github.com/wanmail/saucedemo/internal/config"
)

// Factory creates browser sessions. The zero value is not usable; call
// NewFactory.
type Factory struct {
	opts Options
	env  Environment

	// Seams for tests.
	startService func(browser, driverPath string, port int, opts ...selenium.ServiceOption) (service, error)
	newRemote    func(caps selenium.Capabilities, url string) (selenium.WebDriver, error)
	lookPath     func(file string) (string, error)
	pickPort     func() (int, error)
}

// NewFactory returns a Factory creating sessions with opts in env.
func NewFactory(opts Options, env Environment) *Factory {
	return &Factory{
		opts:         opts,
		env:          env,
		startService: startService,
		newRemote:    selenium.NewRemote,
		lookPath:     exec.LookPath,
		pickPort:     pickUnusedPort,
	}
}

// FromConfig returns a Factory for the suite configuration, probing the
// current environment.
func FromConfig(c *config.Config) *Factory {
	if c.Debug {
		selenium.SetDebug(true)
	}
	return NewFactory(OptionsFromConfig(c), DetectEnvironment(c))
}

// WithProxy returns a copy of f whose browsers send their traffic through the
// SOCKS5 proxy at addr.
func (f *Factory) WithProxy(addr string) *Factory {
	g := *f
	g.opts.Proxy = addr
	return &g
}

// Options returns the options a session requested with headless would get.
func (f *Factory) Options(headless bool) Options {
	opts := f.opts
	opts.Headless = headless
	return Resolve(opts, f.env)
}

// launch is one way of bringing up a session.
type launch struct {
	name   string
	binary string
	driver string
}

// Get creates a ready-to-use session.
//
// The primary launch uses the configured browser binary. If it fails, the
// error is logged and a single fallback leaves the choice of browser and
// driver to default discovery. If that fails too, both errors are returned.
func (f *Factory) Get(headless bool) (*Session, error) {
	opts := f.Options(headless)
	if opts.Container && !headless {
		glog.Infof("Container detected: running %s headless at %dx%d", opts.Browser, opts.WindowWidth, opts.WindowHeight)
	}

	launches := f.launches(opts)
	var errs []error
	for i, l := range launches {
		s, err := f.launch(opts, l)
		if err == nil {
			return s, nil
		}
		errs = append(errs, fmt.Errorf("%s launch: %w", l.name, err))
		if i+1 < len(launches) {
			glog.Warningf("Error creating %s session: %v", opts.Browser, err)
			glog.Warningf("Trying the fallback launch")
		}
	}
	return nil, errors.Join(errs...)
}

func (f *Factory) launches(opts Options) []launch {
	primary := launch{name: "primary", binary: opts.BrowserBinary}
	fallback := launch{name: "fallback"}
	if opts.RemoteURL == "" {
		name := DriverName(opts.Browser)
		if p, err := FindDriver(opts.Browser, opts.DriverPath, opts.DriverDirs); err == nil {
			primary.driver = p
		} else {
			glog.Warningf("%v", err)
			primary.driver = name
		}
		fallback.driver = name
		if p, err := f.lookPath(name); err == nil {
			fallback.driver = p
		}
		if err := checkVersions(opts.BrowserBinary, primary.driver); err != nil {
			glog.Warningf("%v", err)
		}
	}
	return []launch{primary, fallback}
}

func (f *Factory) launch(opts Options, l launch) (*Session, error) {
	s := &Session{Browser: opts.Browser, Executor: opts.RemoteURL}
	if s.Executor == "" {
		port, err := f.pickPort()
		if err != nil {
			return nil, fmt.Errorf("picking a port: %v", err)
		}
		var svcOpts []selenium.ServiceOption
		if opts.Output != nil {
			svcOpts = append(svcOpts, selenium.Output(opts.Output))
		}
		if opts.FrameBuffer {
			svcOpts = append(svcOpts, selenium.StartFrameBufferWithOptions(frameBufferOptions(opts)))
		}
		svc, err := f.startService(opts.Browser, l.driver, port, svcOpts...)
		if err != nil {
			return nil, fmt.Errorf("starting %s: %w", l.driver, err)
		}
		s.service = svc
		s.Executor = serviceURL(opts.Browser, port)
	}

	wd, err := f.newRemote(Capabilities(opts, l.binary), s.Executor)
	if err != nil {
		if s.service != nil {
			if stopErr := s.service.Stop(); stopErr != nil {
				glog.Warningf("Error stopping driver service: %v", stopErr)
			}
		}
		return nil, err
	}
	s.WebDriver = wd

	if err := s.configure(); err != nil {
		if quitErr := s.Quit(); quitErr != nil {
			glog.Warningf("Error closing session after failed setup: %v", quitErr)
		}
		return nil, err
	}
	if opts.Browser == Chrome {
		if err := s.hideAutomation(); err != nil {
			glog.Warningf("Could not hide automation marker: %v", err)
		}
	}
	glog.Infof("Started %s session %s at %s", opts.Browser, wd.SessionID(), s.Executor)
	return s, nil
}

func startService(browser, driverPath string, port int, opts ...selenium.ServiceOption) (service, error) {
	var (
		s   *selenium.Service
		err error
	)
	switch browser {
	case Firefox:
		s, err = selenium.NewGeckoDriverService(driverPath, port, opts...)
	default:
		s, err = selenium.NewChromeDriverService(driverPath, port, opts...)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// serviceURL is where a local driver service listens. ChromeDriver is
// started with the wd/hub URL base, GeckoDriver serves from the root.
func serviceURL(browser string, port int) string {
	if browser == Firefox {
		return fmt.Sprintf("http://localhost:%d", port)
	}
	return fmt.Sprintf("http://localhost:%d/wd/hub", port)
}

// checkVersions compares the major versions of a Chrome binary and a
// ChromeDriver binary. Missing binaries are not reported; the launch itself
// will fail with a clearer error.
func checkVersions(browserBinary, driverPath string) error {
	if browserBinary == "" || !isExecutable(browserBinary) || !isExecutable(driverPath) {
		return nil
	}
	bv, err := BinaryVersion(browserBinary)
	if err != nil {
		return err
	}
	dv, err := BinaryVersion(driverPath)
	if err != nil {
		return err
	}
	return CompatibleMajor(bv, dv)
}
