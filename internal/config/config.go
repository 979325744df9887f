// Package config provides the environment-driven configuration of the login
// suite.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Defaults for the suite.
const (
	DefaultBaseURL         = "https://www.saucedemo.com/"
	DefaultBrowser         = "chrome"
	DefaultChromeBinary    = "/usr/bin/google-chrome"
	DefaultDriverDir       = "drivers"
	DefaultResultsDir      = "allure-results"
	DefaultContainerMarker = "/.dockerenv"
)

// Config holds everything the suite needs to reach a browser and the target
// application.
type Config struct {
	// BaseURL is the login page of the application under test.
	BaseURL string
	// Headless requests a browser without a display surface. A detected
	// container forces it on regardless of this value.
	Headless bool
	// Browser is "chrome" or "firefox".
	Browser string

	ChromeBinary     string
	ChromeDriverPath string
	GeckoDriverPath  string
	// DriverDir is where cmd/saucedemo-drivers puts the downloaded drivers.
	DriverDir string

	// RemoteURL, if set, is a WebDriver endpoint used instead of a local
	// driver service.
	RemoteURL string

	// ResultsDir receives the Allure result files.
	ResultsDir string

	// ContainerMarker is the file whose presence signals a containerized run.
	ContainerMarker string

	// FrameBuffer starts Xvfb for headed runs when no DISPLAY is available.
	FrameBuffer bool

	// Debug turns on wire-level logging of the WebDriver client.
	Debug bool
}

// Load reads the optional .env file in the working directory and then the
// process environment. Variables already set in the environment take
// precedence over the file.
func Load() (*Config, error) {
	return LoadFiles(".env")
}

// LoadFiles is like Load but reads the given dotenv files. Missing files are
// ignored.
func LoadFiles(files ...string) (*Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from the given lookup function.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	str := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	c := &Config{
		BaseURL:          str("SAUCEDEMO_BASE_URL", DefaultBaseURL),
		Browser:          strings.ToLower(str("SAUCEDEMO_BROWSER", DefaultBrowser)),
		ChromeBinary:     str("CHROME_BINARY", DefaultChromeBinary),
		ChromeDriverPath: str("CHROMEDRIVER_PATH", ""),
		GeckoDriverPath:  str("GECKODRIVER_PATH", ""),
		DriverDir:        str("SAUCEDEMO_DRIVER_DIR", DefaultDriverDir),
		RemoteURL:        str("SELENIUM_REMOTE_URL", ""),
		ResultsDir:       str("ALLURE_RESULTS_DIR", DefaultResultsDir),
		ContainerMarker:  str("SAUCEDEMO_CONTAINER_MARKER", DefaultContainerMarker),
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"SAUCEDEMO_HEADLESS", &c.Headless},
		{"SAUCEDEMO_FRAME_BUFFER", &c.FrameBuffer},
		{"SELENIUM_DEBUG", &c.Debug},
	}
	for _, b := range bools {
		v := str(b.key, "")
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%s=%q: expected a boolean", b.key, v)
		}
		*b.dst = parsed
	}

	switch c.Browser {
	case "chrome", "firefox":
	default:
		return nil, fmt.Errorf("SAUCEDEMO_BROWSER=%q: must be chrome or firefox", c.Browser)
	}
	if !strings.HasSuffix(c.BaseURL, "/") {
		c.BaseURL += "/"
	}
	return c, nil
}

// InContainer reports whether the container marker file exists.
func (c *Config) InContainer() bool {
	if c.ContainerMarker == "" {
		return false
	}
	_, err := os.Stat(c.ContainerMarker)
	return err == nil
}
