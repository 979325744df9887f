package driver

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/golang/glog"
)

// ErrDriverNotFound is returned when no driver binary could be located.
var ErrDriverNotFound = errors.New("driver binary not found")

// wellKnownDrivers are the install locations of distribution packages and
// of the usual container images.
var wellKnownDrivers = map[string][]string{
	Chrome:  {"/usr/local/bin/chromedriver", "/usr/bin/chromedriver"},
	Firefox: {"/usr/local/bin/geckodriver", "/usr/bin/geckodriver"},
}

// DriverName returns the executable name of the browser's WebDriver.
func DriverName(browser string) string {
	if browser == Firefox {
		return "geckodriver"
	}
	return "chromedriver"
}

// FindDriver locates the WebDriver binary for browser. An explicit path must
// exist. Otherwise the provisioning directories are searched first (newest
// match wins), then the well-known install locations, then PATH.
func FindDriver(browser, explicit string, dirs []string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%w: %v", ErrDriverNotFound, err)
		}
		return explicit, nil
	}
	name := DriverName(browser)
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if p := findBestPath(filepath.Join(dir, name+"*"), true); p != "" {
			return p, nil
		}
	}
	for _, p := range wellKnownDrivers[browser] {
		if isExecutable(p) {
			return p, nil
		}
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrDriverNotFound, name, err)
	}
	return p, nil
}

// findBestPath returns the regular file matching glob with the highest
// version in its name, skipping non-executables when binary is set. Names
// without a version rank below versioned ones and among themselves in
// lexical order.
func findBestPath(glob string, binary bool) string {
	matches, err := filepath.Glob(glob)
	if err != nil {
		glog.Warningf("Error globbing %q: %s", glob, err)
		return ""
	}
	if len(matches) == 0 {
		return ""
	}
	// Iterate backwards: newer versions are sorted to the end.
	sort.SliceStable(matches, func(i, j int) bool {
		return driverPathLess(matches[i], matches[j])
	})
	for i := len(matches) - 1; i >= 0; i-- {
		path := matches[i]
		fi, err := os.Stat(path)
		if err != nil {
			glog.Warningf("Error statting %q: %s", path, err)
			continue
		}
		if !fi.Mode().IsRegular() {
			continue
		}
		if binary && fi.Mode().Perm()&0111 == 0 {
			continue
		}
		return path
	}
	return ""
}

func driverPathLess(a, b string) bool {
	va, errA := ParseVersion(filepath.Base(a))
	vb, errB := ParseVersion(filepath.Base(b))
	switch {
	case errA != nil && errB != nil:
		return a < b
	case errA != nil:
		return true
	case errB != nil:
		return false
	}
	if c := CompareVersions(va, vb); c != 0 {
		return c < 0
	}
	return a < b
}

func isExecutable(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular() && fi.Mode().Perm()&0111 != 0
}

func pickUnusedPort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	port := l.Addr().(*net.TCPAddr).Port
	if err := l.Close(); err != nil {
		return 0, err
	}
	return port, nil
}
