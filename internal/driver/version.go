package driver

import (
	"fmt"
	"os/exec"
	"regexp"
	"strconv"

	"github.com/blang/semver"
)

var versionRE = regexp.MustCompile(`(\d+)\.(\d+)\.(\d+)(?:\.(\d+))?`)

// ParseVersion extracts the first dotted version from the output of
// `chromedriver --version`, `google-chrome --version` and the like. Chrome's
// fourth component is kept as build metadata.
func ParseVersion(s string) (semver.Version, error) {
	m := versionRE.FindStringSubmatch(s)
	if m == nil {
		return semver.Version{}, fmt.Errorf("no version in %q", s)
	}
	var parts [3]uint64
	for i := range parts {
		n, err := strconv.ParseUint(m[i+1], 10, 64)
		if err != nil {
			return semver.Version{}, fmt.Errorf("bad version %q: %v", m[0], err)
		}
		parts[i] = n
	}
	v := semver.Version{Major: parts[0], Minor: parts[1], Patch: parts[2]}
	if m[4] != "" {
		v.Build = []string{m[4]}
	}
	return v, nil
}

// ChromeVersionString formats v the way Chrome numbers its releases, e.g.
// 120.0.6099.109.
func ChromeVersionString(v semver.Version) string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if len(v.Build) > 0 {
		s += "." + v.Build[0]
	}
	return s
}

// CompareVersions orders Chrome-style versions, including the build number
// that semver comparison ignores. It returns -1, 0 or +1.
func CompareVersions(a, b semver.Version) int {
	if c := a.Compare(b); c != 0 {
		return c
	}
	ba, bb := buildNumber(a), buildNumber(b)
	switch {
	case ba < bb:
		return -1
	case ba > bb:
		return 1
	}
	return 0
}

func buildNumber(v semver.Version) uint64 {
	if len(v.Build) == 0 {
		return 0
	}
	n, err := strconv.ParseUint(v.Build[0], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// BinaryVersion runs `path --version` and parses its output.
func BinaryVersion(path string) (semver.Version, error) {
	out, err := exec.Command(path, "--version").Output()
	if err != nil {
		return semver.Version{}, fmt.Errorf("%s --version: %v", path, err)
	}
	return ParseVersion(string(out))
}

// CompatibleMajor reports an error when the browser and its driver come from
// different major releases, which ChromeDriver refuses to drive.
func CompatibleMajor(browser, driver semver.Version) error {
	if browser.Major != driver.Major {
		return fmt.Errorf("browser version %s needs a driver from the same major release, got %s",
			ChromeVersionString(browser), ChromeVersionString(driver))
	}
	return nil
}
