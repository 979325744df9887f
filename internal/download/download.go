// Package download provisions the WebDriver binaries the suite launches:
// ChromeDriver from the Chrome for Testing bucket and GeckoDriver from its
// GitHub releases. Binaries land in a directory the driver factory searches.
package download

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/blang/semver"
	"github.com/golang/glog"
	"github.com/google/go-github/v27/github"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	"github.com/wanmail/saucedemo/internal/driver"
)

// File describes how to download a file from the Web.
type File struct {
	URL  string
	Name string
	// Hash is the hex digest the download must match; empty skips the check.
	Hash     string
	HashType string // default is sha256
	// Rename moves Rename[0] to Rename[1] inside the directory after
	// unpacking.
	Rename []string

	directory string
}

// Path is where the file is stored.
func (f File) Path() string {
	if f.directory != "" {
		return filepath.Join(f.directory, f.Name)
	}
	return f.Name
}

// Binary is the path of the unpacked driver binary.
func (f File) Binary() string {
	if len(f.Rename) != 2 {
		return ""
	}
	return filepath.Join(f.directory, f.Rename[1])
}

const (
	// Bucket URL: https://console.cloud.google.com/storage/browser/chrome-for-testing-public
	chromeForTestingBucket = "chrome-for-testing-public"
	chromeDriverArchive    = "chromedriver-linux64.zip"
)

// LatestReleaseURL serves the newest Chrome for Testing version of a
// milestone as plain text.
var LatestReleaseURL = "https://googlechromelabs.github.io/chrome-for-testing/LATEST_RELEASE_%d"

// LatestChromeDriverVersion returns the newest ChromeDriver release for a
// Chrome major version.
func LatestChromeDriverVersion(ctx context.Context, major uint64) (semver.Version, error) {
	u := fmt.Sprintf(LatestReleaseURL, major)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return semver.Version{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return semver.Version{}, fmt.Errorf("error fetching %q: %v", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return semver.Version{}, fmt.Errorf("error fetching %q: %s", u, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
	if err != nil {
		return semver.Version{}, fmt.Errorf("error reading %q: %v", u, err)
	}
	v, err := driver.ParseVersion(string(data))
	if err != nil {
		return semver.Version{}, err
	}
	if v.Major != major {
		return semver.Version{}, fmt.Errorf("%q returned version %s, want major %d", u, driver.ChromeVersionString(v), major)
	}
	return v, nil
}

// ChromeDriverFile looks up the linux64 ChromeDriver archive of a Chrome for
// Testing release.
func ChromeDriverFile(ctx context.Context, version semver.Version) (File, error) {
	gcsPath := fmt.Sprintf("gs://%s/", chromeForTestingBucket)
	client, err := storage.NewClient(ctx, option.WithHTTPClient(http.DefaultClient))
	if err != nil {
		return File{}, fmt.Errorf("cannot create a storage client for downloading chromedriver: %v", err)
	}
	defer client.Close()

	object := chromeDriverObject(version)
	attrs, err := client.Bucket(chromeForTestingBucket).Object(object).Attrs(ctx)
	if err != nil {
		return File{}, fmt.Errorf("cannot get the chromedriver package %s%s attrs: %v", gcsPath, object, err)
	}
	return chromeDriverFromAttrs(version, attrs), nil
}

func chromeDriverObject(version semver.Version) string {
	return path.Join(driver.ChromeVersionString(version), "linux64", chromeDriverArchive)
}

func chromeDriverFromAttrs(version semver.Version, attrs *storage.ObjectAttrs) File {
	return File{
		URL:      attrs.MediaLink,
		Name:     chromeDriverArchive,
		Hash:     hex.EncodeToString(attrs.MD5),
		HashType: "md5",
		Rename:   []string{"chromedriver-linux64/chromedriver", "chromedriver-" + driver.ChromeVersionString(version)},
	}
}

var geckoAssetRE = regexp.MustCompile(`^geckodriver-v[0-9.]+-linux64\.tar\.gz$`)

// GeckoDriverFile finds the linux64 archive of the latest GeckoDriver
// release. A nil client uses the public GitHub API.
func GeckoDriverFile(ctx context.Context, client *github.Client) (File, error) {
	if client == nil {
		client = github.NewClient(nil)
	}
	rel, _, err := client.Repositories.GetLatestRelease(ctx, "mozilla", "geckodriver")
	if err != nil {
		return File{}, err
	}
	version := strings.TrimPrefix(rel.GetTagName(), "v")
	for _, a := range rel.Assets {
		if !geckoAssetRE.MatchString(a.GetName()) {
			continue
		}
		u := a.GetBrowserDownloadURL()
		if u == "" {
			return File{}, fmt.Errorf("%s does not have a download URL", a.GetName())
		}
		return File{
			URL:    u,
			Name:   "geckodriver.tar.gz",
			Rename: []string{"geckodriver", "geckodriver-" + version},
		}, nil
	}
	return File{}, fmt.Errorf("release %s of http://github.com/mozilla/geckodriver has no linux64 archive", rel.GetTagName())
}

// Download fetches a file unless an identical copy is present, unpacks it
// and applies its rename. An empty directory means the current one. The
// returned File records the directory.
func Download(ctx context.Context, file File, directory string) (File, error) {
	file.directory = directory

	if file.Hash != "" && fileSameHash(file) {
		glog.Infof("Skipping file %q which has already been downloaded.", file.Name)
	} else {
		glog.Infof("Downloading %q from %q", file.Name, file.URL)
		if err := downloadFile(ctx, file); err != nil {
			return file, err
		}
	}

	if err := unzipArchive(file); err != nil {
		return file, err
	}

	if rename := file.Rename; len(rename) == 2 {
		from := filepath.Join(file.directory, rename[0])
		to := filepath.Join(file.directory, rename[1])
		glog.Infof("Renaming %q to %q", from, to)
		os.RemoveAll(to) // Ignore error.
		if err := os.Rename(from, to); err != nil {
			return file, fmt.Errorf("error renaming %q to %q: %v", from, to, err)
		}
	}
	return file, nil
}

// DownloadAll downloads files concurrently into directory and returns the
// unpacked binaries in the order of files.
func DownloadAll(ctx context.Context, directory string, files []File) ([]string, error) {
	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, err
	}
	binaries := make([]string, len(files))
	g, ctx := errgroup.WithContext(ctx)
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			f, err := Download(ctx, file, directory)
			if err != nil {
				return fmt.Errorf("error handling %s: %s", file.Name, err)
			}
			binaries[i] = f.Binary()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return binaries, nil
}

func newHash(hashType string) hash.Hash {
	switch strings.ToLower(hashType) {
	case "md5":
		return md5.New()
	default:
		return sha256.New()
	}
}

func downloadFile(ctx context.Context, file File) (err error) {
	f, err := os.Create(file.Path())
	if err != nil {
		return fmt.Errorf("error creating %q: %v", file.Path(), err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("error closing %q: %v", file.Path(), closeErr)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.URL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: error downloading %q: %v", file.Name, file.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: error downloading %q: %s", file.Name, file.URL, resp.Status)
	}

	if file.Hash == "" {
		if _, err := io.Copy(f, resp.Body); err != nil {
			return fmt.Errorf("%s: error downloading %q: %v", file.Name, file.URL, err)
		}
		return nil
	}
	h := newHash(file.HashType)
	if _, err := io.Copy(io.MultiWriter(f, h), resp.Body); err != nil {
		return fmt.Errorf("%s: error downloading %q: %v", file.Name, file.URL, err)
	}
	if sum := hex.EncodeToString(h.Sum(nil)); sum != file.Hash {
		return fmt.Errorf("%s: got %s hash %q, want %q", file.Name, file.HashType, sum, file.Hash)
	}
	return nil
}

func fileSameHash(file File) bool {
	f, err := os.Open(file.Path())
	if err != nil {
		return false
	}
	defer f.Close()

	h := newHash(file.HashType)
	if _, err := io.Copy(h, f); err != nil {
		return false
	}
	sum := hex.EncodeToString(h.Sum(nil))
	if sum != file.Hash {
		glog.Warningf("File %q: got hash %q, expect hash %q", file.Name, sum, file.Hash)
		return false
	}
	return true
}

func unzipArchive(file File) error {
	var unzipCmd []string

	dir := "."
	if file.directory != "" {
		dir = file.directory
	}

	switch path.Ext(file.Name) {
	case ".zip":
		unzipCmd = []string{"unzip", "-d", dir, "-o", file.Path()}
	case ".gz":
		unzipCmd = []string{"tar", "-xzf", file.Path(), "-C", dir}
	default:
		return nil
	}

	glog.Infof("Unzipping %q", file.Path())
	if out, err := exec.Command(unzipCmd[0], unzipCmd[1:]...).CombinedOutput(); err != nil {
		return fmt.Errorf("error unzipping %q: %v: %s", file.Name, err, out)
	}
	return nil
}
