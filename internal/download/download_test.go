package download

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/blang/semver"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/go-github/v27/github"
)

// fileServer serves body at every path and counts requests.
func fileServer(t *testing.T, body []byte) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func md5Hex(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

func TestDownloadVerifiesHash(t *testing.T) {
	body := []byte("chromedriver bytes")
	srv, hits := fileServer(t, body)
	dir := t.TempDir()

	file := File{URL: srv.URL + "/driver", Name: "driver.bin", Hash: md5Hex(body), HashType: "md5"}
	got, err := Download(context.Background(), file, dir)
	if err != nil {
		t.Fatalf("Download() returned error: %v", err)
	}
	data, err := os.ReadFile(got.Path())
	if err != nil {
		t.Fatalf("os.ReadFile(%q) returned error: %v", got.Path(), err)
	}
	if !bytes.Equal(data, body) {
		t.Errorf("downloaded %q, want %q", data, body)
	}

	// An identical copy is not fetched again.
	if _, err := Download(context.Background(), file, dir); err != nil {
		t.Fatalf("second Download() returned error: %v", err)
	}
	if n := atomic.LoadInt32(hits); n != 1 {
		t.Errorf("server hit %d times, want 1", n)
	}
}

func TestDownloadHashMismatch(t *testing.T) {
	srv, _ := fileServer(t, []byte("tampered"))
	file := File{URL: srv.URL, Name: "driver.bin", Hash: md5Hex([]byte("original")), HashType: "md5"}

	_, err := Download(context.Background(), file, t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "hash") {
		t.Errorf("Download() = %v, want a hash mismatch", err)
	}
}

func TestDownloadHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	if _, err := Download(context.Background(), File{URL: srv.URL, Name: "driver.bin"}, t.TempDir()); err == nil {
		t.Error("Download() of a 404 returned nil error")
	}
}

func geckoArchive(t *testing.T, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	if err := tw.WriteHeader(&tar.Header{Name: "geckodriver", Mode: 0755, Size: int64(len(content))}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDownloadAllUnpacksAndRenames(t *testing.T) {
	if _, err := exec.LookPath("tar"); err != nil {
		t.Skip("tar is not installed")
	}
	srv, _ := fileServer(t, geckoArchive(t, "#!/bin/sh\necho geckodriver 0.34.0\n"))
	dir := filepath.Join(t.TempDir(), "drivers")

	files := []File{{URL: srv.URL, Name: "geckodriver.tar.gz", Rename: []string{"geckodriver", "geckodriver-0.34.0"}}}
	binaries, err := DownloadAll(context.Background(), dir, files)
	if err != nil {
		t.Fatalf("DownloadAll() returned error: %v", err)
	}
	want := []string{filepath.Join(dir, "geckodriver-0.34.0")}
	if diff := cmp.Diff(want, binaries); diff != "" {
		t.Errorf("DownloadAll() returned diff (-want/+got):\n%s", diff)
	}
	fi, err := os.Stat(want[0])
	if err != nil {
		t.Fatalf("os.Stat(%q) returned error: %v", want[0], err)
	}
	if fi.Mode().Perm()&0111 == 0 {
		t.Errorf("%s mode = %v, want executable", want[0], fi.Mode())
	}
	if _, err := os.Stat(filepath.Join(dir, "geckodriver")); !os.IsNotExist(err) {
		t.Errorf("unrenamed geckodriver still present: %v", err)
	}
}

func TestDownloadAllReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := DownloadAll(context.Background(), t.TempDir(), []File{{URL: srv.URL, Name: "missing.bin"}})
	if err == nil || !strings.Contains(err.Error(), "missing.bin") {
		t.Errorf("DownloadAll() = %v, want an error naming the file", err)
	}
}

func TestLatestChromeDriverVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/LATEST_RELEASE_120":
			fmt.Fprint(w, "120.0.6099.109")
		case "/LATEST_RELEASE_121":
			fmt.Fprint(w, "122.0.6261.57")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	old := LatestReleaseURL
	LatestReleaseURL = srv.URL + "/LATEST_RELEASE_%d"
	defer func() { LatestReleaseURL = old }()

	got, err := LatestChromeDriverVersion(context.Background(), 120)
	if err != nil {
		t.Fatalf("LatestChromeDriverVersion(120) returned error: %v", err)
	}
	want := semver.Version{Major: 120, Patch: 6099, Build: []string{"109"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LatestChromeDriverVersion(120) returned diff (-want/+got):\n%s", diff)
	}

	if _, err := LatestChromeDriverVersion(context.Background(), 121); err == nil {
		t.Error("LatestChromeDriverVersion(121) accepted a version of another milestone")
	}
	if _, err := LatestChromeDriverVersion(context.Background(), 99); err == nil {
		t.Error("LatestChromeDriverVersion(99) returned nil error for a 404")
	}
}

func TestChromeDriverFromAttrs(t *testing.T) {
	v := semver.Version{Major: 120, Patch: 6099, Build: []string{"109"}}
	if got, want := chromeDriverObject(v), "120.0.6099.109/linux64/chromedriver-linux64.zip"; got != want {
		t.Errorf("chromeDriverObject() = %q, want %q", got, want)
	}

	attrs := &storage.ObjectAttrs{
		MediaLink: "https://storage.googleapis.com/download/chromedriver-linux64.zip",
		MD5:       []byte{0xde, 0xad, 0xbe, 0xef},
	}
	want := File{
		URL:      attrs.MediaLink,
		Name:     "chromedriver-linux64.zip",
		Hash:     "deadbeef",
		HashType: "md5",
		Rename:   []string{"chromedriver-linux64/chromedriver", "chromedriver-120.0.6099.109"},
	}
	if diff := cmp.Diff(want, chromeDriverFromAttrs(v, attrs), cmpopts.IgnoreUnexported(File{})); diff != "" {
		t.Errorf("chromeDriverFromAttrs() returned diff (-want/+got):\n%s", diff)
	}
}

func TestGeckoDriverFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/mozilla/geckodriver/releases/latest" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{
			"tag_name": "v0.34.0",
			"assets": [
				{"name": "geckodriver-v0.34.0-linux-aarch64.tar.gz", "browser_download_url": "https://example.com/aarch64"},
				{"name": "geckodriver-v0.34.0-linux64.tar.gz.asc", "browser_download_url": "https://example.com/asc"},
				{"name": "geckodriver-v0.34.0-linux64.tar.gz", "browser_download_url": "https://example.com/linux64"}
			]
		}`)
	}))
	defer srv.Close()

	client := github.NewClient(nil)
	u, err := url.Parse(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	client.BaseURL = u

	got, err := GeckoDriverFile(context.Background(), client)
	if err != nil {
		t.Fatalf("GeckoDriverFile() returned error: %v", err)
	}
	want := File{
		URL:    "https://example.com/linux64",
		Name:   "geckodriver.tar.gz",
		Rename: []string{"geckodriver", "geckodriver-0.34.0"},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreUnexported(File{})); diff != "" {
		t.Errorf("GeckoDriverFile() returned diff (-want/+got):\n%s", diff)
	}
}

func TestFileBinary(t *testing.T) {
	f := File{Name: "x.zip", Rename: []string{"a", "b"}, directory: "drivers"}
	if got, want := f.Binary(), filepath.Join("drivers", "b"); got != want {
		t.Errorf("Binary() = %q, want %q", got, want)
	}
	if got := (File{Name: "x.bin"}).Binary(); got != "" {
		t.Errorf("Binary() without rename = %q, want empty", got)
	}
}
