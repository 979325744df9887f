// Binary saucedemo-drivers provisions the WebDriver binaries the login suite
// launches and prints the environment a test run would resolve to.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/blang/semver"
	"github.com/golang/glog"
	"github.com/urfave/cli/v2"

	"github.com/wanmail/saucedemo/internal/config"
	"github.com/wanmail/saucedemo/internal/download"
	"github.com/wanmail/saucedemo/internal/driver"
)

var version = "0.1.0"

func installCommand() *cli.Command {
	return &cli.Command{
		Name:  "install",
		Usage: "Download ChromeDriver and GeckoDriver into the driver directory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "dir",
				Usage: "directory to store drivers in (default: $SAUCEDEMO_DRIVER_DIR or "+config.DefaultDriverDir+")",
			},
			&cli.StringFlag{
				Name:  "chrome-version",
				Usage: "Chrome version or milestone to match; detected from the Chrome binary when empty",
			},
			&cli.BoolFlag{
				Name:  "chrome",
				Value: true,
				Usage: "download ChromeDriver",
			},
			&cli.BoolFlag{
				Name:  "firefox",
				Usage: "download GeckoDriver",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			dir := c.String("dir")
			if dir == "" {
				dir = cfg.DriverDir
			}

			ctx := c.Context
			var files []download.File
			if c.Bool("chrome") {
				f, err := chromeDriverFile(ctx, cfg, c.String("chrome-version"))
				if err != nil {
					return err
				}
				files = append(files, f)
			}
			if c.Bool("firefox") {
				f, err := download.GeckoDriverFile(ctx, nil)
				if err != nil {
					return fmt.Errorf("unable to find the latest GeckoDriver: %w", err)
				}
				files = append(files, f)
			}
			if len(files) == 0 {
				return cli.Exit("nothing to download", 2)
			}

			binaries, err := download.DownloadAll(ctx, dir, files)
			if err != nil {
				return err
			}
			for _, b := range binaries {
				fmt.Fprintln(c.App.Writer, b)
			}
			return nil
		},
	}
}

// chromeDriverFile picks the ChromeDriver matching want, which is a full
// version, a milestone, or empty to ask the configured Chrome binary.
func chromeDriverFile(ctx context.Context, cfg *config.Config, want string) (download.File, error) {
	var (
		v   semver.Version
		err error
	)
	switch {
	case want == "":
		v, err = driver.BinaryVersion(cfg.ChromeBinary)
		if err != nil {
			return download.File{}, fmt.Errorf("detecting the Chrome version (use --chrome-version): %w", err)
		}
		glog.Infof("Detected Chrome %s at %s", driver.ChromeVersionString(v), cfg.ChromeBinary)
		v, err = download.LatestChromeDriverVersion(ctx, v.Major)
	default:
		var full bool
		v, full, err = parseChromeVersion(want)
		if err != nil {
			return download.File{}, err
		}
		if !full {
			v, err = download.LatestChromeDriverVersion(ctx, v.Major)
		}
	}
	if err != nil {
		return download.File{}, err
	}
	return download.ChromeDriverFile(ctx, v)
}

// parseChromeVersion accepts a milestone such as 120 or a full Chrome
// version such as 120.0.6099.109; full reports which one s is. For a
// milestone only v.Major is set.
func parseChromeVersion(s string) (v semver.Version, full bool, err error) {
	bad := fmt.Errorf("bad --chrome-version %q: want a milestone like 120 or a full version like 120.0.6099.109", s)
	parts := strings.Split(s, ".")
	nums := make([]uint64, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return semver.Version{}, false, bad
		}
		nums[i] = n
	}
	switch len(parts) {
	case 1:
		return semver.Version{Major: nums[0]}, false, nil
	case 4:
		v, err := driver.ParseVersion(s)
		if err != nil {
			return semver.Version{}, false, bad
		}
		return v, true, nil
	default:
		return semver.Version{}, false, bad
	}
}

func envCommand() *cli.Command {
	return &cli.Command{
		Name:  "env",
		Usage: "Print the configuration a test run would use",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "headless",
				Usage: "resolve as if the suite ran with -headless",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			opts := driver.FromConfig(cfg).Options(c.Bool("headless") || cfg.Headless)
			printEnv(c.App.Writer, cfg, opts)
			return nil
		},
	}
}

func printEnv(w io.Writer, cfg *config.Config, opts driver.Options) {
	fmt.Fprintf(w, "base URL:       %s\n", cfg.BaseURL)
	fmt.Fprintf(w, "browser:        %s\n", opts.Browser)
	fmt.Fprintf(w, "headless:       %t\n", opts.Headless)
	fmt.Fprintf(w, "container:      %t\n", opts.Container)
	if opts.WindowWidth > 0 {
		fmt.Fprintf(w, "window:         %dx%d\n", opts.WindowWidth, opts.WindowHeight)
	}
	if opts.RemoteURL != "" {
		fmt.Fprintf(w, "remote:         %s\n", opts.RemoteURL)
	} else {
		p, err := driver.FindDriver(opts.Browser, opts.DriverPath, opts.DriverDirs)
		if err != nil {
			p = err.Error()
		}
		fmt.Fprintf(w, "driver:         %s\n", p)
	}
	if opts.BrowserBinary != "" {
		fmt.Fprintf(w, "browser binary: %s\n", opts.BrowserBinary)
	}
	fmt.Fprintf(w, "frame buffer:   %t\n", opts.FrameBuffer)
	fmt.Fprintf(w, "results:        %s\n", cfg.ResultsDir)
}

func main() {
	flag.Set("logtostderr", "true")
	flag.Parse()

	app := &cli.App{
		Name:    "saucedemo-drivers",
		Usage:   "Provision WebDriver binaries for the SauceDemo login suite",
		Version: version,
		Commands: []*cli.Command{
			installCommand(),
			envCommand(),
		},
	}
	if err := app.RunContext(context.Background(), append([]string{os.Args[0]}, flag.Args()...)); err != nil {
		glog.Exit(err)
	}
}
