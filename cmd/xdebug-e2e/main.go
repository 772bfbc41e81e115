package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tomyan/xdebug-e2e/internal/config"
	"github.com/tomyan/xdebug-e2e/internal/harness"
	"github.com/tomyan/xdebug-e2e/internal/logger"
	"github.com/tomyan/xdebug-e2e/internal/poll"
)

// Exit codes
const (
	ExitSuccess      = 0
	ExitError        = 1
	ExitLaunchFailed = 2
	ExitTimeout      = 3
)

// Config holds the CLI configuration.
type Config struct {
	Output string // json, ndjson, text

	Stdout io.Writer
	Stderr io.Writer

	// LoadHarness reads the harness configuration. Defaults to config.Load.
	LoadHarness func() (*config.Config, error)
	// Launch starts a session. Defaults to harness.Launch.
	Launch func(ctx context.Context, cfg *config.Config) (*harness.Session, error)

	harness *config.Config
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Output:      "json",
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		LoadHarness: config.Load,
		Launch:      harness.Launch,
	}
}

func main() {
	os.Exit(run(os.Args[1:], DefaultConfig()))
}

// flagValues stores values parsed from CLI flags. Only flags given explicitly
// override the environment.
type flagValues struct {
	extension string
	browser   string
	page      string
	timeout   time.Duration
	headless  bool
	devtools  bool
	logLevel  string
}

func run(args []string, cfg *Config) int {
	var fv flagValues
	fs := flag.NewFlagSet("xdebug-e2e", flag.ContinueOnError)
	fs.SetOutput(cfg.Stderr)
	fs.StringVar(&fv.extension, "extension", "", "Unpacked extension directory (env: EXTENSION_DIR)")
	fs.StringVar(&fv.browser, "browser", "", "Browser executable (env: BROWSER_PATH)")
	fs.StringVar(&fv.page, "page", "", "Content page for cookies (env: EXAMPLE_PAGE)")
	fs.DurationVar(&fv.timeout, "timeout", 0, "Operation timeout (env: TIMEOUT, in ms)")
	fs.BoolVar(&fv.headless, "headless", false, "Run without a window (env: HEADLESS)")
	fs.BoolVar(&fv.devtools, "devtools", false, "Open DevTools for each tab (env: DEV_TOOLS)")
	fs.StringVar(&fv.logLevel, "log-level", "", "debug, info, warn, error (env: LOG_LEVEL)")
	fs.StringVar(&cfg.Output, "output", cfg.Output, "Output format: json, ndjson, text")

	fs.Usage = func() { printUsage(cfg, fs) }

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return ExitSuccess
		}
		return ExitError
	}

	remaining := fs.Args()
	if len(remaining) < 1 {
		printUsage(cfg, fs)
		return ExitError
	}

	info, ok := commands[remaining[0]]
	if !ok {
		fmt.Fprintf(cfg.Stderr, "unknown command: %s\n", remaining[0])
		return ExitError
	}

	hc, err := cfg.LoadHarness()
	if err != nil {
		fmt.Fprintf(cfg.Stderr, "error: %v\n", err)
		return ExitError
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "extension":
			hc.ExtensionDir = fv.extension
		case "browser":
			hc.BrowserPath = fv.browser
		case "page":
			hc.ExamplePage = fv.page
		case "timeout":
			hc.TimeoutMS = int(fv.timeout / time.Millisecond)
		case "headless":
			hc.Headless = fv.headless
		case "devtools":
			hc.DevTools = fv.devtools
		case "log-level":
			hc.LogLevel = fv.logLevel
		}
	})
	if hc.TimeoutMS <= 0 {
		fmt.Fprintln(cfg.Stderr, "error: timeout must be positive")
		return ExitError
	}
	cfg.harness = hc

	return info.Run(cfg, remaining[1:])
}

func printUsage(cfg *Config, fs *flag.FlagSet) {
	fmt.Fprintln(cfg.Stderr, "usage: xdebug-e2e [flags] <command>")
	fmt.Fprintln(cfg.Stderr, "commands:")
	for _, c := range sortedCommands() {
		fmt.Fprintf(cfg.Stderr, "  %-10s %s\n", c.Name, c.Desc)
	}
	fmt.Fprintln(cfg.Stderr, "flags:")
	fs.PrintDefaults()
}

// withSession launches a browser with the extension, runs fn and prints its
// result.
func withSession(cfg *Config, fn func(ctx context.Context, s *harness.Session) (interface{}, error)) int {
	log, err := logger.New(cfg.Stderr, cfg.harness.LogLevel)
	if err != nil {
		fmt.Fprintf(cfg.Stderr, "error: %v\n", err)
		return ExitError
	}

	ctx, cancel := context.WithTimeout(logger.AddToContext(context.Background(), log), 2*cfg.harness.Timeout())
	defer cancel()

	s, err := cfg.Launch(ctx, cfg.harness)
	if err != nil {
		fmt.Fprintf(cfg.Stderr, "error: %v\n", err)
		return ExitLaunchFailed
	}
	defer s.Close()

	result, err := fn(ctx, s)
	if err != nil {
		if errors.Is(err, poll.ErrTimeout) || ctx.Err() == context.DeadlineExceeded {
			fmt.Fprintf(cfg.Stderr, "error: timeout: %v\n", err)
			return ExitTimeout
		}
		fmt.Fprintf(cfg.Stderr, "error: %v\n", err)
		return ExitError
	}

	return outputResult(cfg, result)
}
