// Package launcher provides Chromium discovery, launching with an unpacked
// extension, and lifecycle management.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"time"
)

// ErrChromeNotFound is returned when no usable browser binary exists.
var ErrChromeNotFound = errors.New("Chrome not found")

// LaunchOptions configures Chrome launching.
type LaunchOptions struct {
	ChromePath   string        // Path to Chrome binary (auto-detected if empty)
	Port         int           // Remote debugging port (0 picks a free one)
	Headless     bool          // Run in headless mode
	DevTools     bool          // Open DevTools for every tab
	ExtensionDir string        // Unpacked extension to load
	DataDir      string        // User data directory (temp dir created if empty)
	DataDirLabel string        // Included in the temp data dir name
	ExtraFlags   []string      // Merged after the built-in flags
	StartTimeout time.Duration // How long to wait for the debugging port
}

// Instance represents a running Chrome instance.
type Instance struct {
	cmd          *exec.Cmd
	Port         int
	PID          int
	DataDir      string
	ExtensionDir string
	ownsData     bool // true if we created the data dir and should clean it up
}

// FindChrome locates Chrome on the system. If chromePath is non-empty it is
// returned when it exists and "" otherwise. With an empty chromePath, PATH
// and known install locations are searched.
func FindChrome(chromePath string) string {
	if chromePath != "" {
		if _, err := os.Stat(chromePath); err == nil {
			return chromePath
		}
		return ""
	}

	for _, name := range []string{"chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	var paths []string
	switch runtime.GOOS {
	case "darwin":
		paths = []string{
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		}
	case "linux":
		paths = []string{
			"/snap/bin/chromium",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
		}
	case "windows":
		paths = []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		}
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// FreePort asks the kernel for an unused TCP port on localhost.
func FreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("finding free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// IsPortOpen checks if a TCP port is accepting connections.
func IsPortOpen(host string, port int) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), 100*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// WaitForPort waits for a TCP port to become available.
func WaitForPort(ctx context.Context, host string, port int) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if IsPortOpen(host, port) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for %s: %w", net.JoinHostPort(host, strconv.Itoa(port)), ctx.Err())
		case <-ticker.C:
		}
	}
}

// Args returns the command line for a launch, without the binary.
func Args(opts LaunchOptions, port int, dataDir string) []string {
	args := []string{
		"--no-first-run",
		"--no-default-browser-check",
		"--no-sandbox",
		"--disable-dev-shm-usage",
		"--disable-sync",
		"--disable-translate",
		"--disable-default-apps",
		"--mute-audio",
		"--password-store=basic",
		"--remote-allow-origins=*",
		fmt.Sprintf("--remote-debugging-port=%d", port),
		fmt.Sprintf("--user-data-dir=%s", dataDir),
	}
	if opts.Headless {
		// Legacy headless mode cannot load extensions
		args = append([]string{"--headless=new"}, args...)
	}
	if opts.DevTools {
		args = append(args, "--auto-open-devtools-for-tabs")
	}
	if opts.ExtensionDir != "" {
		args = append(args,
			"--load-extension="+opts.ExtensionDir,
			"--disable-extensions-except="+opts.ExtensionDir,
		)
	}
	args = MergeFlags(args, opts.ExtraFlags)
	return append(args, "about:blank")
}

// Launch starts a Chrome instance with the given options.
func Launch(ctx context.Context, opts LaunchOptions) (*Instance, error) {
	chromePath := FindChrome(opts.ChromePath)
	if chromePath == "" {
		return nil, ErrChromeNotFound
	}

	extDir := opts.ExtensionDir
	if extDir != "" {
		abs, err := filepath.Abs(extDir)
		if err != nil {
			return nil, fmt.Errorf("resolving extension dir: %w", err)
		}
		if _, err := os.Stat(filepath.Join(abs, "manifest.json")); err != nil {
			return nil, fmt.Errorf("loading extension from %s: %w", abs, err)
		}
		extDir = abs
		opts.ExtensionDir = abs
	}

	port := opts.Port
	if port == 0 {
		var err error
		if port, err = FreePort(); err != nil {
			return nil, err
		}
	}

	ownsData := false
	dataDir := opts.DataDir
	if dataDir == "" {
		pattern := "xdebug-e2e-chrome-*"
		if opts.DataDirLabel != "" {
			pattern = "xdebug-e2e-" + opts.DataDirLabel + "-*"
		}
		var err error
		dataDir, err = os.MkdirTemp("", pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to create temp dir: %w", err)
		}
		ownsData = true
	}

	cmd := exec.Command(chromePath, Args(opts, port, dataDir)...)
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		if ownsData {
			os.RemoveAll(dataDir)
		}
		return nil, fmt.Errorf("failed to start Chrome: %w", err)
	}

	inst := &Instance{
		cmd:          cmd,
		Port:         port,
		PID:          cmd.Process.Pid,
		DataDir:      dataDir,
		ExtensionDir: extDir,
		ownsData:     ownsData,
	}

	waitCtx := ctx
	if opts.StartTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, opts.StartTimeout)
		defer cancel()
	}
	if err := WaitForPort(waitCtx, "127.0.0.1", port); err != nil {
		inst.Stop()
		return nil, fmt.Errorf("Chrome failed to start: %w", err)
	}

	return inst, nil
}

// Stop terminates the Chrome instance and cleans up. It is safe to call on a
// nil or already stopped instance.
func (inst *Instance) Stop() error {
	if inst == nil {
		return nil
	}
	if inst.cmd != nil && inst.cmd.Process != nil {
		inst.cmd.Process.Kill()
		inst.cmd.Wait()

		// Kill orphaned child processes
		if inst.ownsData && inst.DataDir != "" {
			exec.Command("pkill", "-9", "-f", inst.DataDir).Run()
		}
		inst.cmd = nil
	}
	if inst.ownsData && inst.DataDir != "" {
		time.Sleep(100 * time.Millisecond)
		os.RemoveAll(inst.DataDir)
		inst.DataDir = ""
	}
	return nil
}
