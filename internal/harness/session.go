// Package harness launches a browser with the extension under test and
// drives its pages for end-to-end tests.
package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/tomyan/xdebug-e2e/internal/chrome"
	"github.com/tomyan/xdebug-e2e/internal/chrome/launcher"
	"github.com/tomyan/xdebug-e2e/internal/config"
	"github.com/tomyan/xdebug-e2e/internal/logger"
	"github.com/tomyan/xdebug-e2e/internal/poll"
	"github.com/tomyan/xdebug-e2e/internal/xdebug"
)

// ErrNoExtension is returned when the extension's background target cannot
// be identified.
var ErrNoExtension = errors.New("extension not loaded")

const extensionScheme = "chrome-extension://"

// Session is one browser process with the extension loaded, plus the
// protocol connection used to drive it.
type Session struct {
	ID uuid.UUID

	cfg    *config.Config
	inst   *launcher.Instance
	client *chrome.Client
	log    *slog.Logger
	extDir string

	mu        sync.Mutex
	extURL    string
	closeOnce sync.Once
	closeErr  error
}

// Launch starts a browser with the configured extension and connects to it.
// Failures are returned as-is; there is no retry.
func Launch(ctx context.Context, cfg *config.Config) (*Session, error) {
	id := uuid.New()
	log := logger.FromContext(ctx).With("session", id.String())

	extDir, err := filepath.Abs(cfg.ExtensionDir)
	if err != nil {
		return nil, fmt.Errorf("resolving extension dir: %w", err)
	}

	launchCtx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	inst, err := launcher.Launch(launchCtx, launcher.LaunchOptions{
		ChromePath:   cfg.BrowserPath,
		Port:         cfg.DebugPort,
		Headless:     cfg.Headless,
		DevTools:     cfg.DevTools,
		ExtensionDir: extDir,
		DataDirLabel: id.String()[:8],
		ExtraFlags:   launcher.ParseFlags(cfg.ChromiumFlags),
		StartTimeout: cfg.Timeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	client, err := chrome.Connect(launchCtx, "127.0.0.1", inst.Port, chrome.WithSlowMo(cfg.SlowMo()))
	if err != nil {
		inst.Stop()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}

	log.Info("launched browser", "pid", inst.PID, "port", inst.Port, "extension", extDir, "headless", cfg.Headless)
	return newSession(id, cfg, inst, client, extDir, log), nil
}

func newSession(id uuid.UUID, cfg *config.Config, inst *launcher.Instance, client *chrome.Client, extDir string, log *slog.Logger) *Session {
	return &Session{
		ID:     id,
		cfg:    cfg,
		inst:   inst,
		client: client,
		log:    log,
		extDir: extDir,
	}
}

// Config returns the configuration the session was launched with.
func (s *Session) Config() *config.Config {
	return s.cfg
}

// Client exposes the underlying protocol client.
func (s *Session) Client() *chrome.Client {
	return s.client
}

// ExtensionPath returns the extension's base URL, chrome-extension://<id>.
// The ID Chrome derives from the unpacked directory is preferred; otherwise
// exactly one extension must be running. Targets are polled until the
// configured timeout.
func (s *Session) ExtensionPath(ctx context.Context) (string, error) {
	s.mu.Lock()
	cached := s.extURL
	s.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	want := ""
	if s.extDir != "" {
		want = launcher.ExtensionID(s.extDir)
	}

	id, err := poll.Value(ctx, poll.Options{
		Interval:    poll.DefaultInterval,
		Timeout:     s.cfg.Timeout(),
		Description: "extension background target",
		Fatal:       chrome.IsFatal,
	}, func(ctx context.Context) (string, bool, error) {
		targets, err := s.client.Targets(ctx)
		if err != nil {
			return "", false, err
		}
		id, ok := pickExtensionID(extensionIDs(targets), want)
		return id, ok, nil
	})
	if err != nil {
		if errors.Is(err, poll.ErrTimeout) {
			return "", fmt.Errorf("%w: %w", ErrNoExtension, err)
		}
		return "", err
	}

	extURL := extensionScheme + id
	s.mu.Lock()
	s.extURL = extURL
	s.mu.Unlock()
	s.log.Info("resolved extension", "url", extURL)
	return extURL, nil
}

// ExtensionURL returns the URL of a page inside the extension.
func (s *Session) ExtensionURL(ctx context.Context, page string) (string, error) {
	base, err := s.ExtensionPath(ctx)
	if err != nil {
		return "", err
	}
	return base + "/" + strings.TrimPrefix(page, "/"), nil
}

// extensionIDs returns the distinct extension IDs of background service
// workers and background pages, in target order.
func extensionIDs(targets []chrome.TargetInfo) []string {
	background := lo.Filter(targets, func(t chrome.TargetInfo, _ int) bool {
		return (t.Type == chrome.TargetServiceWorker || t.Type == chrome.TargetBackgroundPage) && t.IsExtension()
	})
	return lo.Uniq(lo.Map(background, func(t chrome.TargetInfo, _ int) string {
		host, _, _ := strings.Cut(strings.TrimPrefix(t.URL, extensionScheme), "/")
		return host
	}))
}

func pickExtensionID(ids []string, want string) (string, bool) {
	if want != "" && lo.Contains(ids, want) {
		return want, true
	}
	if len(ids) == 1 {
		return ids[0], true
	}
	return "", false
}

// Pages returns the open tabs.
func (s *Session) Pages(ctx context.Context) ([]*Page, error) {
	targets, err := s.client.Pages(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Map(targets, func(t chrome.TargetInfo, _ int) *Page {
		return &Page{s: s, TargetID: t.ID}
	}), nil
}

// FirstPage returns the tab the browser opened at startup.
func (s *Session) FirstPage(ctx context.Context) (*Page, error) {
	pages, err := s.Pages(ctx)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no open pages")
	}
	return pages[0], nil
}

// NewPage opens a blank tab.
func (s *Session) NewPage(ctx context.Context) (*Page, error) {
	id, err := s.client.NewTab(ctx, "about:blank")
	if err != nil {
		return nil, err
	}
	return &Page{s: s, TargetID: id}, nil
}

// Page returns a handle on an existing tab.
func (s *Session) Page(targetID string) *Page {
	return &Page{s: s, TargetID: targetID}
}

// Cookies returns the browser's cookies for url.
func (s *Session) Cookies(ctx context.Context, url string) ([]chrome.Cookie, error) {
	page, err := s.FirstPage(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.GetCookies(ctx, page.TargetID, url)
}

// WaitForTarget waits until a target matches pred.
func (s *Session) WaitForTarget(ctx context.Context, pred func(chrome.TargetInfo) bool) (chrome.TargetInfo, error) {
	return s.client.WaitForTarget(ctx, pred, s.cfg.Timeout())
}

// Reset returns a warm session to a clean state: every cookie and every
// stored setting is cleared, extra tabs are closed and the first tab is left
// on about:blank.
func (s *Session) Reset(ctx context.Context) error {
	if err := s.client.ClearBrowserCookies(ctx); err != nil {
		return err
	}

	optionsURL, err := s.ExtensionURL(ctx, xdebug.OptionsPage)
	if err != nil {
		return err
	}
	opts, err := s.NewPage(ctx)
	if err != nil {
		return err
	}
	if err := opts.Goto(ctx, optionsURL); err != nil {
		return err
	}
	if err := s.client.ClearExtensionStorage(ctx, opts.TargetID); err != nil {
		return err
	}

	pages, err := s.Pages(ctx)
	if err != nil {
		return err
	}
	for i, p := range pages {
		if i == 0 {
			continue
		}
		if err := p.Close(ctx); err != nil {
			return err
		}
	}
	if len(pages) > 0 {
		if err := pages[0].Goto(ctx, "about:blank"); err != nil {
			return err
		}
	}

	s.log.Debug("reset session")
	return nil
}

// Close terminates the browser and removes its profile. It is safe to call
// on a nil session and more than once.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		var errs []error
		if s.client != nil {
			if err := s.client.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing connection: %w", err))
			}
		}
		if err := s.inst.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stopping browser: %w", err))
		}
		s.closeErr = errors.Join(errs...)
		s.log.Info("closed browser")
	})
	return s.closeErr
}
