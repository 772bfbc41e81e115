package harness

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomyan/xdebug-e2e/internal/chrome"
	"github.com/tomyan/xdebug-e2e/internal/chrome/launcher"
	"github.com/tomyan/xdebug-e2e/internal/config"
	"github.com/tomyan/xdebug-e2e/internal/poll"
	"github.com/tomyan/xdebug-e2e/internal/testutil"
	"github.com/tomyan/xdebug-e2e/internal/xdebug"
)

const (
	examplePage = "https://example.com/"
	extDir      = "/work/xdebug-helper/src"
)

func testConfig(timeout time.Duration) *config.Config {
	return &config.Config{
		ExtensionDir: extDir,
		ExamplePage:  examplePage,
		DefaultKey:   "XDEBUG_ECLIPSE",
		TimeoutMS:    int(timeout / time.Millisecond),
		LogLevel:     "debug",
	}
}

// fakeSession wires a session to a fake browser holding one content tab.
func fakeSession(t *testing.T, timeout time.Duration) (*Session, *testutil.FakeBrowser) {
	t.Helper()

	fake := testutil.NewFakeBrowser(t)
	fake.AddTarget(testutil.Target{ID: "CONTENT", URL: examplePage})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := chrome.Connect(ctx, fake.Host(), fake.Port())
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := newSession(uuid.New(), testConfig(timeout), nil, client, extDir, log)
	t.Cleanup(func() { s.Close() })
	return s, fake
}

func addExtension(fake *testutil.FakeBrowser, id string) {
	fake.AddTarget(testutil.Target{
		ID:   "SW-" + id,
		Type: chrome.TargetServiceWorker,
		URL:  "chrome-extension://" + id + "/background.js",
	})
}

func TestExtensionIDs(t *testing.T) {
	targets := []chrome.TargetInfo{
		{Type: chrome.TargetPage, URL: "chrome-extension://aaaa/popup.html"},
		{Type: chrome.TargetServiceWorker, URL: "chrome-extension://bbbb/sw.js"},
		{Type: chrome.TargetBackgroundPage, URL: "chrome-extension://cccc/_generated_background_page.html"},
		{Type: chrome.TargetServiceWorker, URL: "chrome-extension://bbbb/other.js"},
		{Type: chrome.TargetServiceWorker, URL: "https://example.com/sw.js"},
	}
	assert.Equal(t, []string{"bbbb", "cccc"}, extensionIDs(targets))
}

func TestPickExtensionID(t *testing.T) {
	tests := []struct {
		name   string
		ids    []string
		want   string
		wantID string
		wantOK bool
	}{
		{"none", nil, "", "", false},
		{"single", []string{"abc"}, "", "abc", true},
		{"single other than derived", []string{"abc"}, "xyz", "abc", true},
		{"derived among many", []string{"abc", "xyz"}, "xyz", "xyz", true},
		{"ambiguous", []string{"abc", "def"}, "xyz", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := pickExtensionID(tt.ids, tt.want)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestFindCookie(t *testing.T) {
	cookies := []chrome.Cookie{
		{Name: "XDEBUG_TRACE", Value: "first"},
		{Name: "XDEBUG_SESSION", Value: "XDEBUG_ECLIPSE"},
		{Name: "XDEBUG_TRACE", Value: "second"},
	}

	c, ok := FindCookie(cookies, "XDEBUG_TRACE")
	require.True(t, ok)
	assert.Equal(t, "first", c.Value)

	_, ok = FindCookie(cookies, "XDEBUG_PROFILE")
	assert.False(t, ok)

	_, ok = FindCookie(nil, "XDEBUG_SESSION")
	assert.False(t, ok)
}

func TestClose_NilSession(t *testing.T) {
	var s *Session
	assert.NoError(t, s.Close())
}

func TestClose_Twice(t *testing.T) {
	s, _ := fakeSession(t, time.Second)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, s.Client().Closed())
}

func TestLaunch_MissingBrowser(t *testing.T) {
	cfg := testConfig(time.Second)
	cfg.BrowserPath = "/nonexistent/chromium"

	s, err := Launch(context.Background(), cfg)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, launcher.ErrChromeNotFound)
}

func TestExtensionPath_PrefersDerivedID(t *testing.T) {
	s, fake := fakeSession(t, 2*time.Second)
	derived := launcher.ExtensionID(extDir)
	addExtension(fake, "otherextensionidotherextensionid")
	addExtension(fake, derived)

	ctx := context.Background()
	got, err := s.ExtensionPath(ctx)
	require.NoError(t, err)
	assert.Equal(t, "chrome-extension://"+derived, got)

	// Cached: no further target queries
	calls := fake.CallCount("Target.getTargets")
	again, err := s.ExtensionPath(ctx)
	require.NoError(t, err)
	assert.Equal(t, got, again)
	assert.Equal(t, calls, fake.CallCount("Target.getTargets"))
}

func TestExtensionPath_WaitsForWorker(t *testing.T) {
	s, fake := fakeSession(t, 2*time.Second)
	go func() {
		time.Sleep(200 * time.Millisecond)
		addExtension(fake, "abcdefghijklmnopabcdefghijklmnop")
	}()

	got, err := s.ExtensionPath(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "chrome-extension://abcdefghijklmnopabcdefghijklmnop", got)
}

func TestExtensionPath_NoExtension(t *testing.T) {
	s, fake := fakeSession(t, 300*time.Millisecond)
	addExtension(fake, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	addExtension(fake, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	_, err := s.ExtensionPath(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoExtension)
	assert.ErrorIs(t, err, poll.ErrTimeout)
}

func TestOpenPopup_ReactivatesContentTab(t *testing.T) {
	s, fake := fakeSession(t, 2*time.Second)
	addExtension(fake, launcher.ExtensionID(extDir))

	var activated atomic.Value
	fake.Handle("Target.activateTarget", func(req testutil.Request) (any, error) {
		var p struct {
			TargetID string `json:"targetId"`
		}
		json.Unmarshal(req.Params, &p)
		activated.Store(p.TargetID)
		return nil, nil
	})

	popup, err := s.OpenPopup(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, "CONTENT", popup.TargetID)
	assert.Equal(t, "CONTENT", activated.Load())

	var popupURL string
	for _, tgt := range fake.Targets() {
		if tgt.ID == popup.TargetID {
			popupURL = tgt.URL
		}
	}
	assert.Equal(t, "chrome-extension://"+launcher.ExtensionID(extDir)+"/popup.html", popupURL)
}

func TestSelectMode_CookieAppearsThenClears(t *testing.T) {
	s, fake := fakeSession(t, 2*time.Second)
	addExtension(fake, launcher.ExtensionID(extDir))
	fake.AddElement(xdebug.Debug.LabelSelector())
	fake.AddElement(xdebug.Disable.LabelSelector())

	var clicks atomic.Int32
	fake.Handle("Input.dispatchMouseEvent", func(req testutil.Request) (any, error) {
		var p struct {
			Type string `json:"type"`
		}
		json.Unmarshal(req.Params, &p)
		if p.Type != "mouseReleased" {
			return nil, nil
		}
		if clicks.Add(1) == 1 {
			fake.SetCookies(examplePage, testutil.Cookie{Name: xdebug.CookieSession, Value: "XDEBUG_ECLIPSE"})
		} else {
			fake.SetCookies(examplePage)
		}
		return nil, nil
	})

	ctx := context.Background()
	content, err := s.FirstPage(ctx)
	require.NoError(t, err)
	popup, err := s.OpenPopup(ctx)
	require.NoError(t, err)

	require.NoError(t, popup.SelectMode(ctx, xdebug.Debug))
	cookies, err := WaitForCookieToExist(ctx, content)
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	c, ok := FindCookie(cookies, xdebug.CookieSession)
	require.True(t, ok)
	assert.Equal(t, "XDEBUG_ECLIPSE", c.Value)

	require.NoError(t, popup.SelectMode(ctx, xdebug.Disable))
	require.NoError(t, WaitForCookieToClear(ctx, content))

	cookies, err = s.Cookies(ctx, examplePage)
	require.NoError(t, err)
	assert.Empty(t, cookies)
}

func TestWaitForCookieToExist_Timeout(t *testing.T) {
	s, _ := fakeSession(t, 300*time.Millisecond)
	content, err := s.FirstPage(context.Background())
	require.NoError(t, err)

	_, err = WaitForCookieToExist(context.Background(), content)
	require.Error(t, err)
	assert.ErrorIs(t, err, poll.ErrTimeout)
}

func TestWaitForStoredValue(t *testing.T) {
	s, fake := fakeSession(t, 2*time.Second)
	var reads atomic.Int32
	fake.OnEval(func(targetID, expr string) (any, error) {
		if !strings.Contains(expr, `"`+xdebug.KeyIDEKey+`"`) {
			return nil, nil
		}
		if reads.Add(1) < 3 {
			return "", nil
		}
		return "IDE_KEY_TEST", nil
	})

	page, err := s.FirstPage(context.Background())
	require.NoError(t, err)
	got, err := WaitForStoredValue(context.Background(), page, xdebug.KeyIDEKey)
	require.NoError(t, err)
	assert.Equal(t, "IDE_KEY_TEST", got)
}

func TestWaitForStoredValue_RetriesTransientErrors(t *testing.T) {
	s, fake := fakeSession(t, 2*time.Second)
	var reads atomic.Int32
	fake.OnEval(func(targetID, expr string) (any, error) {
		if !strings.Contains(expr, `"`+xdebug.KeyIDEKey+`"`) {
			return nil, nil
		}
		if reads.Add(1) == 1 {
			return nil, errors.New("Execution context was destroyed.")
		}
		return "IDE_KEY_TEST", nil
	})

	page, err := s.FirstPage(context.Background())
	require.NoError(t, err)
	got, err := WaitForStoredValue(context.Background(), page, xdebug.KeyIDEKey)
	require.NoError(t, err)
	assert.Equal(t, "IDE_KEY_TEST", got)
	assert.Equal(t, int32(2), reads.Load())
}

func TestWaitForStoredValue_TimeoutKeepsLastError(t *testing.T) {
	s, fake := fakeSession(t, 300*time.Millisecond)
	fake.OnEval(func(targetID, expr string) (any, error) {
		return nil, errors.New("Cannot find context with specified id")
	})

	page, err := s.FirstPage(context.Background())
	require.NoError(t, err)
	_, err = WaitForStoredValue(context.Background(), page, xdebug.KeyIDEKey)
	require.Error(t, err)
	assert.ErrorIs(t, err, poll.ErrTimeout)
	assert.Contains(t, err.Error(), "Cannot find context")
}

func TestWaitForCookieToClear_StopsWhenConnectionClosed(t *testing.T) {
	s, fake := fakeSession(t, 5*time.Second)
	page, err := s.FirstPage(context.Background())
	require.NoError(t, err)

	fake.Drop()
	require.Eventually(t, s.Client().Closed, 2*time.Second, 10*time.Millisecond)

	start := time.Now()
	err = WaitForCookieToClear(context.Background(), page)
	require.Error(t, err)
	assert.ErrorIs(t, err, chrome.ErrConnectionClosed)
	assert.NotErrorIs(t, err, poll.ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPage_URLAndCount(t *testing.T) {
	s, fake := fakeSession(t, 2*time.Second)
	fake.OnEval(func(targetID, expr string) (any, error) {
		switch {
		case strings.Contains(expr, "location.href"):
			return examplePage, nil
		case strings.Contains(expr, "querySelectorAll"):
			return len(xdebug.Modes), nil
		}
		return nil, nil
	})

	page := s.Page("CONTENT")
	url, err := page.URL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, examplePage, url)

	n, err := page.Count(context.Background(), `input[type="radio"]`)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestReset(t *testing.T) {
	s, fake := fakeSession(t, 2*time.Second)
	addExtension(fake, launcher.ExtensionID(extDir))
	fake.SetCookies(examplePage, testutil.Cookie{Name: xdebug.CookieTrace, Value: "XDEBUG_ECLIPSE"})
	fake.AddTarget(testutil.Target{ID: "STRAY", URL: "chrome-extension://x/options.html"})

	var cleared atomic.Bool
	fake.OnEval(func(targetID, expr string) (any, error) {
		if strings.Contains(expr, ".clear()") {
			cleared.Store(true)
			return true, nil
		}
		return nil, nil
	})

	ctx := context.Background()
	require.NoError(t, s.Reset(ctx))

	assert.True(t, cleared.Load())
	cookies, err := s.Cookies(ctx, examplePage)
	require.NoError(t, err)
	assert.Empty(t, cookies)

	pages := fake.Targets()
	var ids []string
	for _, p := range pages {
		if p.Type == "page" {
			ids = append(ids, p.ID)
		}
	}
	assert.Equal(t, []string{"CONTENT"}, ids)
	assert.Equal(t, "about:blank", pages[0].URL)
}
