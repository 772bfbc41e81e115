package harness

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/tomyan/xdebug-e2e/internal/chrome"
	"github.com/tomyan/xdebug-e2e/internal/poll"
)

func (s *Session) pollOptions(description string) poll.Options {
	return poll.Options{
		Interval:    poll.DefaultInterval,
		Timeout:     s.cfg.Timeout(),
		Description: description,
		Fatal:       chrome.IsFatal,
	}
}

// WaitForCookieToExist waits until at least one cookie is set for the
// configured example page and returns the cookies seen.
func WaitForCookieToExist(ctx context.Context, page *Page) ([]chrome.Cookie, error) {
	url := page.s.cfg.ExamplePage
	return poll.Value(ctx, page.s.pollOptions("cookie on "+url), func(ctx context.Context) ([]chrome.Cookie, bool, error) {
		cookies, err := page.Cookies(ctx, url)
		if err != nil {
			return nil, false, err
		}
		return cookies, len(cookies) > 0, nil
	})
}

// WaitForCookieToClear waits until no cookie is set for the configured
// example page.
func WaitForCookieToClear(ctx context.Context, page *Page) error {
	url := page.s.cfg.ExamplePage
	return poll.Until(ctx, page.s.pollOptions("no cookies on "+url), func(ctx context.Context) (bool, error) {
		cookies, err := page.Cookies(ctx, url)
		if err != nil {
			return false, err
		}
		return len(cookies) == 0, nil
	})
}

// WaitForStoredValue waits until key holds a non-empty value in the
// extension's settings store and returns it.
func WaitForStoredValue(ctx context.Context, page *Page, key string) (string, error) {
	return poll.Value(ctx, page.s.pollOptions(fmt.Sprintf("stored value %s", key)), func(ctx context.Context) (string, bool, error) {
		v, ok, err := page.StoredValue(ctx, key)
		if err != nil {
			return "", false, err
		}
		return v, ok && v != "", nil
	})
}

// FindCookie returns the first cookie called name.
func FindCookie(cookies []chrome.Cookie, name string) (chrome.Cookie, bool) {
	return lo.Find(cookies, func(c chrome.Cookie) bool {
		return c.Name == name
	})
}
