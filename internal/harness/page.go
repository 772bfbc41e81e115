package harness

import (
	"context"
	"fmt"

	"github.com/tomyan/xdebug-e2e/internal/chrome"
)

// Page is one tab of a session.
type Page struct {
	s        *Session
	TargetID string
}

func (p *Page) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.s.cfg.Timeout())
}

// Goto navigates and waits for the load event.
func (p *Page) Goto(ctx context.Context, url string) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	if _, err := p.s.client.Navigate(ctx, p.TargetID, url); err != nil {
		return err
	}
	p.s.log.Debug("navigated", "target", p.TargetID, "url", url)
	return nil
}

// URL returns the page's current location.
func (p *Page) URL(ctx context.Context) (string, error) {
	return p.s.client.GetURL(ctx, p.TargetID)
}

// Activate brings the tab to the foreground.
func (p *Page) Activate(ctx context.Context) error {
	return p.s.client.ActivateTab(ctx, p.TargetID)
}

// Close closes the tab.
func (p *Page) Close(ctx context.Context) error {
	return p.s.client.CloseTab(ctx, p.TargetID)
}

// Click clicks the first element matching selector.
func (p *Page) Click(ctx context.Context, selector string) error {
	if err := p.s.client.Click(ctx, p.TargetID, selector); err != nil {
		return fmt.Errorf("clicking %s: %w", selector, err)
	}
	return nil
}

// Type types text into the element matching selector, keeping its content.
func (p *Page) Type(ctx context.Context, selector, text string) error {
	if err := p.s.client.Type(ctx, p.TargetID, selector, text); err != nil {
		return fmt.Errorf("typing into %s: %w", selector, err)
	}
	return nil
}

// SetValue replaces the value of an input.
func (p *Page) SetValue(ctx context.Context, selector, value string) error {
	return p.s.client.SetValue(ctx, p.TargetID, selector, value)
}

// Fill clears an input and types text into it.
func (p *Page) Fill(ctx context.Context, selector, text string) error {
	if err := p.SetValue(ctx, selector, ""); err != nil {
		return err
	}
	return p.Type(ctx, selector, text)
}

// Value returns the value of an input.
func (p *Page) Value(ctx context.Context, selector string) (string, error) {
	return p.s.client.GetValue(ctx, p.TargetID, selector)
}

// Exists reports whether selector matches an element.
func (p *Page) Exists(ctx context.Context, selector string) (bool, error) {
	return p.s.client.Exists(ctx, p.TargetID, selector)
}

// Count returns the number of elements matching selector.
func (p *Page) Count(ctx context.Context, selector string) (int, error) {
	return p.s.client.CountElements(ctx, p.TargetID, selector)
}

// WaitForSelector waits until selector matches an element.
func (p *Page) WaitForSelector(ctx context.Context, selector string) error {
	return p.s.client.WaitFor(ctx, p.TargetID, selector, p.s.cfg.Timeout())
}

// StoredValue reads a key from the extension's settings store. The page must
// be an extension page.
func (p *Page) StoredValue(ctx context.Context, key string) (string, bool, error) {
	return p.s.client.GetExtensionStorage(ctx, p.TargetID, key)
}

// Cookies returns the cookies the page's browser holds for url.
func (p *Page) Cookies(ctx context.Context, url string) ([]chrome.Cookie, error) {
	return p.s.client.GetCookies(ctx, p.TargetID, url)
}
