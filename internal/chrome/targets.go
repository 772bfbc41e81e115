package chrome

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Targets returns all browser targets (pages, workers, etc.).
func (c *Client) Targets(ctx context.Context) ([]TargetInfo, error) {
	result, err := c.Call(ctx, "Target.getTargets", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		TargetInfos []struct {
			TargetID string `json:"targetId"`
			Type     string `json:"type"`
			Title    string `json:"title"`
			URL      string `json:"url"`
			Attached bool   `json:"attached"`
		} `json:"targetInfos"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, fmt.Errorf("unmarshaling targets: %w", err)
	}

	targets := make([]TargetInfo, 0, len(resp.TargetInfos))
	for _, t := range resp.TargetInfos {
		targets = append(targets, TargetInfo{
			ID:       t.TargetID,
			Type:     t.Type,
			Title:    t.Title,
			URL:      t.URL,
			Attached: t.Attached,
		})
	}

	return targets, nil
}

// Pages returns only page targets (tabs). DevTools windows are excluded.
func (c *Client) Pages(ctx context.Context) ([]TargetInfo, error) {
	targets, err := c.Targets(ctx)
	if err != nil {
		return nil, err
	}

	return lo.Filter(targets, func(t TargetInfo, _ int) bool {
		return t.Type == TargetPage && !strings.HasPrefix(t.URL, "devtools://")
	}), nil
}

// Navigate navigates a target to the given URL and waits for the load event.
// The wait is bounded by ctx.
func (c *Client) Navigate(ctx context.Context, targetID string, url string) (*NavigateResult, error) {
	sessionID, err := c.attachToTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}

	_, err = c.CallSession(ctx, sessionID, "Page.enable", nil)
	if err != nil {
		return nil, fmt.Errorf("enabling Page domain: %w", err)
	}

	// Subscribe before navigating so the event cannot be missed
	loadCh := c.subscribeEvent(sessionID, "Page.loadEventFired")
	defer c.unsubscribeEvent(sessionID, "Page.loadEventFired", loadCh)

	navResult, err := c.CallSession(ctx, sessionID, "Page.navigate", map[string]string{
		"url": url,
	})
	if err != nil {
		return nil, fmt.Errorf("navigating: %w", err)
	}

	var navResp struct {
		FrameID   string `json:"frameId"`
		LoaderID  string `json:"loaderId"`
		ErrorText string `json:"errorText"`
	}
	if err := json.Unmarshal(navResult, &navResp); err != nil {
		return nil, fmt.Errorf("parsing navigate response: %w", err)
	}

	if navResp.ErrorText != "" {
		return nil, fmt.Errorf("navigating to %s: %s", url, navResp.ErrorText)
	}

	// Same-document navigations (fragment changes) never fire a load event
	if navResp.LoaderID != "" {
		select {
		case <-loadCh:
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for load of %s: %w", url, ctx.Err())
		}
	}

	return &NavigateResult{
		FrameID:  navResp.FrameID,
		LoaderID: navResp.LoaderID,
		URL:      url,
	}, nil
}

// NewTab creates a new browser tab and returns its target ID.
func (c *Client) NewTab(ctx context.Context, url string) (string, error) {
	if url == "" {
		url = "about:blank"
	}

	result, err := c.Call(ctx, "Target.createTarget", map[string]interface{}{
		"url": url,
	})
	if err != nil {
		return "", fmt.Errorf("creating target: %w", err)
	}

	var resp struct {
		TargetID string `json:"targetId"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}

	return resp.TargetID, nil
}

// ActivateTab brings a tab to the foreground.
func (c *Client) ActivateTab(ctx context.Context, targetID string) error {
	_, err := c.Call(ctx, "Target.activateTarget", map[string]interface{}{
		"targetId": targetID,
	})
	if err != nil {
		return fmt.Errorf("activating target: %w", err)
	}
	return nil
}

// CloseTab closes a browser tab by its target ID.
func (c *Client) CloseTab(ctx context.Context, targetID string) error {
	c.forgetTarget(targetID)

	_, err := c.Call(ctx, "Target.closeTarget", map[string]interface{}{
		"targetId": targetID,
	})
	if err != nil {
		return fmt.Errorf("closing target: %w", err)
	}
	return nil
}

// GetURL returns the current URL of the page.
func (c *Client) GetURL(ctx context.Context, targetID string) (string, error) {
	result, err := c.Eval(ctx, targetID, "document.location.href")
	if err != nil {
		return "", err
	}
	return result.String(), nil
}

// ClearBrowserCookies removes every cookie in the browser.
func (c *Client) ClearBrowserCookies(ctx context.Context) error {
	_, err := c.Call(ctx, "Storage.clearCookies", nil)
	if err != nil {
		return fmt.Errorf("clearing cookies: %w", err)
	}
	return nil
}
