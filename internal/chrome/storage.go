package chrome

import (
	"context"
	"encoding/json"
	"fmt"
)

// GetCookies returns the cookies visible to the given URLs from the page's
// session. With no URLs it returns the cookies for the page's current URL.
func (c *Client) GetCookies(ctx context.Context, targetID string, urls ...string) ([]Cookie, error) {
	sessionID, err := c.attachToTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}

	var params map[string]interface{}
	if len(urls) > 0 {
		params = map[string]interface{}{"urls": urls}
	}

	result, err := c.CallSession(ctx, sessionID, "Network.getCookies", params)
	if err != nil {
		return nil, fmt.Errorf("getting cookies: %w", err)
	}

	var resp struct {
		Cookies []Cookie `json:"cookies"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, fmt.Errorf("parsing cookies response: %w", err)
	}

	return resp.Cookies, nil
}

// extensionStorageGet reads key from chrome.storage.local when the page
// runs with extension privileges, falling back to localStorage.
const extensionStorageGet = `(async (key) => {
	if (typeof chrome !== 'undefined' && chrome.storage && chrome.storage.local) {
		const items = await chrome.storage.local.get(key);
		if (items[key] !== undefined && items[key] !== null) return String(items[key]);
	}
	const v = window.localStorage.getItem(key);
	return v === null ? null : v;
})(%s)`

const extensionStorageClear = `(async () => {
	if (typeof chrome !== 'undefined' && chrome.storage) {
		if (chrome.storage.local) await chrome.storage.local.clear();
		if (chrome.storage.sync) await chrome.storage.sync.clear();
	}
	window.localStorage.clear();
	return true;
})()`

// GetExtensionStorage gets a value from the extension key-value store.
// The boolean is false when the key is unset.
func (c *Client) GetExtensionStorage(ctx context.Context, targetID string, key string) (string, bool, error) {
	result, err := c.Eval(ctx, targetID, fmt.Sprintf(extensionStorageGet, jsString(key)))
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", key, err)
	}
	if result.Value == nil {
		return "", false, nil
	}
	return result.String(), true, nil
}

// ClearExtensionStorage clears the extension key-value stores.
func (c *Client) ClearExtensionStorage(ctx context.Context, targetID string) error {
	if _, err := c.Eval(ctx, targetID, extensionStorageClear); err != nil {
		return fmt.Errorf("clearing extension storage: %w", err)
	}
	return nil
}
