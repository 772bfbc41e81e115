package chrome

import (
	"context"
	"fmt"
)

// Click clicks on the first element matching a CSS selector.
func (c *Client) Click(ctx context.Context, targetID string, selector string) error {
	sessionID, err := c.attachToTarget(ctx, targetID)
	if err != nil {
		return err
	}

	x, y, err := c.resolveElementCenter(ctx, sessionID, selector)
	if err != nil {
		return err
	}

	return c.dispatchMouseClick(ctx, sessionID, x, y)
}

// Focus focuses on an element specified by selector.
func (c *Client) Focus(ctx context.Context, targetID string, selector string) error {
	sessionID, err := c.attachToTarget(ctx, targetID)
	if err != nil {
		return err
	}

	nodeID, err := c.resolveNodeID(ctx, sessionID, selector)
	if err != nil {
		return err
	}

	_, err = c.CallSession(ctx, sessionID, "DOM.focus", map[string]interface{}{
		"nodeId": nodeID,
	})
	if err != nil {
		return fmt.Errorf("focusing element: %w", err)
	}

	return nil
}

// Type focuses the element and sends key events for each character in text.
// Existing input content is kept; the caret is wherever focus left it.
func (c *Client) Type(ctx context.Context, targetID string, selector string, text string) error {
	if err := c.Focus(ctx, targetID, selector); err != nil {
		return err
	}

	sessionID, err := c.attachToTarget(ctx, targetID)
	if err != nil {
		return err
	}

	for _, r := range text {
		if err := c.typeChar(ctx, sessionID, string(r)); err != nil {
			return err
		}
	}
	return nil
}

// typeChar dispatches key events for a regular character.
func (c *Client) typeChar(ctx context.Context, sessionID string, char string) error {
	_, err := c.CallSession(ctx, sessionID, "Input.dispatchKeyEvent", map[string]interface{}{
		"type": "keyDown",
		"text": char,
		"key":  char,
	})
	if err != nil {
		return fmt.Errorf("keyDown for %q: %w", char, err)
	}

	_, err = c.CallSession(ctx, sessionID, "Input.dispatchKeyEvent", map[string]interface{}{
		"type": "keyUp",
		"key":  char,
	})
	if err != nil {
		return fmt.Errorf("keyUp for %q: %w", char, err)
	}
	return nil
}

// SetValue sets the value of an input element directly, firing input and
// change events.
func (c *Client) SetValue(ctx context.Context, targetID string, selector string, value string) error {
	result, err := c.Eval(ctx, targetID, fmt.Sprintf(`(function() {
		const el = document.querySelector(%s);
		if (!el) return false;
		el.value = %s;
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		return true;
	})()`, jsString(selector), jsString(value)))
	if err != nil {
		return fmt.Errorf("setting value: %w", err)
	}
	if !isTruthy(result.Value) {
		return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return nil
}
