package chrome

import (
	"context"
	"fmt"
)

// Exists checks if an element matching the selector exists.
func (c *Client) Exists(ctx context.Context, targetID string, selector string) (bool, error) {
	result, err := c.Eval(ctx, targetID, fmt.Sprintf(`document.querySelector(%s) !== null`, jsString(selector)))
	if err != nil {
		return false, err
	}
	b, _ := result.Value.(bool)
	return b, nil
}

// CountElements returns the number of elements matching the selector.
func (c *Client) CountElements(ctx context.Context, targetID string, selector string) (int, error) {
	result, err := c.Eval(ctx, targetID, fmt.Sprintf(`document.querySelectorAll(%s).length`, jsString(selector)))
	if err != nil {
		return 0, err
	}
	if result.Value == nil {
		return 0, nil
	}
	// JSON numbers are float64
	if f, ok := result.Value.(float64); ok {
		return int(f), nil
	}
	return 0, fmt.Errorf("unexpected type: %T", result.Value)
}

// GetValue retrieves the value of an input, textarea, or select element.
func (c *Client) GetValue(ctx context.Context, targetID string, selector string) (string, error) {
	result, err := c.Eval(ctx, targetID, fmt.Sprintf(`(function() {
		const el = document.querySelector(%s);
		if (!el) return null;
		return el.value || '';
	})()`, jsString(selector)))
	if err != nil {
		return "", fmt.Errorf("getting value: %w", err)
	}
	if result.Value == nil {
		return "", fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return result.String(), nil
}
