package chrome

import (
	"context"
	"encoding/json"
	"fmt"
)

// resolveNodeID gets the document root and runs querySelector to find the
// first element matching selector.
func (c *Client) resolveNodeID(ctx context.Context, sessionID string, selector string) (int64, error) {
	docResult, err := c.CallSession(ctx, sessionID, "DOM.getDocument", nil)
	if err != nil {
		return 0, fmt.Errorf("getting document: %w", err)
	}

	var docResp struct {
		Root struct {
			NodeID int64 `json:"nodeId"`
		} `json:"root"`
	}
	if err := json.Unmarshal(docResult, &docResp); err != nil {
		return 0, fmt.Errorf("parsing document response: %w", err)
	}

	queryResult, err := c.CallSession(ctx, sessionID, "DOM.querySelector", map[string]interface{}{
		"nodeId":   docResp.Root.NodeID,
		"selector": selector,
	})
	if err != nil {
		return 0, fmt.Errorf("querying selector: %w", err)
	}

	var queryResp struct {
		NodeID int64 `json:"nodeId"`
	}
	if err := json.Unmarshal(queryResult, &queryResp); err != nil {
		return 0, fmt.Errorf("parsing query response: %w", err)
	}

	if queryResp.NodeID == 0 {
		return 0, fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}

	return queryResp.NodeID, nil
}

// resolveElementCenter scrolls the element into view and returns its center.
func (c *Client) resolveElementCenter(ctx context.Context, sessionID string, selector string) (x, y float64, err error) {
	nodeID, err := c.resolveNodeID(ctx, sessionID, selector)
	if err != nil {
		return 0, 0, err
	}

	_, err = c.CallSession(ctx, sessionID, "DOM.scrollIntoViewIfNeeded", map[string]interface{}{
		"nodeId": nodeID,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("scrolling into view: %w", err)
	}

	return c.getNodeCenter(ctx, sessionID, nodeID)
}

func (c *Client) getNodeCenter(ctx context.Context, sessionID string, nodeID int64) (x, y float64, err error) {
	boxResult, err := c.CallSession(ctx, sessionID, "DOM.getBoxModel", map[string]interface{}{
		"nodeId": nodeID,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("getting box model: %w", err)
	}

	var boxResp struct {
		Model struct {
			Content []float64 `json:"content"`
		} `json:"model"`
	}
	if err := json.Unmarshal(boxResult, &boxResp); err != nil {
		return 0, 0, fmt.Errorf("parsing box model response: %w", err)
	}

	content := boxResp.Model.Content
	if len(content) < 8 {
		return 0, 0, fmt.Errorf("invalid box model")
	}

	x = (content[0] + content[2] + content[4] + content[6]) / 4
	y = (content[1] + content[3] + content[5] + content[7]) / 4
	return x, y, nil
}

// dispatchMouseClick dispatches mouseMoved, mousePressed, and mouseReleased events.
func (c *Client) dispatchMouseClick(ctx context.Context, sessionID string, x, y float64) error {
	events := []map[string]interface{}{
		{"type": "mouseMoved", "x": x, "y": y},
		{"type": "mousePressed", "x": x, "y": y, "button": "left", "clickCount": 1},
		{"type": "mouseReleased", "x": x, "y": y, "button": "left", "clickCount": 1},
	}
	for _, ev := range events {
		if _, err := c.CallSession(ctx, sessionID, "Input.dispatchMouseEvent", ev); err != nil {
			return fmt.Errorf("dispatching %s: %w", ev["type"], err)
		}
	}
	return nil
}
