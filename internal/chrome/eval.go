package chrome

import (
	"context"
	"encoding/json"
	"fmt"
)

// Eval evaluates a JavaScript expression in a target's page context.
// Promises are awaited, so async expressions resolve to their value.
func (c *Client) Eval(ctx context.Context, targetID string, expression string) (*EvalResult, error) {
	sessionID, err := c.attachToTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return c.evalSession(ctx, sessionID, expression)
}

func (c *Client) evalSession(ctx context.Context, sessionID string, expression string) (*EvalResult, error) {
	evalResult, err := c.CallSession(ctx, sessionID, "Runtime.evaluate", map[string]interface{}{
		"expression":    expression,
		"returnByValue": true,
		"awaitPromise":  true,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluating expression: %w", err)
	}

	var evalResp struct {
		Result struct {
			Type  string      `json:"type"`
			Value interface{} `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text      string `json:"text"`
			Exception *struct {
				Description string `json:"description"`
			} `json:"exception"`
		} `json:"exceptionDetails"`
	}
	if err := json.Unmarshal(evalResult, &evalResp); err != nil {
		return nil, fmt.Errorf("parsing eval response: %w", err)
	}

	if ex := evalResp.ExceptionDetails; ex != nil {
		if ex.Exception != nil && ex.Exception.Description != "" {
			return nil, fmt.Errorf("JS exception: %s", ex.Exception.Description)
		}
		return nil, fmt.Errorf("JS exception: %s", ex.Text)
	}

	return &EvalResult{
		Value: evalResp.Result.Value,
		Type:  evalResp.Result.Type,
	}, nil
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
