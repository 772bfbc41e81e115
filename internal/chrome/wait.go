package chrome

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/tomyan/xdebug-e2e/internal/poll"
)

// DefaultPollInterval is how often waits re-check their condition.
const DefaultPollInterval = 100 * time.Millisecond

// IsFatal reports whether err means the browser connection is gone, so
// retrying a wait cannot succeed.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConnectionClosed)
}

// WaitFor waits for an element matching the selector to appear.
func (c *Client) WaitFor(ctx context.Context, targetID string, selector string, timeout time.Duration) error {
	return poll.Until(ctx, poll.Options{
		Interval:    DefaultPollInterval,
		Timeout:     timeout,
		Description: fmt.Sprintf("selector %s", selector),
		Fatal:       IsFatal,
	}, func(ctx context.Context) (bool, error) {
		return c.Exists(ctx, targetID, selector)
	})
}

// WaitForTarget waits until a browser target satisfies match and returns it.
func (c *Client) WaitForTarget(ctx context.Context, match func(TargetInfo) bool, timeout time.Duration) (TargetInfo, error) {
	return poll.Value(ctx, poll.Options{
		Interval:    DefaultPollInterval,
		Timeout:     timeout,
		Description: "target",
		Fatal:       IsFatal,
	}, func(ctx context.Context) (TargetInfo, bool, error) {
		targets, err := c.Targets(ctx)
		if err != nil {
			return TargetInfo{}, false, err
		}
		t, ok := lo.Find(targets, match)
		return t, ok, nil
	})
}
