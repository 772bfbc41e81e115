package harness

import (
	"context"
	"fmt"

	"github.com/tomyan/xdebug-e2e/internal/xdebug"
)

// OpenPopup opens the extension popup in a new tab and waits for it to load.
// The tab that was first in the window is then re-activated, since the
// extension applies mode changes to the active tab's site.
func (s *Session) OpenPopup(ctx context.Context) (*Page, error) {
	popupURL, err := s.ExtensionURL(ctx, xdebug.PopupPage)
	if err != nil {
		return nil, err
	}

	pages, err := s.Pages(ctx)
	if err != nil {
		return nil, err
	}

	popup, err := s.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening popup tab: %w", err)
	}
	if err := popup.Goto(ctx, popupURL); err != nil {
		return nil, fmt.Errorf("loading popup: %w", err)
	}

	if len(pages) > 0 {
		if err := pages[0].Activate(ctx); err != nil {
			return nil, err
		}
	}

	s.log.Debug("opened popup", "target", popup.TargetID)
	return popup, nil
}

// SelectMode clicks the popup label for mode.
func (p *Page) SelectMode(ctx context.Context, mode xdebug.Mode) error {
	return p.Click(ctx, mode.LabelSelector())
}
