package main

import (
	"context"
	"fmt"

	"github.com/tomyan/xdebug-e2e/internal/chrome"
	"github.com/tomyan/xdebug-e2e/internal/harness"
	"github.com/tomyan/xdebug-e2e/internal/xdebug"
)

// ExtensionResult is the output of the extension command.
type ExtensionResult struct {
	URL string `json:"url"`
}

// ModeResult is the output of the mode command.
type ModeResult struct {
	Mode    string          `json:"mode"`
	Page    string          `json:"page"`
	Cookies []chrome.Cookie `json:"cookies"`
}

// SettingsResult is the output of the settings command.
type SettingsResult struct {
	IDEKey         string `json:"ideKey"`
	TraceTrigger   string `json:"traceTrigger"`
	ProfileTrigger string `json:"profileTrigger"`
}

func cmdExtension(cfg *Config) int {
	return withSession(cfg, func(ctx context.Context, s *harness.Session) (interface{}, error) {
		url, err := s.ExtensionPath(ctx)
		if err != nil {
			return nil, err
		}
		return ExtensionResult{URL: url}, nil
	})
}

func cmdMode(cfg *Config, name string) int {
	mode, err := xdebug.ParseMode(name)
	if err != nil {
		fmt.Fprintf(cfg.Stderr, "error: %v\n", err)
		return ExitError
	}

	return withSession(cfg, func(ctx context.Context, s *harness.Session) (interface{}, error) {
		pageURL := s.Config().ExamplePage
		content, err := s.FirstPage(ctx)
		if err != nil {
			return nil, err
		}
		if err := content.Goto(ctx, pageURL); err != nil {
			return nil, err
		}

		popup, err := s.OpenPopup(ctx)
		if err != nil {
			return nil, err
		}
		if err := popup.SelectMode(ctx, mode); err != nil {
			return nil, err
		}

		if mode == xdebug.Disable {
			err = harness.WaitForCookieToClear(ctx, content)
		} else {
			_, err = harness.WaitForCookieToExist(ctx, content)
		}
		if err != nil {
			return nil, err
		}

		cookies, err := s.Cookies(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		return ModeResult{Mode: mode.Label(), Page: pageURL, Cookies: cookies}, nil
	})
}

func cmdSettings(cfg *Config) int {
	return withSession(cfg, func(ctx context.Context, s *harness.Session) (interface{}, error) {
		optionsURL, err := s.ExtensionURL(ctx, xdebug.OptionsPage)
		if err != nil {
			return nil, err
		}
		page, err := s.FirstPage(ctx)
		if err != nil {
			return nil, err
		}
		if err := page.Goto(ctx, optionsURL); err != nil {
			return nil, err
		}

		values := make(map[string]string, len(xdebug.Settings))
		for _, setting := range xdebug.Settings {
			v, _, err := page.StoredValue(ctx, setting.Key)
			if err != nil {
				return nil, err
			}
			values[setting.Key] = v
		}
		return SettingsResult{
			IDEKey:         values[xdebug.KeyIDEKey],
			TraceTrigger:   values[xdebug.KeyTraceTrigger],
			ProfileTrigger: values[xdebug.KeyProfileTrigger],
		}, nil
	})
}
