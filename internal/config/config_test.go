package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func defaults() *Config {
	return &Config{
		ExtensionDir: "../src",
		BrowserPath:  "/snap/bin/chromium",
		ExamplePage:  "https://example.com/",
		DefaultKey:   "XDEBUG_ECLIPSE",
		TimeoutMS:    30000,
		LogLevel:     "info",
	}
}

func TestLoad(t *testing.T) {
	testCases := []struct {
		name    string
		env     map[string]string
		wantErr bool
		wantCfg func() *Config
	}{
		{
			name:    "defaults (no env set)",
			env:     map[string]string{},
			wantCfg: defaults,
		},
		{
			name: "custom valid env",
			env: map[string]string{
				"EXTENSION_DIR":  "/work/xdebug-helper/src",
				"BROWSER_PATH":   "/usr/bin/google-chrome",
				"EXAMPLE_PAGE":   "http://localhost:8080/index.php",
				"DEFAULT_KEY":    "PHPSTORM",
				"TIMEOUT":        "5000",
				"HEADLESS":       "true",
				"SLOW_MO":        "250",
				"DEV_TOOLS":      "1",
				"CHROMIUM_FLAGS": "--lang=en --window-size=800,600",
				"DEBUG_PORT":     "9333",
				"LOG_LEVEL":      "debug",
			},
			wantCfg: func() *Config {
				return &Config{
					ExtensionDir:  "/work/xdebug-helper/src",
					BrowserPath:   "/usr/bin/google-chrome",
					ExamplePage:   "http://localhost:8080/index.php",
					DefaultKey:    "PHPSTORM",
					TimeoutMS:     5000,
					Headless:      true,
					SlowMoMS:      250,
					DevTools:      true,
					ChromiumFlags: "--lang=en --window-size=800,600",
					DebugPort:     9333,
					LogLevel:      "debug",
				}
			},
		},
		{
			name: "empty browser path means auto-detect",
			env:  map[string]string{"BROWSER_PATH": ""},
			wantCfg: func() *Config {
				cfg := defaults()
				cfg.BrowserPath = ""
				return cfg
			},
		},
		{
			name:    "non-numeric timeout",
			env:     map[string]string{"TIMEOUT": "soon"},
			wantErr: true,
		},
		{
			name:    "zero timeout",
			env:     map[string]string{"TIMEOUT": "0"},
			wantErr: true,
		},
		{
			name:    "malformed headless",
			env:     map[string]string{"HEADLESS": "maybe"},
			wantErr: true,
		},
		{
			name:    "negative slow mo",
			env:     map[string]string{"SLOW_MO": "-1"},
			wantErr: true,
		},
		{
			name:    "debug port out of range",
			env:     map[string]string{"DEBUG_PORT": "70000"},
			wantErr: true,
		},
		{
			name:    "relative example page",
			env:     map[string]string{"EXAMPLE_PAGE": "example.com"},
			wantErr: true,
		},
		{
			name:    "missing extension dir (set to empty)",
			env:     map[string]string{"EXTENSION_DIR": ""},
			wantErr: true,
		},
		{
			name:    "missing default key (set to empty)",
			env:     map[string]string{"DEFAULT_KEY": ""},
			wantErr: true,
		},
		{
			name:    "unknown log level",
			env:     map[string]string{"LOG_LEVEL": "chatty"},
			wantErr: true,
		},
	}

	for idx := range testCases {
		tc := testCases[idx]
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()

			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)
				require.Equal(t, tc.wantCfg(), cfg)
			}
		})
	}
}

func TestDurations(t *testing.T) {
	cfg := &Config{TimeoutMS: 1500, SlowMoMS: 20}
	require.Equal(t, 1500*time.Millisecond, cfg.Timeout())
	require.Equal(t, 20*time.Millisecond, cfg.SlowMo())
}
