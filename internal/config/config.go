package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for a test run
type Config struct {
	// Unpacked extension directory, relative to the test package directory
	ExtensionDir string `envconfig:"EXTENSION_DIR" default:"../src"`

	// Browser executable. Empty means auto-detect; a path that does not exist fails the launch.
	BrowserPath string `envconfig:"BROWSER_PATH" default:"/snap/bin/chromium"`

	// Content page used to observe cookies
	ExamplePage string `envconfig:"EXAMPLE_PAGE" default:"https://example.com/"`
	// Cookie value the extension writes when a mode is switched on
	DefaultKey string `envconfig:"DEFAULT_KEY" default:"XDEBUG_ECLIPSE"`

	// Timing, in milliseconds
	TimeoutMS int `envconfig:"TIMEOUT" default:"30000"`
	SlowMoMS  int `envconfig:"SLOW_MO" default:"0"`

	// Browser behaviour
	Headless      bool   `envconfig:"HEADLESS" default:"false"`
	DevTools      bool   `envconfig:"DEV_TOOLS" default:"false"`
	ChromiumFlags string `envconfig:"CHROMIUM_FLAGS" default:""`
	DebugPort     int    `envconfig:"DEBUG_PORT" default:"0"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, err
	}
	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(config *Config) error {
	if config.ExtensionDir == "" {
		return fmt.Errorf("EXTENSION_DIR is required")
	}
	if config.DefaultKey == "" {
		return fmt.Errorf("DEFAULT_KEY is required")
	}
	u, err := url.Parse(config.ExamplePage)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("EXAMPLE_PAGE must be an absolute http(s) URL, got %q", config.ExamplePage)
	}
	if config.TimeoutMS <= 0 {
		return fmt.Errorf("TIMEOUT must be greater than 0")
	}
	if config.SlowMoMS < 0 {
		return fmt.Errorf("SLOW_MO must not be negative")
	}
	if config.DebugPort < 0 || config.DebugPort > 65535 {
		return fmt.Errorf("DEBUG_PORT must be between 0 and 65535")
	}
	switch config.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}

	return nil
}

// Timeout is the deadline applied to launches, waits and polling.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// SlowMo is the delay inserted before every protocol command.
func (c *Config) SlowMo() time.Duration {
	return time.Duration(c.SlowMoMS) * time.Millisecond
}
