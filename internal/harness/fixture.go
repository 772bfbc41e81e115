package harness

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tomyan/xdebug-e2e/internal/config"
	"github.com/tomyan/xdebug-e2e/internal/logger"
)

// Fixture is the per-test state: a fresh browser session with the extension
// path already resolved.
type Fixture struct {
	Ctx          context.Context
	Config       *config.Config
	Session      *Session
	ExtensionURL string
}

// Setup launches a session for t and registers its teardown. Teardown runs
// even when setup fails part way.
func Setup(t testing.TB, cfg *config.Config) *Fixture {
	t.Helper()

	w := &testLogWriter{t: t}
	t.Cleanup(w.Stop)
	log, err := logger.New(w, cfg.LogLevel)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(logger.AddToContext(context.Background(), log))
	t.Cleanup(cancel)

	s, err := Launch(ctx, cfg)
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Logf("closing session: %v", err)
		}
	})
	require.NoError(t, err, "launching browser")

	extURL, err := s.ExtensionPath(ctx)
	require.NoError(t, err, "resolving extension path")

	return &Fixture{
		Ctx:          ctx,
		Config:       cfg,
		Session:      s,
		ExtensionURL: extURL,
	}
}

// URL returns the URL of an extension page such as popup.html.
func (f *Fixture) URL(page string) string {
	return f.ExtensionURL + "/" + strings.TrimPrefix(page, "/")
}

// testLogWriter routes slog output to t.Log and can be stopped so that
// goroutines logging after the test has finished do not panic.
type testLogWriter struct {
	t       testing.TB
	stopped atomic.Bool
}

func (tw *testLogWriter) Write(p []byte) (int, error) {
	if tw.stopped.Load() {
		return len(p), nil
	}
	tw.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

func (tw *testLogWriter) Stop() {
	tw.stopped.Store(true)
}
