//go:build e2e

package e2e

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomyan/xdebug-e2e/internal/harness"
	"github.com/tomyan/xdebug-e2e/internal/xdebug"
)

func openOptions(t *testing.T, fx *harness.Fixture, page *harness.Page) {
	t.Helper()
	require.NoError(t, page.Goto(fx.Ctx, fx.URL(xdebug.OptionsPage)))
}

func TestOptions_Render(t *testing.T) {
	fx := setup(t)
	page, err := fx.Session.FirstPage(fx.Ctx)
	require.NoError(t, err)
	openOptions(t, fx, page)

	for _, sel := range []string{
		xdebug.FieldIDEKey,
		xdebug.FieldTraceTrigger,
		xdebug.FieldProfileTrigger,
		xdebug.ButtonClear,
		xdebug.ButtonSave,
	} {
		ok, err := page.Exists(fx.Ctx, sel)
		require.NoError(t, err)
		assert.True(t, ok, "missing %s", sel)
	}
}

func TestOptions_SaveSetting(t *testing.T) {
	values := map[string]string{
		xdebug.KeyIDEKey:         "IDE_KEY_TEST",
		xdebug.KeyTraceTrigger:   "TRACE_TRIGGER_TEST",
		xdebug.KeyProfileTrigger: "PROFILE_TRIGGER_TEST",
	}

	for _, setting := range xdebug.Settings {
		t.Run(setting.Name, func(t *testing.T) {
			fx := setup(t)
			page, err := fx.Session.FirstPage(fx.Ctx)
			require.NoError(t, err)
			openOptions(t, fx, page)

			want := values[setting.Key]
			require.NoError(t, page.WaitForSelector(fx.Ctx, setting.Selector))
			require.NoError(t, page.Fill(fx.Ctx, setting.Selector, want))
			require.NoError(t, page.WaitForSelector(fx.Ctx, xdebug.ButtonSave))
			require.NoError(t, page.Click(fx.Ctx, xdebug.ButtonSave))

			require.NoError(t, page.WaitForSelector(fx.Ctx, xdebug.SavedForm))
			got, err := harness.WaitForStoredValue(fx.Ctx, page, setting.Key)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestOptions_ClearResetsInputs(t *testing.T) {
	fx := setup(t)
	page, err := fx.Session.NewPage(fx.Ctx)
	require.NoError(t, err)
	openOptions(t, fx, page)

	require.NoError(t, page.Type(fx.Ctx, xdebug.FieldIDEKey, "foo"))
	require.NoError(t, page.Type(fx.Ctx, xdebug.FieldTraceTrigger, "bar"))
	require.NoError(t, page.Type(fx.Ctx, xdebug.FieldProfileTrigger, "bat"))

	require.NoError(t, page.Click(fx.Ctx, xdebug.ButtonClear))

	for _, setting := range xdebug.Settings {
		v, err := page.Value(fx.Ctx, setting.Selector)
		require.NoError(t, err)
		assert.Empty(t, v, "%s should be cleared", setting.Name)
	}
}
