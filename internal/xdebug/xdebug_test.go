package xdebug

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModes(t *testing.T) {
	tests := []struct {
		mode   Mode
		label  string
		cookie string
		radio  string
	}{
		{Disable, "disable", "", `input[type="radio"][value="0"]`},
		{Debug, "debug", "XDEBUG_SESSION", `input[type="radio"][value="1"]`},
		{Profile, "profile", "XDEBUG_PROFILE", `input[type="radio"][value="2"]`},
		{Trace, "trace", "XDEBUG_TRACE", `input[type="radio"][value="3"]`},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.label, tt.mode.Label())
			assert.Equal(t, tt.cookie, tt.mode.CookieName())
			assert.Equal(t, tt.radio, tt.mode.RadioSelector())
			assert.Equal(t, `label[for="`+tt.label+`"]`, tt.mode.LabelSelector())

			parsed, err := ParseMode(tt.label)
			require.NoError(t, err)
			assert.Equal(t, tt.mode, parsed)
		})
	}
}

func TestParseMode_CaseInsensitive(t *testing.T) {
	m, err := ParseMode("Trace")
	require.NoError(t, err)
	assert.Equal(t, Trace, m)
}

func TestParseMode_Unknown(t *testing.T) {
	_, err := ParseMode("coverage")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "coverage")
}

func TestSettings(t *testing.T) {
	require.Len(t, Settings, 3)
	assert.Equal(t, KeyIDEKey, Settings[0].Key)
	assert.Equal(t, FieldProfileTrigger, Settings[2].Selector)
}
