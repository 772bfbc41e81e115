// Package xdebug names the pages, controls, cookies and stored settings of
// the Xdebug helper extension.
package xdebug

import (
	"fmt"
	"strings"
)

// Extension pages, relative to the extension base URL.
const (
	PopupPage   = "popup.html"
	OptionsPage = "options.html"
)

// Cookies the extension writes on the active tab's site.
const (
	CookieSession = "XDEBUG_SESSION"
	CookieProfile = "XDEBUG_PROFILE"
	CookieTrace   = "XDEBUG_TRACE"
)

// Keys under which the options page stores its settings.
const (
	KeyIDEKey         = "xdebugIdeKey"
	KeyTraceTrigger   = "xdebugTraceTrigger"
	KeyProfileTrigger = "xdebugProfileTrigger"
)

// Options page controls.
const (
	FieldIDEKey         = "#idekey"
	FieldTraceTrigger   = "#tracetrigger"
	FieldProfileTrigger = "#profiletrigger"
	ButtonClear         = `button[type="reset"]`
	ButtonSave          = `button[type="submit"]`
	SavedForm           = "form.success"
)

// OptionsLink is the popup's link to the options page.
const OptionsLink = "#options"

// Setting pairs an options field with the key it is saved under.
type Setting struct {
	Name     string
	Selector string
	Key      string
}

// Settings lists the options page fields in display order.
var Settings = []Setting{
	{Name: "ide key", Selector: FieldIDEKey, Key: KeyIDEKey},
	{Name: "trace trigger", Selector: FieldTraceTrigger, Key: KeyTraceTrigger},
	{Name: "profile trigger", Selector: FieldProfileTrigger, Key: KeyProfileTrigger},
}

// Mode is a popup selection. Values match the radio inputs' value attribute.
type Mode int

const (
	Disable Mode = iota
	Debug
	Profile
	Trace
)

// Modes lists every mode in value order.
var Modes = []Mode{Disable, Debug, Profile, Trace}

// ParseMode parses a mode label such as "debug".
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if strings.EqualFold(s, m.Label()) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q (want disable, debug, profile or trace)", s)
}

// Label is the id of the mode's radio input and the for= of its label.
func (m Mode) Label() string {
	switch m {
	case Disable:
		return "disable"
	case Debug:
		return "debug"
	case Profile:
		return "profile"
	case Trace:
		return "trace"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

func (m Mode) String() string { return m.Label() }

// CookieName is the cookie the mode sets, or "" for Disable.
func (m Mode) CookieName() string {
	switch m {
	case Debug:
		return CookieSession
	case Profile:
		return CookieProfile
	case Trace:
		return CookieTrace
	}
	return ""
}

// LabelSelector matches the clickable label for the mode.
func (m Mode) LabelSelector() string {
	return fmt.Sprintf(`label[for="%s"]`, m.Label())
}

// RadioSelector matches the mode's radio input.
func (m Mode) RadioSelector() string {
	return fmt.Sprintf(`input[type="radio"][value="%d"]`, int(m))
}
