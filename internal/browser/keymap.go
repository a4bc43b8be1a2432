// internal/browser/keymap.go
package browser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/chromedp/cdproto/input"
)

// The model names keys the way people write them in prose ("ctrl", "esc",
// "page_down"). CDP wants DOM key values and a modifier bitmask. The tables
// below translate between the two.

var modifierKeys = map[string]input.Modifier{
	"alt":     input.ModifierAlt,
	"option":  input.ModifierAlt,
	"ctrl":    input.ModifierCtrl,
	"control": input.ModifierCtrl,
	"meta":    input.ModifierMeta,
	"cmd":     input.ModifierMeta,
	"command": input.ModifierMeta,
	"win":     input.ModifierMeta,
	"super":   input.ModifierMeta,
	"shift":   input.ModifierShift,
}

// modifierDOMKeys names the modifier keys themselves, for combos that press
// a bare modifier.
var modifierDOMKeys = map[input.Modifier]string{
	input.ModifierAlt:   "Alt",
	input.ModifierCtrl:  "Control",
	input.ModifierMeta:  "Meta",
	input.ModifierShift: "Shift",
}

var namedDOMKeys = map[string]string{
	"enter":       "Enter",
	"return":      "Enter",
	"tab":         "Tab",
	"esc":         "Escape",
	"escape":      "Escape",
	"space":       " ",
	"backspace":   "Backspace",
	"delete":      "Delete",
	"del":         "Delete",
	"insert":      "Insert",
	"home":        "Home",
	"end":         "End",
	"page_up":     "PageUp",
	"pageup":      "PageUp",
	"page_down":   "PageDown",
	"pagedown":    "PageDown",
	"up":          "ArrowUp",
	"arrow_up":    "ArrowUp",
	"arrowup":     "ArrowUp",
	"down":        "ArrowDown",
	"arrow_down":  "ArrowDown",
	"arrowdown":   "ArrowDown",
	"left":        "ArrowLeft",
	"arrow_left":  "ArrowLeft",
	"arrowleft":   "ArrowLeft",
	"right":       "ArrowRight",
	"arrow_right": "ArrowRight",
	"arrowright":  "ArrowRight",
	"f1":          "F1",
	"f2":          "F2",
	"f3":          "F3",
	"f4":          "F4",
	"f5":          "F5",
	"f6":          "F6",
	"f7":          "F7",
	"f8":          "F8",
	"f9":          "F9",
	"f10":         "F10",
	"f11":         "F11",
	"f12":         "F12",
}

// encodedKeys are DOM keys whose full key-event sequence chromedp can
// synthesize from a control rune, including the virtual key codes pages need
// to react to them (a bare Enter must still submit forms).
var encodedKeys = map[string]string{
	"Enter":     "\r",
	"Tab":       "\t",
	"Backspace": "\b",
}

// domKeyFor resolves one friendly key name to its DOM key value. Single
// printable characters pass through unchanged; multi-character names must be
// in the table.
func domKeyFor(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("empty key name")
	}
	lower := strings.ToLower(trimmed)
	if mod, ok := modifierKeys[lower]; ok {
		return modifierDOMKeys[mod], nil
	}
	if dom, ok := namedDOMKeys[lower]; ok {
		return dom, nil
	}
	if utf8.RuneCountInString(trimmed) == 1 {
		return lower, nil
	}
	return "", fmt.Errorf("unknown key name %q", name)
}

// parseCombo splits a key combo into its modifier bitmask and the main key.
// Every entry except the last must be a modifier; the last entry may be any
// key, including a bare modifier.
func parseCombo(keys []string) (input.Modifier, string, error) {
	if len(keys) == 0 {
		return 0, "", fmt.Errorf("empty key combo")
	}

	var mods input.Modifier
	for _, name := range keys[:len(keys)-1] {
		mod, ok := modifierKeys[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return 0, "", fmt.Errorf("key %q is not a modifier; only the last key in a combo may be a regular key", name)
		}
		mods |= mod
	}

	main, err := domKeyFor(keys[len(keys)-1])
	if err != nil {
		return 0, "", err
	}
	return mods, main, nil
}
