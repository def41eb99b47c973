// Package prefs provides repository implementations using Fyne preferences.
//
// Fyne preferences automatically use OS-specific app data directories:
// - macOS: ~/Library/Preferences/<app id>.plist
// - Linux: ~/.config/fyne/<app id>/
// - Windows: %APPDATA%\fyne\<app id>\
//
// Values are stored as JSON strings under dotted keys. Every repository
// guards its keys with its own sync.RWMutex.
package prefs

import (
	"encoding/json"
	"strconv"

	"fyne.io/fyne/v2"
	"github.com/samber/lo"
)

// readJSON decodes the value stored at key into out.
// It reports false if the key is not set.
func readJSON(prefs fyne.Preferences, key string, out any) (bool, error) {
	data := prefs.String(key)
	if data == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return true, err
	}
	return true, nil
}

func writeJSON(prefs fyne.Preferences, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	prefs.SetString(key, string(data))
	return nil
}

// idIndex is a JSON list of ids kept under a "._ids" key so entries can be enumerated.
type idIndex struct {
	prefs fyne.Preferences
	key   string
}

func (x idIndex) load() ([]string, error) {
	var ids []string
	if _, err := readJSON(x.prefs, x.key, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (x idIndex) add(id string) error {
	ids, err := x.load()
	if err != nil {
		ids = nil
	}
	if lo.Contains(ids, id) {
		return nil
	}
	return writeJSON(x.prefs, x.key, append(ids, id))
}

func (x idIndex) remove(id string) error {
	ids, err := x.load()
	if err != nil {
		ids = nil
	}
	return writeJSON(x.prefs, x.key, lo.Without(ids, id))
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
