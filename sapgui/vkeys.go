package sapgui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrUnknownVKey = errors.New("unknown vkey")

// vkeys maps a key combination to its SAP GUI virtual key number. Gaps in the
// numbering are keys SAP GUI does not expose.
var vkeys = map[string]int{
	"ENTER": 0, "F1": 1, "F2": 2, "F3": 3, "F4": 4, "F5": 5, "F6": 6,
	"F7": 7, "F8": 8, "F9": 9, "F10": 10, "F11": 11, "F12": 12,

	"SHIFT+F2": 14, "SHIFT+F3": 15, "SHIFT+F4": 16, "SHIFT+F5": 17, "SHIFT+F6": 18,
	"SHIFT+F7": 19, "SHIFT+F8": 20, "SHIFT+F9": 21, "CTRL+SHIFT+0": 22,
	"SHIFT+F11": 23, "SHIFT+F12": 24,

	"CTRL+F1": 25, "CTRL+F2": 26, "CTRL+F3": 27, "CTRL+F4": 28, "CTRL+F5": 29,
	"CTRL+F6": 30, "CTRL+F7": 31, "CTRL+F8": 32, "CTRL+F9": 33, "CTRL+F10": 34,
	"CTRL+F11": 35, "CTRL+F12": 36,

	"CTRL+SHIFT+F1": 37, "CTRL+SHIFT+F2": 38, "CTRL+SHIFT+F3": 39, "CTRL+SHIFT+F4": 40,
	"CTRL+SHIFT+F5": 41, "CTRL+SHIFT+F6": 42, "CTRL+SHIFT+F7": 43, "CTRL+SHIFT+F8": 44,
	"CTRL+SHIFT+F9": 45, "CTRL+SHIFT+F10": 46, "CTRL+SHIFT+F11": 47, "CTRL+SHIFT+F12": 48,

	"CTRL+E": 70, "CTRL+F": 71, "CTRL+A": 72, "CTRL+D": 73, "CTRL+N": 74, "CTRL+O": 75,
	"SHIFT+DEL": 76, "CTRL+INS": 77, "SHIFT+INS": 78, "ALT+BACKSPACE": 79,
	"CTRL+PAGEUP": 80, "PAGEUP": 81, "PAGEDOWN": 82, "CTRL+PAGEDOWN": 83,
	"CTRL+G": 84, "CTRL+R": 85, "CTRL+P": 86, "CTRL+B": 87, "CTRL+K": 88,
	"CTRL+T": 89, "CTRL+Y": 90, "CTRL+X": 91, "CTRL+C": 92, "CTRL+V": 93,
	"SHIFT+F10": 94, "CTRL+#": 97,

	// not part of the table but accepted by the session
	"CTRL+S": 11,
	"ESC":    12,
}

var vkeyReplacer = strings.NewReplacer(" ", "", "CONTROL", "CTRL", "DELETE", "DEL", "INSERT", "INS")

// NormalizeVKey upper-cases a key combination and folds the long modifier names.
func NormalizeVKey(name string) string {
	return vkeyReplacer.Replace(strings.ToUpper(name))
}

// VKey resolves a key name ("ctrl + s", "Shift+F4") or a plain number to the
// virtual key number sent to the window.
func VKey(name string) (int, error) {
	if n, err := strconv.Atoi(strings.TrimSpace(name)); err == nil {
		return n, nil
	}
	if n, ok := vkeys[NormalizeVKey(name)]; ok {
		return n, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownVKey, name)
}
