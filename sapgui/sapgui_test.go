package sapgui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocatorComplete(t *testing.T) {
	l := Locator{Connection: 1, Session: 2, Window: 0}

	tests := []struct {
		id   string
		want string
	}{
		{"", "/app/con[1]/ses[2]/wnd[0]"},
		{" ", "/app/con[1]/ses[2]/wnd[0]"},
		{"usr/txtFIELD", "/app/con[1]/ses[2]/wnd[0]/usr/txtFIELD"},
		{"/usr/txtFIELD", "/app/con[1]/ses[2]/wnd[0]/usr/txtFIELD"},
		{"wnd[1]/tbar[0]/btn[0]", "/app/con[1]/ses[2]/wnd[1]/tbar[0]/btn[0]"},
		{"/wnd[1]/usr", "/app/con[1]/ses[2]/wnd[1]/usr"},
		{"ses[0]/wnd[0]", "/app/con[1]/ses[0]/wnd[0]"},
		{"/ses[0]", "/app/con[1]/ses[0]"},
		{"con[3]/ses[0]", "/app/con[3]/ses[0]"},
		{"/con[3]", "/app/con[3]"},
		{"app/con[0]", "/app/con[0]"},
		{"/app/con[0]/ses[0]", "/app/con[0]/ses[0]"},
		{"tbar[0]/okcd", "tbar[0]/okcd"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, l.Complete(tt.id))
		})
	}
}

func TestVKey(t *testing.T) {
	tests := map[string]int{
		"ENTER":           0,
		"enter":           0,
		"F3":              3,
		"8":               8,
		"ctrl + s":        11,
		"Control+F1":      25,
		"shift+delete":    76,
		"CONTROL+INSERT":  77,
		"esc":             12,
		"Ctrl+Shift+F12":  48,
		"ctrl+#":          97,
		"alt + backspace": 79,
	}
	for name, want := range tests {
		got, err := VKey(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestVKeyUnknown(t *testing.T) {
	_, err := VKey("CTRL+Z")
	require.ErrorIs(t, err, ErrUnknownVKey)
}
