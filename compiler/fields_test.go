package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitLineActionOnly(t *testing.T) {
	d := SplitLine("enter")

	assert.Equal(t, "enter", d.Action)
	assert.Empty(t, d.Args)
	assert.Empty(t, d.Description)
	assert.Empty(t, d.Name)
	assert.Nil(t, d.FailOnError)
	assert.Nil(t, d.ScreenshotOnFail)
	assert.Nil(t, d.ScreenshotOnPass)
}

func TestSplitLineAllFields(t *testing.T) {
	d := SplitLine("input_text|usr/txtFIELD;Case.Data.customer_name|Fill the customer|false|customer|true|False")

	assert.Equal(t, "input_text", d.Action)
	assert.Equal(t, []string{"usr/txtFIELD", "Case.Data.customer_name"}, d.Args)
	assert.Equal(t, "Fill the customer", d.Description)
	require.NotNil(t, d.FailOnError)
	assert.False(t, *d.FailOnError)
	assert.Equal(t, "customer", d.Name)
	require.NotNil(t, d.ScreenshotOnFail)
	assert.True(t, *d.ScreenshotOnFail)
	require.NotNil(t, d.ScreenshotOnPass)
	assert.False(t, *d.ScreenshotOnPass)
	assert.Equal(t, "usr/txtFIELD", d.ElementID)
}

func TestSplitLineTrailingFieldsUnset(t *testing.T) {
	tests := []struct {
		line        string
		description string
		name        string
		failSet     bool
	}{
		{"save|", "", "", false},
		{"save||Save the order", "Save the order", "", false},
		{"save||Save the order|true", "Save the order", "", true},
		{"save||Save the order|true|save_order", "Save the order", "save_order", true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			d := SplitLine(tt.line)
			assert.Equal(t, tt.description, d.Description)
			assert.Equal(t, tt.name, d.Name)
			assert.Equal(t, tt.failSet, d.FailOnError != nil)
			assert.Nil(t, d.ScreenshotOnFail)
			assert.Nil(t, d.ScreenshotOnPass)
		})
	}
}

func TestSplitLineArgsPreserveOrder(t *testing.T) {
	d := SplitLine("documentation|a;b;c;d;e")
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, d.Args)
	assert.Equal(t, "c", d.Arg(2))
	assert.Equal(t, "", d.Arg(9))
}

func TestSplitLineUnparseableFlagLeftUnset(t *testing.T) {
	d := SplitLine("enter|||maybe")
	assert.Nil(t, d.FailOnError)
}

func TestSplitLineDelimiterInsideArgumentIsNotEscaped(t *testing.T) {
	d := SplitLine(`documentation|a\;b`)
	assert.Equal(t, []string{`a\`, "b"}, d.Args)
}

func TestSplitLineScreenshotLocator(t *testing.T) {
	d := SplitLine("take_screenshot|order.png;usr/tblORDERS")
	assert.Equal(t, "usr/tblORDERS", d.ElementID)
}
