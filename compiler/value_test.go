package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/surajsub/sapgui-step-dsl/sapgui"
)

func TestResolveValue(t *testing.T) {
	loc := sapgui.Locator{}

	tests := []struct {
		path string
		want string
	}{
		{"Case.Data.customer_name", "self.case.Data['customer_name']"},
		{"Case.System", "self.case.System"},
		{"System.1.2", ".System12"},
		{"5", "5"},
		{"1.5", "15"},
		{"x", "x"},
		{"'abc'", "'abc'"},
		{"Case.Data.Data.foo", "self.case.Data.Data['foo']"},
		{"Case.Data.orders.0", "self.case.Data['orders']0"},
		{"Case.foo.bar", "self.case['foo']bar"},
		{"findById(usr/txtFIELD)", "self.session.findById('/app/con[0]/ses[0]/wnd[0]/usr/txtFIELD')"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			v := ResolveValue(tt.path, loc)
			assert.Equal(t, tt.want, v.Expr())
			assert.Equal(t, tt.path, v.Raw)
		})
	}
}

func TestResolveValueSegments(t *testing.T) {
	v := ResolveValue("Case.Data.customer_name", nil)
	assert.Equal(t, []Segment{
		{Kind: SegmentRoot, Text: "Case"},
		{Kind: SegmentMember, Text: "Data"},
		{Kind: SegmentKey, Text: "customer_name"},
	}, v.Segments)
}

func TestResolveValueDigitsRoundTrip(t *testing.T) {
	for _, path := range []string{"7", "12.34", "1.2.3", "007"} {
		v := ResolveValue(path, nil)
		assert.True(t, v.IsLiteral(), path)

		again := ResolveValue(v.Expr(), nil)
		assert.Equal(t, v.Expr(), again.Expr(), path)
	}
}

func TestKeyedLookbackHasNoPreviousForFirstSegment(t *testing.T) {
	assert.False(t, keyedLookback([]string{"foo", "Case"}, 0))
	assert.True(t, keyedLookback([]string{"Case", "foo"}, 1))
	assert.True(t, keyedLookback([]string{"Data", "foo"}, 1))
	assert.False(t, keyedLookback([]string{"System", "foo"}, 1))
}

func TestValueUnresolvable(t *testing.T) {
	assert.True(t, ResolveValue("Order.Data.x", nil).Unresolvable())
	assert.False(t, ResolveValue("Case.Data.x", nil).Unresolvable())
	assert.False(t, ResolveValue("Data.x", nil).Unresolvable())
	assert.False(t, ResolveValue("x", nil).Unresolvable())
	assert.False(t, ResolveValue("1.5", nil).Unresolvable())
	assert.False(t, ResolveValue("session.findById(usr/txtFIELD)", nil).Unresolvable())
}
