package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surajsub/sapgui-step-dsl/compiler"
	"github.com/surajsub/sapgui-step-dsl/sapgui"
)

func TestCelSource(t *testing.T) {
	assert.Equal(t, "a > 1 && !b || c == null", celSource("a > 1 and not b or c == None"))
	assert.Equal(t, "flag == true", celSource("flag == True"))
	assert.Equal(t, "brand == 'android'", celSource("brand == 'android'"))
}

func TestEvaluatorValue(t *testing.T) {
	e := newEvaluator(map[string]any{
		"System": "S4 QA",
		"Data": map[string]any{
			"orders": []any{"A-100", "A-200"},
			"name":   "ACME",
		},
	}, nil)
	e.vars["qty"] = 4

	for _, tt := range []struct {
		path string
		want any
	}{
		{"Case.Data.name", "ACME"},
		{"Data.name", "ACME"},
		{"Case.System", "S4 QA"},
		{"Case.Data.orders.1", "A-200"},
		{"42", 42},
		{"qty", 4},
		{"qty * 2", 8},
		{"plain text", "plain text"},
	} {
		v := compiler.ResolveValue(tt.path, sapgui.Locator{})
		got, err := e.value(0, &v)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}

	v := compiler.ResolveValue("Case.Data.orders.3", nil)
	_, err := e.value(0, &v)
	assert.ErrorIs(t, err, ErrUnresolvedValue)
}

func TestEvaluatorUpdate(t *testing.T) {
	e := newEvaluator(map[string]any{}, nil)
	e.vars["n"] = 10

	for op, want := range map[string]any{
		"+=5":   15,
		"-= 3":  7,
		"*=2":   20,
		"%=4":   2,
		"= n+1": 11,
	} {
		got, err := e.update("n", op)
		require.NoError(t, err, op)
		assert.Equal(t, want, got, op)
	}

	_, err := e.update("missing", "+=1")
	assert.Error(t, err)
	_, err = e.update("n", "^=1")
	assert.Error(t, err)
}

func TestEvaluatorCondition(t *testing.T) {
	e := newEvaluator(map[string]any{"Data": map[string]any{"count": 3}}, nil)

	ok, err := e.condition("Data.count >= 3 and True")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = e.condition("Data.count + 1")
	assert.ErrorContains(t, err, "not bool")
}

func TestConvert(t *testing.T) {
	v, err := convert("12", "int")
	require.NoError(t, err)
	assert.Equal(t, 12, v)

	v, err = convert(3, "float")
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	v, err = convert(3, "str")
	require.NoError(t, err)
	assert.Equal(t, "3", v)

	v, err = convert("true", "bool")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	_, err = convert(2.5, "int")
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	got := normalize(map[string]any{
		"whole":  float64(3),
		"half":   2.5,
		"nested": []any{int64(1), float64(2)},
	})
	assert.Equal(t, map[string]any{
		"whole":  3,
		"half":   2.5,
		"nested": []any{1, 2},
	}, got)
}

func TestDriverExecutorWrapsErrors(t *testing.T) {
	d := &DryRunDriver{
		Results: map[string]any{"findById": "ok"},
		Errors:  map[string]error{"save": errors.New("locked")},
	}
	exec := DriverExecutor{Driver: d}

	out, err := exec.Execute(Call{Method: "findById", Args: []Argument{{Value: "/app/con[0]"}}})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	_, err = exec.Execute(Call{Method: "save"})
	assert.EqualError(t, err, "save: locked")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = DriverExecutor{Ctx: ctx, Driver: d}.Execute(Call{Method: "enter"})
	assert.ErrorIs(t, err, context.Canceled)

	assert.Len(t, d.Calls(), 2)
}

func TestCallString(t *testing.T) {
	c := Call{Method: "input_text", Args: []Argument{{Name: "id", Value: "usr/txtA"}, {Name: "text", Value: 5}}}
	assert.Equal(t, "input_text(id=usr/txtA, text=5)", c.String())

	v, ok := c.Arg("text")
	assert.True(t, ok)
	assert.Equal(t, 5, v)
	_, ok = c.Arg("missing")
	assert.False(t, ok)
}
