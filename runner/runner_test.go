package runner

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surajsub/sapgui-step-dsl/cases"
	"github.com/surajsub/sapgui-step-dsl/compiler"
	"github.com/surajsub/sapgui-step-dsl/models"
)

func newCase(t *testing.T, lines ...string) *cases.Case {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	c := cases.New()
	c.System = "S4 QA"
	c.Data = map[string]any{"customer_name": "ACME", "count": float64(3)}
	c.StepLines = lines
	_, err := cases.Compile(c, compiler.New(compiler.WithLogger(logger)))
	require.NoError(t, err)
	return c
}

func newRunner(d *DryRunDriver, opts ...Option) *Runner {
	clock := func() time.Time { return time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC) }
	base := []Option{WithSleep(func(time.Duration) {}), WithClock(clock)}
	return New(DriverExecutor{Ctx: context.Background(), Driver: d}, append(base, opts...)...)
}

func methods(calls []Call) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Method
	}
	return out
}

func lastArg(t *testing.T, calls []Call, method, name string) any {
	t.Helper()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Method == method {
			v, ok := calls[i].Arg(name)
			require.True(t, ok)
			return v
		}
	}
	t.Fatalf("no %s call", method)
	return nil
}

func TestRunSessionCalls(t *testing.T) {
	c := newCase(t,
		"open_connection|Case.System",
		"start_transaction|VA01",
		"input_text|usr/txtFIELD;Case.Data.customer_name",
		"enter",
	)
	d := &DryRunDriver{}

	res, err := newRunner(d).Run(c)
	require.NoError(t, err)

	assert.Equal(t, models.PASS, res.Result)
	assert.Equal(t, []int{0, 1, 2, 3}, res.PassedSteps)
	assert.Empty(t, res.FailedSteps)

	calls := d.Calls()
	assert.Equal(t, []string{"open_connection", "start_transaction", "input_text", "enter"}, methods(calls))
	assert.Equal(t, "S4 QA", lastArg(t, calls, "open_connection", ""))
	assert.Equal(t, "/app/con[0]/ses[0]/wnd[0]/usr/txtFIELD", lastArg(t, calls, "input_text", "id"))
	assert.Equal(t, "ACME", lastArg(t, calls, "input_text", "text"))

	assert.Equal(t, models.PASS, c.Steps[2].Status.Result)
	assert.Equal(t, res, c.Status)
}

func TestRunIfElifElse(t *testing.T) {
	for _, tt := range []struct {
		x    string
		want string
	}{
		{"20", "big"},
		{"5", "mid"},
		{"1", "small"},
	} {
		t.Run(tt.x, func(t *testing.T) {
			c := newCase(t,
				"set_variable|x:int;"+tt.x,
				"start_if|x > 10",
				"documentation|big",
				"start_elif|x > 3 and x <= 10",
				"documentation|mid",
				"end_elif",
				"start_else",
				"documentation|small",
				"end_else",
				"end_if",
			)
			d := &DryRunDriver{}

			res, err := newRunner(d).Run(c)
			require.NoError(t, err)
			assert.Equal(t, models.PASS, res.Result)

			calls := d.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, tt.want, lastArg(t, calls, "documentation", ""))
		})
	}
}

func TestRunRangeAndUpdate(t *testing.T) {
	c := newCase(t,
		"set_variable|total;0",
		"start_range|0;Case.Data.count",
		"update_var|total;+=i",
		"end_range",
		"input_text|usr/txtTOTAL;total",
	)
	d := &DryRunDriver{}

	res, err := newRunner(d).Run(c)
	require.NoError(t, err)
	assert.Equal(t, models.PASS, res.Result)
	assert.Equal(t, 3, lastArg(t, d.Calls(), "input_text", "text"))
}

func TestRunWhile(t *testing.T) {
	c := newCase(t,
		"set_variable|n;0",
		"start_while|n < 3",
		"click_element|wnd[0]/tbar[0]/btn[11]",
		"update_var|n;+=1",
		"end_while",
	)
	d := &DryRunDriver{}

	_, err := newRunner(d).Run(c)
	require.NoError(t, err)
	assert.Equal(t, []string{"click_element", "click_element", "click_element"}, methods(d.Calls()))
}

func TestRunWhileIterationCap(t *testing.T) {
	c := newCase(t,
		"start_while|True",
		"enter",
		"end_while",
		"save",
	)
	d := &DryRunDriver{}

	res, err := newRunner(d, WithMaxIterations(2)).Run(c)
	require.NoError(t, err)
	assert.Equal(t, models.FAIL, res.Result)
	assert.Equal(t, []int{0}, res.FailedSteps)
	assert.Contains(t, res.Error, "exceeded 2 iterations")
	assert.Equal(t, []string{"enter", "enter"}, methods(d.Calls()))
}

func TestRunFailureStopsCase(t *testing.T) {
	c := newCase(t, "enter", "save")
	c.ScreenShotOnFail = true
	d := &DryRunDriver{Errors: map[string]error{"enter": errors.New("no session")}}

	res, err := newRunner(d).Run(c)
	require.NoError(t, err)

	assert.Equal(t, models.FAIL, res.Result)
	assert.Equal(t, []int{0}, res.FailedSteps)
	assert.Equal(t, []string{"screenshot_20261015_093000_0.png"}, res.FailedScreenShots)
	assert.Contains(t, res.Error, "no session")
	assert.Equal(t, []string{"enter", "take_screenshot"}, methods(d.Calls()))
	assert.Equal(t, models.FAIL, c.Steps[0].Status.Result)
	assert.Equal(t, "enter: no session", c.Steps[0].Status.Error)
}

func TestRunFailOnErrorOverrideWarns(t *testing.T) {
	c := newCase(t, "enter||Press enter|false", "save")
	d := &DryRunDriver{Errors: map[string]error{"enter": errors.New("no session")}}

	res, err := newRunner(d).Run(c)
	require.NoError(t, err)

	assert.Equal(t, models.PASS, res.Result)
	assert.Equal(t, []int{0}, res.WarnedSteps)
	assert.Equal(t, []int{1}, res.PassedSteps)
	assert.Equal(t, models.WARN, c.Steps[0].Status.Result)
}

func TestRunExitOnFailDisabledContinues(t *testing.T) {
	c := newCase(t, "enter", "save")
	c.ExitOnFail = false
	d := &DryRunDriver{Errors: map[string]error{"enter": errors.New("no session")}}

	res, err := newRunner(d).Run(c)
	require.NoError(t, err)

	assert.Equal(t, models.FAIL, res.Result)
	assert.Empty(t, res.Error)
	assert.Equal(t, []string{"enter", "save"}, methods(d.Calls()))
}

func TestRunTryExceptCatchesFailure(t *testing.T) {
	c := newCase(t,
		"start_try",
		"enter",
		"save",
		"end_try",
		"start_except",
		"input_text|usr/txtERROR;err",
		"end_except",
		"documentation|after",
	)
	d := &DryRunDriver{Errors: map[string]error{"enter": errors.New("no session")}}

	res, err := newRunner(d).Run(c)
	require.NoError(t, err)

	assert.Equal(t, models.PASS, res.Result)
	assert.Equal(t, []int{1}, res.WarnedSteps)
	assert.Equal(t, []string{"enter", "input_text", "documentation"}, methods(d.Calls()))
	assert.Equal(t, "enter: no session", lastArg(t, d.Calls(), "input_text", "text"))
}

func TestRunTryWithoutExceptFails(t *testing.T) {
	c := newCase(t,
		"start_try",
		"click_element|usr/btnX",
		"end_try",
		"enter",
	)
	c.ScreenShotOnFail = true
	d := &DryRunDriver{Errors: map[string]error{"click_element": errors.New("boom")}}

	res, err := newRunner(d).Run(c)
	require.NoError(t, err)

	assert.Equal(t, models.FAIL, res.Result)
	assert.Equal(t, []int{1}, res.FailedSteps)
	assert.Empty(t, res.WarnedSteps)
	assert.Equal(t, []string{"screenshot_20261015_093000_1.png"}, res.FailedScreenShots)
	assert.Contains(t, res.Error, "boom")
	assert.Equal(t, []string{"click_element", "take_screenshot"}, methods(d.Calls()))
	assert.Equal(t, models.FAIL, c.Steps[1].Status.Result)
}

func TestRunTryWithoutExceptContinuesWhenExitOnFailDisabled(t *testing.T) {
	c := newCase(t,
		"start_try",
		"click_element|usr/btnX",
		"end_try",
		"enter",
	)
	c.ExitOnFail = false
	d := &DryRunDriver{Errors: map[string]error{"click_element": errors.New("boom")}}

	res, err := newRunner(d).Run(c)
	require.NoError(t, err)

	assert.Equal(t, models.FAIL, res.Result)
	assert.Equal(t, []int{1}, res.FailedSteps)
	assert.Equal(t, []string{"click_element", "enter"}, methods(d.Calls()))
}

func TestRunNestedTryRaisesToOuterExcept(t *testing.T) {
	c := newCase(t,
		"start_try",
		"start_try",
		"click_element|usr/btnX",
		"end_try",
		"end_try",
		"start_except",
		"documentation|caught",
		"end_except",
	)
	d := &DryRunDriver{Errors: map[string]error{"click_element": errors.New("boom")}}

	res, err := newRunner(d).Run(c)
	require.NoError(t, err)

	assert.Equal(t, models.PASS, res.Result)
	assert.Equal(t, []int{2}, res.WarnedSteps)
	assert.Empty(t, res.FailedSteps)
	assert.Equal(t, []string{"click_element", "documentation"}, methods(d.Calls()))
}

func TestRunRejectsSecondExcept(t *testing.T) {
	c := newCase(t,
		"start_try",
		"enter",
		"end_try",
		"start_except",
		"save",
		"end_except",
		"start_except",
		"save",
		"end_except",
	)

	_, err := newRunner(&DryRunDriver{}).Run(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after the except handler")
}

func TestRunSessionKeysCarryVKey(t *testing.T) {
	c := newCase(t, "enter", "save")
	d := &DryRunDriver{}

	_, err := newRunner(d).Run(c)
	require.NoError(t, err)

	calls := d.Calls()
	assert.Equal(t, 0, lastArg(t, calls, "enter", "vkey"))
	assert.Equal(t, 11, lastArg(t, calls, "save", "vkey"))
}

func TestRunWhileHeaderListedOnce(t *testing.T) {
	c := newCase(t,
		"set_variable|n;0",
		"start_while|n < 3",
		"update_var|n;+=1",
		"end_while",
	)

	res, err := newRunner(&DryRunDriver{}).Run(c)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, res.PassedSteps)
}

func TestRunScreenshotOnPass(t *testing.T) {
	c := newCase(t, "enter|||true|||true", "save")
	d := &DryRunDriver{}

	res, err := newRunner(d).Run(c)
	require.NoError(t, err)
	assert.Equal(t, []string{"screenshot_20261015_093000_0.png"}, res.PassedScreenShots)
	assert.Equal(t, []string{"enter", "take_screenshot", "save"}, methods(d.Calls()))
}

func TestRunValueFromSessionCall(t *testing.T) {
	c := newCase(t,
		"set_variable|title;session.findById(usr/txtTITLE)",
		"input_text|usr/txtCOPY;title",
	)
	d := &DryRunDriver{Results: map[string]any{"findById": "Sales order"}}

	_, err := newRunner(d).Run(c)
	require.NoError(t, err)

	calls := d.Calls()
	assert.Equal(t, []string{"findById", "input_text"}, methods(calls))
	assert.Equal(t, "/app/con[0]/ses[0]/wnd[0]/usr/txtTITLE", lastArg(t, calls, "findById", ""))
	assert.Equal(t, "Sales order", lastArg(t, calls, "input_text", "text"))
}

func TestRunUnresolvedValueFails(t *testing.T) {
	c := newCase(t, "input_text|usr/txtFIELD;Case.Data.missing")

	res, err := newRunner(&DryRunDriver{}).Run(c)
	require.NoError(t, err)
	assert.Equal(t, models.FAIL, res.Result)
	assert.Contains(t, c.Steps[0].Status.Error, "no key \"missing\"")
}

func TestRunRejectsElseWithoutIf(t *testing.T) {
	c := newCase(t, "start_else", "enter", "end_else")

	_, err := newRunner(&DryRunDriver{}).Run(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without a matching if")
}

type recordingObserver struct {
	events []string
}

func (o *recordingObserver) StepStarted(index int, rec compiler.StepRecord) error {
	o.events = append(o.events, "start:"+rec.Descriptor.Action)
	return nil
}

func (o *recordingObserver) StepFinished(index int, rec compiler.StepRecord) error {
	o.events = append(o.events, "finish:"+rec.Descriptor.Action+":"+string(rec.Status.Result))
	return nil
}

func TestRunNotifiesObserver(t *testing.T) {
	c := newCase(t, "start_transaction|VA01", "enter")
	obs := &recordingObserver{}

	_, err := newRunner(&DryRunDriver{}, WithObserver(obs)).Run(c)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"start:start_transaction", "finish:start_transaction:PASS",
		"start:enter", "finish:enter:PASS",
	}, obs.events)
}

func TestRunObserverErrorAbortsRun(t *testing.T) {
	c := newCase(t, "enter")
	boom := errors.New("status store down")
	obs := observerFunc(func(int, compiler.StepRecord) error { return boom })

	_, err := newRunner(&DryRunDriver{}, WithObserver(obs)).Run(c)
	assert.ErrorIs(t, err, boom)
}

type observerFunc func(int, compiler.StepRecord) error

func (f observerFunc) StepStarted(i int, rec compiler.StepRecord) error  { return f(i, rec) }
func (f observerFunc) StepFinished(i int, rec compiler.StepRecord) error { return f(i, rec) }
