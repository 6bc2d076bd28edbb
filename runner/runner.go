// Package runner interprets compiled case steps against a SAP GUI session.
//
// Statements are walked as a block tree; nothing is ever executed as generated
// source text. Values are resolved from the case and the run's variables, and
// conditions and update expressions are evaluated with CEL.
package runner

import (
	"errors"
	"fmt"
	"time"

	"github.com/surajsub/sapgui-step-dsl/cases"
	"github.com/surajsub/sapgui-step-dsl/compiler"
	"github.com/surajsub/sapgui-step-dsl/logger"
	"github.com/surajsub/sapgui-step-dsl/models"
	"github.com/surajsub/sapgui-step-dsl/sapgui"
	"go.temporal.io/sdk/log"
	"go.uber.org/zap"
)

const DefaultMaxIterations = 1000

// sessionKeys are the session calls that press a key, sent as their vkey.
var sessionKeys = map[string]string{
	compiler.Enter: "ENTER",
	compiler.Save:  "CTRL+S",
}

// StepError is a step failure that stops the run, unless a try block catches it.
type StepError struct {
	Step   int
	Action string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Step, e.Action, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Observer is told when each step starts and finishes.
type Observer interface {
	StepStarted(index int, rec compiler.StepRecord) error
	StepFinished(index int, rec compiler.StepRecord) error
}

type Option func(*Runner)

func WithLogger(l log.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// WithClock sets the time source used to name screenshots.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithSleep sets how the case's explicit wait is spent.
func WithSleep(sleep func(time.Duration)) Option {
	return func(r *Runner) { r.sleep = sleep }
}

func WithMaxIterations(n int) Option {
	return func(r *Runner) { r.maxIterations = n }
}

type Runner struct {
	exec          Executor
	logger        log.Logger
	observer      Observer
	now           func() time.Time
	sleep         func(time.Duration)
	maxIterations int
}

func New(exec Executor, opts ...Option) *Runner {
	r := &Runner{
		exec:          exec,
		logger:        logger.NewZapAdapter(zap.NewNop()),
		now:           time.Now,
		sleep:         time.Sleep,
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// run is the state of one case execution.
type run struct {
	*Runner
	c        *cases.Case
	eval     *evaluator
	result   models.ResultCase
	tryDepth int
}

// Run executes the compiled steps of c and fills in c.Status and the status of
// every step. Step failures are reported in the result; the error is only set
// when the steps cannot be run at all.
func (r *Runner) Run(c *cases.Case) (models.ResultCase, error) {
	tree, err := buildTree(c.Steps)
	if err != nil {
		return models.ResultCase{}, fmt.Errorf("case %s: %w", c.Name, err)
	}

	rn := &run{
		Runner: r,
		c:      c,
		eval:   newEvaluator(caseMap(c), r.exec),
		result: models.ResultCase{
			FailedSteps:       []int{},
			FailedScreenShots: []string{},
			PassedSteps:       []int{},
			PassedScreenShots: []string{},
			WarnedSteps:       []int{},
		},
	}
	r.logger.Info("Running case", "case", c.Name, "steps", len(c.Steps))

	err = rn.block(tree)
	var stepErr *StepError
	switch {
	case errors.As(err, &stepErr):
		rn.result.Error = stepErr.Error()
	case err != nil:
		return rn.result, err
	}

	if len(rn.result.FailedSteps) > 0 {
		rn.result.Result = models.FAIL
	} else {
		rn.result.Result = models.PASS
	}
	c.Status = rn.result
	r.logger.Info("Case completed", "case", c.Name, "status", rn.result.Result)
	return rn.result, nil
}

func caseMap(c *cases.Case) map[string]any {
	return map[string]any{
		"Name":        c.Name,
		"Description": c.Description,
		"System":      c.System,
		"DateFormat":  c.DateFormat,
		"BasePath":    c.BasePath,
		"Data":        normalize(c.Data),
	}
}

func (rn *run) block(nodes []*node) error {
	for _, n := range nodes {
		if err := rn.node(n); err != nil {
			return err
		}
	}
	return nil
}

func (rn *run) node(n *node) error {
	if err := rn.started(n.index); err != nil {
		return err
	}
	st := n.st
	switch st.Verb {
	case compiler.VerbCall:
		return rn.call(n)
	case compiler.VerbAssign:
		return rn.assign(n)
	case compiler.VerbUpdate:
		op, _ := st.Operand("operation")
		v, err := rn.eval.update(st.Target, op.Text)
		if err != nil {
			return rn.fail(n.index, err)
		}
		rn.eval.vars[st.Target] = normalize(v)
		return rn.pass(n.index)
	}

	switch st.Block {
	case compiler.BlockIf:
		return rn.ifChain(n)
	case compiler.BlockWhile:
		return rn.while(n)
	case compiler.BlockRange:
		return rn.rangeLoop(n)
	case compiler.BlockTry:
		return rn.try(n)
	}
	return rn.fail(n.index, fmt.Errorf("cannot run %s here", st.Action))
}

func (rn *run) call(n *node) error {
	st := n.st
	call := Call{Step: n.index, Action: st.Action, Method: st.Method}
	for _, op := range st.Operands {
		var v any
		switch op.Kind {
		case compiler.OperandString:
			v = op.Text
		case compiler.OperandValue:
			var err error
			if v, err = rn.eval.value(n.index, op.Value); err != nil {
				return rn.fail(n.index, err)
			}
		case compiler.OperandRaw:
			v = rn.eval.verbatim(op.Text)
		}
		call.Args = append(call.Args, Argument{Name: op.Name, Value: v})
	}
	if key, ok := sessionKeys[st.Method]; ok {
		vkey, err := sapgui.VKey(key)
		if err != nil {
			return rn.fail(n.index, err)
		}
		call.Args = append(call.Args, Argument{Name: "vkey", Value: vkey})
	}

	if _, err := rn.exec.Execute(call); err != nil {
		return rn.fail(n.index, err)
	}
	return rn.pass(n.index)
}

func (rn *run) assign(n *node) error {
	st := n.st
	op, _ := st.Operand("value")
	v, err := rn.eval.value(n.index, op.Value)
	if err != nil {
		return rn.fail(n.index, err)
	}
	if v, err = convert(v, st.Type); err != nil {
		return rn.fail(n.index, fmt.Errorf("%s: %w", st.Target, err))
	}
	rn.eval.vars[st.Target] = normalize(v)
	return rn.pass(n.index)
}

func (rn *run) ifChain(n *node) error {
	taken, err := rn.test(n)
	if err != nil {
		return err
	}
	if taken {
		return rn.block(n.body)
	}
	for _, b := range n.branches {
		if err := rn.started(b.index); err != nil {
			return err
		}
		if b.st.Block == compiler.BlockElse {
			if err := rn.pass(b.index); err != nil {
				return err
			}
			return rn.block(b.body)
		}
		taken, err := rn.test(b)
		if err != nil {
			return err
		}
		if taken {
			return rn.block(b.body)
		}
	}
	return nil
}

// test evaluates a header's condition and records the header step. A failed
// evaluation counts as false when the failure is not fatal.
func (rn *run) test(n *node) (bool, error) {
	cond, _ := n.st.Operand("condition")
	ok, err := rn.eval.condition(cond.Text)
	if err != nil {
		return false, rn.fail(n.index, err)
	}
	return ok, rn.pass(n.index)
}

func (rn *run) while(n *node) error {
	for i := 0; ; i++ {
		if i >= rn.maxIterations {
			return rn.fail(n.index, fmt.Errorf("while loop exceeded %d iterations", rn.maxIterations))
		}
		ok, err := rn.test(n)
		if err != nil || !ok {
			return err
		}
		if err := rn.block(n.body); err != nil {
			return err
		}
	}
}

func (rn *run) rangeLoop(n *node) error {
	bounds := [2]int{}
	for i, name := range []string{"start", "stop"} {
		op, _ := n.st.Operand(name)
		v, err := rn.eval.value(n.index, op.Value)
		if err != nil {
			return rn.fail(n.index, err)
		}
		if bounds[i], err = toInt(v); err != nil {
			return rn.fail(n.index, fmt.Errorf("range %s: %w", name, err))
		}
	}
	if err := rn.pass(n.index); err != nil {
		return err
	}
	for i := bounds[0]; i < bounds[1]; i++ {
		rn.eval.vars[n.st.Target] = i
		if err := rn.block(n.body); err != nil {
			return err
		}
	}
	return nil
}

// try runs the body and hands a fatal step failure to the except handler. The
// exception type named by start_except is not matched: the handler catches every
// step failure, so a try has at most one handler.
func (rn *run) try(n *node) error {
	if err := rn.pass(n.index); err != nil {
		return err
	}
	rn.tryDepth++
	err := rn.block(n.body)
	rn.tryDepth--

	var stepErr *StepError
	if err == nil || !errors.As(err, &stepErr) {
		return err
	}
	if len(n.handlers) == 0 {
		if rn.tryDepth > 0 {
			return err
		}
		return rn.uncaught(stepErr)
	}
	h := n.handlers[0]
	if err := rn.started(h.index); err != nil {
		return err
	}
	rn.logger.Warn("Step failure caught", "step", stepErr.Step, "error", stepErr.Err.Error())
	rn.eval.vars[h.st.Target] = stepErr.Err.Error()
	if err := rn.pass(h.index); err != nil {
		return err
	}
	return rn.block(h.body)
}

// uncaught records a failure raised inside a try that nothing handled as a
// failed step.
func (rn *run) uncaught(stepErr *StepError) error {
	index := stepErr.Step
	rec := rn.record(index)
	rec.Status.Result = models.FAIL
	rn.logger.Error("Step failed", "step", index, "action", rec.Descriptor.Action, "error", stepErr.Err.Error())
	rn.classify(index, &rn.result.FailedSteps)
	if flag(rec.Descriptor.ScreenshotOnFail, rn.c.ScreenShotOnFail) {
		if shot := rn.screenshot(index); shot != "" {
			rn.result.FailedScreenShots = append(rn.result.FailedScreenShots, shot)
		}
	}
	if err := rn.finished(index); err != nil {
		return err
	}
	if rn.c.ExitOnFail {
		return stepErr
	}
	return nil
}

// classify files a step under one outcome. A step keeps a single entry: a step
// run again in a loop is moved when its outcome changes.
func (rn *run) classify(index int, to *[]int) {
	for _, i := range *to {
		if i == index {
			return
		}
	}
	for _, list := range []*[]int{&rn.result.PassedSteps, &rn.result.FailedSteps, &rn.result.WarnedSteps} {
		kept := (*list)[:0]
		for _, i := range *list {
			if i != index {
				kept = append(kept, i)
			}
		}
		*list = kept
	}
	*to = append(*to, index)
}

func (rn *run) record(index int) *compiler.StepRecord {
	return &rn.c.Steps[index]
}

func (rn *run) started(index int) error {
	if rn.observer == nil {
		return nil
	}
	return rn.observer.StepStarted(index, *rn.record(index))
}

func (rn *run) finished(index int) error {
	if rn.observer == nil {
		return nil
	}
	return rn.observer.StepFinished(index, *rn.record(index))
}

// pass marks a step PASS after the case's explicit wait.
func (rn *run) pass(index int) error {
	if rn.c.ExplicitWait > 0 && rn.sleep != nil {
		rn.sleep(time.Duration(rn.c.ExplicitWait * float64(time.Second)))
	}
	rec := rn.record(index)
	rec.Status = models.ResultStep{Result: models.PASS}
	rn.classify(index, &rn.result.PassedSteps)
	if flag(rec.Descriptor.ScreenshotOnPass, rn.c.ScreenShotOnPass) {
		if shot := rn.screenshot(index); shot != "" {
			rn.result.PassedScreenShots = append(rn.result.PassedScreenShots, shot)
		}
	}
	return rn.finished(index)
}

// fail applies the failure policy to a step: a step that may not fail the case
// becomes a warning, a failure inside try is raised to its handler, and any other
// failure is recorded and stops the run when the case exits on failure.
func (rn *run) fail(index int, cause error) error {
	rec := rn.record(index)
	rec.Status = models.ResultStep{Result: models.FAIL, Error: cause.Error()}
	stepErr := &StepError{Step: index, Action: rec.Descriptor.Action, Err: cause}

	switch {
	case !flag(rec.Descriptor.FailOnError, rn.c.FailOnError):
		rec.Status.Result = models.WARN
		rn.classify(index, &rn.result.WarnedSteps)
		rn.logger.Warn("Step failed", "step", index, "action", rec.Descriptor.Action, "error", cause.Error())
		return rn.finished(index)
	case rn.tryDepth > 0:
		rec.Status.Result = models.WARN
		rn.classify(index, &rn.result.WarnedSteps)
		if err := rn.finished(index); err != nil {
			return err
		}
		return stepErr
	}

	rn.logger.Error("Step failed", "step", index, "action", rec.Descriptor.Action, "error", cause.Error())
	rn.classify(index, &rn.result.FailedSteps)
	if flag(rec.Descriptor.ScreenshotOnFail, rn.c.ScreenShotOnFail) {
		if shot := rn.screenshot(index); shot != "" {
			rn.result.FailedScreenShots = append(rn.result.FailedScreenShots, shot)
		}
	}
	if err := rn.finished(index); err != nil {
		return err
	}
	if rn.c.ExitOnFail {
		return stepErr
	}
	return nil
}

// screenshot captures the screen for a step and returns the file name, or "" when
// the capture failed.
func (rn *run) screenshot(index int) string {
	name := fmt.Sprintf("screenshot_%s_%d.png", rn.now().Format("20060102_150405"), index)
	call := Call{
		Step:   index,
		Action: compiler.TakeScreenshot,
		Method: compiler.TakeScreenshot,
		Args:   []Argument{{Name: "filename", Value: name}},
	}
	if _, err := rn.exec.Execute(call); err != nil {
		rn.logger.Warn("Screenshot failed", "step", index, "error", err.Error())
		return ""
	}
	return name
}

func flag(step *bool, def bool) bool {
	if step != nil {
		return *step
	}
	return def
}
