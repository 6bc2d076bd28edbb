package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.temporal.io/sdk/log"
)

// Argument is one evaluated operand of a session call. Name is empty for
// positional arguments.
type Argument struct {
	Name  string `json:"name,omitempty"`
	Value any    `json:"value"`
}

// Call is a session method invocation produced by a step.
type Call struct {
	Step   int        `json:"step"`
	Action string     `json:"action"`
	Method string     `json:"method"`
	Args   []Argument `json:"args,omitempty"`
}

// Arg returns the named argument, or the first positional one when name is "".
func (c Call) Arg(name string) (any, bool) {
	for _, a := range c.Args {
		if a.Name == name {
			return a.Value, true
		}
	}
	return nil, false
}

func (c Call) String() string {
	parts := make([]string, 0, len(c.Args))
	for _, a := range c.Args {
		if a.Name != "" {
			parts = append(parts, fmt.Sprintf("%s=%v", a.Name, a.Value))
			continue
		}
		parts = append(parts, fmt.Sprintf("%v", a.Value))
	}
	return fmt.Sprintf("%s(%s)", c.Method, strings.Join(parts, ", "))
}

// Executor performs the session calls of a run. Implementations carry whatever
// context they need; a workflow executor dispatches activities, a local one calls a
// Driver directly.
type Executor interface {
	Execute(call Call) (any, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(call Call) (any, error)

func (f ExecutorFunc) Execute(call Call) (any, error) {
	return f(call)
}

// Driver talks to a SAP GUI scripting session.
type Driver interface {
	Call(ctx context.Context, method string, args []Argument) (any, error)
}

// DriverExecutor runs calls straight against a Driver.
type DriverExecutor struct {
	Ctx    context.Context
	Driver Driver
}

func (e DriverExecutor) Execute(call Call) (any, error) {
	ctx := e.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	out, err := e.Driver.Call(ctx, call.Method, call.Args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", call.Method, err)
	}
	return out, nil
}

// DryRunDriver records every call instead of driving a GUI. Results returns
// canned values per method.
type DryRunDriver struct {
	Logger  log.Logger
	Results map[string]any
	Errors  map[string]error

	mu    sync.Mutex
	calls []Call
}

func (d *DryRunDriver) Call(ctx context.Context, method string, args []Argument) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	call := Call{Method: method, Args: args}

	d.mu.Lock()
	d.calls = append(d.calls, call)
	d.mu.Unlock()

	if d.Logger != nil {
		d.Logger.Info("dry run call", "call", call.String())
	}
	if err, ok := d.Errors[method]; ok {
		return nil, err
	}
	return d.Results[method], nil
}

// Calls returns the calls recorded so far.
func (d *DryRunDriver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Call, len(d.calls))
	copy(out, d.calls)
	return out
}
