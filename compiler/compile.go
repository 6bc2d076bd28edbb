// Package compiler turns pipe-delimited step lines into neutral statements.
//
// A step line looks like
//
//	input_text|usr/txtFIELD;Case.Data.customer_name|Fill customer|true|customer
//
// Each line compiles independently; the only state carried from one line to the
// next is the BlockDepthState the caller threads through CompileStep, or that
// CompileSteps folds over a whole step list.
package compiler

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/surajsub/sapgui-step-dsl/models"
	"github.com/surajsub/sapgui-step-dsl/sapgui"
)

// Options controls how strictly diagnostics are treated.
type Options struct {
	// Strict turns unrecognized actions, unresolvable paths, depth underflow and
	// unclosed blocks into errors. Otherwise they are recorded as warnings.
	Strict bool
}

type Option func(*Compiler)

func WithStrict(strict bool) Option {
	return func(c *Compiler) { c.opts.Strict = strict }
}

func WithLocator(l LocatorCompleter) Option {
	return func(c *Compiler) { c.locator = l }
}

func WithLogger(l *logrus.Logger) Option {
	return func(c *Compiler) { c.logger = l }
}

type Compiler struct {
	opts    Options
	locator LocatorCompleter
	logger  *logrus.Logger
}

func New(opts ...Option) *Compiler {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)

	c := &Compiler{
		locator: sapgui.Locator{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Compiler) Strict() bool {
	return c.opts.Strict
}

// Generated is the output of generating one step.
type Generated struct {
	// Statement is nil when the step produces no statement.
	Statement   *Statement
	State       BlockDepthState
	Diagnostics Diagnostics
}

// Generate compiles a descriptor against the incoming block state. The state
// passed in is never modified; the next state is returned in Generated. On error
// Generated carries the incoming state unchanged.
func (c *Compiler) Generate(d StepDescriptor, state BlockDepthState) (Generated, error) {
	spec, ok := lookupAction(d.Action)
	if !ok {
		diag := newError(UnrecognizedAction, d.Line, d.Action, "unrecognized action %q", d.Action)
		return c.finish(Generated{State: state, Diagnostics: Diagnostics{diag}}, state)
	}
	if len(d.Args) < spec.minArgs {
		return Generated{State: state}, newError(MalformedArgumentCount, d.Line, d.Action,
			"%s needs %d argument(s), got %d", d.Action, spec.minArgs, len(d.Args))
	}

	next := state
	depth := state.Total()
	switch {
	case spec.opens != BlockNone:
		next = state.Open(spec.opens)
		if spec.opens == BlockElse || spec.opens == BlockElif {
			depth--
		}
	case spec.closes != BlockNone:
		next = state.Close(spec.closes)
		depth = next.Total()
	}
	if depth < 0 {
		depth = 0
	}

	g := &generation{desc: d, locator: c.locator}
	st := spec.build(g)
	if st != nil {
		st.Action = d.Action
		st.Depth = depth
		for i, op := range st.Operands {
			if op.Value != nil && op.Value.Unresolvable() {
				g.warn(UnresolvableValuePath, "operand %d: %q does not start with Case, Data or System", i, op.Value.Raw)
			}
		}
	}
	for _, kind := range next.Negative() {
		if next.Get(kind) < state.Get(kind) {
			g.warn(BlockDepthUnderflow, "%s closes a %s block that was never opened", d.Action, kind)
		}
	}

	return c.finish(Generated{Statement: st, State: next, Diagnostics: g.diags}, state)
}

// finish applies the strictness policy to the gathered diagnostics.
func (c *Compiler) finish(gen Generated, in BlockDepthState) (Generated, error) {
	if len(gen.Diagnostics) == 0 {
		return gen, nil
	}
	if c.opts.Strict {
		return Generated{State: in}, gen.Diagnostics.Err()
	}
	for _, d := range gen.Diagnostics {
		c.logger.WithFields(logrus.Fields{
			"kind":   d.Kind.String(),
			"line":   d.Line,
			"action": d.Action,
		}).Warn(d.Message)
	}
	return gen, nil
}

// StepRecord is one compiled step as stored on a case.
type StepRecord struct {
	Index       int               `json:"index"`
	Descriptor  StepDescriptor    `json:"descriptor"`
	Statement   *Statement        `json:"statement,omitempty"`
	State       BlockDepthState   `json:"state"`
	Status      models.ResultStep `json:"status"`
	Diagnostics Diagnostics       `json:"diagnostics,omitempty"`
}

// CompileStep splits and generates one line. The returned state is the one to
// pass in for the following line.
func (c *Compiler) CompileStep(line string, state BlockDepthState) (StepRecord, BlockDepthState, error) {
	return c.compileLine(0, line, state)
}

func (c *Compiler) compileLine(lineNo int, line string, state BlockDepthState) (StepRecord, BlockDepthState, error) {
	d := SplitLine(line)
	d.Line = lineNo
	gen, err := c.Generate(d, state)
	rec := StepRecord{
		Descriptor:  d,
		Statement:   gen.Statement,
		State:       gen.State,
		Status:      models.ResultStep{},
		Diagnostics: gen.Diagnostics,
	}
	if err != nil {
		return rec, state, err
	}
	return rec, gen.State, nil
}

// Program is a compiled step list.
type Program struct {
	Records     []StepRecord    `json:"records"`
	State       BlockDepthState `json:"state"`
	Diagnostics Diagnostics     `json:"diagnostics,omitempty"`
}

// Statements returns the generated statements in order.
func (p *Program) Statements() []Statement {
	out := make([]Statement, 0, len(p.Records))
	for _, r := range p.Records {
		if r.Statement != nil {
			out = append(out, *r.Statement)
		}
	}
	return out
}

// CompileSteps folds CompileStep over lines. Blank lines and lines starting with
// '#' are skipped; line numbers are 1-based positions in lines. Lines that fail
// to compile are kept with a nil statement and every error is returned together
// with the program, so callers can choose to abort or carry on.
func (c *Compiler) CompileSteps(lines []string) (*Program, error) {
	prog := &Program{}
	var errs Diagnostics
	state := BlockDepthState{}
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rec, next, err := c.compileLine(i+1, line, state)
		rec.Index = len(prog.Records)
		if err != nil {
			errs = appendCompileErrors(errs, err)
			rec.Diagnostics = append(rec.Diagnostics, errorsOf(err)...)
		}
		prog.Diagnostics = append(prog.Diagnostics, rec.Diagnostics...)
		prog.Records = append(prog.Records, rec)
		state = next
	}
	prog.State = state

	if open := state.OpenKinds(); len(open) > 0 {
		diag := newError(UnclosedBlock, 0, "", "unclosed blocks at end of steps: %v", state)
		if _, err := c.finish(Generated{Diagnostics: Diagnostics{diag}}, state); err != nil {
			errs = append(errs, diag)
		}
		prog.Diagnostics = append(prog.Diagnostics, diag)
	}
	return prog, errs.Err()
}

func errorsOf(err error) Diagnostics {
	switch e := err.(type) {
	case *CompileError:
		return Diagnostics{e}
	case *MultiError:
		return Diagnostics(e.Errors)
	}
	return nil
}

func appendCompileErrors(d Diagnostics, err error) Diagnostics {
	return append(d, errorsOf(err)...)
}
