package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// Action keywords understood by the compiler.
const (
	OpenConnection   = "open_connection"
	StartTransaction = "start_transaction"
	Documentation    = "documentation"
	InputText        = "input_text"
	SetVariable      = "set_variable"
	SetVScrollbar    = "set_v_scrollbar"
	StartWhile       = "start_while"
	EndWhile         = "end_while"
	StartRange       = "start_range"
	EndRange         = "end_range"
	StartTry         = "start_try"
	EndTry           = "end_try"
	StartExcept      = "start_except"
	EndExcept        = "end_except"
	StartIf          = "start_if"
	EndIf            = "end_if"
	StartElse        = "start_else"
	EndElse          = "end_else"
	StartElif        = "start_elif"
	EndElif          = "end_elif"
	UpdateVar        = "update_var"
	Enter            = "enter"
	Save             = "save"
	ClickElement     = "click_element"
	WaitForElement   = "wait_for_element"
	Wait             = "wait"
	TakeScreenshot   = "take_screenshot"
)

// generation is the input handed to an action's build function.
type generation struct {
	desc    StepDescriptor
	locator LocatorCompleter
	diags   Diagnostics
}

func (g *generation) value(i int) Value {
	return ResolveValue(g.desc.Arg(i), g.locator)
}

func (g *generation) element(i int) string {
	if g.locator == nil {
		return g.desc.Arg(i)
	}
	return g.locator.Complete(g.desc.Arg(i))
}

func (g *generation) warn(kind ErrorKind, format string, args ...any) {
	g.diags = append(g.diags, newError(kind, g.desc.Line, g.desc.Action, format, args...))
}

// actionSpec describes how one action keyword compiles.
type actionSpec struct {
	minArgs    int
	locatorArg int
	opens      BlockKind
	closes     BlockKind
	build      func(g *generation) *Statement
}

var actions = make(map[string]actionSpec)

// registerAction adds an action to the dispatch table.
func registerAction(name string, spec actionSpec) {
	if _, exists := actions[name]; exists {
		panic(fmt.Sprintf("action %s is already registered", name))
	}
	actions[name] = spec
}

func lookupAction(name string) (actionSpec, bool) {
	spec, ok := actions[name]
	return spec, ok
}

// Actions lists the recognised action keywords in sorted order.
func Actions() []string {
	names := make([]string, 0, len(actions))
	for name := range actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func call(method string, operands ...Operand) func(g *generation) *Statement {
	return func(g *generation) *Statement {
		return &Statement{Verb: VerbCall, Method: method, Operands: operands}
	}
}

func opener(kind BlockKind) actionSpec {
	return actionSpec{locatorArg: -1, opens: kind, build: func(g *generation) *Statement {
		return &Statement{Verb: VerbOpen, Block: kind}
	}}
}

func closer(kind BlockKind) actionSpec {
	return actionSpec{locatorArg: -1, closes: kind, build: func(g *generation) *Statement {
		return &Statement{Verb: VerbEnd, Block: kind}
	}}
}

func conditional(kind BlockKind) actionSpec {
	return actionSpec{minArgs: 1, locatorArg: -1, opens: kind, build: func(g *generation) *Statement {
		return &Statement{Verb: VerbOpen, Block: kind, Operands: []Operand{rawOperand("condition", g.desc.Arg(0))}}
	}}
}

func init() {
	registerAction(OpenConnection, actionSpec{minArgs: 1, locatorArg: -1, build: func(g *generation) *Statement {
		return &Statement{Verb: VerbCall, Method: OpenConnection, Operands: []Operand{valueOperand("", g.value(0))}}
	}})
	registerAction(StartTransaction, actionSpec{minArgs: 1, locatorArg: -1, build: func(g *generation) *Statement {
		return &Statement{Verb: VerbCall, Method: StartTransaction, Operands: []Operand{stringOperand("", g.desc.Arg(0))}}
	}})
	registerAction(Documentation, actionSpec{minArgs: 1, locatorArg: -1, build: func(g *generation) *Statement {
		return &Statement{Verb: VerbCall, Method: Documentation, Operands: []Operand{stringOperand("", g.desc.Arg(0))}}
	}})
	registerAction(InputText, actionSpec{minArgs: 2, locatorArg: 0, build: func(g *generation) *Statement {
		return &Statement{Verb: VerbCall, Method: InputText, Operands: []Operand{
			stringOperand("id", g.element(0)),
			valueOperand("text", g.value(1)),
		}}
	}})
	registerAction(SetVScrollbar, actionSpec{minArgs: 2, locatorArg: 0, build: func(g *generation) *Statement {
		return &Statement{Verb: VerbCall, Method: SetVScrollbar, Operands: []Operand{
			stringOperand("id", g.element(0)),
			valueOperand("pos", g.value(1)),
		}}
	}})
	registerAction(SetVariable, actionSpec{minArgs: 2, locatorArg: -1, build: buildSetVariable})
	registerAction(UpdateVar, actionSpec{minArgs: 2, locatorArg: -1, build: func(g *generation) *Statement {
		return &Statement{Verb: VerbUpdate, Target: g.desc.Arg(0), Operands: []Operand{rawOperand("operation", g.desc.Arg(1))}}
	}})

	registerAction(StartWhile, conditional(BlockWhile))
	registerAction(EndWhile, closer(BlockWhile))
	registerAction(StartRange, actionSpec{minArgs: 2, locatorArg: -1, opens: BlockRange, build: func(g *generation) *Statement {
		return &Statement{Verb: VerbOpen, Block: BlockRange, Target: "i", Operands: []Operand{
			valueOperand("start", g.value(0)),
			valueOperand("stop", g.value(1)),
		}}
	}})
	registerAction(EndRange, closer(BlockRange))
	registerAction(StartTry, opener(BlockTry))
	registerAction(EndTry, closer(BlockTry))
	registerAction(StartExcept, actionSpec{locatorArg: -1, opens: BlockExcept, build: func(g *generation) *Statement {
		st := &Statement{Verb: VerbOpen, Block: BlockExcept, Target: "err"}
		if t := g.desc.Arg(0); t != "" {
			st.Type = t
		}
		return st
	}})
	registerAction(EndExcept, closer(BlockExcept))
	registerAction(StartIf, conditional(BlockIf))
	registerAction(EndIf, closer(BlockIf))
	registerAction(StartElse, opener(BlockElse))
	registerAction(EndElse, closer(BlockElse))
	registerAction(StartElif, conditional(BlockElif))
	registerAction(EndElif, closer(BlockElif))

	registerAction(Enter, actionSpec{locatorArg: -1, build: call(Enter)})
	registerAction(Save, actionSpec{locatorArg: -1, build: call(Save)})
	registerAction(ClickElement, actionSpec{minArgs: 1, locatorArg: 0, build: func(g *generation) *Statement {
		return &Statement{Verb: VerbCall, Method: ClickElement, Operands: []Operand{stringOperand("id", g.desc.Arg(0))}}
	}})
	registerAction(WaitForElement, actionSpec{minArgs: 1, locatorArg: 0, build: func(g *generation) *Statement {
		return &Statement{Verb: VerbCall, Method: WaitForElement, Operands: []Operand{stringOperand("id", g.desc.Arg(0))}}
	}})
	registerAction(Wait, actionSpec{minArgs: 1, locatorArg: -1, build: func(g *generation) *Statement {
		return &Statement{Verb: VerbCall, Method: Wait, Operands: []Operand{rawOperand("", g.desc.Arg(0))}}
	}})
	registerAction(TakeScreenshot, actionSpec{locatorArg: 1, build: buildTakeScreenshot})
}

// buildSetVariable handles "name:type;value" and "name;value".
func buildSetVariable(g *generation) *Statement {
	nameAndType := strings.Split(g.desc.Arg(0), ":")
	switch len(nameAndType) {
	case 1:
		return &Statement{Verb: VerbAssign, Target: nameAndType[0], Operands: []Operand{valueOperand("value", g.value(1))}}
	case 2:
		return &Statement{Verb: VerbAssign, Target: nameAndType[0], Type: nameAndType[1], Operands: []Operand{valueOperand("value", g.value(1))}}
	}
	g.warn(MalformedArgument, "variable declaration %q must be name or name:type", g.desc.Arg(0))
	return nil
}

// buildTakeScreenshot accepts zero, one or two arguments and never fails.
func buildTakeScreenshot(g *generation) *Statement {
	st := &Statement{Verb: VerbCall, Method: TakeScreenshot}
	filename, id := g.desc.Arg(0), g.desc.Arg(1)
	switch {
	case filename != "" && id != "":
		st.Operands = []Operand{stringOperand("filename", filename), stringOperand("id", id)}
	case filename != "":
		st.Operands = []Operand{stringOperand("filename", filename)}
	}
	return st
}
