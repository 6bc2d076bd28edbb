// Package emitter renders compiled statements as Python step text for the
// SAP GUI scripting session.
package emitter

import (
	"fmt"
	"strings"

	"github.com/surajsub/sapgui-step-dsl/compiler"
	"github.com/surajsub/sapgui-step-dsl/utils"
)

const indentUnit = "    "

// Render returns the unindented Python text of one statement. End statements
// render as "".
func Render(st compiler.Statement) string {
	switch st.Verb {
	case compiler.VerbCall:
		return renderCall(st)
	case compiler.VerbAssign:
		value := operandText(first(st.Operands))
		if st.Type != "" {
			return fmt.Sprintf("%s: %s = %s", st.Target, st.Type, value)
		}
		return fmt.Sprintf("%s = %s", st.Target, value)
	case compiler.VerbUpdate:
		return st.Target + operandText(first(st.Operands))
	case compiler.VerbOpen:
		return renderHeader(st)
	}
	return ""
}

func renderCall(st compiler.Statement) string {
	args := make([]string, 0, len(st.Operands))
	for _, op := range st.Operands {
		if op.Name != "" {
			args = append(args, op.Name+"="+operandText(op))
			continue
		}
		args = append(args, operandText(op))
	}
	return fmt.Sprintf("self.session.%s(%s)", st.Method, strings.Join(args, ", "))
}

func renderHeader(st compiler.Statement) string {
	cond, _ := st.Operand("condition")
	switch st.Block {
	case compiler.BlockWhile:
		return fmt.Sprintf("while %s:", cond.Text)
	case compiler.BlockIf:
		return fmt.Sprintf("if %s:", cond.Text)
	case compiler.BlockElif:
		return fmt.Sprintf("elif %s:", cond.Text)
	case compiler.BlockElse:
		return "else:"
	case compiler.BlockTry:
		return "try:"
	case compiler.BlockExcept:
		if st.Type == "" {
			return fmt.Sprintf("except Exception as %s:", st.Target)
		}
		return fmt.Sprintf("except %s as %s:", st.Type, st.Target)
	case compiler.BlockRange:
		start, _ := st.Operand("start")
		stop, _ := st.Operand("stop")
		return fmt.Sprintf("for %s in range(%s, %s):", st.Target, operandText(start), operandText(stop))
	}
	return ""
}

func operandText(op compiler.Operand) string {
	switch op.Kind {
	case compiler.OperandString:
		return Quote(op.Text)
	case compiler.OperandValue:
		if op.Value != nil {
			return op.Value.Expr()
		}
	}
	return op.Text
}

func first(ops []compiler.Operand) compiler.Operand {
	if len(ops) == 0 {
		return compiler.Operand{}
	}
	return ops[0]
}

// Quote renders s as a single-quoted Python string literal.
func Quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return "'" + r.Replace(s) + "'"
}

// Lines renders statements indented four spaces per depth. End statements are
// dropped, and a header with no body gets a pass line.
func Lines(stmts []compiler.Statement) []string {
	body := make([]compiler.Statement, 0, len(stmts))
	for _, st := range stmts {
		if st.Verb != compiler.VerbEnd {
			body = append(body, st)
		}
	}

	lines := make([]string, 0, len(body))
	for i, st := range body {
		lines = append(lines, strings.Repeat(indentUnit, st.Depth)+Render(st))
		if st.IsHeader() && (i+1 == len(body) || body[i+1].Depth <= st.Depth) {
			lines = append(lines, strings.Repeat(indentUnit, st.Depth+1)+"pass")
		}
	}
	return lines
}

// Source joins Lines into a single text.
func Source(stmts []compiler.Statement) string {
	lines := Lines(stmts)
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// WriteStepsFile writes the rendered program to path.
func WriteStepsFile(path string, prog *compiler.Program, appendTo bool) error {
	if err := utils.WriteLines(path, Lines(prog.Statements()), appendTo); err != nil {
		return fmt.Errorf("failed to write steps file: %w", err)
	}
	return nil
}
