package runner

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/surajsub/sapgui-step-dsl/compiler"
)

var ErrUnresolvedValue = errors.New("unresolved value")

// evaluator resolves values and evaluates CEL expressions against the case and the
// run's variables.
type evaluator struct {
	caseMap map[string]any
	vars    map[string]any
	exec    Executor
	envs    map[string]*cel.Env
}

func newEvaluator(caseMap map[string]any, exec Executor) *evaluator {
	return &evaluator{
		caseMap: caseMap,
		vars:    make(map[string]any),
		exec:    exec,
		envs:    make(map[string]*cel.Env),
	}
}

// value walks the resolved segments of v.
func (e *evaluator) value(step int, v *compiler.Value) (any, error) {
	if v == nil || len(v.Segments) == 0 {
		return nil, fmt.Errorf("%w: empty value", ErrUnresolvedValue)
	}
	if len(v.Segments) == 1 && v.Segments[0].Kind == compiler.SegmentVerbatim {
		return e.verbatim(v.Segments[0].Text), nil
	}

	var (
		cur    any
		rooted bool
		digits strings.Builder
	)
	for i, seg := range v.Segments {
		switch seg.Kind {
		case compiler.SegmentRoot:
			cur, rooted = e.caseMap, true
		case compiler.SegmentMember, compiler.SegmentKey:
			if !rooted {
				cur, rooted = e.caseMap, true
			}
			next, err := lookup(cur, seg.Text)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrUnresolvedValue, v.Raw, err)
			}
			cur = next
		case compiler.SegmentLiteral:
			if rooted {
				next, err := lookup(cur, seg.Text)
				if err != nil {
					return nil, fmt.Errorf("%w: %s: %v", ErrUnresolvedValue, v.Raw, err)
				}
				cur = next
				continue
			}
			digits.WriteString(seg.Text)
		case compiler.SegmentCall:
			out, err := e.exec.Execute(Call{Step: step, Action: "value", Method: seg.Text, Args: []Argument{{Value: seg.Locator}}})
			if err != nil {
				return nil, err
			}
			cur, rooted = out, true
		case compiler.SegmentVerbatim:
			// A receiver name such as "session" in front of a call is implied.
			if i+1 < len(v.Segments) && v.Segments[i+1].Kind == compiler.SegmentCall {
				continue
			}
			return nil, fmt.Errorf("%w: %s: unexpected segment %q", ErrUnresolvedValue, v.Raw, seg.Text)
		}
	}
	if !rooted {
		n, err := strconv.Atoi(digits.String())
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnresolvedValue, v.Raw, err)
		}
		return n, nil
	}
	return cur, nil
}

// verbatim evaluates a single plain segment: a variable, a CEL literal or
// expression, or else the text itself.
func (e *evaluator) verbatim(text string) any {
	if v, ok := e.vars[text]; ok {
		return v
	}
	out, err := e.eval(text)
	if err != nil {
		return text
	}
	return out
}

func lookup(cur any, key string) (any, error) {
	switch c := cur.(type) {
	case map[string]any:
		v, ok := c[key]
		if !ok {
			return nil, fmt.Errorf("no key %q", key)
		}
		return v, nil
	case []any:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(c) {
			return nil, fmt.Errorf("no index %q", key)
		}
		return c[i], nil
	case nil:
		return nil, fmt.Errorf("no key %q on empty value", key)
	}
	return nil, fmt.Errorf("cannot look up %q on %T", key, cur)
}

var pythonOperators = []struct {
	re   *regexp.Regexp
	with string
}{
	{regexp.MustCompile(`\band\b`), "&&"},
	{regexp.MustCompile(`\bor\b`), "||"},
	{regexp.MustCompile(`\bnot\s+`), "!"},
	{regexp.MustCompile(`\bTrue\b`), "true"},
	{regexp.MustCompile(`\bFalse\b`), "false"},
	{regexp.MustCompile(`\bNone\b`), "null"},
}

// celSource rewrites the Python spellings used in step conditions into CEL.
func celSource(src string) string {
	for _, op := range pythonOperators {
		src = op.re.ReplaceAllString(src, op.with)
	}
	return src
}

func (e *evaluator) activation() map[string]any {
	act := make(map[string]any, len(e.vars)+3)
	for k, v := range e.vars {
		act[k] = v
	}
	act[compiler.RootCase] = e.caseMap
	act[compiler.RootData] = e.caseMap[compiler.RootData]
	act[compiler.RootSystem] = e.caseMap[compiler.RootSystem]
	return act
}

// env returns a CEL environment declaring the current variables.
func (e *evaluator) env() (*cel.Env, error) {
	names := make([]string, 0, len(e.vars))
	for k := range e.vars {
		names = append(names, k)
	}
	sort.Strings(names)
	key := strings.Join(names, ",")
	if env, ok := e.envs[key]; ok {
		return env, nil
	}

	opts := []cel.EnvOption{
		cel.Variable(compiler.RootCase, cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable(compiler.RootData, cel.DynType),
		cel.Variable(compiler.RootSystem, cel.DynType),
		cel.CrossTypeNumericComparisons(true),
	}
	for _, n := range names {
		if n == compiler.RootCase || n == compiler.RootData || n == compiler.RootSystem {
			continue
		}
		opts = append(opts, cel.Variable(n, cel.DynType))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	e.envs[key] = env
	return env, nil
}

// eval compiles and evaluates a CEL expression.
func (e *evaluator) eval(expr string) (any, error) {
	env, err := e.env()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(celSource(expr))
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation error in %q: %w", expr, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program creation error: %w", err)
	}
	out, _, err := prg.Eval(e.activation())
	if err != nil {
		return nil, fmt.Errorf("evaluation error in %q: %w", expr, err)
	}
	return normalize(out.Value()), nil
}

// condition evaluates expr and requires a boolean result.
func (e *evaluator) condition(expr string) (bool, error) {
	out, err := e.eval(expr)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q is %T, not bool", expr, out)
	}
	return b, nil
}

var updateOperators = []string{"+=", "-=", "*=", "/=", "%=", "="}

// update applies an operation such as "+=1" or "= x * 2" to variable name.
func (e *evaluator) update(name, operation string) (any, error) {
	op := strings.TrimSpace(operation)
	for _, prefix := range updateOperators {
		rest, ok := strings.CutPrefix(op, prefix)
		if !ok {
			continue
		}
		if prefix == "=" {
			return e.eval(rest)
		}
		if _, declared := e.vars[name]; !declared {
			return nil, fmt.Errorf("variable %q is not set", name)
		}
		return e.eval(fmt.Sprintf("%s %s (%s)", name, prefix[:1], rest))
	}
	return nil, fmt.Errorf("unsupported update %q for %s", operation, name)
}

// convert applies a declared type from "name: type = value".
func convert(v any, typ string) (any, error) {
	switch typ {
	case "":
		return v, nil
	case "int":
		return toInt(v)
	case "float":
		return toFloat(v)
	case "str":
		return fmt.Sprint(v), nil
	case "bool":
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			return strconv.ParseBool(b)
		}
		n, err := toFloat(v)
		return n != 0, err
	}
	return v, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%v is not a whole number", n)
		}
		return int(n), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", n)
		}
		return i, nil
	}
	return 0, fmt.Errorf("%v (%T) is not a number", v, v)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", n)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%v (%T) is not a number", v, v)
}

// normalize turns whole float64 numbers, as decoded from JSON, into ints and
// int64 CEL results into ints, so arithmetic on them stays integral.
func normalize(v any) any {
	switch n := v.(type) {
	case float64:
		if n == float64(int(n)) {
			return int(n)
		}
		return n
	case int64:
		return int(n)
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, item := range n {
			out[k] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(n))
		for i, item := range n {
			out[i] = normalize(item)
		}
		return out
	}
	return v
}
