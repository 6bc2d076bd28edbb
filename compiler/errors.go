package compiler

import (
	"fmt"
)

// ErrorKind classifies compile diagnostics.
type ErrorKind int

const (
	UnrecognizedAction ErrorKind = iota + 1
	MalformedArgumentCount
	MalformedArgument
	UnresolvableValuePath
	BlockDepthUnderflow
	UnclosedBlock
)

func (k ErrorKind) String() string {
	switch k {
	case UnrecognizedAction:
		return "UNRECOGNIZED_ACTION"
	case MalformedArgumentCount:
		return "MALFORMED_ARGUMENT_COUNT"
	case MalformedArgument:
		return "MALFORMED_ARGUMENT"
	case UnresolvableValuePath:
		return "UNRESOLVABLE_VALUE_PATH"
	case BlockDepthUnderflow:
		return "BLOCK_DEPTH_UNDERFLOW"
	case UnclosedBlock:
		return "UNCLOSED_BLOCK"
	default:
		return "COMPILE_ERROR"
	}
}

func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ErrorKind) UnmarshalText(b []byte) error {
	for kind := UnrecognizedAction; kind <= UnclosedBlock; kind++ {
		if kind.String() == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown error kind %q", b)
}

// Sentinels for errors.Is. A *CompileError matches the sentinel of its kind.
var (
	ErrUnrecognizedAction     = &CompileError{Kind: UnrecognizedAction}
	ErrMalformedArgumentCount = &CompileError{Kind: MalformedArgumentCount}
	ErrMalformedArgument      = &CompileError{Kind: MalformedArgument}
	ErrUnresolvableValuePath  = &CompileError{Kind: UnresolvableValuePath}
	ErrBlockDepthUnderflow    = &CompileError{Kind: BlockDepthUnderflow}
	ErrUnclosedBlock          = &CompileError{Kind: UnclosedBlock}
)

// CompileError is a diagnostic raised while compiling one step line.
type CompileError struct {
	Kind    ErrorKind `json:"kind"`
	Line    int       `json:"line,omitempty"`
	Action  string    `json:"action,omitempty"`
	Arg     int       `json:"arg,omitempty"`
	Message string    `json:"message"`
}

func (e *CompileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", e.Kind, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any *CompileError of the same kind.
func (e *CompileError) Is(target error) bool {
	t, ok := target.(*CompileError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind ErrorKind, line int, action, format string, args ...any) *CompileError {
	return &CompileError{
		Kind:    kind,
		Line:    line,
		Action:  action,
		Message: fmt.Sprintf(format, args...),
	}
}

// Diagnostics is the ordered list of warnings gathered while compiling.
type Diagnostics []*CompileError

// Err joins the diagnostics into one error, or nil when empty.
func (d Diagnostics) Err() error {
	switch len(d) {
	case 0:
		return nil
	case 1:
		return d[0]
	}
	return &MultiError{Errors: d}
}

// MultiError carries several compile errors returned at once.
type MultiError struct {
	Errors []*CompileError
}

func (m *MultiError) Error() string {
	msg := fmt.Sprintf("%d compile errors:", len(m.Errors))
	for _, e := range m.Errors {
		msg += "\n  " + e.Error()
	}
	return msg
}

func (m *MultiError) Unwrap() []error {
	errs := make([]error, len(m.Errors))
	for i, e := range m.Errors {
		errs[i] = e
	}
	return errs
}
