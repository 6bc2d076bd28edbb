package compiler

// Verb is the shape of a generated statement.
type Verb string

const (
	// VerbCall invokes a session method with ordered operands.
	VerbCall Verb = "call"
	// VerbAssign binds Target (optionally typed) to a value.
	VerbAssign Verb = "assign"
	// VerbUpdate applies a raw operator text to Target, e.g. "+=1".
	VerbUpdate Verb = "update"
	// VerbOpen starts a block of kind Block.
	VerbOpen Verb = "open"
	// VerbEnd closes a block of kind Block.
	VerbEnd Verb = "end"
)

type OperandKind string

const (
	// OperandString is literal text, quoted when emitted.
	OperandString OperandKind = "string"
	// OperandValue is a resolved value path.
	OperandValue OperandKind = "value"
	// OperandRaw is passed through untouched: conditions, exception types, seconds.
	OperandRaw OperandKind = "raw"
)

type Operand struct {
	Name  string      `json:"name,omitempty"`
	Kind  OperandKind `json:"kind"`
	Text  string      `json:"text,omitempty"`
	Value *Value      `json:"value,omitempty"`
}

func stringOperand(name, text string) Operand {
	return Operand{Name: name, Kind: OperandString, Text: text}
}

func rawOperand(name, text string) Operand {
	return Operand{Name: name, Kind: OperandRaw, Text: text}
}

func valueOperand(name string, v Value) Operand {
	return Operand{Name: name, Kind: OperandValue, Text: v.Raw, Value: &v}
}

// Statement is the neutral form of one compiled step. It is never mutated once
// generated; emitters and the interpreter only read it.
type Statement struct {
	Verb     Verb      `json:"verb"`
	Action   string    `json:"action"`
	Method   string    `json:"method,omitempty"`
	Block    BlockKind `json:"block,omitempty"`
	Target   string    `json:"target,omitempty"`
	Type     string    `json:"type,omitempty"`
	Operands []Operand `json:"operands,omitempty"`
	Depth    int       `json:"depth"`
}

// Operand returns the operand with the given name.
func (s *Statement) Operand(name string) (Operand, bool) {
	for _, op := range s.Operands {
		if op.Name == name {
			return op, true
		}
	}
	return Operand{}, false
}

// IsHeader reports whether the statement opens a block.
func (s *Statement) IsHeader() bool {
	return s.Verb == VerbOpen
}
