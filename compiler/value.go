package compiler

import (
	"strings"
)

// Root names a value path may start from.
const (
	RootCase   = "Case"
	RootData   = "Data"
	RootSystem = "System"
)

type SegmentKind string

const (
	SegmentRoot     SegmentKind = "root"
	SegmentMember   SegmentKind = "member"
	SegmentLiteral  SegmentKind = "literal"
	SegmentKey      SegmentKind = "key"
	SegmentCall     SegmentKind = "call"
	SegmentVerbatim SegmentKind = "verbatim"
)

// Segment is one resolved piece of a dotted value path.
type Segment struct {
	Kind SegmentKind `json:"kind"`
	Text string      `json:"text"`
	// Locator is the completed element id of a call segment.
	Locator string `json:"locator,omitempty"`
}

// Expr renders the segment as a Python expression fragment.
func (s Segment) Expr() string {
	switch s.Kind {
	case SegmentRoot:
		return "self.case"
	case SegmentMember:
		return "." + s.Text
	case SegmentKey:
		return "['" + s.Text + "']"
	case SegmentCall:
		return "self.session." + s.Text + "('" + s.Locator + "')"
	default:
		return s.Text
	}
}

// Value is a resolved argument expression.
type Value struct {
	Raw      string    `json:"raw"`
	Segments []Segment `json:"segments"`
}

// Expr concatenates the rendered segments with no separator.
func (v Value) Expr() string {
	var b strings.Builder
	for _, s := range v.Segments {
		b.WriteString(s.Expr())
	}
	return b.String()
}

// IsLiteral reports whether every segment is a digit literal.
func (v Value) IsLiteral() bool {
	if len(v.Segments) == 0 {
		return false
	}
	for _, s := range v.Segments {
		if s.Kind != SegmentLiteral {
			return false
		}
	}
	return true
}

// Unresolvable reports a dotted path whose first segment is not something the
// resolver knows how to anchor: a root, a digit literal, or a call with or
// without a receiver name.
func (v Value) Unresolvable() bool {
	if len(v.Segments) < 2 {
		return false
	}
	switch v.Segments[0].Kind {
	case SegmentRoot, SegmentMember, SegmentLiteral, SegmentCall:
		return false
	case SegmentVerbatim:
		// a receiver such as "session" in front of a call
		return v.Segments[1].Kind != SegmentCall
	}
	return true
}

// LocatorCompleter expands a partial element id into a full one.
type LocatorCompleter interface {
	Complete(id string) string
}

// ResolveValue resolves a dotted path such as "Case.Data.customer_name" or
// "System.1.2". Rules are tried in order for every segment; see keyedLookback.
func ResolveValue(path string, locator LocatorCompleter) Value {
	parts := strings.Split(path, ".")
	v := Value{Raw: path, Segments: make([]Segment, 0, len(parts))}
	for i, part := range parts {
		switch {
		case part == RootCase:
			v.Segments = append(v.Segments, Segment{Kind: SegmentRoot, Text: part})
		case part == RootData || part == RootSystem:
			v.Segments = append(v.Segments, Segment{Kind: SegmentMember, Text: part})
		case isDigits(part):
			v.Segments = append(v.Segments, Segment{Kind: SegmentLiteral, Text: part})
		case keyedLookback(parts, i):
			v.Segments = append(v.Segments, Segment{Kind: SegmentKey, Text: part})
		case strings.Contains(part, "("):
			v.Segments = append(v.Segments, callSegment(part, locator))
		default:
			v.Segments = append(v.Segments, Segment{Kind: SegmentVerbatim, Text: part})
		}
	}
	return v
}

// keyedLookback is the one-segment lookback rule: a segment following "Case" or
// "Data" is a dictionary key. It only looks at the raw previous segment, so
// "Case.Data.Data.foo" yields Data as a member twice before keying foo.
func keyedLookback(parts []string, i int) bool {
	if i == 0 {
		return false
	}
	prev := parts[i-1]
	return prev == RootCase || prev == RootData
}

func callSegment(part string, locator LocatorCompleter) Segment {
	method, arg, _ := strings.Cut(part, "(")
	arg = strings.ReplaceAll(arg, ")", "")
	if locator != nil {
		arg = locator.Complete(arg)
	}
	return Segment{Kind: SegmentCall, Text: method, Locator: arg}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
