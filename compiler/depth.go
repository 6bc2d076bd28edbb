package compiler

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BlockKind is a structured construct tracked by BlockDepthState.
type BlockKind int

const (
	BlockNone BlockKind = iota
	BlockWhile
	BlockFor
	BlockIf
	BlockElse
	BlockElif
	BlockRange
	BlockTry
	BlockExcept
	numBlockKinds
)

var blockNames = [numBlockKinds]string{"", "while", "for", "if", "else", "elif", "range", "try", "except"}

func (k BlockKind) String() string {
	if k == BlockNone {
		return "none"
	}
	if k < BlockNone || k >= numBlockKinds {
		return fmt.Sprintf("BlockKind(%d)", int(k))
	}
	return blockNames[k]
}

func (k BlockKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *BlockKind) UnmarshalText(b []byte) error {
	if len(b) == 0 || string(b) == "none" {
		*k = BlockNone
		return nil
	}
	kind, ok := ParseBlockKind(string(b))
	if !ok {
		return fmt.Errorf("unknown block kind %q", b)
	}
	*k = kind
	return nil
}

func ParseBlockKind(s string) (BlockKind, bool) {
	for i, name := range blockNames {
		if i > 0 && name == s {
			return BlockKind(i), true
		}
	}
	return 0, false
}

// BlockDepthState holds one nesting counter per block kind; slot 0 (BlockNone) is
// unused. It is a value type: every transition returns a new state and never
// touches the receiver.
type BlockDepthState struct {
	counters [numBlockKinds]int
}

// Get returns the counter for kind.
func (s BlockDepthState) Get(kind BlockKind) int {
	return s.counters[kind]
}

// Total is the nesting depth used to indent statements.
func (s BlockDepthState) Total() int {
	total := 0
	for _, c := range s.counters {
		total += c
	}
	return total
}

func (s BlockDepthState) IsZero() bool {
	return s == BlockDepthState{}
}

// Add returns a copy with delta applied to kind.
func (s BlockDepthState) Add(kind BlockKind, delta int) BlockDepthState {
	s.counters[kind] += delta
	return s
}

// Open applies start_<kind>. else and elif trade one if level for their own.
func (s BlockDepthState) Open(kind BlockKind) BlockDepthState {
	s = s.Add(kind, 1)
	if kind == BlockElse || kind == BlockElif {
		s = s.Add(BlockIf, -1)
	}
	return s
}

// Close applies end_<kind>, giving the if level back for else and elif.
func (s BlockDepthState) Close(kind BlockKind) BlockDepthState {
	s = s.Add(kind, -1)
	if kind == BlockElse || kind == BlockElif {
		s = s.Add(BlockIf, 1)
	}
	return s
}

// Negative lists the kinds whose counter dropped below zero.
func (s BlockDepthState) Negative() []BlockKind {
	var kinds []BlockKind
	for i, c := range s.counters {
		if c < 0 {
			kinds = append(kinds, BlockKind(i))
		}
	}
	return kinds
}

// OpenKinds lists the kinds whose counter is above zero.
func (s BlockDepthState) OpenKinds() []BlockKind {
	var kinds []BlockKind
	for i, c := range s.counters {
		if c > 0 {
			kinds = append(kinds, BlockKind(i))
		}
	}
	return kinds
}

// Map returns the counters keyed by block name.
func (s BlockDepthState) Map() map[string]int {
	m := make(map[string]int, numBlockKinds-1)
	for i := BlockWhile; i < numBlockKinds; i++ {
		m[blockNames[i]] = s.counters[i]
	}
	return m
}

func (s BlockDepthState) String() string {
	parts := make([]string, 0, numBlockKinds-1)
	for i := BlockWhile; i < numBlockKinds; i++ {
		parts = append(parts, fmt.Sprintf("%s=%d", blockNames[i], s.counters[i]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func (s BlockDepthState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Map())
}

func (s *BlockDepthState) UnmarshalJSON(b []byte) error {
	var m map[string]int
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	var next BlockDepthState
	for name, c := range m {
		kind, ok := ParseBlockKind(name)
		if !ok {
			return fmt.Errorf("unknown block kind %q", name)
		}
		next.counters[kind] = c
	}
	*s = next
	return nil
}
