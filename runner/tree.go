package runner

import (
	"fmt"

	"github.com/surajsub/sapgui-step-dsl/compiler"
)

// node is one statement with its nested body. An if node carries its elif and
// else branches, a try node its except handlers.
type node struct {
	index    int
	st       *compiler.Statement
	body     []*node
	branches []*node
	handlers []*node
}

type indexed struct {
	index int
	st    *compiler.Statement
}

// buildTree nests the flat statements by depth. End statements are dropped; the
// depth already encodes where each block closes.
func buildTree(records []compiler.StepRecord) ([]*node, error) {
	flat := make([]indexed, 0, len(records))
	for i := range records {
		st := records[i].Statement
		if st == nil || st.Verb == compiler.VerbEnd {
			continue
		}
		flat = append(flat, indexed{index: i, st: st})
	}
	nodes, _, err := buildBlock(flat, 0, 0)
	return nodes, err
}

func buildBlock(flat []indexed, i, depth int) ([]*node, int, error) {
	var nodes []*node
	for i < len(flat) {
		cur := flat[i]
		if cur.st.Depth < depth {
			break
		}
		n := &node{index: cur.index, st: cur.st}
		i++
		if cur.st.IsHeader() {
			var err error
			n.body, i, err = buildBlock(flat, i, cur.st.Depth+1)
			if err != nil {
				return nil, i, err
			}
		}

		switch cur.st.Block {
		case compiler.BlockElif, compiler.BlockElse:
			head := lastOf(nodes)
			if head == nil || head.st.Block != compiler.BlockIf || closedChain(head) {
				return nil, i, fmt.Errorf("step %d: %s without a matching if", cur.index, cur.st.Action)
			}
			head.branches = append(head.branches, n)
			continue
		case compiler.BlockExcept:
			head := lastOf(nodes)
			if head == nil || head.st.Block != compiler.BlockTry {
				return nil, i, fmt.Errorf("step %d: %s without a matching try", cur.index, cur.st.Action)
			}
			if len(head.handlers) > 0 {
				return nil, i, fmt.Errorf("step %d: %s after the except handler of step %d", cur.index, cur.st.Action, head.handlers[0].index)
			}
			head.handlers = append(head.handlers, n)
			continue
		}
		nodes = append(nodes, n)
	}
	return nodes, i, nil
}

func lastOf(nodes []*node) *node {
	if len(nodes) == 0 {
		return nil
	}
	return nodes[len(nodes)-1]
}

// closedChain reports an if chain that already ends in else.
func closedChain(n *node) bool {
	last := lastOf(n.branches)
	return last != nil && last.st.Block == compiler.BlockElse
}
