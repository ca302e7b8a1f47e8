package workflow

import (
	"fmt"

	"github.com/garyjia/approval-workflow/internal/application/port"
)

// Resolution strategies for a node's approver
const (
	StrategyFixed      = "fixed"
	StrategyRole       = "role"
	StrategyDeptLeader = "dept_leader"
)

// DefaultEndLabel is recorded as the next node of a decision that finishes the application
const DefaultEndLabel = "end"

// NodeSpec describes one approval node
type NodeSpec struct {
	Name     string
	Strategy string
	UserID   int64
	UserName string
	Role     string
}

// DefaultNodes is the single department manager hop
func DefaultNodes() []NodeSpec {
	return []NodeSpec{{
		Name:     "部门经理审批",
		Strategy: StrategyFixed,
		UserID:   2,
		UserName: "技术部经理",
	}}
}

// Node is a resolved chain position
type Node struct {
	Name     string
	Resolver ApproverResolver
}

// Chain is the ordered list of approval nodes every application walks through
type Chain struct {
	nodes    []Node
	endLabel string
}

// NewChain builds a chain from node descriptors
func NewChain(specs []NodeSpec, endLabel string, directory port.DirectoryReader) (*Chain, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("approval chain must have at least one node")
	}
	if endLabel == "" {
		endLabel = DefaultEndLabel
	}

	nodes := make([]Node, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for i, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("node %d: name is required", i)
		}
		if seen[spec.Name] {
			return nil, fmt.Errorf("node %d: duplicate name %q", i, spec.Name)
		}
		seen[spec.Name] = true

		resolver, err := newResolver(spec, directory)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", spec.Name, err)
		}
		nodes = append(nodes, Node{Name: spec.Name, Resolver: resolver})
	}

	return &Chain{nodes: nodes, endLabel: endLabel}, nil
}

// Len returns the number of nodes
func (c *Chain) Len() int {
	return len(c.nodes)
}

// Node returns the node at index i
func (c *Chain) Node(i int) (Node, bool) {
	if i < 0 || i >= len(c.nodes) {
		return Node{}, false
	}
	return c.nodes[i], true
}

// IsLast reports whether i is the final node
func (c *Chain) IsLast(i int) bool {
	return i >= len(c.nodes)-1
}

// EndLabel returns the next-node label used when the chain finishes
func (c *Chain) EndLabel() string {
	return c.endLabel
}
