package domain

import (
	"strings"
)

type NodeCategory string

const (
	CategoryTrigger   NodeCategory = "trigger"
	CategoryAction    NodeCategory = "action"
	CategoryTransform NodeCategory = "transform"
	CategoryCondition NodeCategory = "condition"
	CategoryDelay     NodeCategory = "delay"
	CategoryLogger    NodeCategory = "logger"
)

var nodeCategories = map[NodeCategory]bool{
	CategoryTrigger:   true,
	CategoryAction:    true,
	CategoryTransform: true,
	CategoryCondition: true,
	CategoryDelay:     true,
	CategoryLogger:    true,
}

func IsValidCategory(c NodeCategory) bool {
	return nodeCategories[c]
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a single step in a workflow graph. Type is a dotted string of the
// form <category>.<service>.<operation>, e.g. "action.gmail.send".
type Node struct {
	ID       string                 `json:"id"`
	Type     string                 `json:"type"`
	Params   map[string]interface{} `json:"params"`
	Position *Position              `json:"position,omitempty"`
}

func (n *Node) Category() NodeCategory {
	head, _, _ := strings.Cut(n.Type, ".")
	return NodeCategory(head)
}

func (n *Node) Service() string {
	parts := strings.SplitN(n.Type, ".", 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func (n *Node) Operation() string {
	parts := strings.SplitN(n.Type, ".", 3)
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}

// TypeHasPrefix reports whether the node's dotted type matches prefix either
// exactly or at a dot boundary, so "action.gmail" matches "action.gmail.send"
// but not "action.gmailarchive.fetch".
func (n *Node) TypeHasPrefix(prefix string) bool {
	if n.Type == prefix {
		return true
	}
	return strings.HasPrefix(n.Type, prefix+".") || (strings.HasSuffix(prefix, ".") && strings.HasPrefix(n.Type, prefix))
}

type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type WorkflowGraph struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

func (g *WorkflowGraph) NodeByID(id string) (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

func (g *WorkflowGraph) HasNode(id string) bool {
	_, ok := g.NodeByID(id)
	return ok
}

// Adjacency returns the outgoing edge relation restricted to existing nodes.
func (g *WorkflowGraph) Adjacency() map[string][]string {
	adj := make(map[string][]string, len(g.Nodes))
	for i := range g.Nodes {
		adj[g.Nodes[i].ID] = nil
	}
	for _, e := range g.Edges {
		if _, ok := adj[e.Source]; !ok {
			continue
		}
		if _, ok := adj[e.Target]; !ok {
			continue
		}
		adj[e.Source] = append(adj[e.Source], e.Target)
	}
	return adj
}
