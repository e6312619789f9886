package validator

import (
	"fmt"

	"github.com/loomhq/loom/internal/domain"
)

func (v *Validator) checkStructure(graph *domain.WorkflowGraph, result *domain.ValidationResult) {
	seen := make(map[string]bool, len(graph.Nodes))

	for i := range graph.Nodes {
		node := &graph.Nodes[i]
		path := nodePath(node, i)

		if node.ID == "" {
			result.AddError(path+"/id", "node id is required", "missing_node_id")
		} else if seen[node.ID] {
			result.AddError(path+"/id", fmt.Sprintf("duplicate node id %q", node.ID), "duplicate_node_id")
		} else {
			seen[node.ID] = true
		}

		if node.Type == "" {
			result.AddError(path+"/type", "node type is required", "missing_node_type")
			continue
		}
		if !domain.IsValidCategory(node.Category()) {
			result.AddError(path+"/type",
				fmt.Sprintf("unknown node category %q in type %q", node.Category(), node.Type),
				"invalid_category")
		}
	}

	for i := range graph.Edges {
		edge := &graph.Edges[i]
		path := edgePath(edge, i)

		if edge.ID == "" {
			result.AddError(path+"/id", "edge id is required", "missing_edge_id")
		}
		if edge.Source == "" {
			result.AddError(path+"/source", "edge source is required", "missing_edge_source")
		} else if !graph.HasNode(edge.Source) {
			result.AddError(path+"/source",
				fmt.Sprintf("dangling edge: source node %q does not exist", edge.Source),
				"dangling_edge")
		}
		if edge.Target == "" {
			result.AddError(path+"/target", "edge target is required", "missing_edge_target")
		} else if !graph.HasNode(edge.Target) {
			result.AddError(path+"/target",
				fmt.Sprintf("dangling edge: target node %q does not exist", edge.Target),
				"dangling_edge")
		}
	}
}

// paramRule maps a dotted-type prefix to the parameter checks that apply to
// matching nodes. Checks use the typed parameter views so required fields
// are read the same way everywhere.
type paramRule struct {
	prefix string
	check  func(node *domain.Node) []string
}

var paramRules = []paramRule{
	{prefix: "trigger.time", check: func(n *domain.Node) []string {
		if p := domain.DecodeTriggerParams(n.Params); p.Schedule == "" {
			return []string{"schedule"}
		}
		return nil
	}},
	{prefix: "trigger.schedule", check: func(n *domain.Node) []string {
		if p := domain.DecodeTriggerParams(n.Params); p.Schedule == "" {
			return []string{"schedule"}
		}
		return nil
	}},
	{prefix: "action.gmail.send", check: requireRecipient},
	{prefix: "action.mail.send", check: requireRecipient},
	{prefix: "action.outlook.send", check: requireRecipient},
	{prefix: "action.sheets", check: requireSpreadsheet},
	{prefix: "action.excel", check: requireSpreadsheet},
	{prefix: "action.slack.post", check: func(n *domain.Node) []string {
		if p := domain.DecodeActionParams(n.Params); p.Channel == "" {
			return []string{"channel"}
		}
		return nil
	}},
	{prefix: "action.http.request", check: func(n *domain.Node) []string {
		if p := domain.DecodeActionParams(n.Params); p.URL == "" {
			return []string{"url"}
		}
		return nil
	}},
	{prefix: "condition", check: func(n *domain.Node) []string {
		if p := domain.DecodeConditionParams(n.Params); p.Expression == "" {
			return []string{"expression"}
		}
		return nil
	}},
	{prefix: "delay", check: func(n *domain.Node) []string {
		if p := domain.DecodeDelayParams(n.Params); p.DurationMs <= 0 {
			return []string{"duration_ms"}
		}
		return nil
	}},
}

func requireRecipient(n *domain.Node) []string {
	if p := domain.DecodeActionParams(n.Params); p.Recipient == "" {
		return []string{"recipient"}
	}
	return nil
}

func requireSpreadsheet(n *domain.Node) []string {
	if p := domain.DecodeActionParams(n.Params); p.SpreadsheetID == "" {
		return []string{"spreadsheet_id"}
	}
	return nil
}

func (v *Validator) checkRequiredParams(graph *domain.WorkflowGraph, result *domain.ValidationResult) {
	for i := range graph.Nodes {
		node := &graph.Nodes[i]
		for _, rule := range paramRules {
			if !node.TypeHasPrefix(rule.prefix) {
				continue
			}
			for _, missing := range rule.check(node) {
				result.AddError(
					nodePath(node, i)+"/params/"+missing,
					fmt.Sprintf("node type %q requires parameter %q", node.Type, missing),
					"missing_required_param")
			}
		}
	}
}

// checkCycles runs an iterative-outer DFS with a visited set and an
// active-recursion set; a back-edge into the active set is a cycle. The
// outer loop walks every node so disconnected components terminate too.
func (v *Validator) checkCycles(graph *domain.WorkflowGraph, result *domain.ValidationResult) {
	adj := graph.Adjacency()
	visited := make(map[string]bool, len(graph.Nodes))
	inStack := make(map[string]bool, len(graph.Nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		visited[id] = true
		inStack[id] = true
		for _, next := range adj[id] {
			if inStack[next] {
				return true
			}
			if !visited[next] && visit(next) {
				return true
			}
		}
		inStack[id] = false
		return false
	}

	for i := range graph.Nodes {
		id := graph.Nodes[i].ID
		if id == "" || visited[id] {
			continue
		}
		if visit(id) {
			result.AddError("/", "workflow graph contains a cycle", "cycle_detected")
			return
		}
	}
}
