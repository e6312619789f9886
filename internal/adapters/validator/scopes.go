package validator

import (
	"sort"

	"github.com/loomhq/loom/internal/domain"
)

// Permission scopes per external capability, keyed by the service segment of
// the node type. Consumed downstream by the authorization layer.
var capabilityScopes = map[string][]string{
	"gmail":    {"https://www.googleapis.com/auth/gmail.send"},
	"sheets":   {"https://www.googleapis.com/auth/spreadsheets"},
	"drive":    {"https://www.googleapis.com/auth/drive.file"},
	"calendar": {"https://www.googleapis.com/auth/calendar.events"},
	"outlook":  {"Mail.Send"},
	"onedrive": {"Files.ReadWrite"},
	"excel":    {"Files.ReadWrite"},
	"slack":    {"chat:write"},
	"dropbox":  {"files.content.write"},
	"github":   {"repo"},
}

func (v *Validator) aggregateScopes(graph *domain.WorkflowGraph, result *domain.ValidationResult) {
	seen := make(map[string]bool)
	for i := range graph.Nodes {
		for _, scope := range capabilityScopes[graph.Nodes[i].Service()] {
			seen[scope] = true
		}
	}

	scopes := make([]string, 0, len(seen))
	for scope := range seen {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)
	result.RequiredScopes = scopes
}

// classifyComplexity derives a coarse rating purely from node and edge
// counts.
func classifyComplexity(graph *domain.WorkflowGraph) domain.Complexity {
	nodes := len(graph.Nodes)
	edges := len(graph.Edges)

	switch {
	case nodes <= 3 && edges <= 2:
		return domain.ComplexitySimple
	case nodes <= 10 && edges <= 15:
		return domain.ComplexityMedium
	case nodes <= 25:
		return domain.ComplexityComplex
	default:
		return domain.ComplexityUnknown
	}
}
