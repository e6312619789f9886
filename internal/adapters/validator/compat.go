package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/xjson"
)

// Capabilities the execution runtime cannot provide. Matching node types are
// rejected outright.
var incompatibleTypePrefixes = []string{
	"action.filesystem",
	"action.fs",
	"action.database",
	"action.db",
	"action.shell",
	"action.exec",
}

func (v *Validator) checkRuntimeCompat(graph *domain.WorkflowGraph, result *domain.ValidationResult) {
	for i := range graph.Nodes {
		node := &graph.Nodes[i]
		path := nodePath(node, i)

		for _, prefix := range incompatibleTypePrefixes {
			if node.TypeHasPrefix(prefix) {
				result.AddError(path+"/type",
					fmt.Sprintf("node type %q needs a capability the runtime cannot provide", node.Type),
					"runtime_incompatible")
				break
			}
		}

		if p := domain.DecodeActionParams(node.Params); p.URL != "" && strings.HasPrefix(p.URL, "http://") {
			result.AddWarning(path+"/params/url",
				"outbound call uses plain HTTP; only HTTPS endpoints are safe on the target runtime",
				"insecure_url")
		}
	}

	if len(graph.Nodes) > v.softNodeLimit {
		result.AddWarning("/nodes",
			fmt.Sprintf("graph has %d nodes (limit %d); execution may exceed the runtime time ceiling",
				len(graph.Nodes), v.softNodeLimit),
			"graph_size")
	}
}

var sensitiveTerms = []string{
	"password",
	"ssn",
	"social security",
	"credit card",
	"credit-card",
	"bank account",
	"bank-account",
}

var secretKeyHints = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"apikey",
	"private_key",
}

// checkSecurity scans serialized params for sensitive terms and for
// secret-like keys carrying literal values. Both are warnings only, to avoid
// blocking on false positives.
func (v *Validator) checkSecurity(graph *domain.WorkflowGraph, result *domain.ValidationResult) {
	for i := range graph.Nodes {
		node := &graph.Nodes[i]
		if len(node.Params) == 0 {
			continue
		}
		path := nodePath(node, i) + "/params"

		serialized, err := xjson.Marshal(node.Params)
		if err == nil {
			lowered := strings.ToLower(string(serialized))
			for _, term := range sensitiveTerms {
				if strings.Contains(lowered, term) {
					result.AddWarning(path,
						fmt.Sprintf("parameters mention sensitive term %q; review before running", term),
						"sensitive_term")
					break
				}
			}
		}

		// Map iteration order is randomized; sort so repeated validations
		// of the same graph produce identically ordered issues.
		keys := make([]string, 0, len(node.Params))
		for key := range node.Params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			if !looksLikeSecretKey(key) {
				continue
			}
			literal, ok := node.Params[key].(string)
			if !ok || literal == "" {
				continue
			}
			if isParameterized(literal) {
				continue
			}
			result.AddWarning(path+"/"+key,
				fmt.Sprintf("secret-like parameter %q holds a literal value; use a placeholder or environment reference", key),
				"unparameterized_secret")
		}
	}
}

func looksLikeSecretKey(key string) bool {
	lowered := strings.ToLower(key)
	for _, hint := range secretKeyHints {
		if strings.Contains(lowered, hint) {
			return true
		}
	}
	return false
}

func isParameterized(value string) bool {
	if strings.Contains(value, "{{") {
		return true
	}
	if strings.HasPrefix(value, "env.") || strings.HasPrefix(value, "$") {
		return true
	}
	return false
}
