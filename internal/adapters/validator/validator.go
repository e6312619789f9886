package validator

import (
	"fmt"
	"log/slog"

	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/xjson"
)

// Validator runs a fixed, ordered pipeline over a workflow graph. Later
// stages run even when earlier stages found errors, so a single call
// surfaces the maximal diagnostic set.
type Validator struct {
	logger        *slog.Logger
	softNodeLimit int
}

func New(cfg domain.ValidatorConfig, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	limit := cfg.SoftNodeLimit
	if limit < 1 {
		limit = 50
	}
	return &Validator{
		logger:        logger.With("component", "validator"),
		softNodeLimit: limit,
	}
}

func (v *Validator) Validate(graph *domain.WorkflowGraph) (result domain.ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("validation panicked", "panic", fmt.Sprintf("%v", r))
			result = domain.ValidationResult{Complexity: domain.ComplexityUnknown}
			result.AddError("/", fmt.Sprintf("internal validation failure: %v", r), "internal_error")
			result.Finalize()
		}
	}()

	result = domain.ValidationResult{Complexity: domain.ComplexityUnknown}

	if graph == nil {
		result.AddError("/", "graph is missing", "missing_graph")
		result.Finalize()
		return result
	}

	raw, err := xjson.Marshal(graph)
	if err != nil {
		result.AddError("/", "graph cannot be serialized: "+err.Error(), "malformed_graph")
		result.Finalize()
		return result
	}

	v.checkSchema(raw, &result)
	v.checkStructure(graph, &result)
	v.checkRequiredParams(graph, &result)
	v.checkCycles(graph, &result)
	v.checkRuntimeCompat(graph, &result)
	v.checkSecurity(graph, &result)
	v.aggregateScopes(graph, &result)
	result.Complexity = classifyComplexity(graph)

	result.Finalize()

	v.logger.Debug("graph validated",
		"graph_id", graph.ID,
		"valid", result.Valid,
		"issues", len(result.Issues),
		"complexity", result.Complexity,
	)

	return result
}

// ValidateJSON validates a raw graph document. Input that does not decode
// into even the loosest graph shape yields a single top-level error rather
// than propagating a failure.
func (v *Validator) ValidateJSON(data []byte) domain.ValidationResult {
	var graph domain.WorkflowGraph
	if err := xjson.Unmarshal(data, &graph); err != nil {
		result := domain.ValidationResult{Complexity: domain.ComplexityUnknown}
		result.AddError("/", "graph does not match the expected shape: "+err.Error(), "malformed_graph")
		result.Finalize()
		return result
	}
	return v.Validate(&graph)
}
