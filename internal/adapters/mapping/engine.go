package mapping

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/ports"
)

// Engine resolves mapping expressions against node outputs. Formulas are
// parsed into an AST and interpreted in-process; callers can extend the
// helper and transform tables through the register methods.
type Engine struct {
	logger *slog.Logger

	mu         sync.RWMutex
	functions  map[string]ports.HelperFunc
	transforms map[string]ports.TransformFunc
}

func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger:     logger.With("component", "mapping"),
		functions:  builtinFunctions(),
		transforms: builtinTransforms(),
	}
}

func (e *Engine) Evaluate(expr domain.MappingExpression, ctx *domain.MappingContext) (result domain.EvalResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("expression evaluation panicked", "kind", expr.Kind, "panic", r)
			result = domain.EvalResult{Error: fmt.Sprintf("internal evaluation error: %v", r)}
		}
	}()

	if ctx == nil {
		ctx = &domain.MappingContext{}
	}

	switch expr.Kind {
	case domain.ExpressionStatic:
		return domain.EvalResult{Success: true, Value: expr.Value}

	case domain.ExpressionReference:
		return e.evaluateReference(expr, ctx)

	case domain.ExpressionFormula:
		return e.evaluateFormula(expr.Formula, ctx)

	case domain.ExpressionTemplate:
		refs := make(map[string]bool)
		rendered := renderTemplate(expr.Template, ctx, refs)
		return domain.EvalResult{Success: true, Value: rendered, ReferencesUsed: sortedKeys(refs)}
	}

	return domain.EvalResult{Error: fmt.Sprintf("unknown expression kind %q", expr.Kind)}
}

// evaluateReference resolves a node output path. The fallback substitutes only
// when the path is absent or resolves to null; falsy values such as 0, false
// or "" pass through untouched.
func (e *Engine) evaluateReference(expr domain.MappingExpression, ctx *domain.MappingContext) domain.EvalResult {
	ref := expr.NodeID
	if expr.Path != "" {
		ref = expr.NodeID + "." + expr.Path
	}
	refs := []string{ref}

	output, ok := ctx.NodeOutputs[expr.NodeID]
	if !ok {
		if expr.Fallback != nil {
			return domain.EvalResult{Success: true, Value: expr.Fallback, ReferencesUsed: refs}
		}
		return domain.EvalResult{
			Error:          fmt.Sprintf("no output recorded for node %q", expr.NodeID),
			ReferencesUsed: refs,
		}
	}

	value, found := resolvePath(output, expr.Path)
	if !found || value == nil {
		if expr.Fallback != nil {
			return domain.EvalResult{Success: true, Value: expr.Fallback, ReferencesUsed: refs}
		}
		if !found {
			return domain.EvalResult{
				Error:          fmt.Sprintf("path %q not found in output of node %q", expr.Path, expr.NodeID),
				ReferencesUsed: refs,
			}
		}
	}
	return domain.EvalResult{Success: true, Value: value, ReferencesUsed: refs}
}

func (e *Engine) evaluateFormula(formula string, ctx *domain.MappingContext) domain.EvalResult {
	ast, err := parseExpression(formula)
	if err != nil {
		return domain.EvalResult{Error: fmt.Sprintf("parse error: %v", err)}
	}

	e.mu.RLock()
	helpers := make(map[string]ports.HelperFunc, len(e.functions))
	for name, fn := range e.functions {
		helpers[name] = fn
	}
	e.mu.RUnlock()

	env := newEvalEnv(ctx, helpers)
	value, err := env.eval(ast)
	if err != nil {
		return domain.EvalResult{Error: err.Error(), ReferencesUsed: sortedKeys(env.nodeRefs)}
	}
	return domain.EvalResult{Success: true, Value: value, ReferencesUsed: sortedKeys(env.nodeRefs)}
}

func (e *Engine) ApplyMappings(mappings []domain.FieldMapping, ctx *domain.MappingContext) domain.MappingResult {
	result := domain.MappingResult{
		Success: true,
		Result:  make(map[string]interface{}),
	}
	result.Metadata.FieldsTotal = len(mappings)
	allRefs := make(map[string]bool)

	for _, mapping := range mappings {
		eval := e.Evaluate(mapping.Expression, ctx)
		for _, ref := range eval.ReferencesUsed {
			allRefs[ref] = true
		}
		if !eval.Success {
			result.Errors = append(result.Errors, domain.FieldError{Field: mapping.Target, Message: eval.Error})
			continue
		}

		value := eval.Value
		if mapping.Transform != "" {
			transformed, err := e.applyTransform(mapping.Transform, value)
			if err != nil {
				result.Errors = append(result.Errors, domain.FieldError{Field: mapping.Target, Message: err.Error()})
				continue
			}
			value = transformed
		}

		if err := validateField(mapping.Validation, value); err != nil {
			result.Errors = append(result.Errors, domain.FieldError{Field: mapping.Target, Message: err.Error()})
			continue
		}

		if err := setPath(result.Result, mapping.Target, value); err != nil {
			result.Errors = append(result.Errors, domain.FieldError{Field: mapping.Target, Message: err.Error()})
			continue
		}
		result.Metadata.FieldsApplied++
	}

	result.Metadata.ReferencesUsed = sortedKeys(allRefs)
	result.Success = len(result.Errors) == 0
	if !result.Success {
		e.logger.Debug("mapping completed with field errors",
			"fields_total", result.Metadata.FieldsTotal,
			"fields_applied", result.Metadata.FieldsApplied,
			"errors", len(result.Errors))
	}
	return result
}

// TestExpression runs an expression against a sample context and adds a
// warning for every referenced node id the sample has no output for.
func (e *Engine) TestExpression(expr domain.MappingExpression, sample *domain.MappingContext) domain.EvalResult {
	result := e.Evaluate(expr, sample)

	known := map[string]interface{}{}
	if sample != nil {
		known = sample.NodeOutputs
	}
	for _, ref := range result.ReferencesUsed {
		nodeID, _, _ := strings.Cut(ref, ".")
		if _, ok := known[nodeID]; !ok {
			result.Warnings = append(result.Warnings, fmt.Sprintf("node %q has no output in the sample context", nodeID))
		}
	}
	return result
}

func (e *Engine) RegisterFunction(name string, fn ports.HelperFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("function registration requires a name and implementation")
	}
	e.mu.Lock()
	e.functions[name] = fn
	e.mu.Unlock()
	return nil
}

func (e *Engine) RegisterTransform(name string, fn ports.TransformFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("transform registration requires a name and implementation")
	}
	e.mu.Lock()
	e.transforms[name] = fn
	e.mu.Unlock()
	return nil
}

func (e *Engine) applyTransform(name string, value interface{}) (interface{}, error) {
	e.mu.RLock()
	fn, ok := e.transforms[name]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownTransform, name)
	}
	return fn(value)
}

func validateField(v *domain.FieldValidation, value interface{}) error {
	if v == nil {
		return nil
	}
	if value == nil {
		if v.Required {
			return fmt.Errorf("value is required")
		}
		return nil
	}
	if v.Required {
		if s, ok := value.(string); ok && s == "" {
			return fmt.Errorf("value is required")
		}
	}

	if v.Type != "" {
		if err := checkType(v.Type, value); err != nil {
			return err
		}
	}

	if v.Pattern != "" {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("pattern validation requires a string, got %T", value)
		}
		re, err := regexp.Compile(v.Pattern)
		if err != nil {
			return fmt.Errorf("invalid validation pattern: %v", err)
		}
		if !re.MatchString(s) {
			return fmt.Errorf("value %q does not match pattern %q", s, v.Pattern)
		}
	}

	if v.Min != nil || v.Max != nil {
		size, ok := magnitude(value)
		if !ok {
			return fmt.Errorf("min/max validation does not apply to %T", value)
		}
		if v.Min != nil && size < *v.Min {
			return fmt.Errorf("value %v is below minimum %v", size, *v.Min)
		}
		if v.Max != nil && size > *v.Max {
			return fmt.Errorf("value %v exceeds maximum %v", size, *v.Max)
		}
	}
	return nil
}

func checkType(want domain.ValueType, value interface{}) error {
	var ok bool
	switch want {
	case domain.TypeString:
		_, ok = value.(string)
	case domain.TypeNumber:
		_, ok = toFloat(value)
	case domain.TypeBoolean:
		_, ok = value.(bool)
	case domain.TypeArray:
		_, ok = value.([]interface{})
	case domain.TypeObject:
		_, ok = value.(map[string]interface{})
	default:
		return fmt.Errorf("unknown validation type %q", want)
	}
	if !ok {
		return fmt.Errorf("expected %s, got %T", want, value)
	}
	return nil
}

// magnitude is the quantity min/max compares against: the value itself for
// numbers, the length for strings and arrays.
func magnitude(value interface{}) (float64, bool) {
	if num, ok := toFloat(value); ok {
		return num, true
	}
	switch v := value.(type) {
	case string:
		return float64(len(v)), true
	case []interface{}:
		return float64(len(v)), true
	}
	return 0, false
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
