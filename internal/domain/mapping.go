package domain

type ExpressionKind string

const (
	ExpressionStatic    ExpressionKind = "static"
	ExpressionReference ExpressionKind = "reference"
	ExpressionFormula   ExpressionKind = "expression"
	ExpressionTemplate  ExpressionKind = "template"
)

// MappingExpression is a tagged variant; the fields that apply depend on Kind.
//
//   - static:     Value
//   - reference:  NodeID + Path (+ optional Fallback)
//   - expression: Formula
//   - template:   Template
type MappingExpression struct {
	Kind     ExpressionKind `json:"kind"`
	Value    interface{}    `json:"value,omitempty"`
	NodeID   string         `json:"node_id,omitempty"`
	Path     string         `json:"path,omitempty"`
	Fallback interface{}    `json:"fallback,omitempty"`
	Formula  string         `json:"formula,omitempty"`
	Template string         `json:"template,omitempty"`
}

func Static(value interface{}) MappingExpression {
	return MappingExpression{Kind: ExpressionStatic, Value: value}
}

func Reference(nodeID, path string) MappingExpression {
	return MappingExpression{Kind: ExpressionReference, NodeID: nodeID, Path: path}
}

func ReferenceWithFallback(nodeID, path string, fallback interface{}) MappingExpression {
	return MappingExpression{Kind: ExpressionReference, NodeID: nodeID, Path: path, Fallback: fallback}
}

func Formula(formula string) MappingExpression {
	return MappingExpression{Kind: ExpressionFormula, Formula: formula}
}

func Template(template string) MappingExpression {
	return MappingExpression{Kind: ExpressionTemplate, Template: template}
}

type ValueType string

const (
	TypeString  ValueType = "string"
	TypeNumber  ValueType = "number"
	TypeBoolean ValueType = "boolean"
	TypeArray   ValueType = "array"
	TypeObject  ValueType = "object"
)

// FieldValidation is applied after a value is resolved, independent of the
// expression kind that produced it. Min/Max apply to numeric values and to
// string/array lengths.
type FieldValidation struct {
	Required bool      `json:"required,omitempty"`
	Type     ValueType `json:"type,omitempty"`
	Pattern  string    `json:"pattern,omitempty"`
	Min      *float64  `json:"min,omitempty"`
	Max      *float64  `json:"max,omitempty"`
}

// FieldMapping binds an expression to a target field path in dot/array-index
// notation. Transform, when set, names a registered transform applied to the
// resolved value before validation.
type FieldMapping struct {
	Target     string            `json:"target"`
	Expression MappingExpression `json:"expression"`
	Transform  string            `json:"transform,omitempty"`
	Validation *FieldValidation  `json:"validation,omitempty"`
}

// MappingContext carries everything an expression may see: upstream node
// outputs keyed by node id, the id of the node being resolved, and the
// global/user variable maps used by bare template placeholders.
type MappingContext struct {
	NodeOutputs     map[string]interface{} `json:"node_outputs"`
	CurrentNode     string                 `json:"current_node,omitempty"`
	GlobalVariables map[string]interface{} `json:"global_variables,omitempty"`
	UserContext     map[string]interface{} `json:"user_context,omitempty"`
}

type EvalResult struct {
	Success        bool        `json:"success"`
	Value          interface{} `json:"value,omitempty"`
	Error          string      `json:"error,omitempty"`
	Warnings       []string    `json:"warnings,omitempty"`
	ReferencesUsed []string    `json:"references_used,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type MappingMetadata struct {
	FieldsTotal    int      `json:"fields_total"`
	FieldsApplied  int      `json:"fields_applied"`
	ReferencesUsed []string `json:"references_used,omitempty"`
}

// MappingResult accumulates per-field outcomes independently; one failing
// field never aborts its siblings.
type MappingResult struct {
	Success  bool                   `json:"success"`
	Result   map[string]interface{} `json:"result"`
	Errors   []FieldError           `json:"errors,omitempty"`
	Metadata MappingMetadata        `json:"metadata"`
}
