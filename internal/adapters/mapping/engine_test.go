package mapping

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom/internal/domain"
)

func testContext() *domain.MappingContext {
	return &domain.MappingContext{
		NodeOutputs: map[string]interface{}{
			"fetch": map[string]interface{}{
				"status": float64(200),
				"body": map[string]interface{}{
					"name":  "Ada Lovelace",
					"count": float64(0),
					"email": nil,
					"items": []interface{}{
						map[string]interface{}{"sku": "a-1", "qty": float64(2)},
						map[string]interface{}{"sku": "b-2", "qty": float64(5)},
					},
				},
			},
		},
		GlobalVariables: map[string]interface{}{"env": "prod"},
		UserContext:     map[string]interface{}{"user_email": "ada@example.com"},
	}
}

func TestEvaluateStatic(t *testing.T) {
	e := New(nil)

	result := e.Evaluate(domain.Static("hello"), testContext())

	require.True(t, result.Success)
	assert.Equal(t, "hello", result.Value)
	assert.Empty(t, result.ReferencesUsed)
}

func TestEvaluateReference(t *testing.T) {
	e := New(nil)

	result := e.Evaluate(domain.Reference("fetch", "body.name"), testContext())

	require.True(t, result.Success)
	assert.Equal(t, "Ada Lovelace", result.Value)
	assert.Equal(t, []string{"fetch.body.name"}, result.ReferencesUsed)
}

func TestReferenceFallbackOnlyOnNullOrAbsent(t *testing.T) {
	e := New(nil)
	ctx := testContext()

	// Falsy but present values pass through untouched.
	result := e.Evaluate(domain.ReferenceWithFallback("fetch", "body.count", float64(99)), ctx)
	require.True(t, result.Success)
	assert.Equal(t, float64(0), result.Value)

	// Present-but-null takes the fallback.
	result = e.Evaluate(domain.ReferenceWithFallback("fetch", "body.email", "none@example.com"), ctx)
	require.True(t, result.Success)
	assert.Equal(t, "none@example.com", result.Value)

	// Absent path takes the fallback.
	result = e.Evaluate(domain.ReferenceWithFallback("fetch", "body.missing", "x"), ctx)
	require.True(t, result.Success)
	assert.Equal(t, "x", result.Value)

	// Absent path without a fallback is an error.
	result = e.Evaluate(domain.Reference("fetch", "body.missing"), ctx)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestReferenceUnknownNode(t *testing.T) {
	e := New(nil)

	result := e.Evaluate(domain.Reference("ghost", "x"), testContext())
	assert.False(t, result.Success)

	result = e.Evaluate(domain.ReferenceWithFallback("ghost", "x", "fb"), testContext())
	require.True(t, result.Success)
	assert.Equal(t, "fb", result.Value)
}

func TestEvaluateFormulaArithmetic(t *testing.T) {
	e := New(nil)
	ctx := testContext()

	cases := map[string]interface{}{
		"1 + 2 * 3":                      float64(7),
		"(1 + 2) * 3":                    float64(9),
		"10 % 3":                         float64(1),
		"-5 + 2":                         float64(-3),
		"nodes.fetch.status == 200":      true,
		"nodes.fetch.status > 300":       false,
		"'id-' + nodes.fetch.status":     "id-200",
		"nodes.fetch.status >= 200 && nodes.fetch.status < 300": true,
		"!false":                 true,
		"1 < 2 ? 'low' : 'high'": "low",
	}

	for formula, want := range cases {
		result := e.Evaluate(domain.Formula(formula), ctx)
		require.True(t, result.Success, "formula %q: %s", formula, result.Error)
		assert.Equal(t, want, result.Value, "formula %q", formula)
	}
}

func TestEvaluateFormulaRecordsReferences(t *testing.T) {
	e := New(nil)

	result := e.Evaluate(domain.Formula("nodes.fetch.body.count + 1"), testContext())

	require.True(t, result.Success)
	assert.Equal(t, []string{"fetch"}, result.ReferencesUsed)
}

func TestEvaluateFormulaHelpers(t *testing.T) {
	e := New(nil)
	ctx := testContext()

	cases := map[string]interface{}{
		"upper('abc')":                          "ABC",
		"lower('ABC')":                          "abc",
		"trim('  x  ')":                         "x",
		"concat('a', '-', 'b')":                 "a-b",
		"coalesce(null, null, 'v')":             "v",
		"coalesce('', 'first')":                 "first",
		"default(null, 'd')":                    "d",
		"default('set', 'd')":                   "set",
		"if(1 > 2, 'yes', 'no')":                "no",
		"length(nodes.fetch.body.items)":        float64(2),
		"round(2.6)":                            float64(3),
		"min(3, 1, 2)":                          float64(1),
		"max(3, 1, 2)":                          float64(3),
		"abs(0 - 4)":                            float64(4),
		"slugify('Hello World!')":               "hello-world",
		"substring('workflow', 0, 4)":           "work",
		"join(map(nodes.fetch.body.items, 'sku'), ',')": "a-1,b-2",
		"to_number('42')":                       float64(42),
		"format_date('2026-08-30T12:00:00Z', 'YYYY-MM-DD')": "2026-08-30",
	}

	for formula, want := range cases {
		result := e.Evaluate(domain.Formula(formula), ctx)
		require.True(t, result.Success, "formula %q: %s", formula, result.Error)
		assert.Equal(t, want, result.Value, "formula %q", formula)
	}
}

func TestEvaluateFormulaFilter(t *testing.T) {
	e := New(nil)

	result := e.Evaluate(domain.Formula("filter(nodes.fetch.body.items, 'sku', 'b-2')"), testContext())

	require.True(t, result.Success)
	items, ok := result.Value.([]interface{})
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, "b-2", items[0].(map[string]interface{})["sku"])
}

func TestEvaluateFormulaErrors(t *testing.T) {
	e := New(nil)
	ctx := testContext()

	for _, formula := range []string{
		"1 / 0",
		"10 % 0",
		"nosuchfn(1)",
		"1 +",
		"'abc' - 2",
	} {
		result := e.Evaluate(domain.Formula(formula), ctx)
		assert.False(t, result.Success, "formula %q should fail", formula)
		assert.NotEmpty(t, result.Error)
	}
}

func TestEvaluateTemplate(t *testing.T) {
	e := New(nil)

	result := e.Evaluate(domain.Template("Hi {{nodes.fetch.body.name}}, env={{env}} to {{user_email}}"), testContext())

	require.True(t, result.Success)
	assert.Equal(t, "Hi Ada Lovelace, env=prod to ada@example.com", result.Value)
	assert.Equal(t, []string{"fetch.body.name"}, result.ReferencesUsed)
}

func TestEvaluateTemplateLeavesUnresolvedVerbatim(t *testing.T) {
	e := New(nil)

	result := e.Evaluate(domain.Template("value: {{nodes.ghost.x}} and {{unknown_var}}"), testContext())

	require.True(t, result.Success)
	assert.Equal(t, "value: {{nodes.ghost.x}} and {{unknown_var}}", result.Value)
}

func TestApplyMappingsIsolatesFieldFailures(t *testing.T) {
	e := New(nil)
	ctx := testContext()

	mappings := []domain.FieldMapping{
		{Target: "to", Expression: domain.Reference("fetch", "body.name")},
		{Target: "broken", Expression: domain.Reference("ghost", "x")},
		{Target: "status", Expression: domain.Formula("nodes.fetch.status")},
	}

	result := e.ApplyMappings(mappings, ctx)

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "broken", result.Errors[0].Field)
	assert.Equal(t, "Ada Lovelace", result.Result["to"])
	assert.Equal(t, float64(200), result.Result["status"])
	assert.Equal(t, 3, result.Metadata.FieldsTotal)
	assert.Equal(t, 2, result.Metadata.FieldsApplied)
}

func TestApplyMappingsTransforms(t *testing.T) {
	e := New(nil)
	ctx := testContext()

	result := e.ApplyMappings([]domain.FieldMapping{
		{Target: "name", Expression: domain.Reference("fetch", "body.name"), Transform: "uppercase"},
		{Target: "csv", Expression: domain.Static([]interface{}{"a", "b"}), Transform: "join"},
		{Target: "parts", Expression: domain.Static("x,y"), Transform: "split"},
	}, ctx)

	require.True(t, result.Success)
	assert.Equal(t, "ADA LOVELACE", result.Result["name"])
	assert.Equal(t, "a,b", result.Result["csv"])
	assert.Equal(t, []interface{}{"x", "y"}, result.Result["parts"])
}

func TestApplyMappingsUnknownTransformFailsField(t *testing.T) {
	e := New(nil)

	result := e.ApplyMappings([]domain.FieldMapping{
		{Target: "name", Expression: domain.Static("x"), Transform: "nope"},
	}, testContext())

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, domain.ErrUnknownTransform.Error())
	assert.Equal(t, 0, result.Metadata.FieldsApplied)
}

func TestApplyMappingsValidation(t *testing.T) {
	e := New(nil)
	min := float64(1)

	result := e.ApplyMappings([]domain.FieldMapping{
		{
			Target:     "email",
			Expression: domain.Static("not-an-email"),
			Validation: &domain.FieldValidation{Type: domain.TypeString, Pattern: `^[^@]+@[^@]+$`},
		},
		{
			Target:     "count",
			Expression: domain.Static(float64(0)),
			Validation: &domain.FieldValidation{Type: domain.TypeNumber, Min: &min},
		},
		{
			Target:     "required",
			Expression: domain.Static(nil),
			Validation: &domain.FieldValidation{Required: true},
		},
		{
			Target:     "required_string",
			Expression: domain.Static(""),
			Validation: &domain.FieldValidation{Required: true},
		},
	}, testContext())

	assert.False(t, result.Success)
	assert.Len(t, result.Errors, 4)
	assert.Empty(t, result.Result)
}

func TestApplyMappingsNestedTargets(t *testing.T) {
	e := New(nil)
	ctx := testContext()

	result := e.ApplyMappings([]domain.FieldMapping{
		{Target: "payload.user.name", Expression: domain.Reference("fetch", "body.name")},
		{Target: "payload.user.env", Expression: domain.Template("{{env}}")},
		{Target: "payload.skus[0]", Expression: domain.Static("a-1")},
	}, ctx)

	require.True(t, result.Success)
	payload := result.Result["payload"].(map[string]interface{})
	user := payload["user"].(map[string]interface{})
	assert.Equal(t, "Ada Lovelace", user["name"])
	assert.Equal(t, "prod", user["env"])
	assert.Equal(t, []interface{}{"a-1"}, payload["skus"])
}

func TestTestExpressionWarnsOnMissingNodes(t *testing.T) {
	e := New(nil)

	result := e.TestExpression(domain.Formula("nodes.ghost.value"), testContext())

	assert.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "ghost")
}

func TestRegisterFunction(t *testing.T) {
	e := New(nil)

	err := e.RegisterFunction("double", func(args []interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, errors.New("double expects 1 argument")
		}
		num, ok := toFloat(args[0])
		if !ok {
			return nil, errors.New("double expects a number")
		}
		return num * 2, nil
	})
	require.NoError(t, err)

	result := e.Evaluate(domain.Formula("double(21)"), testContext())
	require.True(t, result.Success)
	assert.Equal(t, float64(42), result.Value)

	assert.Error(t, e.RegisterFunction("", nil))
}

func TestRegisterTransform(t *testing.T) {
	e := New(nil)

	err := e.RegisterTransform("exclaim", func(v interface{}) (interface{}, error) {
		return stringify(v) + "!", nil
	})
	require.NoError(t, err)

	result := e.ApplyMappings([]domain.FieldMapping{
		{Target: "msg", Expression: domain.Static("go"), Transform: "exclaim"},
	}, testContext())

	require.True(t, result.Success)
	assert.Equal(t, "go!", result.Result["msg"])
}
