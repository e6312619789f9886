package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom/internal/domain"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	return New(domain.ValidatorConfig{SoftNodeLimit: 50}, nil)
}

func sampleGraph() *domain.WorkflowGraph {
	return &domain.WorkflowGraph{
		ID:   "wf-1",
		Name: "welcome mail",
		Nodes: []domain.Node{
			{ID: "a", Type: "trigger.schedule.daily", Params: map[string]interface{}{"schedule": "0 9 * * *"}},
			{ID: "b", Type: "action.gmail.send", Params: map[string]interface{}{"recipient": "ops@example.com"}},
		},
		Edges: []domain.Edge{
			{ID: "e1", Source: "a", Target: "b"},
		},
	}
}

func findIssue(result domain.ValidationResult, path, code string) *domain.ValidationIssue {
	for i := range result.Issues {
		if result.Issues[i].Path == path && result.Issues[i].Code == code {
			return &result.Issues[i]
		}
	}
	return nil
}

func TestValidateAcceptsWellFormedGraph(t *testing.T) {
	v := newTestValidator(t)

	result := v.Validate(sampleGraph())

	assert.True(t, result.Valid)
	assert.Empty(t, result.Issues)
	assert.Equal(t, domain.ComplexitySimple, result.Complexity)
	assert.Equal(t, []string{"https://www.googleapis.com/auth/gmail.send"}, result.RequiredScopes)
}

func TestValidateIsIdempotent(t *testing.T) {
	v := newTestValidator(t)
	graph := sampleGraph()
	// Multiple secret-like params so the warning order depends on map
	// iteration unless the validator sorts it.
	graph.Nodes[1].Params = map[string]interface{}{
		"recipient": "ops@example.com",
		"api_key":   "sk-live-1234",
		"token":     "tok-5678",
		"secret":    "hunter2",
		"password":  "pass-9",
	}

	first := v.Validate(graph)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, v.Validate(graph))
	}
}

func TestValidateMissingRecipient(t *testing.T) {
	v := newTestValidator(t)
	graph := sampleGraph()
	graph.Nodes[1].Params = map[string]interface{}{"subject": "hello"}

	result := v.Validate(graph)

	require.False(t, result.Valid)
	issue := findIssue(result, "/nodes/b/params/recipient", "missing_required_param")
	require.NotNil(t, issue)
	assert.Equal(t, domain.SeverityError, issue.Severity)
}

func TestValidateDetectsCycle(t *testing.T) {
	v := newTestValidator(t)
	graph := sampleGraph()
	graph.Edges = append(graph.Edges, domain.Edge{ID: "e2", Source: "b", Target: "a"})

	result := v.Validate(graph)

	require.False(t, result.Valid)
	assert.NotNil(t, findIssue(result, "/", "cycle_detected"))
}

func TestValidateDanglingEdge(t *testing.T) {
	v := newTestValidator(t)
	graph := sampleGraph()
	graph.Edges = append(graph.Edges, domain.Edge{ID: "e2", Source: "b", Target: "ghost"})

	result := v.Validate(graph)

	require.False(t, result.Valid)
	assert.NotNil(t, findIssue(result, "/edges/e2/target", "dangling_edge"))
}

func TestValidateDuplicateNodeID(t *testing.T) {
	v := newTestValidator(t)
	graph := sampleGraph()
	graph.Nodes = append(graph.Nodes, domain.Node{ID: "a", Type: "logger.console.write"})

	result := v.Validate(graph)

	require.False(t, result.Valid)
	assert.NotNil(t, findIssue(result, "/nodes/a/id", "duplicate_node_id"))
}

func TestValidateEmptyNodeList(t *testing.T) {
	v := newTestValidator(t)
	graph := &domain.WorkflowGraph{
		ID:    "wf-empty",
		Name:  "empty",
		Nodes: []domain.Node{},
		Edges: []domain.Edge{},
	}

	result := v.Validate(graph)

	require.False(t, result.Valid)
	assert.NotNil(t, findIssue(result, "/nodes", "schema_violation"))
}

func TestValidateNilGraph(t *testing.T) {
	v := newTestValidator(t)

	result := v.Validate(nil)

	require.False(t, result.Valid)
	assert.NotNil(t, findIssue(result, "/", "missing_graph"))
}

func TestValidateInvalidCategory(t *testing.T) {
	v := newTestValidator(t)
	graph := sampleGraph()
	graph.Nodes[0].Type = "widget.schedule.daily"

	result := v.Validate(graph)

	require.False(t, result.Valid)
	assert.NotNil(t, findIssue(result, "/nodes/a/type", "invalid_category"))
}

func TestValidateRuntimeIncompatibleType(t *testing.T) {
	v := newTestValidator(t)
	graph := sampleGraph()
	graph.Nodes = append(graph.Nodes, domain.Node{ID: "c", Type: "action.shell.run"})

	result := v.Validate(graph)

	require.False(t, result.Valid)
	assert.NotNil(t, findIssue(result, "/nodes/c/type", "runtime_incompatible"))
}

func TestValidateInsecureURLWarns(t *testing.T) {
	v := newTestValidator(t)
	graph := sampleGraph()
	graph.Nodes = append(graph.Nodes, domain.Node{
		ID:   "c",
		Type: "action.http.request",
		Params: map[string]interface{}{
			"url": "http://internal.example.com/hook",
		},
	})
	graph.Edges = append(graph.Edges, domain.Edge{ID: "e2", Source: "b", Target: "c"})

	result := v.Validate(graph)

	assert.True(t, result.Valid)
	issue := findIssue(result, "/nodes/c/params/url", "insecure_url")
	require.NotNil(t, issue)
	assert.Equal(t, domain.SeverityWarning, issue.Severity)
}

func TestValidateSecurityWarnings(t *testing.T) {
	v := newTestValidator(t)
	graph := sampleGraph()
	graph.Nodes[1].Params = map[string]interface{}{
		"recipient": "ops@example.com",
		"body":      "your password will be reset",
		"api_key":   "sk-live-1234",
	}

	result := v.Validate(graph)

	assert.True(t, result.Valid)
	assert.NotNil(t, findIssue(result, "/nodes/b/params", "sensitive_term"))
	assert.NotNil(t, findIssue(result, "/nodes/b/params/api_key", "unparameterized_secret"))
}

func TestValidateParameterizedSecretDoesNotWarn(t *testing.T) {
	v := newTestValidator(t)
	graph := sampleGraph()
	graph.Nodes[1].Params = map[string]interface{}{
		"recipient": "ops@example.com",
		"api_key":   "{{secrets.gmail}}",
	}

	result := v.Validate(graph)

	assert.Nil(t, findIssue(result, "/nodes/b/params/api_key", "unparameterized_secret"))
}

func TestValidateSoftNodeLimitWarns(t *testing.T) {
	v := New(domain.ValidatorConfig{SoftNodeLimit: 2}, nil)
	graph := sampleGraph()
	graph.Nodes = append(graph.Nodes, domain.Node{ID: "c", Type: "logger.console.write"})

	result := v.Validate(graph)

	assert.True(t, result.Valid)
	assert.NotNil(t, findIssue(result, "/nodes", "graph_size"))
}

func TestValidateAggregatesScopesSorted(t *testing.T) {
	v := newTestValidator(t)
	graph := sampleGraph()
	graph.Nodes = append(graph.Nodes,
		domain.Node{ID: "c", Type: "action.slack.post", Params: map[string]interface{}{"channel": "#ops"}},
		domain.Node{ID: "d", Type: "action.sheets.append", Params: map[string]interface{}{"spreadsheet_id": "sheet-1"}},
		domain.Node{ID: "e", Type: "action.gmail.send", Params: map[string]interface{}{"recipient": "a@b.c"}},
	)

	result := v.Validate(graph)

	assert.Equal(t, []string{
		"chat:write",
		"https://www.googleapis.com/auth/gmail.send",
		"https://www.googleapis.com/auth/spreadsheets",
	}, result.RequiredScopes)
}

func TestClassifyComplexityBands(t *testing.T) {
	build := func(nodes, edges int) *domain.WorkflowGraph {
		g := &domain.WorkflowGraph{}
		g.Nodes = make([]domain.Node, nodes)
		g.Edges = make([]domain.Edge, edges)
		return g
	}

	assert.Equal(t, domain.ComplexitySimple, classifyComplexity(build(3, 2)))
	assert.Equal(t, domain.ComplexityMedium, classifyComplexity(build(4, 3)))
	assert.Equal(t, domain.ComplexityMedium, classifyComplexity(build(10, 15)))
	assert.Equal(t, domain.ComplexityComplex, classifyComplexity(build(11, 20)))
	assert.Equal(t, domain.ComplexityUnknown, classifyComplexity(build(26, 30)))
}

func TestValidateJSONMalformedInput(t *testing.T) {
	v := newTestValidator(t)

	result := v.ValidateJSON([]byte(`{"id": "wf-1", "nodes": "nope"`))

	require.False(t, result.Valid)
	assert.NotNil(t, findIssue(result, "/", "malformed_graph"))
	assert.Equal(t, domain.ComplexityUnknown, result.Complexity)
}

func TestValidateJSONRoundTrip(t *testing.T) {
	v := newTestValidator(t)

	result := v.ValidateJSON([]byte(`{
		"id": "wf-2",
		"name": "ping",
		"nodes": [
			{"id": "t", "type": "trigger.webhook.receive", "params": {}},
			{"id": "h", "type": "action.http.request", "params": {"url": "https://example.com"}}
		],
		"edges": [{"id": "e", "source": "t", "target": "h"}]
	}`))

	assert.True(t, result.Valid)
	assert.Empty(t, result.Issues)
}
