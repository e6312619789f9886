package ports

import (
	"context"

	"github.com/loomhq/loom/internal/domain"
)

// Validator produces a structured verdict for a proposed workflow graph.
// It never mutates the graph and never panics outward.
type Validator interface {
	Validate(graph *domain.WorkflowGraph) domain.ValidationResult
	ValidateJSON(data []byte) domain.ValidationResult
}

// HelperFunc is a caller-registered expression helper. Arguments arrive
// already evaluated.
type HelperFunc func(args []interface{}) (interface{}, error)

// TransformFunc is a named value transform applied before field validation.
type TransformFunc func(value interface{}) (interface{}, error)

// Mapper resolves field mappings against a mapping context.
type Mapper interface {
	Evaluate(expr domain.MappingExpression, ctx *domain.MappingContext) domain.EvalResult
	ApplyMappings(mappings []domain.FieldMapping, ctx *domain.MappingContext) domain.MappingResult
	TestExpression(expr domain.MappingExpression, sample *domain.MappingContext) domain.EvalResult
	RegisterFunction(name string, fn HelperFunc) error
	RegisterTransform(name string, fn TransformFunc) error
}

// Executor is the caller-supplied unit of work wrapped by the retry manager.
type Executor func(ctx context.Context) (interface{}, error)

type ExecuteOptions struct {
	Policy         *domain.RetryPolicy
	IdempotencyKey string
	NodeType       string
}

// RetryManager wraps node execution attempts with backoff-based retry,
// idempotent result caching and dead-letter escalation.
type RetryManager interface {
	ExecuteWithRetry(ctx context.Context, nodeID, executionID string, exec Executor, opts ExecuteOptions) (interface{}, error)
	GetRetryStatus(executionID, nodeID string) (*domain.RetryableExecution, error)
	GetDLQItems() ([]domain.DeadLetterItem, error)
	ReplayFromDLQ(executionID, nodeID string) error
	Cleanup() (removed int, err error)
	GetStats() (domain.RetryStats, error)
}

// MetricsSink receives counter updates from the retry manager. The zero-cost
// default is NoopMetrics.
type MetricsSink interface {
	ExecutionStarted()
	ExecutionSucceeded()
	ExecutionFailed()
	RetryScheduled()
	DeadLettered()
	CacheHit()
}

type NoopMetrics struct{}

func (NoopMetrics) ExecutionStarted()   {}
func (NoopMetrics) ExecutionSucceeded() {}
func (NoopMetrics) ExecutionFailed()    {}
func (NoopMetrics) RetryScheduled()     {}
func (NoopMetrics) DeadLettered()       {}
func (NoopMetrics) CacheHit()           {}
