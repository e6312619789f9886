// Package loom provides the execution core for workflow automation: graph
// validation, data mapping between nodes, and retry handling with idempotent
// execution. It provides features like:
//   - An eight-stage validation pipeline with structured, path-addressed issues
//   - OAuth scope aggregation and complexity classification for valid graphs
//   - A safe, interpreted expression language for mapping node outputs
//   - Exponential-backoff retries with idempotency caching and a dead-letter queue
//   - Pluggable storage (in-memory or badger) and Prometheus metrics
//
// Basic usage:
//
//	rt, err := loom.New(loom.DefaultConfig(), logger)
//	if err != nil { ... }
//	defer rt.Close()
//
//	verdict := rt.Validator.Validate(graph)
//	result, err := rt.Retry.ExecuteWithRetry(ctx, "node-1", "exec-1", doWork, loom.ExecuteOptions{
//	    IdempotencyKey: "exec-1:node-1",
//	})
package loom

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/loomhq/loom/internal/adapters/mapping"
	"github.com/loomhq/loom/internal/adapters/observability"
	"github.com/loomhq/loom/internal/adapters/retry"
	"github.com/loomhq/loom/internal/adapters/storage"
	"github.com/loomhq/loom/internal/adapters/validator"
	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// Config controls storage, retry behavior and validator limits.
type Config = domain.Config

// WorkflowGraph is a candidate workflow: nodes plus directed edges.
type WorkflowGraph = domain.WorkflowGraph

// Node is a single workflow step.
type Node = domain.Node

// Edge is a directed connection between two nodes.
type Edge = domain.Edge

// ValidationResult is the validator's verdict: issues, required OAuth scopes
// and a complexity rating.
type ValidationResult = domain.ValidationResult

// ValidationIssue is one problem or warning, addressed by a JSON-pointer-like
// path into the graph.
type ValidationIssue = domain.ValidationIssue

// MappingExpression is one of the four expression variants: static,
// reference, expression or template.
type MappingExpression = domain.MappingExpression

// FieldMapping binds an expression to a target field path.
type FieldMapping = domain.FieldMapping

// MappingContext carries node outputs and variable maps for evaluation.
type MappingContext = domain.MappingContext

// EvalResult is the outcome of evaluating a single expression.
type EvalResult = domain.EvalResult

// MappingResult is the outcome of applying a set of field mappings.
type MappingResult = domain.MappingResult

// RetryPolicy controls attempt limits, backoff shape and which error classes
// are retried.
type RetryPolicy = domain.RetryPolicy

// RetryableExecution is the persisted retry state for one (execution, node)
// pair.
type RetryableExecution = domain.RetryableExecution

// DeadLetterItem is an execution parked after exhausting its retries.
type DeadLetterItem = domain.DeadLetterItem

// RetryStats is a point-in-time summary of retry manager state.
type RetryStats = domain.RetryStats

// ExecutionError carries the classified cause of a terminal failure.
type ExecutionError = domain.ExecutionError

// ExecuteOptions configures a single ExecuteWithRetry call.
type ExecuteOptions = ports.ExecuteOptions

// Executor is the unit of work wrapped by the retry manager.
type Executor = ports.Executor

// HelperFunc is a caller-registered expression helper.
type HelperFunc = ports.HelperFunc

// TransformFunc is a named value transform.
type TransformFunc = ports.TransformFunc

// Static builds a literal expression.
func Static(value interface{}) MappingExpression { return domain.Static(value) }

// Reference builds a node-output reference expression.
func Reference(nodeID, path string) MappingExpression { return domain.Reference(nodeID, path) }

// ReferenceWithFallback builds a reference that substitutes fallback when the
// path is absent or null.
func ReferenceWithFallback(nodeID, path string, fallback interface{}) MappingExpression {
	return domain.ReferenceWithFallback(nodeID, path, fallback)
}

// Formula builds an interpreted formula expression.
func Formula(formula string) MappingExpression { return domain.Formula(formula) }

// Template builds a {{placeholder}} template expression.
func Template(template string) MappingExpression { return domain.Template(template) }

// DefaultConfig returns the in-memory configuration with standard retry
// timing.
func DefaultConfig() *Config { return domain.DefaultConfig() }

// LoadConfig reads a YAML configuration file over the defaults.
func LoadConfig(path string) (*Config, error) { return domain.LoadConfig(path) }

// DefaultRetryPolicy returns the standard three-attempt policy.
func DefaultRetryPolicy() RetryPolicy { return domain.DefaultRetryPolicy() }

// NewExecutionID returns a fresh unique id for a workflow execution.
func NewExecutionID() string { return uuid.NewString() }

// MergeOutputs folds a node's result document into the accumulated execution
// state. Objects merge recursively, arrays concatenate, and mismatched shapes
// resolve in favour of the new results.
func MergeOutputs(state, results json.RawMessage) (json.RawMessage, error) {
	return domain.MergeStates(state, results)
}

// Option adjusts Runtime construction.
type Option func(*options)

type options struct {
	metrics ports.MetricsSink
	store   ports.Store
}

// WithPrometheus registers retry counters on the given registerer; pass nil
// for the default registry.
func WithPrometheus(reg prometheus.Registerer) Option {
	return func(o *options) { o.metrics = observability.NewPrometheusSink(reg) }
}

// WithMetricsSink installs a custom metrics sink.
func WithMetricsSink(sink ports.MetricsSink) Option {
	return func(o *options) { o.metrics = sink }
}

// WithStore overrides the configured storage backend.
func WithStore(store ports.Store) Option {
	return func(o *options) { o.store = store }
}

// Runtime bundles the three subsystems over shared storage and logging.
type Runtime struct {
	Validator ports.Validator
	Mapper    ports.Mapper
	Retry     ports.RetryManager

	store       ports.Store
	logger      *slog.Logger
	cleanupStop chan struct{}
	cleanupDone chan struct{}
}

func New(cfg *Config, logger *slog.Logger, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = ports.NoopMetrics{}
	}

	store := o.store
	if store == nil {
		var err error
		store, err = openStore(cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	rt := &Runtime{
		Validator:   validator.New(cfg.Validator, logger),
		Mapper:      mapping.New(logger),
		Retry:       retry.NewManager(store, cfg.Retry, logger, o.metrics),
		store:       store,
		logger:      logger.With("component", "runtime"),
		cleanupStop: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}

	go rt.cleanupLoop(cfg.Retry.CleanupInterval.Std())

	return rt, nil
}

func openStore(cfg *Config, logger *slog.Logger) (ports.Store, error) {
	switch cfg.Storage.Backend {
	case domain.StorageBadger:
		return storage.NewBadger(cfg.Storage.Path, logger)
	default:
		return storage.NewMemory(), nil
	}
}

func (rt *Runtime) cleanupLoop(interval time.Duration) {
	defer close(rt.cleanupDone)
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rt.cleanupStop:
			return
		case <-ticker.C:
			removed, err := rt.Retry.Cleanup()
			if err != nil {
				rt.logger.Warn("cleanup pass failed", "error", err)
				continue
			}
			if removed > 0 {
				rt.logger.Debug("cleanup pass removed expired entries", "removed", removed)
			}
		}
	}
}

// Close stops the background cleanup loop and closes the store.
func (rt *Runtime) Close() error {
	close(rt.cleanupStop)
	<-rt.cleanupDone
	return rt.store.Close()
}
