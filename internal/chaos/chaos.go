// internal/chaos/chaos.go
package chaos

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrSteadyStateInvalid aborts an experiment before any fault is injected.
var ErrSteadyStateInvalid = errors.New("steady state invalid - aborting experiment")

// Experiment defines a chaos engineering test
type Experiment struct {
	Name        string
	Hypothesis  string
	SteadyState []Metric
	Method      []Action
	Rollback    []Action
	Validation  []Assertion
	Duration    time.Duration
	Interval    time.Duration // sampling period, one second when zero
}

// Metric defines a measurable system property
type Metric struct {
	Name      string
	Query     func(context.Context) (float64, error)
	Threshold Threshold
}

type Threshold struct {
	Operator string // >, <, >=, <=, ==
	Value    float64
}

// Action is a fault injection or recovery step.
type Action struct {
	Type    string // latency, failure, partition, concurrent-requests, clear
	Target  string
	Execute func(context.Context) error
}

// Assertion validates experiment outcome
type Assertion struct {
	Metric    string
	Condition func(float64) bool
	Message   string
}

// Result captures experiment execution data
type Result struct {
	ExperimentName   string                 `json:"experiment_name"`
	StartTime        time.Time              `json:"start_time"`
	EndTime          time.Time              `json:"end_time"`
	Duration         time.Duration          `json:"duration"`
	HypothesisHeld   bool                   `json:"hypothesis_held"`
	SteadyStateValid bool                   `json:"steady_state_valid"`
	Violations       []MetricViolation      `json:"violations"`
	Observations     map[string][]DataPoint `json:"observations"`
	ErrorEvents      []ErrorEvent           `json:"error_events"`
	FailedAssertions []string               `json:"failed_assertions,omitempty"`
	MTTR             *time.Duration         `json:"mttr,omitempty"`
}

type MetricViolation struct {
	MetricName string    `json:"metric_name"`
	Expected   float64   `json:"expected"`
	Actual     float64   `json:"actual"`
	Timestamp  time.Time `json:"timestamp"`
}

type DataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type ErrorEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
	Component string    `json:"component"`
}

// Engine runs experiments and keeps their results.
type Engine struct {
	tracer  trace.Tracer
	logger  *logrus.Logger
	mu      sync.Mutex
	results []Result
}

func NewEngine(logger *logrus.Logger) *Engine {
	return &Engine{
		tracer: otel.Tracer("storefront/chaos"),
		logger: logger,
	}
}

// Results returns every completed experiment in run order.
func (e *Engine) Results() []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Result(nil), e.results...)
}

// Run validates the steady state, injects the method, samples the metrics for
// the experiment's duration, rolls back and checks the assertions. Rollback
// runs even when the caller's context ends early.
func (e *Engine) Run(ctx context.Context, exp Experiment) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "chaos.run_experiment",
		trace.WithAttributes(
			attribute.String("experiment.name", exp.Name),
		),
	)
	defer span.End()

	log := e.logger.WithField("experiment", exp.Name)
	result := &Result{
		ExperimentName: exp.Name,
		StartTime:      time.Now(),
		Observations:   make(map[string][]DataPoint),
		ErrorEvents:    make([]ErrorEvent, 0),
	}

	// Phase 1: Validate steady state
	span.AddEvent("validating_steady_state")
	if valid, violations := e.validateSteadyState(ctx, exp.SteadyState); !valid {
		result.Violations = violations
		log.WithField("violations", len(violations)).Warn("steady state invalid")
		return result, ErrSteadyStateInvalid
	}
	result.SteadyStateValid = true

	// Phase 2: Inject chaos
	span.AddEvent("injecting_chaos")
	log.WithField("hypothesis", exp.Hypothesis).Info("injecting faults")
	for _, action := range exp.Method {
		if err := action.Execute(ctx); err != nil {
			result.ErrorEvents = append(result.ErrorEvents, ErrorEvent{
				Timestamp: time.Now(),
				Error:     err.Error(),
				Component: action.Target,
			})
			span.RecordError(err)
		}
	}

	// Phase 3: Observe system behavior
	span.AddEvent("observing_system")
	e.observe(ctx, exp, result)

	// Phase 4: Rollback chaos injection
	span.AddEvent("rolling_back")
	rollbackCtx := context.WithoutCancel(ctx)
	for _, action := range exp.Rollback {
		if err := action.Execute(rollbackCtx); err != nil {
			span.RecordError(err)
			log.WithError(err).WithField("target", action.Target).Error("rollback failed")
		}
	}

	// Phase 5: Validate assertions
	span.AddEvent("validating_assertions")
	result.FailedAssertions = validateAssertions(exp.Validation, result)
	result.HypothesisHeld = len(result.FailedAssertions) == 0
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	e.mu.Lock()
	e.results = append(e.results, *result)
	e.mu.Unlock()

	span.SetAttributes(
		attribute.Bool("hypothesis_held", result.HypothesisHeld),
		attribute.Int("violations", len(result.Violations)),
	)
	log.WithFields(logrus.Fields{
		"hypothesis_held": result.HypothesisHeld,
		"violations":      len(result.Violations),
		"duration":        result.Duration.String(),
	}).Info("experiment finished")

	return result, nil
}

func (e *Engine) observe(ctx context.Context, exp Experiment, result *Result) {
	interval := exp.Interval
	if interval <= 0 {
		interval = time.Second
	}

	observationCtx, cancel := context.WithTimeout(ctx, exp.Duration)
	defer cancel()

	recoveryStart := time.Time{}
	systemRecovered := false

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-observationCtx.Done():
			return
		case <-ticker.C:
		}

		for _, metric := range exp.SteadyState {
			value, err := metric.Query(observationCtx)
			if err != nil {
				result.ErrorEvents = append(result.ErrorEvents, ErrorEvent{
					Timestamp: time.Now(),
					Error:     err.Error(),
					Component: metric.Name,
				})
				continue
			}

			result.Observations[metric.Name] = append(
				result.Observations[metric.Name],
				DataPoint{Timestamp: time.Now(), Value: value},
			)

			if !evaluateThreshold(value, metric.Threshold) {
				if recoveryStart.IsZero() {
					recoveryStart = time.Now()
				}
				result.Violations = append(result.Violations, MetricViolation{
					MetricName: metric.Name,
					Expected:   metric.Threshold.Value,
					Actual:     value,
					Timestamp:  time.Now(),
				})
			} else if !recoveryStart.IsZero() && !systemRecovered {
				mttr := time.Since(recoveryStart)
				result.MTTR = &mttr
				systemRecovered = true
			}
		}
	}
}

func (e *Engine) validateSteadyState(ctx context.Context, metrics []Metric) (bool, []MetricViolation) {
	violations := make([]MetricViolation, 0)

	for _, metric := range metrics {
		value, err := metric.Query(ctx)
		if err != nil {
			violations = append(violations, MetricViolation{
				MetricName: metric.Name,
				Expected:   metric.Threshold.Value,
				Actual:     -1,
				Timestamp:  time.Now(),
			})
			continue
		}

		if !evaluateThreshold(value, metric.Threshold) {
			violations = append(violations, MetricViolation{
				MetricName: metric.Name,
				Expected:   metric.Threshold.Value,
				Actual:     value,
				Timestamp:  time.Now(),
			})
		}
	}

	return len(violations) == 0, violations
}

func evaluateThreshold(value float64, threshold Threshold) bool {
	switch threshold.Operator {
	case ">":
		return value > threshold.Value
	case "<":
		return value < threshold.Value
	case ">=":
		return value >= threshold.Value
	case "<=":
		return value <= threshold.Value
	case "==":
		return value == threshold.Value
	default:
		return false
	}
}

// validateAssertions checks each assertion against the metric's final
// observation and returns the messages of those that failed.
func validateAssertions(assertions []Assertion, result *Result) []string {
	var failed []string
	for _, assertion := range assertions {
		observations := result.Observations[assertion.Metric]
		if len(observations) == 0 {
			failed = append(failed, assertion.Message)
			continue
		}

		finalValue := observations[len(observations)-1].Value
		if !assertion.Condition(finalValue) {
			failed = append(failed, assertion.Message)
		}
	}
	return failed
}
