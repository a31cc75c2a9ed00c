// Package metrics exposes the cheap always-on counters via expvar, the
// same idiom the teacher uses, plus OpenTelemetry instruments for the
// solver pass and each execution.
package metrics

import (
	"context"
	"expvar"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	DatasetsIngestedTotal    = expvar.NewInt("datasets_ingested_total")
	FilesSkippedTotal        = expvar.NewInt("files_skipped_total")
	SolverPassesTotal        = expvar.NewInt("solver_passes_total")
	GroupsCreatedTotal       = expvar.NewInt("groups_created_total")
	GroupsStaleTotal         = expvar.NewInt("groups_stale_total")
	ExecutionsSubmittedTotal = expvar.NewInt("executions_submitted_total")
	ExecutionsSucceededTotal = expvar.NewInt("executions_succeeded_total")
	ExecutionsFailedTotal    = expvar.NewInt("executions_failed_total")
	ExecutionsCancelledTotal = expvar.NewInt("executions_cancelled_total")
	LostWorkersDetectedTotal = expvar.NewInt("lost_workers_detected_total")
	BreakerTripsTotal        = expvar.NewInt("breaker_trips_total")
)

var (
	tracer = otel.Tracer("refctl")
	meter  = otel.Meter("refctl")
)

// Instruments holds the OpenTelemetry instruments used by the solver and
// executor. Call Init once during startup; until Init has succeeded,
// RecordExecution and RecordSolvePass are no-ops, so components can be
// exercised without a configured MeterProvider, e.g. in tests.
type Instruments struct {
	executionDuration metric.Float64Histogram
	executionsTotal   metric.Int64Counter
	solveDuration      metric.Float64Histogram
}

var (
	instruments     *Instruments
	instrumentsOnce sync.Once
	instrumentsErr  error
)

// Init builds the package's OpenTelemetry instruments against the
// globally configured MeterProvider. Safe to call multiple times; only
// the first call takes effect.
func Init() error {
	instrumentsOnce.Do(func() {
		inst := &Instruments{}
		var err error

		inst.executionDuration, err = meter.Float64Histogram(
			"execution_duration_seconds",
			metric.WithDescription("Wall-clock duration of one diagnostic execution"),
			metric.WithUnit("s"),
		)
		if err != nil {
			instrumentsErr = err
			return
		}

		inst.executionsTotal, err = meter.Int64Counter(
			"executions_total",
			metric.WithDescription("Executions completed, by terminal status"),
		)
		if err != nil {
			instrumentsErr = err
			return
		}

		inst.solveDuration, err = meter.Float64Histogram(
			"solve_pass_duration_seconds",
			metric.WithDescription("Wall-clock duration of one solver pass"),
			metric.WithUnit("s"),
		)
		if err != nil {
			instrumentsErr = err
			return
		}

		instruments = inst
	})
	return instrumentsErr
}

// Tracer returns the package tracer used to span solver passes and
// executions.
func Tracer() trace.Tracer { return tracer }

// RecordExecution records one execution's terminal duration and status.
// A nil/uninitialized Instruments (Init never called) is a no-op.
func RecordExecution(ctx context.Context, seconds float64, status string) {
	if instruments == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	instruments.executionDuration.Record(ctx, seconds, attrs)
	instruments.executionsTotal.Add(ctx, 1, attrs)
}

// RecordSolvePass records one solver pass's wall-clock duration.
func RecordSolvePass(ctx context.Context, seconds float64) {
	if instruments == nil {
		return
	}
	instruments.solveDuration.Record(ctx, seconds)
}
