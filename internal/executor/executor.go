// Package executor runs diagnostic plugins against pending Executions and
// reports the result back to the store. Four variants satisfy the same
// Executor contract (synchronous, local-pool, distributed-queue,
// hpc-batch); all share the single-execution runOne invocation path
// defined here, mirroring the teacher's evaluator.Runner.Run used
// uniformly underneath internal/engine's fan-out.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/dwsmith1983/interlock/internal/errkind"
	"github.com/dwsmith1983/interlock/internal/metrics"
	"github.com/dwsmith1983/interlock/internal/store"
	"github.com/dwsmith1983/interlock/pkg/plugin"
	"github.com/dwsmith1983/interlock/pkg/types"
)

// Executor is the contract every variant satisfies. Submit is
// non-blocking and returns a handle; Join waits for everything submitted
// so far to reach a terminal state or until timeout elapses; Cancel is
// best-effort.
type Executor interface {
	Submit(ctx context.Context, executionID int64) (Future, error)
	Join(ctx context.Context, timeout time.Duration) (types.ExecuteSummary, error)
	Cancel(ctx context.Context, executionID int64) error
}

// Future is the non-blocking handle Submit returns.
type Future interface {
	ExecutionID() int64
	// Done returns a channel closed once the execution reaches a
	// terminal state.
	Done() <-chan struct{}
}

// Paths configures the directory roots every variant materializes
// per-execution working directories under.
type Paths struct {
	ResultsRoot string
	ScratchRoot string
	LogRoot     string
}

// future is the shared Future implementation.
type future struct {
	executionID int64
	done        chan struct{}
}

func newFuture(executionID int64) *future {
	return &future{executionID: executionID, done: make(chan struct{})}
}

func (f *future) ExecutionID() int64       { return f.executionID }
func (f *future) Done() <-chan struct{}    { return f.done }
func (f *future) complete()                { close(f.done) }

// AlertFn is the hook each variant fires a types.Alert through,
// mirroring the teacher's engine.alertFn callback (internal/engine.New's
// alertFn func(types.Alert) parameter) generalized from "per-diagnostic
// engine run" to "per-execution". A nil AlertFn disables alerting.
type AlertFn func(types.Alert)

// runOne materializes the execution's scratch and output directories,
// invokes the plugin, captures its log, records outputs/metrics, and
// transitions the Execution to its terminal status. It never returns an
// error for an execution-level failure — that failure is recorded on the
// Execution itself, per spec: a single failing execution never halts the
// batch. Returned errors are reserved for infrastructure/consistency
// problems the caller cannot recover from.
func runOne(ctx context.Context, st store.Store, paths Paths, exec types.Execution, logger *slog.Logger, alertFn AlertFn) error {
	if logger == nil {
		logger = slog.Default()
	}
	correlationID := uuid.NewString()
	token := ulid.Make().String()

	group, err := st.GetGroupByID(ctx, exec.GroupID)
	if err != nil {
		return errkind.Classify(errkind.Infrastructure, err)
	}
	if group == nil {
		return errkind.Classify(errkind.Consistency, fmt.Errorf("execution %d references missing group %d", exec.ID, exec.GroupID))
	}
	datasetsBySource, err := resolveGroupDatasets(ctx, st, exec.ID)
	if err != nil {
		return err
	}

	ok, err := st.CompareAndSwapStatus(ctx, exec.ID, types.ExecutionPending, types.ExecutionRunning, "")
	if err != nil {
		return errkind.Classify(errkind.Infrastructure, fmt.Errorf("starting execution %d: %w", exec.ID, err))
	}
	if !ok {
		// Another worker already claimed this execution (or it moved on
		// its own); nothing for this call to do.
		logger.Debug("executor: execution already claimed", "execution_id", exec.ID, "correlation_id", correlationID)
		return nil
	}

	scratchDir := filepath.Join(paths.ScratchRoot, token)
	outputDir := filepath.Join(paths.ResultsRoot, token)
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return failExecution(ctx, st, exec, group, fmt.Sprintf("creating scratch dir: %v", err), logger, correlationID, alertFn)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return failExecution(ctx, st, exec, group, fmt.Sprintf("creating output dir: %v", err), logger, correlationID, alertFn)
	}

	logBuf := &bytes.Buffer{}
	def := plugin.ExecutionDefinition{
		ProviderSlug:     group.ProviderSlug,
		DiagnosticSlug:   group.DiagnosticSlug,
		GroupKey:         group.GroupKey,
		DatasetsBySource: datasetsBySource,
		OutputDirectory:  outputDir,
		ScratchDirectory: scratchDir,
		LogSink:          logBuf,
	}

	plug, found := plugin.Get(group.ProviderSlug, group.DiagnosticSlug)
	if !found {
		return failExecution(ctx, st, exec, group, fmt.Sprintf("no registered plugin for %s/%s", group.ProviderSlug, group.DiagnosticSlug), logger, correlationID, alertFn)
	}

	started := time.Now()
	runErr := plug.Execute(ctx, def)

	logPath := filepath.Join(outputDir, "out.log")
	_ = os.WriteFile(logPath, logBuf.Bytes(), 0o644)

	if runErr != nil {
		metrics.RecordExecution(ctx, time.Since(started).Seconds(), string(types.ExecutionFailed))
		return failExecution(ctx, st, exec, group, fmt.Sprintf("diagnostic execute failed: %v", runErr), logger, correlationID, alertFn)
	}

	outBundle, metricBundle, buildErr := plug.BuildExecutionResult(def)
	if buildErr != nil {
		metrics.RecordExecution(ctx, time.Since(started).Seconds(), string(types.ExecutionFailed))
		return failExecution(ctx, st, exec, group, fmt.Sprintf("building execution result: %v", buildErr), logger, correlationID, alertFn)
	}

	if err := outBundle.DumpToJSON(filepath.Join(outputDir, "output.json")); err != nil {
		return failExecution(ctx, st, exec, group, fmt.Sprintf("writing output.json: %v", err), logger, correlationID, alertFn)
	}
	if err := metricBundle.DumpToJSON(filepath.Join(outputDir, "diagnostic.json")); err != nil {
		return failExecution(ctx, st, exec, group, fmt.Sprintf("writing diagnostic.json: %v", err), logger, correlationID, alertFn)
	}

	if _, err := st.RecordOutputs(ctx, exec.ID, outBundle.Manifest()); err != nil {
		return failExecution(ctx, st, exec, group, fmt.Sprintf("recording outputs: %v", err), logger, correlationID, alertFn)
	}

	rows, err := metricBundle.Flatten()
	if err != nil {
		return failExecution(ctx, st, exec, group, fmt.Sprintf("flattening metric bundle: %v", err), logger, correlationID, alertFn)
	}
	scalars := make([]types.MetricValue, 0, len(rows))
	for _, r := range rows {
		scalars = append(scalars, types.MetricValue{ExecutionID: exec.ID, Facets: r.Facets, Value: r.Value})
	}
	if err := st.RecordMetricValues(ctx, scalars, nil); err != nil {
		return failExecution(ctx, st, exec, group, fmt.Sprintf("recording metric values: %v", err), logger, correlationID, alertFn)
	}

	if ok, err := st.CompareAndSwapStatus(ctx, exec.ID, types.ExecutionRunning, types.ExecutionSucceeded, ""); err != nil {
		return errkind.Classify(errkind.Infrastructure, err)
	} else if !ok {
		return errkind.Classify(errkind.Consistency, fmt.Errorf("execution %d left running state unexpectedly", exec.ID))
	}
	metrics.ExecutionsSucceededTotal.Add(1)
	metrics.RecordExecution(ctx, time.Since(started).Seconds(), string(types.ExecutionSucceeded))

	_ = st.AppendEvent(ctx, types.Event{
		Kind:        types.EventExecutionSucceeded,
		GroupID:     group.ID,
		ExecutionID: exec.ID,
		Message:     "execution succeeded",
		Details:     map[string]interface{}{"correlation_id": correlationID},
		Timestamp:   time.Now(),
	})
	return nil
}

func failExecution(ctx context.Context, st store.Store, exec types.Execution, group *types.ExecutionGroup, reason string, logger *slog.Logger, correlationID string, alertFn AlertFn) error {
	logger.Warn("executor: execution failed", "execution_id", exec.ID, "reason", reason, "correlation_id", correlationID)
	if ok, err := st.CompareAndSwapStatus(ctx, exec.ID, types.ExecutionRunning, types.ExecutionFailed, reason); err != nil {
		return errkind.Classify(errkind.Infrastructure, err)
	} else if !ok {
		return errkind.Classify(errkind.Consistency, fmt.Errorf("execution %d left running state unexpectedly", exec.ID))
	}
	metrics.ExecutionsFailedTotal.Add(1)
	_ = st.AppendEvent(ctx, types.Event{
		Kind:        types.EventExecutionFailed,
		ExecutionID: exec.ID,
		Message:     reason,
		Details:     map[string]interface{}{"correlation_id": correlationID},
		Timestamp:   time.Now(),
	})
	if alertFn != nil {
		diagnostic := fmt.Sprintf("execution %d", exec.ID)
		if group != nil {
			diagnostic = fmt.Sprintf("%s/%s", group.ProviderSlug, group.DiagnosticSlug)
		}
		alertFn(types.Alert{
			Level:      types.AlertLevelError,
			Diagnostic: diagnostic,
			Message:    reason,
			Timestamp:  time.Now(),
		})
	}
	// The failure itself is recorded on the Execution, not propagated —
	// per spec, a single failing execution never halts the batch.
	return nil
}

// resolveGroupDatasets loads the dataset rows an execution's inputs
// reference, keyed by source type, for handing to the plugin contract.
// An execution's recorded inputs are pinned to the dataset version the
// solver resolved at enqueue time, which may since have been superseded —
// GetDataset (unlike GetDatasetByInstance) returns that exact row
// regardless of its current active flag.
func resolveGroupDatasets(ctx context.Context, st store.Store, execID int64) (map[types.SourceDatasetType][]store.CatalogRow, error) {
	inputs, err := st.GetExecutionInputs(ctx, execID)
	if err != nil {
		return nil, errkind.Classify(errkind.Infrastructure, err)
	}
	result := map[types.SourceDatasetType][]store.CatalogRow{}
	for _, in := range inputs {
		ds, err := st.GetDataset(ctx, in.DatasetID)
		if err != nil {
			return nil, errkind.Classify(errkind.Infrastructure, err)
		}
		if ds == nil {
			return nil, errkind.Classify(errkind.Consistency, fmt.Errorf("execution input references missing dataset %d", in.DatasetID))
		}
		files, err := st.ListFiles(ctx, ds.ID)
		if err != nil {
			return nil, errkind.Classify(errkind.Infrastructure, err)
		}
		for _, f := range files {
			result[ds.SourceType] = append(result[ds.SourceType], store.CatalogRow{
				DatasetID:  ds.ID,
				FileID:     f.ID,
				SourceType: ds.SourceType,
				InstanceID: ds.InstanceID,
				Version:    ds.Version,
				Path:       f.Path,
				VariableID: f.VariableID,
				StartTime:  f.StartTime,
				EndTime:    f.EndTime,
				Facets:     ds.Facets,
			})
		}
	}
	return result, nil
}

func errMissingExecution(id int64) error {
	return fmt.Errorf("execution %d not found", id)
}
