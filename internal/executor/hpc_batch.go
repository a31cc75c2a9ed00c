package executor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dwsmith1983/interlock/internal/errkind"
	"github.com/dwsmith1983/interlock/internal/hpcjob"
	"github.com/dwsmith1983/interlock/internal/metrics"
	"github.com/dwsmith1983/interlock/internal/store"
	"github.com/dwsmith1983/interlock/pkg/types"
)

// HPCBatchConfig configures the batch script each submission writes.
// The script re-invokes this same binary in its hidden worker subcommand
// so the job runs runOne in-process on the compute node, rather than
// shelling out to a separate per-diagnostic executable.
type HPCBatchConfig struct {
	Scheduler      hpcjob.Scheduler
	ScriptDir      string // where generated batch scripts are written
	BinaryPath     string // path to this binary, as seen from the compute node
	ConfigDir      string // passed to the worker subcommand via --config
	PollInterval   time.Duration
	ScriptTemplate string // optional override; %s is the worker invocation line
}

// HPCBatch submits one scheduler job per execution. A master goroutine
// polls each job's state; on a terminal state it reconciles the store
// (the job's in-process runOne call already recorded the real outcome
// unless the worker itself died, which this reconciliation treats as a
// lost worker), mirroring internal/trigger/emr.go's submit-then-poll
// shape generalized to slurm/pbs.
type HPCBatch struct {
	st      store.Store
	paths   Paths
	logger  *slog.Logger
	cfg     HPCBatchConfig
	AlertFn AlertFn

	mu      sync.Mutex
	jobs    map[int64]string // executionID -> jobID
	pending map[int64]*future
	summary types.ExecuteSummary

	wg sync.WaitGroup
}

// NewHPCBatch builds an HPCBatch executor.
func NewHPCBatch(st store.Store, paths Paths, logger *slog.Logger, cfg HPCBatchConfig) *HPCBatch {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	return &HPCBatch{
		st:      st,
		paths:   paths,
		logger:  logger,
		cfg:     cfg,
		jobs:    make(map[int64]string),
		pending: make(map[int64]*future),
	}
}

const defaultScriptTemplate = "#!/bin/sh\nexec %s\n"

// Submit writes a batch script invoking this binary's hidden worker
// subcommand for executionID, submits it to the configured scheduler,
// and starts a goroutine polling for its terminal state.
func (h *HPCBatch) Submit(ctx context.Context, executionID int64) (Future, error) {
	metrics.ExecutionsSubmittedTotal.Add(1)

	exec, err := h.st.GetExecution(ctx, executionID)
	if err != nil {
		return nil, errkind.Classify(errkind.Infrastructure, err)
	}
	if exec == nil {
		return nil, errkind.Classify(errkind.Consistency, errMissingExecution(executionID))
	}

	scriptPath := filepath.Join(h.cfg.ScriptDir, fmt.Sprintf("exec-%d.sh", executionID))
	invocation := fmt.Sprintf("%s internal-run-execution --id %d --config %s", h.cfg.BinaryPath, executionID, h.cfg.ConfigDir)
	tmpl := h.cfg.ScriptTemplate
	if tmpl == "" {
		tmpl = defaultScriptTemplate
	}
	if err := os.WriteFile(scriptPath, []byte(fmt.Sprintf(tmpl, invocation)), 0o755); err != nil {
		return nil, errkind.Classify(errkind.Infrastructure, fmt.Errorf("writing batch script: %w", err))
	}

	jobID, err := h.cfg.Scheduler.Submit(ctx, hpcjob.Spec{
		Name:       fmt.Sprintf("refctl-exec-%d", executionID),
		ScriptPath: scriptPath,
		WorkDir:    h.cfg.ScriptDir,
	})
	if err != nil {
		return nil, errkind.Classify(errkind.Infrastructure, fmt.Errorf("submitting batch job: %w", err))
	}

	if err := h.st.PutWorkerLease(ctx, types.WorkerLease{
		ExecutionID: executionID,
		WorkerID:    jobID,
		Variant:     types.ExecutorHPCBatch,
		HeartbeatAt: time.Now(),
	}); err != nil {
		h.logger.Error("executor: recording worker lease", "execution_id", executionID, "error", err)
	}

	f := newFuture(executionID)
	h.mu.Lock()
	h.jobs[executionID] = jobID
	h.pending[executionID] = f
	h.mu.Unlock()

	h.wg.Add(1)
	go h.poll(executionID, jobID, f)

	return f, nil
}

func (h *HPCBatch) poll(executionID int64, jobID string, f *future) {
	defer h.wg.Done()
	defer f.complete()

	ctx := context.Background()
	ticker := time.NewTicker(h.cfg.PollInterval)
	defer ticker.Stop()

	for range ticker.C {
		state, err := h.cfg.Scheduler.Poll(ctx, jobID)
		if err != nil {
			h.logger.Error("executor: polling hpc job", "job_id", jobID, "execution_id", executionID, "error", err)
			continue
		}
		if !hpcjob.IsTerminal(state) {
			_ = h.st.PutWorkerLease(ctx, types.WorkerLease{
				ExecutionID: executionID,
				WorkerID:    jobID,
				Variant:     types.ExecutorHPCBatch,
				HeartbeatAt: time.Now(),
			})
			continue
		}

		h.reconcile(ctx, executionID, jobID, state)
		return
	}
}

// reconcile runs once a batch job reaches a terminal scheduler state.
// If the in-process worker already transitioned the Execution (the
// common case), there is nothing to do; if it left the Execution stuck
// in running (the job died without the worker process reporting back),
// this is the lost-worker case and the Execution is failed directly.
func (h *HPCBatch) reconcile(ctx context.Context, executionID int64, jobID string, schedulerState hpcjob.State) {
	_ = h.st.DeleteWorkerLease(ctx, executionID)

	exec, err := h.st.GetExecution(ctx, executionID)
	if err != nil || exec == nil {
		return
	}

	if exec.Status == types.ExecutionRunning {
		reason := fmt.Sprintf("lost worker: hpc job %s reached terminal state %s without reporting back", jobID, schedulerState)
		if ok, err := h.st.CompareAndSwapStatus(ctx, executionID, types.ExecutionRunning, types.ExecutionFailed, reason); err == nil && ok {
			metrics.LostWorkersDetectedTotal.Add(1)
			metrics.ExecutionsFailedTotal.Add(1)
			_ = h.st.AppendEvent(ctx, types.Event{
				Kind:        types.EventLostWorkerDetected,
				ExecutionID: executionID,
				Message:     reason,
				Timestamp:   time.Now(),
			})
			if h.AlertFn != nil {
				h.AlertFn(types.Alert{
					Level:      types.AlertLevelError,
					Diagnostic: fmt.Sprintf("execution %d", executionID),
					Message:    reason,
					Timestamp:  time.Now(),
				})
			}
		}
		exec, _ = h.st.GetExecution(ctx, executionID)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.jobs, executionID)
	delete(h.pending, executionID)
	if exec != nil {
		switch exec.Status {
		case types.ExecutionSucceeded:
			h.summary.Succeeded++
		case types.ExecutionFailed:
			h.summary.Failed++
		case types.ExecutionCancelled:
			h.summary.Cancelled++
		}
	}
}

// Join waits for every job submitted so far to reach a terminal state,
// or for timeout to elapse.
func (h *HPCBatch) Join(ctx context.Context, timeout time.Duration) (types.ExecuteSummary, error) {
	var waitCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		waitCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	for {
		h.mu.Lock()
		futures := make([]*future, 0, len(h.pending))
		for _, f := range h.pending {
			futures = append(futures, f)
		}
		h.mu.Unlock()
		if len(futures) == 0 {
			break
		}
		select {
		case <-futures[0].Done():
		case <-waitCtx.Done():
			h.mu.Lock()
			summary := h.summary
			h.mu.Unlock()
			return summary, nil
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.summary, nil
}

// Cancel requests termination of the scheduler job backing an
// execution, if one has been submitted, and marks the Execution
// cancelled.
func (h *HPCBatch) Cancel(ctx context.Context, executionID int64) error {
	h.mu.Lock()
	jobID, ok := h.jobs[executionID]
	h.mu.Unlock()

	if ok {
		if err := h.cfg.Scheduler.Cancel(ctx, jobID); err != nil {
			h.logger.Error("executor: cancelling hpc job", "job_id", jobID, "execution_id", executionID, "error", err)
		}
	}

	if cok, err := h.st.CompareAndSwapStatus(ctx, executionID, types.ExecutionRunning, types.ExecutionCancelled, "cancelled"); err != nil {
		return errkind.Classify(errkind.Infrastructure, err)
	} else if cok {
		_ = h.st.AppendEvent(ctx, types.Event{
			Kind:        types.EventExecutionCancelled,
			ExecutionID: executionID,
			Message:     "cancelled",
			Timestamp:   time.Now(),
		})
		return nil
	}
	if pok, err := h.st.CompareAndSwapStatus(ctx, executionID, types.ExecutionPending, types.ExecutionCancelled, "cancelled before start"); err != nil {
		return errkind.Classify(errkind.Infrastructure, err)
	} else if pok {
		_ = h.st.AppendEvent(ctx, types.Event{
			Kind:        types.EventExecutionCancelled,
			ExecutionID: executionID,
			Message:     "cancelled before start",
			Timestamp:   time.Now(),
		})
	}
	return nil
}
