package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dwsmith1983/interlock/internal/metrics"
	"github.com/dwsmith1983/interlock/internal/store"
	"github.com/dwsmith1983/interlock/pkg/types"
)

// LostWorkerOptions configures one CheckLostWorkers scan, mirroring
// internal/watchdog.CheckOptions: a store to scan, an injectable clock,
// and a staleness threshold.
type LostWorkerOptions struct {
	Store           store.Store
	Logger          *slog.Logger
	AlertFn         AlertFn
	Now             time.Time     // injectable for testing
	HeartbeatExpiry time.Duration // defaults to 10 minutes if zero
}

const defaultHeartbeatExpiry = 10 * time.Minute

// LostWorker records one execution found running with a stale or
// missing worker lease.
type LostWorker struct {
	ExecutionID int64
	WorkerID    string
	Variant     types.ExecutorVariant
}

// CheckLostWorkers scans every Execution in the running state and fails
// any whose worker lease is absent or has not heartbeated within
// HeartbeatExpiry — the on-restart resume path for "any running
// Execution whose worker/job is no longer alive is marked failed with a
// lost-worker reason," ported from
// internal/watchdog.CheckMissedSchedules (same scan-and-fail shape,
// repointed at Executions rather than pipeline schedules; there is no
// cross-host dedup lock here because failing an Execution is already
// idempotent via CompareAndSwapStatus).
func CheckLostWorkers(ctx context.Context, opts LostWorkerOptions) []LostWorker {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.HeartbeatExpiry <= 0 {
		opts.HeartbeatExpiry = defaultHeartbeatExpiry
	}

	running, err := opts.Store.ListRunningExecutions(ctx)
	if err != nil {
		opts.Logger.Error("executor: listing running executions for lost-worker scan", "error", err)
		return nil
	}

	var lost []LostWorker
	for _, exec := range running {
		if ctx.Err() != nil {
			return lost
		}

		lease, err := opts.Store.GetWorkerLease(ctx, exec.ID)
		if err != nil {
			opts.Logger.Error("executor: loading worker lease", "execution_id", exec.ID, "error", err)
			continue
		}

		var reason string
		var workerID string
		var variant types.ExecutorVariant
		switch {
		case lease == nil:
			reason = fmt.Sprintf("lost worker: execution %d is running with no recorded worker lease", exec.ID)
		case opts.Now.Sub(lease.HeartbeatAt) > opts.HeartbeatExpiry:
			reason = fmt.Sprintf("lost worker: execution %d worker %s last heartbeat %s ago, exceeding %s",
				exec.ID, lease.WorkerID, opts.Now.Sub(lease.HeartbeatAt).Truncate(time.Second), opts.HeartbeatExpiry)
			workerID = lease.WorkerID
			variant = lease.Variant
		default:
			continue // lease is fresh; worker is presumed alive
		}

		ok, err := opts.Store.CompareAndSwapStatus(ctx, exec.ID, types.ExecutionRunning, types.ExecutionFailed, reason)
		if err != nil {
			opts.Logger.Error("executor: failing lost-worker execution", "execution_id", exec.ID, "error", err)
			continue
		}
		if !ok {
			continue // already moved on
		}

		_ = opts.Store.DeleteWorkerLease(ctx, exec.ID)
		_ = opts.Store.AppendEvent(ctx, types.Event{
			Kind:        types.EventLostWorkerDetected,
			GroupID:     exec.GroupID,
			ExecutionID: exec.ID,
			Message:     reason,
			Timestamp:   opts.Now,
		})
		metrics.LostWorkersDetectedTotal.Add(1)
		metrics.ExecutionsFailedTotal.Add(1)
		if opts.AlertFn != nil {
			opts.AlertFn(types.Alert{
				Level:      types.AlertLevelError,
				Diagnostic: fmt.Sprintf("execution %d", exec.ID),
				Message:    reason,
				Timestamp:  opts.Now,
			})
		}

		opts.Logger.Warn("executor: lost worker detected", "execution_id", exec.ID, "worker_id", workerID, "variant", variant)
		lost = append(lost, LostWorker{ExecutionID: exec.ID, WorkerID: workerID, Variant: variant})
	}

	return lost
}
