package executor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dwsmith1983/interlock/internal/errkind"
	"github.com/dwsmith1983/interlock/internal/metrics"
	"github.com/dwsmith1983/interlock/internal/store"
	"github.com/dwsmith1983/interlock/pkg/types"
)

// Synchronous runs each submission to completion before Submit returns.
// There is no pool and no queue; it exists for debugging a single
// diagnostic run without the indirection of a worker.
type Synchronous struct {
	st      store.Store
	paths   Paths
	logger  *slog.Logger
	AlertFn AlertFn

	mu      sync.Mutex
	summary types.ExecuteSummary
}

// NewSynchronous builds a Synchronous executor.
func NewSynchronous(st store.Store, paths Paths, logger *slog.Logger) *Synchronous {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronous{st: st, paths: paths, logger: logger}
}

// Submit runs the execution to completion and returns an already-done
// future.
func (s *Synchronous) Submit(ctx context.Context, executionID int64) (Future, error) {
	f := newFuture(executionID)
	defer f.complete()

	metrics.ExecutionsSubmittedTotal.Add(1)

	exec, err := s.st.GetExecution(ctx, executionID)
	if err != nil {
		return f, errkind.Classify(errkind.Infrastructure, err)
	}
	if exec == nil {
		return f, errkind.Classify(errkind.Consistency, errMissingExecution(executionID))
	}

	if err := runOne(ctx, s.st, s.paths, *exec, s.logger, s.AlertFn); err != nil {
		return f, err
	}

	s.recordTerminal(ctx, executionID)
	return f, nil
}

// Join is a no-op for Synchronous beyond reporting what has already
// happened — every submission already ran to completion before Submit
// returned.
func (s *Synchronous) Join(_ context.Context, _ time.Duration) (types.ExecuteSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary, nil
}

// Cancel transitions a still-pending execution to cancelled. A running
// or terminal execution cannot be cancelled by this variant since
// Submit never returns control while an execution is running.
func (s *Synchronous) Cancel(ctx context.Context, executionID int64) error {
	ok, err := s.st.CompareAndSwapStatus(ctx, executionID, types.ExecutionPending, types.ExecutionCancelled, "cancelled before start")
	if err != nil {
		return errkind.Classify(errkind.Infrastructure, err)
	}
	if ok {
		s.mu.Lock()
		s.summary.Cancelled++
		s.mu.Unlock()
		_ = s.st.AppendEvent(ctx, types.Event{
			Kind:        types.EventExecutionCancelled,
			ExecutionID: executionID,
			Message:     "cancelled before start",
			Timestamp:   time.Now(),
		})
	}
	return nil
}

func (s *Synchronous) recordTerminal(ctx context.Context, executionID int64) {
	exec, err := s.st.GetExecution(ctx, executionID)
	if err != nil || exec == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch exec.Status {
	case types.ExecutionSucceeded:
		s.summary.Succeeded++
	case types.ExecutionFailed:
		s.summary.Failed++
	case types.ExecutionCancelled:
		s.summary.Cancelled++
	}
}
