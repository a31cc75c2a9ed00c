package executor

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/dwsmith1983/interlock/internal/errkind"
	"github.com/dwsmith1983/interlock/internal/metrics"
	"github.com/dwsmith1983/interlock/internal/store"
	"github.com/dwsmith1983/interlock/pkg/types"
)

// LocalPool is a bounded worker pool generalized from the teacher's
// concurrent Evaluate fan-out (a sync.WaitGroup over resolved traits)
// into a persistent pool with a work queue: workers start once and pull
// submissions from a channel rather than being spawned per batch.
type LocalPool struct {
	st      store.Store
	paths   Paths
	logger  *slog.Logger
	AlertFn AlertFn

	work chan job
	wg   sync.WaitGroup

	mu      sync.Mutex
	summary types.ExecuteSummary
	pending map[int64]*future

	closeOnce sync.Once
}

type job struct {
	exec types.Execution
	fut  *future
}

// NewLocalPool starts size workers (default runtime.NumCPU() if size <=
// 0, matching internal/config's pool_size default) pulling from a
// shared work queue.
func NewLocalPool(st store.Store, paths Paths, logger *slog.Logger, size int) *LocalPool {
	if logger == nil {
		logger = slog.Default()
	}
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &LocalPool{
		st:      st,
		paths:   paths,
		logger:  logger,
		work:    make(chan job, size*4),
		pending: make(map[int64]*future),
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *LocalPool) worker() {
	defer p.wg.Done()
	for j := range p.work {
		p.run(j)
	}
}

func (p *LocalPool) run(j job) {
	defer j.fut.complete()

	ctx := context.Background()
	if err := runOne(ctx, p.st, p.paths, j.exec, p.logger, p.AlertFn); err != nil {
		p.logger.Error("executor: infrastructure error running execution", "execution_id", j.exec.ID, "error", err)
	}

	exec, err := p.st.GetExecution(ctx, j.exec.ID)
	if err != nil || exec == nil {
		return
	}
	p.finish(j.exec.ID, exec.Status)
}

func (p *LocalPool) finish(executionID int64, status types.ExecutionStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pending, executionID)
	switch status {
	case types.ExecutionSucceeded:
		p.summary.Succeeded++
	case types.ExecutionFailed:
		p.summary.Failed++
	case types.ExecutionCancelled:
		p.summary.Cancelled++
	}
}

// Submit enqueues the execution and returns immediately.
func (p *LocalPool) Submit(ctx context.Context, executionID int64) (Future, error) {
	metrics.ExecutionsSubmittedTotal.Add(1)

	exec, err := p.st.GetExecution(ctx, executionID)
	if err != nil {
		return nil, errkind.Classify(errkind.Infrastructure, err)
	}
	if exec == nil {
		return nil, errkind.Classify(errkind.Consistency, errMissingExecution(executionID))
	}

	f := newFuture(executionID)
	p.mu.Lock()
	p.pending[executionID] = f
	p.mu.Unlock()

	select {
	case p.work <- job{exec: *exec, fut: f}:
	case <-ctx.Done():
		p.mu.Lock()
		delete(p.pending, executionID)
		p.mu.Unlock()
		return nil, ctx.Err()
	}
	return f, nil
}

// Join waits for every currently pending submission to reach a terminal
// state or for timeout to elapse, whichever comes first. Outstanding
// pending submissions are not cancelled by Join itself — the caller
// decides whether to call Cancel on timeout, per the top-level
// solve-and-execute timeout semantics.
func (p *LocalPool) Join(ctx context.Context, timeout time.Duration) (types.ExecuteSummary, error) {
	deadline := time.Now().Add(timeout)
	if timeout <= 0 {
		deadline = time.Time{}
	}

	for {
		p.mu.Lock()
		n := len(p.pending)
		futures := make([]*future, 0, n)
		for _, f := range p.pending {
			futures = append(futures, f)
		}
		p.mu.Unlock()
		if n == 0 {
			break
		}

		var waitCtx context.Context
		var cancel context.CancelFunc
		if !deadline.IsZero() {
			waitCtx, cancel = context.WithDeadline(ctx, deadline)
		} else {
			waitCtx, cancel = context.WithCancel(ctx)
		}

		timedOut := false
		for _, f := range futures {
			select {
			case <-f.Done():
			case <-waitCtx.Done():
				timedOut = true
			}
			if timedOut {
				break
			}
		}
		cancel()
		if timedOut {
			break
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.summary, nil
}

// Cancel marks an execution as cancelled if it has not yet started
// running; a running submission finishes the current plugin invocation
// since this variant does not forcibly interrupt in-flight work.
func (p *LocalPool) Cancel(ctx context.Context, executionID int64) error {
	ok, err := p.st.CompareAndSwapStatus(ctx, executionID, types.ExecutionPending, types.ExecutionCancelled, "cancelled before start")
	if err != nil {
		return errkind.Classify(errkind.Infrastructure, err)
	}
	if ok {
		_ = p.st.AppendEvent(ctx, types.Event{
			Kind:        types.EventExecutionCancelled,
			ExecutionID: executionID,
			Message:     "cancelled before start",
			Timestamp:   time.Now(),
		})
	}
	return nil
}

// Shutdown closes the work queue and waits for all workers to exit. It
// is not part of the Executor contract; callers that own the pool's
// lifetime (e.g. the CLI's solve command) call it on exit.
func (p *LocalPool) Shutdown() {
	p.closeOnce.Do(func() { close(p.work) })
	p.wg.Wait()
}
