package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/dwsmith1983/interlock/internal/errkind"
	"github.com/dwsmith1983/interlock/internal/metrics"
	"github.com/dwsmith1983/interlock/internal/store"
	"github.com/dwsmith1983/interlock/pkg/types"
)

// SQSAPI is the subset of the AWS SQS client the distributed-queue
// variant uses, generalized from the teacher's AddJobFlowSteps-shaped
// AWS SDK usage (a narrow interface over the concrete client so tests
// can substitute a fake).
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// submissionMessage is the body of a message placed on the work queue.
type submissionMessage struct {
	ExecutionID int64 `json:"executionId"`
}

// DistributedQueue submits executions as messages on an SQS queue keyed
// by (provider, diagnostic) at the queue level — callers route to a
// provider-specific queue URL by constructing one DistributedQueue per
// queue. A pool of long-polling workers drains the queue and runs
// runOne; completion is reported back by updating the store directly,
// mirroring how the teacher's AWS-backed triggers report status via a
// side channel rather than the message itself.
type DistributedQueue struct {
	st       store.Store
	paths    Paths
	logger   *slog.Logger
	AlertFn  AlertFn
	client   SQSAPI
	queueURL string

	// maxReceives bounds transient-failure redelivery; once a message's
	// ApproximateReceiveCount reaches this, it is deleted rather than
	// left to redeliver.
	maxReceives int32

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	summary types.ExecuteSummary
	pending map[int64]*future
}

// DistributedQueueConfig configures a DistributedQueue executor.
type DistributedQueueConfig struct {
	QueueURL    string
	Workers     int
	MaxReceives int32 // default 3
}

// NewDistributedQueue starts cfg.Workers long-poll consumers against
// cfg.QueueURL.
func NewDistributedQueue(ctx context.Context, st store.Store, paths Paths, logger *slog.Logger, client SQSAPI, cfg DistributedQueueConfig) *DistributedQueue {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxReceives <= 0 {
		cfg.MaxReceives = 3
	}

	workerCtx, cancel := context.WithCancel(ctx)
	q := &DistributedQueue{
		st:          st,
		paths:       paths,
		logger:      logger,
		client:      client,
		queueURL:    cfg.QueueURL,
		maxReceives: cfg.MaxReceives,
		cancel:      cancel,
		pending:     make(map[int64]*future),
	}
	for i := 0; i < cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(workerCtx)
	}
	return q
}

// Submit writes a message naming the execution to the queue and
// returns a future the local process tracks; a separate orchestrator
// process consuming the same queue would not see this future resolve,
// but would observe the terminal status via the store directly.
func (q *DistributedQueue) Submit(ctx context.Context, executionID int64) (Future, error) {
	metrics.ExecutionsSubmittedTotal.Add(1)

	body, err := json.Marshal(submissionMessage{ExecutionID: executionID})
	if err != nil {
		return nil, errkind.Classify(errkind.Infrastructure, err)
	}
	bodyStr := string(body)

	if _, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &q.queueURL,
		MessageBody: &bodyStr,
	}); err != nil {
		return nil, errkind.Classify(errkind.Infrastructure, fmt.Errorf("sending submission message: %w", err))
	}

	f := newFuture(executionID)
	q.mu.Lock()
	q.pending[executionID] = f
	q.mu.Unlock()
	return f, nil
}

func (q *DistributedQueue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:                    &q.queueURL,
			MaxNumberOfMessages:         1,
			WaitTimeSeconds:             20,
			MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{sqstypes.MessageSystemAttributeNameApproximateReceiveCount},
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.logger.Error("executor: receiving from queue", "error", err)
			continue
		}

		for _, msg := range out.Messages {
			q.handle(ctx, msg)
		}
	}
}

func (q *DistributedQueue) handle(ctx context.Context, msg sqstypes.Message) {
	var sub submissionMessage
	body := ""
	if msg.Body != nil {
		body = *msg.Body
	}
	if err := json.Unmarshal([]byte(body), &sub); err != nil {
		q.logger.Error("executor: malformed submission message, deleting", "error", err)
		q.delete(ctx, msg)
		return
	}

	receiveCount := int32(1)
	if v, ok := msg.Attributes["ApproximateReceiveCount"]; ok {
		fmt.Sscanf(v, "%d", &receiveCount)
	}

	exec, err := q.st.GetExecution(ctx, sub.ExecutionID)
	if err != nil {
		// Transient: leave the message for redelivery (up to
		// maxReceives) rather than deleting it.
		q.logger.Error("executor: loading execution, leaving for redelivery", "execution_id", sub.ExecutionID, "error", err)
		if receiveCount >= q.maxReceives {
			q.delete(ctx, msg)
		}
		return
	}
	if exec == nil {
		q.delete(ctx, msg)
		return
	}

	runErr := runOne(ctx, q.st, q.paths, *exec, q.logger, q.AlertFn)
	if runErr != nil && errkind.ClassOf(runErr) == errkind.Infrastructure && receiveCount < q.maxReceives {
		// Transient infrastructure failure: leave the message visible
		// again for another worker to redeliver.
		return
	}

	// Either it succeeded, or it is an application failure (already
	// recorded on the Execution by runOne), or redelivery attempts are
	// exhausted — in all cases the message's job here is done.
	q.delete(ctx, msg)

	q.mu.Lock()
	f := q.pending[sub.ExecutionID]
	delete(q.pending, sub.ExecutionID)
	q.mu.Unlock()
	if f != nil {
		f.complete()
	}

	q.finish(ctx, sub.ExecutionID)
}

func (q *DistributedQueue) delete(ctx context.Context, msg sqstypes.Message) {
	if msg.ReceiptHandle == nil {
		return
	}
	if _, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      &q.queueURL,
		ReceiptHandle: msg.ReceiptHandle,
	}); err != nil {
		q.logger.Error("executor: deleting queue message", "error", err)
	}
}

func (q *DistributedQueue) finish(ctx context.Context, executionID int64) {
	exec, err := q.st.GetExecution(ctx, executionID)
	if err != nil || exec == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	switch exec.Status {
	case types.ExecutionSucceeded:
		q.summary.Succeeded++
	case types.ExecutionFailed:
		q.summary.Failed++
	case types.ExecutionCancelled:
		q.summary.Cancelled++
	}
}

// Join waits for every submission tracked locally to reach a terminal
// state, or for timeout to elapse.
func (q *DistributedQueue) Join(ctx context.Context, timeout time.Duration) (types.ExecuteSummary, error) {
	var waitCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		waitCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	for {
		q.mu.Lock()
		futures := make([]*future, 0, len(q.pending))
		for _, f := range q.pending {
			futures = append(futures, f)
		}
		q.mu.Unlock()
		if len(futures) == 0 {
			break
		}
		select {
		case <-futures[0].Done():
		case <-waitCtx.Done():
			q.mu.Lock()
			summary := q.summary
			q.mu.Unlock()
			return summary, nil
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	return q.summary, nil
}

// Cancel transitions a still-pending execution to cancelled. The queued
// message will still be received and, finding the execution no longer
// pending, runOne's compare-and-swap will no-op.
func (q *DistributedQueue) Cancel(ctx context.Context, executionID int64) error {
	ok, err := q.st.CompareAndSwapStatus(ctx, executionID, types.ExecutionPending, types.ExecutionCancelled, "cancelled before start")
	if err != nil {
		return errkind.Classify(errkind.Infrastructure, err)
	}
	if ok {
		_ = q.st.AppendEvent(ctx, types.Event{
			Kind:        types.EventExecutionCancelled,
			ExecutionID: executionID,
			Message:     "cancelled before start",
			Timestamp:   time.Now(),
		})
	}
	return nil
}

// Shutdown stops all worker goroutines.
func (q *DistributedQueue) Shutdown() {
	q.cancel()
	q.wg.Wait()
}
