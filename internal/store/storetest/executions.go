package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/interlock/internal/store"
	"github.com/dwsmith1983/interlock/pkg/types"
)

func mustGroup(t *testing.T, st store.Store, diagnosticSlug string) types.ExecutionGroup {
	t.Helper()
	g, err := st.UpsertGroup(context.Background(), types.ExecutionGroup{
		ProviderSlug:   "p",
		DiagnosticSlug: diagnosticSlug,
		GroupKey:       []types.FacetPair{{Facet: "variable_id", Value: "tas"}},
	})
	require.NoError(t, err)
	return g
}

// TestExecutionInsertIdempotent verifies that inserting two executions
// with the same (group_id, dataset_hash) returns the same row.
func TestExecutionInsertIdempotent(t *testing.T, st store.Store) {
	ctx := context.Background()
	g := mustGroup(t, st, "exec-idempotent-test")

	e1, err := st.InsertExecution(ctx, types.Execution{GroupID: g.ID, DatasetHash: "abc123"})
	require.NoError(t, err)
	e2, err := st.InsertExecution(ctx, types.Execution{GroupID: g.ID, DatasetHash: "abc123"})
	require.NoError(t, err)
	assert.Equal(t, e1.ID, e2.ID)
	assert.Equal(t, types.ExecutionPending, e2.Status)
}

// TestCompareAndSwapStatusHonorsFSM verifies that CompareAndSwapStatus
// rejects a transition the lifecycle state machine disallows, and that a
// stale "expected" value fails the swap even when the transition itself
// would otherwise be legal.
func TestCompareAndSwapStatusHonorsFSM(t *testing.T, st store.Store) {
	ctx := context.Background()
	g := mustGroup(t, st, "exec-fsm-test")
	e, err := st.InsertExecution(ctx, types.Execution{GroupID: g.ID, DatasetHash: "fsm-hash"})
	require.NoError(t, err)

	_, err = st.CompareAndSwapStatus(ctx, e.ID, types.ExecutionPending, types.ExecutionSucceeded, "")
	assert.Error(t, err, "pending->succeeded skips running and must be rejected")

	ok, err := st.CompareAndSwapStatus(ctx, e.ID, types.ExecutionPending, types.ExecutionRunning, "")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = st.CompareAndSwapStatus(ctx, e.ID, types.ExecutionPending, types.ExecutionRunning, "")
	require.NoError(t, err, "stale expected status fails the swap, not an error")
	assert.False(t, ok)

	fetched, err := st.GetExecution(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ExecutionRunning, fetched.Status)
	require.NotNil(t, fetched.StartedAt)
}

// TestOneRunningPerGroup verifies that two executions in the same group
// cannot both be running at once.
func TestOneRunningPerGroup(t *testing.T, st store.Store) {
	ctx := context.Background()
	g := mustGroup(t, st, "exec-one-running-test")

	e1, err := st.InsertExecution(ctx, types.Execution{GroupID: g.ID, DatasetHash: "hash-1"})
	require.NoError(t, err)
	e2, err := st.InsertExecution(ctx, types.Execution{GroupID: g.ID, DatasetHash: "hash-2"})
	require.NoError(t, err)

	ok, err := st.CompareAndSwapStatus(ctx, e1.ID, types.ExecutionPending, types.ExecutionRunning, "")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = st.CompareAndSwapStatus(ctx, e2.ID, types.ExecutionPending, types.ExecutionRunning, "")
	assert.Error(t, err, "the backend's unique-running-per-group constraint must reject a second concurrent running execution")
}

// TestRetryTransition verifies that a failed execution can only return
// to pending through an explicit retry, and that doing so increments
// retry_count and clears the terminal timestamps.
func TestRetryTransition(t *testing.T, st store.Store) {
	ctx := context.Background()
	g := mustGroup(t, st, "exec-retry-test")
	e, err := st.InsertExecution(ctx, types.Execution{GroupID: g.ID, DatasetHash: "retry-hash"})
	require.NoError(t, err)

	ok, err := st.CompareAndSwapStatus(ctx, e.ID, types.ExecutionPending, types.ExecutionRunning, "")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = st.CompareAndSwapStatus(ctx, e.ID, types.ExecutionRunning, types.ExecutionFailed, "exit code 1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = st.CompareAndSwapStatus(ctx, e.ID, types.ExecutionFailed, types.ExecutionPending, "manual retry")
	require.NoError(t, err)
	require.True(t, ok)

	fetched, err := st.GetExecution(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ExecutionPending, fetched.Status)
	assert.Equal(t, 1, fetched.RetryCount)
	assert.Nil(t, fetched.StartedAt)
	assert.Nil(t, fetched.FinishedAt)
}

// TestExecutionInputsRoundTrip verifies SetExecutionInputs/GetExecutionInputs.
func TestExecutionInputsRoundTrip(t *testing.T, st store.Store) {
	ctx := context.Background()
	g := mustGroup(t, st, "exec-inputs-test")
	e, err := st.InsertExecution(ctx, types.Execution{GroupID: g.ID, DatasetHash: "inputs-hash"})
	require.NoError(t, err)

	d1, err := st.UpsertDataset(ctx, types.Dataset{SourceType: types.SourceCMIP6, InstanceID: "inputs-test-1", Version: "v1"})
	require.NoError(t, err)
	d2, err := st.UpsertDataset(ctx, types.Dataset{SourceType: types.SourceCMIP6, InstanceID: "inputs-test-2", Version: "v1"})
	require.NoError(t, err)

	inputs := []types.ExecutionInput{
		{ExecutionID: e.ID, DatasetID: d1.ID, Version: "v1"},
		{ExecutionID: e.ID, DatasetID: d2.ID, Version: "v1"},
	}
	require.NoError(t, st.SetExecutionInputs(ctx, e.ID, inputs))

	fetched, err := st.GetExecutionInputs(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, fetched, 2)
}
