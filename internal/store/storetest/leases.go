package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/interlock/internal/store"
	"github.com/dwsmith1983/interlock/pkg/types"
)

// TestWorkerLeaseCRUD verifies PutWorkerLease/GetWorkerLease/DeleteWorkerLease.
func TestWorkerLeaseCRUD(t *testing.T, st store.Store) {
	ctx := context.Background()
	g := mustGroup(t, st, "lease-crud-test")
	e, err := st.InsertExecution(ctx, types.Execution{GroupID: g.ID, DatasetHash: "lease-hash"})
	require.NoError(t, err)

	none, err := st.GetWorkerLease(ctx, e.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	lease := types.WorkerLease{ExecutionID: e.ID, WorkerID: "worker-1", Variant: types.ExecutorLocalPool, HeartbeatAt: time.Now().UTC()}
	require.NoError(t, st.PutWorkerLease(ctx, lease))

	fetched, err := st.GetWorkerLease(ctx, e.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, "worker-1", fetched.WorkerID)

	lease.WorkerID = "worker-2"
	require.NoError(t, st.PutWorkerLease(ctx, lease))
	fetched, err = st.GetWorkerLease(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "worker-2", fetched.WorkerID)

	require.NoError(t, st.DeleteWorkerLease(ctx, e.ID))
	fetched, err = st.GetWorkerLease(ctx, e.ID)
	require.NoError(t, err)
	assert.Nil(t, fetched)
}
