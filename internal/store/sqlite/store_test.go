package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/interlock/internal/store/storetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	st, err := New(Config{Path: filepath.Join(dir, "store.db")})
	require.NoError(t, err)
	require.NoError(t, st.Start(context.Background()))
	t.Cleanup(func() { st.Stop(context.Background()) })
	return st
}

func TestConformance(t *testing.T) {
	t.Run("DatasetVersioning", func(t *testing.T) { storetest.TestDatasetVersioning(t, newTestStore(t)) })
	t.Run("DatasetUpsertIdempotent", func(t *testing.T) { storetest.TestDatasetUpsertIdempotent(t, newTestStore(t)) })
	t.Run("GetDatasetByIDIncludesSuperseded", func(t *testing.T) { storetest.TestGetDatasetByIDIncludesSuperseded(t, newTestStore(t)) })
	t.Run("QueryCatalogFilters", func(t *testing.T) { storetest.TestQueryCatalogFilters(t, newTestStore(t)) })
	t.Run("GroupUpsertIdempotent", func(t *testing.T) { storetest.TestGroupUpsertIdempotent(t, newTestStore(t)) })
	t.Run("GroupKeyOrderSensitive", func(t *testing.T) { storetest.TestGroupKeyOrderSensitive(t, newTestStore(t)) })
	t.Run("MarkGroupStale", func(t *testing.T) { storetest.TestMarkGroupStale(t, newTestStore(t)) })
	t.Run("ListGroupsFilters", func(t *testing.T) { storetest.TestListGroupsFilters(t, newTestStore(t)) })
	t.Run("ExecutionInsertIdempotent", func(t *testing.T) { storetest.TestExecutionInsertIdempotent(t, newTestStore(t)) })
	t.Run("CompareAndSwapStatusHonorsFSM", func(t *testing.T) { storetest.TestCompareAndSwapStatusHonorsFSM(t, newTestStore(t)) })
	t.Run("OneRunningPerGroup", func(t *testing.T) { storetest.TestOneRunningPerGroup(t, newTestStore(t)) })
	t.Run("RetryTransition", func(t *testing.T) { storetest.TestRetryTransition(t, newTestStore(t)) })
	t.Run("ExecutionInputsRoundTrip", func(t *testing.T) { storetest.TestExecutionInputsRoundTrip(t, newTestStore(t)) })
	t.Run("RecordOutputsRejectsEscape", func(t *testing.T) { storetest.TestRecordOutputsRejectsEscape(t, newTestStore(t)) })
	t.Run("OutputsRoundTrip", func(t *testing.T) { storetest.TestOutputsRoundTrip(t, newTestStore(t)) })
	t.Run("MetricValuesRoundTrip", func(t *testing.T) { storetest.TestMetricValuesRoundTrip(t, newTestStore(t)) })
	t.Run("EventsOrderedNewestFirst", func(t *testing.T) { storetest.TestEventsOrderedNewestFirst(t, newTestStore(t)) })
	t.Run("WorkerLeaseCRUD", func(t *testing.T) { storetest.TestWorkerLeaseCRUD(t, newTestStore(t)) })
	t.Run("LockMutualExclusion", func(t *testing.T) { storetest.TestLockMutualExclusion(t, newTestStore(t)) })
	t.Run("LockExpiry", func(t *testing.T) { storetest.TestLockExpiry(t, newTestStore(t)) })
}

func TestBackupAndPrune(t *testing.T) {
	st := newTestStore(t)
	for i := 0; i < 7; i++ {
		_, err := st.Backup(context.Background(), 3)
		require.NoError(t, err)
	}
	dir := filepath.Dir(st.path)
	entries, err := filepath.Glob(filepath.Join(dir, "*.bak.*"))
	require.NoError(t, err)
	require.LessOrEqual(t, len(entries), 3)
}
