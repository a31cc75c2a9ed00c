package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/interlock/internal/store"
	"github.com/dwsmith1983/interlock/pkg/types"
)

// TestDatasetVersioning verifies that upserting a newer version of an
// instance_id deactivates the older version, leaving exactly one active
// row per instance_id.
func TestDatasetVersioning(t *testing.T, st store.Store) {
	ctx := context.Background()

	d1, err := st.UpsertDataset(ctx, types.Dataset{
		SourceType: types.SourceCMIP6,
		InstanceID: "CMIP6.CMIP.inst.model.historical.r1i1p1f1.Amon.tas.gn",
		Version:    "v20190101",
		Facets:     map[string]string{"experiment_id": "historical", "variable_id": "tas"},
	})
	require.NoError(t, err)

	d2, err := st.UpsertDataset(ctx, types.Dataset{
		SourceType: types.SourceCMIP6,
		InstanceID: "CMIP6.CMIP.inst.model.historical.r1i1p1f1.Amon.tas.gn",
		Version:    "v20200101",
		Facets:     map[string]string{"experiment_id": "historical", "variable_id": "tas"},
	})
	require.NoError(t, err)
	assert.NotEqual(t, d1.ID, d2.ID)

	active, err := st.GetDatasetByInstance(ctx, types.SourceCMIP6, "CMIP6.CMIP.inst.model.historical.r1i1p1f1.Amon.tas.gn")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "v20200101", active.Version)
	assert.Equal(t, "historical", active.Facets["experiment_id"])

	all, err := st.ListActiveDatasets(ctx, types.SourceCMIP6)
	require.NoError(t, err)
	count := 0
	for _, d := range all {
		if d.InstanceID == active.InstanceID {
			count++
		}
	}
	assert.Equal(t, 1, count, "only the newest version should be active")
}

// TestGetDatasetByIDIncludesSuperseded verifies GetDataset returns a
// dataset row by surrogate key regardless of whether it is still the
// active version, since past Executions reference whatever version they
// actually ran against.
func TestGetDatasetByIDIncludesSuperseded(t *testing.T, st store.Store) {
	ctx := context.Background()

	d1, err := st.UpsertDataset(ctx, types.Dataset{
		SourceType: types.SourceCMIP6,
		InstanceID: "CMIP6.by-id-test.v1",
		Version:    "v1",
		Facets:     map[string]string{"variable_id": "tas"},
	})
	require.NoError(t, err)
	_, err = st.UpsertDataset(ctx, types.Dataset{
		SourceType: types.SourceCMIP6,
		InstanceID: "CMIP6.by-id-test.v1",
		Version:    "v2",
		Facets:     map[string]string{"variable_id": "tas"},
	})
	require.NoError(t, err)

	got, err := st.GetDataset(ctx, d1.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "v1", got.Version)
	assert.False(t, got.Active)

	missing, err := st.GetDataset(ctx, -1)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

// TestDatasetUpsertIdempotent verifies that re-ingesting the same
// (source_type, instance_id, version) is a no-op, not an error.
func TestDatasetUpsertIdempotent(t *testing.T, st store.Store) {
	ctx := context.Background()
	in := types.Dataset{
		SourceType: types.SourceObs4MIPs,
		InstanceID: "obs4MIPs.NASA-JPL.AIRS.ta.mon",
		Version:    "v1",
	}

	d1, err := st.UpsertDataset(ctx, in)
	require.NoError(t, err)
	d2, err := st.UpsertDataset(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, d1.ID, d2.ID)
}

// TestQueryCatalogFilters verifies the keep/exclude filter conjunction.
func TestQueryCatalogFilters(t *testing.T, st store.Store) {
	ctx := context.Background()

	d, err := st.UpsertDataset(ctx, types.Dataset{
		SourceType: types.SourceCMIP6,
		InstanceID: "CMIP6.filter-test.v1",
		Version:    "v1",
		Facets:     map[string]string{"source_id": "ModelA", "experiment_id": "ssp585"},
	})
	require.NoError(t, err)
	_, err = st.InsertFile(ctx, types.File{DatasetID: d.ID, Path: "/data/filter-test/tas.nc"})
	require.NoError(t, err)

	rows, err := st.QueryCatalog(ctx, types.SourceCMIP6, []types.Filter{
		{Keep: true, Facets: map[string][]string{"source_id": {"ModelA", "ModelB"}}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rows)

	excluded, err := st.QueryCatalog(ctx, types.SourceCMIP6, []types.Filter{
		{Keep: false, Facets: map[string][]string{"experiment_id": {"ssp585"}}},
	})
	require.NoError(t, err)
	for _, r := range excluded {
		assert.NotEqual(t, "CMIP6.filter-test.v1", r.InstanceID)
	}
}
