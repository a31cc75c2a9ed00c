package resolver

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/interlock/internal/store/sqlite"
	"github.com/dwsmith1983/interlock/pkg/types"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(sqlite.Config{Path: filepath.Join(t.TempDir(), "store.db")})
	require.NoError(t, err)
	require.NoError(t, st.Start(context.Background()))
	t.Cleanup(func() { st.Stop(context.Background()) })
	return st
}

func seedDataset(t *testing.T, st *sqlite.Store, instanceID, version string, facets map[string]string) int64 {
	t.Helper()
	ds, err := st.UpsertDataset(context.Background(), types.Dataset{
		SourceType: types.SourceCMIP6,
		InstanceID: instanceID,
		Version:    version,
		Facets:     facets,
	})
	require.NoError(t, err)
	return ds.ID
}

func seedFile(t *testing.T, st *sqlite.Store, datasetID int64, variableID string, start, end time.Time) {
	t.Helper()
	_, err := st.InsertFile(context.Background(), types.File{
		DatasetID:  datasetID,
		Path:       "/data/" + variableID,
		VariableID: variableID,
		StartTime:  &start,
		EndTime:    &end,
	})
	require.NoError(t, err)
}

func TestResolveGroupsBySourceID(t *testing.T) {
	st := newTestStore(t)
	d1 := seedDataset(t, st, "CMIP6.CMIP.A.m1.hist.r1.Amon.tas.gn", "v1", map[string]string{"source_id": "m1", "variable_id": "tas"})
	seedFile(t, st, d1, "tas", time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC))
	d2 := seedDataset(t, st, "CMIP6.CMIP.A.m2.hist.r1.Amon.tas.gn", "v1", map[string]string{"source_id": "m2", "variable_id": "tas"})
	seedFile(t, st, d2, "tas", time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC))

	diag := types.Diagnostic{
		ProviderSlug:   "prov",
		DiagnosticSlug: "diag",
		DataRequirements: []types.DataRequirement{
			{SourceType: types.SourceCMIP6, GroupBy: []string{"source_id"}},
		},
	}

	candidates, err := Resolve(context.Background(), st, diag)
	require.NoError(t, err)
	assert.Len(t, candidates, 2)
}

func TestRequireContiguousTimerangeDropsGapped(t *testing.T) {
	st := newTestStore(t)
	d1 := seedDataset(t, st, "CMIP6.CMIP.A.m1.hist.r1.Amon.tas.gn", "v1", map[string]string{"source_id": "m1", "variable_id": "tas"})
	seedFile(t, st, d1, "tas", time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2000, 2, 1, 0, 0, 0, 0, time.UTC))
	seedFile(t, st, d1, "tas", time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2001, 2, 1, 0, 0, 0, 0, time.UTC))

	diag := types.Diagnostic{
		ProviderSlug:   "prov",
		DiagnosticSlug: "diag",
		DataRequirements: []types.DataRequirement{
			{
				SourceType: types.SourceCMIP6,
				GroupBy:    []string{"source_id"},
				Constraints: []types.ConstraintSpec{
					{Kind: "require-contiguous", GroupBy: []string{"instance_id"}},
				},
			},
		},
	}

	candidates, err := Resolve(context.Background(), st, diag)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestAddSupplementaryDatasetAttachesAreacella(t *testing.T) {
	st := newTestStore(t)
	d1 := seedDataset(t, st, "CMIP6.CMIP.A.m1.hist.r1.Amon.tas.gn", "v1", map[string]string{"source_id": "m1", "grid_label": "gn", "variable_id": "tas"})
	seedFile(t, st, d1, "tas", time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC))
	area := seedDataset(t, st, "CMIP6.CMIP.A.m1.hist.r1.fx.areacella.gn", "v1", map[string]string{"source_id": "m1", "grid_label": "gn", "variable_id": "areacella"})
	seedFile(t, st, area, "areacella", time.Time{}, time.Time{})

	diag := types.Diagnostic{
		ProviderSlug:   "prov",
		DiagnosticSlug: "diag",
		DataRequirements: []types.DataRequirement{
			{
				SourceType: types.SourceCMIP6,
				GroupBy:    []string{"source_id"},
				Constraints: []types.ConstraintSpec{
					{
						Kind:                    "add-supplementary",
						MatchFacets:             []string{"source_id", "grid_label"},
						SupplementaryVariableID: "areacella",
					},
				},
			},
		},
	}

	candidates, err := Resolve(context.Background(), st, diag)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	rows := candidates[0].DatasetsBySource[types.SourceCMIP6]
	found := false
	for _, r := range rows {
		if r.VariableID == "areacella" {
			found = true
		}
	}
	assert.True(t, found, "expected areacella to be attached to the group")
}

func TestAddSupplementaryDatasetDropsWhenMissing(t *testing.T) {
	st := newTestStore(t)
	d1 := seedDataset(t, st, "CMIP6.CMIP.A.m1.hist.r1.Amon.tas.gn", "v1", map[string]string{"source_id": "m1", "grid_label": "gn", "variable_id": "tas"})
	seedFile(t, st, d1, "tas", time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC))

	diag := types.Diagnostic{
		ProviderSlug:   "prov",
		DiagnosticSlug: "diag",
		DataRequirements: []types.DataRequirement{
			{
				SourceType: types.SourceCMIP6,
				GroupBy:    []string{"source_id"},
				Constraints: []types.ConstraintSpec{
					{
						Kind:                    "add-supplementary",
						MatchFacets:             []string{"source_id", "grid_label"},
						SupplementaryVariableID: "areacella",
					},
				},
			},
		},
	}

	candidates, err := Resolve(context.Background(), st, diag)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}
