package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/interlock/internal/store"
	"github.com/dwsmith1983/interlock/pkg/types"
)

// TestRecordOutputsRejectsEscape verifies that an absolute or
// directory-escaping rel_path is rejected rather than recorded.
func TestRecordOutputsRejectsEscape(t *testing.T, st store.Store) {
	ctx := context.Background()
	g := mustGroup(t, st, "outputs-escape-test")
	e, err := st.InsertExecution(ctx, types.Execution{GroupID: g.ID, DatasetHash: "outputs-escape-hash"})
	require.NoError(t, err)

	_, err = st.RecordOutputs(ctx, e.ID, []types.OutputManifestEntry{{RelPath: "/etc/passwd", Type: types.OutputLog}})
	assert.Error(t, err)

	_, err = st.RecordOutputs(ctx, e.ID, []types.OutputManifestEntry{{RelPath: "../../etc/passwd", Type: types.OutputLog}})
	assert.Error(t, err)

	out, err := st.RecordOutputs(ctx, e.ID, []types.OutputManifestEntry{{RelPath: "output.json", Type: types.OutputJSON}})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

// TestOutputsRoundTrip verifies RecordOutputs/ListOutputs.
func TestOutputsRoundTrip(t *testing.T, st store.Store) {
	ctx := context.Background()
	g := mustGroup(t, st, "outputs-roundtrip-test")
	e, err := st.InsertExecution(ctx, types.Execution{GroupID: g.ID, DatasetHash: "outputs-roundtrip-hash"})
	require.NoError(t, err)

	manifest := []types.OutputManifestEntry{
		{RelPath: "diagnostic.json", Type: types.OutputJSON, MimeType: "application/json"},
		{RelPath: "plots/annual_cycle.png", Type: types.OutputPNG, MimeType: "image/png"},
	}
	_, err = st.RecordOutputs(ctx, e.ID, manifest)
	require.NoError(t, err)

	listed, err := st.ListOutputs(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

// TestMetricValuesRoundTrip verifies RecordMetricValues/ListMetricValues
// for both scalar and series values, including their facet coordinates.
func TestMetricValuesRoundTrip(t *testing.T, st store.Store) {
	ctx := context.Background()
	g := mustGroup(t, st, "metrics-roundtrip-test")
	e, err := st.InsertExecution(ctx, types.Execution{GroupID: g.ID, DatasetHash: "metrics-roundtrip-hash"})
	require.NoError(t, err)

	scalars := []types.MetricValue{
		{ExecutionID: e.ID, Facets: map[string]string{"region": "global", "season": "ann"}, Value: 0.42},
	}
	series := []types.SeriesMetricValue{
		{ExecutionID: e.ID, Facets: map[string]string{"region": "global"}, Index: []float64{1, 2, 3}, Values: []float64{0.1, 0.2, 0.3}},
	}
	require.NoError(t, st.RecordMetricValues(ctx, scalars, series))

	gotScalars, gotSeries, err := st.ListMetricValues(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, gotScalars, 1)
	assert.Equal(t, 0.42, gotScalars[0].Value)
	assert.Equal(t, "global", gotScalars[0].Facets["region"])
	require.Len(t, gotSeries, 1)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, gotSeries[0].Values)
}
