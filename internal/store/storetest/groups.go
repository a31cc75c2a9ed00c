package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/interlock/internal/store"
	"github.com/dwsmith1983/interlock/pkg/types"
)

// TestGroupUpsertIdempotent verifies that re-upserting the same group key
// updates the existing row rather than duplicating it.
func TestGroupUpsertIdempotent(t *testing.T, st store.Store) {
	ctx := context.Background()
	key := []types.FacetPair{{Facet: "source_id", Value: "ModelA"}, {Facet: "variable_id", Value: "tas"}}

	g1, err := st.UpsertGroup(ctx, types.ExecutionGroup{
		ProviderSlug:   "pmp",
		DiagnosticSlug: "annual-cycle",
		GroupKey:       key,
		Dirty:          true,
	})
	require.NoError(t, err)

	g2, err := st.UpsertGroup(ctx, types.ExecutionGroup{
		ProviderSlug:   "pmp",
		DiagnosticSlug: "annual-cycle",
		GroupKey:       key,
		Dirty:          false,
	})
	require.NoError(t, err)

	assert.Equal(t, g1.ID, g2.ID)
	assert.False(t, g2.Dirty)

	fetched, err := st.GetGroup(ctx, "pmp", "annual-cycle", key)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, g1.ID, fetched.ID)
	assert.Equal(t, key, fetched.GroupKey)

	byID, err := st.GetGroupByID(ctx, g1.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "pmp", byID.ProviderSlug)
	assert.Equal(t, key, byID.GroupKey)

	missing, err := st.GetGroupByID(ctx, -1)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

// TestGroupKeyOrderSensitive verifies that two group keys containing the
// same pairs in a different order are distinct rows: group keys are
// treated as ordered, not as sets, so callers (the resolver) are
// responsible for sorting them canonically before calling UpsertGroup.
func TestGroupKeyOrderSensitive(t *testing.T, st store.Store) {
	ctx := context.Background()
	forward := []types.FacetPair{{Facet: "a", Value: "1"}, {Facet: "b", Value: "2"}}
	reversed := []types.FacetPair{{Facet: "b", Value: "2"}, {Facet: "a", Value: "1"}}

	g1, err := st.UpsertGroup(ctx, types.ExecutionGroup{ProviderSlug: "p", DiagnosticSlug: "order-test", GroupKey: forward})
	require.NoError(t, err)
	g2, err := st.UpsertGroup(ctx, types.ExecutionGroup{ProviderSlug: "p", DiagnosticSlug: "order-test", GroupKey: reversed})
	require.NoError(t, err)

	assert.NotEqual(t, g1.ID, g2.ID)
}

// TestMarkGroupStale verifies the stale flag round-trips through storage.
func TestMarkGroupStale(t *testing.T, st store.Store) {
	ctx := context.Background()
	key := []types.FacetPair{{Facet: "k", Value: "v"}}

	g, err := st.UpsertGroup(ctx, types.ExecutionGroup{ProviderSlug: "p", DiagnosticSlug: "stale-test", GroupKey: key})
	require.NoError(t, err)

	require.NoError(t, st.MarkGroupStale(ctx, g.ID, true))
	fetched, err := st.GetGroup(ctx, "p", "stale-test", key)
	require.NoError(t, err)
	assert.True(t, fetched.Stale)

	require.NoError(t, st.MarkGroupStale(ctx, g.ID, false))
	fetched, err = st.GetGroup(ctx, "p", "stale-test", key)
	require.NoError(t, err)
	assert.False(t, fetched.Stale)
}

// TestListGroupsFilters verifies substring filtering on provider and
// diagnostic slugs.
func TestListGroupsFilters(t *testing.T, st store.Store) {
	ctx := context.Background()

	_, err := st.UpsertGroup(ctx, types.ExecutionGroup{
		ProviderSlug:   "esmvaltool",
		DiagnosticSlug: "list-filter-sea-ice",
		GroupKey:       []types.FacetPair{{Facet: "k", Value: "v1"}},
	})
	require.NoError(t, err)
	_, err = st.UpsertGroup(ctx, types.ExecutionGroup{
		ProviderSlug:   "ilamb",
		DiagnosticSlug: "list-filter-soil-moisture",
		GroupKey:       []types.FacetPair{{Facet: "k", Value: "v2"}},
	})
	require.NoError(t, err)

	matches, err := st.ListGroups(ctx, "esmval", "")
	require.NoError(t, err)
	for _, g := range matches {
		assert.Contains(t, g.ProviderSlug, "esmval")
	}

	none, err := st.ListGroups(ctx, "", "list-filter-sea-ice")
	require.NoError(t, err)
	assert.NotEmpty(t, none)
}
