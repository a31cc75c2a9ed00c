package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/interlock/internal/store"
	"github.com/dwsmith1983/interlock/pkg/types"
)

// TestEventsOrderedNewestFirst verifies AppendEvent/ListEvents ordering
// and the limit parameter.
func TestEventsOrderedNewestFirst(t *testing.T, st store.Store) {
	ctx := context.Background()
	g := mustGroup(t, st, "events-order-test")

	for i, kind := range []types.EventKind{types.EventGroupCreated, types.EventGroupMarkedDirty, types.EventSolvePassCompleted} {
		require.NoError(t, st.AppendEvent(ctx, types.Event{
			Kind:    kind,
			GroupID: g.ID,
			Message: "event",
			Details: map[string]interface{}{"seq": i},
		}))
	}

	events, err := st.ListEvents(ctx, g.ID, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, types.EventSolvePassCompleted, events[0].Kind)

	limited, err := st.ListEvents(ctx, g.ID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
