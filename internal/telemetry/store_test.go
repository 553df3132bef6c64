package telemetry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "telemetry.db")
	store, err := OpenStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndRetrieveEvents(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordEvent(ctx, "m1", "CHARGE", 0))
	require.NoError(t, store.RecordEvent(ctx, "m1", "FIRST_CRACK", 480000))
	require.NoError(t, store.RecordEvent(ctx, "m2", "CHARGE", 0))

	events, err := store.RecentEvents(ctx, "m1", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "FIRST_CRACK", events[0].EventType) // newest first
	assert.Equal(t, "CHARGE", events[1].EventType)
}

func TestRecentEventsRespectsLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordEvent(ctx, "m1", "TICK", float64(i)))
	}

	events, err := store.RecentEvents(ctx, "m1", 2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestRecordDriverError(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.RecordDriverError(ctx, "m1", "timeout", 3))
}

func TestRecentEventsReturnsEmptyForUnknownMachine(t *testing.T) {
	store := openTestStore(t)
	events, err := store.RecentEvents(context.Background(), "ghost", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
