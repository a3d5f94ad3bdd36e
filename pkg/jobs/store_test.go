package jobs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_WriteGetRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())

	now := time.Date(2026, 1, 19, 12, 0, 0, 0, time.UTC)
	rec := &Record{
		JobID:       "job-1",
		Name:        "support-v1",
		DatasetName: "support",
		State:       StatePolling,
		RemoteState: "running",
		Polls:       3,
		PID:         os.Getpid(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, s.Write(rec))

	got, err := s.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, *rec, *got)
}

func TestStore_ListSortsNewestFirst(t *testing.T) {
	s := NewStore(t.TempDir())
	t1 := time.Date(2026, 1, 19, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	require.NoError(t, s.Write(&Record{JobID: "job-1", State: StateCompleted, CreatedAt: t1}))
	require.NoError(t, s.Write(&Record{JobID: "job-2", State: StateFailed, CreatedAt: t2}))

	got, err := s.List()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "job-2", got[0].JobID)
	assert.Equal(t, "job-1", got[1].JobID)
}

func TestStore_ListMissingRoot(t *testing.T) {
	got, err := NewStore(filepath.Join(t.TempDir(), "absent")).List()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_DeadTrackerIsDetached(t *testing.T) {
	s := NewStore(t.TempDir())
	// PIDs are bounded well below this on every supported platform.
	require.NoError(t, s.Write(&Record{JobID: "job-x", State: StatePolling, PID: 1 << 30}))

	got, err := s.Get("job-x")
	require.NoError(t, err)
	assert.Equal(t, StateDetached, got.State)

	again, err := s.Get("job-x")
	require.NoError(t, err)
	assert.Equal(t, StateDetached, again.State)
}

func TestStore_InvalidID(t *testing.T) {
	s := NewStore(t.TempDir())
	for _, id := range []string{"", "..", "a/b"} {
		assert.ErrorIs(t, s.Write(&Record{JobID: id}), ErrInvalidJobID, id)
		_, err := s.Get(id)
		assert.ErrorIs(t, err, ErrInvalidJobID, id)
	}
}

func TestState_Terminal(t *testing.T) {
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateCancelled.Terminal())
	assert.False(t, StatePolling.Terminal())
	assert.False(t, StateDetached.Terminal())
}
