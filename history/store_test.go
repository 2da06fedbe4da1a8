package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SaveAndLoadRun(t *testing.T) {
	s := openTestStore(t)
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	run := Run{
		ID:                   "run-1",
		StartedAt:            started,
		FinishedAt:           started.Add(time.Minute),
		Backend:              "cosmos",
		Database:             "ShoppingDatabase",
		Container:            "ShoppingContainer",
		Query:                "SELECT * FROM c",
		Iterations:           3,
		AverageLatencyMs:     20,
		AverageRequestCharge: 2,
	}
	require.NoError(t, s.SaveRun(run))

	got, err := s.Run("run-1")
	require.NoError(t, err)
	assert.Equal(t, run, got)
}

func TestStore_RunNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Run("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestStore_RunsOrderedByStart(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	// ids sort opposite to start times
	require.NoError(t, s.SaveRun(Run{ID: "a", StartedAt: base.Add(2 * time.Hour)}))
	require.NoError(t, s.SaveRun(Run{ID: "b", StartedAt: base.Add(time.Hour)}))
	require.NoError(t, s.SaveRun(Run{ID: "c", StartedAt: base}))

	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	assert.Equal(t, "a", runs[2].ID)
}

func TestStore_Iterations(t *testing.T) {
	s := openTestStore(t)

	for i := 1; i <= 12; i++ {
		require.NoError(t, s.AppendIteration("run-1", Iteration{Iteration: i, LatencyMs: float64(i)}))
	}
	// iterations of another run sharing the id prefix stay separate
	require.NoError(t, s.AppendIteration("run-10", Iteration{Iteration: 1}))

	its, err := s.Iterations("run-1")
	require.NoError(t, err)
	require.Len(t, its, 12)
	for i, it := range its {
		assert.Equal(t, i+1, it.Iteration)
	}

	runs, err := s.Runs()
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestStore_Closed(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.SaveRun(Run{ID: "x"}), ErrStoreClosed)
	_, err = s.Runs()
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestUpperBound(t *testing.T) {
	assert.Equal(t, []byte("run0"), upperBound([]byte("run/")))
	assert.Equal(t, []byte("b"), upperBound([]byte{'a', 0xff}))
	assert.Nil(t, upperBound([]byte{0xff, 0xff}))
}
