package runlog

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords(base time.Time) []Record {
	return []Record{
		{RunID: "a", Timestamp: base, Status: "OPTIMAL", TotalCost: 55, CostAvailable: true, Steps: 2},
		{RunID: "b", Timestamp: base.Add(time.Hour), Status: "INFEASIBLE", Error: "solution cannot be found"},
		{RunID: "c", Timestamp: base.Add(2 * time.Hour), Status: "OPTIMAL", TotalCost: 12.5, CostAvailable: true},
	}
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, r := range sampleRecords(base) {
		require.NoError(t, store.Append(ctx, r))
	}

	all, err := store.Query(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].RunID)
	assert.Equal(t, 55.0, all[0].TotalCost)

	optimal, err := store.Query(ctx, Query{Status: "OPTIMAL"})
	require.NoError(t, err)
	assert.Len(t, optimal, 2)

	window, err := store.Query(ctx, Query{Start: base.Add(30 * time.Minute), End: base.Add(90 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, "b", window[0].RunID)

	last, err := store.Query(ctx, Query{Limit: 1})
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "c", last[0].RunID)
}

func TestRotatingJSONLStore(t *testing.T) {
	store, err := NewRotatingJSONLStore(filepath.Join(t.TempDir(), "logs", "runs.jsonl"), 1, 2, 1)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	exerciseStore(t, store)
}

func TestRotatingJSONLStore_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	store, err := NewRotatingJSONLStore(path, 1, 5, 1)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	big := make([]byte, 300*1024)
	for i := range big {
		big[i] = 'x'
	}
	for i := 0; i < 6; i++ {
		rec := Record{RunID: fmt.Sprintf("r%d", i), Timestamp: time.Now(), Error: string(big)}
		require.NoError(t, store.Append(context.Background(), rec))
	}
	out, err := store.Query(context.Background(), Query{})
	require.NoError(t, err)
	assert.Len(t, out, 6)
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	exerciseStore(t, store)
}

func TestOpen(t *testing.T) {
	s, err := Open(Config{})
	require.NoError(t, err)
	assert.IsType(t, NopStore{}, s)

	_, err = Open(Config{Backend: "jsonl"})
	assert.Error(t, err)

	_, err = Open(Config{Backend: "postgres", Path: "x"})
	assert.Error(t, err)

	s, err = Open(Config{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "r.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())
}
