package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RecordAndRecent(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "db", "goose-runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	_, err = store.Record(ctx, Run{
		RunID: "train_1", Mode: "train", StartedAt: base, Duration: 90 * time.Second,
		Backend: "command", BaseModel: "unsloth/Phi-3-mini-4k-instruct", OutputDir: "./goose-model",
		Examples: 120, Exported: true, Success: true,
	})
	require.NoError(t, err)

	id, err := store.Record(ctx, Run{
		RunID: "test_1", Mode: "test", StartedAt: base.Add(time.Hour),
		Success: true, SmokeValid: 2, SmokeTotal: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)

	_, err = store.Record(ctx, Run{
		RunID: "train_2", Mode: "train", StartedAt: base.Add(-time.Hour),
		Error: "no training data",
	})
	require.NoError(t, err)

	runs, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "test_1", runs[0].RunID)
	assert.Equal(t, 2, runs[0].SmokeValid)
	assert.Equal(t, "train_1", runs[1].RunID)
	assert.True(t, runs[1].Exported)
	assert.Equal(t, 90*time.Second, runs[1].Duration)
	assert.True(t, runs[1].StartedAt.Equal(base))

	all, err := store.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.False(t, all[2].Success)
	assert.Equal(t, "no training data", all[2].Error)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goose-runs.db")

	s1, err := Open(path)
	require.NoError(t, err)
	_, err = s1.Record(context.Background(), Run{RunID: "a", Mode: "train", StartedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	runs, err := s2.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
