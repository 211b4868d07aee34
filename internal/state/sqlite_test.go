package state

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/leaplg/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := Open(":memory:", testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OpenMigrates(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.MigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// Migrating again is a no-op.
	require.NoError(t, store.Migrate())
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)
	ctx := context.Background()

	assert.Error(t, store.Migrate())
	assert.Error(t, store.RecordEvaluation(ctx, &Evaluation{}))
	_, err := store.ListEvaluations(ctx, ListOptions{})
	assert.Error(t, err)
	_, err = store.GetEvaluation(ctx, "x")
	assert.Error(t, err)
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_RecordAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := NewEvaluation("Greet", ModeEvaluate, map[string]any{"name": "Ada"}, "Hello Ada!", nil, started)
	e.Duration = 1500 * time.Microsecond
	require.NoError(t, store.RecordEvaluation(ctx, e))
	require.NotEmpty(t, e.ID)

	got, err := store.GetEvaluation(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Greet", got.Template)
	assert.Equal(t, ModeEvaluate, got.Mode)
	assert.JSONEq(t, `{"name":"Ada"}`, string(got.Scope))
	assert.JSONEq(t, `"Hello Ada!"`, string(got.Output))
	assert.False(t, got.Failed())
	assert.True(t, started.Equal(got.StartedAt), "started at %v", got.StartedAt)
	assert.Equal(t, 1500*time.Microsecond, got.Duration)
}

func TestSQLiteStore_RecordFailure(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	e := NewEvaluation("Missing", ModeExpand, nil, nil, errors.New("template not found: Missing"), time.Now())
	require.NoError(t, store.RecordEvaluation(ctx, e))

	got, err := store.GetEvaluation(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, got.Failed())
	assert.Equal(t, "template not found: Missing", got.Error)
	assert.Equal(t, "null", string(got.Output))
}

func TestSQLiteStore_GetNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetEvaluation(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_ListEvaluations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []struct {
		template string
		offset   time.Duration
	}{
		{"A", 0},
		{"B", time.Minute},
		{"A", 2 * time.Minute},
		{"C", 3 * time.Minute},
	}
	for _, r := range records {
		e := NewEvaluation(r.template, ModeEvaluate, nil, r.template, nil, base.Add(r.offset))
		require.NoError(t, store.RecordEvaluation(ctx, e))
	}

	tests := []struct {
		name string
		opts ListOptions
		want []string
	}{
		{"all newest first", ListOptions{}, []string{"C", "A", "B", "A"}},
		{"limit", ListOptions{Limit: 2}, []string{"C", "A"}},
		{"by template", ListOptions{Template: "A"}, []string{"A", "A"}},
		{"unknown template", ListOptions{Template: "Z"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListEvaluations(ctx, tt.opts)
			require.NoError(t, err)
			var names []string
			for _, e := range got {
				names = append(names, e.Template)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestSQLiteStore_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	store, err := Open(path, nil)
	require.NoError(t, err)
	e := NewEvaluation("Pick", ModeExpand, nil, []string{"a", "b"}, nil, time.Now())
	require.NoError(t, store.RecordEvaluation(ctx, e))
	require.NoError(t, store.Close())

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, err := reopened.GetEvaluation(ctx, e.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(got.Output))
	assert.Equal(t, path, reopened.Path())
}

func TestNewEvaluation_UnencodableScope(t *testing.T) {
	e := NewEvaluation("T", ModeInline, map[string]any{"ch": make(chan int)}, nil, nil, time.Now())
	assert.Contains(t, string(e.Scope), "unencodable")
}
