package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileModuleStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "sources")
	store := NewFileModuleStore(dir, ".ts")

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	exists, err := store.Exists(ctx, "techblog")
	require.NoError(t, err)
	assert.False(t, exists)

	code := NewTestModule("techblog")
	require.NoError(t, store.Write(ctx, "techblog", code))
	require.NoError(t, store.Write(ctx, "hacker-news", NewTestModule("hacker-news")))

	assert.Equal(t, filepath.Join(dir, "techblog.ts"), store.PathFor("techblog"))
	data, err := os.ReadFile(store.PathFor("techblog"))
	require.NoError(t, err)
	assert.Equal(t, code, string(data))

	exists, err = store.Exists(ctx, "techblog")
	require.NoError(t, err)
	assert.True(t, exists)

	// Files that are not modules are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("x"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".techblog.ts.123.tmp"), []byte("x"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".ts"), []byte("x"), 0600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.ts"), 0750))

	ids, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"hacker-news", "techblog"}, ids)

	exists, err = store.Exists(ctx, "nested")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFileModuleStore_WriteFailure(t *testing.T) {
	t.Parallel()

	blocked := filepath.Join(t.TempDir(), "sources")
	require.NoError(t, os.WriteFile(blocked, []byte("not a directory"), 0600))

	store := NewFileModuleStore(blocked, ".ts")
	err := store.Write(context.Background(), "techblog", "code")
	require.ErrorIs(t, err, ErrIOFailure)

	_, err = store.List(context.Background())
	require.ErrorIs(t, err, ErrIOFailure)
}
