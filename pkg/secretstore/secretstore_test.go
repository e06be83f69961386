package secretstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "auth.json")

	fs, err := OpenFileStore(path)
	require.NoError(t, err)

	_, err = fs.Get(ctx, "github_token")
	require.Error(t, err)

	require.NoError(t, fs.Set(ctx, "github_token", "ghp_abc123"))
	v, err := fs.Get(ctx, "github_token")
	require.NoError(t, err)
	require.Equal(t, "ghp_abc123", v)

	require.NoError(t, fs.Delete(ctx, "github_token"))
	_, err = fs.Get(ctx, "github_token")
	require.Error(t, err)
}

func TestOpenFileStore_SurvivesReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "auth.json")

	fs, err := OpenFileStore(path)
	require.NoError(t, err)
	require.NoError(t, fs.Set(ctx, "linear_token", "lin_xyz"))

	reloaded, err := OpenFileStore(path)
	require.NoError(t, err)
	v, err := reloaded.Get(ctx, "linear_token")
	require.NoError(t, err)
	require.Equal(t, "lin_xyz", v)
}
