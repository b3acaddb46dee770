package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/storage/sqlite"
	"github.com/stretchr/testify/require"
)

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	_, ok, err := store.Get(ctx, "@interiors/auth_token")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, "@interiors/auth_token", "t1"))
	require.NoError(t, store.Set(ctx, "@interiors/auth_token", "t2"))

	v, ok, err := store.Get(ctx, "@interiors/auth_token")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "t2", v)

	require.NoError(t, store.Delete(ctx, "@interiors/auth_token"))
	_, ok, err = store.Get(ctx, "@interiors/auth_token")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "auth.db")

	store, err := sqlite.Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "k", "persisted"))
	require.NoError(t, store.Close())

	reopened, err := sqlite.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	v, ok, err := reopened.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "persisted", v)
}

func TestStore_Validation(t *testing.T) {
	_, err := sqlite.Open(" ")
	require.Error(t, err)

	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.ErrorIs(t, store.Set(context.Background(), "", "v"), autherrors.ErrKeyRequired)
	_, _, err = store.Get(context.Background(), " ")
	require.ErrorIs(t, err, autherrors.ErrKeyRequired)
}

func TestStore_NilIsNotConfigured(t *testing.T) {
	var store *sqlite.Store
	require.NoError(t, store.Close())
	_, _, err := store.Get(context.Background(), "k")
	require.Error(t, err)
}
