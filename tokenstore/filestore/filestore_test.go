package filestore_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-auth-client/tokenstore"
	"github.com/jrsteele09/go-auth-client/tokenstore/filestore"
	"github.com/jrsteele09/go-auth-client/tokenstore/storetest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

var sealKey = bytes.Repeat([]byte{7}, 32)

func TestFileStore(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		storetest.Run(t, func(t *testing.T) tokenstore.Store {
			s, err := filestore.New(filepath.Join(t.TempDir(), "session.json"))
			require.NoError(t, err)
			return s
		})
	})

	t.Run("sealed", func(t *testing.T) {
		storetest.Run(t, func(t *testing.T) tokenstore.Store {
			s, err := filestore.New(filepath.Join(t.TempDir(), "session.json"), filestore.WithSealKey(sealKey))
			require.NoError(t, err)
			return s
		})
	})
}

func TestFileStore_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	s, err := filestore.New(path, filestore.WithSealKey(sealKey))
	require.NoError(t, err)
	require.NoError(t, s.SetPair(ctx, tokenstore.Pair{AccessToken: "access", RefreshToken: "refresh"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "access")

	reopened, err := filestore.New(path, filestore.WithSealKey(sealKey))
	require.NoError(t, err)
	pair, err := reopened.GetPair(ctx)
	require.NoError(t, err)
	require.Equal(t, tokenstore.Pair{AccessToken: "access", RefreshToken: "refresh"}, pair)
}

func TestFileStore_ClearRemovesFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")

	s, err := filestore.New(path)
	require.NoError(t, err)
	require.NoError(t, s.SetPair(ctx, tokenstore.Pair{AccessToken: "a", RefreshToken: "r"}))
	require.FileExists(t, path)

	require.NoError(t, s.ClearPair(ctx))
	require.NoFileExists(t, path)
}

func TestFileStore_Corrupt(t *testing.T) {
	ctx := context.Background()

	t.Run("garbage json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

		s, err := filestore.New(path)
		require.NoError(t, err)
		_, err = s.GetPair(ctx)
		require.True(t, errors.Is(err, filestore.ErrCorrupt))
	})

	t.Run("wrong key", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		s, err := filestore.New(path, filestore.WithSealKey(sealKey))
		require.NoError(t, err)
		require.NoError(t, s.SetPair(ctx, tokenstore.Pair{AccessToken: "a", RefreshToken: "r"}))

		other, err := filestore.New(path, filestore.WithSealKey(bytes.Repeat([]byte{9}, 32)))
		require.NoError(t, err)
		_, err = other.Get(ctx, tokenstore.AccessTokenKey)
		require.True(t, errors.Is(err, filestore.ErrCorrupt))
	})
}

func TestNew_Errors(t *testing.T) {
	_, err := filestore.New("")
	require.Error(t, err)

	_, err = filestore.New(filepath.Join(t.TempDir(), "s.json"), filestore.WithSealKey([]byte("short")))
	require.Error(t, err)
}
