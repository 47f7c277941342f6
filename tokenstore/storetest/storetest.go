// Package storetest holds the behaviour every tokenstore.Store backend must
// share.
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/jrsteele09/go-auth-client/tokenstore"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// Run exercises a backend. newStore must return an empty store each call.
func Run(t *testing.T, newStore func(t *testing.T) tokenstore.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key reads empty", func(t *testing.T) {
		s := newStore(t)
		v, err := s.Get(ctx, tokenstore.AccessTokenKey)
		require.NoError(t, err)
		require.Empty(t, v)

		pair, err := s.GetPair(ctx)
		require.NoError(t, err)
		require.True(t, pair.Empty())
	})

	t.Run("set then get", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, tokenstore.AccessTokenKey, "access-1"))
		require.NoError(t, s.Set(ctx, tokenstore.RefreshTokenKey, "refresh-1"))

		v, err := s.Get(ctx, tokenstore.AccessTokenKey)
		require.NoError(t, err)
		require.Equal(t, "access-1", v)

		pair, err := s.GetPair(ctx)
		require.NoError(t, err)
		require.Equal(t, tokenstore.Pair{AccessToken: "access-1", RefreshToken: "refresh-1"}, pair)
	})

	t.Run("remove", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.SetPair(ctx, tokenstore.Pair{AccessToken: "a", RefreshToken: "r"}))
		require.NoError(t, s.Remove(ctx, tokenstore.AccessTokenKey))
		require.NoError(t, s.Remove(ctx, tokenstore.AccessTokenKey))

		pair, err := s.GetPair(ctx)
		require.NoError(t, err)
		require.Equal(t, tokenstore.Pair{RefreshToken: "r"}, pair)
	})

	t.Run("set pair replaces both", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.SetPair(ctx, tokenstore.Pair{AccessToken: "a1", RefreshToken: "r1"}))
		require.NoError(t, s.SetPair(ctx, tokenstore.Pair{AccessToken: "a2", RefreshToken: "r2"}))

		pair, err := s.GetPair(ctx)
		require.NoError(t, err)
		require.Equal(t, tokenstore.Pair{AccessToken: "a2", RefreshToken: "r2"}, pair)
	})

	t.Run("clear pair", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.ClearPair(ctx))
		require.NoError(t, s.SetPair(ctx, tokenstore.Pair{AccessToken: "a", RefreshToken: "r"}))
		require.NoError(t, s.ClearPair(ctx))

		pair, err := s.GetPair(ctx)
		require.NoError(t, err)
		require.True(t, pair.Empty())
	})

	t.Run("unknown key", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "favouriteColour")
		require.True(t, errors.Is(err, tokenstore.ErrUnknownKey))
		require.True(t, errors.Is(s.Set(ctx, "favouriteColour", "blue"), tokenstore.ErrUnknownKey))
		require.True(t, errors.Is(s.Remove(ctx, "favouriteColour"), tokenstore.ErrUnknownKey))
	})

	t.Run("pairs never mix", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.SetPair(ctx, tokenstore.Pair{AccessToken: "a0", RefreshToken: "r0"}))

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					suffix := string(rune('a' + n))
					_ = s.SetPair(ctx, tokenstore.Pair{AccessToken: "a" + suffix, RefreshToken: "r" + suffix})
				}
			}(i)
		}
		for i := 0; i < 40; i++ {
			pair, err := s.GetPair(ctx)
			require.NoError(t, err)
			require.Equal(t, pair.AccessToken[1:], pair.RefreshToken[1:])
		}
		wg.Wait()
	})
}
