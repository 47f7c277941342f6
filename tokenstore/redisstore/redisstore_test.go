package redisstore_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-auth-client/tokenstore"
	"github.com/jrsteele09/go-auth-client/tokenstore/redisstore"
	"github.com/jrsteele09/go-auth-client/tokenstore/storetest"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*redisstore.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s, err := redisstore.New(rdb, "test:")
	require.NoError(t, err)
	return s, mr
}

func TestRedisStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) tokenstore.Store {
		s, _ := newStore(t)
		return s
	})
}

func TestRedisStore_UsesPrefix(t *testing.T) {
	s, mr := newStore(t)
	require.NoError(t, s.SetPair(context.Background(), tokenstore.Pair{AccessToken: "a", RefreshToken: "r"}))

	mr.CheckGet(t, "test:jwtToken", "a")
	mr.CheckGet(t, "test:refreshToken", "r")
}

func TestRedisStore_SurfacesFailures(t *testing.T) {
	s, mr := newStore(t)
	mr.SetError("server unavailable")

	_, err := s.GetPair(context.Background())
	require.Error(t, err)
	require.Error(t, s.SetPair(context.Background(), tokenstore.Pair{AccessToken: "a"}))
}

func TestNew_RequiresClient(t *testing.T) {
	_, err := redisstore.New(nil, "x:")
	require.Error(t, err)
}
