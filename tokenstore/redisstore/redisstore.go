// Package redisstore keeps the session tokens in Redis so several client
// processes on one host can share a session.
package redisstore

import (
	"context"

	"github.com/jrsteele09/go-auth-client/tokenstore"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var _ tokenstore.Store = (*Store)(nil)

type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

func New(rdb redis.UniversalClient, prefix string) (*Store, error) {
	if rdb == nil {
		return nil, errors.New("[redisstore.New] redis client is required")
	}
	return &Store{rdb: rdb, prefix: prefix}, nil
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := tokenstore.CheckKey(key); err != nil {
		return "", err
	}
	v, err := s.rdb.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "[redisstore.Get] %s", key)
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := tokenstore.CheckKey(key); err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return errors.Wrapf(err, "[redisstore.Set] %s", key)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if err := tokenstore.CheckKey(key); err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return errors.Wrapf(err, "[redisstore.Remove] %s", key)
	}
	return nil
}

// GetPair reads both keys with a single MGET so it never observes half of a
// SetPair.
func (s *Store) GetPair(ctx context.Context) (tokenstore.Pair, error) {
	vals, err := s.rdb.MGet(ctx, s.key(tokenstore.AccessTokenKey), s.key(tokenstore.RefreshTokenKey)).Result()
	if err != nil {
		return tokenstore.Pair{}, errors.Wrap(err, "[redisstore.GetPair]")
	}
	var pair tokenstore.Pair
	if v, ok := vals[0].(string); ok {
		pair.AccessToken = v
	}
	if v, ok := vals[1].(string); ok {
		pair.RefreshToken = v
	}
	return pair, nil
}

func (s *Store) SetPair(ctx context.Context, pair tokenstore.Pair) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(tokenstore.AccessTokenKey), pair.AccessToken, 0)
		pipe.Set(ctx, s.key(tokenstore.RefreshTokenKey), pair.RefreshToken, 0)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "[redisstore.SetPair]")
	}
	return nil
}

func (s *Store) ClearPair(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key(tokenstore.AccessTokenKey), s.key(tokenstore.RefreshTokenKey)).Err(); err != nil {
		return errors.Wrap(err, "[redisstore.ClearPair]")
	}
	return nil
}
