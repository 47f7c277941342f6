package tokenfakerepo

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-client/tokenstore"
)

var _ tokenstore.Store = (*FakeTokenRepo)(nil)

// FakeTokenRepo keeps the session entries in memory. It does not survive a
// restart.
type FakeTokenRepo struct {
	entries map[string]string
	lock    sync.RWMutex
}

func NewFakeTokenRepo() *FakeTokenRepo {
	return &FakeTokenRepo{
		entries: make(map[string]string),
	}
}

func (tr *FakeTokenRepo) Get(_ context.Context, key string) (string, error) {
	if err := tokenstore.CheckKey(key); err != nil {
		return "", err
	}
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	return tr.entries[key], nil
}

func (tr *FakeTokenRepo) Set(_ context.Context, key, value string) error {
	if err := tokenstore.CheckKey(key); err != nil {
		return err
	}
	tr.lock.Lock()
	defer tr.lock.Unlock()
	tr.entries[key] = value
	return nil
}

func (tr *FakeTokenRepo) Remove(_ context.Context, key string) error {
	if err := tokenstore.CheckKey(key); err != nil {
		return err
	}
	tr.lock.Lock()
	defer tr.lock.Unlock()
	delete(tr.entries, key)
	return nil
}

func (tr *FakeTokenRepo) GetPair(_ context.Context) (tokenstore.Pair, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	return tokenstore.Pair{
		AccessToken:  tr.entries[tokenstore.AccessTokenKey],
		RefreshToken: tr.entries[tokenstore.RefreshTokenKey],
	}, nil
}

func (tr *FakeTokenRepo) SetPair(_ context.Context, pair tokenstore.Pair) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	tr.entries[tokenstore.AccessTokenKey] = pair.AccessToken
	tr.entries[tokenstore.RefreshTokenKey] = pair.RefreshToken
	return nil
}

func (tr *FakeTokenRepo) ClearPair(_ context.Context) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	delete(tr.entries, tokenstore.AccessTokenKey)
	delete(tr.entries, tokenstore.RefreshTokenKey)
	return nil
}
