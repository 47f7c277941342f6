package config

import (
	"encoding/hex"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	storeBackendVar  = "AUTH_TOKEN_STORE"
	storeFileVar     = "AUTH_TOKEN_FILE"
	storeSealKeyVar  = "AUTH_TOKEN_SEAL_KEY"
	redisAddrVar     = "AUTH_REDIS_ADDR"
	redisPasswordVar = "AUTH_REDIS_PASSWORD"
	redisDBVar       = "AUTH_REDIS_DB"
	redisPrefixVar   = "AUTH_REDIS_PREFIX"
)

// StoreBackend selects where the token pair is persisted.
type StoreBackend string

const (
	StoreBackendMemory StoreBackend = "memory"
	StoreBackendFile   StoreBackend = "file"
	StoreBackendRedis  StoreBackend = "redis"
)

type StoreConfig interface {
	GetStoreBackend() StoreBackend
	GetTokenFile() string
	GetSealKey() ([]byte, error)
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisPrefix() string
}

type Store struct {
	values Values
}

var _ StoreConfig = Store{}

func (s Store) GetStoreBackend() StoreBackend {
	switch b := StoreBackend(strings.ToLower(s.values.get(storeBackendVar, string(StoreBackendFile)))); b {
	case StoreBackendMemory, StoreBackendRedis:
		return b
	default:
		return StoreBackendFile
	}
}

func (s Store) GetTokenFile() string {
	return s.values.get(storeFileVar, filepath.Join(".", "data", "session.json"))
}

// GetSealKey returns the 32-byte key used to seal the token file, or nil when
// sealing is disabled.
func (s Store) GetSealKey() ([]byte, error) {
	raw := s.values.get(storeSealKeyVar, "")
	if raw == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, errors.Wrap(err, "[Store.GetSealKey] key must be hex encoded")
	}
	if len(key) != 32 {
		return nil, errors.Errorf("[Store.GetSealKey] key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

func (s Store) GetRedisAddr() string {
	return s.values.get(redisAddrVar, "localhost:6379")
}

func (s Store) GetRedisPassword() string {
	return s.values.get(redisPasswordVar, "")
}

func (s Store) GetRedisDB() int {
	db, err := strconv.Atoi(s.values.get(redisDBVar, "0"))
	if err != nil || db < 0 {
		return 0
	}
	return db
}

func (s Store) GetRedisPrefix() string {
	return s.values.get(redisPrefixVar, "authclient:")
}
