package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnvVar names an optional YAML file whose values sit between the
// environment and the built-in defaults.
const ConfigFileEnvVar = "AUTH_CLIENT_CONFIG"

type Config interface {
	EnvConfig
	SessionConfig
	StoreConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetAPIBaseURL() string
	GetLogLevel() string
	GetHTTPTimeout() time.Duration
}

type mainConfig struct {
	EnvVars
	Session
	Store
}

// New returns a configuration backed by the environment only.
func New() Config {
	return build(Values{})
}

// Load reads the YAML file at path (if any) and returns a configuration where
// environment variables override file values and file values override the
// defaults. An empty path falls back to AUTH_CLIENT_CONFIG.
func Load(path string) (Config, error) {
	if path == "" {
		path = os.Getenv(ConfigFileEnvVar)
	}
	if path == "" {
		return New(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "[config.Load] read %s", path)
	}

	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "[config.Load] parse %s", path)
	}
	return build(f.values()), nil
}

func build(v Values) Config {
	return mainConfig{
		EnvVars: EnvVars{values: v},
		Session: Session{values: v},
		Store:   Store{values: v},
	}
}

// fileConfig is the YAML layout of the configuration file.
type fileConfig struct {
	AppName  string `yaml:"app_name"`
	Env      string `yaml:"env"`
	BaseURL  string `yaml:"api_base_url"`
	LogLevel string `yaml:"log_level"`

	HTTPTimeout       string `yaml:"http_timeout"`
	RefreshTimeout    string `yaml:"refresh_timeout"`
	LoginPath         string `yaml:"login_path"`
	RejectionStatuses string `yaml:"rejection_statuses"`

	TokenStore struct {
		Backend string `yaml:"backend"`
		File    string `yaml:"file"`
		SealKey string `yaml:"seal_key"`
		Redis   struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       string `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"token_store"`
}

func (f fileConfig) values() Values {
	v := Values{
		appNameVar:           f.AppName,
		envVar:               f.Env,
		baseURLVar:           f.BaseURL,
		logLevelVar:          f.LogLevel,
		httpTimeoutVar:       f.HTTPTimeout,
		refreshTimeoutVar:    f.RefreshTimeout,
		loginPathVar:         f.LoginPath,
		rejectionStatusesVar: f.RejectionStatuses,
		storeBackendVar:      f.TokenStore.Backend,
		storeFileVar:         f.TokenStore.File,
		storeSealKeyVar:      f.TokenStore.SealKey,
		redisAddrVar:         f.TokenStore.Redis.Addr,
		redisPasswordVar:     f.TokenStore.Redis.Password,
		redisDBVar:           f.TokenStore.Redis.DB,
		redisPrefixVar:       f.TokenStore.Redis.Prefix,
	}
	for k, val := range v {
		if val == "" {
			delete(v, k)
		}
	}
	return v
}
