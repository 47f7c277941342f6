package config

import (
	"os"
	"strings"
	"time"
)

const (
	appNameVar     = "AUTH_APP_NAME"
	envVar         = "AUTH_ENV"
	baseURLVar     = "AUTH_API_BASE_URL"
	logLevelVar    = "AUTH_LOG_LEVEL"
	httpTimeoutVar = "AUTH_HTTP_TIMEOUT"
)

// Values holds configuration read from a file, keyed by environment variable
// name.
type Values map[string]string

// get resolves a setting: environment first, then file, then the default.
func (v Values) get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value, ok := v[key]; ok && value != "" {
		return value
	}
	return defaultValue
}

func (v Values) duration(key string, defaultValue time.Duration) time.Duration {
	raw := v.get(key, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

type EnvVars struct {
	values Values
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.values.get(appNameVar, "Auth Client")
}

func (e EnvVars) GetEnv() string {
	return strings.ToUpper(e.values.get(envVar, "DEV"))
}

// GetAPIBaseURL returns the API root the auth endpoints hang off, always with a
// trailing slash (e.g. "http://localhost:8080/").
func (e EnvVars) GetAPIBaseURL() string {
	base := e.values.get(baseURLVar, "http://localhost:8080/")
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

func (e EnvVars) GetLogLevel() string {
	return strings.ToLower(e.values.get(logLevelVar, "info"))
}

func (e EnvVars) GetHTTPTimeout() time.Duration {
	return e.values.duration(httpTimeoutVar, 30*time.Second)
}
