package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flowlike.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load("", env(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
boards_dir: ./flows
store:
  driver: redis
  ttl: 2h
  redis:
    addr: redis:6379
    db: 2
stream:
  interval: 250ms
engine:
  exec_limit: 10
`)

	cfg, err := load(path, env(map[string]string{
		"FLOWLIKE_STORE_REDIS_DB":      "5",
		"FLOWLIKE_STORE_REDIS_LOCK":    "true",
		"FLOWLIKE_HTTP_ADDR":           ":9090",
		"FLOWLIKE_ENGINE_CONCURRENCY":  "4",
		"FLOWLIKE_STREAM_CAPACITY":     "8",
		"FLOWLIKE_LOGS_SQLITE_PATH":    "/tmp/logs.db",
		"UNRELATED_STORE_REDIS_PREFIX": "nope",
	}))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "./flows", cfg.BoardsDir)
	assert.Equal(t, DriverRedis, cfg.Store.Driver)
	assert.Equal(t, 2*time.Hour, cfg.Store.TTL)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 5, cfg.Store.Redis.DB, "env wins over the file")
	assert.True(t, cfg.Store.Redis.Lock)
	assert.Equal(t, "exec:", cfg.Store.Redis.Prefix, "unset keys keep their default")
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 250*time.Millisecond, cfg.Stream.Interval)
	assert.Equal(t, 8, cfg.Stream.Capacity)
	assert.Equal(t, uint64(10), cfg.Engine.ExecLimit)
	assert.Equal(t, 4, cfg.Engine.Concurrency)
	assert.Equal(t, "/tmp/logs.db", cfg.Logs.SQLitePath)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		env     map[string]string
		wantErr string
	}{
		{name: "unknown key", file: "stroe:\n  driver: redis\n", wantErr: "invalid config"},
		{name: "bad yaml", file: "log_level: [", wantErr: "failed to parse config"},
		{name: "bad duration", env: map[string]string{"FLOWLIKE_STORE_TTL": "soon"}, wantErr: "invalid config"},
		{name: "unknown driver", env: map[string]string{"FLOWLIKE_STORE_DRIVER": "mongo"}, wantErr: `unknown store driver "mongo"`},
		{name: "postgres without dsn", env: map[string]string{"FLOWLIKE_STORE_DRIVER": "postgres"}, wantErr: "store.postgres.dsn is required"},
		{name: "lock without redis", env: map[string]string{"FLOWLIKE_STORE_REDIS_LOCK": "1"}, wantErr: "requires the redis driver"},
		{name: "zero capacity", env: map[string]string{"FLOWLIKE_STREAM_CAPACITY": "0"}, wantErr: "stream.capacity must be positive"},
		{name: "short key", env: map[string]string{"FLOWLIKE_STORE_ENCRYPTION_KEY": "c2hvcnQ="}, wantErr: "key must be 32 bytes"},
		{name: "fallback without key", file: "store:\n  encryption:\n    fallback_keys: [abc]\n", wantErr: "requires store.encryption.key"},
		{name: "bad redact pattern", env: map[string]string{"FLOWLIKE_STORE_REDACT": "("}, wantErr: "invalid store.redact pattern"},
		{name: "log format", env: map[string]string{"FLOWLIKE_LOG_FORMAT": "xml"}, wantErr: `unknown log format "xml"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := ""
			if tt.file != "" {
				path = writeConfig(t, tt.file)
			}
			_, err := load(path, env(tt.env))
			require.ErrorContains(t, err, tt.wantErr)
		})
	}

	_, err := load(filepath.Join(t.TempDir(), "missing.yaml"), env(nil))
	require.ErrorContains(t, err, "failed to read config")
}
