// Package config loads the flowlike host configuration from a YAML file and
// FLOWLIKE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/TM9657/flow-like-sub010/pkg/flow"
	"github.com/TM9657/flow-like-sub010/pkg/persistence/middleware"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FLOWLIKE_"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Config is the host configuration.
type Config struct {
	LogLevel  string       `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string       `mapstructure:"log_format" yaml:"log_format"`
	BoardsDir string       `mapstructure:"boards_dir" yaml:"boards_dir"`
	AppID     string       `mapstructure:"app_id" yaml:"app_id"`
	HTTP      HTTPConfig   `mapstructure:"http" yaml:"http"`
	Store     StoreConfig  `mapstructure:"store" yaml:"store"`
	Logs      LogsConfig   `mapstructure:"logs" yaml:"logs"`
	Stream    StreamConfig `mapstructure:"stream" yaml:"stream"`
	Engine    EngineConfig `mapstructure:"engine" yaml:"engine"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

type StoreConfig struct {
	Driver   string         `mapstructure:"driver" yaml:"driver"`
	TTL      time.Duration  `mapstructure:"ttl" yaml:"ttl"`
	Redis    RedisConfig    `mapstructure:"redis" yaml:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
	// Redact lists regular expressions of event payload keys whose values
	// are masked before they are stored.
	Redact     []string         `mapstructure:"redact" yaml:"redact"`
	Encryption EncryptionConfig `mapstructure:"encryption" yaml:"encryption"`
}

// EncryptionConfig enables AES-256 sealing of stored event payloads.
// Keys are base64 encoded.
type EncryptionConfig struct {
	Key          string   `mapstructure:"key" yaml:"key"`
	FallbackKeys []string `mapstructure:"fallback_keys" yaml:"fallback_keys"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
	// Lock enables distributed run locks on the same server.
	Lock bool `mapstructure:"lock" yaml:"lock"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

type LogsConfig struct {
	// SQLitePath enables run log persistence. Empty keeps logs in memory.
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
}

type StreamConfig struct {
	Capacity int           `mapstructure:"capacity" yaml:"capacity"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

type EngineConfig struct {
	ExecLimit   uint64        `mapstructure:"exec_limit" yaml:"exec_limit"`
	Concurrency int           `mapstructure:"concurrency" yaml:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// envKeys lists the dotted keys that environment variables may override.
// FLOWLIKE_STORE_REDIS_ADDR overrides store.redis.addr.
var envKeys = []string{
	"log_level", "log_format", "boards_dir", "app_id",
	"http.addr",
	"store.driver", "store.ttl",
	"store.redis.addr", "store.redis.password", "store.redis.db", "store.redis.prefix", "store.redis.lock",
	"store.postgres.dsn", "store.redact", "store.encryption.key",
	"logs.sqlite_path",
	"stream.capacity", "stream.interval",
	"engine.exec_limit", "engine.concurrency", "engine.timeout",
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		BoardsDir: "boards",
		HTTP:      HTTPConfig{Addr: ":8080"},
		Store: StoreConfig{
			Driver: DriverMemory,
			TTL:    24 * time.Hour,
			Redis:  RedisConfig{Addr: "localhost:6379", Prefix: "exec:"},
		},
		Stream: StreamConfig{Capacity: 50, Interval: 100 * time.Millisecond},
		Engine: EngineConfig{ExecLimit: flow.DefaultExecLimit},
	}
}

// Load reads path (optional) and applies environment overrides on top of the defaults.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	raw := make(map[string]any)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		if raw == nil {
			raw = make(map[string]any)
		}
	}

	for _, key := range envKeys {
		name := EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if v, ok := lookup(name); ok {
			setPath(raw, strings.Split(key, "."), v)
		}
	}

	cfg := Default()
	if err := decode(raw, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(raw map[string]any, cfg *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// setPath stores v under the nested keys, creating maps as needed.
func setPath(m map[string]any, keys []string, v any) {
	for _, k := range keys[:len(keys)-1] {
		next, ok := m[k].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[k] = next
		}
		m = next
	}
	m[keys[len(keys)-1]] = v
}

// Validate reports invalid combinations of settings.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains([]string{DriverMemory, DriverRedis, DriverPostgres}, c.Store.Driver) {
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.Store.Driver == DriverPostgres && c.Store.Postgres.DSN == "" {
		errs = append(errs, errors.New("store.postgres.dsn is required for the postgres driver"))
	}
	if c.Store.Redis.Lock && c.Store.Driver != DriverRedis {
		errs = append(errs, errors.New("store.redis.lock requires the redis driver"))
	}
	if c.Store.Encryption.Key != "" {
		for _, k := range append([]string{c.Store.Encryption.Key}, c.Store.Encryption.FallbackKeys...) {
			if _, err := middleware.ParseKey(k); err != nil {
				errs = append(errs, fmt.Errorf("store.encryption: %w", err))
			}
		}
	} else if len(c.Store.Encryption.FallbackKeys) > 0 {
		errs = append(errs, errors.New("store.encryption.fallback_keys requires store.encryption.key"))
	}
	for _, p := range c.Store.Redact {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("invalid store.redact pattern %q: %w", p, err))
		}
	}
	if c.Stream.Capacity <= 0 {
		errs = append(errs, errors.New("stream.capacity must be positive"))
	}
	if c.Stream.Interval <= 0 {
		errs = append(errs, errors.New("stream.interval must be positive"))
	}
	if !slices.Contains([]string{"text", "json"}, c.LogFormat) {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}
