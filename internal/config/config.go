// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SignLogin Contributors

// Package config loads signlogin settings from defaults, a YAML file,
// SIGNLOGIN_* environment variables and command-line flags, in that order.
package config

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/VarshithSidhoju/sign-loginfull/internal/xdg"
)

// EnvPrefix is the prefix of environment overrides. Nesting uses a double
// underscore: SIGNLOGIN_AUTH__JWT_SECRET sets auth.jwt_secret.
const EnvPrefix = "SIGNLOGIN_"

// MinSecretLength mirrors the token manager's minimum HMAC key size.
const MinSecretLength = 16

const redacted = "[redacted]"

// Config is the complete signlogin configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server" json:"server,omitempty" jsonschema:"description=HTTP API server"`
	Metrics  MetricsConfig  `koanf:"metrics" json:"metrics,omitempty" jsonschema:"description=Prometheus and health endpoints"`
	Database DatabaseConfig `koanf:"database" json:"database,omitempty"`
	Auth     AuthConfig     `koanf:"auth" json:"auth,omitempty"`
	Log      LogConfig      `koanf:"log" json:"log,omitempty"`
	Client   ClientConfig   `koanf:"client" json:"client,omitempty" jsonschema:"description=Settings used by the client subcommands"`

	raw *koanf.Koanf
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `koanf:"addr" json:"addr,omitempty" jsonschema:"default=:5000"`
	Mode            string        `koanf:"mode" json:"mode,omitempty" jsonschema:"enum=debug,enum=release,enum=test,default=release"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout,omitempty" jsonschema:"default=10s"`
	CORSOrigins     []string      `koanf:"cors_origins" json:"cors_origins,omitempty" jsonschema:"description=Origins allowed to call the API from a browser; * allows any"`
}

// MetricsConfig configures the observability server. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty" jsonschema:"default=127.0.0.1:9100"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL            string        `koanf:"url" json:"url,omitempty" jsonschema:"description=postgres:// connection URL"`
	MaxConns       int32         `koanf:"max_conns" json:"max_conns,omitempty" jsonschema:"minimum=1,default=10"`
	ConnectTimeout time.Duration `koanf:"connect_timeout" json:"connect_timeout,omitempty" jsonschema:"default=30s"`
}

// AuthConfig configures session tokens.
type AuthConfig struct {
	JWTSecret string        `koanf:"jwt_secret" json:"jwt_secret,omitempty" jsonschema:"description=HMAC key for signing tokens (at least 16 bytes)"`
	TokenTTL  time.Duration `koanf:"token_ttl" json:"token_ttl,omitempty" jsonschema:"default=720h"`
	Issuer    string        `koanf:"issuer" json:"issuer,omitempty" jsonschema:"default=signlogin"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text,default=json"`
}

// ClientConfig configures the API client and its persisted session.
type ClientConfig struct {
	ServerURL   string `koanf:"server_url" json:"server_url,omitempty" jsonschema:"default=http://localhost:5000"`
	SessionFile string `koanf:"session_file" json:"session_file,omitempty" jsonschema:"description=SQLite file holding the client session"`
}

// defaults are loaded first. Durations are strings so they print the way
// they are written in YAML.
var defaults = map[string]any{
	"server.addr":              ":5000",
	"server.mode":              "release",
	"server.shutdown_timeout":  "10s",
	"server.cors_origins":      []string{"*"},
	"metrics.addr":             "127.0.0.1:9100",
	"database.url":             "",
	"database.max_conns":       10,
	"database.connect_timeout": "30s",
	"auth.jwt_secret":          "",
	"auth.token_ttl":           "720h",
	"auth.issuer":              "signlogin",
	"log.format":               "json",
	"client.server_url":        "http://localhost:5000",
	"client.session_file":      "",
}

// FlagKeys maps command-line flag names to config keys. Flags not listed
// here are ignored by the loader.
var FlagKeys = map[string]string{
	"addr":             "server.addr",
	"mode":             "server.mode",
	"metrics-addr":     "metrics.addr",
	"database-url":     "database.url",
	"log-format":       "log.format",
	"server-url":       "client.server_url",
	"session-file":     "client.session_file",
	"shutdown-timeout": "server.shutdown_timeout",
}

// Options controls Load.
type Options struct {
	// File is an explicit config path. It must exist when set.
	File string
	// Flags contributes explicitly set flags named in FlagKeys.
	Flags *pflag.FlagSet
	// Environ defaults to os.Environ.
	Environ func() []string
}

// Load builds a Config. The default file location is only read if present.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, oops.Code("CONFIG_DEFAULTS_FAILED").With("key", key).Wrap(err)
		}
	}

	if err := loadFile(k, opts.File); err != nil {
		return nil, err
	}

	if err := loadEnv(k, opts.Environ); err != nil {
		return nil, err
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := FlagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, f.Value.String()
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}

	if cfg.Client.SessionFile == "" {
		path, err := xdg.SessionFile()
		if err != nil {
			return nil, oops.Code("CONFIG_SESSION_PATH_FAILED").Wrap(err)
		}
		cfg.Client.SessionFile = path
		if err := k.Set("client.session_file", path); err != nil {
			return nil, oops.Code("CONFIG_DEFAULTS_FAILED").Wrap(err)
		}
	}

	cfg.raw = k
	return cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	explicit := path != ""
	if !explicit {
		def, err := xdg.ConfigFile()
		if err != nil {
			return nil //nolint:nilerr // no home directory means no default file
		}
		path = def
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return oops.Code("CONFIG_FILE_MISSING").With("path", path).Wrap(err)
	}
	if err := ValidateSchema(data); err != nil {
		return oops.With("path", path).Wrap(err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_FILE_INVALID").With("path", path).Wrap(err)
	}
	return nil
}

func loadEnv(k *koanf.Koanf, environ func() []string) error {
	transform := func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}

	// A set but empty variable leaves the lower layers in place.
	if environ == nil {
		provider := env.ProviderWithValue(EnvPrefix, ".", func(name, value string) (string, any) {
			if value == "" {
				return "", nil
			}
			return transform(name), value
		})
		if err := k.Load(provider, nil); err != nil {
			return oops.Code("CONFIG_ENV_FAILED").Wrap(err)
		}
		return nil
	}

	// Explicit environments are applied key by key so tests don't leak
	// through the process environment.
	for _, kv := range environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		if err := k.Set(transform(name), value); err != nil {
			return oops.Code("CONFIG_ENV_FAILED").With("var", name).Wrap(err)
		}
	}
	return nil
}

// Validate checks settings shared by every command.
func (c *Config) Validate() error {
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return invalid("server.mode", "must be one of debug, release, test")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return invalid("server.shutdown_timeout", "must be positive")
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return invalid("log.format", "must be json or text")
	}
	if c.Auth.TokenTTL <= 0 {
		return invalid("auth.token_ttl", "must be positive")
	}
	if strings.TrimSpace(c.Auth.Issuer) == "" {
		return invalid("auth.issuer", "is required")
	}
	if c.Database.MaxConns < 1 {
		return invalid("database.max_conns", "must be at least 1")
	}
	return nil
}

// ValidateClient additionally requires the settings the client subcommands
// need.
func (c *Config) ValidateClient() error {
	if err := c.Validate(); err != nil {
		return err
	}
	u, err := url.Parse(c.Client.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("client.server_url", "must be an http or https URL")
	}
	return nil
}

// ValidateServer additionally requires the settings the API server needs.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return invalid("server.addr", "is required")
	}
	if c.Database.URL == "" {
		return invalid("database.url", "is required")
	}
	if len(c.Auth.JWTSecret) < MinSecretLength {
		return invalid("auth.jwt_secret", "must be at least 16 bytes")
	}
	return nil
}

// YAML renders the effective configuration with the JWT secret and the
// database password masked.
func (c *Config) YAML() ([]byte, error) {
	if c.raw == nil {
		return nil, oops.Code("CONFIG_NOT_LOADED").Errorf("config was not produced by Load")
	}
	k := c.raw.Copy()
	if k.String("auth.jwt_secret") != "" {
		if err := k.Set("auth.jwt_secret", redacted); err != nil {
			return nil, oops.Code("CONFIG_RENDER_FAILED").Wrap(err)
		}
	}
	if dsn := k.String("database.url"); dsn != "" {
		if err := k.Set("database.url", redactURL(dsn)); err != nil {
			return nil, oops.Code("CONFIG_RENDER_FAILED").Wrap(err)
		}
	}
	out, err := k.Marshal(yaml.Parser())
	if err != nil {
		return nil, oops.Code("CONFIG_RENDER_FAILED").Wrap(err)
	}
	return out, nil
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

func invalid(key, msg string) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf("%s %s", key, msg)
}
