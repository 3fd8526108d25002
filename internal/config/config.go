// Package config loads tutor settings from flags, tutor.yaml, .env and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kcse-tutor/tutor/internal/prompt"
	"github.com/kcse-tutor/tutor/internal/store"
)

// EnvPrefix is prepended to every setting when read from the environment,
// e.g. TUTOR_SERVER_PORT.
const EnvPrefix = "TUTOR"

// Config is the resolved runtime configuration.
type Config struct {
	Host            string
	Port            int
	MaxBodySize     int64 // bytes
	ShutdownTimeout time.Duration
	StaticDir       string
	CORSOrigins     []string
	TrustProxy      bool

	AdminPassword string
	SessionTTL    time.Duration

	CodeMode string
	Store    store.Options

	APIKey       string
	Models       prompt.Models
	ModelTimeout time.Duration

	VerifyPerMinute int
	LoginPerMinute  int

	MCPTransport string
	MCPAddr      string

	LogLevel  slog.Level
	LogFormat string
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default .env) into
// the process environment without overriding variables already set.
// Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Configure installs defaults and environment bindings on v. The well-known
// deployment variables are bound alongside the TUTOR_ prefixed names;
// SUPABASE_DATABASE_URL wins over DATABASE_URL.
func Configure(v *viper.Viper) {
	d := DefaultYAMLConfig()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.max_body_size", d.Server.MaxBodySize)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.static_dir", d.Server.StaticDir)
	v.SetDefault("server.cors.origins", d.Server.CORS.Origins)
	v.SetDefault("server.trust_proxy", d.Server.TrustProxy)
	v.SetDefault("admin.password", "")
	v.SetDefault("admin.session_ttl", d.Admin.SessionTTL)
	v.SetDefault("codes.mode", d.Codes.Mode)
	v.SetDefault("codes.backend", d.Codes.Backend)
	v.SetDefault("codes.file", d.Codes.File)
	v.SetDefault("codes.database_url", "")
	v.SetDefault("model.api_key", "")
	v.SetDefault("model.pro", d.Model.Pro)
	v.SetDefault("model.flash", d.Model.Flash)
	v.SetDefault("model.timeout", d.Model.Timeout)
	v.SetDefault("rate_limit.verify_per_minute", d.RateLimit.VerifyPerMinute)
	v.SetDefault("rate_limit.login_per_minute", d.RateLimit.LoginPerMinute)
	v.SetDefault("mcp.transport", d.MCP.Transport)
	v.SetDefault("mcp.addr", d.MCP.Addr)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("model.api_key", "TUTOR_MODEL_API_KEY", "GEMINI_API_KEY")
	v.BindEnv("admin.password", "TUTOR_ADMIN_PASSWORD", "ADMIN_PASSWORD")
	v.BindEnv("codes.database_url", "TUTOR_CODES_DATABASE_URL", "SUPABASE_DATABASE_URL", "DATABASE_URL")
	v.BindEnv("codes.file", "TUTOR_CODES_FILE", "CODES_FILE")
	v.BindEnv("server.port", "TUTOR_SERVER_PORT", "PORT")
}

// Load resolves the typed configuration from v. Configure must have been
// called on v first.
func Load(v *viper.Viper) (*Config, error) {
	size, err := humanize.ParseBytes(v.GetString("server.max_body_size"))
	if err != nil {
		return nil, fmt.Errorf("server.max_body_size: %w", err)
	}

	shutdown, err := parseDuration(v, "server.shutdown_timeout")
	if err != nil {
		return nil, err
	}
	ttl, err := parseDuration(v, "admin.session_ttl")
	if err != nil {
		return nil, err
	}
	timeout, err := parseDuration(v, "model.timeout")
	if err != nil {
		return nil, err
	}

	level, err := ParseLevel(v.GetString("log.level"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Host:            v.GetString("server.host"),
		Port:            v.GetInt("server.port"),
		MaxBodySize:     int64(size),
		ShutdownTimeout: shutdown,
		StaticDir:       v.GetString("server.static_dir"),
		CORSOrigins:     v.GetStringSlice("server.cors.origins"),
		TrustProxy:      v.GetBool("server.trust_proxy"),

		AdminPassword: v.GetString("admin.password"),
		SessionTTL:    ttl,

		CodeMode: v.GetString("codes.mode"),
		Store: store.Options{
			Backend:     v.GetString("codes.backend"),
			DatabaseURL: v.GetString("codes.database_url"),
			FilePath:    v.GetString("codes.file"),
		},

		APIKey: v.GetString("model.api_key"),
		Models: prompt.Models{
			Pro:   v.GetString("model.pro"),
			Flash: v.GetString("model.flash"),
		},
		ModelTimeout: timeout,

		VerifyPerMinute: v.GetInt("rate_limit.verify_per_minute"),
		LoginPerMinute:  v.GetInt("rate_limit.login_per_minute"),

		MCPTransport: v.GetString("mcp.transport"),
		MCPAddr:      v.GetString("mcp.addr"),

		LogLevel:  level,
		LogFormat: strings.ToLower(v.GetString("log.format")),
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("server.port: %d out of range", cfg.Port)
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	return cfg, nil
}

// Redacted returns the settings of v with secrets masked, for display.
func Redacted(v *viper.Viper) map[string]any {
	out := make(map[string]any)
	for _, key := range v.AllKeys() {
		val := v.Get(key)
		switch key {
		case "model.api_key", "admin.password", "codes.database_url":
			if s, ok := val.(string); ok && s != "" {
				val = "********"
			}
		}
		out[key] = val
	}
	return out
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative", key)
	}
	return d, nil
}
