package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the top-level tutor.yaml configuration file.
type YAMLConfig struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Admin     AdminConfig     `yaml:"admin" mapstructure:"admin"`
	Codes     CodesConfig     `yaml:"codes" mapstructure:"codes"`
	Model     ModelConfig     `yaml:"model" mapstructure:"model"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	MCP       MCPConfig       `yaml:"mcp" mapstructure:"mcp"`
	Log       LoggingConfig   `yaml:"log" mapstructure:"log"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string     `yaml:"host" mapstructure:"host"`
	Port            int        `yaml:"port" mapstructure:"port"`
	MaxBodySize     string     `yaml:"max_body_size" mapstructure:"max_body_size"`
	ShutdownTimeout string     `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	StaticDir       string     `yaml:"static_dir" mapstructure:"static_dir"`
	TrustProxy      bool       `yaml:"trust_proxy" mapstructure:"trust_proxy"`
	CORS            CORSConfig `yaml:"cors" mapstructure:"cors"`
}

// CORSConfig controls cross-origin resource sharing settings.
type CORSConfig struct {
	Origins []string `yaml:"origins" mapstructure:"origins"`
}

// AdminConfig controls the admin dashboard login.
type AdminConfig struct {
	Password   string `yaml:"password" mapstructure:"password"`
	SessionTTL string `yaml:"session_ttl" mapstructure:"session_ttl"`
}

// CodesConfig selects where access codes are stored and how they behave.
type CodesConfig struct {
	Mode        string `yaml:"mode" mapstructure:"mode"`
	Backend     string `yaml:"backend" mapstructure:"backend"`
	File        string `yaml:"file" mapstructure:"file"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ModelConfig controls the language model.
type ModelConfig struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	Pro     string `yaml:"pro" mapstructure:"pro"`
	Flash   string `yaml:"flash" mapstructure:"flash"`
	Timeout string `yaml:"timeout" mapstructure:"timeout"`
}

// RateLimitConfig caps unauthenticated credential checks per client IP.
type RateLimitConfig struct {
	VerifyPerMinute int `yaml:"verify_per_minute" mapstructure:"verify_per_minute"`
	LoginPerMinute  int `yaml:"login_per_minute" mapstructure:"login_per_minute"`
}

// MCPConfig controls the MCP (Model Context Protocol) server.
type MCPConfig struct {
	Transport string `yaml:"transport" mapstructure:"transport"`
	Addr      string `yaml:"addr" mapstructure:"addr"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// LoadYAMLConfig reads and parses a YAML configuration file. Environment
// variables referenced as ${VAR_NAME} in the file are expanded before parsing.
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	content := os.ExpandEnv(string(data))

	cfg := DefaultYAMLConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// DefaultYAMLConfig returns a YAMLConfig pre-filled with sensible defaults.
// Secrets are left empty; they come from the environment.
func DefaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			MaxBodySize:     "50MB",
			ShutdownTimeout: "30s",
			CORS: CORSConfig{
				Origins: []string{"*"},
			},
		},
		Admin: AdminConfig{
			SessionTTL: "0s",
		},
		Codes: CodesConfig{
			Mode: "reusable",
			File: "./data/codes.json",
		},
		Model: ModelConfig{
			Pro:     "gemini-2.5-pro",
			Flash:   "gemini-2.5-flash",
			Timeout: "120s",
		},
		RateLimit: RateLimitConfig{
			VerifyPerMinute: 20,
			LoginPerMinute:  10,
		},
		MCP: MCPConfig{
			Transport: "stdio",
			Addr:      ":8001",
		},
		Log: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// WriteDefaultConfig writes the default configuration to a YAML file.
func WriteDefaultConfig(path string) error {
	data, err := yaml.Marshal(DefaultYAMLConfig())
	if err != nil {
		return err
	}
	header := []byte("# Tutor configuration. Secrets (GEMINI_API_KEY, ADMIN_PASSWORD,\n# DATABASE_URL) are best set in the environment or a .env file.\n\n")
	return os.WriteFile(path, append(header, data...), 0644)
}
