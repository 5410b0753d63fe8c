package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is the server configuration. Values come from an optional YAML
// file, then PLANNR_* environment variables, then defaults.
type Config struct {
	Env       string        `yaml:"env"`
	Port      string        `yaml:"port"`
	DBPath    string        `yaml:"db_path"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	LogLevel  string        `yaml:"log_level"`
	LogFormat string        `yaml:"log_format"`

	// LoginRateLimit is the number of login and register attempts allowed
	// per client IP per minute.
	LoginRateLimit int `yaml:"login_rate_limit"`

	// AllowedOrigins are extra host patterns accepted on WebSocket
	// handshakes. Same-origin requests are always accepted.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

func DefaultConfig() *Config {
	return &Config{
		Env:            EnvDevelopment,
		Port:           "8080",
		DBPath:         "plannr.db",
		TokenTTL:       24 * time.Hour,
		LogLevel:       "info",
		LogFormat:      "text",
		LoginRateLimit: 10,
	}
}

// Normalize fills zero values with defaults.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Env == "" {
		c.Env = def.Env
	}
	if c.Port == "" {
		c.Port = def.Port
	}
	if c.DBPath == "" {
		c.DBPath = def.DBPath
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = def.TokenTTL
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
		c.LogFormat = strings.ToLower(c.LogFormat)
	default:
		c.LogFormat = def.LogFormat
	}
	if c.LoginRateLimit <= 0 {
		c.LoginRateLimit = def.LoginRateLimit
	}
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Env {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("unknown env %q", c.Env)
	}
	if c.JWTSecret == "" && c.Env != EnvDevelopment {
		return errors.New("jwt_secret (PLANNR_JWT_SECRET) is required outside development")
	}
	if c.Env == EnvProduction && len(c.JWTSecret) < 32 {
		return errors.New("jwt_secret must be at least 32 bytes in production")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	return nil
}

// Load reads the YAML file at path when path is non-empty and the file
// exists, applies environment overrides, and normalizes the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	set := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set("PLANNR_ENV", &c.Env)
	set("PLANNR_PORT", &c.Port)
	set("PLANNR_DB_PATH", &c.DBPath)
	set("PLANNR_JWT_SECRET", &c.JWTSecret)
	set("PLANNR_LOG_LEVEL", &c.LogLevel)
	set("PLANNR_LOG_FORMAT", &c.LogFormat)

	if v := getenv("PLANNR_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PLANNR_TOKEN_TTL: %w", err)
		}
		c.TokenTTL = d
	}
	if v := getenv("PLANNR_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
	}
	if v := getenv("PLANNR_LOGIN_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PLANNR_LOGIN_RATE_LIMIT: %w", err)
		}
		c.LoginRateLimit = n
	}
	return nil
}
