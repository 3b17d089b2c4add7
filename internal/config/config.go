// Package config loads the fabric server's listen address, protocol
// version, handshake cookie allow-list, and log level from a YAML file
// layered with environment overrides and an optional .env file,
// trimmed from the teacher's internal/config/config.go (SPEC_FULL.md's
// AMBIENT STACK) down to the fields this module actually has. The
// teacher's much larger Manager/TenantsConfig multi-tenant overlay has
// no counterpart here: this module configures one fabric instance, not
// a tenant fleet (see DESIGN.md).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config is the full set of knobs a fabricd process is started with.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Handshake HandshakeConfig `yaml:"handshake"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig is the network surface a session.Server binds (spec §6).
type ServerConfig struct {
	ListenAddr     string `yaml:"listen_addr"`
	AllowedOrigins string `yaml:"allowed_origins"`
	MetricsAddr    string `yaml:"metrics_addr"`
}

// HandshakeConfig carries the protocol version and cookie allow-list a
// session.Server validates the viewer's first frame against (spec §6).
type HandshakeConfig struct {
	Version uint64   `yaml:"version"`
	Cookies []uint64 `yaml:"cookies"`
}

// LoggingConfig selects the slog level every component logger is built
// at.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads path as YAML, then applies environment variable overrides
// (mirroring the teacher's applyEnvOverrides convention) and fills in
// defaults for anything left zero. A missing file is not an error: the
// zero Config plus defaults is a usable starting point, matching the
// teacher's Get() singleton falling back to defaults when config.yaml
// is absent.
func Load(path string) (*Config, error) {
	if envPath := os.Getenv("FABRICD_DOTENV"); envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			slog.Warn("config: failed to load .env file", "path", envPath, "error", err)
		}
	}

	var cfg Config
	if f, err := os.Open(path); err == nil {
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	} else {
		slog.Warn("config: no config file found, using defaults and environment", "path", path)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Server.ListenAddr = getEnv("FABRICD_LISTEN_ADDR", c.Server.ListenAddr)
	c.Server.AllowedOrigins = getEnv("FABRICD_ALLOWED_ORIGINS", c.Server.AllowedOrigins)
	c.Server.MetricsAddr = getEnv("FABRICD_METRICS_ADDR", c.Server.MetricsAddr)
	c.Logging.Level = getEnv("FABRICD_LOG_LEVEL", c.Logging.Level)

	if v := getEnv("FABRICD_HANDSHAKE_VERSION", ""); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.Handshake.Version = n
		}
	}
	if v := getEnv("FABRICD_HANDSHAKE_COOKIES", ""); v != "" {
		c.Handshake.Cookies = nil
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if n, err := strconv.ParseUint(part, 10, 64); err == nil {
				c.Handshake.Cookies = append(c.Handshake.Cookies, n)
			}
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = "0.0.0.0:9870"
	}
	if c.Server.MetricsAddr == "" {
		c.Server.MetricsAddr = "0.0.0.0:9871"
	}
	if c.Handshake.Version == 0 {
		c.Handshake.Version = 1
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// CookieAllowlist turns the configured cookie list into the map shape
// session.Config.HandshakeCookies wants; an empty list means any cookie
// is accepted (spec §6).
func (c *Config) CookieAllowlist() map[uint64]bool {
	if len(c.Handshake.Cookies) == 0 {
		return nil
	}
	allow := make(map[uint64]bool, len(c.Handshake.Cookies))
	for _, cookie := range c.Handshake.Cookies {
		allow[cookie] = true
	}
	return allow
}

// SlogLevel parses Logging.Level into a slog.Level, defaulting to Info
// on an unrecognised value.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
