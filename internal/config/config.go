package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dilshad08/virtual-classroom/pkg/types"
)

// Config holds the system-wide settings. Defaults suit a single-node
// deployment; everything can be overridden via CLASSROOM_* environment
// variables.
type Config struct {
	Database  *DatabaseConfig
	HTTP      *HTTPConfig
	Auth      *AuthConfig
	Broadcast *BroadcastConfig
}

type DatabaseConfig struct {
	Path         string
	WriteTimeout time.Duration
}

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type BroadcastConfig struct {
	QueueSize int
	// Roles allowed to join a classroom that is not live.
	JoinExemptRoles []types.Role
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: &DatabaseConfig{
			Path:         "./classroom.db",
			WriteTimeout: 30 * time.Second,
		},
		HTTP: &HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Auth: &AuthConfig{
			JWTSecret: "dev-secret-change-me",
			TokenTTL:  24 * time.Hour,
		},
		Broadcast: &BroadcastConfig{
			QueueSize:       256,
			JoinExemptRoles: []types.Role{types.RoleTeacher, types.RoleAdmin},
		},
	}
}

// Load reads an optional .env file and applies CLASSROOM_* overrides
// on top of the defaults.
func Load() *Config {
	// Missing .env is the normal case outside development.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path := os.Getenv("CLASSROOM_DATABASE_PATH"); path != "" {
		cfg.Database.Path = path
	}
	if timeout := os.Getenv("CLASSROOM_DATABASE_WRITE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.Database.WriteTimeout = d
		}
	}

	if host := os.Getenv("CLASSROOM_HTTP_HOST"); host != "" {
		cfg.HTTP.Host = host
	}
	if port := os.Getenv("CLASSROOM_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.HTTP.Port = p
		}
	}
	if timeout := os.Getenv("CLASSROOM_HTTP_READ_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.HTTP.ReadTimeout = d
		}
	}
	if timeout := os.Getenv("CLASSROOM_HTTP_WRITE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.HTTP.WriteTimeout = d
		}
	}

	if secret := os.Getenv("CLASSROOM_JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if ttl := os.Getenv("CLASSROOM_TOKEN_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.Auth.TokenTTL = d
		}
	}

	if size := os.Getenv("CLASSROOM_BROADCAST_QUEUE_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil {
			cfg.Broadcast.QueueSize = n
		}
	}
	if roles := os.Getenv("CLASSROOM_JOIN_EXEMPT_ROLES"); roles != "" {
		cfg.Broadcast.JoinExemptRoles = parseRoles(roles)
	}

	return cfg
}

// parseRoles parses a comma-separated role list, dropping unknown
// entries. "NONE" (alone) yields an empty exemption list.
func parseRoles(raw string) []types.Role {
	var parsed []types.Role
	for _, part := range strings.Split(raw, ",") {
		role := types.Role(strings.ToUpper(strings.TrimSpace(part)))
		if types.IsValidRole(role) {
			parsed = append(parsed, role)
		}
	}
	return parsed
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.WriteTimeout <= 0 {
		return fmt.Errorf("database write timeout must be positive")
	}

	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}

	if c.Auth == nil {
		return fmt.Errorf("auth configuration is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret cannot be empty")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}

	if c.Broadcast == nil {
		return fmt.Errorf("broadcast configuration is required")
	}
	if c.Broadcast.QueueSize <= 0 {
		return fmt.Errorf("broadcast queue size must be positive")
	}

	return nil
}
