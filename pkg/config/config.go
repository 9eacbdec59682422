// Package config handles Bolt server configuration from environment
// variables, with an optional YAML file overlaid before the env-var pass
// so environment variables always win.
//
// Example Usage:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
//	fmt.Printf("Bolt server: %s:%d\n", cfg.Server.BoltAddress, cfg.Server.BoltPort)
//
// Environment Variables:
//   - BOLTCORE_LISTEN_ADDRESS="0.0.0.0"
//   - BOLTCORE_LISTEN_PORT=7687
//   - BOLTCORE_MAX_CONNECTIONS=1000
//   - BOLTCORE_READ_BUFFER_SIZE=8192
//   - BOLTCORE_WRITE_BUFFER_SIZE=8192
//   - BOLTCORE_MAX_CHUNK_SIZE=65535
//   - BOLTCORE_REQUIRE_AUTH=false
//   - BOLTCORE_DATA_DIR="./data"
//   - BOLTCORE_CONFIG_FILE="" (optional YAML overlay path)
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all Bolt server configuration.
//
// Example:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
type Config struct {
	Auth     AuthConfig
	Database DatabaseConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// Enabled controls whether INIT requires successful authentication.
	Enabled bool
	// InitialUsername is the default admin username, seeded on first run.
	InitialUsername string
	// InitialPassword is the default admin password, seeded on first run.
	InitialPassword string
	// MinPasswordLength for password policy.
	MinPasswordLength int
	// TokenExpiry for issued auth tokens.
	TokenExpiry time.Duration
	// JWTSecret for signing tokens.
	JWTSecret string
}

// DatabaseConfig holds storage settings.
type DatabaseConfig struct {
	// DataDir is the directory graphstore persists to.
	DataDir string
	// InMemory runs the graph store without touching disk.
	InMemory bool
}

// ServerConfig holds Bolt listener settings.
type ServerConfig struct {
	// BoltAddress to bind to.
	BoltAddress string
	// BoltPort for Bolt connections.
	BoltPort int
	// MaxConnections limits concurrent sessions.
	MaxConnections int
	// ReadBufferSize and WriteBufferSize size each session's bufio
	// wrappers around its transport.
	ReadBufferSize  int
	WriteBufferSize int
	// MaxChunkSize bounds a single chunked-framing chunk's payload.
	MaxChunkSize int
	// HandshakeTimeout bounds how long the 20-byte preamble may take.
	HandshakeTimeout time.Duration
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level (DEBUG, INFO, WARN, ERROR).
	Level string
}

// yamlOverlay mirrors the subset of Config a YAML file may set. Fields
// left zero in the file are not applied, so env vars (read after the
// overlay) still take precedence over both the overlay and the code
// defaults.
type yamlOverlay struct {
	Auth struct {
		Enabled           *bool   `yaml:"enabled"`
		InitialUsername   string  `yaml:"initial_username"`
		InitialPassword   string  `yaml:"initial_password"`
		MinPasswordLength int     `yaml:"min_password_length"`
		TokenExpiry       string  `yaml:"token_expiry"`
		JWTSecret         string  `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Database struct {
		DataDir  string `yaml:"data_dir"`
		InMemory *bool  `yaml:"in_memory"`
	} `yaml:"database"`
	Server struct {
		BoltAddress      string `yaml:"bolt_address"`
		BoltPort         int    `yaml:"bolt_port"`
		MaxConnections   int    `yaml:"max_connections"`
		ReadBufferSize   int    `yaml:"read_buffer_size"`
		WriteBufferSize  int    `yaml:"write_buffer_size"`
		MaxChunkSize     int    `yaml:"max_chunk_size"`
		HandshakeTimeout string `yaml:"handshake_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadFromEnv builds a Config from defaults, an optional YAML file named
// by BOLTCORE_CONFIG_FILE, then environment variables, in that order of
// increasing precedence.
func LoadFromEnv() *Config {
	cfg := &Config{
		Auth: AuthConfig{
			Enabled:           false,
			InitialUsername:   "admin",
			InitialPassword:   "admin",
			MinPasswordLength: 8,
			TokenExpiry:       24 * time.Hour,
			JWTSecret:         generateDefaultSecret(),
		},
		Database: DatabaseConfig{
			DataDir:  "./data",
			InMemory: false,
		},
		Server: ServerConfig{
			BoltAddress:      "0.0.0.0",
			BoltPort:         7687,
			MaxConnections:   1000,
			ReadBufferSize:   8192,
			WriteBufferSize:  8192,
			MaxChunkSize:     65535,
			HandshakeTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "INFO"},
	}

	if path := getEnv("BOLTCORE_CONFIG_FILE", ""); path != "" {
		if err := applyYAMLOverlay(cfg, path); err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
		}
	}

	cfg.Auth.Enabled = getEnvBool("BOLTCORE_REQUIRE_AUTH", cfg.Auth.Enabled)
	cfg.Auth.InitialUsername = getEnv("BOLTCORE_INITIAL_USERNAME", cfg.Auth.InitialUsername)
	cfg.Auth.InitialPassword = getEnv("BOLTCORE_INITIAL_PASSWORD", cfg.Auth.InitialPassword)
	cfg.Auth.MinPasswordLength = getEnvInt("BOLTCORE_MIN_PASSWORD_LENGTH", cfg.Auth.MinPasswordLength)
	cfg.Auth.TokenExpiry = getEnvDuration("BOLTCORE_TOKEN_EXPIRY", cfg.Auth.TokenExpiry)
	cfg.Auth.JWTSecret = getEnv("BOLTCORE_JWT_SECRET", cfg.Auth.JWTSecret)

	cfg.Database.DataDir = getEnv("BOLTCORE_DATA_DIR", cfg.Database.DataDir)
	cfg.Database.InMemory = getEnvBool("BOLTCORE_IN_MEMORY", cfg.Database.InMemory)

	cfg.Server.BoltAddress = getEnv("BOLTCORE_LISTEN_ADDRESS", cfg.Server.BoltAddress)
	cfg.Server.BoltPort = getEnvInt("BOLTCORE_LISTEN_PORT", cfg.Server.BoltPort)
	cfg.Server.MaxConnections = getEnvInt("BOLTCORE_MAX_CONNECTIONS", cfg.Server.MaxConnections)
	cfg.Server.ReadBufferSize = getEnvInt("BOLTCORE_READ_BUFFER_SIZE", cfg.Server.ReadBufferSize)
	cfg.Server.WriteBufferSize = getEnvInt("BOLTCORE_WRITE_BUFFER_SIZE", cfg.Server.WriteBufferSize)
	cfg.Server.MaxChunkSize = getEnvInt("BOLTCORE_MAX_CHUNK_SIZE", cfg.Server.MaxChunkSize)
	cfg.Server.HandshakeTimeout = getEnvDuration("BOLTCORE_HANDSHAKE_TIMEOUT", cfg.Server.HandshakeTimeout)

	cfg.Logging.Level = getEnv("BOLTCORE_LOG_LEVEL", cfg.Logging.Level)

	return cfg
}

func applyYAMLOverlay(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	var overlay yamlOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	if overlay.Auth.Enabled != nil {
		cfg.Auth.Enabled = *overlay.Auth.Enabled
	}
	if overlay.Auth.InitialUsername != "" {
		cfg.Auth.InitialUsername = overlay.Auth.InitialUsername
	}
	if overlay.Auth.InitialPassword != "" {
		cfg.Auth.InitialPassword = overlay.Auth.InitialPassword
	}
	if overlay.Auth.MinPasswordLength != 0 {
		cfg.Auth.MinPasswordLength = overlay.Auth.MinPasswordLength
	}
	if overlay.Auth.TokenExpiry != "" {
		if d, err := time.ParseDuration(overlay.Auth.TokenExpiry); err == nil {
			cfg.Auth.TokenExpiry = d
		}
	}
	if overlay.Auth.JWTSecret != "" {
		cfg.Auth.JWTSecret = overlay.Auth.JWTSecret
	}

	if overlay.Database.DataDir != "" {
		cfg.Database.DataDir = overlay.Database.DataDir
	}
	if overlay.Database.InMemory != nil {
		cfg.Database.InMemory = *overlay.Database.InMemory
	}

	if overlay.Server.BoltAddress != "" {
		cfg.Server.BoltAddress = overlay.Server.BoltAddress
	}
	if overlay.Server.BoltPort != 0 {
		cfg.Server.BoltPort = overlay.Server.BoltPort
	}
	if overlay.Server.MaxConnections != 0 {
		cfg.Server.MaxConnections = overlay.Server.MaxConnections
	}
	if overlay.Server.ReadBufferSize != 0 {
		cfg.Server.ReadBufferSize = overlay.Server.ReadBufferSize
	}
	if overlay.Server.WriteBufferSize != 0 {
		cfg.Server.WriteBufferSize = overlay.Server.WriteBufferSize
	}
	if overlay.Server.MaxChunkSize != 0 {
		cfg.Server.MaxChunkSize = overlay.Server.MaxChunkSize
	}
	if overlay.Server.HandshakeTimeout != "" {
		if d, err := time.ParseDuration(overlay.Server.HandshakeTimeout); err == nil {
			cfg.Server.HandshakeTimeout = d
		}
	}

	if overlay.Logging.Level != "" {
		cfg.Logging.Level = overlay.Logging.Level
	}

	return nil
}

// Validate checks the configuration for logical errors.
//
// Call Validate() after LoadFromEnv() and before using the Config.
func (c *Config) Validate() error {
	if c.Auth.Enabled {
		if c.Auth.InitialUsername == "" {
			return fmt.Errorf("authentication enabled but no username provided")
		}
		if len(c.Auth.InitialPassword) < c.Auth.MinPasswordLength {
			return fmt.Errorf("password must be at least %d characters", c.Auth.MinPasswordLength)
		}
	}
	if c.Server.BoltPort <= 0 {
		return fmt.Errorf("invalid bolt port: %d", c.Server.BoltPort)
	}
	if c.Server.MaxChunkSize <= 0 || c.Server.MaxChunkSize > 65535 {
		return fmt.Errorf("invalid max chunk size: %d", c.Server.MaxChunkSize)
	}
	return nil
}

// String returns a safe string representation of the Config. Sensitive
// values like passwords and secrets are not included, making this safe
// for logging.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Auth: %v, Bolt: %s:%d, DataDir: %s}",
		c.Auth.Enabled, c.Server.BoltAddress, c.Server.BoltPort, c.Database.DataDir,
	)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}

func generateDefaultSecret() string {
	return "CHANGE_ME_IN_PRODUCTION_" + strconv.FormatInt(time.Now().UnixNano(), 36)
}
