package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		"BOLTCORE_CONFIG_FILE", "BOLTCORE_REQUIRE_AUTH", "BOLTCORE_INITIAL_USERNAME",
		"BOLTCORE_INITIAL_PASSWORD", "BOLTCORE_MIN_PASSWORD_LENGTH", "BOLTCORE_TOKEN_EXPIRY",
		"BOLTCORE_JWT_SECRET", "BOLTCORE_DATA_DIR", "BOLTCORE_IN_MEMORY",
		"BOLTCORE_LISTEN_ADDRESS", "BOLTCORE_LISTEN_PORT", "BOLTCORE_MAX_CONNECTIONS",
		"BOLTCORE_READ_BUFFER_SIZE", "BOLTCORE_WRITE_BUFFER_SIZE", "BOLTCORE_MAX_CHUNK_SIZE",
		"BOLTCORE_HANDSHAKE_TIMEOUT", "BOLTCORE_LOG_LEVEL",
	}
	for _, v := range vars {
		os.Unsetenv(v)
	}
}

func TestLoadFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	cfg := LoadFromEnv()

	if cfg.Server.BoltAddress != "0.0.0.0" || cfg.Server.BoltPort != 7687 {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Auth.Enabled {
		t.Fatalf("expected auth disabled by default")
	}
	if cfg.Database.DataDir != "./data" {
		t.Fatalf("unexpected default data dir: %s", cfg.Database.DataDir)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	os.Setenv("BOLTCORE_LISTEN_PORT", "9999")
	os.Setenv("BOLTCORE_REQUIRE_AUTH", "true")
	os.Setenv("BOLTCORE_MAX_CHUNK_SIZE", "1024")
	defer clearEnv(t)

	cfg := LoadFromEnv()
	if cfg.Server.BoltPort != 9999 {
		t.Fatalf("got port %d, want 9999", cfg.Server.BoltPort)
	}
	if !cfg.Auth.Enabled {
		t.Fatalf("expected auth enabled")
	}
	if cfg.Server.MaxChunkSize != 1024 {
		t.Fatalf("got max chunk size %d, want 1024", cfg.Server.MaxChunkSize)
	}
}

func TestYAMLOverlayAppliedBeforeEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "boltcore.yaml")
	yaml := []byte("server:\n  bolt_port: 7000\n  bolt_address: \"127.0.0.1\"\nauth:\n  enabled: true\n")
	if err := os.WriteFile(path, yaml, 0644); err != nil {
		t.Fatal(err)
	}

	os.Setenv("BOLTCORE_CONFIG_FILE", path)
	os.Setenv("BOLTCORE_LISTEN_PORT", "8000") // env still wins over YAML
	defer clearEnv(t)

	cfg := LoadFromEnv()
	if cfg.Server.BoltAddress != "127.0.0.1" {
		t.Fatalf("expected YAML overlay address, got %s", cfg.Server.BoltAddress)
	}
	if !cfg.Auth.Enabled {
		t.Fatalf("expected YAML overlay to enable auth")
	}
	if cfg.Server.BoltPort != 8000 {
		t.Fatalf("expected env var to win over YAML, got %d", cfg.Server.BoltPort)
	}
}

func TestValidateRejectsShortPassword(t *testing.T) {
	cfg := &Config{
		Auth: AuthConfig{Enabled: true, InitialUsername: "admin", InitialPassword: "short", MinPasswordLength: 8},
		Server: ServerConfig{BoltPort: 7687, MaxChunkSize: 65535},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for short password")
	}
}

func TestValidateRejectsBadChunkSize(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{BoltPort: 7687, MaxChunkSize: 70000},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for oversized chunk")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	clearEnv(t)
	cfg := LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
}

func TestStringOmitsSecrets(t *testing.T) {
	cfg := &Config{
		Auth:   AuthConfig{InitialPassword: "super-secret", JWTSecret: "also-secret"},
		Server: ServerConfig{BoltAddress: "0.0.0.0", BoltPort: 7687},
	}
	s := cfg.String()
	if strings.Contains(s, "super-secret") || strings.Contains(s, "also-secret") {
		t.Fatalf("String() leaked a secret: %s", s)
	}
}

func TestGetEnvDurationAcceptsBareSeconds(t *testing.T) {
	os.Setenv("BOLTCORE_HANDSHAKE_TIMEOUT", "5")
	defer os.Unsetenv("BOLTCORE_HANDSHAKE_TIMEOUT")
	got := getEnvDuration("BOLTCORE_HANDSHAKE_TIMEOUT", time.Second)
	if got != 5*time.Second {
		t.Fatalf("got %v, want 5s", got)
	}
}
