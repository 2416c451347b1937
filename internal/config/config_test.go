package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadParsesSections(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
store:
  backend: file
  key: states
  path: /tmp/lms
redis:
  addr: localhost:6379
  ttl: 5m
tests:
  cacheTTL: 2m
  defaultDuration: 10m
  passMark: 50
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Store.Backend != "file" || cfg.Store.Path != "/tmp/lms" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.PassMarkOr(40) != 50 || TTLDuration(cfg.Tests.DefaultDuration, 0) != 10*time.Minute {
		t.Fatalf("unexpected tests config %+v", cfg.Tests)
	}
	if cfg.StoreBackend() != "file" {
		t.Fatalf("expected file backend, got %s", cfg.StoreBackend())
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"unknown backend":   "store:\n  backend: s3\n",
		"file without path": "store:\n  backend: file\n",
		"redis no addr":     "store:\n  backend: redis\n",
		"postgres no url":   "store:\n  backend: postgres\n",
		"pass mark":         "tests:\n  passMark: 140\n",
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestStoreBackendDefaults(t *testing.T) {
	var cfg Config
	if cfg.StoreBackend() != "memory" {
		t.Fatalf("expected memory default, got %s", cfg.StoreBackend())
	}
	cfg.Redis.Addr = "localhost:6379"
	if cfg.StoreBackend() != "redis" {
		t.Fatalf("expected redis when configured, got %s", cfg.StoreBackend())
	}
}

func TestTTLDuration(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %v", got)
	}
	if got := TTLDuration("bogus", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback on parse error, got %v", got)
	}
	if got := TTLDuration("90s", time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %v", got)
	}
}

func TestLoadEnvOverridesConnections(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envPath, []byte("POSTGRES_URL=postgres://lms@db/lms\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("POSTGRES_URL", "")
	os.Unsetenv("POSTGRES_URL")
	t.Setenv("STORE_BACKEND", "postgres")

	if err := LoadEnv(envPath); err != nil {
		t.Fatalf("load env: %v", err)
	}
	cfg, err := Load(writeConfig(t, "server:\n  port: \"8081\"\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Postgres.URL != "postgres://lms@db/lms" || cfg.StoreBackend() != "postgres" {
		t.Fatalf("expected env overrides, got %+v", cfg)
	}
}

func TestLoadEnvMissingFileIsIgnored(t *testing.T) {
	if err := LoadEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("missing env file must be ignored, got %v", err)
	}
}

func TestDefaultDurationSeconds(t *testing.T) {
	var cfg Config
	if got := cfg.DefaultDurationSeconds(10 * time.Minute); got != 600 {
		t.Fatalf("expected 600, got %d", got)
	}
	cfg.Tests.DefaultDuration = "90s"
	if got := cfg.DefaultDurationSeconds(10 * time.Minute); got != 90 {
		t.Fatalf("expected 90, got %d", got)
	}
}

func TestPassMarkZeroIsNotDefaulted(t *testing.T) {
	cfg, err := Load(writeConfig(t, "tests:\n  passMark: 0\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.PassMarkOr(40); got != 0 {
		t.Fatalf("expected explicit 0, got %d", got)
	}

	cfg, err = Load(writeConfig(t, "server:\n  port: \"8080\"\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.PassMarkOr(40); got != 40 {
		t.Fatalf("expected fallback when unset, got %d", got)
	}
}
