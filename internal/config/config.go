package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Store struct {
		// memory, file, redis or postgres
		Backend string `yaml:"backend" validate:"omitempty,oneof=memory file redis postgres"`
		Key     string `yaml:"key"`
		Path    string `yaml:"path" validate:"required_if=Backend file"`
	} `yaml:"store"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"gte=0"`
		TTL      string `yaml:"ttl"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Tests struct {
		CacheTTL        string `yaml:"cacheTTL"`
		DefaultDuration string `yaml:"defaultDuration"`
		PassMark        *int   `yaml:"passMark" validate:"omitempty,gte=0,lte=100"`
	} `yaml:"tests"`
}

// LoadEnv loads a dotenv file into the process environment if it exists.
// Variables already set are not overridden.
func LoadEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// Load reads YAML config from path and validates it.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv lets deployment environments override connection settings.
func (c *Config) applyEnv() {
	if v := os.Getenv("STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("POSTGRES_URL"); v != "" {
		c.Postgres.URL = v
	}
}

// DefaultDurationSeconds resolves tests.defaultDuration in whole seconds.
func (c Config) DefaultDurationSeconds(fallback time.Duration) int {
	return int(TTLDuration(c.Tests.DefaultDuration, fallback) / time.Second)
}

// PassMarkOr returns tests.passMark, or fallback when it is unset. An
// explicit 0 means every attempt passes.
func (c Config) PassMarkOr(fallback int) int {
	if c.Tests.PassMark == nil {
		return fallback
	}
	return *c.Tests.PassMark
}

// Validate checks backend-specific requirements.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Store.Backend == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("store config: redis backend requires redis.addr")
	}
	if c.Store.Backend == "postgres" && c.Postgres.URL == "" {
		return fmt.Errorf("store config: postgres backend requires postgres.url")
	}
	return nil
}

// StoreBackend resolves the state store backend; unset picks Redis when
// configured and memory otherwise.
func (c Config) StoreBackend() string {
	if c.Store.Backend != "" {
		return c.Store.Backend
	}
	if c.Redis.Addr != "" {
		return "redis"
	}
	return "memory"
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
