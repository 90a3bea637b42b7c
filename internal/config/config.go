package config

import (
	"encoding/json"
	"fmt"
	"os"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Redis    RedisConfig    `json:"redis"`
	Postgres PostgresConfig `json:"postgres"`
	Auth     AuthConfig     `json:"auth"`
	Policies []PolicyConfig `json:"policies"`
	Credits  CreditsConfig  `json:"credits"`
	Breaker  BreakerConfig  `json:"breaker"`
}

type ServerConfig struct {
	Port        string `json:"port"`
	Environment string `json:"environment"`
}

// Leave Host empty to run without redis: the service then uses the
// in-process counter store (local development only - counters reset on
// restart and are not shared across instances)
type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

func (r RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type AuthConfig struct {
	JWTSecret   string `json:"jwt_secret"`
	ExpiryHours int    `json:"expiry_hours"`
}

type PolicyConfig struct {
	Name        string `json:"name"`
	MaxRequests uint32 `json:"max_requests"`
	WindowMs    uint64 `json:"window_ms"`
}

type CreditsConfig struct {
	DefaultTTLDays int `json:"default_ttl_days"`
}

type BreakerConfig struct {
	MaxFailures     int `json:"max_failures"`
	CooldownSeconds int `json:"cooldown_seconds"`
}

func Load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	// Secrets come from the environment when set
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		config.Redis.Password = password
	}
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		config.Postgres.DSN = dsn
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
	if config.Auth.ExpiryHours <= 0 {
		config.Auth.ExpiryHours = 24
	}
	if config.Credits.DefaultTTLDays <= 0 {
		config.Credits.DefaultTTLDays = 365
	}

	return &config, nil
}
