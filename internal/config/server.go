package config

import (
	"fmt"
	"net"
	"time"
)

// ServerConfig — конфигурация dev-сервера (локальный backend для клиента).
type ServerConfig struct {
	Env      string        `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig    `yaml:"http"`
	Auth     AuthConfig    `yaml:"auth"`
	Redis    RedisConfig   `yaml:"redis"`
	Stream   StreamConfig  `yaml:"stream"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
}

// HTTPConfig — адрес REST-сервера.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8000"`
}

func (h HTTPConfig) Addr() string { return net.JoinHostPort(h.Host, h.Port) }

// AuthConfig — параметры выпуска токенов.
type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret"        env:"AUTH_JWT_SECRET"        env-default:"dev-secret-change-me"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"  env:"AUTH_ACCESS_TOKEN_TTL"  env-default:"15m"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"AUTH_REFRESH_TOKEN_TTL" env-default:"720h"`
	Issuer          string        `yaml:"issuer"            env:"AUTH_ISSUER"            env-default:"aihub-devserver"`
}

// RedisConfig — необязательное хранилище refresh-токенов.
// Пустой URL означает хранение в памяти процесса.
type RedisConfig struct {
	URL    string `yaml:"redis_url" env:"REDIS_URL"`
	Prefix string `yaml:"prefix"    env:"REDIS_PREFIX" env-default:"aihub:refresh:"`
}

// StreamConfig — имитация потоковой генерации ответа.
type StreamConfig struct {
	ChunkDelay time.Duration `yaml:"chunk_delay" env:"STREAM_CHUNK_DELAY" env-default:"40ms"`
}

// TimeoutConfig — таймаут сервиса.
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"SERVICE" env-default:"15s"`
}

// Validate проверяет конфигурацию сервера.
func (c *ServerConfig) Validate() error {
	const op = "config/server/Validate"

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("%s: auth.jwt_secret is required", op)
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("%s: token ttl must be positive", op)
	}

	return nil
}

// MustLoadServer — паника при ошибке загрузки.
func MustLoadServer(path string) *ServerConfig {
	cfg, err := LoadServer(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// LoadServer читает конфигурацию dev-сервера в том же порядке источников, что и Load.
func LoadServer(path string) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := load(path, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
