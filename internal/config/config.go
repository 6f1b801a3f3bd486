// config - загрузка конфигурации CLI-клиента и dev-сервера.
//
// Источники (по убыванию приоритета):
//  1. явный путь --config;
//  2. CONFIG_PATH;
//  3. ./local.yaml;
//  4. только ENV (cleanenv).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Драйверы хранилища учётных данных.
const (
	StorageFile   = "file"
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// Config — конфигурация CLI-клиента.
type Config struct {
	Env     string        `yaml:"env" env:"ENV" env-default:"local"`
	API     APIConfig     `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`
}

// APIConfig — параметры конвейера запросов к backend.
type APIConfig struct {
	BaseURL   string        `yaml:"base_url"   env:"API_BASE_URL"   env-default:"http://localhost:8000"`
	Timeout   time.Duration `yaml:"timeout"    env:"API_TIMEOUT"    env-default:"30s"`
	UserAgent string        `yaml:"user_agent" env:"API_USER_AGENT" env-default:"aihub-cli/1.0"`
	LoginPath string        `yaml:"login_path" env:"API_LOGIN_PATH" env-default:"/auth/login"`
	// RotateRefreshToken — принимать refresh_token из ответа refresh-эндпоинта.
	RotateRefreshToken bool `yaml:"rotate_refresh_token" env:"API_ROTATE_REFRESH_TOKEN" env-default:"false"`
}

// StorageConfig — где хранится пара токенов и кэш профиля.
type StorageConfig struct {
	Driver    string `yaml:"driver"     env:"STORAGE_DRIVER"     env-default:"file"`
	Path      string `yaml:"path"       env:"STORAGE_PATH"`
	Profile   string `yaml:"profile"    env:"STORAGE_PROFILE"    env-default:"default"`
	RedisURL  string `yaml:"redis_url"  env:"STORAGE_REDIS_URL"  env-default:"redis://localhost:6379/0"`
	KeyPrefix string `yaml:"key_prefix" env:"STORAGE_KEY_PREFIX" env-default:"aihub:"`
}

// FilePath возвращает путь к файлу с учётными данными: явный Path либо
// <UserConfigDir>/aihub/<profile>.json.
func (s StorageConfig) FilePath() (string, error) {
	const op = "config/config/FilePath"

	if s.Path != "" {
		return s.Path, nil
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return filepath.Join(dir, "aihub", s.Profile+".json"), nil
}

// Validate проверяет согласованность значений после загрузки.
func (c *Config) Validate() error {
	const op = "config/config/Validate"

	if c.API.BaseURL == "" {
		return fmt.Errorf("%s: api.base_url is required", op)
	}

	switch c.Storage.Driver {
	case StorageFile, StorageMemory, StorageRedis:
	default:
		return fmt.Errorf("%s: unknown storage driver %q", op, c.Storage.Driver)
	}

	return nil
}

// MustLoad — паника при ошибке загрузки.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load читает конфигурацию CLI и проверяет её.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := load(path, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// load — общий порядок источников для любой структуры конфигурации.
func load(path string, cfg any) error {
	tryRead := func(p string) error {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, cfg); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(cfg); err != nil {
			return fmt.Errorf("failed to overlay env: %w", err)
		}

		return nil
	}

	// 1) --config
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml
	if _, err := os.Stat("local.yaml"); err == nil {
		if err := cleanenv.ReadConfig("local.yaml", cfg); err != nil {
			return fmt.Errorf("failed to read local.yaml: %w", err)
		}

		if err := cleanenv.ReadEnv(cfg); err != nil {
			return fmt.Errorf("failed to overlay env: %w", err)
		}

		return nil
	}

	// 4) только ENV
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	return nil
}
