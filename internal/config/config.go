// Package config загружает конфигурацию сервиса из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- HTTP ---
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	// Таймаут обработки одного запроса (chi middleware.Timeout)
	HTTPRequestTimeout time.Duration `envconfig:"HTTP_REQUEST_TIMEOUT" default:"30s"`

	// --- Remote store (Postgres / Supabase) ---
	// Пустая строка = удалённое хранилище не настроено, всё идёт в локальное.
	RemoteDSN     string        `envconfig:"REMOTE_DSN"`
	RemoteTimeout time.Duration `envconfig:"REMOTE_TIMEOUT" default:"3s"`
	DBMaxConns    int32         `envconfig:"DB_MAX_CONNS" default:"10"`
	DBMinConns    int32         `envconfig:"DB_MIN_CONNS" default:"0"`

	// --- Local fallback store (LevelDB) ---
	LocalStorePath string `envconfig:"LOCAL_STORE_PATH" default:"data/noospace"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"info"`
	// Часовой пояс, в котором считается «сегодня» для дневной квоты
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"UTC"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"30"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Metrics ---
	MetricsEnabled bool `envconfig:"METRICS_ENABLED" default:"true"`

	// --- Jobs ---
	HarvestSweepEnabled  bool   `envconfig:"HARVEST_SWEEP_ENABLED" default:"false"`
	HarvestSweepSchedule string `envconfig:"HARVEST_SWEEP_SCHEDULE" default:"0 0 * * *"`
	QuotaPruneSchedule   string `envconfig:"QUOTA_PRUNE_SCHEDULE" default:"30 0 * * *"`

	// --- Admin ---
	// Argon2id-хеш пароля (scripts/generate_hash.go). Пусто = админка выключена.
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH"`
}

// RemoteConfigured сообщает, задано ли удалённое хранилище.
func (c *Config) RemoteConfigured() bool {
	return strings.TrimSpace(c.RemoteDSN) != ""
}

// Location возвращает часовой пояс приложения.
// Если APP_TIMEZONE не загружается — UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.AppTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR не задан")
	}
	if c.RemoteTimeout <= 0 {
		return fmt.Errorf("REMOTE_TIMEOUT должен быть > 0")
	}
	if c.HTTPRequestTimeout <= 0 {
		return fmt.Errorf("HTTP_REQUEST_TIMEOUT должен быть > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if strings.TrimSpace(c.LocalStorePath) == "" {
		return fmt.Errorf("LOCAL_STORE_PATH не задан")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS/RATE_LIMIT_WINDOW должны быть > 0")
	}
	if _, err := time.LoadLocation(c.AppTimezone); err != nil {
		return fmt.Errorf("APP_TIMEZONE %q: %w", c.AppTimezone, err)
	}
	if _, err := cron.ParseStandard(c.HarvestSweepSchedule); err != nil {
		return fmt.Errorf("HARVEST_SWEEP_SCHEDULE: %w", err)
	}
	if _, err := cron.ParseStandard(c.QuotaPruneSchedule); err != nil {
		return fmt.Errorf("QUOTA_PRUNE_SCHEDULE: %w", err)
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
