package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// ============================================================
// Configuration
// ============================================================

const (
	SessionStoreMemory = "memory"
	SessionStoreSQLite = "sqlite"

	PhaseModeSequential = "sequential"
	PhaseModeConcurrent = "concurrent"
)

type Config struct {
	Port         string `mapstructure:"port"`
	Environment  string `mapstructure:"env"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	BodyLimit    int    `mapstructure:"body_limit"`

	BackendURL     string `mapstructure:"backend_url"`
	BackendTimeout int    `mapstructure:"backend_timeout"`

	StorageDir   string `mapstructure:"storage_dir"`
	SessionStore string `mapstructure:"session_store"`
	DBPath       string `mapstructure:"db_path"`
	CookieSecure bool   `mapstructure:"cookie_secure"`

	PhaseDwell time.Duration `mapstructure:"phase_dwell"`
	PhaseMode  string        `mapstructure:"phase_mode"`

	ArtifactTTL   time.Duration `mapstructure:"artifact_ttl"`
	JobRetention  time.Duration `mapstructure:"job_retention"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load загружает конфигурацию: значения по умолчанию, YAML (CONFIG_PATH) и переменные окружения.
// Отсутствующий файл конфигурации не ошибка.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	path := v.GetString("config_path")
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("config_path", "config.yaml")

	v.SetDefault("port", "3000")
	v.SetDefault("env", "development")
	v.SetDefault("read_timeout", 10)
	v.SetDefault("write_timeout", 300)
	v.SetDefault("body_limit", 20*1024*1024)

	v.SetDefault("backend_url", "http://localhost:8000")
	v.SetDefault("backend_timeout", 0)

	v.SetDefault("storage_dir", "data/sessions")
	v.SetDefault("session_store", SessionStoreMemory)
	v.SetDefault("db_path", "data/db/sessions.db")
	v.SetDefault("cookie_secure", false)

	v.SetDefault("phase_dwell", 2*time.Second)
	v.SetDefault("phase_mode", PhaseModeSequential)

	v.SetDefault("artifact_ttl", 15*time.Minute)
	v.SetDefault("job_retention", time.Minute)
	v.SetDefault("sweep_interval", time.Minute)
}

func (c *Config) validate() error {
	if c.BackendURL == "" {
		return errors.New("BACKEND_URL must not be empty")
	}
	if c.SessionStore != SessionStoreMemory && c.SessionStore != SessionStoreSQLite {
		return fmt.Errorf("unknown SESSION_STORE %q", c.SessionStore)
	}
	if c.PhaseMode != PhaseModeSequential && c.PhaseMode != PhaseModeConcurrent {
		return fmt.Errorf("unknown PHASE_MODE %q", c.PhaseMode)
	}
	if c.PhaseDwell < 0 || c.BackendTimeout < 0 || c.ArtifactTTL < 0 || c.JobRetention < 0 || c.SweepInterval < 0 {
		return errors.New("durations must not be negative")
	}
	return nil
}
