package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration for the order server.
type Config struct {
	Port                 int           `yaml:"port"`
	MetricsPort          int           `yaml:"metrics_port"`
	LogLevel             string        `yaml:"log_level"`
	JWTSecret            string        `yaml:"jwt_secret"`
	DatabaseURL          string        `yaml:"database_url"`
	AMQPURL              string        `yaml:"amqp_url"`
	SessionSweepInterval time.Duration `yaml:"session_sweep_interval"`
	ReadTimeout          time.Duration `yaml:"read_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	IdleTimeout          time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout      time.Duration `yaml:"shutdown_timeout"`
}

// Load builds the configuration in three layers: defaults, then the
// optional YAML file named by CONFIG_FILE, then environment variables.
// It returns an error for any invalid value.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                 8080,
		MetricsPort:          9090,
		LogLevel:             "info",
		JWTSecret:            "",
		SessionSweepInterval: 5 * time.Minute,
		ReadTimeout:          5 * time.Second,
		WriteTimeout:         10 * time.Second,
		IdleTimeout:          60 * time.Second,
		ShutdownTimeout:      10 * time.Second,
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := loadEnv(cfg); err != nil {
		return nil, err
	}

	if !isValidLogLevel(cfg.LogLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", cfg.LogLevel)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.SessionSweepInterval <= 0 {
		return nil, fmt.Errorf("SESSION_SWEEP_INTERVAL must be positive")
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func loadEnv(cfg *Config) error {
	var err error
	if cfg.Port, err = getInt("PORT", cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}
	if cfg.MetricsPort, err = getInt("METRICS_PORT", cfg.MetricsPort); err != nil {
		return fmt.Errorf("invalid METRICS_PORT: %w", err)
	}
	cfg.LogLevel = getStr("LOG_LEVEL", cfg.LogLevel)
	cfg.JWTSecret = getStr("JWT_SECRET", cfg.JWTSecret)
	cfg.DatabaseURL = getStr("DATABASE_URL", cfg.DatabaseURL)
	cfg.AMQPURL = getStr("AMQP_URL", cfg.AMQPURL)

	if cfg.SessionSweepInterval, err = getDuration("SESSION_SWEEP_INTERVAL", cfg.SessionSweepInterval); err != nil {
		return fmt.Errorf("invalid SESSION_SWEEP_INTERVAL: %w", err)
	}
	if cfg.ReadTimeout, err = getDuration("READ_TIMEOUT", cfg.ReadTimeout); err != nil {
		return fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}
	if cfg.WriteTimeout, err = getDuration("WRITE_TIMEOUT", cfg.WriteTimeout); err != nil {
		return fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}
	if cfg.IdleTimeout, err = getDuration("IDLE_TIMEOUT", cfg.IdleTimeout); err != nil {
		return fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}
	return nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
