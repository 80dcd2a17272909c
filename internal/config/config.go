// Package config содержит логику чтения конфигурации сервиса бронирования.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress        = "localhost:8080"
	defaultDataDir           = "data"
	defaultReconcileInterval = time.Minute
)

// Config содержит параметры конфигурации сервиса бронирования.
type Config struct {
	RunAddress        string        `env:"RUN_ADDRESS"`
	DatabaseURI       string        `env:"DATABASE_URI"`
	DataDir           string        `env:"DATA_DIR"`
	FileOnly          bool          `env:"FILE_ONLY"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL"`
	// SessionSecret задаётся только через окружение, чтобы не попадать в список процессов.
	SessionSecret string `env:"SESSION_SECRET"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Значения из окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fromEnv := *cfg

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "PostgreSQL URI probed before the embedded database")
	flag.StringVar(&cfg.DataDir, "f", defaultDataDir, "directory for the embedded database and fallback files")
	flag.BoolVar(&cfg.FileOnly, "file-only", false, "skip database probing and persist to files only")
	flag.DurationVar(&cfg.ReconcileInterval, "reconcile", defaultReconcileInterval, "interval between consistency repairs")

	flag.Parse()

	if fromEnv.RunAddress != "" {
		cfg.RunAddress = fromEnv.RunAddress
	}
	if fromEnv.DatabaseURI != "" {
		cfg.DatabaseURI = fromEnv.DatabaseURI
	}
	if fromEnv.DataDir != "" {
		cfg.DataDir = fromEnv.DataDir
	}
	if fromEnv.FileOnly {
		cfg.FileOnly = true
	}
	if fromEnv.ReconcileInterval > 0 {
		cfg.ReconcileInterval = fromEnv.ReconcileInterval
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = defaultReconcileInterval
	}

	return cfg, nil
}
