package main

import (
	"flag"

	"github.com/pkg/errors"

	"github.com/daniacca/affectdb/internal/platform/config"
	"github.com/daniacca/affectdb/internal/platform/otel"
)

// ServerConfig holds the server configuration.
type ServerConfig struct {
	Addr     string `env:"AFFECTDB_ADDR" envDefault:":8080"`
	LogLevel string `env:"AFFECTDB_LOG_LEVEL" envDefault:"info"`
	// DBPath enables snapshot persistence when set.
	DBPath string `env:"AFFECTDB_DB_PATH"`
	Strict bool   `env:"AFFECTDB_STRICT"`
	// TickInterval is the simulation-time decay step of every target.
	TickInterval float64 `env:"AFFECTDB_TICK_INTERVAL" envDefault:"0.1"`
	OTel         otel.Config
}

// loadServerConfig reads the environment, then lets command-line flags
// override what it found.
func loadServerConfig(args []string) (ServerConfig, error) {
	var cfg ServerConfig
	if err := config.ParseEnv(&cfg); err != nil {
		return ServerConfig{}, err
	}

	fs := flag.NewFlagSet("affectdb-server", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address (e.g. :8080, 0.0.0.0:8080)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite file for target snapshots; empty disables persistence")
	fs.BoolVar(&cfg.Strict, "strict", cfg.Strict, "reject unhandled affect combinations instead of falling back")
	fs.Float64Var(&cfg.TickInterval, "tick", cfg.TickInterval, "simulation-time decay step")
	fs.StringVar(&cfg.OTel.Endpoint, "otel-endpoint", cfg.OTel.Endpoint, "OTLP/HTTP trace endpoint; empty disables tracing")
	if err := fs.Parse(args); err != nil {
		return ServerConfig{}, err
	}

	if cfg.TickInterval <= 0 {
		return ServerConfig{}, errors.Errorf("tick interval must be positive, got %g", cfg.TickInterval)
	}
	return cfg, nil
}
