package config

import (
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	Addr     string        `env:"AFFECTDB_TEST_ADDR" envDefault:":8080"`
	Strict   bool          `env:"AFFECTDB_TEST_STRICT"`
	Interval time.Duration `env:"AFFECTDB_TEST_INTERVAL" envDefault:"100ms"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("expected default addr :8080, got %q", cfg.Addr)
	}
	if cfg.Strict {
		t.Fatal("expected strict to default to false")
	}
	if cfg.Interval != 100*time.Millisecond {
		t.Fatalf("expected 100ms interval, got %v", cfg.Interval)
	}
}

func TestParseEnvOverrides(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("AFFECTDB_TEST_STRICT", "true")
	t.Setenv("AFFECTDB_TEST_INTERVAL", "2s")

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if !cfg.Strict || cfg.Interval != 2*time.Second {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("AFFECTDB_TEST_STRICT", "not-a-bool")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

