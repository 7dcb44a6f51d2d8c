package util

import (
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

// Config holds runtime settings and flags.
type Config struct {
	DSN           string `env:"DATABASE_URL"`
	ExhibitPath   string `env:"MEASURES_EXHIBIT"`
	Theme         string `env:"MEASURES_THEME" envDefault:"obsidian"`
	ReducedMotion bool   `env:"MEASURES_REDUCED_MOTION"`
	AudioBackend  string `env:"MEASURES_AUDIO" envDefault:"ebiten"` // ebiten|silent
	LogFile       string `env:"MEASURES_LOG"`
	StartPath     string `env:"MEASURES_START"`
}

// LoadConfig reads Config from the environment and fills the local
// database default.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, errors.Wrap(err, "parse environment")
	}
	if cfg.DSN == "" {
		cfg.DSN = DefaultDSN()
	}
	return cfg, nil
}

// DefaultDSN is a sqlite file in the user's config directory.
func DefaultDSN() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return "sqlite://" + filepath.Join(dir, "measures", "visits.db")
}
