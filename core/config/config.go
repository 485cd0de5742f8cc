// Package config loads typed configuration from environment variables,
// with optional .env file support for local development.
package config

import (
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

// Load parses environment variables into the given struct pointer using
// `env` tags. A .env file in the working directory is loaded once per
// process, before the first parse; a missing file is not an error.
func Load(cfg any) error {
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// MustLoad is Load that panics on failure. Intended for startup paths
// where missing configuration should stop the process.
func MustLoad(cfg any) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}
