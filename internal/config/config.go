// Package config loads per-module JSON configuration files and layers
// environment overrides on top, the way utils.Modulo bootstrap
// loaded a JSON file per binary before starting its HTTP server.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Load decodes the JSON file at path into a fresh T. If a ".env" file is
// present in the working directory it is loaded first via godotenv so its
// values are visible to any Overlay call the caller makes afterward; a
// missing .env is not an error, mirroring godotenv's own convention.
func Load[T any](path string) (*T, error) {
	_ = godotenv.Load()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	var cfg T
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	return &cfg, nil
}

// OverlayString returns the environment variable named key if set, else def.
// Callers use it after Load to let an env var (typically injected by an
// orchestrator) win over the checked-in JSON value.
func OverlayString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// OverlayInt is OverlayString for integer-valued settings such as
// NUM_FRAMES.
func OverlayInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	var parsed int
	if _, err := fmt.Sscanf(v, "%d", &parsed); err != nil {
		return def
	}
	return parsed
}
