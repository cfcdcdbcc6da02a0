// Package config resolves the server's settings from a YAML file and
// then the environment, the environment taking priority; cmd/server
// overlays CLI flags on the result — the same layering
// hurttlocker-cortex's internal/config/resolver.go uses for its own
// config file + env + CLI resolution.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds every setting the server needs at startup.
type Config struct {
	Port             int    `yaml:"port"`
	M                int    `yaml:"m"`
	SnapshotPath     string `yaml:"snapshot_path"`
	SnapshotSize     int64  `yaml:"snapshot_size"`
	SnapshotInterval int    `yaml:"snapshot_interval_seconds"`
	LoadSnapshot     bool   `yaml:"load_snapshot"`
}

// Default returns the server's built-in defaults.
func Default() Config {
	return Config{
		Port:             8001,
		M:                16,
		SnapshotPath:     "hnswd.snapshot",
		SnapshotSize:     64 << 20, // 64 MiB
		SnapshotInterval: 0,        // disabled
		LoadSnapshot:     false,
	}
}

// Load starts from Default, overlays a YAML file at path if it exists
// and is non-empty, then overlays environment variable overrides. path
// may be empty, in which case the file layer is skipped entirely — a
// missing or empty path is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// No config file is not an error; defaults (plus env/CLI) apply.
		default:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv overlays VECTORD_* environment variables onto cfg, when set.
func applyEnv(cfg *Config) {
	if v := os.Getenv("VECTORD_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v := os.Getenv("VECTORD_M"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.M = n
		}
	}
	if v := os.Getenv("VECTORD_SNAPSHOT_PATH"); v != "" {
		cfg.SnapshotPath = v
	}
	if v := os.Getenv("VECTORD_SNAPSHOT_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.SnapshotSize = n
		}
	}
	if v := os.Getenv("VECTORD_SNAPSHOT_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SnapshotInterval = n
		}
	}
	if v := os.Getenv("VECTORD_LOAD_SNAPSHOT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.LoadSnapshot = b
		}
	}
}
