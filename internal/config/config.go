// Package config handles loading and validation of refctl.toml project
// configuration. Grounded on this package's original interlock.yaml
// loader — same shape (Load(dir), a second-pass decode for
// backend-specific sections, a validate function) — ported from
// gopkg.in/yaml.v3 to github.com/pelletier/go-toml/v2, per the TOML
// configuration format.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pelletier/go-toml/v2"

	"github.com/dwsmith1983/interlock/internal/store/postgres"
	"github.com/dwsmith1983/interlock/internal/store/sqlite"
	"github.com/dwsmith1983/interlock/pkg/types"
)

const configFileName = "refctl.toml"

// ConfigDirEnvVar names the environment variable that overrides the
// configuration-directory lookup; it always takes precedence over the
// discovered file location.
const ConfigDirEnvVar = "REFCTL_CONFIG_DIR"

// backendConfigs is decoded in a second pass so db.config can be typed
// to the concrete backend it names, mirroring the original providerConfigs.
type backendConfigs struct {
	DB struct {
		Sqlite   *sqlite.Config   `toml:"sqlite,omitempty"`
		Postgres *postgres.Config `toml:"postgres,omitempty"`
	} `toml:"db"`
}

// Load discovers and parses refctl.toml. The search order is: dir (if
// non-empty), then $REFCTL_CONFIG_DIR, then the OS user config
// directory's "refctl" subdirectory.
func Load(dir string) (*types.ProjectConfig, error) {
	resolved, err := resolveConfigDir(dir)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(resolved, configFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg types.ProjectConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	var backends backendConfigs
	if err := toml.Unmarshal(data, &backends); err != nil {
		return nil, fmt.Errorf("config: parsing db section of %s: %w", path, err)
	}
	cfg.SqliteConfig = backends.DB.Sqlite
	cfg.PostgresConfig = backends.DB.Postgres

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validating %s: %w", path, err)
	}
	return &cfg, nil
}

func resolveConfigDir(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if fromEnv := os.Getenv(ConfigDirEnvVar); fromEnv != "" {
		return fromEnv, nil
	}
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: resolving OS user config dir: %w", err)
	}
	return filepath.Join(userConfigDir, "refctl"), nil
}

func validate(cfg *types.ProjectConfig) error {
	switch cfg.LogLevel {
	case "", "error", "warning", "info", "debug":
	default:
		return fmt.Errorf("log_level must be one of error, warning, info, debug, got %q", cfg.LogLevel)
	}

	if cfg.Paths.Results == "" {
		return fmt.Errorf("paths.results is required")
	}
	if cfg.Paths.Scratch == "" {
		return fmt.Errorf("paths.scratch is required")
	}

	if cfg.DB.DatabaseURL == "" {
		return fmt.Errorf("db.database_url is required")
	}
	if cfg.DB.MaxBackups == 0 {
		cfg.DB.MaxBackups = 5
	}

	switch cfg.Executor.Executor {
	case "", types.ExecutorSynchronous, types.ExecutorLocalPool, types.ExecutorDistributedQueue, types.ExecutorHPCBatch:
	default:
		return fmt.Errorf("executor.executor %q is not a recognized variant", cfg.Executor.Executor)
	}
	if cfg.Executor.Executor == types.ExecutorLocalPool {
		if n, ok := cfg.Executor.Config["pool_size"]; !ok || fmt.Sprint(n) == "0" {
			cfg.Executor.Config = mergeDefault(cfg.Executor.Config, "pool_size", runtime.NumCPU())
		}
	}

	for i, dp := range cfg.DiagnosticProviders {
		if dp.Provider == "" {
			return fmt.Errorf("diagnostic_providers[%d].provider is required", i)
		}
	}
	return nil
}

func mergeDefault(m map[string]any, key string, value any) map[string]any {
	if m == nil {
		m = map[string]any{}
	}
	m[key] = value
	return m
}
