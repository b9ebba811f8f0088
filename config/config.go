// Package config loads engine configuration from defaults, an optional
// YAML/JSON/TOML file and SYNCENGINE_ environment variables, in that order
// of precedence from lowest to highest.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/c0deZ3R0/go-sync-engine/logging"
	"github.com/c0deZ3R0/go-sync-engine/orchestrator"
	"github.com/c0deZ3R0/go-sync-engine/resolve"
)

// EnvPrefix prefixes every environment override, e.g. SYNCENGINE_BATCH_SIZE
// or SYNCENGINE_RETRY_MAX_BACKOFF.
const EnvPrefix = "SYNCENGINE"

// Store drivers.
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// StoreConfig selects the SyncCoordinator the CLI wires in.
type StoreConfig struct {
	Driver   string `json:"driver" yaml:"driver" mapstructure:"driver"`
	DSN      string `json:"dsn" yaml:"dsn" mapstructure:"dsn"`
	Resolver string `json:"resolver" yaml:"resolver" mapstructure:"resolver"`
}

// ScheduleConfig holds cron specs for the watch command. Empty disables
// the job.
type ScheduleConfig struct {
	Sync string `json:"sync" yaml:"sync" mapstructure:"sync"`
	Tune string `json:"tune" yaml:"tune" mapstructure:"tune"`
}

// App is the full application configuration. The orchestrator settings sit
// at the top level of the file.
type App struct {
	orchestrator.Config `mapstructure:",squash"`

	Logging     logging.Config `json:"logging" yaml:"logging" mapstructure:"logging"`
	Store       StoreConfig    `json:"store" yaml:"store" mapstructure:"store"`
	Schedule    ScheduleConfig `json:"schedule" yaml:"schedule" mapstructure:"schedule"`
	MetricsAddr string         `json:"metrics_addr" yaml:"metrics_addr" mapstructure:"metrics_addr"`
}

// Default returns the defaults Load starts from. Logging defaults follow
// ENVIRONMENT and the LOG_* variables.
func Default() App {
	return App{
		Config:      orchestrator.DefaultConfig(),
		Logging:     logging.GetConfigFromEnv(),
		Store:       StoreConfig{Driver: DriverSQLite, DSN: "sync.db", Resolver: "default"},
		Schedule:    ScheduleConfig{Sync: "@every 1m", Tune: "@every 5m"},
		MetricsAddr: ":9090",
	}
}

// Load returns the orchestrator section of the configuration at path.
func Load(path string) (orchestrator.Config, error) {
	app, err := LoadApp(path)
	if err != nil {
		return orchestrator.Config{}, err
	}
	return app.Config, nil
}

// LoadApp loads and validates the whole configuration. An empty path skips
// the file.
func LoadApp(path string) (*App, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var app App
	if err := v.Unmarshal(&app); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := app.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &app, nil
}

// setDefaults registers every key so that AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d App) {
	c := d.Config
	v.SetDefault("comparison.compare_fields", c.Comparison.CompareFields)
	v.SetDefault("comparison.case_sensitive", c.Comparison.CaseSensitive)
	v.SetDefault("comparison.numeric_tolerance", c.Comparison.NumericTolerance)
	v.SetDefault("conflict.level", string(c.Conflict.Level))
	v.SetDefault("conflict.multi_field_threshold", c.Conflict.MultiFieldThreshold)
	v.SetDefault("retry.max_retry_attempts", c.Retry.MaxRetryAttempts)
	v.SetDefault("retry.base_backoff", c.Retry.BaseBackoff)
	v.SetDefault("retry.max_backoff", c.Retry.MaxBackoff)
	v.SetDefault("enable_conflict_detection", c.EnableConflictDetection)
	v.SetDefault("enable_retry_mechanism", c.EnableRetryMechanism)
	v.SetDefault("max_sync_attempts", c.MaxSyncAttempts)
	v.SetDefault("batch_size", c.BatchSize)
	v.SetDefault("max_concurrent_jobs", c.MaxConcurrentJobs)
	v.SetDefault("enable_parallel_processing", c.EnableParallelProcessing)
	v.SetDefault("sync_non_conflicting_changes", c.SyncNonConflictingChanges)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.add_source", d.Logging.AddSource)
	v.SetDefault("logging.environment", d.Logging.Environment)

	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("store.resolver", d.Store.Resolver)

	v.SetDefault("schedule.sync", d.Schedule.Sync)
	v.SetDefault("schedule.tune", d.Schedule.Tune)

	v.SetDefault("metrics_addr", d.MetricsAddr)
}

func (a *App) validate() error {
	if err := a.Config.Validate(); err != nil {
		return err
	}

	switch a.Store.Driver {
	case DriverNone, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("store.driver must be one of none, sqlite, postgres, got %q", a.Store.Driver)
	}
	if a.Store.Driver != DriverNone && a.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required for driver %s", a.Store.Driver)
	}
	if _, err := resolve.ByName(a.Store.Resolver); err != nil {
		return fmt.Errorf("store.resolver: %w", err)
	}
	return nil
}
