// Package sqlite provides a SQLite backed SyncCoordinator.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/c0deZ3R0/go-sync-engine/logging"
	"github.com/c0deZ3R0/go-sync-engine/resolve"
	"github.com/c0deZ3R0/go-sync-engine/storage/sqlstore"

	// Go SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// Config holds configuration options for the SQLite store.
//
// DefaultConfig enables WAL, a 5s busy timeout and a small connection pool.
type Config struct {
	// DataSourceName is the SQLite file or DSN.
	// Example: "file:sync.db"
	DataSourceName string

	// EnableWAL appends _journal_mode=WAL to DataSourceName.
	EnableWAL bool

	// BusyTimeout makes writers wait for locks instead of failing.
	BusyTimeout time.Duration

	// Logger defaults to logging.Default().
	Logger *logging.Logger

	// Table names. Defaults: "records" and "sync_conflicts".
	RecordsTable   string
	ConflictsTable string

	// Resolver decides conflicts; resolve.Default() when nil.
	Resolver resolve.Resolver

	// Connection pool settings.
	MaxOpenConns    int           // Default: 25
	MaxIdleConns    int           // Default: 5
	ConnMaxLifetime time.Duration // Default: 1h
	ConnMaxIdleTime time.Duration // Default: 5m
}

// setDefaults applies default values to the config
func (c *Config) setDefaults() {
	if c.Logger == nil {
		c.Logger = logging.Default()
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = 5 * time.Minute
	}
	if c.EnableWAL && !strings.Contains(c.DataSourceName, "_journal_mode=") {
		c.DataSourceName = withParam(c.DataSourceName, "_journal_mode=WAL")
	}
	if c.BusyTimeout > 0 && !strings.Contains(c.DataSourceName, "_busy_timeout=") {
		c.DataSourceName = withParam(c.DataSourceName, fmt.Sprintf("_busy_timeout=%d", c.BusyTimeout.Milliseconds()))
	}
}

func withParam(dsn, param string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + param
	}
	return dsn + "?" + param
}

// DefaultConfig returns a Config with defaults for dataSourceName.
func DefaultConfig(dataSourceName string) *Config {
	return &Config{
		DataSourceName: dataSourceName,
		EnableWAL:      true,
		BusyTimeout:    5 * time.Second,
	}
}

// Store is a sqlstore.Store over SQLite.
type Store struct {
	*sqlstore.Store
}

// NewWithDataSource is a convenience constructor
func NewWithDataSource(dataSourceName string) (*Store, error) {
	return New(DefaultConfig(dataSourceName))
}

// New opens the database, configures the pool and creates the schema.
func New(config *Config) (*Store, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	config.setDefaults()
	if config.DataSourceName == "" {
		return nil, fmt.Errorf("DataSourceName is required")
	}

	ctx := context.Background()
	logger := config.Logger.WithComponent(logging.Component("sqlite-store"))
	logger.InfoContext(ctx, "Opening SQLite database",
		slog.String("data_source", config.DataSourceName),
		slog.Bool("wal_enabled", config.EnableWAL),
	)

	db, err := sql.Open("sqlite3", config.DataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}

	store, err := sqlstore.New(ctx, db, sqlstore.Config{
		Dialect:        sqlstore.DialectSQLite,
		RecordsTable:   config.RecordsTable,
		ConflictsTable: config.ConflictsTable,
		Resolver:       config.Resolver,
		Logger:         config.Logger,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to setup database schema: %w", err)
	}

	logger.InfoContext(ctx, "SQLite store initialized", slog.Int("max_open_conns", config.MaxOpenConns))
	return &Store{Store: store}, nil
}
