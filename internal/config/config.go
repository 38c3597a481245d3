package config

import "time"

// Config is the root configuration for ledgerctl.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Import   ImportConfig   `yaml:"import"`
	Watch    WatchConfig    `yaml:"watch"`
	Rating   RatingConfig   `yaml:"rating"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// InstanceConfig identifies this deployment in logs.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// StorageConfig selects the store backend.
type StorageConfig struct {
	Driver string `yaml:"driver"` // memory or postgres
}

// DatabaseConfig holds the PostgreSQL connection used by the postgres driver.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	Name             string        `yaml:"name"`
	User             string        `yaml:"user"`
	Password         string        `yaml:"password"`
	SSLMode          string        `yaml:"ssl_mode"`
	MaxConns         int           `yaml:"max_conns"`
	MinConns         int           `yaml:"min_conns"`
	StatementTimeout time.Duration `yaml:"statement_timeout"` // 0 leaves the server default
}

// ImportConfig controls ledger imports.
type ImportConfig struct {
	Mode          string `yaml:"mode"`            // strict or auto
	FailFast      bool   `yaml:"fail_fast"`       // a malformed row fails its whole file
	StopOnFailure bool   `yaml:"stop_on_failure"` // the first failed file cancels the run
	FeeTolerance  string `yaml:"fee_tolerance"`   // largest |sum of nets| accepted per game
	Concurrency   int    `yaml:"concurrency"`
	LedgerDir     string `yaml:"ledger_dir"` // inbox scanned by watch
}

// WatchConfig holds ledger inbox poller settings.
type WatchConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// RatingConfig holds the rating policy constant.
type RatingConfig struct {
	PriorGames int `yaml:"prior_games"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json, pretty
}
