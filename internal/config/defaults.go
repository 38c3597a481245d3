package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultInstanceID        = "local"
	DefaultStorageDriver     = "memory"
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultImportMode        = "strict"
	DefaultFeeTolerance      = "0.00"
	DefaultImportConcurrency = 4
	DefaultLedgerDir         = "ledgers"
	DefaultWatchInterval     = 30 * time.Second
	DefaultPriorGames        = 5
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
)

func (c *Config) applyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = DefaultInstanceID
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DefaultStorageDriver
	}

	// Database defaults
	applyDBDefaults(&c.Database.Postgres)

	// Import defaults
	if c.Import.Mode == "" {
		c.Import.Mode = DefaultImportMode
	}
	if c.Import.FeeTolerance == "" {
		c.Import.FeeTolerance = DefaultFeeTolerance
	}
	if c.Import.Concurrency == 0 {
		c.Import.Concurrency = DefaultImportConcurrency
	}
	if c.Import.LedgerDir == "" {
		c.Import.LedgerDir = DefaultLedgerDir
	}

	if c.Watch.Interval == 0 {
		c.Watch.Interval = DefaultWatchInterval
	}
	if c.Rating.PriorGames == 0 {
		c.Rating.PriorGames = DefaultPriorGames
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
