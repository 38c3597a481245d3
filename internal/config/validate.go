package config

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("storage.driver must be memory or postgres, got %q", c.Storage.Driver)
	}

	switch c.Import.Mode {
	case "strict", "auto":
	default:
		return fmt.Errorf("import.mode must be strict or auto, got %q", c.Import.Mode)
	}
	if _, err := c.Import.Tolerance(); err != nil {
		return err
	}
	if c.Import.Concurrency < 1 {
		return errors.New("import.concurrency must be >= 1")
	}

	if c.Watch.Interval <= 0 {
		return errors.New("watch.interval must be positive")
	}
	if c.Rating.PriorGames < 0 {
		return errors.New("rating.prior_games must be >= 0")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json", "pretty":
	default:
		return fmt.Errorf("logging.format must be text, json or pretty, got %q", c.Logging.Format)
	}

	return nil
}

// Tolerance parses FeeTolerance.
func (c ImportConfig) Tolerance() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.FeeTolerance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("import.fee_tolerance %q is not a decimal amount", c.FeeTolerance)
	}
	if d.IsNegative() {
		return decimal.Zero, errors.New("import.fee_tolerance must be >= 0")
	}
	return d, nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	if db.StatementTimeout < 0 {
		return fmt.Errorf("%s.statement_timeout must be >= 0", prefix)
	}
	return nil
}
