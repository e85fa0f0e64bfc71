package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *EngineConfig) Validate() error {
	if err := c.Database.validate("database"); err != nil {
		return err
	}

	if c.Engine.BatchSize < 1 {
		return errors.New("engine.batch_size must be >= 1")
	}
	if c.Engine.LeaseTTL <= 0 {
		return errors.New("engine.lease_ttl must be positive")
	}

	if c.Listing.Markup <= 1 {
		return fmt.Errorf("listing.markup must be > 1, got %v", c.Listing.Markup)
	}
	if c.Listing.StepFraction <= 0 || c.Listing.StepFraction >= 1 {
		return fmt.Errorf("listing.step_fraction must be in (0, 1), got %v", c.Listing.StepFraction)
	}
	if c.Listing.FloorFraction <= 0 || c.Listing.FloorFraction >= 1 {
		return fmt.Errorf("listing.floor_fraction must be in (0, 1), got %v", c.Listing.FloorFraction)
	}

	if c.Jobs.SweepInterval <= 0 {
		return errors.New("jobs.sweep_interval must be positive")
	}
	if c.Jobs.HourlyInterval <= 0 {
		return errors.New("jobs.hourly_interval must be positive")
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	return nil
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
	return nil
}
