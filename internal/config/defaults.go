package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultDBPort         = 5432
	DefaultDBSSLMode      = "prefer"
	DefaultMaxConns       = 10
	DefaultMinConns       = 2
	DefaultBatchSize      = 500
	DefaultLeaseTTL       = 5 * time.Minute
	DefaultListingMarkup  = 1.5
	DefaultStepFraction   = 0.01
	DefaultFloorFraction  = 0.5
	DefaultSweepInterval  = 5 * time.Minute
	DefaultHourlyInterval = time.Hour
	DefaultHealthPort     = 8080
)

func (c *EngineConfig) applyDefaults() {
	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Engine defaults
	if c.Engine.BatchSize == 0 {
		c.Engine.BatchSize = DefaultBatchSize
	}
	if c.Engine.LeaseTTL == 0 {
		c.Engine.LeaseTTL = DefaultLeaseTTL
	}

	// Listing defaults
	if c.Listing.Markup == 0 {
		c.Listing.Markup = DefaultListingMarkup
	}
	if c.Listing.StepFraction == 0 {
		c.Listing.StepFraction = DefaultStepFraction
	}
	if c.Listing.FloorFraction == 0 {
		c.Listing.FloorFraction = DefaultFloorFraction
	}

	// Jobs defaults
	if c.Jobs.SweepInterval == 0 {
		c.Jobs.SweepInterval = DefaultSweepInterval
	}
	if c.Jobs.HourlyInterval == 0 {
		c.Jobs.HourlyInterval = DefaultHourlyInterval
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
}
