package config

import "time"

// EngineConfig is the root configuration for the exchange engine daemon.
type EngineConfig struct {
	Database DBConfig      `yaml:"database"`
	Engine   MatchConfig   `yaml:"engine"`
	Listing  ListingConfig `yaml:"listing"`
	Jobs     JobsConfig    `yaml:"jobs"`
	Health   HealthConfig  `yaml:"health"`
}

// DBConfig holds the Postgres connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MatchConfig holds matching and settlement settings.
type MatchConfig struct {
	// BatchSize bounds how many staged mutations of any one kind the
	// accumulator holds before writing them out mid-run.
	BatchSize int `yaml:"batch_size"`

	// LeaseTTL is the task-lock lease duration. It must cover the
	// slowest expected sweep; a crashed holder blocks reruns until the
	// lease expires.
	LeaseTTL time.Duration `yaml:"lease_ttl"`
}

// ListingConfig holds the central-bank auto-listing parameters.
type ListingConfig struct {
	// Markup scales the issuer's share price into the initial ask
	// (1.5 = list 50% above the current valuation).
	Markup float64 `yaml:"markup"`

	// StepFraction of the initial price is shaved off per decay tick.
	StepFraction float64 `yaml:"step_fraction"`

	// FloorFraction of the initial price is the decay limit.
	FloorFraction float64 `yaml:"floor_fraction"`
}

// JobsConfig holds the periodic schedule.
type JobsConfig struct {
	SweepInterval  time.Duration `yaml:"sweep_interval"`
	HourlyInterval time.Duration `yaml:"hourly_interval"`
}

// HealthConfig holds the health endpoint settings.
type HealthConfig struct {
	Port int `yaml:"port"`
}
