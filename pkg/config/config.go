package config

import "time"

// MaxTimeBudget caps the scan wall-clock budget; longer values are clamped.
const MaxTimeBudget = 60 * time.Minute

// Config holds all runtime configuration
type Config struct {
	// Power BI service settings
	APIBaseURL     string
	Token          string
	RequestTimeout time.Duration
	RateLimit      int // requests per second against the service
	MaxRetries     int
	RetryBaseDelay time.Duration

	// Scan settings
	Concurrency   int
	TimeBudget    time.Duration
	ExcludeTables []string

	// Output settings
	OutputDir string
	Format    string

	// Baseline settings
	BaselinePath   string
	UpdateBaseline bool

	// Operational flags
	Verbose bool
	DryRun  bool
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL:     "https://api.powerbi.com",
		RequestTimeout: 30 * time.Second,
		RateLimit:      10,
		MaxRetries:     4,
		RetryBaseDelay: time.Second,
		Concurrency:    5,
		TimeBudget:     10 * time.Minute,
		OutputDir:      "./report",
		Format:         "csv",
		Verbose:        false,
		DryRun:         false,
	}
}

// Normalize clamps out-of-range values and cleans pattern lists.
func (c *Config) Normalize() {
	if c == nil {
		return
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.TimeBudget <= 0 {
		c.TimeBudget = 10 * time.Minute
	}
	if c.TimeBudget > MaxTimeBudget {
		c.TimeBudget = MaxTimeBudget
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 1
	}
	c.ExcludeTables = normalizePatterns(c.ExcludeTables)
}
