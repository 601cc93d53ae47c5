// Package config provides configuration loading and access for the solver.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all engine configuration parameters.
type Config struct {
	Ship      ShipConfig      `yaml:"ship"`
	Tick      TickConfig      `yaml:"tick"`
	Rules     RulesConfig     `yaml:"rules"`
	Fleet     FleetConfig     `yaml:"fleet"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ShipConfig holds per-ship grid parameters.
type ShipConfig struct {
	NodesPerAxis int `yaml:"nodes_per_axis"` // Chunk node extent per axis, power of two
}

// TickConfig holds the per-tick work budget and its adaptation bounds.
// The budget doubles while a ship's tick finishes under min_tick_time_ms
// with work remaining, and halves when it overruns max_tick_time_ms.
type TickConfig struct {
	Budget        int     `yaml:"budget"`           // Starting queue operations per tick
	MinBudget     int     `yaml:"min_budget"`       // Budget floor
	MaxBudget     int     `yaml:"max_budget"`       // Budget ceiling
	MinTickTimeMS float64 `yaml:"min_tick_time_ms"` // Grow budget under this
	MaxTickTimeMS float64 `yaml:"max_tick_time_ms"` // Shrink budget over this
}

// RulesConfig holds rule library settings.
type RulesConfig struct {
	Path string `yaml:"path"` // Rule library file; empty = embedded defaults
}

// FleetConfig holds multi-ship management parameters.
type FleetConfig struct {
	MaxShips int `yaml:"max_ships"` // Ship id pool size
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	PerfCollectorWindow int    `yaml:"perf_collector_window"`
	OutputDir           string `yaml:"output_dir"`
	FlushInterval       int    `yaml:"flush_interval"` // Ticks between CSV flushes
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	MinTickTime time.Duration // Tick.MinTickTimeMS as a duration
	MaxTickTime time.Duration // Tick.MaxTickTimeMS as a duration
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if
// path is empty. Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

func (c *Config) validate() error {
	n := c.Ship.NodesPerAxis
	if n < 2 || n&(n-1) != 0 {
		return fmt.Errorf("config: ship.nodes_per_axis must be a power of two >= 2, got %d", n)
	}
	if c.Tick.MinBudget < 1 {
		return fmt.Errorf("config: tick.min_budget must be at least 1, got %d", c.Tick.MinBudget)
	}
	if c.Tick.MaxBudget < c.Tick.MinBudget {
		return fmt.Errorf("config: tick.max_budget %d below tick.min_budget %d",
			c.Tick.MaxBudget, c.Tick.MinBudget)
	}
	if c.Tick.Budget < c.Tick.MinBudget || c.Tick.Budget > c.Tick.MaxBudget {
		return fmt.Errorf("config: tick.budget %d outside [%d, %d]",
			c.Tick.Budget, c.Tick.MinBudget, c.Tick.MaxBudget)
	}
	if c.Fleet.MaxShips < 1 {
		return fmt.Errorf("config: fleet.max_ships must be at least 1, got %d", c.Fleet.MaxShips)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.MinTickTime = time.Duration(c.Tick.MinTickTimeMS * float64(time.Millisecond))
	c.Derived.MaxTickTime = time.Duration(c.Tick.MaxTickTimeMS * float64(time.Millisecond))
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
