// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	World      WorldConfig      `yaml:"world"`
	Physics    PhysicsConfig    `yaml:"physics"`
	Absorption AbsorptionConfig `yaml:"absorption"`
	Harden     HardenConfig     `yaml:"harden"`
	Movement   MovementConfig   `yaml:"movement"`
	Drift      DriftConfig      `yaml:"drift"`
	Population PopulationConfig `yaml:"population"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// WorldConfig holds simulation world dimensions.
type WorldConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// PhysicsConfig holds simulation step parameters.
type PhysicsConfig struct {
	DT           float64 `yaml:"dt"`
	GridCellSize float64 `yaml:"grid_cell_size"`
}

// AbsorptionConfig holds merge state machine parameters.
type AbsorptionConfig struct {
	OverlapInterval    int      `yaml:"overlap_interval"`     // Individual bubbles query overlap every N ticks
	MergeLayers        []string `yaml:"merge_layers"`         // Categories eligible as merge candidates
	DefaultChildWeight float64  `yaml:"default_child_weight"` // Child weight ratio when a spawn does not set one
}

// HardenConfig holds harden interaction parameters.
type HardenConfig struct {
	MinimumTime float64 `yaml:"minimum_time"` // Seconds a harden must last before release is honoured
}

// MovementProfile is a speed/acceleration pair for the velocity lerp.
type MovementProfile struct {
	Speed        float64 `yaml:"speed"`
	Acceleration float64 `yaml:"acceleration"`
}

// MovementConfig holds movement profiles per category.
type MovementConfig struct {
	Player   MovementProfile `yaml:"player"`
	Friendly MovementProfile `yaml:"friendly"`
	Negative MovementProfile `yaml:"negative"`
	Slowed   MovementProfile `yaml:"slowed"` // Player held by a negative bubble
}

// DriftConfig holds the noise steering field parameters.
type DriftConfig struct {
	Scale     float64 `yaml:"scale"`      // Spatial noise frequency
	TimeSpeed float64 `yaml:"time_speed"` // Noise animation speed (0 = static)
	Strength  float64 `yaml:"strength"`   // Heading magnitude, 0..1
}

// SpawnConfig describes the initial population of one category.
type SpawnConfig struct {
	Count       int     `yaml:"count"`
	RadiusMin   float64 `yaml:"radius_min"`
	RadiusMax   float64 `yaml:"radius_max"`
	ChildWeight float64 `yaml:"child_weight"` // 0 = absorption.default_child_weight
}

// PopulationConfig holds initial population parameters.
type PopulationConfig struct {
	Player   SpawnConfig `yaml:"player"`
	Friendly SpawnConfig `yaml:"friendly"`
	Negative SpawnConfig `yaml:"negative"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"`
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	TicksPerSecond float64 // 1 / Physics.DT
	MinHardenTicks int32   // Harden.MinimumTime in ticks, rounded up
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
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

// Default returns the embedded defaults. Panics if they fail to parse.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

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

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	cfg.computeDerived()

	return cfg, nil
}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Validate rejects values the simulation cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Physics.DT <= 0:
		return fmt.Errorf("%w: physics.dt must be positive", ErrInvalid)
	case c.Physics.GridCellSize <= 0:
		return fmt.Errorf("%w: physics.grid_cell_size must be positive", ErrInvalid)
	case c.World.Width <= 0 || c.World.Height <= 0:
		return fmt.Errorf("%w: world dimensions must be positive", ErrInvalid)
	case c.Absorption.OverlapInterval < 1:
		return fmt.Errorf("%w: absorption.overlap_interval must be at least 1", ErrInvalid)
	case c.Absorption.DefaultChildWeight < 0:
		return fmt.Errorf("%w: absorption.default_child_weight must not be negative", ErrInvalid)
	case c.Harden.MinimumTime < 0:
		return fmt.Errorf("%w: harden.minimum_time must not be negative", ErrInvalid)
	}

	for _, name := range c.Absorption.MergeLayers {
		switch strings.ToLower(name) {
		case "player", "friendly", "negative":
		default:
			return fmt.Errorf("%w: unknown merge layer %q", ErrInvalid, name)
		}
	}

	spawns := map[string]SpawnConfig{
		"player":   c.Population.Player,
		"friendly": c.Population.Friendly,
		"negative": c.Population.Negative,
	}
	for name, s := range spawns {
		if s.Count < 0 {
			return fmt.Errorf("%w: population.%s.count must not be negative", ErrInvalid, name)
		}
		if s.Count > 0 && (s.RadiusMin <= 0 || s.RadiusMax < s.RadiusMin) {
			return fmt.Errorf("%w: population.%s radius range [%v, %v]", ErrInvalid, name, s.RadiusMin, s.RadiusMax)
		}
		if s.ChildWeight < 0 {
			return fmt.Errorf("%w: population.%s.child_weight must not be negative", ErrInvalid, name)
		}
	}

	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.TicksPerSecond = 1.0 / c.Physics.DT

	ticks := c.Harden.MinimumTime / c.Physics.DT
	c.Derived.MinHardenTicks = int32(ticks)
	if float64(c.Derived.MinHardenTicks) < ticks {
		c.Derived.MinHardenTicks++
	}

	if len(c.Absorption.MergeLayers) == 0 {
		c.Absorption.MergeLayers = []string{"player", "friendly", "negative"}
	}
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
