// Package config provides configuration loading and access for the herd simulation.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

//go:embed schema.json
var schemaJSON string

// Config holds all simulation configuration parameters.
type Config struct {
	Screen      ScreenConfig      `yaml:"screen"`
	World       WorldConfig       `yaml:"world"`
	Herd        HerdConfig        `yaml:"herd"`
	Inputs      InputsConfig      `yaml:"inputs"`
	Steering    SteeringConfig    `yaml:"steering"`
	Channels    ChannelsConfig    `yaml:"channels"`
	Bake        BakeConfig        `yaml:"bake"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Persistence PersistenceConfig `yaml:"persistence"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds display settings.
type ScreenConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	TargetFPS int `yaml:"target_fps"`
}

// WorldConfig holds the simulated area and its scale.
// The area is a square of SpawnSide centred on the local origin.
type WorldConfig struct {
	SpawnSide  float64 `yaml:"spawn_side"`
	Scale      float64 `yaml:"scale"`       // author-space to world-space distance factor
	TexturePPU int     `yaml:"texture_ppu"` // map texels per author-space unit
	DT         float64 `yaml:"dt"`
}

// HerdConfig holds population parameters.
type HerdConfig struct {
	Count          int `yaml:"count"`
	MaxGroups      int `yaml:"max_groups"`       // stagger cycle length
	RandomPoolSize int `yaml:"random_pool_size"` // values refreshed per tick
}

// PointConfig is a local-space 2D point.
type PointConfig struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// InputsConfig holds the initial attraction and repulsion points.
type InputsConfig struct {
	Attract []PointConfig `yaml:"attract"`
	Repulse []PointConfig `yaml:"repulse"`
}

// SteeringConfig holds every tunable of the behavior state machine.
// Byte thresholds compare against raw map samples.
type SteeringConfig struct {
	MoveSpeed       float64 `yaml:"move_speed"`
	TurnSpeed       float64 `yaml:"turn_speed"`
	ProbeFactor     float64 `yaml:"probe_factor"`    // forward probe distance in steps
	SearchDistance  float64 `yaml:"search_distance"` // fan probe distance in steps
	SearchSpreadDeg float64 `yaml:"search_spread_deg"`
	FanSteps        int     `yaml:"fan_steps"`

	MoveBlock         uint8   `yaml:"move_block"`
	StuckBudget       int     `yaml:"stuck_budget"`
	StuckEscapeChance float64 `yaml:"stuck_escape_chance"`
	TargetDwell       float64 `yaml:"target_dwell"`
	DwellExitChance   float64 `yaml:"dwell_exit_chance"`

	TraceFollow uint8 `yaml:"trace_follow"`
	TraceWeak   uint8 `yaml:"trace_weak"`

	LessHeatBlock       uint8   `yaml:"less_heat_block"`
	LessHeatSideSamples int     `yaml:"less_heat_side_samples"`
	LessHeatSideStride  float64 `yaml:"less_heat_side_stride"`
	LessHeatTurnRate    float64 `yaml:"less_heat_turn_rate"`
	ClearSideHeat       uint8   `yaml:"clear_side_heat"`
	LessHeatMinDwell    float64 `yaml:"less_heat_min_dwell"`
	LessHeatDwellJitter float64 `yaml:"less_heat_dwell_jitter"`
	LessHeatTargetOdds  float64 `yaml:"less_heat_target_odds"` // give up toward the target on a clear side
	LessHeatIdleOdds    float64 `yaml:"less_heat_idle_odds"`   // cumulative with target odds
	LessHeatTraceOdds   float64 `yaml:"less_heat_trace_odds"`  // exit to follow trace rather than re-enter

	IdleMin    int `yaml:"idle_min"`
	IdleJitter int `yaml:"idle_jitter"`

	RunAwayTrigger      uint8   `yaml:"run_away_trigger"`
	RunAwayBlock        uint8   `yaml:"run_away_block"`
	RunAwaySpeed        float64 `yaml:"run_away_speed"`
	RunAwaySectors      int     `yaml:"run_away_sectors"`
	RunAwayScanDistance float64 `yaml:"run_away_scan_distance"`
	RunAwayExitChance   float64 `yaml:"run_away_exit_chance"`
	RunAwayTurnFactor   float64 `yaml:"run_away_turn_factor"`

	RetargetFromInputMap bool `yaml:"retarget_from_input_map"`
}

// ChannelsConfig maps semantic layers to RGBA channel offsets.
type ChannelsConfig struct {
	Heat      int `yaml:"heat"`       // movement map
	Trace     int `yaml:"trace"`      // movement map
	Repulse   int `yaml:"repulse"`    // input map
	AttractID int `yaml:"attract_id"` // input map
}

// TerrainConfig holds the static obstacle field parameters.
type TerrainConfig struct {
	Seed         int64   `yaml:"seed"`
	Scale        float64 `yaml:"scale"` // noise frequency per texel
	Octaves      int     `yaml:"octaves"`
	Threshold    float64 `yaml:"threshold"` // normalized noise above this is an obstacle
	ObstacleHeat uint8   `yaml:"obstacle_heat"`
}

// BakeConfig holds map producer parameters.
type BakeConfig struct {
	BufferSlots      int           `yaml:"buffer_slots"`
	HeatDecay        float64       `yaml:"heat_decay"`  // multiplicative per bake
	TraceDecay       float64       `yaml:"trace_decay"` // multiplicative per bake
	DecalMax         uint8         `yaml:"decal_max"`
	DecalForwardStep uint8         `yaml:"decal_forward_step"`
	DecalSideStep    uint8         `yaml:"decal_side_step"`
	DecalSize        int           `yaml:"decal_size"` // texels
	TraceDeposit     uint8         `yaml:"trace_deposit"`
	RepulseWidth     float64       `yaml:"repulse_width"` // fraction of the area side
	RepulseStrength  float64       `yaml:"repulse_strength"`
	AttractWidth     float64       `yaml:"attract_width"` // fraction of the area side
	Terrain          TerrainConfig `yaml:"terrain"`
}

// TelemetryConfig holds telemetry and logging parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"`          // seconds per stats window
	PerfCollectorWindow int     `yaml:"perf_collector_window"` // ticks in the rolling perf window
}

// PersistenceConfig holds checkpoint parameters.
type PersistenceConfig struct {
	CheckpointInterval float64 `yaml:"checkpoint_interval"` // simulated seconds between checkpoints
}

// DerivedConfig holds values computed from the loaded config.
type DerivedConfig struct {
	SearchSpread     float64 // radians
	TextureSize      int     // texels per side of every baked map
	PhysicalSide     float64 // world-space side covered by the maps
	StatsWindowTicks int
	CheckpointTicks  int
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
		if err := Validate(data); err != nil {
			return nil, fmt.Errorf("validating %s: %w", path, err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.check(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

var compiledSchema *jsonschema.Schema

func schema() (*jsonschema.Schema, error) {
	if compiledSchema != nil {
		return compiledSchema, nil
	}
	sch, err := jsonschema.CompileString("schema.json", schemaJSON)
	if err != nil {
		return nil, fmt.Errorf("compiling config schema: %w", err)
	}
	compiledSchema = sch
	return sch, nil
}

// Validate checks a YAML override document against the embedded schema.
// An empty document is valid.
func Validate(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	if doc == nil {
		return nil
	}
	// The validator expects JSON-decoded values.
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("converting config to json: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("converting config to json: %w", err)
	}
	sch, err := schema()
	if err != nil {
		return err
	}
	return sch.Validate(v)
}

// check rejects merged values the schema cannot express.
func (c *Config) check() error {
	var errs []error
	if c.Herd.MaxGroups <= 0 {
		errs = append(errs, errors.New("herd.max_groups must be positive"))
	}
	if c.World.SpawnSide <= 0 || c.World.Scale <= 0 {
		errs = append(errs, errors.New("world.spawn_side and world.scale must be positive"))
	}
	if c.Bake.BufferSlots < 2 {
		errs = append(errs, errors.New("bake.buffer_slots must be at least 2"))
	}
	for name, ch := range map[string]int{
		"heat": c.Channels.Heat, "trace": c.Channels.Trace,
		"repulse": c.Channels.Repulse, "attract_id": c.Channels.AttractID,
	} {
		if ch < 0 || ch > 3 {
			errs = append(errs, fmt.Errorf("channels.%s out of range: %d", name, ch))
		}
	}
	return errors.Join(errs...)
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.SearchSpread = c.Steering.SearchSpreadDeg * math.Pi / 180
	c.Derived.TextureSize = int(math.Round(c.World.SpawnSide * float64(c.World.TexturePPU)))
	if c.Derived.TextureSize < 1 {
		c.Derived.TextureSize = 1
	}
	c.Derived.PhysicalSide = c.World.SpawnSide * c.World.Scale

	c.Derived.StatsWindowTicks = ticksFor(c.Telemetry.StatsWindow, c.World.DT)
	c.Derived.CheckpointTicks = ticksFor(c.Persistence.CheckpointInterval, c.World.DT)
}

func ticksFor(seconds, dt float64) int {
	if dt <= 0 {
		return 1
	}
	n := int(seconds/dt + 0.5)
	if n < 1 {
		n = 1
	}
	return n
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
