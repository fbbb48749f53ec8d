package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/voxelsplace/voxmesh/api"
	"github.com/voxelsplace/voxmesh/vopl"
)

// EnvConfig names the variable consulted when Load is given no path.
const EnvConfig = "VOXMESH_CONFIG"

// Config is the root of the voxmesh YAML file. Fields left out of the file
// keep their Default values.
type Config struct {
	GLB      api.Options   `yaml:"glb"`
	Codec    CodecConfig   `yaml:"codec"`
	Pack     PackConfig    `yaml:"pack"`
	Terrain  TerrainConfig `yaml:"terrain"`
	LogLevel string        `yaml:"log_level"`
}

type CodecConfig struct {
	// Encodings lists candidate payload encodings by name (dense, sparse,
	// bitmap). Empty tries all of them.
	Encodings     []string `yaml:"encodings"`
	NoCompression bool     `yaml:"no_compression"`
}

type PackConfig struct {
	Compression string `yaml:"compression"` // none, zlib, zstd
	Layout      string `yaml:"layout"`      // raw, cdc
}

// TerrainConfig drives the perlin terrain generator.
type TerrainConfig struct {
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	Depth      int     `yaml:"depth"`
	Seed       int64   `yaml:"seed"`
	Alpha      float64 `yaml:"alpha"`
	Beta       float64 `yaml:"beta"`
	Octaves    int32   `yaml:"octaves"`
	Scale      float64 `yaml:"scale"`
	WaterLevel int     `yaml:"water_level"`
}

func Default() *Config {
	return &Config{
		GLB: api.Options{Water: true, PlaceAtOrigin: true},
		Pack: PackConfig{
			Compression: "zstd",
			Layout:      "cdc",
		},
		Terrain: TerrainConfig{
			Width:      32,
			Height:     24,
			Depth:      32,
			Seed:       1,
			Alpha:      2,
			Beta:       2,
			Octaves:    3,
			Scale:      0.05,
			WaterLevel: 8,
		},
		LogLevel: "info",
	}
}

// Load reads a YAML config file over Default. If path is empty it falls
// back to $VOXMESH_CONFIG, and with neither set it returns the defaults.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envBool(name string, dst *bool) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = b
	return nil
}

func envString(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func (c *Config) applyEnv() error {
	bools := []struct {
		name string
		dst  *bool
	}{
		{"VOXMESH_DISABLE_AO", &c.GLB.Mesh.DisableAO},
		{"VOXMESH_DISABLE_GREEDY", &c.GLB.Mesh.DisableGreedyMeshing},
		{"VOXMESH_CENTERED", &c.GLB.Mesh.Centered},
		{"VOXMESH_STITCH", &c.GLB.Mesh.Stitch},
		{"VOXMESH_WATER", &c.GLB.Water},
		{"VOXMESH_NO_COMPRESSION", &c.Codec.NoCompression},
	}
	for _, b := range bools {
		if err := envBool(b.name, b.dst); err != nil {
			return err
		}
	}
	envString("VOXMESH_PACK_COMPRESSION", &c.Pack.Compression)
	envString("VOXMESH_PACK_LAYOUT", &c.Pack.Layout)
	envString("VOXMESH_LOG_LEVEL", &c.LogLevel)
	return nil
}

// Settings holds the string-typed choices of a Config parsed into the
// values the codec, pack writer and logger take.
type Settings struct {
	Codec    vopl.EncodeOptions
	Layout   vopl.PackLayout
	Comp     vopl.PackCompression
	LogLevel slog.Level
}

// Settings parses every string-typed choice.
func (c *Config) Settings() (Settings, error) {
	var s Settings
	var err error
	if s.Codec, err = c.Codec.Options(); err != nil {
		return s, err
	}
	if s.Layout, s.Comp, err = c.Pack.Resolve(); err != nil {
		return s, err
	}
	if s.LogLevel, err = c.Level(); err != nil {
		return s, err
	}
	return s, nil
}

// Validate checks every string-typed choice and the terrain extents.
func (c *Config) Validate() error {
	if _, err := c.Settings(); err != nil {
		return err
	}
	t := c.Terrain
	for _, d := range []int{t.Width, t.Height, t.Depth} {
		if d <= 0 || d > vopl.MaxDim {
			return fmt.Errorf("config: terrain dims %dx%dx%d out of range", t.Width, t.Height, t.Depth)
		}
	}
	if t.Octaves <= 0 {
		return fmt.Errorf("config: terrain octaves must be positive, got %d", t.Octaves)
	}
	return nil
}

func (c CodecConfig) Options() (vopl.EncodeOptions, error) {
	opts := vopl.EncodeOptions{NoCompression: c.NoCompression}
	for _, name := range c.Encodings {
		e, err := vopl.ParseEncoding(name)
		if err != nil {
			return opts, fmt.Errorf("config: %w", err)
		}
		opts.Encodings = append(opts.Encodings, e)
	}
	return opts, nil
}

func (p PackConfig) Resolve() (vopl.PackLayout, vopl.PackCompression, error) {
	layout, err := vopl.ParsePackLayout(p.Layout)
	if err != nil {
		return 0, 0, fmt.Errorf("config: %w", err)
	}
	comp, err := vopl.ParsePackCompression(p.Compression)
	if err != nil {
		return 0, 0, fmt.Errorf("config: %w", err)
	}
	return layout, comp, nil
}

func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: log_level: %w", err)
	}
	return l, nil
}
