package simulation

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/lao-tseu-is-alive/go-boids/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-boids/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-boids/pkg/spatial"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	// ErrInvalidConfig wraps every problem found while validating a Config.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrUnknownFormat is returned by LoadConfig for files that are neither JSON nor TOML.
	ErrUnknownFormat = errors.New("unknown config format")
)

//go:embed config.schema.json
var configSchema string

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString("config.schema.json", configSchema)
})

// IndexKind selects the neighbor index rebuilt every tick.
type IndexKind string

const (
	IndexHash     IndexKind = "hash"
	IndexQuadtree IndexKind = "quadtree"
)

// ColorScheme selects how boid colours are derived.
type ColorScheme string

const (
	SchemeInitial   ColorScheme = "initial"
	SchemeSynthwave ColorScheme = "synthwave"
	SchemePastel    ColorScheme = "pastel"
	SchemePrimary   ColorScheme = "primary"
)

// ColorSchemes lists the known colour schemes, in menu order.
var ColorSchemes = []ColorScheme{SchemeInitial, SchemeSynthwave, SchemePastel, SchemePrimary}

type Config struct {
	// World Dimensions (screen space, Y grows downwards)
	WorldWidth  float64 `json:"worldWidth" toml:"worldWidth"`
	WorldHeight float64 `json:"worldHeight" toml:"worldHeight"`

	// Population
	SpawnCount int           `json:"spawnCount" toml:"spawnCount"`
	SpawnRange geometry.Rect `json:"spawnRange" toml:"spawnRange"`

	// Bounds is where boids are steered back into, IndexRegion is the area
	// covered by the neighbor index. Boids outside IndexRegion are invisible
	// to the others until they come back.
	Bounds      geometry.Rect `json:"bounds" toml:"bounds"`
	IndexRegion geometry.Rect `json:"indexRegion" toml:"indexRegion"`

	// Boids flocking parameters (see pkg/behavior)
	TurnFactor      float64 `json:"turnFactor" toml:"turnFactor"`
	VisibleRange    float64 `json:"visibleRange" toml:"visibleRange"`
	ProtectedRange  float64 `json:"protectedRange" toml:"protectedRange"`
	AvoidFactor     float64 `json:"avoidFactor" toml:"avoidFactor"`
	CenteringFactor float64 `json:"centeringFactor" toml:"centeringFactor"`
	MatchingFactor  float64 `json:"matchingFactor" toml:"matchingFactor"`
	MaxSpeed        float64 `json:"maxSpeed" toml:"maxSpeed"` // units per second
	MinSpeed        float64 `json:"minSpeed" toml:"minSpeed"`

	// Neighbor index
	SpatialHashSize  float64   `json:"spatialHashSize" toml:"spatialHashSize"`
	Index            IndexKind `json:"index" toml:"index"`
	QuadtreeCapacity int       `json:"quadtreeCapacity" toml:"quadtreeCapacity"`
	Workers          int       `json:"workers" toml:"workers"` // 0 or 1 runs the tick on one goroutine

	// Visualization
	RenderIndex          bool        `json:"renderIndex" toml:"renderIndex"`
	RenderProtectedRange bool        `json:"renderProtectedRange" toml:"renderProtectedRange"`
	RenderVisibleRange   bool        `json:"renderVisibleRange" toml:"renderVisibleRange"`
	ColorSampleRate      float64     `json:"colorSampleRate" toml:"colorSampleRate"`
	ColorScheme          ColorScheme `json:"colorScheme" toml:"colorScheme"`
}

func DefaultConfig() *Config {
	return &Config{
		WorldWidth:       1000,
		WorldHeight:      800,
		SpawnCount:       100,
		SpawnRange:       geometry.NewRect(100, 100, 900, 700),
		Bounds:           geometry.NewRect(100, 100, 900, 700),
		IndexRegion:      geometry.NewRect(-1000, -1000, 2000, 1800),
		TurnFactor:       1.2,
		VisibleRange:     100,
		ProtectedRange:   40,
		AvoidFactor:      0.05,
		CenteringFactor:  0.0005,
		MatchingFactor:   0.05,
		MaxSpeed:         100,
		MinSpeed:         2,
		SpatialHashSize:  50,
		Index:            IndexHash,
		QuadtreeCapacity: spatial.DefaultCapacity,
		Workers:          1,
		ColorSampleRate:  0,
		ColorScheme:      SchemeSynthwave,
	}
}

// Clone returns an independent copy of the configuration.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// Settings returns the read-only physics snapshot used for one tick.
func (c *Config) Settings() behavior.Settings {
	return behavior.Settings{
		VisibleRange:    c.VisibleRange,
		ProtectedRange:  c.ProtectedRange,
		CenteringFactor: c.CenteringFactor,
		AvoidFactor:     c.AvoidFactor,
		MatchingFactor:  c.MatchingFactor,
		TurnFactor:      c.TurnFactor,
		MinSpeed:        c.MinSpeed,
		MaxSpeed:        c.MaxSpeed,
		Bounds:          c.Bounds,
	}
}

// Validate checks the cross-field rules a schema cannot express.
// Every problem found is reported, joined into one error; each of them wraps
// ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	numbers := []struct {
		name  string
		value float64
	}{
		{"worldWidth", c.WorldWidth},
		{"worldHeight", c.WorldHeight},
		{"turnFactor", c.TurnFactor},
		{"visibleRange", c.VisibleRange},
		{"protectedRange", c.ProtectedRange},
		{"avoidFactor", c.AvoidFactor},
		{"centeringFactor", c.CenteringFactor},
		{"matchingFactor", c.MatchingFactor},
		{"maxSpeed", c.MaxSpeed},
		{"minSpeed", c.MinSpeed},
		{"spatialHashSize", c.SpatialHashSize},
		{"colorSampleRate", c.ColorSampleRate},
	}
	for _, n := range numbers {
		switch {
		case math.IsNaN(n.value) || math.IsInf(n.value, 0):
			fail("%s must be a finite number, got %g", n.name, n.value)
		case n.value < 0:
			fail("%s must not be negative, got %g", n.name, n.value)
		}
	}

	if c.WorldWidth == 0 || c.WorldHeight == 0 {
		fail("world size %gx%g has no area", c.WorldWidth, c.WorldHeight)
	}
	if c.SpawnCount < 0 {
		fail("spawnCount must not be negative, got %d", c.SpawnCount)
	}

	rects := []struct {
		name string
		r    geometry.Rect
	}{
		{"spawnRange", c.SpawnRange},
		{"bounds", c.Bounds},
		{"indexRegion", c.IndexRegion},
	}
	for _, r := range rects {
		if !r.r.IsValid() {
			fail("%s %s must have finite corners with min < max on both axes", r.name, r.r)
		}
	}

	if !(c.MaxSpeed > 0) {
		fail("maxSpeed must be positive, got %g", c.MaxSpeed)
	}
	if c.MinSpeed > c.MaxSpeed {
		fail("minSpeed %g is greater than maxSpeed %g", c.MinSpeed, c.MaxSpeed)
	}

	if !(c.SpatialHashSize > 0) {
		fail("spatialHashSize must be positive, got %g", c.SpatialHashSize)
	} else if c.IndexRegion.IsValid() {
		cells := math.Ceil(c.IndexRegion.Width()/c.SpatialHashSize) * math.Ceil(c.IndexRegion.Height()/c.SpatialHashSize)
		if cells > spatial.MaxGridCells {
			fail("spatialHashSize %g splits indexRegion into %g cells, more than %d", c.SpatialHashSize, cells, spatial.MaxGridCells)
		}
	}

	switch c.Index {
	case IndexHash, IndexQuadtree:
	default:
		fail("unknown index %q, want %q or %q", c.Index, IndexHash, IndexQuadtree)
	}
	if c.QuadtreeCapacity < 1 {
		fail("quadtreeCapacity must be at least 1, got %d", c.QuadtreeCapacity)
	}
	if c.Workers < 0 {
		fail("workers must not be negative, got %d", c.Workers)
	}

	if c.ColorSampleRate > 1 {
		fail("colorSampleRate must be within [0, 1], got %g", c.ColorSampleRate)
	}
	if !c.ColorScheme.valid() {
		fail("unknown colorScheme %q", c.ColorScheme)
	}

	return errors.Join(errs...)
}

func (s ColorScheme) valid() bool {
	for _, known := range ColorSchemes {
		if s == known {
			return true
		}
	}
	return false
}

// ParseConfig decodes a JSON document over the default configuration.
// The document is checked against the embedded schema first, then the
// result goes through Validate. Fields missing from the document keep their
// default value.
func ParseConfig(data []byte) (*Config, error) {
	if err := validateDocument(data); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig loads a configuration file, JSON or TOML depending on its
// extension, and validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		cfg, err := ParseConfig(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return cfg, nil
	case ".toml":
		cfg, err := parseTOML(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return cfg, nil
	default:
		return nil, fmt.Errorf("%w %q for %s, want .json or .toml", ErrUnknownFormat, ext, path)
	}
}

// parseTOML validates the TOML document against the same schema as JSON
// files, through its JSON rendition, then decodes it over the defaults.
func parseTOML(data []byte) (*Config, error) {
	var doc map[string]any
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode config toml: %w", err)
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert config toml: %w", err)
	}
	if err := validateDocument(asJSON); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateDocument(data []byte) error {
	sch, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}

	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("failed to decode config json: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// WriteTOML encodes the configuration as a TOML document.
func (c *Config) WriteTOML(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
