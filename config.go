package scanify

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrInvalidConfig is wrapped by Config.Validate errors.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds effect parameters. It is treated as immutable for the
// duration of one render.
type Config struct {
	// Resolution is the rasterization density in DPI.
	Resolution int `json:"resolution"`
	// CompressionQuality is the JPEG quality used by assemblers (1-100).
	CompressionQuality int `json:"compression_quality"`

	Lighting       float64 `json:"lighting"`
	TiltRandomness float64 `json:"tilt_randomness"`
	Wrinkles       float64 `json:"wrinkles"`
	Shadows        float64 `json:"shadows"`
	Warp           float64 `json:"warp"`
	Noise          float64 `json:"noise"`
	PaperTexture   float64 `json:"paper_texture"`
	PageEdge       float64 `json:"page_edge"`
	Yellowness     float64 `json:"yellowness"`

	// Monochrome replaces the paper tint with Otsu binarization.
	Monochrome bool `json:"monochrome"`
	// Despeckle removes isolated pixels after binarization.
	Despeckle bool `json:"despeckle"`
	// StripMetadata drops EXIF/ICC and document info in assemblers.
	StripMetadata bool `json:"strip_metadata"`

	// Seed makes renders reproducible when non-zero.
	Seed uint64 `json:"seed,omitempty"`
}

// DefaultConfig returns mid-low defaults for every effect.
func DefaultConfig() Config {
	return Config{
		Resolution:         defaultResolution,
		CompressionQuality: defaultCompressionQuality,
		Lighting:           0.3,
		TiltRandomness:     0.55,
		Wrinkles:           0.6,
		Shadows:            0.45,
		Warp:               0.25,
		Noise:              0.75,
		PaperTexture:       0.7,
		PageEdge:           0.1,
		Yellowness:         0.5,
		Despeckle:          true,
		StripMetadata:      true,
	}
}

func (c Config) intensities() map[string]float64 {
	return map[string]float64{
		"lighting":        c.Lighting,
		"tilt_randomness": c.TiltRandomness,
		"wrinkles":        c.Wrinkles,
		"shadows":         c.Shadows,
		"warp":            c.Warp,
		"noise":           c.Noise,
		"paper_texture":   c.PaperTexture,
		"page_edge":       c.PageEdge,
		"yellowness":      c.Yellowness,
	}
}

// Validate reports parameters outside their documented ranges.
func (c Config) Validate() error {
	var errs []error
	for name, v := range c.intensities() {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%w: %s=%g not in [0,1]", ErrInvalidConfig, name, v))
		}
	}
	if c.Resolution < 1 || c.Resolution > maxResolution {
		errs = append(errs, fmt.Errorf("%w: resolution=%d not in [1,%d]", ErrInvalidConfig, c.Resolution, maxResolution))
	}
	if c.CompressionQuality < 1 || c.CompressionQuality > 100 {
		errs = append(errs, fmt.Errorf("%w: compression_quality=%d not in [1,100]", ErrInvalidConfig, c.CompressionQuality))
	}
	return errors.Join(errs...)
}

// Clamped returns a copy with every parameter forced into range.
func (c Config) Clamped() Config {
	c.Lighting = clamp01f(c.Lighting)
	c.TiltRandomness = clamp01f(c.TiltRandomness)
	c.Wrinkles = clamp01f(c.Wrinkles)
	c.Shadows = clamp01f(c.Shadows)
	c.Warp = clamp01f(c.Warp)
	c.Noise = clamp01f(c.Noise)
	c.PaperTexture = clamp01f(c.PaperTexture)
	c.PageEdge = clamp01f(c.PageEdge)
	c.Yellowness = clamp01f(c.Yellowness)
	c.Resolution = clampInt(c.Resolution, 1, maxResolution)
	c.CompressionQuality = clampInt(c.CompressionQuality, 1, 100)
	return c
}

// LoadConfig reads a JSON config file over DefaultConfig.
// A missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg, nil
}

func clamp01f(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
