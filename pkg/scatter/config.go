package scatter

import (
	"fmt"
	"math"

	"github.com/df07/go-surface-scatter/pkg/core"
)

// DefaultMaxInstances caps the instances one surface may receive when Config.MaxInstances is unset
const DefaultMaxInstances = 10000

// Mode selects how many instances a surface receives
type Mode string

const (
	ModeCount   Mode = "count"   // Fixed number of instances per surface
	ModeDensity Mode = "density" // round(area * density) instances per surface
)

// Config is the immutable configuration of one scatter pass
type Config struct {
	Mode           Mode       `json:"mode" toml:"mode" yaml:"mode"`
	Count          int        `json:"count,omitempty" toml:"count,omitempty" yaml:"count,omitempty"`
	Density        float64    `json:"density,omitempty" toml:"density,omitempty" yaml:"density,omitempty"`
	SurfaceOffset  float64    `json:"surfaceOffset" toml:"surface_offset" yaml:"surface_offset"`
	ClumpingFactor float64    `json:"clumpingFactor" toml:"clumping_factor" yaml:"clumping_factor"`
	Seed           int64      `json:"seed" toml:"seed" yaml:"seed"`
	ScaleMin       float64    `json:"scaleMin" toml:"scale_min" yaml:"scale_min"`
	ScaleMax       float64    `json:"scaleMax" toml:"scale_max" yaml:"scale_max"`
	RandomRotation bool       `json:"randomRotation" toml:"random_rotation" yaml:"random_rotation"`
	Up             [3]float64 `json:"up,omitempty" toml:"up,omitempty" yaml:"up,omitempty"` // Canonical up axis of candidate meshes, +Z when unset

	// Parallel scatters surfaces on a worker pool with per-surface sub-seeds.
	// Results are reproducible but differ from the sequential stream.
	Parallel bool `json:"parallel,omitempty" toml:"parallel,omitempty" yaml:"parallel,omitempty"`
	Workers  int  `json:"workers,omitempty" toml:"workers,omitempty" yaml:"workers,omitempty"` // 0 = runtime.NumCPU()

	// MaxInstances bounds the per-surface budget in both modes; 0 = DefaultMaxInstances
	MaxInstances int `json:"maxInstances,omitempty" toml:"max_instances,omitempty" yaml:"max_instances,omitempty"`
}

// DefaultConfig returns the grass placer defaults: 500 instances per surface,
// seed 42, scale 0.8-1.2, random rotation about the normal
func DefaultConfig() Config {
	return Config{
		Mode:           ModeCount,
		Count:          500,
		Seed:           42,
		ScaleMin:       0.8,
		ScaleMax:       1.2,
		RandomRotation: true,
	}
}

// UpAxis returns the configured up axis, defaulting to +Z
func (c Config) UpAxis() core.Vec3 {
	up := core.NewVec3(c.Up[0], c.Up[1], c.Up[2])
	if up.IsZero() {
		return core.NewVec3(0, 0, 1)
	}
	return up.Normalize()
}

// InstanceLimit returns the per-surface instance cap
func (c Config) InstanceLimit() int {
	if c.MaxInstances > 0 {
		return c.MaxInstances
	}
	return DefaultMaxInstances
}

// Validate checks the config at the call boundary; every failure wraps ErrInvalidConfig
func (c Config) Validate() error {
	if c.MaxInstances < 0 {
		return fmt.Errorf("%w: max instances must not be negative, got %d", ErrInvalidConfig, c.MaxInstances)
	}

	switch c.Mode {
	case ModeCount:
		if c.Count <= 0 {
			return fmt.Errorf("%w: count must be positive, got %d", ErrInvalidConfig, c.Count)
		}
		if c.Count > c.InstanceLimit() {
			return fmt.Errorf("%w: count %d exceeds the per-surface limit of %d", ErrInvalidConfig, c.Count, c.InstanceLimit())
		}
	case ModeDensity:
		if !(c.Density > 0) || math.IsInf(c.Density, 0) {
			return fmt.Errorf("%w: density must be a positive finite number, got %v", ErrInvalidConfig, c.Density)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q (want %q or %q)", ErrInvalidConfig, c.Mode, ModeCount, ModeDensity)
	}

	if math.IsNaN(c.ClumpingFactor) || c.ClumpingFactor < 0 || c.ClumpingFactor > 1 {
		return fmt.Errorf("%w: clumping factor must be in [0,1], got %v", ErrInvalidConfig, c.ClumpingFactor)
	}
	if math.IsNaN(c.SurfaceOffset) || math.IsInf(c.SurfaceOffset, 0) {
		return fmt.Errorf("%w: surface offset must be finite, got %v", ErrInvalidConfig, c.SurfaceOffset)
	}
	if math.IsNaN(c.ScaleMin) || math.IsNaN(c.ScaleMax) || c.ScaleMin > c.ScaleMax {
		return fmt.Errorf("%w: scale range [%v, %v] requires min <= max", ErrInvalidConfig, c.ScaleMin, c.ScaleMax)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidConfig, c.Workers)
	}
	return nil
}
