package scatter

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/df07/go-surface-scatter/pkg/core"
	"github.com/df07/go-surface-scatter/pkg/geometry"
)

// Placement is one placed instance in world space
type Placement struct {
	Candidate     int       // Index into the candidate slice
	CandidateName string    // Name of the selected candidate
	Position      core.Vec3 // World-space position, already offset along the normal
	Normal        core.Vec3 // World-space unit surface normal at the sample
	Orientation   core.Quat // Unit rotation taking the up axis onto the normal
	Scale         float64   // Uniform scale
	Surface       int       // Index of the originating surface
	SurfaceID     string    // ID of the originating surface
	Triangle      int       // Triangle index on the originating surface
}

// Result holds the placements of one pass and its report
type Result struct {
	Placements []Placement
	Report     Report
}

// Progress describes a finished surface
type Progress struct {
	SurfaceIndex int
	SurfaceCount int
	SurfaceID    string
	Placed       int
	Skipped      bool // Surface had zero area
}

// ProgressFunc is called after each surface; returning an error abandons the pass
type ProgressFunc func(Progress) error

// Scatter runs one sequential pass over all surfaces.
// A nil sampler is replaced by one seeded with cfg.Seed.
func Scatter(surfaces []*geometry.Surface, candidates []Candidate, cfg Config, sampler core.Sampler) (*Result, error) {
	return ScatterContext(context.Background(), surfaces, candidates, cfg, sampler, nil)
}

// ScatterContext is Scatter with cancellation and progress reporting between surfaces.
// Draws happen per instance in a fixed order: face, barycentric r1 and r2, clumping (if active),
// candidate, rotation angle (if active), scale (if min != max).
func ScatterContext(ctx context.Context, surfaces []*geometry.Surface, candidates []Candidate, cfg Config,
	sampler core.Sampler, progress ProgressFunc) (*Result, error) {
	picker, err := prepare(surfaces, candidates, cfg)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()

	// The seed is consumed once, before surface iteration
	if sampler == nil {
		sampler = core.NewSeededSampler(cfg.Seed)
	}

	result := &Result{Report: newReport(picker, len(surfaces))}
	up := cfg.UpAxis()

	for i, surface := range surfaces {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		placements, skipped, err := scatterSurface(i, surface, picker, cfg, up, sampler)
		if err != nil {
			return nil, err
		}
		result.Placements = append(result.Placements, placements...)
		result.Report.addSurface(i, surface, placements, skipped)

		if progress != nil {
			if err := progress(Progress{
				SurfaceIndex: i,
				SurfaceCount: len(surfaces),
				SurfaceID:    surface.ID,
				Placed:       len(placements),
				Skipped:      skipped,
			}); err != nil {
				return nil, err
			}
		}
	}

	result.Report.finish(time.Since(startTime))
	return result, nil
}

// prepare checks the pass preconditions in order: targets, candidates, config, per-surface budget
func prepare(surfaces []*geometry.Surface, candidates []Candidate, cfg Config) (*CandidatePicker, error) {
	if len(surfaces) == 0 {
		return nil, ErrNoTargets
	}

	picker, err := NewCandidatePicker(candidates)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, surface := range surfaces {
		if _, err := InstanceCount(surface, cfg); err != nil {
			return nil, err
		}
	}
	return picker, nil
}

// InstanceCount returns how many instances a surface receives under cfg.
// Budgets above cfg.InstanceLimit() fail with ErrInvalidConfig.
func InstanceCount(surface *geometry.Surface, cfg Config) (int, error) {
	limit := cfg.InstanceLimit()
	if cfg.Mode != ModeDensity {
		if cfg.Count > limit {
			return 0, fmt.Errorf("%w: count %d exceeds the per-surface limit of %d", ErrInvalidConfig, cfg.Count, limit)
		}
		return cfg.Count, nil
	}

	// Compared in float64 so huge or NaN budgets never reach the int conversion
	want := math.Round(surface.TotalArea() * cfg.Density)
	if !(want <= float64(limit)) {
		return 0, fmt.Errorf("%w: surface %q would receive %g instances, the limit is %d",
			ErrInvalidConfig, surface.ID, want, limit)
	}
	return int(want), nil
}

// scatterSurface places all instances of one surface. Zero-area surfaces are skipped without drawing.
func scatterSurface(index int, surface *geometry.Surface, picker *CandidatePicker, cfg Config, up core.Vec3,
	sampler core.Sampler) ([]Placement, bool, error) {
	if surface.TotalArea() <= 0 {
		return nil, true, nil
	}

	count, err := InstanceCount(surface, cfg)
	if err != nil {
		return nil, false, err
	}
	placements := make([]Placement, 0, count)

	for n := 0; n < count; n++ {
		// Area-weighted face selection
		ti := surface.SampleTriangle(sampler.Get1D())
		tri := surface.Triangle(ti)

		// Uniform point inside the triangle
		b0, b1, b2 := core.SampleBarycentric(sampler.Get2D())
		local := tri.PointAt(b0, b1, b2)

		// Clumping pulls the point toward the face center by a random fraction of the factor
		if cfg.ClumpingFactor > 0 {
			local = local.Lerp(tri.Centroid(), cfg.ClumpingFactor*sampler.Get1D())
		}

		position := surface.Transform.TransformPoint(local)
		normal := surface.Transform.TransformNormal(tri.Normal())
		position = position.Add(normal.Multiply(cfg.SurfaceOffset))

		ci := picker.Pick(sampler.Get1D())

		// Align up to the normal, then spin about the normal
		orientation := core.QuatFromTo(up, normal)
		if cfg.RandomRotation {
			angle := 2 * math.Pi * sampler.Get1D()
			orientation = core.QuatFromAxisAngle(normal, angle).Multiply(orientation)
		}

		scale := cfg.ScaleMin
		if cfg.ScaleMin != cfg.ScaleMax {
			scale = cfg.ScaleMin + sampler.Get1D()*(cfg.ScaleMax-cfg.ScaleMin)
		}

		placements = append(placements, Placement{
			Candidate:     ci,
			CandidateName: picker.candidates[ci].Name,
			Position:      position,
			Normal:        normal,
			Orientation:   orientation,
			Scale:         scale,
			Surface:       index,
			SurfaceID:     surface.ID,
			Triangle:      ti,
		})
	}

	return placements, false, nil
}
