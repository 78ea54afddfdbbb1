package scene

import (
	"fmt"
	"math"

	"github.com/df07/go-surface-scatter/pkg/scatter"
)

// grassCandidates is the three-variant grass set shared by the built-in jobs
func grassCandidates() []CandidateSource {
	return []CandidateSource{
		{Name: "grass_short", Weight: 3},
		{Name: "grass_tall", Weight: 1.5},
		{Name: "flower", Weight: 0.5},
	}
}

// NewMeadowJob scatters grass over a rolling terrain patch with the default settings
func NewMeadowJob() *Job {
	job := NewJob("meadow")
	job.Name = "Meadow"
	job.Description = "Rolling 20x20 terrain with three weighted grass variants"
	job.Surfaces = []SurfaceSource{
		{ID: "terrain", Type: SourceTerrain, Size: [2]float64{20, 20}, Resolution: 24, Amplitude: 1.5},
	}
	job.Candidates = grassCandidates()
	job.Scatter.Count = 2000
	job.Scatter.SurfaceOffset = -0.02
	return job
}

// NewSlopeJob places density-driven grass on a tilted quad and a flat quad
func NewSlopeJob() *Job {
	job := NewJob("slope")
	job.Name = "Slope"
	job.Description = "Density mode on a flat field and a 30 degree slope"

	half := math.Pi / 12 // half of 30 degrees
	job.Surfaces = []SurfaceSource{
		{ID: "field", Type: SourceQuad, Size: [2]float64{10, 10}},
		{ID: "slope", Type: SourceQuad, Size: [2]float64{10, 6}, Translation: [3]float64{0, 8, 1.5},
			Rotation: [4]float64{math.Sin(half), 0, 0, math.Cos(half)}},
	}
	job.Candidates = grassCandidates()
	job.Scatter.Mode = scatter.ModeDensity
	job.Scatter.Density = 12
	return job
}

// NewClumpsJob pulls instances toward face centers on a coarse terrain
func NewClumpsJob() *Job {
	job := NewJob("clumps")
	job.Name = "Clumps"
	job.Description = "Coarse terrain with strong clumping toward face centers"
	job.Surfaces = []SurfaceSource{
		{ID: "terrain", Type: SourceTerrain, Size: [2]float64{16, 16}, Resolution: 6, Amplitude: 0.8},
	}
	job.Candidates = []CandidateSource{{Name: "bush", Weight: 1}, {Name: "fern", Weight: 2}}
	job.Scatter.Count = 600
	job.Scatter.ClumpingFactor = 0.85
	job.Scatter.ScaleMin = 0.6
	job.Scatter.ScaleMax = 1.6
	return job
}

// NewTilesJob scatters over many small tiles on the worker pool
func NewTilesJob() *Job {
	job := NewJob("tiles")
	job.Name = "Tiles"
	job.Description = "Eight by eight tiles scattered in parallel with per-tile seeds"
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			job.Surfaces = append(job.Surfaces, SurfaceSource{
				ID:          fmt.Sprintf("tile_%d_%d", x, y),
				Type:        SourceQuad,
				Size:        [2]float64{4, 4},
				Translation: [3]float64{float64(x) * 4.5, float64(y) * 4.5, 0},
			})
		}
	}
	job.Candidates = grassCandidates()
	job.Scatter.Count = 150
	job.Scatter.Parallel = true
	return job
}

// BuiltinJobs returns fresh copies of every built-in job
func BuiltinJobs() []*Job {
	jobs := []*Job{NewMeadowJob(), NewSlopeJob(), NewClumpsJob(), NewTilesJob()}
	for _, job := range jobs {
		job.Group = BuiltinGroup
	}
	return jobs
}

// BuiltinJob returns the built-in job with the given ID
func BuiltinJob(id string) (*Job, bool) {
	for _, job := range BuiltinJobs() {
		if job.ID == id {
			return job, true
		}
	}
	return nil, false
}
