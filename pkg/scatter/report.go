package scatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/df07/go-surface-scatter/pkg/core"
	"github.com/df07/go-surface-scatter/pkg/geometry"
)

// SkippedSurface records a surface that contributed nothing because it had no area
type SkippedSurface struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
}

// Report contains statistics about a scatter pass
type Report struct {
	CandidateNames  []string         `json:"candidateNames"`  // Candidate names in input order
	CandidateCounts []int            `json:"candidateCounts"` // Instances per candidate, same order
	ExpectedShares  []float64        `json:"expectedShares"`  // Selection probability per candidate, same order
	Eligible        int              `json:"eligible"`        // Candidates with positive finite weight
	TotalWeight     float64          `json:"totalWeight"`     // Summed weight of eligible candidates
	SurfaceCounts   []int            `json:"surfaceCounts"`   // Instances per surface, in surface order
	TotalInstances  int              `json:"totalInstances"`
	TotalArea       float64          `json:"totalArea"`         // Summed area of all surfaces
	Density         float64          `json:"density"`           // TotalInstances / TotalArea, 0 without area
	Bounds          core.AABB        `json:"bounds"`            // World bounds of the surfaces that received instances
	Workers         int              `json:"workers,omitempty"` // Pool size in parallel mode, 0 when sequential
	Elapsed         time.Duration    `json:"elapsed"`
	Skipped         []SkippedSurface `json:"skipped,omitempty"`
}

func newReport(picker *CandidatePicker, surfaceCount int) Report {
	names := make([]string, len(picker.candidates))
	shares := make([]float64, len(picker.candidates))
	for i, c := range picker.candidates {
		names[i] = c.Name
		shares[i] = picker.Probability(i)
	}
	return Report{
		CandidateNames:  names,
		CandidateCounts: make([]int, len(names)),
		ExpectedShares:  shares,
		Eligible:        picker.EligibleCount(),
		TotalWeight:     picker.TotalWeight(),
		SurfaceCounts:   make([]int, surfaceCount),
	}
}

// addSurface aggregates one surface's placements
func (r *Report) addSurface(index int, surface *geometry.Surface, placements []Placement, skipped bool) {
	r.TotalArea += surface.TotalArea()
	if skipped {
		r.Skipped = append(r.Skipped, SkippedSurface{Index: index, ID: surface.ID})
		return
	}
	for _, p := range placements {
		r.CandidateCounts[p.Candidate]++
	}
	if len(placements) > 0 {
		bounds := surface.WorldBoundingBox()
		if r.TotalInstances == 0 {
			r.Bounds = bounds
		} else {
			r.Bounds = r.Bounds.Union(bounds)
		}
	}
	r.SurfaceCounts[index] = len(placements)
	r.TotalInstances += len(placements)
}

func (r *Report) finish(elapsed time.Duration) {
	r.Elapsed = elapsed
	if r.TotalArea > 0 {
		r.Density = float64(r.TotalInstances) / r.TotalArea
	}
}

// String returns a multi-line human readable summary
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generated %d instances on %d surfaces in %v", r.TotalInstances, len(r.SurfaceCounts), r.Elapsed)
	if r.Workers > 0 {
		fmt.Fprintf(&b, " (%d workers)", r.Workers)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Total area: %.4f, achieved density: %.4f per unit²\n", r.TotalArea, r.Density)
	if r.TotalInstances > 0 {
		c, size := r.Bounds.Center(), r.Bounds.Size()
		fmt.Fprintf(&b, "Bounds: center (%.3f, %.3f, %.3f), size (%.3f, %.3f, %.3f)\n", c.X, c.Y, c.Z, size.X, size.Y, size.Z)
	}
	fmt.Fprintf(&b, "Candidates: %d of %d eligible, total weight %g\n", r.Eligible, len(r.CandidateNames), r.TotalWeight)
	for i, name := range r.CandidateNames {
		share := 0.0
		if r.TotalInstances > 0 {
			share = float64(r.CandidateCounts[i]) / float64(r.TotalInstances) * 100
		}
		fmt.Fprintf(&b, "  %-24s %6d (%.1f%%, expected %.1f%%)\n", name, r.CandidateCounts[i], share, r.ExpectedShares[i]*100)
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(&b, "  skipped surface %d (%s): zero area\n", s.Index, s.ID)
	}
	return b.String()
}
