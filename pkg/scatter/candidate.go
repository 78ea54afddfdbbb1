package scatter

import (
	"fmt"
	"math"
)

// Candidate is one placeable instance type
type Candidate struct {
	Name   string  `json:"name" toml:"name" yaml:"name"`
	Weight float64 `json:"weight" toml:"weight" yaml:"weight"`

	// Mesh is an ownership-free handle for the collaborator that instantiates placements.
	// The scatterer never inspects it.
	Mesh any `json:"-" toml:"-" yaml:"-"`
}

// CandidatePicker selects candidates with probability proportional to their weight.
// Candidates with non-positive or non-finite weight are never selected.
type CandidatePicker struct {
	candidates []Candidate
	indices    []int     // original index of each eligible candidate
	cumulative []float64 // cumulative weights of eligible candidates
	total      float64
}

// NewCandidatePicker builds the cumulative weight table.
// Returns ErrNoValidCandidates when no candidate has weight > 0.
func NewCandidatePicker(candidates []Candidate) (*CandidatePicker, error) {
	p := &CandidatePicker{candidates: candidates}

	for i, c := range candidates {
		if !(c.Weight > 0) || math.IsInf(c.Weight, 1) {
			continue
		}
		p.total += c.Weight
		p.indices = append(p.indices, i)
		p.cumulative = append(p.cumulative, p.total)
	}

	if len(p.indices) == 0 || p.total <= 0 {
		return nil, ErrNoValidCandidates
	}
	return p, nil
}

// Pick maps u in [0, 1) to a candidate index (into the original slice).
// The draw is scaled to [0, totalWeight) and the first candidate whose cumulative
// weight meets or exceeds it wins.
func (p *CandidatePicker) Pick(u float64) int {
	target := u * p.total
	for i, cum := range p.cumulative {
		if target <= cum {
			return p.indices[i]
		}
	}

	// Fallback to last eligible candidate (float edge at the top of the table)
	return p.indices[len(p.indices)-1]
}

// TotalWeight returns the summed weight of eligible candidates
func (p *CandidatePicker) TotalWeight() float64 {
	return p.total
}

// Probability returns the selection probability of the candidate at the original index
func (p *CandidatePicker) Probability(index int) float64 {
	if index < 0 || index >= len(p.candidates) {
		return 0.0
	}
	w := p.candidates[index].Weight
	if !(w > 0) || math.IsInf(w, 1) {
		return 0.0
	}
	return w / p.total
}

// EligibleCount returns the number of candidates that can be selected
func (p *CandidatePicker) EligibleCount() int {
	return len(p.indices)
}

// String returns a string representation for debugging
func (p *CandidatePicker) String() string {
	result := fmt.Sprintf("CandidatePicker{%d of %d candidates eligible:\n", len(p.indices), len(p.candidates))
	for _, i := range p.indices {
		result += fmt.Sprintf("  [%d] %s: %.1f%%\n", i, p.candidates[i].Name, p.Probability(i)*100)
	}
	result += "}"
	return result
}
