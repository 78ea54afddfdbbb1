package core

import (
	"math"
	"testing"
)

func TestSeededSampler_Reproducible(t *testing.T) {
	a := NewSeededSampler(42)
	b := NewSeededSampler(42)

	for i := 0; i < 100; i++ {
		if x, y := a.Get1D(), b.Get1D(); x != y {
			t.Fatalf("Draw %d differs: %f vs %f", i, x, y)
		}
		if x, y := a.Get2D(), b.Get2D(); x != y {
			t.Fatalf("2D draw %d differs: %v vs %v", i, x, y)
		}
	}
}

func TestRandomSampler_Range(t *testing.T) {
	s := NewSeededSampler(7)
	for i := 0; i < 1000; i++ {
		v := s.Get1D()
		if v < 0 || v >= 1 {
			t.Fatalf("Get1D out of range: %f", v)
		}
		p := s.Get2D()
		if p.X < 0 || p.X >= 1 || p.Y < 0 || p.Y >= 1 {
			t.Fatalf("Get2D out of range: %v", p)
		}
	}
}

func TestSampleBarycentric(t *testing.T) {
	tests := []struct {
		name       string
		sample     Vec2
		b0, b1, b2 float64
	}{
		{"inside lower half", NewVec2(0.2, 0.3), 0.2, 0.3, 0.5},
		{"folded", NewVec2(0.8, 0.6), 0.2, 0.4, 0.4},
		{"on the diagonal is not folded", NewVec2(0.5, 0.5), 0.5, 0.5, 0},
		{"origin", NewVec2(0, 0), 0, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b0, b1, b2 := SampleBarycentric(tt.sample)
			const tolerance = 1e-12
			if math.Abs(b0-tt.b0) > tolerance || math.Abs(b1-tt.b1) > tolerance || math.Abs(b2-tt.b2) > tolerance {
				t.Errorf("Expected (%f,%f,%f), got (%f,%f,%f)", tt.b0, tt.b1, tt.b2, b0, b1, b2)
			}
			if b0 < 0 || b1 < 0 || b2 < -tolerance {
				t.Errorf("Weights must be non-negative, got (%f,%f,%f)", b0, b1, b2)
			}
		})
	}
}
