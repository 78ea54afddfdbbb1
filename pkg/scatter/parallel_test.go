package scatter

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"

	"github.com/df07/go-surface-scatter/pkg/core"
	"github.com/df07/go-surface-scatter/pkg/geometry"
)

func parallelSurfaces() []*geometry.Surface {
	var surfaces []*geometry.Surface
	for i := 0; i < 8; i++ {
		surfaces = append(surfaces, squareSurface(string(rune('a'+i)), float64(i+1), core.Mat4Translate(core.NewVec3(float64(i)*20, 0, 0))))
	}
	// One degenerate surface in the middle
	surfaces[3] = geometry.NewSurface("flat", nil, core.Mat4Identity())
	return surfaces
}

func TestScatterParallel_IndependentOfWorkerCount(t *testing.T) {
	surfaces := parallelSurfaces()

	var reference *Result
	for _, workers := range []int{1, 3, 8} {
		cfg := unitCountConfig(60)
		cfg.Parallel = true
		cfg.Workers = workers

		result, err := Run(context.Background(), surfaces, grassCandidates(), cfg, nil)
		if err != nil {
			t.Fatalf("Unexpected error with %d workers: %v", workers, err)
		}
		if len(result.Placements) != 7*60 {
			t.Fatalf("Expected %d placements, got %d", 7*60, len(result.Placements))
		}
		if result.Report.Workers != workers {
			t.Errorf("Report.Workers = %d, want %d", result.Report.Workers, workers)
		}
		if len(result.Report.Skipped) != 1 || result.Report.Skipped[0].Index != 3 {
			t.Errorf("Expected surface 3 to be skipped, got %+v", result.Report.Skipped)
		}

		// Placements come back in surface order
		for i := 1; i < len(result.Placements); i++ {
			if result.Placements[i].Surface < result.Placements[i-1].Surface {
				t.Fatalf("Placements out of surface order at %d", i)
			}
		}

		if reference == nil {
			reference = result
			continue
		}
		for i := range reference.Placements {
			if reference.Placements[i] != result.Placements[i] {
				t.Fatalf("Placement %d differs between worker counts", i)
			}
		}
	}
}

func TestScatterParallel_MatchesPerSurfaceSequential(t *testing.T) {
	surfaces := parallelSurfaces()
	cfg := unitCountConfig(25)

	result, err := ScatterParallel(context.Background(), surfaces, grassCandidates(), cfg, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// Each surface equals a sequential single-surface pass driven by its sub-seed
	offset := 0
	for i, surface := range surfaces {
		single, err := Scatter([]*geometry.Surface{surface}, grassCandidates(), cfg, core.NewSeededSampler(SurfaceSeed(cfg.Seed, i)))
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		for j, p := range single.Placements {
			got := result.Placements[offset+j]
			if got.Position != p.Position || got.Orientation != p.Orientation || got.Scale != p.Scale || got.Candidate != p.Candidate {
				t.Fatalf("Surface %d placement %d differs from its sub-seeded sequential pass", i, j)
			}
		}
		offset += len(single.Placements)
	}
}

func TestScatterParallel_ProgressAndErrors(t *testing.T) {
	surfaces := parallelSurfaces()

	var mu sync.Mutex
	seen := map[int]bool{}
	_, err := ScatterParallel(context.Background(), surfaces, grassCandidates(), unitCountConfig(5), func(p Progress) error {
		mu.Lock()
		defer mu.Unlock()
		seen[p.SurfaceIndex] = true
		return nil
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(seen) != len(surfaces) {
		t.Errorf("Expected progress for %d surfaces, got %d", len(surfaces), len(seen))
	}

	stop := errors.New("stop")
	if _, err := ScatterParallel(context.Background(), surfaces, grassCandidates(), unitCountConfig(5), func(p Progress) error {
		return stop
	}); !errors.Is(err, stop) {
		t.Errorf("Expected progress error, got %v", err)
	}

	if _, err := ScatterParallel(context.Background(), nil, grassCandidates(), unitCountConfig(5), nil); !errors.Is(err, ErrNoTargets) {
		t.Errorf("Expected ErrNoTargets, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ScatterParallel(ctx, surfaces, grassCandidates(), unitCountConfig(5), nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestSurfaceSeed(t *testing.T) {
	if SurfaceSeed(42, 0) != SurfaceSeed(42, 0) {
		t.Error("Sub-seeds must be stable")
	}
	if SurfaceSeed(42, 0) == SurfaceSeed(42, 1) {
		t.Error("Different surfaces should get different sub-seeds")
	}
	if SurfaceSeed(42, 0) == SurfaceSeed(43, 0) {
		t.Error("Different pass seeds should give different sub-seeds")
	}
}

func TestWorkerPool_NumWorkers(t *testing.T) {
	picker, err := NewCandidatePicker(grassCandidates())
	if err != nil {
		t.Fatalf("NewCandidatePicker() error: %v", err)
	}

	tests := []struct {
		requested int
		expected  int
	}{
		{3, 3},
		{1, 1},
		{0, runtime.NumCPU()},
		{-2, runtime.NumCPU()},
	}
	for _, tt := range tests {
		pool := NewWorkerPool(context.Background(), picker, DefaultConfig(), 1, tt.requested)
		if got := pool.GetNumWorkers(); got != tt.expected {
			t.Errorf("NewWorkerPool(%d workers).GetNumWorkers() = %d, want %d", tt.requested, got, tt.expected)
		}
	}
}
