package scatter

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/df07/go-surface-scatter/pkg/geometry"
)

// SurfaceSeed derives the private stream seed of one surface from the pass seed.
// The derivation depends only on (seed, index), so results do not depend on worker count.
func SurfaceSeed(seed int64, index int) int64 {
	var b [16]byte
	binary.LittleEndian.PutUint64(b[:8], uint64(seed))
	binary.LittleEndian.PutUint64(b[8:], uint64(index))
	return int64(xxhash.Sum64(b[:]))
}

// ScatterParallel scatters every surface on a worker pool, each with its own sub-seeded stream.
// Placements are reassembled in surface order. Progress is reported in completion order.
func ScatterParallel(ctx context.Context, surfaces []*geometry.Surface, candidates []Candidate, cfg Config,
	progress ProgressFunc) (*Result, error) {
	picker, err := prepare(surfaces, candidates, cfg)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool := NewWorkerPool(ctx, picker, cfg, len(surfaces), cfg.Workers)
	pool.Start()

	for i, surface := range surfaces {
		pool.SubmitTask(SurfaceTask{Index: i, Surface: surface, Seed: SurfaceSeed(cfg.Seed, i)})
	}

	results := make([]SurfaceResult, len(surfaces))
	var firstErr error
	for received := 0; received < len(surfaces); received++ {
		res, ok := pool.GetResult()
		if !ok {
			break
		}
		results[res.Index] = res

		if firstErr != nil {
			continue
		}
		if res.Error != nil {
			firstErr = res.Error
			cancel()
			continue
		}
		if progress != nil {
			if err := progress(Progress{
				SurfaceIndex: res.Index,
				SurfaceCount: len(surfaces),
				SurfaceID:    surfaces[res.Index].ID,
				Placed:       len(res.Placements),
				Skipped:      res.Skipped,
			}); err != nil {
				firstErr = err
				cancel()
			}
		}
	}
	pool.Stop()

	if firstErr != nil {
		return nil, firstErr
	}

	result := &Result{Report: newReport(picker, len(surfaces))}
	result.Report.Workers = pool.GetNumWorkers()
	for i, res := range results {
		result.Placements = append(result.Placements, res.Placements...)
		result.Report.addSurface(i, surfaces[i], res.Placements, res.Skipped)
	}
	result.Report.finish(time.Since(startTime))
	return result, nil
}

// Run dispatches to ScatterParallel or the sequential ScatterContext according to cfg.Parallel
func Run(ctx context.Context, surfaces []*geometry.Surface, candidates []Candidate, cfg Config,
	progress ProgressFunc) (*Result, error) {
	if cfg.Parallel {
		return ScatterParallel(ctx, surfaces, candidates, cfg, progress)
	}
	return ScatterContext(ctx, surfaces, candidates, cfg, nil, progress)
}
