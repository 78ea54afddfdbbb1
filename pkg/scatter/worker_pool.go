package scatter

import (
	"context"
	"runtime"
	"sync"

	"github.com/df07/go-surface-scatter/pkg/core"
	"github.com/df07/go-surface-scatter/pkg/geometry"
)

// SurfaceTask represents one surface to scatter on the worker pool
type SurfaceTask struct {
	Index   int // Surface index, for deterministic reassembly
	Surface *geometry.Surface
	Seed    int64 // Sub-seed for this surface's private stream
}

// SurfaceResult contains the placements produced for one surface
type SurfaceResult struct {
	Index      int
	Placements []Placement
	Skipped    bool
	Error      error
}

// WorkerPool manages parallel surface scattering
type WorkerPool struct {
	taskQueue   chan SurfaceTask
	resultQueue chan SurfaceResult
	workers     []*Worker
	numWorkers  int
	wg          sync.WaitGroup
}

// Worker handles individual surface tasks
type Worker struct {
	ID          int
	ctx         context.Context
	picker      *CandidatePicker
	config      Config
	up          core.Vec3
	taskQueue   chan SurfaceTask
	resultQueue chan SurfaceResult
}

// NewWorkerPool creates a worker pool with the specified number of workers.
// The queues are buffered for maxTasks so submission never blocks.
func NewWorkerPool(ctx context.Context, picker *CandidatePicker, cfg Config, maxTasks, numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	wp := &WorkerPool{
		taskQueue:   make(chan SurfaceTask, maxTasks),
		resultQueue: make(chan SurfaceResult, maxTasks),
		numWorkers:  numWorkers,
	}

	// Create workers
	for i := 0; i < numWorkers; i++ {
		worker := &Worker{
			ID:          i,
			ctx:         ctx,
			picker:      picker,
			config:      cfg,
			up:          cfg.UpAxis(),
			taskQueue:   wp.taskQueue,
			resultQueue: wp.resultQueue,
		}
		wp.workers = append(wp.workers, worker)
	}

	return wp
}

// Start begins all workers
func (wp *WorkerPool) Start() {
	for _, worker := range wp.workers {
		wp.wg.Add(1)
		go worker.run(&wp.wg)
	}
}

// Stop gracefully shuts down all workers
func (wp *WorkerPool) Stop() {
	close(wp.taskQueue) // No more tasks
	wp.wg.Wait()        // Wait for workers to finish
	close(wp.resultQueue)
}

// SubmitTask submits a surface task to the worker pool
func (wp *WorkerPool) SubmitTask(task SurfaceTask) {
	wp.taskQueue <- task
}

// GetResult retrieves a completed surface result
func (wp *WorkerPool) GetResult() (SurfaceResult, bool) {
	result, ok := <-wp.resultQueue
	return result, ok
}

// GetNumWorkers returns the number of workers in the pool
func (wp *WorkerPool) GetNumWorkers() int {
	return wp.numWorkers
}

// run is the main worker loop
func (w *Worker) run(wg *sync.WaitGroup) {
	defer wg.Done()

	for task := range w.taskQueue {
		// Drain remaining tasks quickly once the pass is cancelled
		if err := w.ctx.Err(); err != nil {
			w.resultQueue <- SurfaceResult{Index: task.Index, Error: err}
			continue
		}

		sampler := core.NewSeededSampler(task.Seed)
		placements, skipped, err := scatterSurface(task.Index, task.Surface, w.picker, w.config, w.up, sampler)
		if err != nil {
			w.resultQueue <- SurfaceResult{Index: task.Index, Error: err}
			continue
		}

		w.resultQueue <- SurfaceResult{
			Index:      task.Index,
			Placements: placements,
			Skipped:    skipped,
		}
	}
}
