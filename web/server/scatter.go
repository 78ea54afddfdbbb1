package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/df07/go-surface-scatter/pkg/core"
	"github.com/df07/go-surface-scatter/pkg/export"
	"github.com/df07/go-surface-scatter/pkg/scatter"
	"github.com/df07/go-surface-scatter/pkg/scene"
)

// SurfaceUpdate is sent via SSE after each finished surface
type SurfaceUpdate struct {
	SurfaceIndex int    `json:"surfaceIndex"`
	SurfaceCount int    `json:"surfaceCount"`
	SurfaceID    string `json:"surfaceId"`
	Placed       int    `json:"placed"`
	Skipped      bool   `json:"skipped"`
	ElapsedMs    int64  `json:"elapsedMs"`
}

// CompleteUpdate is the final SSE event of a stream
type CompleteUpdate struct {
	Job    scene.JobInfo  `json:"job"`
	Report scatter.Report `json:"report"`
}

// SSEEvent represents a unified SSE event for thread-safe writing
type SSEEvent struct {
	Type string `json:"type"` // "console", "surface", "error", "complete"
	Data string `json:"data"` // JSON-encoded data
}

// handleScatter runs a POSTed JSON job and answers with the placement dump
// (placements and report). ?compress=true returns it zstd-compressed.
func (s *Server) handleScatter(w http.ResponseWriter, r *http.Request) {
	compress, err := parseBoolParam(r.URL.Query(), "compress", false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := decodeJob(http.MaxBytesReader(w, r.Body, maxJobBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	logger := NewWebLogger(job.ID, nil)
	inputs, err := job.Load(logger)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := scatter.Run(r.Context(), inputs.Surfaces, inputs.Candidates, job.Scatter, nil)
	if err != nil {
		writeError(w, scatterStatus(err), err.Error())
		return
	}

	var buf bytes.Buffer
	if err := export.WritePlacements(&buf, result, compress); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if compress {
		w.Header().Set("Content-Type", "application/zstd")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// decodeJob reads a JSON job on top of the defaults. Only generated surfaces are
// accepted; file-backed sources and candidate meshes need a job file on the server.
func decodeJob(body io.Reader) (*scene.Job, error) {
	job := scene.NewJob("request")
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(job); err != nil {
		return nil, fmt.Errorf("invalid job: %w", err)
	}
	if job.ID == "" {
		job.ID = "request"
	}
	job.FilePath = ""

	for i, src := range job.Surfaces {
		if src.Type == scene.SourcePLY || src.Type == scene.SourceGLTF {
			return nil, fmt.Errorf("surface %d: %s sources are only available in job files", i, src.Type)
		}
	}
	for _, c := range job.Candidates {
		if c.Mesh != "" {
			return nil, fmt.Errorf("candidate %q: meshes are only available in job files", c.Name)
		}
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

// scatterStatus maps scatter errors to HTTP status codes
func scatterStatus(err error) int {
	switch {
	case errors.Is(err, scatter.ErrNoTargets),
		errors.Is(err, scatter.ErrNoValidCandidates),
		errors.Is(err, scatter.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleScatterStream runs a known job and streams per-surface progress via SSE.
// Query: job=<id> plus optional seed, count, density and parallel overrides.
func (s *Server) handleScatterStream(w http.ResponseWriter, r *http.Request) {
	// Set SSE headers
	s.setSSEHeaders(w)

	ctx := r.Context()

	// Create unified SSE event channel for thread-safe writing
	sseEventChan := make(chan SSEEvent, 100)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeSSEEvents(w, ctx, sseEventChan)
	}()
	defer func() {
		close(sseEventChan)
		<-writerDone
	}()

	job, err := s.parseStreamRequest(r)
	if err != nil {
		s.handleError(ctx, sseEventChan, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	// Setup console logging and streaming
	consoleChan, webLogger := s.setupConsoleLogging(job.ID)
	consoleDone := make(chan struct{})
	go func() {
		defer close(consoleDone)
		s.streamConsoleMessages(ctx, consoleChan, sseEventChan)
	}()

	result, err := s.runStreamJob(ctx, job, webLogger, sseEventChan)

	// Nothing logs past this point; drain the console before the final event
	close(consoleChan)
	<-consoleDone

	if err != nil {
		s.handleError(ctx, sseEventChan, fmt.Sprintf("Scatter failed: %v", err))
		return
	}

	data, err := json.Marshal(CompleteUpdate{Job: job.Info(), Report: result.Report})
	if err != nil {
		log.Printf("Error marshaling report: %v", err)
		return
	}
	select {
	case sseEventChan <- SSEEvent{Type: "complete", Data: string(data)}:
	case <-ctx.Done():
	}
}

// runStreamJob loads and scatters the job, sending one surface event per surface
func (s *Server) runStreamJob(ctx context.Context, job *scene.Job, logger core.Logger, sseEventChan chan SSEEvent) (*scatter.Result, error) {
	inputs, err := job.Load(logger)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	return scatter.Run(ctx, inputs.Surfaces, inputs.Candidates, job.Scatter, func(p scatter.Progress) error {
		data, err := json.Marshal(SurfaceUpdate{
			SurfaceIndex: p.SurfaceIndex,
			SurfaceCount: p.SurfaceCount,
			SurfaceID:    p.SurfaceID,
			Placed:       p.Placed,
			Skipped:      p.Skipped,
			ElapsedMs:    time.Since(startTime).Milliseconds(),
		})
		if err != nil {
			return err
		}
		select {
		case sseEventChan <- SSEEvent{Type: "surface", Data: string(data)}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// parseStreamRequest resolves the job and applies query overrides
func (s *Server) parseStreamRequest(r *http.Request) (*scene.Job, error) {
	values := r.URL.Query()
	id := values.Get("job")
	if id == "" {
		id = "meadow" // Default job
	}

	job, err := scene.FindJob(id, s.jobsDir)
	if err != nil {
		return nil, err
	}

	if value := values.Get("seed"); value != "" {
		seed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid seed: %s", value)
		}
		job.Scatter.Seed = seed
	}
	if values.Get("count") != "" {
		if job.Scatter.Count, err = parseIntParam(values, "count", 0, 1, job.Scatter.InstanceLimit()); err != nil {
			return nil, err
		}
		job.Scatter.Mode = scatter.ModeCount
	}
	if values.Get("density") != "" {
		if job.Scatter.Density, err = parseFloatParam(values, "density", 0, 0.001, 10000); err != nil {
			return nil, err
		}
		job.Scatter.Mode = scatter.ModeDensity
	}
	if job.Scatter.Parallel, err = parseBoolParam(values, "parallel", job.Scatter.Parallel); err != nil {
		return nil, err
	}

	if err := job.Scatter.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

// setSSEHeaders sets the required headers for Server-Sent Events
func (s *Server) setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// setupConsoleLogging creates console channel and web logger for a scatter run
func (s *Server) setupConsoleLogging(jobID string) (chan ConsoleMessage, core.Logger) {
	consoleChan := make(chan ConsoleMessage, 50)
	webLogger := NewWebLogger(jobID, consoleChan)
	return consoleChan, webLogger
}

// writeSSEEvents handles writing all SSE events in a single goroutine (thread-safe)
func (s *Server) writeSSEEvents(w http.ResponseWriter, ctx context.Context, sseEventChan chan SSEEvent) {
	flusher, _ := w.(http.Flusher)
	for {
		select {
		case event, ok := <-sseEventChan:
			if !ok {
				// Channel closed
				return
			}

			// Write SSE event
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data); err != nil {
				// Client disconnected during write; drain so senders never block
				for range sseEventChan {
				}
				return
			}
			if flusher != nil {
				flusher.Flush()
			}

		case <-ctx.Done():
			// Client disconnected
			return
		}
	}
}

// streamConsoleMessages forwards console messages until consoleChan is closed
func (s *Server) streamConsoleMessages(ctx context.Context, consoleChan chan ConsoleMessage, sseEventChan chan SSEEvent) {
	for consoleMsg := range consoleChan {
		data, err := json.Marshal(consoleMsg)
		if err != nil {
			log.Printf("Error marshaling console message: %v", err)
			continue
		}

		select {
		case sseEventChan <- SSEEvent{Type: "console", Data: string(data)}:
		case <-ctx.Done():
			// Client gone; keep draining so the logger never blocks
		default:
			// Channel full, skip message to avoid blocking
		}
	}
}

// handleError sends an error event to the SSE channel
func (s *Server) handleError(ctx context.Context, sseEventChan chan SSEEvent, message string) {
	select {
	case sseEventChan <- SSEEvent{Type: "error", Data: message}:
	case <-ctx.Done():
		// Client disconnected, don't block
	}
}
