package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/df07/go-surface-scatter/pkg/export"
	"github.com/df07/go-surface-scatter/pkg/scene"
)

const patchJob = `{
	"name": "Patch",
	"surfaces": [{"id": "patch", "type": "quad", "size": [2, 2]}],
	"candidates": [{"name": "moss", "weight": 1}, {"name": "stone", "weight": 0}],
	"scatter": {"count": 10, "seed": 5}
}`

type sseMessage struct {
	Event string
	Data  string
}

// parseSSE splits a recorded stream into events
func parseSSE(body string) []sseMessage {
	var messages []sseMessage
	for _, block := range strings.Split(body, "\n\n") {
		var msg sseMessage
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				msg.Event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				msg.Data = strings.TrimPrefix(line, "data: ")
			}
		}
		if msg.Event != "" {
			messages = append(messages, msg)
		}
	}
	return messages
}

func eventsOfType(messages []sseMessage, event string) []sseMessage {
	var out []sseMessage
	for _, m := range messages {
		if m.Event == event {
			out = append(out, m)
		}
	}
	return out
}

func TestHandleHealth(t *testing.T) {
	handler := NewServer(0, t.TempDir()).Handler()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body["status"] != "ok" {
		t.Errorf("Unexpected health response %v (%v)", body, err)
	}
}

func TestHandleJobs(t *testing.T) {
	dir := t.TempDir()
	job := "name: Verge\nsurfaces:\n  - type: quad\n    size: [1, 3]\ncandidates:\n  - name: reed\n    weight: 1\n"
	if err := os.WriteFile(filepath.Join(dir, "verge.yaml"), []byte(job), 0644); err != nil {
		t.Fatal(err)
	}

	handler := NewServer(0, dir).Handler()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var response scene.JobsResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode jobs: %v", err)
	}
	if len(response.Groups) != 2 {
		t.Fatalf("Expected built-in and file groups, got %+v", response.Groups)
	}
	if response.Groups[0].Name != scene.BuiltinGroup {
		t.Errorf("Built-in jobs should come first, got %q", response.Groups[0].Name)
	}
	files := response.Groups[1]
	if len(files.Jobs) != 1 || files.Jobs[0].ID != "file:verge" || files.Jobs[0].Surfaces != 1 {
		t.Errorf("Unexpected file group %+v", files)
	}
}

func TestHandleScatter(t *testing.T) {
	handler := NewServer(0, t.TempDir()).Handler()

	for _, compress := range []bool{false, true} {
		target := "/api/scatter"
		if compress {
			target += "?compress=true"
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, target, strings.NewReader(patchJob)))

		if rec.Code != http.StatusOK {
			t.Fatalf("compress=%v: expected 200, got %d: %s", compress, rec.Code, rec.Body.String())
		}
		wantType := "application/json"
		if compress {
			wantType = "application/zstd"
		}
		if got := rec.Header().Get("Content-Type"); got != wantType {
			t.Errorf("Content-Type = %q, want %q", got, wantType)
		}

		result, err := export.ReadPlacements(rec.Body)
		if err != nil {
			t.Fatalf("compress=%v: ReadPlacements() error: %v", compress, err)
		}
		if len(result.Placements) != 10 || result.Report.TotalInstances != 10 {
			t.Errorf("Expected 10 placements, got %d", len(result.Placements))
		}
		for _, p := range result.Placements {
			if p.CandidateName != "moss" || p.SurfaceID != "patch" {
				t.Fatalf("Unexpected placement %+v", p)
			}
		}
	}
}

func TestHandleScatter_Errors(t *testing.T) {
	handler := NewServer(0, t.TempDir()).Handler()

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed json", `{"surfaces": [`, http.StatusBadRequest},
		{"unknown field", `{"bogus": true}`, http.StatusBadRequest},
		{"file source", `{"surfaces": [{"type": "ply", "path": "/etc/passwd"}], "candidates": [{"name": "a", "weight": 1}]}`, http.StatusBadRequest},
		{"candidate mesh", `{"surfaces": [{"type": "quad", "size": [1, 1]}], "candidates": [{"name": "a", "weight": 1, "mesh": "a.glb"}]}`, http.StatusBadRequest},
		{"zero weights", `{"surfaces": [{"type": "quad", "size": [1, 1]}], "candidates": [{"name": "a", "weight": 0}]}`, http.StatusBadRequest},
		{"density overflow", `{"surfaces": [{"type": "quad", "size": [10, 10]}], "candidates": [{"name": "a", "weight": 1}], "scatter": {"mode": "density", "density": 1e300}}`, http.StatusBadRequest},
		{"count above the limit", `{"surfaces": [{"type": "quad", "size": [1, 1]}], "candidates": [{"name": "a", "weight": 1}], "scatter": {"count": 10001}}`, http.StatusBadRequest},
		{"terrain resolution", `{"surfaces": [{"type": "terrain", "size": [1, 1], "resolution": 1000000}], "candidates": [{"name": "a", "weight": 1}]}`, http.StatusBadRequest},
		{"invalid config", `{"surfaces": [{"type": "quad", "size": [1, 1]}], "candidates": [{"name": "a", "weight": 1}], "scatter": {"clumpingFactor": 2}}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scatter", strings.NewReader(tt.body)))
			if rec.Code != tt.code {
				t.Errorf("Expected %d, got %d: %s", tt.code, rec.Code, rec.Body.String())
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body["error"] == "" {
				t.Errorf("Expected an error body, got %v (%v)", body, err)
			}
		})
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scatter", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/scatter: expected 405, got %d", rec.Code)
	}
}

func TestHandleScatterStream(t *testing.T) {
	handler := NewServer(0, t.TempDir()).Handler()

	query := url.Values{"job": {"slope"}, "seed": {"11"}, "density": {"2"}}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scatter/stream?"+query.Encode(), nil))

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", got)
	}

	messages := parseSSE(rec.Body.String())
	if errs := eventsOfType(messages, "error"); len(errs) > 0 {
		t.Fatalf("Unexpected error event: %s", errs[0].Data)
	}

	surfaces := eventsOfType(messages, "surface")
	if len(surfaces) != 2 {
		t.Fatalf("Expected one surface event per surface, got %d", len(surfaces))
	}
	total := 0
	for i, m := range surfaces {
		var update SurfaceUpdate
		if err := json.Unmarshal([]byte(m.Data), &update); err != nil {
			t.Fatalf("Bad surface event %q: %v", m.Data, err)
		}
		if update.SurfaceIndex != i || update.SurfaceCount != 2 {
			t.Errorf("Unexpected surface update %+v", update)
		}
		total += update.Placed
	}

	// 10x10 field and 10x6 slope at density 2
	if total != 320 {
		t.Errorf("Expected 320 placements, got %d", total)
	}

	complete := eventsOfType(messages, "complete")
	if len(complete) != 1 || messages[len(messages)-1].Event != "complete" {
		t.Fatalf("Expected a final complete event, got %+v", messages)
	}
	var done CompleteUpdate
	if err := json.Unmarshal([]byte(complete[0].Data), &done); err != nil {
		t.Fatalf("Bad complete event: %v", err)
	}
	if done.Job.ID != "slope" || done.Report.TotalInstances != total {
		t.Errorf("Unexpected completion %+v", done)
	}
	if len(eventsOfType(messages, "console")) == 0 {
		t.Error("Expected console events from the job loader")
	}
}

func TestHandleScatterStream_Errors(t *testing.T) {
	handler := NewServer(0, t.TempDir()).Handler()

	tests := []struct {
		name  string
		query string
	}{
		{"unknown job", "job=nonexistent"},
		{"bad seed", "job=meadow&seed=abc"},
		{"count out of range", "job=meadow&count=-1"},
		{"count above the limit", "job=meadow&count=20000"},
		{"bad parallel", "job=meadow&parallel=maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scatter/stream?"+tt.query, nil))

			messages := parseSSE(rec.Body.String())
			if len(messages) != 1 || messages[0].Event != "error" {
				t.Errorf("Expected a single error event, got %+v", messages)
			}
		})
	}
}

func TestHandleScatterStream_BudgetExceeded(t *testing.T) {
	handler := NewServer(0, t.TempDir()).Handler()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scatter/stream?job=slope&density=5000", nil))

	messages := parseSSE(rec.Body.String())
	if len(messages) == 0 || messages[len(messages)-1].Event != "error" {
		t.Fatalf("Expected the stream to end with an error event, got %+v", messages)
	}
	if !strings.Contains(messages[len(messages)-1].Data, "limit") {
		t.Errorf("Expected the error to name the instance limit, got %q", messages[len(messages)-1].Data)
	}
	if len(eventsOfType(messages, "surface")) != 0 || len(eventsOfType(messages, "complete")) != 0 {
		t.Errorf("No surface may be scattered when the budget is exceeded, got %+v", messages)
	}
}

func TestParseIntParam(t *testing.T) {
	values := url.Values{"count": {"25"}, "bad": {"x"}, "big": {"5000"}}

	if v, err := parseIntParam(values, "count", 1, 0, 100); err != nil || v != 25 {
		t.Errorf("parseIntParam(count) = %d, %v", v, err)
	}
	if v, err := parseIntParam(values, "missing", 7, 0, 100); err != nil || v != 7 {
		t.Errorf("Missing key should return default, got %d, %v", v, err)
	}
	if _, err := parseIntParam(values, "bad", 1, 0, 100); err == nil {
		t.Error("Expected error for non-integer")
	}
	if _, err := parseIntParam(values, "big", 1, 0, 100); err == nil {
		t.Error("Expected error for out of range value")
	}
}
