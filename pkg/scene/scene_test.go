package scene

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/df07/go-surface-scatter/pkg/core"
	"github.com/df07/go-surface-scatter/pkg/scatter"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

const riverBankTOML = `name = "River Bank"
description = "Reeds along a strip"
group = "Wetlands"

[scatter]
mode = "density"
density = 3.0
seed = 7
clumping_factor = 0.25

[[surfaces]]
id = "strip"
type = "quad"
size = [4.0, 2.0]
translation = [0.0, 0.0, 1.0]

[[candidates]]
name = "reed"
weight = 2.0

[[candidates]]
name = "cattail"
weight = 1.0

[output]
placements = "out/bank.json.zst"
merge = "variant"
`

const pondYAML = `name: Pond
surfaces:
  - type: terrain
    size: [6, 6]
    resolution: 4
    amplitude: 0.5
candidates:
  - name: lily
    weight: 1
scatter:
  count: 40
  random_rotation: false
`

func TestLoadJob_TOML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "river-bank.toml", riverBankTOML)

	job, err := LoadJob(path)
	if err != nil {
		t.Fatalf("LoadJob() error: %v", err)
	}

	if job.ID != "file:river-bank" {
		t.Errorf("ID = %q, want file:river-bank", job.ID)
	}
	if job.Name != "River Bank" || job.Group != "Wetlands" {
		t.Errorf("Unexpected metadata: %q / %q", job.Name, job.Group)
	}
	if job.Scatter.Mode != scatter.ModeDensity || job.Scatter.Density != 3 || job.Scatter.Seed != 7 {
		t.Errorf("Scatter config not parsed: %+v", job.Scatter)
	}
	// Unset fields keep their defaults
	if job.Scatter.ScaleMin != 0.8 || job.Scatter.ScaleMax != 1.2 || !job.Scatter.RandomRotation {
		t.Errorf("Defaults lost: %+v", job.Scatter)
	}
	if len(job.Candidates) != 2 || job.Candidates[1].Name != "cattail" {
		t.Errorf("Unexpected candidates: %+v", job.Candidates)
	}
	if job.Output.Merge != "variant" {
		t.Errorf("Output.Merge = %q, want variant", job.Output.Merge)
	}
	if got := job.Resolve(job.Output.Placements); got != filepath.Join(filepath.Dir(path), "out/bank.json.zst") {
		t.Errorf("Resolve() = %q", got)
	}

	inputs, err := job.Load(nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(inputs.Surfaces) != 1 || math.Abs(inputs.Surfaces[0].TotalArea()-8) > 1e-9 {
		t.Fatalf("Expected one 4x2 quad, got %d surfaces", len(inputs.Surfaces))
	}
	if z := inputs.Surfaces[0].Transform.Translation().Z; z != 1 {
		t.Errorf("Expected translation z=1, got %f", z)
	}

	result, err := scatter.Scatter(inputs.Surfaces, inputs.Candidates, job.Scatter, nil)
	if err != nil {
		t.Fatalf("Scatter() error: %v", err)
	}
	if len(result.Placements) != 24 {
		t.Errorf("Expected round(8 * 3) = 24 placements, got %d", len(result.Placements))
	}
}

func TestLoadJob_YAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "pond.yml", pondYAML)

	job, err := LoadJob(path)
	if err != nil {
		t.Fatalf("LoadJob() error: %v", err)
	}
	if job.Scatter.Count != 40 || job.Scatter.RandomRotation {
		t.Errorf("Scatter config not parsed: %+v", job.Scatter)
	}
	if job.Scatter.Mode != scatter.ModeCount {
		t.Errorf("Mode should default to count, got %q", job.Scatter.Mode)
	}

	inputs, err := job.Load(nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if inputs.Surfaces[0].TriangleCount() != 32 {
		t.Errorf("Expected 4x4 cells of 2 triangles, got %d", inputs.Surfaces[0].TriangleCount())
	}
	if inputs.Surfaces[0].ID != "terrain-0" {
		t.Errorf("Expected generated ID terrain-0, got %q", inputs.Surfaces[0].ID)
	}
}

func TestLoadJob_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unsupported extension", "job.ini", "x=1"},
		{"bad toml", "bad.toml", "name = "},
		{"no surfaces", "empty.yaml", "candidates:\n  - name: a\n    weight: 1\n"},
		{"no candidates", "nocand.yaml", "surfaces:\n  - type: quad\n    size: [1, 1]\n"},
		{"unknown source", "src.yaml", "surfaces:\n  - type: sphere\ncandidates:\n  - name: a\n    weight: 1\n"},
		{"quad without size", "quad.yaml", "surfaces:\n  - type: quad\ncandidates:\n  - name: a\n    weight: 1\n"},
		{"invalid scatter", "cfg.yaml", "surfaces:\n  - type: quad\n    size: [1, 1]\ncandidates:\n  - name: a\n    weight: 1\nscatter:\n  clumping_factor: 2\n"},
		{"unknown json field", "job.json", `{"surfaces": [], "bogus": 1}`},
		{"terrain resolution too fine", "fine.yaml", "surfaces:\n  - type: terrain\n    size: [1, 1]\n    resolution: 100000\ncandidates:\n  - name: a\n    weight: 1\n"},
		{"negative terrain resolution", "neg.yaml", "surfaces:\n  - type: terrain\n    size: [1, 1]\n    resolution: -4\ncandidates:\n  - name: a\n    weight: 1\n"},
		{"count above the limit", "many.toml", "[[surfaces]]\ntype = \"quad\"\nsize = [1, 1]\n[[candidates]]\nname = \"a\"\nweight = 1\n[scatter]\ncount = 20000\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.file, tt.content)
			if _, err := LoadJob(path); err == nil {
				t.Error("Expected an error")
			}
		})
	}

	if _, err := LoadJob(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestJob_LoadMissingMesh(t *testing.T) {
	job := NewJob("mesh")
	job.Surfaces = []SurfaceSource{{Type: SourceQuad, Size: [2]float64{1, 1}}}
	job.Candidates = []CandidateSource{{Name: "rock", Weight: 1, Mesh: filepath.Join(t.TempDir(), "rocks.glb")}}

	if _, err := job.Load(nil); err == nil {
		t.Error("Expected error for missing candidate mesh file")
	}
}

func TestSurfaceSource_Transform(t *testing.T) {
	src := SurfaceSource{Translation: [3]float64{1, 2, 3}, Scale: 2}
	p := src.Transform().TransformPoint(core.NewVec3(1, 0, 0))
	if p.Subtract(core.NewVec3(3, 2, 3)).Length() > 1e-12 {
		t.Errorf("Unexpected transformed point %v", p)
	}

	// Zero rotation and scale mean identity
	if (SurfaceSource{}).Transform() != core.Mat4Identity() {
		t.Error("Empty source should have identity transform")
	}
}

func TestNewTerrainSurface(t *testing.T) {
	flat, err := NewTerrainSurface("flat", [2]float64{10, 4}, 5, 0, core.Mat4Identity())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if math.Abs(flat.TotalArea()-40) > 1e-9 {
		t.Errorf("Flat terrain area = %f, want 40", flat.TotalArea())
	}
	for i := 0; i < flat.TriangleCount(); i++ {
		if tri := flat.Triangle(i); tri.Normal().Z < 0.999 {
			t.Fatalf("Triangle %d normal %v should face +Z", i, tri.Normal())
		}
	}

	hilly, err := NewTerrainSurface("hilly", [2]float64{10, 4}, 5, 1, core.Mat4Identity())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if hilly.TotalArea() <= flat.TotalArea() {
		t.Errorf("Displaced terrain should have more area than flat: %f <= %f", hilly.TotalArea(), flat.TotalArea())
	}

	if _, err := NewTerrainSurface("bad", [2]float64{0, 1}, 4, 0, core.Mat4Identity()); err == nil {
		t.Error("Expected error for zero size")
	}
}

func TestBuiltinJobs(t *testing.T) {
	for _, job := range BuiltinJobs() {
		t.Run(job.ID, func(t *testing.T) {
			if err := job.Validate(); err != nil {
				t.Fatalf("Validate() error: %v", err)
			}
			inputs, err := job.Load(nil)
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if len(inputs.Surfaces) == 0 || len(inputs.Candidates) == 0 {
				t.Fatal("Built-in job produced no inputs")
			}
			if job.Group != BuiltinGroup {
				t.Errorf("Group = %q, want %q", job.Group, BuiltinGroup)
			}
		})
	}

	if _, ok := BuiltinJob("meadow"); !ok {
		t.Error("meadow should be a built-in job")
	}
	if _, ok := BuiltinJob("nope"); ok {
		t.Error("unexpected built-in job")
	}
}

func TestListJobs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "river-bank.toml", riverBankTOML)
	writeFile(t, dir, "pond.yml", pondYAML)
	writeFile(t, dir, "broken.yaml", "surfaces: [")
	writeFile(t, dir, "notes.txt", "ignored")

	jobs, err := ListJobs(dir, nil)
	if err != nil {
		t.Fatalf("ListJobs() error: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("Expected 2 jobs, got %d: %+v", len(jobs), jobs)
	}
	// Sorted by name
	if jobs[0].Name != "Pond" || jobs[1].Name != "River Bank" {
		t.Errorf("Unexpected order: %q, %q", jobs[0].Name, jobs[1].Name)
	}
	if jobs[0].Type != "file" || jobs[0].Group != "Job Files" {
		t.Errorf("Unexpected file job info: %+v", jobs[0])
	}

	missing, err := ListJobs(filepath.Join(dir, "nope"), nil)
	if err != nil || missing == nil || len(missing) != 0 {
		t.Errorf("Missing directory should give an empty list, got %v, %v", missing, err)
	}
}

func TestListAllJobs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "river-bank.toml", riverBankTOML)
	writeFile(t, dir, "pond.yml", pondYAML)

	response, err := ListAllJobs(dir, nil)
	if err != nil {
		t.Fatalf("ListAllJobs() error: %v", err)
	}

	var names []string
	for _, g := range response.Groups {
		names = append(names, g.Name)
	}
	want := []string{BuiltinGroup, "Job Files", "Wetlands"}
	if len(names) != len(want) {
		t.Fatalf("Groups = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Group %d = %q, want %q", i, names[i], want[i])
		}
	}
	if len(response.Groups[0].Jobs) != len(BuiltinJobs()) {
		t.Errorf("Built-in group has %d jobs, want %d", len(response.Groups[0].Jobs), len(BuiltinJobs()))
	}
}

func TestFindJob(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "river-bank.toml", riverBankTOML)

	tests := []struct {
		id       string
		expected string
	}{
		{"meadow", "meadow"},
		{"file:river-bank", "file:river-bank"},
		{"river-bank", "file:river-bank"},
		{path, "file:river-bank"},
	}
	for _, tt := range tests {
		job, err := FindJob(tt.id, dir)
		if err != nil {
			t.Errorf("FindJob(%q) error: %v", tt.id, err)
			continue
		}
		if job.ID != tt.expected {
			t.Errorf("FindJob(%q).ID = %q, want %q", tt.id, job.ID, tt.expected)
		}
	}

	if _, err := FindJob("nope", dir); err == nil {
		t.Error("Expected error for unknown job")
	}
}

func TestTitleCase(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"river-bank", "River Bank"},
		{"dense_meadow", "Dense Meadow"},
		{"UPPER-case", "Upper Case"},
		{"", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			if result := titleCase(tc.input); result != tc.expected {
				t.Errorf("titleCase(%q) = %q, want %q", tc.input, result, tc.expected)
			}
		})
	}
}
