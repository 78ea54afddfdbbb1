package scene

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/df07/go-surface-scatter/pkg/core"
	"github.com/df07/go-surface-scatter/pkg/geometry"
	"github.com/df07/go-surface-scatter/pkg/loaders"
	"github.com/df07/go-surface-scatter/pkg/scatter"
)

// Surface source types
const (
	SourcePLY     = "ply"
	SourceGLTF    = "gltf"
	SourceQuad    = "quad"
	SourceTerrain = "terrain"
)

// MaxTerrainResolution bounds terrain grids at 2*512*512 triangles
const MaxTerrainResolution = 512

// Job describes one scatter run: where surfaces and candidates come from,
// the scatter configuration, and where results go
type Job struct {
	ID          string            `json:"id" toml:"-" yaml:"-"` // Job files are identified by file name
	Name        string            `json:"name" toml:"name" yaml:"name"`
	Description string            `json:"description,omitempty" toml:"description,omitempty" yaml:"description,omitempty"`
	Group       string            `json:"group,omitempty" toml:"group,omitempty" yaml:"group,omitempty"`
	Surfaces    []SurfaceSource   `json:"surfaces" toml:"surfaces" yaml:"surfaces"`
	Candidates  []CandidateSource `json:"candidates" toml:"candidates" yaml:"candidates"`
	Scatter     scatter.Config    `json:"scatter" toml:"scatter" yaml:"scatter"`
	Output      OutputOptions     `json:"output" toml:"output" yaml:"output"`

	// Set by LoadJob; relative paths in the job resolve against its directory
	FilePath string `json:"filePath,omitempty" toml:"-" yaml:"-"`
}

// SurfaceSource produces one or more scatter targets
type SurfaceSource struct {
	ID   string `json:"id,omitempty" toml:"id,omitempty" yaml:"id,omitempty"`
	Type string `json:"type" toml:"type" yaml:"type"` // ply, gltf, quad or terrain
	Path string `json:"path,omitempty" toml:"path,omitempty" yaml:"path,omitempty"`

	// Placement of the source in the world; glTF node transforms are applied on top
	Translation [3]float64 `json:"translation,omitempty" toml:"translation,omitempty" yaml:"translation,omitempty"`
	Rotation    [4]float64 `json:"rotation,omitempty" toml:"rotation,omitempty" yaml:"rotation,omitempty"` // x, y, z, w
	Scale       float64    `json:"scale,omitempty" toml:"scale,omitempty" yaml:"scale,omitempty"`

	// quad and terrain
	Size [2]float64 `json:"size,omitempty" toml:"size,omitempty" yaml:"size,omitempty"`
	// terrain
	Resolution int     `json:"resolution,omitempty" toml:"resolution,omitempty" yaml:"resolution,omitempty"`
	Amplitude  float64 `json:"amplitude,omitempty" toml:"amplitude,omitempty" yaml:"amplitude,omitempty"`
}

// CandidateSource is a weighted candidate, optionally backed by a glTF mesh
type CandidateSource struct {
	Name     string  `json:"name" toml:"name" yaml:"name"`
	Weight   float64 `json:"weight" toml:"weight" yaml:"weight"`
	Mesh     string  `json:"mesh,omitempty" toml:"mesh,omitempty" yaml:"mesh,omitempty"`               // .gltf/.glb file
	MeshName string  `json:"meshName,omitempty" toml:"mesh_name,omitempty" yaml:"mesh_name,omitempty"` // defaults to Name
}

// OutputOptions says where results go; empty paths are skipped
type OutputOptions struct {
	Placements string `json:"placements,omitempty" toml:"placements,omitempty" yaml:"placements,omitempty"` // .json or .json.zst
	GLTF       string `json:"gltf,omitempty" toml:"gltf,omitempty" yaml:"gltf,omitempty"`
	Merge      string `json:"merge,omitempty" toml:"merge,omitempty" yaml:"merge,omitempty"` // none, all, surface, variant
	Container  string `json:"container,omitempty" toml:"container,omitempty" yaml:"container,omitempty"`
}

// Inputs are the materialized surfaces and candidates of a job
type Inputs struct {
	Surfaces   []*geometry.Surface
	Candidates []scatter.Candidate
	Library    loaders.MeshLibrary
}

// NewJob returns an empty job carrying the default scatter config
func NewJob(id string) *Job {
	return &Job{ID: id, Name: titleCase(id), Scatter: scatter.DefaultConfig()}
}

// LoadJob reads a job from a .toml, .yaml/.yml or .json file.
// Fields missing from the file keep their defaults.
func LoadJob(path string) (*Job, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}

	base := filepath.Base(path)
	nameWithoutExt := strings.TrimSuffix(base, filepath.Ext(base))
	job := NewJob("file:" + nameWithoutExt)
	job.Name = titleCase(nameWithoutExt)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(content, job)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, job)
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(content))
		dec.DisallowUnknownFields()
		err = dec.Decode(job)
	default:
		return nil, fmt.Errorf("unsupported job file type: %s", base)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", base, err)
	}

	job.ID = "file:" + nameWithoutExt
	job.FilePath = path

	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", base, err)
	}
	return job, nil
}

// Validate checks the job structure and its scatter config
func (j *Job) Validate() error {
	if len(j.Surfaces) == 0 {
		return fmt.Errorf("job %q has no surfaces", j.ID)
	}
	for i, s := range j.Surfaces {
		switch s.Type {
		case SourcePLY, SourceGLTF:
			if s.Path == "" {
				return fmt.Errorf("surface %d: %s source needs a path", i, s.Type)
			}
		case SourceQuad, SourceTerrain:
			if !(s.Size[0] > 0 && s.Size[1] > 0) || math.IsInf(s.Size[0], 0) || math.IsInf(s.Size[1], 0) {
				return fmt.Errorf("surface %d: %s source needs a positive finite size", i, s.Type)
			}
			if s.Resolution < 0 || s.Resolution > MaxTerrainResolution {
				return fmt.Errorf("surface %d: resolution must be between 0 and %d, got %d", i, MaxTerrainResolution, s.Resolution)
			}
		default:
			return fmt.Errorf("surface %d: unknown source type %q", i, s.Type)
		}
	}
	if len(j.Candidates) == 0 {
		return fmt.Errorf("job %q has no candidates", j.ID)
	}
	for i, c := range j.Candidates {
		if c.Name == "" {
			return fmt.Errorf("candidate %d has no name", i)
		}
	}
	return j.Scatter.Validate()
}

// Resolve makes a job-relative path absolute against the job file directory
func (j *Job) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || j.FilePath == "" {
		return path
	}
	return filepath.Join(filepath.Dir(j.FilePath), path)
}

// Load materializes surfaces, candidates and candidate meshes
func (j *Job) Load(logger core.Logger) (*Inputs, error) {
	if logger == nil {
		logger = core.NopLogger{}
	}

	inputs := &Inputs{Library: make(loaders.MeshLibrary)}
	for i, src := range j.Surfaces {
		surfaces, err := j.loadSurfaces(i, src, logger)
		if err != nil {
			return nil, fmt.Errorf("surface %d: %w", i, err)
		}
		inputs.Surfaces = append(inputs.Surfaces, surfaces...)
	}

	files := make(map[string]loaders.MeshLibrary)
	for _, c := range j.Candidates {
		inputs.Candidates = append(inputs.Candidates, scatter.Candidate{Name: c.Name, Weight: c.Weight})
		if c.Mesh == "" {
			continue
		}

		path := j.Resolve(c.Mesh)
		library, ok := files[path]
		if !ok {
			var err error
			if library, err = loaders.LoadGLTFCandidates(path, logger); err != nil {
				return nil, fmt.Errorf("candidate %q: %w", c.Name, err)
			}
			files[path] = library
		}

		meshName := c.MeshName
		if meshName == "" {
			meshName = c.Name
		}
		mesh, ok := library[meshName]
		if !ok {
			return nil, fmt.Errorf("candidate %q: mesh %q not found in %s", c.Name, meshName, c.Mesh)
		}
		inputs.Library[c.Name] = mesh
		inputs.Candidates[len(inputs.Candidates)-1].Mesh = mesh
	}

	logger.Printf("Job %s: %d surfaces, %d candidates\n", j.ID, len(inputs.Surfaces), len(inputs.Candidates))
	return inputs, nil
}

// Transform returns the source's world transform
func (s SurfaceSource) Transform() core.Mat4 {
	scale := s.Scale
	if scale == 0 {
		scale = 1
	}
	rotation := core.QuatFromArray(s.Rotation)
	if rotation.Length() == 0 {
		rotation = core.QuatIdentity()
	}
	return core.Mat4FromTRS(core.NewVec3(s.Translation[0], s.Translation[1], s.Translation[2]), rotation,
		core.NewVec3(scale, scale, scale))
}

func (j *Job) loadSurfaces(index int, src SurfaceSource, logger core.Logger) ([]*geometry.Surface, error) {
	id := src.ID
	if id == "" {
		id = fmt.Sprintf("%s-%d", src.Type, index)
	}
	transform := src.Transform()

	switch src.Type {
	case SourcePLY:
		data, err := loaders.LoadPLY(j.Resolve(src.Path), logger)
		if err != nil {
			return nil, err
		}
		surface, err := data.Surface(id, transform)
		if err != nil {
			return nil, err
		}
		return []*geometry.Surface{surface}, nil

	case SourceGLTF:
		surfaces, err := loaders.LoadGLTFSurfaces(j.Resolve(src.Path), logger)
		if err != nil {
			return nil, err
		}
		for _, s := range surfaces {
			s.Transform = transform.Multiply(s.Transform)
			if src.ID != "" {
				s.ID = src.ID + "/" + s.ID
			}
		}
		return surfaces, nil

	case SourceQuad:
		corner := core.NewVec3(-src.Size[0]/2, -src.Size[1]/2, 0)
		return []*geometry.Surface{geometry.NewQuadSurface(id, corner,
			core.NewVec3(src.Size[0], 0, 0), core.NewVec3(0, src.Size[1], 0), transform)}, nil

	case SourceTerrain:
		surface, err := NewTerrainSurface(id, src.Size, src.Resolution, src.Amplitude, transform)
		if err != nil {
			return nil, err
		}
		return []*geometry.Surface{surface}, nil

	default:
		return nil, fmt.Errorf("unknown source type %q", src.Type)
	}
}
