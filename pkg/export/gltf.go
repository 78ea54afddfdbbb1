package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/df07/go-surface-scatter/pkg/core"
	"github.com/df07/go-surface-scatter/pkg/loaders"
	"github.com/df07/go-surface-scatter/pkg/scatter"
)

// MergeMode selects how placements become glTF nodes
type MergeMode string

const (
	MergeNone    MergeMode = "none"    // One node per placement sharing its candidate mesh
	MergeAll     MergeMode = "all"     // Every placement baked into one mesh
	MergeSurface MergeMode = "surface" // One baked mesh per surface
	MergeVariant MergeMode = "variant" // One baked mesh per candidate
)

// ParseMergeMode accepts the MergeMode names; empty means MergeNone
func ParseMergeMode(s string) (MergeMode, error) {
	switch m := MergeMode(strings.ToLower(s)); m {
	case "":
		return MergeNone, nil
	case MergeNone, MergeAll, MergeSurface, MergeVariant:
		return m, nil
	default:
		return "", fmt.Errorf("unknown merge mode %q", s)
	}
}

// ResolveMergeMode applies flag precedence: merge-all wins over merge-by-variant
func ResolveMergeMode(mergeAll, byVariant bool) MergeMode {
	switch {
	case mergeAll:
		return MergeAll
	case byVariant:
		return MergeVariant
	default:
		return MergeNone
	}
}

// Options controls the glTF writer
type Options struct {
	Merge      MergeMode
	Container  string // Parent node for unmerged placements; empty for none
	MergedName string // Node name in MergeAll mode
	Generator  string
}

// DefaultOptions returns per-placement nodes under a container node
func DefaultOptions() Options {
	return Options{
		Merge:      MergeNone,
		Container:  "Scatter_Container",
		MergedName: "Scatter_Merged",
		Generator:  "go-surface-scatter",
	}
}

// WriteGLTF builds the document and saves it; .gltf writes JSON, anything else binary
func WriteGLTF(path string, result *scatter.Result, library loaders.MeshLibrary, opts Options) error {
	doc, err := BuildGLTF(result, library, opts)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(path), ".gltf") {
		return gltf.Save(doc, path)
	}
	return gltf.SaveBinary(doc, path)
}

// BuildGLTF turns placements into a glTF scene.
// Candidates missing from the library are drawn with MarkerMesh.
func BuildGLTF(result *scatter.Result, library loaders.MeshLibrary, opts Options) (*gltf.Document, error) {
	w := &writer{
		doc:     gltf.NewDocument(),
		library: library,
		meshes:  make(map[string]int),
	}
	w.doc.Asset.Generator = opts.Generator

	pbr := &gltf.PBRMetallicRoughness{BaseColorFactor: &[4]float64{0.35, 0.6, 0.2, 1}, MetallicFactor: gltf.Float(0), RoughnessFactor: gltf.Float(1)}
	w.doc.Materials = []*gltf.Material{{Name: "Scatter", PBRMetallicRoughness: pbr, AlphaMode: gltf.AlphaOpaque, DoubleSided: true}}

	switch opts.Merge {
	case MergeNone, "":
		w.writeInstances(result.Placements, opts.Container)
	case MergeAll:
		name := opts.MergedName
		if name == "" {
			name = "Scatter_Merged"
		}
		w.writeMerged([]group{{name: name, placements: result.Placements}})
	case MergeSurface:
		w.writeMerged(groupBy(result.Placements, func(p scatter.Placement) string { return p.SurfaceID }))
	case MergeVariant:
		w.writeMerged(groupBy(result.Placements, func(p scatter.Placement) string { return p.CandidateName }))
	default:
		return nil, fmt.Errorf("unknown merge mode %q", opts.Merge)
	}

	return w.doc, nil
}

type writer struct {
	doc     *gltf.Document
	library loaders.MeshLibrary
	meshes  map[string]int    // candidate name -> shared mesh index
}

type group struct {
	name       string
	placements []scatter.Placement
}

// groupBy splits placements by key, groups ordered by first appearance
func groupBy(placements []scatter.Placement, key func(scatter.Placement) string) []group {
	index := make(map[string]int)
	var groups []group
	for _, p := range placements {
		k := key(p)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, group{name: k + "_Merged"})
		}
		groups[i].placements = append(groups[i].placements, p)
	}
	return groups
}

func (w *writer) mesh(name string) *loaders.MeshData {
	if m, ok := w.library[name]; ok && m.TriangleCount() > 0 {
		return m
	}
	return MarkerMesh()
}

// addNode appends a node and returns its index
func (w *writer) addNode(node *gltf.Node) int {
	w.doc.Nodes = append(w.doc.Nodes, node)
	return len(w.doc.Nodes) - 1
}

// addMesh writes positions, normals and indices into buffers and appends a mesh
func (w *writer) addMesh(name string, positions, normals [][3]float32, indices []uint32) int {
	prim := &gltf.Primitive{
		Attributes: gltf.PrimitiveAttributes{
			gltf.POSITION: modeler.WritePosition(w.doc, positions),
			gltf.NORMAL:   modeler.WriteNormal(w.doc, normals),
		},
		Indices:  gltf.Index(modeler.WriteIndices(w.doc, indices)),
		Material: gltf.Index(0),
	}
	w.doc.Meshes = append(w.doc.Meshes, &gltf.Mesh{Name: name, Primitives: []*gltf.Primitive{prim}})
	return len(w.doc.Meshes) - 1
}

// writeInstances emits one node per placement referencing a shared candidate mesh.
// The container node is only written when there is something to parent.
func (w *writer) writeInstances(placements []scatter.Placement, container string) {
	var parent *gltf.Node
	if container != "" && len(placements) > 0 {
		parent = &gltf.Node{Name: container}
		w.doc.Scenes[0].Nodes = append(w.doc.Scenes[0].Nodes, w.addNode(parent))
	}

	for i, p := range placements {
		meshIndex, ok := w.meshes[p.CandidateName]
		if !ok {
			m := w.mesh(p.CandidateName)
			positions, normals, indices := bake(m, core.Mat4Identity(), core.QuatIdentity())
			meshIndex = w.addMesh(p.CandidateName, positions, normals, indices)
			w.meshes[p.CandidateName] = meshIndex
		}

		node := &gltf.Node{
			Name:        fmt.Sprintf("%s.%04d", p.CandidateName, i),
			Mesh:        gltf.Index(meshIndex),
			Translation: [3]float64{p.Position.X, p.Position.Y, p.Position.Z},
			Rotation:    p.Orientation.Array(),
			Scale:       [3]float64{p.Scale, p.Scale, p.Scale},
		}
		nodeIndex := w.addNode(node)
		if parent != nil {
			parent.Children = append(parent.Children, nodeIndex)
		} else {
			w.doc.Scenes[0].Nodes = append(w.doc.Scenes[0].Nodes, nodeIndex)
		}
	}
}

// writeMerged bakes every group into a single world-space mesh with an identity node
func (w *writer) writeMerged(groups []group) {
	for _, g := range groups {
		var positions, normals [][3]float32
		var indices []uint32
		for _, p := range g.placements {
			m := w.mesh(p.CandidateName)
			transform := core.Mat4FromTRS(p.Position, p.Orientation, core.NewVec3(p.Scale, p.Scale, p.Scale))
			pos, norm, idx := bake(m, transform, p.Orientation)
			base := uint32(len(positions))
			for _, i := range idx {
				indices = append(indices, base+i)
			}
			positions = append(positions, pos...)
			normals = append(normals, norm...)
		}
		if len(indices) == 0 {
			continue
		}
		mesh := w.addMesh(g.name, positions, normals, indices)
		w.doc.Scenes[0].Nodes = append(w.doc.Scenes[0].Nodes, w.addNode(&gltf.Node{Name: g.name, Mesh: gltf.Index(mesh)}))
	}
}

// bake transforms a mesh into buffer-ready arrays. Missing normals are replaced by face normals.
func bake(m *loaders.MeshData, transform core.Mat4, rotation core.Quat) ([][3]float32, [][3]float32, []uint32) {
	positions := make([][3]float32, len(m.Positions))
	for i, p := range m.Positions {
		positions[i] = transform.TransformPoint(p).Array()
	}

	normals := make([][3]float32, len(m.Positions))
	if len(m.Normals) == len(m.Positions) {
		for i, n := range m.Normals {
			normals[i] = rotation.Rotate(n).Normalize().Array()
		}
	} else {
		for t := 0; t+2 < len(m.Indices); t += 3 {
			a, b, c := m.Positions[m.Indices[t]], m.Positions[m.Indices[t+1]], m.Positions[m.Indices[t+2]]
			n := rotation.Rotate(b.Subtract(a).Cross(c.Subtract(a)).Normalize()).Array()
			normals[m.Indices[t]], normals[m.Indices[t+1]], normals[m.Indices[t+2]] = n, n, n
		}
	}

	indices := make([]uint32, len(m.Indices))
	for i, idx := range m.Indices {
		indices[i] = uint32(idx)
	}
	return positions, normals, indices
}

// MarkerMesh is a grass-card tuft: two crossed vertical quads, 1 unit tall along +Z
func MarkerMesh() *loaders.MeshData {
	const h, r = 1.0, 0.25
	return &loaders.MeshData{
		Name: "marker",
		Positions: []core.Vec3{
			core.NewVec3(-r, 0, 0), core.NewVec3(r, 0, 0), core.NewVec3(r, 0, h), core.NewVec3(-r, 0, h),
			core.NewVec3(0, -r, 0), core.NewVec3(0, r, 0), core.NewVec3(0, r, h), core.NewVec3(0, -r, h),
		},
		Indices: []int{0, 1, 2, 0, 2, 3, 4, 5, 6, 4, 6, 7},
	}
}
