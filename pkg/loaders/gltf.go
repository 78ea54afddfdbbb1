package loaders

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/df07/go-surface-scatter/pkg/core"
	"github.com/df07/go-surface-scatter/pkg/geometry"
)

// MeshData is a triangle mesh baked from every triangle primitive of one glTF mesh
type MeshData struct {
	Name      string
	Positions []core.Vec3
	Normals   []core.Vec3 // Per-vertex, empty when any primitive lacks NORMAL
	Indices   []int       // 3 per triangle
}

// TriangleCount returns the number of triangles in the mesh
func (m *MeshData) TriangleCount() int {
	return len(m.Indices) / 3
}

// MeshLibrary maps candidate names to their meshes
type MeshLibrary map[string]*MeshData

// Names returns the library keys sorted
func (l MeshLibrary) Names() []string {
	names := make([]string, 0, len(l))
	for name := range l {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadGLTFSurfaces opens a .gltf/.glb file and returns one surface per mesh-bearing node
func LoadGLTFSurfaces(path string, logger core.Logger) ([]*geometry.Surface, error) {
	startTime := time.Now()
	if logger == nil {
		logger = core.NopLogger{}
	}

	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open glTF file: %w", err)
	}

	surfaces, err := GLTFSurfaces(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	logger.Printf("Loaded %d glTF surfaces from %s in %v\n", len(surfaces), path, time.Since(startTime))
	return surfaces, nil
}

// GLTFSurfaces walks the default scene and builds a surface for every node with a mesh.
// Each surface keeps the mesh in local space with the node's world matrix as its transform.
func GLTFSurfaces(doc *gltf.Document) ([]*geometry.Surface, error) {
	var surfaces []*geometry.Surface
	cache := make(map[int]*MeshData)

	err := walkScene(doc, func(nodeIndex int, node *gltf.Node, world core.Mat4) error {
		if node.Mesh == nil {
			return nil
		}
		meshIndex := *node.Mesh
		if meshIndex < 0 || meshIndex >= len(doc.Meshes) {
			return fmt.Errorf("node %d: mesh index %d out of range", nodeIndex, meshIndex)
		}

		mesh, ok := cache[meshIndex]
		if !ok {
			var err error
			if mesh, err = readMesh(doc, doc.Meshes[meshIndex]); err != nil {
				return fmt.Errorf("node %d: %w", nodeIndex, err)
			}
			cache[meshIndex] = mesh
		}

		id := node.Name
		if id == "" {
			id = mesh.Name
		}
		if id == "" {
			id = meshID(mesh)
		}

		surface, err := geometry.NewSurfaceFromMesh(id, mesh.Positions, mesh.Indices, &geometry.SurfaceOptions{Transform: &world})
		if err != nil {
			return err
		}
		surfaces = append(surfaces, surface)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return surfaces, nil
}

// LoadGLTFCandidates opens a .gltf/.glb file and returns its meshes keyed by name
func LoadGLTFCandidates(path string, logger core.Logger) (MeshLibrary, error) {
	if logger == nil {
		logger = core.NopLogger{}
	}

	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open glTF file: %w", err)
	}

	library, err := GLTFMeshLibrary(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	logger.Printf("Loaded %d candidate meshes from %s\n", len(library), path)
	return library, nil
}

// GLTFMeshLibrary reads every mesh of the document. Unnamed meshes are called mesh<N>.
func GLTFMeshLibrary(doc *gltf.Document) (MeshLibrary, error) {
	library := make(MeshLibrary, len(doc.Meshes))
	for i, m := range doc.Meshes {
		mesh, err := readMesh(doc, m)
		if err != nil {
			return nil, fmt.Errorf("mesh %d: %w", i, err)
		}
		if mesh.Name == "" {
			mesh.Name = fmt.Sprintf("mesh%d", i)
		}
		if _, dup := library[mesh.Name]; dup {
			return nil, fmt.Errorf("duplicate mesh name %q", mesh.Name)
		}
		library[mesh.Name] = mesh
	}
	return library, nil
}

// readMesh concatenates the triangle primitives of a mesh; other primitive modes are ignored
func readMesh(doc *gltf.Document, m *gltf.Mesh) (*MeshData, error) {
	mesh := &MeshData{Name: m.Name}
	withNormals := true

	for pi, prim := range m.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles {
			continue
		}

		posIndex, ok := prim.Attributes[gltf.POSITION]
		if !ok {
			return nil, fmt.Errorf("primitive %d has no POSITION", pi)
		}
		positions, err := modeler.ReadPosition(doc, doc.Accessors[posIndex], nil)
		if err != nil {
			return nil, fmt.Errorf("primitive %d positions: %w", pi, err)
		}

		var normals [][3]float32
		if normIndex, ok := prim.Attributes[gltf.NORMAL]; ok {
			if normals, err = modeler.ReadNormal(doc, doc.Accessors[normIndex], nil); err != nil {
				return nil, fmt.Errorf("primitive %d normals: %w", pi, err)
			}
		} else {
			withNormals = false
		}

		base := len(mesh.Positions)
		if prim.Indices != nil {
			indices, err := modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
			if err != nil {
				return nil, fmt.Errorf("primitive %d indices: %w", pi, err)
			}
			if len(indices)%3 != 0 {
				return nil, fmt.Errorf("primitive %d: %d indices is not a triangle list", pi, len(indices))
			}
			for _, idx := range indices {
				if int(idx) >= len(positions) {
					return nil, fmt.Errorf("primitive %d: index %d out of range", pi, idx)
				}
				mesh.Indices = append(mesh.Indices, base+int(idx))
			}
		} else {
			for i := 0; i+2 < len(positions); i += 3 {
				mesh.Indices = append(mesh.Indices, base+i, base+i+1, base+i+2)
			}
		}

		for _, p := range positions {
			mesh.Positions = append(mesh.Positions, core.Vec3FromArray(p))
		}
		for _, n := range normals {
			mesh.Normals = append(mesh.Normals, core.Vec3FromArray(n))
		}
	}

	if !withNormals {
		mesh.Normals = nil
	}
	return mesh, nil
}

// walkScene visits every node reachable from the default scene, parents before children
func walkScene(doc *gltf.Document, visit func(index int, node *gltf.Node, world core.Mat4) error) error {
	roots := sceneRoots(doc)
	visited := make(map[int]bool)

	var walk func(index int, parent core.Mat4) error
	walk = func(index int, parent core.Mat4) error {
		if index < 0 || index >= len(doc.Nodes) {
			return fmt.Errorf("node index %d out of range", index)
		}
		if visited[index] {
			return fmt.Errorf("node %d is reachable twice", index)
		}
		visited[index] = true

		node := doc.Nodes[index]
		world := parent.Multiply(NodeMatrix(node))
		if err := visit(index, node, world); err != nil {
			return err
		}
		for _, child := range node.Children {
			if err := walk(child, world); err != nil {
				return err
			}
		}
		return nil
	}

	for _, root := range roots {
		if err := walk(root, core.Mat4Identity()); err != nil {
			return err
		}
	}
	return nil
}

// sceneRoots returns the root nodes of the default scene.
// Documents without scenes treat every node that is nobody's child as a root.
func sceneRoots(doc *gltf.Document) []int {
	if len(doc.Scenes) > 0 {
		scene := 0
		if doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes) {
			scene = *doc.Scene
		}
		return append([]int(nil), doc.Scenes[scene].Nodes...)
	}

	isChild := make(map[int]bool)
	for _, node := range doc.Nodes {
		for _, child := range node.Children {
			isChild[child] = true
		}
	}
	var roots []int
	for i := range doc.Nodes {
		if !isChild[i] {
			roots = append(roots, i)
		}
	}
	return roots
}

// NodeMatrix returns a node's local transform from its matrix or its TRS properties
func NodeMatrix(node *gltf.Node) core.Mat4 {
	identity := core.Mat4Identity().ColumnMajor()
	if m := node.MatrixOrDefault(); m != identity {
		return core.Mat4FromColumnMajor(m)
	}

	t := node.Translation
	s := node.ScaleOrDefault()
	return core.Mat4FromTRS(
		core.NewVec3(t[0], t[1], t[2]),
		core.QuatFromArray(node.RotationOrDefault()),
		core.NewVec3(s[0], s[1], s[2]),
	)
}

// meshID names an unnamed mesh by a hash of its geometry
func meshID(mesh *MeshData) string {
	h := xxhash.New()
	var b [8]byte
	for _, p := range mesh.Positions {
		for _, v := range [3]float64{p.X, p.Y, p.Z} {
			binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
			h.Write(b[:])
		}
	}
	return fmt.Sprintf("mesh-%016x", h.Sum64())
}
