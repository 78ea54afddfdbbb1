// Package uvclean finds UV sets that carry no usable mapping and removes them
// from glTF primitives, always keeping at least one set.
package uvclean

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

const (
	// Sets whose summed UV area is below this are empty
	minSurfaceArea = 1e-6
	// A coordinate further than this from zero is not at the origin
	originTolerance = 1e-6
)

// UVAnalysis describes one TEXCOORD set of a primitive
type UVAnalysis struct {
	Name         string  `json:"name"` // TEXCOORD_n
	Set          int     `json:"set"`
	TotalFaces   int     `json:"totalFaces"`
	ValidFaces   int     `json:"validFaces"` // Faces with three distinct vertices
	TotalPoints  int     `json:"totalPoints"`
	UniquePoints int     `json:"uniquePoints"` // Distinct coordinates at 1e-8
	SurfaceArea  float64 `json:"surfaceArea"`  // Summed absolute shoelace area
	Islands      int     `json:"islands"`      // Face groups connected by shared coordinates at 1e-6
	AllAtOrigin  bool    `json:"allAtOrigin"`
	Empty        bool    `json:"empty"`
}

// String renders the analysis the way the CLI prints it
func (a UVAnalysis) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "UV map %s: faces %d (valid %d), points %d (unique %d), islands %d, area %.8f",
		a.Name, a.TotalFaces, a.ValidFaces, a.TotalPoints, a.UniquePoints, a.Islands, a.SurfaceArea)
	if a.AllAtOrigin {
		b.WriteString(", all at origin")
	}
	if a.Empty {
		b.WriteString(", empty")
	}
	return b.String()
}

// SetName returns the attribute name of UV set n
func SetName(set int) string {
	return fmt.Sprintf("TEXCOORD_%d", set)
}

// UVSets returns the TEXCOORD set numbers present on a primitive, ascending
func UVSets(prim *gltf.Primitive) []int {
	var sets []int
	for name := range prim.Attributes {
		n, ok := strings.CutPrefix(name, "TEXCOORD_")
		if !ok {
			continue
		}
		if set, err := strconv.Atoi(n); err == nil && set >= 0 {
			sets = append(sets, set)
		}
	}
	sort.Ints(sets)
	return sets
}

// AnalyzeUVSet measures one UV set of a triangle primitive
func AnalyzeUVSet(doc *gltf.Document, prim *gltf.Primitive, set int) (UVAnalysis, error) {
	analysis := UVAnalysis{Name: SetName(set), Set: set, AllAtOrigin: true, Empty: true}

	accessor, ok := prim.Attributes[analysis.Name]
	if !ok {
		return analysis, fmt.Errorf("primitive has no %s", analysis.Name)
	}
	uvs, err := modeler.ReadTextureCoord(doc, doc.Accessors[accessor], nil)
	if err != nil {
		return analysis, fmt.Errorf("%s: %w", analysis.Name, err)
	}

	faces, err := primitiveFaces(doc, prim, len(uvs))
	if err != nil {
		return analysis, err
	}

	unique := make(map[[2]float64]struct{})
	for _, face := range faces {
		analysis.TotalFaces++
		if face[0] == face[1] || face[1] == face[2] || face[0] == face[2] {
			continue
		}
		analysis.ValidFaces++

		var poly [3][2]float64
		for i, idx := range face {
			uv := uvs[idx]
			u, v := float64(uv[0]), float64(uv[1])
			poly[i] = [2]float64{u, v}
			unique[roundUV(u, v, 1e8)] = struct{}{}
			analysis.TotalPoints++

			if math.Abs(u) > originTolerance || math.Abs(v) > originTolerance {
				analysis.AllAtOrigin = false
			}
		}
		analysis.SurfaceArea += math.Abs(shoelaceArea(poly[:]))
	}

	analysis.UniquePoints = len(unique)
	analysis.Islands = countIslands(faces, uvs)
	analysis.Empty = analysis.AllAtOrigin || analysis.SurfaceArea < minSurfaceArea
	return analysis, nil
}

// primitiveFaces returns the triangles of a primitive, bounds-checked against vertexCount
func primitiveFaces(doc *gltf.Document, prim *gltf.Primitive, vertexCount int) ([][3]int, error) {
	if prim.Mode != gltf.PrimitiveTriangles {
		return nil, fmt.Errorf("only triangle primitives can be analyzed")
	}

	var flat []int
	if prim.Indices != nil {
		indices, err := modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
		for _, idx := range indices {
			if int(idx) >= vertexCount {
				return nil, fmt.Errorf("index %d out of range", idx)
			}
			flat = append(flat, int(idx))
		}
	} else {
		for i := 0; i < vertexCount; i++ {
			flat = append(flat, i)
		}
	}

	faces := make([][3]int, 0, len(flat)/3)
	for i := 0; i+2 < len(flat); i += 3 {
		faces = append(faces, [3]int{flat[i], flat[i+1], flat[i+2]})
	}
	return faces, nil
}

// shoelaceArea returns the signed area of a polygon
func shoelaceArea(vertices [][2]float64) float64 {
	if len(vertices) < 3 {
		return 0
	}
	var area float64
	for i := range vertices {
		j := (i + 1) % len(vertices)
		area += vertices[i][0]*vertices[j][1] - vertices[j][0]*vertices[i][1]
	}
	return area / 2
}

func roundUV(u, v, scale float64) [2]float64 {
	return [2]float64{math.Round(u*scale) / scale, math.Round(v*scale) / scale}
}

// countIslands groups faces that share any UV coordinate (rounded to 1e-6)
func countIslands(faces [][3]int, uvs [][2]float32) int {
	parent := make([]int, len(faces))
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	owner := make(map[[2]float64]int)
	for fi, face := range faces {
		for _, idx := range face {
			key := roundUV(float64(uvs[idx][0]), float64(uvs[idx][1]), 1e6)
			if other, ok := owner[key]; ok {
				parent[find(fi)] = find(other)
			} else {
				owner[key] = fi
			}
		}
	}

	islands := 0
	for i := range parent {
		if find(i) == i {
			islands++
		}
	}
	return islands
}
