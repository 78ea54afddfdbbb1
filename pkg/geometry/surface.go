package geometry

import (
	"fmt"
	"sort"

	"github.com/df07/go-surface-scatter/pkg/core"
)

// Surface is a triangulated scatter target with a world transform.
// Triangles are kept in local space; the cumulative area table is built once at construction.
type Surface struct {
	ID        string
	Transform core.Mat4

	triangles    []Triangle
	cumulative   []float64 // cumulative[i] = sum of areas of triangles[0..i]
	totalArea    float64
	lastPositive int // index of the last triangle with non-zero area, -1 if none
	bbox         core.AABB
}

// SurfaceOptions contains optional parameters for surface creation
type SurfaceOptions struct {
	Normals   []core.Vec3 // Optional custom normals (one per triangle after triangulation)
	Transform *core.Mat4  // Optional world transform (identity when nil)
}

// NewSurface creates a surface from already triangulated geometry
func NewSurface(id string, triangles []Triangle, transform core.Mat4) *Surface {
	s := &Surface{
		ID:           id,
		Transform:    transform,
		triangles:    triangles,
		cumulative:   make([]float64, len(triangles)),
		lastPositive: -1,
	}

	var total float64
	for i, tri := range triangles {
		total += tri.Area()
		s.cumulative[i] = total
		if tri.Area() > 0 {
			s.lastPositive = i
		}
		if i == 0 {
			s.bbox = tri.BoundingBox()
		} else {
			s.bbox = s.bbox.Union(tri.BoundingBox())
		}
	}
	s.totalArea = total

	return s
}

// NewSurfaceFromMesh creates a surface from vertices and flat triangle indices
// vertices: array of 3D points
// faces: array of triangle indices (each group of 3 indices forms a triangle)
// options: optional parameters (can be nil for basic surface)
func NewSurfaceFromMesh(id string, vertices []core.Vec3, faces []int, options *SurfaceOptions) (*Surface, error) {
	if len(faces)%3 != 0 {
		return nil, fmt.Errorf("surface %q: face indices must be a multiple of 3, got %d", id, len(faces))
	}

	numTriangles := len(faces) / 3

	// Validate options if provided
	if options != nil && options.Normals != nil && len(options.Normals) != numTriangles {
		return nil, fmt.Errorf("surface %q: number of normals (%d) must match number of triangles (%d)",
			id, len(options.Normals), numTriangles)
	}

	triangles := make([]Triangle, numTriangles)
	for i := 0; i < numTriangles; i++ {
		i0 := faces[i*3]
		i1 := faces[i*3+1]
		i2 := faces[i*3+2]

		// Bounds check
		if i0 >= len(vertices) || i1 >= len(vertices) || i2 >= len(vertices) ||
			i0 < 0 || i1 < 0 || i2 < 0 {
			return nil, fmt.Errorf("surface %q: face index out of bounds in triangle %d", id, i)
		}

		// Create triangle with or without custom normal
		if options != nil && options.Normals != nil {
			triangles[i] = NewTriangleWithNormal(vertices[i0], vertices[i1], vertices[i2], options.Normals[i])
		} else {
			triangles[i] = NewTriangle(vertices[i0], vertices[i1], vertices[i2])
		}
	}

	transform := core.Mat4Identity()
	if options != nil && options.Transform != nil {
		transform = *options.Transform
	}

	return NewSurface(id, triangles, transform), nil
}

// NewSurfaceFromPolygons fan-triangulates polygon faces and creates a surface
func NewSurfaceFromPolygons(id string, vertices []core.Vec3, polygons [][]int, transform core.Mat4) (*Surface, error) {
	faces, err := TriangulateFaces(polygons, len(vertices))
	if err != nil {
		return nil, fmt.Errorf("surface %q: %w", id, err)
	}
	return NewSurfaceFromMesh(id, vertices, faces, &SurfaceOptions{Transform: &transform})
}

// NewQuadSurface creates a two-triangle rectangle from a corner and two edge vectors.
// The normal follows u x v.
func NewQuadSurface(id string, corner, u, v core.Vec3, transform core.Mat4) *Surface {
	p0 := corner
	p1 := corner.Add(u)
	p2 := corner.Add(u).Add(v)
	p3 := corner.Add(v)
	return NewSurface(id, []Triangle{
		NewTriangle(p0, p1, p2),
		NewTriangle(p0, p2, p3),
	}, transform)
}

// TotalArea returns the summed local-space triangle area
func (s *Surface) TotalArea() float64 {
	return s.totalArea
}

// TriangleCount returns the number of triangles in this surface
func (s *Surface) TriangleCount() int {
	return len(s.triangles)
}

// Triangle returns the triangle at index i
func (s *Surface) Triangle(i int) Triangle {
	return s.triangles[i]
}

// BoundingBox returns the local-space bounds of the surface
func (s *Surface) BoundingBox() core.AABB {
	return s.bbox
}

// WorldBoundingBox returns the bounds of the transformed vertices
func (s *Surface) WorldBoundingBox() core.AABB {
	if len(s.triangles) == 0 || s.Transform == core.Mat4Identity() {
		return s.BoundingBox()
	}
	var points []core.Vec3
	for _, tri := range s.triangles {
		points = append(points,
			s.Transform.TransformPoint(tri.V0),
			s.Transform.TransformPoint(tri.V1),
			s.Transform.TransformPoint(tri.V2))
	}
	return core.NewAABBFromPoints(points...)
}

// SampleTriangle selects a triangle with probability proportional to its area.
// u in [0, 1) is scaled to [0, totalArea); the triangle whose cumulative interval
// [cumulative[i-1], cumulative[i]) contains the draw is returned, so zero-area
// triangles are never selected. Returns -1 for surfaces without area.
func (s *Surface) SampleTriangle(u float64) int {
	if s.totalArea <= 0 {
		return -1
	}

	target := u * s.totalArea
	i := sort.Search(len(s.cumulative), func(i int) bool {
		return s.cumulative[i] > target
	})

	// Fallback to last triangle with area (guards float edge at the top of the table)
	if i >= len(s.cumulative) {
		return s.lastPositive
	}
	return i
}
