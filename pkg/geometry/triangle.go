package geometry

import (
	"github.com/df07/go-surface-scatter/pkg/core"
)

// Triangle represents a single triangle defined by three vertices
type Triangle struct {
	V0, V1, V2 core.Vec3 // The three vertices
	normal     core.Vec3 // Cached unit normal (zero for degenerate triangles)
	area       float64   // Cached area
	bbox       core.AABB // Cached bounding box
}

// NewTriangle creates a new triangle from three vertices
func NewTriangle(v0, v1, v2 core.Vec3) Triangle {
	t := Triangle{
		V0: v0,
		V1: v1,
		V2: v2,
	}

	// Precompute normal, area and bounding box
	cross := t.edgeCross()
	t.normal = cross.Normalize()
	t.area = 0.5 * cross.Length()
	t.bbox = core.NewAABBFromPoints(v0, v1, v2)

	return t
}

// NewTriangleWithNormal creates a new triangle from three vertices with a custom normal
func NewTriangleWithNormal(v0, v1, v2 core.Vec3, normal core.Vec3) Triangle {
	t := NewTriangle(v0, v1, v2)
	t.normal = normal.Normalize() // Ensure the normal is normalized
	return t
}

// edgeCross returns (V1-V0) x (V2-V0), whose length is twice the area
func (t Triangle) edgeCross() core.Vec3 {
	edge1 := t.V1.Subtract(t.V0)
	edge2 := t.V2.Subtract(t.V0)
	return edge1.Cross(edge2)
}

// Normal returns the triangle's unit normal
func (t Triangle) Normal() core.Vec3 {
	return t.normal
}

// Area returns the triangle's area
func (t Triangle) Area() float64 {
	return t.area
}

// Centroid returns the average of the three vertices
func (t Triangle) Centroid() core.Vec3 {
	return t.V0.Add(t.V1).Add(t.V2).Multiply(1.0 / 3.0)
}

// PointAt returns the barycentric combination b0*V0 + b1*V1 + b2*V2
func (t Triangle) PointAt(b0, b1, b2 float64) core.Vec3 {
	return t.V0.Multiply(b0).Add(t.V1.Multiply(b1)).Add(t.V2.Multiply(b2))
}

// BoundingBox returns the axis-aligned bounding box for this triangle
func (t Triangle) BoundingBox() core.AABB {
	return t.bbox
}

// Transform returns the triangle mapped through m; the normal is carried by the rotational part only
func (t Triangle) Transform(m core.Mat4) Triangle {
	out := NewTriangle(m.TransformPoint(t.V0), m.TransformPoint(t.V1), m.TransformPoint(t.V2))
	out.normal = m.TransformNormal(t.normal)
	return out
}
