package geometry

import "fmt"

// TriangulateFan splits a convex or star-shaped polygon into a triangle fan around its first vertex.
// Faces with fewer than three indices produce no triangles.
func TriangulateFan(face []int) [][3]int {
	if len(face) < 3 {
		return nil
	}
	triangles := make([][3]int, 0, len(face)-2)
	for i := 1; i+1 < len(face); i++ {
		triangles = append(triangles, [3]int{face[0], face[i], face[i+1]})
	}
	return triangles
}

// TriangulateFaces fan-triangulates every polygon and returns a flat index list (3 per triangle).
// Every index is bounds-checked against vertexCount.
func TriangulateFaces(faces [][]int, vertexCount int) ([]int, error) {
	var flat []int
	for fi, face := range faces {
		for _, idx := range face {
			if idx < 0 || idx >= vertexCount {
				return nil, fmt.Errorf("face %d: vertex index %d out of range [0,%d)", fi, idx, vertexCount)
			}
		}
		for _, tri := range TriangulateFan(face) {
			flat = append(flat, tri[0], tri[1], tri[2])
		}
	}
	return flat, nil
}
