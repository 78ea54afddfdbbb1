package scene

import (
	"fmt"
	"math"

	"github.com/df07/go-surface-scatter/pkg/core"
	"github.com/df07/go-surface-scatter/pkg/geometry"
)

// NewTerrainSurface creates a rolling heightfield centered on the origin in the XY plane.
// Heights follow amplitude * sin(x) * cos(y) over one period per side, so the
// surface is deterministic and has unevenly sized triangles.
func NewTerrainSurface(id string, size [2]float64, resolution int, amplitude float64, transform core.Mat4) (*geometry.Surface, error) {
	if resolution <= 0 {
		resolution = 16
	}
	if !(size[0] > 0 && size[1] > 0) {
		return nil, fmt.Errorf("terrain %q: size must be positive, got %v", id, size)
	}

	stride := resolution + 1
	vertices := make([]core.Vec3, 0, stride*stride)
	for j := 0; j <= resolution; j++ {
		for i := 0; i <= resolution; i++ {
			u := float64(i) / float64(resolution)
			v := float64(j) / float64(resolution)
			height := amplitude * math.Sin(2*math.Pi*u) * math.Cos(2*math.Pi*v)
			vertices = append(vertices, core.NewVec3((u-0.5)*size[0], (v-0.5)*size[1], height))
		}
	}

	// Two counter-clockwise triangles per cell, so normals face +Z
	faces := make([]int, 0, resolution*resolution*6)
	for j := 0; j < resolution; j++ {
		for i := 0; i < resolution; i++ {
			a := j*stride + i
			b := a + 1
			c := a + stride + 1
			d := a + stride
			faces = append(faces, a, b, c, a, c, d)
		}
	}

	return geometry.NewSurfaceFromMesh(id, vertices, faces, &geometry.SurfaceOptions{Transform: &transform})
}
