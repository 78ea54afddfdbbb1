package core

import "math"

// Mat4 is a row-major 4x4 affine transform; element (r, c) lives at index r*4+c
type Mat4 [16]float64

// Mat4Identity returns the identity transform
func Mat4Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Mat4Translate returns a pure translation
func Mat4Translate(t Vec3) Mat4 {
	m := Mat4Identity()
	m[3], m[7], m[11] = t.X, t.Y, t.Z
	return m
}

// Mat4FromTRS composes translation * rotation * scale, the order glTF nodes use
func Mat4FromTRS(t Vec3, r Quat, s Vec3) Mat4 {
	r = r.Normalize()
	xx, yy, zz := r.X*r.X, r.Y*r.Y, r.Z*r.Z
	xy, xz, yz := r.X*r.Y, r.X*r.Z, r.Y*r.Z
	wx, wy, wz := r.W*r.X, r.W*r.Y, r.W*r.Z

	return Mat4{
		(1 - 2*(yy+zz)) * s.X, 2 * (xy - wz) * s.Y, 2 * (xz + wy) * s.Z, t.X,
		2 * (xy + wz) * s.X, (1 - 2*(xx+zz)) * s.Y, 2 * (yz - wx) * s.Z, t.Y,
		2 * (xz - wy) * s.X, 2 * (yz + wx) * s.Y, (1 - 2*(xx+yy)) * s.Z, t.Z,
		0, 0, 0, 1,
	}
}

// Mat4FromColumnMajor converts a column-major matrix (glTF node.matrix layout)
func Mat4FromColumnMajor(c [16]float64) Mat4 {
	var m Mat4
	for r := 0; r < 4; r++ {
		for col := 0; col < 4; col++ {
			m[r*4+col] = c[col*4+r]
		}
	}
	return m
}

// ColumnMajor returns the matrix in column-major order
func (m Mat4) ColumnMajor() [16]float64 {
	var c [16]float64
	for r := 0; r < 4; r++ {
		for col := 0; col < 4; col++ {
			c[col*4+r] = m[r*4+col]
		}
	}
	return c
}

// Multiply returns m*o, the transform that applies o first and then m
func (m Mat4) Multiply(o Mat4) Mat4 {
	var out Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += m[r*4+k] * o[k*4+c]
			}
			out[r*4+c] = sum
		}
	}
	return out
}

// TransformPoint applies the full affine transform to a point
func (m Mat4) TransformPoint(p Vec3) Vec3 {
	return Vec3{
		X: m[0]*p.X + m[1]*p.Y + m[2]*p.Z + m[3],
		Y: m[4]*p.X + m[5]*p.Y + m[6]*p.Z + m[7],
		Z: m[8]*p.X + m[9]*p.Y + m[10]*p.Z + m[11],
	}
}

// TransformNormal rotates a normal by the rotational part of the transform and re-normalizes it.
// Scale and shear are discarded, matching how surface normals are carried into world space.
func (m Mat4) TransformNormal(n Vec3) Vec3 {
	return m.Rotation().Rotate(n).Normalize()
}

// Translation returns the translation column
func (m Mat4) Translation() Vec3 {
	return NewVec3(m[3], m[7], m[11])
}

// Rotation extracts the rotation of the transform by normalizing the basis columns.
// Mirrored transforms (negative determinant) have their X column flipped first.
func (m Mat4) Rotation() Quat {
	c0 := NewVec3(m[0], m[4], m[8]).Normalize()
	c1 := NewVec3(m[1], m[5], m[9]).Normalize()
	c2 := NewVec3(m[2], m[6], m[10]).Normalize()
	if c0.Cross(c1).Dot(c2) < 0 {
		c0 = c0.Negate()
	}

	m00, m01, m02 := c0.X, c1.X, c2.X
	m10, m11, m12 := c0.Y, c1.Y, c2.Y
	m20, m21, m22 := c0.Z, c1.Z, c2.Z

	trace := m00 + m11 + m22
	var q Quat
	switch {
	case trace > 0:
		s := math.Sqrt(trace+1.0) * 2
		q = Quat{W: 0.25 * s, X: (m21 - m12) / s, Y: (m02 - m20) / s, Z: (m10 - m01) / s}
	case m00 > m11 && m00 > m22:
		s := math.Sqrt(1.0+m00-m11-m22) * 2
		q = Quat{W: (m21 - m12) / s, X: 0.25 * s, Y: (m01 + m10) / s, Z: (m02 + m20) / s}
	case m11 > m22:
		s := math.Sqrt(1.0+m11-m00-m22) * 2
		q = Quat{W: (m02 - m20) / s, X: (m01 + m10) / s, Y: 0.25 * s, Z: (m12 + m21) / s}
	default:
		s := math.Sqrt(1.0+m22-m00-m11) * 2
		q = Quat{W: (m10 - m01) / s, X: (m02 + m20) / s, Y: (m12 + m21) / s, Z: 0.25 * s}
	}
	return q.Normalize()
}
