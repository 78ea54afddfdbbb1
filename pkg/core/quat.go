package core

import "math"

// Quat is a rotation quaternion with scalar part W
type Quat struct {
	W, X, Y, Z float64
}

// QuatIdentity returns the identity rotation
func QuatIdentity() Quat {
	return Quat{W: 1}
}

// QuatFromAxisAngle builds the rotation of angle radians around axis
// The axis does not need to be normalized; a zero axis gives the identity
func QuatFromAxisAngle(axis Vec3, angle float64) Quat {
	axis = axis.Normalize()
	if axis.IsZero() {
		return QuatIdentity()
	}
	half := angle / 2
	s := math.Sin(half)
	return Quat{W: math.Cos(half), X: axis.X * s, Y: axis.Y * s, Z: axis.Z * s}
}

// QuatFromTo returns the shortest-arc rotation taking unit vector from onto unit vector to
func QuatFromTo(from, to Vec3) Quat {
	from = from.Normalize()
	to = to.Normalize()
	d := from.Dot(to)

	if d >= 1.0-1e-12 {
		return QuatIdentity()
	}

	if d <= -1.0+1e-12 {
		// Opposite vectors: rotate 180 degrees around any axis perpendicular to from
		axis := NewVec3(1, 0, 0).Cross(from)
		if axis.LengthSquared() < 1e-12 {
			axis = NewVec3(0, 1, 0).Cross(from)
		}
		return QuatFromAxisAngle(axis, math.Pi)
	}

	c := from.Cross(to)
	q := Quat{W: 1 + d, X: c.X, Y: c.Y, Z: c.Z}
	return q.Normalize()
}

// Multiply returns q*r, the rotation that applies r first and then q
func (q Quat) Multiply(r Quat) Quat {
	return Quat{
		W: q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
		X: q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		Y: q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		Z: q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
	}
}

// Length returns the quaternion norm
func (q Quat) Length() float64 {
	return math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
}

// Normalize returns a unit quaternion
func (q Quat) Normalize() Quat {
	l := q.Length()
	if l == 0 {
		return QuatIdentity()
	}
	return Quat{q.W / l, q.X / l, q.Y / l, q.Z / l}
}

// Rotate applies the rotation to a vector
func (q Quat) Rotate(v Vec3) Vec3 {
	u := NewVec3(q.X, q.Y, q.Z)
	t := u.Cross(v).Multiply(2)
	return v.Add(t.Multiply(q.W)).Add(u.Cross(t))
}

// Euler returns XYZ Euler angles in radians (rotation applied X, then Y, then Z)
func (q Quat) Euler() Vec3 {
	sinrCosp := 2 * (q.W*q.X + q.Y*q.Z)
	cosrCosp := 1 - 2*(q.X*q.X+q.Y*q.Y)
	x := math.Atan2(sinrCosp, cosrCosp)

	sinp := 2 * (q.W*q.Y - q.Z*q.X)
	var y float64
	if math.Abs(sinp) >= 1 {
		y = math.Copysign(math.Pi/2, sinp)
	} else {
		y = math.Asin(sinp)
	}

	sinyCosp := 2 * (q.W*q.Z + q.X*q.Y)
	cosyCosp := 1 - 2*(q.Y*q.Y+q.Z*q.Z)
	z := math.Atan2(sinyCosp, cosyCosp)

	return NewVec3(x, y, z)
}

// Array returns the quaternion in glTF order (x, y, z, w)
func (q Quat) Array() [4]float64 {
	return [4]float64{q.X, q.Y, q.Z, q.W}
}

// QuatFromArray converts glTF order (x, y, z, w) into a Quat
func QuatFromArray(a [4]float64) Quat {
	return Quat{W: a[3], X: a[0], Y: a[1], Z: a[2]}
}
