package core

import (
	"math"
	"testing"
)

func TestQuatFromTo(t *testing.T) {
	tests := []struct {
		name     string
		from, to Vec3
	}{
		{"identity", NewVec3(0, 0, 1), NewVec3(0, 0, 1)},
		{"up to +X", NewVec3(0, 0, 1), NewVec3(1, 0, 0)},
		{"up to +Y", NewVec3(0, 0, 1), NewVec3(0, 1, 0)},
		{"up to diagonal", NewVec3(0, 0, 1), NewVec3(1, 1, 1).Normalize()},
		{"opposite", NewVec3(0, 0, 1), NewVec3(0, 0, -1)},
		{"opposite along X", NewVec3(1, 0, 0), NewVec3(-1, 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := QuatFromTo(tt.from, tt.to)

			if math.Abs(q.Length()-1) > 1e-12 {
				t.Errorf("Expected unit quaternion, got length %f", q.Length())
			}

			got := q.Rotate(tt.from)
			const tolerance = 1e-9
			if got.Subtract(tt.to).Length() > tolerance {
				t.Errorf("Expected %v, got %v", tt.to, got)
			}
		})
	}
}

func TestQuatFromAxisAngle(t *testing.T) {
	q := QuatFromAxisAngle(NewVec3(0, 0, 2), math.Pi/2)
	got := q.Rotate(NewVec3(1, 0, 0))
	if got.Subtract(NewVec3(0, 1, 0)).Length() > 1e-9 {
		t.Errorf("Expected +Y, got %v", got)
	}

	if id := QuatFromAxisAngle(Vec3{}, 1.0); id != QuatIdentity() {
		t.Errorf("Zero axis should give identity, got %+v", id)
	}
}

func TestQuat_MultiplyOrder(t *testing.T) {
	// Align +Z to +X, then spin 90 degrees about the new normal (+X)
	align := QuatFromTo(NewVec3(0, 0, 1), NewVec3(1, 0, 0))
	spin := QuatFromAxisAngle(NewVec3(1, 0, 0), math.Pi/2)
	combined := spin.Multiply(align)

	// The up axis must still land on the normal: spinning about it leaves it fixed
	if got := combined.Rotate(NewVec3(0, 0, 1)); got.Subtract(NewVec3(1, 0, 0)).Length() > 1e-9 {
		t.Errorf("Expected up to map to +X, got %v", got)
	}

	// Composition must equal applying align then spin
	v := NewVec3(0.3, -0.7, 0.2)
	expected := spin.Rotate(align.Rotate(v))
	if got := combined.Rotate(v); got.Subtract(expected).Length() > 1e-9 {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestQuat_Euler(t *testing.T) {
	tests := []struct {
		name  string
		q     Quat
		euler Vec3
	}{
		{"identity", QuatIdentity(), NewVec3(0, 0, 0)},
		{"x 90", QuatFromAxisAngle(NewVec3(1, 0, 0), math.Pi/2), NewVec3(math.Pi/2, 0, 0)},
		{"y 45", QuatFromAxisAngle(NewVec3(0, 1, 0), math.Pi/4), NewVec3(0, math.Pi/4, 0)},
		{"z -30", QuatFromAxisAngle(NewVec3(0, 0, 1), -math.Pi/6), NewVec3(0, 0, -math.Pi/6)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.q.Euler()
			if got.Subtract(tt.euler).Length() > 1e-9 {
				t.Errorf("Expected %v, got %v", tt.euler, got)
			}
		})
	}
}
