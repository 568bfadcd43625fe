package math3d

import "math"

// Mat3 is a 3x3 rotation/basis matrix in column-major order. Each column is a
// basis vector, so an object axis is {right, up, back}.
type Mat3 [9]float64

// Identity3 returns the identity basis.
func Identity3() Mat3 {
	return Mat3{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

// Mat3FromCols builds a basis from three column vectors.
func Mat3FromCols(x, y, z Vec3) Mat3 {
	return Mat3{
		x.X, x.Y, x.Z,
		y.X, y.Y, y.Z,
		z.X, z.Y, z.Z,
	}
}

// Mat3RotateY returns a rotation around the Y axis.
func Mat3RotateY(angle float64) Mat3 {
	c, s := math.Cos(angle), math.Sin(angle)
	return Mat3{
		c, 0, -s,
		0, 1, 0,
		s, 0, c,
	}
}

// Col returns column i.
func (m Mat3) Col(i int) Vec3 {
	return Vec3{m[i*3], m[i*3+1], m[i*3+2]}
}

// MulVec3 returns m * v (local to world direction).
func (m Mat3) MulVec3(v Vec3) Vec3 {
	return Vec3{
		m[0]*v.X + m[3]*v.Y + m[6]*v.Z,
		m[1]*v.X + m[4]*v.Y + m[7]*v.Z,
		m[2]*v.X + m[5]*v.Y + m[8]*v.Z,
	}
}

// TransposeMulVec3 returns transpose(m) * v, projecting v onto each basis
// column (world to local direction).
func (m Mat3) TransposeMulVec3(v Vec3) Vec3 {
	return Vec3{
		m.Col(0).Dot(v),
		m.Col(1).Dot(v),
		m.Col(2).Dot(v),
	}
}

// Mat4 expands the basis into an affine transform with the given origin.
func (m Mat3) Mat4(origin Vec3) Mat4 {
	return Mat4{
		m[0], m[1], m[2], 0,
		m[3], m[4], m[5], 0,
		m[6], m[7], m[8], 0,
		origin.X, origin.Y, origin.Z, 1,
	}
}

// Transpose returns the transposed basis. For a rotation it is the inverse.
func (m Mat3) Transpose() Mat3 {
	return Mat3{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	}
}
