package drawlist

import "math"

// Mat4 is a 4x4 float32 matrix in column-major order, the layout WGSL
// expects for mat4x4<f32>.
type Mat4 [16]float32

// Mat3 is a 3x3 float32 matrix in column-major order.
type Mat3 [9]float32

// Identity4 returns the 4x4 identity matrix.
func Identity4() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Identity3 returns the 3x3 identity matrix.
func Identity3() Mat3 {
	return Mat3{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

// At returns the element at row r, column c.
func (m Mat4) At(r, c int) float32 { return m[c*4+r] }

// Translate4 creates a translation matrix.
func Translate4(x, y, z float32) Mat4 {
	m := Identity4()
	m[12], m[13], m[14] = x, y, z
	return m
}

// Scale4 creates a scaling matrix.
func Scale4(x, y, z float32) Mat4 {
	m := Identity4()
	m[0], m[5], m[10] = x, y, z
	return m
}

// RotateX4 creates a rotation about the X axis (angle in radians).
func RotateX4(angle float32) Mat4 {
	s, c := math.Sincos(float64(angle))
	m := Identity4()
	m[5], m[6] = float32(c), float32(s)
	m[9], m[10] = float32(-s), float32(c)
	return m
}

// RotateY4 creates a rotation about the Y axis (angle in radians).
func RotateY4(angle float32) Mat4 {
	s, c := math.Sincos(float64(angle))
	m := Identity4()
	m[0], m[2] = float32(c), float32(-s)
	m[8], m[10] = float32(s), float32(c)
	return m
}

// RotateZ4 creates a rotation about the Z axis (angle in radians).
func RotateZ4(angle float32) Mat4 {
	s, c := math.Sincos(float64(angle))
	m := Identity4()
	m[0], m[1] = float32(c), float32(s)
	m[4], m[5] = float32(-s), float32(c)
	return m
}

// Mul returns m * n.
func (m Mat4) Mul(n Mat4) Mat4 {
	var out Mat4
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[k*4+r] * n[c*4+k]
			}
			out[c*4+r] = sum
		}
	}
	return out
}

// Transform applies m to the point (x, y, z, 1) and returns the projected
// x, y, z.
func (m Mat4) Transform(x, y, z float32) (float32, float32, float32) {
	tx := m[0]*x + m[4]*y + m[8]*z + m[12]
	ty := m[1]*x + m[5]*y + m[9]*z + m[13]
	tz := m[2]*x + m[6]*y + m[10]*z + m[14]
	tw := m[3]*x + m[7]*y + m[11]*z + m[15]
	if tw != 0 && tw != 1 {
		return tx / tw, ty / tw, tz / tw
	}
	return tx, ty, tz
}

// Ortho creates an orthographic projection mapping the given box to clip
// space with a 0..1 depth range.
func Ortho(left, right, bottom, top, near, far float32) Mat4 {
	m := Identity4()
	m[0] = 2 / (right - left)
	m[5] = 2 / (top - bottom)
	m[10] = 1 / (near - far)
	m[12] = -(right + left) / (right - left)
	m[13] = -(top + bottom) / (top - bottom)
	m[14] = near / (near - far)
	return m
}

// ScreenOrtho creates a pixel-space projection with the origin at the top
// left, as used for 2D drawing.
func ScreenOrtho(width, height float32) Mat4 {
	return Ortho(0, width, height, 0, -1, 1)
}

// Perspective creates a right-handed perspective projection with a 0..1
// depth range. fovY is in radians.
func Perspective(fovY, aspect, near, far float32) Mat4 {
	f := float32(1 / math.Tan(float64(fovY)/2))
	var m Mat4
	m[0] = f / aspect
	m[5] = f
	m[10] = far / (near - far)
	m[11] = -1
	m[14] = near * far / (near - far)
	return m
}

// Upper3 returns the upper-left 3x3 block of m.
func (m Mat4) Upper3() Mat3 {
	return Mat3{
		m[0], m[1], m[2],
		m[4], m[5], m[6],
		m[8], m[9], m[10],
	}
}

// NormalMatrix returns the inverse transpose of the upper 3x3 of m.
// A singular matrix yields the identity.
func NormalMatrix(m Mat4) Mat3 {
	a := m.Upper3()
	// Cofactors of a (column-major), which form the inverse transpose
	// once divided by the determinant.
	c00 := a[4]*a[8] - a[7]*a[5]
	c01 := a[7]*a[2] - a[1]*a[8]
	c02 := a[1]*a[5] - a[4]*a[2]
	det := a[0]*c00 + a[3]*c01 + a[6]*c02
	if det == 0 {
		return Identity3()
	}
	inv := 1 / det
	return Mat3{
		c00 * inv,
		(a[6]*a[5] - a[3]*a[8]) * inv,
		(a[3]*a[7] - a[6]*a[4]) * inv,
		c01 * inv,
		(a[0]*a[8] - a[6]*a[2]) * inv,
		(a[6]*a[1] - a[0]*a[7]) * inv,
		c02 * inv,
		(a[3]*a[2] - a[0]*a[5]) * inv,
		(a[0]*a[4] - a[3]*a[1]) * inv,
	}
}
