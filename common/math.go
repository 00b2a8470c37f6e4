package common

import (
	"math"
	"unsafe"
)

// Identity resets a 4x4 matrix (flat slice) to the identity matrix.
// The matrix is stored in column-major order.
//
// Parameters:
//   - m: destination slice (must be at least 16 elements)
func Identity(m []float32) {
	for i := range m {
		m[i] = 0
	}
	m[0], m[5], m[10], m[15] = 1, 1, 1, 1
}

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// Mul4 multiplies two 4x4 matrices and stores the result in out.
// All matrices are stored in column-major order (OpenGL/WebGPU convention).
// Result: out = a * b
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - a: left-hand matrix (16 elements)
//   - b: right-hand matrix (16 elements)
func Mul4(out, a, b []float32) {
	var buf [16]float32
	for i := 0; i < 4; i++ { // column of B
		for j := 0; j < 4; j++ { // row of A
			sum := float32(0)
			for k := 0; k < 4; k++ {
				sum += a[k*4+j] * b[i*4+k]
			}
			buf[i*4+j] = sum
		}
	}
	copy(out, buf[:])
}

// MulVec4 multiplies a column-major 4x4 matrix by a column vector.
//
// Parameters:
//   - m: the matrix (16 elements, column-major)
//   - v: the vector to transform
//
// Returns:
//   - [4]float32: m * v
func MulVec4(m []float32, v [4]float32) [4]float32 {
	return [4]float32{
		m[0]*v[0] + m[4]*v[1] + m[8]*v[2] + m[12]*v[3],
		m[1]*v[0] + m[5]*v[1] + m[9]*v[2] + m[13]*v[3],
		m[2]*v[0] + m[6]*v[1] + m[10]*v[2] + m[14]*v[3],
		m[3]*v[0] + m[7]*v[1] + m[11]*v[2] + m[15]*v[3],
	}
}

// TransformPoint transforms a 3D point (w = 1) by a column-major matrix, ignoring the
// resulting w component. Use MulVec4 for projective transforms.
func TransformPoint(m []float32, p [3]float32) [3]float32 {
	r := MulVec4(m, [4]float32{p[0], p[1], p[2], 1})
	return [3]float32{r[0], r[1], r[2]}
}

// TransformDirection transforms a 3D direction (w = 0) by a column-major matrix.
func TransformDirection(m []float32, d [3]float32) [3]float32 {
	r := MulVec4(m, [4]float32{d[0], d[1], d[2], 0})
	return [3]float32{r[0], r[1], r[2]}
}

// Perspective creates a right-handed perspective projection matrix for WebGPU clip space [0, 1].
// near maps to depth 0 and far maps to depth 1. Passing the planes swapped (far, near)
// produces a complementary depth projection where the near plane maps to 1 and the far plane to 0.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: distance mapped to depth 0 (must be > 0)
//   - far: distance mapped to depth 1 (must be > 0 and != near)
func Perspective(out []float32, fovY, aspect, near, far float32) {
	f := 1.0 / float32(math.Tan(float64(fovY)/2.0))
	Identity(out)

	out[0] = f / aspect
	out[5] = f
	out[10] = far / (near - far)
	out[11] = -1.0
	out[14] = (near * far) / (near - far)
	out[15] = 0.0
}

// BuildWorldMatrix constructs a uniform scale followed by a translation, matching the
// scene-level world transform applied to every mesh.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - scale: uniform scale factor
//   - translation: world space translation applied after scaling
func BuildWorldMatrix(out []float32, scale float32, translation [3]float32) {
	Identity(out)
	out[0], out[5], out[10] = scale, scale, scale
	out[12], out[13], out[14] = translation[0], translation[1], translation[2]
}

// Invert4 computes the inverse of a 4x4 column-major matrix using the Laplace
// expansion (cofactor) method. If the matrix is singular (determinant ≈ 0) the
// output is left unchanged and the function returns false.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - m: source matrix (16 elements, column-major)
//
// Returns:
//   - bool: true if the matrix was successfully inverted, false if singular
func Invert4(out, m []float32) bool {
	s0 := m[0]*m[5] - m[4]*m[1]
	s1 := m[0]*m[6] - m[4]*m[2]
	s2 := m[0]*m[7] - m[4]*m[3]
	s3 := m[1]*m[6] - m[5]*m[2]
	s4 := m[1]*m[7] - m[5]*m[3]
	s5 := m[2]*m[7] - m[6]*m[3]

	c5 := m[10]*m[15] - m[14]*m[11]
	c4 := m[9]*m[15] - m[13]*m[11]
	c3 := m[9]*m[14] - m[13]*m[10]
	c2 := m[8]*m[15] - m[12]*m[11]
	c1 := m[8]*m[14] - m[12]*m[10]
	c0 := m[8]*m[13] - m[12]*m[9]

	det := s0*c5 - s1*c4 + s2*c3 + s3*c2 - s4*c1 + s5*c0
	if det == 0 {
		return false
	}

	invDet := 1.0 / det
	var r [16]float32

	r[0] = (m[5]*c5 - m[6]*c4 + m[7]*c3) * invDet
	r[1] = (-m[1]*c5 + m[2]*c4 - m[3]*c3) * invDet
	r[2] = (m[13]*s5 - m[14]*s4 + m[15]*s3) * invDet
	r[3] = (-m[9]*s5 + m[10]*s4 - m[11]*s3) * invDet

	r[4] = (-m[4]*c5 + m[6]*c2 - m[7]*c1) * invDet
	r[5] = (m[0]*c5 - m[2]*c2 + m[3]*c1) * invDet
	r[6] = (-m[12]*s5 + m[14]*s2 - m[15]*s1) * invDet
	r[7] = (m[8]*s5 - m[10]*s2 + m[11]*s1) * invDet

	r[8] = (m[4]*c4 - m[5]*c2 + m[7]*c0) * invDet
	r[9] = (-m[0]*c4 + m[1]*c2 - m[3]*c0) * invDet
	r[10] = (m[12]*s4 - m[13]*s2 + m[15]*s0) * invDet
	r[11] = (-m[8]*s4 + m[9]*s2 - m[11]*s0) * invDet

	r[12] = (-m[4]*c3 + m[5]*c1 - m[6]*c0) * invDet
	r[13] = (m[0]*c3 - m[1]*c1 + m[2]*c0) * invDet
	r[14] = (-m[12]*s3 + m[13]*s1 - m[14]*s0) * invDet
	r[15] = (m[8]*s3 - m[9]*s1 + m[10]*s0) * invDet

	copy(out, r[:])
	return true
}

// LookAt creates a view matrix that positions and orients the camera.
// The resulting matrix transforms world coordinates to view/camera space,
// where the camera looks down -Z.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - eye: camera position in world space
//   - center: target point the camera looks at
//   - up: up vector defining camera orientation (typically 0,1,0)
func LookAt(out []float32, eye, center, up [3]float32) {
	z := Normalize3(Sub3(eye, center))
	x := Normalize3(Cross3(up, z))
	y := Cross3(z, x)

	out[0], out[4], out[8], out[12] = x[0], x[1], x[2], -Dot3(x, eye)
	out[1], out[5], out[9], out[13] = y[0], y[1], y[2], -Dot3(y, eye)
	out[2], out[6], out[10], out[14] = z[0], z[1], z[2], -Dot3(z, eye)
	out[3], out[7], out[11], out[15] = 0, 0, 0, 1
}

// Dot3 returns the dot product of two 3D vectors.
func Dot3(a, b [3]float32) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// Sub3 returns a - b.
func Sub3(a, b [3]float32) [3]float32 {
	return [3]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

// Cross3 returns the cross product a x b.
func Cross3(a, b [3]float32) [3]float32 {
	return [3]float32{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// Length3 returns the Euclidean length of a 3D vector.
func Length3(v [3]float32) float32 {
	return float32(math.Sqrt(float64(Dot3(v, v))))
}

// Normalize3 returns v scaled to unit length. A zero vector is returned unchanged.
func Normalize3(v [3]float32) [3]float32 {
	l := Length3(v)
	if l == 0 {
		return v
	}
	inv := 1 / l
	return [3]float32{v[0] * inv, v[1] * inv, v[2] * inv}
}
