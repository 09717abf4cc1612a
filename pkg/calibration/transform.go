package calibration

import "math"

// RotationFromEuler builds a rotation matrix from XYZ Euler angles in
// radians, applied as R = Rz * Ry * Rx.
func RotationFromEuler(e Vec3) Mat3 {
	sx, cx := math.Sincos(e[0])
	sy, cy := math.Sincos(e[1])
	sz, cz := math.Sincos(e[2])

	return Mat3{
		{cz * cy, cz*sy*sx - sz*cx, cz*sy*cx + sz*sx},
		{sz * cy, sz*sy*sx + cz*cx, sz*sy*cx - cz*sx},
		{-sy, cy * sx, cy * cx},
	}
}

// Homogeneous assembles a 4x4 transform from a rotation and a
// translation. The last row is always [0 0 0 1].
func Homogeneous(r Mat3, t Vec3) Mat4 {
	var m Mat4
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] = r[i][j]
		}
		m[i][3] = t[i]
	}
	m[3] = [4]float64{0, 0, 0, 1}
	return m
}

// Degrees converts each component from radians to degrees.
func (v Vec3) Degrees() Vec3 {
	return Vec3{v[0] * 180 / math.Pi, v[1] * 180 / math.Pi, v[2] * 180 / math.Pi}
}

// Radians converts each component from degrees to radians.
func (v Vec3) Radians() Vec3 {
	return Vec3{v[0] * math.Pi / 180, v[1] * math.Pi / 180, v[2] * math.Pi / 180}
}
