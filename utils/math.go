package utils

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// result in radians
func QuatToEuler(q mgl32.Quat) (e mgl32.Vec3) {
	sinr_cosp := float64(2 * (q.W*q.X() + q.Y()*q.Z()))
	cosr_cosp := float64(1 - 2*(q.X()*q.X()+q.Y()*q.Y()))

	e[0] = float32(math.Atan2(sinr_cosp, cosr_cosp))

	sinp := float64(2 * (q.W*q.Y() - q.Z()*q.X()))
	if math.Abs(sinp) >= 1 {
		e[1] = math.Pi / 2
		if sinp < 0 {
			e[1] *= -1
		}
	} else {
		e[1] = float32(math.Asin(sinp))
	}

	siny_cosp := float64(2 * (q.W*q.Z() + q.X()*q.Y()))
	cosy_cosp := float64(1 - 2*(q.Y()*q.Y()+q.Z()*q.Z()))
	e[2] = float32(math.Atan2(siny_cosp, cosy_cosp))

	return e
}

func RadiansToDegreeV3(v mgl32.Vec3) mgl32.Vec3 {
	return v.Mul(180.0 / math.Pi)
}

// QuatFromXYZ rebuilds a unit quaternion stored without its real part.
// The positive root is taken and a negative radicand is clamped to zero.
func QuatFromXYZ(v mgl32.Vec3) mgl32.Quat {
	t := 1.0 - v[0]*v[0] - v[1]*v[1] - v[2]*v[2]
	if t < 0 {
		t = 0
	}
	return mgl32.Quat{W: float32(math.Sqrt(float64(t))), V: v}
}

// MatrixFrom is rotation by q followed by translation by t (T * R)
func MatrixFrom(q mgl32.Quat, t mgl32.Vec3) mgl32.Mat4 {
	m := q.Mat4()
	m[12] = t[0]
	m[13] = t[1]
	m[14] = t[2]
	return m
}

// TransformPoint applies m to p with w = 1 and drops the resulting w
func TransformPoint(m mgl32.Mat4, p mgl32.Vec3) mgl32.Vec3 {
	return m.Mul4x1(p.Vec4(1)).Vec3()
}
