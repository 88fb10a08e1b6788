package math

import "math"

// slerpEpsilon is the 1-cos(angle) threshold below which Slerp falls back to lerp.
const slerpEpsilon = 0.000001

// Quat represents a quaternion for 3D rotations.
// Components are stored as X, Y, Z, W where W is the scalar part.
type Quat struct {
	X, Y, Z, W float64
}

// QuatIdentity returns an identity quaternion (no rotation).
func QuatIdentity() Quat {
	return Quat{X: 0, Y: 0, Z: 0, W: 1}
}

// QuatFromXYZ completes a unit quaternion from its stored vector part.
// MD5 files keep only x, y, z; w is recovered as the negative root of
// 1 - x² - y² - z², clamped to zero when that term goes negative.
func QuatFromXYZ(x, y, z float64) Quat {
	t := 1.0 - x*x - y*y - z*z
	w := 0.0
	if t >= 0 {
		w = -math.Sqrt(t)
	}
	return Quat{X: x, Y: y, Z: z, W: w}
}

// QuatFromAxisAngle creates a quaternion from axis-angle rotation.
// axis should be normalized, angle is in radians.
func QuatFromAxisAngle(axis Vec3, angle float64) Quat {
	halfAngle := angle / 2
	s := math.Sin(halfAngle)
	return Quat{
		X: axis.X * s,
		Y: axis.Y * s,
		Z: axis.Z * s,
		W: math.Cos(halfAngle),
	}
}

// Normalize returns a normalized quaternion. The zero quaternion stays zero.
func (q Quat) Normalize() Quat {
	l := q.Dot(q)
	if l <= 0 {
		return q
	}
	inv := 1 / math.Sqrt(l)
	return Quat{X: q.X * inv, Y: q.Y * inv, Z: q.Z * inv, W: q.W * inv}
}

// Conjugate returns the quaternion with its vector part negated.
func (q Quat) Conjugate() Quat {
	return Quat{X: -q.X, Y: -q.Y, Z: -q.Z, W: q.W}
}

// Dot returns the dot product of two quaternions.
func (q Quat) Dot(other Quat) float64 {
	return q.X*other.X + q.Y*other.Y + q.Z*other.Z + q.W*other.W
}

// Mul multiplies two quaternions (Hamilton product, q applied after other).
func (q Quat) Mul(other Quat) Quat {
	return Quat{
		X: q.W*other.X + q.X*other.W + q.Y*other.Z - q.Z*other.Y,
		Y: q.W*other.Y - q.X*other.Z + q.Y*other.W + q.Z*other.X,
		Z: q.W*other.Z + q.X*other.Y - q.Y*other.X + q.Z*other.W,
		W: q.W*other.W - q.X*other.X - q.Y*other.Y - q.Z*other.Z,
	}
}

// Rotate rotates v by q as q * (v, 0) * normalize(conjugate(q)).
func (q Quat) Rotate(v Vec3) Vec3 {
	p := Quat{X: v.X, Y: v.Y, Z: v.Z, W: 0}
	r := q.Mul(p).Mul(q.Conjugate().Normalize())
	return Vec3{r.X, r.Y, r.Z}
}

// Slerp performs spherical linear interpolation between two quaternions.
// t should be in range [0, 1].
func (q Quat) Slerp(other Quat, t float64) Quat {
	cosom := q.Dot(other)

	// Take the shorter arc.
	if cosom < 0 {
		cosom = -cosom
		other = Quat{X: -other.X, Y: -other.Y, Z: -other.Z, W: -other.W}
	}

	var s0, s1 float64
	if 1-cosom > slerpEpsilon {
		omega := math.Acos(cosom)
		sinom := math.Sin(omega)
		s0 = math.Sin((1-t)*omega) / sinom
		s1 = math.Sin(t*omega) / sinom
	} else {
		s0 = 1 - t
		s1 = t
	}

	return Quat{
		X: s0*q.X + s1*other.X,
		Y: s0*q.Y + s1*other.Y,
		Z: s0*q.Z + s1*other.Z,
		W: s0*q.W + s1*other.W,
	}
}

// Array returns the components as a float32 quadruple in X, Y, Z, W order.
func (q Quat) Array() [4]float32 {
	return [4]float32{float32(q.X), float32(q.Y), float32(q.Z), float32(q.W)}
}
