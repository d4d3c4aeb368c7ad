package transform

import "math"

// quarterTurnTolerance is the tolerance, in radians, used when deciding
// whether an embedded orientation transform is a quarter turn.
const quarterTurnTolerance = 0.01

// Affine is a 2D affine transform in the conventional six-value form:
//
//	x' = A*x + C*y + TX
//	y' = B*x + D*y + TY
//
// Matching the layout video containers use for track orientation matrices.
type Affine struct {
	A, B, C, D, TX, TY float64
}

// Identity returns the identity transform.
func Identity() Affine {
	return Affine{A: 1, D: 1}
}

// Translation returns a transform that moves points by (tx, ty).
func Translation(tx, ty float64) Affine {
	return Affine{A: 1, D: 1, TX: tx, TY: ty}
}

// Scaling returns a transform that scales points by (sx, sy).
func Scaling(sx, sy float64) Affine {
	return Affine{A: sx, D: sy}
}

// Rotation returns a counter-clockwise rotation about the origin.
func Rotation(radians float64) Affine {
	sin, cos := math.Sincos(radians)
	return Affine{A: cos, B: sin, C: -sin, D: cos}
}

// RotationDegrees returns a rotation about the origin by whole degrees.
func RotationDegrees(degrees float64) Affine {
	return Rotation(degrees * math.Pi / 180)
}

// Then returns the composition that applies t first, then next.
func (t Affine) Then(next Affine) Affine {
	return Affine{
		A:  t.A*next.A + t.B*next.C,
		B:  t.A*next.B + t.B*next.D,
		C:  t.C*next.A + t.D*next.C,
		D:  t.C*next.B + t.D*next.D,
		TX: t.TX*next.A + t.TY*next.C + next.TX,
		TY: t.TX*next.B + t.TY*next.D + next.TY,
	}
}

// Apply maps the point (x, y) through the transform.
func (t Affine) Apply(x, y float64) (float64, float64) {
	return t.A*x + t.C*y + t.TX, t.B*x + t.D*y + t.TY
}

// Angle returns the rotation component of the transform in radians,
// in the range (-pi, pi].
func (t Affine) Angle() float64 {
	return math.Atan2(t.B, t.A)
}

// IsQuarterTurn reports whether the transform rotates by +-90 degrees within
// a small numerical tolerance. Quarter turns swap a frame's display
// dimensions relative to its natural ones.
func (t Affine) IsQuarterTurn() bool {
	return math.Abs(math.Abs(t.Angle())-math.Pi/2) < quarterTurnTolerance
}

// IsIdentity reports whether the transform is (numerically) the identity.
func (t Affine) IsIdentity() bool {
	const eps = 1e-9
	return math.Abs(t.A-1) < eps && math.Abs(t.B) < eps &&
		math.Abs(t.C) < eps && math.Abs(t.D-1) < eps &&
		math.Abs(t.TX) < eps && math.Abs(t.TY) < eps
}
