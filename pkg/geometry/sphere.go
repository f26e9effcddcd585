package geometry

import (
	"math"

	"github.com/df07/go-sky-scattering/pkg/core"
)

// NoRoot is the placeholder distance reported for both roots of a miss
const NoRoot = -1.0

// Sphere is a sphere centered at the planet origin. Both the planet body and the
// outer atmosphere shell are modelled this way.
type Sphere struct {
	Radius float64
}

// NewSphere creates a new origin-centered sphere
func NewSphere(radius float64) Sphere {
	return Sphere{Radius: radius}
}

// Intersect returns the two ray parameters where the ray crosses the sphere
func (s Sphere) Intersect(ray core.Ray) (hit bool, t0, t1 float64) {
	return IntersectSphere(ray.Origin, ray.Direction, s.Radius)
}

// IntersectSphere solves |origin + t*direction|² = radius² for t.
// On a hit the roots are ordered so that t0 <= t1; on a miss both are NoRoot.
// A sphere lying entirely behind the origin (t1 < 0) counts as a miss.
// The direction does not need to be normalized.
func IntersectSphere(origin, direction core.Vec3, radius float64) (hit bool, t0, t1 float64) {
	// Quadratic equation coefficients: at² + bt + c = 0
	a := direction.Dot(direction)
	b := 2.0 * direction.Dot(origin)
	c := origin.Dot(origin) - radius*radius

	ok, x0, x1 := solveQuadratic(a, b, c)
	if !ok {
		return false, NoRoot, NoRoot
	}

	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 < 0 {
		return false, NoRoot, NoRoot
	}
	return true, x0, x1
}

// solveQuadratic returns the real roots of a*x² + b*x + c = 0 using the
// cancellation-free form q = -(b ± sqrt(d))/2, x = q/a, c/q.
func solveQuadratic(a, b, c float64) (bool, float64, float64) {
	if b == 0 {
		if a == 0 {
			return false, NoRoot, NoRoot
		}
		// q would be zero here, so take the roots directly. A negative
		// radicand means the ray passes outside the sphere.
		radicand := -c / a
		if radicand < 0 {
			return false, NoRoot, NoRoot
		}
		r := math.Sqrt(radicand)
		return true, -r, r
	}

	discriminant := b*b - 4.0*a*c
	if discriminant < 0 {
		return false, NoRoot, NoRoot
	}

	var q float64
	if b < 0 {
		q = -0.5 * (b - math.Sqrt(discriminant))
	} else {
		q = -0.5 * (b + math.Sqrt(discriminant))
	}

	return true, q / a, c / q
}
