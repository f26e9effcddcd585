package core

// Logger interface for renderer logging
type Logger interface {
	Printf(format string, args ...interface{})
}

// SkyModel computes the radiance arriving along a ray segment [tMin, tMax].
// Implementations must be safe for concurrent use: the renderer calls Evaluate
// from every worker at once.
type SkyModel interface {
	Evaluate(ray Ray, tMin, tMax float64) Vec3
}
