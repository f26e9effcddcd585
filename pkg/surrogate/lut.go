// Package surrogate provides sky models that approximate the analytic
// integrator from precomputed data: a single-scattering lookup table and a
// lat-long radiance image.
package surrogate

import (
	"context"
	"fmt"
	"io"
	"math"
	"runtime"
	"sync"

	"github.com/df07/go-sky-scattering/pkg/atmosphere"
	"github.com/df07/go-sky-scattering/pkg/core"
	"github.com/df07/go-sky-scattering/pkg/geometry"
	"github.com/schollz/progressbar/v3"
	"gonum.org/v1/gonum/floats/scalar"
)

// MaxPlanetRadius is the radius in metres the planet and atmosphere radii are
// divided by when written to a table file.
const MaxPlanetRadius = 6360e3

// Texel is one table entry: the Rayleigh integral in RGB and the red channel
// of the Mie integral in A. Both already include the scattering coefficients.
type Texel [4]float64

// Rayleigh returns the RGB part of the texel
func (t Texel) Rayleigh() core.Vec3 {
	return core.NewVec3(t[0], t[1], t[2])
}

func lerpTexel(a, b Texel, f float64) Texel {
	var out Texel
	for i := range out {
		out[i] = a[i] + (b[i]-a[i])*f
	}
	return out
}

// LUT is a single-scattering table indexed by [height][sun angle][view angle].
// Heights span the atmosphere from the surface to the top, angles span [0, π]
// measured from the local up vector.
type LUT struct {
	Heights    int
	SunAngles  int
	ViewAngles int

	// PlanetRadius and AtmosphereRadius in metres, recorded for the file format
	PlanetRadius     float64
	AtmosphereRadius float64

	data []Texel
}

// NewLUT allocates an empty table. Every axis needs at least two samples.
func NewLUT(heights, sunAngles, viewAngles int) (*LUT, error) {
	if heights < 2 || sunAngles < 2 || viewAngles < 2 {
		return nil, fmt.Errorf("lookup table needs at least 2 samples per axis, got %dx%dx%d", heights, sunAngles, viewAngles)
	}
	return &LUT{
		Heights:    heights,
		SunAngles:  sunAngles,
		ViewAngles: viewAngles,
		data:       make([]Texel, heights*sunAngles*viewAngles),
	}, nil
}

func (l *LUT) index(h, s, v int) int {
	return (h*l.SunAngles+s)*l.ViewAngles + v
}

// At returns the texel stored at the given grid indices
func (l *LUT) At(h, s, v int) Texel {
	return l.data[l.index(h, s, v)]
}

// Set stores a texel at the given grid indices
func (l *LUT) Set(h, s, v int, t Texel) {
	l.data[l.index(h, s, v)] = t
}

// MatchesPlanet reports whether the table was generated for the planet's
// radii. The text format keeps six significant digits, so the comparison is
// relative.
func (l *LUT) MatchesPlanet(planet atmosphere.Planet) bool {
	const tol = 1e-5
	return scalar.EqualWithinRel(l.PlanetRadius, planet.Radius, tol) &&
		scalar.EqualWithinRel(l.AtmosphereRadius, planet.AtmosphereRadius(), tol)
}

// axisCoord maps a normalized coordinate in [0, 1] onto two neighbouring grid
// indices and the blend factor between them.
func axisCoord(u float64, n int) (int, int, float64) {
	x := u * float64(n-1)
	if !(x > 0) {
		return 0, 0, 0
	}
	if x >= float64(n-1) {
		return n - 1, n - 1, 0
	}
	i0 := int(math.Floor(x))
	return i0, i0 + 1, x - float64(i0)
}

// Sample trilinearly interpolates the table. Each coordinate is normalized to
// [0, 1] along its axis and clamped to the table edges.
func (l *LUT) Sample(height, sunAngle, viewAngle float64) Texel {
	h0, h1, fh := axisCoord(height, l.Heights)
	s0, s1, fs := axisCoord(sunAngle, l.SunAngles)
	v0, v1, fv := axisCoord(viewAngle, l.ViewAngles)

	c00 := lerpTexel(l.At(h0, s0, v0), l.At(h1, s0, v0), fh)
	c10 := lerpTexel(l.At(h0, s1, v0), l.At(h1, s1, v0), fh)
	c01 := lerpTexel(l.At(h0, s0, v1), l.At(h1, s0, v1), fh)
	c11 := lerpTexel(l.At(h0, s1, v1), l.At(h1, s1, v1), fh)

	return lerpTexel(lerpTexel(c00, c10, fs), lerpTexel(c01, c11, fs), fv)
}

// PrecomputeConfig controls table resolution and the quadrature behind each texel
type PrecomputeConfig struct {
	HeightSamples    int
	SunAngleSamples  int
	ViewAngleSamples int
	ViewSamples      int       // Quadrature segments along each view ray
	LightSamples     int       // Quadrature segments along each light ray
	NumWorkers       int       // 0 uses runtime.NumCPU()
	Progress         io.Writer // Progress bar output, nil disables it
}

// DefaultPrecomputeConfig returns the table resolution used by the CLI
func DefaultPrecomputeConfig() PrecomputeConfig {
	return PrecomputeConfig{
		HeightSamples:    32,
		SunAngleSamples:  64,
		ViewAngleSamples: 128,
		ViewSamples:      atmosphere.DefaultViewSamples,
		LightSamples:     atmosphere.DefaultLightSamples,
	}
}

// Precompute fills a table for params' planet. The light direction of params
// is ignored: the sun angle is a table axis. Height rows are distributed over
// NumWorkers goroutines and the context is checked between rows.
func Precompute(ctx context.Context, params atmosphere.Parameters, config PrecomputeConfig) (*LUT, error) {
	lut, err := NewLUT(config.HeightSamples, config.SunAngleSamples, config.ViewAngleSamples)
	if err != nil {
		return nil, err
	}
	if config.ViewSamples <= 0 || config.LightSamples <= 0 {
		return nil, fmt.Errorf("quadrature sample counts must be positive, got %d/%d", config.ViewSamples, config.LightSamples)
	}

	sf := params.ScalingFactor()
	lut.PlanetRadius = params.PlanetRadius() / sf
	lut.AtmosphereRadius = params.AtmosphereRadius() / sf

	numWorkers := config.NumWorkers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	var bar *progressbar.ProgressBar
	if config.Progress != nil {
		bar = progressbar.NewOptions(lut.Heights,
			progressbar.OptionSetWriter(config.Progress),
			progressbar.OptionSetDescription("Precomputing single scattering"),
		)
	}

	rows := make(chan int, lut.Heights)
	for h := 0; h < lut.Heights; h++ {
		rows <- h
	}
	close(rows)

	var wg sync.WaitGroup
	var barMu sync.Mutex
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for h := range rows {
				if ctx.Err() != nil {
					return
				}
				precomputeRow(lut, params, config, h)
				if bar != nil {
					barMu.Lock()
					_ = bar.Add(1)
					barMu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("precompute cancelled: %w", err)
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return lut, nil
}

// precomputeRow fills every sun and view angle for one observer height.
// Each row writes a disjoint slice of the table.
func precomputeRow(lut *LUT, params atmosphere.Parameters, config PrecomputeConfig, h int) {
	top := params.AtmosphereRadius() - params.PlanetRadius()
	origin := core.NewVec3(0, params.PlanetRadius()+top*float64(h)/float64(lut.Heights-1), 0)

	for s := 0; s < lut.SunAngles; s++ {
		sunAngle := math.Pi * float64(s) / float64(lut.SunAngles-1)
		p := params.WithLightDir(core.NewVec3(math.Sin(sunAngle), math.Cos(sunAngle), 0))

		for v := 0; v < lut.ViewAngles; v++ {
			viewAngle := math.Pi * float64(v) / float64(lut.ViewAngles-1)
			dir := core.NewVec3(math.Sin(viewAngle), math.Cos(viewAngle), 0)

			tMax := math.Inf(1)
			if hit, t0, t1 := geometry.IntersectSphere(origin, dir, params.PlanetRadius()); hit && t1 > 0 {
				tMax = math.Max(0, t0)
			}

			scattering, _ := atmosphere.SingleScattering(p, origin, dir, 0, tMax, config.ViewSamples, config.LightSamples)
			r := scattering.Rayleigh
			lut.Set(h, s, v, Texel{r.X, r.Y, r.Z, scattering.Mie.X})
		}
	}
}

// LookupSky evaluates the sky from a precomputed table. The table is sampled
// at the point where the view ray enters the atmosphere (or at the origin when
// it already is inside), so the result ignores tMax.
type LookupSky struct {
	lut    *LUT
	params atmosphere.Parameters
}

// NewLookupSky pairs a table with the parameters it was generated for
func NewLookupSky(lut *LUT, params atmosphere.Parameters) (*LookupSky, error) {
	if lut == nil || len(lut.data) == 0 {
		return nil, fmt.Errorf("lookup table is empty")
	}
	return &LookupSky{lut: lut, params: params}, nil
}

// WithLightDir returns a sky sharing the same table with a new sun direction
func (s *LookupSky) WithLightDir(dir core.Vec3) *LookupSky {
	return &LookupSky{lut: s.lut, params: s.params.WithLightDir(dir)}
}

// Evaluate implements core.SkyModel
func (s *LookupSky) Evaluate(ray core.Ray, tMin, tMax float64) core.Vec3 {
	p := s.params
	hit, t0, t1 := geometry.IntersectSphere(ray.Origin, ray.Direction, p.AtmosphereRadius())
	if !hit || t1 < 0 {
		return core.Vec3{}
	}

	entry := ray.Origin
	if t0 > 0 {
		entry = ray.At(t0)
	}
	up := entry.Normalize()
	light := p.LightDir()

	viewAngle := math.Acos(clampUnit(up.Dot(ray.Direction)))
	sunAngle := math.Acos(clampUnit(up.Dot(light)))
	height := p.Height(entry) / (p.AtmosphereRadius() - p.PlanetRadius())

	texel := s.lut.Sample(height, sunAngle/math.Pi, viewAngle/math.Pi)
	rayleigh := texel.Rayleigh()
	mie := reconstructMie(rayleigh, texel[3], p.BetaRayleigh(), p.BetaMie())

	mu := ray.Direction.Dot(light)
	return rayleigh.Multiply(atmosphere.RayleighPhase(mu)).
		Add(mie.Multiply(atmosphere.MiePhase(atmosphere.MieAsymmetry, mu))).
		Multiply(atmosphere.Brightness)
}

// reconstructMie rebuilds the Mie RGB integral from its red channel, assuming
// it shares the Rayleigh chromatic ratio rescaled by the coefficients.
func reconstructMie(rayleigh core.Vec3, mieR float64, betaR, betaM core.Vec3) core.Vec3 {
	scale := mieR * betaR.X
	denom := rayleigh.X * betaM.X
	return core.NewVec3(
		rayleigh.X*scale*betaM.X/(denom*betaR.X+1e-5),
		rayleigh.Y*scale*betaM.Y/(denom*betaR.Y+1e-5),
		rayleigh.Z*scale*betaM.Z/(denom*betaR.Z+1e-5),
	)
}

func clampUnit(x float64) float64 {
	return math.Max(-1, math.Min(1, x))
}
