package atmosphere

import (
	"math"

	"github.com/df07/go-sky-scattering/pkg/core"
	"github.com/df07/go-sky-scattering/pkg/geometry"
)

const (
	// DefaultViewSamples is the number of midpoint segments along the view ray
	DefaultViewSamples = 16
	// DefaultLightSamples is the number of midpoint segments along each light ray
	DefaultLightSamples = 8
	// Brightness scales the result to match the reference exposure of the
	// comparison images. It is empirical, not a physical sun intensity.
	Brightness = 20.0
)

// Integrator evaluates single-scattering sky radiance by nested midpoint
// quadrature along the view ray and, from each view sample, along the ray
// toward the light.
type Integrator struct {
	Params       Parameters
	ViewSamples  int
	LightSamples int
}

// NewIntegrator creates an integrator with the default sample counts
func NewIntegrator(params Parameters) *Integrator {
	return &Integrator{
		Params:       params,
		ViewSamples:  DefaultViewSamples,
		LightSamples: DefaultLightSamples,
	}
}

// Evaluate implements core.SkyModel
func (in *Integrator) Evaluate(ray core.Ray, tMin, tMax float64) core.Vec3 {
	return in.Radiance(ray.Origin, ray.Direction, tMin, tMax)
}

// Radiance integrates in-scattered light along origin + t*viewDir for t in [tMin, tMax]
func (in *Integrator) Radiance(origin, viewDir core.Vec3, tMin, tMax float64) core.Vec3 {
	return integrate(in.Params, origin, viewDir, tMin, tMax, in.ViewSamples, in.LightSamples)
}

// ComputeRadiance integrates with the default 16 view and 8 light samples.
// viewDir is expected to be unit length. Rays that never enter the
// atmosphere, and degenerate intervals, yield zero radiance.
func ComputeRadiance(params Parameters, origin, viewDir core.Vec3, tMin, tMax float64) core.Vec3 {
	return integrate(params, origin, viewDir, tMin, tMax, DefaultViewSamples, DefaultLightSamples)
}

// Scattering holds the unphased single-scattering integrals along a view
// ray, already multiplied by the scattering coefficients.
type Scattering struct {
	Rayleigh core.Vec3
	Mie      core.Vec3
}

// Combine applies both phase functions for mu = cos(view, light) and the
// brightness factor.
func (s Scattering) Combine(mu float64) core.Vec3 {
	return s.Rayleigh.Multiply(RayleighPhase(mu)).
		Add(s.Mie.Multiply(MiePhase(MieAsymmetry, mu))).
		Multiply(Brightness)
}

func integrate(params Parameters, origin, viewDir core.Vec3, tMin, tMax float64, viewSamples, lightSamples int) core.Vec3 {
	s, ok := SingleScattering(params, origin, viewDir, tMin, tMax, viewSamples, lightSamples)
	if !ok {
		return core.Vec3{}
	}
	return s.Combine(viewDir.Dot(params.LightDir()))
}

// SingleScattering runs the nested quadrature and returns the Rayleigh and Mie
// integrals before the phase functions are applied. ok is false when the ray
// never reaches the atmosphere.
func SingleScattering(params Parameters, origin, viewDir core.Vec3, tMin, tMax float64, viewSamples, lightSamples int) (Scattering, bool) {
	hit, t0, t1 := geometry.IntersectSphere(origin, viewDir, params.AtmosphereRadius())
	if !hit || t1 < 0 {
		return Scattering{}, false
	}

	// A start before the atmosphere entry is reset to the origin, not moved to
	// the entry point. From outside the shell the leading samples lie in vacuum.
	if t0 > tMin && t0 > 0 {
		tMin = 0
	}
	if t1 < tMax {
		tMax = t1
	}
	if !(tMax > tMin) || viewSamples <= 0 || lightSamples <= 0 {
		return Scattering{}, true
	}

	lightDir := params.LightDir()
	betaR := params.BetaRayleigh()
	betaM := params.BetaMie()
	hR := params.RayleighScaleHeight()
	hM := params.MieScaleHeight()

	segmentLength := (tMax - tMin) / float64(viewSamples)

	var sumR, sumM core.Vec3
	opticalDepthR, opticalDepthM := 0.0, 0.0

	for i := 0; i < viewSamples; i++ {
		samplePosition := origin.Add(viewDir.Multiply(tMin + segmentLength*(float64(i)+0.5)))
		height := params.Height(samplePosition)

		// Out-scattering along the view ray, up to and including this segment
		hr := math.Exp(-height/hR) * segmentLength
		hm := math.Exp(-height/hM) * segmentLength
		opticalDepthR += hr
		opticalDepthM += hm

		lightR, lightM, lit := lightOpticalDepth(params, samplePosition, lightDir, lightSamples)
		if !lit {
			continue
		}

		tau := betaR.Multiply(opticalDepthR + lightR).Add(betaM.Multiply(opticalDepthM + lightM))
		attenuation := tau.Negate().Exp()

		sumR = sumR.Add(attenuation.Multiply(hr))
		sumM = sumM.Add(attenuation.Multiply(hm))
	}

	return Scattering{
		Rayleigh: sumR.MultiplyVec(betaR),
		Mie:      sumM.MultiplyVec(betaM),
	}, true
}

// lightOpticalDepth integrates density from position to the top of the
// atmosphere along lightDir. lit is false when a sample dips below the
// surface, meaning the planet shadows the position.
func lightOpticalDepth(params Parameters, position, lightDir core.Vec3, samples int) (depthR, depthM float64, lit bool) {
	hit, _, t1 := geometry.IntersectSphere(position, lightDir, params.AtmosphereRadius())
	if !hit {
		// Position is outside the shell and the light ray never re-enters it
		return 0, 0, true
	}

	segmentLength := t1 / float64(samples)
	for j := 0; j < samples; j++ {
		samplePosition := position.Add(lightDir.Multiply(segmentLength * (float64(j) + 0.5)))
		height := params.Height(samplePosition)
		if height < 0 {
			return 0, 0, false
		}

		depthR += math.Exp(-height/params.RayleighScaleHeight()) * segmentLength
		depthM += math.Exp(-height/params.MieScaleHeight()) * segmentLength
	}
	return depthR, depthM, true
}
