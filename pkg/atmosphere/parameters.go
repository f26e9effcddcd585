package atmosphere

import (
	"errors"
	"fmt"

	"github.com/df07/go-sky-scattering/pkg/core"
)

// Parameters holds a planet's geometric and optical properties in normalized
// units where the planet radius is exactly 1. Distances are multiplied by
// ScalingFactor (1 / raw radius) and scattering coefficients divided by it,
// which keeps the exponential density terms well conditioned for any planet size.
//
// A Parameters value is immutable; WithLightDir returns a modified copy, so one
// value can be shared by every render worker without synchronization.
type Parameters struct {
	planetRadius        float64
	atmosphereRadius    float64
	rayleighScaleHeight float64
	mieScaleHeight      float64
	betaRayleigh        core.Vec3
	betaMie             core.Vec3
	lightDir            core.Vec3
	scalingFactor       float64
	name                string
}

// NewParameters validates a planet description and converts it to normalized units.
// lightDir points from the scene toward the light and is normalized here.
func NewParameters(planet Planet, lightDir core.Vec3) (Parameters, error) {
	if planet.Radius <= 0 {
		return Parameters{}, fmt.Errorf("planet %q: radius must be positive, got %g", planet.Name, planet.Radius)
	}
	if planet.AtmosphereThickness <= 0 {
		return Parameters{}, fmt.Errorf("planet %q: atmosphere thickness must be positive, got %g", planet.Name, planet.AtmosphereThickness)
	}
	if planet.RayleighScaleHeight <= 0 || planet.MieScaleHeight <= 0 {
		return Parameters{}, fmt.Errorf("planet %q: scale heights must be positive, got %g and %g",
			planet.Name, planet.RayleighScaleHeight, planet.MieScaleHeight)
	}
	if hasNegative(planet.BetaRayleigh) || hasNegative(planet.BetaMie) {
		return Parameters{}, fmt.Errorf("planet %q: scattering coefficients must be non-negative", planet.Name)
	}
	if lightDir.IsZero() {
		return Parameters{}, errors.New("light direction must be non-zero")
	}

	scalingFactor := 1.0 / planet.Radius
	return Parameters{
		planetRadius:        planet.Radius * scalingFactor,
		atmosphereRadius:    planet.AtmosphereRadius() * scalingFactor,
		rayleighScaleHeight: planet.RayleighScaleHeight * scalingFactor,
		mieScaleHeight:      planet.MieScaleHeight * scalingFactor,
		betaRayleigh:        planet.BetaRayleigh.Multiply(1.0 / scalingFactor),
		betaMie:             planet.BetaMie.Multiply(1.0 / scalingFactor),
		lightDir:            lightDir.Normalize(),
		scalingFactor:       scalingFactor,
		name:                planet.Name,
	}, nil
}

func hasNegative(v core.Vec3) bool {
	return v.X < 0 || v.Y < 0 || v.Z < 0
}

// WithLightDir returns a copy of p lit from a different direction
func (p Parameters) WithLightDir(lightDir core.Vec3) Parameters {
	if lightDir.IsZero() {
		return p
	}
	p.lightDir = lightDir.Normalize()
	return p
}

func (p Parameters) PlanetRadius() float64        { return p.planetRadius }
func (p Parameters) AtmosphereRadius() float64    { return p.atmosphereRadius }
func (p Parameters) RayleighScaleHeight() float64 { return p.rayleighScaleHeight }
func (p Parameters) MieScaleHeight() float64      { return p.mieScaleHeight }
func (p Parameters) BetaRayleigh() core.Vec3      { return p.betaRayleigh }
func (p Parameters) BetaMie() core.Vec3           { return p.betaMie }
func (p Parameters) LightDir() core.Vec3          { return p.lightDir }
func (p Parameters) ScalingFactor() float64       { return p.scalingFactor }
func (p Parameters) Name() string                 { return p.name }

// AtmosphereThickness returns the shell height in normalized units
func (p Parameters) AtmosphereThickness() float64 {
	return p.atmosphereRadius - p.planetRadius
}

// Height returns the altitude of a normalized position above the planet surface
func (p Parameters) Height(position core.Vec3) float64 {
	return position.Length() - p.planetRadius
}

// ToNormalized converts a length in metres to normalized units
func (p Parameters) ToNormalized(metres float64) float64 {
	return metres * p.scalingFactor
}
