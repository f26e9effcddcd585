package atmosphere

import (
	"fmt"
	"sort"

	"github.com/df07/go-sky-scattering/pkg/core"
)

// Planet describes a planet and its atmosphere in physical units:
// lengths in metres, scattering coefficients per metre.
type Planet struct {
	Name                string
	Radius              float64   // Planet body radius
	AtmosphereThickness float64   // Height of the outer atmosphere shell above the surface
	RayleighScaleHeight float64   // Density falloff for air molecules
	MieScaleHeight      float64   // Density falloff for aerosols
	BetaRayleigh        core.Vec3 // Per-channel Rayleigh scattering coefficient
	BetaMie             core.Vec3 // Mie scattering coefficient, normally uniform
}

// AtmosphereRadius returns the radius of the outer atmosphere shell
func (p Planet) AtmosphereRadius() float64 {
	return p.Radius + p.AtmosphereThickness
}

// Reference scale heights used by every preset
const (
	EarthRayleighScaleHeight = 8e3
	EarthMieScaleHeight      = 1.2e3
)

// Earth is the reference clear-sky atmosphere
var Earth = Planet{
	Name:                "earth",
	Radius:              6360e3,
	AtmosphereThickness: 100e3,
	RayleighScaleHeight: EarthRayleighScaleHeight,
	MieScaleHeight:      EarthMieScaleHeight,
	BetaRayleigh:        core.NewVec3(3.8e-6, 13.5e-6, 33.1e-6),
	BetaMie:             core.Splat(21e-6),
}

// Venus uses a thick atmosphere with a yellow Rayleigh response
var Venus = Planet{
	Name:                "venus",
	Radius:              6052e3,
	AtmosphereThickness: 200.059e3,
	RayleighScaleHeight: EarthRayleighScaleHeight,
	MieScaleHeight:      EarthMieScaleHeight,
	BetaRayleigh:        core.NewVec3(11.37e-6, 11.37e-6, 1.8e-6),
	BetaMie:             core.Splat(2.12153e-6),
}

// Mars uses a thin atmosphere with a red Rayleigh response
var Mars = Planet{
	Name:                "mars",
	Radius:              3389.5e3,
	AtmosphereThickness: 30.588e3,
	RayleighScaleHeight: EarthRayleighScaleHeight,
	MieScaleHeight:      EarthMieScaleHeight,
	BetaRayleigh:        core.NewVec3(23.918e-6, 13.57e-6, 5.78e-6),
	BetaMie:             core.Splat(5.12153e-6),
}

// Im3 is an imaginary earth-like planet with a greenish sky
var Im3 = Planet{
	Name:                "im3",
	Radius:              6300e3,
	AtmosphereThickness: 200e3,
	RayleighScaleHeight: EarthRayleighScaleHeight,
	MieScaleHeight:      EarthMieScaleHeight,
	BetaRayleigh:        core.NewVec3(67.5e-6, 82.8e-6, 12.5e-8),
	BetaMie:             core.Splat(15e-6),
}

var planets = map[string]Planet{
	Earth.Name: Earth,
	Venus.Name: Venus,
	Mars.Name:  Mars,
	Im3.Name:   Im3,
}

// LookupPlanet returns the preset with the given name
func LookupPlanet(name string) (Planet, error) {
	p, ok := planets[name]
	if !ok {
		return Planet{}, fmt.Errorf("unknown planet %q (available: %v)", name, PlanetNames())
	}
	return p, nil
}

// PlanetNames lists the preset names in sorted order
func PlanetNames() []string {
	names := make([]string, 0, len(planets))
	for name := range planets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
