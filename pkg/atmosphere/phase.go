package atmosphere

import "math"

// MieAsymmetry is the Henyey-Greenstein g used for aerosols (strong forward scattering)
const MieAsymmetry = 0.76

// RayleighPhase returns the Rayleigh phase function for mu = cos(view, light)
func RayleighPhase(mu float64) float64 {
	return 3.0 * (1.0 + mu*mu) / (16.0 * math.Pi)
}

// MiePhase returns the Cornette-Shanks form of the Henyey-Greenstein phase
// function. The denominator stays positive for |mu| <= 1 and 0 <= g < 1.
func MiePhase(g, mu float64) float64 {
	g2 := g * g
	return 3.0 * (1.0 - g2) * (1.0 + mu*mu) /
		(4.0 * math.Pi * 2.0 * (2.0 + g2) * math.Pow(1.0+g2-2.0*g*mu, 1.5))
}
