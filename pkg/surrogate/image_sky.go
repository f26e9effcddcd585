package surrogate

import (
	"fmt"
	"math"

	"github.com/df07/go-sky-scattering/pkg/atmosphere"
	"github.com/df07/go-sky-scattering/pkg/core"
	"github.com/df07/go-sky-scattering/pkg/geometry"
	"github.com/df07/go-sky-scattering/pkg/loaders"
	"github.com/mrjoshuak/go-openexr/exr"
)

// displayGamma matches the gamma the renderer applies after tone mapping
const displayGamma = 2.2

// maxDisplayValue caps inverted LDR values so saturated pixels map to a
// finite radiance.
const maxDisplayValue = 0.999

// ImageSky looks radiance up in a lat-long map indexed by view direction.
// The map is baked for one sun position, so the light direction of the
// parameters is not used; the parameters only decide which rays reach the
// atmosphere.
type ImageSky struct {
	env    *exr.EnvMapImage
	params atmosphere.Parameters
}

// NewImageSky wraps a lat-long image. HDR images are taken as radiance; LDR
// images are converted back to radiance by inverting the renderer's tone
// curve at the given exposure.
func NewImageSky(img *loaders.ImageData, params atmosphere.Parameters, exposure float64) (*ImageSky, error) {
	if img == nil || img.Width < 2 || img.Height < 2 {
		return nil, fmt.Errorf("sky image must be at least 2x2 pixels")
	}
	if !img.HDR && exposure <= 0 {
		return nil, fmt.Errorf("exposure must be positive to invert LDR images, got %f", exposure)
	}

	env := exr.NewEnvMapImage(exr.EnvMapLatLong, img.Width, img.Height)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			c := img.At(x, y)
			if !img.HDR {
				c = core.NewVec3(inverseToneMap(c.X, exposure), inverseToneMap(c.Y, exposure), inverseToneMap(c.Z, exposure))
			}
			env.Set(x, y, exr.RGBA{R: float32(c.X), G: float32(c.Y), B: float32(c.Z), A: 1})
		}
	}

	return &ImageSky{env: env, params: params}, nil
}

// LoadImageSky reads a lat-long sky image from disk
func LoadImageSky(path string, params atmosphere.Parameters, exposure float64) (*ImageSky, error) {
	img, err := loaders.LoadImage(path)
	if err != nil {
		return nil, err
	}
	return NewImageSky(img, params, exposure)
}

// inverseToneMap undoes gamma and the exponential exposure curve
func inverseToneMap(v, exposure float64) float64 {
	linear := math.Pow(math.Max(0, v), displayGamma)
	linear = math.Min(linear, maxDisplayValue)
	return -math.Log(1-linear) / exposure
}

// Evaluate implements core.SkyModel
func (s *ImageSky) Evaluate(ray core.Ray, tMin, tMax float64) core.Vec3 {
	hit, _, t1 := geometry.IntersectSphere(ray.Origin, ray.Direction, s.params.AtmosphereRadius())
	if !hit || t1 < 0 {
		return core.Vec3{}
	}

	d := ray.Direction
	c := s.env.Lookup(exr.V3f{X: float32(d.X), Y: float32(d.Y), Z: float32(d.Z)})
	return core.NewVec3(float64(c.R), float64(c.G), float64(c.B))
}
