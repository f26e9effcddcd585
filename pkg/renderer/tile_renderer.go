package renderer

import (
	"image"
	"math"

	"github.com/df07/go-sky-scattering/pkg/core"
	"github.com/df07/go-sky-scattering/pkg/geometry"
)

// TileRenderer evaluates the sky model for the pixels of a tile
type TileRenderer struct {
	sky            core.SkyModel
	camera         *Camera
	planetRadius   float64
	samplesPerAxis int
}

// NewTileRenderer creates a tile renderer. Each pixel is sampled on a
// samplesPerAxis x samplesPerAxis grid; 1 samples only the pixel centre.
func NewTileRenderer(sky core.SkyModel, camera *Camera, planetRadius float64, samplesPerAxis int) *TileRenderer {
	return &TileRenderer{
		sky:            sky,
		camera:         camera,
		planetRadius:   planetRadius,
		samplesPerAxis: max(1, samplesPerAxis),
	}
}

// RenderTileBounds renders pixels within the specified bounds into fb
func (tr *TileRenderer) RenderTileBounds(bounds image.Rectangle, fb *Framebuffer) RenderStats {
	stats := RenderStats{TotalPixels: bounds.Dx() * bounds.Dy()}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			var ps PixelStats
			ground := false

			for sy := 0; sy < tr.samplesPerAxis; sy++ {
				for sx := 0; sx < tr.samplesPerAxis; sx++ {
					px := float64(x) + (float64(sx)+0.5)/float64(tr.samplesPerAxis)
					py := float64(y) + (float64(sy)+0.5)/float64(tr.samplesPerAxis)

					ray, ok := tr.camera.GetRay(px, py)
					if !ok {
						continue
					}

					tMax, hitsPlanet := tr.groundDistance(ray)
					ground = ground || hitsPlanet
					ps.AddSample(tr.sky.Evaluate(ray, 0, tMax))
				}
			}

			stats.TotalSamples += ps.SampleCount
			if ps.SampleCount == 0 {
				stats.EmptyPixels++
			}
			if ground {
				stats.GroundPixels++
			}
			fb.Set(x, y, ps.GetColor())
		}
	}

	return stats
}

// groundDistance limits the view ray to the planet surface. A ray starting
// inside the planet gets an empty interval.
func (tr *TileRenderer) groundDistance(ray core.Ray) (float64, bool) {
	hit, t0, t1 := geometry.IntersectSphere(ray.Origin, ray.Direction, tr.planetRadius)
	if hit && t1 > 0 {
		return math.Max(0, t0), true
	}
	return math.Inf(1), false
}
