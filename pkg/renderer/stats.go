package renderer

import (
	"image"
	"time"

	"github.com/df07/go-sky-scattering/pkg/core"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// RenderStats contains statistics about the rendering process
type RenderStats struct {
	TotalPixels    int           // Total number of pixels rendered
	TotalSamples   int           // Total number of sky evaluations
	AverageSamples float64       // Average samples per pixel
	EmptyPixels    int           // Pixels the projection has no ray for
	GroundPixels   int           // Pixels whose centre ray hits the planet
	MeanLuminance  float64       // Mean radiance luminance over the image
	MaxRadiance    float64       // Brightest channel value in the image
	Duration       time.Duration // Wall time of the render
}

// merge accumulates the counters of a tile into the image totals
func (rs *RenderStats) merge(tile RenderStats) {
	rs.TotalPixels += tile.TotalPixels
	rs.TotalSamples += tile.TotalSamples
	rs.EmptyPixels += tile.EmptyPixels
	rs.GroundPixels += tile.GroundPixels
}

// PixelStats accumulates the sub-pixel samples of a single pixel
type PixelStats struct {
	ColorAccum  core.Vec3 // RGB accumulator for final result
	SampleCount int       // Number of samples taken
}

// AddSample adds a new color sample to the pixel statistics
func (ps *PixelStats) AddSample(color core.Vec3) {
	ps.ColorAccum = ps.ColorAccum.Add(color)
	ps.SampleCount++
}

// GetColor returns the current average color for this pixel
func (ps *PixelStats) GetColor() core.Vec3 {
	if ps.SampleCount == 0 {
		return core.Vec3{X: 0, Y: 0, Z: 0}
	}
	return ps.ColorAccum.Multiply(1.0 / float64(ps.SampleCount))
}

// CalculateAverageLuminance returns the mean Rec. 709 luminance of an 8-bit
// image with channels scaled to [0, 1].
func CalculateAverageLuminance(img image.Image) float64 {
	bounds := img.Bounds()
	if bounds.Empty() {
		return 0
	}

	values := make([]float64, 0, bounds.Dx()*bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			values = append(values, core.NewVec3(float64(r), float64(g), float64(b)).Multiply(1.0/65535.0).Luminance())
		}
	}
	return stat.Mean(values, nil)
}

// summarize fills the radiance statistics of the finished framebuffer
func summarize(stats *RenderStats, fb *Framebuffer) {
	if len(fb.Pixels) == 0 {
		return
	}

	luminance := make([]float64, len(fb.Pixels))
	peak := make([]float64, len(fb.Pixels))
	for i, c := range fb.Pixels {
		luminance[i] = c.Luminance()
		peak[i] = c.MaxComponent()
	}

	stats.MeanLuminance = stat.Mean(luminance, nil)
	stats.MaxRadiance = floats.Max(peak)
	if stats.TotalPixels > 0 {
		stats.AverageSamples = float64(stats.TotalSamples) / float64(stats.TotalPixels)
	}
}
