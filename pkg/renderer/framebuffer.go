package renderer

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"

	"github.com/df07/go-sky-scattering/pkg/core"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/mrjoshuak/go-openexr/exr"
)

// ToneMapConfig controls the conversion from radiance to display values
type ToneMapConfig struct {
	Exposure     float64 // Multiplier inside 1 - exp(-radiance * exposure)
	Gamma        float64 // Display gamma, values are raised to 1/Gamma
	FlipVertical bool    // Write rows bottom-up
}

// DefaultToneMapConfig returns exposure 1 and gamma 2.2
func DefaultToneMapConfig() ToneMapConfig {
	return ToneMapConfig{
		Exposure: 1.0,
		Gamma:    2.2,
	}
}

// ToneMap maps radiance to a display color in [0, 1]
func ToneMap(radiance core.Vec3, exposure, gamma float64) core.Vec3 {
	mapped := core.Splat(1).Subtract(radiance.Multiply(-exposure).Exp())
	return mapped.Clamp(0, 1).GammaCorrect(gamma).Clamp(0, 1)
}

// Framebuffer holds linear radiance for every pixel, row-major from the top
type Framebuffer struct {
	Width  int
	Height int
	Pixels []core.Vec3
}

// NewFramebuffer allocates a black framebuffer
func NewFramebuffer(width, height int) *Framebuffer {
	return &Framebuffer{
		Width:  width,
		Height: height,
		Pixels: make([]core.Vec3, width*height),
	}
}

// At returns the radiance at (x, y)
func (fb *Framebuffer) At(x, y int) core.Vec3 {
	return fb.Pixels[y*fb.Width+x]
}

// Set stores the radiance at (x, y)
func (fb *Framebuffer) Set(x, y int, c core.Vec3) {
	fb.Pixels[y*fb.Width+x] = c
}

// Image tone maps the framebuffer into an 8-bit image
func (fb *Framebuffer) Image(config ToneMapConfig) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, fb.Width, fb.Height))

	for y := 0; y < fb.Height; y++ {
		row := y
		if config.FlipVertical {
			row = fb.Height - 1 - y
		}
		for x := 0; x < fb.Width; x++ {
			c := ToneMap(fb.At(x, y), config.Exposure, config.Gamma)
			r, g, b := colorful.Color{R: c.X, G: c.Y, B: c.Z}.Clamped().RGB255()
			img.SetRGBA(x, row, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}

	return img
}

// EncodePNG tone maps and writes the framebuffer as PNG
func (fb *Framebuffer) EncodePNG(w io.Writer, config ToneMapConfig) error {
	if err := png.Encode(w, fb.Image(config)); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return nil
}

// SavePNG writes a tone mapped PNG file
func (fb *Framebuffer) SavePNG(path string, config ToneMapConfig) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := fb.EncodePNG(f, config); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// EXR converts the framebuffer to an OpenEXR image holding raw radiance
func (fb *Framebuffer) EXR() *exr.RGBAImage {
	img := exr.NewRGBAImage(image.Rect(0, 0, fb.Width, fb.Height))
	for y := 0; y < fb.Height; y++ {
		for x := 0; x < fb.Width; x++ {
			c := fb.At(x, y)
			img.SetRGBA(x, y, float32(c.X), float32(c.Y), float32(c.Z), 1)
		}
	}
	return img
}

// SaveEXR writes the untonemapped radiance as an OpenEXR file
func (fb *Framebuffer) SaveEXR(path string) error {
	if err := exr.EncodeFile(path, fb.EXR()); err != nil {
		return fmt.Errorf("failed to write EXR %s: %w", path, err)
	}
	return nil
}
