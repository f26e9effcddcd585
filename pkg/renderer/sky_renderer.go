package renderer

import (
	"context"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/df07/go-sky-scattering/pkg/core"
	"github.com/schollz/progressbar/v3"
)

// DefaultLogger implements core.Logger by writing to stdout
type DefaultLogger struct{}

func (dl *DefaultLogger) Printf(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// NewDefaultLogger creates a new default logger
func NewDefaultLogger() core.Logger {
	return &DefaultLogger{}
}

// RenderConfig contains configuration for a sky render
type RenderConfig struct {
	TileSize       int       // Size of each tile (64x64 recommended)
	NumWorkers     int       // Number of parallel workers (0 = use CPU count)
	SamplesPerAxis int       // Sub-pixel grid per axis, 1 = pixel centre only
	Progress       io.Writer // Progress bar output, nil disables it
}

// DefaultRenderConfig returns sensible default values
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
		TileSize:       64,
		NumWorkers:     0, // Auto-detect CPU count
		SamplesPerAxis: 1,
	}
}

// SkyRenderer renders a sky model through a camera with a tile worker pool
type SkyRenderer struct {
	sky          core.SkyModel
	camera       *Camera
	planetRadius float64
	config       RenderConfig
	logger       core.Logger
}

// NewSkyRenderer creates a renderer. planetRadius is in the same normalized
// units as the camera position and is used to stop view rays at the ground.
func NewSkyRenderer(sky core.SkyModel, camera *Camera, planetRadius float64, config RenderConfig, logger core.Logger) (*SkyRenderer, error) {
	if sky == nil {
		return nil, fmt.Errorf("sky model is required")
	}
	if camera == nil {
		return nil, fmt.Errorf("camera is required")
	}
	if config.TileSize <= 0 {
		return nil, fmt.Errorf("tile size must be positive, got %d", config.TileSize)
	}
	if logger == nil {
		logger = NewDefaultLogger()
	}

	return &SkyRenderer{
		sky:          sky,
		camera:       camera,
		planetRadius: planetRadius,
		config:       config,
		logger:       logger,
	}, nil
}

// Render evaluates every pixel and returns the radiance framebuffer. It stops
// early with ctx.Err() when the context is cancelled.
func (sr *SkyRenderer) Render(ctx context.Context) (*Framebuffer, RenderStats, error) {
	start := time.Now()
	cam := sr.camera.Config()
	width, height := cam.Width, cam.Height

	fb := NewFramebuffer(width, height)
	tiles := NewTileGrid(width, height, sr.config.TileSize)

	tileRenderer := NewTileRenderer(sr.sky, sr.camera, sr.planetRadius, sr.config.SamplesPerAxis)
	pool := NewWorkerPool(tileRenderer, len(tiles), sr.config.NumWorkers)

	sr.logger.Printf("Rendering %dx%d %s view in %d tiles (using %d workers)...\n",
		width, height, cam.Projection, len(tiles), pool.GetNumWorkers())

	var bar *progressbar.ProgressBar
	if sr.config.Progress != nil {
		bar = progressbar.NewOptions(len(tiles),
			progressbar.OptionSetWriter(sr.config.Progress),
			progressbar.OptionSetDescription("Rendering"),
		)
	}

	pool.Start(ctx)
	for i, tile := range tiles {
		pool.SubmitTask(TileTask{Tile: tile, TaskID: i, Framebuffer: fb})
	}

	var stats RenderStats
	var renderErr error
	for i := 0; i < len(tiles); i++ {
		result, ok := pool.GetResult()
		if !ok {
			renderErr = fmt.Errorf("worker pool closed unexpectedly")
			break
		}
		if result.Error != nil {
			if renderErr == nil {
				renderErr = result.Error
			}
			continue
		}
		stats.merge(result.Stats)
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	pool.Stop()

	if renderErr != nil {
		sr.logger.Printf("Rendering stopped: %v\n", renderErr)
		return nil, RenderStats{}, renderErr
	}
	if bar != nil {
		_ = bar.Finish()
	}

	summarize(&stats, fb)
	stats.Duration = time.Since(start)
	sr.logger.Printf("Render completed in %v (%d ground pixels, mean luminance %.4f)\n",
		stats.Duration, stats.GroundPixels, stats.MeanLuminance)

	return fb, stats, nil
}

// Tile represents a rectangular region of the image to be rendered
type Tile struct {
	ID     int             // Unique tile identifier
	Bounds image.Rectangle // Pixel bounds (x0,y0,x1,y1)
}

// NewTileGrid creates a grid of tiles covering the entire image
func NewTileGrid(width, height, tileSize int) []*Tile {
	var tiles []*Tile
	tileID := 0

	// Calculate number of tiles in each dimension
	tilesX := (width + tileSize - 1) / tileSize // Ceiling division
	tilesY := (height + tileSize - 1) / tileSize

	for tileY := 0; tileY < tilesY; tileY++ {
		for tileX := 0; tileX < tilesX; tileX++ {
			x0 := tileX * tileSize
			y0 := tileY * tileSize
			x1 := min(x0+tileSize, width) // Don't exceed image bounds
			y1 := min(y0+tileSize, height)

			tiles = append(tiles, &Tile{ID: tileID, Bounds: image.Rect(x0, y0, x1, y1)})
			tileID++
		}
	}

	return tiles
}
