package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/df07/go-sky-scattering/pkg/atmosphere"
	"github.com/df07/go-sky-scattering/pkg/core"
	"github.com/df07/go-sky-scattering/pkg/renderer"
	"github.com/df07/go-sky-scattering/pkg/scene"
	"github.com/df07/go-sky-scattering/pkg/sun"
	"github.com/df07/go-sky-scattering/pkg/surrogate"
)

// Sky model names accepted by -model
const (
	modelAnalytic = "analytic"
	modelLUT      = "lut"
	modelImage    = "image"
)

type options struct {
	Scene    string
	Model    string
	Planet   string
	SunAngle float64 // negative keeps the scene's sun
	Time     string
	Lat      float64
	Lon      float64
	Width    int
	Height   int
	Samples  int
	Exposure float64
	Flip     bool
	EXR      bool
	LUT      string
	LUTOut   string
	Image    string
	Workers  int
	Output   string
	List     bool
}

func parseFlags(args []string, errOut io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("skyrender", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&opts.Scene, "scene", "surface_view_dawn", "Scene ID (see -list) or path to a .scene file")
	fs.StringVar(&opts.Model, "model", modelAnalytic, "Sky model: 'analytic', 'lut' or 'image'")
	fs.StringVar(&opts.Planet, "planet", "earth", "Planet preset: "+strings.Join(atmosphere.PlanetNames(), ", "))
	fs.Float64Var(&opts.SunAngle, "sun-angle", -1, "Sun zenith angle in degrees (negative uses the scene's)")
	fs.StringVar(&opts.Time, "time", "", "UTC time (RFC 3339) for the sun position, overrides -sun-angle")
	fs.Float64Var(&opts.Lat, "lat", 0, "Observer latitude in degrees, used with -time")
	fs.Float64Var(&opts.Lon, "lon", 0, "Observer longitude in degrees east, used with -time")
	fs.IntVar(&opts.Width, "width", 0, "Image width (0 uses the scene's)")
	fs.IntVar(&opts.Height, "height", 0, "Image height (0 uses the scene's)")
	fs.IntVar(&opts.Samples, "samples", 1, "Sub-pixel samples per axis")
	fs.Float64Var(&opts.Exposure, "exposure", 1, "Tone mapping exposure")
	fs.BoolVar(&opts.Flip, "flip", false, "Flip the output image vertically")
	fs.BoolVar(&opts.EXR, "exr", false, "Also save raw radiance as OpenEXR")
	fs.StringVar(&opts.LUT, "lut", "", "Lookup table to load for -model lut (precomputed when empty)")
	fs.StringVar(&opts.LUTOut, "lut-out", "", "Save the precomputed lookup table here (.zst compresses)")
	fs.StringVar(&opts.Image, "image", "", "Lat-long radiance map for -model image (EXR, PNG, JPEG or WebP)")
	fs.IntVar(&opts.Workers, "workers", 0, "Number of parallel workers (0 = CPU count)")
	fs.StringVar(&opts.Output, "output", "", "Output PNG path (default output/<scene>/render_<timestamp>.png)")
	fs.BoolVar(&opts.List, "list", false, "List scenes and planets and exit")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	switch opts.Model {
	case modelAnalytic, modelLUT, modelImage:
	default:
		return options{}, fmt.Errorf("unknown model %q (want analytic, lut or image)", opts.Model)
	}
	if opts.Model == modelImage && opts.Image == "" {
		return options{}, fmt.Errorf("-model image requires -image")
	}
	if opts.Exposure <= 0 {
		return options{}, fmt.Errorf("exposure must be positive, got %g", opts.Exposure)
	}
	if opts.Samples < 1 {
		return options{}, fmt.Errorf("samples must be at least 1, got %d", opts.Samples)
	}
	return opts, nil
}

// sunDirection picks the sun from -time, then -sun-angle. A zero vector keeps the scene's sun.
func sunDirection(opts options) (core.Vec3, error) {
	if opts.Time != "" {
		t, err := time.Parse(time.RFC3339, opts.Time)
		if err != nil {
			return core.Vec3{}, fmt.Errorf("invalid -time: %w", err)
		}
		return sun.At(t, sun.Position{Latitude: opts.Lat, Longitude: opts.Lon})
	}
	if opts.SunAngle >= 0 {
		return sun.FromZenith(opts.SunAngle), nil
	}
	return core.Vec3{}, nil
}

// createSky builds the sky model selected by -model
func createSky(ctx context.Context, opts options, params atmosphere.Parameters, progress io.Writer) (core.SkyModel, error) {
	switch opts.Model {
	case modelLUT:
		lut, err := loadOrPrecomputeLUT(ctx, opts, params, progress)
		if err != nil {
			return nil, err
		}
		return surrogate.NewLookupSky(lut, params)
	case modelImage:
		return surrogate.LoadImageSky(opts.Image, params, opts.Exposure)
	default:
		return atmosphere.NewIntegrator(params), nil
	}
}

func loadOrPrecomputeLUT(ctx context.Context, opts options, params atmosphere.Parameters, progress io.Writer) (*surrogate.LUT, error) {
	if opts.LUT != "" {
		lut, err := surrogate.LoadLUT(opts.LUT)
		if err != nil {
			return nil, err
		}
		planet, _ := atmosphere.LookupPlanet(opts.Planet)
		if !lut.MatchesPlanet(planet) {
			fmt.Fprintf(os.Stderr, "Warning: %s was generated for a %.0f m planet, rendering %s\n", opts.LUT, lut.PlanetRadius, opts.Planet)
		}
		return lut, nil
	}

	config := surrogate.DefaultPrecomputeConfig()
	config.NumWorkers = opts.Workers
	config.Progress = progress
	lut, err := surrogate.Precompute(ctx, params, config)
	if err != nil {
		return nil, err
	}

	if opts.LUTOut != "" {
		if err := surrogate.SaveLUT(opts.LUTOut, lut); err != nil {
			return nil, err
		}
		fmt.Printf("Lookup table saved as %s\n", opts.LUTOut)
	}
	return lut, nil
}

// createOutputDir returns the output directory for a scene ID or scene file path
func createOutputDir(sceneRef string) string {
	base := sceneRef
	if strings.HasSuffix(sceneRef, scene.SceneFileExt) {
		base = strings.TrimSuffix(filepath.Base(sceneRef), scene.SceneFileExt)
	}
	if base == "" {
		base = "scene"
	}
	return filepath.Join("output", base)
}

func outputPath(opts options, now time.Time) string {
	if opts.Output != "" {
		return opts.Output
	}
	timestamp := now.Format("20060102_150405")
	return filepath.Join(createOutputDir(opts.Scene), fmt.Sprintf("render_%s.png", timestamp))
}

func printList(w io.Writer) error {
	response, err := scene.ListAllScenes("scenes")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Available scenes:")
	for _, group := range response.Groups {
		fmt.Fprintf(w, "  %s\n", group.Name)
		for _, info := range group.Scenes {
			id := info.ID
			if info.FilePath != "" {
				id = info.FilePath
			}
			fmt.Fprintf(w, "    %-20s %4dx%-4d %-11s %s\n", id, info.Width, info.Height, info.Projection, info.Description)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Planets: %s\n", strings.Join(atmosphere.PlanetNames(), ", "))
	return nil
}

func run(ctx context.Context, opts options) error {
	if opts.List {
		return printList(os.Stdout)
	}

	selected, err := scene.Resolve(opts.Scene)
	if err != nil {
		return err
	}
	planet, err := atmosphere.LookupPlanet(opts.Planet)
	if err != nil {
		return err
	}
	sunDir, err := sunDirection(opts)
	if err != nil {
		return err
	}

	params, camera, err := selected.Build(planet, scene.Options{Width: opts.Width, Height: opts.Height, SunDir: sunDir})
	if err != nil {
		return err
	}
	fmt.Printf("Using scene %s on %s, sun elevation %.1f degrees, %s model\n",
		selected.ID, planet.Name, sun.Elevation(params.LightDir()), opts.Model)

	sky, err := createSky(ctx, opts, params, os.Stderr)
	if err != nil {
		return err
	}

	config := renderer.DefaultRenderConfig()
	config.NumWorkers = opts.Workers
	config.SamplesPerAxis = opts.Samples
	config.Progress = os.Stderr

	sr, err := renderer.NewSkyRenderer(sky, camera, params.PlanetRadius(), config, renderer.NewDefaultLogger())
	if err != nil {
		return err
	}
	fb, stats, err := sr.Render(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Render completed in %v\n", stats.Duration)
	fmt.Printf("Pixels: %d (%d outside the projection, %d ground), mean luminance %.4f, max radiance %.4f\n",
		stats.TotalPixels, stats.EmptyPixels, stats.GroundPixels, stats.MeanLuminance, stats.MaxRadiance)

	filename := outputPath(opts, time.Now())
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}

	toneMap := renderer.DefaultToneMapConfig()
	toneMap.Exposure = opts.Exposure
	toneMap.FlipVertical = opts.Flip
	if err := fb.SavePNG(filename, toneMap); err != nil {
		return err
	}
	fmt.Printf("Render saved as %s\n", filename)

	if opts.EXR {
		exrName := strings.TrimSuffix(filename, filepath.Ext(filename)) + ".exr"
		if err := fb.SaveEXR(exrName); err != nil {
			return err
		}
		fmt.Printf("Radiance saved as %s\n", exrName)
	}
	return nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
