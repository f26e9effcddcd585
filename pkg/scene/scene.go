package scene

import (
	"fmt"

	"github.com/df07/go-sky-scattering/pkg/atmosphere"
	"github.com/df07/go-sky-scattering/pkg/core"
	"github.com/df07/go-sky-scattering/pkg/renderer"
	"github.com/df07/go-sky-scattering/pkg/sun"
)

// ObserverAltitude is the camera height above the surface, in metres, before
// the scene offset is applied
const ObserverAltitude = 1000.0

// Scene describes a camera setup and sun elevation. Offsets are in metres and
// are scaled with the planet, so the same scene works for every preset.
type Scene struct {
	ID          string
	Name        string // display name, the title-cased ID when empty
	Description string
	Group       string

	Width      int
	Height     int
	Projection renderer.Projection
	VFov       float64 // degrees, perspective only
	Yaw        float64 // degrees, 0 looks toward -Z
	Pitch      float64 // degrees, positive looks up

	// Offset moves the camera away from the observer point. Positive Y moves
	// the camera down, matching the comparison renders.
	Offset core.Vec3

	SunAngle float64 // sun zenith angle in degrees
}

// Options override parts of a scene at build time. Zero values keep the scene's own settings.
type Options struct {
	Width  int
	Height int
	SunDir core.Vec3
}

// presets are the comparison scenes, in display order
var presets = []Scene{
	{
		ID:          "fisheye_dawn",
		Description: "Whole sky from the ground, sun 45 degrees from zenith",
		Group:       "Fisheye",
		Width:       512,
		Height:      512,
		Projection:  renderer.ProjectionFisheye,
		VFov:        60,
		Yaw:         90,
		SunAngle:    45,
	},
	{
		ID:          "fisheye_dusk",
		Description: "Whole sky from the ground, sun 85 degrees from zenith",
		Group:       "Fisheye",
		Width:       512,
		Height:      512,
		Projection:  renderer.ProjectionFisheye,
		VFov:        60,
		Yaw:         90,
		SunAngle:    85,
	},
	{
		ID:          "space_view",
		Description: "Planet limb seen from orbit with the sun overhead",
		Group:       "Space",
		Width:       640,
		Height:      480,
		Projection:  renderer.ProjectionPerspective,
		VFov:        60,
		Offset:      core.NewVec3(0, 5061e3, 12650e3),
		SunAngle:    0,
	},
	{
		ID:          "surface_view_dawn",
		Description: "Horizon view from the ground, sun 45 degrees from zenith",
		Group:       "Surface",
		Width:       640,
		Height:      480,
		Projection:  renderer.ProjectionPerspective,
		VFov:        60,
		Pitch:       25,
		SunAngle:    45,
	},
	{
		ID:          "surface_view_dusk",
		Description: "Horizon view from the ground, sun 85 degrees from zenith",
		Group:       "Surface",
		Width:       640,
		Height:      480,
		Projection:  renderer.ProjectionPerspective,
		VFov:        60,
		Pitch:       25,
		SunAngle:    85,
	},
	{
		ID:          "panorama_dusk",
		Description: "Full-sphere lat-long panorama, sun 85 degrees from zenith",
		Group:       "Panorama",
		Width:       1024,
		Height:      512,
		Projection:  renderer.ProjectionLatLong,
		SunAngle:    85,
	},
}

// Presets returns a copy of the built-in scenes
func Presets() []Scene {
	out := make([]Scene, len(presets))
	copy(out, presets)
	return out
}

// Names returns the built-in scene IDs in display order
func Names() []string {
	names := make([]string, len(presets))
	for i, s := range presets {
		names[i] = s.ID
	}
	return names
}

// Lookup finds a built-in scene by ID
func Lookup(id string) (Scene, error) {
	for _, s := range presets {
		if s.ID == id {
			return s, nil
		}
	}
	return Scene{}, fmt.Errorf("unknown scene %q", id)
}

// CameraPosition places the camera in normalized units for the given parameters
func (s Scene) CameraPosition(params atmosphere.Parameters) core.Vec3 {
	observer := core.NewVec3(0, params.PlanetRadius()+params.ToNormalized(ObserverAltitude), 0)
	offset := core.NewVec3(s.Offset.X, -s.Offset.Y, s.Offset.Z)
	return observer.Add(offset.Multiply(params.ScalingFactor()))
}

// Build creates the atmosphere parameters and camera for the scene on the given planet
func (s Scene) Build(planet atmosphere.Planet, opts Options) (atmosphere.Parameters, *renderer.Camera, error) {
	sunDir := opts.SunDir
	if sunDir.IsZero() {
		sunDir = sun.FromZenith(s.SunAngle)
	}

	params, err := atmosphere.NewParameters(planet, sunDir)
	if err != nil {
		return atmosphere.Parameters{}, nil, fmt.Errorf("scene %s: %w", s.ID, err)
	}

	width, height := s.Width, s.Height
	if opts.Width > 0 {
		width = opts.Width
	}
	if opts.Height > 0 {
		height = opts.Height
	}

	camera, err := renderer.NewCamera(renderer.CameraConfig{
		Position:   s.CameraPosition(params),
		Yaw:        s.Yaw,
		Pitch:      s.Pitch,
		VFov:       s.VFov,
		Width:      width,
		Height:     height,
		Projection: s.Projection,
	})
	if err != nil {
		return atmosphere.Parameters{}, nil, fmt.Errorf("scene %s: %w", s.ID, err)
	}

	return params, camera, nil
}
