package renderer

import (
	"fmt"
	"math"

	"github.com/df07/go-sky-scattering/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/mrjoshuak/go-openexr/exr"
)

// Projection selects how image coordinates map to view directions
type Projection int

const (
	// ProjectionPerspective is a pinhole camera with a vertical field of view
	ProjectionPerspective Projection = iota
	// ProjectionFisheye maps the inscribed disk to the hemisphere around the camera's up axis
	ProjectionFisheye
	// ProjectionLatLong covers the full sphere in the OpenEXR lat-long layout, in world space
	ProjectionLatLong
)

var projectionNames = map[Projection]string{
	ProjectionPerspective: "perspective",
	ProjectionFisheye:     "fisheye",
	ProjectionLatLong:     "latlong",
}

func (p Projection) String() string {
	if name, ok := projectionNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Projection(%d)", int(p))
}

// ParseProjection converts a projection name to its value
func ParseProjection(name string) (Projection, error) {
	for p, n := range projectionNames {
		if n == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown projection %q (want perspective, fisheye or latlong)", name)
}

// CameraConfig describes a camera in normalized scene units. Angles are in
// degrees; yaw 0 looks toward -Z and positive pitch looks up.
type CameraConfig struct {
	Position   core.Vec3
	Yaw        float64
	Pitch      float64
	VFov       float64
	Width      int
	Height     int
	Projection Projection
}

// Camera generates primary rays for the sky renderer
type Camera struct {
	config        CameraConfig
	forward       core.Vec3
	cameraToWorld mgl64.Mat4
	tanHalfFov    float64
	aspectRatio   float64
}

// NewCamera validates the configuration and builds the camera-to-world transform
func NewCamera(config CameraConfig) (*Camera, error) {
	if config.Width <= 0 || config.Height <= 0 {
		return nil, fmt.Errorf("camera resolution must be positive, got %dx%d", config.Width, config.Height)
	}
	if config.Projection == ProjectionPerspective && (config.VFov <= 0 || config.VFov >= 180) {
		return nil, fmt.Errorf("vertical field of view must be in (0, 180), got %f", config.VFov)
	}
	if math.Abs(config.Pitch) >= 90 {
		return nil, fmt.Errorf("pitch must be in (-90, 90), got %f", config.Pitch)
	}
	if _, ok := projectionNames[config.Projection]; !ok {
		return nil, fmt.Errorf("unknown projection %v", config.Projection)
	}

	yaw := mgl64.DegToRad(-90 - config.Yaw)
	pitch := mgl64.DegToRad(config.Pitch)
	forward := core.NewVec3(
		math.Cos(yaw)*math.Cos(pitch),
		math.Sin(pitch),
		math.Sin(yaw)*math.Cos(pitch),
	).Normalize()

	eye := toMgl(config.Position)
	view := mgl64.LookAtV(eye, eye.Add(toMgl(forward)), mgl64.Vec3{0, 1, 0})

	return &Camera{
		config:        config,
		forward:       forward,
		cameraToWorld: view.Inv(),
		tanHalfFov:    math.Tan(mgl64.DegToRad(config.VFov * 0.5)),
		aspectRatio:   float64(config.Width) / float64(config.Height),
	}, nil
}

// Config returns the configuration the camera was built from
func (c *Camera) Config() CameraConfig {
	return c.config
}

// Forward returns the unit viewing direction
func (c *Camera) Forward() core.Vec3 {
	return c.forward
}

// GetRay returns the primary ray through image position (x, y), measured in
// pixels from the top-left corner; pixel centres are at +0.5. ok is false
// where the projection has no ray, outside the fisheye disk.
func (c *Camera) GetRay(x, y float64) (ray core.Ray, ok bool) {
	var dir core.Vec3

	switch c.config.Projection {
	case ProjectionFisheye:
		fx := 2*x/float64(c.config.Width-1) - 1
		fy := 2*y/float64(c.config.Height-1) - 1
		z2 := fx*fx + fy*fy
		if z2 > 1 {
			return core.Ray{}, false
		}
		phi := math.Atan2(fy, fx)
		theta := math.Acos(1 - z2)
		dir = c.toWorld(core.NewVec3(math.Sin(theta)*math.Cos(phi), math.Cos(theta), math.Sin(theta)*math.Sin(phi)))

	case ProjectionLatLong:
		dw := exr.Box2i{Max: exr.V2i{X: int32(c.config.Width - 1), Y: int32(c.config.Height - 1)}}
		d := exr.DirectionFromLatLongPixel(dw, float32(x-0.5), float32(y-0.5))
		dir = core.NewVec3(float64(d.X), float64(d.Y), float64(d.Z)).Normalize()

	default:
		px := (2*(x/float64(c.config.Width)) - 1) * c.aspectRatio * c.tanHalfFov
		py := (1 - 2*(y/float64(c.config.Height))) * c.tanHalfFov
		dir = c.toWorld(core.NewVec3(px, py, -1))
	}

	return core.NewRay(c.config.Position, dir), true
}

// toWorld rotates a camera-space direction into the scene and normalizes it
func (c *Camera) toWorld(v core.Vec3) core.Vec3 {
	return fromMgl(mgl64.TransformNormal(toMgl(v), c.cameraToWorld)).Normalize()
}

func toMgl(v core.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

func fromMgl(v mgl64.Vec3) core.Vec3 {
	return core.NewVec3(v[0], v[1], v[2])
}
