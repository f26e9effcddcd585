package renderer

import (
	"math"
	"testing"

	"github.com/df07/go-sky-scattering/pkg/core"
	"github.com/mrjoshuak/go-openexr/exr"
)

func vecNear(a, b core.Vec3, tol float64) bool {
	return math.Abs(a.X-b.X) < tol && math.Abs(a.Y-b.Y) < tol && math.Abs(a.Z-b.Z) < tol
}

func mustCamera(t *testing.T, config CameraConfig) *Camera {
	t.Helper()
	camera, err := NewCamera(config)
	if err != nil {
		t.Fatalf("NewCamera failed: %v", err)
	}
	return camera
}

func TestCameraForward(t *testing.T) {
	tests := []struct {
		name       string
		yaw, pitch float64
		expected   core.Vec3
	}{
		{"default looks north", 0, 0, core.NewVec3(0, 0, -1)},
		{"yaw 90 looks west", 90, 0, core.NewVec3(-1, 0, 0)},
		{"yaw -90 looks east", -90, 0, core.NewVec3(1, 0, 0)},
		{"pitch up", 0, 25, core.NewVec3(0, math.Sin(25*math.Pi/180), -math.Cos(25*math.Pi/180))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			camera := mustCamera(t, CameraConfig{Yaw: tt.yaw, Pitch: tt.pitch, VFov: 60, Width: 64, Height: 48})
			if !vecNear(camera.Forward(), tt.expected, 1e-9) {
				t.Errorf("Expected forward %v, got %v", tt.expected, camera.Forward())
			}
		})
	}
}

func TestCameraPerspectiveRays(t *testing.T) {
	position := core.NewVec3(0, 1.0002, 0)
	camera := mustCamera(t, CameraConfig{Position: position, Pitch: 25, VFov: 60, Width: 640, Height: 480})

	centre, ok := camera.GetRay(320, 240)
	if !ok {
		t.Fatal("Expected a ray at the image centre")
	}
	if centre.Origin != position {
		t.Errorf("Expected ray origin %v, got %v", position, centre.Origin)
	}
	if !vecNear(centre.Direction, camera.Forward(), 1e-9) {
		t.Errorf("Expected centre ray along forward %v, got %v", camera.Forward(), centre.Direction)
	}

	// Top edge is half the vertical field of view above the centre
	top, _ := camera.GetRay(320, 0)
	if angle := math.Acos(top.Direction.Dot(centre.Direction)) * 180 / math.Pi; math.Abs(angle-30) > 1e-6 {
		t.Errorf("Expected 30 degrees between centre and top edge, got %f", angle)
	}
	if top.Direction.Y <= centre.Direction.Y {
		t.Error("Expected the top of the image to look higher")
	}

	right, _ := camera.GetRay(639.5, 240)
	if right.Direction.X <= 0 {
		t.Errorf("Expected the right of the image to look east, got %v", right.Direction)
	}
	if math.Abs(right.Direction.Length()-1) > 1e-9 {
		t.Errorf("Expected unit directions, got length %f", right.Direction.Length())
	}
}

func TestCameraFisheyeRays(t *testing.T) {
	camera := mustCamera(t, CameraConfig{Yaw: 90, Width: 65, Height: 65, Projection: ProjectionFisheye})

	zenith, ok := camera.GetRay(32, 32)
	if !ok {
		t.Fatal("Expected a ray at the fisheye centre")
	}
	if !vecNear(zenith.Direction, core.NewVec3(0, 1, 0), 1e-9) {
		t.Errorf("Expected the fisheye centre to look at the zenith, got %v", zenith.Direction)
	}

	// The rim of the disk is the horizon
	rim, ok := camera.GetRay(64, 32)
	if !ok {
		t.Fatal("Expected a ray on the fisheye rim")
	}
	if math.Abs(rim.Direction.Y) > 1e-9 {
		t.Errorf("Expected a horizontal ray on the rim, got %v", rim.Direction)
	}

	if _, ok := camera.GetRay(0, 0); ok {
		t.Error("Expected no ray in the corner outside the fisheye disk")
	}
}

func TestCameraLatLongRays(t *testing.T) {
	camera := mustCamera(t, CameraConfig{Width: 32, Height: 16, Projection: ProjectionLatLong})
	dw := exr.Box2i{Max: exr.V2i{X: 31, Y: 15}}

	for _, px := range [][2]int{{1, 1}, {5, 3}, {16, 8}, {30, 14}} {
		ray, ok := camera.GetRay(float64(px[0])+0.5, float64(px[1])+0.5)
		if !ok {
			t.Fatalf("Expected a ray for pixel %v", px)
		}
		x, y := exr.LatLongPixel(dw, exr.V3f{X: float32(ray.Direction.X), Y: float32(ray.Direction.Y), Z: float32(ray.Direction.Z)})
		if x != px[0] || y != px[1] {
			t.Errorf("pixel %v: direction maps back to (%d, %d)", px, x, y)
		}
	}

	top, _ := camera.GetRay(16.5, 0.5)
	if top.Direction.Y < 0.999 {
		t.Errorf("Expected the top row to look straight up, got %v", top.Direction)
	}
}

func TestNewCameraValidation(t *testing.T) {
	tests := []struct {
		name   string
		config CameraConfig
	}{
		{"zero width", CameraConfig{VFov: 60, Width: 0, Height: 10}},
		{"negative height", CameraConfig{VFov: 60, Width: 10, Height: -1}},
		{"zero fov", CameraConfig{VFov: 0, Width: 10, Height: 10}},
		{"fov too wide", CameraConfig{VFov: 180, Width: 10, Height: 10}},
		{"straight up", CameraConfig{VFov: 60, Pitch: 90, Width: 10, Height: 10}},
		{"unknown projection", CameraConfig{VFov: 60, Width: 10, Height: 10, Projection: Projection(9)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCamera(tt.config); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestParseProjection(t *testing.T) {
	for _, p := range []Projection{ProjectionPerspective, ProjectionFisheye, ProjectionLatLong} {
		got, err := ParseProjection(p.String())
		if err != nil || got != p {
			t.Errorf("ParseProjection(%q) = %v, %v", p.String(), got, err)
		}
	}
	if _, err := ParseProjection("cubemap"); err == nil {
		t.Error("Expected error for unknown projection")
	}
}
