package server

import (
	"math"
	"net/http"
	"strconv"

	"github.com/df07/go-sky-scattering/pkg/atmosphere"
	"github.com/df07/go-sky-scattering/pkg/core"
	"github.com/df07/go-sky-scattering/pkg/geometry"
	"github.com/df07/go-sky-scattering/pkg/renderer"
	"github.com/lucasb-eyer/go-colorful"
)

// InspectResponse represents the JSON response for pixel inspection
type InspectResponse struct {
	HasRay          bool       `json:"hasRay"` // false outside the fisheye disk
	Direction       [3]float64 `json:"direction"`
	Elevation       float64    `json:"elevation"`     // view elevation above the local horizon, degrees
	SunSeparation   float64    `json:"sunSeparation"` // angle between view and sun, degrees
	HitsAtmosphere  bool       `json:"hitsAtmosphere"`
	AtmosphereEntry float64    `json:"atmosphereEntry"` // km along the ray, 0 when inside
	AtmosphereExit  float64    `json:"atmosphereExit"`  // km along the ray
	HitsGround      bool       `json:"hitsGround"`
	GroundDistance  float64    `json:"groundDistance"` // km along the ray
	Radiance        [3]float64 `json:"radiance"`
	Color           string     `json:"color"` // tone mapped hex colour
}

// inspectPixel casts the centre ray of a pixel and integrates the sky along it
func inspectPixel(camera *renderer.Camera, params atmosphere.Parameters, sky core.SkyModel, pixelX, pixelY int, exposure float64) InspectResponse {
	ray, ok := camera.GetRay(float64(pixelX)+0.5, float64(pixelY)+0.5)
	if !ok {
		return InspectResponse{HasRay: false}
	}

	toKm := func(t float64) float64 { return t / params.ScalingFactor() / 1000 }
	dir := ray.Direction
	up := ray.Origin.Normalize()

	resp := InspectResponse{
		HasRay:        true,
		Direction:     [3]float64{dir.X, dir.Y, dir.Z},
		Elevation:     90 - degrees(math.Acos(clamp(dir.Dot(up)))),
		SunSeparation: degrees(math.Acos(clamp(dir.Dot(params.LightDir())))),
	}

	tMax := math.Inf(1)
	if hit, t0, t1 := geometry.IntersectSphere(ray.Origin, dir, params.PlanetRadius()); hit && t1 > 0 {
		tMax = math.Max(0, t0)
		resp.HitsGround = true
		resp.GroundDistance = toKm(tMax)
	}

	if hit, t0, t1 := geometry.IntersectSphere(ray.Origin, dir, params.AtmosphereRadius()); hit {
		resp.HitsAtmosphere = true
		resp.AtmosphereEntry = toKm(math.Max(0, t0))
		resp.AtmosphereExit = toKm(t1)
	}

	radiance := sky.Evaluate(ray, 0, tMax)
	resp.Radiance = [3]float64{radiance.X, radiance.Y, radiance.Z}

	mapped := renderer.ToneMap(radiance, exposure, renderer.DefaultToneMapConfig().Gamma)
	resp.Color = colorful.Color{R: mapped.X, G: mapped.Y, B: mapped.Z}.Clamped().Hex()

	return resp
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

func clamp(x float64) float64 {
	return math.Max(-1, math.Min(1, x))
}

// handleInspect handles pixel inspection requests
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseRenderRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid scene parameters: "+err.Error())
		return
	}

	pixelX, err := strconv.Atoi(r.URL.Query().Get("x"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid x coordinate")
		return
	}
	pixelY, err := strconv.Atoi(r.URL.Query().Get("y"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid y coordinate")
		return
	}

	pipeline, err := s.setupRenderingPipeline(req, logLogger{})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	cfg := pipeline.Camera.Config()
	if pixelX < 0 || pixelX >= cfg.Width || pixelY < 0 || pixelY >= cfg.Height {
		writeError(w, http.StatusBadRequest, "Pixel coordinates out of bounds")
		return
	}

	writeJSON(w, http.StatusOK, inspectPixel(pipeline.Camera, pipeline.Params, pipeline.Sky, pixelX, pixelY, req.Exposure))
}
