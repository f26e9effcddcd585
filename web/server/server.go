package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/df07/go-sky-scattering/pkg/atmosphere"
	"github.com/df07/go-sky-scattering/pkg/core"
	"github.com/df07/go-sky-scattering/pkg/renderer"
	"github.com/df07/go-sky-scattering/pkg/scene"
	"github.com/df07/go-sky-scattering/pkg/sun"
)

// Request limits
const (
	minImageSize = 16
	maxImageSize = 2000
	maxSamples   = 8
)

var errUnknownScene = errors.New("unknown scene")

// Server handles web requests for the sky renderer
type Server struct {
	port      int
	scenesDir string
	mux       *http.ServeMux
}

// NewServer creates a new web server. Scene files in scenesDir are offered
// next to the built-in scenes; an empty dir disables them.
func NewServer(port int, scenesDir string) *Server {
	s := &Server{port: port, scenesDir: scenesDir, mux: http.NewServeMux()}

	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/scenes", s.handleScenes)
	s.mux.HandleFunc("/api/render", s.handleRender)
	s.mux.HandleFunc("/api/render-stream", s.handleRenderStream)
	s.mux.HandleFunc("/api/inspect", s.handleInspect)
	return s
}

// Handler returns the HTTP handler serving all endpoints
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts the web server
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	log.Printf("Starting web server on http://localhost%s", addr)
	return http.ListenAndServe(addr, s.mux)
}

// RenderRequest represents a render request from the client
type RenderRequest struct {
	Scene    string  `json:"scene"`    // Scene ID (e.g., "surface_view_dusk")
	Planet   string  `json:"planet"`   // Planet preset name
	SunAngle float64 `json:"sunAngle"` // Sun zenith angle in degrees, negative keeps the scene's
	Width    int     `json:"width"`    // Image width, 0 keeps the scene's
	Height   int     `json:"height"`   // Image height, 0 keeps the scene's
	Exposure float64 `json:"exposure"` // Tone mapping exposure
	Samples  int     `json:"samples"`  // Sub-pixel samples per axis
}

// RenderingPipeline contains the configured scene, atmosphere and renderer
type RenderingPipeline struct {
	Scene    scene.Scene
	Params   atmosphere.Parameters
	Camera   *renderer.Camera
	Sky      core.SkyModel
	Renderer *renderer.SkyRenderer
}

// logLogger implements core.Logger with the standard logger
type logLogger struct{}

func (logLogger) Printf(format string, args ...interface{}) {
	log.Printf(format, args...)
}

// handleHealth provides a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleScenes lists the built-in scenes and scene files grouped by category
func (s *Server) handleScenes(w http.ResponseWriter, r *http.Request) {
	response, err := scene.ListAllScenes(s.scenesDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, response)
}

// handleRender renders the requested scene and answers with a PNG
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req, err := s.parseRenderRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	pipeline, err := s.setupRenderingPipeline(req, logLogger{})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	fb, stats, err := pipeline.Renderer.Render(r.Context())
	if err != nil {
		log.Printf("Render of %s failed: %v", req.Scene, err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Render error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("X-Render-Duration-Ms", strconv.FormatInt(stats.Duration.Milliseconds(), 10))
	if err := fb.EncodePNG(w, toneMapConfig(req)); err != nil {
		log.Printf("Error writing PNG response: %v", err)
	}
}

// parseRenderRequest parses and validates the query parameters shared by all render endpoints
func (s *Server) parseRenderRequest(r *http.Request) (*RenderRequest, error) {
	values := r.URL.Query()
	req := &RenderRequest{
		Scene:  values.Get("scene"),
		Planet: values.Get("planet"),
	}
	if req.Scene == "" {
		req.Scene = "surface_view_dawn" // Default scene
	}
	if req.Planet == "" {
		req.Planet = "earth"
	}

	var err error
	if req.Width, err = parseSizeParam(values, "width"); err != nil {
		return nil, err
	}
	if req.Height, err = parseSizeParam(values, "height"); err != nil {
		return nil, err
	}
	if req.SunAngle, err = parseFloatParam(values, "sunAngle", -1, 0, 180); err != nil {
		return nil, err
	}
	if req.Exposure, err = parseFloatParam(values, "exposure", 1, 0.01, 100); err != nil {
		return nil, err
	}
	if req.Samples, err = parseIntParam(values, "samples", 1, 1, maxSamples); err != nil {
		return nil, err
	}

	// Performance warning
	if req.Width*req.Height > 800*600 && req.Samples > 2 {
		log.Printf("Render warning: Large image with sub-pixel sampling may render slowly")
	}

	return req, nil
}

// parseSizeParam parses an image dimension, where absent or 0 keeps the scene's
func parseSizeParam(values url.Values, key string) (int, error) {
	v, err := parseIntParam(values, key, 0, 0, maxImageSize)
	if err != nil {
		return 0, err
	}
	if v != 0 && v < minImageSize {
		return 0, fmt.Errorf("%s must be between %d and %d, got: %d", key, minImageSize, maxImageSize, v)
	}
	return v, nil
}

// parseIntParam parses an integer parameter from URL query with validation
func parseIntParam(values url.Values, key string, defaultValue, min, max int) (int, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		if parsed < min || parsed > max {
			return 0, fmt.Errorf("%s must be between %d and %d, got: %d", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

// parseFloatParam parses a float parameter from URL query with validation
func parseFloatParam(values url.Values, key string, defaultValue, min, max float64) (float64, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		if parsed < min || parsed > max {
			return 0, fmt.Errorf("%s must be between %g and %g, got: %g", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

// lookupScene resolves a built-in scene ID or a "file:<name>" scene from the scenes directory
func (s *Server) lookupScene(id string) (scene.Scene, error) {
	if name, ok := strings.CutPrefix(id, "file:"); ok {
		if s.scenesDir == "" || name == "" || filepath.Base(name) != name {
			return scene.Scene{}, fmt.Errorf("%w: %s", errUnknownScene, id)
		}
		sc, err := scene.ParseSceneFile(filepath.Join(s.scenesDir, name+scene.SceneFileExt))
		if err != nil {
			return scene.Scene{}, fmt.Errorf("%w: %v", errUnknownScene, err)
		}
		return sc, nil
	}

	sc, err := scene.Lookup(id)
	if err != nil {
		return scene.Scene{}, fmt.Errorf("%w: %s", errUnknownScene, id)
	}
	return sc, nil
}

// setupRenderingPipeline builds the atmosphere, camera and renderer for a request
func (s *Server) setupRenderingPipeline(req *RenderRequest, logger core.Logger) (*RenderingPipeline, error) {
	sc, err := s.lookupScene(req.Scene)
	if err != nil {
		return nil, err
	}
	planet, err := atmosphere.LookupPlanet(req.Planet)
	if err != nil {
		return nil, err
	}

	opts := scene.Options{Width: req.Width, Height: req.Height}
	if req.SunAngle >= 0 {
		opts.SunDir = sun.FromZenith(req.SunAngle)
	}
	params, camera, err := sc.Build(planet, opts)
	if err != nil {
		return nil, err
	}

	sky := atmosphere.NewIntegrator(params)

	config := renderer.DefaultRenderConfig()
	config.SamplesPerAxis = req.Samples
	sr, err := renderer.NewSkyRenderer(sky, camera, params.PlanetRadius(), config, logger)
	if err != nil {
		return nil, err
	}

	return &RenderingPipeline{
		Scene:    sc,
		Params:   params,
		Camera:   camera,
		Sky:      sky,
		Renderer: sr,
	}, nil
}

func toneMapConfig(req *RenderRequest) renderer.ToneMapConfig {
	config := renderer.DefaultToneMapConfig()
	config.Exposure = req.Exposure
	return config
}

// statusFor maps pipeline errors to HTTP status codes
func statusFor(err error) int {
	if errors.Is(err, errUnknownScene) {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
