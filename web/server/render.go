package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/df07/go-sky-scattering/pkg/core"
	"github.com/df07/go-sky-scattering/pkg/renderer"
	"github.com/df07/go-sky-scattering/pkg/sun"
)

// SSEEvent represents a unified SSE event for thread-safe writing
type SSEEvent struct {
	Type string `json:"type"` // "console", "error", "complete"
	Data string `json:"data"` // JSON-encoded data
}

// Stats represents render statistics
type Stats struct {
	TotalPixels   int     `json:"totalPixels"`
	TotalSamples  int     `json:"totalSamples"`
	EmptyPixels   int     `json:"emptyPixels"`
	GroundPixels  int     `json:"groundPixels"`
	MeanLuminance float64 `json:"meanLuminance"`
	MaxRadiance   float64 `json:"maxRadiance"`
}

// RenderComplete is the final event of a streamed render
type RenderComplete struct {
	Scene        string  `json:"scene"`
	Planet       string  `json:"planet"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	SunElevation float64 `json:"sunElevation"` // degrees above the horizon
	ImageData    string  `json:"imageData"`    // Base64 encoded PNG
	Stats        Stats   `json:"stats"`
	ElapsedMs    int64   `json:"elapsedMs"`
}

// handleRenderStream renders a scene and streams console output followed by
// the finished image via SSE
func (s *Server) handleRenderStream(w http.ResponseWriter, r *http.Request) {
	s.setSSEHeaders(w)

	ctx := r.Context()
	startTime := time.Now()

	// Single writer goroutine owns the response
	sseEventChan := make(chan SSEEvent, 100)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeSSEEvents(ctx, w, sseEventChan)
	}()
	defer func() {
		close(sseEventChan)
		<-writerDone
	}()

	req, err := s.parseRenderRequest(r)
	if err != nil {
		s.sendEvent(ctx, sseEventChan, "error", fmt.Sprintf("Invalid request: %v", err))
		return
	}

	consoleChan, logger := s.setupConsoleLogging()
	consoleDone := make(chan struct{})
	go func() {
		defer close(consoleDone)
		s.streamConsoleMessages(ctx, consoleChan, sseEventChan)
	}()

	fb, stats, pipelineErr := s.renderWithLogger(ctx, req, logger)

	// Rendering is over, so the logger is no longer used
	close(consoleChan)
	<-consoleDone

	if pipelineErr != nil {
		s.sendEvent(ctx, sseEventChan, "error", fmt.Sprintf("Render error: %v", pipelineErr))
		return
	}

	var buf bytes.Buffer
	if err := fb.EncodePNG(&buf, toneMapConfig(req)); err != nil {
		s.sendEvent(ctx, sseEventChan, "error", err.Error())
		return
	}

	complete := RenderComplete{
		Scene:        req.Scene,
		Planet:       req.Planet,
		Width:        fb.Width,
		Height:       fb.Height,
		SunElevation: stats.sunElevation,
		ImageData:    base64.StdEncoding.EncodeToString(buf.Bytes()),
		Stats: Stats{
			TotalPixels:   stats.TotalPixels,
			TotalSamples:  stats.TotalSamples,
			EmptyPixels:   stats.EmptyPixels,
			GroundPixels:  stats.GroundPixels,
			MeanLuminance: stats.MeanLuminance,
			MaxRadiance:   stats.MaxRadiance,
		},
		ElapsedMs: time.Since(startTime).Milliseconds(),
	}

	data, err := json.Marshal(complete)
	if err != nil {
		s.sendEvent(ctx, sseEventChan, "error", err.Error())
		return
	}
	s.sendEvent(ctx, sseEventChan, "complete", string(data))
}

// streamStats carries the render statistics plus request-derived values
type streamStats struct {
	renderer.RenderStats
	sunElevation float64
}

func (s *Server) renderWithLogger(ctx context.Context, req *RenderRequest, logger core.Logger) (*renderer.Framebuffer, streamStats, error) {
	pipeline, err := s.setupRenderingPipeline(req, logger)
	if err != nil {
		return nil, streamStats{}, err
	}

	elevation := sun.Elevation(pipeline.Params.LightDir())
	logger.Printf("Scene %s on %s, sun elevation %.1f degrees\n", pipeline.Scene.ID, req.Planet, elevation)

	fb, stats, err := pipeline.Renderer.Render(ctx)
	if err != nil {
		return nil, streamStats{}, err
	}
	return fb, streamStats{RenderStats: stats, sunElevation: elevation}, nil
}

func (s *Server) setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// setupConsoleLogging creates console channel and web logger for a render
func (s *Server) setupConsoleLogging() (chan ConsoleMessage, core.Logger) {
	consoleChan := make(chan ConsoleMessage, 50)
	renderID := fmt.Sprintf("render-%d", time.Now().UnixNano())
	webLogger := NewWebLogger(renderID, consoleChan)
	return consoleChan, webLogger
}

// sendEvent queues an event unless the client has gone away
func (s *Server) sendEvent(ctx context.Context, sseEventChan chan<- SSEEvent, eventType, data string) {
	select {
	case sseEventChan <- SSEEvent{Type: eventType, Data: data}:
	case <-ctx.Done():
	}
}

// writeSSEEvents handles writing all SSE events in a single goroutine (thread-safe)
func (s *Server) writeSSEEvents(ctx context.Context, w http.ResponseWriter, sseEventChan <-chan SSEEvent) {
	for {
		select {
		case event, ok := <-sseEventChan:
			if !ok {
				// Channel closed
				return
			}

			// Write SSE event
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data); err != nil {
				// Client disconnected during write
				return
			}
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}

		case <-ctx.Done():
			// Client disconnected
			return
		}
	}
}

// streamConsoleMessages forwards logger output as console events until consoleChan is closed
func (s *Server) streamConsoleMessages(ctx context.Context, consoleChan <-chan ConsoleMessage, sseEventChan chan<- SSEEvent) {
	for consoleMsg := range consoleChan {
		data, err := json.Marshal(consoleMsg)
		if err != nil {
			log.Printf("Error marshaling console message: %v", err)
			continue
		}

		select {
		case sseEventChan <- SSEEvent{Type: "console", Data: string(data)}:
		case <-ctx.Done():
		default:
			// Channel full, skip message to avoid blocking
		}
	}
}
