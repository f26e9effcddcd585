package scene

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/df07/go-sky-scattering/pkg/core"
	"github.com/df07/go-sky-scattering/pkg/renderer"
)

// SceneFileExt is the extension of user scene files
const SceneFileExt = ".scene"

// SceneInfo represents a scene with its metadata
type SceneInfo struct {
	ID          string  `json:"id"`          // Unique identifier
	Name        string  `json:"name"`        // Scene name
	DisplayName string  `json:"displayName"` // UI display name
	Description string  `json:"description"` // Optional description
	Group       string  `json:"group"`       // Grouping category
	Type        string  `json:"type"`        // "builtin" or "file"
	FilePath    string  `json:"filePath"`    // Path to the scene file (file type only)
	Projection  string  `json:"projection"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	SunAngle    float64 `json:"sunAngle"`
}

// SceneGroup represents a group of related scenes
type SceneGroup struct {
	Name   string      `json:"name"`
	Scenes []SceneInfo `json:"scenes"`
}

// ScenesResponse represents the complete response for /api/scenes
type ScenesResponse struct {
	Groups []SceneGroup `json:"groups"`
}

// Info returns the listing metadata for the scene
func (s Scene) Info() SceneInfo {
	name := s.Name
	if name == "" {
		name = titleCase(s.ID)
	}
	return SceneInfo{
		ID:          s.ID,
		Name:        name,
		DisplayName: name,
		Description: s.Description,
		Group:       s.Group,
		Type:        "builtin",
		Projection:  s.Projection.String(),
		Width:       s.Width,
		Height:      s.Height,
		SunAngle:    s.SunAngle,
	}
}

// Resolve returns the built-in scene with the given ID, or parses ref as a
// scene file when it ends in .scene
func Resolve(ref string) (Scene, error) {
	if strings.HasSuffix(ref, SceneFileExt) {
		return ParseSceneFile(ref)
	}
	return Lookup(ref)
}

// ListSceneFiles scans dir for .scene files. A missing directory yields an empty list.
func ListSceneFiles(dir string) ([]Scene, error) {
	if _, err := os.Stat(dir); err != nil {
		return []Scene{}, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*"+SceneFileExt))
	if err != nil {
		return nil, fmt.Errorf("failed to scan scenes directory: %w", err)
	}

	var scenes []Scene
	for _, filePath := range files {
		s, err := ParseSceneFile(filePath)
		if err != nil {
			// Log warning but continue processing other files
			fmt.Printf("Warning: failed to parse scene %s: %v\n", filePath, err)
			continue
		}
		scenes = append(scenes, s)
	}

	sort.Slice(scenes, func(i, j int) bool {
		return scenes[i].ID < scenes[j].ID
	})
	return scenes, nil
}

// ParseSceneFile reads a scene file. Header comments carry the metadata
// (# Scene:, # Description:, # Group:), the remaining lines are directives:
//
//	projection perspective|fisheye|latlong
//	size <width> <height>
//	fov <degrees>
//	yaw <degrees>
//	pitch <degrees>
//	offset <x> <y> <z>     metres, positive y moves down
//	sun-angle <degrees>    zenith angle
//
// Missing directives keep a 640x480 perspective camera with a 60 degree field
// of view and the sun overhead.
func ParseSceneFile(filePath string) (Scene, error) {
	filename := filepath.Base(filePath)
	nameWithoutExt := strings.TrimSuffix(filename, filepath.Ext(filename))

	s := Scene{
		ID:         "file:" + nameWithoutExt,
		Name:       titleCase(nameWithoutExt),
		Group:      "Scene Files",
		Width:      640,
		Height:     480,
		Projection: renderer.ProjectionPerspective,
		VFov:       60,
	}

	file, err := os.Open(filePath)
	if err != nil {
		return Scene{}, fmt.Errorf("failed to open scene file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "#") {
			content := strings.TrimSpace(strings.TrimPrefix(line, "#"))
			if strings.HasPrefix(content, "Scene:") {
				s.Name = strings.TrimSpace(strings.TrimPrefix(content, "Scene:"))
			} else if strings.HasPrefix(content, "Description:") {
				s.Description = strings.TrimSpace(strings.TrimPrefix(content, "Description:"))
			} else if strings.HasPrefix(content, "Group:") {
				s.Group = strings.TrimSpace(strings.TrimPrefix(content, "Group:"))
			}
			continue
		}

		if err := s.applyDirective(strings.Fields(line)); err != nil {
			return Scene{}, fmt.Errorf("%s:%d: %w", filename, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return Scene{}, fmt.Errorf("failed to read scene file: %w", err)
	}
	return s, nil
}

func (s *Scene) applyDirective(fields []string) error {
	key, args := fields[0], fields[1:]

	want := map[string]int{
		"projection": 1, "size": 2, "fov": 1, "yaw": 1,
		"pitch": 1, "offset": 3, "sun-angle": 1,
	}
	n, known := want[key]
	if !known {
		return fmt.Errorf("unknown directive %q", key)
	}
	if len(args) != n {
		return fmt.Errorf("%s takes %d argument(s), got %d", key, n, len(args))
	}

	if key == "projection" {
		p, err := renderer.ParseProjection(args[0])
		if err != nil {
			return err
		}
		s.Projection = p
		return nil
	}

	values := make([]float64, n)
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return fmt.Errorf("%s: invalid number %q", key, a)
		}
		values[i] = v
	}

	switch key {
	case "size":
		if values[0] < 1 || values[1] < 1 || values[0] != float64(int(values[0])) || values[1] != float64(int(values[1])) {
			return fmt.Errorf("size must be two positive integers, got %s %s", args[0], args[1])
		}
		s.Width, s.Height = int(values[0]), int(values[1])
	case "fov":
		s.VFov = values[0]
	case "yaw":
		s.Yaw = values[0]
	case "pitch":
		s.Pitch = values[0]
	case "offset":
		s.Offset = core.NewVec3(values[0], values[1], values[2])
	case "sun-angle":
		s.SunAngle = values[0]
	}
	return nil
}

// ListAllScenes returns the built-in scenes and any scene files in dir,
// grouped by category. Built-in groups come first in preset order, the rest
// alphabetically.
func ListAllScenes(dir string) (ScenesResponse, error) {
	var response ScenesResponse

	var allScenes []SceneInfo
	var builtInGroups []string
	seen := make(map[string]bool)
	for _, s := range presets {
		allScenes = append(allScenes, s.Info())
		if !seen[s.Group] {
			seen[s.Group] = true
			builtInGroups = append(builtInGroups, s.Group)
		}
	}

	if dir != "" {
		files, err := ListSceneFiles(dir)
		if err != nil {
			return response, fmt.Errorf("failed to list scene files: %w", err)
		}
		for _, s := range files {
			info := s.Info()
			info.Type = "file"
			info.FilePath = filepath.Join(dir, strings.TrimPrefix(s.ID, "file:")+SceneFileExt)
			allScenes = append(allScenes, info)
		}
	}

	// Group scenes by their Group field
	groupMap := make(map[string][]SceneInfo)
	for _, info := range allScenes {
		groupMap[info.Group] = append(groupMap[info.Group], info)
	}

	var otherGroups []string
	for groupName := range groupMap {
		if !seen[groupName] {
			otherGroups = append(otherGroups, groupName)
		}
	}
	sort.Strings(otherGroups)

	for _, groupName := range append(builtInGroups, otherGroups...) {
		response.Groups = append(response.Groups, SceneGroup{
			Name:   groupName,
			Scenes: groupMap[groupName],
		})
	}

	return response, nil
}

// titleCase converts a filename-style string to title case
// e.g., "surface_view_dusk" -> "Surface View Dusk"
func titleCase(s string) string {
	// Replace hyphens and underscores with spaces
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "_", " ")

	// Title case each word
	words := strings.Fields(s)
	for i, word := range words {
		if len(word) > 0 {
			words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
		}
	}

	return strings.Join(words, " ")
}
