package scene

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/df07/go-sky-scattering/pkg/core"
	"github.com/df07/go-sky-scattering/pkg/renderer"
)

func TestTitleCase(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"surface_view_dusk", "Surface View Dusk"},
		{"alpine-dawn", "Alpine Dawn"},
		{"my-custom_scene", "My Custom Scene"},
		{"simple", "Simple"},
		{"UPPER-case", "Upper Case"},
		{"", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			result := titleCase(tc.input)
			if result != tc.expected {
				t.Errorf("titleCase(%q) = %q, want %q", tc.input, result, tc.expected)
			}
		})
	}
}

func writeSceneFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write scene file: %v", err)
	}
	return path
}

func TestParseSceneFile(t *testing.T) {
	dir := t.TempDir()

	testCases := []struct {
		name     string
		content  string
		expected Scene
	}{
		{
			name: "alpine_dawn.scene",
			content: `# Scene: Alpine Dawn
# Description: Low sun over the mountains
# Group: Custom

projection perspective
size 800 600
fov 45
yaw 30
pitch 10
offset 0 -2000 0
sun-angle 80
`,
			expected: Scene{
				ID:          "file:alpine_dawn",
				Name:        "Alpine Dawn",
				Description: "Low sun over the mountains",
				Group:       "Custom",
				Width:       800,
				Height:      600,
				Projection:  renderer.ProjectionPerspective,
				VFov:        45,
				Yaw:         30,
				Pitch:       10,
				Offset:      core.NewVec3(0, -2000, 0),
				SunAngle:    80,
			},
		},
		{
			name:    "all_sky.scene",
			content: "projection fisheye\nsize 256 256\n",
			expected: Scene{
				ID:         "file:all_sky",
				Name:       "All Sky",
				Group:      "Scene Files",
				Width:      256,
				Height:     256,
				Projection: renderer.ProjectionFisheye,
				VFov:       60,
			},
		},
		{
			name:    "empty.scene",
			content: "",
			expected: Scene{
				ID:         "file:empty",
				Name:       "Empty",
				Group:      "Scene Files",
				Width:      640,
				Height:     480,
				Projection: renderer.ProjectionPerspective,
				VFov:       60,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeSceneFile(t, dir, tc.name, tc.content)

			result, err := ParseSceneFile(path)
			if err != nil {
				t.Fatalf("ParseSceneFile() error: %v", err)
			}
			if result != tc.expected {
				t.Errorf("ParseSceneFile() = %+v, want %+v", result, tc.expected)
			}
		})
	}
}

func TestParseSceneFile_Errors(t *testing.T) {
	dir := t.TempDir()

	testCases := []struct {
		name    string
		content string
	}{
		{"unknown_directive", "camera 1 2 3\n"},
		{"missing_argument", "size 640\n"},
		{"bad_number", "fov wide\n"},
		{"fractional_size", "size 640.5 480\n"},
		{"zero_size", "size 0 480\n"},
		{"bad_projection", "projection cylindrical\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeSceneFile(t, dir, tc.name+SceneFileExt, tc.content)
			if _, err := ParseSceneFile(path); err == nil {
				t.Error("Expected parse error, got nil")
			}
		})
	}

	if _, err := ParseSceneFile(filepath.Join(dir, "nonexistent.scene")); err == nil {
		t.Error("Expected error for a missing file")
	}
}

func TestListSceneFiles(t *testing.T) {
	dir := t.TempDir()
	writeSceneFile(t, dir, "b.scene", "sun-angle 30\n")
	writeSceneFile(t, dir, "a.scene", "sun-angle 60\n")
	writeSceneFile(t, dir, "broken.scene", "size x y\n")
	writeSceneFile(t, dir, "notes.txt", "not a scene")

	scenes, err := ListSceneFiles(dir)
	if err != nil {
		t.Fatalf("ListSceneFiles() error: %v", err)
	}
	if len(scenes) != 2 {
		t.Fatalf("Expected 2 valid scenes, got %d", len(scenes))
	}
	if scenes[0].ID != "file:a" || scenes[1].ID != "file:b" {
		t.Errorf("Expected scenes sorted by ID, got %s, %s", scenes[0].ID, scenes[1].ID)
	}

	missing, err := ListSceneFiles(filepath.Join(dir, "missing"))
	if err != nil {
		t.Errorf("ListSceneFiles() on a missing directory: %v", err)
	}
	if missing == nil || len(missing) != 0 {
		t.Errorf("Expected empty slice for a missing directory, got %v", missing)
	}
}

func TestListAllScenes(t *testing.T) {
	response, err := ListAllScenes("")
	if err != nil {
		t.Fatalf("ListAllScenes() error: %v", err)
	}

	expectedGroups := []string{"Fisheye", "Space", "Surface", "Panorama"}
	if len(response.Groups) != len(expectedGroups) {
		t.Fatalf("Expected %d groups, got %d", len(expectedGroups), len(response.Groups))
	}
	for i, name := range expectedGroups {
		if response.Groups[i].Name != name {
			t.Errorf("Group %d = %q, want %q", i, response.Groups[i].Name, name)
		}
	}

	count := 0
	for _, group := range response.Groups {
		for _, info := range group.Scenes {
			count++
			if info.Type != "builtin" {
				t.Errorf("Expected builtin type for %s, got %s", info.ID, info.Type)
			}
			if info.DisplayName == "" || info.Projection == "" {
				t.Errorf("Scene %s is missing display metadata: %+v", info.ID, info)
			}
		}
	}
	if count != len(Names()) {
		t.Errorf("Expected %d scenes, got %d", len(Names()), count)
	}
}

func TestListAllScenes_WithSceneFiles(t *testing.T) {
	dir := t.TempDir()
	writeSceneFile(t, dir, "alpine.scene", "# Group: Custom\nsun-angle 70\n")
	writeSceneFile(t, dir, "backyard.scene", "# Group: Surface\npitch 10\n")

	response, err := ListAllScenes(dir)
	if err != nil {
		t.Fatalf("ListAllScenes() error: %v", err)
	}

	last := response.Groups[len(response.Groups)-1]
	if last.Name != "Custom" || len(last.Scenes) != 1 {
		t.Fatalf("Expected file-only group last, got %+v", last)
	}
	info := last.Scenes[0]
	if info.Type != "file" || info.FilePath != filepath.Join(dir, "alpine.scene") {
		t.Errorf("Unexpected file scene info: %+v", info)
	}
	if !strings.HasPrefix(info.ID, "file:") {
		t.Errorf("File scene ID should start with 'file:': %s", info.ID)
	}

	for _, group := range response.Groups {
		if group.Name != "Surface" {
			continue
		}
		if n := len(group.Scenes); n != 3 {
			t.Errorf("Expected the file scene to join the Surface group, got %d scenes", n)
		}
	}
}

func TestResolve(t *testing.T) {
	s, err := Resolve("space_view")
	if err != nil || s.ID != "space_view" {
		t.Errorf("Resolve(space_view) = %v, %v", s.ID, err)
	}

	path := writeSceneFile(t, t.TempDir(), "night.scene", "sun-angle 120\n")
	s, err = Resolve(path)
	if err != nil {
		t.Fatalf("Resolve(%s): %v", path, err)
	}
	if s.SunAngle != 120 {
		t.Errorf("Expected sun angle from file, got %f", s.SunAngle)
	}

	if _, err := Resolve("nowhere"); err == nil {
		t.Error("Expected error for unknown scene")
	}
}
