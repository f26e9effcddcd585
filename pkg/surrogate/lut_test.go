package surrogate

import (
	"bytes"
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/df07/go-sky-scattering/pkg/atmosphere"
	"github.com/df07/go-sky-scattering/pkg/core"
	"gonum.org/v1/gonum/floats/scalar"
)

func earthParameters(t *testing.T) atmosphere.Parameters {
	t.Helper()
	p, err := atmosphere.NewParameters(atmosphere.Earth, core.NewVec3(0, 1, 0))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	return p
}

// smallLUT has 30 degree sun steps and 15 degree view steps
func smallLUT(t *testing.T, p atmosphere.Parameters) *LUT {
	t.Helper()
	config := PrecomputeConfig{
		HeightSamples:    4,
		SunAngleSamples:  7,
		ViewAngleSamples: 13,
		ViewSamples:      atmosphere.DefaultViewSamples,
		LightSamples:     atmosphere.DefaultLightSamples,
		NumWorkers:       2,
	}
	lut, err := Precompute(context.Background(), p, config)
	if err != nil {
		t.Fatalf("Precompute failed: %v", err)
	}
	return lut
}

// gridAngle reproduces the angle of table index i on an n sample axis
func gridAngle(i, n int) float64 {
	return math.Pi * float64(i) / float64(n-1)
}

func TestNewLUT_RejectsTinyAxes(t *testing.T) {
	if _, err := NewLUT(1, 4, 4); err == nil {
		t.Error("Expected error for a single height sample")
	}
	if _, err := NewLUT(2, 2, 2); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestLUT_SampleInterpolates(t *testing.T) {
	lut, err := NewLUT(2, 2, 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// Value equals h + 2s + 4v at every corner so interpolation is exact
	for h := 0; h < 2; h++ {
		for s := 0; s < 2; s++ {
			for v := 0; v < 2; v++ {
				x := float64(h + 2*s + 4*v)
				lut.Set(h, s, v, Texel{x, x, x, x})
			}
		}
	}

	tests := []struct {
		h, s, v  float64
		expected float64
	}{
		{0, 0, 0, 0},
		{1, 1, 1, 7},
		{0.5, 0, 0, 0.5},
		{0.5, 0.5, 0.5, 3.5},
		{0.25, 1, 0.75, 0.25 + 2 + 3},
		{-3, 0, 0, 0}, // clamped low
		{9, 9, 9, 7},  // clamped high
		{math.NaN(), 0, 0, 0},
	}

	for _, tt := range tests {
		got := lut.Sample(tt.h, tt.s, tt.v)
		if math.Abs(got[0]-tt.expected) > 1e-12 {
			t.Errorf("Sample(%v, %v, %v): expected %v, got %v", tt.h, tt.s, tt.v, tt.expected, got[0])
		}
	}
}

func TestPrecompute_MatchesIntegratorAtGridPoints(t *testing.T) {
	p := earthParameters(t)
	lut := smallLUT(t, p)

	origin := core.NewVec3(0, p.PlanetRadius(), 0)
	sun, view := gridAngle(1, 7), gridAngle(4, 13)
	dir := core.NewVec3(math.Sin(view), math.Cos(view), 0)
	light := core.NewVec3(math.Sin(sun), math.Cos(sun), 0)

	s, ok := atmosphere.SingleScattering(p.WithLightDir(light), origin, dir, 0, math.Inf(1),
		atmosphere.DefaultViewSamples, atmosphere.DefaultLightSamples)
	if !ok {
		t.Fatal("Expected the view ray to be inside the atmosphere")
	}

	got := lut.At(0, 1, 4)
	if got.Rayleigh() != s.Rayleigh || got[3] != s.Mie.X {
		t.Errorf("Expected texel %v to equal the integrator output %v / %v", got, s.Rayleigh, s.Mie.X)
	}
}

func TestPrecompute_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Precompute(ctx, earthParameters(t), DefaultPrecomputeConfig()); err == nil {
		t.Error("Expected error from cancelled precompute")
	}
}

func TestPrecompute_ReportsProgress(t *testing.T) {
	var buf bytes.Buffer
	config := PrecomputeConfig{
		HeightSamples: 2, SunAngleSamples: 2, ViewAngleSamples: 2,
		ViewSamples: 4, LightSamples: 2, NumWorkers: 1, Progress: &buf,
	}
	if _, err := Precompute(context.Background(), earthParameters(t), config); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("Expected progress output")
	}
}

func TestLookupSky_MatchesIntegratorAtGridPoint(t *testing.T) {
	p := earthParameters(t)
	lut := smallLUT(t, p)

	sun, view := gridAngle(1, 7), gridAngle(4, 13)
	light := core.NewVec3(math.Sin(sun), math.Cos(sun), 0)
	ray := core.NewRay(core.NewVec3(0, p.PlanetRadius(), 0), core.NewVec3(math.Sin(view), math.Cos(view), 0))

	sky, err := NewLookupSky(lut, p)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	got := sky.WithLightDir(light).Evaluate(ray, 0, math.Inf(1))
	want := atmosphere.ComputeRadiance(p.WithLightDir(light), ray.Origin, ray.Direction, 0, math.Inf(1))

	// Only the Mie reconstruction differs from the analytic result
	for i, pair := range [][2]float64{{got.X, want.X}, {got.Y, want.Y}, {got.Z, want.Z}} {
		if !scalar.EqualWithinRel(pair[0], pair[1], 0.02) {
			t.Errorf("channel %d: expected %f, got %f", i, pair[1], pair[0])
		}
	}
}

func TestLookupSky_MissIsBlack(t *testing.T) {
	p := earthParameters(t)
	sky, err := NewLookupSky(smallLUT(t, p), p)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	ray := core.NewRay(core.NewVec3(0, 5, 0), core.NewVec3(1, 0, 0))
	if got := sky.Evaluate(ray, 0, math.Inf(1)); got != (core.Vec3{}) {
		t.Errorf("Expected zero radiance for a miss, got %v", got)
	}
}

func TestNewLookupSky_RejectsEmpty(t *testing.T) {
	if _, err := NewLookupSky(nil, earthParameters(t)); err == nil {
		t.Error("Expected error for a nil table")
	}
}

func TestLUT_TextRoundTrip(t *testing.T) {
	p := earthParameters(t)
	lut := smallLUT(t, p)

	var buf bytes.Buffer
	if _, err := lut.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "4 7 13\n") {
		t.Errorf("Unexpected header: %q", strings.SplitN(buf.String(), "\n", 2)[0])
	}

	loaded, err := ReadLUT(&buf)
	if err != nil {
		t.Fatalf("ReadLUT failed: %v", err)
	}
	assertSameLUT(t, lut, loaded)
}

func TestLUT_FileRoundTrip(t *testing.T) {
	p := earthParameters(t)
	lut := smallLUT(t, p)
	dir := t.TempDir()

	for _, name := range []string{"earth.lut", "earth.lut.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := SaveLUT(path, lut); err != nil {
				t.Fatalf("SaveLUT failed: %v", err)
			}
			loaded, err := LoadLUT(path)
			if err != nil {
				t.Fatalf("LoadLUT failed: %v", err)
			}
			assertSameLUT(t, lut, loaded)
		})
	}
}

func TestLUT_MatchesPlanetAfterRoundTrip(t *testing.T) {
	for _, planet := range []atmosphere.Planet{atmosphere.Earth, atmosphere.Venus, atmosphere.Mars, atmosphere.Im3} {
		t.Run(planet.Name, func(t *testing.T) {
			lut, err := NewLUT(2, 2, 2)
			if err != nil {
				t.Fatalf("NewLUT failed: %v", err)
			}
			lut.PlanetRadius = planet.Radius
			lut.AtmosphereRadius = planet.AtmosphereRadius()

			var buf bytes.Buffer
			if _, err := lut.WriteTo(&buf); err != nil {
				t.Fatalf("WriteTo failed: %v", err)
			}
			loaded, err := ReadLUT(&buf)
			if err != nil {
				t.Fatalf("ReadLUT failed: %v", err)
			}

			if !loaded.MatchesPlanet(planet) {
				t.Errorf("Expected reloaded table (%g, %g) to match %s", loaded.PlanetRadius, loaded.AtmosphereRadius, planet.Name)
			}
			other := atmosphere.Earth
			if planet.Name == atmosphere.Earth.Name {
				other = atmosphere.Mars
			}
			if loaded.MatchesPlanet(other) {
				t.Errorf("Expected %s table not to match %s", planet.Name, other.Name)
			}
		})
	}
}

func TestReadLUT_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"bad header", "a b c"},
		{"tiny axis", "1 2 2"},
		{"truncated", "2 2 2\n0 0 0 1 1.01 0.1 0.2 0.3 0.4\n"},
		{"bad value", "2 2 2\n0 0 0 1 1.01 x 0.2 0.3 0.4\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadLUT(strings.NewReader(tt.input)); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func assertSameLUT(t *testing.T, want, got *LUT) {
	t.Helper()
	if got.Heights != want.Heights || got.SunAngles != want.SunAngles || got.ViewAngles != want.ViewAngles {
		t.Fatalf("Expected dimensions %dx%dx%d, got %dx%dx%d",
			want.Heights, want.SunAngles, want.ViewAngles, got.Heights, got.SunAngles, got.ViewAngles)
	}
	for i := range want.data {
		if got.data[i] != want.data[i] {
			t.Fatalf("texel %d: expected %v, got %v", i, want.data[i], got.data[i])
		}
	}
	if !scalar.EqualWithinRel(got.AtmosphereRadius, want.AtmosphereRadius, 1e-12) {
		t.Errorf("Expected atmosphere radius %f, got %f", want.AtmosphereRadius, got.AtmosphereRadius)
	}
}
