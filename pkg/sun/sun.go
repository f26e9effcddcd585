// Package sun produces light directions in the scene frame used by the sky
// renderer: +Y is up at the observer, +X points east and -Z points north.
package sun

import (
	"fmt"
	"math"
	"time"

	"github.com/df07/go-sky-scattering/pkg/core"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/sidereal"
	"github.com/soniakeys/meeus/v3/solar"
)

// FromZenith returns the direction toward a sun tilted zenithDeg degrees away
// from the zenith toward -Z. 0 is noon overhead, 90 is the horizon.
func FromZenith(zenithDeg float64) core.Vec3 {
	a := zenithDeg * math.Pi / 180
	return core.NewVec3(0, math.Cos(a), -math.Sin(a)).Normalize()
}

// FromZenithAzimuth returns the sun direction for a zenith angle and a compass
// azimuth measured clockwise from north, both in degrees.
func FromZenithAzimuth(zenithDeg, azimuthDeg float64) core.Vec3 {
	z := zenithDeg * math.Pi / 180
	az := azimuthDeg * math.Pi / 180
	east := math.Sin(z) * math.Sin(az)
	north := math.Sin(z) * math.Cos(az)
	return core.NewVec3(east, math.Cos(z), -north).Normalize()
}

// Position is an observer on the Earth in degrees
type Position struct {
	Latitude  float64
	Longitude float64 // east positive
}

// Validate checks that the coordinates are in range
func (p Position) Validate() error {
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("latitude %.3f out of range [-90, 90]", p.Latitude)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("longitude %.3f out of range [-180, 180]", p.Longitude)
	}
	return nil
}

// At returns the direction toward the sun seen from pos at time t
func At(t time.Time, pos Position) (core.Vec3, error) {
	if err := pos.Validate(); err != nil {
		return core.Vec3{}, err
	}
	return toLocal(earthFixed(t), pos), nil
}

// earthFixed returns the unit sun vector in Earth-centred Earth-fixed coordinates
func earthFixed(t time.Time) core.Vec3 {
	jd := julian.TimeToJD(t.UTC())

	ra, dec := solar.ApparentEquatorial(jd)
	x := dec.Cos() * ra.Cos()
	y := dec.Cos() * ra.Sin()
	z := dec.Sin()

	// Rotate the inertial frame by the sidereal angle of the instant
	gst := sidereal.Apparent(jd).Angle()
	cosG, sinG := gst.Cos(), gst.Sin()

	return core.NewVec3(x*cosG+y*sinG, -x*sinG+y*cosG, z)
}

// toLocal projects an ECEF direction onto the observer's east/up/north axes
func toLocal(d core.Vec3, pos Position) core.Vec3 {
	lat := pos.Latitude * math.Pi / 180
	lon := pos.Longitude * math.Pi / 180
	sinLat, cosLat := math.Sin(lat), math.Cos(lat)
	sinLon, cosLon := math.Sin(lon), math.Cos(lon)

	east := core.NewVec3(-sinLon, cosLon, 0)
	north := core.NewVec3(-sinLat*cosLon, -sinLat*sinLon, cosLat)
	up := core.NewVec3(cosLat*cosLon, cosLat*sinLon, sinLat)

	return core.NewVec3(d.Dot(east), d.Dot(up), -d.Dot(north)).Normalize()
}

// Elevation returns the angle of dir above the horizon in degrees
func Elevation(dir core.Vec3) float64 {
	return math.Asin(math.Max(-1, math.Min(1, dir.Normalize().Y))) * 180 / math.Pi
}
