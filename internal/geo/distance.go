// Package geo provides the distance functions used both as edge-weight
// fallback and as search heuristic.
package geo

import (
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// Metric measures the distance between two points. Implementations must be
// pure and never return a negative value.
type Metric interface {
	// Name returns the config identifier of the metric.
	Name() string

	// Distance returns the distance between a and b.
	Distance(a, b orb.Point) float64

	// Bound returns a coordinate box holding every point within dist of p.
	Bound(p orb.Point, dist float64) orb.Bound
}

// MeanEarthRadius is the mean Earth radius in meters. Road lengths from
// OSM-derived data use it, so the heuristic must not exceed them.
const MeanEarthRadius = 6371000.0

// Haversine is the great-circle distance in meters between lon/lat points
// on a sphere of MeanEarthRadius.
type Haversine struct{}

// Name returns "haversine".
func (Haversine) Name() string { return "haversine" }

// Distance returns the great-circle distance in meters.
func (Haversine) Distance(a, b orb.Point) float64 {
	// orb measures on the equatorial radius.
	return orbgeo.DistanceHaversine(a, b) * MeanEarthRadius / orb.EarthRadius
}

// Bound returns the lon/lat box of the spherical cap of radius dist around
// p. Caps that touch a pole or cross the antimeridian span all longitudes.
func (Haversine) Bound(p orb.Point, dist float64) orb.Bound {
	ang := dist/MeanEarthRadius*(1+1e-9) + 1e-12
	latDelta := ang * 180 / math.Pi
	minLat, maxLat := p[1]-latDelta, p[1]+latDelta
	full := orb.Bound{
		Min: orb.Point{-180, math.Max(minLat, -90)},
		Max: orb.Point{180, math.Min(maxLat, 90)},
	}
	if ang >= math.Pi/2 || minLat <= -90 || maxLat >= 90 {
		return full
	}

	s := math.Sin(ang) / math.Cos(p[1]*math.Pi/180)
	if s >= 1 {
		return full
	}
	lonDelta := math.Asin(s) * 180 / math.Pi
	if p[0]-lonDelta < -180 || p[0]+lonDelta > 180 {
		return full
	}
	return orb.Bound{
		Min: orb.Point{p[0] - lonDelta, minLat},
		Max: orb.Point{p[0] + lonDelta, maxLat},
	}
}

// Planar is the straight-line distance between points in a local x/y frame.
type Planar struct{}

// Name returns "planar".
func (Planar) Name() string { return "planar" }

// Distance returns the Euclidean distance.
func (Planar) Distance(a, b orb.Point) float64 {
	return planar.Distance(a, b)
}

// Bound returns the square of half-width dist around p.
func (Planar) Bound(p orb.Point, dist float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{p[0] - dist, p[1] - dist},
		Max: orb.Point{p[0] + dist, p[1] + dist},
	}
}

// ParseMetric resolves a metric from its config name.
func ParseMetric(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "haversine", "greatcircle", "great-circle":
		return Haversine{}, nil
	case "planar", "euclidean":
		return Planar{}, nil
	default:
		return nil, fmt.Errorf("unknown distance metric %q (use: haversine, planar)", name)
	}
}
