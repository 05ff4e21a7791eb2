// Package geo filters located items against rectangular and polygonal bounds.
package geo

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// ErrInvalidBound is returned for a bound with fewer than two points or a
// point that cannot be parsed.
var ErrInvalidBound = eris.New("geo: invalid bound")

// HasCoordinates is implemented by anything with a position.
type HasCoordinates interface {
	Coordinates() (lat, lng float64)
}

// Pair is a (latitude, longitude) point.
type Pair [2]float64

// Coordinates returns the pair as (lat, lng).
func (p Pair) Coordinates() (float64, float64) { return p[0], p[1] }

// Bound is a rectangle (two points) or a polygon (three or more points).
// Containment is boundary-inclusive.
type Bound struct {
	rect *geom.Bounds
	ring []float64 // closed, x=lng y=lat
}

// NewBound builds a bound from points given as (lat, lng). Two points are
// opposite rectangle corners in any order. Three or more points are the
// polygon ring in order; the ring is closed automatically.
func NewBound(points []Pair) (Bound, error) {
	switch {
	case len(points) < 2:
		return Bound{}, eris.Wrapf(ErrInvalidBound, "need at least 2 points, got %d", len(points))
	case len(points) == 2:
		a, b := points[0], points[1]
		r := geom.NewBounds(geom.XY).Set(
			min(a[1], b[1]), min(a[0], b[0]),
			max(a[1], b[1]), max(a[0], b[0]),
		)
		return Bound{rect: r}, nil
	}

	ring := make([]float64, 0, 2*len(points)+2)
	for _, p := range points {
		ring = append(ring, p[1], p[0])
	}
	first, last := points[0], points[len(points)-1]
	if first != last {
		ring = append(ring, first[1], first[0])
	}
	return Bound{ring: ring}, nil
}

// Contains reports whether (lat, lng) lies inside or on the bound.
func (b Bound) Contains(lat, lng float64) bool {
	c := geom.Coord{lng, lat}
	if b.rect != nil {
		return b.rect.OverlapsPoint(geom.XY, c)
	}
	if len(b.ring) == 0 {
		return false
	}
	return xy.IsPointInRing(geom.XY, c, b.ring)
}

// IsRect reports whether the bound is a rectangle.
func (b Bound) IsRect() bool { return b.rect != nil }

// ParsePairs parses "lat,lng;lat,lng;..." into points.
func ParsePairs(s string) ([]Pair, error) {
	var out []Pair
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ",")
		if len(fields) != 2 {
			return nil, eris.Wrapf(ErrInvalidBound, "point %q: want lat,lng", part)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		if err != nil {
			return nil, eris.Wrapf(ErrInvalidBound, "point %q: latitude", part)
		}
		lng, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return nil, eris.Wrapf(ErrInvalidBound, "point %q: longitude", part)
		}
		out = append(out, Pair{lat, lng})
	}
	return out, nil
}

// ParseBBox parses "minLat,minLng,maxLat,maxLng" into a two-point bound.
func ParseBBox(s string) ([]Pair, error) {
	fields := strings.Split(s, ",")
	if len(fields) != 4 {
		return nil, eris.Wrapf(ErrInvalidBound, "bbox %q: want minLat,minLng,maxLat,maxLng", s)
	}
	var v [4]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, eris.Wrapf(ErrInvalidBound, "bbox %q: value %q", s, f)
		}
		v[i] = n
	}
	return []Pair{{v[0], v[1]}, {v[2], v[3]}}, nil
}
