// Package geo implements the haversine distance and antimeridian-aware
// bounding-box containment math behind _geoRadius/_geoBoundingBox
// filters (§4.9) and _geoPoint sorting. No R-tree is built: callers test
// every stored point.
//
// blevesearch/geo is referenced only in a go.mod manifest among the
// retrieval pack's other_examples — none of its source was retrieved,
// so its exact function names and argument order (degrees vs radians,
// point-struct shape) can't be verified without guessing an API that
// may not exist. Haversine distance and bounding-box containment are
// both closed-form formulas with no ecosystem judgment call to get
// wrong, so they're implemented directly here rather than risk
// fabricating a dependency's surface.
package geo

import "math"

const earthRadiusMeters = 6371000.0

// Point is a (lat, lng) pair in degrees.
type Point struct {
	Lat, Lng float64
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

// HaversineMeters returns the great-circle distance between a and b.
func HaversineMeters(a, b Point) float64 {
	lat1, lat2 := toRadians(a.Lat), toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	sinDLat := math.Sin(dLat / 2)
	sinDLng := math.Sin(dLng / 2)

	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLng*sinDLng
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

// WithinRadius reports whether p lies within radiusMeters of center.
func WithinRadius(p, center Point, radiusMeters float64) bool {
	return HaversineMeters(p, center) <= radiusMeters
}

// BoundingBox is defined by its north-east and south-west corners. When
// West > East the box wraps across the antimeridian (+/-180deg).
type BoundingBox struct {
	North, South float64
	East, West   float64
}

func NewBoundingBox(ne, sw Point) BoundingBox {
	return BoundingBox{North: ne.Lat, South: sw.Lat, East: ne.Lng, West: sw.Lng}
}

// Contains reports whether p lies within the box, wrapping longitude
// around the antimeridian when the box's west edge is east of its east
// edge (e.g. a box spanning from 170 to -170 degrees).
func (b BoundingBox) Contains(p Point) bool {
	if p.Lat > b.North || p.Lat < b.South {
		return false
	}
	if b.West <= b.East {
		return p.Lng >= b.West && p.Lng <= b.East
	}
	return p.Lng >= b.West || p.Lng <= b.East
}
