package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineZeroDistance(t *testing.T) {
	p := Point{Lat: 48.8566, Lng: 2.3522}
	assert.InDelta(t, 0, HaversineMeters(p, p), 0.001)
}

func TestHaversineKnownDistance(t *testing.T) {
	paris := Point{Lat: 48.8566, Lng: 2.3522}
	london := Point{Lat: 51.5074, Lng: -0.1278}
	d := HaversineMeters(paris, london)
	assert.InDelta(t, 343000, d, 10000)
}

func TestWithinRadius(t *testing.T) {
	center := Point{Lat: 0, Lng: 0}
	near := Point{Lat: 0.01, Lng: 0}
	assert.True(t, WithinRadius(near, center, 5000))
	assert.False(t, WithinRadius(near, center, 100))
}

func TestBoundingBoxContainsAntimeridian(t *testing.T) {
	box := NewBoundingBox(Point{Lat: 10, Lng: -170}, Point{Lat: -10, Lng: 170})
	assert.True(t, box.Contains(Point{Lat: 0, Lng: 180}))
	assert.True(t, box.Contains(Point{Lat: 0, Lng: -179}))
	assert.False(t, box.Contains(Point{Lat: 0, Lng: 0}))
}

func TestBoundingBoxContainsNormal(t *testing.T) {
	box := NewBoundingBox(Point{Lat: 10, Lng: 10}, Point{Lat: -10, Lng: -10})
	assert.True(t, box.Contains(Point{Lat: 0, Lng: 0}))
	assert.False(t, box.Contains(Point{Lat: 20, Lng: 0}))
}
