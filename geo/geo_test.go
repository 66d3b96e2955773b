package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceOneDegreeLongitudeAtEquator(t *testing.T) {
	d := Distance(Point{Longitude: 0, Latitude: 0}, Point{Longitude: 1, Latitude: 0})
	assert.InDelta(t, 111.19, d, 0.01)
}

func TestDistanceCoincidentPoints(t *testing.T) {
	p := Point{Longitude: 77.10, Latitude: 28.70}
	assert.Zero(t, Distance(p, p))
}

func TestDistanceSymmetric(t *testing.T) {
	a := Point{Longitude: 77.10, Latitude: 28.70}
	b := Point{Longitude: 77.23, Latitude: 28.61}
	assert.Equal(t, Distance(a, b), Distance(b, a))
}

func TestDistanceKnownPair(t *testing.T) {
	// New Delhi to Mumbai, roughly 1150 km.
	delhi := Point{Longitude: 77.2090, Latitude: 28.6139}
	mumbai := Point{Longitude: 72.8777, Latitude: 19.0760}
	d := Distance(delhi, mumbai)
	assert.InDelta(t, 1150, d, 20)
}

func TestDistanceRounded(t *testing.T) {
	a := Point{Longitude: 77.10, Latitude: 28.70}
	b := Point{Longitude: 77.11, Latitude: 28.71}
	d := DistanceRounded(a, b)
	assert.Greater(t, d, 0.0)
	assert.Equal(t, d, float64(int(d*100))/100)
}
