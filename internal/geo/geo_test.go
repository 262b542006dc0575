package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	t.Parallel()

	t.Run("identical points are zero", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 0.0, Distance(-23.5505, -46.6333, -23.5505, -46.6333))
	})

	t.Run("symmetric", func(t *testing.T) {
		t.Parallel()
		ab := Distance(-23.5505, -46.6333, -22.9068, -43.1729)
		ba := Distance(-22.9068, -43.1729, -23.5505, -46.6333)
		assert.InDelta(t, ab, ba, 1e-6)
	})

	t.Run("sao paulo to rio is about 360km", func(t *testing.T) {
		t.Parallel()
		d := Distance(-23.5505, -46.6333, -22.9068, -43.1729)
		assert.InDelta(t, 360000, d, 10000)
	})

	t.Run("one degree of latitude", func(t *testing.T) {
		t.Parallel()
		d := Distance(0, 0, 1, 0)
		assert.InDelta(t, EarthRadiusMeters*math.Pi/180, d, 0.01)
	})

	t.Run("antipodal points stay finite", func(t *testing.T) {
		t.Parallel()
		d := Distance(0, 0, 0, 180)
		assert.InDelta(t, math.Pi*EarthRadiusMeters, d, 1)
	})
}

func TestBearing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		lat2, lon2 float64
		want       float64
	}{
		{"north", 1, 0, 0},
		{"east", 0, 1, 90},
		{"south", -1, 0, 180},
		{"west", 0, -1, 270},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Bearing(0, 0, tt.lat2, tt.lon2), 1e-6)
		})
	}
}

func TestDestinationRoundTrip(t *testing.T) {
	t.Parallel()

	lat, lon := -23.5874, -46.6576
	for _, bearing := range []float64{0, 45, 90, 180, 270, 315} {
		lat2, lon2 := Destination(lat, lon, bearing, 250)
		assert.InDelta(t, 250, Distance(lat, lon, lat2, lon2), 0.01, "bearing %v", bearing)
		if bearing != 0 {
			assert.InDelta(t, bearing, Bearing(lat, lon, lat2, lon2), 0.01)
		}
	}
}

func TestDistanceToPolyline(t *testing.T) {
	t.Parallel()

	a := LatLon{Lat: 0, Lon: 0}
	b := LatLon{Lat: 0, Lon: 0.01}

	t.Run("point beside the middle of a segment", func(t *testing.T) {
		lat, lon := Destination(0, 0.005, 0, 30)
		d := DistanceToPolyline(LatLon{Lat: lat, Lon: lon}, []LatLon{a, b})
		assert.InDelta(t, 30, d, 0.5)
	})

	t.Run("point beyond the end clamps to the vertex", func(t *testing.T) {
		p := LatLon{Lat: 0, Lon: 0.011}
		want := Distance(0, 0.011, 0, 0.01)
		assert.InDelta(t, want, DistanceToPolyline(p, []LatLon{a, b}), 0.5)
	})

	t.Run("empty line", func(t *testing.T) {
		assert.True(t, math.IsInf(DistanceToPolyline(a, nil), 1))
	})

	t.Run("single vertex", func(t *testing.T) {
		assert.InDelta(t, Distance(0, 0, 0, 0.01), DistanceToPolyline(a, []LatLon{b}), 1e-6)
	})
}

func TestPathLength(t *testing.T) {
	t.Parallel()

	line := []LatLon{{0, 0}, {0, 0.001}, {0, 0.002}}
	assert.InDelta(t, Distance(0, 0, 0, 0.002), PathLength(line), 0.01)
	assert.Equal(t, 0.0, PathLength(line[:1]))
}
