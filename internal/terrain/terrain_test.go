package terrain

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pereirasil/corrida-app-sub000/internal/geo"
	"github.com/pereirasil/corrida-app-sub000/internal/location"
)

// Far from every default geofence.
const (
	openLat = -23.5000
	openLon = -46.5000
)

var (
	paulista   = geo.LatLon{Lat: -23.5614, Lon: -46.6559}
	ibirapuera = geo.LatLon{Lat: -23.5874, Lon: -46.6576}
)

func TestClassifyPoint(t *testing.T) {
	c := NewClassifier(DefaultGeofences(), 0)

	tests := []struct {
		name  string
		lat   float64
		lon   float64
		speed float64
		prev  Type
		want  Type
	}{
		{"on bike path", paulista.Lat, paulista.Lon, 3, Unknown, BikePath},
		{"bike path wins over speed", paulista.Lat, paulista.Lon, 20, Road, BikePath},
		{"in park", ibirapuera.Lat, ibirapuera.Lon, 3, Unknown, Park},
		{"highway speed", openLat, openLon, 16, Unknown, Road},
		{"road speed", openLat, openLon, 9, Unknown, Road},
		{"running on sidewalk", openLat, openLon, 3, Sidewalk, Sidewalk},
		{"stays on bike path", openLat, openLon, 3, BikePath, BikePath},
		{"walking", openLat, openLon, 1.5, Unknown, Trail},
		{"exactly rolling speed", openLat, openLon, 2, BikePath, Trail},
		{"NaN", math.NaN(), openLon, 3, Unknown, Unknown},
		{"out of range", 91, openLon, 3, Unknown, Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.ClassifyPoint(tt.lat, tt.lon, tt.speed, tt.prev))
		})
	}
}

func TestClassifyPoint_CorridorRadius(t *testing.T) {
	lat, lon := geo.Destination(paulista.Lat, paulista.Lon, 45, 40)

	assert.Equal(t, BikePath, NewClassifier(DefaultGeofences(), 50).ClassifyPoint(lat, lon, 1, Unknown))
	assert.Equal(t, Trail, NewClassifier(DefaultGeofences(), 20).ClassifyPoint(lat, lon, 1, Unknown))
}

func TestSmooth(t *testing.T) {
	raw := []Type{Trail, Sidewalk, Trail, Trail, Road, Road, Sidewalk}
	want := []Type{Trail, Trail, Trail, Trail, Road, Road, Sidewalk}
	if diff := cmp.Diff(want, Smooth(raw)); diff != "" {
		t.Errorf("Smooth mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, Smooth(nil))
}

// walk builds a route heading east from the open area with one point per
// entry of speeds, each reporting its speed and covering it in one second.
func walk(speeds ...float64) []location.Point {
	route := make([]location.Point, len(speeds))
	lat, lon := openLat, openLon
	start := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	for i, s := range speeds {
		if i > 0 {
			lat, lon = geo.Destination(lat, lon, 90, s)
		}
		route[i] = location.Point{Fix: location.Fix{
			Latitude:  lat,
			Longitude: lon,
			Timestamp: start.Add(time.Duration(i) * time.Second).UnixMilli(),
			Speed:     location.Float(s),
		}}
	}
	return route
}

func TestClassifyRoute_Segments(t *testing.T) {
	c := NewClassifier(DefaultGeofences(), 0)
	// trail x3, one sidewalk blip, trail, then road x3
	route := walk(1, 1, 1, 3, 1, 10, 10, 10)

	segs := c.ClassifyRoute(route)
	require.Len(t, segs, 2)

	assert.Equal(t, Trail, segs[0].Type)
	assert.Equal(t, 0, segs[0].StartIndex)
	assert.Equal(t, 4, segs[0].EndIndex)
	assert.Equal(t, 5, segs[0].Points())
	assert.InDelta(t, 0.5, segs[0].Confidence, 1e-9, "2 of 4 raw pairs agree")
	assert.InDelta(t, 6, segs[0].DistanceMeters, 0.01)

	assert.Equal(t, Road, segs[1].Type)
	assert.Equal(t, 5, segs[1].StartIndex)
	assert.Equal(t, 7, segs[1].EndIndex)
	assert.Equal(t, 1.0, segs[1].Confidence)
	assert.InDelta(t, 20, segs[1].DistanceMeters, 0.01)

	byType := DistanceByType(segs)
	assert.InDelta(t, 6, byType[Trail], 0.01)
	assert.InDelta(t, 20, byType[Road], 0.01)
}

func TestClassifyRoute_DerivedSpeed(t *testing.T) {
	c := NewClassifier(DefaultGeofences(), 0)
	route := walk(0, 10, 10)
	for i := range route {
		route[i].Speed = nil
	}

	labels := c.Labels(route)
	assert.Equal(t, []Type{Trail, Road, Road}, labels)
}

func TestClassifyRoute_SinglePointAndEmpty(t *testing.T) {
	c := NewClassifier(DefaultGeofences(), 0)
	assert.Nil(t, c.ClassifyRoute(nil))

	segs := c.ClassifyRoute(walk(1))
	require.Len(t, segs, 1)
	assert.Equal(t, 1.0, segs[0].Confidence)
	assert.Zero(t, segs[0].DistanceMeters)
}

func TestLoadGeofences(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "fences.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
bike_paths:
  - name: Test corridor
    points:
      - {lat: -23.5000, lon: -46.5010}
      - {lat: -23.5000, lon: -46.4990}
parks:
  - name: Test park
    south: -23.6100
    west: -46.6100
    north: -23.6000
    east: -46.6000
`), 0o644))

	fences, err := LoadGeofences(good)
	require.NoError(t, err)
	require.Len(t, fences.BikePaths, 1)
	require.Len(t, fences.Parks, 1)

	merged := DefaultGeofences().Merge(fences)
	assert.Len(t, merged.BikePaths, len(DefaultGeofences().BikePaths)+1)
	c := NewClassifier(merged, 0)
	assert.Equal(t, BikePath, c.ClassifyPoint(openLat, openLon, 12, Unknown))
	assert.Equal(t, Park, c.ClassifyPoint(-23.605, -46.605, 1, Unknown))
}

func TestLoadGeofences_Invalid(t *testing.T) {
	tests := map[string]string{
		"one point corridor": `
bike_paths:
  - name: Short
    points:
      - {lat: -23.5, lon: -46.5}
`,
		"missing name": `
parks:
  - south: -23.61
    west: -46.61
    north: -23.60
    east: -46.60
`,
		"inverted box": `
parks:
  - name: Upside down
    south: -23.60
    west: -46.61
    north: -23.61
    east: -46.60
`,
		"latitude out of range": `
bike_paths:
  - name: Nowhere
    points:
      - {lat: -123.5, lon: -46.5}
      - {lat: -23.5, lon: -46.4}
`,
		"not yaml": "bike_paths: [",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "fences.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := LoadGeofences(path)
			assert.Error(t, err)
		})
	}

	_, err := LoadGeofences(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
