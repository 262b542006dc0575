// Package testutil provides shared fixtures for run sessions and small HTTP
// helpers used across package tests.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pereirasil/corrida-app-sub000/internal/geo"
	"github.com/pereirasil/corrida-app-sub000/internal/location"
	"github.com/pereirasil/corrida-app-sub000/internal/quality"
	"github.com/pereirasil/corrida-app-sub000/internal/tracker"
	"github.com/pereirasil/corrida-app-sub000/internal/units"
)

// Start is the fixture run's first fix, near the Ibirapuera park gate.
var Start = geo.LatLon{Lat: -23.5874, Lon: -46.6576}

// T0 is the fixture run's start time.
var T0 = time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)

// Run describes a synthetic straight-line run.
type Run struct {
	Start    geo.LatLon
	Bearing  float64 // degrees
	Step     float64 // meters between fixes
	Interval time.Duration
	Fixes    int
	Accuracy float64
	// Climb is added to the altitude at every fix.
	Climb float64
}

// StraightRun is a north-bound run of n fixes, step meters apart, one per
// second, with 5 m accuracy.
func StraightRun(n int, step float64) Run {
	return Run{
		Start:    Start,
		Step:     step,
		Interval: time.Second,
		Fixes:    n,
		Accuracy: 5,
	}
}

// Build returns the run's fixes starting at t0.
func (r Run) Build(t0 time.Time) []location.Fix {
	fixes := make([]location.Fix, 0, r.Fixes)
	speed := 0.0
	if r.Interval > 0 {
		speed = r.Step / r.Interval.Seconds()
	}
	for i := 0; i < r.Fixes; i++ {
		lat, lon := geo.Destination(r.Start.Lat, r.Start.Lon, r.Bearing, float64(i)*r.Step)
		fixes = append(fixes, location.Fix{
			Latitude:  lat,
			Longitude: lon,
			Timestamp: t0.Add(time.Duration(i) * r.Interval).UnixMilli(),
			Accuracy:  location.Float(r.Accuracy),
			Altitude:  location.Float(760 + float64(i)*r.Climb),
			Speed:     location.Float(speed),
			Heading:   location.Float(r.Bearing),
		})
	}
	return fixes
}

// Points classifies fixes by their accuracy tier.
func Points(fixes []location.Fix) []location.Point {
	points := make([]location.Point, len(fixes))
	for i, f := range fixes {
		points[i] = location.Point{Fix: f, Quality: quality.Tier(f.AccuracyOrUnknown())}
	}
	return points
}

// Session returns a completed session whose route is the run and whose
// totals are recomputed from it.
func (r Run) Session(id string, t0 time.Time) tracker.Session {
	route := Points(r.Build(t0))
	totals := tracker.Recompute(route)
	elapsed := time.Duration(r.Fixes-1) * r.Interval
	end := t0.Add(elapsed)
	return tracker.Session{
		ID:        id,
		StartTime: t0,
		EndTime:   &end,
		Route:     route,
		Metrics: tracker.Metrics{
			DistanceMeters:  totals.Distance,
			ElapsedSeconds:  int64(elapsed / time.Second),
			PaceSecPerKm:    units.PaceSecPerKm(totals.Distance, elapsed),
			SpeedKmh:        units.SpeedKmh(totals.Distance, elapsed),
			ElevationGain:   totals.ElevationGain,
			ElevationLoss:   totals.ElevationLoss,
			AverageAccuracy: totals.AverageAccuracy(),
			GPSQuality:      quality.Tier(totals.AverageAccuracy()),
		},
		GPSStats: tracker.GPSStats{
			TotalPoints:     len(route),
			AccuratePoints:  len(route),
			AcceptedPoints:  len(route),
			AverageAccuracy: totals.AverageAccuracy(),
			SignalStrength:  100,
		},
	}
}

// Serve runs req against h and returns the recorded response.
func Serve(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// DecodeJSON decodes the recorded body into a T, failing the test on error.
func DecodeJSON[T any](t *testing.T, body io.Reader) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(body).Decode(&v); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	return v
}
