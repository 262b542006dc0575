package tracker

import (
	"github.com/pereirasil/corrida-app-sub000/internal/geo"
	"github.com/pereirasil/corrida-app-sub000/internal/location"
)

// Totals are the route aggregates that depend on every point. The tracker
// keeps them incrementally with Add; Recompute derives the same values from
// scratch.
type Totals struct {
	Distance      float64 // meters
	ElevationGain float64
	ElevationLoss float64
	AccuracySum   float64
	Points        int
}

// Add folds p, appended after prev (nil for the first point), into t.
func (t *Totals) Add(prev *location.Point, p location.Point) {
	if prev != nil {
		t.Distance += geo.Distance(prev.Latitude, prev.Longitude, p.Latitude, p.Longitude)
		if prev.Altitude != nil && p.Altitude != nil {
			if d := *p.Altitude - *prev.Altitude; d > 0 {
				t.ElevationGain += d
			} else {
				t.ElevationLoss -= d
			}
		}
	}
	t.AccuracySum += p.AccuracyOrUnknown()
	t.Points++
}

// AverageAccuracy returns the mean reported accuracy, or 0 for no points.
func (t Totals) AverageAccuracy() float64 {
	if t.Points == 0 {
		return 0
	}
	return t.AccuracySum / float64(t.Points)
}

// Recompute sums the aggregates of route over every consecutive pair.
func Recompute(route []location.Point) Totals {
	var t Totals
	for i := range route {
		t.AccuracySum += route[i].AccuracyOrUnknown()
		t.Points++
		if i == 0 {
			continue
		}
		a, b := route[i-1], route[i]
		t.Distance += geo.Distance(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
		if a.Altitude == nil || b.Altitude == nil {
			continue
		}
		switch d := *b.Altitude - *a.Altitude; {
		case d > 0:
			t.ElevationGain += d
		case d < 0:
			t.ElevationLoss += -d
		}
	}
	return t
}
