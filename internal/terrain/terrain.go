// Package terrain labels a route with a surface type. It is a heuristic:
// geofences decide first, then the speed between points.
package terrain

import (
	"math"

	"github.com/pereirasil/corrida-app-sub000/internal/geo"
	"github.com/pereirasil/corrida-app-sub000/internal/location"
)

// Type is a surface label.
type Type string

const (
	Road     Type = "road"
	BikePath Type = "bike_path"
	Park     Type = "park"
	Trail    Type = "trail"
	Sidewalk Type = "sidewalk"
	Unknown  Type = "unknown"
)

// DefaultCorridorRadius is how close to a bike path centre line a point must
// be, in meters, to count as on it.
const DefaultCorridorRadius = 50.0

// Speed band thresholds in m/s.
const (
	highwaySpeed = 15.0
	roadSpeed    = 8.0
	rollingSpeed = 2.0
)

// Segment is a contiguous run of points sharing one label.
type Segment struct {
	Type           Type    `json:"type"`
	StartIndex     int     `json:"start_index"`
	EndIndex       int     `json:"end_index"` // inclusive
	DistanceMeters float64 `json:"distance_m"`
	// Confidence is the share of adjacent point pairs in the segment whose
	// unsmoothed labels agree. Single-point segments have confidence 1.
	Confidence float64 `json:"confidence"`
}

// Points returns the number of route points in the segment.
func (s Segment) Points() int { return s.EndIndex - s.StartIndex + 1 }

// Classifier assigns terrain labels from a geofence table.
type Classifier struct {
	fences Geofences
	radius float64
}

// NewClassifier returns a Classifier for fences. A non-positive
// corridorRadius selects DefaultCorridorRadius.
func NewClassifier(fences Geofences, corridorRadius float64) *Classifier {
	if corridorRadius <= 0 {
		corridorRadius = DefaultCorridorRadius
	}
	return &Classifier{fences: fences, radius: corridorRadius}
}

func usable(lat, lon float64) bool {
	return !math.IsNaN(lat) && !math.IsNaN(lon) &&
		lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// ClassifyPoint labels one position. prev is the label of the previous
// point and only matters in the 2 to 8 m/s band, where a runner already on
// a bike path is assumed to stay on it.
func (c *Classifier) ClassifyPoint(lat, lon, speedMps float64, prev Type) Type {
	if !usable(lat, lon) {
		return Unknown
	}
	p := geo.LatLon{Lat: lat, Lon: lon}
	for _, bp := range c.fences.BikePaths {
		if geo.DistanceToPolyline(p, bp.Points) <= c.radius {
			return BikePath
		}
	}
	for _, park := range c.fences.Parks {
		if park.Contains(lat, lon) {
			return Park
		}
	}

	switch {
	case speedMps > highwaySpeed: // highway-like
		return Road
	case speedMps > roadSpeed:
		return Road
	case speedMps > rollingSpeed:
		if prev == BikePath {
			return BikePath
		}
		return Sidewalk
	default:
		return Trail
	}
}

// pointSpeed is the reported speed of route[i], or the speed implied by the
// step from route[i-1].
func pointSpeed(route []location.Point, i int) float64 {
	p := route[i]
	if p.Speed != nil {
		return *p.Speed
	}
	if i == 0 {
		return 0
	}
	q := route[i-1]
	dt := float64(p.Timestamp-q.Timestamp) / 1000
	if dt <= 0 {
		return 0
	}
	return geo.Distance(q.Latitude, q.Longitude, p.Latitude, p.Longitude) / dt
}

// Labels returns the unsmoothed label of every point.
func (c *Classifier) Labels(route []location.Point) []Type {
	labels := make([]Type, len(route))
	prev := Unknown
	for i, p := range route {
		labels[i] = c.ClassifyPoint(p.Latitude, p.Longitude, pointSpeed(route, i), prev)
		prev = labels[i]
	}
	return labels
}

// Smooth replaces a single-point label that disagrees with two agreeing
// neighbours, which is the 3-point majority vote. Endpoints are kept.
func Smooth(raw []Type) []Type {
	out := append([]Type(nil), raw...)
	for i := 1; i < len(raw)-1; i++ {
		if raw[i-1] == raw[i+1] && raw[i] != raw[i-1] {
			out[i] = raw[i-1]
		}
	}
	return out
}

// ClassifyRoute labels route and groups the smoothed labels into segments.
func (c *Classifier) ClassifyRoute(route []location.Point) []Segment {
	if len(route) == 0 {
		return nil
	}
	raw := c.Labels(route)
	smoothed := Smooth(raw)

	var segments []Segment
	start := 0
	for i := 1; i <= len(route); i++ {
		if i < len(route) && smoothed[i] == smoothed[start] {
			continue
		}
		segments = append(segments, buildSegment(route, raw, smoothed[start], start, i-1))
		start = i
	}
	return segments
}

func buildSegment(route []location.Point, raw []Type, t Type, start, end int) Segment {
	seg := Segment{Type: t, StartIndex: start, EndIndex: end, Confidence: 1}
	pairs, agree := 0, 0
	for j := start; j < end; j++ {
		a, b := route[j], route[j+1]
		seg.DistanceMeters += geo.Distance(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
		pairs++
		if raw[j] == raw[j+1] {
			agree++
		}
	}
	if pairs > 0 {
		seg.Confidence = float64(agree) / float64(pairs)
	}
	return seg
}

// DistanceByType sums segment distances per label.
func DistanceByType(segments []Segment) map[Type]float64 {
	out := make(map[Type]float64)
	for _, s := range segments {
		out[s.Type] += s.DistanceMeters
	}
	return out
}
