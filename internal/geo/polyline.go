package geo

import "math"

// LatLon is a coordinate pair in decimal degrees.
type LatLon struct {
	Lat float64 `yaml:"lat" json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `yaml:"lon" json:"lon" validate:"gte=-180,lte=180"`
}

// DistanceToSegment returns the distance in meters from p to the segment
// a-b. The projection is done on a local equirectangular plane centred on
// p, which is accurate to well under a meter for segments of a few
// kilometres; the final distance is measured with the haversine formula.
func DistanceToSegment(p, a, b LatLon) float64 {
	cosLat := math.Cos(toRadians(p.Lat))
	// Planar coordinates in meters relative to p.
	ax := toRadians(a.Lon-p.Lon) * cosLat * EarthRadiusMeters
	ay := toRadians(a.Lat-p.Lat) * EarthRadiusMeters
	bx := toRadians(b.Lon-p.Lon) * cosLat * EarthRadiusMeters
	by := toRadians(b.Lat-p.Lat) * EarthRadiusMeters

	vx, vy := bx-ax, by-ay
	denom := vx*vx + vy*vy
	t := 0.0
	if denom > 0 {
		t = (-ax*vx - ay*vy) / denom
		t = math.Max(0, math.Min(1, t))
	}
	closest := LatLon{
		Lat: a.Lat + t*(b.Lat-a.Lat),
		Lon: a.Lon + t*(b.Lon-a.Lon),
	}
	return Distance(p.Lat, p.Lon, closest.Lat, closest.Lon)
}

// DistanceToPolyline returns the smallest distance in meters from p to any
// segment of line. A single-vertex line degenerates to a point distance and
// an empty line returns +Inf.
func DistanceToPolyline(p LatLon, line []LatLon) float64 {
	switch len(line) {
	case 0:
		return math.Inf(1)
	case 1:
		return Distance(p.Lat, p.Lon, line[0].Lat, line[0].Lon)
	}
	best := math.Inf(1)
	for i := 0; i < len(line)-1; i++ {
		if d := DistanceToSegment(p, line[i], line[i+1]); d < best {
			best = d
		}
	}
	return best
}

// PathLength sums the haversine distances between consecutive vertices.
func PathLength(line []LatLon) float64 {
	total := 0.0
	for i := 1; i < len(line); i++ {
		total += Distance(line[i-1].Lat, line[i-1].Lon, line[i].Lat, line[i].Lon)
	}
	return total
}
