// Package report turns a completed session into per-kilometre splits,
// summary statistics and charts.
package report

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/pereirasil/corrida-app-sub000/internal/geo"
	"github.com/pereirasil/corrida-app-sub000/internal/location"
	"github.com/pereirasil/corrida-app-sub000/internal/terrain"
	"github.com/pereirasil/corrida-app-sub000/internal/tracker"
)

// SplitDistance is the length of a full split in meters.
const SplitDistance = 1000.0

// Split is one kilometre of the route, or the shorter remainder at the end.
type Split struct {
	Index          int           `json:"index"` // 1-based
	DistanceMeters float64       `json:"distance_m"`
	Duration       time.Duration `json:"duration_ns"`
	PaceSecPerKm   float64       `json:"pace_s_per_km"`
	ElevationGain  float64       `json:"elevation_gain_m"`
	ElevationLoss  float64       `json:"elevation_loss_m"`
	Partial        bool          `json:"partial,omitempty"`
}

func (s *Split) finish() {
	if s.DistanceMeters > 0 {
		s.PaceSecPerKm = s.Duration.Seconds() / (s.DistanceMeters / 1000)
	}
}

// Splits cuts route into unit-meter splits. Boundary times are
// interpolated linearly between the fixes on either side. A trailing
// remainder shorter than a metre is dropped.
func Splits(route []location.Point, unit float64) []Split {
	if len(route) < 2 || unit <= 0 {
		return nil
	}
	var (
		out        []Split
		cur        = Split{Index: 1}
		splitStart = float64(route[0].Timestamp)
	)
	for i := 1; i < len(route); i++ {
		a, b := route[i-1], route[i]
		d := geo.Distance(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
		if a.Altitude != nil && b.Altitude != nil {
			if dz := *b.Altitude - *a.Altitude; dz > 0 {
				cur.ElevationGain += dz
			} else {
				cur.ElevationLoss -= dz
			}
		}
		ta, tb := float64(a.Timestamp), float64(b.Timestamp)
		covered := 0.0
		for d > 0 && cur.DistanceMeters+(d-covered) >= unit {
			need := unit - cur.DistanceMeters
			covered += need
			at := ta + (tb-ta)*covered/d
			cur.DistanceMeters = unit
			cur.Duration = time.Duration((at - splitStart) * float64(time.Millisecond))
			cur.finish()
			out = append(out, cur)
			cur = Split{Index: cur.Index + 1}
			splitStart = at
		}
		cur.DistanceMeters += d - covered
	}
	if cur.DistanceMeters >= 1 {
		cur.Duration = time.Duration((float64(route[len(route)-1].Timestamp) - splitStart) * float64(time.Millisecond))
		cur.Partial = true
		cur.finish()
		out = append(out, cur)
	}
	return out
}

// Summary is the post-run report of a session.
type Summary struct {
	SessionID  string                   `json:"session_id"`
	Metrics    tracker.Metrics          `json:"metrics"`
	Splits     []Split                  `json:"splits"`
	MeanPace   float64                  `json:"mean_pace_s_per_km"`
	PaceStdDev float64                  `json:"pace_stddev_s_per_km"`
	Fastest    int                      `json:"fastest_split,omitempty"` // split Index, 0 when none
	Slowest    int                      `json:"slowest_split,omitempty"`
	Terrain    []terrain.Segment        `json:"terrain"`
	ByTerrain  map[terrain.Type]float64 `json:"distance_by_terrain_m"`
}

// Summarize builds the report of s. Pace statistics use full splits only,
// falling back to the partial one for runs shorter than a split.
func Summarize(s tracker.Session, cls *terrain.Classifier) Summary {
	sum := Summary{
		SessionID: s.ID,
		Metrics:   s.Metrics,
		Splits:    Splits(s.Route, SplitDistance),
		Terrain:   []terrain.Segment{},
		ByTerrain: map[terrain.Type]float64{},
	}
	if sum.Splits == nil {
		sum.Splits = []Split{}
	}
	if cls != nil && len(s.Route) > 0 {
		sum.Terrain = cls.ClassifyRoute(s.Route)
		sum.ByTerrain = terrain.DistanceByType(sum.Terrain)
	}

	var paces []float64
	var idx []int
	for _, sp := range sum.Splits {
		if !sp.Partial {
			paces = append(paces, sp.PaceSecPerKm)
			idx = append(idx, sp.Index)
		}
	}
	if len(paces) == 0 && len(sum.Splits) > 0 {
		last := sum.Splits[len(sum.Splits)-1]
		paces, idx = []float64{last.PaceSecPerKm}, []int{last.Index}
	}
	if len(paces) == 0 {
		return sum
	}

	sum.MeanPace = stat.Mean(paces, nil)
	if len(paces) > 1 {
		sum.PaceStdDev = stat.StdDev(paces, nil)
	}
	fast, slow := 0, 0
	for i := range paces {
		if paces[i] < paces[fast] {
			fast = i
		}
		if paces[i] > paces[slow] {
			slow = i
		}
	}
	sum.Fastest, sum.Slowest = idx[fast], idx[slow]
	if math.IsNaN(sum.PaceStdDev) {
		sum.PaceStdDev = 0
	}
	return sum
}
