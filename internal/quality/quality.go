// Package quality decides whether a raw fix is trustworthy enough to extend
// a route.
package quality

import (
	"github.com/pereirasil/corrida-app-sub000/internal/geo"
	"github.com/pereirasil/corrida-app-sub000/internal/location"
)

// Accuracy tier upper bounds, in meters.
const (
	ExcellentMaxAccuracy = 10.0
	GoodMaxAccuracy      = 20.0
	FairMaxAccuracy      = 50.0
)

// DefaultMaxSpeedMps is the fastest implied speed accepted between two fixes.
const DefaultMaxSpeedMps = 15.0

// Verdict is the outcome of evaluating one fix.
type Verdict string

const (
	Accepted                Verdict = "accepted"
	RejectedLowAccuracy     Verdict = "rejected_low_accuracy"
	RejectedImplausibleJump Verdict = "rejected_implausible_jump"
)

// Tier maps an accuracy radius to its quality tier.
func Tier(accuracy float64) location.Quality {
	switch {
	case accuracy <= ExcellentMaxAccuracy:
		return location.QualityExcellent
	case accuracy <= GoodMaxAccuracy:
		return location.QualityGood
	case accuracy <= FairMaxAccuracy:
		return location.QualityFair
	default:
		return location.QualityPoor
	}
}

// Classifier filters fixes by accuracy tier and by the speed implied by the
// jump from the previous accepted point.
type Classifier struct {
	MaxSpeedMps float64
}

// NewClassifier returns a Classifier rejecting implied speeds above
// maxSpeedMps. A non-positive value selects DefaultMaxSpeedMps.
func NewClassifier(maxSpeedMps float64) *Classifier {
	if maxSpeedMps <= 0 {
		maxSpeedMps = DefaultMaxSpeedMps
	}
	return &Classifier{MaxSpeedMps: maxSpeedMps}
}

// Evaluate classifies fix against prev, the last accepted point (nil for the
// first point of a route). The returned point carries the fix's tier and is
// only meaningful when the verdict is Accepted.
func (c *Classifier) Evaluate(prev *location.Point, fix location.Fix) (location.Point, Verdict) {
	point := location.Point{Fix: fix, Quality: Tier(fix.AccuracyOrUnknown())}
	if point.Quality == location.QualityPoor {
		return point, RejectedLowAccuracy
	}
	if prev == nil {
		return point, Accepted
	}

	dist := geo.Distance(prev.Latitude, prev.Longitude, fix.Latitude, fix.Longitude)
	dtMillis := fix.Timestamp - prev.Timestamp
	if dtMillis <= 0 {
		// Without elapsed time any movement is an infinite speed.
		if dist == 0 {
			return point, Accepted
		}
		return point, RejectedImplausibleJump
	}

	if dist/(float64(dtMillis)/1000) > c.maxSpeed() {
		return point, RejectedImplausibleJump
	}
	return point, Accepted
}

func (c *Classifier) maxSpeed() float64 {
	if c == nil || c.MaxSpeedMps <= 0 {
		return DefaultMaxSpeedMps
	}
	return c.MaxSpeedMps
}
