// Package location defines the fixes consumed by the run tracker and the
// Provider interface it uses to obtain them, together with providers backed
// by an NMEA receiver, a replay fixture, and a test double.
package location

import (
	"context"
	"errors"
	"time"
)

// UnknownAccuracyMeters stands in for a fix that reports no accuracy. It is
// deliberately worse than every quality tier.
const UnknownAccuracyMeters = 999.0

// Quality is the coarse accuracy tier attached to an accepted point.
type Quality string

const (
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityFair      Quality = "fair"
	QualityPoor      Quality = "poor"
)

// Fix is one raw reading from a positioning subsystem. Optional readings are
// nil when the receiver did not report them.
type Fix struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Timestamp int64    `json:"timestamp"` // Unix milliseconds
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Altitude  *float64 `json:"altitude,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`   // m/s
	Heading   *float64 `json:"heading,omitempty"` // degrees from true north
}

// AccuracyOrUnknown returns the reported accuracy or UnknownAccuracyMeters.
func (f Fix) AccuracyOrUnknown() float64 {
	if f.Accuracy == nil {
		return UnknownAccuracyMeters
	}
	return *f.Accuracy
}

// Time returns the fix timestamp as a time.Time.
func (f Fix) Time() time.Time {
	return time.UnixMilli(f.Timestamp)
}

// Point is a fix retained in a route. Quality is computed once at ingestion.
// Synthetic marks the fallback location produced when no real fix arrived in
// time; synthetic points are never part of a route.
type Point struct {
	Fix
	Quality   Quality `json:"quality"`
	Synthetic bool    `json:"synthetic,omitempty"`
}

// Float returns a pointer to v, for populating optional Fix fields.
func Float(v float64) *float64 { return &v }

// Permission is the outcome of a location permission request.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// AccuracyHint tells a provider how hard to try for a precise first fix.
type AccuracyHint string

const (
	AccuracyHigh     AccuracyHint = "high"
	AccuracyBalanced AccuracyHint = "balanced"
	AccuracyLow      AccuracyHint = "low"
)

// SubscribeOptions bounds the cadence of a continuous subscription. A fix is
// delivered only when at least TimeInterval has passed and the position has
// moved at least DistanceInterval meters since the last delivered fix.
type SubscribeOptions struct {
	TimeInterval     time.Duration
	DistanceInterval float64
	Accuracy         AccuracyHint
}

// ErrNoFix is returned by CurrentFix when the provider gave up without a
// position, including when ctx expires.
var ErrNoFix = errors.New("no location fix available")

// ErrClosed is returned by providers that have been shut down.
var ErrClosed = errors.New("location provider closed")

// Provider is the positioning subsystem the tracker consumes.
type Provider interface {
	// RequestPermission asks for access to location data.
	RequestPermission(ctx context.Context) (Permission, error)
	// CurrentFix blocks until one fix is available or ctx is done.
	CurrentFix(ctx context.Context, hint AccuracyHint) (Fix, error)
	// Subscribe starts a continuous stream of fixes.
	Subscribe(ctx context.Context, opts SubscribeOptions) (Subscription, error)
}

// Subscription is a live stream of fixes. Fixes is closed after Unsubscribe
// or when the underlying source ends.
type Subscription interface {
	Fixes() <-chan Fix
	Unsubscribe()
}
