// Package steps estimates a step count from distance and speed. There is no
// pedometer: the count is distance divided by a stride length that depends
// on the speed band, so it is an approximation only.
package steps

import "math"

// Movement deltas outside [MinDelta, MaxDelta] meters are not turned into
// steps by Update.
const (
	MinDelta = 0.3
	MaxDelta = 1.2
)

// FallbackStride is used for speeds outside every band.
const FallbackStride = 0.75

type band struct {
	min, max float64 // m/s, max exclusive except for the last band
	stride   float64 // meters
}

var bands = []band{
	{0, 2, 0.6},  // walking
	{2, 5, 0.7},  // jogging
	{5, 8, 0.8},  // running
	{8, 15, 0.9}, // sprinting
}

// StrideLength returns the stride in meters for a speed in m/s.
func StrideLength(speedMps float64) float64 {
	for i, b := range bands {
		last := i == len(bands)-1
		if speedMps >= b.min && (speedMps < b.max || last && speedMps <= b.max) {
			return b.stride
		}
	}
	return FallbackStride
}

// MaxStridesPerCall bounds the steps one call adds at a given stride.
func MaxStridesPerCall(stride float64) int {
	return int(math.Round(MaxDelta / stride))
}

// Estimator accumulates a monotonic step count. It is not safe for
// concurrent use.
type Estimator struct {
	steps    int
	baseline float64
	// gap is distance skipped by Update as too long for one stride. Tick
	// pays it out at a bounded cadence.
	gap float64
}

// New returns an Estimator with no steps.
func New() *Estimator {
	return &Estimator{}
}

// Update feeds the cumulative distance in meters and the current speed and
// returns the step count. Movement below MinDelta is kept pending until it
// adds up. Movement above MaxDelta is a gap: the baseline moves to distance
// and no steps are added.
func (e *Estimator) Update(distance, speedMps float64) int {
	delta := distance - e.baseline
	switch {
	case delta < MinDelta:
		return e.steps
	case delta > MaxDelta:
		e.gap += delta
		e.baseline = distance
		return e.steps
	}
	e.steps += int(math.Round(delta / StrideLength(speedMps)))
	e.baseline = distance
	return e.steps
}

// Tick credits skipped gap distance as strides, at most MaxStridesPerCall
// per call, so sparse fixes still produce steps over time. Any remainder
// shorter than a stride stays pending.
func (e *Estimator) Tick(speedMps float64) int {
	stride := StrideLength(speedMps)
	n := int(e.gap / stride)
	if limit := MaxStridesPerCall(stride); n > limit {
		n = limit
	}
	if n > 0 {
		e.steps += n
		e.gap -= float64(n) * stride
	}
	return e.steps
}

// Pending returns the gap distance not yet credited by Tick.
func (e *Estimator) Pending() float64 {
	return e.gap
}

// Steps returns the current count.
func (e *Estimator) Steps() int {
	return e.steps
}

// Reset clears the count, the baseline and any pending gap.
func (e *Estimator) Reset() {
	e.steps = 0
	e.baseline = 0
	e.gap = 0
}
