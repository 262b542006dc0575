// Package units converts the tracker's SI measurements for display.
package units

import (
	"fmt"
	"math"
	"time"
)

// Speed unit identifiers accepted by ConvertSpeed.
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// ConvertSpeed converts a speed from meters per second to the target units.
// Unknown units return the speed unchanged.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * 2.2369362920544
	case KMPH, KPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}

// SpeedKmh returns the average speed in km/h over distanceMeters covered in
// elapsed. It is 0 when no time has elapsed.
func SpeedKmh(distanceMeters float64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return (distanceMeters / 1000) / elapsed.Hours()
}

// PaceSecPerKm returns the average pace in seconds per kilometer. It is 0
// until both distance and time are positive.
func PaceSecPerKm(distanceMeters float64, elapsed time.Duration) float64 {
	if distanceMeters <= 0 || elapsed <= 0 {
		return 0
	}
	return elapsed.Seconds() / (distanceMeters / 1000)
}

// FormatPace renders a pace in seconds per kilometer as "m:ss". A zero or
// invalid pace renders as "--:--".
func FormatPace(secPerKm float64) string {
	if secPerKm <= 0 || math.IsInf(secPerKm, 0) || math.IsNaN(secPerKm) {
		return "--:--"
	}
	total := int(math.Round(secPerKm))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// FormatDuration renders d as "h:mm:ss", or "m:ss" under an hour.
func FormatDuration(d time.Duration) string {
	total := int(d.Round(time.Second).Seconds())
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
