package units

import (
	"fmt"
	"time"
)

const metersPerMile = 1609.344

// Display holds a run's headline figures in a client's chosen speed unit
// and time zone.
type Display struct {
	Units        string     `json:"units"`
	Speed        float64    `json:"speed"`
	Distance     float64    `json:"distance"`
	DistanceUnit string     `json:"distance_unit"`
	Pace         string     `json:"pace"`
	PaceUnit     string     `json:"pace_unit"`
	Elapsed      string     `json:"elapsed"`
	StartTime    *time.Time `json:"start_time,omitempty"`
}

// NewDisplay renders distanceMeters covered in elapsed for unit, which must
// pass IsValid. A non-nil start is converted to tz.
func NewDisplay(distanceMeters float64, elapsed time.Duration, start *time.Time, unit, tz string) (Display, error) {
	if !IsValid(unit) {
		return Display{}, fmt.Errorf("unknown units %q, want one of %v", unit, ValidUnits)
	}
	d := Display{
		Units:        unit,
		Distance:     distanceMeters / 1000,
		DistanceUnit: "km",
		Pace:         FormatPace(PaceSecPerKm(distanceMeters, elapsed)),
		PaceUnit:     "/km",
		Elapsed:      FormatDuration(elapsed),
	}
	if elapsed > 0 {
		d.Speed = ConvertSpeed(distanceMeters/elapsed.Seconds(), unit)
	}
	if unit == MPH {
		d.Distance = distanceMeters / metersPerMile
		d.DistanceUnit = "mi"
		d.Pace = FormatPace(PaceSecPerKm(distanceMeters, elapsed) * metersPerMile / 1000)
		d.PaceUnit = "/mi"
	}
	if start != nil {
		local, err := ConvertTime(start.UTC(), tz)
		if err != nil {
			return Display{}, err
		}
		d.StartTime = &local
	}
	return d, nil
}
