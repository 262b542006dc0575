package units

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertSpeed(t *testing.T) {
	tests := []struct {
		name     string
		speedMPS float64
		units    string
		expected float64
	}{
		{"jog to kmph", 2.5, KMPH, 9.0},
		{"jog to kph", 2.5, KPH, 9.0},
		{"jog to mph", 2.5, MPH, 5.5923},
		{"mps unchanged", 2.5, MPS, 2.5},
		{"unknown unchanged", 2.5, "furlongs", 2.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, ConvertSpeed(tt.speedMPS, tt.units), 0.001)
		})
	}
}

func TestIsValid(t *testing.T) {
	for _, u := range ValidUnits {
		assert.True(t, IsValid(u))
	}
	assert.False(t, IsValid("knots"))
}

func TestSpeedAndPace(t *testing.T) {
	// 5 km in 25 minutes.
	assert.InDelta(t, 12.0, SpeedKmh(5000, 25*time.Minute), 1e-9)
	assert.InDelta(t, 300.0, PaceSecPerKm(5000, 25*time.Minute), 1e-9)

	assert.Zero(t, SpeedKmh(100, 0))
	assert.Zero(t, PaceSecPerKm(0, time.Minute))
	assert.Zero(t, PaceSecPerKm(100, 0))
}

func TestFormatPace(t *testing.T) {
	assert.Equal(t, "5:30", FormatPace(330))
	assert.Equal(t, "4:05", FormatPace(244.6))
	assert.Equal(t, "--:--", FormatPace(0))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0:42", FormatDuration(42*time.Second))
	assert.Equal(t, "25:00", FormatDuration(25*time.Minute))
	assert.Equal(t, "1:02:03", FormatDuration(time.Hour+2*time.Minute+3*time.Second))
}

func TestConvertTime(t *testing.T) {
	utc := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	got, err := ConvertTime(utc, "UTC")
	require.NoError(t, err)
	assert.Equal(t, utc, got)

	got, err = ConvertTime(utc, "America/Sao_Paulo")
	require.NoError(t, err)
	assert.Equal(t, 7, got.Hour())
	assert.True(t, got.Equal(utc))

	_, err = ConvertTime(utc, "Not/AZone")
	assert.Error(t, err)
	assert.False(t, IsTimezoneValid("Not/AZone"))
	assert.True(t, IsTimezoneValid("America/Sao_Paulo"))
	assert.False(t, IsTimezoneValid(""))
}

func TestNewDisplay(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	d, err := NewDisplay(5000, 25*time.Minute, &start, KMPH, "America/Sao_Paulo")
	require.NoError(t, err)
	assert.InDelta(t, 12.0, d.Speed, 1e-9)
	assert.InDelta(t, 5.0, d.Distance, 1e-9)
	assert.Equal(t, "km", d.DistanceUnit)
	assert.Equal(t, "5:00", d.Pace)
	assert.Equal(t, "/km", d.PaceUnit)
	assert.Equal(t, "25:00", d.Elapsed)
	require.NotNil(t, d.StartTime)
	assert.Equal(t, 7, d.StartTime.Hour(), "UTC-3")

	d, err = NewDisplay(5000, 25*time.Minute, nil, MPH, "")
	require.NoError(t, err)
	assert.InDelta(t, 7.456, d.Speed, 0.001)
	assert.InDelta(t, 3.107, d.Distance, 0.001)
	assert.Equal(t, "mi", d.DistanceUnit)
	assert.Equal(t, "8:03", d.Pace)
	assert.Nil(t, d.StartTime)

	d, err = NewDisplay(0, 0, nil, MPS, "")
	require.NoError(t, err)
	assert.Zero(t, d.Speed)
	assert.Equal(t, "--:--", d.Pace)

	_, err = NewDisplay(5000, time.Minute, nil, "knots", "")
	assert.Error(t, err)
	_, err = NewDisplay(5000, time.Minute, &start, KMPH, "Mars/Olympus")
	assert.Error(t, err)
}
