package tracker

import (
	"time"

	"github.com/pereirasil/corrida-app-sub000/internal/location"
)

// Metrics are the derived figures of a running session.
type Metrics struct {
	DistanceMeters  float64          `json:"distance_m"`
	ElapsedSeconds  int64            `json:"elapsed_s"`
	PaceSecPerKm    float64          `json:"pace_s_per_km"`
	SpeedKmh        float64          `json:"speed_kmh"`
	Calories        int              `json:"calories"`
	Steps           int              `json:"steps"`
	ElevationGain   float64          `json:"elevation_gain_m"`
	ElevationLoss   float64          `json:"elevation_loss_m"`
	AverageAccuracy float64          `json:"average_accuracy_m"`
	GPSQuality      location.Quality `json:"gps_quality,omitempty"`
}

// Elapsed returns the active time as a duration.
func (m Metrics) Elapsed() time.Duration {
	return time.Duration(m.ElapsedSeconds) * time.Second
}

// GPSStats counts every fix delivered while active, including rejected ones.
type GPSStats struct {
	TotalPoints         int     `json:"total_points"`
	AccuratePoints      int     `json:"accurate_points"` // accepted with excellent or good quality
	AcceptedPoints      int     `json:"accepted_points"`
	RejectedLowAccuracy int     `json:"rejected_low_accuracy"`
	RejectedJumps       int     `json:"rejected_jumps"`
	AverageAccuracy     float64 `json:"average_accuracy_m"`
	// SignalStrength is the share of delivered fixes that were accurate,
	// from 0 to 100.
	SignalStrength int `json:"signal_strength"`
}

// Session is one run from Start to Stop.
type Session struct {
	ID        string           `json:"id"`
	StartTime time.Time        `json:"start_time"`
	EndTime   *time.Time       `json:"end_time,omitempty"`
	Route     []location.Point `json:"route"`
	Metrics   Metrics          `json:"metrics"`
	GPSStats  GPSStats         `json:"gps_stats"`
	IsActive  bool             `json:"is_active"`
}

// Snapshot is a consistent read-only view of the tracker, published to
// watchers after every change.
type Snapshot struct {
	State           State           `json:"state"`
	GPSStatus       GPSStatus       `json:"gps_status"`
	SessionID       string          `json:"session_id,omitempty"`
	StartTime       *time.Time      `json:"start_time,omitempty"`
	EndTime         *time.Time      `json:"end_time,omitempty"`
	IsActive        bool            `json:"is_active"`
	RoutePoints     int             `json:"route_points"`
	Metrics         Metrics         `json:"metrics"`
	GPSStats        GPSStats        `json:"gps_stats"`
	CurrentLocation *location.Point `json:"current_location,omitempty"`
	LastError       string          `json:"last_error,omitempty"`
	ErrorKind       Kind            `json:"error_kind,omitempty"`
	ErrorHint       string          `json:"error_hint,omitempty"`
}
