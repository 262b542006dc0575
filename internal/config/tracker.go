package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tracker defaults file.
// This is the single source of truth for all default tracker values.
const DefaultConfigPath = "config/tracker.defaults.json"

// Built-in fallbacks used by the Get* accessors when a field is unset.
const (
	DefaultTimeInterval       = time.Second
	DefaultDistanceInterval   = 5.0
	DefaultAcquisitionTimeout = 30 * time.Second
	DefaultSignalLostAfter    = 15 * time.Second
	DefaultMaxSpeedMps        = 15.0
	DefaultFallbackLatitude   = -23.5505
	DefaultFallbackLongitude  = -46.6333
	DefaultFallbackAccuracy   = 100.0
	DefaultCorridorRadius     = 50.0
)

// TrackerConfig holds the tunable parameters of the run tracker. Every field
// is optional; unset fields fall back to the Default* constants.
type TrackerConfig struct {
	// Subscription cadence
	TimeInterval     *string  `json:"time_interval,omitempty"` // duration string like "1s"
	DistanceInterval *float64 `json:"distance_interval_m,omitempty"`

	// Acquisition and signal health
	AcquisitionTimeout *string `json:"acquisition_timeout,omitempty"`
	SignalLostAfter    *string `json:"signal_lost_after,omitempty"`

	// Plausibility filter
	MaxSpeedMps *float64 `json:"max_speed_mps,omitempty"`

	// Location shown when no fix arrives before the acquisition timeout
	FallbackLatitude  *float64 `json:"fallback_latitude,omitempty"`
	FallbackLongitude *float64 `json:"fallback_longitude,omitempty"`
	FallbackAccuracy  *float64 `json:"fallback_accuracy_m,omitempty"`

	// Terrain classification
	GeofencesPath  *string  `json:"geofences_path,omitempty"`
	CorridorRadius *float64 `json:"corridor_radius_m,omitempty"`
}

// EmptyTrackerConfig returns a TrackerConfig with all fields set to nil.
func EmptyTrackerConfig() *TrackerConfig {
	return &TrackerConfig{}
}

// LoadTrackerConfig loads a TrackerConfig from a JSON file. The file must
// have a .json extension and be under 1MB. Fields omitted from the file keep
// their defaults, so partial configs are safe.
func LoadTrackerConfig(path string) (*TrackerConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTrackerConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded, intended
// for test setup.
func MustLoadDefaultConfig() *TrackerConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTrackerConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TrackerConfig) Validate() error {
	durations := []struct {
		name  string
		value *string
	}{
		{"time_interval", c.TimeInterval},
		{"acquisition_timeout", c.AcquisitionTimeout},
		{"signal_lost_after", c.SignalLostAfter},
	}
	for _, d := range durations {
		if d.value == nil || *d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(*d.value)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.value, err)
		}
		if parsed <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, *d.value)
		}
	}

	if c.DistanceInterval != nil && *c.DistanceInterval < 0 {
		return fmt.Errorf("distance_interval_m must be non-negative, got %f", *c.DistanceInterval)
	}
	if c.MaxSpeedMps != nil && *c.MaxSpeedMps <= 0 {
		return fmt.Errorf("max_speed_mps must be positive, got %f", *c.MaxSpeedMps)
	}
	if c.FallbackLatitude != nil && (*c.FallbackLatitude < -90 || *c.FallbackLatitude > 90) {
		return fmt.Errorf("fallback_latitude must be between -90 and 90, got %f", *c.FallbackLatitude)
	}
	if c.FallbackLongitude != nil && (*c.FallbackLongitude < -180 || *c.FallbackLongitude > 180) {
		return fmt.Errorf("fallback_longitude must be between -180 and 180, got %f", *c.FallbackLongitude)
	}
	if c.FallbackAccuracy != nil && *c.FallbackAccuracy <= 0 {
		return fmt.Errorf("fallback_accuracy_m must be positive, got %f", *c.FallbackAccuracy)
	}
	if c.CorridorRadius != nil && *c.CorridorRadius <= 0 {
		return fmt.Errorf("corridor_radius_m must be positive, got %f", *c.CorridorRadius)
	}
	return nil
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// GetTimeInterval returns the minimum time between delivered fixes.
func (c *TrackerConfig) GetTimeInterval() time.Duration {
	return durationOr(c.TimeInterval, DefaultTimeInterval)
}

// GetDistanceInterval returns the minimum movement in meters between
// delivered fixes.
func (c *TrackerConfig) GetDistanceInterval() float64 {
	return floatOr(c.DistanceInterval, DefaultDistanceInterval)
}

// GetAcquisitionTimeout returns how long Start waits for a first fix.
func (c *TrackerConfig) GetAcquisitionTimeout() time.Duration {
	return durationOr(c.AcquisitionTimeout, DefaultAcquisitionTimeout)
}

// GetSignalLostAfter returns the silence after which GPS is reported lost.
func (c *TrackerConfig) GetSignalLostAfter() time.Duration {
	return durationOr(c.SignalLostAfter, DefaultSignalLostAfter)
}

// GetMaxSpeedMps returns the implied speed above which a fix is rejected.
func (c *TrackerConfig) GetMaxSpeedMps() float64 {
	return floatOr(c.MaxSpeedMps, DefaultMaxSpeedMps)
}

// GetFallbackLatitude returns the latitude of the fallback location.
func (c *TrackerConfig) GetFallbackLatitude() float64 {
	return floatOr(c.FallbackLatitude, DefaultFallbackLatitude)
}

// GetFallbackLongitude returns the longitude of the fallback location.
func (c *TrackerConfig) GetFallbackLongitude() float64 {
	return floatOr(c.FallbackLongitude, DefaultFallbackLongitude)
}

// GetFallbackAccuracy returns the accuracy reported for the fallback location.
func (c *TrackerConfig) GetFallbackAccuracy() float64 {
	return floatOr(c.FallbackAccuracy, DefaultFallbackAccuracy)
}

// GetGeofencesPath returns the optional geofence file, or "".
func (c *TrackerConfig) GetGeofencesPath() string {
	if c.GeofencesPath == nil {
		return ""
	}
	return *c.GeofencesPath
}

// GetCorridorRadius returns the bike path corridor radius in meters.
func (c *TrackerConfig) GetCorridorRadius() float64 {
	return floatOr(c.CorridorRadius, DefaultCorridorRadius)
}
