// Package export writes completed sessions as FIT activity files.
package export

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/muktihari/fit/encoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"
	"github.com/muktihari/fit/proto"

	"github.com/pereirasil/corrida-app-sub000/internal/fsutil"
	"github.com/pereirasil/corrida-app-sub000/internal/geo"
	"github.com/pereirasil/corrida-app-sub000/internal/location"
	"github.com/pereirasil/corrida-app-sub000/internal/security"
	"github.com/pereirasil/corrida-app-sub000/internal/tracker"
)

const degreesToSemicircles = math.MaxInt32 / 180.0

// FIT scale and offset of enhanced_altitude.
const (
	altitudeScale  = 5.0
	altitudeOffset = 500.0
)

func semicircles(deg float64) int32 { return int32(math.Round(deg * degreesToSemicircles)) }

func clampU16(v float64) uint16 {
	return uint16(math.Max(0, math.Min(math.Round(v), math.MaxUint16-1)))
}

// Records converts the measured points of a route to FIT records.
// Synthetic points carry no measurement and are left out.
func Records(route []location.Point) []*mesgdef.Record {
	records := make([]*mesgdef.Record, 0, len(route))
	var prev *location.Point
	dist := 0.0
	for i := range route {
		p := route[i]
		if p.Synthetic {
			continue
		}
		if prev != nil {
			dist += geo.Distance(prev.Latitude, prev.Longitude, p.Latitude, p.Longitude)
		}
		prev = &route[i]

		rec := &mesgdef.Record{
			Timestamp:    p.Time(),
			PositionLat:  semicircles(p.Latitude),
			PositionLong: semicircles(p.Longitude),
			Distance:     uint32(math.Round(dist * 100)),
			GpsAccuracy:  uint8(math.Min(math.Round(p.AccuracyOrUnknown()), 254)),
		}
		if p.Speed != nil {
			rec.EnhancedSpeed = uint32(math.Round(*p.Speed * 1000))
		}
		if p.Altitude != nil {
			rec.EnhancedAltitude = uint32(math.Round((*p.Altitude + altitudeOffset) * altitudeScale))
		}
		records = append(records, rec)
	}
	return records
}

// WriteFIT encodes s as a FIT running activity.
func WriteFIT(w io.Writer, s tracker.Session) error {
	end := s.StartTime.Add(s.Metrics.Elapsed())
	if s.EndTime != nil {
		end = *s.EndTime
	}
	timerMs := uint32(s.Metrics.ElapsedSeconds * 1000)
	elapsedMs := uint32(end.Sub(s.StartTime) / time.Millisecond)
	distanceCm := uint32(math.Round(s.Metrics.DistanceMeters * 100))
	avgSpeed := uint32(math.Round(s.Metrics.SpeedKmh / 3.6 * 1000))

	fit := proto.FIT{}
	fileID := mesgdef.FileId{
		Type:         typedef.FileActivity,
		Manufacturer: typedef.ManufacturerDevelopment,
		TimeCreated:  s.StartTime,
	}
	fit.Messages = append(fit.Messages, fileID.ToMesg(nil))

	start := mesgdef.Event{
		Timestamp: s.StartTime,
		Event:     typedef.EventTimer,
		EventType: typedef.EventTypeStart,
	}
	fit.Messages = append(fit.Messages, start.ToMesg(nil))

	for _, rec := range Records(s.Route) {
		fit.Messages = append(fit.Messages, rec.ToMesg(nil))
	}

	stop := mesgdef.Event{
		Timestamp: end,
		Event:     typedef.EventTimer,
		EventType: typedef.EventTypeStopAll,
	}
	fit.Messages = append(fit.Messages, stop.ToMesg(nil))

	lap := mesgdef.Lap{
		Timestamp:        end,
		StartTime:        s.StartTime,
		TotalElapsedTime: elapsedMs,
		TotalTimerTime:   timerMs,
		TotalDistance:    distanceCm,
		TotalCalories:    clampU16(float64(s.Metrics.Calories)),
		TotalAscent:      clampU16(s.Metrics.ElevationGain),
		TotalDescent:     clampU16(s.Metrics.ElevationLoss),
		EnhancedAvgSpeed: avgSpeed,
		Event:            typedef.EventLap,
		EventType:        typedef.EventTypeStop,
		Sport:            typedef.SportRunning,
	}
	fit.Messages = append(fit.Messages, lap.ToMesg(nil))

	session := mesgdef.Session{
		Timestamp:        end,
		StartTime:        s.StartTime,
		TotalElapsedTime: elapsedMs,
		TotalTimerTime:   timerMs,
		TotalDistance:    distanceCm,
		TotalCalories:    clampU16(float64(s.Metrics.Calories)),
		TotalAscent:      clampU16(s.Metrics.ElevationGain),
		TotalDescent:     clampU16(s.Metrics.ElevationLoss),
		EnhancedAvgSpeed: avgSpeed,
		Sport:            typedef.SportRunning,
		SubSport:         typedef.SubSportStreet,
		Event:            typedef.EventSession,
		EventType:        typedef.EventTypeStop,
		Trigger:          typedef.SessionTriggerActivityEnd,
		NumLaps:          1,
	}
	fit.Messages = append(fit.Messages, session.ToMesg(nil))

	activity := mesgdef.Activity{
		Timestamp:      end,
		TotalTimerTime: timerMs,
		NumSessions:    1,
		Type:           typedef.ActivityManual,
		Event:          typedef.EventActivity,
		EventType:      typedef.EventTypeStop,
	}
	fit.Messages = append(fit.Messages, activity.ToMesg(nil))

	if err := encoder.New(w).Encode(&fit); err != nil {
		return fmt.Errorf("failed to encode FIT file: %w", err)
	}
	return nil
}

// FileName is the export file name of s.
func FileName(s tracker.Session) string {
	id := s.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("corrida-%s-%s.fit", s.StartTime.UTC().Format("20060102-1504"), id)
}

// SaveFIT writes s into dir and returns the file path.
func SaveFIT(fsys fsutil.FileSystem, dir string, s tracker.Session) (string, error) {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export dir %s: %w", dir, err)
	}
	path, err := security.ExportPath(dir, FileName(s))
	if err != nil {
		return "", err
	}
	if err := fsutil.WriteAtomic(fsys, path, func(w io.Writer) error {
		return WriteFIT(w, s)
	}); err != nil {
		return "", err
	}
	return path, nil
}
