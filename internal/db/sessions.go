package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pereirasil/corrida-app-sub000/internal/location"
	"github.com/pereirasil/corrida-app-sub000/internal/tracker"
)

// ErrNotFound is returned when no session has the requested ID.
var ErrNotFound = errors.New("session not found")

// SessionSummary is a stored session without its route.
type SessionSummary struct {
	ID          string           `json:"id"`
	StartTime   time.Time        `json:"start_time"`
	EndTime     *time.Time       `json:"end_time,omitempty"`
	Metrics     tracker.Metrics  `json:"metrics"`
	GPSStats    tracker.GPSStats `json:"gps_stats"`
	RoutePoints int              `json:"route_points"`
}

const sessionColumns = `
	s.session_id, s.start_time_unix_ms, s.end_time_unix_ms,
	s.distance_m, s.elapsed_s, s.pace_s_per_km, s.speed_kmh, s.calories, s.steps,
	s.elevation_gain_m, s.elevation_loss_m, s.average_accuracy_m, s.gps_quality,
	s.total_points, s.accurate_points, s.accepted_points,
	s.rejected_low_accuracy, s.rejected_jumps, s.signal_strength`

// SaveSession stores a completed session and its route, replacing any
// earlier copy with the same ID.
func (db *DB) SaveSession(ctx context.Context, s tracker.Session) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM route_points WHERE session_id = ?`, s.ID); err != nil {
		return fmt.Errorf("failed to clear route of session %s: %w", s.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, s.ID); err != nil {
		return fmt.Errorf("failed to replace session %s: %w", s.ID, err)
	}

	var endMs *int64
	if s.EndTime != nil {
		v := s.EndTime.UnixMilli()
		endMs = &v
	}
	m, g := s.Metrics, s.GPSStats
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (
			session_id, start_time_unix_ms, end_time_unix_ms,
			distance_m, elapsed_s, pace_s_per_km, speed_kmh, calories, steps,
			elevation_gain_m, elevation_loss_m, average_accuracy_m, gps_quality,
			total_points, accurate_points, accepted_points,
			rejected_low_accuracy, rejected_jumps, signal_strength
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.StartTime.UnixMilli(), endMs,
		m.DistanceMeters, m.ElapsedSeconds, m.PaceSecPerKm, m.SpeedKmh, m.Calories, m.Steps,
		m.ElevationGain, m.ElevationLoss, m.AverageAccuracy, string(m.GPSQuality),
		g.TotalPoints, g.AccuratePoints, g.AcceptedPoints,
		g.RejectedLowAccuracy, g.RejectedJumps, g.SignalStrength,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session %s: %w", s.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO route_points (
			session_id, seq, latitude, longitude, timestamp_ms,
			accuracy_m, altitude_m, speed_mps, heading_deg, quality, synthetic
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare route insert: %w", err)
	}
	defer stmt.Close()
	for i, p := range s.Route {
		synthetic := 0
		if p.Synthetic {
			synthetic = 1
		}
		if _, err := stmt.ExecContext(ctx,
			s.ID, i, p.Latitude, p.Longitude, p.Timestamp,
			p.Accuracy, p.Altitude, p.Speed, p.Heading, string(p.Quality), synthetic,
		); err != nil {
			return fmt.Errorf("failed to insert route point %d of session %s: %w", i, s.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session %s: %w", s.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner, extra ...any) (SessionSummary, error) {
	var (
		s       SessionSummary
		startMs int64
		endMs   sql.NullInt64
		quality string
	)
	dest := []any{
		&s.ID, &startMs, &endMs,
		&s.Metrics.DistanceMeters, &s.Metrics.ElapsedSeconds, &s.Metrics.PaceSecPerKm,
		&s.Metrics.SpeedKmh, &s.Metrics.Calories, &s.Metrics.Steps,
		&s.Metrics.ElevationGain, &s.Metrics.ElevationLoss, &s.Metrics.AverageAccuracy, &quality,
		&s.GPSStats.TotalPoints, &s.GPSStats.AccuratePoints, &s.GPSStats.AcceptedPoints,
		&s.GPSStats.RejectedLowAccuracy, &s.GPSStats.RejectedJumps, &s.GPSStats.SignalStrength,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return s, err
	}
	s.StartTime = time.UnixMilli(startMs).UTC()
	if endMs.Valid {
		end := time.UnixMilli(endMs.Int64).UTC()
		s.EndTime = &end
	}
	s.Metrics.GPSQuality = location.Quality(quality)
	s.GPSStats.AverageAccuracy = s.Metrics.AverageAccuracy
	return s, nil
}

// ListSessions returns stored sessions newest first. limit <= 0 means all.
func (db *DB) ListSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	query := `SELECT ` + sessionColumns + `,
			(SELECT COUNT(*) FROM route_points r WHERE r.session_id = s.session_id)
		FROM sessions s
		ORDER BY s.start_time_unix_ms DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []SessionSummary{}
	for rows.Next() {
		var count int
		s, err := scanSummary(rows, &count)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.RoutePoints = count
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetSession loads a stored session with its route.
func (db *DB) GetSession(ctx context.Context, id string) (tracker.Session, error) {
	row := db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions s WHERE s.session_id = ?`, id)
	summary, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return tracker.Session{}, ErrNotFound
	}
	if err != nil {
		return tracker.Session{}, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	route, err := db.route(ctx, id)
	if err != nil {
		return tracker.Session{}, err
	}
	return tracker.Session{
		ID:        summary.ID,
		StartTime: summary.StartTime,
		EndTime:   summary.EndTime,
		Route:     route,
		Metrics:   summary.Metrics,
		GPSStats:  summary.GPSStats,
	}, nil
}

func (db *DB) route(ctx context.Context, id string) ([]location.Point, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT latitude, longitude, timestamp_ms, accuracy_m, altitude_m,
			speed_mps, heading_deg, quality, synthetic
		FROM route_points
		WHERE session_id = ?
		ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load route of session %s: %w", id, err)
	}
	defer rows.Close()

	route := []location.Point{}
	for rows.Next() {
		var (
			p         location.Point
			acc, alt  sql.NullFloat64
			spd, hdg  sql.NullFloat64
			quality   string
			synthetic int
		)
		if err := rows.Scan(&p.Latitude, &p.Longitude, &p.Timestamp, &acc, &alt, &spd, &hdg, &quality, &synthetic); err != nil {
			return nil, fmt.Errorf("failed to scan route point: %w", err)
		}
		p.Accuracy = nullable(acc)
		p.Altitude = nullable(alt)
		p.Speed = nullable(spd)
		p.Heading = nullable(hdg)
		p.Quality = location.Quality(quality)
		p.Synthetic = synthetic != 0
		route = append(route, p)
	}
	return route, rows.Err()
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return location.Float(v.Float64)
}

// DeleteSession removes a stored session and its route.
func (db *DB) DeleteSession(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
