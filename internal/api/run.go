package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/pereirasil/corrida-app-sub000/internal/arbiter"
	"github.com/pereirasil/corrida-app-sub000/internal/httputil"
	"github.com/pereirasil/corrida-app-sub000/internal/location"
	"github.com/pereirasil/corrida-app-sub000/internal/terrain"
	"github.com/pereirasil/corrida-app-sub000/internal/tracker"
)

// statusForKind maps tracker error kinds onto HTTP status codes. An
// acquisition timeout is a warning: the run goes on from an approximate
// location, so it is reported as 202.
func statusForKind(kind tracker.Kind) int {
	switch kind {
	case tracker.KindPermissionDenied:
		return http.StatusForbidden
	case tracker.KindResourceConflict, tracker.KindInvalidTransition:
		return http.StatusConflict
	case tracker.KindAcquisitionTimeout:
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}

func conflictNames(regs []arbiter.Registration) []string {
	if len(regs) == 0 {
		return nil
	}
	out := make([]string, len(regs))
	for i, r := range regs {
		out[i] = fmt.Sprintf("%s (%s)", r.Type, r.ID)
	}
	return out
}

func writeTrackerError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		httputil.WriteJSONError(w, http.StatusRequestTimeout, err.Error())
		return
	}
	kind := tracker.KindOf(err)
	httputil.WriteJSON(w, statusForKind(kind), httputil.ErrorBody{
		Error:     err.Error(),
		Kind:      string(kind),
		Hint:      tracker.HintOf(err),
		Retryable: tracker.RetryableOf(err),
		Conflicts: conflictNames(tracker.ConflictsOf(err)),
	})
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	display, err := displayFor(r, snap.Metrics, snap.StartTime)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, RunView{Snapshot: snap, Display: display})
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Start(r.Context()); err != nil {
		writeTrackerError(w, err)
		return
	}
	snap := s.tracker.Snapshot()
	status := http.StatusOK
	if snap.ErrorKind == tracker.KindAcquisitionTimeout {
		status = http.StatusAccepted
	}
	httputil.WriteJSON(w, status, snap)
}

func (s *Server) pauseRun(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Pause(); err != nil {
		writeTrackerError(w, err)
		return
	}
	httputil.WriteJSONOK(w, s.tracker.Snapshot())
}

func (s *Server) resumeRun(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Resume(); err != nil {
		writeTrackerError(w, err)
		return
	}
	httputil.WriteJSONOK(w, s.tracker.Snapshot())
}

// StopResponse is the finished session and whether it was stored.
type StopResponse struct {
	Session   tracker.Session `json:"session"`
	Saved     bool            `json:"saved"`
	SaveError string          `json:"save_error,omitempty"`
}

func (s *Server) stopRun(w http.ResponseWriter, r *http.Request) {
	session, err := s.tracker.Stop()
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	resp := StopResponse{Session: session}
	if s.store != nil {
		// The run is over whatever happens to the request.
		if err := s.store.SaveSession(context.WithoutCancel(r.Context()), session); err != nil {
			logf("failed to save session %s: %v", session.ID, err)
			resp.SaveError = err.Error()
		} else {
			resp.Saved = true
		}
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) retryRun(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Retry(r.Context()); err != nil {
		writeTrackerError(w, err)
		return
	}
	httputil.WriteJSONOK(w, s.tracker.Snapshot())
}

func (s *Server) showRoute(w http.ResponseWriter, r *http.Request) {
	route := s.tracker.Route()
	if route == nil {
		route = []location.Point{}
	}
	httputil.WriteJSONOK(w, map[string]any{
		"session_id": s.tracker.Snapshot().SessionID,
		"points":     route,
	})
}

// GPSResponse is the signal view of the current run.
type GPSResponse struct {
	Status          tracker.GPSStatus `json:"status"`
	Quality         location.Quality  `json:"quality,omitempty"`
	CurrentLocation *location.Point   `json:"current_location,omitempty"`
	Stats           tracker.GPSStats  `json:"stats"`
	LastError       string            `json:"last_error,omitempty"`
	Hint            string            `json:"hint,omitempty"`
}

func (s *Server) showGPS(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	resp := GPSResponse{
		Status:          snap.GPSStatus,
		Quality:         snap.Metrics.GPSQuality,
		CurrentLocation: snap.CurrentLocation,
		Stats:           snap.GPSStats,
		LastError:       snap.LastError,
		Hint:            snap.ErrorHint,
	}
	httputil.WriteJSONOK(w, resp)
}

// TerrainResponse is the terrain breakdown of a route.
type TerrainResponse struct {
	Segments  []terrain.Segment        `json:"segments"`
	ByTerrain map[terrain.Type]float64 `json:"distance_by_terrain_m"`
}

func (s *Server) terrainOf(route []location.Point) TerrainResponse {
	segments := s.terrain.ClassifyRoute(route)
	if segments == nil {
		segments = []terrain.Segment{}
	}
	return TerrainResponse{Segments: segments, ByTerrain: terrain.DistanceByType(segments)}
}

func (s *Server) showTerrain(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, s.terrainOf(s.tracker.Route()))
}
