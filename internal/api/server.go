// Package api serves the run tracker, music arbitration and stored
// sessions over HTTP.
package api

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/pereirasil/corrida-app-sub000/internal/arbiter"
	"github.com/pereirasil/corrida-app-sub000/internal/db"
	"github.com/pereirasil/corrida-app-sub000/internal/httputil"
	"github.com/pereirasil/corrida-app-sub000/internal/monitoring"
	"github.com/pereirasil/corrida-app-sub000/internal/playback"
	"github.com/pereirasil/corrida-app-sub000/internal/terrain"
	"github.com/pereirasil/corrida-app-sub000/internal/tracker"
	"github.com/pereirasil/corrida-app-sub000/internal/version"
	"tailscale.com/tsweb"
)

var logf = monitoring.Component("api")

// ANSI escape codes for the request log
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// SessionStore persists completed sessions. *db.DB implements it.
type SessionStore interface {
	SaveSession(ctx context.Context, s tracker.Session) error
	ListSessions(ctx context.Context, limit int) ([]db.SessionSummary, error)
	GetSession(ctx context.Context, id string) (tracker.Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// Config wires a Server. Tracker, Arbiter and Player are required; without
// a Store finished sessions are not kept and the session routes return 404.
type Config struct {
	Tracker *tracker.Tracker
	Arbiter *arbiter.Arbiter
	Player  *playback.Player
	Store   SessionStore
	Terrain *terrain.Classifier
}

type Server struct {
	tracker *tracker.Tracker
	arbiter *arbiter.Arbiter
	player  *playback.Player
	store   SessionStore
	terrain *terrain.Classifier
}

func NewServer(cfg Config) *Server {
	if cfg.Terrain == nil {
		cfg.Terrain = terrain.NewClassifier(terrain.DefaultGeofences(), terrain.DefaultCorridorRadius)
	}
	return &Server{
		tracker: cfg.Tracker,
		arbiter: cfg.Arbiter,
		player:  cfg.Player,
		store:   cfg.Store,
		terrain: cfg.Terrain,
	}
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/run", s.showRun)
	mux.HandleFunc("POST /api/run/start", s.startRun)
	mux.HandleFunc("POST /api/run/pause", s.pauseRun)
	mux.HandleFunc("POST /api/run/resume", s.resumeRun)
	mux.HandleFunc("POST /api/run/stop", s.stopRun)
	mux.HandleFunc("POST /api/run/retry", s.retryRun)
	mux.HandleFunc("GET /api/run/route", s.showRoute)
	mux.HandleFunc("GET /api/run/gps", s.showGPS)
	mux.HandleFunc("GET /api/run/terrain", s.showTerrain)
	mux.HandleFunc("GET /api/run/live", s.liveRun)

	mux.HandleFunc("GET /api/resources", s.showResources)
	mux.HandleFunc("POST /api/music/play", s.playMusic)
	mux.HandleFunc("POST /api/music/stop", s.stopMusic)

	mux.HandleFunc("GET /api/sessions", s.listSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.showSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.deleteSession)
	mux.HandleFunc("GET /api/sessions/{id}/splits", s.showSplits)
	mux.HandleFunc("GET /api/sessions/{id}/chart", s.showChart)
	mux.HandleFunc("GET /api/sessions/{id}/profile.png", s.showProfile)
	mux.HandleFunc("GET /api/sessions/{id}/export.fit", s.exportFIT)

	mux.HandleFunc("GET /api/version", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, version.Get())
	})
	return mux
}

// AttachAdminRoutes mounts tracker and arbiter views on the /debug/ page.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.KV("Version", version.Get().String())
	debug.HandleFunc("tracker", "Current tracker snapshot", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, s.tracker.Snapshot())
	})
	debug.HandleFunc("resources", "Active resource registrations", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, s.arbiter.Registrations())
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack passes the connection through for websocket upgrades.
func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := lrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (lrw *loggingResponseWriter) Unwrap() http.ResponseWriter { return lrw.ResponseWriter }

func statusCodeColor(statusCode int) string {
	code := strconv.Itoa(statusCode)
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + code + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + code + colorReset
	case statusCode >= 400:
		return colorBoldRed + code + colorReset
	default:
		return code
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}
