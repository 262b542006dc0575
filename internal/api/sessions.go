package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/pereirasil/corrida-app-sub000/internal/db"
	"github.com/pereirasil/corrida-app-sub000/internal/export"
	"github.com/pereirasil/corrida-app-sub000/internal/httputil"
	"github.com/pereirasil/corrida-app-sub000/internal/report"
	"github.com/pereirasil/corrida-app-sub000/internal/tracker"
)

const defaultListLimit = 50

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		httputil.WriteJSONOK(w, []db.SessionSummary{})
		return
	}
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.BadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	sessions, err := s.store.ListSessions(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, sessions)
}

// loadSession writes the error response itself and reports false when the
// session cannot be served.
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (tracker.Session, bool) {
	id := r.PathValue("id")
	if s.store == nil {
		httputil.NotFound(w, "session storage is disabled")
		return tracker.Session{}, false
	}
	session, err := s.store.GetSession(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, fmt.Sprintf("session %s not found", id))
		return tracker.Session{}, false
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return tracker.Session{}, false
	}
	return session, true
}

func (s *Server) showSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, session)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		httputil.NotFound(w, "session storage is disabled")
		return
	}
	id := r.PathValue("id")
	err := s.store.DeleteSession(r.Context(), id)
	switch {
	case errors.Is(err, db.ErrNotFound):
		httputil.NotFound(w, fmt.Sprintf("session %s not found", id))
	case err != nil:
		httputil.InternalServerError(w, err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) showSplits(w http.ResponseWriter, r *http.Request) {
	session, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	start := session.StartTime
	display, err := displayFor(r, session.Metrics, &start)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, SplitsView{Summary: report.Summarize(session, s.terrain), Display: display})
}

func (s *Server) showChart(w http.ResponseWriter, r *http.Request) {
	session, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.RenderDashboard(&buf, report.Summarize(session, s.terrain), session.Route); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) showProfile(w http.ResponseWriter, r *http.Request) {
	session, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	err := report.RenderProfilePNG(&buf, session)
	if errors.Is(err, report.ErrTooShort) {
		httputil.WriteJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}

func (s *Server) exportFIT(w http.ResponseWriter, r *http.Request) {
	session, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteFIT(&buf, session); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/vnd.ant.fit")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(session)))
	w.Write(buf.Bytes())
}
