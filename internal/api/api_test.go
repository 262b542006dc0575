package api

import (
	"bytes"
	"context"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muktihari/fit/decoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pereirasil/corrida-app-sub000/internal/arbiter"
	"github.com/pereirasil/corrida-app-sub000/internal/db"
	"github.com/pereirasil/corrida-app-sub000/internal/httputil"
	"github.com/pereirasil/corrida-app-sub000/internal/location"
	"github.com/pereirasil/corrida-app-sub000/internal/playback"
	"github.com/pereirasil/corrida-app-sub000/internal/report"
	"github.com/pereirasil/corrida-app-sub000/internal/testutil"
	"github.com/pereirasil/corrida-app-sub000/internal/timeutil"
	"github.com/pereirasil/corrida-app-sub000/internal/tracker"
)

type harness struct {
	clock  *timeutil.MockClock
	prov   *location.MockProvider
	arb    *arbiter.Arbiter
	tr     *tracker.Tracker
	player *playback.Player
	store  *db.DB
	mux    *http.ServeMux
}

func firstFix() *location.Fix {
	f := testutil.StraightRun(1, 0).Build(testutil.T0)[0]
	return &f
}

func newHarness(t *testing.T, first *location.Fix) *harness {
	t.Helper()
	clock := timeutil.NewMockClock(testutil.T0)
	prov := location.NewMockProvider(first)
	arb := arbiter.New()
	tr, err := tracker.New(tracker.Config{Provider: prov, Arbiter: arb, Clock: clock})
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = tr.Stop() })

	store, err := db.NewDB(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	player := playback.New(arb, clock)
	srv := NewServer(Config{Tracker: tr, Arbiter: arb, Player: player, Store: store})
	return &harness{clock: clock, prov: prov, arb: arb, tr: tr, player: player, store: store, mux: srv.ServeMux()}
}

func (h *harness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	return testutil.Serve(t, h.mux, req)
}

func TestRun_StartPauseResumeStop(t *testing.T) {
	h := newHarness(t, firstFix())

	rec := h.do(t, http.MethodGet, "/api/run", "")
	require.Equal(t, http.StatusOK, rec.Code)
	snap := testutil.DecodeJSON[tracker.Snapshot](t, rec.Body)
	assert.Equal(t, tracker.StateIdle, snap.State)

	rec = h.do(t, http.MethodPost, "/api/run/start", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap = testutil.DecodeJSON[tracker.Snapshot](t, rec.Body)
	assert.Equal(t, tracker.StateActive, snap.State)
	assert.Equal(t, tracker.GPSAcquired, snap.GPSStatus)
	assert.Equal(t, 1, snap.RoutePoints)

	rec = h.do(t, http.MethodPost, "/api/run/pause", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tracker.StatePaused, testutil.DecodeJSON[tracker.Snapshot](t, rec.Body).State)

	rec = h.do(t, http.MethodPost, "/api/run/resume", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tracker.StateActive, testutil.DecodeJSON[tracker.Snapshot](t, rec.Body).State)

	rec = h.do(t, http.MethodPost, "/api/run/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stopped := testutil.DecodeJSON[StopResponse](t, rec.Body)
	assert.True(t, stopped.Saved)
	assert.Empty(t, stopped.SaveError)
	assert.False(t, stopped.Session.IsActive)

	stored, err := h.store.GetSession(context.Background(), stopped.Session.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Route, 1)
}

func TestRun_ErrorStatus(t *testing.T) {
	t.Run("invalid transition", func(t *testing.T) {
		h := newHarness(t, firstFix())
		rec := h.do(t, http.MethodPost, "/api/run/pause", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
		body := testutil.DecodeJSON[httputil.ErrorBody](t, rec.Body)
		assert.Equal(t, string(tracker.KindInvalidTransition), body.Kind)
	})

	t.Run("permission denied", func(t *testing.T) {
		h := newHarness(t, firstFix())
		h.prov.Permission = location.PermissionDenied
		rec := h.do(t, http.MethodPost, "/api/run/start", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		body := testutil.DecodeJSON[httputil.ErrorBody](t, rec.Body)
		assert.Equal(t, string(tracker.KindPermissionDenied), body.Kind)
		assert.NotEmpty(t, body.Hint)
	})

	t.Run("resource conflict", func(t *testing.T) {
		h := newHarness(t, firstFix())
		require.True(t, h.arb.Register("voice-1", arbiter.Audio, arbiter.GPSTracking))
		rec := h.do(t, http.MethodPost, "/api/run/start", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
		body := testutil.DecodeJSON[httputil.ErrorBody](t, rec.Body)
		assert.Equal(t, string(tracker.KindResourceConflict), body.Kind)
		assert.Equal(t, []string{"audio (voice-1)"}, body.Conflicts)
	})
}

func TestRun_AcquisitionTimeoutIsAccepted(t *testing.T) {
	h := newHarness(t, nil)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- h.do(t, http.MethodPost, "/api/run/start", "") }()

	h.clock.BlockUntilTimers(1)
	h.clock.Advance(30 * time.Second)

	var rec *httptest.ResponseRecorder
	select {
	case rec = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("start did not return after the acquisition timeout")
	}
	require.Equal(t, http.StatusAccepted, rec.Code)
	snap := testutil.DecodeJSON[tracker.Snapshot](t, rec.Body)
	assert.Equal(t, tracker.StateActive, snap.State)
	assert.Equal(t, tracker.KindAcquisitionTimeout, snap.ErrorKind)

	rec = h.do(t, http.MethodGet, "/api/run/gps", "")
	require.Equal(t, http.StatusOK, rec.Code)
	gps := testutil.DecodeJSON[GPSResponse](t, rec.Body)
	assert.Equal(t, tracker.GPSLost, gps.Status)
	require.NotNil(t, gps.CurrentLocation)
	assert.True(t, gps.CurrentLocation.Synthetic)
	assert.NotEmpty(t, gps.Hint)
}

func TestMusic_BlockedWhileRunning(t *testing.T) {
	h := newHarness(t, firstFix())

	rec := h.do(t, http.MethodPost, "/api/music/play", `{"track":"warmup"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, testutil.DecodeJSON[playback.Status](t, rec.Body).Playing)

	// Starting a run takes the GPS resource and evicts music.
	rec = h.do(t, http.MethodPost, "/api/run/start", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/resources", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res := testutil.DecodeJSON[ResourcesResponse](t, rec.Body)
	assert.False(t, res.CanPlayMusic)
	assert.False(t, res.Music.Playing)
	assert.Equal(t, playback.ReasonEvicted, res.Music.StopReason)
	require.Len(t, res.Active, 1)
	assert.Equal(t, arbiter.GPS, res.Active[0].Type)

	rec = h.do(t, http.MethodPost, "/api/music/play", `{"track":"tempo"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := testutil.DecodeJSON[httputil.ErrorBody](t, rec.Body)
	assert.Equal(t, string(tracker.KindResourceConflict), body.Kind)
	assert.Equal(t, "Stop the run to play music.", body.Hint)
	assert.Equal(t, []string{"gps (" + h.tr.ResourceID() + ")"}, body.Conflicts)

	h.do(t, http.MethodPost, "/api/run/stop", "")
	rec = h.do(t, http.MethodPost, "/api/music/play", `{"track":"cooldown"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/music/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, playback.ReasonStopped, testutil.DecodeJSON[playback.Status](t, rec.Body).StopReason)
}

func TestMusic_BadRequest(t *testing.T) {
	h := newHarness(t, firstFix())
	for _, body := range []string{"", `{"track":""}`, `{"song":"x"}`, `not json`} {
		rec := h.do(t, http.MethodPost, "/api/music/play", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}

func TestRun_RouteAndTerrain(t *testing.T) {
	h := newHarness(t, firstFix())

	rec := h.do(t, http.MethodGet, "/api/run/route", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"session_id":"","points":[]}`, rec.Body.String())

	h.do(t, http.MethodPost, "/api/run/start", "")
	rec = h.do(t, http.MethodGet, "/api/run/terrain", "")
	require.Equal(t, http.StatusOK, rec.Code)
	terr := testutil.DecodeJSON[TerrainResponse](t, rec.Body)
	require.Len(t, terr.Segments, 1)
	assert.Equal(t, 0, terr.Segments[0].StartIndex)
}

func storedRun(t *testing.T, h *harness) tracker.Session {
	t.Helper()
	s := testutil.StraightRun(301, 5).Session("run-1500", testutil.T0)
	require.NoError(t, h.store.SaveSession(context.Background(), s))
	return s
}

func TestSessions(t *testing.T) {
	h := newHarness(t, firstFix())
	s := storedRun(t, h)

	rec := h.do(t, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := testutil.DecodeJSON[[]db.SessionSummary](t, rec.Body)
	require.Len(t, list, 1)
	assert.Equal(t, s.ID, list[0].ID)
	assert.Equal(t, 301, list[0].RoutePoints)

	rec = h.do(t, http.MethodGet, "/api/sessions?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/sessions/"+s.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := testutil.DecodeJSON[tracker.Session](t, rec.Body)
	assert.Len(t, got.Route, 301)

	rec = h.do(t, http.MethodGet, "/api/sessions/"+s.ID+"/splits", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sum := testutil.DecodeJSON[report.Summary](t, rec.Body)
	require.Len(t, sum.Splits, 2)
	assert.True(t, sum.Splits[1].Partial)

	rec = h.do(t, http.MethodGet, "/api/sessions/"+s.ID+"/chart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Pace per split")

	rec = h.do(t, http.MethodGet, "/api/sessions/"+s.ID+"/profile.png", "")
	require.Equal(t, http.StatusOK, rec.Code)
	_, err := png.Decode(rec.Body)
	assert.NoError(t, err)

	rec = h.do(t, http.MethodGet, "/api/sessions/"+s.ID+"/export.fit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".fit")
	_, err = decoder.New(bytes.NewReader(rec.Body.Bytes())).Decode()
	assert.NoError(t, err)

	rec = h.do(t, http.MethodDelete, "/api/sessions/"+s.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do(t, http.MethodDelete, "/api/sessions/"+s.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = h.do(t, http.MethodGet, "/api/sessions/"+s.ID+"/splits", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDisplayUnits(t *testing.T) {
	h := newHarness(t, firstFix())
	s := storedRun(t, h)

	rec := h.do(t, http.MethodGet, "/api/sessions/"+s.ID+"/splits?units=kmph&tz=America/Sao_Paulo", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := testutil.DecodeJSON[SplitsView](t, rec.Body)
	require.NotNil(t, view.Display)
	assert.InDelta(t, 18.0, view.Display.Speed, 0.05, "1500 m in 300 s")
	assert.Equal(t, "3:20", view.Display.Pace)
	require.NotNil(t, view.Display.StartTime)
	assert.Equal(t, 4, view.Display.StartTime.Hour(), "07:00 UTC is 04:00 in Sao Paulo")
	assert.Len(t, view.Splits, 2)

	rec = h.do(t, http.MethodGet, "/api/sessions/"+s.ID+"/splits", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, testutil.DecodeJSON[SplitsView](t, rec.Body).Display)

	require.NoError(t, h.tr.Start(context.Background()))
	rec = h.do(t, http.MethodGet, "/api/run?units=mph", "")
	require.Equal(t, http.StatusOK, rec.Code)
	run := testutil.DecodeJSON[RunView](t, rec.Body)
	assert.Equal(t, tracker.StateActive, run.State)
	require.NotNil(t, run.Display)
	assert.Equal(t, "mi", run.Display.DistanceUnit)
	assert.Equal(t, "/mi", run.Display.PaceUnit)

	for _, q := range []string{"units=knots", "tz=Mars/Olympus"} {
		rec = h.do(t, http.MethodGet, "/api/run?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		rec = h.do(t, http.MethodGet, "/api/sessions/"+s.ID+"/splits?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestSessions_NoStore(t *testing.T) {
	h := newHarness(t, firstFix())
	mux := NewServer(Config{Tracker: h.tr, Arbiter: h.arb, Player: h.player}).ServeMux()

	rec := testutil.Serve(t, mux, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = testutil.Serve(t, mux, httptest.NewRequest(http.MethodGet, "/api/sessions/abc", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	h.do(t, http.MethodPost, "/api/run/start", "")
	rec = testutil.Serve(t, mux, httptest.NewRequest(http.MethodPost, "/api/run/stop", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, testutil.DecodeJSON[StopResponse](t, rec.Body).Saved)
}

func TestLive_StreamsSnapshots(t *testing.T) {
	h := newHarness(t, firstFix())
	srv := httptest.NewServer(LoggingMiddleware(h.mux))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/run/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var snap tracker.Snapshot
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, tracker.StateIdle, snap.State)

	require.NoError(t, h.tr.Start(context.Background()))
	for snap.State != tracker.StateActive {
		require.NoError(t, conn.ReadJSON(&snap))
	}
	assert.Equal(t, tracker.GPSAcquired, snap.GPSStatus)
}

func TestVersion(t *testing.T) {
	h := newHarness(t, firstFix())
	rec := h.do(t, http.MethodGet, "/api/version", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_version")
}

func TestStatusCodeColor(t *testing.T) {
	assert.Contains(t, statusCodeColor(200), "200")
	assert.Contains(t, statusCodeColor(404), colorBoldRed)
	assert.Equal(t, "101", statusCodeColor(101))
}

func TestAdminRoutes(t *testing.T) {
	h := newHarness(t, firstFix())
	mux := http.NewServeMux()
	NewServer(Config{Tracker: h.tr, Arbiter: h.arb, Player: h.player}).AttachAdminRoutes(mux)
	require.NoError(t, h.tr.Start(context.Background()))

	req := httptest.NewRequest(http.MethodGet, "/debug/tracker", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	rec := testutil.Serve(t, mux, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tracker.StateActive, testutil.DecodeJSON[tracker.Snapshot](t, rec.Body).State)

	req = httptest.NewRequest(http.MethodGet, "/debug/resources", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	rec = testutil.Serve(t, mux, req)
	require.Equal(t, http.StatusOK, rec.Code)
	regs := testutil.DecodeJSON[[]arbiter.Registration](t, rec.Body)
	require.Len(t, regs, 1)
	assert.Equal(t, h.tr.ResourceID(), regs[0].ID)
}
