// Package tracker owns the lifecycle of a run: it acquires the GPS resource
// and a first fix, folds accepted fixes into the route and running metrics,
// and releases everything on stop.
//
// All state transitions and per-fix updates are serialised by one mutex, so
// readers never observe a half-applied fix.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pereirasil/corrida-app-sub000/internal/arbiter"
	"github.com/pereirasil/corrida-app-sub000/internal/config"
	"github.com/pereirasil/corrida-app-sub000/internal/geo"
	"github.com/pereirasil/corrida-app-sub000/internal/location"
	"github.com/pereirasil/corrida-app-sub000/internal/monitoring"
	"github.com/pereirasil/corrida-app-sub000/internal/quality"
	"github.com/pereirasil/corrida-app-sub000/internal/steps"
	"github.com/pereirasil/corrida-app-sub000/internal/timeutil"
	"github.com/pereirasil/corrida-app-sub000/internal/units"
)

var logf = monitoring.Component("tracker")

const tickInterval = time.Second

// Calorie model: an approximate MET-style heuristic, not a physiological
// measurement.
const (
	caloriesPerMeter        = 0.065
	caloriesPerMeterClimbed = 0.1
)

// Config wires a Tracker to its collaborators. Provider is required; the
// other fields have defaults.
type Config struct {
	Provider location.Provider
	Arbiter  *arbiter.Arbiter
	Clock    timeutil.Clock
	Settings *config.TrackerConfig
}

// Tracker is the run session state machine.
type Tracker struct {
	provider   location.Provider
	arbiter    *arbiter.Arbiter
	clock      timeutil.Clock
	settings   *config.TrackerConfig
	classifier *quality.Classifier

	mu         sync.Mutex
	state      State
	gpsStatus  GPSStatus
	session    *Session
	totals     Totals
	steps      *steps.Estimator
	strideMps  float64 // speed of the last accepted fix, for the step ticker
	current    *location.Point
	lastErr    error
	lastFixAt  time.Time
	resourceID string

	elapsed      *periodic
	stepper      *periodic
	sub          location.Subscription
	consumerDone chan struct{}
	cancel       context.CancelFunc

	watchMu  sync.Mutex
	watchers map[string]chan Snapshot
}

// New returns an idle Tracker.
func New(cfg Config) (*Tracker, error) {
	if cfg.Provider == nil {
		return nil, errors.New("tracker: location provider is required")
	}
	if cfg.Arbiter == nil {
		cfg.Arbiter = arbiter.New()
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.Settings == nil {
		cfg.Settings = config.EmptyTrackerConfig()
	}
	return &Tracker{
		provider:   cfg.Provider,
		arbiter:    cfg.Arbiter,
		clock:      cfg.Clock,
		settings:   cfg.Settings,
		classifier: quality.NewClassifier(cfg.Settings.GetMaxSpeedMps()),
		state:      StateIdle,
		gpsStatus:  GPSSearching,
		steps:      steps.New(),
		watchers:   make(map[string]chan Snapshot),
	}, nil
}

// Start requests permission, claims the GPS resource, waits a bounded time
// for a first fix and begins a new session. Permission and resource
// failures return an *Error and leave the previous state in place. When no
// fix arrives in time the session still starts from a synthetic fallback
// location and LastError reports the acquisition timeout.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	prev := t.state
	if !CanTransition(prev, StateAcquiring) {
		t.mu.Unlock()
		return invalidTransition("start", prev)
	}
	prevStatus := t.gpsStatus
	t.state = StateAcquiring
	t.gpsStatus = GPSSearching
	t.lastErr = nil
	t.mu.Unlock()
	t.publish()

	abort := func(err error) error {
		t.mu.Lock()
		t.state = prev
		t.gpsStatus = prevStatus
		t.lastErr = err
		t.mu.Unlock()
		logf("start aborted: %v", err)
		t.publish()
		return err
	}

	perm, err := t.provider.RequestPermission(ctx)
	if err != nil || perm != location.PermissionGranted {
		return abort(permissionDenied(err))
	}

	resourceID := "tracker-" + uuid.NewString()
	if !t.arbiter.Register(resourceID, arbiter.GPS, arbiter.GPSTracking) {
		return abort(resourceConflict(t.arbiter.Conflicts(arbiter.GPS, arbiter.GPSTracking)))
	}

	fix, acqErr := t.acquire(ctx)
	if ctx.Err() != nil {
		t.arbiter.Deactivate(resourceID)
		return abort(ctx.Err())
	}

	t.mu.Lock()
	now := t.clock.Now()
	t.resourceID = resourceID
	t.session = &Session{ID: uuid.NewString(), StartTime: now, IsActive: true}
	t.totals = Totals{}
	t.steps.Reset()
	t.strideMps = 0
	t.current = nil
	t.lastFixAt = now

	if acqErr != nil {
		t.lastErr = acquisitionTimeout(acqErr)
		t.gpsStatus = GPSLost
		t.current = t.fallbackPoint(now)
		logf("no first fix for session %s: %v", t.session.ID, acqErr)
	} else if point, verdict := t.ingestLocked(fix); verdict != quality.Accepted {
		// A real but unusable reading still tells the runner roughly where
		// they are.
		t.current = &point
	}

	t.state = StateActive
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t.cancel = cancel
	t.startTickersLocked()
	t.subscribeLocked(runCtx)
	logf("session %s started (gps %s)", t.session.ID, t.gpsStatus)
	t.mu.Unlock()

	t.publish()
	return nil
}

// acquire waits for a first fix for at most the acquisition timeout. It
// returns ctx.Err() if ctx ends first.
func (t *Tracker) acquire(ctx context.Context) (location.Fix, error) {
	acqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		fix location.Fix
		err error
	}
	done := make(chan result, 1)
	go func() {
		fix, err := t.provider.CurrentFix(acqCtx, location.AccuracyHigh)
		done <- result{fix, err}
	}()

	timeout := t.settings.GetAcquisitionTimeout()
	timer := t.clock.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.fix, r.err
	case <-timer.C():
		return location.Fix{}, fmt.Errorf("%w after %s", location.ErrNoFix, timeout)
	case <-ctx.Done():
		return location.Fix{}, ctx.Err()
	}
}

func (t *Tracker) fallbackPoint(now time.Time) *location.Point {
	acc := t.settings.GetFallbackAccuracy()
	return &location.Point{
		Fix: location.Fix{
			Latitude:  t.settings.GetFallbackLatitude(),
			Longitude: t.settings.GetFallbackLongitude(),
			Timestamp: now.UnixMilli(),
			Accuracy:  location.Float(acc),
		},
		Quality:   quality.Tier(acc),
		Synthetic: true,
	}
}

func (t *Tracker) startTickersLocked() {
	t.elapsed = every(t.clock, tickInterval, t.onElapsedTick)
	t.stepper = every(t.clock, tickInterval, t.onStepTick)
}

func (t *Tracker) subscribeLocked(ctx context.Context) {
	sub, err := t.provider.Subscribe(ctx, location.SubscribeOptions{
		TimeInterval:     t.settings.GetTimeInterval(),
		DistanceInterval: t.settings.GetDistanceInterval(),
		Accuracy:         location.AccuracyHigh,
	})
	if err != nil {
		t.lastErr = fmt.Errorf("location subscription failed: %w", err)
		t.gpsStatus = GPSLost
		logf("%v", t.lastErr)
		return
	}
	done := make(chan struct{})
	t.sub = sub
	t.consumerDone = done
	go t.consume(sub, done)
}

func (t *Tracker) consume(sub location.Subscription, done chan struct{}) {
	defer close(done)
	for fix := range sub.Fixes() {
		t.handleFix(fix)
	}
}

// handleFix applies one delivered fix. Fixes arriving outside the active
// state are dropped.
func (t *Tracker) handleFix(fix location.Fix) {
	t.mu.Lock()
	if t.state != StateActive {
		t.mu.Unlock()
		return
	}
	t.ingestLocked(fix)
	t.mu.Unlock()
	t.publish()
}

// ingestLocked classifies fix against the last route point and, when it is
// accepted, appends it and refreshes the metrics. Every fix is counted in
// the GPS stats.
func (t *Tracker) ingestLocked(fix location.Fix) (location.Point, quality.Verdict) {
	sess := t.session
	var prev *location.Point
	if n := len(sess.Route); n > 0 {
		prev = &sess.Route[n-1]
	}
	point, verdict := t.classifier.Evaluate(prev, fix)

	stats := &sess.GPSStats
	stats.TotalPoints++
	switch verdict {
	case quality.RejectedLowAccuracy:
		stats.RejectedLowAccuracy++
	case quality.RejectedImplausibleJump:
		stats.RejectedJumps++
	case quality.Accepted:
		t.totals.Add(prev, point)
		sess.Route = append(sess.Route, point)
		stats.AcceptedPoints++
		if point.Quality == location.QualityExcellent || point.Quality == location.QualityGood {
			stats.AccuratePoints++
		}

		current := point
		t.current = &current
		t.gpsStatus = GPSAcquired
		t.lastFixAt = t.clock.Now()
		if KindOf(t.lastErr) == KindAcquisitionTimeout {
			t.lastErr = nil
		}

		t.updateMetricsLocked()
		t.strideMps = t.strideSpeedLocked(prev, point)
		sess.Metrics.Steps = t.steps.Update(sess.Metrics.DistanceMeters, t.strideMps)
	}

	stats.AverageAccuracy = t.totals.AverageAccuracy()
	stats.SignalStrength = int(math.Round(100 * float64(stats.AccuratePoints) / float64(stats.TotalPoints)))
	return point, verdict
}

func (t *Tracker) updateMetricsLocked() {
	m := &t.session.Metrics
	m.DistanceMeters = t.totals.Distance
	m.ElevationGain = t.totals.ElevationGain
	m.ElevationLoss = t.totals.ElevationLoss
	m.AverageAccuracy = t.totals.AverageAccuracy()
	if t.totals.Points > 0 {
		m.GPSQuality = quality.Tier(m.AverageAccuracy)
	}
	m.PaceSecPerKm = units.PaceSecPerKm(m.DistanceMeters, m.Elapsed())
	m.SpeedKmh = units.SpeedKmh(m.DistanceMeters, m.Elapsed())
	m.Calories = int(math.Round(m.DistanceMeters*caloriesPerMeter + m.ElevationGain*caloriesPerMeterClimbed))
}

// strideSpeedLocked picks the speed used for the stride length: the
// receiver's reported speed when present, else the speed implied by the
// step from prev, else the session average.
func (t *Tracker) strideSpeedLocked(prev *location.Point, p location.Point) float64 {
	if p.Speed != nil && *p.Speed >= 0 {
		return *p.Speed
	}
	if prev != nil {
		if dt := float64(p.Timestamp-prev.Timestamp) / 1000; dt > 0 {
			return geo.Distance(prev.Latitude, prev.Longitude, p.Latitude, p.Longitude) / dt
		}
	}
	return t.averageSpeedLocked()
}

func (t *Tracker) averageSpeedLocked() float64 {
	m := t.session.Metrics
	if m.ElapsedSeconds <= 0 {
		return 0
	}
	return m.DistanceMeters / float64(m.ElapsedSeconds)
}

func (t *Tracker) onElapsedTick() {
	t.mu.Lock()
	if t.state != StateActive {
		t.mu.Unlock()
		return
	}
	t.session.Metrics.ElapsedSeconds++
	t.updateMetricsLocked()
	if t.gpsStatus == GPSAcquired && t.clock.Since(t.lastFixAt) >= t.settings.GetSignalLostAfter() {
		t.gpsStatus = GPSLost
		logf("gps signal lost for session %s", t.session.ID)
	}
	t.mu.Unlock()
	t.publish()
}

func (t *Tracker) onStepTick() {
	t.mu.Lock()
	if t.state != StateActive {
		t.mu.Unlock()
		return
	}
	m := &t.session.Metrics
	before := m.Steps
	speed := t.strideMps
	if speed <= 0 {
		speed = t.averageSpeedLocked()
	}
	m.Steps = t.steps.Tick(speed)
	changed := m.Steps != before
	t.mu.Unlock()
	if changed {
		t.publish()
	}
}

// Pause freezes the session. The tickers have fully stopped when Pause
// returns, so elapsed time never advances while paused.
func (t *Tracker) Pause() error {
	t.mu.Lock()
	if t.state != StateActive {
		defer t.mu.Unlock()
		return invalidTransition("pause", t.state)
	}
	t.state = StatePaused
	elapsed, stepper := t.elapsed, t.stepper
	t.elapsed, t.stepper = nil, nil
	t.mu.Unlock()

	elapsed.Stop()
	stepper.Stop()
	t.publish()
	return nil
}

// Resume restarts the tickers of a paused session.
func (t *Tracker) Resume() error {
	t.mu.Lock()
	if t.state != StatePaused {
		defer t.mu.Unlock()
		return invalidTransition("resume", t.state)
	}
	t.state = StateActive
	// Time spent paused does not count toward signal loss.
	t.lastFixAt = t.clock.Now()
	t.startTickersLocked()
	t.mu.Unlock()

	t.publish()
	return nil
}

// Stop ends the session and returns its final copy. The tickers, the
// location subscription and the GPS resource registration have all been
// released when Stop returns.
func (t *Tracker) Stop() (Session, error) {
	t.mu.Lock()
	if t.state != StateActive && t.state != StatePaused {
		defer t.mu.Unlock()
		return Session{}, invalidTransition("stop", t.state)
	}
	t.state = StateStopped
	end := t.clock.Now()
	t.session.EndTime = &end
	t.session.IsActive = false

	elapsed, stepper := t.elapsed, t.stepper
	sub, done, cancel := t.sub, t.consumerDone, t.cancel
	resourceID := t.resourceID
	t.elapsed, t.stepper, t.sub, t.consumerDone, t.cancel = nil, nil, nil, nil, nil
	t.resourceID = ""
	t.mu.Unlock()

	elapsed.Stop()
	stepper.Stop()
	if sub != nil {
		sub.Unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	t.arbiter.Deactivate(resourceID)

	sess, _ := t.Session()
	logf("session %s stopped: %.0fm in %s, %d points", sess.ID,
		sess.Metrics.DistanceMeters, sess.Metrics.Elapsed(), len(sess.Route))
	t.publish()
	return sess, nil
}

// Retry re-attempts acquisition for the running session. It only updates
// the current location and GPS status; the route is untouched.
func (t *Tracker) Retry(ctx context.Context) error {
	t.mu.Lock()
	if t.state != StateActive && t.state != StatePaused {
		defer t.mu.Unlock()
		return invalidTransition("retry", t.state)
	}
	t.gpsStatus = GPSSearching
	t.mu.Unlock()
	t.publish()

	fix, err := t.acquire(ctx)

	t.mu.Lock()
	if t.state != StateActive && t.state != StatePaused {
		defer t.mu.Unlock()
		return invalidTransition("retry", t.state)
	}
	if err != nil {
		t.gpsStatus = GPSLost
		if ctx.Err() == nil {
			err = acquisitionTimeout(err)
			t.lastErr = err
		}
		t.mu.Unlock()
		t.publish()
		return err
	}
	point := location.Point{Fix: fix, Quality: quality.Tier(fix.AccuracyOrUnknown())}
	t.current = &point
	if point.Quality == location.QualityPoor {
		t.gpsStatus = GPSLost
	} else {
		t.gpsStatus = GPSAcquired
		t.lastFixAt = t.clock.Now()
		t.lastErr = nil
	}
	t.mu.Unlock()
	t.publish()
	return nil
}

// State returns the lifecycle state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// GPSStatus returns the signal status.
func (t *Tracker) GPSStatus() GPSStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gpsStatus
}

// LastError returns the most recent failure or warning, or nil.
func (t *Tracker) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// CurrentLocation returns the latest known position. Check Synthetic to
// tell the fallback location from a real fix.
func (t *Tracker) CurrentLocation() (location.Point, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return location.Point{}, false
	}
	return *t.current, true
}

// Metrics returns the metrics of the current or last session.
func (t *Tracker) Metrics() Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return Metrics{}
	}
	return t.session.Metrics
}

// GPSStats returns the fix counters of the current or last session.
func (t *Tracker) GPSStats() GPSStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return GPSStats{}
	}
	return t.session.GPSStats
}

// Route returns a copy of the accepted points.
func (t *Tracker) Route() []location.Point {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return nil
	}
	return append([]location.Point(nil), t.session.Route...)
}

// Session returns a copy of the current or last session.
func (t *Tracker) Session() (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return Session{}, false
	}
	s := *t.session
	s.Route = append([]location.Point(nil), t.session.Route...)
	if t.session.EndTime != nil {
		end := *t.session.EndTime
		s.EndTime = &end
	}
	return s, true
}

// ResourceID returns the arbiter registration held by the running session,
// or "".
func (t *Tracker) ResourceID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resourceID
}

// Snapshot returns a consistent view of the tracker.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{State: t.state, GPSStatus: t.gpsStatus}
	if sess := t.session; sess != nil {
		start := sess.StartTime
		s.SessionID = sess.ID
		s.StartTime = &start
		if sess.EndTime != nil {
			end := *sess.EndTime
			s.EndTime = &end
		}
		s.IsActive = sess.IsActive
		s.RoutePoints = len(sess.Route)
		s.Metrics = sess.Metrics
		s.GPSStats = sess.GPSStats
	}
	if t.current != nil {
		c := *t.current
		s.CurrentLocation = &c
	}
	if t.lastErr != nil {
		s.LastError = t.lastErr.Error()
		s.ErrorKind = KindOf(t.lastErr)
		s.ErrorHint = HintOf(t.lastErr)
	}
	return s
}

// Watch returns a channel receiving a Snapshot after every change. Slow
// watchers miss snapshots rather than blocking the tracker.
func (t *Tracker) Watch() (string, <-chan Snapshot) {
	id := uuid.NewString()
	ch := make(chan Snapshot, 8)
	t.watchMu.Lock()
	t.watchers[id] = ch
	t.watchMu.Unlock()
	return id, ch
}

// Unwatch closes and removes a watcher.
func (t *Tracker) Unwatch(id string) {
	t.watchMu.Lock()
	defer t.watchMu.Unlock()
	if ch, ok := t.watchers[id]; ok {
		close(ch)
		delete(t.watchers, id)
	}
}

func (t *Tracker) publish() {
	snap := t.Snapshot()
	t.watchMu.Lock()
	defer t.watchMu.Unlock()
	for _, ch := range t.watchers {
		select {
		case ch <- snap:
		default:
		}
	}
}
