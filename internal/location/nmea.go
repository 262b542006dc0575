package location

import (
	"context"
	"fmt"
	"sync"
	"time"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/pereirasil/corrida-app-sub000/internal/monitoring"
	"github.com/pereirasil/corrida-app-sub000/internal/timeutil"
)

// UERE is the user equivalent range error, in meters, used to turn HDOP
// into an accuracy radius.
const UERE = 5.0

const knotsToMps = 0.514444

var nmeaLog = monitoring.Component("nmea")

// Receiver is the line-oriented connection to a GPS receiver. It is
// satisfied by serialmux.SerialMux.
type Receiver interface {
	Subscribe() (string, chan string)
	Unsubscribe(string)
	SendCommand(string) error
}

// NMEAProvider turns the sentences emitted by an NMEA 0183 receiver into
// fixes. Position, speed and course come from RMC, while altitude and HDOP
// come from the most recent GGA.
type NMEAProvider struct {
	rx    Receiver
	clock timeutil.Clock
}

// NewNMEAProvider returns a provider reading from rx. A nil rx reports
// denied permission, as on a device without a receiver.
func NewNMEAProvider(rx Receiver, clock timeutil.Clock) *NMEAProvider {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &NMEAProvider{rx: rx, clock: clock}
}

// Initialize restricts the receiver output to RMC and GGA and sets its
// update rate, using MediaTek PMTK314 and PMTK220. Receivers with other
// firmware ignore both.
func (p *NMEAProvider) Initialize(interval time.Duration) error {
	if p.rx == nil {
		return ErrClosed
	}
	ms := interval.Milliseconds()
	if ms < 100 {
		ms = 100
	}
	for _, body := range []string{
		// GLL, RMC, VTG, GGA, GSA, GSV, then unused slots
		"PMTK314,0,1,0,1,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0",
		fmt.Sprintf("PMTK220,%d", ms),
	} {
		if err := p.rx.SendCommand(PMTKCommand(body)); err != nil {
			return fmt.Errorf("failed to send receiver command %s: %w", body, err)
		}
	}
	return nil
}

// PMTKCommand frames body as a complete sentence with its checksum.
func PMTKCommand(body string) string {
	return "$" + body + "*" + nmea.Checksum(body)
}

func (p *NMEAProvider) RequestPermission(ctx context.Context) (Permission, error) {
	if p.rx == nil {
		return PermissionDenied, nil
	}
	return PermissionGranted, nil
}

// CurrentFix waits for the next complete fix from the receiver.
func (p *NMEAProvider) CurrentFix(ctx context.Context, hint AccuracyHint) (Fix, error) {
	if p.rx == nil {
		return Fix{}, ErrClosed
	}
	id, lines := p.rx.Subscribe()
	defer p.rx.Unsubscribe(id)

	asm := NewAssembler(p.clock)
	for {
		select {
		case <-ctx.Done():
			return Fix{}, ErrNoFix
		case line, ok := <-lines:
			if !ok {
				return Fix{}, ErrClosed
			}
			if fix, ok := asm.Feed(line); ok {
				return fix, nil
			}
		}
	}
}

func (p *NMEAProvider) Subscribe(ctx context.Context, opts SubscribeOptions) (Subscription, error) {
	if p.rx == nil {
		return nil, ErrClosed
	}
	id, lines := p.rx.Subscribe()
	s := newStream(16)
	go p.pump(ctx, s, id, lines, opts)
	return s, nil
}

func (p *NMEAProvider) pump(ctx context.Context, s *stream, id string, lines chan string, opts SubscribeOptions) {
	var once sync.Once
	release := func() { once.Do(func() { p.rx.Unsubscribe(id) }) }
	defer close(s.fixes)
	defer release()

	asm := NewAssembler(p.clock)
	throttle := NewThrottle(opts)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			fix, ok := asm.Feed(line)
			if !ok || !throttle.Allow(fix) {
				continue
			}
			if !s.send(fix) {
				return
			}
		}
	}
}

// Assembler merges the RMC and GGA sentences of one epoch into a fix.
// Receivers differ in which of the two comes first, so whichever sentence
// completes the epoch emits the fix. An RMC whose GGA never arrives is
// emitted without accuracy when the next epoch's RMC shows up. It is not
// safe for concurrent use.
type Assembler struct {
	clock timeutil.Clock

	haveGGA bool
	gga     ggaEpoch

	haveRMC bool
	rmc     nmea.RMC
}

type ggaEpoch struct {
	time     nmea.Time
	fixed    bool
	altitude float64
	hdop     float64
}

// NewAssembler returns an Assembler that stamps fixes lacking a date with
// clock's time.
func NewAssembler(clock timeutil.Clock) *Assembler {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Assembler{clock: clock}
}

// Feed consumes one sentence and returns a fix when it completes an epoch.
// Unparseable lines and other sentence types return false.
func (a *Assembler) Feed(line string) (Fix, bool) {
	s, err := nmea.Parse(line)
	if err != nil {
		if len(line) > 0 && line[0] == '$' {
			nmeaLog("skipping sentence: %v", err)
		}
		return Fix{}, false
	}

	switch m := s.(type) {
	case nmea.GGA:
		a.haveGGA = true
		a.gga = ggaEpoch{
			time:     m.Time,
			fixed:    m.FixQuality != nmea.Invalid,
			altitude: m.Altitude,
			hdop:     m.HDOP,
		}
		if a.haveRMC && sameTime(a.rmc.Time, m.Time) {
			a.haveRMC = false
			return a.rmcFix(a.rmc), true
		}
	case nmea.RMC:
		if m.Validity != nmea.ValidRMC {
			return Fix{}, false
		}
		if a.haveGGA && sameTime(a.gga.time, m.Time) {
			a.haveRMC = false
			return a.rmcFix(m), true
		}
		// Wait for this epoch's GGA; release an older RMC that never got one.
		prev, hadPrev := a.rmc, a.haveRMC
		a.rmc, a.haveRMC = m, true
		if hadPrev {
			return a.rmcFix(prev), true
		}
	}
	return Fix{}, false
}

func (a *Assembler) rmcFix(m nmea.RMC) Fix {
	fix := Fix{
		Latitude:  m.Latitude,
		Longitude: m.Longitude,
		Timestamp: a.timestamp(m.Date, m.Time),
		Speed:     Float(m.Speed * knotsToMps),
		Heading:   Float(m.Course),
	}
	// GGA and RMC of the same epoch carry the same time of day.
	if a.haveGGA && a.gga.fixed && sameTime(a.gga.time, m.Time) {
		fix.Altitude = Float(a.gga.altitude)
		if a.gga.hdop > 0 {
			fix.Accuracy = Float(a.gga.hdop * UERE)
		}
	}
	return fix
}

func (a *Assembler) timestamp(d nmea.Date, t nmea.Time) int64 {
	if !d.Valid || !t.Valid {
		return a.clock.Now().UnixMilli()
	}
	ts := time.Date(2000+d.YY, time.Month(d.MM), d.DD,
		t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
	return ts.UnixMilli()
}

func sameTime(a, b nmea.Time) bool {
	return a.Valid && b.Valid &&
		a.Hour == b.Hour && a.Minute == b.Minute &&
		a.Second == b.Second && a.Millisecond == b.Millisecond
}
