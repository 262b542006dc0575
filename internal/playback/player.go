// Package playback is the music player's side of resource arbitration. It
// claims the music resource while playing and stops when a run takes the
// GPS.
package playback

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pereirasil/corrida-app-sub000/internal/arbiter"
	"github.com/pereirasil/corrida-app-sub000/internal/monitoring"
	"github.com/pereirasil/corrida-app-sub000/internal/timeutil"
)

var logf = monitoring.Component("playback")

// ErrBlocked matches every *BlockedError.
var ErrBlocked = errors.New("music playback blocked")

// BlockedError names the registrations that keep music from playing.
type BlockedError struct {
	Holders []arbiter.Registration
}

func (e *BlockedError) Error() string {
	names := make([]string, len(e.Holders))
	for i, h := range e.Holders {
		names[i] = fmt.Sprintf("%s (%s)", h.Type, h.ID)
	}
	return "music playback blocked by " + strings.Join(names, ", ")
}

func (e *BlockedError) Is(target error) bool { return target == ErrBlocked }

// Hint is the user-facing suggestion for a blocked Play.
func (e *BlockedError) Hint() string {
	for _, h := range e.Holders {
		if h.Type == arbiter.GPS {
			return "Stop the run to play music."
		}
	}
	return "Stop the other audio feature to play music."
}

// StopReason says why the player is not playing.
type StopReason string

const (
	ReasonNone    StopReason = ""
	ReasonStopped StopReason = "stopped"
	ReasonEvicted StopReason = "evicted"
)

// Status is the player state reported to clients.
type Status struct {
	Playing    bool       `json:"playing"`
	Track      string     `json:"track,omitempty"`
	Since      *time.Time `json:"since,omitempty"`
	ResourceID string     `json:"resource_id"`
	StopReason StopReason `json:"stop_reason,omitempty"`
}

// Player holds one music registration at a time.
type Player struct {
	arb   *arbiter.Arbiter
	clock timeutil.Clock
	id    string

	mu      sync.Mutex
	playing bool
	track   string
	since   time.Time
	reason  StopReason
}

// New returns a stopped player that listens for evictions on arb.
func New(arb *arbiter.Arbiter, clock timeutil.Clock) *Player {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	p := &Player{
		arb:   arb,
		clock: clock,
		id:    "music-" + uuid.NewString(),
	}
	arb.OnEvict(p.evicted)
	return p
}

// Play starts track, or switches to it when already playing. It fails with
// a *BlockedError while a more urgent conflicting feature is active.
func (p *Player) Play(track string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.arb.Register(p.id, arbiter.Music, arbiter.MusicPlayback) {
		return &BlockedError{Holders: p.arb.Conflicts(arbiter.Music, arbiter.MusicPlayback)}
	}
	if !p.playing {
		p.since = p.clock.Now()
	}
	p.playing = true
	p.track = track
	p.reason = ReasonNone
	logf("playing %q", track)
	return nil
}

// Stop releases the music resource. It reports whether anything was
// playing.
func (p *Player) Stop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return false
	}
	p.arb.Deactivate(p.id)
	p.playing = false
	p.reason = ReasonStopped
	return true
}

func (p *Player) evicted(r arbiter.Registration) {
	if r.ID != p.id {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		logf("stopped %q: music resource taken", p.track)
	}
	p.playing = false
	p.reason = ReasonEvicted
}

func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Status{
		Playing:    p.playing,
		Track:      p.track,
		ResourceID: p.id,
		StopReason: p.reason,
	}
	if p.playing {
		since := p.since
		s.Since = &since
	}
	return s
}
