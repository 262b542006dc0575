// Package arbiter decides which device features may hold shared hardware at
// the same time. GPS tracking and audio playback cannot run together, so a
// run in progress blocks music and starting a run evicts it.
package arbiter

import (
	"sort"
	"sync"

	"github.com/pereirasil/corrida-app-sub000/internal/monitoring"
)

var logf = monitoring.Component("arbiter")

// ResourceType identifies a class of shared hardware.
type ResourceType string

const (
	GPS      ResourceType = "gps"
	Music    ResourceType = "music"
	Audio    ResourceType = "audio"
	Location ResourceType = "location"
)

// Priority orders competing features. Lower values are more urgent.
type Priority int

const (
	GPSTracking      Priority = 1
	LocationServices Priority = 2
	MusicPlayback    Priority = 3
	AudioProcessing  Priority = 4
	BackgroundTasks  Priority = 5
)

// conflicts lists which resource types cannot be active together. The
// relation is symmetric and a type never conflicts with itself.
var conflicts = map[ResourceType][]ResourceType{
	GPS:      {Audio, Music},
	Audio:    {GPS, Location},
	Music:    {GPS},
	Location: {Audio},
}

// Conflicting reports whether a and b may not be active together.
func Conflicting(a, b ResourceType) bool {
	for _, c := range conflicts[a] {
		if c == b {
			return true
		}
	}
	return false
}

// Registration is an active claim on a resource.
type Registration struct {
	ID       string       `json:"id"`
	Type     ResourceType `json:"type"`
	Priority Priority     `json:"priority"`
}

// Arbiter tracks active registrations. All methods are safe for concurrent
// use.
type Arbiter struct {
	mu      sync.Mutex
	active  map[string]Registration
	onEvict []func(Registration)
}

// New returns an empty Arbiter.
func New() *Arbiter {
	return &Arbiter{active: make(map[string]Registration)}
}

// OnEvict registers fn to be called, outside the arbiter lock, for every
// registration evicted by a more urgent one.
func (a *Arbiter) OnEvict(fn func(Registration)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onEvict = append(a.onEvict, fn)
}

// blockersLocked returns the active registrations, other than exclude, that
// prevent a request. A conflicting holder blocks unless it is strictly less
// urgent than the request; on equal priority the holder wins.
func (a *Arbiter) blockersLocked(t ResourceType, p Priority, exclude string) []Registration {
	var out []Registration
	for id, r := range a.active {
		if id == exclude || !Conflicting(t, r.Type) {
			continue
		}
		if r.Priority <= p {
			out = append(out, r)
		}
	}
	sortRegistrations(out)
	return out
}

// CanActivate reports whether a request for t at priority p would succeed.
func (a *Arbiter) CanActivate(t ResourceType, p Priority) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.blockersLocked(t, p, "")) == 0
}

// Conflicts returns the registrations that currently block a request for t
// at priority p, most urgent first.
func (a *Arbiter) Conflicts(t ResourceType, p Priority) []Registration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.blockersLocked(t, p, "")
}

// Register atomically checks and claims t for id. Conflicting holders that
// are less urgent are evicted. It returns false, leaving state unchanged,
// when a holder of equal or higher urgency conflicts. Registering an id
// that is already active replaces its previous claim.
func (a *Arbiter) Register(id string, t ResourceType, p Priority) bool {
	a.mu.Lock()
	if blockers := a.blockersLocked(t, p, id); len(blockers) > 0 {
		a.mu.Unlock()
		logf("denied %s (%s/%d): held by %s (%s/%d)", id, t, p, blockers[0].ID, blockers[0].Type, blockers[0].Priority)
		return false
	}

	var evicted []Registration
	for rid, r := range a.active {
		if rid != id && Conflicting(t, r.Type) {
			evicted = append(evicted, r)
			delete(a.active, rid)
		}
	}
	a.active[id] = Registration{ID: id, Type: t, Priority: p}
	callbacks := append([]func(Registration){}, a.onEvict...)
	a.mu.Unlock()

	sortRegistrations(evicted)
	for _, r := range evicted {
		logf("evicted %s (%s/%d) for %s (%s/%d)", r.ID, r.Type, r.Priority, id, t, p)
		for _, fn := range callbacks {
			fn(r)
		}
	}
	return true
}

// Deactivate releases id. It returns false if id was not active.
func (a *Arbiter) Deactivate(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.active[id]; !ok {
		return false
	}
	delete(a.active, id)
	return true
}

// IsActive reports whether id currently holds a registration.
func (a *Arbiter) IsActive(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.active[id]
	return ok
}

// HasActiveConflicts reports whether any two active registrations conflict.
func (a *Arbiter) HasActiveConflicts() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	regs := make([]Registration, 0, len(a.active))
	for _, r := range a.active {
		regs = append(regs, r)
	}
	for i := range regs {
		for j := i + 1; j < len(regs); j++ {
			if Conflicting(regs[i].Type, regs[j].Type) {
				return true
			}
		}
	}
	return false
}

// Registrations returns a snapshot of active registrations ordered by
// priority then id.
func (a *Arbiter) Registrations() []Registration {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Registration, 0, len(a.active))
	for _, r := range a.active {
		out = append(out, r)
	}
	sortRegistrations(out)
	return out
}

// ClearAll releases every registration without running eviction callbacks.
func (a *Arbiter) ClearAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active = make(map[string]Registration)
}

func sortRegistrations(regs []Registration) {
	sort.Slice(regs, func(i, j int) bool {
		if regs[i].Priority != regs[j].Priority {
			return regs[i].Priority < regs[j].Priority
		}
		return regs[i].ID < regs[j].ID
	})
}
