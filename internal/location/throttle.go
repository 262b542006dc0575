package location

import (
	"time"

	"github.com/pereirasil/corrida-app-sub000/internal/geo"
)

// Throttle applies SubscribeOptions cadence limits to a stream of fixes.
// It is not safe for concurrent use; each subscription owns one.
type Throttle struct {
	opts SubscribeOptions
	last *Fix
}

// NewThrottle returns a Throttle for opts.
func NewThrottle(opts SubscribeOptions) *Throttle {
	return &Throttle{opts: opts}
}

// Allow reports whether fix should be delivered and, if so, records it as
// the last delivered fix. The first fix is always delivered.
func (t *Throttle) Allow(fix Fix) bool {
	if t.last == nil {
		t.keep(fix)
		return true
	}
	dt := time.Duration(fix.Timestamp-t.last.Timestamp) * time.Millisecond
	if dt < t.opts.TimeInterval {
		return false
	}
	if t.opts.DistanceInterval > 0 {
		moved := geo.Distance(t.last.Latitude, t.last.Longitude, fix.Latitude, fix.Longitude)
		if moved < t.opts.DistanceInterval {
			return false
		}
	}
	t.keep(fix)
	return true
}

func (t *Throttle) keep(fix Fix) {
	f := fix
	t.last = &f
}
