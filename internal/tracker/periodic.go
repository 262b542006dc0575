package tracker

import (
	"sync"
	"time"

	"github.com/pereirasil/corrida-app-sub000/internal/timeutil"
)

// periodic runs fn on every tick of a clock ticker until stopped.
type periodic struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// every starts calling fn every d. The ticker is created before every
// returns, so the first tick is due d after the call.
func every(clock timeutil.Clock, d time.Duration, fn func()) *periodic {
	p := &periodic{stop: make(chan struct{}), done: make(chan struct{})}
	ticker := clock.NewTicker(d)
	go func() {
		defer close(p.done)
		defer ticker.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-ticker.C():
				fn()
			}
		}
	}()
	return p
}

// Stop halts the ticker and waits for a running fn to return. It is safe to
// call more than once and on a nil receiver.
func (p *periodic) Stop() {
	if p == nil {
		return
	}
	p.once.Do(func() { close(p.stop) })
	<-p.done
}
