package location

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pereirasil/corrida-app-sub000/internal/timeutil"
)

// ReplayProvider plays back a recorded list of fixes on a clock. The gaps
// between recorded timestamps are preserved and every delivered fix is
// stamped with the clock's current time.
type ReplayProvider struct {
	clock timeutil.Clock
	fixes []Fix
	// Loop restarts the recording after the last fix.
	Loop bool
}

// NewReplayProvider returns a provider replaying fixes on clock.
func NewReplayProvider(clock timeutil.Clock, fixes []Fix) *ReplayProvider {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &ReplayProvider{clock: clock, fixes: fixes}
}

// LoadReplay reads a JSON array of fixes from path.
func LoadReplay(clock timeutil.Clock, path string) (*ReplayProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read replay file: %w", err)
	}
	var fixes []Fix
	if err := json.Unmarshal(data, &fixes); err != nil {
		return nil, fmt.Errorf("failed to parse replay file %s: %w", path, err)
	}
	if len(fixes) == 0 {
		return nil, fmt.Errorf("replay file %s contains no fixes", path)
	}
	return NewReplayProvider(clock, fixes), nil
}

func (r *ReplayProvider) RequestPermission(ctx context.Context) (Permission, error) {
	if len(r.fixes) == 0 {
		return PermissionDenied, nil
	}
	return PermissionGranted, nil
}

// CurrentFix returns the first recorded fix stamped with the current time.
func (r *ReplayProvider) CurrentFix(ctx context.Context, hint AccuracyHint) (Fix, error) {
	if len(r.fixes) == 0 {
		return Fix{}, ErrNoFix
	}
	return r.stamp(r.fixes[0]), nil
}

// Subscribe starts playback from the second recorded fix, so a caller that
// seeded its route with CurrentFix does not see the first one twice.
func (r *ReplayProvider) Subscribe(ctx context.Context, opts SubscribeOptions) (Subscription, error) {
	if len(r.fixes) == 0 {
		return nil, ErrNoFix
	}
	s := newStream(16)
	go r.play(ctx, s, opts)
	return s, nil
}

func (r *ReplayProvider) play(ctx context.Context, s *stream, opts SubscribeOptions) {
	defer close(s.fixes)

	throttle := NewThrottle(opts)
	throttle.Allow(r.stamp(r.fixes[0]))

	i := 1
	for {
		if i >= len(r.fixes) {
			if !r.Loop {
				return
			}
			i = 0
		}
		var gap time.Duration
		if i > 0 {
			gap = time.Duration(r.fixes[i].Timestamp-r.fixes[i-1].Timestamp) * time.Millisecond
		}
		if gap <= 0 {
			gap = time.Second
		}

		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-r.clock.After(gap):
		}

		fix := r.stamp(r.fixes[i])
		i++
		if !throttle.Allow(fix) {
			continue
		}
		if !s.send(fix) {
			return
		}
	}
}

func (r *ReplayProvider) stamp(fix Fix) Fix {
	fix.Timestamp = r.clock.Now().UnixMilli()
	return fix
}
