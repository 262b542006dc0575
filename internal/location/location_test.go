package location

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pereirasil/corrida-app-sub000/internal/geo"
)

func TestFix_AccuracyOrUnknown(t *testing.T) {
	assert.Equal(t, UnknownAccuracyMeters, Fix{}.AccuracyOrUnknown())
	assert.Equal(t, 7.5, Fix{Accuracy: Float(7.5)}.AccuracyOrUnknown())
}

func TestFix_Time(t *testing.T) {
	f := Fix{Timestamp: 1_772_348_400_000}
	assert.Equal(t, int64(1_772_348_400), f.Time().Unix())
}

func TestThrottle(t *testing.T) {
	throttle := NewThrottle(SubscribeOptions{TimeInterval: time.Second, DistanceInterval: 5})

	lat, lon := -23.5505, -46.6333
	north := func(m float64) (float64, float64) { return geo.Destination(lat, lon, 0, m) }

	assert.True(t, throttle.Allow(Fix{Latitude: lat, Longitude: lon, Timestamp: 0}), "first fix")

	la, lo := north(20)
	assert.False(t, throttle.Allow(Fix{Latitude: la, Longitude: lo, Timestamp: 500}), "too soon")

	la, lo = north(2)
	assert.False(t, throttle.Allow(Fix{Latitude: la, Longitude: lo, Timestamp: 2000}), "too close")

	la, lo = north(10)
	assert.True(t, throttle.Allow(Fix{Latitude: la, Longitude: lo, Timestamp: 2000}))

	// Measured from the last delivered fix, not the last offered one.
	la, lo = north(12)
	assert.False(t, throttle.Allow(Fix{Latitude: la, Longitude: lo, Timestamp: 4000}))
}

func TestThrottle_NoLimits(t *testing.T) {
	throttle := NewThrottle(SubscribeOptions{})
	for i := 0; i < 3; i++ {
		assert.True(t, throttle.Allow(Fix{Timestamp: 0}))
	}
}

func TestMockProvider_CurrentFix(t *testing.T) {
	first := Fix{Latitude: 1, Longitude: 2, Timestamp: 10}
	p := NewMockProvider(&first)

	got, err := p.CurrentFix(context.Background(), AccuracyHigh)
	require.NoError(t, err)
	assert.Equal(t, first, got)
	assert.Equal(t, 1, p.CurrentFixCalls)
}

func TestMockProvider_CurrentFixBlocksUntilCancelled(t *testing.T) {
	p := NewMockProvider(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.CurrentFix(ctx, AccuracyHigh)
	assert.ErrorIs(t, err, ErrNoFix)
}

func TestMockProvider_Permission(t *testing.T) {
	p := NewMockProvider(nil)
	perm, err := p.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PermissionGranted, perm)

	p.Permission = PermissionDenied
	perm, err = p.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PermissionDenied, perm)
}

func TestMockProvider_PushAndUnsubscribe(t *testing.T) {
	p := NewMockProvider(nil)
	opts := SubscribeOptions{TimeInterval: time.Second, DistanceInterval: 5}
	sub, err := p.Subscribe(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, []SubscribeOptions{opts}, p.SubscribeCalls)
	assert.Equal(t, 1, p.OpenSubscriptions())

	p.Push(Fix{Timestamp: 1})
	fix := <-sub.Fixes()
	assert.Equal(t, int64(1), fix.Timestamp)

	sub.Unsubscribe()
	sub.Unsubscribe()
	_, ok := <-sub.Fixes()
	assert.False(t, ok)
	assert.Equal(t, 0, p.OpenSubscriptions())

	// Pushing after unsubscribe is a no-op.
	p.Push(Fix{Timestamp: 2})
}
