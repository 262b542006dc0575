package location

import (
	"context"
	"sync"
)

// MockProvider is a Provider whose behaviour is scripted by tests. Fixes are
// delivered to every open subscription with Push.
type MockProvider struct {
	mu sync.Mutex

	// Permission is returned by RequestPermission; empty means granted.
	Permission Permission
	// PermissionErr, if set, is returned by RequestPermission.
	PermissionErr error
	// FirstFix is returned by CurrentFix. When nil CurrentFix blocks until
	// its context is done and then returns ErrNoFix.
	FirstFix *Fix
	// SubscribeErr, if set, is returned by Subscribe.
	SubscribeErr error

	// CurrentFixCalls counts CurrentFix invocations.
	CurrentFixCalls int
	// SubscribeCalls records the options of each Subscribe call.
	SubscribeCalls []SubscribeOptions

	subs []*mockSubscription
}

// NewMockProvider returns a MockProvider that grants permission and has
// firstFix ready for CurrentFix.
func NewMockProvider(firstFix *Fix) *MockProvider {
	return &MockProvider{Permission: PermissionGranted, FirstFix: firstFix}
}

func (m *MockProvider) RequestPermission(ctx context.Context) (Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PermissionErr != nil {
		return PermissionDenied, m.PermissionErr
	}
	if m.Permission == "" {
		return PermissionGranted, nil
	}
	return m.Permission, nil
}

func (m *MockProvider) CurrentFix(ctx context.Context, hint AccuracyHint) (Fix, error) {
	m.mu.Lock()
	m.CurrentFixCalls++
	first := m.FirstFix
	m.mu.Unlock()

	if first != nil {
		return *first, nil
	}
	<-ctx.Done()
	return Fix{}, ErrNoFix
}

// SetFirstFix replaces the fix returned by CurrentFix.
func (m *MockProvider) SetFirstFix(fix *Fix) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FirstFix = fix
}

func (m *MockProvider) Subscribe(ctx context.Context, opts SubscribeOptions) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SubscribeCalls = append(m.SubscribeCalls, opts)
	if m.SubscribeErr != nil {
		return nil, m.SubscribeErr
	}
	sub := &mockSubscription{fixes: make(chan Fix, 256)}
	m.subs = append(m.subs, sub)
	return sub, nil
}

// Push delivers fix to every open subscription. Fixes beyond a
// subscription's buffer are dropped.
func (m *MockProvider) Push(fix Fix) {
	m.mu.Lock()
	subs := append([]*mockSubscription(nil), m.subs...)
	m.mu.Unlock()
	for _, s := range subs {
		s.push(fix)
	}
}

// OpenSubscriptions returns the number of subscriptions not yet
// unsubscribed.
func (m *MockProvider) OpenSubscriptions() int {
	m.mu.Lock()
	subs := append([]*mockSubscription(nil), m.subs...)
	m.mu.Unlock()
	n := 0
	for _, s := range subs {
		if !s.isClosed() {
			n++
		}
	}
	return n
}

type mockSubscription struct {
	mu     sync.Mutex
	fixes  chan Fix
	closed bool
}

func (s *mockSubscription) Fixes() <-chan Fix { return s.fixes }

func (s *mockSubscription) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.fixes)
}

func (s *mockSubscription) push(fix Fix) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.fixes <- fix:
	default:
	}
}

func (s *mockSubscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
