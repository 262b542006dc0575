package location

import "sync"

// stream is a Subscription fed by a single producer goroutine. The producer
// owns the fixes channel and closes it once done is closed or its source
// ends.
type stream struct {
	fixes chan Fix
	done  chan struct{}
	once  sync.Once
}

func newStream(buffer int) *stream {
	return &stream{
		fixes: make(chan Fix, buffer),
		done:  make(chan struct{}),
	}
}

func (s *stream) Fixes() <-chan Fix { return s.fixes }

func (s *stream) Unsubscribe() {
	s.once.Do(func() { close(s.done) })
}

// send delivers fix unless the subscription is cancelled first.
func (s *stream) send(fix Fix) bool {
	select {
	case s.fixes <- fix:
		return true
	case <-s.done:
		return false
	}
}
