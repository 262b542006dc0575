package serialmux

import (
	"context"
	"errors"
	"net/http"
	"sync"
)

// ErrNoReceiver is returned by commands sent while no receiver is configured.
var ErrNoReceiver = errors.New("no GPS receiver configured")

// NoReceiver is the mux used when the server runs without a receiver port.
// Its subscribers never see a line.
type NoReceiver struct {
	mu   sync.Mutex
	subs map[string]chan string
	done chan struct{}
	once sync.Once
}

func NewNoReceiver() *NoReceiver {
	return &NoReceiver{subs: make(map[string]chan string), done: make(chan struct{})}
}

// Subscribe returns an already closed channel once the mux is closed.
func (n *NoReceiver) Subscribe() (string, chan string) {
	id, ch := randomID(), make(chan string)
	n.mu.Lock()
	defer n.mu.Unlock()
	select {
	case <-n.done:
		close(ch)
	default:
		n.subs[id] = ch
	}
	return id, ch
}

func (n *NoReceiver) Unsubscribe(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if ch, ok := n.subs[id]; ok {
		delete(n.subs, id)
		close(ch)
	}
}

func (n *NoReceiver) SendCommand(string) error { return ErrNoReceiver }

// Monitor blocks until ctx is done or the mux is closed.
func (n *NoReceiver) Monitor(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-n.done:
		return nil
	}
}

func (n *NoReceiver) Close() error {
	n.once.Do(func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		close(n.done)
		for id, ch := range n.subs {
			delete(n.subs, id)
			close(ch)
		}
	})
	return nil
}

// AttachAdminRoutes answers the receiver command route so clients get a
// clear status instead of a 404.
func (n *NoReceiver) AttachAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/gps-command-api", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, ErrNoReceiver.Error(), http.StatusServiceUnavailable)
	})
}
