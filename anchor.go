package ugci

import (
	"sync"
	"time"
)

// anchor tracks the in-flight transfers of one device so teardown can
// cancel or await them collectively. add and remove run from caller
// goroutines and from the transport's completion context.
type anchor struct {
	mu      sync.Mutex
	pending map[*Transfer]struct{}
	drained chan struct{} // closed when pending goes empty
}

func newAnchor() *anchor {
	return &anchor{pending: make(map[*Transfer]struct{})}
}

func (a *anchor) add(t *Transfer) {
	a.mu.Lock()
	if len(a.pending) == 0 {
		a.drained = make(chan struct{})
	}
	a.pending[t] = struct{}{}
	t.anchor = a
	a.mu.Unlock()
}

func (a *anchor) remove(t *Transfer) {
	a.mu.Lock()
	if _, ok := a.pending[t]; ok {
		delete(a.pending, t)
		if len(a.pending) == 0 {
			close(a.drained)
		}
	}
	a.mu.Unlock()
}

// cancelAll requests cancellation of every tracked transfer. The
// transfers still finish through their normal completion callbacks,
// with an unlink status; cancelAll itself does not wait for them.
func (a *anchor) cancelAll() {
	a.mu.Lock()
	ts := make([]*Transfer, 0, len(a.pending))
	for t := range a.pending {
		ts = append(ts, t)
	}
	a.mu.Unlock()

	for _, t := range ts {
		t.tr.Cancel(t)
	}
}

// waitDrain blocks until the tracked set is empty or the timeout
// elapses, reporting which occurred.
func (a *anchor) waitDrain(timeout time.Duration) bool {
	a.mu.Lock()
	if len(a.pending) == 0 {
		a.mu.Unlock()
		return true
	}
	drained := a.drained
	a.mu.Unlock()

	select {
	case <-drained:
		return true
	case <-time.After(timeout):
		return false
	}
}
