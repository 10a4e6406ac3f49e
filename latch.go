package ugci

import "sync"

// latch is the single-slot last-error store shared by the read and
// write paths. set is safe to call from the transport's completion
// context; a newer fault overwrites an unread older one. take returns
// the stored status and clears it, so each fault is reported to
// exactly one caller and a later call is not re-charged for it.
type latch struct {
	mu sync.Mutex
	v  Status
}

func (l *latch) set(s Status) {
	l.mu.Lock()
	l.v = s
	l.mu.Unlock()
}

func (l *latch) take() Status {
	l.mu.Lock()
	s := l.v
	l.v = StatusOK
	l.mu.Unlock()
	return s
}
