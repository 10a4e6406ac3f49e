package ugci

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// simTransport is an in-memory Transport: submissions park in a queue
// until the test completes them by hand, so interleavings can be
// scripted exactly. Cancel completes synchronously with
// StatusCancelled, the way a transport unlink would.
type simTransport struct {
	mu         sync.Mutex
	inflight   []*Transfer
	submitErr  error // forced synchronous submission failure
	epErr      error // forced endpoint-discovery failure
	gone       bool  // submissions fail as if the device were removed
	busy       int
	closeCalls int
	maxIn      int // high-water mark of concurrent IN transfers
}

func newSimTransport() *simTransport {
	return &simTransport{}
}

func (s *simTransport) Endpoints() (EndpointDesc, EndpointDesc, error) {
	if s.epErr != nil {
		return EndpointDesc{}, EndpointDesc{}, s.epErr
	}
	return EndpointDesc{Address: 0x81, MaxPacketSize: 64},
		EndpointDesc{Address: 0x02, MaxPacketSize: 64}, nil
}

func (s *simTransport) Submit(t *Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitErr != nil {
		return s.submitErr
	}
	if s.gone || s.closeCalls > 0 {
		return ErrNotPresent
	}
	s.inflight = append(s.inflight, t)
	if t.Dir == DirIn {
		if n := s.countLocked(DirIn); n > s.maxIn {
			s.maxIn = n
		}
	}
	return nil
}

func (s *simTransport) Cancel(t *Transfer) {
	s.mu.Lock()
	for i, c := range s.inflight {
		if c == t {
			s.inflight = append(s.inflight[:i], s.inflight[i+1:]...)
			s.mu.Unlock()
			t.Complete(StatusCancelled, 0)
			return
		}
	}
	s.mu.Unlock()
}

func (s *simTransport) AcquireBusy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy++
	return nil
}

func (s *simTransport) ReleaseBusy() {
	s.mu.Lock()
	s.busy--
	s.mu.Unlock()
}

func (s *simTransport) Close() error {
	s.mu.Lock()
	s.closeCalls++
	s.mu.Unlock()
	return nil
}

func (s *simTransport) countLocked(dir Direction) int {
	n := 0
	for _, t := range s.inflight {
		if t.Dir == dir {
			n++
		}
	}
	return n
}

func (s *simTransport) pending(dir Direction) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked(dir)
}

func (s *simTransport) pendingAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

func (s *simTransport) popLocked(dir Direction) *Transfer {
	for i, t := range s.inflight {
		if t.Dir == dir {
			s.inflight = append(s.inflight[:i], s.inflight[i+1:]...)
			return t
		}
	}
	return nil
}

// completeIn finishes the oldest in-flight receive with data, and
// reports how many bytes it delivered; 0 when nothing was in flight.
func (s *simTransport) completeIn(data []byte) int {
	s.mu.Lock()
	t := s.popLocked(DirIn)
	s.mu.Unlock()
	if t == nil {
		return 0
	}
	n := copy(t.Buf[:t.Len], data)
	t.Complete(StatusOK, n)
	return n
}

// completeOut finishes the oldest in-flight write successfully.
func (s *simTransport) completeOut() bool {
	s.mu.Lock()
	t := s.popLocked(DirOut)
	s.mu.Unlock()
	if t == nil {
		return false
	}
	t.Complete(StatusOK, t.Len)
	return true
}

// failNext finishes the oldest in-flight transfer of dir with status.
func (s *simTransport) failNext(dir Direction, status Status) bool {
	s.mu.Lock()
	t := s.popLocked(dir)
	s.mu.Unlock()
	if t == nil {
		return false
	}
	t.Complete(status, 0)
	return true
}

// detach emulates physical removal: future submissions fail, and
// everything in flight completes with StatusShutdown.
func (s *simTransport) detach() {
	s.mu.Lock()
	s.gone = true
	ts := s.inflight
	s.inflight = nil
	s.mu.Unlock()
	for _, t := range ts {
		t.Complete(StatusShutdown, 0)
	}
}

// drain completes everything still in flight successfully, so test
// teardown does not wait out the graceful drain.
func (s *simTransport) drain() {
	for {
		s.mu.Lock()
		if len(s.inflight) == 0 {
			s.mu.Unlock()
			return
		}
		t := s.inflight[0]
		s.inflight = s.inflight[1:]
		s.mu.Unlock()
		t.Complete(StatusOK, t.Len)
	}
}

func (s *simTransport) busyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

func (s *simTransport) closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

// newTestDevice attaches a device over a fresh simTransport and opens
// one handle on it. Teardown stays with the test: most of them
// exercise close/disconnect ordering themselves.
func newTestDevice(t *testing.T) (*Device, *simTransport, *Handle) {
	t.Helper()
	s := newSimTransport()
	d, err := Attach(s)
	require.NoError(t, err)
	h, err := Open(d.Minor())
	require.NoError(t, err)
	return d, s, h
}
