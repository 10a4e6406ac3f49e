//go:build linux

package usbfs

import (
	"fmt"
	"io"
	"os"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	ugci "github.com/McSwindler/libugci"
)

// usbfs ioctl requests (64-bit layout).
const (
	usbdevfsSubmitURB  = 0x8038550a
	usbdevfsDiscardURB = 0x0000550b
	usbdevfsReapURB    = 0x4008550c
)

const urbTypeBulk = 3

// descriptor walk constants
const (
	dtEndpoint    = 0x05
	epTypeMask    = 0x03
	epTypeBulk    = 0x02
	dirIn         = 0x80
	minEndpointDL = 7
)

// urb mirrors struct usbdevfs_urb. The kernel writes back into it, so
// each one is pinned by the inflight map until it is reaped.
type urb struct {
	typ          uint8
	endpoint     uint8
	status       int32
	flags        uint32
	buffer       unsafe.Pointer
	bufferLength int32
	actualLength int32
	startFrame   int32
	streamID     int32
	errorCount   int32
	signr        uint32
	usercontext  uintptr
}

// Transport drives one usbfs device node.
type Transport struct {
	f *os.File

	mu       sync.Mutex
	inflight map[*urb]*ugci.Transfer
	reaping  bool
	closed   bool
	busy     int
}

var _ ugci.Transport = (*Transport)(nil)

// Open opens the usbfs node for the device at bus/dev.
func Open(bus, dev int) (*Transport, error) {
	path := fmt.Sprintf("/dev/bus/usb/%03d/%03d", bus, dev)
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if os.IsNotExist(err) {
		return nil, ugci.ErrNotPresent
	} else if err != nil {
		return nil, errors.Wrapf(err, "usbfs: opening %s", path)
	}
	return &Transport{
		f:        f,
		inflight: make(map[*urb]*ugci.Transfer),
	}, nil
}

func (t *Transport) ioctl(req uintptr, arg unsafe.Pointer) unix.Errno {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, t.f.Fd(), req, uintptr(arg))
	return errno
}

// Endpoints walks the descriptors usbfs exposes at the start of the
// device node and returns the first bulk-in and bulk-out pair.
func (t *Transport) Endpoints() (in, out ugci.EndpointDesc, err error) {
	buf := make([]byte, 4096)
	n, err := t.f.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return in, out, errors.Wrap(err, "usbfs: reading descriptors")
	}

	var haveIn, haveOut bool
	for i := 0; i+1 < n; {
		dl := int(buf[i])
		if dl == 0 {
			break
		}
		if buf[i+1] == dtEndpoint && dl >= minEndpointDL && i+minEndpointDL <= n {
			addr := buf[i+2]
			attr := buf[i+3]
			maxp := int(buf[i+4]) | int(buf[i+5])<<8
			if attr&epTypeMask == epTypeBulk {
				ep := ugci.EndpointDesc{Address: addr, MaxPacketSize: maxp}
				if ep.IsIn() && !haveIn {
					in, haveIn = ep, true
				} else if !ep.IsIn() && !haveOut {
					out, haveOut = ep, true
				}
			}
		}
		i += dl
	}

	if !haveIn || !haveOut {
		return in, out, ugci.ErrNoEndpoints
	}
	return in, out, nil
}

// Submit queues x as a bulk URB. The reaper goroutine starts with the
// first in-flight URB and exits when the node dies under it.
func (t *Transport) Submit(x *ugci.Transfer) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ugci.ErrNotPresent
	}

	u := &urb{
		typ:          urbTypeBulk,
		endpoint:     x.Endpoint,
		buffer:       unsafe.Pointer(&x.Buf[0]),
		bufferLength: int32(x.Len),
	}
	if errno := t.ioctl(usbdevfsSubmitURB, unsafe.Pointer(u)); errno != 0 {
		switch errno {
		case unix.ENOMEM:
			return ugci.ErrNoMemory
		case unix.ENODEV, unix.ESHUTDOWN:
			return ugci.ErrNotPresent
		}
		return errors.Wrap(errno, "usbfs: submitting urb")
	}

	t.inflight[u] = x
	if !t.reaping {
		t.reaping = true
		go t.reapLoop()
	}
	return nil
}

// Cancel unlinks the URB carrying x, if one is in flight. EINVAL from
// DISCARDURB means the URB already completed; the reaper delivers it.
func (t *Transport) Cancel(x *ugci.Transfer) {
	t.mu.Lock()
	var u *urb
	for cand, tx := range t.inflight {
		if tx == x {
			u = cand
			break
		}
	}
	t.mu.Unlock()

	if u == nil {
		return
	}
	t.ioctl(usbdevfsDiscardURB, unsafe.Pointer(u))
}

// reapLoop blocks in REAPURB and finishes transfers as their URBs come
// back. A reap failure means the node is gone: everything still in
// flight completes with StatusShutdown so teardown can drain.
func (t *Transport) reapLoop() {
	for {
		var done *urb
		errno := t.ioctl(usbdevfsReapURB, unsafe.Pointer(&done))
		if errno == unix.EINTR || errno == unix.EAGAIN {
			continue
		}
		if errno != 0 {
			t.mu.Lock()
			orphans := make([]*ugci.Transfer, 0, len(t.inflight))
			for _, x := range t.inflight {
				orphans = append(orphans, x)
			}
			t.inflight = make(map[*urb]*ugci.Transfer)
			t.reaping = false
			t.mu.Unlock()

			for _, x := range orphans {
				x.Complete(ugci.StatusShutdown, 0)
			}
			return
		}

		t.mu.Lock()
		x := t.inflight[done]
		delete(t.inflight, done)
		t.mu.Unlock()
		if x == nil {
			continue
		}
		x.Complete(urbStatus(done.status), int(done.actualLength))
	}
}

// urbStatus maps a reaped URB's negative-errno status.
func urbStatus(s int32) ugci.Status {
	switch unix.Errno(-s) {
	case 0:
		return ugci.StatusOK
	case unix.ENOENT:
		return ugci.StatusCancelled
	case unix.ECONNRESET:
		return ugci.StatusConnReset
	case unix.ESHUTDOWN, unix.ENODEV:
		return ugci.StatusShutdown
	case unix.EPIPE:
		return ugci.StatusStall
	case unix.ENOMEM:
		return ugci.StatusNoMem
	}
	return ugci.StatusIO
}

// AcquireBusy and ReleaseBusy only balance the pm token count: holding
// the usbfs node open already keeps the device configured, and usbfs
// exposes no autosuspend control of its own.
func (t *Transport) AcquireBusy() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ugci.ErrNotPresent
	}
	t.busy++
	return nil
}

func (t *Transport) ReleaseBusy() {
	t.mu.Lock()
	if t.busy > 0 {
		t.busy--
	}
	t.mu.Unlock()
}

// Close releases the node. In-flight URBs are discarded first so the
// reaper can deliver their unlink completions before the fd dies.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	urbs := make([]*urb, 0, len(t.inflight))
	for u := range t.inflight {
		urbs = append(urbs, u)
	}
	t.mu.Unlock()

	for _, u := range urbs {
		t.ioctl(usbdevfsDiscardURB, unsafe.Pointer(u))
	}
	return t.f.Close()
}
