package ugci

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

// Handle is an open byte-stream session on a device, the analogue of
// an open file description. A Handle is safe for concurrent use; the
// nonblocking flag belongs to the handle, not the device.
type Handle struct {
	dev      *Device
	nonblock atomic.Bool
	closed   atomic.Bool
}

// Open resolves minor to an attached device and opens a session on
// it, taking a device reference and a power-management busy token.
func Open(minor int) (*Handle, error) {
	d := openDev(minor)
	if d == nil {
		return nil, ErrNotPresent
	}
	if err := d.tr.AcquireBusy(); err != nil {
		d.unref()
		return nil, errors.Wrap(err, "ugci: acquiring pm reference")
	}
	return &Handle{dev: d}, nil
}

// SetNonblock switches the handle between blocking and nonblocking
// read/write, the way O_NONBLOCK does on a file.
func (h *Handle) SetNonblock(nb bool) {
	h.nonblock.Store(nb)
}

// Flush waits for in-flight I/O to stop — bounded, then forced — and
// drains the error latch so later calls start clean. The drained
// error, if any, is reported to this caller.
func (h *Handle) Flush() error {
	if h.closed.Load() {
		return ErrNotPresent
	}
	return h.dev.flush()
}

// Close flushes the stream, releases the pm token and drops the
// device reference. It reports the error drained by the flush.
// Closing an already-closed handle is a no-op.
func (h *Handle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	d := h.dev

	err := d.flush()

	// allow the device to autosuspend again
	d.lockIOWait()
	if d.attached {
		d.tr.ReleaseBusy()
	}
	d.unlockIO()

	d.unref()
	return err
}
