package ugci

import (
	"context"

	"github.com/apex/log"
)

// Write queues up to maxTransfer bytes of p as one bulk-out transfer
// and returns the number of bytes accepted; callers re-issue Write for
// the remainder. While the in-flight write budget is exhausted it
// blocks, unless the handle is nonblocking, in which case it fails
// with ErrWouldBlock. Writing zero bytes is a no-op success.
func (h *Handle) Write(ctx context.Context, p []byte) (int, error) {
	d := h.dev

	if len(p) == 0 {
		return 0, nil
	}

	// limit in-flight writes so one caller cannot queue unbounded
	// transfer memory
	if h.nonblock.Load() {
		if !d.limit.TryAcquire(1) {
			return 0, ErrWouldBlock
		}
	} else if err := d.limit.Acquire(ctx, 1); err != nil {
		return 0, err
	}

	if s := d.errs.take(); s != StatusOK {
		d.limit.Release(1)
		return 0, statusErr(s)
	}

	n := min(len(p), maxTransfer)
	buf := make([]byte, n)
	copy(buf, p)

	t := &Transfer{
		Dir:      DirOut,
		Endpoint: d.epOut.Address,
		Buf:      buf,
		Len:      n,
		done:     d.writeComplete,
		tr:       d.tr,
	}

	// this lock makes sure we don't submit to a gone device
	if err := d.lockIO(ctx); err != nil {
		d.limit.Release(1)
		return 0, err
	}
	if !d.attached { // Disconnect was called
		d.unlockIO()
		d.limit.Release(1)
		return 0, ErrNotPresent
	}

	d.submitted.add(t)
	d.ref()
	err := d.tr.Submit(t)
	d.unlockIO()
	if err != nil {
		logger.WithError(err).WithField("minor", d.minor).Error("failed submitting write transfer")
		d.submitted.remove(t)
		d.unref()
		d.limit.Release(1)
		return 0, submitErr(err)
	}

	return n, nil
}

// writeComplete runs for every write outcome, forced cancellation
// included: the scratch buffer and the budget unit are always
// returned, so the in-flight budget cannot leak.
func (d *Device) writeComplete(t *Transfer) {
	if t.Status != StatusOK && !t.Status.benign() {
		logger.WithFields(log.Fields{
			"minor":  d.minor,
			"status": t.Status.String(),
		}).Error("nonzero write bulk status received")
		d.errs.set(t.Status)
	}

	t.Buf = nil
	d.limit.Release(1)
	d.unref()
}
