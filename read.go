package ugci

import (
	"context"

	"github.com/apex/log"
)

// submitRead queues the dedicated receive transfer for up to count
// bytes. The caller holds the io mutex and guarantees no receive is
// outstanding; the fill and drain offsets reset so the completion
// callback owns the whole buffer.
func (d *Device) submitRead(count int) error {
	if d.ongoing.Load() {
		return ErrReadBusy
	}

	t := d.readXfer
	t.Buf = d.readBuf
	t.Len = min(len(d.readBuf), count)

	d.ongoing.Store(true)
	d.filled = 0
	d.copied = 0

	d.ref() // the in-flight transfer keeps the device alive
	if err := d.tr.Submit(t); err != nil {
		logger.WithError(err).WithField("minor", d.minor).Error("failed submitting read transfer")
		d.ongoing.Store(false)
		d.unref()
		return submitErr(err)
	}
	return nil
}

// readComplete is the receive completion, invoked from the transport's
// completion context. Unlink statuses from draw-down or detach are not
// faults; anything else is latched for the next caller. Either way the
// read-pending state clears and a waiting reader is woken.
func (d *Device) readComplete(t *Transfer) {
	if t.Status != StatusOK {
		if !t.Status.benign() {
			logger.WithFields(log.Fields{
				"minor":  d.minor,
				"status": t.Status.String(),
			}).Error("nonzero read bulk status received")
			d.errs.set(t.Status)
		}
	} else {
		// publishes before ongoing flips: the reader loads ongoing
		// before touching filled
		d.filled = t.Actual
	}
	d.ongoing.Store(false)

	select {
	case d.readWake <- struct{}{}:
	default:
	}
	d.unref()
}

// Read copies up to len(p) bytes of the device's byte stream into p
// and returns how many were copied. It blocks until data or a latched
// error is available; on a nonblocking handle it fails with
// ErrWouldBlock while a receive is still in flight. A fault latched by
// a completion is reported to exactly one caller, then cleared.
//
// When the buffered data only partly satisfies the request, a refill
// is started before returning, so steady-state streaming overlaps the
// copy-out with the next transfer.
func (h *Handle) Read(ctx context.Context, p []byte) (int, error) {
	d := h.dev

	// if we cannot read at all, report EOF
	if d.readXfer == nil || len(p) == 0 {
		return 0, nil
	}

	if err := d.lockIO(ctx); err != nil {
		return 0, err
	}
	defer d.unlockIO()

	if !d.attached { // Disconnect was called
		return 0, ErrNotPresent
	}

	for {
		if d.ongoing.Load() {
			if h.nonblock.Load() {
				return 0, ErrWouldBlock
			}
			// a transfer may take forever; wait interruptibly
			select {
			case <-d.readWake:
			case <-ctx.Done():
				return 0, ctx.Err()
			}
			continue
		}

		// errors must be reported, and only once
		if s := d.errs.take(); s != StatusOK {
			return 0, statusErr(s)
		}

		if d.filled > 0 {
			available := d.filled - d.copied
			if available == 0 {
				// buffer fully drained, actual I/O needs to happen
				if err := d.submitRead(len(p)); err != nil {
					return 0, err
				}
				continue
			}

			chunk := min(available, len(p))
			copy(p, d.readBuf[d.copied:d.copied+chunk])
			d.copied += chunk

			// asked for more than we had: start the refill, don't
			// wait on it
			if available < len(p) {
				_ = d.submitRead(len(p) - chunk)
			}
			return chunk, nil
		}

		// nothing buffered yet
		if err := d.submitRead(len(p)); err != nil {
			return 0, err
		}
	}
}
