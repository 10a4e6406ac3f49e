package ugci

// Disconnect takes the device out of service: the minor is
// unregistered first so no new opens can resolve it, new submissions
// are fenced off by clearing attached under the io mutex, and every
// outstanding transfer is cancelled. The attach reference drops last;
// the object is destroyed once open handles and in-flight completions
// have drained theirs.
func (d *Device) Disconnect() {
	unregisterDev(d.minor)

	// prevent more I/O from starting
	d.lockIOWait()
	d.attached = false
	d.unlockIO()

	d.submitted.cancelAll()
	d.tr.Cancel(d.readXfer)

	logger.WithField("minor", d.minor).Info("ugci device disconnected")
	d.unref()
}

// drawDown waits for in-flight writes to finish, up to drainTimeout,
// cancels whatever is left, then unlinks the receive transfer (a
// no-op when idle). Shared by flush, suspend and pre-reset; callers
// hold the io mutex.
func (d *Device) drawDown() {
	if !d.submitted.waitDrain(drainTimeout) {
		d.submitted.cancelAll()
	}
	d.tr.Cancel(d.readXfer)
}

// flush waits for I/O to stop and reads out the latched error,
// leaving subsequent opens a clean slate.
func (d *Device) flush() error {
	d.lockIOWait()
	d.drawDown()
	s := d.errs.take()
	d.unlockIO()
	return statusErr(s)
}

// Suspend draws down outstanding I/O ahead of a bus suspend. Lifecycle
// hooks are serialized by the bus framework; Suspend only has to hold
// its own against concurrent callers.
func (d *Device) Suspend() {
	d.lockIOWait()
	if d.attached {
		d.drawDown()
	}
	d.unlockIO()
}

// Resume is the bus resume hook. Nothing restarts here: the next
// caller read submits a fresh receive.
func (d *Device) Resume() {}

// ResetToken witnesses that PreReset stalled the device and still
// holds its io mutex across the reset window. The window closes only
// through PostReset, so the release cannot run without the acquire.
type ResetToken struct {
	d *Device
}

// PreReset stalls I/O ahead of a bus reset: the io mutex is acquired
// and held until PostReset, and outstanding transfers are drawn down.
func (d *Device) PreReset() *ResetToken {
	d.lockIOWait()
	d.drawDown()
	return &ResetToken{d: d}
}

// PostReset marks the stream as reset — the next caller sees
// ErrBrokenPipe instead of silently resuming on possibly-stale state —
// and releases the io mutex taken by PreReset.
func (t *ResetToken) PostReset() {
	d := t.d
	t.d = nil

	// no transfers are active between pre- and post-reset
	d.errs.set(StatusStall)
	d.unlockIO()
}
