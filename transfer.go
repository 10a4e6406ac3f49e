package ugci

// Direction of a Transfer relative to the host.
type Direction uint8

const (
	DirIn  Direction = iota // device to host
	DirOut                  // host to device
)

// Transfer is one asynchronous bulk request. A transport accepts it
// via Submit and finishes it exactly once by calling Complete from its
// own completion context, including after Cancel (with an unlink
// status). Everything that must happen afterwards — untracking, buffer
// release, waking blocked callers — hangs off the done callback, so
// cancellation runs the same cleanup as success.
type Transfer struct {
	Dir      Direction
	Endpoint uint8
	Buf      []byte // transfer buffer; the first Len bytes are valid
	Len      int    // requested length

	Status Status
	Actual int // bytes actually transferred

	done   func(*Transfer)
	anchor *anchor
	tr     Transport
}

// Complete records the outcome of a submitted transfer and runs its
// completion path. Transports call it exactly once per submission; it
// must not block.
func (t *Transfer) Complete(status Status, actual int) {
	t.Status = status
	t.Actual = actual
	if a := t.anchor; a != nil {
		t.anchor = nil
		a.remove(t)
	}
	if t.done != nil {
		t.done(t)
	}
}
