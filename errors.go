package ugci

import "errors"

var (
	ErrNotPresent  = errors.New("ugci: device not present")
	ErrWouldBlock  = errors.New("ugci: resource temporarily unavailable")
	ErrBrokenPipe  = errors.New("ugci: endpoint stalled")
	ErrIO          = errors.New("ugci: transfer error")
	ErrNoMemory    = errors.New("ugci: out of transfer memory")
	ErrReadBusy    = errors.New("ugci: receive transfer already in progress")
	ErrNoEndpoints = errors.New("ugci: device lacks a bulk-in and bulk-out endpoint pair")
)

// statusErr maps a latched completion status to the error reported to
// the caller. A stall stays distinct so callers can tell a reset
// condition from a generic fault; everything else collapses to ErrIO.
func statusErr(s Status) error {
	switch s {
	case StatusOK:
		return nil
	case StatusStall:
		return ErrBrokenPipe
	case StatusNoMem:
		return ErrNoMemory
	}
	return ErrIO
}

// submitErr maps a synchronous submission failure the same way the
// kernel maps it: allocation pressure stays visible, everything else
// collapses to ErrIO.
func submitErr(err error) error {
	if errors.Is(err, ErrNoMemory) {
		return ErrNoMemory
	}
	return ErrIO
}
