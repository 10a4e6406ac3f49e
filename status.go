package ugci

// Status is the completion status of a Transfer, reported by the
// transport when a submitted request finishes or is unlinked.
type Status int

const (
	StatusOK        Status = iota
	StatusCancelled        // unlinked asynchronously (draw-down, detach)
	StatusConnReset        // unlinked synchronously
	StatusShutdown         // device or host controller going away
	StatusStall            // endpoint halted
	StatusNoMem            // transport could not allocate the request
	StatusIO               // any other transport fault
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusCancelled:
		return "cancelled"
	case StatusConnReset:
		return "connection reset"
	case StatusShutdown:
		return "shutdown"
	case StatusStall:
		return "stall"
	case StatusNoMem:
		return "no memory"
	case StatusIO:
		return "io error"
	}
	return "invalid"
}

// benign reports whether s is one of the unlink statuses produced by
// intentional cancellation. These are expected during draw-down and
// detach and are never latched.
func (s Status) benign() bool {
	return s == StatusCancelled || s == StatusConnReset || s == StatusShutdown
}
