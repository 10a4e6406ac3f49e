package ugci

import "github.com/apex/log"

// logger is what the package logs through. Binaries that configure
// apex/log handlers themselves can swap it with SetLogger.
var logger log.Interface = log.Log

// SetLogger replaces the package logger.
func SetLogger(l log.Interface) {
	if l != nil {
		logger = l
	}
}

// Transport is the bus-side collaborator a Device drives. It owns the
// transfer-request encoding, descriptor parsing and power management
// for one attached peripheral; the usbfs package provides the Linux
// implementation and tests substitute an in-memory one.
//
// Submit either queues t and returns nil, or fails synchronously. Once
// queued, the transport invokes t.Complete exactly once from its own
// completion goroutine — after Cancel too (with StatusCancelled), and
// for transfers in flight when the peripheral is removed (with
// StatusShutdown). That last case is load-bearing: teardown waits on
// outstanding completions, so a transport that swallowed them would
// wedge it.
type Transport interface {
	// Endpoints returns the first bulk-in and bulk-out endpoint pair
	// of the active configuration.
	Endpoints() (in, out EndpointDesc, err error)

	// Submit queues t for asynchronous execution.
	Submit(t *Transfer) error

	// Cancel requests that an in-flight transfer be unlinked. It is a
	// no-op for a transfer that is not currently submitted.
	Cancel(t *Transfer)

	// AcquireBusy takes a power-management reference that keeps the
	// device from autosuspending; ReleaseBusy returns it.
	AcquireBusy() error
	ReleaseBusy()

	// Close releases the transport handle. Called once, after the last
	// device reference is gone.
	Close() error
}
