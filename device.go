package ugci

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

const (
	// maxTransfer caps a single write so scratch allocations stay
	// within one page of transport-required alignment; 512 is the
	// largest bulk packet on EHCI.
	maxTransfer = 4096 - 512

	// writesInFlight is the number of write transfers that may be
	// queued at once.
	writesInFlight = 8

	// drainTimeout bounds the graceful wait in drawDown before
	// outstanding transfers are forcibly cancelled.
	drainTimeout = time.Second

	// minorBase is the minor number assigned to the first attached
	// device.
	minorBase = 66
)

// Device is one attached peripheral. It holds the transport handle,
// the receive buffer with its fill and drain offsets, the in-flight
// write budget and the error latch, and it stays alive — reference
// counted — until the last open handle and in-flight transfer are
// gone.
type Device struct {
	tr    Transport // owned until the last reference drops
	minor int

	// io serializes "is the device still attached" checks against
	// teardown. It is a weighted semaphore rather than a sync.Mutex so
	// read/write entry can abandon the wait on ctx cancellation; it is
	// never held across a submission-plus-wait on the same transfer.
	io       *semaphore.Weighted
	attached bool // under io; cleared exactly once, by Disconnect

	epIn  EndpointDesc
	epOut EndpointDesc

	limit     *semaphore.Weighted // in-flight write budget
	submitted *anchor             // write transfers in flight

	readXfer *Transfer // the one receive transfer, reused across reads
	readBuf  []byte
	filled   int // bytes in readBuf; written by the completion callback
	copied   int // bytes already drained by callers
	ongoing  atomic.Bool
	readWake chan struct{} // completion pings the waiting reader

	errs latch

	refs atomic.Int64
}

// Minor returns the minor number the device registered under.
func (d *Device) Minor() int {
	return d.minor
}

// Attach binds a device instance to tr: discovers the bulk endpoint
// pair, allocates the receive buffer and the dedicated receive
// transfer, and registers a minor number so callers can Open it. On
// failure the transport handle is released again.
func Attach(tr Transport) (*Device, error) {
	in, out, err := tr.Endpoints()
	if err != nil {
		tr.Close()
		return nil, errors.Wrap(err, "ugci: finding bulk endpoint pair")
	}

	d := &Device{
		tr:        tr,
		attached:  true,
		epIn:      in,
		epOut:     out,
		io:        semaphore.NewWeighted(1),
		limit:     semaphore.NewWeighted(writesInFlight),
		submitted: newAnchor(),
		readBuf:   make([]byte, in.MaxPacketSize),
		readWake:  make(chan struct{}, 1),
	}
	d.refs.Store(1)
	d.readXfer = &Transfer{
		Dir:      DirIn,
		Endpoint: in.Address,
		done:     d.readComplete,
		tr:       tr,
	}

	d.minor = registerDev(d)
	logger.WithField("minor", d.minor).Info("ugci device attached")
	return d, nil
}

func (d *Device) ref() {
	d.refs.Add(1)
}

// unref drops one reference and destroys the device when the last one
// goes. Reaching zero is only possible after Disconnect has removed
// the device from the table, so no new reference can appear
// concurrently.
func (d *Device) unref() {
	if d.refs.Add(-1) == 0 {
		d.destroy()
	}
}

func (d *Device) destroy() {
	d.readXfer = nil
	d.readBuf = nil
	if err := d.tr.Close(); err != nil {
		logger.WithError(err).WithField("minor", d.minor).Error("releasing transport handle")
	}
}

func (d *Device) lockIO(ctx context.Context) error {
	return d.io.Acquire(ctx, 1)
}

// lockIOWait acquires the io mutex uninterruptibly, for lifecycle
// paths that may not bail out.
func (d *Device) lockIOWait() {
	// Acquire cannot fail with a background context.
	_ = d.io.Acquire(context.Background(), 1)
}

func (d *Device) unlockIO() {
	d.io.Release(1)
}

// Process-wide minor-number table. Attach registers, Disconnect
// removes, Open resolves. Guarded by its own lock, decoupled from any
// per-device state.
var devTable = struct {
	sync.Mutex
	next int
	devs map[int]*Device
}{devs: make(map[int]*Device)}

func registerDev(d *Device) int {
	devTable.Lock()
	minor := minorBase + devTable.next
	devTable.next++
	devTable.devs[minor] = d
	devTable.Unlock()
	return minor
}

func unregisterDev(minor int) {
	devTable.Lock()
	delete(devTable.devs, minor)
	devTable.Unlock()
}

// openDev resolves a minor to a live device, taking a reference while
// the table lock still pins the entry. Returns nil if the minor is
// unknown or already detached.
func openDev(minor int) *Device {
	devTable.Lock()
	defer devTable.Unlock()
	d := devTable.devs[minor]
	if d != nil {
		d.ref()
	}
	return d
}
