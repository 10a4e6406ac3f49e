// Package usbfs implements ugci.Transport over the Linux usbfs
// character devices (/dev/bus/usb/BBB/DDD): bulk requests are
// submitted as URBs with SUBMITURB, unlinked with DISCARDURB, and
// finished by a reaper goroutine blocked in REAPURB.
package usbfs
