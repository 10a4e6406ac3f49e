// Package ugci exposes a USB bulk-transfer peripheral as a byte
// stream. Caller goroutines read and write through an open Handle;
// the package multiplexes them onto a small fixed pool of
// asynchronous transfers driven by a Transport, and keeps the whole
// arrangement consistent across completion callbacks, disconnect,
// suspend and reset.
//
// The Transport interface covers the bus-side mechanics (descriptor
// parsing, request encoding, power management). The usbfs subpackage
// implements it over the Linux usbfs character devices.
package ugci
