package ugci

// directionIn is bit 7 of an endpoint address: set for IN endpoints
// (device to host), clear for OUT.
const directionIn = 0x80

// EndpointDesc describes one bulk endpoint of an attached device, as
// reported by the transport's descriptor walk.
type EndpointDesc struct {
	Address       uint8 // endpoint address, including the direction bit
	MaxPacketSize int
}

// IsIn reports whether the endpoint carries data device-to-host.
func (e EndpointDesc) IsIn() bool {
	return e.Address&directionIn != 0
}
