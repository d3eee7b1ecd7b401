package meterbus

// Transport is the half-duplex request/response service the poller drives.
// Framing, CRC and timeouts belong to the implementation; the poller only
// decides when to send and when to read. ResponseReady must never block.
type Transport interface {
	// SendRequest issues one read request for count registers starting at
	// address on the given slave device.
	SendRequest(device uint8, function uint8, address uint16, count uint16) error

	// ResponseReady reports whether a response (or a transport error) is
	// waiting to be consumed by ReadResponse.
	ResponseReady() bool

	// ReadResponse consumes the pending response and returns its payload,
	// expecting exactly count registers. Errors follow the taxonomy in
	// errors.go.
	ReadResponse(count uint16) ([]byte, error)
}
