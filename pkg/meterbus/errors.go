package meterbus

import "errors"

// Schema build errors. These are fatal to the engine instance: the caller
// must not start polling without a complete schema.
var (
	ErrNoConfig            = errors.New("register map: no data")
	ErrNoRegisters         = errors.New("register map: no registers configured")
	ErrUnsupportedFunction = errors.New("register map: unsupported function code")
	ErrBadDeviceAddress    = errors.New("register map: device address out of range")
)

// Transport errors. All of them are soft: the poller logs the error and
// leaves the scan cursor in place so the same register is requested again.
var (
	ErrIllegalFunction    = errors.New("illegal function")
	ErrIllegalDataAddress = errors.New("illegal data address")
	ErrIllegalDataValue   = errors.New("illegal data value")
	ErrDeviceFailure      = errors.New("device failure")
	ErrAcknowledge        = errors.New("request acknowledged")
	ErrDeviceBusy         = errors.New("device busy")
	ErrTimeout            = errors.New("request timed out")
	ErrBadCRC             = errors.New("bad crc")
	ErrShortResponse      = errors.New("short response")
	ErrBadRegisterCount   = errors.New("unsupported register count")
	ErrNoResponse         = errors.New("no response pending")
)
