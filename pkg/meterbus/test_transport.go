package meterbus

import "fmt"

// TestTransport is an in-memory transport for tests and mock runs. It
// answers every request from a scripted register table on the next
// ResponseReady poll, so one Tick sends and the following Tick consumes.
type TestTransport struct {
	// registers maps device -> register address -> register values in
	// transmit order.
	registers map[uint8]map[uint16][]uint16
	// Fail, when set, is consulted per request; returning a non-nil error
	// makes ReadResponse report it.
	Fail func(device uint8, address uint16) error

	pending *rtuResult
	// Requests records every request for assertions.
	Requests []TestRequest
}

type TestRequest struct {
	Device   uint8
	Function uint8
	Address  uint16
	Count    uint16
}

func NewTestTransport() *TestTransport {
	return &TestTransport{
		registers: make(map[uint8]map[uint16][]uint16),
	}
}

// SetValue scripts the response for one register address of a device.
func (t *TestTransport) SetValue(device uint8, address uint16, value float64, datatype DataType) {
	if t.registers[device] == nil {
		t.registers[device] = make(map[uint16][]uint16)
	}
	payload := Encode(value, datatype)
	regs := make([]uint16, len(payload)/2)
	for i := range regs {
		regs[i] = uint16(payload[i*2])<<8 | uint16(payload[i*2+1])
	}
	t.registers[device][address] = regs
}

func (t *TestTransport) SendRequest(device uint8, function uint8, address uint16, count uint16) error {
	t.Requests = append(t.Requests, TestRequest{Device: device, Function: function, Address: address, Count: count})
	if t.Fail != nil {
		if err := t.Fail(device, address); err != nil {
			t.pending = &rtuResult{err: err}
			return nil
		}
	}
	regs, ok := t.registers[device][address]
	if !ok {
		t.pending = &rtuResult{err: ErrTimeout}
		return nil
	}
	if int(count) != len(regs) {
		t.pending = &rtuResult{err: fmt.Errorf("%w: requested %d, scripted %d", ErrBadRegisterCount, count, len(regs))}
		return nil
	}
	t.pending = &rtuResult{payload: PackRegisters(regs)}
	return nil
}

func (t *TestTransport) ResponseReady() bool {
	return t.pending != nil
}

func (t *TestTransport) ReadResponse(count uint16) ([]byte, error) {
	res := t.pending
	t.pending = nil
	if res == nil {
		return nil, ErrNoResponse
	}
	if res.err != nil {
		return nil, res.err
	}
	if len(res.payload) != int(count)*2 {
		return nil, ErrBadRegisterCount
	}
	return res.payload, nil
}
