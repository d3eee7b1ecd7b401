package meterbus

import (
	"errors"
	"sync/atomic"

	"go.uber.org/zap"
)

// MeasurementSink receives decoded and scaled values for the built-in
// quantities and the once-per-sweep cycle notification. It is owned by the
// host; the poller only writes into it.
type MeasurementSink interface {
	UpdateMeasurement(quantity Quantity, phase int, value float64)
	ScanCycleDone()
}

// HostState lets the host suspend polling, e.g. during a firmware update.
// While Busy returns true the poller skips ticks entirely.
type HostState interface {
	Busy() bool
}

// Poller walks the (register, phase) space of a schema over a half-duplex
// transport, one outstanding request at a time. It is driven by periodic
// Tick calls and holds no goroutines of its own.
type Poller struct {
	schema    *Schema
	transport Transport
	sink      MeasurementSink
	host      HostState
	logger    *zap.Logger

	// guard is a one-bit reentrancy latch, not a mutex: a tick that finds
	// it taken skips entirely instead of waiting.
	guard atomic.Bool

	register int
	phase    int
	retry    int
	cycles   uint64
}

func NewPoller(schema *Schema, transport Transport, sink MeasurementSink, host HostState, logger *zap.Logger) (*Poller, error) {
	if schema == nil {
		return nil, errors.New("poller: nil schema")
	}
	if transport == nil {
		return nil, errors.New("poller: nil transport")
	}
	if sink == nil {
		return nil, errors.New("poller: nil sink")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Poller{
		schema:    schema,
		transport: transport,
		sink:      sink,
		host:      host,
		logger:    logger.With(zap.String("component", "poller")),
	}
	// The cursor starts at (0,0); move it to the first scanned pair if
	// that slot happens to be unconfigured. BuildSchema guarantees at
	// least one active pair, so this cannot wrap.
	if !schema.Entry(0).PhaseUsed(schema.sentinelPhase(0)) {
		p.advance()
	}
	return p, nil
}

// Position returns the current scan cursor, mainly for diagnostics.
func (p *Poller) Position() (register int, phase int) {
	return p.register, p.phase
}

// Cycles returns the number of completed full sweeps.
func (p *Poller) Cycles() uint64 {
	return atomic.LoadUint64(&p.cycles)
}

// Tick runs one step of the scan: consume at most one pending response,
// then either issue one new request or burn one retry credit. It never
// blocks and issues at most one request per call.
func (p *Poller) Tick() {
	if !p.guard.CompareAndSwap(false, true) {
		return
	}
	defer p.guard.Store(false)

	if p.host != nil && p.host.Busy() {
		return
	}

	entry := p.schema.Entry(p.register)

	dataReady := p.transport.ResponseReady()
	if dataReady {
		payload, err := p.transport.ReadResponse(entry.DataType().RegisterCount())
		if err != nil {
			// Soft failure: leave the cursor in place so the same
			// register is requested again.
			p.logger.Debug("response error",
				zap.Error(err),
				zap.Int("register", p.register),
				zap.Int("phase", p.phase))
		} else {
			value, err := Decode(payload, entry.DataType())
			if err != nil {
				p.logger.Debug("decode error",
					zap.Error(err),
					zap.Int("register", p.register))
			} else {
				p.route(Scale(value, entry.Factor()))
				p.advance()
				entry = p.schema.Entry(p.register)
			}
		}
	}

	// Send a new request right after consuming a response, on the very
	// first tick, or once the retry budget has drained. One spare tick
	// tolerates a missed reply without flooding a noisy bus.
	if p.retry == 0 || dataReady {
		p.retry = 1
		device, slot := p.target()
		address := entry.Address(slot)
		count := entry.DataType().RegisterCount()
		if err := p.transport.SendRequest(p.schema.Bus().Devices[device], p.schema.Bus().Function, address, count); err != nil {
			p.logger.Debug("request error",
				zap.Error(err),
				zap.Uint8("device", p.schema.Bus().Devices[device]),
				zap.Uint16("address", address))
		}
	} else {
		p.retry--
	}
}

// target resolves the device index and the address slot for the current
// cursor: in multi-device mode the phase selects the device and every
// entry keeps its address in slot 0.
func (p *Poller) target() (device int, slot int) {
	if p.schema.MultiDevice() {
		return p.phase, 0
	}
	return 0, p.phase
}

// route delivers a scaled value to the built-in sink slot or, for indices
// past the built-ins, the user register cache.
func (p *Poller) route(value float64) {
	if p.register < BuiltinRegisterCount {
		p.sink.UpdateMeasurement(Quantity(p.register), p.phase, value)
		return
	}
	p.schema.User(p.register - BuiltinRegisterCount).SetValue(p.phase, value)
}

// advance moves the cursor to the next configured (register, phase) pair,
// wrapping through the full space and firing the cycle notification once
// per sweep. Unconfigured slots are skipped entirely.
func (p *Poller) advance() {
	total := p.schema.RegisterCount()
	for {
		p.phase++
		if p.phase >= p.schema.Phases() {
			p.phase = 0
			p.register++
			if p.register >= total {
				p.register = 0
				atomic.AddUint64(&p.cycles, 1)
				p.sink.ScanCycleDone()
			}
		}
		if p.schema.Entry(p.register).PhaseUsed(p.schema.sentinelPhase(p.phase)) {
			return
		}
	}
}
