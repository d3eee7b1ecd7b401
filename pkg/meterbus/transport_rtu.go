package meterbus

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

// RTUTransport drives a serial Modbus RTU line through simonvetter/modbus.
// Each SendRequest runs the blocking client call on a goroutine and parks
// the outcome in a single pending slot, which keeps ResponseReady
// non-blocking for the tick-driven poller. The bus is half duplex, so
// there is never more than one request in flight.
type RTUTransport struct {
	client *modbus.ModbusClient
	logger *zap.Logger

	mu       sync.Mutex
	pending  *rtuResult
	inflight bool
}

type rtuResult struct {
	payload []byte
	err     error
}

// NewRTUTransport opens the serial device with the bus parameters of the
// schema. The framing string follows the usual "8N1" convention.
func NewRTUTransport(device string, bus BusConfig, timeout time.Duration, logger *zap.Logger) (*RTUTransport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dataBits, parity, stopBits, err := parseSerialConfig(bus.SerialConfig)
	if err != nil {
		return nil, err
	}
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:      fmt.Sprintf("rtu://%s", device),
		Speed:    uint(bus.Baud),
		DataBits: dataBits,
		Parity:   parity,
		StopBits: stopBits,
		Timeout:  timeout,
	})
	if err != nil {
		return nil, err
	}
	if err := client.Open(); err != nil {
		return nil, err
	}
	return &RTUTransport{
		client: client,
		logger: logger.With(zap.String("component", "rtu")),
	}, nil
}

func (t *RTUTransport) Close() error {
	return t.client.Close()
}

func (t *RTUTransport) SendRequest(device uint8, function uint8, address uint16, count uint16) error {
	t.mu.Lock()
	if t.inflight {
		t.mu.Unlock()
		return ErrDeviceBusy
	}
	t.inflight = true
	t.pending = nil
	t.mu.Unlock()

	regType := modbus.INPUT_REGISTER
	if function == 3 {
		regType = modbus.HOLDING_REGISTER
	}

	go func() {
		var res rtuResult
		if err := t.client.SetUnitId(device); err != nil {
			res.err = mapClientError(err)
		} else {
			regs, err := t.client.ReadRegisters(address, count, regType)
			if err != nil {
				res.err = mapClientError(err)
			} else {
				res.payload = PackRegisters(regs)
			}
		}
		t.mu.Lock()
		t.pending = &res
		t.inflight = false
		t.mu.Unlock()
	}()
	return nil
}

func (t *RTUTransport) ResponseReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending != nil
}

func (t *RTUTransport) ReadResponse(count uint16) ([]byte, error) {
	t.mu.Lock()
	res := t.pending
	t.pending = nil
	t.mu.Unlock()

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

// mapClientError folds the simonvetter error set onto the engine taxonomy.
func mapClientError(err error) error {
	switch {
	case errors.Is(err, modbus.ErrIllegalFunction):
		return ErrIllegalFunction
	case errors.Is(err, modbus.ErrIllegalDataAddress):
		return ErrIllegalDataAddress
	case errors.Is(err, modbus.ErrIllegalDataValue):
		return ErrIllegalDataValue
	case errors.Is(err, modbus.ErrServerDeviceFailure):
		return ErrDeviceFailure
	case errors.Is(err, modbus.ErrAcknowledge):
		return ErrAcknowledge
	case errors.Is(err, modbus.ErrServerDeviceBusy):
		return ErrDeviceBusy
	case errors.Is(err, modbus.ErrRequestTimedOut):
		return ErrTimeout
	case errors.Is(err, modbus.ErrBadCRC):
		return ErrBadCRC
	case errors.Is(err, modbus.ErrShortFrame):
		return ErrShortResponse
	case errors.Is(err, modbus.ErrProtocolError):
		return ErrShortResponse
	default:
		return err
	}
}

// parseSerialConfig splits a framing string like "8N1" into its parts.
func parseSerialConfig(cfg string) (dataBits uint, parity uint, stopBits uint, err error) {
	if len(cfg) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid serial config %q", cfg)
	}
	switch cfg[0] {
	case '7':
		dataBits = 7
	case '8':
		dataBits = 8
	default:
		return 0, 0, 0, fmt.Errorf("invalid data bits in %q", cfg)
	}
	switch strings.ToUpper(cfg[1:2]) {
	case "N":
		parity = modbus.PARITY_NONE
	case "E":
		parity = modbus.PARITY_EVEN
	case "O":
		parity = modbus.PARITY_ODD
	default:
		return 0, 0, 0, fmt.Errorf("invalid parity in %q", cfg)
	}
	switch cfg[2] {
	case '1':
		stopBits = 1
	case '2':
		stopBits = 2
	default:
		return 0, 0, 0, fmt.Errorf("invalid stop bits in %q", cfg)
	}
	return dataBits, parity, stopBits, nil
}
