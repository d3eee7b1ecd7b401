package meterbus

import (
	"errors"
	"testing"

	"github.com/simonvetter/modbus"
	"github.com/stretchr/testify/assert"
)

func TestMapClientError(t *testing.T) {

	assert := assert.New(t)

	assert.ErrorIs(mapClientError(modbus.ErrIllegalFunction), ErrIllegalFunction)
	assert.ErrorIs(mapClientError(modbus.ErrIllegalDataAddress), ErrIllegalDataAddress)
	assert.ErrorIs(mapClientError(modbus.ErrServerDeviceBusy), ErrDeviceBusy)
	assert.ErrorIs(mapClientError(modbus.ErrRequestTimedOut), ErrTimeout)
	assert.ErrorIs(mapClientError(modbus.ErrBadCRC), ErrBadCRC)
	assert.ErrorIs(mapClientError(modbus.ErrShortFrame), ErrShortResponse)

	// unknown errors pass through untouched
	plain := errors.New("serial port gone")
	assert.Equal(plain, mapClientError(plain))
}

func TestParseSerialConfig(t *testing.T) {

	assert := assert.New(t)

	db, parity, sb, err := parseSerialConfig("8N1")
	assert.NoError(err)
	assert.Equal(uint(8), db)
	assert.Equal(uint(modbus.PARITY_NONE), parity)
	assert.Equal(uint(1), sb)

	db, parity, sb, err = parseSerialConfig("7E2")
	assert.NoError(err)
	assert.Equal(uint(7), db)
	assert.Equal(uint(modbus.PARITY_EVEN), parity)
	assert.Equal(uint(2), sb)

	_, _, _, err = parseSerialConfig("8X1")
	assert.Error(err)

	_, _, _, err = parseSerialConfig("9600")
	assert.Error(err)
}
