package meterbus

import (
	"encoding/binary"
	"math"
)

// Decode converts a raw response payload into a float64 according to the
// register data type. Registers are big-endian on the wire. For the swapped
// 32 bit variants the first transmitted register carries the low word.
func Decode(payload []byte, t DataType) (float64, error) {
	if len(payload) < t.PayloadBytes() {
		return 0, ErrShortResponse
	}
	switch t {
	case TypeInt16:
		return float64(int16(binary.BigEndian.Uint16(payload[:2]))), nil
	case TypeUint16:
		return float64(binary.BigEndian.Uint16(payload[:2])), nil
	case TypeInt32:
		return float64(int32(binary.BigEndian.Uint32(payload[:4]))), nil
	case TypeUint32:
		return float64(binary.BigEndian.Uint32(payload[:4])), nil
	case TypeInt32Swapped:
		return float64(int32(swappedWords(payload))), nil
	case TypeUint32Swapped:
		return float64(swappedWords(payload)), nil
	default:
		// float32 and any reserved code that slipped through
		bits := binary.BigEndian.Uint32(payload[:4])
		return float64(math.Float32frombits(bits)), nil
	}
}

// Encode produces the wire payload for a value. It is the inverse of Decode
// and is used by the scripted test transport.
func Encode(value float64, t DataType) []byte {
	buf := make([]byte, t.PayloadBytes())
	switch t {
	case TypeInt16:
		binary.BigEndian.PutUint16(buf, uint16(int16(value)))
	case TypeUint16:
		binary.BigEndian.PutUint16(buf, uint16(value))
	case TypeInt32:
		binary.BigEndian.PutUint32(buf, uint32(int32(value)))
	case TypeUint32:
		binary.BigEndian.PutUint32(buf, uint32(value))
	case TypeInt32Swapped:
		putSwappedWords(buf, uint32(int32(value)))
	case TypeUint32Swapped:
		putSwappedWords(buf, uint32(value))
	default:
		binary.BigEndian.PutUint32(buf, math.Float32bits(float32(value)))
	}
	return buf
}

// PackRegisters converts register values as returned by a Modbus client
// into the big-endian byte payload the codec expects.
func PackRegisters(regs []uint16) []byte {
	buf := make([]byte, len(regs)*2)
	for i, r := range regs {
		binary.BigEndian.PutUint16(buf[i*2:], r)
	}
	return buf
}

func swappedWords(payload []byte) uint32 {
	low := uint32(binary.BigEndian.Uint16(payload[0:2]))
	high := uint32(binary.BigEndian.Uint16(payload[2:4]))
	return high<<16 | low
}

func putSwappedWords(buf []byte, v uint32) {
	binary.BigEndian.PutUint16(buf[0:2], uint16(v))
	binary.BigEndian.PutUint16(buf[2:4], uint16(v>>16))
}
