package meterbus

// DataType identifies the wire encoding of one register value.
// The numeric values are the codes used by the "T" key of a register map
// and must stay stable. Codes 5 and 7 are reserved and decode as float32.
type DataType uint8

const (
	TypeFloat32       DataType = 0
	TypeInt16         DataType = 1
	TypeInt32         DataType = 2
	TypeUint16        DataType = 3
	TypeUint32        DataType = 4
	typeReserved5     DataType = 5
	TypeInt32Swapped  DataType = 6
	typeReserved7     DataType = 7
	TypeUint32Swapped DataType = 8

	dataTypeUpperBound = 9
)

// DataTypeFromWire maps a register map type code to a DataType.
// Reserved and out-of-range codes fall back to float32.
func DataTypeFromWire(code int) DataType {
	if code < 0 || code >= dataTypeUpperBound {
		return TypeFloat32
	}
	t := DataType(code)
	switch t {
	case typeReserved5, typeReserved7:
		return TypeFloat32
	}
	return t
}

// RegisterCount returns the number of 16 bit registers the type occupies
// on the wire. The 16 bit types are the odd codes, everything else spans
// two registers.
func (t DataType) RegisterCount() uint16 {
	switch t {
	case TypeInt16, TypeUint16:
		return 1
	default:
		return 2
	}
}

// PayloadBytes returns the expected response payload size in bytes.
func (t DataType) PayloadBytes() int {
	return int(t.RegisterCount()) * 2
}

func (t DataType) String() string {
	switch t {
	case TypeFloat32:
		return "float32"
	case TypeInt16:
		return "int16"
	case TypeInt32:
		return "int32"
	case TypeUint16:
		return "uint16"
	case TypeUint32:
		return "uint32"
	case TypeInt32Swapped:
		return "int32sw"
	case TypeUint32Swapped:
		return "uint32sw"
	default:
		return "reserved"
	}
}
