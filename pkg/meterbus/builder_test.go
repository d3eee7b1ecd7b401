package meterbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSchemaDefaults(t *testing.T) {

	assert := assert.New(t)

	schema, err := BuildSchema([]byte(`{"Name":"SDM120","Voltage":0}`), nil)
	assert.NoError(err)

	assert.Equal("SDM120", schema.Name())
	assert.Equal(9600, schema.Bus().Baud)
	assert.Equal("8N1", schema.Bus().SerialConfig)
	assert.Equal(uint8(4), schema.Bus().Function)
	assert.Equal([]uint8{1}, schema.Bus().Devices)
	assert.Equal(1, schema.Phases())
	assert.Equal(1, schema.DeviceCount())

	voltage := schema.Builtin(QuantityVoltage)
	assert.Equal(uint16(0), voltage.Address(0))
	assert.Equal(TypeFloat32, voltage.DataType())
	assert.Equal(int8(0), voltage.Factor())
	assert.False(voltage.PhaseUsed(1))
	assert.False(voltage.PhaseUsed(2))

	// everything not configured stays unused
	assert.Equal(0, schema.Builtin(QuantityCurrent).ConfiguredPhases())
	assert.Equal(BuiltinRegisterCount, schema.RegisterCount())
}

func TestBuildSchemaObjectForm(t *testing.T) {

	assert := assert.New(t)

	schema, err := BuildSchema([]byte(`{
		"Baud": 2400,
		"Config": "8E1",
		"Function": 3,
		"Voltage": {"R": 30000, "T": 3, "F": -1},
		"Current": {"R": 30006, "T": 8, "M": 1000}
	}`), nil)
	assert.NoError(err)

	assert.Equal(2400, schema.Bus().Baud)
	assert.Equal("8E1", schema.Bus().SerialConfig)
	assert.Equal(uint8(3), schema.Bus().Function)

	voltage := schema.Builtin(QuantityVoltage)
	assert.Equal(uint16(30000), voltage.Address(0))
	assert.Equal(TypeUint16, voltage.DataType())
	assert.Equal(int8(-1), voltage.Factor())

	current := schema.Builtin(QuantityCurrent)
	assert.Equal(TypeUint32Swapped, current.DataType())
	assert.Equal(int8(-3), current.Factor())
}

func TestBuildSchemaReservedDatatypeDefaults(t *testing.T) {

	assert := assert.New(t)

	schema, err := BuildSchema([]byte(`{
		"Voltage": {"R": 0, "T": 5},
		"Current": {"R": 6, "T": 7},
		"Power":   {"R": 12, "T": 99}
	}`), nil)
	assert.NoError(err)

	assert.Equal(TypeFloat32, schema.Builtin(QuantityVoltage).DataType())
	assert.Equal(TypeFloat32, schema.Builtin(QuantityCurrent).DataType())
	assert.Equal(TypeFloat32, schema.Builtin(QuantityActivePower).DataType())
}

func TestBuildSchemaPhaseCountFromEntryList(t *testing.T) {

	assert := assert.New(t)

	schema, err := BuildSchema([]byte(`{"Voltage":[0,2,4],"Current":6}`), nil)
	assert.NoError(err)

	assert.Equal(3, schema.Phases())
	assert.Equal(1, schema.DeviceCount())
	assert.False(schema.MultiDevice())

	voltage := schema.Builtin(QuantityVoltage)
	assert.Equal(uint16(0), voltage.Address(0))
	assert.Equal(uint16(2), voltage.Address(1))
	assert.Equal(uint16(4), voltage.Address(2))
}

func TestBuildSchemaPhaseCountFromAddressList(t *testing.T) {

	assert := assert.New(t)

	schema, err := BuildSchema([]byte(`{"Address":[1,2,3],"Voltage":0}`), nil)
	assert.NoError(err)

	assert.Equal(3, schema.Phases())
	assert.Equal(3, schema.DeviceCount())
	assert.True(schema.MultiDevice())
	assert.Equal([]uint8{1, 2, 3}, schema.Bus().Devices)
}

func TestBuildSchemaEntryArrayBeatsAddressArray(t *testing.T) {

	assert := assert.New(t)

	// an entry with multiple addresses forces single device mode even
	// when several device addresses were configured
	schema, err := BuildSchema([]byte(`{"Address":[1,2],"Voltage":[0,2,4]}`), nil)
	assert.NoError(err)

	assert.Equal(3, schema.Phases())
	assert.Equal(1, schema.DeviceCount())
	assert.False(schema.MultiDevice())
}

func TestBuildSchemaUserRegisters(t *testing.T) {

	assert := assert.New(t)

	schema, err := BuildSchema([]byte(`{
		"Voltage": 0,
		"User": [
			{"R": 72, "J": "phase_angle", "G": "Phase Angle", "U": "Deg", "D": 2},
			{"R": 74, "J": "thd", "G": "THD", "D": 24},
			{"R": 76, "G": "No JSON Name"}
		]
	}`), nil)
	assert.NoError(err)

	assert.Equal(2, len(schema.Users()))
	assert.Equal(1, schema.DroppedUsers())
	assert.Equal(BuiltinRegisterCount+2, schema.RegisterCount())

	u := schema.User(0)
	assert.Equal("phase_angle", u.JSONName())
	assert.Equal("Phase Angle", u.GUIName())
	assert.Equal("Deg", u.GUIUnit())
	assert.Equal(ResolutionSelector(2), u.Resolution())
	assert.False(u.HasValue(0))

	// indices of surviving entries are unaffected by the dropped one
	assert.Equal("thd", schema.User(1).JSONName())
	assert.Equal(uint16(74), schema.User(1).Address(0))
	assert.Equal(SelectorForKind(ResolutionEnergy), schema.User(1).Resolution())
}

func TestBuildSchemaSingleUserObject(t *testing.T) {

	assert := assert.New(t)

	schema, err := BuildSchema([]byte(`{"User":{"R":100,"J":"temp","G":"Temperature","U":"C"}}`), nil)
	assert.NoError(err)
	assert.Equal(1, len(schema.Users()))
	assert.Equal(SelectorDefault, schema.User(0).Resolution())
}

func TestBuildSchemaCapabilities(t *testing.T) {

	assert := assert.New(t)

	schema, err := BuildSchema([]byte(`{"Voltage":0,"Current":[6,8,10],"Frequency":70,"Total":342}`), nil)
	assert.NoError(err)

	caps := schema.Capabilities()
	assert.True(caps.VoltageAvailable)
	assert.True(caps.CurrentAvailable)
	assert.True(caps.CommonVoltage)
	assert.True(caps.CommonFrequency)
	assert.True(caps.TotalAuthoritative)

	schema, err = BuildSchema([]byte(`{"Voltage":[0,2,4]}`), nil)
	assert.NoError(err)
	caps = schema.Capabilities()
	assert.True(caps.VoltageAvailable)
	assert.False(caps.CommonVoltage)
	assert.False(caps.CurrentAvailable)
	assert.False(caps.TotalAuthoritative)
}

func TestBuildSchemaFailures(t *testing.T) {

	assert := assert.New(t)

	_, err := BuildSchema(nil, nil)
	assert.ErrorIs(err, ErrNoConfig)

	_, err = BuildSchema([]byte(" "), nil)
	assert.ErrorIs(err, ErrNoConfig)

	_, err = BuildSchema([]byte(`{"Voltage":`), nil)
	assert.Error(err)

	_, err = BuildSchema([]byte(`{"Function":6,"Voltage":0}`), nil)
	assert.ErrorIs(err, ErrUnsupportedFunction)

	// a map without a single configured register cannot be polled
	_, err = BuildSchema([]byte(`{"Name":"empty"}`), nil)
	assert.ErrorIs(err, ErrNoRegisters)

	// slave addresses outside 1..247 would truncate to a wrong device
	_, err = BuildSchema([]byte(`{"Address":300,"Voltage":0}`), nil)
	assert.ErrorIs(err, ErrBadDeviceAddress)

	_, err = BuildSchema([]byte(`{"Address":[1,0],"Voltage":0}`), nil)
	assert.ErrorIs(err, ErrBadDeviceAddress)
}

func TestBuildSchemaLegacyDivisor(t *testing.T) {

	assert := assert.New(t)

	schema, err := BuildSchema([]byte(`{
		"Voltage": {"R": 0, "M": 10},
		"Current": {"R": 6, "M": 100},
		"Power":   {"R": 12, "M": 10000},
		"Total":   {"R": 342, "M": 1, "F": 1}
	}`), nil)
	assert.NoError(err)

	assert.Equal(int8(-1), schema.Builtin(QuantityVoltage).Factor())
	assert.Equal(int8(-2), schema.Builtin(QuantityCurrent).Factor())
	assert.Equal(int8(-4), schema.Builtin(QuantityActivePower).Factor())
	// F wins over M when both are present
	assert.Equal(int8(1), schema.Builtin(QuantityEnergyTotal).Factor())
}
