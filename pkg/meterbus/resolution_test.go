package meterbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type testResolutions struct {
	decimals map[ResolutionKind]uint8
}

func (r *testResolutions) Decimals(kind ResolutionKind) uint8 {
	return r.decimals[kind]
}

func (r *testResolutions) DefaultDecimals() uint8 { return 2 }

func TestResolutionLiteralPassThrough(t *testing.T) {

	assert := assert.New(t)

	provider := &testResolutions{decimals: map[ResolutionKind]uint8{}}

	for d := 0; d <= 20; d++ {
		assert.Equal(uint8(d), ResolutionSelector(d).Resolve(provider))
	}
}

func TestResolutionSymbolicLookup(t *testing.T) {

	assert := assert.New(t)

	provider := &testResolutions{decimals: map[ResolutionKind]uint8{
		ResolutionVoltage:   1,
		ResolutionCurrent:   3,
		ResolutionEnergy:    3,
		ResolutionFrequency: 2,
		ResolutionWeight:    4,
	}}

	assert.Equal(uint8(1), SelectorForKind(ResolutionVoltage).Resolve(provider))
	assert.Equal(uint8(3), SelectorForKind(ResolutionCurrent).Resolve(provider))
	assert.Equal(uint8(3), SelectorForKind(ResolutionEnergy).Resolve(provider))
	assert.Equal(uint8(2), SelectorForKind(ResolutionFrequency).Resolve(provider))
	assert.Equal(uint8(4), SelectorForKind(ResolutionWeight).Resolve(provider))
}

func TestResolutionUnknownUsesDefault(t *testing.T) {

	assert := assert.New(t)

	provider := &testResolutions{decimals: map[ResolutionKind]uint8{}}

	assert.Equal(uint8(2), SelectorDefault.Resolve(provider))
	assert.Equal(uint8(2), ResolutionSelector(40).Resolve(provider))
}

func TestUserReadingsPresentation(t *testing.T) {

	assert := assert.New(t)

	schema, err := BuildSchema([]byte(`{
		"Voltage": 0,
		"User": [
			{"R": [72, 74, 76], "J": "angle", "G": "Angle", "U": "Deg", "D": 1},
			{"R": 80, "J": "thd", "G": "THD"}
		]
	}`), nil)
	assert.NoError(err)

	provider := &testResolutions{decimals: map[ResolutionKind]uint8{}}

	// no data yet: nothing to present
	assert.Empty(schema.UserReadings(provider))

	schema.User(0).SetValue(0, 120.5)
	readings := schema.UserReadings(provider)
	assert.Equal(1, len(readings))
	assert.Equal("angle", readings[0].JSONName)
	assert.Equal("Deg", readings[0].GUIUnit)
	assert.Equal(uint8(1), readings[0].Decimals)
	assert.Equal(3, len(readings[0].Values))
	assert.False(readings[0].PerPhase, "single value until phases 1 and 2 hold data")

	schema.User(0).SetValue(1, 121.0)
	schema.User(0).SetValue(2, 119.9)
	readings = schema.UserReadings(provider)
	assert.True(readings[0].PerPhase)

	schema.User(1).SetValue(0, 3.2)
	readings = schema.UserReadings(provider)
	assert.Equal(2, len(readings))
	assert.Equal(uint8(2), readings[1].Decimals, "absent D resolves to host default")
}
