package measure

import (
	"testing"

	"github.com/avilanova/metermux2mqtt/internal/config"
	"github.com/avilanova/metermux2mqtt/pkg/meterbus"

	"github.com/stretchr/testify/assert"
)

func testResolutionConfig() config.ResolutionConfig {
	return config.ResolutionConfig{
		Voltage: 1, Current: 3, Power: 1, Energy: 3, Frequency: 2,
		Temperature: 1, Humidity: 1, Pressure: 1, Weight: 3, Default: 2,
	}
}

func TestStoreStartsEmpty(t *testing.T) {

	assert := assert.New(t)

	store := NewStore(testResolutionConfig())

	snap := store.Snapshot()
	for q := meterbus.Quantity(0); q < meterbus.BuiltinRegisterCount; q++ {
		for p := 0; p < meterbus.MaxPhases; p++ {
			assert.False(snap.HasValue(q, p))
		}
	}
	assert.Equal(uint64(0), store.Cycles())
}

func TestStoreUpdateAndSnapshot(t *testing.T) {

	assert := assert.New(t)

	store := NewStore(testResolutionConfig())
	store.UpdateMeasurement(meterbus.QuantityVoltage, 0, 230.2)
	store.UpdateMeasurement(meterbus.QuantityCurrent, 2, 4.5)

	snap := store.Snapshot()
	assert.True(snap.HasValue(meterbus.QuantityVoltage, 0))
	assert.Equal(230.2, snap.Values[meterbus.QuantityVoltage][0])
	assert.True(snap.HasValue(meterbus.QuantityCurrent, 2))
	assert.False(snap.HasValue(meterbus.QuantityCurrent, 0))

	// out of range writes are ignored
	store.UpdateMeasurement(meterbus.QuantityVoltage, 7, 1.0)
}

func TestStoreCycleCallback(t *testing.T) {

	assert := assert.New(t)

	store := NewStore(testResolutionConfig())

	var got *Snapshot
	store.OnScanCycle(func(s Snapshot) { got = &s })

	store.UpdateMeasurement(meterbus.QuantityVoltage, 0, 230.2)
	store.ScanCycleDone()

	assert.NotNil(got)
	assert.Equal(uint64(1), got.Cycles)
	assert.Equal(uint64(1), store.Cycles())
}

func TestStoreBusyLatch(t *testing.T) {

	assert := assert.New(t)

	store := NewStore(testResolutionConfig())
	assert.False(store.Busy())
	store.Suspend()
	assert.True(store.Busy())
	store.Resume()
	assert.False(store.Busy())
}

func TestStoreResolutionProvider(t *testing.T) {

	assert := assert.New(t)

	store := NewStore(testResolutionConfig())
	assert.Equal(uint8(1), store.Decimals(meterbus.ResolutionVoltage))
	assert.Equal(uint8(3), store.Decimals(meterbus.ResolutionCurrent))
	assert.Equal(uint8(3), store.Decimals(meterbus.ResolutionWeight))
	assert.Equal(uint8(2), store.DefaultDecimals())
}
