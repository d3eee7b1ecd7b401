package events

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/avilanova/metermux2mqtt/internal/measure"
	"github.com/avilanova/metermux2mqtt/pkg/meterbus"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE = "bridge"

	STATE_CLASS_MEASUREMENT      = "measurement"
	STATE_CLASS_TOTAL_INCREASING = "total_increasing"

	DEVICE_CLASS_VOLTAGE      = "voltage"
	DEVICE_CLASS_CURRENT      = "current"
	DEVICE_CLASS_POWER        = "power"
	DEVICE_CLASS_POWER_FACTOR = "power_factor"
	DEVICE_CLASS_FREQUENCY    = "frequency"
	DEVICE_CLASS_ENERGY       = "energy"

	SENSOR_TYPE_SENSOR = "sensor"
	SENSOR_TYPE_BINARY = "binary_sensor"
)

type quantityMeta struct {
	unit        string
	stateClass  string
	deviceClass string
}

var quantityMetas = map[meterbus.Quantity]quantityMeta{
	meterbus.QuantityVoltage:       {"V", STATE_CLASS_MEASUREMENT, DEVICE_CLASS_VOLTAGE},
	meterbus.QuantityCurrent:       {"A", STATE_CLASS_MEASUREMENT, DEVICE_CLASS_CURRENT},
	meterbus.QuantityActivePower:   {"W", STATE_CLASS_MEASUREMENT, DEVICE_CLASS_POWER},
	meterbus.QuantityApparentPower: {"VA", STATE_CLASS_MEASUREMENT, DEVICE_CLASS_POWER},
	meterbus.QuantityReactivePower: {"var", STATE_CLASS_MEASUREMENT, DEVICE_CLASS_POWER},
	meterbus.QuantityPowerFactor:   {"", STATE_CLASS_MEASUREMENT, DEVICE_CLASS_POWER_FACTOR},
	meterbus.QuantityFrequency:     {"Hz", STATE_CLASS_MEASUREMENT, DEVICE_CLASS_FREQUENCY},
	meterbus.QuantityEnergyTotal:   {"kWh", STATE_CLASS_TOTAL_INCREASING, DEVICE_CLASS_ENERGY},
	meterbus.QuantityEnergyExport:  {"kWh", STATE_CLASS_TOTAL_INCREASING, DEVICE_CLASS_ENERGY},
}

func quantityDecimals(q meterbus.Quantity, provider meterbus.ResolutionProvider) uint8 {
	switch q {
	case meterbus.QuantityVoltage:
		return provider.Decimals(meterbus.ResolutionVoltage)
	case meterbus.QuantityCurrent:
		return provider.Decimals(meterbus.ResolutionCurrent)
	case meterbus.QuantityActivePower, meterbus.QuantityApparentPower, meterbus.QuantityReactivePower:
		return provider.Decimals(meterbus.ResolutionPower)
	case meterbus.QuantityFrequency:
		return provider.Decimals(meterbus.ResolutionFrequency)
	case meterbus.QuantityEnergyTotal, meterbus.QuantityEnergyExport:
		return provider.Decimals(meterbus.ResolutionEnergy)
	default:
		return provider.DefaultDecimals()
	}
}

// QuantitySensorId returns the state topic id of one built-in quantity on
// one phase, e.g. "voltage_l2".
func QuantitySensorId(q meterbus.Quantity, phase int) string {
	return fmt.Sprintf("%s_l%d", q, phase+1)
}

// UserSensorId returns the state topic id of a user register.
func UserSensorId(jsonName string, phase int, perPhase bool) string {
	if perPhase {
		return fmt.Sprintf("user_%s_l%d", jsonName, phase+1)
	}
	return fmt.Sprintf("user_%s", jsonName)
}

// BridgeDevice is the device every sensor of this bridge hangs off.
func BridgeDevice(baseTopic string, meterName string) Device {
	return Device{
		Id:           fmt.Sprintf("metermux_bridge_%s", md5HashShort(baseTopic)),
		Name:         "metermux",
		Manufacturer: "metermux",
		Model:        fmt.Sprintf("Modbus bridge (%s)", meterName),
		Version:      versioninfo.Short(),
	}
}

func BridgeStateSensor(baseTopic string, meterName string) GenericSensor {
	dev := BridgeDevice(baseTopic, meterName)
	return GenericSensor{
		Device:      dev,
		Id:          SENSOR_ID_BRIDGE_STATE,
		SensorType:  SENSOR_TYPE_BINARY,
		Name:        "Bridge state",
		UniqueId:    fmt.Sprintf("%s_%s", dev.Id, SENSOR_ID_BRIDGE_STATE),
		DeviceClass: "connectivity",
	}
}

// SchemaToSensors builds the sensor catalog announced over discovery: one
// sensor per configured (built-in quantity, phase) pair plus one per user
// register and phase slot.
func SchemaToSensors(schema *meterbus.Schema, baseTopic string) []GenericSensor {
	dev := BridgeDevice(baseTopic, schema.Name())

	var sensors []GenericSensor
	for q := meterbus.Quantity(0); q < meterbus.BuiltinRegisterCount; q++ {
		entry := schema.Builtin(q)
		meta := quantityMetas[q]
		for p := 0; p < schema.Phases(); p++ {
			if !entry.PhaseUsed(slotForPhase(schema, p)) {
				continue
			}
			id := QuantitySensorId(q, p)
			sensors = append(sensors, GenericSensor{
				Device:            dev,
				Id:                id,
				SensorType:        SENSOR_TYPE_SENSOR,
				Name:              fmt.Sprintf("%s L%d", q, p+1),
				UniqueId:          fmt.Sprintf("%s_%s", dev.Id, id),
				UnitOfMeasurement: meta.unit,
				StateClass:        meta.stateClass,
				DeviceClass:       meta.deviceClass,
			})
		}
	}

	for _, u := range schema.Users() {
		if u.ConfiguredPhases() == 0 {
			continue
		}
		perPhase := schema.UserPerPhase(u)
		phases := 1
		if perPhase {
			phases = schema.Phases()
		}
		for p := 0; p < phases; p++ {
			if perPhase && !u.PhaseUsed(slotForPhase(schema, p)) {
				continue
			}
			id := UserSensorId(u.JSONName(), p, perPhase)
			sensors = append(sensors, GenericSensor{
				Device:            dev,
				Id:                id,
				SensorType:        SENSOR_TYPE_SENSOR,
				Name:              u.GUIName(),
				UniqueId:          fmt.Sprintf("%s_%s", dev.Id, id),
				UnitOfMeasurement: u.GUIUnit(),
				StateClass:        STATE_CLASS_MEASUREMENT,
			})
		}
	}

	return sensors
}

// SnapshotToUpdateEvents turns a measurement snapshot into sensor update
// events for every configured pair holding data.
func SnapshotToUpdateEvents(schema *meterbus.Schema, snap measure.Snapshot, provider meterbus.ResolutionProvider) []any {
	var evs []any
	for q := meterbus.Quantity(0); q < meterbus.BuiltinRegisterCount; q++ {
		for p := 0; p < schema.Phases(); p++ {
			if !snap.HasValue(q, p) {
				continue
			}
			evs = append(evs, SensorUpdateEvent{
				GenericSensorUpdateEvent: GenericSensorUpdateEvent{
					Id: QuantitySensorId(q, p),
				},
				Value:    snap.Values[q][p],
				Decimals: quantityDecimals(q, provider),
			})
		}
	}
	for _, u := range schema.Users() {
		if u.ConfiguredPhases() == 0 {
			continue
		}
		decimals := u.Resolution().Resolve(provider)
		if schema.UserPerPhase(u) {
			for p := 0; p < schema.Phases(); p++ {
				if !u.HasValue(p) {
					continue
				}
				evs = append(evs, SensorUpdateEvent{
					GenericSensorUpdateEvent: GenericSensorUpdateEvent{
						Id: UserSensorId(u.JSONName(), p, true),
					},
					Value:    u.Value(p),
					Decimals: decimals,
				})
			}
			continue
		}
		if !u.HasValue(0) {
			continue
		}
		evs = append(evs, SensorUpdateEvent{
			GenericSensorUpdateEvent: GenericSensorUpdateEvent{
				Id: UserSensorId(u.JSONName(), 0, false),
			},
			Value:    u.Value(0),
			Decimals: decimals,
		})
	}
	return evs
}

func slotForPhase(schema *meterbus.Schema, phase int) int {
	if schema.MultiDevice() {
		return 0
	}
	return phase
}

func md5HashShort(content string) string {
	hash := md5.Sum([]byte(content))
	return hex.EncodeToString(hash[:])[:8]
}
