package meterbus

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

const (
	defaultBaud         = 9600
	defaultSerialConfig = "8N1"
	defaultFunction     = 4
	defaultDevice       = 1
)

// rawAddressList accepts either a bare number or a list of up to MaxPhases
// numbers. Extra list elements are ignored.
type rawAddressList []uint16

func (l *rawAddressList) UnmarshalJSON(data []byte) error {
	var scalar uint16
	if err := json.Unmarshal(data, &scalar); err == nil {
		*l = rawAddressList{scalar}
		return nil
	}
	var list []uint16
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	if len(list) > MaxPhases {
		list = list[:MaxPhases]
	}
	*l = list
	return nil
}

// rawQuantity accepts the three forms a built-in quantity key may take:
// a bare register address, a list of per-phase addresses, or an object
// with R/T/F/M fields.
type rawQuantity struct {
	R rawAddressList `json:"R"`
	T *int           `json:"T"`
	F *int           `json:"F"`
	M *int           `json:"M"`
}

func (q *rawQuantity) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		type alias rawQuantity
		var a alias
		if err := json.Unmarshal(trimmed, &a); err != nil {
			return err
		}
		*q = rawQuantity(a)
		return nil
	}
	return json.Unmarshal(trimmed, &q.R)
}

type rawUser struct {
	R rawAddressList `json:"R"`
	T *int           `json:"T"`
	F *int           `json:"F"`
	M *int           `json:"M"`
	J string         `json:"J"`
	G string         `json:"G"`
	U string         `json:"U"`
	D *int           `json:"D"`
}

// rawUserList accepts a single user object or a list of them.
type rawUserList []rawUser

func (l *rawUserList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []rawUser
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}
		*l = list
		return nil
	}
	var one rawUser
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return err
	}
	*l = rawUserList{one}
	return nil
}

type rawRegisterMap struct {
	Name          string         `json:"Name"`
	Baud          *int           `json:"Baud"`
	Config        string         `json:"Config"`
	Address       rawAddressList `json:"Address"`
	Function      *int           `json:"Function"`
	Voltage       *rawQuantity   `json:"Voltage"`
	Current       *rawQuantity   `json:"Current"`
	Power         *rawQuantity   `json:"Power"`
	ApparentPower *rawQuantity   `json:"ApparentPower"`
	ReactivePower *rawQuantity   `json:"ReactivePower"`
	Factor        *rawQuantity   `json:"Factor"`
	Frequency     *rawQuantity   `json:"Frequency"`
	Total         *rawQuantity   `json:"Total"`
	ExportActive  *rawQuantity   `json:"ExportActive"`
	User          rawUserList    `json:"User"`
}

func (m *rawRegisterMap) builtin(q Quantity) *rawQuantity {
	switch q {
	case QuantityVoltage:
		return m.Voltage
	case QuantityCurrent:
		return m.Current
	case QuantityActivePower:
		return m.Power
	case QuantityApparentPower:
		return m.ApparentPower
	case QuantityReactivePower:
		return m.ReactivePower
	case QuantityPowerFactor:
		return m.Factor
	case QuantityFrequency:
		return m.Frequency
	case QuantityEnergyTotal:
		return m.Total
	case QuantityEnergyExport:
		return m.ExportActive
	default:
		return nil
	}
}

// BuildSchema parses a declarative register map into a validated Schema.
// It either returns a complete schema or an error, never a partial one.
func BuildSchema(data []byte, logger *zap.Logger) (*Schema, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(bytes.TrimSpace(data)) < 2 {
		return nil, ErrNoConfig
	}

	var raw rawRegisterMap
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("register map: %w", err)
	}

	schema := &Schema{
		name:   raw.Name,
		phases: 1,
	}

	// bus parameters
	schema.bus.Baud = defaultBaud
	if raw.Baud != nil && *raw.Baud > 0 {
		schema.bus.Baud = *raw.Baud
	}
	schema.bus.SerialConfig = defaultSerialConfig
	if raw.Config != "" {
		schema.bus.SerialConfig = raw.Config
	}
	schema.bus.Function = defaultFunction
	if raw.Function != nil {
		if *raw.Function != 3 && *raw.Function != 4 {
			return nil, fmt.Errorf("%w: %d", ErrUnsupportedFunction, *raw.Function)
		}
		schema.bus.Function = uint8(*raw.Function)
	}

	if len(raw.Address) == 0 {
		schema.bus.Devices = []uint8{defaultDevice}
	} else {
		for _, a := range raw.Address {
			// Modbus slave address range
			if a < 1 || a > 247 {
				return nil, fmt.Errorf("%w: %d", ErrBadDeviceAddress, a)
			}
			schema.bus.Devices = append(schema.bus.Devices, uint8(a))
		}
	}

	// A multi-element Address list switches to one device per phase.
	// An entry carrying more than one address later overrides this and
	// forces a single device; the phase count itself only ever grows.
	schema.devices = len(schema.bus.Devices)
	if schema.devices > 1 {
		schema.phases = schema.devices
	}
	entryArraySeen := false

	for q := Quantity(0); q < BuiltinRegisterCount; q++ {
		entry, phases := buildEntry(raw.builtin(q))
		schema.builtin[q] = entry
		if phases > 1 {
			entryArraySeen = true
			if phases > schema.phases {
				schema.phases = phases
			}
		}
	}

	for _, ru := range raw.User {
		if ru.J == "" || ru.G == "" {
			schema.dropped++
			logger.Warn("user register dropped, J and G are mandatory",
				zap.String("json_name", ru.J), zap.String("gui_name", ru.G))
			continue
		}
		entry, phases := buildEntry(&rawQuantity{R: ru.R, T: ru.T, F: ru.F, M: ru.M})
		if phases > 1 {
			entryArraySeen = true
			if phases > schema.phases {
				schema.phases = phases
			}
		}
		resolution := SelectorDefault
		if ru.D != nil && *ru.D >= 0 && *ru.D <= 0xFF {
			resolution = ResolutionSelector(*ru.D)
		}
		schema.users = append(schema.users, newUserRegister(entry, ru.J, ru.G, ru.U, resolution))
	}

	if entryArraySeen {
		schema.devices = 1
	}

	schema.caps = Capabilities{
		VoltageAvailable:   schema.builtin[QuantityVoltage].ConfiguredPhases() > 0,
		CurrentAvailable:   schema.builtin[QuantityCurrent].ConfiguredPhases() > 0,
		CommonVoltage:      schema.builtin[QuantityVoltage].ConfiguredPhases() == 1,
		CommonFrequency:    schema.builtin[QuantityFrequency].ConfiguredPhases() == 1,
		TotalAuthoritative: schema.builtin[QuantityEnergyTotal].ConfiguredPhases() > 0,
	}

	if schema.activePairs() == 0 {
		return nil, ErrNoRegisters
	}

	logger.Debug("register map parsed",
		zap.String("name", schema.name),
		zap.Int("phases", schema.phases),
		zap.Int("devices", schema.devices),
		zap.Int("users", len(schema.users)),
		zap.Int("dropped_users", schema.dropped))

	return schema, nil
}

// buildEntry turns one raw quantity into a register entry and reports how
// many phase addresses it carried.
func buildEntry(q *rawQuantity) (RegisterEntry, int) {
	entry := newUnusedEntry()
	if q == nil {
		return entry, 0
	}
	for i, a := range q.R {
		if i >= MaxPhases {
			break
		}
		entry.addresses[i] = a
	}
	if q.T != nil {
		entry.datatype = DataTypeFromWire(*q.T)
	}
	switch {
	case q.F != nil:
		entry.factor = clampFactorInt(*q.F)
	case q.M != nil && *q.M > 0:
		entry.factor = FactorFromDivisor(*q.M)
	}
	return entry, len(q.R)
}
