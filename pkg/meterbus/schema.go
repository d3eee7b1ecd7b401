package meterbus

import "math"

const (
	// MaxPhases is the number of phase slots a register entry can carry,
	// either three registers on one meter or one register on each of up
	// to three single-phase meters.
	MaxPhases = 3

	// AddressNotUsed marks an unconfigured phase slot. Entries default to
	// all slots unused and are skipped by the scan.
	AddressNotUsed uint16 = 0xFFFF
)

// Quantity is one of the built-in measurement kinds. The value doubles as
// the register index of the quantity inside the schema, so the order is
// part of the scan sequence and must not change.
type Quantity uint8

const (
	QuantityVoltage Quantity = iota
	QuantityCurrent
	QuantityActivePower
	QuantityApparentPower
	QuantityReactivePower
	QuantityPowerFactor
	QuantityFrequency
	QuantityEnergyTotal
	QuantityEnergyExport

	BuiltinRegisterCount = 9
)

func (q Quantity) String() string {
	switch q {
	case QuantityVoltage:
		return "voltage"
	case QuantityCurrent:
		return "current"
	case QuantityActivePower:
		return "power"
	case QuantityApparentPower:
		return "apparent_power"
	case QuantityReactivePower:
		return "reactive_power"
	case QuantityPowerFactor:
		return "power_factor"
	case QuantityFrequency:
		return "frequency"
	case QuantityEnergyTotal:
		return "energy_total"
	case QuantityEnergyExport:
		return "energy_export"
	default:
		return "unknown"
	}
}

// RegisterEntry describes how one logical quantity is read: up to three
// per-phase register addresses, the wire encoding and a power-of-ten
// scale factor.
type RegisterEntry struct {
	addresses [MaxPhases]uint16
	datatype  DataType
	factor    int8
}

func newUnusedEntry() RegisterEntry {
	return RegisterEntry{
		addresses: [MaxPhases]uint16{AddressNotUsed, AddressNotUsed, AddressNotUsed},
	}
}

func (e *RegisterEntry) Address(phase int) uint16 {
	if phase < 0 || phase >= MaxPhases {
		return AddressNotUsed
	}
	return e.addresses[phase]
}

func (e *RegisterEntry) PhaseUsed(phase int) bool {
	return e.Address(phase) != AddressNotUsed
}

// ConfiguredPhases returns the number of phase slots carrying a real
// address.
func (e *RegisterEntry) ConfiguredPhases() int {
	n := 0
	for _, a := range e.addresses {
		if a != AddressNotUsed {
			n++
		}
	}
	return n
}

func (e *RegisterEntry) DataType() DataType { return e.datatype }

func (e *RegisterEntry) Factor() int8 { return e.factor }

// UserRegister extends a RegisterEntry with presentation metadata and a
// per-phase cache of the last decoded value (NaN until the first read).
type UserRegister struct {
	RegisterEntry
	jsonName   string
	guiName    string
	guiUnit    string
	resolution ResolutionSelector
	values     [MaxPhases]float64
}

func newUserRegister(entry RegisterEntry, jsonName, guiName, guiUnit string, resolution ResolutionSelector) *UserRegister {
	u := &UserRegister{
		RegisterEntry: entry,
		jsonName:      jsonName,
		guiName:       guiName,
		guiUnit:       guiUnit,
		resolution:    resolution,
	}
	for i := range u.values {
		u.values[i] = math.NaN()
	}
	return u
}

func (u *UserRegister) JSONName() string { return u.jsonName }

func (u *UserRegister) GUIName() string { return u.guiName }

func (u *UserRegister) GUIUnit() string { return u.guiUnit }

func (u *UserRegister) Resolution() ResolutionSelector { return u.resolution }

func (u *UserRegister) Value(phase int) float64 {
	if phase < 0 || phase >= MaxPhases {
		return math.NaN()
	}
	return u.values[phase]
}

// HasValue reports whether the phase slot holds decoded data.
func (u *UserRegister) HasValue(phase int) bool {
	return !math.IsNaN(u.Value(phase))
}

func (u *UserRegister) SetValue(phase int, value float64) {
	if phase < 0 || phase >= MaxPhases {
		return
	}
	u.values[phase] = value
}

// BusConfig carries the serial and protocol parameters of the meter bus.
type BusConfig struct {
	Baud         int
	SerialConfig string
	Function     uint8
	// Devices holds 1 to 3 slave addresses. More than one address means
	// one single-phase meter per phase.
	Devices []uint8
}

// Capabilities are side effects of the register map reported to the host.
type Capabilities struct {
	VoltageAvailable   bool
	CurrentAvailable   bool
	CommonVoltage      bool
	CommonFrequency    bool
	TotalAuthoritative bool
}

// Schema is the validated, immutable result of parsing a register map.
// It is built once by BuildSchema and read-only afterwards, except for the
// user register value caches written by the poller.
type Schema struct {
	name    string
	bus     BusConfig
	phases  int
	devices int
	builtin [BuiltinRegisterCount]RegisterEntry
	users   []*UserRegister
	caps    Capabilities
	dropped int
}

func (s *Schema) Name() string { return s.name }

func (s *Schema) Bus() BusConfig { return s.bus }

func (s *Schema) Phases() int { return s.phases }

func (s *Schema) DeviceCount() int { return s.devices }

// MultiDevice reports "one device per phase" mode. In that mode every
// register entry carries its address in phase slot 0 and the phase cursor
// selects the device instead.
func (s *Schema) MultiDevice() bool { return s.devices > 1 }

// RegisterCount is the total number of scannable registers: the 9
// built-ins followed by the user registers.
func (s *Schema) RegisterCount() int { return BuiltinRegisterCount + len(s.users) }

// Entry returns the register entry at a scan index. Indices below
// BuiltinRegisterCount address the built-in quantities in Quantity order.
func (s *Schema) Entry(index int) *RegisterEntry {
	if index < BuiltinRegisterCount {
		return &s.builtin[index]
	}
	return &s.users[index-BuiltinRegisterCount].RegisterEntry
}

func (s *Schema) Builtin(q Quantity) *RegisterEntry { return &s.builtin[q] }

func (s *Schema) Users() []*UserRegister { return s.users }

func (s *Schema) User(index int) *UserRegister { return s.users[index] }

func (s *Schema) Capabilities() Capabilities { return s.caps }

// DroppedUsers is the number of user entries discarded during the build
// because a mandatory name field was missing.
func (s *Schema) DroppedUsers() int { return s.dropped }

// UserPerPhase reports whether a user register is scanned on more than one
// phase: every phase in multi-device mode, otherwise its configured
// address slots. Discovery and state publishing both key off this.
func (s *Schema) UserPerPhase(u *UserRegister) bool {
	if s.MultiDevice() {
		return s.phases > 1
	}
	return u.ConfiguredPhases() > 1
}

// sentinelPhase returns the phase slot whose address decides whether a
// (register, phase) pair is scanned: slot 0 in multi-device mode, the
// phase itself otherwise.
func (s *Schema) sentinelPhase(phase int) int {
	if s.MultiDevice() {
		return 0
	}
	return phase
}

// activePairs counts the (register, phase) pairs the scan will visit.
func (s *Schema) activePairs() int {
	n := 0
	for i := 0; i < s.RegisterCount(); i++ {
		for p := 0; p < s.phases; p++ {
			if s.Entry(i).PhaseUsed(s.sentinelPhase(p)) {
				n++
			}
		}
	}
	return n
}
