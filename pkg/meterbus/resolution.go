package meterbus

// ResolutionKind names one of the host-owned per-quantity decimal settings
// that user registers may reference instead of a literal decimal count.
type ResolutionKind uint8

const (
	ResolutionVoltage ResolutionKind = iota
	ResolutionCurrent
	ResolutionPower
	ResolutionEnergy
	ResolutionFrequency
	ResolutionTemperature
	ResolutionHumidity
	ResolutionPressure
	ResolutionWeight

	resolutionKindCount
)

func (k ResolutionKind) String() string {
	switch k {
	case ResolutionVoltage:
		return "voltage"
	case ResolutionCurrent:
		return "current"
	case ResolutionPower:
		return "power"
	case ResolutionEnergy:
		return "energy"
	case ResolutionFrequency:
		return "frequency"
	case ResolutionTemperature:
		return "temperature"
	case ResolutionHumidity:
		return "humidity"
	case ResolutionPressure:
		return "pressure"
	case ResolutionWeight:
		return "weight"
	default:
		return "unknown"
	}
}

// ResolutionProvider is the host-side lookup for decimal settings.
type ResolutionProvider interface {
	Decimals(kind ResolutionKind) uint8
	DefaultDecimals() uint8
}

// ResolutionSelector is the "D" value of a user register: 0..20 is a
// literal decimal count, 21..29 reference a host resolution setting and
// SelectorDefault (used when "D" is absent) resolves to the host default.
type ResolutionSelector uint8

const (
	maxLiteralDecimals              = 20
	selectorKindBase                = maxLiteralDecimals + 1
	SelectorDefault ResolutionSelector = 0xFF
)

// SelectorForKind returns the symbolic selector referencing a host setting.
func SelectorForKind(kind ResolutionKind) ResolutionSelector {
	return ResolutionSelector(selectorKindBase + uint8(kind))
}

// Resolve maps the selector to an actual decimal count using the host
// provider for symbolic and unknown values.
func (s ResolutionSelector) Resolve(provider ResolutionProvider) uint8 {
	switch {
	case s <= maxLiteralDecimals:
		return uint8(s)
	case s >= selectorKindBase && s < selectorKindBase+ResolutionSelector(resolutionKindCount):
		return provider.Decimals(ResolutionKind(s - selectorKindBase))
	default:
		return provider.DefaultDecimals()
	}
}
