package measure

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avilanova/metermux2mqtt/internal/config"
	"github.com/avilanova/metermux2mqtt/pkg/meterbus"
)

// Store is the host-side measurement sink: the last decoded value of every
// built-in quantity per phase, the per-kind decimal settings and the
// busy latch honoured by the poller. The poller writes values from its
// tick; readers (HTTP, MQTT) take snapshots.
type Store struct {
	mu        sync.RWMutex
	values    [meterbus.BuiltinRegisterCount][meterbus.MaxPhases]float64
	cycles    uint64
	lastCycle time.Time

	suspended atomic.Bool

	resolutions [9]uint8
	defaultDec  uint8

	// onCycle, when set, runs after every completed sweep with a fresh
	// snapshot. Invoked from the poller tick, keep it short.
	onCycle func(Snapshot)
}

// Snapshot is an immutable copy of the store for presentation.
type Snapshot struct {
	Values    [meterbus.BuiltinRegisterCount][meterbus.MaxPhases]float64
	Cycles    uint64
	LastCycle time.Time
}

func NewStore(cfg config.ResolutionConfig) *Store {
	s := &Store{}
	for i := range s.values {
		for p := range s.values[i] {
			s.values[i][p] = math.NaN()
		}
	}
	s.resolutions = [9]uint8{
		meterbus.ResolutionVoltage:     cfg.Voltage,
		meterbus.ResolutionCurrent:     cfg.Current,
		meterbus.ResolutionPower:       cfg.Power,
		meterbus.ResolutionEnergy:      cfg.Energy,
		meterbus.ResolutionFrequency:   cfg.Frequency,
		meterbus.ResolutionTemperature: cfg.Temperature,
		meterbus.ResolutionHumidity:    cfg.Humidity,
		meterbus.ResolutionPressure:    cfg.Pressure,
		meterbus.ResolutionWeight:      cfg.Weight,
	}
	s.defaultDec = cfg.Default
	return s
}

// OnScanCycle registers the per-sweep callback.
func (s *Store) OnScanCycle(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCycle = fn
}

// UpdateMeasurement implements meterbus.MeasurementSink.
func (s *Store) UpdateMeasurement(q meterbus.Quantity, phase int, value float64) {
	if int(q) >= meterbus.BuiltinRegisterCount || phase < 0 || phase >= meterbus.MaxPhases {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[q][phase] = value
}

// ScanCycleDone implements meterbus.MeasurementSink.
func (s *Store) ScanCycleDone() {
	s.mu.Lock()
	s.cycles++
	s.lastCycle = time.Now()
	fn := s.onCycle
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}

// Busy implements meterbus.HostState.
func (s *Store) Busy() bool {
	return s.suspended.Load()
}

// Suspend stops the poller from issuing requests until Resume.
func (s *Store) Suspend() { s.suspended.Store(true) }

func (s *Store) Resume() { s.suspended.Store(false) }

// Decimals implements meterbus.ResolutionProvider.
func (s *Store) Decimals(kind meterbus.ResolutionKind) uint8 {
	if int(kind) >= len(s.resolutions) {
		return s.defaultDec
	}
	return s.resolutions[kind]
}

// DefaultDecimals implements meterbus.ResolutionProvider.
func (s *Store) DefaultDecimals() uint8 {
	return s.defaultDec
}

func (s *Store) Value(q meterbus.Quantity, phase int) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(q) >= meterbus.BuiltinRegisterCount || phase < 0 || phase >= meterbus.MaxPhases {
		return math.NaN()
	}
	return s.values[q][phase]
}

func (s *Store) Cycles() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cycles
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Values:    s.values,
		Cycles:    s.cycles,
		LastCycle: s.lastCycle,
	}
}

// HasValue reports whether the quantity holds data for the phase.
func (snap Snapshot) HasValue(q meterbus.Quantity, phase int) bool {
	return !math.IsNaN(snap.Values[q][phase])
}
