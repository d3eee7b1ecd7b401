package meterbus

// UserReading is the pull-based presentation view of one user register.
type UserReading struct {
	JSONName string
	GUIName  string
	GUIUnit  string
	Decimals uint8
	// Values holds one slot per configured phase; slots without data are
	// NaN.
	Values []float64
	// PerPhase is true when phases 1 and 2 both hold real values and the
	// reading should be rendered per phase instead of as a single value.
	PerPhase bool
}

// UserReadings returns the presentation rows for every user register that
// has a configured address and at least one decoded value. Symbolic
// resolution selectors are resolved through the host provider.
func (s *Schema) UserReadings(provider ResolutionProvider) []UserReading {
	var readings []UserReading
	for _, u := range s.users {
		if u.ConfiguredPhases() == 0 {
			continue
		}
		hasData := false
		values := make([]float64, s.phases)
		for p := 0; p < s.phases; p++ {
			values[p] = u.Value(p)
			if u.HasValue(p) {
				hasData = true
			}
		}
		if !hasData {
			continue
		}
		readings = append(readings, UserReading{
			JSONName: u.JSONName(),
			GUIName:  u.GUIName(),
			GUIUnit:  u.GUIUnit(),
			Decimals: u.Resolution().Resolve(provider),
			Values:   values,
			PerPhase: u.HasValue(1) && u.HasValue(2),
		})
	}
	return readings
}
