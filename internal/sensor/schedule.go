package sensor

// DefaultSchedule is the demonstration regime rotation.
var DefaultSchedule = []Regime{RegimeDry, RegimeOptimal, RegimeWet, RegimeOptimal}

// Schedule drives a Simulated source through a list of regimes, switching to
// the next one (cyclically) every `every` reads. It exists for demonstrations:
// the control loop only ever sees a Source.
type Schedule struct {
	sim     *Simulated
	regimes []Regime
	every   int
	reads   int
	next    int
}

// NewSchedule wraps sim. An empty regime list or every <= 0 leaves the
// simulated regime untouched.
func NewSchedule(sim *Simulated, regimes []Regime, every int) *Schedule {
	return &Schedule{
		sim:     sim,
		regimes: regimes,
		every:   every,
	}
}

// ReadAveraged switches regime when due, then reads the simulated source.
func (s *Schedule) ReadAveraged(samples int) (uint16, error) {
	if len(s.regimes) > 0 && s.every > 0 && s.reads%s.every == 0 {
		s.sim.SetRegime(s.regimes[s.next%len(s.regimes)])
		s.next++
	}
	s.reads++
	return s.sim.ReadAveraged(samples)
}

// Current returns the regime most recently applied, or "" before the first read.
func (s *Schedule) Current() Regime {
	if s.next == 0 || len(s.regimes) == 0 {
		return ""
	}
	return s.regimes[(s.next-1)%len(s.regimes)]
}
