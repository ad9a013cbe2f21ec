package sensor

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Regime is a named baseline profile for the simulated probe.
type Regime string

const (
	RegimeDefault Regime = "default"
	RegimeDry     Regime = "dry"
	RegimeOptimal Regime = "optimal"
	RegimeWet     Regime = "wet"
)

// Baseline raw counts for each regime.
const (
	BaselineDefault uint16 = 2400
	BaselineDry     uint16 = 2800
	BaselineOptimal uint16 = 2000
	BaselineWet     uint16 = 1400
)

// DefaultNoiseBand is the symmetric noise bound, in raw counts.
const DefaultNoiseBand uint16 = 100

// Baseline returns the raw count the regime centres on.
// Unknown regimes fall back to the default baseline.
func (r Regime) Baseline() uint16 {
	switch r {
	case RegimeDry:
		return BaselineDry
	case RegimeOptimal:
		return BaselineOptimal
	case RegimeWet:
		return BaselineWet
	}
	return BaselineDefault
}

// ParseRegime converts a config string to a Regime.
func ParseRegime(s string) (Regime, error) {
	switch r := Regime(strings.ToLower(strings.TrimSpace(s))); r {
	case RegimeDefault, RegimeDry, RegimeOptimal, RegimeWet:
		return r, nil
	case "":
		return RegimeDefault, nil
	}
	return "", fmt.Errorf("unknown regime %q", s)
}

// SimConfig configures a Simulated source.
type SimConfig struct {
	Seed      int64
	NoiseBand uint16 // 0 means no noise
	Regime    Regime
	Now       func() time.Time // nil means time.Now
}

// Simulated is a probe model: a regime baseline plus bounded, seeded noise.
// Not safe for concurrent use; it is owned by a single control loop.
type Simulated struct {
	baseline   uint16
	band       int
	rng        *rand.Rand
	now        func() time.Time
	lastSample time.Time
}

// NewSimulated creates a simulated source. The same seed always yields the
// same sequence of readings.
func NewSimulated(cfg SimConfig) *Simulated {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Simulated{
		baseline:   cfg.Regime.Baseline(),
		band:       int(cfg.NoiseBand),
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		now:        now,
		lastSample: now(),
	}
}

// ReadAveraged returns the baseline plus the rounded mean of `samples` noise
// draws, each uniform in [-band, +band]. More samples narrow the spread.
// The result saturates to [0, MaxRaw]. It never fails.
func (s *Simulated) ReadAveraged(samples int) (uint16, error) {
	if samples <= 0 {
		samples = 1
	}

	sum := 0
	for i := 0; i < samples; i++ {
		sum += s.noise()
	}
	mean := roundDiv(sum, samples)

	s.lastSample = s.now()
	return saturate(int(s.baseline) + mean), nil
}

// SetRegime moves the baseline to the regime's constant.
func (s *Simulated) SetRegime(r Regime) {
	s.baseline = r.Baseline()
}

// Baseline returns the current baseline count.
func (s *Simulated) Baseline() uint16 {
	return s.baseline
}

// LastSample returns when the source was last read (or created).
func (s *Simulated) LastSample() time.Time {
	return s.lastSample
}

func (s *Simulated) noise() int {
	if s.band == 0 {
		return 0
	}
	return s.rng.Intn(2*s.band+1) - s.band
}

// roundDiv divides, rounding half away from zero.
func roundDiv(sum, n int) int {
	if sum >= 0 {
		return (sum + n/2) / n
	}
	return -((-sum + n/2) / n)
}

func saturate(v int) uint16 {
	if v < 0 {
		return 0
	}
	if v > MaxRaw {
		return MaxRaw
	}
	return uint16(v)
}
