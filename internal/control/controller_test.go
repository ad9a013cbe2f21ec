package control

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/soil-sensor/internal/actuator"
	"github.com/sweeney/soil-sensor/internal/logic"
	"github.com/sweeney/soil-sensor/internal/sensor"
)

// sleepRecorder collects requested sleeps instead of blocking.
type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) sleep(d time.Duration) {
	s.calls = append(s.calls, d)
}

// testConfig mirrors the shipped defaults with the given cycle count.
func testConfig(cycles int) Config {
	return Config{
		Calibration:   logic.Calibration{DryReference: 3000, WetReference: 1200},
		Thresholds:    logic.Thresholds{Low: 25, High: 75},
		Interval:      2 * time.Second,
		Cycles:        cycles,
		Samples:       5,
		StartupBlinks: 3,
		BlinkOn:       200 * time.Millisecond,
		BlinkOff:      200 * time.Millisecond,
	}
}

func newTestController(t *testing.T, cfg Config, src sensor.Source) (*Controller, *actuator.FakeSink, *FakeRecorder, *sleepRecorder) {
	t.Helper()
	sink := actuator.NewFakeSink()
	rec := NewFakeRecorder()
	sl := &sleepRecorder{}
	c, err := New(cfg, src, sink, rec, sl.sleep)
	if err != nil {
		t.Fatalf("New: unexpected error: %v", err)
	}
	return c, sink, rec, sl
}

func TestNewRejectsInvalidConfiguration(t *testing.T) {
	src := sensor.NewFakeSource(2000)
	sink := actuator.NewFakeSink()
	rec := NewFakeRecorder()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"dry equals wet", func(c *Config) { c.Calibration = logic.Calibration{DryReference: 2000, WetReference: 2000} }},
		{"dry below wet", func(c *Config) { c.Calibration = logic.Calibration{DryReference: 1200, WetReference: 3000} }},
		{"low equals high", func(c *Config) { c.Thresholds = logic.Thresholds{Low: 50, High: 50} }},
		{"low above high", func(c *Config) { c.Thresholds = logic.Thresholds{Low: 80, High: 20} }},
		{"negative cycles", func(c *Config) { c.Cycles = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(1)
			tt.mutate(&cfg)
			c, err := New(cfg, src, sink, rec, nil)
			if !errors.Is(err, logic.ErrInvalidConfiguration) {
				t.Errorf("expected ErrInvalidConfiguration, got %v", err)
			}
			if c != nil {
				t.Error("controller must not be created")
			}
		})
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(testConfig(1), nil, actuator.NewFakeSink(), NewFakeRecorder(), nil)
	if !errors.Is(err, logic.ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestRunFiniteEmitsExactlyNCommands(t *testing.T) {
	for _, n := range []int{1, 3, 20} {
		src := sensor.NewFakeSource(2100)
		c, sink, rec, sl := newTestController(t, testConfig(n), src)

		if c.State() != StateStarting {
			t.Errorf("initial state: got %s, want %s", c.State(), StateStarting)
		}

		sum := c.Run()

		if len(sink.Commands) != n {
			t.Errorf("n=%d: expected %d commands, got %d", n, n, len(sink.Commands))
		}
		if len(rec.Records) != n {
			t.Errorf("n=%d: expected %d records, got %d", n, n, len(rec.Records))
		}
		if src.Calls() != n {
			t.Errorf("n=%d: expected %d reads, got %d", n, n, src.Calls())
		}
		if c.State() != StateStopped {
			t.Errorf("n=%d: final state: got %s, want %s", n, c.State(), StateStopped)
		}
		if sum.Cycles != n || sum.Commands != n || sum.Errors != 0 {
			t.Errorf("n=%d: unexpected summary %+v", n, sum)
		}

		// 3 blinks * (on + off) + one interval between each pair of cycles
		var intervals int
		for _, d := range sl.calls {
			if d == 2*time.Second {
				intervals++
			}
		}
		if intervals != n-1 {
			t.Errorf("n=%d: expected %d interval sleeps, got %d", n, n-1, intervals)
		}
		if len(sl.calls) != 6+n-1 {
			t.Errorf("n=%d: expected %d sleeps, got %d", n, 6+n-1, len(sl.calls))
		}
	}
}

func TestRunDecisionsPerScenario(t *testing.T) {
	src := sensor.NewFakeSource(3000, 1200, 2100)
	c, sink, rec, _ := newTestController(t, testConfig(3), src)

	sum := c.Run()

	want := []struct {
		percent uint8
		cond    logic.Condition
		cmd     logic.Command
	}{
		{0, logic.ConditionDry, logic.Command{IndicatorOn: true, Pump: logic.PumpActivate}},
		{100, logic.ConditionWet, logic.Command{IndicatorOn: false, Pump: logic.PumpDeactivate}},
		{50, logic.ConditionOptimal, logic.Command{IndicatorOn: false, Pump: logic.PumpNoChange}},
	}
	for i, w := range want {
		if sink.Commands[i] != w.cmd {
			t.Errorf("cycle %d: command %+v, want %+v", i+1, sink.Commands[i], w.cmd)
		}
		r := rec.Records[i]
		if r.Cycle != i+1 || r.Percent != w.percent || r.Condition != w.cond {
			t.Errorf("cycle %d: record %+v", i+1, r)
		}
		if r.IndicatorOn != w.cmd.IndicatorOn || r.Pump != w.cmd.Pump {
			t.Errorf("cycle %d: record command fields %+v", i+1, r)
		}
	}

	for _, cond := range logic.Conditions {
		if sum.ByCondition[cond] != 1 {
			t.Errorf("ByCondition[%s] = %d, want 1", cond, sum.ByCondition[cond])
		}
	}
	if sink.PumpOn {
		t.Error("pump should be off after DEACTIVATE then NO_CHANGE")
	}
}

func TestRunReadFailureIsNonFatal(t *testing.T) {
	src := sensor.NewFakeSource(3000, 0, 1200, 2100)
	src.Errors = []error{nil, errors.New("adc timeout"), nil, nil}
	c, sink, rec, _ := newTestController(t, testConfig(4), src)

	sum := c.Run()

	if src.Calls() != 4 {
		t.Errorf("expected one read per cycle and no retries, got %d reads", src.Calls())
	}
	if len(sink.Commands) != 3 {
		t.Errorf("expected 3 commands, got %d", len(sink.Commands))
	}
	if len(rec.Errors) != 1 {
		t.Fatalf("expected 1 error record, got %d", len(rec.Errors))
	}
	if rec.Errors[0].Cycle != 2 {
		t.Errorf("error recorded for cycle %d, want 2", rec.Errors[0].Cycle)
	}
	if !errors.Is(rec.Errors[0].Err, sensor.ErrRead) {
		t.Errorf("expected sensor.ErrRead, got %v", rec.Errors[0].Err)
	}
	if sum.Errors != 1 || sum.Commands != 3 || sum.Cycles != 4 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if c.State() != StateStopped {
		t.Errorf("final state: got %s", c.State())
	}
}

func TestRunAllReadsFail(t *testing.T) {
	src := sensor.NewFakeSource(2000)
	src.ReadError = errors.New("unplugged")
	c, sink, rec, _ := newTestController(t, testConfig(5), src)

	sum := c.Run()

	if len(sink.Commands) != 0 {
		t.Errorf("expected no commands, got %d", len(sink.Commands))
	}
	if len(rec.Errors) != 5 || sum.Errors != 5 {
		t.Errorf("expected 5 errors, got %d records / %d summary", len(rec.Errors), sum.Errors)
	}
}

func TestRunSinkErrorIsNonFatal(t *testing.T) {
	src := sensor.NewFakeSource(3000)
	c, sink, rec, _ := newTestController(t, testConfig(3), src)
	sink.ApplyError = errors.New("relay unreachable")

	sum := c.Run()

	if len(sink.Commands) != 3 {
		t.Errorf("expected 3 commands, got %d", len(sink.Commands))
	}
	if len(rec.Records) != 3 {
		t.Errorf("cycles should still be recorded, got %d", len(rec.Records))
	}
	if len(rec.Errors) != 3 {
		t.Errorf("expected 3 actuation errors, got %d", len(rec.Errors))
	}
	if sum.Commands != 3 {
		t.Errorf("unexpected summary %+v", sum)
	}
}

func TestRunPassesSampleCount(t *testing.T) {
	src := sensor.NewFakeSource(2000)
	cfg := testConfig(2)
	cfg.Samples = 7
	c, _, _, _ := newTestController(t, cfg, src)

	c.Run()

	for i, s := range src.Samples {
		if s != 7 {
			t.Errorf("read %d: samples = %d, want 7", i, s)
		}
	}
}

func TestStartupBlinks(t *testing.T) {
	src := sensor.NewFakeSource(2000)
	cfg := testConfig(1)
	cfg.StartupBlinks = 2
	cfg.BlinkOn = 100 * time.Millisecond
	cfg.BlinkOff = 300 * time.Millisecond
	c, sink, _, sl := newTestController(t, cfg, src)

	c.Run()

	wantLED := []bool{true, false, true, false}
	if len(sink.Indicator) != len(wantLED) {
		t.Fatalf("expected %d indicator writes, got %v", len(wantLED), sink.Indicator)
	}
	for i := range wantLED {
		if sink.Indicator[i] != wantLED[i] {
			t.Errorf("write %d: got %v, want %v", i, sink.Indicator[i], wantLED[i])
		}
	}

	wantSleep := []time.Duration{100 * time.Millisecond, 300 * time.Millisecond, 100 * time.Millisecond, 300 * time.Millisecond}
	if len(sl.calls) != len(wantSleep) {
		t.Fatalf("expected sleeps %v, got %v", wantSleep, sl.calls)
	}
	for i := range wantSleep {
		if sl.calls[i] != wantSleep[i] {
			t.Errorf("sleep %d: got %v, want %v", i, sl.calls[i], wantSleep[i])
		}
	}
}

func TestStartupBlinkErrorsAreNonFatal(t *testing.T) {
	src := sensor.NewFakeSource(2000)
	c, sink, rec, _ := newTestController(t, testConfig(1), src)
	sink.IndicatorError = errors.New("no led")

	c.Run()

	if len(rec.Errors) != 6 {
		t.Errorf("expected 6 blink errors, got %d", len(rec.Errors))
	}
	if len(sink.Commands) != 1 {
		t.Errorf("loop should still run, got %d commands", len(sink.Commands))
	}
}

func TestNoStartupBlinks(t *testing.T) {
	src := sensor.NewFakeSource(2000)
	cfg := testConfig(1)
	cfg.StartupBlinks = 0
	c, sink, rec, sl := newTestController(t, cfg, src)

	c.Run()

	if len(sink.Indicator) != 0 || len(sl.calls) != 0 {
		t.Errorf("expected no blinks, got writes=%v sleeps=%v", sink.Indicator, sl.calls)
	}
	for _, n := range rec.Notices {
		if strings.Contains(n, "startup sequence") {
			t.Errorf("unexpected notice %q", n)
		}
	}
}

func TestCalibrationModeEmitsGuidance(t *testing.T) {
	src := sensor.NewFakeSource(2500, 1800)
	cfg := testConfig(2)
	cfg.CalibrationMode = true
	c, sink, rec, _ := newTestController(t, cfg, src)

	c.Run()

	var banner, perCycle int
	for _, n := range rec.Notices {
		if n == "=== CALIBRATION MODE ACTIVE ===" {
			banner++
		}
		if strings.Contains(n, "calibration: raw=") {
			perCycle++
		}
	}
	if banner != 1 {
		t.Errorf("expected one calibration banner, got %d", banner)
	}
	if perCycle != 2 {
		t.Errorf("expected 2 per-cycle calibration lines, got %d", perCycle)
	}
	if !strings.Contains(strings.Join(rec.Notices, "\n"), "raw=2500 (dry reference 3000, wet reference 1200)") {
		t.Errorf("missing calibration detail in %v", rec.Notices)
	}

	// advisory only: decisions are unchanged
	if len(sink.Commands) != 2 || sink.Commands[0].Pump != logic.PumpNoChange {
		t.Errorf("calibration mode altered decisions: %+v", sink.Commands)
	}
}

func TestCalibrationModeOffNoGuidance(t *testing.T) {
	src := sensor.NewFakeSource(2500)
	c, _, rec, _ := newTestController(t, testConfig(3), src)

	c.Run()

	for _, n := range rec.Notices {
		if strings.Contains(n, "calibration") || strings.Contains(n, "CALIBRATION") {
			t.Errorf("unexpected calibration notice %q", n)
		}
	}
}

func TestStepStateTransitions(t *testing.T) {
	src := sensor.NewFakeSource(2000)
	sink := actuator.NewFakeSink()
	rec := NewFakeRecorder()

	var c *Controller
	var seen []State
	sleep := func(time.Duration) { seen = append(seen, c.State()) }

	cfg := testConfig(3)
	cfg.StartupBlinks = 1
	c, err := New(cfg, src, sink, rec, sleep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c.Run()

	want := []State{StateStarting, StateStarting, StateSleeping, StateSleeping}
	if len(seen) != len(want) {
		t.Fatalf("states at sleep: got %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("sleep %d: state %s, want %s", i, seen[i], want[i])
		}
	}
}

// stopAfter is a Source that panics past its budget, proving a finite run
// never reads more than configured.
type stopAfter struct {
	left int
}

func (s *stopAfter) ReadAveraged(int) (uint16, error) {
	if s.left == 0 {
		panic("read past configured cycle count")
	}
	s.left--
	return 2000, nil
}

func TestRunNeverOverreads(t *testing.T) {
	src := &stopAfter{left: 10}
	c, _, _, _ := newTestController(t, testConfig(10), src)
	c.Run()
	if src.left != 0 {
		t.Errorf("expected all 10 reads, %d left", src.left)
	}
}

func TestSimulatedWetRegimeClassifiesWet(t *testing.T) {
	sim := sensor.NewSimulated(sensor.SimConfig{Seed: 1, NoiseBand: sensor.DefaultNoiseBand, Regime: sensor.RegimeWet})
	c, sink, _, _ := newTestController(t, testConfig(100), sim)

	sum := c.Run()

	if sum.ByCondition[logic.ConditionWet] <= 50 {
		t.Errorf("expected a majority of WET cycles, got %v", sum.ByCondition)
	}
	// with a ±100 band the wet baseline never leaves the WET band
	if sum.ByCondition[logic.ConditionWet] != 100 {
		t.Errorf("expected every cycle WET, got %v", sum.ByCondition)
	}
	for i, cmd := range sink.Commands {
		if cmd.Pump != logic.PumpDeactivate || cmd.IndicatorOn {
			t.Fatalf("cycle %d: unexpected command %+v", i+1, cmd)
		}
	}
}

func TestSimulatedRegimesStayInBand(t *testing.T) {
	want := map[sensor.Regime]logic.Condition{
		sensor.RegimeDry:     logic.ConditionDry,
		sensor.RegimeOptimal: logic.ConditionOptimal,
		sensor.RegimeWet:     logic.ConditionWet,
		sensor.RegimeDefault: logic.ConditionOptimal,
	}
	for regime, cond := range want {
		for _, samples := range []int{1, 5} {
			sim := sensor.NewSimulated(sensor.SimConfig{Seed: 11, NoiseBand: sensor.DefaultNoiseBand, Regime: regime})
			cfg := testConfig(200)
			cfg.Samples = samples
			c, _, _, _ := newTestController(t, cfg, sim)

			sum := c.Run()
			if sum.ByCondition[cond] != 200 {
				t.Errorf("regime %s samples %d: got %v, want all %s", regime, samples, sum.ByCondition, cond)
			}
		}
	}
}

func TestDemoScheduleDrivesAllConditions(t *testing.T) {
	sim := sensor.NewSimulated(sensor.SimConfig{Seed: 5, NoiseBand: sensor.DefaultNoiseBand})
	sched := sensor.NewSchedule(sim, sensor.DefaultSchedule, 5)
	c, _, rec, _ := newTestController(t, testConfig(20), sched)

	sum := c.Run()

	if sum.ByCondition[logic.ConditionDry] != 5 ||
		sum.ByCondition[logic.ConditionOptimal] != 10 ||
		sum.ByCondition[logic.ConditionWet] != 5 {
		t.Errorf("unexpected condition mix %v", sum.ByCondition)
	}
	if rec.Records[0].Condition != logic.ConditionDry || rec.Records[10].Condition != logic.ConditionWet {
		t.Errorf("schedule order not respected: %+v", rec.Records)
	}
}

func TestSummaryIsACopy(t *testing.T) {
	src := sensor.NewFakeSource(3000)
	c, _, _, _ := newTestController(t, testConfig(1), src)
	sum := c.Run()

	sum.ByCondition[logic.ConditionDry] = 99
	if c.Summary().ByCondition[logic.ConditionDry] != 1 {
		t.Error("mutating a returned summary must not affect the controller")
	}
}
