// Package control runs the sample → decide → act → sleep loop.
package control

import (
	"fmt"
	"time"

	"github.com/sweeney/soil-sensor/internal/actuator"
	"github.com/sweeney/soil-sensor/internal/logic"
	"github.com/sweeney/soil-sensor/internal/sensor"
)

// State is the lifecycle state of the control loop.
type State string

const (
	StateStarting State = "STARTING"
	StateSampling State = "SAMPLING"
	StateSleeping State = "SLEEPING"
	StateStopped  State = "STOPPED"
)

// Config is fixed at construction.
type Config struct {
	Calibration logic.Calibration
	Thresholds  logic.Thresholds

	Interval time.Duration // delay between cycles
	Cycles   int           // 0 = run forever
	Samples  int           // samples averaged per reading

	CalibrationMode bool // emit calibration guidance alongside decisions

	StartupBlinks int
	BlinkOn       time.Duration
	BlinkOff      time.Duration
}

// Summary counts what a run did.
type Summary struct {
	Cycles      int
	Commands    int
	Errors      int
	ByCondition map[logic.Condition]int
}

// Controller owns the sensor source and drives the sink. Not safe for
// concurrent use: exactly one goroutine calls Run.
type Controller struct {
	cfg    Config
	source sensor.Source
	sink   actuator.Sink
	rec    Recorder
	sleep  func(time.Duration)

	state   State
	summary Summary
}

// New validates the configuration and creates a Controller.
// A nil sleep means time.Sleep.
func New(cfg Config, source sensor.Source, sink actuator.Sink, rec Recorder, sleep func(time.Duration)) (*Controller, error) {
	if err := cfg.Calibration.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, err
	}
	if cfg.Cycles < 0 {
		return nil, fmt.Errorf("%w: negative cycle count %d", logic.ErrInvalidConfiguration, cfg.Cycles)
	}
	if source == nil || sink == nil || rec == nil {
		return nil, fmt.Errorf("%w: source, sink and recorder are required", logic.ErrInvalidConfiguration)
	}
	if sleep == nil {
		sleep = time.Sleep
	}

	return &Controller{
		cfg:    cfg,
		source: source,
		sink:   sink,
		rec:    rec,
		sleep:  sleep,
		state:  StateStarting,
		summary: Summary{
			ByCondition: make(map[logic.Condition]int),
		},
	}, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return c.state
}

// Run performs the startup sequence, then cycles until the configured count
// is reached. With Cycles == 0 it never returns.
func (c *Controller) Run() Summary {
	c.state = StateStarting
	c.startup()

	for {
		c.state = StateSampling
		c.Step()

		if c.cfg.Cycles > 0 && c.summary.Cycles >= c.cfg.Cycles {
			break
		}
		c.state = StateSleeping
		c.sleep(c.cfg.Interval)
	}

	c.state = StateStopped
	return c.Summary()
}

// Step runs exactly one cycle: read, decide, act, record.
// A read failure is recorded and the cycle ends without a command.
func (c *Controller) Step() {
	c.summary.Cycles++
	cycle := c.summary.Cycles

	raw, err := c.source.ReadAveraged(c.cfg.Samples)
	if err != nil {
		c.summary.Errors++
		c.rec.Error(cycle, fmt.Errorf("read sensor: %w", err))
		return
	}

	d := logic.Decide(raw, c.cfg.Calibration, c.cfg.Thresholds)

	c.summary.Commands++
	if err := c.sink.Apply(d.Command); err != nil {
		c.rec.Error(cycle, fmt.Errorf("actuate: %w", err))
	}

	c.summary.ByCondition[d.Condition]++
	c.rec.Cycle(Record{
		Cycle:       cycle,
		Raw:         d.Raw,
		Percent:     d.Percent,
		Condition:   d.Condition,
		IndicatorOn: d.Command.IndicatorOn,
		Pump:        d.Command.Pump,
	})

	if c.cfg.CalibrationMode {
		c.rec.Notice(fmt.Sprintf("     calibration: raw=%d (dry reference %d, wet reference %d)",
			raw, c.cfg.Calibration.DryReference, c.cfg.Calibration.WetReference))
	}
}

// Summary returns a copy of the counters so far.
func (c *Controller) Summary() Summary {
	s := c.summary
	s.ByCondition = make(map[logic.Condition]int, len(c.summary.ByCondition))
	for k, v := range c.summary.ByCondition {
		s.ByCondition[k] = v
	}
	return s
}

func (c *Controller) startup() {
	if c.cfg.StartupBlinks > 0 {
		c.rec.Notice("Performing startup sequence...")
	}
	for i := 0; i < c.cfg.StartupBlinks; i++ {
		if err := c.sink.SetIndicator(true); err != nil {
			c.rec.Error(0, fmt.Errorf("startup blink %d: %w", i+1, err))
		}
		c.sleep(c.cfg.BlinkOn)
		if err := c.sink.SetIndicator(false); err != nil {
			c.rec.Error(0, fmt.Errorf("startup blink %d: %w", i+1, err))
		}
		c.sleep(c.cfg.BlinkOff)
	}
	c.rec.Notice("System ready! Starting measurements...")

	if c.cfg.CalibrationMode {
		c.rec.Notice("=== CALIBRATION MODE ACTIVE ===")
		c.rec.Notice("Place sensor in DRY soil and note the reading")
		c.rec.Notice("Then place in WET soil and note the reading")
		c.rec.Notice("Update dry_reference and wet_reference in the config accordingly")
	}
}
