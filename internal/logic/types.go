// Package logic contains the pure soil-moisture decision pipeline.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Every function is total and deterministic for a given configuration.
package logic

import (
	"errors"
	"fmt"
)

// ErrInvalidConfiguration is returned when calibration or threshold
// invariants are violated. A controller must not start with such a config.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Condition is the classified state of the soil.
type Condition string

const (
	ConditionDry     Condition = "DRY"
	ConditionOptimal Condition = "OPTIMAL"
	ConditionWet     Condition = "WET"
)

// Conditions lists every condition in dry-to-wet order.
var Conditions = []Condition{ConditionDry, ConditionOptimal, ConditionWet}

// PumpAction is the per-cycle instruction for the irrigation pump.
type PumpAction string

const (
	PumpActivate   PumpAction = "ACTIVATE"
	PumpDeactivate PumpAction = "DEACTIVATE"
	PumpNoChange   PumpAction = "NO_CHANGE"
)

// Calibration holds the two raw reference readings of the probe.
// Higher raw value = drier soil.
type Calibration struct {
	DryReference uint16 // reading in completely dry soil
	WetReference uint16 // reading in saturated soil
}

// Validate reports whether the calibration window is usable.
func (c Calibration) Validate() error {
	if c.DryReference <= c.WetReference {
		return fmt.Errorf("%w: dry reference %d must be greater than wet reference %d",
			ErrInvalidConfiguration, c.DryReference, c.WetReference)
	}
	return nil
}

// Thresholds are the exclusive bounds of the optimal moisture band, in percent.
type Thresholds struct {
	Low  uint8 // below this the soil is dry
	High uint8 // above this the soil is wet
}

// Validate reports whether the thresholds describe a non-empty band within 0..100.
func (t Thresholds) Validate() error {
	if t.High > 100 {
		return fmt.Errorf("%w: high threshold %d exceeds 100", ErrInvalidConfiguration, t.High)
	}
	if t.Low >= t.High {
		return fmt.Errorf("%w: low threshold %d must be below high threshold %d",
			ErrInvalidConfiguration, t.Low, t.High)
	}
	return nil
}

// Command is the actuation decision for one cycle.
type Command struct {
	IndicatorOn bool
	Pump        PumpAction
}

// Decision is the full result of running one raw reading through the pipeline.
type Decision struct {
	Raw       uint16
	Percent   uint8
	Condition Condition
	Command   Command
}
