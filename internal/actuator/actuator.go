// Package actuator drives the indicator LED and the irrigation pump.
// The GPIO implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package actuator

import (
	"errors"

	"github.com/sweeney/soil-sensor/internal/logic"
)

// Sink accepts actuation commands. Calls are fire-and-forget from the
// control loop's point of view: a returned error is logged, never fatal.
type Sink interface {
	// SetIndicator switches the indicator LED directly (startup blinks).
	SetIndicator(on bool) error

	// Apply executes one cycle's command. PumpNoChange leaves the pump as it is.
	Apply(cmd logic.Command) error

	// Close switches everything off and releases resources.
	Close() error
}

// Default pin definitions (BCM numbering)
const (
	DefaultPinIndicator = 17 // status LED
	DefaultPinPump      = 27 // pump relay
)

// PumpState returns the pump output level a command asks for, and whether
// the command changes it at all.
func PumpState(a logic.PumpAction) (on bool, changes bool) {
	switch a {
	case logic.PumpActivate:
		return true, true
	case logic.PumpDeactivate:
		return false, true
	}
	return false, false
}

type multi []Sink

// Multi fans every call out to all sinks. Every sink is called even when an
// earlier one fails; the errors are joined.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

func (m multi) SetIndicator(on bool) error {
	var errs []error
	for _, s := range m {
		if err := s.SetIndicator(on); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multi) Apply(cmd logic.Command) error {
	var errs []error
	for _, s := range m {
		if err := s.Apply(cmd); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
