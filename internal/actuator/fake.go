package actuator

import (
	"sync"

	"github.com/sweeney/soil-sensor/internal/logic"
)

// FakeSink is a test double that records every actuation.
type FakeSink struct {
	mu sync.Mutex

	// Commands contains every command passed to Apply, in order.
	Commands []logic.Command

	// Indicator contains every direct SetIndicator write, in order.
	Indicator []bool

	// PumpOn is the pump output level as a real relay would hold it.
	PumpOn bool

	// ApplyError, if set, is returned by Apply (the command is still recorded).
	ApplyError error

	// IndicatorError, if set, is returned by SetIndicator.
	IndicatorError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeSink creates a FakeSink.
func NewFakeSink() *FakeSink {
	return &FakeSink{}
}

// SetIndicator records the write.
func (f *FakeSink) SetIndicator(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Indicator = append(f.Indicator, on)
	return f.IndicatorError
}

// Apply records the command and tracks the pump level.
func (f *FakeSink) Apply(cmd logic.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Commands = append(f.Commands, cmd)
	if on, changes := PumpState(cmd.Pump); changes {
		f.PumpOn = on
	}
	return f.ApplyError
}

// Close switches the pump off and marks the sink closed.
func (f *FakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.PumpOn = false
	f.Closed = true
	return nil
}

// Reset clears recorded calls.
func (f *FakeSink) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Commands = nil
	f.Indicator = nil
	f.PumpOn = false
	f.ApplyError = nil
	f.IndicatorError = nil
	f.Closed = false
}
