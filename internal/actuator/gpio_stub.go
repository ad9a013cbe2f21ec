//go:build !linux

package actuator

import (
	"errors"

	"github.com/sweeney/soil-sensor/internal/logic"
)

// GPIOSink is not available on non-Linux platforms.
type GPIOSink struct{}

// NewGPIOSink returns an error on non-Linux platforms.
func NewGPIOSink(chipName string, pinIndicator, pinPump int) (*GPIOSink, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// SetIndicator is not implemented on non-Linux platforms.
func (g *GPIOSink) SetIndicator(on bool) error {
	return errors.New("gpio: not supported")
}

// Apply is not implemented on non-Linux platforms.
func (g *GPIOSink) Apply(cmd logic.Command) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (g *GPIOSink) Close() error {
	return nil
}
