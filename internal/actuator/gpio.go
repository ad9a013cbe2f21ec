//go:build linux

package actuator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/soil-sensor/internal/logic"
)

// GPIOSink drives the LED and pump relay through the Linux GPIO character device.
type GPIOSink struct {
	mu        sync.Mutex
	chip      *gpiocdev.Chip
	indicator *gpiocdev.Line
	pump      *gpiocdev.Line
	pumpOn    bool
	closed    bool
}

// NewGPIOSink requests both pins as outputs, initially low (LED off, pump off).
func NewGPIOSink(chipName string, pinIndicator, pinPump int) (*GPIOSink, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	indicator, err := chip.RequestLine(pinIndicator, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request indicator pin %d: %w", pinIndicator, err)
	}

	pump, err := chip.RequestLine(pinPump, gpiocdev.AsOutput(0))
	if err != nil {
		indicator.Close()
		chip.Close()
		return nil, fmt.Errorf("request pump pin %d: %w", pinPump, err)
	}

	return &GPIOSink{
		chip:      chip,
		indicator: indicator,
		pump:      pump,
	}, nil
}

// SetIndicator drives the LED pin.
func (g *GPIOSink) SetIndicator(on bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return errors.New("gpio: sink closed")
	}
	if err := g.indicator.SetValue(level(on)); err != nil {
		return fmt.Errorf("set indicator pin: %w", err)
	}
	return nil
}

// Apply drives the LED from the command and the pump relay when the command
// changes it.
func (g *GPIOSink) Apply(cmd logic.Command) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return errors.New("gpio: sink closed")
	}
	if err := g.indicator.SetValue(level(cmd.IndicatorOn)); err != nil {
		return fmt.Errorf("set indicator pin: %w", err)
	}

	on, changes := PumpState(cmd.Pump)
	if !changes || on == g.pumpOn {
		return nil
	}
	if err := g.pump.SetValue(level(on)); err != nil {
		return fmt.Errorf("set pump pin: %w", err)
	}
	g.pumpOn = on
	return nil
}

// Close switches the pump and LED off, then returns the pins to
// input with pull-down (matching Pi boot defaults) before releasing them.
func (g *GPIOSink) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true

	var errs []error
	lines := []struct {
		name string
		line *gpiocdev.Line
	}{
		{"pump", g.pump},
		{"indicator", g.indicator},
	}
	for _, l := range lines {
		name, line := l.name, l.line
		if line == nil {
			continue
		}
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear %s pin: %w", name, err))
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", name, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", name, err))
		}
	}
	if g.chip != nil {
		if err := g.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func level(on bool) int {
	if on {
		return 1
	}
	return 0
}
