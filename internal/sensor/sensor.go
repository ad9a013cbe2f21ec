// Package sensor provides raw moisture readings with hardware abstraction.
// The simulated source models a probe without hardware; the line source reads
// counts streamed by a serial ADC bridge. The fake allows scripted tests.
package sensor

import (
	"errors"
	"fmt"
)

// MaxRaw is the largest count a 12-bit ADC channel can report.
const MaxRaw = 4095

// ErrRead matches every failed read via errors.Is.
var ErrRead = errors.New("sensor read failed")

// Source produces averaged raw readings. Higher value = drier soil.
type Source interface {
	// ReadAveraged returns one reading averaged over the given number of samples.
	// A failure is transient: the caller may try again on its next cycle.
	ReadAveraged(samples int) (uint16, error)
}

// ReadError describes a failed read.
type ReadError struct {
	Source string
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Is makes every ReadError match ErrRead.
func (e *ReadError) Is(target error) bool {
	return target == ErrRead
}
