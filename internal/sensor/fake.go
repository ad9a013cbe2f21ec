package sensor

import "errors"

// FakeSource is a test double that returns scripted readings.
type FakeSource struct {
	// Readings contains scripted values to return.
	// Each call to ReadAveraged() consumes the next reading.
	Readings []uint16

	// Errors, if non-nil at the same index as the read, fails that read.
	Errors []error

	// ReadError, if set, is returned by every read.
	ReadError error

	// Samples records the samples argument of every call.
	Samples []int

	index int
}

// NewFakeSource creates a FakeSource with the given readings.
func NewFakeSource(readings ...uint16) *FakeSource {
	return &FakeSource{Readings: readings}
}

// ReadAveraged returns the next scripted reading.
// If readings are exhausted, returns the last reading repeatedly.
func (f *FakeSource) ReadAveraged(samples int) (uint16, error) {
	f.Samples = append(f.Samples, samples)
	i := f.index
	f.index++

	if f.ReadError != nil {
		return 0, &ReadError{Source: "fake", Err: f.ReadError}
	}
	if i < len(f.Errors) && f.Errors[i] != nil {
		return 0, &ReadError{Source: "fake", Err: f.Errors[i]}
	}
	if len(f.Readings) == 0 {
		return 0, &ReadError{Source: "fake", Err: errors.New("no readings configured")}
	}
	if i >= len(f.Readings) {
		i = len(f.Readings) - 1
	}
	return f.Readings[i], nil
}

// Calls returns how many reads were attempted.
func (f *FakeSource) Calls() int {
	return f.index
}

// Reset rewinds the source to its first reading.
func (f *FakeSource) Reset() {
	f.index = 0
	f.Samples = nil
}
