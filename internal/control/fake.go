package control

// FakeRecorder stores everything it is given for test assertions.
type FakeRecorder struct {
	Records []Record
	Errors  []CycleError
	Notices []string
}

// CycleError is one recorded failure.
type CycleError struct {
	Cycle int
	Err   error
}

// NewFakeRecorder creates a FakeRecorder.
func NewFakeRecorder() *FakeRecorder {
	return &FakeRecorder{}
}

// Cycle records r.
func (f *FakeRecorder) Cycle(r Record) {
	f.Records = append(f.Records, r)
}

// Error records err.
func (f *FakeRecorder) Error(cycle int, err error) {
	f.Errors = append(f.Errors, CycleError{Cycle: cycle, Err: err})
}

// Notice records msg.
func (f *FakeRecorder) Notice(msg string) {
	f.Notices = append(f.Notices, msg)
}
