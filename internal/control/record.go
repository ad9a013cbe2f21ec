package control

import (
	"log"

	"github.com/sweeney/soil-sensor/internal/logic"
)

// Record is the structured log entry for one successful cycle.
type Record struct {
	Cycle       int
	Raw         uint16
	Percent     uint8
	Condition   logic.Condition
	IndicatorOn bool
	Pump        logic.PumpAction
}

// Recorder is the log sink of the control loop.
type Recorder interface {
	// Cycle records a successful cycle.
	Cycle(r Record)

	// Error records a failure. The loop carries on after it.
	Error(cycle int, err error)

	// Notice records free-form operator text (startup, calibration guidance).
	Notice(msg string)
}

// LogRecorder writes records as a table through a standard logger.
type LogRecorder struct {
	logger *log.Logger
	header bool
}

// NewLogRecorder creates a LogRecorder. A nil logger means log.Default().
func NewLogRecorder(logger *log.Logger) *LogRecorder {
	if logger == nil {
		logger = log.Default()
	}
	return &LogRecorder{logger: logger}
}

// Cycle logs one table row, plus a pump line when the pump is told to change.
func (l *LogRecorder) Cycle(r Record) {
	if !l.header {
		l.logger.Printf("Raw Value | Moisture %% | Status")
		l.logger.Printf("----------|------------|--------")
		l.header = true
	}

	l.logger.Printf("%9d | %8d%% | %s (LED: %s)", r.Raw, r.Percent, r.Condition.Label(), onOff(r.IndicatorOn))

	switch r.Pump {
	case logic.PumpActivate:
		l.logger.Printf("     -> Pump: ACTIVATE (soil too dry)")
	case logic.PumpDeactivate:
		l.logger.Printf("     -> Pump: DEACTIVATE (soil too wet)")
	}
}

// Error logs a failed cycle.
func (l *LogRecorder) Error(cycle int, err error) {
	l.logger.Printf("cycle %d: %v", cycle, err)
}

// Notice logs operator text as-is.
func (l *LogRecorder) Notice(msg string) {
	l.logger.Print(msg)
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
