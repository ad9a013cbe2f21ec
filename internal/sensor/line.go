package sensor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"
)

// LineSource reads raw counts from a bridge microcontroller that prints one
// decimal ADC value per line, e.g. "2417\r\n".
type LineSource struct {
	name   string
	rc     io.ReadCloser
	reader *bufio.Reader

	// partial holds the start of a line cut off by a timeout.
	partial string
	// skip discards input up to the next newline (set after a flush).
	skip bool
}

// flusher is implemented by ports that can drop input queued by the kernel.
type flusher interface {
	ResetInputBuffer() error
}

// NewLineSource wraps a stream of newline-terminated counts.
func NewLineSource(name string, rc io.ReadCloser) *LineSource {
	return &LineSource{
		name:   name,
		rc:     rc,
		reader: bufio.NewReader(rc),
	}
}

// OpenSerial opens a serial port and returns a LineSource reading from it.
// A read that sees no data within readTimeout fails instead of blocking the loop.
func OpenSerial(port string, baudRate int, readTimeout time.Duration) (*LineSource, error) {
	p, err := serial.Open(port, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", port, err)
	}
	if readTimeout > 0 {
		if err := p.SetReadTimeout(readTimeout); err != nil {
			p.Close()
			return nil, fmt.Errorf("set read timeout on %s: %w", port, err)
		}
	}
	return NewLineSource(port, &timeoutPort{Port: p}), nil
}

// ReadAveraged reads `samples` lines and returns their rounded mean.
// When the stream can be flushed, queued lines are dropped first so the
// mean covers only lines sent after the call.
func (s *LineSource) ReadAveraged(samples int) (uint16, error) {
	if samples <= 0 {
		samples = 1
	}

	if f, ok := s.rc.(flusher); ok {
		if err := f.ResetInputBuffer(); err != nil {
			return 0, &ReadError{Source: s.name, Err: fmt.Errorf("reset input buffer: %w", err)}
		}
		s.reader.Reset(s.rc)
		s.partial = ""
		s.skip = true
	}

	var sum uint32
	for i := 0; i < samples; i++ {
		v, err := s.readLine()
		if err != nil {
			return 0, &ReadError{Source: s.name, Err: err}
		}
		sum += uint32(v)
	}
	n := uint32(samples)
	return uint16((sum + n/2) / n), nil
}

// Close releases the underlying stream.
func (s *LineSource) Close() error {
	return s.rc.Close()
}

func (s *LineSource) readLine() (uint16, error) {
	for {
		chunk, err := s.reader.ReadString('\n')
		line := s.partial + chunk
		s.partial = ""
		if err != nil {
			if !errors.Is(err, io.EOF) {
				// the rest of the line arrives with the next read
				s.partial = line
				return 0, err
			}
			if line == "" || s.skip {
				return 0, err
			}
		}
		if s.skip {
			s.skip = false
			continue
		}

		line = strings.TrimSpace(line)
		if line == "" {
			if err != nil {
				return 0, err
			}
			continue
		}
		v, perr := strconv.ParseUint(line, 10, 16)
		if perr != nil {
			return 0, fmt.Errorf("parse %q: %w", line, perr)
		}
		if v > MaxRaw {
			return 0, fmt.Errorf("count %d exceeds %d", v, MaxRaw)
		}
		return uint16(v), nil
	}
}

// errTimeout is returned when the bridge stays silent past the read timeout.
var errTimeout = errors.New("timed out waiting for bridge")

// timeoutPort turns the zero-byte read that go.bug.st/serial reports on
// timeout into an error, so bufio does not spin on empty reads.
type timeoutPort struct {
	serial.Port
}

func (p *timeoutPort) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if n == 0 && err == nil {
		return 0, errTimeout
	}
	return n, err
}
