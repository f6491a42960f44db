package link

import (
	"errors"
	"fmt"
	"sort"

	"go.bug.st/serial"
)

// Serial is a Link backed by a physical serial port.
type Serial struct {
	name    string
	mode    serial.Mode
	port    serial.Port
	pending []byte
	scratch [256]byte
}

// Open opens name at baud, 8N1, with non-blocking reads.
func Open(name string, baud int) (*Serial, error) {
	mode := serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(name, &mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open port %s: %w", name, err)
	}

	// A zero timeout makes Read return immediately with whatever the driver holds.
	if err := port.SetReadTimeout(0); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", name, err)
	}

	return &Serial{name: name, mode: mode, port: port}, nil
}

// OpenLink adapts Open to the Opener signature.
func OpenLink(name string, baud int) (Link, error) {
	s, err := Open(name, baud)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Serial) Name() string { return s.name }
func (s *Serial) Baud() int    { return s.mode.BaudRate }
func (s *Serial) IsOpen() bool { return s.port != nil }

func (s *Serial) Write(p []byte) (int, error) {
	if s.port == nil {
		return 0, ErrClosed
	}
	return s.port.Write(p)
}

// fill moves whatever the driver has received into the pending buffer.
func (s *Serial) fill() error {
	if s.port == nil {
		return ErrClosed
	}
	n, err := s.port.Read(s.scratch[:])
	if n > 0 {
		s.pending = append(s.pending, s.scratch[:n]...)
	}
	return err
}

func (s *Serial) Buffered() (int, error) {
	if err := s.fill(); err != nil {
		return len(s.pending), err
	}
	return len(s.pending), nil
}

func (s *Serial) ReadByte() (byte, error) {
	if len(s.pending) == 0 {
		if err := s.fill(); err != nil {
			return 0, err
		}
		if len(s.pending) == 0 {
			return 0, ErrNoData
		}
	}
	b := s.pending[0]
	s.pending = s.pending[1:]
	return b, nil
}

func (s *Serial) Discard() error {
	s.pending = s.pending[:0]
	if s.port == nil {
		return nil
	}
	return s.port.ResetInputBuffer()
}

// SetBaudRate reconfigures the open port without closing it.
func (s *Serial) SetBaudRate(baud int) error {
	if s.port == nil {
		return ErrClosed
	}
	mode := s.mode
	mode.BaudRate = baud
	if err := s.port.SetMode(&mode); err != nil {
		return fmt.Errorf("failed to set %s to %d baud: %w", s.name, baud, err)
	}
	s.mode = mode
	return nil
}

func (s *Serial) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	s.pending = nil
	return err
}

// Ports lists the serial ports present on the system, sorted by name.
func Ports() []string {
	ports, err := serial.GetPortsList()
	if err != nil {
		return []string{}
	}
	sort.Strings(ports)
	return ports
}

// Reason classifies a failure from Open into a short human readable cause.
func Reason(err error) string {
	var code serial.PortErrorCode
	var perr *serial.PortError
	var verr serial.PortError
	switch {
	case errors.As(err, &perr):
		code = perr.Code()
	case errors.As(err, &verr):
		code = verr.Code()
	default:
		return "unknown error"
	}

	switch code {
	case serial.PortNotFound:
		return "port not found"
	case serial.PortBusy:
		return "port busy"
	case serial.PermissionDenied:
		return "permission denied"
	case serial.InvalidSpeed:
		return "unsupported baud rate"
	case serial.InvalidSerialPort:
		return "not a serial port"
	default:
		return "port error"
	}
}
