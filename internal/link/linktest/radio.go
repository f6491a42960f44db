// Package linktest provides a scripted SiK radio that sits on the far end of
// a link.Link, for tests of the command and session layers.
package linktest

import (
	"errors"
	"strings"

	"sik-flasher/internal/link"
)

// Mode is the simulated firmware state.
type Mode int

const (
	DataMode Mode = iota
	CommandMode
	BootloaderMode
)

// Radio implements link.Link. Bytes written to it are interpreted the way a
// SiK radio would, and its replies become readable immediately.
type Radio struct {
	// Identity is the ATI reply. Empty means the radio answers ATI with OK.
	Identity string

	// Responses overrides the reply text for individual commands. Replies may
	// span several lines separated by "\r\n".
	Responses map[string]string

	// Echo, when set, replaces the echo of a command.
	Echo func(cmd string) string

	// EscapeReply is queued when the escape sequence is recognised.
	EscapeReply string

	// Silent radios accept writes but never answer.
	Silent bool

	// WriteErr fails every write once set.
	WriteErr error

	// OpenErr fails every Opener call once set.
	OpenErr error

	Mode        Mode
	Written     []byte
	Commands    []string
	BaudChanges []int
	Opens       int
	Closes      int

	name   string
	baud   int
	open   bool
	rx     []byte
	line   []byte
	pluses int
}

// NewRadio returns an open radio in data mode at baud.
func NewRadio(name string, baud int) *Radio {
	return &Radio{
		Identity:    "SiK 2.0 on RFD900",
		Responses:   map[string]string{},
		EscapeReply: "OK\r\n",
		name:        name,
		baud:        baud,
		open:        true,
	}
}

// Opener reopens this radio at the requested baud.
func (r *Radio) Opener() link.Opener {
	return func(name string, baud int) (link.Link, error) {
		if r.OpenErr != nil {
			return nil, r.OpenErr
		}
		r.Opens++
		r.name = name
		r.baud = baud
		r.open = true
		r.rx = nil
		return r, nil
	}
}

// Queue makes data readable as if the radio had sent it.
func (r *Radio) Queue(data string) { r.rx = append(r.rx, data...) }

// Count reports how many times cmd was received in command mode.
func (r *Radio) Count(cmd string) int {
	n := 0
	for _, c := range r.Commands {
		if c == cmd {
			n++
		}
	}
	return n
}

func (r *Radio) Name() string { return r.name }
func (r *Radio) Baud() int    { return r.baud }
func (r *Radio) IsOpen() bool { return r.open }

func (r *Radio) SetBaudRate(baud int) error {
	if !r.open {
		return link.ErrClosed
	}
	r.baud = baud
	r.BaudChanges = append(r.BaudChanges, baud)
	return nil
}

func (r *Radio) Close() error {
	r.Closes++
	r.open = false
	r.rx = nil
	return nil
}

func (r *Radio) Buffered() (int, error) {
	if !r.open {
		return 0, link.ErrClosed
	}
	return len(r.rx), nil
}

func (r *Radio) ReadByte() (byte, error) {
	if !r.open {
		return 0, link.ErrClosed
	}
	if len(r.rx) == 0 {
		return 0, link.ErrNoData
	}
	b := r.rx[0]
	r.rx = r.rx[1:]
	return b, nil
}

func (r *Radio) Discard() error {
	r.rx = nil
	return nil
}

func (r *Radio) Write(p []byte) (int, error) {
	if !r.open {
		return 0, link.ErrClosed
	}
	if r.WriteErr != nil {
		return 0, r.WriteErr
	}
	r.Written = append(r.Written, p...)
	for _, b := range p {
		r.receive(b)
	}
	return len(p), nil
}

func (r *Radio) receive(b byte) {
	switch r.Mode {
	case DataMode:
		if b == '+' {
			r.pluses++
			if r.pluses == 3 {
				r.pluses = 0
				r.Mode = CommandMode
				r.line = r.line[:0]
				if !r.Silent {
					r.Queue(r.EscapeReply)
				}
			}
			return
		}
		r.pluses = 0
	case CommandMode:
		switch b {
		case '\r':
		case '\n':
			cmd := string(r.line)
			r.line = r.line[:0]
			r.command(cmd)
		default:
			r.line = append(r.line, b)
		}
	}
}

func (r *Radio) command(cmd string) {
	if cmd == "" {
		return
	}
	r.Commands = append(r.Commands, cmd)
	if r.Silent {
		return
	}

	echo := cmd
	if r.Echo != nil {
		echo = r.Echo(cmd)
	}
	r.Queue(echo + "\r\n")

	if reply, ok := r.Responses[cmd]; ok {
		if reply != "" {
			r.Queue(strings.TrimSuffix(reply, "\r\n") + "\r\n")
		}
		return
	}

	switch strings.ToUpper(cmd) {
	case "ATO", "ATZ":
		r.Mode = DataMode
	case "AT&UPDATE":
		r.Mode = BootloaderMode
	case "ATI":
		if r.Identity != "" {
			r.Queue(r.Identity + "\r\n")
			return
		}
		r.Queue("OK\r\n")
	default:
		r.Queue("OK\r\n")
	}
}

// ErrUnplugged is a convenience error for simulating a lost device.
var ErrUnplugged = errors.New("device unplugged")
