// Package link owns the serial connection to the radio.
//
// The radio protocol has no framing and relies on timing windows, so reads
// are never allowed to block: Port exposes a count of buffered bytes and a
// byte read that reports ErrNoData instead of waiting.
package link

import (
	"errors"
	"io"
)

// ErrNoData is returned by ReadByte when nothing has been received.
var ErrNoData = errors.New("no data available")

// ErrClosed is returned by operations on a link that is not open.
var ErrClosed = errors.New("link closed")

// Port is the byte stream view of a link used by the command layer.
type Port interface {
	io.Writer

	// Buffered reports how many received bytes can be read without waiting.
	Buffered() (int, error)

	// ReadByte returns the next received byte, or ErrNoData.
	ReadByte() (byte, error)

	// Discard drops everything received but not yet read.
	Discard() error
}

// Link is an exclusively owned Port bound to a named device.
type Link interface {
	Port

	Name() string
	Baud() int
	SetBaudRate(baud int) error
	IsOpen() bool
	Close() error
}

// Opener opens a Link at the given baud rate.
type Opener func(name string, baud int) (Link, error)

// ReadAvailable reads at most max buffered bytes without waiting.
func ReadAvailable(p Port, max int) ([]byte, error) {
	var out []byte
	for len(out) < max {
		b, err := p.ReadByte()
		if errors.Is(err, ErrNoData) {
			break
		}
		if err != nil {
			return out, err
		}
		out = append(out, b)
	}
	return out, nil
}
