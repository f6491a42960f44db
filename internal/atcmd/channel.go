// Package atcmd speaks the textual AT command dialect of SiK radios over an
// echoing serial link: line reads bounded by a deadline, echo-verified
// command exchanges, and the escape-sequence handshake into command mode.
package atcmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"sik-flasher/internal/link"
)

// Exchange is the outcome of one command.
type Exchange struct {
	Command string

	// Reply is the text received after the echo. It is empty when the
	// echo never matched.
	Reply string

	// Echoed reports whether the last attempt saw the command echoed back.
	Echoed bool

	// Attempts counts how many times the command was sent.
	Attempts int
}

// Retried reports whether the command had to be sent more than once.
func (e *Exchange) Retried() bool { return e.Attempts > 1 }

// Channel sends commands to a radio that is in command mode.
type Channel struct {
	port link.Port
	opts options
}

// NewChannel returns a Channel on p.
func NewChannel(p link.Port, opts ...Option) *Channel {
	return &Channel{port: p, opts: buildOptions(opts)}
}

// Execute sends cmd and returns the radio's reply.
//
// The radio echoes every command; if the echo does not contain cmd the input
// is discarded and the exchange repeated, up to the configured retry count,
// after which the reply is empty. In single-line mode an empty reply is also
// repeated. In multi-line mode lines are gathered until the link is idle and
// the collect window has passed.
//
// Only write and discard failures are returned as errors.
func (c *Channel) Execute(cmd string, multiLine bool) (*Exchange, error) {
	ex := &Exchange{Command: cmd}

	attempts, err := retry(c.opts.timing.Retries, func(attempt int) (bool, error) {
		return c.attempt(ex, attempt, multiLine)
	})
	ex.Attempts = attempts

	c.event().
		Str("cmd", cmd).
		Bool("echoed", ex.Echoed).
		Int("attempts", attempts).
		Str("reply", clean(ex.Reply)).
		Msg("command done")

	return ex, err
}

// attempt runs one round of cmd. It reports done when no further round is
// wanted.
func (c *Channel) attempt(ex *Exchange, attempt int, multiLine bool) (bool, error) {
	cmd := ex.Command

	if err := c.port.Discard(); err != nil {
		return true, fmt.Errorf("discard before %q: %w", cmd, err)
	}

	c.event().Str("cmd", cmd).Int("attempt", attempt+1).Msg("doing command")

	if _, err := io.WriteString(c.port, cmd+"\r\n"); err != nil {
		return true, fmt.Errorf("write %q: %w", cmd, err)
	}

	echo := ReadLine(c.port, c.opts.clock, c.opts.timing.EchoTimeout)
	if !strings.Contains(echo, cmd) {
		ex.Echoed = false
		ex.Reply = ""
		c.event().Str("cmd", cmd).Str("echo", clean(echo)).Msg("echo mismatch")
		if err := c.port.Discard(); err != nil {
			return true, fmt.Errorf("discard after %q: %w", cmd, err)
		}
		return false, nil
	}
	ex.Echoed = true

	if multiLine {
		ex.Reply = c.collect()
		return true, nil
	}

	ex.Reply = ReadLine(c.port, c.opts.clock, c.opts.timing.EchoTimeout)
	return ex.Reply != "", nil
}

// collect reads lines until nothing is buffered and the collect window has
// passed.
func (c *Channel) collect() string {
	var sb strings.Builder
	clk := c.opts.clock
	deadline := clk.Now().Add(c.opts.timing.CollectWindow)

	for {
		n, err := c.port.Buffered()
		if err != nil {
			break
		}
		if n == 0 && !clk.Now().Before(deadline) {
			break
		}
		sb.WriteString(ReadLine(c.port, clk, c.opts.timing.EchoTimeout))
	}

	return sb.String()
}

func (c *Channel) event() *zerolog.Event {
	return c.opts.log.WithLevel(c.opts.logLevel)
}

// clean makes reply text printable in a log line.
func clean(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\x00", " "))
}
