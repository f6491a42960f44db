package atcmd

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"sik-flasher/internal/link"
)

const (
	escapeChar = "+"
	ackLength  = 20
)

var identityPattern = regexp.MustCompile(`SiK\s+(.*)\s+on\s+(.*)`)

// Identity is what a radio reports for ATI.
type Identity struct {
	Version string
	Board   string
}

func (id Identity) String() string {
	return fmt.Sprintf("SiK %s on %s", id.Version, id.Board)
}

// ParseIdentity extracts version and board from an ATI reply.
func ParseIdentity(reply string) (Identity, bool) {
	m := identityPattern.FindStringSubmatch(strings.TrimSpace(reply))
	if m == nil {
		return Identity{}, false
	}
	return Identity{
		Version: strings.TrimSpace(m[1]),
		Board:   strings.TrimSpace(m[2]),
	}, true
}

// Negotiator brings a radio into command mode and checks who it is.
type Negotiator struct {
	port link.Port
	ch   *Channel
	opts options
}

// NewNegotiator returns a Negotiator on p.
func NewNegotiator(p link.Port, opts ...Option) *Negotiator {
	o := buildOptions(opts)
	return &Negotiator{
		port: p,
		ch:   &Channel{port: p, opts: o},
		opts: o,
	}
}

// Channel returns the command channel the negotiator uses.
func (n *Negotiator) Channel() *Channel { return n.ch }

// Connect enters command mode and identifies the radio. It reports false,
// never an error, when the radio cannot be reached or is not a SiK radio;
// callers decide what a failed handshake means for them.
func (n *Negotiator) Connect() (id Identity, ok bool) {
	log := n.opts.log

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("connect aborted")
			id, ok = Identity{}, false
		}
	}()

	id, err := n.connect()
	if err != nil {
		log.Debug().Err(err).Msg("connect failed")
		return Identity{}, false
	}
	return id, true
}

func (n *Negotiator) connect() (Identity, error) {
	log := n.opts.log
	t := n.opts.timing

	log.Debug().Msg("doConnect")

	// Leave command mode in case the radio is already in it.
	if _, err := io.WriteString(n.port, "ATO\r\n"); err != nil {
		return Identity{}, fmt.Errorf("write ATO: %w", err)
	}

	for attempt := 1; ; attempt++ {
		buffered, err := n.escape()
		if err != nil {
			return Identity{}, err
		}

		log.Debug().
			Int("attempt", attempt).
			Int("buffered", buffered).
			Msg("escape sequence sent")

		if buffered > 0 || attempt >= t.EscapeAttempts {
			break
		}
		log.Debug().Msg("doConnect retry")
	}

	// Older firmware acknowledges with OK. The result does not gate the
	// handshake; ATI below decides.
	ack, err := link.ReadAvailable(n.port, ackLength)
	if err != nil {
		return Identity{}, fmt.Errorf("read escape response: %w", err)
	}
	log.Debug().Str("response", clean(string(ack))).Msg("connect first response")
	if !strings.Contains(string(ack), "OK") {
		// Clear any half typed command.
		if _, err := io.WriteString(n.port, "\r\n"); err != nil {
			return Identity{}, fmt.Errorf("write blank line: %w", err)
		}
	}

	if _, err := n.ch.Execute("AT&T", false); err != nil {
		return Identity{}, err
	}

	ex, err := n.ch.Execute("ATI", false)
	if err != nil {
		return Identity{}, err
	}

	log.Info().Str("version", clean(ex.Reply)).Msg("connect version")

	id, ok := ParseIdentity(ex.Reply)
	if !ok {
		return Identity{}, fmt.Errorf("unrecognised identity %q", clean(ex.Reply))
	}
	return id, nil
}

// escape sends the guarded escape sequence once and reports how many bytes
// have arrived afterwards.
func (n *Negotiator) escape() (int, error) {
	t := n.opts.timing
	clk := n.opts.clock

	clk.Sleep(t.GuardTime)
	if err := n.port.Discard(); err != nil {
		return 0, fmt.Errorf("discard: %w", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := io.WriteString(n.port, escapeChar); err != nil {
			return 0, fmt.Errorf("write escape: %w", err)
		}
		if i < 2 {
			clk.Sleep(t.EscapeGap)
		}
	}
	clk.Sleep(t.GuardTime)

	return n.port.Buffered()
}
