package session

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"sik-flasher/internal/atcmd"
	"sik-flasher/internal/link"
	"sik-flasher/internal/params"
)

const (
	cmdSave   = "AT&W"
	cmdReboot = "ATZ"
	cmdDump   = "ATI5"
	cmdOnline = "ATO"
)

// Pusher writes parameters to a radio running its normal firmware.
type Pusher struct {
	cfg Config
}

// NewPusher returns a Pusher.
func NewPusher(opts ...Option) *Pusher {
	return &Pusher{cfg: buildConfig(opts)}
}

// Push enters command mode on p, sets every parameter in order, saves them
// and reboots the radio. Nothing is written if the handshake fails. The
// batch is not atomic: parameters set before a failure stay set.
func (p *Pusher) Push(port link.Port, set *params.Set) error {
	ch, err := p.connect(port)
	if err != nil {
		return err
	}

	log := p.cfg.Logger
	for _, e := range set.Entries() {
		cmd := "AT" + e.Name + "=" + e.Value
		log.Info().Str("cmd", cmd).Msg("setting parameter")
		if _, err := ch.Execute(cmd, false); err != nil {
			return fmt.Errorf("set %s: %w", e.Name, err)
		}
	}

	if _, err := ch.Execute(cmdSave, false); err != nil {
		return fmt.Errorf("save parameters: %w", err)
	}
	// The radio restarts on ATZ and never replies, so it is not retried.
	if err := sendRaw(port, cmdReboot); err != nil {
		return fmt.Errorf("reboot: %w", err)
	}

	log.Info().Int("count", set.Len()).Msg("parameters saved")
	return nil
}

// Dump enters command mode on port and reads back every parameter, then
// returns the radio to data mode.
func (p *Pusher) Dump(port link.Port) (*params.Set, error) {
	ch, err := p.connect(port)
	if err != nil {
		return nil, err
	}

	ex, err := ch.Execute(cmdDump, true)
	if err != nil {
		return nil, fmt.Errorf("read parameters: %w", err)
	}

	set, err := params.Parse(strings.NewReader(ex.Reply))
	if err != nil {
		return nil, fmt.Errorf("read parameters: %w", err)
	}
	if set.Len() == 0 {
		return nil, errors.New("radio returned no parameters")
	}

	// ATO has no reply and leaves the radio in data mode, where a repeat
	// would be sent over the air.
	if err := sendRaw(port, cmdOnline); err != nil {
		return nil, fmt.Errorf("leave command mode: %w", err)
	}
	return set, nil
}

// PushFile loads the parameter file at path and pushes it to the radio on
// portName at baud.
func (p *Pusher) PushFile(portName string, baud int, path string) error {
	set, err := params.Load(path)
	if err != nil {
		return err
	}

	l, err := p.open(portName, baud)
	if err != nil {
		return err
	}
	defer p.close(l)

	return p.Push(l, set)
}

// DumpFile reads the parameters of the radio on portName and saves them to
// path.
func (p *Pusher) DumpFile(portName string, baud int, path string) error {
	l, err := p.open(portName, baud)
	if err != nil {
		return err
	}
	defer p.close(l)

	set, err := p.Dump(l)
	if err != nil {
		return err
	}
	return params.Save(path, set)
}

func (p *Pusher) connect(port link.Port) (*atcmd.Channel, error) {
	neg := atcmd.NewNegotiator(port, p.cfg.commandOptions()...)
	id, ok := neg.Connect()
	if !ok {
		return nil, ErrHandshakeFailed
	}
	p.cfg.Logger.Info().Str("version", id.Version).Str("board", id.Board).Msg("radio identified")
	return neg.Channel(), nil
}

// sendRaw writes cmd without waiting for an echo or reply.
func sendRaw(port link.Port, cmd string) error {
	_, err := io.WriteString(port, cmd+"\r\n")
	return err
}

func (p *Pusher) open(portName string, baud int) (link.Link, error) {
	l, err := p.cfg.Opener(portName, baud)
	if err != nil {
		return nil, &LinkOpenError{Port: portName, Baud: baud, Err: err}
	}
	return l, nil
}

func (p *Pusher) close(l link.Link) {
	if err := l.Close(); err != nil {
		p.cfg.Logger.Warn().Err(err).Msg("close link")
	}
}
