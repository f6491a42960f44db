package atcmd

import (
	"strings"
	"time"

	"sik-flasher/internal/clock"
	"sik-flasher/internal/link"
)

// pollInterval is the pause between checks of an idle link.
const pollInterval = time.Millisecond

// ReadLine collects bytes from p until a '\n' arrives or timeout elapses, and
// returns what it got, terminator included when one was seen. A timeout is
// not an error: the result is simply short or empty. Each byte is taken as
// one character.
func ReadLine(p link.Port, clk clock.Clock, timeout time.Duration) string {
	var sb strings.Builder
	deadline := clk.Now().Add(timeout)

	for clk.Now().Before(deadline) {
		b, err := p.ReadByte()
		if err != nil {
			clk.Sleep(pollInterval)
			continue
		}

		sb.WriteRune(rune(b))
		if b == '\n' {
			break
		}
	}

	return sb.String()
}
