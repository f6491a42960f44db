package atcmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sik-flasher/internal/clock"
	"sik-flasher/internal/link/linktest"
)

func TestParseIdentity(t *testing.T) {
	tests := []struct {
		reply   string
		ok      bool
		version string
		board   string
	}{
		{reply: "SiK 2.0 on RFD900", ok: true, version: "2.0", board: "RFD900"},
		{reply: "SiK 1.9 on HM-TRP\r\n", ok: true, version: "1.9", board: "HM-TRP"},
		{reply: "  SiK   2.2 beta  on  RFD900X  ", ok: true, version: "2.2 beta", board: "RFD900X"},
		{reply: "garbage"},
		{reply: ""},
		{reply: "SiK 2.0"},
	}

	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			id, ok := ParseIdentity(tt.reply)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.version, id.Version)
			assert.Equal(t, tt.board, id.Board)
		})
	}
}

func TestConnectIdentifiesSiK(t *testing.T) {
	r := linktest.NewRadio("sim", 57600)
	n := NewNegotiator(r, WithClock(clock.NewFake()))

	id, ok := n.Connect()
	require.True(t, ok)
	assert.Equal(t, "2.0", id.Version)
	assert.Equal(t, "RFD900", id.Board)
	assert.Equal(t, "SiK 2.0 on RFD900", id.String())
	assert.Equal(t, []string{"AT&T", "ATI"}, r.Commands)
	assert.Equal(t, 3, strings.Count(string(r.Written), "+"))
}

func TestConnectRejectsGarbage(t *testing.T) {
	r := linktest.NewRadio("sim", 57600)
	r.Identity = "garbage"
	n := NewNegotiator(r, WithClock(clock.NewFake()))

	_, ok := n.Connect()
	assert.False(t, ok)
}

func TestConnectSilentRadioBoundsEscapeAttempts(t *testing.T) {
	r := linktest.NewRadio("sim", 57600)
	r.Silent = true
	clk := clock.NewFake()
	n := NewNegotiator(r, WithClock(clk))

	_, ok := n.Connect()
	assert.False(t, ok)
	assert.Equal(t, 9, strings.Count(string(r.Written), "+"))

	timing := DefaultTiming()
	perCycle := 2*timing.GuardTime + 2*timing.EscapeGap
	assert.GreaterOrEqual(t, clk.Slept(), 3*perCycle)
}

func TestConnectClearsLineWithoutAck(t *testing.T) {
	r := linktest.NewRadio("sim", 57600)
	r.EscapeReply = "xx"
	n := NewNegotiator(r, WithClock(clock.NewFake()))

	_, ok := n.Connect()
	require.True(t, ok)
	assert.True(t, bytes.Contains(r.Written, []byte("+++\r\nAT&T")))
}

func TestConnectFromCommandMode(t *testing.T) {
	r := linktest.NewRadio("sim", 57600)
	r.Mode = linktest.CommandMode
	n := NewNegotiator(r, WithClock(clock.NewFake()))

	_, ok := n.Connect()
	require.True(t, ok)
	assert.Equal(t, "ATO", r.Commands[0])
}

func TestConnectWriteFailure(t *testing.T) {
	r := linktest.NewRadio("sim", 57600)
	r.WriteErr = linktest.ErrUnplugged
	n := NewNegotiator(r, WithClock(clock.NewFake()))

	_, ok := n.Connect()
	assert.False(t, ok)
}

func TestConnectRecoversFromPanic(t *testing.T) {
	n := NewNegotiator(nil, WithClock(clock.NewFake()))

	_, ok := n.Connect()
	assert.False(t, ok)
}
