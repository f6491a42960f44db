package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		verbosity int
		want      zerolog.Level
	}{
		{-1, zerolog.InfoLevel},
		{0, zerolog.InfoLevel},
		{1, zerolog.DebugLevel},
		{2, zerolog.TraceLevel},
		{5, zerolog.TraceLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Level(tt.verbosity), "verbosity %d", tt.verbosity)
	}
}

func TestNewFiltersByVerbosity(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, 0)

	log.Debug().Msg("hidden")
	log.Info().Str("port", "/dev/ttyUSB0").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "port=/dev/ttyUSB0")
	assert.NotContains(t, out, "\x1b[", "no colour on a buffer")
}

func TestNewTrace(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, 2)

	log.Trace().Msg("bytes")
	assert.Contains(t, buf.String(), "bytes")
}
