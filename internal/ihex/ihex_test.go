package ihex

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `:0400000001020304F2
:020004000506EF
:02001000AABB89
:020000040001F9
:01000000CC33
:00000001FF
`

func TestParseMergesContiguousData(t *testing.T) {
	img, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	require.Len(t, img.Segments, 3)
	assert.Equal(t, Segment{Address: 0, Data: []byte{1, 2, 3, 4, 5, 6}}, img.Segments[0])
	assert.Equal(t, Segment{Address: 0x10, Data: []byte{0xAA, 0xBB}}, img.Segments[1])
	assert.Equal(t, Segment{Address: 0x10000, Data: []byte{0xCC}}, img.Segments[2])
	assert.Equal(t, 9, img.Size())
}

func TestParseExtendedSegment(t *testing.T) {
	img, err := Parse(strings.NewReader(":020000021000EC\n:01000000CC33\n:00000001FF\n"))
	require.NoError(t, err)
	require.Len(t, img.Segments, 1)
	assert.Equal(t, uint32(0x10000), img.Segments[0].Address)
}

func TestParseStopsAtEOF(t *testing.T) {
	img, err := Parse(strings.NewReader(":01000000CC33\n:00000001FF\n:02001000AABB89\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, img.Size())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"checksum", ":0400000001020304F3\n"},
		{"short", ":0000\n"},
		{"length", ":0500000001020304F1\n"},
		{"digits", ":04000000010203ZZF2\n"},
		{"type", ":00000009F7\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			var serr *SyntaxError
			require.True(t, errors.As(err, &serr), "got %v", err)
			assert.Equal(t, 1, serr.Line)
		})
	}
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse(strings.NewReader("not a hex file\n:00000001FF\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "radio.ihx")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	img, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, img.Segments, 3)

	_, err = Load(filepath.Join(dir, "missing.ihx"))
	assert.Error(t, err)
}
