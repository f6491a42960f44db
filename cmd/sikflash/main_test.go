package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sik-flasher/internal/clock"
	"sik-flasher/internal/config"
	"sik-flasher/internal/link/linktest"
	"sik-flasher/internal/params"
)

func newTestApp(r *linktest.Radio) (*app, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	a := &app{
		stdout: &stdout,
		stderr: &stderr,
		ports:  func() []string { return []string{"/dev/ttyUSB0", "/dev/ttyUSB1"} },
		opener: r.Opener(),
		clock:  clock.NewFake(),
	}
	return a, &stdout, &stderr
}

func TestUsage(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no arguments", nil},
		{"help", []string{"-h"}},
		{"unknown flag", []string{"-bogus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, stdout, _ := newTestApp(linktest.NewRadio("", 0))
			assert.Equal(t, 0, a.run(tt.args))
			assert.Contains(t, stdout.String(), "Usage:")
			assert.Contains(t, stdout.String(), "Available serial ports:")
			assert.Contains(t, stdout.String(), "  /dev/ttyUSB1\n")
		})
	}
}

func TestMissingPort(t *testing.T) {
	a, stdout, _ := newTestApp(linktest.NewRadio("", 0))
	settings := filepath.Join(t.TempDir(), "settings.yaml")

	assert.Equal(t, 0, a.run([]string{"-settings", settings, "-c", "radio.param"}))
	assert.Contains(t, stdout.String(), "no serial port")
	assert.Contains(t, stdout.String(), "Usage:")
}

func TestPushParameters(t *testing.T) {
	dir := t.TempDir()
	paramPath := filepath.Join(dir, "radio.param")
	settings := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(paramPath, []byte("S0:FORMAT=25\nS1:SERIAL_SPEED=57\nS3:TXPOWER=20\n"), 0o644))

	r := linktest.NewRadio("", 0)
	a, stdout, stderr := newTestApp(r)

	code := a.run([]string{"-port", "/dev/ttyUSB0", "-b", "57600", "-settings", settings, "-c", paramPath})
	require.Equal(t, 0, code, stderr.String())

	assert.Equal(t, 57600, r.Baud())
	assert.Equal(t, 1, r.Count("ATS1=57"))
	assert.Equal(t, 1, r.Count("ATS3=20"))
	assert.Equal(t, 1, r.Count("AT&W"))
	assert.Contains(t, stdout.String(), "Parameters saved")

	cfg, err := config.Load(settings)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Port)
	assert.Equal(t, paramPath, cfg.LastParams)
}

func TestPortFromSettings(t *testing.T) {
	dir := t.TempDir()
	settings := filepath.Join(dir, "settings.yaml")
	cfg := config.Defaults()
	cfg.Port = "/dev/ttyUSB1"
	require.NoError(t, config.Save(cfg, settings))

	r := linktest.NewRadio("", 0)
	r.Responses["ATI5"] = "S1:SERIAL_SPEED=57\r\nS2:AIR_SPEED=64"
	a, _, stderr := newTestApp(r)

	dump := filepath.Join(dir, "dump.param")
	require.Equal(t, 0, a.run([]string{"-settings", settings, "-dump", dump}), stderr.String())
	assert.Equal(t, "/dev/ttyUSB1", r.Name())

	set, err := params.Load(dump)
	require.NoError(t, err)
	assert.Equal(t, []string{"S1", "S2"}, set.Names())
}

func TestPushFailureExitsNonZero(t *testing.T) {
	dir := t.TempDir()
	paramPath := filepath.Join(dir, "radio.param")
	require.NoError(t, os.WriteFile(paramPath, []byte("S1:SERIAL_SPEED=57\n"), 0o644))

	r := linktest.NewRadio("", 0)
	r.Identity = "not a radio"
	a, _, stderr := newTestApp(r)

	code := a.run([]string{"-port", "/dev/ttyUSB0", "-settings", filepath.Join(dir, "s.yaml"), "-c", paramPath})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "Parameter update failed")
	assert.Zero(t, r.Count("ATS1=57"))
}

func TestInvalidBaud(t *testing.T) {
	a, _, stderr := newTestApp(linktest.NewRadio("", 0))
	settings := filepath.Join(t.TempDir(), "settings.yaml")

	assert.Equal(t, 1, a.run([]string{"-settings", settings, "-port", "COM3", "-b", "0", "-c", "x"}))
	assert.Contains(t, stderr.String(), "baud must be positive")
}
