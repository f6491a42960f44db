package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 57600, cfg.Baud)
	assert.Equal(t, 115200, cfg.Timing.BootloaderBaud)
	assert.Equal(t, 1500*time.Millisecond, cfg.Timing.GuardTime)
	assert.Equal(t, 200*time.Millisecond, cfg.Timing.EscapeGap)
	assert.Equal(t, 3, cfg.Timing.EscapeAttempts)
	assert.Equal(t, 1, cfg.Timing.Retries)
	assert.NoError(t, Validate(cfg))
}

func TestLoadMissingReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	content := `
port: /dev/ttyUSB1
baud: 115200
verbosity: 2
timing:
  guard_time: 2s
  escape_gap: 250ms
  retries: 0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB1", cfg.Port)
	assert.Equal(t, 115200, cfg.Baud)
	assert.Equal(t, 2, cfg.Verbosity)
	assert.Equal(t, 2*time.Second, cfg.Timing.GuardTime)
	assert.Equal(t, 250*time.Millisecond, cfg.Timing.EscapeGap)
	assert.Equal(t, 0, cfg.Timing.Retries)
	// untouched keys keep their defaults
	assert.Equal(t, time.Second, cfg.Timing.EchoTimeout)
	assert.Equal(t, 3, cfg.Timing.EscapeAttempts)
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	content := `
baud: 0
timing:
  escape_attempts: 0
  settle: -1s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := Load(path)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 3)
	assert.Contains(t, err.Error(), "baud must be positive")
	assert.Contains(t, err.Error(), "timing.settle")
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [unclosed\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse settings")
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")

	cfg := Defaults()
	cfg.Port = "COM4"
	cfg.LastFirmware = "radio~hm_trp.ihx"
	cfg.Timing.Settle = 900 * time.Millisecond
	require.NoError(t, Save(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "settle: 900ms")

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestSaveRejectsInvalid(t *testing.T) {
	cfg := Defaults()
	cfg.Timing.Retries = -1

	err := Save(cfg, filepath.Join(t.TempDir(), "settings.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timing.retries")
}

func TestValidateRetryBound(t *testing.T) {
	tests := []struct {
		retries int
		ok      bool
	}{
		{-1, false},
		{0, true},
		{1, true},
		{2, false},
		{5, false},
	}
	for _, tt := range tests {
		cfg := Defaults()
		cfg.Timing.Retries = tt.retries
		err := Validate(cfg)
		if tt.ok {
			assert.NoError(t, err, "retries %d", tt.retries)
			continue
		}
		require.Error(t, err, "retries %d", tt.retries)
		assert.Contains(t, err.Error(), "timing.retries")
	}
}

func TestLoadRejectsExtraRetries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timing:\n  retries: 5\n"), 0o600))

	_, err := Load(path)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, err.Error(), "between 0 and 1")
}

func TestTimingCommand(t *testing.T) {
	cfg := Defaults()
	cfg.Timing.EchoTimeout = 2 * time.Second
	cfg.Timing.Retries = 0

	ct := cfg.Timing.Command()
	assert.Equal(t, 2*time.Second, ct.EchoTimeout)
	assert.Equal(t, 0, ct.Retries)
	assert.Equal(t, cfg.Timing.GuardTime, ct.GuardTime)
	assert.Len(t, cfg.SessionOptions(), 3)
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	assert.True(t, strings.HasSuffix(DefaultPath(), filepath.Join("sikflash", "settings.yaml")))
}
