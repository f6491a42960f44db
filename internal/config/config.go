// Package config loads and saves the flasher settings file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"sik-flasher/internal/atcmd"
	"sik-flasher/internal/bootloader"
	"sik-flasher/internal/session"
)

// DefaultBaud is the rate SiK firmware ships with.
const DefaultBaud = 57600

// Config is the settings file.
type Config struct {
	Port         string `yaml:"port"`
	Baud         int    `yaml:"baud"`
	Verbosity    int    `yaml:"verbosity"`
	LastFirmware string `yaml:"last_firmware,omitempty"`
	LastParams   string `yaml:"last_params,omitempty"`
	Timing       Timing `yaml:"timing"`
}

// Timing holds the link timings. Durations are written as "1.5s", "200ms".
type Timing struct {
	EchoTimeout    time.Duration `yaml:"echo_timeout"`
	CollectWindow  time.Duration `yaml:"collect_window"`
	GuardTime      time.Duration `yaml:"guard_time"`
	EscapeGap      time.Duration `yaml:"escape_gap"`
	Settle         time.Duration `yaml:"settle"`
	BootloaderBaud int           `yaml:"bootloader_baud"`
	EscapeAttempts int           `yaml:"escape_attempts"`
	Retries        int           `yaml:"retries"`
}

// Defaults returns the built-in settings.
func Defaults() *Config {
	t := atcmd.DefaultTiming()
	return &Config{
		Baud: DefaultBaud,
		Timing: Timing{
			EchoTimeout:    t.EchoTimeout,
			CollectWindow:  t.CollectWindow,
			GuardTime:      t.GuardTime,
			EscapeGap:      t.EscapeGap,
			Settle:         700 * time.Millisecond,
			BootloaderBaud: bootloader.BaudRate,
			EscapeAttempts: t.EscapeAttempts,
			Retries:        t.Retries,
		},
	}
}

// DefaultPath is settings.yaml under the user configuration directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "settings.yaml"
	}
	return filepath.Join(dir, "sikflash", "settings.yaml")
}

// Load reads the settings at path over the defaults. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save validates cfg and writes it to path, creating the directory.
func Save(cfg *Config, path string) error {
	if err := Validate(cfg); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// Command is the command layer part of the timings.
func (t Timing) Command() atcmd.Timing {
	return atcmd.Timing{
		EchoTimeout:    t.EchoTimeout,
		CollectWindow:  t.CollectWindow,
		GuardTime:      t.GuardTime,
		EscapeGap:      t.EscapeGap,
		EscapeAttempts: t.EscapeAttempts,
		Retries:        t.Retries,
	}
}

// SessionOptions configures a session flow from the settings.
func (c *Config) SessionOptions() []session.Option {
	return []session.Option{
		session.WithTiming(c.Timing.Command()),
		session.WithBootloaderBaud(c.Timing.BootloaderBaud),
		session.WithSettle(c.Timing.Settle),
	}
}
