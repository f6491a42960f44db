// Package session runs complete flows against a radio: bringing it into its
// bootloader for a firmware update, and pushing or reading back its
// configuration parameters. Each flow owns its link from open to close.
package session

import (
	"time"

	"github.com/rs/zerolog"

	"sik-flasher/internal/atcmd"
	"sik-flasher/internal/bootloader"
	"sik-flasher/internal/clock"
	"sik-flasher/internal/link"
)

// Config holds the session settings.
type Config struct {
	// Timing is passed to the command layer.
	Timing atcmd.Timing

	// BootloaderBaud is the rate the bootloader listens at.
	BootloaderBaud int

	// Settle is the pause between the update trigger and the baud change.
	Settle time.Duration

	// ExchangeLevel is the level command exchanges are logged at.
	ExchangeLevel zerolog.Level

	Opener link.Opener
	Clock  clock.Clock
	Logger zerolog.Logger
}

func defaultConfig() Config {
	return Config{
		Timing:         atcmd.DefaultTiming(),
		BootloaderBaud: bootloader.BaudRate,
		Settle:         700 * time.Millisecond,
		ExchangeLevel:  zerolog.DebugLevel,
		Opener:         link.OpenLink,
		Clock:          clock.Real{},
		Logger:         zerolog.Nop(),
	}
}

func buildConfig(opts []Option) Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// commandOptions configures the command layer the same way as the session.
func (c Config) commandOptions() []atcmd.Option {
	return []atcmd.Option{
		atcmd.WithTiming(c.Timing),
		atcmd.WithClock(c.Clock),
		atcmd.WithLogger(c.Logger),
		atcmd.WithLogLevel(c.ExchangeLevel),
	}
}

// Option configures an Updater or Pusher.
type Option func(*Config)

// WithTiming sets the command layer timings.
func WithTiming(t atcmd.Timing) Option {
	return func(c *Config) { c.Timing = t }
}

// WithBootloaderBaud sets the bootloader baud rate.
func WithBootloaderBaud(baud int) Option {
	return func(c *Config) {
		if baud > 0 {
			c.BootloaderBaud = baud
		}
	}
}

// WithSettle sets the pause after the update trigger.
func WithSettle(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.Settle = d
		}
	}
}

// WithOpener sets how links are opened.
func WithOpener(o link.Opener) Option {
	return func(c *Config) {
		if o != nil {
			c.Opener = o
		}
	}
}

// WithClock sets the clock for every wait in the session.
func WithClock(clk clock.Clock) Option {
	return func(c *Config) {
		if clk != nil {
			c.Clock = clk
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithExchangeLevel sets the level command exchanges are logged at.
func WithExchangeLevel(level zerolog.Level) Option {
	return func(c *Config) { c.ExchangeLevel = level }
}
