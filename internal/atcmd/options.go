package atcmd

import (
	"time"

	"github.com/rs/zerolog"

	"sik-flasher/internal/clock"
)

// Timing holds the protocol timing windows.
type Timing struct {
	// EchoTimeout bounds each line read: the echo and single-line replies.
	EchoTimeout time.Duration

	// CollectWindow is the minimum time spent gathering a multi-line reply.
	CollectWindow time.Duration

	// GuardTime is the silence required around the escape sequence.
	GuardTime time.Duration

	// EscapeGap separates the individual escape characters.
	EscapeGap time.Duration

	// EscapeAttempts bounds how many escape sequences are sent.
	EscapeAttempts int

	// Retries is how many times an exchange is repeated after a bad echo
	// or an empty single-line reply.
	Retries int
}

// DefaultTiming returns the timings SiK firmware expects.
func DefaultTiming() Timing {
	return Timing{
		EchoTimeout:    1000 * time.Millisecond,
		CollectWindow:  1000 * time.Millisecond,
		GuardTime:      1500 * time.Millisecond,
		EscapeGap:      200 * time.Millisecond,
		EscapeAttempts: 3,
		Retries:        1,
	}
}

type options struct {
	timing   Timing
	clock    clock.Clock
	log      zerolog.Logger
	logLevel zerolog.Level
}

func defaultOptions() options {
	return options{
		timing:   DefaultTiming(),
		clock:    clock.Real{},
		log:      zerolog.Nop(),
		logLevel: zerolog.DebugLevel,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures a Channel or Negotiator.
type Option func(*options)

// WithTiming replaces the protocol timings.
func WithTiming(t Timing) Option {
	return func(o *options) {
		if t.EscapeAttempts < 1 {
			t.EscapeAttempts = 1
		}
		if t.Retries < 0 {
			t.Retries = 0
		}
		o.timing = t
	}
}

// WithClock sets the clock used for every deadline and guard interval.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the logger exchanges are reported to.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithLogLevel sets the level at which each exchange is logged.
func WithLogLevel(level zerolog.Level) Option {
	return func(o *options) {
		o.logLevel = level
	}
}
