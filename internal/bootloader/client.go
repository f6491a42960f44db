package bootloader

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"sik-flasher/internal/clock"
	"sik-flasher/internal/ihex"
	"sik-flasher/internal/link"
)

// ProgressFunc receives the completed fraction of an upload, 0 to 1.
type ProgressFunc func(completed float64)

// Config holds the client settings.
type Config struct {
	// Timeout bounds each reply byte.
	Timeout time.Duration

	// EraseTimeout bounds the reply to an erase command.
	EraseTimeout time.Duration

	// SyncAttempts is how many GET_SYNC rounds Sync tries.
	SyncAttempts int

	Clock  clock.Clock
	Logger zerolog.Logger
}

func defaultConfig() Config {
	return Config{
		Timeout:      500 * time.Millisecond,
		EraseTimeout: 20 * time.Second,
		SyncAttempts: 3,
		Clock:        clock.Real{},
		Logger:       zerolog.Nop(),
	}
}

// Option configures a Client.
type Option func(*Config)

// WithClock sets the clock used for reply deadlines.
func WithClock(c clock.Clock) Option {
	return func(cfg *Config) {
		if c != nil {
			cfg.Clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(cfg *Config) {
		cfg.Logger = l
	}
}

// WithTimeout sets the per-byte reply timeout.
func WithTimeout(d time.Duration) Option {
	return func(cfg *Config) {
		if d > 0 {
			cfg.Timeout = d
		}
	}
}

// WithSyncAttempts sets how many GET_SYNC rounds Sync tries.
func WithSyncAttempts(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.SyncAttempts = n
		}
	}
}

// Client talks to a radio whose bootloader is running.
type Client struct {
	cfg Config
}

// New returns a Client.
func New(opts ...Option) *Client {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Client{cfg: cfg}
}

// Sync checks that the bootloader is answering.
func (c *Client) Sync(p link.Port) error {
	var err error
	for attempt := 1; attempt <= c.cfg.SyncAttempts; attempt++ {
		if err = p.Discard(); err != nil {
			return fmt.Errorf("discard: %w", err)
		}
		if err = c.send(p, GetSync, EOC); err != nil {
			return err
		}
		if err = c.getSync(p, c.cfg.Timeout); err == nil {
			c.cfg.Logger.Debug().Int("attempt", attempt).Msg("bootloader in sync")
			return nil
		}
		c.cfg.Logger.Debug().Err(err).Int("attempt", attempt).Msg("bootloader sync failed")
	}
	return fmt.Errorf("sync: %w", err)
}

// DeviceInfo asks the bootloader for the board type and frequency band.
func (c *Client) DeviceInfo(p link.Port) (Board, Frequency, error) {
	if err := c.send(p, GetDevice, EOC); err != nil {
		return 0, 0, err
	}
	board, err := c.recv(p, c.cfg.Timeout)
	if err != nil {
		return 0, 0, fmt.Errorf("device id: %w", err)
	}
	freq, err := c.recv(p, c.cfg.Timeout)
	if err != nil {
		return 0, 0, fmt.Errorf("device frequency: %w", err)
	}
	if err := c.getSync(p, c.cfg.Timeout); err != nil {
		return 0, 0, fmt.Errorf("device info: %w", err)
	}
	return Board(board), Frequency(freq), nil
}

// Upload erases the radio, programs img, reads it back to verify, and
// reboots into the new firmware.
func (c *Client) Upload(p link.Port, img *ihex.Image, onProgress ProgressFunc) error {
	for _, seg := range img.Segments {
		if seg.Address+uint32(len(seg.Data)) > 0x10000 {
			return &AddressError{Address: seg.Address}
		}
	}

	total := 2 * img.Size()
	done := 0
	report := func(n int) {
		done += n
		if onProgress != nil && total > 0 {
			onProgress(float64(done) / float64(total))
		}
	}

	log := c.cfg.Logger
	log.Info().Int("bytes", img.Size()).Int("segments", len(img.Segments)).Msg("erasing")
	if err := c.erase(p); err != nil {
		return err
	}

	log.Info().Msg("programming")
	for _, seg := range img.Segments {
		if err := c.setAddress(p, seg.Address); err != nil {
			return err
		}
		for _, chunk := range split(seg.Data, ProgMultiMax) {
			if err := c.programMulti(p, chunk); err != nil {
				return fmt.Errorf("program 0x%04X: %w", seg.Address, err)
			}
			report(len(chunk))
		}
	}

	log.Info().Msg("verifying")
	for _, seg := range img.Segments {
		if err := c.setAddress(p, seg.Address); err != nil {
			return err
		}
		addr := seg.Address
		for _, chunk := range split(seg.Data, ReadMultiMax) {
			if err := c.verifyMulti(p, addr, chunk); err != nil {
				return err
			}
			addr += uint32(len(chunk))
			report(len(chunk))
		}
	}

	log.Info().Msg("rebooting")
	return c.send(p, Reboot)
}

func (c *Client) erase(p link.Port) error {
	if err := c.send(p, ChipErase, EOC); err != nil {
		return err
	}
	if err := c.getSync(p, c.cfg.EraseTimeout); err != nil {
		return fmt.Errorf("chip erase: %w", err)
	}
	if err := c.send(p, ParamErase, EOC); err != nil {
		return err
	}
	if err := c.getSync(p, c.cfg.EraseTimeout); err != nil {
		return fmt.Errorf("parameter erase: %w", err)
	}
	return nil
}

func (c *Client) setAddress(p link.Port, addr uint32) error {
	if err := c.send(p, LoadAddress, byte(addr), byte(addr>>8), EOC); err != nil {
		return err
	}
	if err := c.getSync(p, c.cfg.Timeout); err != nil {
		return fmt.Errorf("load address 0x%04X: %w", addr, err)
	}
	return nil
}

func (c *Client) programMulti(p link.Port, data []byte) error {
	frame := make([]byte, 0, len(data)+3)
	frame = append(frame, ProgMulti, byte(len(data)))
	frame = append(frame, data...)
	frame = append(frame, EOC)
	if err := c.send(p, frame...); err != nil {
		return err
	}
	return c.getSync(p, c.cfg.Timeout)
}

func (c *Client) verifyMulti(p link.Port, addr uint32, want []byte) error {
	if err := c.send(p, ReadMulti, byte(len(want)), EOC); err != nil {
		return err
	}
	for i, w := range want {
		got, err := c.recv(p, c.cfg.Timeout)
		if err != nil {
			return fmt.Errorf("read back 0x%04X: %w", addr+uint32(i), err)
		}
		if got != w {
			return &VerifyError{Address: addr + uint32(i), Want: w, Got: got}
		}
	}
	return c.getSync(p, c.cfg.Timeout)
}

func (c *Client) send(p link.Port, frame ...byte) error {
	if _, err := p.Write(frame); err != nil {
		return fmt.Errorf("write command 0x%02X: %w", frame[0], err)
	}
	return nil
}

func (c *Client) getSync(p link.Port, timeout time.Duration) error {
	b, err := c.recv(p, timeout)
	if err != nil {
		return err
	}
	if b != INSYNC {
		return &SyncError{Want: INSYNC, Got: b}
	}
	b, err = c.recv(p, timeout)
	if err != nil {
		return err
	}
	switch b {
	case OK:
		return nil
	case FAILED:
		return ErrFailed
	default:
		return &SyncError{Want: OK, Got: b}
	}
}

// recv waits up to timeout for one byte.
func (c *Client) recv(p link.Port, timeout time.Duration) (byte, error) {
	clk := c.cfg.Clock
	deadline := clk.Now().Add(timeout)
	for {
		b, err := p.ReadByte()
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, link.ErrNoData) {
			return 0, err
		}
		if !clk.Now().Before(deadline) {
			return 0, ErrTimeout
		}
		clk.Sleep(time.Millisecond)
	}
}

func split(data []byte, size int) [][]byte {
	var out [][]byte
	for len(data) > size {
		out = append(out, data[:size])
		data = data[size:]
	}
	if len(data) > 0 {
		out = append(out, data)
	}
	return out
}
