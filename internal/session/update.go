package session

import (
	"fmt"
	"io"

	"sik-flasher/internal/atcmd"
	"sik-flasher/internal/bootloader"
	"sik-flasher/internal/ihex"
	"sik-flasher/internal/link"
)

// updateTrigger switches SiK firmware into its bootloader.
const updateTrigger = "AT&UPDATE"

// Bootloader is the image transfer side of an update.
type Bootloader interface {
	Sync(p link.Port) error
	DeviceInfo(p link.Port) (bootloader.Board, bootloader.Frequency, error)
	Upload(p link.Port, img *ihex.Image, onProgress bootloader.ProgressFunc) error
}

// ImageLoader reads a firmware image from path.
type ImageLoader func(path string) (*ihex.Image, error)

// Updater brings a radio into its bootloader and flashes new firmware.
type Updater struct {
	cfg   Config
	boot  Bootloader
	load  ImageLoader
	link  link.Link
	state State
}

// NewUpdater returns an Updater that transfers images through boot and
// reads them with load.
func NewUpdater(boot Bootloader, load ImageLoader, opts ...Option) *Updater {
	return &Updater{
		cfg:  buildConfig(opts),
		boot: boot,
		load: load,
	}
}

// State is the current session state.
func (u *Updater) State() State { return u.state }

// Link is the link currently in use. PrepareForUpdate may replace the one it
// was given.
func (u *Updater) Link() link.Link { return u.link }

func (u *Updater) setState(s State) {
	if s == u.state {
		return
	}
	u.cfg.Logger.Info().Stringer("from", u.state).Stringer("to", s).Msg("session state")
	u.state = s
}

// Run flashes the image at imagePath onto the radio at portName. The port
// is opened at the bootloader rate; preferredBaud is used if the radio
// turns out to be running its normal firmware. The link is closed before
// Run returns.
func (u *Updater) Run(portName string, preferredBaud int, imagePath string, onProgress bootloader.ProgressFunc) error {
	log := u.cfg.Logger

	l, err := u.cfg.Opener(portName, u.cfg.BootloaderBaud)
	if err != nil {
		u.setState(Failed)
		return &LinkOpenError{Port: portName, Baud: u.cfg.BootloaderBaud, Err: err}
	}
	defer u.close()

	if err := u.PrepareForUpdate(l, preferredBaud); err != nil {
		return err
	}

	board, freq, err := u.boot.DeviceInfo(u.link)
	if err != nil {
		log.Warn().Err(err).Msg("could not read device info")
	} else {
		log.Info().Stringer("board", board).Stringer("frequency", freq).Msg("device")
	}

	img, err := u.load(imagePath)
	if err != nil {
		u.setState(Failed)
		return &ImageError{Path: imagePath, Err: err}
	}

	if err := u.boot.Upload(u.link, img, onProgress); err != nil {
		u.setState(Failed)
		return &TransferError{Err: err}
	}

	log.Info().Msg("upload complete")
	return nil
}

// PrepareForUpdate takes a link opened at the bootloader rate and leaves the
// radio in its bootloader. It first tries the bootloader directly; failing
// that it reopens the link at a fallback rate, confirms SiK firmware with a
// handshake, and sends the update trigger. The trigger is never sent to a
// radio that did not identify itself.
func (u *Updater) PrepareForUpdate(l link.Link, preferredBaud int) error {
	log := u.cfg.Logger
	u.link = l
	u.state = Unknown

	log.Info().Msg("trying bootloader mode")
	err := u.boot.Sync(u.link)
	if err == nil {
		u.setState(BootloaderMode)
		return nil
	}
	log.Info().Err(err).Msg("no bootloader answer")

	if err := u.reopen(preferredBaud); err != nil {
		u.setState(Failed)
		return err
	}

	log.Info().Int("baud", u.link.Baud()).Msg("trying firmware mode")
	neg := atcmd.NewNegotiator(u.link, u.cfg.commandOptions()...)
	id, ok := neg.Connect()
	if !ok {
		u.setState(Failed)
		return ErrHandshakeFailed
	}
	log.Info().Str("version", id.Version).Str("board", id.Board).Msg("radio identified")
	u.setState(CommandMode)

	if err := u.enterBootloader(); err != nil {
		u.setState(Failed)
		return err
	}
	u.setState(BootloaderMode)
	return nil
}

// reopen closes the link and opens it again at the rate the firmware is
// expected to be listening at.
func (u *Updater) reopen(preferredBaud int) error {
	log := u.cfg.Logger
	name := u.link.Name()

	if err := u.link.Close(); err != nil {
		log.Warn().Err(err).Msg("close before reopen")
	}

	baud := preferredBaud
	if u.link.IsOpen() {
		baud = u.link.Baud()
	}

	l, err := u.cfg.Opener(name, baud)
	if err != nil {
		log.Error().Err(err).Msg("error opening port")
		return &LinkOpenError{Port: name, Baud: baud, Err: err}
	}
	u.link = l
	return nil
}

// enterBootloader sends the update trigger to a radio in command mode and
// follows it to the bootloader rate.
func (u *Updater) enterBootloader() error {
	log := u.cfg.Logger

	if _, err := io.WriteString(u.link, updateTrigger+"\r\n"); err != nil {
		log.Warn().Err(err).Msg("write update trigger")
	}
	left, err := link.ReadAvailable(u.link, 256)
	if err != nil {
		log.Warn().Err(err).Msg("drain after update trigger")
	}
	log.Debug().Str("response", string(left)).Msg("update trigger sent")

	u.cfg.Clock.Sleep(u.cfg.Settle)

	if err := u.link.SetBaudRate(u.cfg.BootloaderBaud); err != nil {
		return fmt.Errorf("switch to bootloader baud: %w", err)
	}

	if err := u.boot.Sync(u.link); err != nil {
		log.Error().Err(err).Msg("failed to sync with radio")
		return fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}
	return nil
}

func (u *Updater) close() {
	if u.link == nil || !u.link.IsOpen() {
		return
	}
	if err := u.link.Close(); err != nil {
		u.cfg.Logger.Warn().Err(err).Msg("close link")
	}
}
