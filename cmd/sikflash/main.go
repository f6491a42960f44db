package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"sik-flasher/internal/bootloader"
	"sik-flasher/internal/clock"
	"sik-flasher/internal/config"
	"sik-flasher/internal/ihex"
	"sik-flasher/internal/link"
	"sik-flasher/internal/logging"
	"sik-flasher/internal/session"
)

// app holds what main wires to the real system.
type app struct {
	stdout io.Writer
	stderr io.Writer
	ports  func() []string
	opener link.Opener
	clock  clock.Clock
}

type flags struct {
	port      string
	firmware  string
	params    string
	dump      string
	baud      int
	verbosity int
	settings  string
}

func main() {
	a := &app{
		stdout: os.Stdout,
		stderr: os.Stderr,
		ports:  link.Ports,
		opener: link.OpenLink,
		clock:  clock.Real{},
	}
	os.Exit(a.run(os.Args[1:]))
}

func (a *app) run(args []string) int {
	if len(args) == 0 {
		a.showUsage()
		return 0
	}

	var f flags
	fs := flag.NewFlagSet("sikflash", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&f.port, "port", "", "serial port")
	fs.StringVar(&f.firmware, "f", "", "firmware image")
	fs.StringVar(&f.params, "c", "", "parameter file")
	fs.StringVar(&f.dump, "dump", "", "parameter dump file")
	fs.IntVar(&f.baud, "b", config.DefaultBaud, "baud rate")
	fs.IntVar(&f.verbosity, "v", 0, "verbosity")
	fs.StringVar(&f.settings, "settings", config.DefaultPath(), "settings file")

	if err := fs.Parse(args); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(a.stdout, "Error: %v\n\n", err)
		}
		a.showUsage()
		return 0
	}

	cfg, err := config.Load(f.settings)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "port":
			cfg.Port = f.port
		case "b":
			cfg.Baud = f.baud
		case "v":
			cfg.Verbosity = f.verbosity
		}
	})
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}

	if cfg.Port == "" {
		fmt.Fprintln(a.stdout, "Error: no serial port given")
		fmt.Fprintln(a.stdout)
		a.showUsage()
		return 0
	}
	if f.firmware == "" && f.params == "" && f.dump == "" {
		fmt.Fprintln(a.stdout, "Nothing to do: give -f, -c or -dump")
		fmt.Fprintln(a.stdout)
		a.showUsage()
		return 0
	}

	log := logging.New(a.stderr, cfg.Verbosity)
	opts := append(cfg.SessionOptions(),
		session.WithOpener(a.opener),
		session.WithClock(a.clock),
		session.WithLogger(log),
	)
	if cfg.Verbosity > 1 {
		opts = append(opts, session.WithExchangeLevel(zerolog.InfoLevel))
	}

	if f.firmware != "" {
		if err := a.flash(cfg, f.firmware, log, opts); err != nil {
			fmt.Fprintf(a.stderr, "Firmware update failed: %v\n", err)
			return 1
		}
		cfg.LastFirmware = f.firmware
	}

	pusher := session.NewPusher(opts...)
	if f.params != "" {
		fmt.Fprintf(a.stdout, "Writing parameters from %s\n", f.params)
		if err := pusher.PushFile(cfg.Port, cfg.Baud, f.params); err != nil {
			fmt.Fprintf(a.stderr, "Parameter update failed: %v\n", err)
			return 1
		}
		fmt.Fprintln(a.stdout, "Parameters saved, radio rebooting")
		cfg.LastParams = f.params
	}

	if f.dump != "" {
		if err := pusher.DumpFile(cfg.Port, cfg.Baud, f.dump); err != nil {
			fmt.Fprintf(a.stderr, "Parameter dump failed: %v\n", err)
			return 1
		}
		fmt.Fprintf(a.stdout, "Parameters written to %s\n", f.dump)
	}

	if err := config.Save(cfg, f.settings); err != nil {
		log.Warn().Err(err).Str("path", f.settings).Msg("could not save settings")
	}
	return 0
}

func (a *app) flash(cfg *config.Config, firmware string, log zerolog.Logger, opts []session.Option) error {
	boot := bootloader.New(
		bootloader.WithClock(a.clock),
		bootloader.WithLogger(log),
	)
	u := session.NewUpdater(boot, ihex.Load, opts...)

	fmt.Fprintf(a.stdout, "Selected port: %s\n", cfg.Port)
	fmt.Fprintf(a.stdout, "Firmware file: %s\n", firmware)

	last := -1
	err := u.Run(cfg.Port, cfg.Baud, firmware, func(done float64) {
		pct := int(done * 100)
		if pct != last {
			last = pct
			fmt.Fprintf(a.stdout, "\rProgress: %3d%%", pct)
		}
	})
	if last >= 0 {
		fmt.Fprintln(a.stdout)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, "Update completed successfully!")
	return nil
}

func (a *app) showUsage() {
	w := a.stdout
	fmt.Fprintf(w, "Usage: %s -port <port> [options]\n", os.Args[0])
	fmt.Fprintln(w, "\nOptions:")
	fmt.Fprintln(w, "  -port PORT      Serial port (e.g., /dev/ttyUSB0, COM3)")
	fmt.Fprintln(w, "  -f FILE         Firmware image to flash (.ihx, .hex)")
	fmt.Fprintln(w, "  -c FILE         Parameter file to write to the radio")
	fmt.Fprintln(w, "  -dump FILE      Read the radio's parameters into FILE")
	fmt.Fprintf(w, "  -b BAUD         Baud rate of the radio firmware (default %d)\n", config.DefaultBaud)
	fmt.Fprintln(w, "  -settings FILE  Settings file")
	fmt.Fprintln(w, "  -v N            Verbosity: 1 debug, 2 trace")
	fmt.Fprintln(w, "  -h              Show this help")
	fmt.Fprintln(w, "\nExamples:")
	fmt.Fprintf(w, "  %s -port /dev/ttyUSB0 -f radio~rfd900a.ihx\n", os.Args[0])
	fmt.Fprintf(w, "  %s -port COM3 -b 115200 -c radio.param\n", os.Args[0])
	fmt.Fprintln(w, "\nAvailable serial ports:")

	for _, port := range a.ports() {
		fmt.Fprintf(w, "  %s\n", port)
	}
}
