package session

import (
	"errors"
	"fmt"

	"sik-flasher/internal/link"
)

var (
	// ErrHandshakeFailed means no SiK identity was obtained in command mode.
	ErrHandshakeFailed = errors.New("failed to identify radio")

	// ErrSyncFailed means the bootloader did not answer after the mode switch.
	ErrSyncFailed = errors.New("failed to sync with radio bootloader")
)

// LinkOpenError reports a port that could not be opened.
type LinkOpenError struct {
	Port string
	Baud int
	Err  error
}

func (e *LinkOpenError) Error() string {
	return fmt.Sprintf("invalid port or in use %s, %d: %s", e.Port, e.Baud, link.Reason(e.Err))
}

func (e *LinkOpenError) Unwrap() error { return e.Err }

// ImageError reports a firmware file that could not be loaded.
type ImageError struct {
	Path string
	Err  error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("bad firmware file %s: %v", e.Path, e.Err)
}

func (e *ImageError) Unwrap() error { return e.Err }

// TransferError reports a failed upload.
type TransferError struct {
	Err error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("upload failed: %v", e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }
