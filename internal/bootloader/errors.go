package bootloader

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout means the bootloader did not answer in time.
	ErrTimeout = errors.New("bootloader timeout")

	// ErrFailed means the bootloader answered FAILED.
	ErrFailed = errors.New("bootloader reported failure")
)

// SyncError reports an unexpected byte where INSYNC or OK was due.
type SyncError struct {
	Want byte
	Got  byte
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("lost sync: expected 0x%02X, got 0x%02X", e.Want, e.Got)
}

// VerifyError reports flash contents that differ from the image.
type VerifyError struct {
	Address uint32
	Want    byte
	Got     byte
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verify failed at 0x%04X: expected 0x%02X, got 0x%02X",
		e.Address, e.Want, e.Got)
}

// AddressError reports a segment the bootloader cannot address.
type AddressError struct {
	Address uint32
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("address 0x%X is outside the 16-bit flash range", e.Address)
}
