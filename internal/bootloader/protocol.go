// Package bootloader drives the SiK radio bootloader: synchronisation,
// board identification, and the erase/program/verify cycle for a firmware
// image.
package bootloader

import "fmt"

// Bootloader protocol bytes.
const (
	OK          = 0x10
	FAILED      = 0x11
	INSYNC      = 0x12
	EOC         = 0x20
	GetSync     = 0x21
	GetDevice   = 0x22
	ChipErase   = 0x23
	LoadAddress = 0x24
	ProgMulti   = 0x27
	ReadMulti   = 0x28
	ParamErase  = 0x29
	Reboot      = 0x30

	ProgMultiMax = 32
	ReadMultiMax = 255
)

// BaudRate is the fixed rate the bootloader listens at.
const BaudRate = 115200

// Board identifies the radio hardware.
type Board byte

const (
	BoardRFD900  Board = 0x42
	BoardRFD900A Board = 0x43
	BoardRF50    Board = 0x4d
	BoardHMTRP   Board = 0x4e
	BoardRFD900U Board = 0x80
	BoardRFD900P Board = 0x81
)

func (b Board) String() string {
	switch b {
	case BoardRFD900:
		return "RFD900"
	case BoardRFD900A:
		return "RFD900A"
	case BoardRF50:
		return "RF50"
	case BoardHMTRP:
		return "HM-TRP"
	case BoardRFD900U:
		return "RFD900U"
	case BoardRFD900P:
		return "RFD900P"
	default:
		return fmt.Sprintf("board 0x%02X", byte(b))
	}
}

// Frequency is the radio's band.
type Frequency byte

const (
	Freq433  Frequency = 0x43
	Freq470  Frequency = 0x47
	Freq868  Frequency = 0x86
	Freq915  Frequency = 0x91
	FreqNone Frequency = 0xf0
)

func (f Frequency) String() string {
	switch f {
	case Freq433:
		return "433MHz"
	case Freq470:
		return "470MHz"
	case Freq868:
		return "868MHz"
	case Freq915:
		return "915MHz"
	case FreqNone:
		return "none"
	default:
		return fmt.Sprintf("frequency 0x%02X", byte(f))
	}
}
