// Package ihex loads Intel HEX firmware images.
package ihex

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

const (
	recData         = 0x00
	recEOF          = 0x01
	recExtSegment   = 0x02
	recStartSegment = 0x03
	recExtLinear    = 0x04
	recStartLinear  = 0x05
	minRecordChars  = 11
)

// Segment is a run of contiguous bytes starting at Address.
type Segment struct {
	Address uint32
	Data    []byte
}

// Image is a firmware image as a sorted list of non-overlapping segments.
type Image struct {
	Segments []Segment
}

// Size is the number of data bytes in the image.
func (img *Image) Size() int {
	n := 0
	for _, s := range img.Segments {
		n += len(s.Data)
	}
	return n
}

// SyntaxError reports a bad record.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("ihex line %d: %s", e.Line, e.Msg)
}

// Load reads the image at path.
func Load(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open firmware: %w", err)
	}
	defer f.Close()

	img, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Parse reads Intel HEX records from r. Lines that do not start with ':'
// are ignored.
func Parse(r io.Reader) (*Image, error) {
	scanner := bufio.NewScanner(r)
	p := parser{bytes: make(map[uint32]byte)}
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, ":") {
			continue
		}

		done, err := p.record(line)
		if err != nil {
			return nil, &SyntaxError{Line: lineNo, Msg: err.Error()}
		}
		if done {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read firmware: %w", err)
	}
	if len(p.bytes) == 0 {
		return nil, fmt.Errorf("firmware contains no data")
	}
	return p.image(), nil
}

type parser struct {
	base  uint32
	bytes map[uint32]byte
}

// record applies one record. It reports true at end of file.
func (p *parser) record(line string) (bool, error) {
	if len(line) < minRecordChars || len(line)%2 == 0 {
		return false, fmt.Errorf("bad record length %d", len(line))
	}

	raw := make([]byte, (len(line)-1)/2)
	for i := range raw {
		v, err := strconv.ParseUint(line[1+2*i:3+2*i], 16, 8)
		if err != nil {
			return false, fmt.Errorf("bad hex digits %q", line[1+2*i:3+2*i])
		}
		raw[i] = byte(v)
	}

	length := int(raw[0])
	if len(raw) != length+5 {
		return false, fmt.Errorf("record declares %d data bytes, has %d", length, len(raw)-5)
	}

	var sum byte
	for _, b := range raw {
		sum += b
	}
	if sum != 0 {
		return false, fmt.Errorf("checksum mismatch")
	}

	addr := uint32(raw[1])<<8 | uint32(raw[2])
	data := raw[4 : 4+length]

	switch raw[3] {
	case recData:
		for i, b := range data {
			p.bytes[p.base+addr+uint32(i)] = b
		}
	case recEOF:
		return true, nil
	case recExtSegment:
		if length != 2 {
			return false, fmt.Errorf("extended segment address needs 2 bytes")
		}
		p.base = (uint32(data[0])<<8 | uint32(data[1])) << 4
	case recExtLinear:
		if length != 2 {
			return false, fmt.Errorf("extended linear address needs 2 bytes")
		}
		p.base = (uint32(data[0])<<8 | uint32(data[1])) << 16
	case recStartSegment, recStartLinear:
	default:
		return false, fmt.Errorf("unknown record type 0x%02X", raw[3])
	}
	return false, nil
}

// image merges the collected bytes into contiguous segments.
func (p *parser) image() *Image {
	addrs := make([]uint32, 0, len(p.bytes))
	for a := range p.bytes {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	img := &Image{}
	for _, a := range addrs {
		n := len(img.Segments)
		if n > 0 {
			last := &img.Segments[n-1]
			if last.Address+uint32(len(last.Data)) == a {
				last.Data = append(last.Data, p.bytes[a])
				continue
			}
		}
		img.Segments = append(img.Segments, Segment{Address: a, Data: []byte{p.bytes[a]}})
	}
	return img
}
