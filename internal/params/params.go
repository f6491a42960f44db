// Package params reads and writes SiK radio parameter files.
//
// Each line has the form NAME:description=VALUE, the same form the radio
// prints for ATI5. S0 holds the EEPROM format version and is read-only on
// the radio, so it is never part of a Set.
package params

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// FormatID names the read-only format identifier.
const FormatID = "S0"

// Entry is one named parameter.
type Entry struct {
	Name        string
	Description string
	Value       string
}

// Set is an ordered collection of parameters. Order is first appearance.
type Set struct {
	entries []Entry
	index   map[string]int
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{index: make(map[string]int)}
}

// Put adds or updates a parameter. Updating keeps the original position.
// The format identifier is ignored.
func (s *Set) Put(e Entry) {
	if e.Name == FormatID {
		return
	}
	if i, ok := s.index[e.Name]; ok {
		s.entries[i] = e
		return
	}
	s.index[e.Name] = len(s.entries)
	s.entries = append(s.entries, e)
}

// Get returns the value of name.
func (s *Set) Get(name string) (string, bool) {
	i, ok := s.index[name]
	if !ok {
		return "", false
	}
	return s.entries[i].Value, true
}

func (s *Set) Len() int { return len(s.entries) }

// Entries returns the parameters in order.
func (s *Set) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Names returns the parameter names in order.
func (s *Set) Names() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.Name
	}
	return names
}

// SyntaxError reports a line that is not NAME:description=VALUE.
type SyntaxError struct {
	Line int
	Text string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: malformed parameter %q", e.Line, e.Text)
}

// Parse reads parameters from r. Blank lines are skipped.
func Parse(r io.Reader) (*Set, error) {
	set := NewSet()
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		e, ok := parseLine(line)
		if !ok {
			return nil, &SyntaxError{Line: lineNo, Text: line}
		}
		set.Put(e)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read parameters: %w", err)
	}
	return set, nil
}

// parseLine takes the name before the first ':' and the value after the
// first '='.
func parseLine(line string) (Entry, bool) {
	colon := strings.IndexByte(line, ':')
	eq := strings.IndexByte(line, '=')
	if colon <= 0 || eq < 0 || eq < colon {
		return Entry{}, false
	}
	return Entry{
		Name:        strings.TrimSpace(line[:colon]),
		Description: line[colon+1 : eq],
		Value:       strings.TrimSpace(line[eq+1:]),
	}, true
}

// Load parses the parameter file at path.
func Load(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parameter file: %w", err)
	}
	defer f.Close()

	set, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// Write prints s in parameter file form.
func Write(w io.Writer, s *Set) error {
	bw := bufio.NewWriter(w)
	for _, e := range s.entries {
		if _, err := fmt.Fprintf(bw, "%s:%s=%s\n", e.Name, e.Description, e.Value); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Save writes s to path.
func Save(path string, s *Set) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create parameter file: %w", err)
	}
	if err := Write(f, s); err != nil {
		f.Close()
		return fmt.Errorf("write parameter file: %w", err)
	}
	return f.Close()
}
