// ABOUTME: Pull-based line reader for newline-delimited agent output
// ABOUTME: Yields one raw line per call, independent of the transport behind it

package stream

import (
	"bufio"
	"io"
)

// maxLineSize bounds a single stream-json record. Tool inputs can carry
// whole file contents, so the default 64KiB scanner buffer is not enough.
const maxLineSize = 1024 * 1024

// Decoder reads newline-delimited records from a reader one line at a time.
// It does no JSON decoding itself; pair it with a Parser.
type Decoder struct {
	scanner *bufio.Scanner
}

// NewDecoder wraps r for line-at-a-time reading.
func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Decoder{scanner: s}
}

// Next returns the next line, or io.EOF when the stream ends.
func (d *Decoder) Next() (string, error) {
	if d.scanner.Scan() {
		return d.scanner.Text(), nil
	}
	if err := d.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
