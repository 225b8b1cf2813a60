package obt

import (
	"bufio"
	"io"
	"strings"
)

// FilteredReader drops blank lines from the input of mtag, which fails on a
// trailing empty line. It is an io.Reader and a textio.LineReader.
type FilteredReader struct {
	r   *bufio.Reader
	buf []byte
	err error
}

func NewFilteredReader(r io.Reader) *FilteredReader {
	return &FilteredReader{r: bufio.NewReader(r)}
}

// next returns the next non-blank line including its terminator.
func (f *FilteredReader) next() (string, error) {
	for {
		if f.err != nil {
			return "", f.err
		}
		line, err := f.r.ReadString('\n')
		f.err = err
		if strings.TrimSpace(line) != "" {
			return line, nil
		}
	}
}

func (f *FilteredReader) Read(p []byte) (int, error) {
	if len(f.buf) == 0 {
		line, err := f.next()
		if err != nil {
			return 0, err
		}
		f.buf = []byte(line)
	}
	n := copy(p, f.buf)
	f.buf = f.buf[n:]
	return n, nil
}

func (f *FilteredReader) ReadLine() (string, error) {
	if len(f.buf) > 0 {
		line := string(f.buf)
		f.buf = nil
		return strings.TrimRight(line, "\r\n"), nil
	}
	line, err := f.next()
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (f *FilteredReader) EOF() bool {
	if len(f.buf) > 0 {
		return false
	}
	line, err := f.next()
	if err != nil {
		return true
	}
	f.buf = []byte(line)
	return false
}
