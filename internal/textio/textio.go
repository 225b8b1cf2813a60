// Package textio provides line oriented reading for tagger output parsers.
package textio

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// LineReader reads a text stream one line at a time.
type LineReader interface {
	// ReadLine returns the next line without its line terminator, or io.EOF
	// after the last line.
	ReadLine() (string, error)
	// EOF reports whether the stream is exhausted.
	EOF() bool
}

type lineReader struct {
	r   *bufio.Reader
	eof bool
}

func NewLineReader(r io.Reader) LineReader {
	return &lineReader{r: bufio.NewReader(r)}
}

func (l *lineReader) ReadLine() (string, error) {
	if l.eof {
		return "", io.EOF
	}
	line, err := l.r.ReadString('\n')
	if errors.Is(err, io.EOF) {
		l.eof = true
		if line == "" {
			return "", io.EOF
		}
		err = nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (l *lineReader) EOF() bool {
	if l.eof {
		return true
	}
	if _, err := l.r.Peek(1); err != nil {
		l.eof = errors.Is(err, io.EOF)
		return l.eof
	}
	return false
}

// Lines reads all remaining lines of r.
func Lines(r LineReader) ([]string, error) {
	var lines []string
	for {
		line, err := r.ReadLine()
		if errors.Is(err, io.EOF) {
			return lines, nil
		}
		if err != nil {
			return lines, err
		}
		lines = append(lines, line)
	}
}
