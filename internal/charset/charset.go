// Package charset converts bytes between the encoding a caller works in and
// the encoding an external tool expects.
package charset

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

var ErrUnknownEncoding = errors.New("unknown encoding")

// Bridge is applied at a process boundary. ToProcess converts bytes going
// into the tool, FromProcess bytes coming out of it. Callers pass whole lines,
// over-long lines in pieces cut between UTF-8 sequences, so a converted
// character is never split between calls.
type Bridge interface {
	ToProcess(p []byte) ([]byte, error)
	FromProcess(p []byte) ([]byte, error)
}

// Identity passes bytes through unchanged.
var Identity Bridge = identity{}

type identity struct{}

func (identity) ToProcess(p []byte) ([]byte, error)   { return p, nil }
func (identity) FromProcess(p []byte) ([]byte, error) { return p, nil }

// Charset converts between two IANA encodings.
type Charset struct {
	caller encoding.Encoding
	tool   encoding.Encoding
	names  [2]string
}

// New returns a bridge between the caller encoding and the tool encoding.
// Identity is returned when both names resolve to the same encoding.
func New(callerEnc, toolEnc string) (Bridge, error) {
	caller, err := Lookup(callerEnc)
	if err != nil {
		return nil, err
	}
	tool, err := Lookup(toolEnc)
	if err != nil {
		return nil, err
	}
	if caller == tool {
		return Identity, nil
	}
	return &Charset{
		caller: caller,
		tool:   tool,
		names:  [2]string{callerEnc, toolEnc},
	}, nil
}

// Lookup resolves an encoding name. "utf8" and "latin1" are accepted
// besides the registered IANA names and aliases.
func Lookup(name string) (encoding.Encoding, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "", "utf8", "utf-8":
		return unicode.UTF8, nil
	case "latin1":
		n = "iso-8859-1"
	}
	enc, err := ianaindex.IANA.Encoding(n)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
	return enc, nil
}

func (c *Charset) ToProcess(p []byte) ([]byte, error) {
	return convert(c.caller, c.tool, p)
}

func (c *Charset) FromProcess(p []byte) ([]byte, error) {
	return convert(c.tool, c.caller, p)
}

func (c *Charset) String() string {
	return c.names[0] + "<->" + c.names[1]
}

func convert(from, to encoding.Encoding, p []byte) ([]byte, error) {
	if len(p) == 0 {
		return p, nil
	}
	utf8, err := from.NewDecoder().Bytes(p)
	if err != nil {
		return nil, fmt.Errorf("decoding: %w", err)
	}
	out, err := encoding.ReplaceUnsupported(to.NewEncoder()).Bytes(utf8)
	if err != nil {
		return nil, fmt.Errorf("encoding: %w", err)
	}
	return out, nil
}
