package pipe

import (
	"bytes"
	"time"
	"unicode/utf8"
)

// inputGrace is how long Run waits for the input feed after the process
// exited.
const inputGrace = 250 * time.Millisecond

const (
	chunkSize  = 32 * 1024
	maxPending = 64 * 1024

	// over-long stderr lines are matched against the canary in pieces of
	// maxPending, joined up to this length
	maxCanaryLine = 4 * maxPending
)

// lineBuffer cuts a byte stream at line boundaries. An unterminated tail is
// kept until the next push, or until it grows over max.
type lineBuffer struct {
	pending []byte
	max     int
}

func newLineBuffer() *lineBuffer {
	return &lineBuffer{max: maxPending}
}

// push appends p and returns everything up to and including the last
// newline seen so far. A line over max is cut before an incomplete trailing
// UTF-8 sequence, which stays pending.
func (b *lineBuffer) push(p []byte) []byte {
	b.pending = append(b.pending, p...)
	n := bytes.LastIndexByte(b.pending, '\n') + 1
	if n == 0 {
		if len(b.pending) < b.max {
			return nil
		}
		n = runeCut(b.pending)
	}
	out := bytes.Clone(b.pending[:n])
	b.pending = append(b.pending[:0], b.pending[n:]...)
	return out
}

// runeCut returns the length of p without an incomplete UTF-8 sequence at
// its end.
func runeCut(p []byte) int {
	for i := len(p) - 1; i >= 0 && i > len(p)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(p[i]) {
			continue
		}
		if i > 0 && !utf8.FullRune(p[i:]) {
			return i
		}
		break
	}
	return len(p)
}

// flush returns the unterminated tail.
func (b *lineBuffer) flush() []byte {
	out := b.pending
	b.pending = nil
	return out
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(bytes.TrimSpace(t.buf))
}
